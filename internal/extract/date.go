package extract

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Full names precede abbreviations so "december" is never cut to "dec".
const monthAlt = `(?:january|february|march|april|may|june|july|august|september|october|november|december|jan|feb|mar|apr|jun|jul|aug|sept|sep|oct|nov|dec)`

// labelledDate builds a pattern capturing "DD <month> [YYYY]" after label.
func labelledDate(label, daySep string) *regexp.Regexp {
	return regexp.MustCompile(`(?i)(?:` + label + `)[:\s]*(\d{1,2}` + daySep + monthAlt + `(?:[/\-.\s,]*\d{4})?)`)
}

type datePattern struct {
	re       *regexp.Regexp
	priority int
}

// Lower priority wins regardless of where in the text the match sits.
var datePatterns = []datePattern{
	{labelledDate(`generated\s+on|report\s+date|final\s+report`, `[/\-.\s]+`), 1},
	{labelledDate(`reported\s+on`, `[/\-.\s]*`), 2},
	{labelledDate(`collected\s+(?:at|on)|registration\s+date`, `[/\-.\s]*`), 3},
	{labelledDate(`registered\s+on`, `[/\-.\s]*`), 4},
	{labelledDate(`date|test\s+date`, `[/\-.\s]*`), 5},
	{regexp.MustCompile(`(?i)\b(\d{1,2}\s+` + monthAlt + `(?:\s*[,\s]*\d{4})?)\b`), 6},
	{regexp.MustCompile(`\b(\d{1,2}[/\-.]\d{1,2}[/\-.]\d{4})\b`), 7},
}

const noPriority = 1 << 30

func detectDate(text string, now time.Time) string {
	best, bestPriority := "", noPriority
	for _, p := range datePatterns {
		if p.priority >= bestPriority {
			continue
		}
		for _, m := range p.re.FindAllStringSubmatch(text, -1) {
			if d, ok := normalizeDate(m[1], now); ok {
				best, bestPriority = d, p.priority
				break
			}
		}
	}
	return best
}

var (
	clockTime     = regexp.MustCompile(`(?i)\s+\d{1,2}:\d{2}\s*(?:am|pm)`)
	namedMonth    = regexp.MustCompile(`(?i)(\d{1,2})[/\-.\s]*(` + monthAlt + `)(?:[/\-.\s,]*(\d{4}))?`)
	numericDate   = regexp.MustCompile(`^\d{1,2}[/\-.]\d{1,2}[/\-.]\d{4}$`)
	fourDigitYear = regexp.MustCompile(`\d{4}`)
	dayMonth      = regexp.MustCompile(`^\d{1,2}/\d{1,2}$`)
	dateJunk      = regexp.MustCompile(`[,\s]+`)
	slashRun      = regexp.MustCompile(`/+`)
	dateShape     = regexp.MustCompile(`^(\d{1,2})/(\d{1,2})(?:/(\d{4}))?$`)
)

var monthNumbers = map[string]string{
	"jan": "01", "feb": "02", "mar": "03", "apr": "04", "may": "05", "jun": "06",
	"jul": "07", "aug": "08", "sep": "09", "oct": "10", "nov": "11", "dec": "12",
}

// normalizeDate rewrites a raw date candidate as DD/MM/YYYY and reports
// whether the result is a plausible record date.
func normalizeDate(raw string, now time.Time) (string, bool) {
	s := clockTime.ReplaceAllString(raw, "")
	s = strings.TrimSpace(s)

	s = namedMonth.ReplaceAllStringFunc(s, func(m string) string {
		parts := namedMonth.FindStringSubmatch(m)
		out := parts[1] + "/" + monthNumbers[strings.ToLower(parts[2])[:3]]
		if parts[3] != "" {
			out += "/" + parts[3]
		}
		return out
	})

	if numericDate.MatchString(s) {
		s = strings.NewReplacer("-", "/", ".", "/").Replace(s)
	}

	if !fourDigitYear.MatchString(s) && dayMonth.MatchString(s) {
		s += "/" + strconv.Itoa(now.Year())
	}

	s = dateJunk.ReplaceAllString(s, "/")
	s = slashRun.ReplaceAllString(s, "/")
	s = strings.Trim(s, "/")

	if !plausibleDate(s, now) {
		return "", false
	}
	return s, true
}

// plausibleDate accepts real calendar dates between the start of the year ten
// years back and the end of next year. Short strings are rejected outright so
// fragments of phone numbers and IDs do not pass as dates.
func plausibleDate(s string, now time.Time) bool {
	if len(s) < 6 {
		return false
	}
	m := dateShape.FindStringSubmatch(s)
	if m == nil || m[3] == "" {
		return false
	}
	day, _ := strconv.Atoi(m[1])
	month, _ := strconv.Atoi(m[2])
	year, _ := strconv.Atoi(m[3])
	if month < 1 || month > 12 || day < 1 {
		return false
	}

	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	if t.Day() != day || int(t.Month()) != month {
		return false
	}

	earliest := time.Date(now.Year()-10, time.January, 1, 0, 0, 0, 0, time.UTC)
	latest := time.Date(now.Year()+1, time.December, 31, 0, 0, 0, 0, time.UTC)
	return !t.Before(earliest) && !t.After(latest)
}
