package extract

import (
	"regexp"
)

const institution = `[a-z\s&]+(?:hospital|medical center|clinic|lab|laboratory|pathology|health)`

var providerPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(?:at|from)\s+(` + institution + `)`),
	regexp.MustCompile(`(?i)(` + institution + `)`),
	regexp.MustCompile(`(?i)(?:ref\.?\s*by|referred\s+by)[:\s]*([dr.]*\s*[a-z\s]+(?:md|phd|do)?)`),
	regexp.MustCompile(`(?i)(?:dr\.?\s+|doctor\s+)([a-z\s]+)`),
	regexp.MustCompile(`(?i)(?:physician|pathologist)[:\s]*([a-z\s]+)`),
	// An institution name followed by a street number.
	regexp.MustCompile(`(?i)([a-z\s&]+(?:medical|health))\s+\d+`),
}

var (
	providerPreposition = regexp.MustCompile(`(?i)^(?:at|from)\s+`)
	providerCorpSuffix  = regexp.MustCompile(`(?i)\s+(?:inc|llc|corp)\.?$`)
)

func detectProvider(text string) string {
	for _, re := range providerPatterns {
		m := re.FindStringSubmatch(text)
		if m == nil || m[1] == "" {
			continue
		}
		if p := cleanProvider(m[1]); len(p) > 3 && len(p) < 100 {
			return p
		}
	}
	return ""
}

func cleanProvider(s string) string {
	s = collapseSpace(s)
	s = providerPreposition.ReplaceAllString(s, "")
	s = providerCorpSuffix.ReplaceAllString(s, "")
	return s
}
