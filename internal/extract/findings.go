package extract

import "regexp"

type findingPattern struct {
	re *regexp.Regexp
	// group is the submatch holding the finding; 0 means the whole match.
	group int
}

var findingPatterns = []findingPattern{
	{regexp.MustCompile(`\*{2,}(.*?)\*{2,}`), 1},
	{regexp.MustCompile(`(?i)(?:high\s+risk|low\s+risk|positive|negative|abnormal|normal|elevated|decreased)\s+[a-z\s]+`), 0},
	{regexp.MustCompile(`(?i)(?:detected|not\s+detected|present|absent)`), 0},
	{regexp.MustCompile(`(?i)(?:findings?|impression|conclusion|diagnosis|result)[:\s]*([^\n\r.]{10,100})`), 1},
}

const (
	minFindingLen = 4
	maxFindingLen = 150
)

func extractFindings(text string) []string {
	findings := []string{}
	seen := make(map[string]bool)
	for _, p := range findingPatterns {
		for _, m := range p.re.FindAllStringSubmatch(text, -1) {
			f := collapseSpace(m[p.group])
			if len(f) < minFindingLen || len(f) >= maxFindingLen || seen[f] {
				continue
			}
			seen[f] = true
			findings = append(findings, f)
		}
	}
	return findings
}
