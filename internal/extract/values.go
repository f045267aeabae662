package extract

import (
	"regexp"
	"strings"
)

var labValuePatterns = []*regexp.Regexp{
	// "Glucose: 95 mg/dL (Normal: 70-100)". Any whitespace, newlines included,
	// may separate the parts, so "Glucose:\n95 mg/dL" is one value.
	regexp.MustCompile(`(?i)([a-z][a-z\s]{2,30})\s*:\s*(\d+\.?\d*)\s*([a-z/%]{1,10})?(?:\s*\(?(?:normal|ref|reference)?[:\s]*(\d+\.?\d*\s*[-–]\s*\d+\.?\d*))?`),
	// "Hemoglobin   13.5   g/dL" as a table row.
	regexp.MustCompile(`(?im)^([a-z][a-z \t]{2,30})[ \t]+(\d+\.?\d*)[ \t]+([a-z/%]{1,10})[ \t]*$`),
}

// Substrings that mark demographic or logistics lines rather than results.
var nonMedicalNames = []string{"age", "phone", "collection", "sample"}

// extractLabValues runs every pattern family over the whole text in turn.
// A row matched by both families is reported twice.
func extractLabValues(text string) []LabValue {
	values := []LabValue{}
	for _, re := range labValuePatterns {
		for _, m := range re.FindAllStringSubmatch(text, -1) {
			name := strings.TrimSpace(m[1])
			if m[2] == "" || !isLabName(name) {
				continue
			}
			v := LabValue{Name: name, Value: m[2], Unit: strings.TrimSpace(m[3])}
			if len(m) > 4 {
				v.NormalRange = strings.TrimSpace(m[4])
			}
			values = append(values, v)
		}
	}
	return values
}

func isLabName(name string) bool {
	if len(name) <= 2 || len(name) >= 40 {
		return false
	}
	if strings.Contains(name, "PM") || isDigits(name) {
		return false
	}
	lower := strings.ToLower(name)
	for _, tok := range nonMedicalNames {
		if strings.Contains(lower, tok) {
			return false
		}
	}
	return true
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}
