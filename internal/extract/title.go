package extract

import (
	"regexp"
	"strings"
)

// Most specific first; the first phrase found anywhere in the text wins.
var titlePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)pap\s+and\s+molecular\s+pathology\s+report`),
	regexp.MustCompile(`(?i)pathology\s+report`),
	regexp.MustCompile(`(?i)lab\s+report`),
	regexp.MustCompile(`(?i)blood\s+test\s+results?`),
	regexp.MustCompile(`(?i)chemistry\s+panel`),
	regexp.MustCompile(`(?i)lipid\s+profile`),
	regexp.MustCompile(`(?i)cbc\s+with\s+differential`),
	regexp.MustCompile(`(?i)(?:prescription|rx)`),
	regexp.MustCompile(`(?i)discharge\s+summary`),
	regexp.MustCompile(`(?i)consultation\s+note`),
	regexp.MustCompile(`(?i)radiology\s+report`),
	regexp.MustCompile(`(?i)mri\s+report`),
	regexp.MustCompile(`(?i)ct\s+scan\s+report`),
	regexp.MustCompile(`(?i)x-ray\s+report`),
}

func detectTitle(text string) string {
	for _, re := range titlePatterns {
		if m := re.FindString(text); m != "" {
			return collapseSpace(m)
		}
	}
	return ""
}

const (
	titleGenericLab    = "Lab Results"
	titleMedicalReport = "Medical Report"
	titleFallback      = "Medical Document"
)

// backfillTitle derives a title from the other fields when no title phrase
// matched. The pathology refinements are independent checks, so a later
// keyword overwrites an earlier one.
func backfillTitle(data *MedicalData, lower string) {
	if data.Title != "" && data.Title != titleGenericLab {
		return
	}

	var title string
	switch {
	case data.Category == CategoryPathology:
		title = string(CategoryPathology)
		if strings.Contains(lower, "pap") {
			title = "PAP Smear Report"
		}
		if strings.Contains(lower, "biopsy") {
			title = "Biopsy Report"
		}
		if strings.Contains(lower, "cytology") {
			title = "Cytology Report"
		}
	case data.Category != "" && data.Category != CategoryLab:
		title = string(data.Category)
	case len(data.Values) > 0:
		title = titleGenericLab + " - " + data.Values[0].Name
	case len(data.Findings) > 0:
		title = titleMedicalReport
	default:
		title = titleFallback
	}

	if data.Date != "" && !strings.Contains(title, data.Date) {
		title += " - " + data.Date
	}
	data.Title = title
}
