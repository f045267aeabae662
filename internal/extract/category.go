package extract

import "strings"

type categoryRule struct {
	category Category
	keywords []string
}

// Declaration order is the classification order: the first category with any
// keyword present wins, even if a later category has more hits.
var categoryRules = []categoryRule{
	{CategoryPathology, []string{
		"pathology", "pap smear", "pap and molecular", "pap", "cytology", "cytologic",
		"biopsy", "histology", "specimen", "molecular pathology", "atypical squamous",
		"cervical", "hpv", "high risk hpv", "chlamydia", "neisseria", "thinprep",
	}},
	{CategoryLab, []string{
		"lab", "laboratory", "blood test", "urine", "cbc", "chemistry", "lipid",
		"glucose", "cholesterol", "hemoglobin", "creatinine", "panel",
	}},
	{CategoryImaging, []string{
		"x-ray", "mri", "ct scan", "ultrasound", "mammogram", "scan", "radiology",
		"imaging", "radiologic", "sonogram",
	}},
	{CategoryPrescription, []string{
		"prescription", "rx", "medication", "dosage", "mg", "tablets", "pills",
		"daily", "twice daily", "capsules",
	}},
	{CategoryDoctorNotes, []string{
		"consultation", "visit", "examination", "assessment", "diagnosis", "history",
		"chief complaint", "physical exam", "plan",
	}},
	{CategoryVaccination, []string{
		"vaccine", "vaccination", "immunization", "shot", "hepatitis", "covid",
		"pfizer", "moderna", "booster",
	}},
}

// classify expects already lowercased text.
func classify(lower string) Category {
	for _, rule := range categoryRules {
		for _, kw := range rule.keywords {
			if strings.Contains(lower, kw) {
				return rule.category
			}
		}
	}
	return ""
}

// Categories lists every category in classification order.
func Categories() []Category {
	out := make([]Category, len(categoryRules))
	for i, rule := range categoryRules {
		out[i] = rule.category
	}
	return out
}

// Valid reports whether c is one of the known categories.
func (c Category) Valid() bool {
	for _, rule := range categoryRules {
		if rule.category == c {
			return true
		}
	}
	return false
}
