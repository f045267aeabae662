package extract

// Category is one of the fixed medical document categories.
type Category string

const (
	CategoryPathology    Category = "Pathology Report"
	CategoryLab          Category = "Lab Results"
	CategoryImaging      Category = "Imaging Report"
	CategoryPrescription Category = "Prescription"
	CategoryDoctorNotes  Category = "Doctor Notes"
	CategoryVaccination  Category = "Vaccination Record"
)

// LabValue is a single named measurement lifted from a report.
type LabValue struct {
	Name        string `json:"name"`
	Value       string `json:"value"`
	Unit        string `json:"unit,omitempty"`
	NormalRange string `json:"normalRange,omitempty"`
}

// MedicalData is the structured result of running the extractor over OCR text.
// Values and Findings are never nil.
type MedicalData struct {
	Title    string     `json:"title"`
	Date     string     `json:"date,omitempty"`
	Category Category   `json:"category,omitempty"`
	Provider string     `json:"provider,omitempty"`
	Values   []LabValue `json:"values"`
	Findings []string   `json:"findings"`
}

// HasSignal reports whether anything beyond the fallback title was found.
func (d *MedicalData) HasSignal() bool {
	return d.Date != "" || d.Category != "" || d.Provider != "" ||
		len(d.Values) > 0 || len(d.Findings) > 0
}
