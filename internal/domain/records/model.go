package records

import (
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/medscan/medscan/internal/extract"
	"github.com/medscan/medscan/internal/platform/fhir"
)

// Source records how the document text reached the service.
type Source string

const (
	SourceOCR    Source = "ocr"
	SourceManual Source = "manual"
)

func (s Source) Valid() bool {
	return s == SourceOCR || s == SourceManual
}

// MedicalRecord maps to the medical_record table: the raw document text plus
// the fields extracted from it.
type MedicalRecord struct {
	ID            uuid.UUID          `db:"id" json:"id"`
	FHIRID        string             `db:"fhir_id" json:"fhir_id"`
	PatientID     *uuid.UUID         `db:"patient_id" json:"patient_id,omitempty"`
	Source        Source             `db:"source" json:"source"`
	OCRConfidence *float64           `db:"ocr_confidence" json:"ocr_confidence,omitempty"`
	RawText       string             `db:"raw_text" json:"raw_text"`
	Title         string             `db:"title" json:"title"`
	Date          string             `db:"record_date" json:"date,omitempty"`
	Category      extract.Category   `db:"category" json:"category,omitempty"`
	Provider      string             `db:"provider" json:"provider,omitempty"`
	Values        []extract.LabValue `db:"lab_values" json:"values"`
	Findings      []string           `db:"findings" json:"findings"`
	VersionID     int                `db:"version_id" json:"version_id"`
	CreatedAt     time.Time          `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time          `db:"updated_at" json:"updated_at"`
}

// GetVersionID returns the current version.
func (r *MedicalRecord) GetVersionID() int { return r.VersionID }

// SetVersionID sets the current version.
func (r *MedicalRecord) SetVersionID(v int) { r.VersionID = v }

func (r *MedicalRecord) apply(d *extract.MedicalData) {
	r.Title = d.Title
	r.Date = d.Date
	r.Category = d.Category
	r.Provider = d.Provider
	r.Values = d.Values
	r.Findings = d.Findings
}

// Data returns the extracted fields in extractor output form.
func (r *MedicalRecord) Data() *extract.MedicalData {
	d := &extract.MedicalData{
		Title:    r.Title,
		Date:     r.Date,
		Category: r.Category,
		Provider: r.Provider,
		Values:   r.Values,
		Findings: r.Findings,
	}
	if d.Values == nil {
		d.Values = []extract.LabValue{}
	}
	if d.Findings == nil {
		d.Findings = []string{}
	}
	return d
}

const (
	diagnosticServiceSystem = "http://terminology.hl7.org/CodeSystem/v2-0074"
	ocrConfidenceExtension  = "urn:medscan:ocr-confidence"
)

// Diagnostic service section codes for the categories that have one.
var diagnosticServiceCodes = map[extract.Category]string{
	extract.CategoryPathology: "PAT",
	extract.CategoryLab:       "LAB",
	extract.CategoryImaging:   "RAD",
}

// ToFHIR renders the record as a DiagnosticReport. Lab values become
// contained Observations referenced from result.
func (r *MedicalRecord) ToFHIR() map[string]interface{} {
	result := map[string]interface{}{
		"resourceType": "DiagnosticReport",
		"id":           r.FHIRID,
		"status":       "final",
		"code":         fhir.CodeableConcept{Text: r.Title},
		"issued":       r.CreatedAt.Format(time.RFC3339),
		"meta": fhir.Meta{
			VersionID:   strconv.Itoa(r.VersionID),
			LastUpdated: r.UpdatedAt,
		},
		"presentedForm": []map[string]interface{}{{
			"contentType": "text/plain",
			"data":        base64.StdEncoding.EncodeToString([]byte(r.RawText)),
		}},
	}
	if r.PatientID != nil {
		result["subject"] = fhir.Reference{Reference: fhir.FormatReference("Patient", r.PatientID.String())}
	}
	if r.Category != "" {
		cc := fhir.CodeableConcept{Text: string(r.Category)}
		if code, ok := diagnosticServiceCodes[r.Category]; ok {
			cc.Coding = []fhir.Coding{{System: diagnosticServiceSystem, Code: code, Display: string(r.Category)}}
		}
		result["category"] = []fhir.CodeableConcept{cc}
	}
	if effective, ok := fhirDate(r.Date); ok {
		result["effectiveDateTime"] = effective
	}
	if r.Provider != "" {
		result["performer"] = []fhir.Reference{{Display: r.Provider}}
	}
	if len(r.Findings) > 0 {
		result["conclusion"] = strings.Join(r.Findings, "; ")
	}
	if len(r.Values) > 0 {
		contained := make([]map[string]interface{}, len(r.Values))
		refs := make([]fhir.Reference, len(r.Values))
		for i, v := range r.Values {
			id := fmt.Sprintf("obs-%d", i+1)
			contained[i] = observation(id, v)
			refs[i] = fhir.Reference{Reference: "#" + id, Display: v.Name}
		}
		result["contained"] = contained
		result["result"] = refs
	}
	if r.OCRConfidence != nil {
		result["extension"] = []map[string]interface{}{{
			"url":          ocrConfidenceExtension,
			"valueDecimal": *r.OCRConfidence,
		}}
	}
	return result
}

func observation(id string, v extract.LabValue) map[string]interface{} {
	obs := map[string]interface{}{
		"resourceType": "Observation",
		"id":           id,
		"status":       "final",
		"code":         fhir.CodeableConcept{Text: v.Name},
	}
	if n, err := strconv.ParseFloat(v.Value, 64); err == nil {
		q := map[string]interface{}{"value": n}
		if v.Unit != "" {
			q["unit"] = v.Unit
		}
		obs["valueQuantity"] = q
	} else {
		obs["valueString"] = strings.TrimSpace(v.Value + " " + v.Unit)
	}
	if v.NormalRange != "" {
		obs["referenceRange"] = []map[string]interface{}{{"text": v.NormalRange}}
	}
	return obs
}

// fhirDate converts an extracted DD/MM/YYYY date into a FHIR date.
func fhirDate(date string) (string, bool) {
	if date == "" {
		return "", false
	}
	t, err := time.Parse("2/1/2006", date)
	if err != nil {
		return "", false
	}
	return t.Format("2006-01-02"), true
}
