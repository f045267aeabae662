package records

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/medscan/medscan/internal/platform/auth"
	"github.com/medscan/medscan/internal/platform/fhir"
)

func newTestHandler() (*Handler, *echo.Echo) {
	return NewHandler(newTestService()), echo.New()
}

func jsonContext(e *echo.Echo, method, target, body string) (echo.Context, *httptest.ResponseRecorder) {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

// asPatient puts patient-only claims on the request context.
func asPatient(c echo.Context, patientID string) {
	ctx := context.WithValue(c.Request().Context(), auth.UserRolesKey, []string{auth.RolePatient})
	ctx = context.WithValue(ctx, auth.PatientIDKey, patientID)
	c.SetRequest(c.Request().WithContext(ctx))
}

func expectHTTPError(t *testing.T, err error, code int) {
	t.Helper()
	he, ok := err.(*echo.HTTPError)
	if !ok {
		t.Fatalf("expected *echo.HTTPError, got %T (%v)", err, err)
	}
	if he.Code != code {
		t.Errorf("expected %d, got %d", code, he.Code)
	}
}

func createRecord(t *testing.T, h *Handler, patientID *uuid.UUID) *MedicalRecord {
	t.Helper()
	rec, err := h.svc.CreateRecord(context.Background(), CreateRecordRequest{Text: labReport, PatientID: patientID})
	if err != nil {
		t.Fatalf("create record: %v", err)
	}
	return rec
}

func TestHandler_Extract(t *testing.T) {
	h, e := newTestHandler()
	body, _ := json.Marshal(extractRequest{Text: labReport})
	c, rec := jsonContext(e, http.MethodPost, "/api/v1/extract", string(body))

	if err := h.Extract(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var out map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out["category"] != "Lab Results" {
		t.Errorf("expected Lab Results, got %v", out["category"])
	}
	if vals, ok := out["values"].([]interface{}); !ok || len(vals) != 2 {
		t.Errorf("expected 2 values, got %v", out["values"])
	}
}

func TestHandler_Extract_EmptyBodyStillExtracts(t *testing.T) {
	h, e := newTestHandler()
	c, rec := jsonContext(e, http.MethodPost, "/api/v1/extract", `{}`)

	if err := h.Extract(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(rec.Body.String(), `"values":[]`) || !strings.Contains(rec.Body.String(), `"findings":[]`) {
		t.Errorf("expected empty arrays in %s", rec.Body.String())
	}
}

func TestHandler_Extract_TooLarge(t *testing.T) {
	h := NewHandler(NewService(newSteppingRepo(), testOptions(Options{MaxTextBytes: 8}), zerolog.Nop()))
	c, _ := jsonContext(echo.New(), http.MethodPost, "/api/v1/extract", `{"text":"far too much text"}`)
	expectHTTPError(t, h.Extract(c), http.StatusRequestEntityTooLarge)
}

func TestHandler_ExtractBatch(t *testing.T) {
	h, e := newTestHandler()
	body, _ := json.Marshal(batchRequest{Texts: []string{labReport, "Prescription: Amoxicillin"}})
	c, rec := jsonContext(e, http.MethodPost, "/api/v1/extract/batch", string(body))

	if err := h.ExtractBatch(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var out struct {
		Results []struct {
			Category string `json:"category"`
		} `json:"results"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(out.Results) != 2 || out.Results[0].Category != "Lab Results" || out.Results[1].Category != "Prescription" {
		t.Errorf("unexpected results %+v", out.Results)
	}
}

func TestHandler_ExtractBatch_Empty(t *testing.T) {
	h, e := newTestHandler()
	c, _ := jsonContext(e, http.MethodPost, "/api/v1/extract/batch", `{"texts":[]}`)
	expectHTTPError(t, h.ExtractBatch(c), http.StatusBadRequest)
}

func TestHandler_ExtractOCR(t *testing.T) {
	h, e := newTestHandler()
	body := `{"ParsedResults":[{"ParsedText":"Glucose: 95 mg/dL","FileParseExitCode":1}],"OCRExitCode":1}`
	c, rec := jsonContext(e, http.MethodPost, "/api/v1/extract/ocr", body)

	if err := h.ExtractOCR(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(rec.Body.String(), `"confidence":0.95`) {
		t.Errorf("expected OCR confidence in %s", rec.Body.String())
	}
}

func TestHandler_ExtractOCR_Errors(t *testing.T) {
	tests := []struct {
		name string
		body string
		code int
	}{
		{"malformed", `{"ParsedResults":`, http.StatusBadRequest},
		{"ocr failed", `{"OCRExitCode":4,"ErrorMessage":["Unable to recognize the file type"]}`, http.StatusUnprocessableEntity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, e := newTestHandler()
			c, _ := jsonContext(e, http.MethodPost, "/api/v1/extract/ocr", tt.body)
			expectHTTPError(t, h.ExtractOCR(c), tt.code)
		})
	}
}

func TestHandler_CreateRecord(t *testing.T) {
	h, e := newTestHandler()
	pid := uuid.New()
	body := `{"text":` + mustJSON(labReport) + `,"source":"ocr","patient_id":"` + pid.String() + `","ocr_confidence":0.9}`
	c, rec := jsonContext(e, http.MethodPost, "/api/v1/records", body)

	if err := h.CreateRecord(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}
	var out MedicalRecord
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.PatientID == nil || *out.PatientID != pid {
		t.Errorf("expected patient %s, got %v", pid, out.PatientID)
	}
	if out.Source != SourceOCR || out.OCRConfidence == nil {
		t.Errorf("expected ocr source with confidence, got %q %v", out.Source, out.OCRConfidence)
	}
}

func TestHandler_CreateRecord_Validation(t *testing.T) {
	tests := []struct {
		name string
		body string
		code int
	}{
		{"blank text", `{"text":"   "}`, http.StatusBadRequest},
		{"bad source", `{"text":"Glucose: 90","source":"fax"}`, http.StatusBadRequest},
		{"bad json", `{"text":`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, e := newTestHandler()
			c, _ := jsonContext(e, http.MethodPost, "/api/v1/records", tt.body)
			expectHTTPError(t, h.CreateRecord(c), tt.code)
		})
	}
}

func TestHandler_CreateRecord_PatientScoped(t *testing.T) {
	h, e := newTestHandler()
	own := uuid.New()
	body := `{"text":"Glucose: 90 mg/dL","patient_id":"` + uuid.New().String() + `"}`
	c, rec := jsonContext(e, http.MethodPost, "/api/v1/records", body)
	asPatient(c, own.String())

	if err := h.CreateRecord(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var out MedicalRecord
	_ = json.Unmarshal(rec.Body.Bytes(), &out)
	if out.PatientID == nil || *out.PatientID != own {
		t.Errorf("expected record to be filed under the caller, got %v", out.PatientID)
	}
}

func TestHandler_CreateRecord_PatientWithoutClaim(t *testing.T) {
	h, e := newTestHandler()
	c, _ := jsonContext(e, http.MethodPost, "/api/v1/records", `{"text":"Glucose: 90"}`)
	asPatient(c, "")
	expectHTTPError(t, h.CreateRecord(c), http.StatusForbidden)
}

func TestHandler_CreateRecordFromOCR(t *testing.T) {
	h, e := newTestHandler()
	pid := uuid.New()
	body := `{"ParsedResults":[{"ParsedText":"Lab Report\nGlucose: 95 mg/dL","FileParseExitCode":1}],"OCRExitCode":1}`
	c, rec := jsonContext(e, http.MethodPost, "/api/v1/records/ocr?patient_id="+pid.String(), body)

	if err := h.CreateRecordFromOCR(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var out MedicalRecord
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.Source != SourceOCR || out.OCRConfidence == nil || *out.OCRConfidence != 0.95 {
		t.Errorf("unexpected record %+v", out)
	}
	if out.PatientID == nil || *out.PatientID != pid {
		t.Errorf("expected patient %s, got %v", pid, out.PatientID)
	}
}

func TestHandler_GetRecord(t *testing.T) {
	h, e := newTestHandler()
	created := createRecord(t, h, nil)

	c, rec := jsonContext(e, http.MethodGet, "/", "")
	c.SetParamNames("id")
	c.SetParamValues(created.ID.String())
	if err := h.GetRecord(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}

func TestHandler_GetRecord_Errors(t *testing.T) {
	h, e := newTestHandler()

	c, _ := jsonContext(e, http.MethodGet, "/", "")
	c.SetParamNames("id")
	c.SetParamValues("not-a-uuid")
	expectHTTPError(t, h.GetRecord(c), http.StatusBadRequest)

	c, _ = jsonContext(e, http.MethodGet, "/", "")
	c.SetParamNames("id")
	c.SetParamValues(uuid.New().String())
	expectHTTPError(t, h.GetRecord(c), http.StatusNotFound)
}

func TestHandler_GetRecord_OtherPatientHidden(t *testing.T) {
	h, e := newTestHandler()
	owner := uuid.New()
	created := createRecord(t, h, &owner)

	c, _ := jsonContext(e, http.MethodGet, "/", "")
	c.SetParamNames("id")
	c.SetParamValues(created.ID.String())
	asPatient(c, uuid.New().String())
	expectHTTPError(t, h.GetRecord(c), http.StatusNotFound)
}

func TestHandler_ListRecords(t *testing.T) {
	h, e := newTestHandler()
	alice, bob := uuid.New(), uuid.New()
	createRecord(t, h, &alice)
	createRecord(t, h, &bob)
	createRecord(t, h, &alice)

	c, rec := jsonContext(e, http.MethodGet, "/api/v1/records?patient_id="+alice.String()+"&limit=1", "")
	if err := h.ListRecords(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var out struct {
		Data    []MedicalRecord `json:"data"`
		Total   int             `json:"total"`
		HasMore bool            `json:"has_more"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.Total != 2 || len(out.Data) != 1 || !out.HasMore {
		t.Errorf("unexpected page: total=%d len=%d more=%v", out.Total, len(out.Data), out.HasMore)
	}
}

func TestHandler_ListRecords_PatientSeesOwnOnly(t *testing.T) {
	h, e := newTestHandler()
	alice, bob := uuid.New(), uuid.New()
	createRecord(t, h, &alice)
	createRecord(t, h, &bob)

	// A patient asking for someone else's records still gets their own.
	c, rec := jsonContext(e, http.MethodGet, "/api/v1/records?patient_id="+bob.String(), "")
	asPatient(c, alice.String())
	if err := h.ListRecords(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var out struct {
		Data  []MedicalRecord `json:"data"`
		Total int             `json:"total"`
	}
	_ = json.Unmarshal(rec.Body.Bytes(), &out)
	if out.Total != 1 || *out.Data[0].PatientID != alice {
		t.Errorf("expected only alice's record, got %+v", out)
	}
}

func TestHandler_ListRecords_BadFilters(t *testing.T) {
	h, e := newTestHandler()
	for _, q := range []string{"patient_id=nope", "category=Astrology"} {
		c, _ := jsonContext(e, http.MethodGet, "/api/v1/records?"+q, "")
		expectHTTPError(t, h.ListRecords(c), http.StatusBadRequest)
	}
}

func TestHandler_DeleteRecord(t *testing.T) {
	h, e := newTestHandler()
	created := createRecord(t, h, nil)

	c, rec := jsonContext(e, http.MethodDelete, "/", "")
	c.SetParamNames("id")
	c.SetParamValues(created.ID.String())
	if err := h.DeleteRecord(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusNoContent {
		t.Errorf("expected 204, got %d", rec.Code)
	}

	c, _ = jsonContext(e, http.MethodDelete, "/", "")
	c.SetParamNames("id")
	c.SetParamValues(created.ID.String())
	expectHTTPError(t, h.DeleteRecord(c), http.StatusNotFound)
}

func TestHandler_SearchDiagnosticReportsFHIR(t *testing.T) {
	h, e := newTestHandler()
	pid := uuid.New()
	createRecord(t, h, &pid)
	createRecord(t, h, &pid)
	createRecord(t, h, nil)

	c, rec := jsonContext(e, http.MethodGet, "/fhir/DiagnosticReport?patient=Patient/"+pid.String()+"&_count=1", "")
	if err := h.SearchDiagnosticReportsFHIR(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var bundle fhir.Bundle
	if err := json.Unmarshal(rec.Body.Bytes(), &bundle); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if bundle.Type != "searchset" || bundle.Total == nil || *bundle.Total != 2 {
		t.Errorf("unexpected bundle header: %s total=%v", bundle.Type, bundle.Total)
	}
	if len(bundle.Entry) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(bundle.Entry))
	}
	if !strings.HasPrefix(bundle.Entry[0].FullURL, "DiagnosticReport/") {
		t.Errorf("unexpected fullUrl %q", bundle.Entry[0].FullURL)
	}
	var hasNext bool
	for _, l := range bundle.Link {
		if l.Relation == "next" {
			hasNext = true
		}
	}
	if !hasNext {
		t.Error("expected a next link")
	}
}

func TestHandler_SearchDiagnosticReportsFHIR_InvalidParam(t *testing.T) {
	h, e := newTestHandler()
	c, rec := jsonContext(e, http.MethodGet, "/fhir/DiagnosticReport?patient=bogus", "")
	if err := h.SearchDiagnosticReportsFHIR(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"OperationOutcome"`) {
		t.Errorf("expected OperationOutcome body, got %s", rec.Body.String())
	}
}

func TestHandler_GetDiagnosticReportFHIR(t *testing.T) {
	h, e := newTestHandler()
	created := createRecord(t, h, nil)

	c, rec := jsonContext(e, http.MethodGet, "/", "")
	c.SetParamNames("id")
	c.SetParamValues(created.FHIRID)
	if err := h.GetDiagnosticReportFHIR(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if etag := rec.Header().Get("ETag"); etag != `W/"1"` {
		t.Errorf("expected ETag W/\"1\", got %q", etag)
	}
	if !strings.Contains(rec.Body.String(), `"resourceType":"DiagnosticReport"`) {
		t.Errorf("unexpected body %s", rec.Body.String())
	}
}

func TestHandler_GetDiagnosticReportFHIR_NotModified(t *testing.T) {
	h, e := newTestHandler()
	created := createRecord(t, h, nil)

	c, rec := jsonContext(e, http.MethodGet, "/", "")
	c.Request().Header.Set("If-None-Match", `W/"1"`)
	c.SetParamNames("id")
	c.SetParamValues(created.FHIRID)
	if err := h.GetDiagnosticReportFHIR(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusNotModified {
		t.Errorf("expected 304, got %d", rec.Code)
	}
}

func TestHandler_GetDiagnosticReportFHIR_NotFound(t *testing.T) {
	h, e := newTestHandler()
	c, rec := jsonContext(e, http.MethodGet, "/", "")
	c.SetParamNames("id")
	c.SetParamValues("missing")
	if err := h.GetDiagnosticReportFHIR(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusNotFound || !strings.Contains(rec.Body.String(), "not-found") {
		t.Errorf("expected not-found outcome, got %d %s", rec.Code, rec.Body.String())
	}
}

func TestStatusFor_Default(t *testing.T) {
	if got := statusFor(context.DeadlineExceeded); got != http.StatusServiceUnavailable {
		t.Errorf("expected 503, got %d", got)
	}
	he := httpError(errTest("disk on fire"))
	if he.Code != http.StatusInternalServerError || he.Message != "internal error" {
		t.Errorf("expected opaque 500, got %d %v", he.Code, he.Message)
	}
}

type errTest string

func (e errTest) Error() string { return string(e) }

func mustJSON(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}
