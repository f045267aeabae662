package records

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/medscan/medscan/internal/extract"
	"github.com/medscan/medscan/internal/ocrspace"
	"github.com/medscan/medscan/internal/platform/auth"
	"github.com/medscan/medscan/internal/platform/fhir"
	"github.com/medscan/medscan/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group, fhirGroup *echo.Group) {
	anyRole := auth.RequireRole(auth.RoleAdmin, auth.RolePhysician, auth.RoleNurse, auth.RolePatient)

	// Extraction endpoints store nothing
	extractGroup := api.Group("/extract", anyRole)
	extractGroup.POST("", h.Extract)
	extractGroup.POST("/batch", h.ExtractBatch)
	extractGroup.POST("/ocr", h.ExtractOCR)

	readGroup := api.Group("", anyRole)
	readGroup.GET("/records", h.ListRecords)
	readGroup.GET("/records/:id", h.GetRecord)

	writeGroup := api.Group("", anyRole)
	writeGroup.POST("/records", h.CreateRecord)
	writeGroup.POST("/records/ocr", h.CreateRecordFromOCR)

	deleteGroup := api.Group("", auth.RequireRole(auth.RoleAdmin, auth.RolePhysician))
	deleteGroup.DELETE("/records/:id", h.DeleteRecord)

	fhirRead := fhirGroup.Group("", anyRole)
	fhirRead.GET("/DiagnosticReport", h.SearchDiagnosticReportsFHIR)
	fhirRead.POST("/DiagnosticReport/_search", h.SearchDiagnosticReportsFHIR)
	fhirRead.GET("/DiagnosticReport/:id", h.GetDiagnosticReportFHIR)
}

// statusFor maps service and OCR errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrTextTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, ErrEmptyText), errors.Is(err, ErrInvalidSource),
		errors.Is(err, ErrEmptyBatch), errors.Is(err, ErrBatchTooLarge),
		errors.Is(err, ocrspace.ErrMalformedResponse):
		return http.StatusBadRequest
	case errors.Is(err, ocrspace.ErrOCRFailed):
		return http.StatusUnprocessableEntity
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func httpError(err error) *echo.HTTPError {
	code := statusFor(err)
	if code == http.StatusInternalServerError {
		return echo.NewHTTPError(code, "internal error").SetInternal(err)
	}
	return echo.NewHTTPError(code, err.Error())
}

// patientScope returns the patient a patient-only caller is confined to, or
// nil for staff.
func patientScope(c echo.Context) (*uuid.UUID, error) {
	ctx := c.Request().Context()
	if !auth.PatientOnly(auth.RolesFromContext(ctx)) {
		return nil, nil
	}
	pid, err := uuid.Parse(auth.PatientIDFromContext(ctx))
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusForbidden, "patient context required")
	}
	return &pid, nil
}

// visible hides another patient's record from a patient-only caller.
func visible(rec *MedicalRecord, scope *uuid.UUID) bool {
	if scope == nil {
		return true
	}
	return rec.PatientID != nil && *rec.PatientID == *scope
}

// -- Extraction Handlers --

type extractRequest struct {
	Text string `json:"text"`
}

type batchRequest struct {
	Texts []string `json:"texts"`
}

type batchResponse struct {
	Results []*extract.MedicalData `json:"results"`
}

func (h *Handler) Extract(c echo.Context) error {
	var req extractRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	d, err := h.svc.Extract(c.Request().Context(), req.Text)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, d)
}

func (h *Handler) ExtractBatch(c echo.Context) error {
	var req batchRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	results, err := h.svc.ExtractBatch(c.Request().Context(), req.Texts)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, batchResponse{Results: results})
}

func (h *Handler) ExtractOCR(c echo.Context) error {
	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "failed to read request body")
	}
	out, err := h.svc.ExtractOCRResponse(c.Request().Context(), body)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, out)
}

// -- Record Handlers --

func (h *Handler) CreateRecord(c echo.Context) error {
	var req CreateRecordRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	scope, err := patientScope(c)
	if err != nil {
		return err
	}
	if scope != nil {
		req.PatientID = scope
	}
	rec, err := h.svc.CreateRecord(c.Request().Context(), req)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, rec)
}

func (h *Handler) CreateRecordFromOCR(c echo.Context) error {
	patientID, err := queryPatient(c)
	if err != nil {
		return err
	}
	scope, err := patientScope(c)
	if err != nil {
		return err
	}
	if scope != nil {
		patientID = scope
	}
	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "failed to read request body")
	}
	rec, err := h.svc.CreateRecordFromOCR(c.Request().Context(), body, patientID)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, rec)
}

func (h *Handler) GetRecord(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	scope, err := patientScope(c)
	if err != nil {
		return err
	}
	rec, err := h.svc.GetRecord(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	if !visible(rec, scope) {
		return echo.NewHTTPError(http.StatusNotFound, ErrNotFound.Error())
	}
	return c.JSON(http.StatusOK, rec)
}

func (h *Handler) ListRecords(c echo.Context) error {
	pg := pagination.FromContext(c)
	f, err := listFilter(c, "patient_id", "category")
	if err != nil {
		return err
	}
	items, total, err := h.svc.ListRecords(c.Request().Context(), f, pg.Limit, pg.Offset)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) DeleteRecord(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	if err := h.svc.DeleteRecord(c.Request().Context(), id); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func queryPatient(c echo.Context) (*uuid.UUID, error) {
	raw := c.QueryParam("patient_id")
	if raw == "" {
		return nil, nil
	}
	pid, err := uuid.Parse(raw)
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusBadRequest, "invalid patient_id")
	}
	return &pid, nil
}

// listFilter reads the patient and category query parameters. The patient
// may be a bare id or a Patient/<id> reference. A patient-only caller always
// gets their own patient filter.
func listFilter(c echo.Context, patientParam, categoryParam string) (ListFilter, error) {
	var f ListFilter
	if raw := c.QueryParam(patientParam); raw != "" {
		pid, err := uuid.Parse(strings.TrimPrefix(raw, "Patient/"))
		if err != nil {
			return f, echo.NewHTTPError(http.StatusBadRequest, "invalid "+patientParam)
		}
		f.PatientID = &pid
	}
	if cat := c.QueryParam(categoryParam); cat != "" {
		if !extract.Category(cat).Valid() {
			return f, echo.NewHTTPError(http.StatusBadRequest, "invalid "+categoryParam)
		}
		f.Category = cat
	}
	scope, err := patientScope(c)
	if err != nil {
		return f, err
	}
	if scope != nil {
		f.PatientID = scope
	}
	return f, nil
}

// -- FHIR Handlers --

func (h *Handler) SearchDiagnosticReportsFHIR(c echo.Context) error {
	pg := pagination.FromContext(c)
	f, err := listFilter(c, "patient", "category")
	if err != nil {
		var he *echo.HTTPError
		if errors.As(err, &he) {
			return c.JSON(he.Code, fhir.InvalidOutcome(fmt.Sprint(he.Message)))
		}
		return err
	}
	items, total, err := h.svc.ListRecords(c.Request().Context(), f, pg.Limit, pg.Offset)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, fhir.ErrorOutcome(err.Error()))
	}
	resources := make([]map[string]interface{}, len(items))
	for i, item := range items {
		resources[i] = item.ToFHIR()
	}
	bundle, err := fhir.NewSearchBundle(resources, fhir.SearchParams{
		BaseURL: "/fhir/DiagnosticReport",
		Query:   c.QueryParams(),
		Count:   pg.Limit,
		Offset:  pg.Offset,
		Total:   total,
	})
	if err != nil {
		return c.JSON(http.StatusInternalServerError, fhir.ErrorOutcome(err.Error()))
	}
	return c.JSON(http.StatusOK, bundle)
}

func (h *Handler) GetDiagnosticReportFHIR(c echo.Context) error {
	scope, err := patientScope(c)
	if err != nil {
		return c.JSON(http.StatusForbidden, fhir.NewOperationOutcome("error", "forbidden", "patient context required"))
	}
	rec, err := h.svc.GetRecordByFHIRID(c.Request().Context(), c.Param("id"))
	if err != nil || !visible(rec, scope) {
		if err == nil || errors.Is(err, ErrNotFound) {
			return c.JSON(http.StatusNotFound, fhir.NotFoundOutcome("DiagnosticReport", c.Param("id")))
		}
		return c.JSON(http.StatusInternalServerError, fhir.ErrorOutcome(err.Error()))
	}
	fhir.SetVersionHeaders(c, rec.VersionID, rec.UpdatedAt)
	if fhir.NotModified(c, rec.VersionID) {
		return c.NoContent(http.StatusNotModified)
	}
	return c.JSON(http.StatusOK, rec.ToFHIR())
}
