package records

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/medscan/medscan/internal/extract"
	"github.com/medscan/medscan/internal/ocrspace"
)

var (
	ErrNotFound      = errors.New("record not found")
	ErrEmptyText     = errors.New("text is required")
	ErrTextTooLarge  = errors.New("text exceeds maximum size")
	ErrInvalidSource = errors.New("source must be ocr or manual")
	ErrEmptyBatch    = errors.New("batch must contain at least one text")
	ErrBatchTooLarge = errors.New("batch exceeds maximum size")
)

const (
	DefaultMaxTextBytes = 256 << 10
	DefaultWorkers      = 4
	DefaultMaxBatch     = 50
)

// Options tunes extraction limits. Zero fields take the defaults.
type Options struct {
	MaxTextBytes int
	Workers      int
	MaxBatch     int
	Extractor    *extract.Extractor
}

type Service struct {
	records   RecordRepository
	extractor *extract.Extractor
	maxText   int
	workers   int
	maxBatch  int
	logger    zerolog.Logger
}

func NewService(repo RecordRepository, opts Options, logger zerolog.Logger) *Service {
	s := &Service{
		records:   repo,
		extractor: opts.Extractor,
		maxText:   opts.MaxTextBytes,
		workers:   opts.Workers,
		maxBatch:  opts.MaxBatch,
		logger:    logger.With().Str("component", "records").Logger(),
	}
	if s.extractor == nil {
		s.extractor = extract.New()
	}
	if s.maxText <= 0 {
		s.maxText = DefaultMaxTextBytes
	}
	if s.workers <= 0 {
		s.workers = DefaultWorkers
	}
	if s.maxBatch <= 0 {
		s.maxBatch = DefaultMaxBatch
	}
	return s
}

func (s *Service) checkText(text string) error {
	if strings.TrimSpace(text) == "" {
		return ErrEmptyText
	}
	if len(text) > s.maxText {
		return fmt.Errorf("%w (%d > %d bytes)", ErrTextTooLarge, len(text), s.maxText)
	}
	return nil
}

// Extract runs the extractor over text without storing anything. Blank text
// still yields a result with the fallback title.
func (s *Service) Extract(ctx context.Context, text string) (*extract.MedicalData, error) {
	if len(text) > s.maxText {
		return nil, fmt.Errorf("%w (%d > %d bytes)", ErrTextTooLarge, len(text), s.maxText)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	d := s.extractor.Extract(text)
	s.logSummary(d, "extracted")
	return d, nil
}

// ExtractBatch extracts each text concurrently. Results keep the input order.
func (s *Service) ExtractBatch(ctx context.Context, texts []string) ([]*extract.MedicalData, error) {
	if len(texts) == 0 {
		return nil, ErrEmptyBatch
	}
	if len(texts) > s.maxBatch {
		return nil, fmt.Errorf("%w (%d > %d)", ErrBatchTooLarge, len(texts), s.maxBatch)
	}
	for i, t := range texts {
		if len(t) > s.maxText {
			return nil, fmt.Errorf("text %d: %w", i, ErrTextTooLarge)
		}
	}

	results := make([]*extract.MedicalData, len(texts))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for i, text := range texts {
		i, text := i, text
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = s.extractor.Extract(text)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	s.logger.Info().Int("documents", len(texts)).Msg("batch extracted")
	return results, nil
}

// OCRExtraction pairs the decoded OCR text with what was extracted from it.
type OCRExtraction struct {
	OCR  *ocrspace.Result     `json:"ocr"`
	Data *extract.MedicalData `json:"data"`
}

// ExtractOCRResponse decodes a raw OCR.space response body and extracts from
// the recognised text.
func (s *Service) ExtractOCRResponse(ctx context.Context, body []byte) (*OCRExtraction, error) {
	res, err := ocrspace.Parse(body)
	if err != nil {
		return nil, err
	}
	d, err := s.Extract(ctx, res.Text)
	if err != nil {
		return nil, err
	}
	return &OCRExtraction{OCR: res, Data: d}, nil
}

// CreateRecordRequest is the payload for storing a new document.
type CreateRecordRequest struct {
	Text          string     `json:"text"`
	Source        Source     `json:"source"`
	PatientID     *uuid.UUID `json:"patient_id,omitempty"`
	OCRConfidence *float64   `json:"ocr_confidence,omitempty"`
}

func (s *Service) CreateRecord(ctx context.Context, req CreateRecordRequest) (*MedicalRecord, error) {
	if err := s.checkText(req.Text); err != nil {
		return nil, err
	}
	if req.Source == "" {
		req.Source = SourceManual
	}
	if !req.Source.Valid() {
		return nil, ErrInvalidSource
	}

	rec := &MedicalRecord{
		PatientID: req.PatientID,
		Source:    req.Source,
		RawText:   req.Text,
	}
	if req.Source == SourceOCR {
		rec.OCRConfidence = req.OCRConfidence
	}
	rec.apply(s.extractor.Extract(req.Text))

	if err := s.records.Create(ctx, rec); err != nil {
		return nil, fmt.Errorf("create record: %w", err)
	}
	s.logger.Info().
		Str("record_id", rec.ID.String()).
		Str("source", string(rec.Source)).
		Str("category", string(rec.Category)).
		Int("values", len(rec.Values)).
		Int("findings", len(rec.Findings)).
		Msg("record created")
	return rec, nil
}

// CreateRecordFromOCR stores the text recognised in a raw OCR.space response,
// carrying over its confidence.
func (s *Service) CreateRecordFromOCR(ctx context.Context, body []byte, patientID *uuid.UUID) (*MedicalRecord, error) {
	res, err := ocrspace.Parse(body)
	if err != nil {
		return nil, err
	}
	conf := res.Confidence
	return s.CreateRecord(ctx, CreateRecordRequest{
		Text:          res.Text,
		Source:        SourceOCR,
		PatientID:     patientID,
		OCRConfidence: &conf,
	})
}

func (s *Service) GetRecord(ctx context.Context, id uuid.UUID) (*MedicalRecord, error) {
	return s.records.GetByID(ctx, id)
}

func (s *Service) GetRecordByFHIRID(ctx context.Context, fhirID string) (*MedicalRecord, error) {
	return s.records.GetByFHIRID(ctx, fhirID)
}

func (s *Service) ListRecords(ctx context.Context, f ListFilter, limit, offset int) ([]*MedicalRecord, int, error) {
	return s.records.List(ctx, f, limit, offset)
}

func (s *Service) DeleteRecord(ctx context.Context, id uuid.UUID) error {
	if err := s.records.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info().Str("record_id", id.String()).Msg("record deleted")
	return nil
}

// logSummary never logs document text, only which fields were found.
func (s *Service) logSummary(d *extract.MedicalData, msg string) {
	s.logger.Debug().
		Bool("date", d.Date != "").
		Bool("provider", d.Provider != "").
		Str("category", string(d.Category)).
		Int("values", len(d.Values)).
		Int("findings", len(d.Findings)).
		Msg(msg)
}
