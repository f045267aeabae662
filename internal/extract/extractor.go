// Package extract turns raw OCR text from a scanned medical document into a
// structured record. Extraction is a pure function of its input (plus the
// current year used to complete partial dates) and is safe for concurrent use.
package extract

import (
	"regexp"
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"
)

// Extractor runs the extraction pipeline. The zero value is not usable; build
// one with New.
type Extractor struct {
	now func() time.Time
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithClock overrides the clock used when a date lacks a year and when
// checking that a date falls inside the plausible record window.
func WithClock(now func() time.Time) Option {
	return func(x *Extractor) {
		if now != nil {
			x.now = now
		}
	}
}

// New creates an Extractor.
func New(opts ...Option) *Extractor {
	x := &Extractor{now: time.Now}
	for _, opt := range opts {
		opt(x)
	}
	return x
}

var defaultExtractor = New()

// Extract runs the default extractor over ocrText.
func Extract(ocrText string) *MedicalData {
	return defaultExtractor.Extract(ocrText)
}

// Extract never fails: a step that finds nothing leaves its field empty.
func (x *Extractor) Extract(ocrText string) *MedicalData {
	text := normalizeText(ocrText)
	lower := strings.ToLower(text)

	data := &MedicalData{}
	data.Title = detectTitle(text)
	data.Date = detectDate(text, x.now())
	data.Provider = detectProvider(text)
	data.Category = classify(lower)
	data.Values = extractLabValues(text)
	data.Findings = extractFindings(text)
	backfillTitle(data, lower)
	return data
}

var lineBreaks = strings.NewReplacer("\r\n", "\n", "\r", "\n")

// normalizeText folds compatibility characters (ligatures, full-width digits,
// non-breaking spaces) and unifies line endings.
func normalizeText(s string) string {
	return norm.NFKC.String(lineBreaks.Replace(s))
}

var whitespaceRun = regexp.MustCompile(`\s+`)

func collapseSpace(s string) string {
	return strings.TrimSpace(whitespaceRun.ReplaceAllString(s, " "))
}
