// Package ocrspace decodes OCR.space parse responses into plain text ready for
// extraction. The HTTP call itself is made by the client application.
package ocrspace

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var (
	ErrOCRFailed         = errors.New("ocr failed")
	ErrMalformedResponse = errors.New("malformed ocr response")
)

const defaultFailureMessage = "failed to extract text from image"

// Exit codes reported in OCRExitCode and FileParseExitCode.
const (
	exitSuccess        = 1
	exitPartialSuccess = 2
)

const (
	fullConfidence    = 0.95
	partialConfidence = 0.75
)

// Response is the OCR.space /parse/image envelope.
type Response struct {
	ParsedResults         []ParsedResult `json:"ParsedResults"`
	OCRExitCode           int            `json:"OCRExitCode"`
	IsErroredOnProcessing bool           `json:"IsErroredOnProcessing"`
	ErrorMessage          Message        `json:"ErrorMessage"`
	ErrorDetails          string         `json:"ErrorDetails,omitempty"`
}

type ParsedResult struct {
	ParsedText        string  `json:"ParsedText"`
	FileParseExitCode int     `json:"FileParseExitCode"`
	ErrorMessage      Message `json:"ErrorMessage"`
	ErrorDetails      string  `json:"ErrorDetails,omitempty"`
}

// Message holds an ErrorMessage field, which the API sends either as a string
// or as an array of strings.
type Message string

func (m *Message) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*m = ""
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*m = Message(s)
		return nil
	}
	var parts []string
	if err := json.Unmarshal(data, &parts); err != nil {
		return fmt.Errorf("error message is neither string nor array: %w", err)
	}
	*m = Message(strings.Join(parts, "; "))
	return nil
}

// Result is the text recovered from a successful parse.
type Result struct {
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
	Partial    bool    `json:"partial"`
}

// Error reports a parse the provider could not complete.
type Error struct {
	ExitCode int
	Message  string
}

func (e *Error) Error() string {
	return fmt.Sprintf("ocr failed (exit code %d): %s", e.ExitCode, e.Message)
}

func (e *Error) Unwrap() error { return ErrOCRFailed }

// Parse decodes a raw OCR.space response body.
func Parse(body []byte) (*Result, error) {
	var resp Response
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	return resp.Result()
}

// Result returns the first page's text when the provider reported full or
// partial success, and an *Error otherwise.
func (r *Response) Result() (*Result, error) {
	if r.OCRExitCode == exitSuccess || r.OCRExitCode == exitPartialSuccess {
		if len(r.ParsedResults) > 0 {
			first := r.ParsedResults[0]
			if text := strings.TrimSpace(first.ParsedText); text != "" {
				confidence := partialConfidence
				if first.FileParseExitCode == exitSuccess {
					confidence = fullConfidence
				}
				return &Result{
					Text:       text,
					Confidence: confidence,
					Partial:    r.OCRExitCode == exitPartialSuccess,
				}, nil
			}
		}
	}
	return nil, &Error{ExitCode: r.OCRExitCode, Message: r.failureMessage()}
}

func (r *Response) failureMessage() string {
	if r.ErrorMessage != "" {
		return string(r.ErrorMessage)
	}
	if len(r.ParsedResults) > 0 && r.ParsedResults[0].ErrorMessage != "" {
		return string(r.ParsedResults[0].ErrorMessage)
	}
	return defaultFailureMessage
}
