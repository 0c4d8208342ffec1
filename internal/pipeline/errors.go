package pipeline

import (
	"errors"
	"fmt"
)

// ErrorKind classifies why an extraction failed.
type ErrorKind string

const (
	KindOCRFailure        ErrorKind = "ocr-failure"
	KindBackendFailure    ErrorKind = "backend-failure"
	KindEmptyResponse     ErrorKind = "empty-response"
	KindMalformedResponse ErrorKind = "malformed-response"
	KindSchemaMismatch    ErrorKind = "schema-mismatch"
	KindValidationFailed  ErrorKind = "validation-failed"
)

// One sentinel per kind so callers can use errors.Is.
var (
	ErrOCRFailure        = errors.New("pipeline: ocr failure")
	ErrBackendFailure    = errors.New("pipeline: backend failure")
	ErrEmptyResponse     = errors.New("pipeline: empty response")
	ErrMalformedResponse = errors.New("pipeline: malformed response")
	ErrSchemaMismatch    = errors.New("pipeline: schema mismatch")
	ErrValidationFailed  = errors.New("pipeline: validation failed")
)

var kindSentinels = map[ErrorKind]error{
	KindOCRFailure:        ErrOCRFailure,
	KindBackendFailure:    ErrBackendFailure,
	KindEmptyResponse:     ErrEmptyResponse,
	KindMalformedResponse: ErrMalformedResponse,
	KindSchemaMismatch:    ErrSchemaMismatch,
	KindValidationFailed:  ErrValidationFailed,
}

// Stage names used in ExtractionError.
const (
	StageOCR      = "ocr"
	StageBackend  = "backend"
	StageParse    = "parse"
	StageValidate = "validate"
)

// ExtractionError is returned for every pipeline failure. It unwraps to the
// kind's sentinel and to the underlying cause.
type ExtractionError struct {
	Kind  ErrorKind
	Stage string
	Err   error
}

func (e *ExtractionError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("extraction failed at %s: %s", e.Stage, e.Kind)
	}
	return fmt.Sprintf("extraction failed at %s: %s: %v", e.Stage, e.Kind, e.Err)
}

func (e *ExtractionError) Unwrap() []error {
	errs := make([]error, 0, 2)
	if s, ok := kindSentinels[e.Kind]; ok {
		errs = append(errs, s)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

func newError(kind ErrorKind, stage string, err error) *ExtractionError {
	return &ExtractionError{Kind: kind, Stage: stage, Err: err}
}

// KindOf reports the ErrorKind carried by err, if any.
func KindOf(err error) (ErrorKind, bool) {
	var xerr *ExtractionError
	if errors.As(err, &xerr) {
		return xerr.Kind, true
	}
	return "", false
}
