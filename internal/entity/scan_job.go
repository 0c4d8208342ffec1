package entity

import (
	"time"

	"github.com/google/uuid"
)

// ScanJob records one batch scan of a receipt image file.
type ScanJob struct {
	ID           uuid.UUID  `json:"id"`
	SourcePath   string     `json:"source_path"`
	Status       string     `json:"status"`
	OrderID      *uuid.UUID `json:"order_id,omitempty"`
	Backend      string     `json:"backend,omitempty"`
	OCRText      *string    `json:"ocr_text,omitempty"`
	ErrorKind    *string    `json:"error_kind,omitempty"`
	ErrorMessage *string    `json:"error_message,omitempty"`
	StartedAt    time.Time  `json:"started_at"`
	FinishedAt   *time.Time `json:"finished_at,omitempty"`
}
