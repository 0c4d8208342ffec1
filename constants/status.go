package constants

import "strings"

// VerificationStatus is the canonical verification state of an order.
type VerificationStatus string

// Stable values (store these exact strings in DB).
const (
	StatusPending  VerificationStatus = "PENDING"  // initial, awaiting human check
	StatusVerified VerificationStatus = "VERIFIED" // terminal
	StatusMismatch VerificationStatus = "MISMATCH" // can be rescanned back to PENDING
)

var allStatuses = []VerificationStatus{StatusPending, StatusVerified, StatusMismatch}

// ParseVerificationStatus accepts the stored form as well as lowercase labels ("pending").
func ParseVerificationStatus(s string) (VerificationStatus, bool) {
	normalized := strings.ToUpper(strings.TrimSpace(s))
	for _, st := range allStatuses {
		if string(st) == normalized {
			return st, true
		}
	}
	return "", false
}

// Label is the lowercase form used in user-facing output.
func (s VerificationStatus) Label() string {
	return strings.ToLower(string(s))
}

// JobStatus is the status of a batch scan job in the processor queue.
type JobStatus string

const (
	JobStatusQueued  JobStatus = "QUEUED"
	JobStatusRunning JobStatus = "RUNNING"
	JobStatusOCROK   JobStatus = "OCR_OK" // stage 1 completed (text extracted)
	JobStatusLLMOK   JobStatus = "LLM_OK" // stage 2 completed (draft extracted)
	JobStatusFailed  JobStatus = "FAILED"
)
