// Package model defines the one-token-per-step forward contract of the
// on-device causal model and ships a small recurrent implementation of it.
package model

import (
	"context"
	"errors"
)

var (
	ErrTokenOutOfRange  = errors.New("model: token id out of range")
	ErrContextExceeded  = errors.New("model: context length exceeded")
	ErrPositionMismatch = errors.New("model: position out of sequence")
	ErrBadWeights       = errors.New("model: malformed weights")
)

// StepInput is a single forward step: one token at its absolute position plus
// the attention mask entry for it (1 = attend, 0 = padding).
type StepInput struct {
	TokenID  int32
	Position int
	Mask     []int32
}

// Session carries the per-request state (hidden state, cache) across steps.
// A session is owned by one generation and is not safe for concurrent use.
type Session interface {
	// Forward consumes one token and returns the logits for the next token.
	Forward(ctx context.Context, in StepInput) ([]float32, error)
}

// Model holds the read-only weights shared by every session.
type Model interface {
	NewSession() (Session, error)
	VocabSize() int
}
