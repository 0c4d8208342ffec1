package orders

import (
	"errors"
	"fmt"

	"github.com/joseph-ayodele/canteen-orders/constants"
)

// Trigger is an event that may move an order between verification states.
type Trigger string

const (
	TriggerConfirm Trigger = "confirm" // human confirms the receipt matches
	TriggerReject  Trigger = "reject"  // human flags a mismatch
	TriggerRescan  Trigger = "rescan"  // a successful rescan of a mismatched order
)

var ErrInvalidTransition = errors.New("orders: invalid status transition")

var transitions = map[constants.VerificationStatus]map[Trigger]constants.VerificationStatus{
	constants.StatusPending: {
		TriggerConfirm: constants.StatusVerified,
		TriggerReject:  constants.StatusMismatch,
	},
	constants.StatusMismatch: {
		TriggerRescan: constants.StatusPending,
	},
}

// Next returns the state reached from `from` on t. Verified is terminal and
// nothing but a human confirm ever reaches it.
func Next(from constants.VerificationStatus, t Trigger) (constants.VerificationStatus, error) {
	if to, ok := transitions[from][t]; ok {
		return to, nil
	}
	return from, fmt.Errorf("%w: %s on %s", ErrInvalidTransition, t, from.Label())
}
