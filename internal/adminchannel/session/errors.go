package session

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a failure that happened during a turn. None of them
// escape the turn; they are carried in State.Error for logging and for the
// help handler's degraded reply.
type ErrorKind string

const (
	KindValidation        ErrorKind = "validation"
	KindPermissionDenied  ErrorKind = "permission_denied"
	KindClassification    ErrorKind = "classification"
	KindPendingExpired    ErrorKind = "pending_expired"
	KindNoPendingAction   ErrorKind = "no_pending_action"
	KindInvalidExpiry     ErrorKind = "invalid_expiry"
	KindExternalOperation ErrorKind = "external_operation"
	KindLoopGuard         ErrorKind = "loop_guard"
)

// Confirmation protocol sentinels.
var (
	ErrNoPendingAction = errors.New("no pending action")
	ErrExpired         = errors.New("pending action expired")
	ErrInvalidExpiry   = errors.New("pending action has an invalid expiry")
)

// TurnError is the serialisable error carried on State.
type TurnError struct {
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
}

func (e *TurnError) Error() string { return fmt.Sprintf("%s: %s", e.Kind, e.Message) }

// NewError builds a TurnError from err.
func NewError(kind ErrorKind, err error) *TurnError {
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	return &TurnError{Kind: kind, Message: msg}
}

// KindOf maps the confirmation sentinels to their kinds, defaulting to
// KindExternalOperation.
func KindOf(err error) ErrorKind {
	switch {
	case errors.Is(err, ErrNoPendingAction):
		return KindNoPendingAction
	case errors.Is(err, ErrExpired):
		return KindPendingExpired
	case errors.Is(err, ErrInvalidExpiry):
		return KindInvalidExpiry
	}
	var te *TurnError
	if errors.As(err, &te) {
		return te.Kind
	}
	return KindExternalOperation
}
