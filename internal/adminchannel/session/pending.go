package session

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// DefaultPendingTTL is how long a proposal waits for confirmation.
const DefaultPendingTTL = 5 * time.Minute

// ActionType is the kind of proposed mutation.
type ActionType string

const (
	ActionCreate       ActionType = "confirm_create"
	ActionUpdate       ActionType = "confirm_update"
	ActionDelete       ActionType = "confirm_delete"
	ActionSelectOption ActionType = "select_option"
)

// EntityType is the business record a proposal targets.
type EntityType string

const (
	EntityService   EntityType = "service"
	EntityPrice     EntityType = "price"
	EntityHours     EntityType = "hours"
	EntityStaff     EntityType = "staff"
	EntityPromotion EntityType = "promotion"
)

// PendingAction is a proposed mutation awaiting explicit confirmation.
//
// ExpiresAt is kept as an RFC 3339 string because the action round-trips
// through conversation storage between turns; Expiry parses it back.
type PendingAction struct {
	ID         string         `json:"id"`
	Type       ActionType     `json:"type"`
	EntityType EntityType     `json:"entity_type"`
	Data       map[string]any `json:"data"`
	EntityID   string         `json:"entity_id,omitempty"`
	ExpiresAt  string         `json:"expires_at"`
	CreatedAt  time.Time      `json:"created_at"`
}

// NewPending creates a proposal expiring ttl after now. A non-positive ttl
// uses DefaultPendingTTL.
func NewPending(typ ActionType, entity EntityType, data map[string]any, entityID string, now time.Time, ttl time.Duration) *PendingAction {
	if ttl <= 0 {
		ttl = DefaultPendingTTL
	}
	if data == nil {
		data = map[string]any{}
	}
	return &PendingAction{
		ID:         uuid.NewString(),
		Type:       typ,
		EntityType: entity,
		Data:       data,
		EntityID:   entityID,
		ExpiresAt:  now.Add(ttl).UTC().Format(time.RFC3339Nano),
		CreatedAt:  now.UTC(),
	}
}

// Expiry parses ExpiresAt. The error wraps ErrInvalidExpiry.
func (p *PendingAction) Expiry() (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, p.ExpiresAt)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidExpiry, p.ExpiresAt)
	}
	return t, nil
}

// Check reports whether p may be confirmed at now: nil when now <= expiry,
// otherwise ErrNoPendingAction, ErrInvalidExpiry or ErrExpired.
func (p *PendingAction) Check(now time.Time) error {
	if p == nil {
		return ErrNoPendingAction
	}
	exp, err := p.Expiry()
	if err != nil {
		return err
	}
	if now.After(exp) {
		return fmt.Errorf("%w at %s", ErrExpired, p.ExpiresAt)
	}
	return nil
}

// String returns the data value under key as a string, or "".
func (p *PendingAction) String(key string) string {
	if p == nil || p.Data == nil {
		return ""
	}
	switch v := p.Data[key].(type) {
	case string:
		return v
	case fmt.Stringer:
		return v.String()
	}
	return ""
}

// Number returns the data value under key as a float64. JSON round trips
// turn every number into float64, but in-process proposals may carry ints.
func (p *PendingAction) Number(key string) (float64, bool) {
	if p == nil || p.Data == nil {
		return 0, false
	}
	switch v := p.Data[key].(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	}
	return 0, false
}

// ExecutedAction records one attempted confirmation.
type ExecutedAction struct {
	ID         string     `json:"id"`
	Type       ActionType `json:"type"`
	EntityType EntityType `json:"entity_type"`
	EntityID   string     `json:"entity_id,omitempty"`
	Success    bool       `json:"success"`
	Error      string     `json:"error,omitempty"`
	ExecutedAt time.Time  `json:"executed_at"`
}

// Executed builds the record for an attempt on p.
func Executed(p *PendingAction, entityID string, err error, now time.Time) ExecutedAction {
	a := ExecutedAction{
		ID:         uuid.NewString(),
		Type:       p.Type,
		EntityType: p.EntityType,
		EntityID:   entityID,
		Success:    err == nil,
		ExecutedAt: now.UTC(),
	}
	if a.EntityID == "" {
		a.EntityID = p.EntityID
	}
	if err != nil {
		a.Error = err.Error()
	}
	return a
}
