// Package conversation persists the pieces of session state that outlive a
// turn: the history window, the pending action and the executed-action log.
package conversation

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/fernandofuc/tistis-platform-sub010/internal/adminchannel/session"
)

var (
	// ErrVersionConflict means another turn persisted the conversation after
	// this one loaded it.
	ErrVersionConflict = errors.New("conversation: version conflict")
	ErrInvalidConfig   = errors.New("conversation: invalid store configuration")
	ErrUnknownDriver   = errors.New("conversation: unknown driver")
)

// Snapshot is what survives between turns. UserID records the caller that
// opened the conversation.
type Snapshot struct {
	ConversationID string                   `json:"conversation_id"`
	TenantID       string                   `json:"tenant_id"`
	UserID         string                   `json:"user_id,omitempty"`
	History        []session.HistoryEntry   `json:"history"`
	Pending        *session.PendingAction   `json:"pending,omitempty"`
	Executed       []session.ExecutedAction `json:"executed"`
	// Version is the stored revision the snapshot was loaded at; 0 for a
	// conversation that has never been persisted. Persist bumps it.
	Version   int64     `json:"version"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Store loads and saves conversation snapshots.
type Store interface {
	// LoadRecentHistory returns up to limit of the newest history entries,
	// oldest first. Unknown conversations yield an empty slice.
	LoadRecentHistory(ctx context.Context, conversationID string, limit int) ([]session.HistoryEntry, error)
	// Load returns nil, nil for unknown conversations.
	Load(ctx context.Context, conversationID string) (*Snapshot, error)
	// Persist saves snap, failing with ErrVersionConflict when the stored
	// version differs from snap.Version.
	Persist(ctx context.Context, conversationID string, snap Snapshot) error
	Close() error
}

// FromState extracts the persistent part of s.
func FromState(conversationID string, version int64, s session.State) Snapshot {
	return Snapshot{
		ConversationID: conversationID,
		TenantID:       s.Caller.TenantID,
		UserID:         s.Caller.UserID,
		History:        s.History,
		Pending:        s.Pending,
		Executed:       s.Executed,
		Version:        version,
	}
}

func recentHistory(ctx context.Context, s Store, id string, limit int) ([]session.HistoryEntry, error) {
	snap, err := s.Load(ctx, id)
	if err != nil || snap == nil {
		return []session.HistoryEntry{}, err
	}
	h := snap.History
	if limit > 0 && len(h) > limit {
		h = h[len(h)-limit:]
	}
	return h, nil
}

func encode(snap Snapshot) ([]byte, error) {
	return json.Marshal(snap)
}

func decode(b []byte) (*Snapshot, error) {
	var snap Snapshot
	if err := json.Unmarshal(b, &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}
