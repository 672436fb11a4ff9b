package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// GetNotificationPreferences returns the caller's preferences, or the
// defaults (not paused, daily summary on) when none were saved.
func (s *Store) GetNotificationPreferences(ctx context.Context, tenantID, userID string) (NotificationPreferences, error) {
	var p NotificationPreferences
	var types, updated string
	err := s.db.QueryRowContext(ctx, `
		SELECT paused, daily, types, updated_at FROM notification_preferences
		WHERE tenant_id = ? AND user_id = ?
	`, tenantID, userID).Scan(&p.Paused, &p.Daily, &types, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return NotificationPreferences{Daily: true, Types: []string{}}, nil
	}
	if err != nil {
		return NotificationPreferences{}, fmt.Errorf("query notification preferences: %w", err)
	}
	if err := json.Unmarshal([]byte(types), &p.Types); err != nil {
		p.Types = []string{}
	}
	p.UpdatedAt = parseTime(updated)
	return p, nil
}

func (s *Store) SetNotificationsPaused(ctx context.Context, tenantID, userID string, paused bool) (Result, error) {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO notification_preferences (tenant_id, user_id, paused, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (tenant_id, user_id) DO UPDATE SET
			paused = excluded.paused,
			updated_at = excluded.updated_at
	`, tenantID, userID, boolInt(paused), formatTime(s.now()))
	if err != nil {
		return Result{}, fmt.Errorf("set notifications paused: %w", err)
	}
	return ok(userID, map[string]any{"paused": paused}), nil
}

// ListRecipients returns every operator with saved preferences for the
// tenant, paused ones included; callers decide whether to skip them.
func (s *Store) ListRecipients(ctx context.Context, tenantID string) ([]Recipient, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT user_id, channel, address, paused FROM notification_preferences
		WHERE tenant_id = ? ORDER BY user_id
	`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("query recipients: %w", err)
	}
	defer rows.Close()

	var out []Recipient
	for rows.Next() {
		var r Recipient
		if err := rows.Scan(&r.UserID, &r.Channel, &r.Address, &r.Paused); err != nil {
			return nil, fmt.Errorf("scan recipient: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// SaveRecipient registers or updates an operator's delivery address.
func (s *Store) SaveRecipient(ctx context.Context, tenantID string, r Recipient) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO notification_preferences (tenant_id, user_id, channel, address, paused, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (tenant_id, user_id) DO UPDATE SET
			channel = excluded.channel,
			address = excluded.address,
			updated_at = excluded.updated_at
	`, tenantID, r.UserID, r.Channel, r.Address, boolInt(r.Paused), formatTime(s.now()))
	if err != nil {
		return fmt.Errorf("save recipient %s: %w", r.UserID, err)
	}
	return nil
}

func (s *Store) CreateNotification(ctx context.Context, n Notification) (Result, error) {
	if n.UserID == "" || n.Title == "" {
		return failed("notificación incompleta"), nil
	}
	id := uuid.NewString()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO notifications (id, tenant_id, user_id, type, title, body, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, id, n.TenantID, n.UserID, n.Type, n.Title, n.Body, formatTime(s.now()))
	if err != nil {
		return Result{}, fmt.Errorf("insert notification: %w", err)
	}
	return ok(id, nil), nil
}
