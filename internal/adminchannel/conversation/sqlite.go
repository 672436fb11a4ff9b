package conversation

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/fernandofuc/tistis-platform-sub010/internal/adminchannel/session"
)

// sqliteStore uses the conversations table of the application database.
// The connection is owned by the business store, so Close is a no-op.
type sqliteStore struct {
	db *sql.DB
}

func (s *sqliteStore) LoadRecentHistory(ctx context.Context, id string, limit int) ([]session.HistoryEntry, error) {
	return recentHistory(ctx, s, id, limit)
}

func (s *sqliteStore) Load(ctx context.Context, id string) (*Snapshot, error) {
	var raw string
	var version int64
	err := s.db.QueryRowContext(ctx,
		"SELECT snapshot_json, version FROM conversations WHERE id = ?", id,
	).Scan(&raw, &version)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load conversation %s: %w", id, err)
	}
	snap, err := decode([]byte(raw))
	if err != nil {
		return nil, fmt.Errorf("decode conversation %s: %w", id, err)
	}
	snap.Version = version
	return snap, nil
}

func (s *sqliteStore) Persist(ctx context.Context, id string, snap Snapshot) error {
	now := time.Now().UTC()
	snap.ConversationID = id
	snap.UpdatedAt = now
	next := snap.Version + 1
	snap.Version = next
	b, err := encode(snap)
	if err != nil {
		return err
	}

	var res sql.Result
	if next == 1 {
		res, err = s.db.ExecContext(ctx, `
			INSERT INTO conversations (id, tenant_id, snapshot_json, version, updated_at)
			VALUES (?, ?, ?, 1, ?)
			ON CONFLICT (id) DO NOTHING
		`, id, snap.TenantID, string(b), now.Format(time.RFC3339Nano))
	} else {
		res, err = s.db.ExecContext(ctx, `
			UPDATE conversations SET snapshot_json = ?, version = ?, updated_at = ?
			WHERE id = ? AND version = ?
		`, string(b), next, now.Format(time.RFC3339Nano), id, next-1)
	}
	if err != nil {
		return fmt.Errorf("persist conversation %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("persist conversation %s: %w", id, err)
	}
	if n == 0 {
		return ErrVersionConflict
	}
	return nil
}

func (s *sqliteStore) Close() error { return nil }
