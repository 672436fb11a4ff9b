package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// AuditEntry is one row of the audit trail.
type AuditEntry struct {
	ID           int64          `json:"id"`
	Timestamp    time.Time      `json:"ts"`
	TraceID      string         `json:"trace_id"`
	TenantID     string         `json:"tenant_id"`
	Actor        string         `json:"actor"`
	Action       string         `json:"action"`
	Target       string         `json:"target,omitempty"`
	Payload      map[string]any `json:"payload,omitempty"`
	Result       string         `json:"result"`
	ErrorMessage string         `json:"error,omitempty"`
}

// AuditPayload is free-form structured context for an audit row.
type AuditPayload map[string]any

// WriteAudit appends an audit row.
func (s *Store) WriteAudit(ctx context.Context, traceID, tenantID, actor, action, target, result string, payload AuditPayload, errorMsg string) error {
	var payloadJSON sql.NullString
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal audit payload: %w", err)
		}
		payloadJSON = sql.NullString{String: string(b), Valid: true}
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_log (ts, trace_id, tenant_id, actor, action, target, payload_json, result, error_message)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, formatTime(s.now()), traceID, tenantID, actor, action, nullString(target), payloadJSON, result, nullString(errorMsg))
	if err != nil {
		return fmt.Errorf("write audit log: %w", err)
	}
	return nil
}

// GetAuditLog returns the newest entries first. An empty tenantID lists all
// tenants.
func (s *Store) GetAuditLog(ctx context.Context, tenantID string, limit int) ([]AuditEntry, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, ts, trace_id, tenant_id, actor, action, target, payload_json, result, error_message
		FROM audit_log
		WHERE (? = '' OR tenant_id = ?)
		ORDER BY id DESC
		LIMIT ?
	`, tenantID, tenantID, limit)
	if err != nil {
		return nil, fmt.Errorf("query audit log: %w", err)
	}
	defer rows.Close()

	var out []AuditEntry
	for rows.Next() {
		var e AuditEntry
		var ts string
		var target, payload, errMsg sql.NullString
		if err := rows.Scan(&e.ID, &ts, &e.TraceID, &e.TenantID, &e.Actor, &e.Action, &target, &payload, &e.Result, &errMsg); err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}
		e.Timestamp = parseTime(ts)
		e.Target = target.String
		e.ErrorMessage = errMsg.String
		if payload.Valid {
			_ = json.Unmarshal([]byte(payload.String), &e.Payload)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
