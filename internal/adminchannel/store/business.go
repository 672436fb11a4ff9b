package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"

	"github.com/google/uuid"
)

const (
	msgServiceNotFound   = "servicio no encontrado"
	msgServiceExists     = "ya existe un servicio con ese nombre"
	msgStaffNotFound     = "empleado no encontrado"
	msgPromotionNotFound = "promoción no encontrada"
)

// ---------------------------------------------------------------------------
// Services
// ---------------------------------------------------------------------------

// UpsertService creates svc when ID is empty, otherwise updates it.
func (s *Store) UpsertService(ctx context.Context, tenantID string, svc Service) (Result, error) {
	now := formatTime(s.now())

	if svc.ID == "" {
		var existing string
		err := s.db.QueryRowContext(ctx,
			"SELECT id FROM services WHERE tenant_id = ? AND name = ? COLLATE NOCASE",
			tenantID, svc.Name,
		).Scan(&existing)
		switch {
		case err == nil:
			return failed(msgServiceExists), nil
		case !errors.Is(err, sql.ErrNoRows):
			return Result{}, fmt.Errorf("look up service %q: %w", svc.Name, err)
		}

		svc.ID = uuid.NewString()
		svc.Active = true
		_, err = s.db.ExecContext(ctx, `
			INSERT INTO services (id, tenant_id, name, price, duration_minutes, active, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, 1, ?, ?)
		`, svc.ID, tenantID, svc.Name, svc.Price, svc.DurationMinutes, now, now)
		if err != nil {
			return Result{}, fmt.Errorf("insert service: %w", err)
		}
		return ok(svc.ID, svc), nil
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE services SET name = ?, price = ?, duration_minutes = ?, active = ?, updated_at = ?
		WHERE id = ? AND tenant_id = ?
	`, svc.Name, svc.Price, svc.DurationMinutes, boolInt(svc.Active), now, svc.ID, tenantID)
	if err != nil {
		return Result{}, fmt.Errorf("update service %s: %w", svc.ID, err)
	}
	return affected(res, svc.ID, svc, msgServiceNotFound)
}

func (s *Store) DeleteService(ctx context.Context, tenantID, id string) (Result, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM services WHERE id = ? AND tenant_id = ?", id, tenantID)
	if err != nil {
		return Result{}, fmt.Errorf("delete service %s: %w", id, err)
	}
	return affected(res, id, nil, msgServiceNotFound)
}

// GetServices lists the tenant's active services by name.
func (s *Store) GetServices(ctx context.Context, tenantID string) ([]Service, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, price, duration_minutes, active, updated_at
		FROM services WHERE tenant_id = ? AND active = 1
		ORDER BY name COLLATE NOCASE
	`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("query services: %w", err)
	}
	defer rows.Close()

	var out []Service
	for rows.Next() {
		var svc Service
		var updated string
		if err := rows.Scan(&svc.ID, &svc.Name, &svc.Price, &svc.DurationMinutes, &svc.Active, &updated); err != nil {
			return nil, fmt.Errorf("scan service: %w", err)
		}
		svc.UpdatedAt = parseTime(updated)
		out = append(out, svc)
	}
	return out, rows.Err()
}

// UpdatePriceByName sets the price of the active service called name
// (case-insensitive).
func (s *Store) UpdatePriceByName(ctx context.Context, tenantID, name string, price float64) (Result, error) {
	var id string
	err := s.db.QueryRowContext(ctx,
		"SELECT id FROM services WHERE tenant_id = ? AND name = ? COLLATE NOCASE AND active = 1",
		tenantID, name,
	).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return failed(msgServiceNotFound), nil
	}
	if err != nil {
		return Result{}, fmt.Errorf("look up service %q: %w", name, err)
	}

	if _, err := s.db.ExecContext(ctx,
		"UPDATE services SET price = ?, updated_at = ? WHERE id = ?",
		price, formatTime(s.now()), id,
	); err != nil {
		return Result{}, fmt.Errorf("update price of %s: %w", id, err)
	}
	return ok(id, map[string]any{"name": name, "price": price}), nil
}

// ---------------------------------------------------------------------------
// Business hours
// ---------------------------------------------------------------------------

func (s *Store) UpsertHours(ctx context.Context, tenantID string, h Hours) (Result, error) {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO business_hours (tenant_id, day, open_time, close_time, closed, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (tenant_id, day) DO UPDATE SET
			open_time = excluded.open_time,
			close_time = excluded.close_time,
			closed = excluded.closed,
			updated_at = excluded.updated_at
	`, tenantID, h.Day, h.Open, h.Close, boolInt(h.Closed), formatTime(s.now()))
	if err != nil {
		return Result{}, fmt.Errorf("upsert hours for day %d: %w", h.Day, err)
	}
	return ok(strconv.Itoa(h.Day), h), nil
}

// GetHours returns the configured days ordered Sunday first.
func (s *Store) GetHours(ctx context.Context, tenantID string) ([]Hours, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT day, open_time, close_time, closed FROM business_hours
		WHERE tenant_id = ? ORDER BY day
	`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("query hours: %w", err)
	}
	defer rows.Close()

	var out []Hours
	for rows.Next() {
		var h Hours
		if err := rows.Scan(&h.Day, &h.Open, &h.Close, &h.Closed); err != nil {
			return nil, fmt.Errorf("scan hours: %w", err)
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

// ---------------------------------------------------------------------------
// Staff
// ---------------------------------------------------------------------------

func (s *Store) UpsertStaff(ctx context.Context, tenantID string, m StaffMember) (Result, error) {
	now := formatTime(s.now())
	if m.ID == "" {
		m.ID = uuid.NewString()
		m.Active = true
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO staff (id, tenant_id, name, role, active, created_at, updated_at)
			VALUES (?, ?, ?, ?, 1, ?, ?)
		`, m.ID, tenantID, m.Name, m.Role, now, now)
		if err != nil {
			return Result{}, fmt.Errorf("insert staff: %w", err)
		}
		return ok(m.ID, m), nil
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE staff SET name = ?, role = ?, active = ?, updated_at = ?
		WHERE id = ? AND tenant_id = ?
	`, m.Name, m.Role, boolInt(m.Active), now, m.ID, tenantID)
	if err != nil {
		return Result{}, fmt.Errorf("update staff %s: %w", m.ID, err)
	}
	return affected(res, m.ID, m, msgStaffNotFound)
}

func (s *Store) DeleteStaff(ctx context.Context, tenantID, id string) (Result, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM staff WHERE id = ? AND tenant_id = ?", id, tenantID)
	if err != nil {
		return Result{}, fmt.Errorf("delete staff %s: %w", id, err)
	}
	return affected(res, id, nil, msgStaffNotFound)
}

func (s *Store) GetStaff(ctx context.Context, tenantID string) ([]StaffMember, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, role, active FROM staff
		WHERE tenant_id = ? AND active = 1 ORDER BY name COLLATE NOCASE
	`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("query staff: %w", err)
	}
	defer rows.Close()

	var out []StaffMember
	for rows.Next() {
		var m StaffMember
		if err := rows.Scan(&m.ID, &m.Name, &m.Role, &m.Active); err != nil {
			return nil, fmt.Errorf("scan staff: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// ---------------------------------------------------------------------------
// Promotions
// ---------------------------------------------------------------------------

func (s *Store) UpsertPromotion(ctx context.Context, tenantID string, p Promotion) (Result, error) {
	now := formatTime(s.now())
	starts, ends := nullTime(p.StartsAt), nullTime(p.EndsAt)

	if p.ID == "" {
		p.ID = uuid.NewString()
		p.Active = true
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO promotions (id, tenant_id, title, discount_type, discount_value, active, starts_at, ends_at, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, 1, ?, ?, ?, ?)
		`, p.ID, tenantID, p.Title, p.DiscountType, p.DiscountValue, starts, ends, now, now)
		if err != nil {
			return Result{}, fmt.Errorf("insert promotion: %w", err)
		}
		return ok(p.ID, p), nil
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE promotions SET title = ?, discount_type = ?, discount_value = ?, active = ?,
			starts_at = ?, ends_at = ?, updated_at = ?
		WHERE id = ? AND tenant_id = ?
	`, p.Title, p.DiscountType, p.DiscountValue, boolInt(p.Active), starts, ends, now, p.ID, tenantID)
	if err != nil {
		return Result{}, fmt.Errorf("update promotion %s: %w", p.ID, err)
	}
	return affected(res, p.ID, p, msgPromotionNotFound)
}

func (s *Store) DeletePromotion(ctx context.Context, tenantID, id string) (Result, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM promotions WHERE id = ? AND tenant_id = ?", id, tenantID)
	if err != nil {
		return Result{}, fmt.Errorf("delete promotion %s: %w", id, err)
	}
	return affected(res, id, nil, msgPromotionNotFound)
}

// GetActivePromotions lists promotions that are enabled and inside their
// date window right now.
func (s *Store) GetActivePromotions(ctx context.Context, tenantID string) ([]Promotion, error) {
	now := formatTime(s.now())
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, title, discount_type, discount_value, starts_at, ends_at
		FROM promotions
		WHERE tenant_id = ? AND active = 1
		  AND (starts_at IS NULL OR starts_at <= ?)
		  AND (ends_at IS NULL OR ends_at > ?)
		ORDER BY title COLLATE NOCASE
	`, tenantID, now, now)
	if err != nil {
		return nil, fmt.Errorf("query promotions: %w", err)
	}
	defer rows.Close()

	var out []Promotion
	for rows.Next() {
		p := Promotion{Active: true}
		var starts, ends sql.NullString
		if err := rows.Scan(&p.ID, &p.Title, &p.DiscountType, &p.DiscountValue, &starts, &ends); err != nil {
			return nil, fmt.Errorf("scan promotion: %w", err)
		}
		p.StartsAt, p.EndsAt = timePtr(starts), timePtr(ends)
		out = append(out, p)
	}
	return out, rows.Err()
}

func affected(res sql.Result, id string, data any, notFound string) (Result, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return Result{}, fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return failed(notFound), nil
	}
	return ok(id, data), nil
}
