package store

import (
	"context"
	"fmt"
	"time"
)

// SalesSummary totals completed orders and completed appointments in range.
// Restaurants sell through orders and clinics through appointments; a
// tenant normally only has one of the two.
func (s *Store) SalesSummary(ctx context.Context, tenantID string, from, to time.Time) (SalesStats, error) {
	var st SalesStats
	err := s.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(amount), 0), COUNT(*) FROM (
			SELECT total AS amount FROM orders
			WHERE tenant_id = ? AND status = 'completed' AND created_at >= ? AND created_at < ?
			UNION ALL
			SELECT price AS amount FROM appointments
			WHERE tenant_id = ? AND status = 'completed' AND starts_at >= ? AND starts_at < ?
		)
	`, tenantID, formatTime(from), formatTime(to), tenantID, formatTime(from), formatTime(to)).Scan(&st.Total, &st.Count)
	if err != nil {
		return SalesStats{}, fmt.Errorf("sales summary: %w", err)
	}
	if st.Count > 0 {
		st.AvgTicket = st.Total / float64(st.Count)
	}
	return st, nil
}

func (s *Store) OrderSummary(ctx context.Context, tenantID string, from, to time.Time) (OrderStats, error) {
	var st OrderStats
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
			COALESCE(SUM(status IN ('pending', 'preparing')), 0),
			COALESCE(SUM(status = 'completed'), 0),
			COALESCE(SUM(status = 'cancelled'), 0)
		FROM orders WHERE tenant_id = ? AND created_at >= ? AND created_at < ?
	`, tenantID, formatTime(from), formatTime(to)).Scan(&st.Total, &st.Pending, &st.Completed, &st.Cancelled)
	if err != nil {
		return OrderStats{}, fmt.Errorf("order summary: %w", err)
	}
	return st, nil
}

func (s *Store) LeadSummary(ctx context.Context, tenantID string, from, to time.Time) (LeadStats, error) {
	var st LeadStats
	err := s.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(status = 'new'), 0),
			COALESCE(SUM(status = 'hot'), 0),
			COALESCE(SUM(status = 'converted'), 0)
		FROM leads WHERE tenant_id = ? AND created_at >= ? AND created_at < ?
	`, tenantID, formatTime(from), formatTime(to)).Scan(&st.New, &st.Hot, &st.Converted)
	if err != nil {
		return LeadStats{}, fmt.Errorf("lead summary: %w", err)
	}
	return st, nil
}

func (s *Store) AppointmentSummary(ctx context.Context, tenantID string, from, to time.Time) (AppointmentStats, error) {
	var st AppointmentStats
	err := s.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(status = 'scheduled'), 0),
			COALESCE(SUM(status = 'completed'), 0),
			COALESCE(SUM(status = 'no_show'), 0),
			COALESCE(SUM(status = 'cancelled'), 0)
		FROM appointments WHERE tenant_id = ? AND starts_at >= ? AND starts_at < ?
	`, tenantID, formatTime(from), formatTime(to)).Scan(&st.Scheduled, &st.Completed, &st.NoShow, &st.Cancelled)
	if err != nil {
		return AppointmentStats{}, fmt.Errorf("appointment summary: %w", err)
	}
	return st, nil
}

// LowStockItems lists items at or below their minimum quantity.
func (s *Store) LowStockItems(ctx context.Context, tenantID string) ([]InventoryItem, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT name, quantity, min_quantity, unit FROM inventory_items
		WHERE tenant_id = ? AND quantity <= min_quantity
		ORDER BY quantity - min_quantity, name
	`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("query low stock: %w", err)
	}
	defer rows.Close()

	var out []InventoryItem
	for rows.Next() {
		var it InventoryItem
		if err := rows.Scan(&it.Name, &it.Quantity, &it.MinQuantity, &it.Unit); err != nil {
			return nil, fmt.Errorf("scan inventory item: %w", err)
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

func (s *Store) PendingOrders(ctx context.Context, tenantID string) ([]Order, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, reference, customer_name, total, status, created_at FROM orders
		WHERE tenant_id = ? AND status IN ('pending', 'preparing')
		ORDER BY created_at
	`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("query pending orders: %w", err)
	}
	defer rows.Close()

	var out []Order
	for rows.Next() {
		var o Order
		var created string
		if err := rows.Scan(&o.ID, &o.Reference, &o.CustomerName, &o.Total, &o.Status, &created); err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		o.CreatedAt = parseTime(created)
		out = append(out, o)
	}
	return out, rows.Err()
}

func (s *Store) OpenEscalations(ctx context.Context, tenantID string) ([]Escalation, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, customer_name, reason, created_at FROM escalations
		WHERE tenant_id = ? AND resolved = 0
		ORDER BY created_at
	`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("query escalations: %w", err)
	}
	defer rows.Close()

	var out []Escalation
	for rows.Next() {
		var e Escalation
		var created string
		if err := rows.Scan(&e.ID, &e.CustomerName, &e.Reason, &created); err != nil {
			return nil, fmt.Errorf("scan escalation: %w", err)
		}
		e.CreatedAt = parseTime(created)
		out = append(out, e)
	}
	return out, rows.Err()
}

// AppointmentsOn lists non-cancelled appointments starting in [from, to).
func (s *Store) AppointmentsOn(ctx context.Context, tenantID string, from, to time.Time) ([]Appointment, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, customer_name, service_name, staff_name, status, starts_at FROM appointments
		WHERE tenant_id = ? AND status != 'cancelled' AND starts_at >= ? AND starts_at < ?
		ORDER BY starts_at
	`, tenantID, formatTime(from), formatTime(to))
	if err != nil {
		return nil, fmt.Errorf("query appointments: %w", err)
	}
	defer rows.Close()

	var out []Appointment
	for rows.Next() {
		var a Appointment
		var starts string
		if err := rows.Scan(&a.ID, &a.CustomerName, &a.ServiceName, &a.StaffName, &a.Status, &starts); err != nil {
			return nil, fmt.Errorf("scan appointment: %w", err)
		}
		a.StartsAt = parseTime(starts)
		out = append(out, a)
	}
	return out, rows.Err()
}
