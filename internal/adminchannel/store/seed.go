package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// SeedDemo fills an empty tenant with a small, vertical-appropriate data set
// so the local chat REPL has something to report on. It is a no-op when the
// tenant already has services.
func (s *Store) SeedDemo(ctx context.Context, tenantID, vertical string) error {
	existing, err := s.GetServices(ctx, tenantID)
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		return nil
	}

	now := s.now().UTC()
	services := map[string]float64{"Consulta": 450, "Limpieza Dental": 500, "Blanqueamiento": 2500}
	if vertical == "restaurant" {
		services = map[string]float64{"Menú del día": 150, "Servicio a domicilio": 40}
	}
	for name, price := range services {
		if _, err := s.UpsertService(ctx, tenantID, Service{Name: name, Price: price}); err != nil {
			return err
		}
	}
	for day := 1; day <= 5; day++ {
		if _, err := s.UpsertHours(ctx, tenantID, Hours{Day: day, Open: "09:00", Close: "18:00"}); err != nil {
			return err
		}
	}
	if _, err := s.UpsertHours(ctx, tenantID, Hours{Day: 0, Closed: true}); err != nil {
		return err
	}
	if _, err := s.UpsertStaff(ctx, tenantID, StaffMember{Name: "Ana López", Role: "recepción"}); err != nil {
		return err
	}

	stmts := []struct {
		q    string
		args []any
	}{
		{`INSERT INTO orders (id, tenant_id, reference, customer_name, total, status, created_at) VALUES (?, ?, 'A-101', 'Luis', 320, 'completed', ?)`,
			[]any{uuid.NewString(), tenantID, formatTime(now.Add(-2 * time.Hour))}},
		{`INSERT INTO orders (id, tenant_id, reference, customer_name, total, status, created_at) VALUES (?, ?, 'A-102', 'Marta', 180, 'pending', ?)`,
			[]any{uuid.NewString(), tenantID, formatTime(now.Add(-20 * time.Minute))}},
		{`INSERT INTO leads (id, tenant_id, name, status, created_at) VALUES (?, ?, 'Jorge', 'hot', ?)`,
			[]any{uuid.NewString(), tenantID, formatTime(now.Add(-3 * time.Hour))}},
		{`INSERT INTO appointments (id, tenant_id, customer_name, service_name, staff_name, price, status, starts_at) VALUES (?, ?, 'Sofía', 'Consulta', 'Ana López', 450, 'scheduled', ?)`,
			[]any{uuid.NewString(), tenantID, formatTime(now.Add(2 * time.Hour))}},
		{`INSERT INTO inventory_items (id, tenant_id, name, quantity, min_quantity, unit) VALUES (?, ?, 'Guantes', 2, 10, 'cajas')`,
			[]any{uuid.NewString(), tenantID}},
		{`INSERT INTO escalations (id, tenant_id, customer_name, reason, created_at) VALUES (?, ?, 'Pedro', 'Pide hablar con un humano', ?)`,
			[]any{uuid.NewString(), tenantID, formatTime(now.Add(-time.Hour))}},
	}
	for _, st := range stmts {
		if _, err := s.db.ExecContext(ctx, st.q, st.args...); err != nil {
			return fmt.Errorf("seed demo data: %w", err)
		}
	}
	return nil
}
