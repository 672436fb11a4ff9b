// Package supabase implements store.BusinessStore on a Supabase (PostgREST)
// project, for tenants whose business data lives in the hosted dashboard
// database rather than the local SQLite file.
package supabase

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/supabase-community/supabase-go"

	"github.com/fernandofuc/tistis-platform-sub010/internal/adminchannel/store"
)

// Config holds Supabase connection settings.
type Config struct {
	URL    string
	APIKey string
}

// Client is a BusinessStore backed by Supabase tables with the same names
// and columns as the SQLite schema.
type Client struct {
	client *supabase.Client
	now    func() time.Time
}

var _ store.BusinessStore = (*Client)(nil)

// New creates a Supabase-backed business store.
func New(cfg Config) (*Client, error) {
	if cfg.URL == "" {
		return nil, errors.New("supabase URL is required")
	}
	if cfg.APIKey == "" {
		return nil, errors.New("supabase API key is required")
	}
	c, err := supabase.NewClient(strings.TrimRight(cfg.URL, "/"), cfg.APIKey, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create supabase client: %w", err)
	}
	return &Client{client: c, now: time.Now}, nil
}

type serviceRow struct {
	ID              string  `json:"id"`
	TenantID        string  `json:"tenant_id"`
	Name            string  `json:"name"`
	Price           float64 `json:"price"`
	DurationMinutes int     `json:"duration_minutes"`
	Active          bool    `json:"active"`
	UpdatedAt       string  `json:"updated_at"`
}

type hoursRow struct {
	TenantID  string `json:"tenant_id"`
	Day       int    `json:"day"`
	OpenTime  string `json:"open_time"`
	CloseTime string `json:"close_time"`
	Closed    bool   `json:"closed"`
	UpdatedAt string `json:"updated_at"`
}

type staffRow struct {
	ID       string `json:"id"`
	TenantID string `json:"tenant_id"`
	Name     string `json:"name"`
	Role     string `json:"role"`
	Active   bool   `json:"active"`
}

type promotionRow struct {
	ID            string  `json:"id"`
	TenantID      string  `json:"tenant_id"`
	Title         string  `json:"title"`
	DiscountType  string  `json:"discount_type"`
	DiscountValue float64 `json:"discount_value"`
	Active        bool    `json:"active"`
	StartsAt      *string `json:"starts_at"`
	EndsAt        *string `json:"ends_at"`
}

func (c *Client) stamp() string { return c.now().UTC().Format(time.RFC3339) }

// ---------------------------------------------------------------------------
// Services
// ---------------------------------------------------------------------------

func (c *Client) UpsertService(ctx context.Context, tenantID string, svc store.Service) (store.Result, error) {
	if svc.ID == "" {
		existing, err := c.servicesNamed(tenantID, svc.Name)
		if err != nil {
			return store.Result{}, err
		}
		if len(existing) > 0 {
			return store.Result{Error: "ya existe un servicio con ese nombre"}, nil
		}
		svc.ID, svc.Active = uuid.NewString(), true
	}

	row := serviceRow{
		ID: svc.ID, TenantID: tenantID, Name: svc.Name, Price: svc.Price,
		DurationMinutes: svc.DurationMinutes, Active: svc.Active, UpdatedAt: c.stamp(),
	}
	var out []serviceRow
	if _, err := c.client.From("services").Upsert(row, "id", "representation", "").ExecuteTo(&out); err != nil {
		return store.Result{}, fmt.Errorf("failed to upsert service: %w", err)
	}
	return store.Result{Success: true, EntityID: svc.ID, Data: svc}, nil
}

func (c *Client) DeleteService(ctx context.Context, tenantID, id string) (store.Result, error) {
	return c.deleteByID("services", tenantID, id, "servicio no encontrado")
}

func (c *Client) GetServices(ctx context.Context, tenantID string) ([]store.Service, error) {
	var rows []serviceRow
	_, err := c.client.From("services").
		Select("*", "", false).
		Eq("tenant_id", tenantID).
		Eq("active", "true").
		Order("name", nil).
		ExecuteTo(&rows)
	if err != nil {
		return nil, fmt.Errorf("failed to get services: %w", err)
	}
	out := make([]store.Service, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toService())
	}
	return out, nil
}

func (c *Client) UpdatePriceByName(ctx context.Context, tenantID, name string, price float64) (store.Result, error) {
	matches, err := c.servicesNamed(tenantID, name)
	if err != nil {
		return store.Result{}, err
	}
	if len(matches) == 0 {
		return store.Result{Error: "servicio no encontrado"}, nil
	}
	id := matches[0].ID

	var out []serviceRow
	_, err = c.client.From("services").
		Update(map[string]any{"price": price, "updated_at": c.stamp()}, "representation", "").
		Eq("id", id).
		Eq("tenant_id", tenantID).
		ExecuteTo(&out)
	if err != nil {
		return store.Result{}, fmt.Errorf("failed to update price: %w", err)
	}
	return store.Result{Success: true, EntityID: id, Data: map[string]any{"name": name, "price": price}}, nil
}

// servicesNamed matches name case-insensitively. PostgREST ilike without
// wildcards is an exact, case-insensitive comparison.
func (c *Client) servicesNamed(tenantID, name string) ([]serviceRow, error) {
	var rows []serviceRow
	_, err := c.client.From("services").
		Select("*", "", false).
		Eq("tenant_id", tenantID).
		Ilike("name", name).
		ExecuteTo(&rows)
	if err != nil {
		return nil, fmt.Errorf("failed to look up service %q: %w", name, err)
	}
	return rows, nil
}

// ---------------------------------------------------------------------------
// Hours
// ---------------------------------------------------------------------------

func (c *Client) UpsertHours(ctx context.Context, tenantID string, h store.Hours) (store.Result, error) {
	row := hoursRow{TenantID: tenantID, Day: h.Day, OpenTime: h.Open, CloseTime: h.Close, Closed: h.Closed, UpdatedAt: c.stamp()}
	var out []hoursRow
	if _, err := c.client.From("business_hours").Upsert(row, "tenant_id,day", "representation", "").ExecuteTo(&out); err != nil {
		return store.Result{}, fmt.Errorf("failed to upsert hours: %w", err)
	}
	return store.Result{Success: true, EntityID: strconv.Itoa(h.Day), Data: h}, nil
}

func (c *Client) GetHours(ctx context.Context, tenantID string) ([]store.Hours, error) {
	var rows []hoursRow
	_, err := c.client.From("business_hours").
		Select("*", "", false).
		Eq("tenant_id", tenantID).
		Order("day", nil).
		ExecuteTo(&rows)
	if err != nil {
		return nil, fmt.Errorf("failed to get hours: %w", err)
	}
	out := make([]store.Hours, 0, len(rows))
	for _, r := range rows {
		out = append(out, store.Hours{Day: r.Day, Open: r.OpenTime, Close: r.CloseTime, Closed: r.Closed})
	}
	return out, nil
}

// ---------------------------------------------------------------------------
// Staff
// ---------------------------------------------------------------------------

func (c *Client) UpsertStaff(ctx context.Context, tenantID string, m store.StaffMember) (store.Result, error) {
	if m.ID == "" {
		m.ID, m.Active = uuid.NewString(), true
	}
	row := staffRow{ID: m.ID, TenantID: tenantID, Name: m.Name, Role: m.Role, Active: m.Active}
	var out []staffRow
	if _, err := c.client.From("staff").Upsert(row, "id", "representation", "").ExecuteTo(&out); err != nil {
		return store.Result{}, fmt.Errorf("failed to upsert staff: %w", err)
	}
	return store.Result{Success: true, EntityID: m.ID, Data: m}, nil
}

func (c *Client) DeleteStaff(ctx context.Context, tenantID, id string) (store.Result, error) {
	return c.deleteByID("staff", tenantID, id, "empleado no encontrado")
}

func (c *Client) GetStaff(ctx context.Context, tenantID string) ([]store.StaffMember, error) {
	var rows []staffRow
	_, err := c.client.From("staff").
		Select("*", "", false).
		Eq("tenant_id", tenantID).
		Eq("active", "true").
		Order("name", nil).
		ExecuteTo(&rows)
	if err != nil {
		return nil, fmt.Errorf("failed to get staff: %w", err)
	}
	out := make([]store.StaffMember, 0, len(rows))
	for _, r := range rows {
		out = append(out, store.StaffMember{ID: r.ID, Name: r.Name, Role: r.Role, Active: r.Active})
	}
	return out, nil
}

// ---------------------------------------------------------------------------
// Promotions
// ---------------------------------------------------------------------------

func (c *Client) UpsertPromotion(ctx context.Context, tenantID string, p store.Promotion) (store.Result, error) {
	if p.ID == "" {
		p.ID, p.Active = uuid.NewString(), true
	}
	row := promotionRow{
		ID: p.ID, TenantID: tenantID, Title: p.Title, DiscountType: p.DiscountType,
		DiscountValue: p.DiscountValue, Active: p.Active,
		StartsAt: timeString(p.StartsAt), EndsAt: timeString(p.EndsAt),
	}
	var out []promotionRow
	if _, err := c.client.From("promotions").Upsert(row, "id", "representation", "").ExecuteTo(&out); err != nil {
		return store.Result{}, fmt.Errorf("failed to upsert promotion: %w", err)
	}
	return store.Result{Success: true, EntityID: p.ID, Data: p}, nil
}

func (c *Client) DeletePromotion(ctx context.Context, tenantID, id string) (store.Result, error) {
	return c.deleteByID("promotions", tenantID, id, "promoción no encontrada")
}

// GetActivePromotions fetches enabled promotions and filters the date window
// client side, since open-ended windows need OR filters.
func (c *Client) GetActivePromotions(ctx context.Context, tenantID string) ([]store.Promotion, error) {
	var rows []promotionRow
	_, err := c.client.From("promotions").
		Select("*", "", false).
		Eq("tenant_id", tenantID).
		Eq("active", "true").
		Order("title", nil).
		ExecuteTo(&rows)
	if err != nil {
		return nil, fmt.Errorf("failed to get promotions: %w", err)
	}

	now := c.now()
	out := make([]store.Promotion, 0, len(rows))
	for _, r := range rows {
		p := store.Promotion{
			ID: r.ID, Title: r.Title, DiscountType: r.DiscountType, DiscountValue: r.DiscountValue,
			Active: r.Active, StartsAt: parseTime(r.StartsAt), EndsAt: parseTime(r.EndsAt),
		}
		if p.StartsAt != nil && p.StartsAt.After(now) {
			continue
		}
		if p.EndsAt != nil && !p.EndsAt.After(now) {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

func (c *Client) deleteByID(table, tenantID, id, notFound string) (store.Result, error) {
	var deleted []map[string]any
	_, err := c.client.From(table).
		Delete("representation", "").
		Eq("id", id).
		Eq("tenant_id", tenantID).
		ExecuteTo(&deleted)
	if err != nil {
		return store.Result{}, fmt.Errorf("failed to delete from %s: %w", table, err)
	}
	if len(deleted) == 0 {
		return store.Result{Error: notFound}, nil
	}
	return store.Result{Success: true, EntityID: id}, nil
}

func (r serviceRow) toService() store.Service {
	svc := store.Service{ID: r.ID, Name: r.Name, Price: r.Price, DurationMinutes: r.DurationMinutes, Active: r.Active}
	if t := parseTime(&r.UpdatedAt); t != nil {
		svc.UpdatedAt = *t
	}
	return svc
}

func timeString(t *time.Time) *string {
	if t == nil || t.IsZero() {
		return nil
	}
	s := t.UTC().Format(time.RFC3339)
	return &s
}

func parseTime(s *string) *time.Time {
	if s == nil || *s == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, *s)
	if err != nil {
		return nil
	}
	return &t
}
