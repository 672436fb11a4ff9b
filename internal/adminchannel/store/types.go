package store

import (
	"context"
	"time"
)

// Result is the outcome of a business mutation. Expected domain failures
// ("service not found") are Success=false with Error set; infrastructure
// failures are returned as error instead.
type Result struct {
	Success  bool   `json:"success"`
	EntityID string `json:"entity_id,omitempty"`
	Error    string `json:"error,omitempty"`
	Data     any    `json:"data,omitempty"`
}

func ok(id string, data any) Result { return Result{Success: true, EntityID: id, Data: data} }
func failed(msg string) Result      { return Result{Error: msg} }

type Service struct {
	ID              string    `json:"id"`
	Name            string    `json:"name"`
	Price           float64   `json:"price"`
	DurationMinutes int       `json:"duration_minutes"`
	Active          bool      `json:"active"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// Hours is one day of the weekly schedule. Day follows time.Weekday
// (0 = Sunday). Open and Close are "HH:MM".
type Hours struct {
	Day    int    `json:"day"`
	Open   string `json:"open,omitempty"`
	Close  string `json:"close,omitempty"`
	Closed bool   `json:"closed"`
}

type StaffMember struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Role   string `json:"role,omitempty"`
	Active bool   `json:"active"`
}

// Discount types for promotions.
const (
	DiscountPercentage = "percentage"
	DiscountFixed      = "fixed"
)

type Promotion struct {
	ID            string     `json:"id"`
	Title         string     `json:"title"`
	DiscountType  string     `json:"discount_type"`
	DiscountValue float64    `json:"discount_value"`
	Active        bool       `json:"active"`
	StartsAt      *time.Time `json:"starts_at,omitempty"`
	EndsAt        *time.Time `json:"ends_at,omitempty"`
}

// BusinessStore is the tenant-scoped CRUD surface the confirm executors and
// the configuration handler use.
type BusinessStore interface {
	UpsertService(ctx context.Context, tenantID string, svc Service) (Result, error)
	DeleteService(ctx context.Context, tenantID, id string) (Result, error)
	GetServices(ctx context.Context, tenantID string) ([]Service, error)
	UpdatePriceByName(ctx context.Context, tenantID, name string, price float64) (Result, error)

	UpsertHours(ctx context.Context, tenantID string, h Hours) (Result, error)
	GetHours(ctx context.Context, tenantID string) ([]Hours, error)

	UpsertStaff(ctx context.Context, tenantID string, m StaffMember) (Result, error)
	DeleteStaff(ctx context.Context, tenantID, id string) (Result, error)
	GetStaff(ctx context.Context, tenantID string) ([]StaffMember, error)

	UpsertPromotion(ctx context.Context, tenantID string, p Promotion) (Result, error)
	DeletePromotion(ctx context.Context, tenantID, id string) (Result, error)
	GetActivePromotions(ctx context.Context, tenantID string) ([]Promotion, error)
}

type SalesStats struct {
	Total     float64 `json:"total"`
	Count     int     `json:"count"`
	AvgTicket float64 `json:"avg_ticket"`
}

type OrderStats struct {
	Total     int `json:"total"`
	Pending   int `json:"pending"`
	Completed int `json:"completed"`
	Cancelled int `json:"cancelled"`
}

type LeadStats struct {
	New       int `json:"new"`
	Hot       int `json:"hot"`
	Converted int `json:"converted"`
}

type AppointmentStats struct {
	Scheduled int `json:"scheduled"`
	Completed int `json:"completed"`
	NoShow    int `json:"no_show"`
	Cancelled int `json:"cancelled"`
}

type InventoryItem struct {
	Name        string  `json:"name"`
	Quantity    float64 `json:"quantity"`
	MinQuantity float64 `json:"min_quantity"`
	Unit        string  `json:"unit,omitempty"`
}

type Order struct {
	ID           string    `json:"id"`
	Reference    string    `json:"reference"`
	CustomerName string    `json:"customer_name,omitempty"`
	Total        float64   `json:"total"`
	Status       string    `json:"status"`
	CreatedAt    time.Time `json:"created_at"`
}

type Escalation struct {
	ID           string    `json:"id"`
	CustomerName string    `json:"customer_name,omitempty"`
	Reason       string    `json:"reason"`
	CreatedAt    time.Time `json:"created_at"`
}

type Appointment struct {
	ID           string    `json:"id"`
	CustomerName string    `json:"customer_name"`
	ServiceName  string    `json:"service_name,omitempty"`
	StaffName    string    `json:"staff_name,omitempty"`
	Status       string    `json:"status"`
	StartsAt     time.Time `json:"starts_at"`
}

// AnalyticsReader serves the read-only reports. Ranges are [from, to).
type AnalyticsReader interface {
	SalesSummary(ctx context.Context, tenantID string, from, to time.Time) (SalesStats, error)
	OrderSummary(ctx context.Context, tenantID string, from, to time.Time) (OrderStats, error)
	LeadSummary(ctx context.Context, tenantID string, from, to time.Time) (LeadStats, error)
	AppointmentSummary(ctx context.Context, tenantID string, from, to time.Time) (AppointmentStats, error)

	LowStockItems(ctx context.Context, tenantID string) ([]InventoryItem, error)
	PendingOrders(ctx context.Context, tenantID string) ([]Order, error)
	OpenEscalations(ctx context.Context, tenantID string) ([]Escalation, error)
	AppointmentsOn(ctx context.Context, tenantID string, from, to time.Time) ([]Appointment, error)
}

type NotificationPreferences struct {
	Paused    bool      `json:"paused"`
	Daily     bool      `json:"daily"`
	Types     []string  `json:"types"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Recipient struct {
	UserID  string `json:"user_id"`
	Channel string `json:"channel"`
	Address string `json:"address,omitempty"`
	Paused  bool   `json:"paused"`
}

type Notification struct {
	TenantID string `json:"tenant_id"`
	UserID   string `json:"user_id"`
	Type     string `json:"type"`
	Title    string `json:"title"`
	Body     string `json:"body,omitempty"`
}

// NotificationStore backs the notification handler.
type NotificationStore interface {
	GetNotificationPreferences(ctx context.Context, tenantID, userID string) (NotificationPreferences, error)
	SetNotificationsPaused(ctx context.Context, tenantID, userID string, paused bool) (Result, error)
	ListRecipients(ctx context.Context, tenantID string) ([]Recipient, error)
	CreateNotification(ctx context.Context, n Notification) (Result, error)
}

var (
	_ BusinessStore     = (*Store)(nil)
	_ AnalyticsReader   = (*Store)(nil)
	_ NotificationStore = (*Store)(nil)
)
