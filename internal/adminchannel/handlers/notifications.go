package handlers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/fernandofuc/tistis-platform-sub010/common/redact"
	"github.com/fernandofuc/tistis-platform-sub010/common/trace"
	"github.com/fernandofuc/tistis-platform-sub010/internal/adminchannel/format"
	"github.com/fernandofuc/tistis-platform-sub010/internal/adminchannel/intent"
	"github.com/fernandofuc/tistis-platform-sub010/internal/adminchannel/session"
	"github.com/fernandofuc/tistis-platform-sub010/internal/adminchannel/store"
)

// NotificationTestType is the notification type used by the test fan-out.
const NotificationTestType = "test"

// FanOutResult aggregates a notification fan-out.
type FanOutResult struct {
	Succeeded int
	Failed    int
	Err       error
}

// Notifications shows and changes the caller's notification preferences
// and sends test notifications.
func (h *Handlers) Notifications(ctx context.Context, s session.State) session.Update {
	if h.notifications == nil {
		return degraded(ctx, s, "notifications", errNoBackend)
	}
	tenant, user := s.Caller.TenantID, s.Caller.UserID

	switch s.Intent {
	case intent.NotificationPause, intent.NotificationResume:
		paused := s.Intent == intent.NotificationPause
		res, err := func() (store.Result, error) {
			ctx, cancel := context.WithTimeout(ctx, h.opTimeout)
			defer cancel()
			return h.notifications.SetNotificationsPaused(ctx, tenant, user, paused)
		}()
		if err != nil {
			return degraded(ctx, s, "set_notifications_paused", err)
		}
		if !res.Success {
			return replyText(s, "No pude cambiar tus notificaciones: "+res.Error)
		}
		if paused {
			return reply(s, format.Report{
				Intro:    "🔕 Pausé tus notificaciones. Escribe /reanudar cuando quieras volver a recibirlas.",
				Keyboard: format.Keyboard{{{Text: "🔔 Reanudar", Data: "/reanudar"}}},
			})
		}
		return replyText(s, "🔔 Listo, vuelves a recibir notificaciones.")

	case intent.NotificationTest:
		out := h.fanOutTest(ctx, s)
		u := replyText(s, fmt.Sprintf("Notificación de prueba: %d enviadas, %d fallidas.", out.Succeeded, out.Failed))
		u.Entities = map[string]any{"succeeded": out.Succeeded, "failed": out.Failed}
		if out.Err != nil {
			u = u.WithError(session.KindExternalOperation, out.Err)
		}
		return u

	default:
		prefs, err := read(ctx, h, func(ctx context.Context) (store.NotificationPreferences, error) {
			return h.notifications.GetNotificationPreferences(ctx, tenant, user)
		})
		if err != nil {
			return degraded(ctx, s, "get_notification_preferences", err)
		}
		state, button := "activas 🔔", format.Button{Text: "🔕 Pausar", Data: "/pausar"}
		if prefs.Paused {
			state, button = "pausadas 🔕", format.Button{Text: "🔔 Reanudar", Data: "/reanudar"}
		}
		daily := "no"
		if prefs.Daily {
			daily = "sí"
		}
		types := "todas"
		if len(prefs.Types) > 0 {
			types = strings.Join(prefs.Types, ", ")
		}
		return reply(s, format.Report{
			Title: "🔔 Notificaciones",
			Sections: []format.Section{{Lines: []string{
				"Estado: " + state,
				"Resumen diario: " + daily,
				"Tipos: " + types,
			}}},
			Keyboard: format.Keyboard{{button}},
		})
	}
}

// fanOutTest sends a test notification to every active recipient of the
// tenant through a bounded pool. Individual failures are counted and joined
// into Err.
func (h *Handlers) fanOutTest(ctx context.Context, s session.State) FanOutResult {
	tenant := s.Caller.TenantID
	recipients, err := read(ctx, h, func(ctx context.Context) ([]store.Recipient, error) {
		return h.notifications.ListRecipients(ctx, tenant)
	})
	if err != nil {
		return FanOutResult{Err: fmt.Errorf("list recipients: %w", err)}
	}

	var (
		mu   sync.Mutex
		out  FanOutResult
		errs []error
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(h.poolSize)
	for _, r := range recipients {
		if r.Paused {
			continue
		}
		g.Go(func() error {
			ctx, cancel := context.WithTimeout(gctx, h.opTimeout)
			defer cancel()
			res, err := h.notifications.CreateNotification(ctx, store.Notification{
				TenantID: tenant,
				UserID:   r.UserID,
				Type:     NotificationTestType,
				Title:    "Notificación de prueba",
				Body:     fmt.Sprintf("Prueba enviada por %s.", displayName(s.Caller)),
			})
			if err == nil && !res.Success {
				err = errors.New(res.Error)
			}

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				out.Failed++
				errs = append(errs, fmt.Errorf("recipient %s: %w", r.UserID, err))
				slog.Warn("test notification failed",
					trace.Attr(ctx),
					"tenant", tenant,
					"recipient", r.UserID,
					"address", redact.Phone(r.Address),
					"err", err,
				)
				return nil
			}
			out.Succeeded++
			return nil
		})
	}
	_ = g.Wait()
	out.Err = errors.Join(errs...)
	return out
}

func displayName(c session.Caller) string {
	if c.DisplayName != "" {
		return c.DisplayName
	}
	return c.UserID
}
