// Package app wires the admin channel service: stores, classifier, handler
// set, orchestrator, turn service and the HTTP API.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/fernandofuc/tistis-platform-sub010/internal/adminchannel/audit"
	"github.com/fernandofuc/tistis-platform-sub010/internal/adminchannel/config"
	"github.com/fernandofuc/tistis-platform-sub010/internal/adminchannel/conversation"
	"github.com/fernandofuc/tistis-platform-sub010/internal/adminchannel/handlers"
	"github.com/fernandofuc/tistis-platform-sub010/internal/adminchannel/matrix"
	"github.com/fernandofuc/tistis-platform-sub010/internal/adminchannel/nlp"
	"github.com/fernandofuc/tistis-platform-sub010/internal/adminchannel/orchestrator"
	"github.com/fernandofuc/tistis-platform-sub010/internal/adminchannel/store"
	"github.com/fernandofuc/tistis-platform-sub010/internal/adminchannel/store/supabase"
)

// App is the assembled service.
type App struct {
	cfg           *config.Config
	db            *store.Store
	conversations conversation.Store
	service       *Service
	server        *Server
}

// Option customises New.
type Option func(*options)

type options struct {
	provider nlp.Provider
	now      func() time.Time
}

// WithProvider overrides the classifier provider chosen by configuration.
func WithProvider(p nlp.Provider) Option { return func(o *options) { o.provider = p } }

// WithClock overrides the handler clock.
func WithClock(now func() time.Time) Option { return func(o *options) { o.now = now } }

// New builds the application from cfg. The caller must Close it.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	slog.Info("opening database", "path", cfg.Store.Path)
	db, err := store.New(cfg.Store.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	a := &App{cfg: cfg, db: db}
	if err := a.wire(ctx, o); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) wire(ctx context.Context, o *options) error {
	cfg := a.cfg

	business, err := a.businessStore()
	if err != nil {
		return err
	}

	a.conversations, err = newConversationStore(ctx, cfg, a.db)
	if err != nil {
		return fmt.Errorf("failed to initialize conversation store: %w", err)
	}
	slog.Info("conversation store ready", "driver", cfg.Conversation.Driver)

	classifier, providerName, err := newClassifier(cfg, o.provider)
	if err != nil {
		return err
	}

	hs := handlers.New(handlers.Config{
		Business:      business,
		Analytics:     a.db,
		Notifications: a.db,
		PendingTTL:    cfg.Turn.PendingTTL,
		OpTimeout:     cfg.Turn.OpTimeout,
		PoolSize:      cfg.Turn.PoolSize,
		Now:           o.now,
	})

	orchCfg := orchestrator.Config{Handlers: hs.Registry()}
	if classifier != nil {
		orchCfg.Classifier = classifier
	}
	orch, err := orchestrator.New(orchCfg)
	if err != nil {
		return fmt.Errorf("failed to build orchestrator: %w", err)
	}

	a.service, err = NewService(ServiceConfig{
		Conversations: a.conversations,
		Runner:        orch,
		Audit:         a.db,
		Notifier:      newNotifier(ctx, cfg),
		MaxIterations: cfg.Turn.MaxIterations,
		HistoryLimit:  cfg.Conversation.HistoryLimit,
		StoreTimeout:  cfg.Turn.OpTimeout,
	})
	if err != nil {
		return err
	}

	a.server = NewServer(ServerConfig{
		Addr:            cfg.HTTP.Addr,
		ReadTimeout:     cfg.HTTP.ReadTimeout,
		WriteTimeout:    cfg.HTTP.WriteTimeout,
		ShutdownTimeout: cfg.HTTP.ShutdownTimeout,
		Info: map[string]string{
			"business_store":     cfg.Store.Business,
			"conversation_store": cfg.Conversation.Driver,
			"classifier":         providerName,
		},
	}, a.service, a.db)
	return nil
}

func (a *App) businessStore() (store.BusinessStore, error) {
	if a.cfg.Store.Business != config.BusinessSupabase {
		return a.db, nil
	}
	key, err := a.cfg.SupabaseAPIKey()
	if err != nil {
		return nil, fmt.Errorf("supabase business store: %w", err)
	}
	sb, err := supabase.New(supabase.Config{URL: a.cfg.Store.Supabase.URL, APIKey: key})
	if err != nil {
		return nil, err
	}
	slog.Info("business store: supabase", "url", a.cfg.Store.Supabase.URL)
	return sb, nil
}

func newConversationStore(ctx context.Context, cfg *config.Config, db *store.Store) (conversation.Store, error) {
	c := cfg.Conversation
	ttl := conversation.WithTTL(c.TTL)
	switch conversation.Driver(c.Driver) {
	case conversation.DriverSQLite:
		return conversation.New(conversation.DriverSQLite, conversation.WithDB(db.DB()))
	case conversation.DriverRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     c.Redis.Addr,
			DB:       c.Redis.DB,
			Password: cfg.RedisPassword(),
		})
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := client.Ping(pingCtx).Err(); err != nil {
			client.Close()
			return nil, fmt.Errorf("redis ping %s: %w", c.Redis.Addr, err)
		}
		return conversation.New(conversation.DriverRedis, conversation.WithRedisClient(client), ttl)
	case conversation.DriverDynamoDB:
		client, err := conversation.NewDynamoDBClient(ctx, c.DynamoDB.Region)
		if err != nil {
			return nil, err
		}
		return conversation.New(conversation.DriverDynamoDB, conversation.WithDynamoDB(client, c.DynamoDB.Table), ttl)
	default:
		return conversation.New(conversation.Driver(c.Driver))
	}
}

// newClassifier returns nil when classification is disabled. An openai
// provider without a key degrades to keyword matching.
func newClassifier(cfg *config.Config, override nlp.Provider) (*nlp.Classifier, string, error) {
	c := cfg.Classifier
	provider := override
	if provider == nil {
		switch c.Provider {
		case config.ClassifierNone:
			slog.Info("NLP: classifier disabled; unmatched messages fall back to help")
			return nil, config.ClassifierNone, nil
		case config.ClassifierKeyword:
			provider = nlp.KeywordProvider{}
		default:
			key, err := cfg.ClassifierAPIKey()
			if err != nil {
				slog.Warn("NLP: no API key in environment; keyword matching active",
					"env", c.APIKeyEnv)
				provider = nlp.KeywordProvider{}
				break
			}
			provider = nlp.NewOpenAIProvider(nlp.OpenAIConfig{APIKey: key, BaseURL: c.BaseURL, Model: c.Model})
		}
	}

	var limiter *nlp.RateLimiter
	if c.RateLimit > 0 {
		limiter = nlp.NewRateLimiter(c.RateLimit, c.RateWindow)
	}
	classifier, err := nlp.NewClassifier(provider, nlp.Options{
		Timeout:      c.Timeout,
		HistoryLimit: c.HistoryLimit,
		Limiter:      limiter,
	})
	if err != nil {
		return nil, "", err
	}
	slog.Info("NLP: classifier ready", "provider", classifier.ProviderName(), "rate_limit", c.RateLimit)
	return classifier, classifier.ProviderName(), nil
}

// newNotifier returns a Matrix notifier when an ops room is configured.
// Matrix problems never stop the service.
func newNotifier(ctx context.Context, cfg *config.Config) audit.Notifier {
	m := cfg.Matrix
	if m.Room == "" {
		return audit.Noop{}
	}
	token, err := cfg.MatrixAccessToken()
	if err != nil {
		slog.Warn("ops room notices disabled", "err", err)
		return audit.Noop{}
	}
	client, err := matrix.New(matrix.Config{Homeserver: m.Homeserver, UserID: m.UserID, AccessToken: token})
	if err != nil {
		slog.Warn("ops room notices disabled", "err", err)
		return audit.Noop{}
	}
	joinCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := client.Join(joinCtx, m.Room); err != nil {
		slog.Warn("could not join ops room; notices may fail", "room", m.Room, "err", err)
	}
	slog.Info("audit room notifier ready", "room", m.Room)
	return audit.NewMatrixNotifier(client, m.Room)
}

// Service returns the turn service.
func (a *App) Service() *Service { return a.service }

// Store returns the SQLite store.
func (a *App) Store() *store.Store { return a.db }

// Handler returns the HTTP API handler.
func (a *App) Handler() *Server { return a.server }

// Run serves HTTP until ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	if err := a.server.Start(ctx); err != nil {
		return err
	}
	slog.Info("admin channel is running")
	<-ctx.Done()
	slog.Info("shutting down")
	a.server.Stop()
	return nil
}

// Close releases the stores.
func (a *App) Close() error {
	var errs []error
	if a.conversations != nil {
		errs = append(errs, a.conversations.Close())
	}
	if a.db != nil {
		slog.Info("closing database")
		errs = append(errs, a.db.Close())
	}
	return errors.Join(errs...)
}
