// Package config loads the admin channel service configuration.
//
// Precedence, lowest first: built-in defaults, the YAML file, then
// ADMINCHANNEL_* environment variables. Nested keys use a double underscore
// in env names: ADMINCHANNEL_CONVERSATION__DRIVER=redis sets
// conversation.driver. Secrets never live in the file; the file only names
// the environment variable that holds each one.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/fernandofuc/tistis-platform-sub010/common/environment"
	"github.com/fernandofuc/tistis-platform-sub010/internal/adminchannel/orchestrator"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "ADMINCHANNEL_"

// Backend names.
const (
	BusinessSQLite   = "sqlite"
	BusinessSupabase = "supabase"

	ClassifierOpenAI  = "openai"
	ClassifierKeyword = "keyword"
	ClassifierNone    = "none"
)

// Config is the top-level service configuration.
type Config struct {
	Log          LogConfig          `koanf:"log"`
	HTTP         HTTPConfig         `koanf:"http"`
	Store        StoreConfig        `koanf:"store"`
	Conversation ConversationConfig `koanf:"conversation"`
	Classifier   ClassifierConfig   `koanf:"classifier"`
	Turn         TurnConfig         `koanf:"turn"`
	Matrix       MatrixConfig       `koanf:"matrix"`
}

type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"` // json or text
}

type HTTPConfig struct {
	Addr            string        `koanf:"addr"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// StoreConfig selects the business data backend. The SQLite database is
// always opened: it also holds analytics, notifications and the audit log.
type StoreConfig struct {
	Path     string         `koanf:"path"`
	Business string         `koanf:"business"`
	Supabase SupabaseConfig `koanf:"supabase"`
}

type SupabaseConfig struct {
	URL       string `koanf:"url"`
	APIKeyEnv string `koanf:"api_key_env"`
}

type ConversationConfig struct {
	Driver       string         `koanf:"driver"`
	TTL          time.Duration  `koanf:"ttl"`
	HistoryLimit int            `koanf:"history_limit"`
	Redis        RedisConfig    `koanf:"redis"`
	DynamoDB     DynamoDBConfig `koanf:"dynamodb"`
}

type RedisConfig struct {
	Addr        string `koanf:"addr"`
	DB          int    `koanf:"db"`
	PasswordEnv string `koanf:"password_env"`
}

type DynamoDBConfig struct {
	Region string `koanf:"region"`
	Table  string `koanf:"table"`
}

type ClassifierConfig struct {
	Provider     string        `koanf:"provider"`
	Model        string        `koanf:"model"`
	BaseURL      string        `koanf:"base_url"`
	APIKeyEnv    string        `koanf:"api_key_env"`
	Timeout      time.Duration `koanf:"timeout"`
	HistoryLimit int           `koanf:"history_limit"`
	RateLimit    int           `koanf:"rate_limit"`
	RateWindow   time.Duration `koanf:"rate_window"`
}

type TurnConfig struct {
	MaxIterations int           `koanf:"max_iterations"`
	PendingTTL    time.Duration `koanf:"pending_ttl"`
	OpTimeout     time.Duration `koanf:"op_timeout"`
	PoolSize      int           `koanf:"pool_size"`
}

// MatrixConfig enables ops-room notices when Room is set.
type MatrixConfig struct {
	Homeserver     string `koanf:"homeserver"`
	UserID         string `koanf:"user_id"`
	AccessTokenEnv string `koanf:"access_token_env"`
	Room           string `koanf:"room"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Log: LogConfig{Level: "info", Format: "json"},
		HTTP: HTTPConfig{
			Addr:            ":8080",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Store: StoreConfig{
			Path:     "adminchannel.db",
			Business: BusinessSQLite,
			Supabase: SupabaseConfig{APIKeyEnv: EnvPrefix + "SUPABASE_KEY"},
		},
		Conversation: ConversationConfig{
			Driver:       "sqlite",
			TTL:          24 * time.Hour,
			HistoryLimit: 20,
			Redis:        RedisConfig{Addr: "localhost:6379", PasswordEnv: EnvPrefix + "REDIS_PASSWORD"},
			DynamoDB:     DynamoDBConfig{Table: "adminchannel-conversations"},
		},
		Classifier: ClassifierConfig{
			Provider:     ClassifierOpenAI,
			Model:        "gpt-4o-mini",
			APIKeyEnv:    EnvPrefix + "CLASSIFIER_API_KEY",
			Timeout:      10 * time.Second,
			HistoryLimit: 6,
			RateLimit:    30,
			RateWindow:   time.Minute,
		},
		Turn: TurnConfig{
			MaxIterations: 10,
			PendingTTL:    5 * time.Minute,
			OpTimeout:     8 * time.Second,
			PoolSize:      4,
		},
		Matrix: MatrixConfig{AccessTokenEnv: EnvPrefix + "MATRIX_TOKEN"},
	}
}

// Load reads configuration from path (optional; a missing file is not an
// error) and overlays environment overrides. The result is not validated.
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	cfg := Default()

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
				return nil, fmt.Errorf("reading config %s: %w", path, err)
			}
		} else if !os.IsNotExist(err) {
			return nil, fmt.Errorf("accessing config %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("loading env overrides: %w", err)
	}

	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}
	return cfg, nil
}

// envKey maps ADMINCHANNEL_TURN__POOL_SIZE to turn.pool_size.
func envKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	return strings.ReplaceAll(s, "__", ".")
}

var (
	validBusiness     = map[string]bool{BusinessSQLite: true, BusinessSupabase: true}
	validConversation = map[string]bool{"memory": true, "sqlite": true, "redis": true, "dynamodb": true}
	validClassifiers  = map[string]bool{ClassifierOpenAI: true, ClassifierKeyword: true, ClassifierNone: true}
	validLogFormats   = map[string]bool{"json": true, "text": true}
)

// Validate checks backend names, durations and limits.
func (c *Config) Validate() error {
	var errs []error
	add := func(format string, args ...any) { errs = append(errs, fmt.Errorf(format, args...)) }

	if !validLogFormats[c.Log.Format] {
		add("log.format %q must be json or text", c.Log.Format)
	}
	if c.Store.Path == "" {
		add("store.path is required")
	}
	if !validBusiness[c.Store.Business] {
		add("store.business %q must be sqlite or supabase", c.Store.Business)
	}
	if c.Store.Business == BusinessSupabase && c.Store.Supabase.URL == "" {
		add("store.supabase.url is required for the supabase backend")
	}
	if !validConversation[c.Conversation.Driver] {
		add("conversation.driver %q must be memory, sqlite, redis or dynamodb", c.Conversation.Driver)
	}
	if c.Conversation.Driver == "redis" && c.Conversation.Redis.Addr == "" {
		add("conversation.redis.addr is required for the redis driver")
	}
	if c.Conversation.Driver == "dynamodb" && c.Conversation.DynamoDB.Table == "" {
		add("conversation.dynamodb.table is required for the dynamodb driver")
	}
	if c.Conversation.HistoryLimit <= 0 {
		add("conversation.history_limit must be positive")
	}
	if !validClassifiers[c.Classifier.Provider] {
		add("classifier.provider %q must be openai, keyword or none", c.Classifier.Provider)
	}
	if c.Classifier.Timeout <= 0 {
		add("classifier.timeout must be positive")
	}
	if c.Classifier.RateLimit < 0 {
		add("classifier.rate_limit must be non-negative")
	}
	if c.Turn.MaxIterations < orchestrator.MinIterations {
		add("turn.max_iterations must be at least %d", orchestrator.MinIterations)
	}
	if c.Turn.PendingTTL <= 0 {
		add("turn.pending_ttl must be positive")
	}
	if c.Turn.OpTimeout <= 0 {
		add("turn.op_timeout must be positive")
	}
	if c.Turn.PoolSize <= 0 {
		add("turn.pool_size must be positive")
	}
	if c.Matrix.Room != "" && c.Matrix.Homeserver == "" {
		add("matrix.homeserver is required when matrix.room is set")
	}
	return errors.Join(errs...)
}

// ClassifierAPIKey reads the classifier key from the configured variable.
func (c *Config) ClassifierAPIKey() (string, error) {
	return environment.Required(c.Classifier.APIKeyEnv)
}

// SupabaseAPIKey reads the Supabase service key.
func (c *Config) SupabaseAPIKey() (string, error) {
	return environment.Required(c.Store.Supabase.APIKeyEnv)
}

// RedisPassword returns the Redis password, empty when unset.
func (c *Config) RedisPassword() string {
	return environment.StringOr(c.Conversation.Redis.PasswordEnv, "")
}

// MatrixAccessToken reads the Matrix access token.
func (c *Config) MatrixAccessToken() (string, error) {
	return environment.Required(c.Matrix.AccessTokenEnv)
}
