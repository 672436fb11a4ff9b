package conversation

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/redis/go-redis/v9"
)

// Driver names a conversation store backend.
type Driver string

const (
	DriverMemory   Driver = "memory"
	DriverSQLite   Driver = "sqlite"
	DriverRedis    Driver = "redis"
	DriverDynamoDB Driver = "dynamodb"
)

// Option configures New.
type Option func(*options)

type options struct {
	db          *sql.DB
	redisClient *redis.Client
	dynamo      dynamodbAPI
	table       string
	ttl         time.Duration
}

// WithDB supplies the application database for the sqlite driver.
func WithDB(db *sql.DB) Option { return func(o *options) { o.db = db } }

// WithRedisClient supplies the client for the redis driver.
func WithRedisClient(c *redis.Client) Option { return func(o *options) { o.redisClient = c } }

// WithDynamoDB supplies the client and table for the dynamodb driver.
func WithDynamoDB(api dynamodbAPI, table string) Option {
	return func(o *options) { o.dynamo, o.table = api, table }
}

// WithTTL sets how long an idle conversation is kept by drivers that expire
// data (redis, dynamodb).
func WithTTL(ttl time.Duration) Option { return func(o *options) { o.ttl = ttl } }

// New creates a Store for driver.
func New(driver Driver, opts ...Option) (Store, error) {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	switch Driver(strings.ToLower(string(driver))) {
	case DriverMemory, "":
		return newMemoryStore(), nil

	case DriverSQLite:
		if o.db == nil {
			return nil, fmt.Errorf("%w: sqlite driver needs a database", ErrInvalidConfig)
		}
		return &sqliteStore{db: o.db}, nil

	case DriverRedis:
		if o.redisClient == nil {
			return nil, fmt.Errorf("%w: redis driver needs a client", ErrInvalidConfig)
		}
		ttl := o.ttl
		if ttl <= 0 {
			ttl = defaultRedisTTL
		}
		return &redisStore{backend: clientBackend{client: o.redisClient}, ttl: ttl}, nil

	case DriverDynamoDB:
		if o.dynamo == nil || strings.TrimSpace(o.table) == "" {
			return nil, fmt.Errorf("%w: dynamodb driver needs a client and table", ErrInvalidConfig)
		}
		ttl := o.ttl
		if ttl <= 0 {
			ttl = defaultDynamoTTL
		}
		return &dynamoStore{api: o.dynamo, table: o.table, ttl: ttl}, nil

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, driver)
	}
}

// NewDynamoDBClient loads the default AWS configuration (environment,
// shared config, instance role) for region and returns a DynamoDB client.
func NewDynamoDBClient(ctx context.Context, region string) (*dynamodb.Client, error) {
	var loadOpts []func(*awsconfig.LoadOptions) error
	if region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(region))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return dynamodb.NewFromConfig(cfg), nil
}
