package db

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as database/sql driver

	"docsign-backend/internal/shared/telemetry"
)

// Profile selects pool sizing for the kind of process that owns the pool.
type Profile string

const (
	ProfileAPI     Profile = "api"
	ProfileLambda  Profile = "lambda"
	ProfileMigrate Profile = "migrate"
)

// Options controls pool sizing and the connectivity check.
type Options struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	PingTimeout     time.Duration
}

var profileOptions = map[Profile]Options{
	ProfileAPI: {
		MaxOpenConns:    10,
		MaxIdleConns:    5,
		ConnMaxIdleTime: 2 * time.Minute,
		ConnMaxLifetime: time.Hour,
		PingTimeout:     5 * time.Second,
	},
	// Lambda fans out by instance, so each one keeps a tiny pool.
	ProfileLambda: {
		MaxOpenConns:    2,
		MaxIdleConns:    1,
		ConnMaxIdleTime: 30 * time.Second,
		ConnMaxLifetime: 15 * time.Minute,
		PingTimeout:     3 * time.Second,
	},
	ProfileMigrate: {
		MaxOpenConns:    1,
		MaxIdleConns:    1,
		ConnMaxIdleTime: 2 * time.Minute,
		ConnMaxLifetime: time.Hour,
		PingTimeout:     5 * time.Second,
	},
}

// Options returns the defaults for p; unknown profiles get the API defaults.
func (p Profile) Options() Options {
	if opts, ok := profileOptions[p]; ok {
		return opts
	}
	return profileOptions[ProfileAPI]
}

// RuntimeProfile returns ProfileLambda inside AWS Lambda and fallback elsewhere.
func RuntimeProfile(fallback Profile) Profile {
	if strings.TrimSpace(os.Getenv("AWS_LAMBDA_FUNCTION_NAME")) != "" {
		return ProfileLambda
	}
	return fallback
}

type override struct {
	key   string
	apply func(o *Options, raw string) error
}

var overrides = []override{
	{"DB_MAX_OPEN_CONNS", func(o *Options, raw string) (err error) { o.MaxOpenConns, err = strconv.Atoi(raw); return }},
	{"DB_MAX_IDLE_CONNS", func(o *Options, raw string) (err error) { o.MaxIdleConns, err = strconv.Atoi(raw); return }},
	{"DB_CONN_MAX_LIFETIME", func(o *Options, raw string) (err error) { o.ConnMaxLifetime, err = time.ParseDuration(raw); return }},
	{"DB_CONN_MAX_IDLE_TIME", func(o *Options, raw string) (err error) { o.ConnMaxIdleTime, err = time.ParseDuration(raw); return }},
	{"DB_PING_TIMEOUT", func(o *Options, raw string) (err error) { o.PingTimeout, err = time.ParseDuration(raw); return }},
}

// Tune applies DB_* overrides found through lookup. Unparseable values are
// logged and ignored.
func (o Options) Tune(lookup func(string) (string, bool)) Options {
	for _, ov := range overrides {
		raw, ok := lookup(ov.key)
		raw = strings.TrimSpace(raw)
		if !ok || raw == "" {
			continue
		}
		next := o
		if err := ov.apply(&next, raw); err != nil {
			telemetry.Warn("db.env.invalid", map[string]any{"key": ov.key, "error": err.Error()})
			continue
		}
		o = next
	}
	return o
}

var openDB = sql.Open

// Open connects using the profile's options tuned from the environment.
// Lambda invocations in one execution environment share a single pool.
func Open(ctx context.Context, databaseURL string, profile Profile) (*sql.DB, error) {
	opts := profile.Options().Tune(os.LookupEnv)
	if profile == ProfileLambda {
		return lambdaPool.get(ctx, databaseURL, opts)
	}
	return Connect(ctx, databaseURL, opts)
}

// Connect opens a pool for databaseURL and pings it before returning.
func Connect(ctx context.Context, databaseURL string, opts Options) (*sql.DB, error) {
	if strings.TrimSpace(databaseURL) == "" {
		return nil, fmt.Errorf("DATABASE_URL is empty")
	}
	database, err := openDB("pgx", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	configure(database, opts)

	timeout := opts.PingTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := database.PingContext(pingCtx); err != nil {
		database.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	stats := database.Stats()
	telemetry.Info("db.connected", map[string]any{
		"open":     stats.OpenConnections,
		"idle":     stats.Idle,
		"max_open": stats.MaxOpenConnections,
	})
	return database, nil
}

// sharedPool holds one pool per process. A failed connect leaves it empty
// so the next caller retries.
type sharedPool struct {
	mu sync.Mutex
	db *sql.DB
}

var lambdaPool sharedPool

func (p *sharedPool) get(ctx context.Context, databaseURL string, opts Options) (*sql.DB, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.db != nil {
		return p.db, nil
	}
	database, err := Connect(ctx, databaseURL, opts)
	if err != nil {
		return nil, err
	}
	p.db = database
	telemetry.Info("db.shared_pool.init", nil)
	return database, nil
}

func (p *sharedPool) reset() {
	p.mu.Lock()
	p.db = nil
	p.mu.Unlock()
}

func configure(database *sql.DB, opts Options) {
	defaults := ProfileAPI.Options()
	if opts.MaxOpenConns <= 0 {
		opts.MaxOpenConns = defaults.MaxOpenConns
	}
	if opts.MaxIdleConns <= 0 {
		opts.MaxIdleConns = defaults.MaxIdleConns
	}
	if opts.ConnMaxLifetime <= 0 {
		opts.ConnMaxLifetime = defaults.ConnMaxLifetime
	}
	database.SetMaxOpenConns(opts.MaxOpenConns)
	database.SetMaxIdleConns(opts.MaxIdleConns)
	database.SetConnMaxLifetime(opts.ConnMaxLifetime)
	if opts.ConnMaxIdleTime > 0 {
		database.SetConnMaxIdleTime(opts.ConnMaxIdleTime)
	}
}

// WithTx runs fn inside a transaction, rolling back when fn fails.
func WithTx(ctx context.Context, database *sql.DB, fn func(tx *sql.Tx) error) error {
	tx, err := database.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}
