package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/stdlib"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
)

const (
	DriverPG  = "pg"
	DriverPGX = "pgx"
)

// Options selects the Postgres driver and pool size.
type Options struct {
	URL          string
	Driver       string
	MaxOpenConns int
}

// Connector lazily opens one shared DB handle for the process lifetime.
// A failed attempt is not cached, so the next caller retries.
type Connector struct {
	open func(ctx context.Context) (*bun.DB, error)

	mu sync.Mutex
	db *bun.DB
}

func NewConnector(opts Options) *Connector {
	return &Connector{open: func(ctx context.Context) (*bun.DB, error) {
		return Open(ctx, opts)
	}}
}

// NewConnectorWithOpener is test-only.
func NewConnectorWithOpener(open func(ctx context.Context) (*bun.DB, error)) *Connector {
	return &Connector{open: open}
}

// DB returns the shared handle, connecting on first use.
func (c *Connector) DB(ctx context.Context) (*bun.DB, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.db != nil {
		return c.db, nil
	}
	db, err := c.open(ctx)
	if err != nil {
		return nil, err
	}
	c.db = db
	return db, nil
}

func (c *Connector) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.db == nil {
		return nil
	}
	err := c.db.Close()
	c.db = nil
	return err
}

// Open connects and pings using the configured driver.
func Open(ctx context.Context, opts Options) (*bun.DB, error) {
	if opts.URL == "" {
		return nil, fmt.Errorf("postgres url not configured")
	}

	var sqldb *sql.DB
	switch opts.Driver {
	case "", DriverPG:
		sqldb = sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(opts.URL)))
	case DriverPGX:
		cfg, err := pgx.ParseConfig(opts.URL)
		if err != nil {
			return nil, fmt.Errorf("parse postgres url: %w", err)
		}
		sqldb = stdlib.OpenDB(*cfg)
	default:
		return nil, fmt.Errorf("unknown postgres driver %q", opts.Driver)
	}
	if opts.MaxOpenConns > 0 {
		sqldb.SetMaxOpenConns(opts.MaxOpenConns)
		sqldb.SetMaxIdleConns(opts.MaxOpenConns)
	}

	db := bun.NewDB(sqldb, pgdialect.New())
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return db, nil
}
