package database

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/url"
	"os"
	"time"

	"github.com/nfrund/evmarket/internal/config"
	"github.com/nfrund/evmarket/internal/domain"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Database owns the connection pool shared by every store. gorm hands out a
// fresh session per call, so stores never share mutable statement state.
type Database struct {
	db             *gorm.DB
	queryTimeout   time.Duration
	executeTimeout time.Duration
}

// Option configures a Database.
type Option func(*options)

type options struct {
	backoff      Backoff
	maxOpenConns int
}

// WithBackoff overrides the retry policy used while establishing the connection.
func WithBackoff(b Backoff) Option {
	return func(o *options) { o.backoff = b }
}

// WithMaxOpenConns caps the size of the connection pool.
func WithMaxOpenConns(n int) Option {
	return func(o *options) { o.maxOpenConns = n }
}

// NewDB opens the configured database and verifies it answers a ping,
// retrying with exponential backoff while the server comes up.
func NewDB(ctx context.Context, cfg config.Provider, opts ...Option) (*Database, error) {
	o := options{backoff: DefaultBackoff(), maxOpenConns: 25}
	for _, opt := range opts {
		opt(&o)
	}

	var dialector gorm.Dialector
	switch cfg.GetDBDriver() {
	case "postgres":
		dialector = postgres.Open(cfg.GetDBDSN())
	case "sqlite":
		dialector = sqlite.Open(cfg.GetDBDSN())
	default:
		return nil, NewDBError(ErrInvalidInput, fmt.Sprintf("unsupported driver %q", cfg.GetDBDriver()))
	}

	gormLogger := logger.New(log.New(os.Stderr, "\r\n", log.LstdFlags), logger.Config{
		SlowThreshold:             200 * time.Millisecond,
		LogLevel:                  logger.Warn,
		IgnoreRecordNotFoundError: true,
	})

	gormConfig := &gorm.Config{
		TranslateError: true,
		Logger:         gormLogger,
		NowFunc:        func() time.Time { return time.Now().UTC() },
	}
	var gdb *gorm.DB
	err := o.backoff.Retry(ctx, func() error {
		var openErr error
		gdb, openErr = openAndPing(ctx, func() (*gorm.DB, error) {
			return gorm.Open(dialector, gormConfig)
		})
		return openErr
	})
	if err != nil {
		slog.ErrorContext(ctx, "Failed to connect to database", "event", "db_connect_failure",
			"driver", cfg.GetDBDriver(), "dsn", redactDSN(cfg.GetDBDSN()), "error", err)
		return nil, NewDBError(err, "failed to connect to database")
	}

	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, NewDBError(err, "failed to get database instance")
	}
	sqlDB.SetMaxOpenConns(o.maxOpenConns)
	sqlDB.SetMaxIdleConns(o.maxOpenConns)
	sqlDB.SetConnMaxLifetime(time.Hour)

	slog.InfoContext(ctx, "Database connection established", "event", "db_connect_success",
		"driver", cfg.GetDBDriver(), "dsn", redactDSN(cfg.GetDBDSN()))

	return &Database{
		db:             gdb,
		queryTimeout:   cfg.GetDBQueryTimeout(),
		executeTimeout: cfg.GetDBExecuteTimeout(),
	}, nil
}

// openAndPing opens a pool and checks that it answers. A pool that fails the
// ping is closed before the error is returned.
func openAndPing(ctx context.Context, open func() (*gorm.DB, error)) (*gorm.DB, error) {
	gdb, err := open()
	if err != nil {
		return nil, err
	}
	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, err
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, err
	}
	return gdb, nil
}

// Migrate creates or updates the chat tables.
func (d *Database) Migrate(ctx context.Context) error {
	ctx, cancel := d.executeContext(ctx)
	defer cancel()

	if err := d.db.WithContext(ctx).AutoMigrate(&domain.Conversation{}, &domain.Message{}); err != nil {
		return NewDBError(err, "failed to migrate database")
	}
	slog.InfoContext(ctx, "Database migration completed", "event", "db_migrate_success")
	return nil
}

// Ping checks the database connection.
func (d *Database) Ping(ctx context.Context) error {
	ctx, cancel := d.queryContext(ctx)
	defer cancel()

	sqlDB, err := d.db.DB()
	if err != nil {
		return NewDBError(ErrNotConnected, err.Error())
	}
	return sqlDB.PingContext(ctx)
}

// Close closes the underlying connection pool.
func (d *Database) Close() error {
	sqlDB, err := d.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Gorm exposes the raw handle for tests and maintenance commands.
func (d *Database) Gorm() *gorm.DB {
	return d.db
}

func (d *Database) queryContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return getTimeoutFromContext(ctx, d.queryTimeout, ContextKeyQueryTimeout)
}

func (d *Database) executeContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return getTimeoutFromContext(ctx, d.executeTimeout, ContextKeyExecuteTimeout)
}

// redactDSN hides the password of URL-style DSNs. Key/value DSNs are reduced
// to a placeholder because they cannot be redacted reliably.
func redactDSN(dsn string) string {
	u, err := url.Parse(dsn)
	if err != nil || u.Scheme == "" || u.Scheme == "file" {
		if u != nil && u.Scheme == "file" {
			return dsn
		}
		return "redacted-dsn"
	}
	return u.Redacted()
}
