package repository

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

type Config struct {
	Driver           string // sqlite (default) | postgres
	DSN              string
	MaxConns         int32
	MinConns         int32
	MaxConnLifetime  time.Duration
	MaxConnIdleTime  time.Duration
	DialTimeout      time.Duration
	StatementTimeout time.Duration
}

// DB is the ent SQL driver plus the pgx pool behind it when running on PostgreSQL.
type DB struct {
	Driver *entsql.Driver
	pool   *pgxpool.Pool
}

// Dialect returns the ent dialect name used to build statements.
func (db *DB) Dialect() string { return db.Driver.Dialect() }

func (db *DB) builder() *entsql.DialectBuilder { return entsql.Dialect(db.Dialect()) }

// Open connects to the configured store, wraps it for ent and creates the schema.
func Open(ctx context.Context, cfg Config, logger *slog.Logger) (*DB, error) {
	if logger == nil {
		logger = slog.Default()
	}
	var (
		db  *DB
		err error
	)
	switch strings.ToLower(cfg.Driver) {
	case "", DriverSQLite:
		db, err = openSQLite(cfg, logger)
	case DriverPostgres:
		db, err = openPostgres(ctx, cfg, logger)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
	if err != nil {
		return nil, err
	}
	if err := db.Migrate(ctx); err != nil {
		db.Close(logger)
		return nil, err
	}
	logger.Info("successfully connected to database", "driver", db.Dialect())
	return db, nil
}

func openSQLite(cfg Config, logger *slog.Logger) (*DB, error) {
	dsn := sqliteDSN(cfg.DSN)
	logger.Info("connecting to database", "driver", DriverSQLite, "dsn", dsn)
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		return nil, err
	}
	// in-memory databases live per connection
	if strings.Contains(dsn, ":memory:") || strings.Contains(dsn, "mode=memory") {
		sqlDB.SetMaxOpenConns(1)
	}
	return &DB{Driver: entsql.OpenDB(dialect.SQLite, sqlDB)}, nil
}

// sqliteDSN turns on foreign keys, which ent's SQLite migration requires.
func sqliteDSN(dsn string) string {
	switch dsn {
	case "":
		dsn = "file:canteen.db?_pragma=busy_timeout(5000)"
	case ":memory:":
		dsn = "file::memory:"
	}
	if strings.Contains(dsn, "foreign_keys") {
		return dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + "_pragma=foreign_keys(1)"
}

// openPostgres creates a pgx pool and wraps it as *sql.DB for ent.
func openPostgres(ctx context.Context, cfg Config, logger *slog.Logger) (*DB, error) {
	logger.Info("connecting to database", "driver", DriverPostgres)
	pc, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		return nil, err
	}

	if cfg.MaxConns > 0 {
		pc.MaxConns = cfg.MaxConns
	}
	pc.MinConns = cfg.MinConns
	pc.MaxConnLifetime = cfg.MaxConnLifetime
	pc.MaxConnIdleTime = cfg.MaxConnIdleTime
	pc.ConnConfig.RuntimeParams["application_name"] = "canteen-orders"
	if cfg.StatementTimeout > 0 {
		pc.ConnConfig.RuntimeParams["statement_timeout"] = fmt.Sprintf("%d", cfg.StatementTimeout.Milliseconds())
	}

	dialCtx, cancel := context.WithTimeout(ctx, dialTimeout(cfg))
	defer cancel()
	pool, err := pgxpool.NewWithConfig(dialCtx, pc)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		return nil, err
	}

	sqlDB := stdlib.OpenDBFromPool(pool)
	return &DB{Driver: entsql.OpenDB(dialect.Postgres, sqlDB), pool: pool}, nil
}

func dialTimeout(cfg Config) time.Duration {
	if cfg.DialTimeout > 0 {
		return cfg.DialTimeout
	}
	return 5 * time.Second
}

// Close closes the database connections gracefully
func (db *DB) Close(logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("closing database connections")
	if db.Driver != nil {
		if err := db.Driver.Close(); err != nil {
			logger.Error("failed to close ent driver", "error", err)
		}
	}
	if db.pool != nil {
		db.pool.Close()
	}
	logger.Info("database connections closed")
}

// HealthCheck pings the store to catch DSN issues early.
func (db *DB) HealthCheck(ctx context.Context, timeout time.Duration) error {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	if db.pool != nil {
		return db.pool.Ping(ctx)
	}
	return db.Driver.DB().PingContext(ctx)
}
