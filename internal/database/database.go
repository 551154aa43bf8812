package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"register-shift-service/internal/config"
	"register-shift-service/internal/logger"
)

type Dialect string

const (
	MySQL  Dialect = "mysql"
	SQLite Dialect = "sqlite"
)

type Database struct {
	DB      *sql.DB
	Dialect Dialect
}

// NewDatabase opens the state database described by cfg.Type ("mysql" or "sqlite").
func NewDatabase(cfg config.StateStorage) (*Database, error) {
	var (
		dialect Dialect
		dsn     string
	)
	switch cfg.Type {
	case "mysql":
		dialect = MySQL
		dsn = fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true&multiStatements=true",
			cfg.User, cfg.Password, cfg.Host, cfg.Port, cfg.Database)
	case "sqlite":
		dialect = SQLite
		dsn = cfg.FilePath
		if dsn == "" {
			dsn = ":memory:"
		}
	default:
		return nil, fmt.Errorf("unsupported sql storage type %q", cfg.Type)
	}

	db, err := sql.Open(string(dialect), dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	// Connection pool settings
	if dialect == SQLite {
		// Single writer; also keeps ":memory:" databases on one connection.
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
		if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
			logger.Log.Debug("Failed to set sqlite busy_timeout", zap.Error(err))
		}
	} else {
		db.SetMaxOpenConns(5)
		db.SetMaxIdleConns(2)
		db.SetConnMaxLifetime(time.Hour)
	}

	logger.Log.Info("Connected to state database",
		zap.String("dialect", string(dialect)),
		zap.String("host", cfg.Host),
		zap.String("database", cfg.Database),
	)

	return &Database{
		DB:      db,
		Dialect: dialect,
	}, nil
}

func (d *Database) Close() error {
	return d.DB.Close()
}

// ExecTx executes a function within a transaction
func (d *Database) ExecTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := d.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("tx err: %v, rb err: %v", err, rbErr)
		}
		return err
	}

	return tx.Commit()
}
