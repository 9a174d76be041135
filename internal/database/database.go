package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/seuros/amiri/internal/logging"
)

// DB is the shared connection pool. Tests swap it for a sqlmock handle.
var DB *sql.DB

// ErrNoDatabaseURL is returned by Connect when no URL is configured.
var ErrNoDatabaseURL = errors.New("database URL not set (use --database-url, database_url or DATABASE_URL)")

// ErrNotConnected is returned by queries issued before Connect.
var ErrNotConnected = errors.New("database not connected")

var pingTimeout = 10 * time.Second

// Connect opens the pgx-backed pool and verifies it with a ping.
func Connect(databaseURL string) error {
	if databaseURL == "" {
		return ErrNoDatabaseURL
	}

	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}

	DB = db
	logging.L().Info("database connected")
	return nil
}

// Close releases the shared pool, if any.
func Close() error {
	if DB == nil {
		return nil
	}
	err := DB.Close()
	DB = nil
	return err
}

// Available reports whether Connect has succeeded.
func Available() bool {
	return DB != nil
}
