package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// ErrNotFound 记录不存在
var ErrNotFound = errors.New("not found")

// schemaStatements 服务启动时执行的建表语句（幂等）
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS devices (
		device_id     TEXT PRIMARY KEY,
		name          TEXT NOT NULL DEFAULT '',
		serial_number TEXT NOT NULL DEFAULT '',
		owner_id      TEXT,
		created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_devices_serial ON devices (serial_number) WHERE serial_number <> ''`,
	`CREATE TABLE IF NOT EXISTS events (
		id          TEXT PRIMARY KEY,
		device_id   TEXT NOT NULL,
		type        TEXT NOT NULL,
		occurred_at TIMESTAMPTZ NOT NULL,
		created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_events_device_time ON events (device_id, occurred_at)`,
	`CREATE TABLE IF NOT EXISTS connections (
		connection_id TEXT PRIMARY KEY,
		user_id       TEXT NOT NULL,
		device_id     TEXT NOT NULL REFERENCES devices (device_id),
		created_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
		UNIQUE (user_id, device_id)
	)`,
	`CREATE TABLE IF NOT EXISTS push_tokens (
		token      TEXT PRIMARY KEY,
		user_id    TEXT NOT NULL,
		platform   TEXT NOT NULL DEFAULT '',
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_push_tokens_user ON push_tokens (user_id)`,
}

// Migrate 执行建表语句
func Migrate(ctx context.Context, db *sql.DB) error {
	for i, stmt := range schemaStatements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema statement %d: %w", i, err)
		}
	}
	return nil
}
