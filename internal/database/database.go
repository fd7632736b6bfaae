package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	_ "modernc.org/sqlite"

	"github.com/groupquest/partyboard/internal/models"
)

func Connect(databaseURL string) (*bun.DB, error) {
	path := strings.TrimPrefix(databaseURL, "sqlite://")

	sqldb, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite: %w", err)
	}

	if _, err := sqldb.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return nil, fmt.Errorf("failed to set WAL mode: %w", err)
	}

	if _, err := sqldb.Exec("PRAGMA foreign_keys=ON"); err != nil {
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	db := bun.NewDB(sqldb, sqlitedialect.New())

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logrus.WithField("path", path).Info("Connected to SQLite")
	return db, nil
}

func Migrate(ctx context.Context, db *bun.DB) error {
	logrus.Info("Running database migrations...")

	tables := []interface{}{
		(*models.Room)(nil),
		(*models.RoomMember)(nil),
		(*models.JoinRequest)(nil),
		(*models.Profile)(nil),
	}

	for _, model := range tables {
		_, err := db.NewCreateTable().
			Model(model).
			IfNotExists().
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to create table for %T: %w", model, err)
		}
	}

	indexes := []struct {
		name  string
		query string
	}{
		{
			"idx_room_members_unique",
			"CREATE UNIQUE INDEX IF NOT EXISTS idx_room_members_unique ON room_members (room_id, account_id)",
		},
		{
			"idx_room_members_account",
			"CREATE INDEX IF NOT EXISTS idx_room_members_account ON room_members (account_id)",
		},
		{
			// One pending request per (room, requester). A duplicate
			// submission fails at write time instead of being checked
			// client-side.
			"idx_join_requests_unique",
			"CREATE UNIQUE INDEX IF NOT EXISTS idx_join_requests_unique ON join_requests (room_id, account_id)",
		},
		{
			"idx_rooms_owner",
			"CREATE INDEX IF NOT EXISTS idx_rooms_owner ON rooms (owner_id)",
		},
		{
			"idx_rooms_expires",
			"CREATE INDEX IF NOT EXISTS idx_rooms_expires ON rooms (expires_at)",
		},
	}

	for _, idx := range indexes {
		if _, err := db.ExecContext(ctx, idx.query); err != nil {
			return fmt.Errorf("failed to create index %s: %w", idx.name, err)
		}
	}

	logrus.Info("Migrations complete")
	return nil
}
