package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id UUID PRIMARY KEY,
		email VARCHAR(255) UNIQUE NOT NULL,
		username VARCHAR(50) UNIQUE NOT NULL,
		display_name VARCHAR(100) NOT NULL,
		password_hash TEXT NOT NULL,
		avatar_url TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,

	`CREATE TABLE IF NOT EXISTS servers (
		id UUID PRIMARY KEY,
		name VARCHAR(100) NOT NULL,
		image_url TEXT,
		invite_code VARCHAR(64) UNIQUE NOT NULL,
		owner_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,

	`CREATE TABLE IF NOT EXISTS members (
		id UUID PRIMARY KEY,
		server_id UUID NOT NULL REFERENCES servers(id) ON DELETE CASCADE,
		user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		role VARCHAR(10) NOT NULL CHECK (role IN ('ADMIN', 'MODERATOR', 'GUEST')) DEFAULT 'GUEST',
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		left_at TIMESTAMPTZ,
		UNIQUE (server_id, user_id)
	)`,

	`CREATE TABLE IF NOT EXISTS rooms (
		id UUID PRIMARY KEY,
		kind VARCHAR(12) NOT NULL CHECK (kind IN ('channel', 'conversation')),
		server_id UUID NOT NULL REFERENCES servers(id) ON DELETE CASCADE,
		last_sequence BIGINT NOT NULL DEFAULT 0,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,

	`CREATE TABLE IF NOT EXISTS channels (
		room_id UUID PRIMARY KEY REFERENCES rooms(id) ON DELETE CASCADE,
		server_id UUID NOT NULL REFERENCES servers(id) ON DELETE CASCADE,
		name VARCHAR(100) NOT NULL,
		type VARCHAR(5) NOT NULL CHECK (type IN ('TEXT', 'AUDIO', 'VIDEO')) DEFAULT 'TEXT',
		created_by UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		UNIQUE (server_id, name)
	)`,

	`CREATE TABLE IF NOT EXISTS conversations (
		room_id UUID PRIMARY KEY REFERENCES rooms(id) ON DELETE CASCADE,
		server_id UUID NOT NULL REFERENCES servers(id) ON DELETE CASCADE,
		member_one_id UUID NOT NULL REFERENCES members(id),
		member_two_id UUID NOT NULL REFERENCES members(id),
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		UNIQUE (member_one_id, member_two_id),
		CHECK (member_one_id::text < member_two_id::text)
	)`,

	`CREATE TABLE IF NOT EXISTS messages (
		id UUID PRIMARY KEY,
		room_id UUID NOT NULL REFERENCES rooms(id) ON DELETE CASCADE,
		author_id UUID NOT NULL REFERENCES members(id),
		content TEXT,
		file_url TEXT,
		sequence BIGINT NOT NULL,
		version BIGINT NOT NULL DEFAULT 1,
		deleted BOOLEAN NOT NULL DEFAULT false,
		edited_at TIMESTAMPTZ,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		UNIQUE (room_id, sequence)
	)`,

	// Members are never deleted on their own, only with their server.
	`ALTER TABLE members ADD COLUMN IF NOT EXISTS left_at TIMESTAMPTZ`,

	`CREATE INDEX IF NOT EXISTS idx_members_user ON members (user_id)`,
	`CREATE INDEX IF NOT EXISTS idx_messages_author ON messages (author_id)`,
}

// Migrate creates the schema if it does not exist yet.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	for _, stmt := range schema {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}
	return nil
}
