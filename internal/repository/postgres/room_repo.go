package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/vedran77/chorus/internal/domain"
)

type RoomRepo struct {
	pool *pgxpool.Pool
}

func NewRoomRepo(pool *pgxpool.Pool) *RoomRepo {
	return &RoomRepo{pool: pool}
}

type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

func insertRoom(ctx context.Context, db execer, id, serverID uuid.UUID, kind domain.RoomKind, at time.Time) error {
	_, err := db.Exec(ctx, `
		INSERT INTO rooms (id, kind, server_id, last_sequence, created_at)
		VALUES ($1, $2, $3, 0, $4)`,
		id, kind, serverID, at,
	)
	if err != nil {
		return fmt.Errorf("inserting room: %w", translate(err))
	}
	return nil
}

func insertChannel(ctx context.Context, tx pgx.Tx, ch *domain.Channel) error {
	if err := insertRoom(ctx, tx, ch.ID, ch.ServerID, domain.RoomKindChannel, ch.CreatedAt); err != nil {
		return err
	}
	_, err := tx.Exec(ctx, `
		INSERT INTO channels (room_id, server_id, name, type, created_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		ch.ID, ch.ServerID, ch.Name, ch.Type, ch.CreatedBy, ch.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting channel: %w", translate(err))
	}
	return nil
}

func (r *RoomRepo) GetRoom(ctx context.Context, id uuid.UUID) (*domain.Room, error) {
	var room domain.Room
	err := r.pool.QueryRow(ctx,
		`SELECT id, kind, server_id, last_sequence, created_at FROM rooms WHERE id = $1`, id,
	).Scan(&room.ID, &room.Kind, &room.ServerID, &room.LastSequence, &room.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &room, nil
}

func (r *RoomRepo) CreateChannel(ctx context.Context, ch *domain.Channel) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		return insertChannel(ctx, tx, ch)
	})
}

const channelColumns = "room_id, server_id, name, type, created_by, created_at"

func (r *RoomRepo) GetChannel(ctx context.Context, id uuid.UUID) (*domain.Channel, error) {
	return r.scanChannel(ctx, "SELECT "+channelColumns+" FROM channels WHERE room_id = $1", id)
}

func (r *RoomRepo) GetChannelByName(ctx context.Context, serverID uuid.UUID, name string) (*domain.Channel, error) {
	return r.scanChannel(ctx, "SELECT "+channelColumns+" FROM channels WHERE server_id = $1 AND name = $2", serverID, name)
}

func (r *RoomRepo) ListChannels(ctx context.Context, serverID uuid.UUID) ([]domain.Channel, error) {
	rows, err := r.pool.Query(ctx,
		"SELECT "+channelColumns+" FROM channels WHERE server_id = $1 ORDER BY created_at", serverID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var channels []domain.Channel
	for rows.Next() {
		var ch domain.Channel
		if err := rows.Scan(&ch.ID, &ch.ServerID, &ch.Name, &ch.Type, &ch.CreatedBy, &ch.CreatedAt); err != nil {
			return nil, err
		}
		channels = append(channels, ch)
	}
	return channels, rows.Err()
}

func (r *RoomRepo) CreateConversation(ctx context.Context, conv *domain.Conversation) (*domain.Conversation, error) {
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		if err := insertRoom(ctx, tx, conv.ID, conv.ServerID, domain.RoomKindConversation, conv.CreatedAt); err != nil {
			return err
		}
		_, err := tx.Exec(ctx, `
			INSERT INTO conversations (room_id, server_id, member_one_id, member_two_id, created_at)
			VALUES ($1, $2, $3, $4, $5)`,
			conv.ID, conv.ServerID, conv.MemberOneID, conv.MemberTwoID, conv.CreatedAt,
		)
		if err != nil {
			return translate(err)
		}
		return nil
	})
	if errors.Is(err, domain.ErrConflict) {
		// Drugi request je stigao prvi, vrati postojeci razgovor
		return r.GetConversationByMembers(ctx, conv.MemberOneID, conv.MemberTwoID)
	}
	if err != nil {
		return nil, fmt.Errorf("creating conversation: %w", err)
	}
	return conv, nil
}

const conversationColumns = "room_id, server_id, member_one_id, member_two_id, created_at"

func (r *RoomRepo) GetConversation(ctx context.Context, id uuid.UUID) (*domain.Conversation, error) {
	return r.scanConversation(ctx, "SELECT "+conversationColumns+" FROM conversations WHERE room_id = $1", id)
}

func (r *RoomRepo) GetConversationByMembers(ctx context.Context, memberOneID, memberTwoID uuid.UUID) (*domain.Conversation, error) {
	return r.scanConversation(ctx,
		"SELECT "+conversationColumns+" FROM conversations WHERE member_one_id = $1 AND member_two_id = $2",
		memberOneID, memberTwoID)
}

func (r *RoomRepo) scanChannel(ctx context.Context, query string, args ...any) (*domain.Channel, error) {
	var ch domain.Channel
	err := r.pool.QueryRow(ctx, query, args...).Scan(
		&ch.ID, &ch.ServerID, &ch.Name, &ch.Type, &ch.CreatedBy, &ch.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &ch, nil
}

func (r *RoomRepo) scanConversation(ctx context.Context, query string, args ...any) (*domain.Conversation, error) {
	var conv domain.Conversation
	err := r.pool.QueryRow(ctx, query, args...).Scan(
		&conv.ID, &conv.ServerID, &conv.MemberOneID, &conv.MemberTwoID, &conv.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &conv, nil
}
