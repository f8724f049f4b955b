package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/vedran77/chorus/internal/domain"
	"github.com/vedran77/chorus/internal/repository"
)

type MessageRepo struct {
	pool *pgxpool.Pool
}

func NewMessageRepo(pool *pgxpool.Pool) *MessageRepo {
	return &MessageRepo{pool: pool}
}

const messageSelect = `
	SELECT msg.id, msg.room_id, msg.author_id, msg.content, msg.file_url, msg.sequence, msg.version,
		msg.deleted, msg.edited_at, msg.created_at, msg.updated_at,
		COALESCE(u.username, ''), COALESCE(u.display_name, ''), COALESCE(mem.role, '')
	FROM messages msg
	LEFT JOIN members mem ON msg.author_id = mem.id
	LEFT JOIN users u ON mem.user_id = u.id`

// Create bumps rooms.last_sequence and inserts the message in one
// transaction. The row lock on the room serializes concurrent writers of
// the same room, including writers on other instances.
func (r *MessageRepo) Create(ctx context.Context, msg *domain.Message) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		var seq int64
		err := tx.QueryRow(ctx,
			`UPDATE rooms SET last_sequence = last_sequence + 1 WHERE id = $1 RETURNING last_sequence`,
			msg.RoomID,
		).Scan(&seq)
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("room %s: %w", msg.RoomID, domain.ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("assigning sequence: %w", err)
		}

		msg.Sequence = seq
		_, err = tx.Exec(ctx, `
			INSERT INTO messages (id, room_id, author_id, content, file_url, sequence, version, deleted, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, false, $8, $9)`,
			msg.ID, msg.RoomID, msg.AuthorID, msg.Content, msg.FileURL, msg.Sequence, msg.Version, msg.CreatedAt, msg.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("inserting message: %w", translate(err))
		}
		return nil
	})
}

func (r *MessageRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Message, error) {
	msg, err := scanMessage(r.pool.QueryRow(ctx, messageSelect+` WHERE msg.id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return msg, err
}

func (r *MessageRepo) List(ctx context.Context, q repository.MessageQuery) ([]domain.Message, error) {
	var (
		query string
		args  []any
	)

	switch {
	case q.After != nil:
		query = messageSelect + `
			WHERE msg.room_id = $1 AND msg.sequence > $2
			ORDER BY msg.sequence ASC
			LIMIT $3`
		args = []any{q.RoomID, *q.After, q.Limit}
	case q.Before != nil:
		query = messageSelect + `
			WHERE msg.room_id = $1 AND msg.sequence < $2
			ORDER BY msg.sequence DESC
			LIMIT $3`
		args = []any{q.RoomID, *q.Before, q.Limit}
	default:
		query = messageSelect + `
			WHERE msg.room_id = $1
			ORDER BY msg.sequence DESC
			LIMIT $2`
		args = []any{q.RoomID, q.Limit}
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []domain.Message
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		messages = append(messages, *msg)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if q.After == nil {
		// Reverse da budu chronological (query ih daje DESC)
		for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
			messages[i], messages[j] = messages[j], messages[i]
		}
	}
	return messages, nil
}

func (r *MessageRepo) UpdateContent(ctx context.Context, id uuid.UUID, content string) (*domain.Message, error) {
	now := time.Now().UTC()
	tag, err := r.pool.Exec(ctx, `
		UPDATE messages
		SET content = $1, edited_at = $2, updated_at = $2, version = version + 1
		WHERE id = $3 AND deleted = false AND file_url IS NULL`,
		content, now, id,
	)
	if err != nil {
		return nil, err
	}
	if tag.RowsAffected() == 0 {
		return nil, nil
	}
	return r.GetByID(ctx, id)
}

func (r *MessageRepo) SoftDelete(ctx context.Context, id uuid.UUID) (*domain.Message, bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE messages
		SET deleted = true, content = NULL, file_url = NULL, updated_at = $1, version = version + 1
		WHERE id = $2 AND deleted = false`,
		time.Now().UTC(), id,
	)
	if err != nil {
		return nil, false, err
	}
	msg, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, false, err
	}
	return msg, tag.RowsAffected() > 0, nil
}

func scanMessage(row pgx.Row) (*domain.Message, error) {
	var msg domain.Message
	err := row.Scan(
		&msg.ID, &msg.RoomID, &msg.AuthorID, &msg.Content, &msg.FileURL, &msg.Sequence, &msg.Version,
		&msg.Deleted, &msg.EditedAt, &msg.CreatedAt, &msg.UpdatedAt,
		&msg.AuthorUsername, &msg.AuthorDisplayName, &msg.AuthorRole,
	)
	if err != nil {
		return nil, err
	}
	msg.Decorate()
	return &msg, nil
}
