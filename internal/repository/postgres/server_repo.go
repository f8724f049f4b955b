package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/vedran77/chorus/internal/domain"
)

type ServerRepo struct {
	pool *pgxpool.Pool
}

func NewServerRepo(pool *pgxpool.Pool) *ServerRepo {
	return &ServerRepo{pool: pool}
}

const serverColumns = "s.id, s.name, s.image_url, s.invite_code, s.owner_id, s.created_at, s.updated_at"

func (r *ServerRepo) Create(ctx context.Context, s *domain.Server, owner *domain.Member, general *domain.Channel) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO servers (id, name, image_url, invite_code, owner_id, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			s.ID, s.Name, s.ImageURL, s.InviteCode, s.OwnerID, s.CreatedAt, s.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("inserting server: %w", translate(err))
		}

		_, err = tx.Exec(ctx, `
			INSERT INTO members (id, server_id, user_id, role, created_at)
			VALUES ($1, $2, $3, $4, $5)`,
			owner.ID, owner.ServerID, owner.UserID, owner.Role, owner.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("inserting owner member: %w", translate(err))
		}

		return insertChannel(ctx, tx, general)
	})
}

func (r *ServerRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Server, error) {
	return r.scanServer(ctx, "SELECT "+serverColumns+" FROM servers s WHERE s.id = $1", id)
}

func (r *ServerRepo) GetByInviteCode(ctx context.Context, code string) (*domain.Server, error) {
	return r.scanServer(ctx, "SELECT "+serverColumns+" FROM servers s WHERE s.invite_code = $1", code)
}

func (r *ServerRepo) ListByUser(ctx context.Context, userID uuid.UUID) ([]domain.Server, error) {
	query := `
		SELECT ` + serverColumns + `
		FROM servers s
		INNER JOIN members m ON s.id = m.server_id
		WHERE m.user_id = $1 AND m.left_at IS NULL
		ORDER BY s.created_at DESC`

	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var servers []domain.Server
	for rows.Next() {
		var s domain.Server
		if err := rows.Scan(&s.ID, &s.Name, &s.ImageURL, &s.InviteCode, &s.OwnerID, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, err
		}
		servers = append(servers, s)
	}
	return servers, rows.Err()
}

func (r *ServerRepo) Update(ctx context.Context, s *domain.Server) error {
	query := `UPDATE servers SET name = $1, image_url = $2, invite_code = $3, updated_at = $4 WHERE id = $5`
	_, err := r.pool.Exec(ctx, query, s.Name, s.ImageURL, s.InviteCode, s.UpdatedAt, s.ID)
	return translate(err)
}

func (r *ServerRepo) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM servers WHERE id = $1`, id)
	return err
}

// AddMember reactivates a former membership of the same user instead of
// inserting a second row, so old messages keep pointing at it.
func (r *ServerRepo) AddMember(ctx context.Context, m *domain.Member) error {
	query := `
		INSERT INTO members (id, server_id, user_id, role, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (server_id, user_id) DO UPDATE
		SET role = EXCLUDED.role, created_at = EXCLUDED.created_at, left_at = NULL
		WHERE members.left_at IS NOT NULL
		RETURNING id`
	var id uuid.UUID
	err := r.pool.QueryRow(ctx, query, m.ID, m.ServerID, m.UserID, m.Role, m.CreatedAt).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		// active membership already exists
		return fmt.Errorf("%w: members_server_id_user_id_key", domain.ErrConflict)
	}
	if err != nil {
		return translate(err)
	}
	m.ID = id
	return nil
}

func (r *ServerRepo) RemoveMember(ctx context.Context, memberID uuid.UUID) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE members SET left_at = now() WHERE id = $1 AND left_at IS NULL`, memberID)
	return err
}

func (r *ServerRepo) UpdateMemberRole(ctx context.Context, memberID uuid.UUID, role domain.MemberRole) error {
	_, err := r.pool.Exec(ctx, `UPDATE members SET role = $1 WHERE id = $2 AND left_at IS NULL`, role, memberID)
	return err
}

const memberQuery = `
	SELECT m.id, m.server_id, m.user_id, m.role, m.created_at, u.username, u.display_name
	FROM members m
	JOIN users u ON m.user_id = u.id
	WHERE m.left_at IS NULL`

func (r *ServerRepo) GetMember(ctx context.Context, serverID, userID uuid.UUID) (*domain.Member, error) {
	return r.scanMember(ctx, memberQuery+` AND m.server_id = $1 AND m.user_id = $2`, serverID, userID)
}

func (r *ServerRepo) GetMemberByID(ctx context.Context, memberID uuid.UUID) (*domain.Member, error) {
	return r.scanMember(ctx, memberQuery+` AND m.id = $1`, memberID)
}

func (r *ServerRepo) ListMembers(ctx context.Context, serverID uuid.UUID) ([]domain.Member, error) {
	rows, err := r.pool.Query(ctx, memberQuery+` AND m.server_id = $1 ORDER BY m.role, m.created_at`, serverID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var members []domain.Member
	for rows.Next() {
		var m domain.Member
		if err := rows.Scan(&m.ID, &m.ServerID, &m.UserID, &m.Role, &m.CreatedAt, &m.Username, &m.DisplayName); err != nil {
			return nil, err
		}
		members = append(members, m)
	}
	return members, rows.Err()
}

func (r *ServerRepo) scanServer(ctx context.Context, query string, arg any) (*domain.Server, error) {
	var s domain.Server
	err := r.pool.QueryRow(ctx, query, arg).Scan(
		&s.ID, &s.Name, &s.ImageURL, &s.InviteCode, &s.OwnerID, &s.CreatedAt, &s.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *ServerRepo) scanMember(ctx context.Context, query string, args ...any) (*domain.Member, error) {
	var m domain.Member
	err := r.pool.QueryRow(ctx, query, args...).Scan(
		&m.ID, &m.ServerID, &m.UserID, &m.Role, &m.CreatedAt, &m.Username, &m.DisplayName,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}
