package adapter

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5/pgxpool"

	chat "go-hirechat/internal/pkg/chat/application/domain"
	repository "go-hirechat/internal/pkg/chat/persistence/repository/port"
)

// PgUserRepository reads the account module's users table.
type PgUserRepository struct {
	pool *pgxpool.Pool
}

func NewPgUserRepository(pool *pgxpool.Pool) *PgUserRepository {
	return &PgUserRepository{pool: pool}
}

var _ repository.UserDirectory = (*PgUserRepository)(nil)

func (r *PgUserRepository) Exists(ctx context.Context, userID int64) (bool, error) {
	if r == nil || r.pool == nil {
		return false, errors.New("PgUserRepository: nil pool")
	}
	var ok bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM users WHERE id = $1)`, userID).Scan(&ok)
	return ok, err
}

func (r *PgUserRepository) Profiles(ctx context.Context, userIDs []int64) (map[int64]chat.UserProfile, error) {
	if r == nil || r.pool == nil {
		return nil, errors.New("PgUserRepository: nil pool")
	}
	out := make(map[int64]chat.UserProfile, len(userIDs))
	if len(userIDs) == 0 {
		return out, nil
	}
	rows, err := r.pool.Query(ctx, `SELECT id, nickname, avatar_url FROM users WHERE id = ANY($1)`, userIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var p chat.UserProfile
		if err := rows.Scan(&p.ID, &p.Nickname, &p.AvatarURL); err != nil {
			return nil, err
		}
		out[p.ID] = p
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return out, nil
}

// PgApplicationRepository answers correlation checks against the
// application module's table.
type PgApplicationRepository struct {
	pool *pgxpool.Pool
}

func NewPgApplicationRepository(pool *pgxpool.Pool) *PgApplicationRepository {
	return &PgApplicationRepository{pool: pool}
}

var _ repository.ApplicationLookup = (*PgApplicationRepository)(nil)

func (r *PgApplicationRepository) Exists(ctx context.Context, applicationID int64) (bool, error) {
	if r == nil || r.pool == nil {
		return false, errors.New("PgApplicationRepository: nil pool")
	}
	var ok bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM applications WHERE id = $1)`, applicationID).Scan(&ok)
	return ok, err
}
