package adapter

import (
	"context"
	"errors"

	"github.com/jmoiron/sqlx"

	chat "go-hirechat/internal/pkg/chat/application/domain"
	repository "go-hirechat/internal/pkg/chat/persistence/repository/port"
)

type SQLiteUserRepository struct {
	db *sqlx.DB
}

func NewSQLiteUserRepository(db *sqlx.DB) *SQLiteUserRepository {
	return &SQLiteUserRepository{db: db}
}

var _ repository.UserDirectory = (*SQLiteUserRepository)(nil)

func (r *SQLiteUserRepository) Exists(ctx context.Context, userID int64) (bool, error) {
	if r == nil || r.db == nil {
		return false, errors.New("SQLiteUserRepository: nil db")
	}
	var n int
	if err := r.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM users WHERE id = ?`, userID); err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *SQLiteUserRepository) Profiles(ctx context.Context, userIDs []int64) (map[int64]chat.UserProfile, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("SQLiteUserRepository: nil db")
	}
	out := make(map[int64]chat.UserProfile, len(userIDs))
	if len(userIDs) == 0 {
		return out, nil
	}
	query, args, err := sqlx.In(`SELECT id, nickname, avatar_url FROM users WHERE id IN (?)`, userIDs)
	if err != nil {
		return nil, err
	}
	var profiles []chat.UserProfile
	if err := r.db.SelectContext(ctx, &profiles, r.db.Rebind(query), args...); err != nil {
		return nil, err
	}
	for _, p := range profiles {
		out[p.ID] = p
	}
	return out, nil
}

// Upsert seeds or refreshes a user row. The embedded store has no account
// module of its own.
func (r *SQLiteUserRepository) Upsert(ctx context.Context, p chat.UserProfile) error {
	if r == nil || r.db == nil {
		return errors.New("SQLiteUserRepository: nil db")
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO users (id, nickname, avatar_url) VALUES (?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET nickname = excluded.nickname, avatar_url = excluded.avatar_url
	`, p.ID, p.Nickname, p.AvatarURL)
	return err
}

type SQLiteApplicationRepository struct {
	db *sqlx.DB
}

func NewSQLiteApplicationRepository(db *sqlx.DB) *SQLiteApplicationRepository {
	return &SQLiteApplicationRepository{db: db}
}

var _ repository.ApplicationLookup = (*SQLiteApplicationRepository)(nil)

func (r *SQLiteApplicationRepository) Exists(ctx context.Context, applicationID int64) (bool, error) {
	if r == nil || r.db == nil {
		return false, errors.New("SQLiteApplicationRepository: nil db")
	}
	var n int
	if err := r.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM applications WHERE id = ?`, applicationID); err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *SQLiteApplicationRepository) Insert(ctx context.Context, applicationID int64) error {
	if r == nil || r.db == nil {
		return errors.New("SQLiteApplicationRepository: nil db")
	}
	_, err := r.db.ExecContext(ctx, `INSERT INTO applications (id) VALUES (?) ON CONFLICT (id) DO NOTHING`, applicationID)
	return err
}
