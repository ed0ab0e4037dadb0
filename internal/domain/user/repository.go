package user

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

const queryTimeout = 3 * time.Second

// Repository provides directory lookups and registration.
type Repository interface {
	Create(ctx context.Context, u *User) error
	GetByID(ctx context.Context, id uuid.UUID) (*User, error)
	GetByUsername(ctx context.Context, username string) (*User, error)
	// GetByIDs resolves a set of ids to users; missing ids are simply absent
	// from the result.
	GetByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*User, error)
}

// PostgresRepository is the sqlx-backed directory.
type PostgresRepository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, u *User) error {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	_, err := r.db.ExecContext(ctx2, `
		INSERT INTO users (id, username, role, created_at)
		VALUES ($1, $2, $3, $4)
	`, u.ID, u.Username, u.Role, u.CreatedAt)
	if err != nil {
		return fmt.Errorf("%w: insert user", ErrInternal)
	}
	return nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id uuid.UUID) (*User, error) {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var u User
	err := r.db.GetContext(ctx2, &u, `SELECT id, username, role, created_at FROM users WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: get user", ErrInternal)
	}
	return &u, nil
}

func (r *PostgresRepository) GetByUsername(ctx context.Context, username string) (*User, error) {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var u User
	err := r.db.GetContext(ctx2, &u, `SELECT id, username, role, created_at FROM users WHERE username = $1`, username)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: get user by name", ErrInternal)
	}
	return &u, nil
}

func (r *PostgresRepository) GetByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*User, error) {
	if len(ids) == 0 {
		return map[uuid.UUID]*User{}, nil
	}

	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	strs := make([]string, len(ids))
	for i, id := range ids {
		strs[i] = id.String()
	}

	var users []User
	err := r.db.SelectContext(ctx2, &users, `
		SELECT id, username, role, created_at FROM users WHERE id = ANY($1)
	`, pq.Array(strs))
	if err != nil {
		return nil, fmt.Errorf("%w: get users by ids", ErrInternal)
	}

	out := make(map[uuid.UUID]*User, len(users))
	for i := range users {
		out[users[i].ID] = &users[i]
	}
	return out, nil
}
