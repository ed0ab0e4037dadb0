package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

const queryTimeout = 3 * time.Second

// Repository owns Transaction rows. It is append-only by construction: there
// is no update or delete operation.
type Repository interface {
	// Append inserts a transaction and records its append order.
	Append(ctx context.Context, t *Transaction) error
	// Tail returns the most recently appended transaction, or nil when the
	// ledger is empty.
	Tail(ctx context.Context) (*Transaction, error)
	// ListAll returns every transaction; ascending append order when
	// newestFirst is false (chain verification), descending otherwise.
	ListAll(ctx context.Context, newestFirst bool) ([]Transaction, error)
	// ListByCredit returns a credit's transactions in append order.
	ListByCredit(ctx context.Context, creditID uuid.UUID) ([]Transaction, error)
	// ListByUser returns transactions touching a user, newest first.
	ListByUser(ctx context.Context, userID uuid.UUID) ([]Transaction, error)
}

// PostgresRepository is the sqlx-backed transaction log. The seq column is a
// bigserial assigned on insert, preserving append order.
type PostgresRepository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const txColumns = `id, seq, credit_id, from_user_id, to_user_id, units, transaction_type, prev_hash, integrity_hash, timestamp`

func (r *PostgresRepository) Append(ctx context.Context, t *Transaction) error {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	err := r.db.QueryRowContext(ctx2, `
		INSERT INTO transactions (id, credit_id, from_user_id, to_user_id, units, transaction_type, prev_hash, integrity_hash, timestamp)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING seq
	`, t.ID, t.CreditID, t.FromUserID, t.ToUserID, t.Units, t.Type, t.PrevHash, t.IntegrityHash, t.Timestamp).Scan(&t.Seq)
	if err != nil {
		return fmt.Errorf("%w: insert transaction", ErrInternal)
	}
	return nil
}

func (r *PostgresRepository) Tail(ctx context.Context) (*Transaction, error) {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var t Transaction
	err := r.db.GetContext(ctx2, &t, `SELECT `+txColumns+` FROM transactions ORDER BY seq DESC LIMIT 1`)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: ledger tail", ErrInternal)
	}
	return &t, nil
}

func (r *PostgresRepository) ListAll(ctx context.Context, newestFirst bool) ([]Transaction, error) {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	order := "ASC"
	if newestFirst {
		order = "DESC"
	}

	var txs []Transaction
	err := r.db.SelectContext(ctx2, &txs, `SELECT `+txColumns+` FROM transactions ORDER BY seq `+order)
	if err != nil {
		return nil, fmt.Errorf("%w: list transactions", ErrInternal)
	}
	return txs, nil
}

func (r *PostgresRepository) ListByCredit(ctx context.Context, creditID uuid.UUID) ([]Transaction, error) {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var txs []Transaction
	err := r.db.SelectContext(ctx2, &txs, `
		SELECT `+txColumns+` FROM transactions WHERE credit_id = $1 ORDER BY seq
	`, creditID)
	if err != nil {
		return nil, fmt.Errorf("%w: list transactions by credit", ErrInternal)
	}
	return txs, nil
}

func (r *PostgresRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]Transaction, error) {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var txs []Transaction
	err := r.db.SelectContext(ctx2, &txs, `
		SELECT `+txColumns+` FROM transactions
		WHERE from_user_id = $1 OR to_user_id = $1
		ORDER BY seq DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: list transactions by user", ErrInternal)
	}
	return txs, nil
}
