package credit

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

// Repository owns Credit rows. Checked mutations (UpdateOwner, MarkRetired)
// enforce the lifecycle at the storage layer so no path can resurrect a
// retired credit.
type Repository interface {
	Create(ctx context.Context, c *Credit) error
	GetByID(ctx context.Context, id uuid.UUID) (*Credit, error)
	// ListAvailable returns unretired credits still owned by their producer,
	// read from a single consistent snapshot.
	ListAvailable(ctx context.Context) ([]Credit, error)
	ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]Credit, error)
	ListAll(ctx context.Context) ([]Credit, error)
	UpdateOwner(ctx context.Context, id, newOwnerID uuid.UUID) error
	MarkRetired(ctx context.Context, id uuid.UUID) error
	// Delete removes a credit; only the mint rollback path uses it.
	Delete(ctx context.Context, id uuid.UUID) error
	// Overview counts total and retired credits in one consistent read.
	Overview(ctx context.Context) (total, retired int, err error)
}

// PostgresRepository is the sqlx-backed credit store.
type PostgresRepository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const creditColumns = `id, batch_id, producer_id, owner_id, units, production_date, created_at, is_retired, integrity_hash`

func (r *PostgresRepository) Create(ctx context.Context, c *Credit) error {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	_, err := r.db.ExecContext(ctx2, `
		INSERT INTO credits (id, batch_id, producer_id, owner_id, units, production_date, created_at, is_retired, integrity_hash)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, c.ID, c.BatchID, c.ProducerID, c.OwnerID, c.Units, c.ProductionDate, c.CreatedAt, c.IsRetired, c.IntegrityHash)
	if err != nil {
		return fmt.Errorf("%w: insert credit", ErrInternal)
	}
	return nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id uuid.UUID) (*Credit, error) {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var c Credit
	err := r.db.GetContext(ctx2, &c, `SELECT `+creditColumns+` FROM credits WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: get credit", ErrInternal)
	}
	return &c, nil
}

func (r *PostgresRepository) ListAvailable(ctx context.Context) ([]Credit, error) {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var credits []Credit
	err := r.db.SelectContext(ctx2, &credits, `
		SELECT `+creditColumns+` FROM credits
		WHERE is_retired = false AND owner_id = producer_id
		ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("%w: list available credits", ErrInternal)
	}
	return credits, nil
}

func (r *PostgresRepository) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]Credit, error) {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var credits []Credit
	err := r.db.SelectContext(ctx2, &credits, `
		SELECT `+creditColumns+` FROM credits WHERE owner_id = $1 ORDER BY created_at DESC
	`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("%w: list credits by owner", ErrInternal)
	}
	return credits, nil
}

func (r *PostgresRepository) ListAll(ctx context.Context) ([]Credit, error) {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var credits []Credit
	err := r.db.SelectContext(ctx2, &credits, `SELECT `+creditColumns+` FROM credits ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("%w: list credits", ErrInternal)
	}
	return credits, nil
}

func (r *PostgresRepository) UpdateOwner(ctx context.Context, id, newOwnerID uuid.UUID) error {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	result, err := r.db.ExecContext(ctx2, `
		UPDATE credits SET owner_id = $2 WHERE id = $1 AND is_retired = false
	`, id, newOwnerID)
	if err != nil {
		return fmt.Errorf("%w: update credit owner", ErrInternal)
	}
	return r.checkedMutationResult(ctx2, result, id)
}

func (r *PostgresRepository) MarkRetired(ctx context.Context, id uuid.UUID) error {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	result, err := r.db.ExecContext(ctx2, `
		UPDATE credits SET is_retired = true WHERE id = $1 AND is_retired = false
	`, id)
	if err != nil {
		return fmt.Errorf("%w: mark credit retired", ErrInternal)
	}
	return r.checkedMutationResult(ctx2, result, id)
}

// checkedMutationResult distinguishes a missing credit from a retired one
// when a guarded UPDATE matched no rows.
func (r *PostgresRepository) checkedMutationResult(ctx context.Context, result sql.Result, id uuid.UUID) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: rows affected", ErrInternal)
	}
	if rows > 0 {
		return nil
	}

	var retired bool
	err = r.db.GetContext(ctx, &retired, `SELECT is_retired FROM credits WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("%w: recheck credit", ErrInternal)
	}
	if retired {
		return ErrAlreadyRetired
	}
	return fmt.Errorf("%w: credit mutation matched no rows", ErrInternal)
}

func (r *PostgresRepository) Delete(ctx context.Context, id uuid.UUID) error {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	_, err := r.db.ExecContext(ctx2, `DELETE FROM credits WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("%w: delete credit", ErrInternal)
	}
	return nil
}

func (r *PostgresRepository) Overview(ctx context.Context) (int, int, error) {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	// One statement, one snapshot: the counts can never straddle a
	// concurrent mutation.
	var row struct {
		Total   int `db:"total"`
		Retired int `db:"retired"`
	}
	err := r.db.GetContext(ctx2, &row, `
		SELECT COUNT(*) AS total,
		       COUNT(*) FILTER (WHERE is_retired) AS retired
		FROM credits
	`)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: credits overview", ErrInternal)
	}
	return row.Total, row.Retired, nil
}
