package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/Luganodes/Solana-Indexer/internal/core/domain"
)

// DelegatorRepo implements storage.DelegatorRepository using PostgreSQL.
type DelegatorRepo struct {
	db *DB
}

// NewDelegatorRepo creates a new PostgreSQL delegator repository.
func NewDelegatorRepo(db *DB) *DelegatorRepo {
	return &DelegatorRepo{db: db}
}

// GetByID retrieves a delegator by identity.
func (r *DelegatorRepo) GetByID(ctx context.Context, delegatorID string) (*domain.Delegator, error) {
	var d domain.Delegator
	err := r.db.GetContext(ctx, &d,
		`SELECT * FROM delegators WHERE delegator_id = $1`, delegatorID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get delegator: %w", err)
	}
	return &d, nil
}

// GetActive retrieves all delegators that have not unstaked.
func (r *DelegatorRepo) GetActive(ctx context.Context) ([]*domain.Delegator, error) {
	var ds []*domain.Delegator
	err := r.db.SelectContext(ctx, &ds,
		`SELECT * FROM delegators WHERE unstaked = false ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to get active delegators: %w", err)
	}
	return ds, nil
}

// Create inserts a new delegator row.
func (r *DelegatorRepo) Create(ctx context.Context, d *domain.Delegator) error {
	_, err := r.db.NamedExecContext(ctx, `
		INSERT INTO delegators
			(delegator_id, timestamp, unstaked, unstaked_timestamp, unstaked_epoch,
			 apr, staked_amount, activation_epoch)
		VALUES
			(:delegator_id, :timestamp, :unstaked, :unstaked_timestamp, :unstaked_epoch,
			 :apr, :staked_amount, :activation_epoch)`, d)
	if err != nil {
		return fmt.Errorf("failed to create delegator: %w", err)
	}
	return nil
}

// Update persists mutable delegator fields.
func (r *DelegatorRepo) Update(ctx context.Context, d *domain.Delegator) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE delegators
		SET unstaked = $1, unstaked_timestamp = $2, unstaked_epoch = $3,
		    apr = $4, staked_amount = $5
		WHERE delegator_id = $6`,
		d.Unstaked, d.UnstakedTimestamp, d.UnstakedEpoch,
		d.APR, d.StakedAmount, d.DelegatorID)
	if err != nil {
		return fmt.Errorf("failed to update delegator: %w", err)
	}
	return nil
}

// UnstakeAbsent bulk-marks as unstaked every active delegator not in present.
func (r *DelegatorRepo) UnstakeAbsent(
	ctx context.Context,
	present []string,
	unstakedEpoch uint64,
	unstakedTimestamp int64,
) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE delegators
		SET unstaked = true, unstaked_timestamp = $1, unstaked_epoch = $2
		WHERE unstaked = false AND NOT (delegator_id = ANY($3))`,
		unstakedTimestamp, int64(unstakedEpoch), pq.Array(present))
	if err != nil {
		return 0, fmt.Errorf("failed to unstake absent delegators: %w", err)
	}
	return res.RowsAffected()
}
