package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/Luganodes/Solana-Indexer/internal/core/domain"
)

// RewardRepo implements storage.RewardRepository using PostgreSQL.
type RewardRepo struct {
	db *DB
}

// NewRewardRepo creates a new PostgreSQL reward repository.
func NewRewardRepo(db *DB) *RewardRepo {
	return &RewardRepo{db: db}
}

// Latest returns the most recent reward among the given identities.
func (r *RewardRepo) Latest(ctx context.Context, delegatorIDs []string) (*domain.Reward, error) {
	var rw domain.Reward
	err := r.db.GetContext(ctx, &rw, `
		SELECT * FROM rewards
		WHERE delegator_id = ANY($1)
		ORDER BY epoch_num DESC, timestamp DESC
		LIMIT 1`, pq.Array(delegatorIDs))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest reward: %w", err)
	}
	return &rw, nil
}

// LatestFor returns the most recent reward for one identity.
func (r *RewardRepo) LatestFor(ctx context.Context, delegatorID string) (*domain.Reward, error) {
	var rw domain.Reward
	err := r.db.GetContext(ctx, &rw, `
		SELECT * FROM rewards
		WHERE delegator_id = $1
		ORDER BY epoch_num DESC, timestamp DESC
		LIMIT 1`, delegatorID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest reward for %s: %w", delegatorID, err)
	}
	return &rw, nil
}

// GetByEpoch returns the reward recorded for (identity, epoch).
func (r *RewardRepo) GetByEpoch(ctx context.Context, delegatorID string, epoch uint64) (*domain.Reward, error) {
	var rw domain.Reward
	err := r.db.GetContext(ctx, &rw,
		`SELECT * FROM rewards WHERE delegator_id = $1 AND epoch_num = $2`,
		delegatorID, int64(epoch))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get reward by epoch: %w", err)
	}
	return &rw, nil
}

// GetSince returns an identity's rewards from a timestamp onward.
func (r *RewardRepo) GetSince(ctx context.Context, delegatorID string, since int64) ([]*domain.Reward, error) {
	var rws []*domain.Reward
	err := r.db.SelectContext(ctx, &rws, `
		SELECT * FROM rewards
		WHERE delegator_id = $1 AND timestamp >= $2
		ORDER BY timestamp ASC`, delegatorID, since)
	if err != nil {
		return nil, fmt.Errorf("failed to get rewards since %d: %w", since, err)
	}
	return rws, nil
}

// DeleteByTimestamp removes the reward row for (identity, timestamp).
func (r *RewardRepo) DeleteByTimestamp(ctx context.Context, delegatorID string, timestamp int64) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM rewards WHERE delegator_id = $1 AND timestamp = $2`,
		delegatorID, timestamp)
	if err != nil {
		return fmt.Errorf("failed to delete reward: %w", err)
	}
	return nil
}

// DeleteByEpoch removes every reward row recorded for an epoch.
func (r *RewardRepo) DeleteByEpoch(ctx context.Context, epoch uint64) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM rewards WHERE epoch_num = $1`, int64(epoch))
	if err != nil {
		return 0, fmt.Errorf("failed to delete rewards for epoch %d: %w", epoch, err)
	}
	return res.RowsAffected()
}

// Create inserts a new reward row.
func (r *RewardRepo) Create(ctx context.Context, rw *domain.Reward) error {
	_, err := r.db.NamedExecContext(ctx, `
		INSERT INTO rewards
			(delegator_id, epoch_num, timestamp, sol_usd, user_action,
			 reward, reward_usd, total_reward, total_reward_usd,
			 pending_rewards, pending_rewards_usd, post_balance, post_balance_usd,
			 staked_amount, staked_amount_usd)
		VALUES
			(:delegator_id, :epoch_num, :timestamp, :sol_usd, :user_action,
			 :reward, :reward_usd, :total_reward, :total_reward_usd,
			 :pending_rewards, :pending_rewards_usd, :post_balance, :post_balance_usd,
			 :staked_amount, :staked_amount_usd)`, rw)
	if err != nil {
		return fmt.Errorf("failed to create reward: %w", err)
	}
	return nil
}
