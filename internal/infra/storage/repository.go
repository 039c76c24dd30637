package storage

import (
	"context"

	"github.com/Luganodes/Solana-Indexer/internal/core/domain"
)

// DelegatorRepository handles delegator storage operations.
type DelegatorRepository interface {
	// GetByID retrieves a delegator by identity, nil when absent.
	GetByID(ctx context.Context, delegatorID string) (*domain.Delegator, error)

	// GetActive retrieves all delegators with unstaked=false.
	GetActive(ctx context.Context) ([]*domain.Delegator, error)

	// Create inserts a new delegator row.
	Create(ctx context.Context, d *domain.Delegator) error

	// Update persists mutable delegator fields (apr, unstake transition).
	Update(ctx context.Context, d *domain.Delegator) error

	// UnstakeAbsent bulk-marks as unstaked every active delegator whose
	// identity is not in present. Returns the number of rows touched.
	UnstakeAbsent(ctx context.Context, present []string, unstakedEpoch uint64, unstakedTimestamp int64) (int64, error)
}

// RewardRepository handles reward storage operations.
type RewardRepository interface {
	// Latest returns the most recent reward among the given identities,
	// ordered by (epoch_num desc, timestamp desc); nil when none exist.
	Latest(ctx context.Context, delegatorIDs []string) (*domain.Reward, error)

	// LatestFor returns the most recent reward for one identity,
	// same ordering; nil when none exist.
	LatestFor(ctx context.Context, delegatorID string) (*domain.Reward, error)

	// GetByEpoch returns the reward recorded for (identity, epoch), nil
	// when absent.
	GetByEpoch(ctx context.Context, delegatorID string, epoch uint64) (*domain.Reward, error)

	// GetSince returns an identity's rewards with timestamp >= since,
	// ordered by timestamp ascending.
	GetSince(ctx context.Context, delegatorID string, since int64) ([]*domain.Reward, error)

	// DeleteByTimestamp removes the reward row for (identity, timestamp).
	DeleteByTimestamp(ctx context.Context, delegatorID string, timestamp int64) error

	// DeleteByEpoch removes every reward row recorded for an epoch, used
	// as compensating cleanup after a failed backfill cycle.
	DeleteByEpoch(ctx context.Context, epoch uint64) (int64, error)

	// Create inserts a new reward row.
	Create(ctx context.Context, r *domain.Reward) error
}

// TransactionRepository handles transaction storage operations.
type TransactionRepository interface {
	// ExistsFor reports whether any transaction is recorded for an identity.
	ExistsFor(ctx context.Context, delegatorID string) (bool, error)

	// Create inserts a new transaction row.
	Create(ctx context.Context, t *domain.Transaction) error
}
