package cursor

import (
	"context"

	"github.com/Luganodes/Solana-Indexer/internal/infra/storage"
)

// Cursor derives the next epoch to backfill for a tracked identity set.
// It is never persisted on its own: it is always recomputed from the
// reward table, which makes backfill resumable after a crash — a
// restarted run re-derives the cursor a completed run would have left.
type Cursor struct {
	rewards    storage.RewardRepository
	startEpoch uint64
}

// New creates a cursor over the reward table. startEpoch is used when no
// rewards have been recorded yet.
func New(rewards storage.RewardRepository, startEpoch uint64) *Cursor {
	return &Cursor{rewards: rewards, startEpoch: startEpoch}
}

// Resume returns the next unprocessed epoch for the identity set: one
// greater than the highest recorded reward epoch, or the configured start
// epoch when none exist.
func (c *Cursor) Resume(ctx context.Context, delegatorIDs []string) (uint64, error) {
	latest, err := c.rewards.Latest(ctx, delegatorIDs)
	if err != nil {
		return 0, err
	}
	if latest == nil {
		return c.startEpoch, nil
	}
	return latest.EpochNum + 1, nil
}
