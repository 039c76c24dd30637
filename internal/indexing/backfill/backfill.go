package backfill

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Luganodes/Solana-Indexer/internal/core/domain"
	"github.com/Luganodes/Solana-Indexer/internal/indexing/cursor"
	"github.com/Luganodes/Solana-Indexer/internal/indexing/metrics"
	"github.com/Luganodes/Solana-Indexer/internal/infra/rpc"
	"github.com/Luganodes/Solana-Indexer/internal/infra/storage"
)

// LedgerClient is the slice of the RPC client the backfiller needs.
type LedgerClient interface {
	GetEpochInfo(ctx context.Context) (uint64, error)
	GetInflationRewards(ctx context.Context, pubkeys []string, epoch uint64) ([]*rpc.InflationReward, error)
	GetBlockTime(ctx context.Context, slot uint64) (int64, error)
}

// PriceSource supplies the SOL/USD price for a UTC day.
type PriceSource interface {
	SolPriceAt(ctx context.Context, timestamp int64) (float64, error)
}

// Backfiller walks forward through unprocessed ledger epochs and records
// one reward per tracked identity per valid epoch, with cumulative totals
// and fiat conversion. Re-running over an already-processed epoch is
// idempotent in content: any existing row for the same (identity, day) is
// deleted before the recomputed one is inserted.
type Backfiller struct {
	ledger  LedgerClient
	prices  PriceSource
	rewards storage.RewardRepository
	cursor  *cursor.Cursor
	log     *slog.Logger
}

// New creates a backfiller.
func New(
	ledger LedgerClient,
	prices PriceSource,
	rewards storage.RewardRepository,
	cur *cursor.Cursor,
	log *slog.Logger,
) *Backfiller {
	return &Backfiller{
		ledger:  ledger,
		prices:  prices,
		rewards: rewards,
		cursor:  cur,
		log:     log.With("component", "backfill"),
	}
}

// Run backfills rewards for every target the scope resolves, from the
// resumed cursor up to the ledger's current epoch exclusive — the
// in-progress epoch may not be finalized and is never backfilled.
//
// On failure the run is aborted and every reward row recorded for the
// epoch that was in flight is deleted, so the next run re-derives the
// cursor below it and reprocesses the whole epoch.
func (b *Backfiller) Run(ctx context.Context, scope Scope) error {
	log := b.log.With("scope", scope.Name())

	targets, err := scope.Targets(ctx)
	if err != nil {
		return fmt.Errorf("resolve targets: %w", err)
	}
	if len(targets) == 0 {
		log.Info("no tracked identities, nothing to backfill")
		return nil
	}

	recordIDs := make([]string, len(targets))
	queryKeys := make([]string, len(targets))
	for i, t := range targets {
		recordIDs[i] = t.RecordID
		queryKeys[i] = t.QueryKey
	}

	epoch, err := b.cursor.Resume(ctx, recordIDs)
	if err != nil {
		return fmt.Errorf("resume cursor: %w", err)
	}
	metrics.CursorEpoch.WithLabelValues(scope.Name()).Set(float64(epoch))

	latestEpoch, err := b.ledger.GetEpochInfo(ctx)
	if err != nil {
		return fmt.Errorf("fetch latest epoch: %w", err)
	}
	metrics.LatestEpoch.Set(float64(latestEpoch))

	for ; epoch < latestEpoch; epoch++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		log.Info("processing epoch", "epoch", epoch, "latestEpoch", latestEpoch)

		if err := b.processEpoch(ctx, scope.Name(), targets, queryKeys, epoch); err != nil {
			// The failure may be the run context being canceled; cleanup
			// runs detached so the partial epoch is still rolled back.
			b.compensate(context.WithoutCancel(ctx), log, epoch)
			return fmt.Errorf("epoch %d: %w", epoch, err)
		}
		metrics.CursorEpoch.WithLabelValues(scope.Name()).Set(float64(epoch + 1))
	}

	log.Info("reached latest epoch", "latestEpoch", latestEpoch)
	return nil
}

func (b *Backfiller) processEpoch(
	ctx context.Context,
	scopeName string,
	targets []Target,
	queryKeys []string,
	epoch uint64,
) error {
	epochRewards, err := b.ledger.GetInflationRewards(ctx, queryKeys, epoch)
	if err != nil {
		return err
	}
	if len(epochRewards) == 0 {
		b.log.Info("no rewards for epoch", "epoch", epoch)
		return nil
	}

	recorded := 0
	for i, reward := range epochRewards {
		if i >= len(targets) {
			break
		}
		target := targets[i]
		if reward == nil || !target.Eligible(epoch) {
			continue
		}
		if err := b.record(ctx, target, reward); err != nil {
			return fmt.Errorf("identity %s: %w", target.RecordID, err)
		}
		recorded++
		metrics.RewardsRecorded.WithLabelValues(scopeName).Inc()
	}

	b.log.Info("processed rewards for epoch", "epoch", epoch, "recorded", recorded)
	return nil
}

// record normalizes, prices, deduplicates, accumulates and persists one
// reward.
func (b *Backfiller) record(ctx context.Context, target Target, reward *rpc.InflationReward) error {
	blockTime, err := b.ledger.GetBlockTime(ctx, reward.EffectiveSlot)
	if err != nil {
		return err
	}
	timestamp := domain.DayStart(time.Unix(blockTime, 0))

	solUSD, err := b.prices.SolPriceAt(ctx, timestamp)
	if err != nil {
		return err
	}

	// A row for the same (identity, day) means the epoch was processed
	// before; replace it with the recomputed one.
	if err := b.rewards.DeleteByTimestamp(ctx, target.RecordID, timestamp); err != nil {
		return err
	}

	totalReward := reward.Amount
	pendingRewards := reward.Amount
	previous, err := b.rewards.LatestFor(ctx, target.RecordID)
	if err != nil {
		return err
	}
	if previous != nil {
		totalReward += previous.TotalReward
		pendingRewards += previous.PendingRewards
	}

	stakedAmountUSD := float64(-1)
	if target.StakedAmount >= 0 {
		stakedAmountUSD = domain.LamportsToUSD(target.StakedAmount, solUSD)
	}

	return b.rewards.Create(ctx, &domain.Reward{
		DelegatorID:       target.RecordID,
		EpochNum:          reward.Epoch,
		Timestamp:         timestamp,
		SolUSD:            solUSD,
		UserAction:        domain.ActionReward,
		Reward:            reward.Amount,
		RewardUSD:         domain.LamportsToUSD(reward.Amount, solUSD),
		TotalReward:       totalReward,
		TotalRewardUSD:    domain.LamportsToUSD(totalReward, solUSD),
		PendingRewards:    pendingRewards,
		PendingRewardsUSD: domain.LamportsToUSD(pendingRewards, solUSD),
		PostBalance:       reward.PostBalance,
		PostBalanceUSD:    domain.LamportsToUSD(reward.PostBalance, solUSD),
		StakedAmount:      target.StakedAmount,
		StakedAmountUSD:   stakedAmountUSD,
	})
}

// compensate removes every reward row recorded for the failed epoch; the
// failure may have left a partial set for it. Cleanup failures are logged
// only — the run is already on its failure path.
func (b *Backfiller) compensate(ctx context.Context, log *slog.Logger, epoch uint64) {
	deleted, err := b.rewards.DeleteByEpoch(ctx, epoch)
	if err != nil {
		log.Error("failed to clean up partial epoch", "epoch", epoch, "error", err)
		return
	}
	log.Info("deleted partial rewards for failed epoch", "epoch", epoch, "deleted", deleted)
}
