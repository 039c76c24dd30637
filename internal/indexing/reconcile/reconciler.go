package reconcile

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/Luganodes/Solana-Indexer/internal/core/domain"
	"github.com/Luganodes/Solana-Indexer/internal/indexing/metrics"
	"github.com/Luganodes/Solana-Indexer/internal/infra/rpc"
	"github.com/Luganodes/Solana-Indexer/internal/infra/storage"
)

// LedgerClient is the slice of the RPC client the reconciler needs.
type LedgerClient interface {
	GetEpochInfo(ctx context.Context) (uint64, error)
	ActiveDelegations(ctx context.Context, validatorID string) ([]domain.StakeDelegation, error)
	GetSignaturesForAddress(ctx context.Context, address string) ([]rpc.SignatureInfo, error)
	GetTransaction(ctx context.Context, signature string) (*rpc.TransactionDetail, error)
}

// PriceSource supplies the SOL/USD price for a UTC day.
type PriceSource interface {
	SolPriceAt(ctx context.Context, timestamp int64) (float64, error)
}

// APRSource computes a delegator's trailing annualized yield.
type APRSource interface {
	Compute(ctx context.Context, delegatorID string, latestEpoch uint64) (float64, error)
}

// Reconciler diffs the ledger's active-delegation set against stored
// delegator state: it creates newly seen delegators, refreshes APR on
// active ones, transitions deactivated ones to unstaked exactly once, and
// bulk-unstakes identities the ledger no longer reports. Every step is
// idempotent, so an aborted pass is simply retried in full on the next
// tick.
type Reconciler struct {
	ledger       LedgerClient
	prices       PriceSource
	apr          APRSource
	delegators   storage.DelegatorRepository
	transactions storage.TransactionRepository
	validatorID  string
	log          *slog.Logger
	now          func() time.Time
}

// New creates a reconciler for the given validator identity.
func New(
	ledger LedgerClient,
	prices PriceSource,
	apr APRSource,
	delegators storage.DelegatorRepository,
	transactions storage.TransactionRepository,
	validatorID string,
	log *slog.Logger,
) *Reconciler {
	return &Reconciler{
		ledger:       ledger,
		prices:       prices,
		apr:          apr,
		delegators:   delegators,
		transactions: transactions,
		validatorID:  validatorID,
		log:          log.With("component", "reconcile"),
		now:          time.Now,
	}
}

// Run executes one reconciliation pass.
func (r *Reconciler) Run(ctx context.Context) error {
	log := r.log.With("run", uuid.NewString()[:8])

	delegations, err := r.ledger.ActiveDelegations(ctx, r.validatorID)
	if err != nil {
		return fmt.Errorf("fetch active delegations: %w", err)
	}
	latestEpoch, err := r.ledger.GetEpochInfo(ctx)
	if err != nil {
		return fmt.Errorf("fetch latest epoch: %w", err)
	}
	metrics.DelegatorsTracked.Set(float64(len(delegations)))
	metrics.LatestEpoch.Set(float64(latestEpoch))

	present := make([]string, 0, len(delegations))
	for _, delegation := range delegations {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := r.processDelegation(ctx, log, delegation, latestEpoch); err != nil {
			return fmt.Errorf("delegator %s: %w", delegation.Pubkey, err)
		}
		present = append(present, delegation.Pubkey)
	}

	// Entities the ledger no longer reports as active have unstaked.
	touched, err := r.delegators.UnstakeAbsent(ctx, present, latestEpoch-1, r.now().UnixMilli())
	if err != nil {
		return fmt.Errorf("unstake absent delegators: %w", err)
	}
	if touched > 0 {
		log.Info("unstaked delegators removed from the active set", "count", touched)
	}
	return nil
}

func (r *Reconciler) processDelegation(
	ctx context.Context,
	log *slog.Logger,
	delegation domain.StakeDelegation,
	latestEpoch uint64,
) error {
	stored, err := r.delegators.GetByID(ctx, delegation.Pubkey)
	if err != nil {
		return err
	}

	if stored == nil {
		return r.createDelegator(ctx, log, delegation, latestEpoch)
	}

	exists, err := r.transactions.ExistsFor(ctx, delegation.Pubkey)
	if err != nil {
		return err
	}
	if !exists {
		// Earlier discovery found nothing; try again.
		r.discoverFirstTransaction(ctx, log, delegation.Pubkey, delegation.Stake)
	}

	if latestEpoch > delegation.DeactivationEpoch {
		if stored.Unstaked && stored.UnstakedEpoch == delegation.DeactivationEpoch {
			return nil
		}
		stored.Unstaked = true
		stored.UnstakedEpoch = delegation.DeactivationEpoch
		stored.UnstakedTimestamp = r.now().UnixMilli()
		if err := r.delegators.Update(ctx, stored); err != nil {
			return err
		}
		log.Info("unstaked delegator", "delegator", delegation.Pubkey, "epoch", delegation.DeactivationEpoch)
		return nil
	}

	aprValue, err := r.apr.Compute(ctx, delegation.Pubkey, latestEpoch)
	if err != nil {
		return err
	}
	stored.APR = aprValue
	if err := r.delegators.Update(ctx, stored); err != nil {
		return err
	}
	log.Debug("APR updated for delegator", "delegator", delegation.Pubkey, "apr", aprValue)
	return nil
}

func (r *Reconciler) createDelegator(
	ctx context.Context,
	log *slog.Logger,
	delegation domain.StakeDelegation,
	latestEpoch uint64,
) error {
	unstaked := latestEpoch >= delegation.DeactivationEpoch
	aprValue := 0.0
	if !unstaked {
		var err error
		aprValue, err = r.apr.Compute(ctx, delegation.Pubkey, latestEpoch)
		if err != nil {
			return err
		}
	}

	err := r.delegators.Create(ctx, &domain.Delegator{
		DelegatorID:       delegation.Pubkey,
		Timestamp:         r.now().UnixMilli(),
		Unstaked:          unstaked,
		UnstakedTimestamp: -1,
		UnstakedEpoch:     delegation.DeactivationEpoch,
		APR:               aprValue,
		StakedAmount:      delegation.Stake,
		ActivationEpoch:   delegation.ActivationEpoch,
	})
	if err != nil {
		return err
	}
	log.Info("created delegator", "delegator", delegation.Pubkey)

	r.discoverFirstTransaction(ctx, log, delegation.Pubkey, delegation.Stake)
	return nil
}

// discoverFirstTransaction records the delegator's on-chain transfers
// that reference the tracked validator. Discovery is best effort: its
// failures never abort the reconciliation pass.
func (r *Reconciler) discoverFirstTransaction(ctx context.Context, log *slog.Logger, address string, stake int64) {
	signatures, err := r.ledger.GetSignaturesForAddress(ctx, address)
	if err != nil {
		log.Error("failed to fetch signatures", "delegator", address, "error", err)
		return
	}

	for _, sig := range signatures {
		detail, err := r.ledger.GetTransaction(ctx, sig.Signature)
		if err != nil {
			log.Error("failed to fetch transaction", "signature", sig.Signature, "error", err)
			return
		}
		if detail == nil {
			continue
		}

		if !containsKey(detail.Transaction.Message.AccountKeys, r.validatorID) {
			continue
		}

		solUSD, err := r.prices.SolPriceAt(ctx, detail.BlockTime*1000)
		if err != nil {
			log.Error("failed to fetch price for transaction", "signature", sig.Signature, "error", err)
			return
		}

		err = r.transactions.Create(ctx, &domain.Transaction{
			DelegatorID:      address,
			Timestamp:        detail.BlockTime * 1000,
			Type:             domain.TxTypeStake,
			Amount:           stake,
			SolUSD:           solUSD,
			Fee:              domain.LamportsToSol(detail.Meta.Fee),
			TransactionHash:  sig.Signature,
			TransactionCount: len(signatures),
		})
		if err != nil {
			log.Error("failed to create transaction", "delegator", address, "error", err)
			return
		}
		log.Info("transaction created", "delegator", address, "signature", sig.Signature)
	}
}

func containsKey(keys []string, key string) bool {
	for _, k := range keys {
		if k == key {
			return true
		}
	}
	return false
}
