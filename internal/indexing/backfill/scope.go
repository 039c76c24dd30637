package backfill

import (
	"context"
	"math"

	"github.com/Luganodes/Solana-Indexer/internal/infra/storage"
)

// Target is one identity a backfill run records rewards for. RecordID is
// the key rows are stored under; QueryKey is the pubkey sent to the
// ledger. They differ only for the validator's own rewards.
type Target struct {
	RecordID          string
	QueryKey          string
	ActivationEpoch   uint64
	DeactivationEpoch uint64
	StakedAmount      int64 // -1 when stake does not apply
}

// Eligible reports whether a reward at the given epoch falls inside the
// target's delegation window. Rewards begin accruing one epoch after
// activation and stop at deactivation.
func (t Target) Eligible(epoch uint64) bool {
	return epoch > t.ActivationEpoch && epoch < t.DeactivationEpoch
}

// Scope resolves the identity set a backfill run operates on.
type Scope interface {
	Name() string
	Targets(ctx context.Context) ([]Target, error)
}

// DelegatorScope tracks every delegator that has not unstaked, each
// bounded by its recorded delegation window.
type DelegatorScope struct {
	delegators storage.DelegatorRepository
}

// NewDelegatorScope creates the per-delegator scope.
func NewDelegatorScope(delegators storage.DelegatorRepository) *DelegatorScope {
	return &DelegatorScope{delegators: delegators}
}

func (s *DelegatorScope) Name() string { return "delegators" }

func (s *DelegatorScope) Targets(ctx context.Context) ([]Target, error) {
	active, err := s.delegators.GetActive(ctx)
	if err != nil {
		return nil, err
	}
	targets := make([]Target, 0, len(active))
	for _, d := range active {
		targets = append(targets, Target{
			RecordID:          d.DelegatorID,
			QueryKey:          d.DelegatorID,
			ActivationEpoch:   d.ActivationEpoch,
			DeactivationEpoch: d.UnstakedEpoch,
			StakedAmount:      d.StakedAmount,
		})
	}
	return targets, nil
}

// ValidatorScope tracks the validator's own rewards: a single fixed
// identity with an unbounded delegation window and no stake.
type ValidatorScope struct {
	recordID string
	pubkey   string
}

// NewValidatorScope creates the validator-self scope. recordID is the
// identity rewards are stored under; pubkey is queried on the ledger.
func NewValidatorScope(recordID, pubkey string) *ValidatorScope {
	return &ValidatorScope{recordID: recordID, pubkey: pubkey}
}

func (s *ValidatorScope) Name() string { return "validator" }

func (s *ValidatorScope) Targets(ctx context.Context) ([]Target, error) {
	return []Target{{
		RecordID:          s.recordID,
		QueryKey:          s.pubkey,
		ActivationEpoch:   0,
		DeactivationEpoch: math.MaxUint64,
		StakedAmount:      -1,
	}}, nil
}
