package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/Luganodes/Solana-Indexer/internal/core/domain"
)

// MemoryStorage backs the in-memory repository set used in tests and
// local runs without a database.
type MemoryStorage struct {
	delegators map[string]*domain.Delegator
	rewards    []*domain.Reward
	txs        []*domain.Transaction
	nextID     int64
	mu         sync.RWMutex
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		delegators: make(map[string]*domain.Delegator),
	}
}

func (s *MemoryStorage) nextRowID() int64 {
	s.nextID++
	return s.nextID
}

// -----------------------------------------------------------------------------
// Delegator Repository
// -----------------------------------------------------------------------------

type DelegatorRepo struct {
	store *MemoryStorage
}

func NewDelegatorRepo(store *MemoryStorage) *DelegatorRepo {
	return &DelegatorRepo{store: store}
}

func (r *DelegatorRepo) GetByID(ctx context.Context, delegatorID string) (*domain.Delegator, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	d, ok := r.store.delegators[delegatorID]
	if !ok {
		return nil, nil
	}
	cp := *d
	return &cp, nil
}

func (r *DelegatorRepo) GetActive(ctx context.Context) ([]*domain.Delegator, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	var ds []*domain.Delegator
	for _, d := range r.store.delegators {
		if !d.Unstaked {
			cp := *d
			ds = append(ds, &cp)
		}
	}
	sort.Slice(ds, func(i, j int) bool { return ds[i].ID < ds[j].ID })
	return ds, nil
}

func (r *DelegatorRepo) Create(ctx context.Context, d *domain.Delegator) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	cp := *d
	cp.ID = r.store.nextRowID()
	r.store.delegators[d.DelegatorID] = &cp
	return nil
}

func (r *DelegatorRepo) Update(ctx context.Context, d *domain.Delegator) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	stored, ok := r.store.delegators[d.DelegatorID]
	if !ok {
		return nil
	}
	stored.Unstaked = d.Unstaked
	stored.UnstakedTimestamp = d.UnstakedTimestamp
	stored.UnstakedEpoch = d.UnstakedEpoch
	stored.APR = d.APR
	stored.StakedAmount = d.StakedAmount
	return nil
}

func (r *DelegatorRepo) UnstakeAbsent(
	ctx context.Context,
	present []string,
	unstakedEpoch uint64,
	unstakedTimestamp int64,
) (int64, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	presentSet := make(map[string]bool, len(present))
	for _, id := range present {
		presentSet[id] = true
	}

	var touched int64
	for id, d := range r.store.delegators {
		if presentSet[id] || d.Unstaked {
			continue
		}
		d.Unstaked = true
		d.UnstakedEpoch = unstakedEpoch
		d.UnstakedTimestamp = unstakedTimestamp
		touched++
	}
	return touched, nil
}

// -----------------------------------------------------------------------------
// Reward Repository
// -----------------------------------------------------------------------------

type RewardRepo struct {
	store *MemoryStorage
}

func NewRewardRepo(store *MemoryStorage) *RewardRepo {
	return &RewardRepo{store: store}
}

func latestOf(rws []*domain.Reward) *domain.Reward {
	var latest *domain.Reward
	for _, rw := range rws {
		if latest == nil ||
			rw.EpochNum > latest.EpochNum ||
			(rw.EpochNum == latest.EpochNum && rw.Timestamp > latest.Timestamp) {
			latest = rw
		}
	}
	if latest == nil {
		return nil
	}
	cp := *latest
	return &cp
}

func (r *RewardRepo) Latest(ctx context.Context, delegatorIDs []string) (*domain.Reward, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	idSet := make(map[string]bool, len(delegatorIDs))
	for _, id := range delegatorIDs {
		idSet[id] = true
	}
	var matched []*domain.Reward
	for _, rw := range r.store.rewards {
		if idSet[rw.DelegatorID] {
			matched = append(matched, rw)
		}
	}
	return latestOf(matched), nil
}

func (r *RewardRepo) LatestFor(ctx context.Context, delegatorID string) (*domain.Reward, error) {
	return r.Latest(ctx, []string{delegatorID})
}

func (r *RewardRepo) GetByEpoch(ctx context.Context, delegatorID string, epoch uint64) (*domain.Reward, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	for _, rw := range r.store.rewards {
		if rw.DelegatorID == delegatorID && rw.EpochNum == epoch {
			cp := *rw
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *RewardRepo) GetSince(ctx context.Context, delegatorID string, since int64) ([]*domain.Reward, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	var rws []*domain.Reward
	for _, rw := range r.store.rewards {
		if rw.DelegatorID == delegatorID && rw.Timestamp >= since {
			cp := *rw
			rws = append(rws, &cp)
		}
	}
	sort.Slice(rws, func(i, j int) bool { return rws[i].Timestamp < rws[j].Timestamp })
	return rws, nil
}

func (r *RewardRepo) DeleteByTimestamp(ctx context.Context, delegatorID string, timestamp int64) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	kept := r.store.rewards[:0]
	for _, rw := range r.store.rewards {
		if rw.DelegatorID == delegatorID && rw.Timestamp == timestamp {
			continue
		}
		kept = append(kept, rw)
	}
	r.store.rewards = kept
	return nil
}

func (r *RewardRepo) DeleteByEpoch(ctx context.Context, epoch uint64) (int64, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var deleted int64
	kept := r.store.rewards[:0]
	for _, rw := range r.store.rewards {
		if rw.EpochNum == epoch {
			deleted++
			continue
		}
		kept = append(kept, rw)
	}
	r.store.rewards = kept
	return deleted, nil
}

func (r *RewardRepo) Create(ctx context.Context, rw *domain.Reward) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	cp := *rw
	cp.ID = r.store.nextRowID()
	r.store.rewards = append(r.store.rewards, &cp)
	return nil
}

// -----------------------------------------------------------------------------
// Transaction Repository
// -----------------------------------------------------------------------------

type TransactionRepo struct {
	store *MemoryStorage
}

func NewTransactionRepo(store *MemoryStorage) *TransactionRepo {
	return &TransactionRepo{store: store}
}

func (r *TransactionRepo) ExistsFor(ctx context.Context, delegatorID string) (bool, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	for _, t := range r.store.txs {
		if t.DelegatorID == delegatorID {
			return true, nil
		}
	}
	return false, nil
}

func (r *TransactionRepo) Create(ctx context.Context, t *domain.Transaction) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	cp := *t
	cp.ID = r.store.nextRowID()
	r.store.txs = append(r.store.txs, &cp)
	return nil
}

// All returns every stored transaction, for test assertions.
func (r *TransactionRepo) All() []*domain.Transaction {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	out := make([]*domain.Transaction, 0, len(r.store.txs))
	for _, t := range r.store.txs {
		cp := *t
		out = append(out, &cp)
	}
	return out
}
