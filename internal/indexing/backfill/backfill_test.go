package backfill

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math"
	"testing"
	"time"

	"github.com/Luganodes/Solana-Indexer/internal/core/domain"
	"github.com/Luganodes/Solana-Indexer/internal/indexing/cursor"
	"github.com/Luganodes/Solana-Indexer/internal/infra/rpc"
	"github.com/Luganodes/Solana-Indexer/internal/infra/storage/memory"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeLedger struct {
	latestEpoch uint64
	rewards     map[uint64]map[string]*rpc.InflationReward // epoch -> pubkey
	blockTimes  map[uint64]int64                           // slot -> unix seconds
	failSlot    uint64
	onFailSlot  func()
	requested   []uint64
}

func (l *fakeLedger) GetEpochInfo(ctx context.Context) (uint64, error) {
	return l.latestEpoch, nil
}

func (l *fakeLedger) GetInflationRewards(ctx context.Context, pubkeys []string, epoch uint64) ([]*rpc.InflationReward, error) {
	l.requested = append(l.requested, epoch)
	out := make([]*rpc.InflationReward, len(pubkeys))
	for i, pk := range pubkeys {
		out[i] = l.rewards[epoch][pk]
	}
	return out, nil
}

func (l *fakeLedger) GetBlockTime(ctx context.Context, slot uint64) (int64, error) {
	if l.failSlot != 0 && slot == l.failSlot {
		if l.onFailSlot != nil {
			l.onFailSlot()
		}
		return 0, errors.New("slot skipped")
	}
	bt, ok := l.blockTimes[slot]
	if !ok {
		return 0, rpc.ErrBlockTimeNotFound
	}
	return bt, nil
}

type fixedPrice float64

func (p fixedPrice) SolPriceAt(ctx context.Context, timestamp int64) (float64, error) {
	return float64(p), nil
}

type fixture struct {
	ledger     *fakeLedger
	delegators *memory.DelegatorRepo
	rewards    *memory.RewardRepo
	backfiller *Backfiller
}

func newFixture(t *testing.T, startEpoch uint64) *fixture {
	t.Helper()
	store := memory.NewMemoryStorage()
	ledger := &fakeLedger{
		rewards:    make(map[uint64]map[string]*rpc.InflationReward),
		blockTimes: make(map[uint64]int64),
	}
	rewards := memory.NewRewardRepo(store)
	return &fixture{
		ledger:     ledger,
		delegators: memory.NewDelegatorRepo(store),
		rewards:    rewards,
		backfiller: New(ledger, fixedPrice(20), rewards, cursor.New(rewards, startEpoch), testLogger()),
	}
}

func (f *fixture) addDelegator(t *testing.T, id string, activation, deactivation uint64, stake int64) {
	t.Helper()
	err := f.delegators.Create(context.Background(), &domain.Delegator{
		DelegatorID:     id,
		ActivationEpoch: activation,
		UnstakedEpoch:   deactivation,
		StakedAmount:    stake,
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
}

func (l *fakeLedger) addReward(pubkey string, epoch, slot uint64, amount, postBalance int64, blockTime time.Time) {
	if l.rewards[epoch] == nil {
		l.rewards[epoch] = make(map[string]*rpc.InflationReward)
	}
	l.rewards[epoch][pubkey] = &rpc.InflationReward{
		Amount:        amount,
		PostBalance:   postBalance,
		Epoch:         epoch,
		EffectiveSlot: slot,
	}
	l.blockTimes[slot] = blockTime.Unix()
}

func (f *fixture) addReward(pubkey string, epoch, slot uint64, amount, postBalance int64, blockTime time.Time) {
	f.ledger.addReward(pubkey, epoch, slot, amount, postBalance, blockTime)
}

func TestRunRecordsEligibleEpochsOnly(t *testing.T) {
	f := newFixture(t, 99)
	f.addDelegator(t, "d1", 100, 200, 5_000_000_000)
	f.ledger.latestEpoch = 152

	day := time.Date(2024, 3, 15, 13, 0, 0, 0, time.UTC)
	f.addReward("d1", 100, 1000, 50_000, 5_050_000, day.Add(-48*time.Hour)) // activation epoch, not eligible
	f.addReward("d1", 150, 1500, 100_000, 5_100_000, day)
	f.addReward("d1", 152, 1520, 100_000, 5_200_000, day.Add(48*time.Hour)) // in-progress epoch

	if err := f.backfiller.Run(context.Background(), NewDelegatorScope(f.delegators)); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	ctx := context.Background()
	if rw, _ := f.rewards.GetByEpoch(ctx, "d1", 100); rw != nil {
		t.Errorf("epoch 100 recorded, want skipped (rewards accrue after activation)")
	}
	for _, epoch := range f.ledger.requested {
		if epoch >= 152 {
			t.Errorf("epoch %d requested, the in-progress epoch must not be backfilled", epoch)
		}
	}

	rw, err := f.rewards.GetByEpoch(ctx, "d1", 150)
	if err != nil {
		t.Fatalf("GetByEpoch() error = %v", err)
	}
	if rw == nil {
		t.Fatal("epoch 150 not recorded")
	}
	if rw.Timestamp != domain.DayStart(day) {
		t.Errorf("timestamp = %d, want UTC midnight day key %d", rw.Timestamp, domain.DayStart(day))
	}
	if rw.SolUSD != 20 {
		t.Errorf("solUSD = %v, want 20", rw.SolUSD)
	}
	if rw.UserAction != domain.ActionReward {
		t.Errorf("userAction = %q, want REWARD", rw.UserAction)
	}
	if rw.Reward != 100_000 || rw.TotalReward != 100_000 || rw.PendingRewards != 100_000 {
		t.Errorf("amounts = %d/%d/%d, want 100000 each", rw.Reward, rw.TotalReward, rw.PendingRewards)
	}
	if want := domain.LamportsToUSD(100_000, 20); rw.RewardUSD != want {
		t.Errorf("rewardUSD = %v, want %v", rw.RewardUSD, want)
	}
	if rw.PostBalance != 5_100_000 {
		t.Errorf("postBalance = %d, want 5100000", rw.PostBalance)
	}
	if rw.StakedAmount != 5_000_000_000 {
		t.Errorf("stakedAmount = %d, want 5000000000", rw.StakedAmount)
	}
	if want := domain.LamportsToUSD(5_000_000_000, 20); rw.StakedAmountUSD != want {
		t.Errorf("stakedAmountUSD = %v, want %v", rw.StakedAmountUSD, want)
	}
}

func TestRunResumesAfterRecordedEpoch(t *testing.T) {
	f := newFixture(t, 99)
	f.addDelegator(t, "d1", 100, 200, 5_000_000_000)
	f.ledger.latestEpoch = 152

	day := time.Date(2024, 3, 15, 13, 0, 0, 0, time.UTC)
	f.addReward("d1", 150, 1500, 100_000, 5_100_000, day)

	if err := f.backfiller.Run(context.Background(), NewDelegatorScope(f.delegators)); err != nil {
		t.Fatalf("first Run() error = %v", err)
	}

	// The next run re-derives the cursor from the reward table and never
	// re-fetches an already-recorded epoch.
	f.ledger.requested = nil
	f.ledger.latestEpoch = 154
	if err := f.backfiller.Run(context.Background(), NewDelegatorScope(f.delegators)); err != nil {
		t.Fatalf("second Run() error = %v", err)
	}
	want := []uint64{151, 152, 153}
	if len(f.ledger.requested) != len(want) {
		t.Fatalf("requested epochs = %v, want %v", f.ledger.requested, want)
	}
	for i, epoch := range want {
		if f.ledger.requested[i] != epoch {
			t.Fatalf("requested epochs = %v, want %v", f.ledger.requested, want)
		}
	}
}

func TestRunReplacesSameDayRow(t *testing.T) {
	f := newFixture(t, 150)
	f.addDelegator(t, "d1", 100, 200, 5_000_000_000)
	f.ledger.latestEpoch = 152

	day := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)
	f.addReward("d1", 150, 1500, 100_000, 5_100_000, day.Add(13*time.Hour))
	f.addReward("d1", 151, 1510, 200_000, 5_300_000, day.Add(15*time.Hour))

	if err := f.backfiller.Run(context.Background(), NewDelegatorScope(f.delegators)); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	// Both epochs land on the same UTC day: the day key is unique per
	// delegator, so the later epoch replaces the earlier row.
	ctx := context.Background()
	if rw, _ := f.rewards.GetByEpoch(ctx, "d1", 150); rw != nil {
		t.Errorf("epoch 150 row survived, want replaced by same-day epoch 151")
	}
	rw, _ := f.rewards.GetByEpoch(ctx, "d1", 151)
	if rw == nil {
		t.Fatal("epoch 151 not recorded")
	}
	if rw.Reward != 200_000 {
		t.Errorf("reward = %d, want 200000", rw.Reward)
	}
}

func TestRunAccumulatesTotals(t *testing.T) {
	f := newFixture(t, 150)
	f.addDelegator(t, "d1", 100, 200, 5_000_000_000)
	f.ledger.latestEpoch = 162

	f.addReward("d1", 150, 1500, 100_000, 5_100_000, time.Date(2024, 3, 15, 13, 0, 0, 0, time.UTC))
	f.addReward("d1", 160, 1600, 100_000, 5_200_000, time.Date(2024, 3, 18, 13, 0, 0, 0, time.UTC))

	if err := f.backfiller.Run(context.Background(), NewDelegatorScope(f.delegators)); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	rw, _ := f.rewards.GetByEpoch(context.Background(), "d1", 160)
	if rw == nil {
		t.Fatal("epoch 160 not recorded")
	}
	if rw.TotalReward != 200_000 {
		t.Errorf("totalReward = %d, want 200000", rw.TotalReward)
	}
	if rw.PendingRewards != 200_000 {
		t.Errorf("pendingRewards = %d, want 200000", rw.PendingRewards)
	}
	if want := domain.LamportsToUSD(200_000, 20); rw.TotalRewardUSD != want {
		t.Errorf("totalRewardUSD = %v, want %v", rw.TotalRewardUSD, want)
	}
}

func TestRunCompensatesFailedEpoch(t *testing.T) {
	f := newFixture(t, 150)
	f.addDelegator(t, "d1", 100, 200, 5_000_000_000)
	f.addDelegator(t, "d2", 100, 200, 5_000_000_000)
	f.ledger.latestEpoch = 152

	day := time.Date(2024, 3, 15, 13, 0, 0, 0, time.UTC)
	f.addReward("d1", 150, 1500, 100_000, 5_100_000, day)
	f.addReward("d2", 150, 1501, 100_000, 5_100_000, day)
	f.ledger.failSlot = 1501 // d1 is recorded, then d2's block time fails

	err := f.backfiller.Run(context.Background(), NewDelegatorScope(f.delegators))
	if err == nil {
		t.Fatal("Run() error = nil, want failure")
	}

	// Every row of the epoch in flight is rolled back, so the next run
	// reprocesses the whole epoch.
	if rw, _ := f.rewards.GetByEpoch(context.Background(), "d1", 150); rw != nil {
		t.Errorf("partial row for failed epoch survived: %+v", rw)
	}
}

// ctxBoundRewards refuses work on a canceled context, the way
// database/sql-backed repositories do.
type ctxBoundRewards struct {
	*memory.RewardRepo
}

func (r *ctxBoundRewards) DeleteByEpoch(ctx context.Context, epoch uint64) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	return r.RewardRepo.DeleteByEpoch(ctx, epoch)
}

func TestRunCompensatesWhenRunContextCanceled(t *testing.T) {
	store := memory.NewMemoryStorage()
	rewards := &ctxBoundRewards{RewardRepo: memory.NewRewardRepo(store)}
	delegators := memory.NewDelegatorRepo(store)
	ledger := &fakeLedger{
		rewards:    make(map[uint64]map[string]*rpc.InflationReward),
		blockTimes: make(map[uint64]int64),
	}
	b := New(ledger, fixedPrice(20), rewards, cursor.New(rewards, 150), testLogger())

	ctx := context.Background()
	for _, id := range []string{"d1", "d2"} {
		err := delegators.Create(ctx, &domain.Delegator{
			DelegatorID:     id,
			ActivationEpoch: 100,
			UnstakedEpoch:   200,
			StakedAmount:    5_000_000_000,
		})
		if err != nil {
			t.Fatalf("Create() error = %v", err)
		}
	}

	day := time.Date(2024, 3, 15, 13, 0, 0, 0, time.UTC)
	ledger.addReward("d1", 150, 1500, 100_000, 5_100_000, day)
	ledger.addReward("d2", 150, 1501, 100_000, 5_100_000, day)
	ledger.latestEpoch = 152

	// Shutdown arrives while d2's block time is being fetched, after d1's
	// row for the epoch was already written.
	runCtx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ledger.failSlot = 1501
	ledger.onFailSlot = cancel

	if err := b.Run(runCtx, NewDelegatorScope(delegators)); err == nil {
		t.Fatal("Run() error = nil, want failure")
	}

	// The rollback must still happen, or the cursor would resume past the
	// half-written epoch and d2 would never receive its reward.
	rw, err := rewards.GetByEpoch(ctx, "d1", 150)
	if err != nil {
		t.Fatalf("GetByEpoch() error = %v", err)
	}
	if rw != nil {
		t.Errorf("partial row for canceled epoch survived: %+v", rw)
	}
	next, err := cursor.New(rewards, 150).Resume(ctx, []string{"d1", "d2"})
	if err != nil {
		t.Fatalf("Resume() error = %v", err)
	}
	if next != 150 {
		t.Errorf("next epoch = %d, want 150 reprocessed after rollback", next)
	}
}

func TestRunValidatorScope(t *testing.T) {
	f := newFixture(t, 150)
	f.ledger.latestEpoch = 152
	f.addReward("votePubkey", 150, 1500, 400_000, 9_000_000, time.Date(2024, 3, 15, 13, 0, 0, 0, time.UTC))

	scope := NewValidatorScope("identity", "votePubkey")
	if err := f.backfiller.Run(context.Background(), scope); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	// Rewards are queried by the vote pubkey but stored under the
	// validator's identity, with no stake attached.
	rw, _ := f.rewards.GetByEpoch(context.Background(), "identity", 150)
	if rw == nil {
		t.Fatal("validator reward not recorded")
	}
	if rw.Reward != 400_000 {
		t.Errorf("reward = %d, want 400000", rw.Reward)
	}
	if rw.StakedAmount != -1 || rw.StakedAmountUSD != -1 {
		t.Errorf("stake = %d/%v, want -1/-1", rw.StakedAmount, rw.StakedAmountUSD)
	}
}

func TestRunNoTargets(t *testing.T) {
	f := newFixture(t, 150)
	f.ledger.latestEpoch = 152

	if err := f.backfiller.Run(context.Background(), NewDelegatorScope(f.delegators)); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(f.ledger.requested) != 0 {
		t.Errorf("requested epochs = %v, want none without tracked identities", f.ledger.requested)
	}
}

func TestTargetEligible(t *testing.T) {
	tests := []struct {
		name  string
		epoch uint64
		want  bool
	}{
		{"before activation", 99, false},
		{"activation epoch itself", 100, false},
		{"inside window", 150, true},
		{"deactivation epoch itself", 200, false},
		{"after deactivation", 201, false},
	}
	target := Target{ActivationEpoch: 100, DeactivationEpoch: 200}
	for _, tt := range tests {
		if got := target.Eligible(tt.epoch); got != tt.want {
			t.Errorf("%s: Eligible(%d) = %v, want %v", tt.name, tt.epoch, got, tt.want)
		}
	}

	unbounded := Target{DeactivationEpoch: math.MaxUint64}
	if !unbounded.Eligible(1) {
		t.Error("unbounded target should be eligible at any positive epoch")
	}
}
