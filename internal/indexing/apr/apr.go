package apr

import (
	"context"
	"math"
	"time"

	"github.com/Luganodes/Solana-Indexer/internal/infra/storage"
)

// DefaultWindow is the trailing period rewards are annualized over.
const DefaultWindow = 30 * 24 * time.Hour

// epochsPerYearFactor annualizes a window of epochs; an epoch lasts
// roughly two and a half days, so a 30-day window times 12 approximates a
// year.
const epochsPerYearFactor = 12

// Calculator computes a trailing-window annualized yield from recorded
// rewards.
type Calculator struct {
	rewards storage.RewardRepository
	window  time.Duration
	now     func() time.Time
}

// New creates an APR calculator over the reward table.
func New(rewards storage.RewardRepository) *Calculator {
	return &Calculator{
		rewards: rewards,
		window:  DefaultWindow,
		now:     time.Now,
	}
}

// Compute returns the annualized yield percentage for a delegator based
// on rewards recorded inside the trailing window, up to latestEpoch
// exclusive. Returns 0 when no rewards fall inside the window or when the
// post-balance denominator is zero.
func (c *Calculator) Compute(ctx context.Context, delegatorID string, latestEpoch uint64) (float64, error) {
	since := c.now().Add(-c.window).UnixMilli()

	windowed, err := c.rewards.GetSince(ctx, delegatorID, since)
	if err != nil {
		return 0, err
	}
	if len(windowed) == 0 {
		return 0, nil
	}

	startEpoch := windowed[0].EpochNum
	if latestEpoch <= startEpoch {
		return 0, nil
	}
	numEpochs := latestEpoch - startEpoch + 1

	// Per-epoch data points from the window start up to latestEpoch
	// exclusive; epochs without a recorded reward contribute zeros.
	type point struct {
		reward      int64
		postBalance int64
	}
	points := make([]point, 0, latestEpoch-startEpoch)
	for epoch := startEpoch; epoch < latestEpoch; epoch++ {
		rw, err := c.rewards.GetByEpoch(ctx, delegatorID, epoch)
		if err != nil {
			return 0, err
		}
		p := point{}
		if rw != nil {
			p.reward = rw.Reward
			p.postBalance = rw.PostBalance
		}
		points = append(points, p)
	}

	// The first point's amount is a carried-over starting balance, not a
	// period's yield; the last point's balance has no following period.
	var totalReward, totalPostBalance int64
	for i, p := range points {
		if i != 0 {
			totalReward += p.reward
		}
		if i != len(points)-1 {
			totalPostBalance += p.postBalance
		}
	}
	if totalPostBalance == 0 {
		return 0, nil
	}

	apr := float64(totalReward) / float64(totalPostBalance) *
		float64(numEpochs) * epochsPerYearFactor * 100
	if math.IsNaN(apr) || math.IsInf(apr, 0) {
		return 0, nil
	}
	return apr, nil
}
