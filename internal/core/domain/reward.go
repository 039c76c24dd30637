package domain

// RewardAction tags how a reward row came to be.
type RewardAction string

const (
	ActionReward RewardAction = "REWARD"
	// ActionWithdraw is part of the record shape but no flow produces it yet.
	ActionWithdraw RewardAction = "WITHDRAW"
)

// Reward is one recorded inflation reward for a (delegator, epoch) pair.
// The timestamp is the UTC-midnight day key of the reward's block time;
// per delegator the set of timestamps is unique, maintained by
// delete-then-insert when an epoch is reprocessed.
type Reward struct {
	ID                int64        `db:"id"`
	DelegatorID       string       `db:"delegator_id"`
	EpochNum          uint64       `db:"epoch_num"`
	Timestamp         int64        `db:"timestamp"` // UTC midnight, unix ms
	SolUSD            float64      `db:"sol_usd"`
	UserAction        RewardAction `db:"user_action"`
	Reward            int64        `db:"reward"` // lamports
	RewardUSD         float64      `db:"reward_usd"`
	TotalReward       int64        `db:"total_reward"`
	TotalRewardUSD    float64      `db:"total_reward_usd"`
	PendingRewards    int64        `db:"pending_rewards"`
	PendingRewardsUSD float64      `db:"pending_rewards_usd"`
	PostBalance       int64        `db:"post_balance"`
	PostBalanceUSD    float64      `db:"post_balance_usd"`
	StakedAmount      int64        `db:"staked_amount"` // -1 for the validator's own rewards
	StakedAmountUSD   float64      `db:"staked_amount_usd"`
}
