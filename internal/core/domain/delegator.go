package domain

// Delegator is one tracked staking entity. Rows are created the first time
// an identity shows up in the validator's active-delegation set and are
// mutated on every reconciliation pass; they are never deleted.
type Delegator struct {
	ID                int64   `db:"id"`
	DelegatorID       string  `db:"delegator_id"`
	Timestamp         int64   `db:"timestamp"` // creation time, unix ms
	Unstaked          bool    `db:"unstaked"`
	UnstakedTimestamp int64   `db:"unstaked_timestamp"` // unix ms, -1 until set
	UnstakedEpoch     uint64  `db:"unstaked_epoch"`     // deactivation epoch recorded at creation
	APR               float64 `db:"apr"`
	StakedAmount      int64   `db:"staked_amount"` // lamports
	ActivationEpoch   uint64  `db:"activation_epoch"`
}

// StakeDelegation is a delegation as reported by the ledger for a stake
// account delegated to the tracked validator.
type StakeDelegation struct {
	Pubkey            string
	ActivationEpoch   uint64
	DeactivationEpoch uint64
	Stake             int64 // lamports
}

// Active reports whether the delegation is still active as of latestEpoch.
func (d StakeDelegation) Active(latestEpoch uint64) bool {
	return latestEpoch < d.DeactivationEpoch
}
