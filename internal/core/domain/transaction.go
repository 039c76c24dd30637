package domain

// TxTypeStake is the only transaction type produced by discovery.
const TxTypeStake = "STAKE"

// Transaction is the first on-chain transfer found for a delegator that
// references the tracked validator. Created once at discovery, never
// mutated.
type Transaction struct {
	ID               int64   `db:"id"`
	DelegatorID      string  `db:"delegator_id"`
	Timestamp        int64   `db:"timestamp"` // block time, unix ms
	Type             string  `db:"type"`
	Amount           int64   `db:"amount"` // staked lamports at discovery
	SolUSD           float64 `db:"sol_usd"`
	Fee              float64 `db:"fee"` // SOL
	TransactionHash  string  `db:"transaction_hash"`
	TransactionCount int     `db:"transaction_count"` // signatures seen for the address at discovery
}
