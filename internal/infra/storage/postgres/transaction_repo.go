package postgres

import (
	"context"
	"fmt"

	"github.com/Luganodes/Solana-Indexer/internal/core/domain"
)

// TransactionRepo implements storage.TransactionRepository using PostgreSQL.
type TransactionRepo struct {
	db *DB
}

// NewTransactionRepo creates a new PostgreSQL transaction repository.
func NewTransactionRepo(db *DB) *TransactionRepo {
	return &TransactionRepo{db: db}
}

// ExistsFor reports whether any transaction is recorded for an identity.
func (r *TransactionRepo) ExistsFor(ctx context.Context, delegatorID string) (bool, error) {
	var exists bool
	err := r.db.GetContext(ctx, &exists,
		`SELECT EXISTS (SELECT 1 FROM transactions WHERE delegator_id = $1)`,
		delegatorID)
	if err != nil {
		return false, fmt.Errorf("failed to check transactions: %w", err)
	}
	return exists, nil
}

// Create inserts a new transaction row.
func (r *TransactionRepo) Create(ctx context.Context, t *domain.Transaction) error {
	_, err := r.db.NamedExecContext(ctx, `
		INSERT INTO transactions
			(delegator_id, timestamp, type, amount, sol_usd, fee,
			 transaction_hash, transaction_count)
		VALUES
			(:delegator_id, :timestamp, :type, :amount, :sol_usd, :fee,
			 :transaction_hash, :transaction_count)`, t)
	if err != nil {
		return fmt.Errorf("failed to create transaction: %w", err)
	}
	return nil
}
