package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/banking/regional-compliance/internal/domain"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// TransactionRepository is the durable transaction record behind the
// in-process history cache
type TransactionRepository struct {
	pool *pgxpool.Pool
}

func NewTransactionRepository(pool *pgxpool.Pool) *TransactionRepository {
	return &TransactionRepository{pool: pool}
}

// InsertTransaction stores tx once; replays of the same id are ignored
func (r *TransactionRepository) InsertTransaction(ctx context.Context, tx domain.Transaction) error {
	const query = `
		INSERT INTO compliance_transactions (
			transaction_id, user_id, type, amount, currency,
			from_account, to_account, recipient_name, recipient_country, narration,
			timestamp, status
		) VALUES ($1, $2, $3, $4::numeric, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (transaction_id) DO NOTHING
	`
	_, err := r.pool.Exec(ctx, query,
		tx.ID, tx.UserID, tx.Type, tx.Amount.String(), tx.Currency,
		tx.FromAccount, tx.ToAccount, tx.RecipientName, tx.RecipientCountry, tx.Narration,
		tx.Timestamp, tx.Status,
	)
	if err != nil {
		return fmt.Errorf("failed to insert transaction: %w", err)
	}
	return nil
}

// LoadSince returns a user's transactions at or after since, oldest first
func (r *TransactionRepository) LoadSince(ctx context.Context, userID string, since time.Time) ([]domain.Transaction, error) {
	const query = `
		SELECT transaction_id, user_id, type, amount::text, currency,
			from_account, to_account, recipient_name, recipient_country, narration,
			timestamp, status
		FROM compliance_transactions
		WHERE user_id = $1 AND timestamp >= $2
		ORDER BY timestamp ASC
	`
	rows, err := r.pool.Query(ctx, query, userID, since)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer rows.Close()

	var txs []domain.Transaction
	for rows.Next() {
		var (
			tx     domain.Transaction
			amount string
		)
		if err := rows.Scan(
			&tx.ID, &tx.UserID, &tx.Type, &amount, &tx.Currency,
			&tx.FromAccount, &tx.ToAccount, &tx.RecipientName, &tx.RecipientCountry, &tx.Narration,
			&tx.Timestamp, &tx.Status,
		); err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		if tx.Amount, err = decimal.NewFromString(amount); err != nil {
			return nil, fmt.Errorf("transaction %s: invalid amount %q: %w", tx.ID, amount, err)
		}
		txs = append(txs, tx)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read transactions: %w", err)
	}
	return txs, nil
}
