package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/trogers1052/paper-trader/internal/models"
)

const uniqueViolation = "23505"

// ApplyTrade writes the cash balance, the holding change and the transaction
// record of one executed trade in a single database transaction
func (db *DB) ApplyTrade(ctx context.Context, u *models.TradeUpdate) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now()

	result, err := tx.ExecContext(ctx,
		`UPDATE portfolios SET cash = $2, updated_at = $3 WHERE id = $1`,
		u.PortfolioID, u.Cash, now,
	)
	if err != nil {
		return fmt.Errorf("failed to update cash: %w", err)
	}
	if rowsAffected, _ := result.RowsAffected(); rowsAffected == 0 {
		return models.ErrPortfolioNotFound
	}

	if u.RemoveHolding {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM holdings WHERE portfolio_id = $1 AND ticker = $2`,
			u.PortfolioID, u.Holding.Ticker,
		); err != nil {
			return fmt.Errorf("failed to delete holding: %w", err)
		}
	} else if u.Holding != nil {
		h := u.Holding
		query := `
			INSERT INTO holdings (portfolio_id, ticker, quantity, average_cost, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $5)
			ON CONFLICT (portfolio_id, ticker) DO UPDATE SET
				quantity = EXCLUDED.quantity,
				average_cost = EXCLUDED.average_cost,
				updated_at = EXCLUDED.updated_at
			RETURNING id, created_at
		`
		if err := tx.QueryRowContext(ctx, query,
			u.PortfolioID, h.Ticker, h.Quantity, h.AverageCost, now,
		).Scan(&h.ID, &h.CreatedAt); err != nil {
			return fmt.Errorf("failed to upsert holding: %w", err)
		}
		h.PortfolioID = u.PortfolioID
		h.UpdatedAt = now
	}

	t := u.Transaction
	query := `
		INSERT INTO transactions (order_id, side, ticker, price, quantity, pnl, executed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`
	if err := tx.QueryRowContext(ctx, query,
		nullString(t.OrderID), t.Side, t.Ticker, t.Price, t.Quantity, t.PnL, t.Timestamp,
	).Scan(&t.ID); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return fmt.Errorf("%w: %s", models.ErrDuplicateOrder, t.OrderID)
		}
		return fmt.Errorf("failed to create transaction: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// ListTransactions retrieves the transaction log newest first.
// A non-positive limit returns every transaction.
func (db *DB) ListTransactions(ctx context.Context, limit int) ([]*models.Transaction, error) {
	query := `
		SELECT id, order_id, side, ticker, price, quantity, pnl, executed_at
		FROM transactions
		ORDER BY executed_at DESC, id DESC
	`
	var rows *sql.Rows
	var err error
	if limit > 0 {
		rows, err = db.conn.QueryContext(ctx, query+" LIMIT $1", limit)
	} else {
		rows, err = db.conn.QueryContext(ctx, query)
	}
	return db.scanTransactions(rows, err)
}

// TransactionExistsByOrderID checks if an order has already been executed
func (db *DB) TransactionExistsByOrderID(ctx context.Context, orderID string) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM transactions WHERE order_id = $1)`
	var exists bool
	if err := db.conn.QueryRowContext(ctx, query, orderID).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check transaction existence: %w", err)
	}
	return exists, nil
}

func (db *DB) scanTransactions(rows *sql.Rows, err error) ([]*models.Transaction, error) {
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer rows.Close()

	var transactions []*models.Transaction
	for rows.Next() {
		var t models.Transaction
		var orderID sql.NullString

		if err := rows.Scan(
			&t.ID, &orderID, &t.Side, &t.Ticker, &t.Price, &t.Quantity, &t.PnL, &t.Timestamp,
		); err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		if orderID.Valid {
			t.OrderID = orderID.String
		}
		transactions = append(transactions, &t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate transactions: %w", err)
	}
	return transactions, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
