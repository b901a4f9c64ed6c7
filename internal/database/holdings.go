package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/trogers1052/paper-trader/internal/models"
)

// GetHolding retrieves the holding for a ticker
func (db *DB) GetHolding(ctx context.Context, portfolioID int, ticker string) (*models.Holding, error) {
	query := `
		SELECT id, portfolio_id, ticker, quantity, average_cost, created_at, updated_at
		FROM holdings
		WHERE portfolio_id = $1 AND ticker = $2
	`
	var h models.Holding
	err := db.conn.QueryRowContext(ctx, query, portfolioID, ticker).Scan(
		&h.ID, &h.PortfolioID, &h.Ticker, &h.Quantity, &h.AverageCost, &h.CreatedAt, &h.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", models.ErrHoldingNotFound, ticker)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get holding: %w", err)
	}
	return &h, nil
}

// ListHoldings retrieves all holdings of a portfolio ordered by ticker
func (db *DB) ListHoldings(ctx context.Context, portfolioID int) ([]*models.Holding, error) {
	query := `
		SELECT id, portfolio_id, ticker, quantity, average_cost, created_at, updated_at
		FROM holdings
		WHERE portfolio_id = $1
		ORDER BY ticker
	`
	rows, err := db.conn.QueryContext(ctx, query, portfolioID)
	if err != nil {
		return nil, fmt.Errorf("failed to query holdings: %w", err)
	}
	defer rows.Close()

	var holdings []*models.Holding
	for rows.Next() {
		var h models.Holding
		if err := rows.Scan(
			&h.ID, &h.PortfolioID, &h.Ticker, &h.Quantity, &h.AverageCost, &h.CreatedAt, &h.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan holding: %w", err)
		}
		holdings = append(holdings, &h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate holdings: %w", err)
	}
	return holdings, nil
}
