package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/trogers1052/paper-trader/internal/models"
)

// GetPortfolio retrieves the portfolio. There is at most one.
func (db *DB) GetPortfolio(ctx context.Context) (*models.Portfolio, error) {
	query := `
		SELECT id, cash, created_at, updated_at
		FROM portfolios
		ORDER BY id
		LIMIT 1
	`
	var p models.Portfolio
	err := db.conn.QueryRowContext(ctx, query).Scan(&p.ID, &p.Cash, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrPortfolioNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get portfolio: %w", err)
	}
	return &p, nil
}

// CreatePortfolio inserts a portfolio with the given cash balance
func (db *DB) CreatePortfolio(ctx context.Context, cash decimal.Decimal) (*models.Portfolio, error) {
	p, err := insertPortfolio(ctx, db.conn, cash)
	if err != nil {
		return nil, fmt.Errorf("failed to create portfolio: %w", err)
	}
	return p, nil
}

// ResetPortfolio wipes holdings, transactions, snapshots and the portfolio,
// then creates a fresh portfolio holding only cash. All or nothing.
func (db *DB) ResetPortfolio(ctx context.Context, cash decimal.Decimal) (*models.Portfolio, error) {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, table := range []string{"holdings", "transactions", "portfolio_snapshots", "portfolios"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return nil, fmt.Errorf("failed to delete %s: %w", table, err)
		}
	}

	p, err := insertPortfolio(ctx, tx, cash)
	if err != nil {
		return nil, fmt.Errorf("failed to create portfolio: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return p, nil
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func insertPortfolio(ctx context.Context, q queryer, cash decimal.Decimal) (*models.Portfolio, error) {
	query := `
		INSERT INTO portfolios (cash, created_at, updated_at)
		VALUES ($1, $2, $2)
		RETURNING id
	`
	now := time.Now()
	p := &models.Portfolio{Cash: cash, CreatedAt: now, UpdatedAt: now}
	if err := q.QueryRowContext(ctx, query, cash, now).Scan(&p.ID); err != nil {
		return nil, err
	}
	return p, nil
}
