package database

import (
	"context"
	"fmt"
	"time"

	"github.com/trogers1052/paper-trader/internal/models"
)

// CreateSnapshot appends a portfolio value observation
func (db *DB) CreateSnapshot(ctx context.Context, s *models.PortfolioSnapshot) error {
	query := `
		INSERT INTO portfolio_snapshots (value, recorded_at)
		VALUES ($1, $2)
		RETURNING id
	`
	if s.Timestamp.IsZero() {
		s.Timestamp = time.Now()
	}
	if err := db.conn.QueryRowContext(ctx, query, s.Value, s.Timestamp).Scan(&s.ID); err != nil {
		return fmt.Errorf("failed to create snapshot: %w", err)
	}
	return nil
}

// ListSnapshots retrieves snapshots recorded in [from, to), oldest first
func (db *DB) ListSnapshots(ctx context.Context, from, to time.Time) ([]*models.PortfolioSnapshot, error) {
	query := `
		SELECT id, value, recorded_at
		FROM portfolio_snapshots
		WHERE recorded_at >= $1 AND recorded_at < $2
		ORDER BY recorded_at ASC, id ASC
	`
	rows, err := db.conn.QueryContext(ctx, query, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to query snapshots: %w", err)
	}
	defer rows.Close()

	var snapshots []*models.PortfolioSnapshot
	for rows.Next() {
		var s models.PortfolioSnapshot
		if err := rows.Scan(&s.ID, &s.Value, &s.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan snapshot: %w", err)
		}
		snapshots = append(snapshots, &s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate snapshots: %w", err)
	}
	return snapshots, nil
}
