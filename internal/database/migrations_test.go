package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrations(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	testDB := SetupTestDB(t)
	defer testDB.Cleanup(t)

	t.Run("all tables exist", func(t *testing.T) {
		expectedTables := []string{
			"portfolios",
			"holdings",
			"transactions",
			"portfolio_snapshots",
		}

		for _, tableName := range expectedTables {
			var exists bool
			err := testDB.GetRawConn().QueryRow(`
				SELECT EXISTS (
					SELECT FROM information_schema.tables
					WHERE table_schema = 'public'
					AND table_name = $1
				)
			`, tableName).Scan(&exists)

			require.NoError(t, err, "failed to check table existence for %s", tableName)
			assert.True(t, exists, "table %s should exist", tableName)
		}
	})

	t.Run("money columns are numeric", func(t *testing.T) {
		columns := map[string][]string{
			"portfolios":          {"cash"},
			"holdings":            {"average_cost"},
			"transactions":        {"price", "pnl"},
			"portfolio_snapshots": {"value"},
		}

		for table, cols := range columns {
			for _, col := range cols {
				var dataType string
				err := testDB.GetRawConn().QueryRow(`
					SELECT data_type
					FROM information_schema.columns
					WHERE table_name = $1 AND column_name = $2
				`, table, col).Scan(&dataType)

				require.NoError(t, err, "column %s.%s should exist", table, col)
				assert.Equal(t, "numeric", dataType, "column %s.%s should be numeric", table, col)
			}
		}
	})

	t.Run("embedded migrations are already applied", func(t *testing.T) {
		require.NoError(t, testDB.Migrate())
	})

	t.Run("negative cash is rejected by the schema", func(t *testing.T) {
		testDB.TruncateAll(t)

		_, err := testDB.GetRawConn().Exec(`INSERT INTO portfolios (cash) VALUES (-1)`)
		require.Error(t, err)
	})

	t.Run("zero quantity holding is rejected by the schema", func(t *testing.T) {
		testDB.TruncateAll(t)

		var portfolioID int
		require.NoError(t, testDB.GetRawConn().QueryRow(
			`INSERT INTO portfolios (cash) VALUES (100) RETURNING id`,
		).Scan(&portfolioID))

		_, err := testDB.GetRawConn().Exec(`
			INSERT INTO holdings (portfolio_id, ticker, quantity, average_cost)
			VALUES ($1, 'AAPL', 0, 100)
		`, portfolioID)
		require.Error(t, err)
	})
}
