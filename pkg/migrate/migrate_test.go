package migrate

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrationsDirIsValid(t *testing.T) {
	require.NoError(t, ValidateDir("migrations"))
}

func TestTransactionsMigrationMatchesModel(t *testing.T) {
	matches, err := filepath.Glob(filepath.Join("migrations", "*_create_transactions.sql"))
	require.NoError(t, err)
	require.Len(t, matches, 1)

	data, err := os.ReadFile(matches[0])
	require.NoError(t, err)
	content := string(data)

	for _, sub := range []string{
		"CREATE TABLE IF NOT EXISTS transactions",
		"basket_id UUID NOT NULL",
		"CONSTRAINT idx_transactions_basket_id UNIQUE (basket_id)",
		"CONSTRAINT idx_transactions_charge_id UNIQUE (charge_id)",
		"manual_review_required BOOLEAN NOT NULL",
		"DROP TABLE IF EXISTS transactions",
	} {
		assert.Contains(t, content, sub)
	}
}

func TestCreateSQLMigration(t *testing.T) {
	dir := t.TempDir()
	now := time.Date(2026, 10, 18, 9, 30, 0, 0, time.UTC)

	path, err := CreateSQLMigration(dir, " Add Refunds Table! ", now)
	require.NoError(t, err)
	assert.Equal(t, "20261018093000_add_refunds_table.sql", filepath.Base(path))
	require.NoError(t, ValidateDir(dir))

	_, err = CreateSQLMigration(dir, "add refunds table", now)
	assert.Error(t, err, "same version and name must not overwrite")

	_, err = CreateSQLMigration(dir, "!!!", now)
	assert.Error(t, err)
}

func TestValidateDirRejectsBadFiles(t *testing.T) {
	cases := map[string]string{
		"bad name":     "create_things.sql",
		"missing down": "20261018093000_things.sql",
	}
	for name, file := range cases {
		t.Run(name, func(t *testing.T) {
			dir := t.TempDir()
			require.NoError(t, os.WriteFile(filepath.Join(dir, file), []byte("-- +goose Up\nSELECT 1;\n"), 0o644))
			err := ValidateDir(dir)
			require.Error(t, err)
			assert.True(t, strings.Contains(err.Error(), file))
		})
	}
}

func TestParseVersion(t *testing.T) {
	v, err := ParseVersion("20261012090000")
	require.NoError(t, err)
	assert.Equal(t, int64(20261012090000), v)

	_, err = ParseVersion("2026")
	assert.Error(t, err)
	_, err = ParseVersion("2026101209000x")
	assert.Error(t, err)
}
