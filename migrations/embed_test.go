package migrations

import (
	"io/fs"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/price-service/pkg/database"
)

func TestFS_MigrationsInOrder(t *testing.T) {
	names, err := database.PendingMigrations(FS)
	require.NoError(t, err)
	assert.Equal(t, []string{"001_schema.up.sql", "002_seed.up.sql"}, names)
}

func TestFS_SchemaMatchesLookupQuery(t *testing.T) {
	raw, err := fs.ReadFile(FS, "001_schema.up.sql")
	require.NoError(t, err)
	schema := string(raw)

	for _, column := range []string{"price_list", "brand_id", "product_id", "priority", "curr", "amount", "start_date", "end_date"} {
		assert.Contains(t, schema, column)
	}
	assert.Contains(t, schema, "start_date TIMESTAMP ")
	assert.Contains(t, schema, "idx_prices_lookup")
}

func TestFS_SeedHoldsReferenceRows(t *testing.T) {
	raw, err := fs.ReadFile(FS, "002_seed.up.sql")
	require.NoError(t, err)
	seed := string(raw)

	assert.Equal(t, 4, strings.Count(seed, "35455"))
	for _, amount := range []string{"35.50", "25.45", "30.50", "38.95"} {
		assert.Contains(t, seed, amount)
	}
}
