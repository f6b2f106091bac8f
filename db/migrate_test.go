package db

import (
	"io/fs"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmbeddedMigrationsArePaired(t *testing.T) {
	entries, err := fs.ReadDir(migrations, "migrations")
	require.NoError(t, err)
	require.NotEmpty(t, entries)

	ups := map[string]bool{}
	downs := map[string]bool{}
	for _, e := range entries {
		name := e.Name()
		switch {
		case strings.HasSuffix(name, ".up.sql"):
			ups[strings.TrimSuffix(name, ".up.sql")] = true
		case strings.HasSuffix(name, ".down.sql"):
			downs[strings.TrimSuffix(name, ".down.sql")] = true
		default:
			t.Errorf("unexpected file %s", name)
		}
	}
	assert.Equal(t, ups, downs)
}

func TestReviewsCarryRaterUniqueKey(t *testing.T) {
	b, err := fs.ReadFile(migrations, "migrations/000004_create_reviews.up.sql")
	require.NoError(t, err)
	assert.Contains(t, string(b), "UNIQUE KEY uq_reviews_rater (transaction_id, from_uid)")
}

func TestBindingCodesKeyedByCode(t *testing.T) {
	b, err := fs.ReadFile(migrations, "migrations/000006_create_line_binding_codes.up.sql")
	require.NoError(t, err)
	assert.Contains(t, string(b), "code CHAR(6) PRIMARY KEY")
}
