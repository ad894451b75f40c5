package sqlite

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRunMigrations_SecondRunIsNoOp(t *testing.T) {
	db := setupTestDB(t)

	// setupTestDB already migrated; running again must see no change.
	require.NoError(t, RunMigrations(db.Writer))
}
