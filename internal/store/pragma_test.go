package store

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// The modernc driver silently ignores mattn-style DSN query parameters, so
// the pragmas must be applied through Exec. Read them back to make sure they
// actually took effect.
func TestOpenAppliesPragmas(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "coach.db"))
	require.NoError(t, err)
	defer s.Close()

	var mode string
	require.NoError(t, s.db.QueryRow("PRAGMA journal_mode").Scan(&mode))
	assert.Equal(t, "wal", mode)

	var timeout int
	require.NoError(t, s.db.QueryRow("PRAGMA busy_timeout").Scan(&timeout))
	assert.Equal(t, 5000, timeout)
}
