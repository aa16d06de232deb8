package session

import (
	"os"
	"testing"

	"bizlens/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateAndList(t *testing.T) {
	m, err := Open(t.TempDir())
	require.NoError(t, err)
	defer m.Close()

	s, err := m.Create("Acme Corp", types.ModeFull)
	require.NoError(t, err)
	assert.DirExists(t, s.Dir)
	assert.Contains(t, s.Dir, "acme-corp")

	sessions, err := m.List(10)
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, "Acme Corp", sessions[0].Company)
}

func TestLatestForSkipsMissingState(t *testing.T) {
	m, err := Open(t.TempDir())
	require.NoError(t, err)
	defer m.Close()

	// Older session with a state file.
	older, err := m.Create("Acme", types.ModeBusinessOverview)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(older.StatePath, []byte(`{}`), 0o644))

	// Newer session that never saved state.
	_, err = m.Create("Acme", types.ModeFull)
	require.NoError(t, err)

	found, ok, err := m.LatestFor("Acme")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, older.ID, found.ID)

	_, ok, err = m.LatestFor("Nobody")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSlugify(t *testing.T) {
	assert.Equal(t, "acme-corp", slugify("Acme Corp"))
	assert.Equal(t, "stripe-inc", slugify("Stripe, Inc."))
	assert.Equal(t, "company", slugify("!!!"))
}
