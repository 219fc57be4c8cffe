package state

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFile(t *testing.T) {
	t.Setenv("LOOKOUT_HOME", t.TempDir())

	st, err := Load()
	require.NoError(t, err)
	assert.Empty(t, st.Repositories)
	assert.NotNil(t, st.Expanded)
}

func TestSaveAndLoad(t *testing.T) {
	t.Setenv("LOOKOUT_HOME", t.TempDir())

	st := &State{
		Repositories: []string{"/home/user/projects/alpha", "/home/user/projects/beta"},
		Expanded:     map[string]bool{"/home/user/projects/alpha": true},
	}
	require.NoError(t, Save(st))

	loaded, err := Load()
	require.NoError(t, err)
	assert.Equal(t, st.Repositories, loaded.Repositories)
	assert.True(t, loaded.Expanded["/home/user/projects/alpha"])
}

func TestAddRemovePath(t *testing.T) {
	st := &State{Expanded: make(map[string]bool)}

	assert.True(t, st.AddPath("/a"))
	assert.False(t, st.AddPath("/a"))
	assert.True(t, st.AddPath("/b"))
	assert.Equal(t, []string{"/a", "/b"}, st.Repositories)

	assert.True(t, st.RemovePath("/a"))
	assert.False(t, st.RemovePath("/a"))
	assert.Equal(t, []string{"/b"}, st.Repositories)
}
