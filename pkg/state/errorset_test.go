package state

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tweetvault/pkg/persist"
)

func TestErrorSetPersistsArray(t *testing.T) {
	backend := persist.NewMemoryBackend()
	set := NewErrorSet(backend)
	set.Add("300")
	set.Add("20")
	set.Add("20")
	require.NoError(t, set.Save())

	data, found, err := backend.Read(persist.KeyErrorSet)
	require.NoError(t, err)
	require.True(t, found)
	assert.JSONEq(t, `["20","300"]`, string(data))

	reloaded := NewErrorSet(backend)
	require.NoError(t, reloaded.Load())
	assert.Equal(t, 2, reloaded.Len())
	assert.True(t, reloaded.Contains("300"))

	reloaded.Remove("300")
	assert.False(t, reloaded.Contains("300"))
	assert.Equal(t, []string{"20"}, reloaded.IDs())
}

func TestErrorSetLoadMissing(t *testing.T) {
	set := NewErrorSet(persist.NewMemoryBackend())
	require.NoError(t, set.Load())
	assert.Zero(t, set.Len())
}

func TestErrorSetLoadCorrupt(t *testing.T) {
	backend := persist.NewMemoryBackend()
	require.NoError(t, backend.Write(persist.KeyErrorSet, []byte(`{"not":"an array"}`)))
	assert.Error(t, NewErrorSet(backend).Load())
}
