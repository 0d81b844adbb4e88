package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tweetvault/pkg/models"
	"tweetvault/pkg/persist"
	"tweetvault/pkg/state"
	"tweetvault/pkg/storage"
)

// executeCommand runs the root command in a scratch working directory with
// every flag back at its default.
func executeCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	resetFlags(rootCmd)

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
	})

	allowUnknownFlags(rootCmd)
	err := rootCmd.Execute()
	return out.String(), err
}

func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, sub := range cmd.Commands() {
		resetFlags(sub)
	}
}

func scratchDir(t *testing.T) {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("HOME", dir)
	for _, key := range []string{"OUTPUT_DIR", "STATE_BACKEND", "STATE_DIR", "LIKES_FILE", "COOKIE", "LOG_LEVEL"} {
		t.Setenv("TWEETVAULT_"+key, "")
	}
}

func TestDownloadCommandRecordsExplicitIDs(t *testing.T) {
	scratchDir(t)
	layout := storage.NewLayout("vault")
	// an unreadable manifest record
	require.NoError(t, os.MkdirAll(layout.ManifestPath("13"), 0755))

	_, err := executeCommand(t, "download", "-q", "-o", "vault", "--cookie", "auth_token=a; ct0=b", "11,12", "13", "../escape")
	require.NoError(t, err)

	backend := persist.NewFileBackend(filepath.Join("vault", ".tweetvault"))
	store := state.NewStore(state.Options{Backend: backend})
	require.NoError(t, store.LastLoadError())

	for _, id := range []string{"11", "12"} {
		item := store.GetStatus(id)
		assert.Equal(t, models.StatusPending, item.Status, id)
	}
	assert.Equal(t, models.StatusError, store.GetStatus("13").Status)
	assert.False(t, store.Has("../escape"))
	assert.NoDirExists(t, filepath.Join("..", "escape"))

	errorSet := state.NewErrorSet(backend)
	require.NoError(t, errorSet.Load())
	assert.Equal(t, []string{"13"}, errorSet.IDs())
}

func TestDownloadCommandWithMemoryState(t *testing.T) {
	scratchDir(t)

	_, err := executeCommand(t, "download", "-q", "-o", "vault", "--state-backend", "memory://", "--cookie", "auth_token=a", "21")
	require.NoError(t, err)
	assert.NoFileExists(t, filepath.Join("vault", ".tweetvault", "state.json"))
}

func TestHelpExitsCleanly(t *testing.T) {
	scratchDir(t)

	out, err := executeCommand(t, "--help")
	require.NoError(t, err)
	assert.Contains(t, out, "tweetvault")

	out, err = executeCommand(t, "download", "--help")
	require.NoError(t, err)
	assert.Contains(t, out, "--include-errors")
}

func TestUnknownFlagIsTolerated(t *testing.T) {
	scratchDir(t)

	_, err := executeCommand(t, "download", "--no-such-flag=1", "-q", "-o", "vault", "--state-backend", "memory://", "--cookie", "auth_token=a", "31")
	assert.NoError(t, err)

	_, err = executeCommand(t, "config", "show", "--bogus=x", "-q")
	assert.NoError(t, err)
}
