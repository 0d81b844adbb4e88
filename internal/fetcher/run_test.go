package fetcher

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tweetvault/pkg/logger"
	"tweetvault/pkg/manifest"
	"tweetvault/pkg/models"
	"tweetvault/pkg/persist"
	"tweetvault/pkg/ratelimit"
	"tweetvault/pkg/scheduler"
	"tweetvault/pkg/state"
	"tweetvault/pkg/storage"
)

// mediaServer serves every path except /missing.jpg and answers the first
// request for /busy.jpg with 429.
func mediaServer(t *testing.T) (*httptest.Server, *int32) {
	t.Helper()
	var busy int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/missing.jpg":
			http.NotFound(w, r)
		case "/busy.jpg":
			if atomic.AddInt32(&busy, 1) == 1 {
				w.WriteHeader(http.StatusTooManyRequests)
				return
			}
			fmt.Fprint(w, "busy")
		default:
			fmt.Fprint(w, "ok")
		}
	}))
	t.Cleanup(srv.Close)
	return srv, &busy
}

func TestRunAgainstMediaServer(t *testing.T) {
	srv, busy := mediaServer(t)

	// read errors quote the path; keep random digits out of it so no
	// message accidentally reads as a 429
	t.Chdir(t.TempDir())
	layout := storage.NewLayout("vault")
	writeManifest(t, layout, "1", fmt.Sprintf(`{"media": [{"type": "photo", "image": "%s/ok.jpg"}]}`, srv.URL))
	writeManifest(t, layout, "2", fmt.Sprintf(`{"media": [{"type": "photo", "image": "%s/busy.jpg"}]}`, srv.URL))
	writeManifest(t, layout, "3", fmt.Sprintf(`{"media": [{"type": "photo", "image": "%s/missing.jpg"}]}`, srv.URL))
	// a directory where the manifest should be cannot be read
	require.NoError(t, os.MkdirAll(layout.ManifestPath("5"), 0755))

	backend := persist.NewMemoryBackend()
	store := state.NewStore(state.Options{Backend: backend})
	errorSet := state.NewErrorSet(backend)
	tracker := ratelimit.NewTracker(ratelimit.TrackerOptions{Backend: backend})
	inspector := manifest.NewInspector(layout)

	f, _ := newFetcher(t, layout)
	var waits []time.Duration
	newScheduler := func() *scheduler.Scheduler {
		return scheduler.New(store, inspector, tracker, scheduler.Options{
			BatchSize:           2,
			RateLimitWait:       time.Minute,
			MaxRateLimitRetries: 2,
			SkipComplete:        true,
			ErrorSet:            errorSet,
			SkipErrorListed:     true,
			Logger:              logger.NewNopLogger(),
			Sleep: func(_ context.Context, d time.Duration) error {
				waits = append(waits, d)
				return nil
			},
		})
	}

	ids := []string{"1", "2", "3", "4", "5"}
	summary, err := newScheduler().Run(context.Background(), ids, f.Fetch)
	require.NoError(t, err)

	assert.Equal(t, 2, summary.Succeeded)
	assert.Equal(t, 1, summary.Failed)
	assert.Equal(t, 1, summary.Pending)
	assert.Equal(t, 1, summary.Errored)
	assert.Equal(t, 1, summary.RateLimitHits)
	assert.EqualValues(t, 2, atomic.LoadInt32(busy))
	assert.Equal(t, []time.Duration{time.Minute}, waits)

	assert.Equal(t, models.Success{MediaCount: 1, DownloadedCount: 1}, store.GetStatus("2").Details)
	assert.Equal(t, models.StatusFailed, store.GetStatus("3").Status)
	assert.Equal(t, models.Pending{Reason: manifest.ReasonNoMetadata}, store.GetStatus("4").Details)
	assert.Equal(t, models.StatusError, store.GetStatus("5").Status)
	assert.Equal(t, []string{"3", "5"}, errorSet.IDs())

	stats := store.Stats()
	assert.Equal(t, 5, stats.Total)
	assert.Equal(t, stats.Total, stats.Sum())

	// a second run only tries the item still waiting for its manifest
	summary, err = newScheduler().Run(context.Background(), ids, f.Fetch)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.SkippedComplete)
	assert.Equal(t, 2, summary.SkippedErrorListed)
	assert.Equal(t, 1, summary.Processed)
	assert.Equal(t, 1, summary.Pending)
}
