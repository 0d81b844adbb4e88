// Package fetcher places the media files of items whose manifest record is
// already on disk. It implements the scheduler's fetch collaborator.
package fetcher

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/cenkalti/backoff/v4"

	errs "tweetvault/pkg/errors"
	"tweetvault/pkg/logger"
	"tweetvault/pkg/manifest"
	"tweetvault/pkg/models"
	"tweetvault/pkg/ratelimit"
	"tweetvault/pkg/storage"
)

// DefaultMaxRetries is how often a reset or timed out transfer is retried
const DefaultMaxRetries = 1

// DefaultUserAgent is sent when no user agent is configured
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"

// cookieHosts are the domains the session cookie may be sent to
var cookieHosts = []string{"twitter.com", "x.com", "twimg.com"}

// Options configures a Fetcher
type Options struct {
	Layout    *storage.Layout
	Cookie    string
	UserAgent string
	Timeout   time.Duration
	// RetryDelay is the wait before retrying a reset or timed out transfer
	RetryDelay time.Duration
	// MaxRetries bounds those retries per file. Zero means DefaultMaxRetries
	// and a negative value disables them.
	MaxRetries int
	// Limiter paces requests; nil disables pacing
	Limiter    ratelimit.Limiter
	HTTPClient *http.Client
	Logger     logger.Logger
}

// Fetcher downloads the files an item's manifest expects and that are not
// on disk yet.
type Fetcher struct {
	layout     *storage.Layout
	inspector  *manifest.Inspector
	client     *http.Client
	headers    map[string]string
	cookie     string
	retryDelay time.Duration
	maxRetries uint64
	limiter    ratelimit.Limiter
	logger     logger.Logger
}

func New(opts Options) *Fetcher {
	if opts.Logger == nil {
		opts.Logger = logger.GetLogger()
	}
	if opts.UserAgent == "" {
		opts.UserAgent = DefaultUserAgent
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = 5 * time.Second
	}
	switch {
	case opts.MaxRetries == 0:
		opts.MaxRetries = DefaultMaxRetries
	case opts.MaxRetries < 0:
		opts.MaxRetries = 0
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: opts.Timeout}
	}

	return &Fetcher{
		layout:    opts.Layout,
		inspector: manifest.NewInspector(opts.Layout),
		client:    client,
		headers: map[string]string{
			"User-Agent":      opts.UserAgent,
			"Accept":          "image/avif,image/webp,image/apng,video/*,*/*;q=0.8",
			"Accept-Language": "en-US,en;q=0.9",
		},
		cookie:     opts.Cookie,
		retryDelay: opts.RetryDelay,
		maxRetries: uint64(opts.MaxRetries),
		limiter:    opts.Limiter,
		logger:     opts.Logger,
	}
}

// Fetch downloads every missing expected file of id. Downloading stops at
// the first rejected credential or rate limit. Other per-file failures are
// logged and the remaining files are still attempted; the outcome fails
// only when nothing could be placed.
func (f *Fetcher) Fetch(ctx context.Context, id string) models.FetchOutcome {
	m, present, err := f.inspector.Load(id)
	if err != nil {
		return models.FailedOutcome(err, 0)
	}
	if !present {
		return models.FailedOutcome(stderrors.New("no metadata"), 0)
	}

	missing := f.missingFiles(id, m)
	if len(missing) == 0 {
		return models.OK()
	}

	var (
		placed   int
		firstErr error
	)
	for _, name := range sortedKeys(missing) {
		err := f.download(ctx, id, name, missing[name])
		if err == nil {
			placed++
			continue
		}

		log := f.logger.WithFields(map[string]interface{}{
			"tweet_id": id,
			"file":     name,
		}).WithError(err)

		switch errs.TypeOf(err) {
		case errs.ErrorTypeAuth:
			log.Error("Media request rejected")
			return models.AuthFailure(err.Error(), codeOf(err))
		case errs.ErrorTypeRateLimit:
			log.Warn("Media request rate limited")
			return models.FailedOutcome(err, http.StatusTooManyRequests)
		}
		if ctx.Err() != nil {
			return models.FailedOutcome(ctx.Err(), 0)
		}

		log.Warn("Failed to download media file")
		if firstErr == nil {
			firstErr = err
		}
	}

	if placed == 0 && firstErr != nil {
		return models.FailedOutcome(firstErr, codeOf(firstErr))
	}
	return models.OK()
}

// missingFiles maps each expected file that is not on disk to its URL
func (f *Fetcher) missingFiles(id string, m *manifest.Manifest) map[string]string {
	missing := make(map[string]string)
	for _, d := range m.Media {
		for name, u := range manifest.URLs(d) {
			if !f.layout.HasFile(id, name) {
				missing[name] = u
			}
		}
	}
	return missing
}

// download fetches one file, retrying after retryDelay, at most maxRetries
// times, when the connection was reset or timed out.
func (f *Fetcher) download(ctx context.Context, id, name, rawURL string) error {
	b := backoff.WithContext(backoff.WithMaxRetries(backoff.NewConstantBackOff(f.retryDelay), f.maxRetries), ctx)

	return backoff.RetryNotify(func() error {
		err := f.downloadOnce(ctx, id, name, rawURL)
		if err == nil {
			return nil
		}
		if errs.Is(err, errs.ErrorTypeTransientIO) {
			return err
		}
		return backoff.Permanent(err)
	}, b, func(err error, wait time.Duration) {
		f.logger.WarnWithFields("Transient network error, retrying", map[string]interface{}{
			"tweet_id": id,
			"file":     name,
			"error":    err.Error(),
			"wait":     wait,
		})
	})
}

func (f *Fetcher) downloadOnce(ctx context.Context, id, name, rawURL string) error {
	if f.limiter != nil {
		if err := f.limiter.Wait(ctx); err != nil {
			return err
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return errs.Wrap(errs.ErrorTypeUnknown, err, "failed to create request")
	}
	for key, value := range f.headers {
		req.Header.Set(key, value)
	}
	if f.cookie != "" && sendsCookie(req.URL) {
		req.Header.Set("Cookie", f.cookie)
	}

	start := time.Now()
	resp, err := f.client.Do(req)
	if err != nil {
		if isTransient(err) {
			return errs.Wrap(errs.ErrorTypeTransientIO, err, "transfer interrupted")
		}
		return errs.Wrap(errs.ErrorTypeNetwork, err, "request failed")
	}
	defer resp.Body.Close()
	logger.LogRequest(f.logger, req.Method, rawURL, resp.StatusCode, time.Since(start))

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return errs.WithCode(errs.TypeForStatusCode(resp.StatusCode), resp.StatusCode,
			fmt.Sprintf("%d %s", resp.StatusCode, http.StatusText(resp.StatusCode)))
	}

	if err := f.layout.SaveFile(id, name, resp.Body); err != nil {
		if isTransient(err) {
			return errs.Wrap(errs.ErrorTypeTransientIO, err, "transfer interrupted")
		}
		return errs.Wrap(errs.ErrorTypeFilesystem, err, "failed to store media")
	}
	return nil
}

// isTransient matches connection resets, timeouts and connections closed
// mid-transfer.
func isTransient(err error) bool {
	if stderrors.Is(err, context.Canceled) {
		return false
	}
	if stderrors.Is(err, syscall.ECONNRESET) || stderrors.Is(err, syscall.ETIMEDOUT) {
		return true
	}
	if stderrors.Is(err, io.EOF) || stderrors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}
	var netErr net.Error
	return stderrors.As(err, &netErr) && netErr.Timeout()
}

func sendsCookie(u *url.URL) bool {
	host := strings.ToLower(u.Hostname())
	for _, h := range cookieHosts {
		if host == h || strings.HasSuffix(host, "."+h) {
			return true
		}
	}
	return false
}

func codeOf(err error) int {
	var typed *errs.Error
	if stderrors.As(err, &typed) {
		return typed.Code
	}
	return 0
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
