package logger

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"tweetvault/pkg/models"
)

// LogRequest logs HTTP request information
func LogRequest(l Logger, method, url string, statusCode int, duration time.Duration) {
	fields := map[string]interface{}{
		"method":      method,
		"url":         url,
		"status_code": statusCode,
		"duration_ms": float64(duration.Microseconds()) / 1000,
	}

	switch {
	case statusCode >= 500:
		l.ErrorWithFields("HTTP request server error", fields)
	case statusCode >= 400:
		l.WarnWithFields("HTTP request client error", fields)
	default:
		l.DebugWithFields("HTTP request completed", fields)
	}
}

// LogItemStatus logs the status an item was written with
func LogItemStatus(l Logger, id string, details models.Details) {
	fields := map[string]interface{}{
		"tweet_id": id,
		"status":   string(details.Status()),
	}

	switch d := details.(type) {
	case models.Success:
		fields["media_count"] = d.MediaCount
		l.InfoWithFields("Item complete", fields)
	case models.Partial:
		fields["media_count"] = d.MediaCount
		fields["downloaded_count"] = d.DownloadedCount
		l.WarnWithFields("Item partially downloaded", fields)
	case models.Pending:
		if d.Reason != "" {
			fields["reason"] = d.Reason
		}
		l.InfoWithFields("Item pending", fields)
	case models.NoMedia:
		l.InfoWithFields("Item has no media", fields)
	case models.Failed:
		fields["error"] = d.Error
		l.ErrorWithFields("Item failed", fields)
	case models.Errored:
		fields["error"] = d.Error
		l.ErrorWithFields("Item errored", fields)
	}
}

// LogRateLimit logs rate limiting events
func LogRateLimit(l Logger, id, reason string, wait time.Duration, attempt, maxAttempts int) {
	l.WithFields(map[string]interface{}{
		"tweet_id": id,
		"reason":   reason,
		"wait":     wait,
		"attempt":  fmt.Sprintf("%d/%d", attempt, maxAttempts),
		"action":   "rate_limited",
	}).Warn("Rate limit reached, backing off")
}

// LogBatch logs the start of a batch
func LogBatch(l Logger, index, batches, size int) {
	l.WithFields(map[string]interface{}{
		"batch":   index + 1,
		"batches": batches,
		"size":    size,
	}).Info("Processing batch")
}

// LogRunSummary logs run counters at the end of a run
func LogRunSummary(l Logger, counters map[string]int, elapsed time.Duration) {
	fields := make(map[string]interface{}, len(counters)+1)
	for k, v := range counters {
		fields[k] = v
	}
	fields["elapsed"] = elapsed.Round(time.Second)
	l.InfoWithFields("Run finished", fields)
}

// NewNopLogger creates a no-operation logger for testing
func NewNopLogger() Logger {
	return &nopLogger{}
}

type nopLogger struct{}

func (n *nopLogger) Debug(msg string)                                          {}
func (n *nopLogger) Info(msg string)                                           {}
func (n *nopLogger) Warn(msg string)                                           {}
func (n *nopLogger) Error(msg string)                                          {}
func (n *nopLogger) Fatal(msg string)                                          {}
func (n *nopLogger) WithField(key string, value interface{}) Logger            { return n }
func (n *nopLogger) WithFields(fields map[string]interface{}) Logger           { return n }
func (n *nopLogger) WithError(err error) Logger                                { return n }
func (n *nopLogger) WithContext(ctx context.Context) Logger                    { return n }
func (n *nopLogger) DebugWithFields(msg string, fields map[string]interface{}) {}
func (n *nopLogger) InfoWithFields(msg string, fields map[string]interface{})  {}
func (n *nopLogger) WarnWithFields(msg string, fields map[string]interface{})  {}
func (n *nopLogger) ErrorWithFields(msg string, fields map[string]interface{}) {}
func (n *nopLogger) FatalWithFields(msg string, fields map[string]interface{}) {}
func (n *nopLogger) GetZerolog() *zerolog.Logger {
	z := zerolog.Nop()
	return &z
}
