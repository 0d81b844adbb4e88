// Package logger provides structured logging for tweetvault.
//
// It wraps zerolog behind a small Logger interface so that packages can be
// handed a logger explicitly (and tests can pass NewTestLogger or
// NewNopLogger) while the CLI configures one global instance:
//
//	if err := logger.Initialize(&cfg.Logging); err != nil {
//	    return err
//	}
//	log := logger.GetLogger().WithField("component", "scheduler")
//	log.InfoWithFields("Processing batch", map[string]interface{}{
//	    "batch": 1,
//	    "size":  50,
//	})
//
// Domain helpers (LogItemStatus, LogRateLimit, LogBatch, LogRunSummary)
// keep field names consistent between the log file and the console.
package logger
