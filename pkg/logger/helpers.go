package logger

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// LogRequest logs one call to a messaging endpoint
func LogRequest(l Logger, endpoint string, statusCode int, duration time.Duration) {
	fields := map[string]interface{}{
		"endpoint":    endpoint,
		"status_code": statusCode,
		"duration_ms": duration.Milliseconds(),
	}

	switch {
	case statusCode >= 200 && statusCode < 300:
		l.DebugWithFields("Request completed", fields)
	case statusCode >= 500:
		l.ErrorWithFields("Request server error", fields)
	default:
		l.WarnWithFields("Request client error", fields)
	}
}

// LogDownload logs the outcome of one attachment transfer
func LogDownload(l Logger, conversationID, category, url string, size int64, err error) {
	entry := l.WithFields(map[string]interface{}{
		"conversation_id": conversationID,
		"category":        category,
		"url":             url,
		"bytes":           size,
	})
	if err != nil {
		entry.WithError(err).Warn("Download failed")
		return
	}
	entry.Debug("Download saved")
}

// LogCrawlProgress logs a page of a directory or history crawl
func LogCrawlProgress(l Logger, source string, offset, received, total int) {
	l.DebugWithFields("Crawl progress", map[string]interface{}{
		"source":   source,
		"offset":   offset,
		"received": received,
		"total":    total,
	})
}

// LogComponentStart logs when a component starts
func LogComponentStart(l Logger, component string, settings map[string]interface{}) {
	entry := l.WithField("component", component)
	if len(settings) > 0 {
		entry = entry.WithFields(settings)
	}
	entry.Debug("Component started")
}

// LogComponentStop logs when a component stops
func LogComponentStop(l Logger, component, reason string) {
	l.WithFields(map[string]interface{}{
		"component": component,
		"reason":    reason,
	}).Debug("Component stopped")
}

// NewNopLogger creates a logger that discards everything
func NewNopLogger() Logger {
	return &nopLogger{}
}

type nopLogger struct{}

func (n *nopLogger) Debug(string)                                       {}
func (n *nopLogger) Info(string)                                        {}
func (n *nopLogger) Warn(string)                                        {}
func (n *nopLogger) Error(string)                                       {}
func (n *nopLogger) WithField(string, interface{}) Logger               { return n }
func (n *nopLogger) WithFields(map[string]interface{}) Logger          { return n }
func (n *nopLogger) WithError(error) Logger                            { return n }
func (n *nopLogger) WithContext(context.Context) Logger                { return n }
func (n *nopLogger) DebugWithFields(string, map[string]interface{})    {}
func (n *nopLogger) InfoWithFields(string, map[string]interface{})     {}
func (n *nopLogger) WarnWithFields(string, map[string]interface{})     {}
func (n *nopLogger) ErrorWithFields(string, map[string]interface{})    {}
func (n *nopLogger) GetZerolog() *zerolog.Logger                       { z := zerolog.Nop(); return &z }
