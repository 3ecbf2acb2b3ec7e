// Package logger provides structured logging for the messenger scraper.
//
// It wraps zerolog behind a small Logger interface so that components can be
// handed a capturing TestLogger or a no-op logger in tests. Console output is
// written to stderr; user-facing report lines go to stdout through pkg/ui.
//
//	cfg := &config.LoggingConfig{Level: "debug"}
//	if err := logger.Initialize(cfg); err != nil {
//	    return err
//	}
//	log := logger.GetLogger().WithField("conversation_id", id)
//	log.InfoWithFields("History chunk received", map[string]interface{}{
//	    "offset": offset,
//	    "count":  len(actions),
//	})
package logger
