// Package logger provides structured logging for igarchive.
//
// It wraps zerolog behind a small Logger interface so components can take a
// logger as a dependency and tests can substitute NewTestLogger or
// NewNopLogger.
//
//	if err := logger.Initialize(&cfg.Logging); err != nil {
//	    return err
//	}
//	log := logger.GetLogger().WithField("account", "brand")
//	log.InfoWithFields("Run finished", map[string]interface{}{"added": 3})
//
// Media URLs should be passed through URLPrefix before logging.
package logger
