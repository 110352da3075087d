package logger

import (
	"context"

	"github.com/rs/zerolog"
)

// urlPrefixLen bounds how much of a media URL ends up in log lines.
const urlPrefixLen = 60

// URLPrefix shortens a media URL for logging. CDN URLs carry long signed
// query strings that are noise in logs.
func URLPrefix(u string) string {
	if len(u) <= urlPrefixLen {
		return u
	}
	return u[:urlPrefixLen] + "..."
}

// LogMediaFetch logs the outcome of a media cache fetch
func LogMediaFetch(log Logger, account, category, url string, err error) {
	fields := map[string]interface{}{
		"account":  account,
		"category": category,
		"url":      URLPrefix(url),
	}

	if err != nil {
		log.WithFields(fields).WithError(err).Warn("Media fetch failed")
		return
	}
	log.DebugWithFields("Media cached", fields)
}

// LogRunProgress logs a run state transition
func LogRunProgress(log Logger, account, state string, progress int, message string) {
	log.InfoWithFields(message, map[string]interface{}{
		"account":  account,
		"state":    state,
		"progress": progress,
	})
}

// LogComponentStart logs when a component starts
func LogComponentStart(component string, config map[string]interface{}) {
	l := GetLogger().WithField("component", component)
	if len(config) > 0 {
		l = l.WithFields(config)
	}
	l.Info("Component started")
}

// LogComponentStop logs when a component stops
func LogComponentStop(component string, reason string) {
	GetLogger().WithFields(map[string]interface{}{
		"component": component,
		"reason":    reason,
	}).Info("Component stopped")
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
