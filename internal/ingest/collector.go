package ingest

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"igarchive/pkg/accounts"
	errs "igarchive/pkg/errors"
	"igarchive/pkg/logger"
)

// Collector prepares raw input for a partition before a run, typically by
// driving an external page renderer.
type Collector interface {
	Collect(ctx context.Context, p accounts.Partition) error
}

// NopCollector does nothing; snapshots are expected to already exist
type NopCollector struct{}

func (NopCollector) Collect(context.Context, accounts.Partition) error { return nil }

// CommandCollector runs an external command with the account id appended as
// the last argument. The command sees IGARCHIVE_ACCOUNT and
// IGARCHIVE_INPUT_DIR in its environment.
type CommandCollector struct {
	Command  []string
	InputDir string
	Timeout  time.Duration
	Logger   logger.Logger
}

// maxOutputLog bounds how much command output is logged on failure
const maxOutputLog = 512

func (c *CommandCollector) Collect(ctx context.Context, p accounts.Partition) error {
	if len(c.Command) == 0 {
		return nil
	}
	log := c.Logger
	if log == nil {
		log = logger.NewNopLogger()
	}

	if c.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.Timeout)
		defer cancel()
	}

	args := append(append([]string{}, c.Command[1:]...), p.ID)
	cmd := exec.CommandContext(ctx, c.Command[0], args...)
	cmd.Dir = c.InputDir
	cmd.Env = append(os.Environ(),
		"IGARCHIVE_ACCOUNT="+p.ID,
		"IGARCHIVE_INPUT_DIR="+c.InputDir,
	)

	start := time.Now()
	out, err := cmd.CombinedOutput()
	fields := map[string]interface{}{
		"account":  p.ID,
		"command":  c.Command[0],
		"duration": time.Since(start).String(),
	}
	if err != nil {
		fields["output"] = tail(strings.TrimSpace(string(out)), maxOutputLog)
		log.WithError(err).WarnWithFields("Collector command failed", fields)
		if ctx.Err() != nil {
			err = ctx.Err()
		}
		return errs.Wrap(errs.ErrorTypeInput, err, fmt.Sprintf("collector %s", c.Command[0]))
	}
	log.DebugWithFields("Collector command finished", fields)
	return nil
}

func tail(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return "..." + s[len(s)-n:]
}
