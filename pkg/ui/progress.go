package ui

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"igarchive/pkg/models"
)

const progressWidth = 20

// ProgressDisplay draws a single updating line for a run
type ProgressDisplay struct {
	mu      sync.Mutex
	w       io.Writer
	account string
	last    models.RunProgress
	debug   bool
}

// NewProgressDisplay creates a display writing to w. In debug mode every
// update gets its own line so it interleaves cleanly with log output.
func NewProgressDisplay(w io.Writer, account string, debug bool) *ProgressDisplay {
	return &ProgressDisplay{w: w, account: account, debug: debug}
}

// Update renders p
func (d *ProgressDisplay) Update(p models.RunProgress) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.last = p
	line := d.line(p)
	if d.debug {
		fmt.Fprintln(d.w, line)
		return
	}
	fmt.Fprintf(d.w, "\r%s\r%s", strings.Repeat(" ", 100), line)
}

// Complete ends the progress line and prints the outcome panel
func (d *ProgressDisplay) Complete(o models.RunOutcome) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.debug {
		fmt.Fprintln(d.w)
	}
	fmt.Fprintln(d.w, RenderOutcome(o))
}

func (d *ProgressDisplay) line(p models.RunProgress) string {
	account := p.Account
	if account == "" {
		account = d.account
	}
	return fmt.Sprintf("%s %s %3d%% • %s • %s",
		Cyan(account),
		ProgressBar(p.Percent),
		p.Percent,
		Magenta(string(p.State)),
		p.Message,
	)
}

// ProgressBar renders percent as a fixed-width bar
func ProgressBar(percent int) string {
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}
	filled := percent * progressWidth / 100
	return "[" + progressFullStyle.Render(strings.Repeat("━", filled)) +
		progressEmptyStyle.Render(strings.Repeat("─", progressWidth-filled)) + "]"
}
