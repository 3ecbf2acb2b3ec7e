package ui

import (
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pterm/pterm"
)

var spinnerFrames = []string{"[-]", "[\\]", "[/]"}

const remainingFormat = "%s     - Remaining downloads : %d "

// Spinner redraws a "remaining downloads" line until stopped. Frames are
// drawn from a single goroutine so that nothing is written after Stop returns.
type Spinner struct {
	interval time.Duration
	pending  func() int
	style    *pterm.Style

	stop chan struct{}
	done chan struct{}
	once sync.Once
}

// NewSpinner creates a spinner polling pending every interval
func NewSpinner(interval time.Duration, pending func() int) *Spinner {
	if interval <= 0 {
		interval = 200 * time.Millisecond
	}
	style := pterm.NewStyle()
	if colored {
		style = pterm.NewStyle(pterm.FgCyan)
	}
	return &Spinner{
		interval: interval,
		pending:  pending,
		style:    style,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start begins drawing in the background. In quiet mode nothing is drawn.
func (s *Spinner) Start() {
	go s.run()
}

func (s *Spinner) run() {
	defer close(s.done)
	if IsQuietMode() {
		<-s.stop
		return
	}

	width := 0
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for frame := 0; ; frame++ {
		seq := spinnerFrames[frame%len(spinnerFrames)]
		line := fmt.Sprintf(remainingFormat, seq, s.pending())
		if len(line) > width {
			width = len(line)
		}
		pterm.Fprinto(out, s.style.Sprint(seq)+strings.TrimPrefix(line, seq)+strings.Repeat(" ", width-len(line)))

		select {
		case <-s.stop:
			pterm.Fprinto(out, strings.Repeat(" ", width))
			pterm.Fprinto(out, fmt.Sprintf(remainingFormat, "[+]", 0)+"\n")
			return
		case <-ticker.C:
		}
	}
}

// Stop prints the final line and waits for the spinner to exit
func (s *Spinner) Stop() {
	s.once.Do(func() { close(s.stop) })
	<-s.done
}

// DownloadTracker accumulates outcome statistics across conversations
type DownloadTracker struct {
	saved     atomic.Int64
	failed    atomic.Int64
	bytes     atomic.Int64
	startTime time.Time
}

// NewDownloadTracker creates a new tracker
func NewDownloadTracker() *DownloadTracker {
	return &DownloadTracker{startTime: time.Now()}
}

// Record counts one outcome
func (t *DownloadTracker) Record(ok bool, size int64) {
	if ok {
		t.saved.Add(1)
		t.bytes.Add(size)
		return
	}
	t.failed.Add(1)
}

// Saved returns the number of saved files
func (t *DownloadTracker) Saved() int { return int(t.saved.Load()) }

// Failed returns the number of failed transfers
func (t *DownloadTracker) Failed() int { return int(t.failed.Load()) }

// Bytes returns the number of bytes saved
func (t *DownloadTracker) Bytes() int64 { return t.bytes.Load() }

// GetElapsedTime returns the elapsed time since tracking started
func (t *DownloadTracker) GetElapsedTime() time.Duration {
	return time.Since(t.startTime)
}

// GetDownloadRate returns the average number of saved files per minute
func (t *DownloadTracker) GetDownloadRate() float64 {
	elapsed := t.GetElapsedTime().Minutes()
	if elapsed == 0 {
		return 0
	}
	return float64(t.Saved()) / elapsed
}

// Summary renders the totals of a run
func (t *DownloadTracker) Summary() string {
	return fmt.Sprintf("%d files saved (%s, %.1f/min), %d failed in %s",
		t.Saved(), FormatBytes(t.Bytes()), t.GetDownloadRate(), t.Failed(), t.GetElapsedTime().Round(time.Second))
}

// FormatBytes renders a byte count with a binary unit
func FormatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
