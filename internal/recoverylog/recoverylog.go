// Package recoverylog reports recovery progress: a thin logger plus a
// Timer that tracks a running candidate counter and renders it as a
// human-readable rate/ETA line. It deliberately stops short of owning the
// terminal -- no cursor movement, no in-place redraw -- since that's a
// presentation concern for whatever wraps this package, not the recovery
// engine itself.
package recoverylog

import (
	"fmt"
	"io"
	"log"
	"math"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// Attempt is anything that can report how large a space it covers and
// where that space begins and ends -- seed spaces, derivation path lists,
// passphrase specs, and plain word lists all implement it.
type Attempt interface {
	Total() uint64
	Begin() string
	End() string
}

// Logger gates output behind an enabled flag so tests can run silent
// without threading a verbosity flag through every call site.
type Logger struct {
	enabled bool
	out     *log.Logger
}

// New returns a Logger that writes to stderr.
func New() *Logger {
	return &Logger{enabled: true, out: log.New(os.Stderr, "", log.LstdFlags)}
}

// Off returns a Logger that discards everything, for tests.
func Off() *Logger {
	return &Logger{enabled: false, out: log.New(io.Discard, "", 0)}
}

func (l *Logger) Printf(format string, args ...any) {
	if !l.enabled {
		return
	}
	l.out.Printf(format, args...)
}

// FormatAttempt logs one line summarizing how big an attempt is and the
// first and last candidates it covers.
func (l *Logger) FormatAttempt(name string, a Attempt) {
	l.Printf("%s: %s (%s .. %s)", name, formatNum(a.Total()), a.Begin(), a.End())
}

// Timer tracks a candidate counter against a known total and renders
// progress on a fixed interval. Counter updates are safe to call
// concurrently with rendering.
type Timer struct {
	name       string
	total      uint64
	multiplier float64
	counter    atomic.Uint64
	log        *Logger
	startedAt  time.Time
	stop       chan struct{}
	stopOnce   sync.Once
}

// NewTimer creates a Timer for an attempt covering total underlying units,
// where multiplier converts the counter's own ticks into that unit (used
// when one tick of progress, such as one engine hash, actually accounts
// for several real candidates at once).
func NewTimer(l *Logger, name string, total uint64, multiplier float64) *Timer {
	return &Timer{name: name, total: total, multiplier: multiplier, log: l, stop: make(chan struct{})}
}

// Add records n more underlying-counter ticks.
func (t *Timer) Add(n uint64) { t.counter.Add(n) }

// Store overwrites the counter with an absolute value, used when the
// engine reports its own progress totals rather than deltas.
func (t *Timer) Store(n uint64) { t.counter.Store(n) }

// Start begins periodic logging, treating now as elapsed time zero.
func (t *Timer) Start() { t.StartAt(0) }

// StartAt begins periodic logging as if the attempt had already been
// running for atSecs seconds -- used when resuming a run whose engine
// process reports its own elapsed time.
func (t *Timer) StartAt(atSecs float64) {
	t.startedAt = time.Now().Add(-time.Duration(atSecs * float64(time.Second)))
	go t.loop()
}

// Stop ends the periodic logging goroutine started by Start/StartAt.
// Safe to call more than once.
func (t *Timer) Stop() {
	t.stopOnce.Do(func() { close(t.stop) })
}

// End marks the attempt complete: the counter jumps to the total, a
// final progress line is logged, and periodic logging stops.
func (t *Timer) End() {
	t.counter.Store(uint64(float64(t.total) / t.multiplier))
	t.log.Printf("%s", t.Render())
	t.Stop()
}

func (t *Timer) loop() {
	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-t.stop:
			return
		case <-ticker.C:
			t.log.Printf("%s", t.Render())
		}
	}
}

// Render formats the timer's current state as a single progress line.
func (t *Timer) Render() string {
	count := float64(t.counter.Load()) * t.multiplier
	total := float64(t.total)
	var percent float64
	if total > 0 {
		percent = count / total * 100
	}
	elapsed := time.Since(t.startedAt).Seconds()
	return fmt.Sprintf("%s: %s / %s (%.2f%%) elapsed %s eta %s",
		t.name, formatNum(uint64(count)), formatNum(uint64(total)), percent,
		formatTime(uint64(elapsed)), formatETA(percent, elapsed))
}

// formatNum renders a count using thousands denominations (K/M/B/T),
// cascading to fewer decimal places as the scaled value grows.
// math.MaxUint64 is the saturating-arithmetic overflow sentinel and
// prints as a plain message rather than a number.
func formatNum(num uint64) string {
	if num == math.MaxUint64 {
		return "Exceeds 2^64"
	}
	denominations := []struct {
		suffix string
		value  float64
	}{
		{"T", 1e12}, {"B", 1e9}, {"M", 1e6}, {"K", 1e3},
	}
	f := float64(num)
	for _, d := range denominations {
		if f >= d.value {
			return formatScaled(f/d.value, d.suffix)
		}
	}
	return fmt.Sprintf("%.0f", f)
}

func formatScaled(scaled float64, suffix string) string {
	switch {
	case scaled >= 100:
		return fmt.Sprintf("%.0f%s", scaled, suffix)
	case scaled >= 10:
		return fmt.Sprintf("%.1f%s", scaled, suffix)
	default:
		return fmt.Sprintf("%.2f%s", scaled, suffix)
	}
}

// formatETA projects how much longer a run will take from how far
// through it percent is after secs seconds.
func formatETA(percent, secs float64) string {
	if percent <= 0 {
		return "unknown"
	}
	remaining := secs*(100/percent) - secs
	if remaining < 0 {
		remaining = 0
	}
	return formatTime(uint64(remaining))
}

// formatTime renders a duration in seconds as a cascading
// "1d2h3m4s"-style string, omitting leading zero units.
func formatTime(totalSecs uint64) string {
	days := totalSecs / 86400
	hours := (totalSecs % 86400) / 3600
	mins := (totalSecs % 3600) / 60
	secs := totalSecs % 60

	var b strings.Builder
	wrote := false
	if days > 0 {
		fmt.Fprintf(&b, "%dd", days)
		wrote = true
	}
	if wrote || hours > 0 {
		fmt.Fprintf(&b, "%dh", hours)
		wrote = true
	}
	if wrote || mins > 0 {
		fmt.Fprintf(&b, "%dm", mins)
		wrote = true
	}
	fmt.Fprintf(&b, "%ds", secs)
	return b.String()
}
