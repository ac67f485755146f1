package engine

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/seedcat/seedcat/internal/recoverylog"
)

// watchStdout reads the engine's stdout line by line, mirroring every
// line into the output log. Device banners forward to the user log; the
// engine's own Time.Started and Progress lines keep the timer honest;
// a line containing the target address is the match. Malformed status
// lines are skipped, they only degrade the display.
func (d *Driver) watchStdout(r io.Reader, log *recoverylog.Logger, timer *recoverylog.Timer) (payload string, matched bool, err error) {
	file, err := os.Create(d.prefix + outputSuffix)
	if err != nil {
		return "", false, fmt.Errorf("engine: unable to create file %q: %w", d.prefix+outputSuffix, err)
	}
	defer file.Close()

	log.Printf("Waiting for GPU initialization please be patient...")

	addrColon := d.target.Formatted + ":"
	started := false
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()
		fmt.Fprintln(file, line)

		switch {
		case strings.Contains(line, "* Device") && !strings.Contains(line, "WARNING") && !strings.Contains(line, "skipped"):
			log.Printf("%s", line)

		case strings.HasPrefix(line, "Time.Started.....: ") && !started:
			if secs, ok := parseStartedSecs(line); ok {
				timer.StartAt(float64(secs))
				started = true
			}

		case strings.HasPrefix(line, "Progress.........: "):
			if n, ok := parseProgress(line); ok {
				timer.Store(n)
			}

		case strings.Contains(line, addrColon):
			timer.End()
			idx := strings.Index(line, addrColon)
			return line[idx+len(addrColon):], true, nil
		}
	}
	timer.End()
	return "", false, scanner.Err()
}

// parseStartedSecs pulls N out of "Time.Started.....: ... (N secs)".
func parseStartedSecs(line string) (uint64, bool) {
	_, rest, ok := strings.Cut(line, " (")
	if !ok {
		return 0, false
	}
	num, _, ok := strings.Cut(rest, " sec")
	if !ok {
		return 0, false
	}
	n, err := strconv.ParseUint(num, 10, 64)
	return n, err == nil
}

// parseProgress pulls A out of "Progress.........: A/B".
func parseProgress(line string) (uint64, bool) {
	_, rest, ok := strings.Cut(line, ": ")
	if !ok {
		return 0, false
	}
	num, _, ok := strings.Cut(rest, "/")
	if !ok {
		return 0, false
	}
	n, err := strconv.ParseUint(num, 10, 64)
	return n, err == nil
}

// drainStderr copies engine stderr into the error log so a failed run
// leaves its diagnostics behind.
func drainStderr(r io.Reader, path string) {
	file, err := os.Create(path)
	if err != nil {
		io.Copy(io.Discard, r)
		return
	}
	defer file.Close()
	io.Copy(file, r)
}
