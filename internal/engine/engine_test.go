package engine

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/klauspost/pgzip"

	"github.com/seedcat/seedcat/internal/address"
	"github.com/seedcat/seedcat/internal/dispatch"
	"github.com/seedcat/seedcat/internal/passphrase"
	"github.com/seedcat/seedcat/internal/recoverylog"
	"github.com/seedcat/seedcat/internal/seedspace"
)

const testAddress = "1B2hrNm7JGW6Wenf8oMvjWB3DPT9H9vAJ9"

// chtemp moves the test into a fresh directory carrying the binary
// charset files binary-charset planning probes for.
func chtemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.Chdir(wd) })

	binDir := filepath.Join(dir, "charsets", "bin")
	if err := os.MkdirAll(binDir, 0755); err != nil {
		t.Fatal(err)
	}
	for _, bits := range []int{5, 6, 7} {
		name := filepath.Join(binDir, fmt.Sprintf("%dbit.hcchr", bits))
		if err := os.WriteFile(name, []byte{0}, 0644); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}

func driver(t *testing.T, passArg, seedArg string) *Driver {
	t.Helper()
	seed, err := seedspace.Parse(seedArg, 0)
	if err != nil {
		t.Fatalf("seedspace.Parse: %v", err)
	}
	var passArgs []string
	if passArg != "" {
		passArgs = []string{passArg}
	}
	pass, err := passphrase.FromArgs(passArgs, [4]string{})
	if err != nil {
		t.Fatalf("passphrase.FromArgs: %v", err)
	}
	target, err := address.Parse(testAddress, "m/0/0")
	if err != nil {
		t.Fatalf("address.Parse: %v", err)
	}
	return New(NewExe("engine"), target, seed, pass, nil)
}

func TestModeSelection(t *testing.T) {
	chtemp(t)

	cases := []struct {
		name            string
		passArg         string
		seedArg         string
		wantRunner      dispatch.Runner
		wantHashes      uint64
		wantPassphrases uint64
	}{
		{
			name:            "two wildcards fold into binary charsets",
			passArg:         "",
			seedArg:         "zoo,zoo,zoo,zoo,zoo,zoo,zoo,zoo,zoo,zoo,?,?",
			wantRunner:      dispatch.BinaryCharsets,
			wantHashes:      1,
			wantPassphrases: 2048 * 128,
		},
		{
			name:       "partial wildcard with no passphrases streams over stdin",
			passArg:    "",
			seedArg:    "zoo,zoo,zoo,zoo,zoo,zoo,zoo,zoo,zoo,zoo,z?,?",
			wantRunner: dispatch.StdinMinPassphrases,
			wantHashes: 1,
		},
		{
			name:            "partial wildcard with a mask keeps binary charsets",
			passArg:         "?d?d?d?d",
			seedArg:         "zoo,zoo,zoo,zoo,zoo,zoo,zoo,zoo,zoo,zoo,z?,?",
			wantRunner:      dispatch.BinaryCharsets,
			wantHashes:      4, // words matching "z?"
			wantPassphrases: 10_000 * 128,
		},
		{
			name:            "leading wildcards run pure GPU",
			passArg:         "?d?d?d?d",
			seedArg:         "?,?,zoo,zoo,zoo,zoo,zoo,zoo,zoo,zoo,zoo,zoo",
			wantRunner:      dispatch.PureGpu,
			wantHashes:      (2048 * 2048) / 16, // valid-seeds estimate
			wantPassphrases: 10_000,
		},
		{
			name:       "too few passphrases fall back to stdin",
			passArg:    "?d?d",
			seedArg:    "?,?,zoo,zoo,zoo,zoo,zoo,zoo,zoo,zoo,zoo,zoo",
			wantRunner: dispatch.StdinMinPassphrases,
			wantHashes: 1,
		},
		{
			name:       "too many valid seeds fall back to stdin",
			passArg:    "?d?d?d?d",
			seedArg:    "?,?,?,zoo,zoo,zoo,zoo,zoo,zoo,zoo,zoo,zoo",
			wantRunner: dispatch.StdinMaxHashes,
			wantHashes: 1,
		},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			mode := driver(t, c.passArg, c.seedArg).Mode()
			if mode.Runner != c.wantRunner {
				t.Errorf("Runner = %v, want %v", mode.Runner, c.wantRunner)
			}
			if mode.Hashes != c.wantHashes {
				t.Errorf("Hashes = %d, want %d", mode.Hashes, c.wantHashes)
			}
			if mode.Passphrases != c.wantPassphrases {
				t.Errorf("Passphrases = %d, want %d", mode.Passphrases, c.wantPassphrases)
			}
		})
	}
}

func TestTotalSaturates(t *testing.T) {
	chtemp(t)
	d := driver(t, "?b?b?b?b?b?b?b?b", "?,?,?,?,?,?,?,?,?,zoo,zoo,zoo")
	if d.Total() != ^uint64(0) {
		t.Errorf("Total = %d, want saturation at 2^64-1", d.Total())
	}
}

func TestWriteHashesRecords(t *testing.T) {
	chtemp(t)
	d := driver(t, "", "zoo,zoo,zoo,zoo,zoo,zoo,zoo,zoo,zoo,zoo,zoo,?")

	rows := make(chan []byte, 2)
	rows <- []byte("row1")
	rows <- []byte("row2")
	close(rows)

	if err := d.writeHashes(recoverylog.Off(), rows, 2); err != nil {
		t.Fatalf("writeHashes: %v", err)
	}

	f, err := os.Open(d.hashFile())
	if err != nil {
		t.Fatalf("open hash file: %v", err)
	}
	defer f.Close()
	gz, err := pgzip.NewReader(f)
	if err != nil {
		t.Fatalf("gzip reader: %v", err)
	}
	var lines []string
	scanner := bufio.NewScanner(gz)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	want := []string{
		"P2PKH:m/0/0:row1:" + testAddress,
		"P2PKH:m/0/0:row2:" + testAddress,
	}
	if len(lines) != len(want) {
		t.Fatalf("got %d records, want %d: %v", len(lines), len(want), lines)
	}
	for i := range want {
		if lines[i] != want[i] {
			t.Errorf("record %d = %q, want %q", i, lines[i], want[i])
		}
	}
}

func TestWatchStdoutParsesMatch(t *testing.T) {
	chtemp(t)
	d := driver(t, "", "zoo,zoo,zoo,zoo,zoo,zoo,zoo,zoo,zoo,zoo,zoo,?")

	out := strings.Join([]string{
		"* Device #1: NVIDIA RTX, 24GB",
		"Time.Started.....: Thu Jan 01 00:00:05 1970 (5 secs)",
		"Progress.........: 1234/99999",
		testAddress + ":wrap,hunter2",
	}, "\n")

	timer := recoverylog.NewTimer(recoverylog.Off(), "test", 100, 1)
	payload, matched, err := d.watchStdout(strings.NewReader(out), recoverylog.Off(), timer)
	if err != nil {
		t.Fatalf("watchStdout: %v", err)
	}
	if !matched {
		t.Fatal("expected a match")
	}
	if payload != "wrap,hunter2" {
		t.Errorf("payload = %q", payload)
	}

	logged, err := os.ReadFile(d.prefix + outputSuffix)
	if err != nil {
		t.Fatalf("reading output log: %v", err)
	}
	if !strings.Contains(string(logged), "Progress") {
		t.Error("expected every engine line mirrored into the output log")
	}
}

func TestWatchStdoutExhaustion(t *testing.T) {
	chtemp(t)
	d := driver(t, "", "zoo,zoo,zoo,zoo,zoo,zoo,zoo,zoo,zoo,zoo,zoo,?")
	timer := recoverylog.NewTimer(recoverylog.Off(), "test", 100, 1)
	_, matched, err := d.watchStdout(strings.NewReader("Progress.........: 5/5\n"), recoverylog.Off(), timer)
	if err != nil {
		t.Fatalf("watchStdout: %v", err)
	}
	if matched {
		t.Fatal("expected no match at EOF")
	}
}

type sink struct {
	data   []byte
	closed bool
}

func (s *sink) Write(p []byte) (int, error) {
	s.data = append(s.data, p...)
	return len(p), nil
}
func (s *sink) Close() error {
	s.closed = true
	return nil
}

func TestStdinFeederBatchesAndFlushes(t *testing.T) {
	s := &sink{}
	feeder := newStdinFeeder(s, NewExe("engine"), "hc", nil)

	seeds := make(chan []byte, 3)
	seeds <- []byte("aaa")
	seeds <- []byte("bbb")
	seeds <- []byte("ccc")
	close(seeds)

	ctx, cancel := context.WithCancel(context.Background())
	feeder.run(ctx, cancel, seeds)

	if got, want := string(s.data), "aaa\nbbb\nccc\n"; got != want {
		t.Errorf("stdin bytes = %q, want %q", got, want)
	}
	if !s.closed {
		t.Error("expected stdin closed after the feed")
	}
	select {
	case <-ctx.Done():
	default:
		t.Error("expected producers cancelled after the feed")
	}
}

func TestRunWithFakeEngine(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("fake engine is a shell script")
	}
	dir := chtemp(t)

	// The fake engine ignores its input and reports an immediate match.
	script := "#!/bin/sh\ncat >/dev/null\necho \"" + testAddress + ":\"\n"
	exePath := filepath.Join(dir, "engine.sh")
	if err := os.WriteFile(exePath, []byte(script), 0755); err != nil {
		t.Fatal(err)
	}

	seed, err := seedspace.Parse("abandon,abandon,abandon,abandon,abandon,abandon,abandon,abandon,abandon,abandon,abandon,about", 0)
	if err != nil {
		t.Fatalf("seedspace.Parse: %v", err)
	}
	target, err := address.Parse(testAddress, "m/0/0")
	if err != nil {
		t.Fatalf("address.Parse: %v", err)
	}

	d := New(NewExe(exePath), target, seed, nil, nil)
	timer, finished, err := d.Run(recoverylog.Off())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	defer timer.Stop()

	if !finished.Matched {
		t.Fatal("expected the fake engine's match to be reported")
	}
	want := "abandon,abandon,abandon,abandon,abandon,abandon,abandon,abandon,abandon,abandon,abandon,about"
	if finished.Seed != want {
		t.Errorf("seed = %q, want %q", finished.Seed, want)
	}
}
