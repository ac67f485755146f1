// Package engine drives the external GPU recovery engine: it plans the
// dispatch strategy, writes the gzip hash-list file, spawns the engine
// process, streams stdin candidates when the strategy calls for it, and
// watches engine output for the match line.
package engine

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"sync"

	"github.com/klauspost/pgzip"

	"github.com/seedcat/seedcat/internal/address"
	"github.com/seedcat/seedcat/internal/dispatch"
	"github.com/seedcat/seedcat/internal/passphrase"
	"github.com/seedcat/seedcat/internal/recoverylog"
	"github.com/seedcat/seedcat/internal/seedspace"
)

const (
	// hashType is the engine's module code for BIP-39-seed-to-address
	// hashing.
	hashType = "28510"

	hashesSuffix = "_hashes.gz"
	errorSuffix  = "_error.log"
	outputSuffix = "_output.log"

	// channelSize bounds every candidate channel so a fast producer can't
	// buffer the whole search space in memory ahead of a slow consumer.
	channelSize = 100
	// seedTasks is how many shards seed enumeration fans out across.
	seedTasks = 1000
)

// Exe locates the engine executable. Invocation happens from the engine's
// own directory so its relative charset and kernel files resolve; the
// path is made absolute up front so the directory switch can't orphan it.
type Exe struct {
	path string
}

// NewExe wraps an engine executable path.
func NewExe(path string) Exe {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	return Exe{path: abs}
}

// enterDir switches the working directory to the engine's own directory
// and returns the function restoring the caller's.
func (e Exe) enterDir() (func(), error) {
	prev, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("engine: reading working directory: %w", err)
	}
	if err := os.Chdir(filepath.Dir(e.path)); err != nil {
		return nil, fmt.Errorf("engine: entering engine directory: %w", err)
	}
	return func() { os.Chdir(prev) }, nil
}

func (e Exe) command(args ...string) *exec.Cmd {
	return exec.Command(e.path, args...)
}

// Driver owns one recovery run against the engine.
type Driver struct {
	exe    Exe
	target *address.Target
	seed   *seedspace.SeedSpace
	pass   *passphrase.Spec

	// MaxHashes and MinPassphrases are the dispatch policy thresholds,
	// exported so the CLI can override the defaults.
	MaxHashes      uint64
	MinPassphrases uint64

	prefix    string
	extraArgs []string
	total     uint64
}

// New builds a Driver. pass may be nil when the user gave no passphrase
// specification. extraArgs pass through to the engine verbatim.
func New(exe Exe, target *address.Target, seed *seedspace.SeedSpace, pass *passphrase.Spec, extraArgs []string) *Driver {
	total := satMul(seed.Total(), target.Derivations.Total())
	if pass != nil {
		total = satMul(total, pass.Total())
	}
	return &Driver{
		exe:            exe,
		target:         target,
		seed:           seed,
		pass:           pass,
		MaxHashes:      dispatch.DefaultMaxHashes,
		MinPassphrases: dispatch.DefaultMinPassphrases,
		prefix:         "hc",
		extraArgs:      extraArgs,
		total:          total,
	}
}

// Total is the full guess count across seeds, derivations, and
// passphrases, saturating at 2^64-1.
func (d *Driver) Total() uint64 { return d.total }

// SetPrefix changes the file prefix for the hash list, logs, and
// dictionary files, so concurrent runs (tests, benchmarks) don't step on
// each other.
func (d *Driver) SetPrefix(prefix string) { d.prefix = prefix }

// plan is the resolved dispatch decision plus the (possibly rewritten)
// spaces it applies to.
type plan struct {
	mode dispatch.Mode
	seed *seedspace.SeedSpace
	pass *passphrase.Spec
}

// Mode computes the dispatch decision without running anything, for the
// CLI's configuration summary.
func (d *Driver) Mode() dispatch.Mode {
	return d.plan().mode
}

func (d *Driver) plan() plan {
	var binary *dispatch.Binary
	var binSeed *seedspace.SeedSpace
	var binPass *passphrase.Spec
	if rewritten, guesses, ok := d.seed.BinaryCharsets(d.MaxHashes); ok {
		base := d.pass
		if base == nil {
			base = passphrase.Empty()
		}
		if augmented, ok := base.AddBinaryCharsets(d.seed.EntropyBits(), guesses); ok {
			binary = &dispatch.Binary{Args: rewritten.TotalArgs(), Passphrases: augmented.Total()}
			binSeed, binPass = rewritten, augmented
		}
	}

	var passTotal uint64
	if d.pass != nil {
		passTotal = d.pass.Total()
	}
	mode := dispatch.Plan(dispatch.Input{
		ValidSeeds:     d.seed.ValidSeeds(),
		SeedArgs:       d.seed.TotalArgs(),
		Derivations:    uint64(len(d.target.Derivations.Args())),
		Passphrases:    passTotal,
		Binary:         binary,
		MaxHashes:      d.MaxHashes,
		MinPassphrases: d.MinPassphrases,
	})

	pl := plan{mode: mode, seed: d.seed, pass: d.pass}
	if mode.Runner == dispatch.BinaryCharsets {
		pl.seed, pl.pass = binSeed, binPass
	}
	return pl
}

// Run executes the recovery: hash-list write, engine spawn, candidate
// streaming, and output watching, returning the progress timer and the
// outcome. The working directory is the engine's for the duration so its
// relative files resolve.
func (d *Driver) Run(log *recoverylog.Logger) (*recoverylog.Timer, seedspace.Finished, error) {
	restore, err := d.exe.enterDir()
	if err != nil {
		return nil, seedspace.Finished{}, err
	}
	defer restore()

	pl := d.plan()
	seed := pl.seed.WithPureGpu(pl.mode.Runner.IsPureGpu())

	var passphraseArgs []string
	if pl.pass != nil {
		passphraseArgs, err = pl.pass.BuildArgs(d.prefix)
		if err != nil {
			return nil, seedspace.Finished{}, err
		}
	}

	args := append([]string(nil), d.extraArgs...)
	args = append(args, d.hashFile())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	switch pl.mode.Runner {
	case dispatch.PureGpu, dispatch.BinaryCharsets:
		args = append(args, passphraseArgs...)

		rows := d.rowSource(ctx, seed, pl.mode.Runner)
		if err := d.writeHashes(log, rows, pl.mode.Hashes); err != nil {
			return nil, seedspace.Finished{}, err
		}

		child, err := d.spawnEngine(args, pl.mode, pl.pass)
		if err != nil {
			return nil, seedspace.Finished{}, err
		}
		return d.runChild(child, seed, log)

	default:
		rows := d.argSender(ctx, seed)
		if err := d.writeHashes(log, rows, pl.mode.Hashes); err != nil {
			return nil, seedspace.Finished{}, err
		}

		child, err := d.spawnEngine(args, pl.mode, pl.pass)
		if err != nil {
			return nil, seedspace.Finished{}, err
		}
		feeder := newStdinFeeder(child.stdin, d.exe, d.prefix, passphraseArgs)
		go feeder.run(ctx, cancel, d.seedSenders(ctx, seed))

		return d.runChild(child, seed, log)
	}
}

// rowSource picks the hash-list row producer: checksum-valid encoded
// seeds in pure-GPU mode, arg lines under binary charsets.
func (d *Driver) rowSource(ctx context.Context, seed *seedspace.SeedSpace, runner dispatch.Runner) <-chan []byte {
	if runner == dispatch.BinaryCharsets {
		return d.argSender(ctx, seed)
	}
	return d.seedSenders(ctx, seed)
}

// seedSenders fans seed enumeration out across shards, each driving its
// checksum filter concurrently into one bounded channel. Shards are
// disjoint by construction so no coordination is needed beyond the
// channel itself.
func (d *Driver) seedSenders(ctx context.Context, seed *seedspace.SeedSpace) <-chan []byte {
	out := make(chan []byte, channelSize)
	var wg sync.WaitGroup
	for _, shard := range seed.Shard(seedTasks) {
		wg.Add(1)
		go func(shard *seedspace.SeedSpace) {
			defer wg.Done()
			for {
				next, ok := shard.NextValid()
				if !ok {
					return
				}
				select {
				case out <- next:
				case <-ctx.Done():
					return
				}
			}
		}(shard)
	}
	go func() {
		wg.Wait()
		close(out)
	}()
	return out
}

// argSender streams the lightweight arg lines instead of materialized
// candidates.
func (d *Driver) argSender(ctx context.Context, seed *seedspace.SeedSpace) <-chan []byte {
	out := make(chan []byte, channelSize)
	go func() {
		defer close(out)
		for {
			arg, ok := seed.NextArg()
			if !ok {
				return
			}
			select {
			case out <- []byte(arg):
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

// writeHashes drains rows into the gzip hash-list file, one record per
// row per derivation arg: "KIND:PATH:ROW:ADDRESS\n".
func (d *Driver) writeHashes(log *recoverylog.Logger, rows <-chan []byte, total uint64) error {
	timer := recoverylog.NewTimer(log, "Writing Hashes", total, 1)
	timer.Start()
	defer timer.Stop()

	f, err := os.Create(d.hashFile())
	if err != nil {
		return fmt.Errorf("engine: unable to create file %q: %w", d.hashFile(), err)
	}
	defer f.Close()

	gz := pgzip.NewWriter(f)
	kind := []byte(d.target.Kind)
	addr := []byte(d.target.Formatted)
	derivations := d.target.Derivations.Args()

	for row := range rows {
		for _, derivation := range derivations {
			for _, part := range [][]byte{kind, colon, []byte(derivation), colon, row, colon, addr, newline} {
				if _, err := gz.Write(part); err != nil {
					gz.Close()
					return fmt.Errorf("engine: writing hash list: %w", err)
				}
			}
			timer.Add(1)
		}
	}
	if err := gz.Close(); err != nil {
		return fmt.Errorf("engine: closing hash list: %w", err)
	}
	return nil
}

var (
	colon   = []byte(":")
	newline = []byte("\n")
)

// child bundles the spawned engine process with its three pipes.
type child struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout io.ReadCloser
	stderr io.ReadCloser
}

// spawnEngine starts the engine with the fixed argument set, the -S
// separated-mode flag when profitable, and args trailing. The caller owns
// the returned process.
func (d *Driver) spawnEngine(args []string, mode dispatch.Mode, pass *passphrase.Spec) (*child, error) {
	full := []string{
		"-m", hashType,
		"-w", "4",
		"--status",
		"--self-test-disable",
		"--status-timer", "1",
	}
	if useSeparatedMode(mode, pass) {
		full = append(full, "-S")
	}
	full = append(full, args...)

	cmd := d.exe.command(full...)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("engine: stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("engine: stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("engine: stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("engine: could not start engine process %q: %w", d.exe.path, err)
	}
	return &child{cmd: cmd, stdin: stdin, stdout: stdout, stderr: stderr}, nil
}

// useSeparatedMode reports whether the engine's high-performance "-S"
// flag applies: pure-GPU runs with a passphrase side small enough to fit,
// excluding hybrid attack modes which the flag doesn't support.
func useSeparatedMode(mode dispatch.Mode, pass *passphrase.Spec) bool {
	if !mode.Runner.IsPureGpu() || mode.Passphrases >= dispatch.SModeMaximum {
		return false
	}
	if pass == nil {
		return true
	}
	return pass.AttackMode != passphrase.ModeDictMask && pass.AttackMode != passphrase.ModeMaskDict
}

// runChild watches the spawned engine to completion: stderr drains into
// the error log, stdout drives the progress timer and yields the match
// line if any.
func (d *Driver) runChild(c *child, seed *seedspace.SeedSpace, log *recoverylog.Logger) (*recoverylog.Timer, seedspace.Finished, error) {
	multiplier := seed.HashRatio() * d.target.Derivations.HashRatio()
	timer := recoverylog.NewTimer(log, "Recovery Guesses", d.total, multiplier)

	go drainStderr(c.stderr, d.prefix+errorSuffix)

	payload, matched, err := d.watchStdout(c.stdout, log, timer)
	go c.cmd.Wait()
	if err != nil {
		return timer, seedspace.Finished{}, err
	}
	if !matched {
		return timer, seed.Exhausted(), nil
	}
	finished, err := seed.Found(payload)
	return timer, finished, err
}

func (d *Driver) hashFile() string { return d.prefix + hashesSuffix }

func satMul(a, b uint64) uint64 {
	if a == 0 || b == 0 {
		return 0
	}
	result := a * b
	if result/b != a {
		return ^uint64(0)
	}
	return result
}
