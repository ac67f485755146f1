// Package dispatch decides which of the engine's four run strategies a
// recovery attempt should use, trading off how many candidates the GPU
// would have to test against how many it would have to stream over
// stdin instead.
package dispatch

// Defaults for the two thresholds Plan balances against; a caller passes
// its own values in Input.
const (
	DefaultMaxHashes      = 10_000_000
	DefaultMinPassphrases = 10_000
	// SModeMaximum gates the engine's own "-S" (separated, high-performance)
	// flag: it is used only when a run has fewer passphrases than this; it
	// is not a Plan input, since it only matters once a pure-GPU run has
	// already been decided on.
	SModeMaximum = 100_000_000
)

// Runner is which of the engine's strategies a Mode selects.
type Runner int

const (
	// PureGpu writes the full hash list and lets the engine enumerate
	// candidates entirely on its own.
	PureGpu Runner = iota
	// BinaryCharsets folds unknown seed-word positions into the mask via
	// custom binary charsets, keeping the run on GPU with a much smaller
	// hash list.
	BinaryCharsets
	// StdinMaxHashes streams candidates over stdin because the GPU hash
	// list would otherwise be larger than MaxHashes.
	StdinMaxHashes
	// StdinMinPassphrases streams candidates over stdin because the
	// passphrase side alone doesn't produce enough candidates to be
	// worth writing out as a mask/dictionary argument.
	StdinMinPassphrases
)

// IsPureGpu reports whether the engine hands candidate generation
// entirely to the GPU side, as opposed to streaming candidates over
// stdin.
func (r Runner) IsPureGpu() bool {
	return r != StdinMaxHashes && r != StdinMinPassphrases
}

// Mode is the resolved dispatch decision: which runner to use, and the
// hash/passphrase totals the engine driver tunes itself against.
type Mode struct {
	Runner      Runner
	Hashes      uint64
	Passphrases uint64
}

// Binary carries the would-be totals of a successful binary-charset
// augmentation: the rewritten seed space's arg-line count and the
// augmented passphrase total.
type Binary struct {
	Args        uint64
	Passphrases uint64
}

// Input is everything Plan weighs: the seed space's checksum-valid count
// and arg-line count, the derivation arg count, the un-augmented
// passphrase total, the augmentation outcome (nil when ineligible), and
// the two policy thresholds.
type Input struct {
	ValidSeeds     uint64
	SeedArgs       uint64
	Derivations    uint64
	Passphrases    uint64
	Binary         *Binary
	MaxHashes      uint64
	MinPassphrases uint64
}

// Plan chooses a Runner. Priority order: binary-charset augmentation
// (when eligible and the augmented passphrase side is large enough to be
// worth it) beats everything; otherwise a GPU hash list over MaxHashes
// forces stdin streaming; otherwise a passphrase side under
// MinPassphrases also forces stdin streaming, since a pure-GPU run with
// too few passphrases per seed starves the GPU between seed changes;
// otherwise the straightforward pure-GPU hash list wins. Plan is a pure
// function of its Input.
func Plan(in Input) Mode {
	if in.Binary != nil && in.Binary.Passphrases > in.MinPassphrases {
		return Mode{
			Runner:      BinaryCharsets,
			Hashes:      satMul(in.Binary.Args, in.Derivations),
			Passphrases: in.Binary.Passphrases,
		}
	}

	gpuHashes := satMul(in.ValidSeeds, in.Derivations)
	stdinHashes := satMul(in.SeedArgs, in.Derivations)

	if gpuHashes > in.MaxHashes {
		return Mode{Runner: StdinMaxHashes, Hashes: stdinHashes}
	}
	if in.Passphrases < in.MinPassphrases {
		return Mode{Runner: StdinMinPassphrases, Hashes: stdinHashes}
	}
	return Mode{Runner: PureGpu, Hashes: gpuHashes, Passphrases: in.Passphrases}
}

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
