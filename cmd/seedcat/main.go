/*
Seedcat - BIP-39 seed phrase recovery front-end

Description:
	Recovers a BIP-39 mnemonic seed (and optional BIP-39 passphrase) from
	partial knowledge of it, verifying candidates against a target Bitcoin
	address or master XPUB. Candidate hashing runs on an external GPU
	recovery engine; this program expands the user's partial specification
	into the candidate stream the engine consumes.

Algorithm:
	1. Parse the seed specification (wildcards, anchors, alternatives)
	   into a combinatorial word space
	2. Parse the derivation-path and passphrase specifications
	3. Plan the dispatch strategy (pure GPU, binary charsets, or stdin
	   streaming) from the space sizes
	4. Write the gzip hash-list file and spawn the engine
	5. Watch engine output for the match and rehydrate the seed phrase

Usage:
	seedcat --address ADDR --seed "WORD,WORD,..." [options] [-- engine options]

Security Note:
	Only run against addresses you own. Recovering someone else's seed is
	theft.
*/
package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/seedcat/seedcat/internal/address"
	"github.com/seedcat/seedcat/internal/dispatch"
	"github.com/seedcat/seedcat/internal/engine"
	"github.com/seedcat/seedcat/internal/passphrase"
	"github.com/seedcat/seedcat/internal/recoverylog"
	"github.com/seedcat/seedcat/internal/seedspace"
)

// engineDir is where the bundled engine lives, relative to the working
// directory.
const engineDir = "hashcat"

type cli struct {
	address      string
	seed         string
	derivation   string
	combinations int
	passphrase   []string
	charsets     [4]string
	skipPrompt   bool
	engineArgs   []string
}

func parseArgs() *cli {
	c := &cli{}
	flag.StringVar(&c.address, "address", "", "address e.g. 'bc1q490...' OR master xpub key e.g. 'xpub661MyMwAqRbc...'")
	flag.StringVar(&c.seed, "seed", "", "seed words with wildcards e.g. 'cage,?,zo?,?be,?oo?,toward|st?,able...'")
	flag.StringVar(&c.derivation, "derivation", "", "derivation paths with wildcards e.g. 'm/0/0,m/49h/0h/0h/?2/?10'")
	flag.IntVar(&c.combinations, "combinations", 0, "choose a number of combinations for the list of seed words")
	flag.Func("passphrase", "dictionaries and/or mask e.g. './dict.txt' or '?l?l?l?d?1' (repeat for two-part attacks)", func(v string) error {
		c.passphrase = append(c.passphrase, v)
		return nil
	})
	for i := range c.charsets {
		i := i
		flag.Func(fmt.Sprintf("%d", i+1), "user defined charset for use in passphrase mask attack", func(v string) error {
			c.charsets[i] = v
			return nil
		})
	}
	flag.BoolVar(&c.skipPrompt, "y", false, "skips the prompt and starts immediately")
	flag.Parse()

	// Everything after "--" passes through to the engine verbatim.
	c.engineArgs = flag.Args()
	return c
}

func main() {
	log := recoverylog.New()
	driver, err := configure(parseArgs(), log)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	log.Printf("=== Seedcat Recovery ===")
	timer, finished, err := driver.Run(log)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	timer.Stop()

	if !finished.Matched {
		log.Printf("Exhausted search with no results...try with different parameters")
		return
	}
	fmt.Printf("Found Seed: %s\n", finished.Seed)
	if finished.Passphrase != "" {
		fmt.Printf("Found Passphrase: %s\n", finished.Passphrase)
	}
}

// configure validates every argument and reports the planned attempt
// sizes before anything expensive starts.
func configure(c *cli, log *recoverylog.Logger) (*engine.Driver, error) {
	log.Printf("=== Seedcat Configuration ===")

	exe, err := findExe()
	if err != nil {
		return nil, err
	}

	if c.seed == "" {
		return nil, fmt.Errorf("--seed is a required argument")
	}
	seed, err := seedspace.Parse(c.seed, c.combinations)
	if err != nil {
		return nil, err
	}

	if c.address == "" {
		return nil, fmt.Errorf("--address is a required argument")
	}
	target, err := address.Parse(c.address, c.derivation)
	if err != nil {
		return nil, err
	}

	var pass *passphrase.Spec
	if len(c.passphrase) > 0 {
		pass, err = passphrase.FromArgs(c.passphrase, c.charsets)
		if err != nil {
			return nil, err
		}
	}

	log.Printf("%s Address: %s", target.Kind, target.Formatted)
	log.FormatAttempt("Derivations", target.Derivations)
	log.FormatAttempt("Seeds", seed)
	if pass != nil {
		log.FormatAttempt("Passphrases", pass)
	}

	if seed.ValidSeeds() == 0 {
		return nil, fmt.Errorf("all possible seeds have invalid checksums")
	}

	driver := engine.New(exe, target, seed, pass, c.engineArgs)
	if driver.Total() == ^uint64(0) {
		return nil, fmt.Errorf("exceeding 2^64 attempts will take forever to run, try reducing combinations")
	}
	log.Printf("Total Guesses: %d", driver.Total())

	switch driver.Mode().Runner {
	case dispatch.BinaryCharsets:
		log.Printf("Pure GPU Mode: Can run on large GPU clusters (using binary charsets)")
	case dispatch.PureGpu:
		log.Printf("Pure GPU Mode: Can run on large GPU clusters")
	case dispatch.StdinMaxHashes:
		log.Printf("Stdin Mode: CPU-limited due to many seeds to guess")
	case dispatch.StdinMinPassphrases:
		log.Printf("Stdin Mode: CPU-limited due to not enough passphrases to guess")
	}
	if target.Derivations.Total() > 100 {
		log.Printf("Note: More than 100 derivations will slow status updates")
	}

	if !c.skipPrompt && !promptContinue() {
		os.Exit(0)
	}
	return driver, nil
}

// findExe locates the engine executable inside the bundled engine
// directory, preferring the platform-specific binary name.
func findExe() (engine.Exe, error) {
	platform := "hashcat.bin"
	if runtime.GOOS == "windows" {
		platform = "hashcat.exe"
	}
	for _, name := range []string{platform, "hashcat"} {
		path := filepath.Join(engineDir, name)
		if _, err := os.Stat(path); err == nil {
			return engine.NewExe(path), nil
		}
	}
	return engine.Exe{}, fmt.Errorf("could not find executable %q, make sure you are running in the directory with the %q folder",
		filepath.Join(engineDir, platform), engineDir)
}

func promptContinue() bool {
	fmt.Print("\nContinue with recovery [Y/n]? ")
	line, _ := bufio.NewReader(os.Stdin).ReadString('\n')
	return !strings.Contains(line, "n")
}
