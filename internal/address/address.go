// Package address classifies and validates the user-supplied recovery
// target: a Bitcoin address of one of three common script kinds, or a
// master extended public key. It also supplies each kind's default
// derivation-path group when the caller did not specify one.
package address

import (
	"fmt"
	"strings"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcutil"
	"github.com/btcsuite/btcutil/hdkeychain"

	"github.com/seedcat/seedcat/internal/derivation"
)

// Kind identifies which of the four recognized target shapes an address
// string belongs to.
type Kind string

const (
	XPUB        Kind = "XPUB"
	P2PKH       Kind = "P2PKH"
	P2SHP2WPKH  Kind = "P2SH-P2WPKH"
	P2WPKH      Kind = "P2WPKH"
)

type kindInfo struct {
	kind       Kind
	name       string
	prefix     string
	defaults   []string
	isXpub     bool
}

// kinds is checked in order against the address string's prefix; order
// doesn't matter today since no two prefixes overlap, but it mirrors the
// declaration order a user-facing help listing would use.
func kinds() []kindInfo {
	return []kindInfo{
		{XPUB, "Master Extended Public Key", "xpub", []string{"m/0"}, true},
		{P2PKH, "Legacy", "1", []string{"m/0/0", "m/44'/0'/0'/0/0"}, false},
		{P2SHP2WPKH, "Nested Segwit", "3", []string{"m/0/0", "m/49'/0'/0'/0/0"}, false},
		{P2WPKH, "Native Segwit", "bc1", []string{"m/84'/0'/0'/0/0"}, false},
	}
}

// Target is a fully validated recovery target: the address kind, its
// formatted string, and the concrete derivation paths to try against it.
type Target struct {
	Formatted   string
	Kind        Kind
	Derivations *derivation.Derivations
}

// Parse validates addr against every recognized kind and builds its
// Derivations from derivationArg, or from the kind's own defaults when
// derivationArg is empty. An XPUB target rejects an explicit derivationArg:
// a master key has no single path to search against.
func Parse(addr string, derivationArg string) (*Target, error) {
	info, err := classify(addr)
	if err != nil {
		return nil, err
	}

	if info.isXpub && derivationArg != "" {
		return nil, fmt.Errorf("address: XPUB targets do not take a --derivation (it implies every path)")
	}

	var derivations *derivation.Derivations
	if derivationArg == "" {
		derivations, err = derivation.Default(info.defaults)
	} else {
		derivations, err = derivation.Parse(derivationArg)
	}
	if err != nil {
		return nil, err
	}

	return &Target{Formatted: addr, Kind: info.kind, Derivations: derivations}, nil
}

func classify(addr string) (kindInfo, error) {
	for _, info := range kinds() {
		if !strings.HasPrefix(addr, info.prefix) {
			continue
		}
		if info.isXpub {
			xpub, err := hdkeychain.NewKeyFromString(addr)
			if err != nil {
				return kindInfo{}, fmt.Errorf("address: xpub is not correctly encoded: %w", err)
			}
			if !isMaster(xpub) {
				return kindInfo{}, fmt.Errorf("address: xpub is not a master public key (use an address instead)")
			}
			return info, nil
		}
		if _, err := btcutil.DecodeAddress(addr, &chaincfg.MainNetParams); err != nil {
			return kindInfo{}, fmt.Errorf("address: not a correctly encoded %s address: %w", info.kind, err)
		}
		return info, nil
	}
	return kindInfo{}, fmt.Errorf("address: %q does not match any recognized format (xpub/1/3/bc1)", addr)
}

func isMaster(xpub *hdkeychain.ExtendedKey) bool {
	return xpub.IsForNet(&chaincfg.MainNetParams) && xpub.Depth() == 0 && xpub.ParentFingerprint() == 0 && !xpub.IsPrivate()
}
