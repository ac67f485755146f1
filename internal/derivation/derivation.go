// Package derivation expands a user-supplied BIP-32 derivation-path
// specification into the concrete list of paths the engine must hash
// against, plus a compact "arg" form that keeps wildcard nodes literal while
// the running path count is within MaxDerivations, so the engine's own
// status-update cadence stays fast even when the full expansion is large.
// The arg form itself can hold more than MaxDerivations entries.
//
// A specification is one or more path groups separated by "," "|" or a
// space, each of the form "m/n[h|']/...". A node may be a plain hardened or
// unhardened index, or a "?N" wildcard meaning "every index from 0 through
// N inclusive". Expansion is the cartesian product of each node's
// possibilities, taken left to right.
package derivation

import (
	"fmt"
	"strconv"
	"strings"
)

// MaxDerivations bounds the running path count up to which a node stays
// literal in the arg form: the earliest wildcard nodes stay literally "?N"
// there (still materialized in full for the hash-list) so the GPU's status
// line keeps updating at a useful rate. Nodes past that count are
// materialized in the arg form too, so the arg form is not capped at
// MaxDerivations entries.
const MaxDerivations = 10

// Derivations is the fully expanded path list alongside its capped arg
// form, as produced by Parse or Default.
type Derivations struct {
	paths []string
	args  []string
}

// Paths returns every concrete derivation path this specification expands
// to, used when writing the hash-list file (one record per path).
func (d *Derivations) Paths() []string {
	return d.paths
}

// Args returns the compact arg form handed to the engine's mask side, with
// leading wildcards left as literal "?N" while the running path count is
// within MaxDerivations; it can hold more than MaxDerivations entries.
func (d *Derivations) Args() []string {
	return d.args
}

// Total returns the number of concrete derivation paths.
func (d *Derivations) Total() uint64 {
	return uint64(len(d.paths))
}

// Begin returns the lexicographically first expanded path.
func (d *Derivations) Begin() string {
	return d.paths[0]
}

// End returns the lexicographically last expanded path.
func (d *Derivations) End() string {
	return d.paths[len(d.paths)-1]
}

// HashRatio is the number of full paths folded into each arg entry; the
// engine driver multiplies its progress counter by this so that a single
// engine "hash" tick accounts for every path it implicitly covers.
func (d *Derivations) HashRatio() float64 {
	return float64(len(d.paths)) / float64(len(d.args))
}

// Parse expands a raw derivation specification (comma, pipe, or
// space-separated groups) into a Derivations.
func Parse(spec string) (*Derivations, error) {
	groups := splitGroups(spec)
	return build(groups)
}

// Default builds the Derivations for an address kind that was not given an
// explicit --derivation, from the kind's own default path groups.
func Default(paths []string) (*Derivations, error) {
	return build(paths)
}

func splitGroups(spec string) []string {
	var sep string
	switch {
	case strings.Contains(spec, ","):
		sep = ","
	case strings.Contains(spec, "|"):
		sep = "|"
	default:
		sep = " "
	}
	return strings.Split(spec, sep)
}

func build(groups []string) (*Derivations, error) {
	var paths, args []string
	for _, group := range groups {
		rest, ok := strings.CutPrefix(group, "m/")
		if !ok {
			return nil, fmt.Errorf("derivation: path %q must start with 'm/'", group)
		}

		groupPaths, groupArgs, err := expandGroup(rest, len(paths))
		if err != nil {
			return nil, fmt.Errorf("derivation: bad element in path %q: %w", group, err)
		}
		paths = append(paths, groupPaths...)

		// Once the running path total is large, later groups' args are no
		// longer joined pairwise with earlier ones (that cartesian product
		// would itself blow past MaxDerivations) -- they're just appended.
		if len(paths) <= MaxDerivations && len(args) > 0 {
			args = extend(args, groupArgs, ",")
		} else {
			args = append(args, groupArgs...)
		}
	}
	return &Derivations{paths: paths, args: args}, nil
}

// expandGroup expands one "n1/n2/.../nk" path (without its leading "m/")
// into every concrete path it denotes, plus the capped arg form. numArgs is
// the count of paths already produced by earlier groups, so the cap is
// enforced against the running total rather than per-group.
func expandGroup(path string, numArgs int) ([]string, []string, error) {
	paths := []string{"m"}
	args := []string{"m"}

	for _, node := range strings.Split(path, "/") {
		expanded, err := expandNode(node)
		if err != nil {
			return nil, nil, err
		}
		paths = extend(paths, expanded, "/")

		if numArgs+len(paths) > MaxDerivations {
			// Over the cap: the arg form must materialize this node fully
			// too, since there's no room left to keep it as a "?" wildcard
			// and still let the engine enumerate it.
			args = extend(args, expanded, "/")
		} else {
			args = extend(args, []string{node}, "/")
		}
	}
	return paths, args, nil
}

func extend(current, nodes []string, delim string) []string {
	out := make([]string, 0, len(current)*len(nodes))
	for _, node := range nodes {
		for _, prefix := range current {
			out = append(out, prefix+delim+node)
		}
	}
	return out
}

// expandNode expands a single path element: a literal index (optionally
// hardened with 'h' or '\''), or a "?N" wildcard covering 0..=N.
func expandNode(node string) ([]string, error) {
	suffix := ""
	rest := node
	if strings.HasSuffix(rest, "h") || strings.HasSuffix(rest, "'") {
		suffix = rest[len(rest)-1:]
		rest = rest[:len(rest)-1]
	}

	wildcard := strings.HasPrefix(rest, "?")
	rest = strings.TrimPrefix(rest, "?")

	num, err := strconv.ParseUint(rest, 10, 32)
	if err != nil {
		return nil, fmt.Errorf("invalid number %q", rest)
	}
	if !wildcard {
		return []string{fmt.Sprintf("%d%s", num, suffix)}, nil
	}

	out := make([]string, 0, num+1)
	for i := uint64(0); i <= num; i++ {
		out = append(out, fmt.Sprintf("%d%s", i, suffix))
	}
	return out, nil
}
