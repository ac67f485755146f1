// Package passphrase builds the engine dictionary/mask argument pair
// that drives the passphrase side of a recovery attempt, and can augment
// a mask with the binary "charset" trick that folds unknown seed-word
// indices into the mask itself instead of writing every candidate seed
// out as a literal hash-list row.
package passphrase

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/seedcat/seedcat/internal/combination"
)

// AttackMode is the engine -a value a Spec resolves to, driven entirely
// by which of Left/Right are a Dictionary vs a Mask.
type AttackMode int

const (
	ModeDict     AttackMode = 0
	ModeDictDict AttackMode = 1
	ModeMask     AttackMode = 3
	ModeDictMask AttackMode = 6
	ModeMaskDict AttackMode = 7
)

// Element is either a Mask or a Dictionary; a Spec's Left and Right sides
// each hold one.
type Element interface {
	isElement()
}

// wildcardInfo describes one mask wildcard flag: how many characters it
// ranges over and the first/last character, used for begin/end previews.
type wildcardInfo struct {
	total                    uint64
	exampleStart, exampleEnd byte
}

var builtinWildcards = map[byte]wildcardInfo{
	'l': {26, 'a', 'z'},
	'u': {26, 'A', 'Z'},
	'd': {10, '0', '9'},
	'h': {16, '0', 'f'},
	'H': {16, '0', 'F'},
	's': {33, ' ', '~'},
	'a': {95, ' ', '~'},
	'b': {256, 0, 255},
	'?': {1, '?', '?'},
}

// Mask is an engine mask argument: a literal-and-wildcard template, plus
// the lexicographically first and last strings it expands to and the
// total candidate count.
type Mask struct {
	Arg                      string
	ExampleStart, ExampleEnd string
	Total                    uint64
}

func (*Mask) isElement() {}

// ParseMask parses a raw mask argument. "//" unescapes to "/" and ",,"
// unescapes to ",", matching the dictionary side's escaping so both
// accept the same comma-separated CLI argument style. "?" followed by a
// flag selects a built-in wildcard class or, for '1'-'4', a
// caller-supplied custom charset; any other character is literal.
func ParseMask(arg string, custom [4]string) (*Mask, error) {
	unescaped := strings.NewReplacer("//", "/", ",,", ",").Replace(arg)
	var exampleStart, exampleEnd strings.Builder
	total := uint64(1)

	question := false
	for i := 0; i < len(unescaped); i++ {
		c := unescaped[i]
		if !question {
			if c == '?' {
				question = true
			} else {
				exampleStart.WriteByte(c)
				exampleEnd.WriteByte(c)
			}
			continue
		}
		question = false
		info, err := wildcardFor(c, custom)
		if err != nil {
			return nil, err
		}
		exampleStart.WriteByte(info.exampleStart)
		exampleEnd.WriteByte(info.exampleEnd)
		total = satMul(total, info.total)
	}
	if question {
		return nil, fmt.Errorf("passphrase: mask %q ends in a '?', use '??' to escape", arg)
	}
	return &Mask{Arg: unescaped, ExampleStart: exampleStart.String(), ExampleEnd: exampleEnd.String(), Total: total}, nil
}

func wildcardFor(flag byte, custom [4]string) (wildcardInfo, error) {
	if info, ok := builtinWildcards[flag]; ok {
		return info, nil
	}
	if flag >= '1' && flag <= '4' {
		set := custom[flag-'1']
		if set == "" {
			return wildcardInfo{}, fmt.Errorf("passphrase: custom charset -%c referenced but not provided", flag)
		}
		return wildcardInfo{total: uint64(len(set)), exampleStart: set[0], exampleEnd: set[len(set)-1]}, nil
	}
	return wildcardInfo{}, fmt.Errorf("passphrase: unknown mask wildcard '?%c'", flag)
}

// Dictionary is one engine dictionary argument, built from one or more
// comma-separated sub-arguments that are each either a literal word, a
// "./path" word-list file (one candidate per line), or an empty
// sub-argument standing for a literal comma. Sub-arguments combine as
// positions in a combinatorial word-list the same way seed words do, so a
// dictionary with more than one varying sub-argument produces the
// cartesian product of their choices rather than a flat union.
type Dictionary struct {
	combos *combination.Combinations[string]
}

func (*Dictionary) isElement() {}

const maxDictionaryTotal = 1_000_000_000

// ParseDictionary builds a Dictionary from a raw comma-separated argument.
func ParseDictionary(arg string) (*Dictionary, error) {
	subArgs := strings.Split(arg, ",")
	elements := make([][]string, 0, len(subArgs))
	for _, sub := range subArgs {
		switch {
		case sub == "":
			elements = append(elements, []string{","})
		case strings.HasPrefix(sub, "./") && !strings.HasPrefix(sub, ".//"):
			lines, err := readDictionaryFile(sub)
			if err != nil {
				return nil, err
			}
			elements = append(elements, lines)
		default:
			literal := strings.NewReplacer("??", "?", "//", "/").Replace(sub)
			elements = append(elements, []string{literal})
		}
	}

	combos := combination.New(elements)
	if combos.Total() > maxDictionaryTotal {
		return nil, fmt.Errorf("passphrase: dictionary has %d entries, over the %d limit", combos.Total(), maxDictionaryTotal)
	}
	return &Dictionary{combos: combos}, nil
}

func readDictionaryFile(path string) ([]string, error) {
	data, err := os.ReadFile(filepath.FromSlash(path))
	if err != nil {
		return nil, fmt.Errorf("passphrase: reading dictionary file %q: %w", path, err)
	}
	var out []string
	for _, line := range strings.Split(strings.ReplaceAll(string(data), "\r\n", "\n"), "\n") {
		if line != "" {
			out = append(out, line)
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("passphrase: dictionary file %q has no entries", path)
	}
	return out, nil
}

func (d *Dictionary) Total() uint64 { return d.combos.Total() }
func (d *Dictionary) Begin() string { return strings.Join(d.combos.Begin(), "") }
func (d *Dictionary) End() string   { return strings.Join(d.combos.End(), "") }

// WriteGzip streams every candidate word this dictionary produces, gzip
// compressed, one per line -- the file the engine reads its dictionary
// argument from.
func (d *Dictionary) WriteGzip(w io.Writer) error {
	return combination.WriteGzip(d.combos, w, nil)
}

// Spec is a fully resolved passphrase specification: a left element, an
// optional right element, the attack mode their combination implies, and
// the user (or binary) custom charsets referenced by mask wildcards
// ?1..?4.
type Spec struct {
	Left       Element
	Right      Element
	AttackMode AttackMode
	custom     [4]string
}

// Empty returns the passphrase specification for "no passphrase at all":
// an empty mask under attack mode 3, which the engine treats as a single
// empty-string candidate.
func Empty() *Spec {
	return &Spec{Left: &Mask{Arg: "", Total: 1}, AttackMode: ModeMask}
}

// FromArgs resolves the 1-2 positional passphrase arguments into a Spec.
// An argument containing an unescaped "?" is a mask; anything else is a
// dictionary. The only combinations the engine supports here are a lone
// mask, a lone dictionary, dict+dict, dict+mask, and mask+dict.
func FromArgs(args []string, custom [4]string) (*Spec, error) {
	if len(args) == 0 {
		s := Empty()
		s.custom = custom
		return s, nil
	}
	if len(args) > 2 {
		return nil, fmt.Errorf("passphrase: at most two mask/dictionary arguments allowed, got %d", len(args))
	}

	elements := make([]Element, 0, 2)
	for _, arg := range args {
		el, err := classify(arg, custom)
		if err != nil {
			return nil, err
		}
		elements = append(elements, el)
	}

	var right Element
	if len(elements) == 2 {
		right = elements[1]
	}
	mode, err := attackMode(elements[0], right)
	if err != nil {
		return nil, err
	}
	return &Spec{Left: elements[0], Right: right, AttackMode: mode, custom: custom}, nil
}

func classify(arg string, custom [4]string) (Element, error) {
	if strings.Contains(strings.ReplaceAll(arg, "??", ""), "?") {
		return ParseMask(arg, custom)
	}
	return ParseDictionary(arg)
}

func attackMode(left, right Element) (AttackMode, error) {
	_, leftIsMask := left.(*Mask)
	_, leftIsDict := left.(*Dictionary)

	if right == nil {
		switch {
		case leftIsMask:
			return ModeMask, nil
		case leftIsDict:
			return ModeDict, nil
		}
	}

	_, rightIsMask := right.(*Mask)
	_, rightIsDict := right.(*Dictionary)
	switch {
	case leftIsDict && rightIsDict:
		return ModeDictDict, nil
	case leftIsDict && rightIsMask:
		return ModeDictMask, nil
	case leftIsMask && rightIsDict:
		return ModeMaskDict, nil
	}
	return 0, fmt.Errorf("passphrase: unsupported dictionary/mask combination")
}

// Total is the number of distinct passphrases this Spec can produce.
func (s *Spec) Total() uint64 {
	total := elementTotal(s.Left)
	if s.Right != nil {
		total = satMul(total, elementTotal(s.Right))
	}
	return total
}

// Begin previews the lexicographically first passphrase.
func (s *Spec) Begin() string {
	out := elementBegin(s.Left)
	if s.Right != nil {
		out += elementBegin(s.Right)
	}
	return out
}

// End previews the lexicographically last passphrase.
func (s *Spec) End() string {
	out := elementEnd(s.Left)
	if s.Right != nil {
		out += elementEnd(s.Right)
	}
	return out
}

func elementTotal(el Element) uint64 {
	switch v := el.(type) {
	case *Mask:
		return v.Total
	case *Dictionary:
		return v.Total()
	}
	return 1
}

func elementBegin(el Element) string {
	switch v := el.(type) {
	case *Mask:
		return v.ExampleStart
	case *Dictionary:
		return v.Begin()
	}
	return ""
}

func elementEnd(el Element) string {
	switch v := el.(type) {
	case *Mask:
		return v.ExampleEnd
	case *Dictionary:
		return v.End()
	}
	return ""
}

// BuildArgs renders the engine CLI arguments for this Spec. Dictionary
// elements are written out as a gzip word-list file under
// "{prefix}_left.gz"/"{prefix}_right.gz"; mask elements pass their
// template straight through. Custom charsets (user-supplied or binary)
// trail as -1..-4 flags.
func (s *Spec) BuildArgs(prefix string) ([]string, error) {
	args := []string{"-a", strconv.Itoa(int(s.AttackMode))}

	leftArg, err := s.argFor(s.Left, prefix+"_left")
	if err != nil {
		return nil, err
	}
	args = append(args, leftArg)

	if s.Right != nil {
		rightArg, err := s.argFor(s.Right, prefix+"_right")
		if err != nil {
			return nil, err
		}
		args = append(args, rightArg)
	}

	return append(args, s.charsetFlags()...), nil
}

func (s *Spec) argFor(el Element, filePrefix string) (string, error) {
	switch v := el.(type) {
	case *Mask:
		return v.Arg, nil
	case *Dictionary:
		path := filePrefix + ".gz"
		f, err := os.Create(path)
		if err != nil {
			return "", fmt.Errorf("passphrase: creating dictionary file %q: %w", path, err)
		}
		defer f.Close()
		if err := v.WriteGzip(f); err != nil {
			return "", fmt.Errorf("passphrase: writing dictionary file %q: %w", path, err)
		}
		return path, nil
	}
	return "", fmt.Errorf("passphrase: unknown element type %T", el)
}

func (s *Spec) charsetFlags() []string {
	var out []string
	for i, c := range s.custom {
		if c != "" {
			out = append(out, fmt.Sprintf("-%d", i+1), c)
		}
	}
	return out
}

// AddBinaryCharsets folds guesses unknown seed-word positions into this
// Spec's mask by allocating three free custom-charset slots (assigned
// 5-bit, 6-bit, and the seed's own entropyBits width, lowest free slot
// first) and prefixing the mask with one charset reference per 11-bit
// word half, the entropy-width reference innermost. Returns an augmented
// copy, leaving the receiver untouched; ok=false when fewer than three
// custom-charset slots are free, when the expected charset files aren't
// on disk, or when there is no mask to prefix -- the caller then falls
// back to writing full candidate hash-list rows instead.
func (s *Spec) AddBinaryCharsets(entropyBits, guesses int) (*Spec, bool) {
	cp := *s

	widths := []int{5, 6, entropyBits}
	var slots []int
	for slot := 1; slot <= 4 && len(slots) < len(widths); slot++ {
		if cp.custom[slot-1] != "" {
			continue
		}
		path, ok := binaryCharsetPath(widths[len(slots)])
		if !ok {
			return nil, false
		}
		cp.custom[slot-1] = path
		slots = append(slots, slot)
	}
	if len(slots) != len(widths) {
		return nil, false
	}

	// A lone dictionary moves to the right side so an empty mask can host
	// the charset prefix.
	if dict, ok := cp.Left.(*Dictionary); ok && cp.Right == nil {
		cp.Left = &Mask{Arg: "", Total: 1}
		cp.Right = dict
		cp.AttackMode = ModeMaskDict
	}

	mask, ok := cp.Left.(*Mask)
	if !ok {
		return nil, false
	}
	augmented := *mask
	prefixWild(&augmented, slots[2], uint64(1)<<uint(entropyBits))
	for g := 1; g < guesses; g++ {
		prefixWild(&augmented, slots[1], 1<<6)
		prefixWild(&augmented, slots[0], 1<<5)
	}
	cp.Left = &augmented
	return &cp, true
}

func prefixWild(m *Mask, slot int, cardinality uint64) {
	m.Arg = fmt.Sprintf("?%d%s", slot, m.Arg)
	m.Total = satMul(m.Total, cardinality)
}

// binaryCharsetPath locates the engine's bundled N-bit binary charset
// file, checked relative to both the working directory and the engine
// directory so the augmentation fails closed when the files are missing.
func binaryCharsetPath(bits int) (string, bool) {
	name := fmt.Sprintf("%dbit.hcchr", bits)
	for _, root := range []string{filepath.Join("hashcat", "charsets", "bin"), filepath.Join("charsets", "bin")} {
		path := filepath.Join(root, name)
		if _, err := os.Stat(path); err == nil {
			return path, true
		}
	}
	return "", false
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
