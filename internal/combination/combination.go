// Package combination enumerates the cartesian product of a list of
// position-wise candidate lists, with an optional subset of positions
// additionally permuted relative to each other.
//
// It is the workhorse behind seed-word enumeration: each position in a
// BIP-39 mnemonic contributes its own candidate-word list (often length 1,
// a fixed word; sometimes the full 2048-word list, a wildcard), and any
// positions carrying an anchor ("this word appears somewhere, position
// unknown") are permuted across those positions in addition to varying
// their own candidate values.
//
// Enumeration walks a mixed-radix odometer over the non-permuted positions,
// rightmost position advancing fastest, and re-seeds that odometer every
// time the permuted positions' own Enumerator advances to a new ordering.
package combination

import (
	"fmt"
	"io"

	"github.com/klauspost/pgzip"

	"github.com/seedcat/seedcat/internal/permutation"
)

// FixedPosition reports whether a combination position has exactly one
// candidate value (Ok) and, if so, what it is.
type FixedPosition[T any] struct {
	Value T
	Ok    bool
}

// Combinations enumerates cartesian-product combinations of elements,
// permuting the positions named in permuteIndices relative to one another.
type Combinations[T any] struct {
	permuteIndices *intSet
	elements       [][]T
	indices        []int
	next           []T
	position       uint64
	bound          uint64
	permutations   *permutation.Enumerator[int]
	length         int
	perm           []int
}

// New builds a Combinations enumerating the full cartesian product of
// elements, with no positions permuted.
func New[T any](elements [][]T) *Combinations[T] {
	return Permute[T](elements, nil, len(elements))
}

// Permute builds a Combinations over elements, treating length as the
// output arity and permuteIndices as the positions (within 0..len(elements))
// whose relative order is itself part of the enumeration.
func Permute[T any](elements [][]T, permuteIndices []int, length int) *Combinations[T] {
	permuteLen := len(permuteIndices) - (len(elements) - length)
	permutations := permutation.New(append([]int(nil), permuteIndices...), permuteLen)
	set := newIntSet(permuteIndices)

	perm, ok := permutations.Next()
	var initial []int
	if ok {
		initial = append([]int(nil), perm...)
	}

	return newShard(elements, permutations, set, length, initial)
}

func newShard[T any](elements [][]T, permutations *permutation.Enumerator[int], permuteIndices *intSet, length int, perm []int) *Combinations[T] {
	return &Combinations[T]{
		permuteIndices: permuteIndices,
		permutations:   permutations,
		perm:           perm,
		elements:       elements,
		indices:        make([]int, len(elements)),
		bound:          1,
		length:         length,
	}
}

// FixedPositions reports, for each output position, the single candidate
// value it is pinned to (an anchor word, or a plain non-wildcard position),
// or Ok=false if the position varies.
func (c *Combinations[T]) FixedPositions() []FixedPosition[T] {
	fixed := make([]FixedPosition[T], 0, c.Len())
	for i := 0; i < c.Len(); i++ {
		if !c.permuteIndices.Contains(i) && len(c.elements[i]) == 1 {
			fixed = append(fixed, FixedPosition[T]{Value: c.elements[i][0], Ok: true})
		} else {
			fixed = append(fixed, FixedPosition[T]{Ok: false})
		}
	}
	return fixed
}

// Begin returns the lexicographically first combination this enumerator
// will produce.
func (c *Combinations[T]) Begin() []T {
	out := make([]T, c.length)
	for i := 0; i < c.length; i++ {
		out[i] = c.elements[i][0]
	}
	return out
}

// End returns the lexicographically last combination this enumerator will
// produce.
func (c *Combinations[T]) End() []T {
	permute := c.permuteIndices.Clone()
	out := make([]T, c.length)
	for i := 0; i < c.length; i++ {
		j := i
		if c.permuteIndices.Contains(i) {
			last, _ := permute.PopLast()
			j = last
		}
		els := c.elements[j]
		out[i] = els[len(els)-1]
	}
	return out
}

// Elements returns the per-position candidate lists backing this
// enumerator.
func (c *Combinations[T]) Elements() [][]T {
	return c.elements
}

// Total estimates the total candidate count, sampling up to 10,000,000
// permutations of the permuted positions when that count is large. Runs
// fast and is usually accurate for large permutation counts.
func (c *Combinations[T]) Total() uint64 {
	return c.EstimateTotal(10_000_000)
}

// EstimateTotal estimates the total candidate count by exhaustively summing
// when the permuted-position count is <= sampleSize, or by sampling
// sampleSize permutations and scaling otherwise.
func (c *Combinations[T]) EstimateTotal(sampleSize uint64) uint64 {
	totalCombo := uint64(1)
	var sizes []uint64
	for i := range c.elements {
		length := uint64(len(c.elements[i]))
		if c.permuteIndices.Contains(i) {
			sizes = append(sizes, length)
		} else {
			totalCombo = satMul(totalCombo, length)
		}
	}
	if len(sizes) == 0 {
		return totalCombo
	}

	count := uint64(0)
	totalPerm := uint64(0)
	perms := permutation.New(sizes, len(c.perm))
	numPermutations := float64(c.Permutations())

	for {
		next, ok := perms.Next()
		if !ok {
			break
		}
		count++
		product := uint64(1)
		for _, v := range next {
			product = satMul(product, v)
		}
		totalPerm = satAdd(totalPerm, product)
		if count == sampleSize {
			totalPerm = uint64(float64(totalPerm) * (numPermutations / float64(sampleSize)))
			break
		}
	}

	return satMul(totalPerm, totalCombo)
}

// Permutations returns the number of distinct orderings of the permuted
// positions.
func (c *Combinations[T]) Permutations() uint64 {
	n := uint64(c.permuteIndices.Len())
	r := uint64(len(c.perm))
	perms := uint64(1)
	for i := n - r + 1; i <= n; i++ {
		perms = satMul(perms, i)
	}
	return perms
}

// Len returns the output arity (the number of positions per combination).
func (c *Combinations[T]) Len() int {
	return c.length
}

func (c *Combinations[T]) nextIndexRev(index int, permutationIndex *int) int {
	if c.permuteIndices.Contains(index) {
		*permutationIndex--
		return c.perm[*permutationIndex]
	}
	return index
}

func (c *Combinations[T]) boundForCurrentPermutation() uint64 {
	permutationIndex := len(c.perm)
	bound := uint64(1)
	for i := c.length - 1; i >= 0; i-- {
		j := c.nextIndexRev(i, &permutationIndex)
		bound = satMul(bound, uint64(len(c.elements[j])))
	}
	return bound
}

func (c *Combinations[T]) advancePermutation() {
	if c.position == c.bound && c.permutations.Len() > 1 {
		if next, ok := c.permutations.Next(); ok {
			c.perm = append([]int(nil), next...)
			c.bound = c.boundForCurrentPermutation()
			c.position = 0
			c.indices = make([]int, len(c.elements))
		}
	}
}

// Next advances to the next combination and returns it, or returns (nil,
// false) once exhausted. The returned slice is reused across calls;
// callers that need to retain a combination must copy it.
func (c *Combinations[T]) Next() ([]T, bool) {
	if c.position >= c.bound {
		return nil, false
	}

	c.position++
	permutationIndex := len(c.perm)

	if c.position == 1 {
		c.next = make([]T, 0, c.length)
		for i := c.length - 1; i >= 0; i-- {
			j := c.nextIndexRev(i, &permutationIndex)
			c.next = append(c.next, c.elements[j][0])
		}
		c.bound = c.boundForCurrentPermutation()
		reverse(c.next)
		c.advancePermutation()
		return c.next, true
	}

	for i := c.length - 1; i >= 0; i-- {
		j := c.nextIndexRev(i, &permutationIndex)
		if c.indices[j] < len(c.elements[j])-1 {
			c.indices[j]++
			c.next[i] = c.elements[j][c.indices[j]]
			break
		}
		c.indices[j] = 0
		c.next[i] = c.elements[j][0]
	}
	c.advancePermutation()
	return c.next, true
}

// Shard splits this enumerator into disjoint Combinations whose union
// covers the same space, first splitting across permutation orderings and
// then pinning non-permuted positions to single candidate values one
// position at a time, stopping once there are at least num shards. The
// first non-permuted position is always pinned, so more than num shards
// can be returned.
func (c *Combinations[T]) Shard(num int) []*Combinations[T] {
	var shards []*Combinations[T]

	if c.permutations.Len() > 1 {
		permShards := num
		if uint64(permShards) > c.permutations.Len() {
			permShards = int(c.permutations.Len())
		}
		for _, perm := range c.permutations.Shard(permShards) {
			next, ok := perm.Next()
			var p []int
			if ok {
				p = append([]int(nil), next...)
			}
			shards = append(shards, newShard(cloneElements(c.elements), perm, c.permuteIndices.Clone(), c.length, p))
		}
	} else {
		shards = append(shards, c.clone())
	}

	for i := range c.elements {
		if !c.permuteIndices.Contains(i) {
			shards = shardIndex(shards, i)
			if len(shards) >= num {
				break
			}
		}
	}

	return shards
}

func shardIndex[T any](shards []*Combinations[T], index int) []*Combinations[T] {
	var next []*Combinations[T]
	for _, s := range shards {
		for _, choice := range s.elements[index] {
			elements := cloneElements(s.elements)
			elements[index] = []T{choice}
			next = append(next, newShard(elements, s.permutations, s.permuteIndices.Clone(), s.length, append([]int(nil), s.perm...)))
		}
	}
	return next
}

func (c *Combinations[T]) clone() *Combinations[T] {
	return &Combinations[T]{
		permuteIndices: c.permuteIndices.Clone(),
		elements:       cloneElements(c.elements),
		indices:        append([]int(nil), c.indices...),
		next:           append([]T(nil), c.next...),
		position:       c.position,
		bound:          c.bound,
		permutations:   c.permutations,
		length:         c.length,
		perm:           append([]int(nil), c.perm...),
	}
}

func cloneElements[T any](elements [][]T) [][]T {
	out := make([][]T, len(elements))
	for i, e := range elements {
		out[i] = append([]T(nil), e...)
	}
	return out
}

func reverse[T any](s []T) {
	for i, j := 0, len(s)-1; i < j; i, j = i+1, j-1 {
		s[i], s[j] = s[j], s[i]
	}
}

func satMul(a, b uint64) uint64 {
	if a == 0 || b == 0 {
		return 0
	}
	result := a * b
	if result/a != b {
		return ^uint64(0)
	}
	return result
}

func satAdd(a, b uint64) uint64 {
	result := a + b
	if result < a {
		return ^uint64(0)
	}
	return result
}

// WriteGzip streams every combination of c (interpreted as whitespace-free
// tokens joined by commas, one combination per line) into w through a
// parallel gzip compressor, reporting progress via onRecord after each
// line. It is the hash-list/dictionary writer used to hand an external
// recovery engine a candidate file too large to build in memory.
func WriteGzip(c *Combinations[string], w io.Writer, onRecord func()) error {
	gz := pgzip.NewWriter(w)

	for {
		next, ok := c.Next()
		if !ok {
			break
		}
		for i, tok := range next {
			if i > 0 {
				if _, err := gz.Write([]byte(",")); err != nil {
					gz.Close()
					return fmt.Errorf("combination: write record: %w", err)
				}
			}
			if _, err := gz.Write([]byte(tok)); err != nil {
				gz.Close()
				return fmt.Errorf("combination: write record: %w", err)
			}
		}
		if _, err := gz.Write([]byte{'\n'}); err != nil {
			gz.Close()
			return fmt.Errorf("combination: write newline: %w", err)
		}
		if onRecord != nil {
			onRecord()
		}
	}

	if err := gz.Close(); err != nil {
		return fmt.Errorf("combination: close gzip stream: %w", err)
	}
	return nil
}
