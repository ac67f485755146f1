// Package permutation enumerates PERMUTE(N, K) permutations: choosing an
// ordered sequence of K elements out of a set of N, without repetition.
//
// The enumerator walks its permutations in lexicographic order by element
// index, and every permutation is addressable by a single 0-based ordinal
// (combination index * K! + permutation-within-combination index). That lets
// a caller split the full space into disjoint, contiguous shards and hand
// each shard to its own goroutine with zero coordination: no shared mutable
// state and no locking, because no two shards ever visit the same ordinal.
//
// Algorithm reference: the combinatorial number system for indexing
// combinations, and the factorial number system (Lehmer code) for indexing
// permutations within a combination, combined with the classic in-place
// "next lexicographic permutation" pivot/swap/reverse step for advancing
// cheaply between adjacent ordinals.
// See: https://www.codeproject.com/Articles/1250925/Permutations-Fast-implementations-and-a-new-indexi
package permutation

import (
	"cmp"
	"fmt"
	"slices"
)

// factorial holds 0! through 20!, the largest factorials that fit in a
// uint64.
var factorial = [21]uint64{
	1, 1, 2, 6, 24, 120, 720, 5040, 40320, 362880, 3628800,
	39916800, 479001600, 6227020800, 87178291200, 1307674368000,
	20922789888000, 355687428096000, 6402373705728000,
	121645100408832000, 2432902008176640000,
}

// Enumerator produces every K-length ordered selection from a fixed set of
// elements, in lexicographic order, starting at a given ordinal.
type Enumerator[T cmp.Ordered] struct {
	elements []T
	indices  []T

	combinationIndex uint64
	permutationIndex uint64

	len          uint64
	kPermutations uint64
	k            int
	index        uint64
}

// New builds an Enumerator over every K-permutation of elements, covering
// the entire space from ordinal 0.
func New[T cmp.Ordered](elements []T, k int) *Enumerator[T] {
	return newShard(elements, k, 0, PermuteCount(len(elements), k))
}

func newShard[T cmp.Ordered](elements []T, k int, index, length uint64) *Enumerator[T] {
	kPermutations := PermuteCount(k, k)
	return &Enumerator[T]{
		elements:      elements,
		combinationIndex: index / kPermutations,
		permutationIndex: index % kPermutations,
		len:           length,
		kPermutations: kPermutations,
		k:             k,
		index:         index,
	}
}

// Len returns the exclusive end ordinal of this Enumerator's shard. For an
// Enumerator that starts at ordinal 0 this is its permutation count; for a
// later shard it is the end ordinal, not the count.
func (p *Enumerator[T]) Len() uint64 {
	return p.len
}

// Shard splits ordinals 0 through Len()-1 into disjoint, contiguous
// Enumerators of Len()/num ordinals each (at least 1). Any remainder from
// that integer division is covered by extra shards of the same size, the
// last possibly shorter, so more than num shards can be returned.
func (p *Enumerator[T]) Shard(num int) []*Enumerator[T] {
	shardSize := p.len / uint64(num)
	if shardSize == 0 {
		shardSize = 1
	}

	var shards []*Enumerator[T]
	index := uint64(0)
	for index < p.len {
		end := min(p.len, index+shardSize)
		shards = append(shards, newShard(p.elements, p.k, index, end))
		index += shardSize
	}
	return shards
}

// Next advances to the following permutation and returns it, or returns
// (nil, false) once the shard is exhausted. The returned slice is reused
// across calls; callers that need to retain a permutation must copy it.
func (p *Enumerator[T]) Next() ([]T, bool) {
	if p.indices == nil {
		p.nextCombo()
		return p.indices, true
	}

	p.index++
	if p.index >= p.len {
		return nil, false
	}

	p.nextPerm()
	return p.indices, true
}

func (p *Enumerator[T]) nextCombo() {
	n := len(p.elements)
	combo := IndexedCombination(p.combinationIndex, n, p.k)
	picked := make([]T, len(combo))
	for i, idx := range combo {
		picked[i] = p.elements[idx]
	}
	p.indices = IndexedPermutation(p.permutationIndex, picked)
}

func (p *Enumerator[T]) nextPerm() {
	if p.permutationIndex == p.kPermutations-1 {
		p.combinationIndex++
		p.permutationIndex = 0
		p.nextCombo()
		return
	}
	p.permutationIndex++
	nextPermutation(p.indices)
}

// nextPermutation rewrites list in place to hold the lexicographically next
// permutation of its current elements, and reports whether one existed.
func nextPermutation[T cmp.Ordered](list []T) bool {
	pivot := -1
	for i := len(list) - 2; i >= 0; i-- {
		if list[i] < list[i+1] {
			pivot = i
			break
		}
	}
	if pivot == -1 {
		return false
	}

	successor := -1
	for i := len(list) - 1; i >= 0; i-- {
		if list[pivot] < list[i] {
			successor = i
			break
		}
	}

	list[pivot], list[successor] = list[successor], list[pivot]
	slices.Reverse(list[pivot+1:])
	return true
}

// PermuteCount returns the number of ways to arrange k elements chosen, in
// order, from n: n! / (n-k)!. It saturates toward the maximum uint64 rather
// than overflowing.
func PermuteCount(n, k int) uint64 {
	end := uint64(1)
	for i := n - k + 1; i <= n; i++ {
		next := end * uint64(i)
		if end != 0 && next/end != uint64(i) {
			return ^uint64(0)
		}
		end = next
	}
	return end
}

// ChooseCount returns the binomial coefficient C(n, k): the number of
// k-element subsets of an n-element set, order ignored.
func ChooseCount(n, k int) uint64 {
	if k > n {
		return 0
	}
	if n <= 20 {
		return factorial[n] / factorial[k] / factorial[n-k]
	}
	end := min(k, n-k)
	acc := uint64(1)
	for val := 1; val <= end; val++ {
		acc = acc * uint64(n-val+1) / uint64(val)
	}
	return acc
}

// IndexedCombination returns the i-th k-element combination of {0, ..., n-1}
// in combinatorial-number-system order, without generating the combinations
// before it. Requires 0 <= i < ChooseCount(n, k).
func IndexedCombination(i uint64, n, k int) []int {
	if n < k {
		panic(fmt.Sprintf("permutation: n=%d must be >= k=%d", n, k))
	}
	if i >= ChooseCount(n, k) {
		panic(fmt.Sprintf("permutation: index %d out of range for C(%d,%d)", i, n, k))
	}

	combo := make([]int, 0, k)
	r := i + 1
	j := 0
	for s := 1; s <= k; s++ {
		cs := j + 1
		for r > ChooseCount(n-cs, k-s) {
			r -= ChooseCount(n-cs, k-s)
			cs++
		}
		combo = append(combo, cs-1)
		j = cs
	}
	return combo
}

// IndexedPermutation returns the index-th lexicographic permutation of list
// (sorted ascending first), using the factorial number system to decode a
// single Lehmer code rather than walking every preceding permutation.
// Requires 0 <= index < len(list)!.
func IndexedPermutation[T cmp.Ordered](index uint64, list []T) []T {
	size := len(list)
	if index >= factorial[size] {
		panic(fmt.Sprintf("permutation: index %d out of range for %d!", index, size))
	}
	sorted := slices.Clone(list)
	slices.Sort(sorted)

	used := make([]bool, size)
	result := make([]T, size)
	lower := factorial[size]

	for i := 0; i < size; i++ {
		bigger := lower
		lower = factorial[size-i-1]
		counter := int(index % bigger / lower)

		resultIndex := 0
		for {
			if !used[resultIndex] {
				counter--
				if counter < 0 {
					break
				}
			}
			resultIndex++
		}
		used[resultIndex] = true
		result[i] = sorted[resultIndex]
	}

	return result
}
