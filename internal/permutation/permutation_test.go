package permutation

import (
	"reflect"
	"testing"
)

func collect(p *Enumerator[int]) [][]int {
	var all [][]int
	for {
		next, ok := p.Next()
		if !ok {
			break
		}
		cp := make([]int, len(next))
		copy(cp, next)
		all = append(all, cp)
	}
	return all
}

func TestValidShards(t *testing.T) {
	cases := []struct {
		elements []int
		k        int
		shards   int
	}{
		{[]int{1, 2, 3}, 2, 2},
		{[]int{1, 2, 3}, 2, 6},
		{[]int{1, 2, 3, 4, 5, 6, 7, 8, 9}, 5, 10},
	}

	for _, c := range cases {
		full := collect(New(c.elements, c.k))

		var sharded [][]int
		for _, shard := range New(c.elements, c.k).Shard(c.shards) {
			for {
				next, ok := shard.Next()
				if !ok {
					break
				}
				cp := make([]int, len(next))
				copy(cp, next)
				sharded = append(sharded, cp)
			}
		}

		if len(sharded) != len(full) {
			t.Fatalf("shard count mismatch: got %d permutations across shards, want %d", len(sharded), len(full))
		}

		seen := map[string]bool{}
		for _, p := range sharded {
			key := intsKey(p)
			if seen[key] {
				t.Fatalf("duplicate permutation %v produced across shards", p)
			}
			seen[key] = true
		}
	}
}

func intsKey(xs []int) string {
	b := make([]byte, 0, len(xs)*4)
	for _, x := range xs {
		b = append(b, byte(x), byte(x>>8), byte(x>>16), byte(x>>24))
	}
	return string(b)
}

func TestPermutationsOfK(t *testing.T) {
	perm := New([]int{1, 2, 3}, 2)
	want := [][]int{
		{1, 2}, {2, 1}, {1, 3}, {3, 1}, {2, 3}, {3, 2},
	}
	for _, w := range want {
		got, ok := perm.Next()
		if !ok {
			t.Fatalf("expected permutation %v, got none", w)
		}
		if !reflect.DeepEqual(got, w) {
			t.Fatalf("got %v, want %v", got, w)
		}
	}
	if _, ok := perm.Next(); ok {
		t.Fatal("expected enumerator to be exhausted")
	}
}

func TestIndexedCombination(t *testing.T) {
	cases := []struct {
		i    uint64
		n, k int
		want []int
	}{
		{0, 4, 2, []int{0, 1}},
		{1, 4, 2, []int{0, 2}},
		{2, 4, 2, []int{0, 3}},
		{3, 4, 2, []int{1, 2}},
		{4, 4, 2, []int{1, 3}},
		{5, 4, 2, []int{2, 3}},
		{173103094564, 100, 10, []int{0, 2, 4, 10, 18, 24, 37, 65, 79, 82}},
	}
	for _, c := range cases {
		got := IndexedCombination(c.i, c.n, c.k)
		if !reflect.DeepEqual(got, c.want) {
			t.Errorf("IndexedCombination(%d,%d,%d) = %v, want %v", c.i, c.n, c.k, got, c.want)
		}
	}
}

func TestCounts(t *testing.T) {
	if got := ChooseCount(10, 5); got != 252 {
		t.Errorf("ChooseCount(10,5) = %d, want 252", got)
	}
	if got := ChooseCount(24, 10); got != 1961256 {
		t.Errorf("ChooseCount(24,10) = %d, want 1961256", got)
	}
	if got := ChooseCount(30, 20); got != 30045015 {
		t.Errorf("ChooseCount(30,20) = %d, want 30045015", got)
	}
	if got := PermuteCount(10, 5); got != 30240 {
		t.Errorf("PermuteCount(10,5) = %d, want 30240", got)
	}
	if got := PermuteCount(24, 10); got != 7117005772800 {
		t.Errorf("PermuteCount(24,10) = %d, want 7117005772800", got)
	}
}

func TestIndexedPermutation(t *testing.T) {
	cases := []struct {
		index uint64
		want  []int
	}{
		{0, []int{1, 2, 3}},
		{1, []int{1, 3, 2}},
		{2, []int{2, 1, 3}},
		{3, []int{2, 3, 1}},
		{4, []int{3, 1, 2}},
		{5, []int{3, 2, 1}},
	}
	for _, c := range cases {
		got := IndexedPermutation(c.index, []int{1, 2, 3})
		if !reflect.DeepEqual(got, c.want) {
			t.Errorf("IndexedPermutation(%d) = %v, want %v", c.index, got, c.want)
		}
	}
}

func TestNextPermutation(t *testing.T) {
	list := []int{1, 2, 3}
	want := [][]int{
		{1, 3, 2}, {2, 1, 3}, {2, 3, 1}, {3, 1, 2}, {3, 2, 1},
	}
	for _, w := range want {
		if ok := nextPermutation(list); !ok {
			t.Fatalf("expected next permutation to exist before %v", w)
		}
		if !reflect.DeepEqual(list, w) {
			t.Fatalf("got %v, want %v", list, w)
		}
	}
	if ok := nextPermutation(list); ok {
		t.Fatal("expected no further permutations")
	}
}
