package combination

import (
	"reflect"
	"testing"
)

func expand(seeds []*Combinations[uint32]) [][]uint32 {
	var all [][]uint32
	seen := map[string]bool{}
	for _, seed := range seeds {
		for {
			next, ok := seed.Next()
			if !ok {
				break
			}
			key := uint32Key(next)
			if seen[key] {
				panic("duplicate combination produced")
			}
			seen[key] = true
			cp := make([]uint32, len(next))
			copy(cp, next)
			all = append(all, cp)
		}
	}
	return all
}

func uint32Key(xs []uint32) string {
	b := make([]byte, 0, len(xs)*4)
	for _, x := range xs {
		b = append(b, byte(x), byte(x>>8), byte(x>>16), byte(x>>24))
	}
	return string(b)
}

func u32s(xs ...uint32) []uint32 { return xs }

func TestCanGetBeginAndEnd(t *testing.T) {
	c := Permute[uint32]([][]uint32{{1}, {2}, {3}, {4}}, []int{0, 1, 2, 3}, 3)
	if !reflect.DeepEqual(c.Begin(), u32s(1, 2, 3)) {
		t.Errorf("Begin() = %v, want [1 2 3]", c.Begin())
	}
	if !reflect.DeepEqual(c.End(), u32s(4, 3, 2)) {
		t.Errorf("End() = %v, want [4 3 2]", c.End())
	}
}

func TestCanShard(t *testing.T) {
	full := New[uint32]([][]uint32{{1, 2}, {3, 4}, {5, 6}, {7, 8}})
	sharded := New[uint32]([][]uint32{{1, 2}, {3, 4}, {5, 6}, {7, 8}}).Shard(3)
	if got, want := len(expand(sharded)), len(expand([]*Combinations[uint32]{full})); got != want {
		t.Fatalf("shard(3) produced %d combinations, want %d", got, want)
	}

	full2 := New[uint32]([][]uint32{{1, 2}, {3}})
	sharded2 := New[uint32]([][]uint32{{1, 2}, {3}}).Shard(100)
	if got, want := len(expand(sharded2)), len(expand([]*Combinations[uint32]{full2})); got != want {
		t.Fatalf("shard(100) produced %d combinations, want %d", got, want)
	}

	c3 := Permute[uint32]([][]uint32{{1, 2}, {3, 4}, {5, 6}, {7, 8}}, []int{0, 1, 2, 3}, 2)
	shards3 := c3.Shard(1000)
	if len(shards3) != 12 {
		t.Errorf("Shard(1000) len = %d, want 12", len(shards3))
	}
	c3Full := Permute[uint32]([][]uint32{{1, 2}, {3, 4}, {5, 6}, {7, 8}}, []int{0, 1, 2, 3}, 2)
	if got, want := len(expand(shards3)), len(expand([]*Combinations[uint32]{c3Full})); got != want {
		t.Fatalf("shard(1000) total = %d, want %d", got, want)
	}

	c4 := Permute[uint32]([][]uint32{{1, 2, 3}, {4, 5}, {6}, {7}}, []int{1, 2, 3}, 2)
	shards4 := c4.Shard(100)
	if len(shards4) != 9 {
		t.Errorf("Shard(100) len = %d, want 9", len(shards4))
	}
	c4Full := Permute[uint32]([][]uint32{{1, 2, 3}, {4, 5}, {6}, {7}}, []int{1, 2, 3}, 2)
	if got, want := len(expand(shards4)), len(expand([]*Combinations[uint32]{c4Full})); got != want {
		t.Fatalf("shard(100) total = %d, want %d", got, want)
	}
}

func TestWritesPermutations1(t *testing.T) {
	c := Permute[uint32]([][]uint32{{1, 2}, {3}, {4}}, []int{0, 1, 2}, 2)
	want := [][]uint32{
		{1, 3}, {2, 3}, {3, 1}, {3, 2}, {1, 4}, {2, 4}, {4, 1}, {4, 2}, {3, 4}, {4, 3},
	}
	for _, w := range want {
		got, ok := c.Next()
		if !ok {
			t.Fatalf("expected combination %v", w)
		}
		if !reflect.DeepEqual(got, w) {
			t.Fatalf("got %v, want %v", got, w)
		}
	}
	if _, ok := c.Next(); ok {
		t.Fatal("expected enumerator exhausted")
	}

	permuteAssert(t, Permute[uint32]([][]uint32{{1, 2}, {4, 5}, {7, 8}}, []int{0, 1, 2}, 3), 6, 48)
	permuteAssert(t, Permute[uint32]([][]uint32{{1, 2, 3}, {4, 5, 6}, {7, 8, 9}}, []int{0, 1, 2}, 2), 6, 54)
	permuteAssert(t, Permute[uint32]([][]uint32{{10, 11}, {1, 2, 3}, {4, 5, 6}, {7, 8, 9}}, []int{1, 2, 3}, 3), 6, 108)
	permuteAssert(t, Permute[uint32]([][]uint32{{0, 1, 2}, {3, 4}, {5, 6, 7, 8, 9}, {10, 11, 12}}, []int{0, 1, 2, 3}, 3), 24, 738)
}

func permuteAssert(t *testing.T, c *Combinations[uint32], permutations, exact uint64) {
	t.Helper()
	if got := c.Permutations(); got != permutations {
		t.Errorf("Permutations() = %d, want %d", got, permutations)
	}
	if got := c.Total(); got != exact {
		t.Errorf("Total() = %d, want %d", got, exact)
	}

	seen := map[string]bool{}
	var count uint64
	for {
		next, ok := c.Next()
		if !ok {
			break
		}
		key := uint32Key(next)
		if seen[key] {
			t.Fatalf("duplicate combination %v", next)
		}
		seen[key] = true
		count++
	}
	if count != exact {
		t.Errorf("produced %d combinations, want %d", count, exact)
	}
}

func TestWritesPermutations2(t *testing.T) {
	c := Permute[uint32]([][]uint32{{1}, {2}, {3, 4}}, []int{0, 2}, 3)
	if got := c.Total(); got != 4 {
		t.Errorf("Total() = %d, want 4", got)
	}
	want := [][]uint32{
		{1, 2, 3}, {1, 2, 4}, {3, 2, 1}, {4, 2, 1},
	}
	for _, w := range want {
		got, ok := c.Next()
		if !ok {
			t.Fatalf("expected combination %v", w)
		}
		if !reflect.DeepEqual(got, w) {
			t.Fatalf("got %v, want %v", got, w)
		}
	}
	if _, ok := c.Next(); ok {
		t.Fatal("expected enumerator exhausted")
	}
}

func TestWritesAllCombinations1(t *testing.T) {
	c := New[uint32]([][]uint32{{1, 2}, {3, 4}, {5, 6, 7}})
	want := [][]uint32{
		{1, 3, 5}, {1, 3, 6}, {1, 3, 7},
		{1, 4, 5}, {1, 4, 6}, {1, 4, 7},
		{2, 3, 5}, {2, 3, 6}, {2, 3, 7},
		{2, 4, 5}, {2, 4, 6}, {2, 4, 7},
	}
	for _, w := range want {
		got, ok := c.Next()
		if !ok {
			t.Fatalf("expected combination %v", w)
		}
		if !reflect.DeepEqual(got, w) {
			t.Fatalf("got %v, want %v", got, w)
		}
	}
	if _, ok := c.Next(); ok {
		t.Fatal("expected enumerator exhausted")
	}
}

func TestWritesAllCombinations2(t *testing.T) {
	c := New[uint32]([][]uint32{{1, 2}, {3}, {4, 5}})
	want := [][]uint32{
		{1, 3, 4}, {1, 3, 5}, {2, 3, 4}, {2, 3, 5},
	}
	for _, w := range want {
		got, ok := c.Next()
		if !ok {
			t.Fatalf("expected combination %v", w)
		}
		if !reflect.DeepEqual(got, w) {
			t.Fatalf("got %v, want %v", got, w)
		}
	}
	if _, ok := c.Next(); ok {
		t.Fatal("expected enumerator exhausted")
	}
}
