package shard

import (
	"reflect"
	"testing"

	"github.com/unixpickle/essentials"
)

// TestSharder runs a battery of tests on a Sharder.
func TestSharder(t *testing.T, maker func() Sharder) {
	t.Run("StaticConsistency", func(t *testing.T) {
		TestStaticConsistency(t, maker())
	})
	t.Run("RemovalConsistency", func(t *testing.T) {
		TestRemovalConsistency(t, maker())
	})
	t.Run("AddConsistency", func(t *testing.T) {
		TestAddConsistency(t, maker())
	})
}

// TestStaticConsistency checks that a Sharder produces
// the same assignments when no workers are added or
// removed.
func TestStaticConsistency(t *testing.T, s Sharder) {
	s.AddWorker(0, &GobHasher{Object: "hi"})
	s.AddWorker(1, &GobHasher{Object: "hey"})

	assignments := make([][][]int, 2)
	for i := 0; i < 2; i++ {
		assignments[i] = [][]int{}
		for j := 0; j < 100; j++ {
			ranks := copyRanks(s.Assign(&GobHasher{Object: j}))
			if len(ranks) == 0 {
				t.Error("no workers for key")
			}
			assignments[i] = append(assignments[i], ranks)
		}
	}
	if !reflect.DeepEqual(assignments[0], assignments[1]) {
		t.Error("assignments were inconsistent")
	}
}

// TestRemovalConsistency checks that a Sharder does not
// move keys assigned to surviving workers, even when
// other workers are removed.
func TestRemovalConsistency(t *testing.T, s Sharder) {
	for i := 0; i < 3; i++ {
		s.AddWorker(i, &GobHasher{Object: i})
	}

	oldRanks := [][]int{}
	for i := 0; i < 100; i++ {
		ranks := copyRanks(s.Assign(&GobHasher{Object: i}))
		if len(ranks) == 0 {
			t.Error("no workers for key")
		}
		oldRanks = append(oldRanks, ranks)
	}

	s.RemoveWorker(0)

	for i := 0; i < 100; i++ {
		newRanks := copyRanks(s.Assign(&GobHasher{Object: i}))
		if !essentials.Contains(oldRanks[i], 0) {
			if !reflect.DeepEqual(oldRanks[i], newRanks) {
				t.Errorf("key %d should be unaffected, but went from %v to %v",
					i, oldRanks[i], newRanks)
			}
		} else {
			if len(newRanks) == 0 {
				t.Error("no workers for key")
			} else if essentials.Contains(newRanks, 0) {
				t.Error("removed worker still in use")
			}
		}
	}
}

// TestAddConsistency checks that a Sharder does not move
// keys around excessively when adding new workers.
func TestAddConsistency(t *testing.T, s Sharder) {
	for i := 0; i < 3; i++ {
		s.AddWorker(i, &GobHasher{Object: i})
	}

	oldRanks := [][]int{}
	for i := 0; i < 100; i++ {
		ranks := copyRanks(s.Assign(&GobHasher{Object: i}))
		if len(ranks) == 0 {
			t.Error("no workers for key")
		}
		oldRanks = append(oldRanks, ranks)
	}

	s.AddWorker(3, &GobHasher{Object: -1})

	for i := 0; i < 100; i++ {
		newRanks := copyRanks(s.Assign(&GobHasher{Object: i}))
		if !essentials.Contains(newRanks, 3) {
			if !reflect.DeepEqual(oldRanks[i], newRanks) {
				t.Errorf("key %d should be unaffected, but went from %v to %v",
					i, oldRanks[i], newRanks)
			}
		} else if len(newRanks) == 0 {
			t.Error("no workers for key")
		}
	}
}

// copyRanks copies a slice so that later calls to Assign
// cannot mutate it.
func copyRanks(ranks []int) []int {
	return append([]int{}, ranks...)
}
