package shard

import (
	"fmt"
	"testing"

	"github.com/google/uuid"
)

func TestPartition(t *testing.T) {
	sharder := NewConsistent(10)
	for i := 0; i < 4; i++ {
		sharder.AddWorker(i, &GobHasher{Object: i})
	}

	keys := make([]Hasher, 100)
	for i := range keys {
		name := fmt.Sprintf("sample-%d", i)
		keys[i] = UUIDHasher(uuid.NewSHA1(uuid.NameSpaceOID, []byte(name)))
	}

	parts := Partition(sharder, keys)
	total := 0
	for rank, part := range parts {
		if rank < 0 || rank >= 4 {
			t.Errorf("unexpected rank %d", rank)
		}
		total += len(part)
		for _, key := range part {
			ranks := sharder.Assign(key)
			if len(ranks) == 0 {
				t.Fatal("no workers for key")
			} else if ranks[0] != rank {
				t.Errorf("key partitioned to rank %d but assigned to %d", rank, ranks[0])
			}
		}
	}
	if total != len(keys) {
		t.Errorf("expected %d keys but got %d", len(keys), total)
	}
}
