package shard

import (
	"testing"

	"github.com/google/uuid"
)

func TestFloatHashRange(t *testing.T) {
	for i := 0; i < 1000; i++ {
		x := FloatHash((&GobHasher{Object: i}).Hash())
		if x < 0 || x >= 1 {
			t.Fatalf("hash %f out of range", x)
		}
	}
}

func TestFloatHashDeterminism(t *testing.T) {
	if FloatHash([]byte("hello")) != FloatHash([]byte("hello")) {
		t.Error("hashes differ for equal data")
	}
	if FloatHash([]byte("hello")) == FloatHash([]byte("world")) {
		t.Error("hashes collide for different data")
	}
}

func TestUUIDHasher(t *testing.T) {
	id := uuid.NewSHA1(uuid.NameSpaceOID, []byte("sample-13"))
	hash := UUIDHasher(id).Hash()
	if len(hash) != 16 {
		t.Fatalf("expected 16 bytes but got %d", len(hash))
	}
	for i, x := range id[:] {
		if hash[i] != x {
			t.Errorf("byte %d: expected %d but got %d", i, x, hash[i])
		}
	}
}
