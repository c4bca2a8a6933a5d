package shard

import (
	"fmt"
	"testing"
)

func TestConsistent(t *testing.T) {
	for _, size := range []int{1, 10, 200} {
		t.Run(fmt.Sprintf("Points%d", size), func(t *testing.T) {
			TestSharder(t, func() Sharder {
				return NewConsistent(size)
			})
		})
	}
}
