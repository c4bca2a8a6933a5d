package allgather

import "testing"

func TestRingGatherer(t *testing.T) {
	RunGathererTests(t, RingGatherer{})
}
