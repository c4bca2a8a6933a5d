package allgather

import "testing"

func TestNaiveGatherer(t *testing.T) {
	RunGathererTests(t, NaiveGatherer{})
}
