package comm

import (
	"github.com/unixpickle/clip-sim/simulator"
)

// FlopTime is the amount of virtual time it takes to
// perform a single floating-point operation.
const FlopTime = 1e-9

// A ReduceFn reduces many vectors into one.
//
// Collectives may fold a ReduceFn over partial results in
// any grouping, so the operation must be associative and
// commutative. An average is not associative; see
// allgather.AllReduceMean for exact averaging.
type ReduceFn func(h *simulator.Handle, vecs ...[]float64) []float64

// Sum adds equal-length vectors component-wise, returning
// a fresh vector.
func Sum(h *simulator.Handle, vecs ...[]float64) []float64 {
	res := append([]float64{}, vecs[0]...)
	for _, v := range vecs[1:] {
		if len(v) != len(res) {
			panic("mismatching lengths")
		}
		for i, x := range v {
			res[i] += x
		}
	}

	// Simulate computation time.
	h.Sleep(FlopTime * float64(len(vecs)*len(res)))

	return res
}
