// Package allgather implements collective algorithms for
// gathering and reducing vectors that are distributed
// across training workers.
package allgather

import "github.com/unixpickle/clip-sim/comm"

// A Gatherer is an algorithm for moving every worker's
// vector to every other worker, along with the reverse
// operation that sums per-destination contributions back
// down to their owners.
//
// AllGather and ReduceScatter are duals: the gradient of
// an all-gathered value is reduce-scattered back to the
// workers that contributed it.
type Gatherer interface {
	// AllGather returns every worker's data vector,
	// indexed by rank. The entry for the caller's own
	// rank is the data argument itself.
	//
	// The vectors need not have equal lengths.
	AllGather(w *comm.Worker, data []float64) [][]float64

	// ReduceScatter reduces the workers' contributions
	// with fn and hands each worker the result for its
	// own rank.
	//
	// pieces must contain one vector per rank: the
	// caller's contribution to that rank's result. The
	// returned vector is the reduction of every worker's
	// contribution for the caller's rank.
	//
	// Implementations may fold fn over partial results in
	// any grouping, so fn must be associative and
	// commutative.
	ReduceScatter(w *comm.Worker, pieces [][]float64, fn comm.ReduceFn) []float64
}

// AllReduce reduces equal-length vectors across workers
// using a ReduceScatter of near-equal chunks followed by
// an AllGather, so that no single worker reduces the whole
// vector on its own.
//
// Every worker receives the full reduced vector.
func AllReduce(w *comm.Worker, g Gatherer, data []float64, fn comm.ReduceFn) []float64 {
	n := w.Size()
	pieces := make([][]float64, n)
	start := 0
	for i := range pieces {
		length := len(data) / n
		if i < len(data)%n {
			length++
		}
		pieces[i] = data[start : start+length]
		start += length
	}

	reduced := g.ReduceScatter(w, pieces, fn)
	gathered := g.AllGather(w, reduced)

	res := make([]float64, 0, len(data))
	for _, vec := range gathered {
		res = append(res, vec...)
	}
	return res
}

// AllReduceMean averages equal-length vectors across
// workers. Averaging is not associative, so it cannot be a
// ReduceFn; instead the vectors are sum-reduced exactly and
// every worker rescales the result by the worker count.
func AllReduceMean(w *comm.Worker, g Gatherer, data []float64) []float64 {
	res := AllReduce(w, g, data, comm.Sum)
	scale := 1 / float64(w.Size())
	for i, x := range res {
		res[i] = x * scale
	}
	w.Handle().Sleep(comm.FlopTime * float64(len(res)))
	return res
}
