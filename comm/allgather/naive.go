package allgather

import "github.com/unixpickle/clip-sim/comm"

// A NaiveGatherer broadcasts every vector directly from
// its owner to every other worker.
type NaiveGatherer struct{}

// AllGather sends the data to all the other workers and
// collects their vectors in return.
func (n NaiveGatherer) AllGather(w *comm.Worker, data []float64) [][]float64 {
	r := w.NextRound()
	res := make([][]float64, r.Size())

	r.Bcast(data)
	for i := 0; i < r.Size()-1; i++ {
		vec, source := r.Recv()
		res[r.RankOf(source)] = vec
	}
	res[r.Rank()] = data

	return res
}

// ReduceScatter sends each contribution directly to its
// destination and reduces the contributions received for
// the caller's own rank.
func (n NaiveGatherer) ReduceScatter(w *comm.Worker, pieces [][]float64,
	fn comm.ReduceFn) []float64 {
	if len(pieces) != w.Size() {
		panic("mismatching lengths")
	}
	r := w.NextRound()

	for rank, port := range r.Ports {
		if rank == r.Rank() {
			continue
		}
		r.Send(port, pieces[rank])
	}

	contribs := make([][]float64, r.Size())
	for i := 0; i < r.Size()-1; i++ {
		vec, source := r.Recv()
		contribs[r.RankOf(source)] = vec
	}
	contribs[r.Rank()] = pieces[r.Rank()]

	// Reduce in rank order so that every run produces
	// bitwise identical results.
	return fn(r.Handle, contribs...)
}
