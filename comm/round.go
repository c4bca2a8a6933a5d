package comm

import "github.com/unixpickle/clip-sim/simulator"

// A Round is one worker's view of the cluster for a single
// collective operation.
//
// A Round's ports are shared with no other collective, so
// concurrent or back-to-back collectives cannot interfere
// with each other.
type Round struct {
	// Handle is the worker's main Goroutine's handle on
	// the event loop.
	Handle *simulator.Handle

	// Port is the current worker's port.
	Port *simulator.Port

	// Ports contains ports for all the workers in the
	// cluster in rank order, including the current one.
	Ports []*simulator.Port

	// Network is the network connecting the workers.
	Network simulator.Network
}

// Rank returns the current worker's rank.
func (r *Round) Rank() int {
	return r.RankOf(r.Port)
}

// RankOf returns the rank of any worker's port.
func (r *Round) RankOf(p *simulator.Port) int {
	for i, port := range r.Ports {
		if port == p {
			return i
		}
	}
	panic("unreachable")
}

// Size gets the number of workers.
func (r *Round) Size() int {
	return len(r.Ports)
}

// Bcast sends a vector to every other worker.
func (r *Round) Bcast(vec []float64) {
	messages := make([]*simulator.Message, 0, len(r.Ports)-1)
	for _, port := range r.Ports {
		if port == r.Port {
			continue
		}
		messages = append(messages, &simulator.Message{
			Source:  r.Port,
			Dest:    port,
			Message: vec,
			Size:    float64(len(vec) * 8),
		})
	}
	r.Network.Send(r.Handle, messages...)
}

// Send schedules a vector to be sent to the destination.
func (r *Round) Send(dst *simulator.Port, vec []float64) {
	r.Network.Send(r.Handle, &simulator.Message{
		Source:  r.Port,
		Dest:    dst,
		Message: vec,
		Size:    float64(len(vec) * 8),
	})
}

// Recv receives the next vector.
func (r *Round) Recv() ([]float64, *simulator.Port) {
	res := r.Port.Recv(r.Handle)
	return res.Message.([]float64), res.Source
}
