package allgather

import (
	"github.com/unixpickle/clip-sim/comm"
	"github.com/unixpickle/clip-sim/simulator"
)

// A RingGatherer passes vectors around a ring of workers,
// so that each worker only ever talks to its neighbors.
//
// For large clusters this avoids the incast that a naive
// broadcast causes, at the cost of more hops per vector.
type RingGatherer struct{}

// AllGather rotates every worker's vector around the ring
// until each worker has seen all of them.
//
// Networks may reorder in-flight packets, so arrivals are
// buffered by slot and forwarded in ring order.
func (g RingGatherer) AllGather(w *comm.Worker, data []float64) [][]float64 {
	r := w.NextRound()
	n := r.Size()
	rank := r.Rank()

	res := make([][]float64, n)
	res[rank] = data
	if n == 1 {
		return res
	}

	next := r.Ports[(rank+1)%n]
	sendRing(r, next, &ringPacket{kind: ringGather, slot: rank, payload: data})

	pending := map[int][]float64{}
	for step := 0; step < n-1; step++ {
		// The slot that canonically arrives at this step.
		want := ((rank-1-step)%n + n) % n

		payload, ok := pending[want]
		for !ok {
			packet := recvRing(r)
			if packet.kind != ringGather {
				panic("unexpected packet type")
			}
			pending[packet.slot] = packet.payload
			payload, ok = pending[want]
		}
		delete(pending, want)

		res[want] = payload
		if step+1 < n-1 {
			sendRing(r, next, &ringPacket{kind: ringGather, slot: want, payload: payload})
		}
	}

	return res
}

// ReduceScatter rotates partial reductions around the
// ring. The contribution destined for rank d starts at
// worker d+1 and accumulates every worker's piece on its
// way to worker d.
//
// fn is folded pairwise, one hop at a time, which is why
// ReduceFns must be associative.
func (g RingGatherer) ReduceScatter(w *comm.Worker, pieces [][]float64,
	fn comm.ReduceFn) []float64 {
	if len(pieces) != w.Size() {
		panic("mismatching lengths")
	}
	r := w.NextRound()
	n := r.Size()
	rank := r.Rank()

	if n == 1 {
		return fn(r.Handle, pieces[0])
	}

	next := r.Ports[(rank+1)%n]
	firstDest := ((rank - 1) + n) % n
	sendRing(r, next, &ringPacket{kind: ringReduce, slot: firstDest, payload: pieces[firstDest]})

	var result []float64
	pending := map[int][]float64{}
	for step := 0; step < n-1; step++ {
		want := ((rank-2-step)%n + 2*n) % n

		payload, ok := pending[want]
		for !ok {
			packet := recvRing(r)
			if packet.kind != ringReduce {
				panic("unexpected packet type")
			}
			pending[packet.slot] = packet.payload
			payload, ok = pending[want]
		}
		delete(pending, want)

		reduced := fn(r.Handle, payload, pieces[want])
		if want == rank {
			result = reduced
		} else {
			sendRing(r, next, &ringPacket{kind: ringReduce, slot: want, payload: reduced})
		}
	}

	return result
}

type ringPacketKind int

const (
	ringGather ringPacketKind = iota
	ringReduce
)

// A ringPacket carries one vector around the ring, tagged
// with the slot (rank) it belongs to.
type ringPacket struct {
	kind    ringPacketKind
	slot    int
	payload []float64
}

func (p *ringPacket) size() float64 {
	return float64(len(p.payload)*8) + 16.0
}

func sendRing(r *comm.Round, dst *simulator.Port, p *ringPacket) {
	r.Network.Send(r.Handle, &simulator.Message{
		Source:  r.Port,
		Dest:    dst,
		Message: p,
		Size:    p.size(),
	})
}

func recvRing(r *comm.Round) *ringPacket {
	return r.Port.Recv(r.Handle).Message.(*ringPacket)
}
