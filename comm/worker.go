// Package comm connects simulated training workers with
// collective communication primitives.
package comm

import (
	"sync"

	"github.com/unixpickle/clip-sim/simulator"
)

// A Worker is one training process's connection to a
// cluster of equals.
//
// A Worker hands out a fresh Round for every collective
// operation it participates in. All workers in a cluster
// must enter the same collectives in the same order; a
// worker skipping a collective that its peers entered
// leaves the simulation deadlocked.
type Worker struct {
	cluster *cluster
	handle  *simulator.Handle
	rank    int
	round   int
}

// SpawnWorkers creates a Worker for every node and calls f
// for each one in its own Goroutine.
//
// The rank of each worker is its node's index.
func SpawnWorkers(loop *simulator.EventLoop, network simulator.Network,
	nodes []*simulator.Node, f func(w *Worker)) {
	c := &cluster{loop: loop, network: network, nodes: nodes}
	for i := range nodes {
		rank := i
		loop.Go(func(h *simulator.Handle) {
			f(&Worker{cluster: c, handle: h, rank: rank})
		})
	}
}

// Rank gets the worker's index in the cluster.
func (w *Worker) Rank() int {
	return w.rank
}

// Size gets the number of workers in the cluster.
func (w *Worker) Size() int {
	return len(w.cluster.nodes)
}

// Handle gets the worker's handle on the event loop.
func (w *Worker) Handle() *simulator.Handle {
	return w.handle
}

// NextRound creates the worker's view of the cluster for
// its next collective operation.
//
// Equal round indices resolve to equal port sets on every
// worker, so messages from one collective can never be
// mistaken for messages from another.
func (w *Worker) NextRound() *Round {
	ports := w.cluster.ports(w.round)
	w.round++
	return &Round{
		Handle:  w.handle,
		Port:    ports[w.rank],
		Ports:   ports,
		Network: w.cluster.network,
	}
}

// A cluster is the state shared between the workers of one
// simulation: the network, the nodes, and the lazily
// created port sets for each round.
type cluster struct {
	loop    *simulator.EventLoop
	network simulator.Network
	nodes   []*simulator.Node

	lock   sync.Mutex
	rounds [][]*simulator.Port
}

func (c *cluster) ports(round int) []*simulator.Port {
	c.lock.Lock()
	defer c.lock.Unlock()
	for len(c.rounds) <= round {
		ports := make([]*simulator.Port, len(c.nodes))
		for i, node := range c.nodes {
			ports[i] = node.Port(c.loop)
		}
		c.rounds = append(c.rounds, ports)
	}
	return c.rounds[round]
}
