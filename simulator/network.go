package simulator

import (
	"math"
	"math/rand"
	"sync"

	"github.com/unixpickle/essentials"
)

// A Node is one machine in the simulation.
//
// Nodes are compared by pointer, so the struct must not be
// zero-sized.
type Node struct {
	nonZero byte
}

// NewNode creates a distinct Node.
func NewNode() *Node {
	return &Node{}
}

// Port opens a fresh Port on the Node.
func (n *Node) Port(loop *EventLoop) *Port {
	return &Port{Node: n, Incoming: loop.Stream()}
}

// A Port is one point of communication on a Node. Messages
// are addressed from Ports to Ports.
type Port struct {
	// The Node the Port belongs to.
	Node *Node

	// Incoming carries the *Message objects delivered to
	// this Port.
	Incoming *EventStream
}

// Recv waits for the next message on the Port.
func (p *Port) Recv(h *Handle) *Message {
	return h.Poll(p.Incoming).Message.(*Message)
}

// A Message is one chunk of data sent between nodes.
type Message struct {
	Source  *Port
	Dest    *Port
	Message interface{}
	Size    float64
}

// A Network decides when sent messages arrive.
type Network interface {
	// Send starts delivering messages. Each message that
	// arrives shows up on its destination Port's Incoming
	// stream.
	//
	// Send never blocks. Pass related messages in one
	// call where possible: some networks re-plan the
	// whole delivery timeline on every call.
	Send(h *Handle, msgs ...*Message)
}

// A RandomNetwork delivers every message after an
// independent uniform random delay, ignoring its size.
type RandomNetwork struct {
	// MaxDelay bounds the delay of each message.
	// A zero value means a bound of 1.
	MaxDelay float64
}

// Send schedules each message with its own random delay.
func (r RandomNetwork) Send(h *Handle, msgs ...*Message) {
	bound := r.MaxDelay
	if bound == 0 {
		bound = 1.0
	}
	for _, msg := range msgs {
		h.Schedule(msg.Dest.Incoming, msg, rand.Float64()*bound)
	}
}

// An OrderedNetwork drains each node's incoming messages
// in send order at a fixed rate, after a bounded random
// latency. Nodes can be taken down, killing their traffic.
type OrderedNetwork struct {
	Rate             float64
	MaxRandomLatency float64

	lock  sync.Mutex
	state map[*Node]*orderedState
	down  map[*Node]bool
}

// orderedState tracks one node's receive queue and every
// in-flight timer touching the node.
type orderedState struct {
	clearAt float64
	flows   []*Timer
}

// NewOrderedNetwork creates an OrderedNetwork with a fixed
// drain rate and an upper bound on injected latency.
func NewOrderedNetwork(rate float64, maxRandomLatency float64) *OrderedNetwork {
	return &OrderedNetwork{
		Rate:             rate,
		MaxRandomLatency: maxRandomLatency,
		state:            map[*Node]*orderedState{},
		down:             map[*Node]bool{},
	}
}

// Send queues messages for in-order delivery.
//
// Messages touching a downed node are silently dropped.
func (o *OrderedNetwork) Send(h *Handle, msgs ...*Message) {
	o.lock.Lock()
	defer o.lock.Unlock()

	now := h.Time()
	o.dropFired(now)

	for _, msg := range msgs {
		src, dst := msg.Source.Node, msg.Dest.Node
		if o.down[src] || o.down[dst] {
			continue
		}
		cost := rand.Float64()*o.MaxRandomLatency + msg.Size/o.Rate
		queue := o.stateFor(dst)
		arriveAt := math.Max(now, queue.clearAt) + cost
		timer := h.Schedule(msg.Dest.Incoming, msg, arriveAt-now)
		queue.clearAt = arriveAt
		queue.flows = append(queue.flows, timer)
		if src != dst {
			o.stateFor(src).flows = append(o.stateFor(src).flows, timer)
		}
	}
}

// SetDown flips a node's up/down status.
//
// Downing a node kills every in-flight message to or from
// it.
func (o *OrderedNetwork) SetDown(h *Handle, node *Node, down bool) {
	o.lock.Lock()
	defer o.lock.Unlock()

	o.down[node] = down
	if !down {
		return
	}

	o.dropFired(h.Time())
	s, ok := o.state[node]
	if !ok {
		return
	}
	killed := map[*Timer]bool{}
	for _, t := range s.flows {
		killed[t] = true
		h.Cancel(t)
	}
	delete(o.state, node)
	for _, other := range o.state {
		for i := 0; i < len(other.flows); i++ {
			if killed[other.flows[i]] {
				essentials.UnorderedDelete(&other.flows, i)
				i--
			}
		}
	}
}

func (o *OrderedNetwork) stateFor(node *Node) *orderedState {
	if s, ok := o.state[node]; ok {
		return s
	}
	s := &orderedState{}
	o.state[node] = s
	return s
}

// dropFired forgets timers that have already fired.
func (o *OrderedNetwork) dropFired(now float64) {
	for _, s := range o.state {
		for i := 0; i < len(s.flows); i++ {
			if s.flows[i].Time() < now {
				essentials.UnorderedDelete(&s.flows, i)
				i--
			}
		}
	}
}
