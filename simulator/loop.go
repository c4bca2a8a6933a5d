package simulator

import (
	"fmt"
	"math"
	"math/rand"
	"sync"

	"github.com/unixpickle/essentials"
)

// An EventStream carries messages between Goroutines on
// one EventLoop. Messages with no receiver are queued on
// the stream until somebody polls for them.
type EventStream struct {
	loop   *EventLoop
	queued []interface{}
}

// An Event is one message delivered from an EventStream.
type Event struct {
	Message interface{}
	Stream  *EventStream
}

// A Timer is one scheduled future delivery.
type Timer struct {
	when  float64
	event *Event
}

// Time returns the virtual time at which the timer fires.
//
// The timer cannot have fired while the loop's time is
// still below this value.
func (t *Timer) Time() float64 {
	return t.when
}

// A Handle is one Goroutine's connection to an EventLoop.
// Every Goroutine gets its own Handle; sharing one between
// Goroutines is not allowed.
type Handle struct {
	*EventLoop
}

// A pollState is one parked Poll call, waiting for a
// message on any of its streams.
type pollState struct {
	handle  *Handle
	streams []*EventStream
	deliver chan *Event
}

// An EventLoop owns the virtual clock of one simulation.
//
// Goroutines enter the loop through Go and talk to it
// through their Handles. The clock only moves when every
// live Goroutine is parked in Poll, so a Goroutine may
// spend any amount of real time between events without
// skewing the simulation.
type EventLoop struct {
	lock    sync.Mutex
	clock   float64
	pending []*Timer
	parked  []*pollState
	live    int
	active  bool

	// stir wakes Run to re-examine the state. It holds at
	// most one token; kicks coalesce.
	stir chan struct{}
}

// NewEventLoop creates an EventLoop with its clock at 0.
func NewEventLoop() *EventLoop {
	return &EventLoop{stir: make(chan struct{}, 1)}
}

// Stream creates an EventStream tied to this loop.
func (e *EventLoop) Stream() *EventStream {
	return &EventStream{loop: e}
}

// Time returns the current virtual time.
func (e *EventLoop) Time() float64 {
	e.lock.Lock()
	defer e.lock.Unlock()
	return e.clock
}

// Go starts f in its own Goroutine with a fresh Handle.
//
// The loop tracks the Goroutine until f returns.
func (e *EventLoop) Go(f func(h *Handle)) {
	h := &Handle{EventLoop: e}
	e.lock.Lock()
	e.live++
	e.lock.Unlock()
	go func() {
		f(h)
		e.lock.Lock()
		e.live--
		e.lock.Unlock()
		e.kick()
	}()
}

// kick nudges Run without blocking.
func (e *EventLoop) kick() {
	select {
	case e.stir <- struct{}{}:
	default:
	}
}

// Poll parks the Goroutine until a message arrives on one
// of the streams. Messages already queued on an earlier
// stream win over later ones.
func (h *Handle) Poll(streams ...*EventStream) *Event {
	e := h.EventLoop
	e.lock.Lock()
	for _, stream := range streams {
		if len(stream.queued) > 0 {
			msg := stream.queued[0]
			essentials.OrderedDelete(&stream.queued, 0)
			e.lock.Unlock()
			return &Event{Message: msg, Stream: stream}
		}
	}
	for _, p := range e.parked {
		if p.handle == h {
			e.lock.Unlock()
			panic("Handle is polling from two Goroutines")
		}
	}
	wait := &pollState{
		handle:  h,
		streams: streams,
		deliver: make(chan *Event, 1),
	}
	e.parked = append(e.parked, wait)
	e.lock.Unlock()
	e.kick()
	return <-wait.deliver
}

// Schedule queues a message for delivery on a stream after
// delay units of virtual time, returning the Timer that
// will deliver it.
func (h *Handle) Schedule(stream *EventStream, msg interface{}, delay float64) *Timer {
	if stream.loop != h.EventLoop {
		panic("EventStream belongs to a different EventLoop")
	}
	e := h.EventLoop
	e.lock.Lock()
	defer e.lock.Unlock()
	timer := &Timer{
		when:  e.clock + delay,
		event: &Event{Message: msg, Stream: stream},
	}
	if math.IsNaN(timer.when) || math.IsInf(timer.when, 0) {
		panic(fmt.Sprintf("non-finite deadline: %f", timer.when))
	}
	e.pending = append(e.pending, timer)
	return timer
}

// Cancel discards a scheduled timer.
//
// Canceling a timer that already fired has no effect.
func (h *Handle) Cancel(t *Timer) {
	e := h.EventLoop
	e.lock.Lock()
	defer e.lock.Unlock()
	for i, timer := range e.pending {
		if timer == t {
			essentials.UnorderedDelete(&e.pending, i)
			return
		}
	}
}

// Sleep parks the Goroutine for delay units of virtual
// time.
func (h *Handle) Sleep(delay float64) {
	stream := h.Stream()
	h.Schedule(stream, nil, delay)
	h.Poll(stream)
}

// Run drives the simulation until every Goroutine started
// with Go has finished.
//
// Run returns an error if the Goroutines deadlock. Only
// one Run may be active at a time.
func (e *EventLoop) Run() error {
	e.lock.Lock()
	if e.active {
		e.lock.Unlock()
		panic("EventLoop is already running")
	}
	e.active = true
	e.lock.Unlock()

	defer func() {
		e.lock.Lock()
		e.active = false
		e.lock.Unlock()
	}()

	for range e.stir {
		e.lock.Lock()
		if e.live == 0 {
			e.lock.Unlock()
			return nil
		}
		if len(e.parked) < e.live {
			// Somebody is still computing in real time.
			e.lock.Unlock()
			continue
		}
		err := e.step()
		e.lock.Unlock()
		if err != nil {
			return err
		}
	}
	panic("unreachable")
}

// MustRun is Run, except that a deadlock panics.
func (e *EventLoop) MustRun() {
	if err := e.Run(); err != nil {
		panic(err)
	}
}

// step fires timers until one of them wakes a parked
// Goroutine. It reports a deadlock when no timer can.
//
// The caller must hold the lock with every Goroutine
// parked.
func (e *EventLoop) step() error {
	for len(e.pending) > 0 {
		idx := e.nextTimer()
		timer := e.pending[idx]
		essentials.UnorderedDelete(&e.pending, idx)
		e.clock = math.Max(e.clock, timer.when)
		if e.handOff(timer.event) {
			return nil
		}
	}
	return fmt.Errorf("deadlock: all %d Goroutines are parked with no timers pending",
		e.live)
}

// nextTimer picks the due timer, choosing uniformly among
// deadline ties so simulations cannot rely on tie order.
func (e *EventLoop) nextTimer() int {
	soonest := e.pending[0].when
	for _, t := range e.pending[1:] {
		if t.when < soonest {
			soonest = t.when
		}
	}
	var ties []int
	for i, t := range e.pending {
		if t.when == soonest {
			ties = append(ties, i)
		}
	}
	return ties[rand.Intn(len(ties))]
}

// handOff delivers an event to one parked Goroutine chosen
// uniformly among those polling the stream, or queues the
// event on its stream when nobody is.
func (e *EventLoop) handOff(event *Event) bool {
	var candidates []int
	for i, p := range e.parked {
		for _, stream := range p.streams {
			if stream == event.Stream {
				candidates = append(candidates, i)
				break
			}
		}
	}
	if len(candidates) == 0 {
		stream := event.Stream
		stream.queued = append(stream.queued, event.Message)
		return false
	}
	idx := candidates[rand.Intn(len(candidates))]
	p := e.parked[idx]
	essentials.UnorderedDelete(&e.parked, idx)
	p.deliver <- event
	return true
}
