package simulator

import (
	"math"
	"sync"
)

// A Fabric decides how fast data flows between nodes when
// several transfers compete for the same links.
type Fabric interface {
	// AssignRates rewrites a connectivity matrix in
	// place.
	//
	// On entry, mat holds a 1 for every pair of nodes
	// with traffic between them and a 0 elsewhere. On
	// return, every entry holds the data rate granted to
	// that pair.
	AssignRates(mat *ConnMat)
}

// A FairDropFabric spreads each node's upload rate evenly
// across the peers it is sending to, then drops incoming
// traffic uniformly wherever a receiver is oversubscribed.
type FairDropFabric struct {
	SendRates []float64
	RecvRates []float64
}

// NewFairDropFabric creates a FairDropFabric where every
// node uploads and downloads at the same fixed rate.
func NewFairDropFabric(numNodes int, rate float64) *FairDropFabric {
	rates := make([]float64, numNodes)
	for i := range rates {
		rates[i] = rate
	}
	return &FairDropFabric{
		SendRates: rates,
		RecvRates: rates,
	}
}

// NumNodes gets the number of nodes the fabric serves.
func (f *FairDropFabric) NumNodes() int {
	return len(f.SendRates)
}

// AssignRates grants every active pair its fair share.
func (f *FairDropFabric) AssignRates(mat *ConnMat) {
	if mat.NumNodes() != f.NumNodes() {
		panic("mismatching number of nodes")
	}
	for node := 0; node < f.NumNodes(); node++ {
		if outgoing := mat.SumSource(node); outgoing > 0 {
			mat.ScaleSource(node, f.SendRates[node]/outgoing)
		}
	}
	for node := 0; node < f.NumNodes(); node++ {
		if incoming := mat.SumDest(node); incoming > f.RecvRates[node] {
			mat.ScaleDest(node, f.RecvRates[node]/incoming)
		}
	}
}

// A FabricNetwork delivers messages at whatever rates its
// Fabric grants, re-deriving the delivery timeline every
// time the set of in-flight messages changes.
type FabricNetwork struct {
	lock sync.Mutex

	fabric  Fabric
	index   map[*Node]int
	latency float64

	horizon []*fabricStep
}

// NewFabricNetwork creates a FabricNetwork.
//
// Every delivery pays a fixed latency on top of its
// bandwidth cost. The latency period occupies the pair's
// granted rate like payload does, which can overstate
// congestion between many small messages.
func NewFabricNetwork(fabric Fabric, nodes []*Node, latency float64) *FabricNetwork {
	index := make(map[*Node]int, len(nodes))
	for i, node := range nodes {
		index[node] = i
	}
	return &FabricNetwork{
		fabric:  fabric,
		index:   index,
		latency: latency,
	}
}

// Send starts delivering messages. This may slow down
// transfers that are already in flight.
func (f *FabricNetwork) Send(h *Handle, msgs ...*Message) {
	f.lock.Lock()
	defer f.lock.Unlock()

	flights := f.interrupt(h)
	for _, msg := range msgs {
		flights = append(flights, &flight{
			msg:   msg,
			lag:   f.latency,
			bytes: msg.Size,
		})
	}
	f.reschedule(h, flights)
}

// interrupt tears down the planned timeline and returns
// every live flight advanced to the current time.
func (f *FabricNetwork) interrupt(h *Handle) []*flight {
	now := h.Time()
	var live []*flight
	for _, step := range f.horizon {
		if now >= step.until {
			// Fully in the past; its timers have fired.
			continue
		}
		if now >= step.from {
			for _, fl := range step.flights {
				live = append(live, fl.after(now-step.from))
			}
		}
		for _, timer := range step.deliveries {
			h.Cancel(timer)
		}
	}
	f.horizon = nil
	return live
}

// reschedule plans the delivery timeline for a set of
// flights and schedules a timer for every delivery.
func (f *FabricNetwork) reschedule(h *Handle, flights []*flight) {
	start := h.Time()
	for len(flights) > 0 {
		f.grantRates(flights)

		dt := flights[0].timeLeft()
		for _, fl := range flights[1:] {
			if left := fl.timeLeft(); left < dt {
				dt = left
			}
		}

		var deliveries []*Timer
		var rest []*flight
		for _, fl := range flights {
			if fl.timeLeft() == dt {
				deliveries = append(deliveries,
					h.Schedule(fl.msg.Dest.Incoming, fl.msg, start-h.Time()+dt))
			} else {
				rest = append(rest, fl)
			}
		}

		end := deliveries[0].Time()
		f.horizon = append(f.horizon, &fabricStep{
			from:       start,
			until:      end,
			flights:    flights,
			deliveries: deliveries,
		})

		for i, fl := range rest {
			rest[i] = fl.after(end - start)
		}
		flights = rest
		start = end
	}
}

// grantRates asks the fabric for every flight's rate,
// splitting a pair's grant across the flights sharing it.
func (f *FabricNetwork) grantRates(flights []*flight) {
	mat := NewConnMat(len(f.index))
	count := map[[2]int]int{}
	for _, fl := range flights {
		pair := f.pairOf(fl)
		if count[pair] == 0 {
			mat.Set(pair[0], pair[1], 1)
		}
		count[pair]++
	}
	f.fabric.AssignRates(mat)
	for _, fl := range flights {
		pair := f.pairOf(fl)
		fl.rate = mat.Get(pair[0], pair[1]) / float64(count[pair])
	}
}

func (f *FabricNetwork) pairOf(fl *flight) [2]int {
	return [2]int{
		f.index[fl.msg.Source.Node],
		f.index[fl.msg.Dest.Node],
	}
}

// A flight is one message working its way through the
// fabric.
type flight struct {
	msg   *Message
	lag   float64 // latency not yet paid
	bytes float64 // payload not yet transmitted
	rate  float64
}

// timeLeft returns how long the flight needs at its
// current rate.
func (fl *flight) timeLeft() float64 {
	return math.Max(0, fl.lag+fl.bytes/fl.rate)
}

// after returns a copy of the flight dt further along.
func (fl *flight) after(dt float64) *flight {
	next := *fl
	if dt < next.lag {
		next.lag -= dt
		return &next
	}
	dt -= next.lag
	next.lag = 0
	next.bytes -= next.rate * dt
	return &next
}

// A fabricStep is one span of the planned timeline during
// which rates stay constant. flights holds every flight
// live at the start of the span; at least one of them is
// delivered when the span ends.
type fabricStep struct {
	from       float64
	until      float64
	flights    []*flight
	deliveries []*Timer
}
