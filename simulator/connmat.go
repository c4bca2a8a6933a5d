package simulator

import (
	"sort"

	"github.com/unixpickle/essentials"
)

// A ConnMat holds the transfer rate between every pair of
// nodes, indexed by source and destination.
//
// Only nonzero entries are stored; each source's entries
// are kept sorted by destination.
type ConnMat struct {
	numNodes int
	rows     [][]connEntry
}

type connEntry struct {
	dst  int
	rate float64
}

// NewConnMat creates a ConnMat with no traffic.
func NewConnMat(numNodes int) *ConnMat {
	return &ConnMat{
		numNodes: numNodes,
		rows:     make([][]connEntry, numNodes),
	}
}

// NumNodes returns the number of nodes.
func (c *ConnMat) NumNodes() int {
	return c.numNodes
}

// Get reads the rate from src to dst.
func (c *ConnMat) Get(src, dst int) float64 {
	c.check(src)
	c.check(dst)
	if i, ok := rowFind(c.rows[src], dst); ok {
		return c.rows[src][i].rate
	}
	return 0
}

// Set writes the rate from src to dst. A zero rate removes
// the entry.
func (c *ConnMat) Set(src, dst int, rate float64) {
	c.check(src)
	c.check(dst)
	row := c.rows[src]
	i, ok := rowFind(row, dst)
	if ok {
		if rate == 0 {
			essentials.OrderedDelete(&c.rows[src], i)
		} else {
			row[i].rate = rate
		}
		return
	}
	if rate == 0 {
		return
	}
	row = append(row, connEntry{})
	copy(row[i+1:], row[i:])
	row[i] = connEntry{dst: dst, rate: rate}
	c.rows[src] = row
}

// SumSource totals the traffic leaving src.
func (c *ConnMat) SumSource(src int) float64 {
	c.check(src)
	var total float64
	for _, e := range c.rows[src] {
		total += e.rate
	}
	return total
}

// SumDest totals the traffic arriving at dst.
func (c *ConnMat) SumDest(dst int) float64 {
	c.check(dst)
	var total float64
	for _, row := range c.rows {
		if i, ok := rowFind(row, dst); ok {
			total += row[i].rate
		}
	}
	return total
}

// ScaleSource multiplies all the traffic leaving src.
func (c *ConnMat) ScaleSource(src int, scale float64) {
	c.check(src)
	for i := range c.rows[src] {
		c.rows[src][i].rate *= scale
	}
}

// ScaleDest multiplies all the traffic arriving at dst.
func (c *ConnMat) ScaleDest(dst int, scale float64) {
	c.check(dst)
	for _, row := range c.rows {
		if i, ok := rowFind(row, dst); ok {
			row[i].rate *= scale
		}
	}
}

func (c *ConnMat) check(node int) {
	if node < 0 || node >= c.numNodes {
		panic("index out of bounds")
	}
}

func rowFind(row []connEntry, dst int) (int, bool) {
	i := sort.Search(len(row), func(k int) bool {
		return row[k].dst >= dst
	})
	return i, i < len(row) && row[i].dst == dst
}
