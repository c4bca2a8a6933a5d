package shard

import (
	"bytes"
	"encoding/binary"

	"github.com/unixpickle/essentials"
)

// Consistent implements consistent hashing.
type Consistent struct {
	points    []*ringPoint
	numPoints int
}

// NewConsistent creates a consistent hash ring that
// generates the given number of points per worker.
func NewConsistent(numPoints int) *Consistent {
	return &Consistent{numPoints: numPoints}
}

// AddWorker adds a worker to the pool.
func (c *Consistent) AddWorker(rank int, id Hasher) {
	data := id.Hash()
	for i := 0; i < c.numPoints; i++ {
		var buf bytes.Buffer
		binary.Write(&buf, binary.LittleEndian, uint32(i))
		buf.Write(data)
		pos := FloatHash(buf.Bytes())
		c.points = append(c.points, &ringPoint{Rank: rank, ID: id, Position: pos})
	}
	essentials.VoodooSort(c.points, func(i, j int) bool {
		return c.points[i].Position < c.points[j].Position
	})
}

// RemoveWorker removes a worker from the pool.
func (c *Consistent) RemoveWorker(rank int) {
	var newPoints []*ringPoint
	for _, point := range c.points {
		if point.Rank != rank {
			newPoints = append(newPoints, point)
		}
	}
	c.points = newPoints
}

// Workers returns the ranks of all workers in the pool.
func (c *Consistent) Workers() []int {
	seen := map[int]bool{}
	var res []int
	for _, point := range c.points {
		if !seen[point.Rank] {
			res = append(res, point.Rank)
		}
		seen[point.Rank] = true
	}
	return res
}

// Assign returns the worker responsible for a key.
func (c *Consistent) Assign(key Hasher) []int {
	if len(c.points) == 0 {
		return nil
	}
	pos := FloatHash(key.Hash())
	for _, point := range c.points {
		if point.Position > pos {
			return []int{point.Rank}
		}
	}
	return []int{c.points[0].Rank}
}

// A ringPoint is one point around a circle with a
// circumference of one.
type ringPoint struct {
	Rank int
	ID   Hasher

	// In the range [0, 1.0).
	Position float64
}
