// Package tensor implements small dense matrices with
// reverse-mode automatic differentiation.
package tensor

import (
	"math/rand"
)

// A Tensor is a 2-D matrix of float64 values which may
// track gradients through the operations that produced it.
//
// A Tensor tracks gradients if and only if Grad is
// non-nil. Operations produce tracking outputs whenever
// any of their inputs track.
type Tensor struct {
	Rows int
	Cols int

	// Data is the row-major contents.
	Data []float64

	// Grad accumulates the gradient of some scalar with
	// respect to Data. It is nil for tensors that do not
	// track gradients.
	Grad []float64

	children []*Tensor
	backward func()
}

// New creates an all-zero tensor.
func New(rows, cols int) *Tensor {
	return &Tensor{
		Rows: rows,
		Cols: cols,
		Data: make([]float64, rows*cols),
	}
}

// FromData creates a tensor wrapping a row-major slice.
//
// The tensor takes ownership of the slice.
func FromData(data []float64, rows, cols int) *Tensor {
	if len(data) != rows*cols {
		panic("mismatching dimensions")
	}
	return &Tensor{Rows: rows, Cols: cols, Data: data}
}

// FromRows creates a tensor from a slice of equal-length
// rows.
func FromRows(rows [][]float64) *Tensor {
	if len(rows) == 0 {
		panic("empty tensor")
	}
	cols := len(rows[0])
	data := make([]float64, 0, len(rows)*cols)
	for _, row := range rows {
		if len(row) != cols {
			panic("mismatching lengths")
		}
		data = append(data, row...)
	}
	return FromData(data, len(rows), cols)
}

// Scalar creates a 1x1 tensor holding a single value.
func Scalar(value float64) *Tensor {
	return FromData([]float64{value}, 1, 1)
}

// Randn creates a tensor of standard normal values.
func Randn(rows, cols int) *Tensor {
	res := New(rows, cols)
	for i := range res.Data {
		res.Data[i] = rand.NormFloat64()
	}
	return res
}

// RandnFrom is like Randn, but it draws values from a
// specific random source.
func RandnFrom(rng *rand.Rand, rows, cols int) *Tensor {
	res := New(rows, cols)
	for i := range res.Data {
		res.Data[i] = rng.NormFloat64()
	}
	return res
}

// NewOp creates a tensor that is the output of a custom
// operation.
//
// If any child tracks gradients, the result tracks
// gradients, and backward will be called during the
// backward pass with the result (and its accumulated
// gradient) as its argument. Otherwise backward is
// ignored and the result is a plain constant.
func NewOp(data []float64, rows, cols int, children []*Tensor,
	backward func(out *Tensor)) *Tensor {
	out := FromData(data, rows, cols)
	for _, c := range children {
		if c.Tracks() {
			out.Grad = make([]float64, len(data))
			out.children = children
			out.backward = func() { backward(out) }
			break
		}
	}
	return out
}

// At reads the entry at a row and column.
func (t *Tensor) At(i, j int) float64 {
	if i < 0 || j < 0 || i >= t.Rows || j >= t.Cols {
		panic("index out of bounds")
	}
	return t.Data[i*t.Cols+j]
}

// Set writes the entry at a row and column.
func (t *Tensor) Set(i, j int, value float64) {
	if i < 0 || j < 0 || i >= t.Rows || j >= t.Cols {
		panic("index out of bounds")
	}
	t.Data[i*t.Cols+j] = value
}

// Item reads the value of a 1x1 tensor.
func (t *Tensor) Item() float64 {
	if t.Rows != 1 || t.Cols != 1 {
		panic("tensor is not a scalar")
	}
	return t.Data[0]
}

// TrackGrad marks the tensor as a leaf that accumulates
// gradients, and returns the tensor for convenience.
//
// It has no effect on a tensor that already tracks.
func (t *Tensor) TrackGrad() *Tensor {
	if t.Grad == nil {
		t.Grad = make([]float64, len(t.Data))
	}
	return t
}

// Tracks reports whether the tensor tracks gradients.
func (t *Tensor) Tracks() bool {
	return t.Grad != nil
}

// Detach returns a view of the tensor that does not track
// gradients. The result shares the tensor's data.
func (t *Tensor) Detach() *Tensor {
	return &Tensor{Rows: t.Rows, Cols: t.Cols, Data: t.Data}
}

// ZeroGrad resets the accumulated gradient.
func (t *Tensor) ZeroGrad() {
	for i := range t.Grad {
		t.Grad[i] = 0
	}
}

// ClampInPlace limits every entry to the range [min, max],
// mutating the tensor's data directly rather than creating
// a new tensor, so references to the tensor stay valid.
func (t *Tensor) ClampInPlace(min, max float64) {
	for i, x := range t.Data {
		if x < min {
			t.Data[i] = min
		} else if x > max {
			t.Data[i] = max
		}
	}
}

// Backward computes the gradient of a scalar tensor with
// respect to every tracked tensor that produced it, and
// adds the gradients into the tensors' Grad slices.
//
// The graph is walked depth-first in construction order,
// so identical graphs run their backward hooks in an
// identical order.
func (t *Tensor) Backward() {
	if t.Rows != 1 || t.Cols != 1 {
		panic("tensor is not a scalar")
	}
	if !t.Tracks() {
		panic("tensor does not track gradients")
	}
	t.Grad[0] = 1

	var order []*Tensor
	visited := map[*Tensor]bool{}
	var visit func(n *Tensor)
	visit = func(n *Tensor) {
		if visited[n] {
			return
		}
		visited[n] = true
		for _, c := range n.children {
			if c.Tracks() {
				visit(c)
			}
		}
		order = append(order, n)
	}
	visit(t)

	for i := len(order) - 1; i >= 0; i-- {
		if order[i].backward != nil {
			order[i].backward()
		}
	}
}
