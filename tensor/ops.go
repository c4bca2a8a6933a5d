package tensor

import "math"

// MatMul computes the matrix product of two tensors.
func MatMul(a, b *Tensor) *Tensor {
	if a.Cols != b.Rows {
		panic("mismatching dimensions")
	}
	data := make([]float64, a.Rows*b.Cols)
	for i := 0; i < a.Rows; i++ {
		for k := 0; k < a.Cols; k++ {
			x := a.Data[i*a.Cols+k]
			for j := 0; j < b.Cols; j++ {
				data[i*b.Cols+j] += x * b.Data[k*b.Cols+j]
			}
		}
	}
	return NewOp(data, a.Rows, b.Cols, []*Tensor{a, b}, func(out *Tensor) {
		if a.Tracks() {
			for i := 0; i < a.Rows; i++ {
				for j := 0; j < b.Cols; j++ {
					g := out.Grad[i*b.Cols+j]
					for k := 0; k < a.Cols; k++ {
						a.Grad[i*a.Cols+k] += g * b.Data[k*b.Cols+j]
					}
				}
			}
		}
		if b.Tracks() {
			for i := 0; i < a.Rows; i++ {
				for k := 0; k < a.Cols; k++ {
					x := a.Data[i*a.Cols+k]
					for j := 0; j < b.Cols; j++ {
						b.Grad[k*b.Cols+j] += x * out.Grad[i*b.Cols+j]
					}
				}
			}
		}
	})
}

// Transpose flips a tensor over its diagonal.
func Transpose(a *Tensor) *Tensor {
	data := make([]float64, len(a.Data))
	for i := 0; i < a.Rows; i++ {
		for j := 0; j < a.Cols; j++ {
			data[j*a.Rows+i] = a.Data[i*a.Cols+j]
		}
	}
	return NewOp(data, a.Cols, a.Rows, []*Tensor{a}, func(out *Tensor) {
		for i := 0; i < a.Rows; i++ {
			for j := 0; j < a.Cols; j++ {
				a.Grad[i*a.Cols+j] += out.Grad[j*a.Rows+i]
			}
		}
	})
}

// Add computes the entry-wise sum of two tensors.
func Add(a, b *Tensor) *Tensor {
	if a.Rows != b.Rows || a.Cols != b.Cols {
		panic("mismatching dimensions")
	}
	data := make([]float64, len(a.Data))
	for i, x := range a.Data {
		data[i] = x + b.Data[i]
	}
	return NewOp(data, a.Rows, a.Cols, []*Tensor{a, b}, func(out *Tensor) {
		if a.Tracks() {
			for i, g := range out.Grad {
				a.Grad[i] += g
			}
		}
		if b.Tracks() {
			for i, g := range out.Grad {
				b.Grad[i] += g
			}
		}
	})
}

// Scale multiplies every entry by a constant.
func Scale(a *Tensor, s float64) *Tensor {
	data := make([]float64, len(a.Data))
	for i, x := range a.Data {
		data[i] = x * s
	}
	return NewOp(data, a.Rows, a.Cols, []*Tensor{a}, func(out *Tensor) {
		for i, g := range out.Grad {
			a.Grad[i] += g * s
		}
	})
}

// MulScalar multiplies every entry of a tensor by a 1x1
// tensor, keeping the scale's gradient flowing.
func MulScalar(a, s *Tensor) *Tensor {
	if s.Rows != 1 || s.Cols != 1 {
		panic("tensor is not a scalar")
	}
	sv := s.Data[0]
	data := make([]float64, len(a.Data))
	for i, x := range a.Data {
		data[i] = x * sv
	}
	return NewOp(data, a.Rows, a.Cols, []*Tensor{a, s}, func(out *Tensor) {
		if a.Tracks() {
			for i, g := range out.Grad {
				a.Grad[i] += g * sv
			}
		}
		if s.Tracks() {
			var sum float64
			for i, g := range out.Grad {
				sum += g * a.Data[i]
			}
			s.Grad[0] += sum
		}
	})
}

// Exp exponentiates every entry.
func Exp(a *Tensor) *Tensor {
	data := make([]float64, len(a.Data))
	for i, x := range a.Data {
		data[i] = math.Exp(x)
	}
	return NewOp(data, a.Rows, a.Cols, []*Tensor{a}, func(out *Tensor) {
		for i, g := range out.Grad {
			a.Grad[i] += g * out.Data[i]
		}
	})
}

// Sum adds up every entry into a scalar.
func Sum(a *Tensor) *Tensor {
	var total float64
	for _, x := range a.Data {
		total += x
	}
	return NewOp([]float64{total}, 1, 1, []*Tensor{a}, func(out *Tensor) {
		g := out.Grad[0]
		for i := range a.Grad {
			a.Grad[i] += g
		}
	})
}

// Concat stacks tensors with equal column counts on top of
// each other in argument order.
func Concat(ts ...*Tensor) *Tensor {
	if len(ts) == 0 {
		panic("empty tensor")
	}
	cols := ts[0].Cols
	rows := 0
	for _, t := range ts {
		if t.Cols != cols {
			panic("mismatching dimensions")
		}
		rows += t.Rows
	}
	data := make([]float64, 0, rows*cols)
	for _, t := range ts {
		data = append(data, t.Data...)
	}
	return NewOp(data, rows, cols, ts, func(out *Tensor) {
		offset := 0
		for _, t := range ts {
			if t.Tracks() {
				for i := range t.Grad {
					t.Grad[i] += out.Grad[offset+i]
				}
			}
			offset += len(t.Data)
		}
	})
}

// MaskRows keeps the rows of a tensor where mask is true,
// preserving their relative order.
func MaskRows(a *Tensor, mask []bool) *Tensor {
	if len(mask) != a.Rows {
		panic("mismatching lengths")
	}
	var kept []int
	for i, keep := range mask {
		if keep {
			kept = append(kept, i)
		}
	}
	data := make([]float64, 0, len(kept)*a.Cols)
	for _, i := range kept {
		data = append(data, a.Data[i*a.Cols:(i+1)*a.Cols]...)
	}
	return NewOp(data, len(kept), a.Cols, []*Tensor{a}, func(out *Tensor) {
		for outRow, inRow := range kept {
			for j := 0; j < a.Cols; j++ {
				a.Grad[inRow*a.Cols+j] += out.Grad[outRow*a.Cols+j]
			}
		}
	})
}
