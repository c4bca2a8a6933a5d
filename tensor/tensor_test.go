package tensor

import (
	"testing"
)

func TestTensorAccessors(t *testing.T) {
	mat := FromRows([][]float64{{1, 2, 3}, {4, 5, 6}})
	if mat.Rows != 2 || mat.Cols != 3 {
		t.Errorf("expected shape 2x3 but got %dx%d", mat.Rows, mat.Cols)
	}
	if mat.At(1, 2) != 6 {
		t.Errorf("expected 6 but got %f", mat.At(1, 2))
	}
	mat.Set(0, 1, 7)
	if mat.At(0, 1) != 7 {
		t.Errorf("expected 7 but got %f", mat.At(0, 1))
	}
	if Scalar(3.5).Item() != 3.5 {
		t.Errorf("expected 3.5 but got %f", Scalar(3.5).Item())
	}

	mustPanic(t, "out of bounds read", func() {
		mat.At(2, 0)
	})
	mustPanic(t, "Item on non-scalar", func() {
		mat.Item()
	})
	mustPanic(t, "ragged rows", func() {
		FromRows([][]float64{{1, 2}, {3}})
	})
	mustPanic(t, "wrong data length", func() {
		FromData([]float64{1, 2, 3}, 2, 2)
	})
}

func TestTensorTrackGrad(t *testing.T) {
	mat := New(2, 2)
	if mat.Tracks() {
		t.Error("new tensor should not track gradients")
	}
	mat.TrackGrad()
	if !mat.Tracks() {
		t.Error("tensor should track gradients")
	}
	mat.Grad[3] = 1.5
	mat.TrackGrad()
	if mat.Grad[3] != 1.5 {
		t.Error("repeated TrackGrad should not reset the gradient")
	}
}

func TestTensorDetach(t *testing.T) {
	mat := Randn(2, 3).TrackGrad()
	detached := mat.Detach()
	if detached.Tracks() {
		t.Error("detached tensor should not track gradients")
	}
	detached.Set(1, 1, 123.0)
	if mat.At(1, 1) != 123.0 {
		t.Error("detached tensor should share data")
	}
}

func TestTensorClampInPlace(t *testing.T) {
	mat := FromData([]float64{-5, 0.5, 10}, 1, 3).TrackGrad()
	mat.Grad[1] = 2.5
	dataPtr := &mat.Data[0]

	mat.ClampInPlace(0, 4.6052)

	for i, expected := range []float64{0, 0.5, 4.6052} {
		if mat.Data[i] != expected {
			t.Errorf("component %d: expected %f but got %f", i, expected, mat.Data[i])
		}
	}
	if mat.Grad[1] != 2.5 {
		t.Error("clamp should not touch the gradient")
	}
	if dataPtr != &mat.Data[0] {
		t.Error("clamp should mutate the data in place")
	}
}

func TestTensorZeroGrad(t *testing.T) {
	mat := Scalar(2.0).TrackGrad()
	loss := MulScalar(mat, mat)
	loss.Backward()
	if mat.Grad[0] != 4.0 {
		t.Errorf("expected gradient 4.0 but got %f", mat.Grad[0])
	}
	mat.ZeroGrad()
	if mat.Grad[0] != 0 {
		t.Errorf("expected gradient 0 but got %f", mat.Grad[0])
	}
}

func TestBackwardPanics(t *testing.T) {
	mustPanic(t, "backward on non-scalar", func() {
		Randn(2, 2).TrackGrad().Backward()
	})
	mustPanic(t, "backward on untracked tensor", func() {
		Scalar(1.0).Backward()
	})
}

func mustPanic(t *testing.T, name string, f func()) {
	defer func() {
		if recover() == nil {
			t.Errorf("%s: expected panic", name)
		}
	}()
	f()
}
