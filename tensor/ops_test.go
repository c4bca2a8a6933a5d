package tensor

import (
	"math"
	"math/rand"
	"testing"
)

func TestMatMulValues(t *testing.T) {
	a := FromRows([][]float64{{1, 2}, {3, 4}, {5, 6}})
	b := FromRows([][]float64{{7, 8, 9}, {10, 11, 12}})
	actual := MatMul(a, b)
	expected := FromRows([][]float64{{27, 30, 33}, {61, 68, 75}, {95, 106, 117}})
	if actual.Rows != 3 || actual.Cols != 3 {
		t.Fatalf("expected shape 3x3 but got %dx%d", actual.Rows, actual.Cols)
	}
	for i, x := range expected.Data {
		if actual.Data[i] != x {
			t.Errorf("component %d: expected %f but got %f", i, x, actual.Data[i])
		}
	}

	mustPanic(t, "mismatching inner dims", func() {
		MatMul(a, a)
	})
}

func TestMatMulGrad(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	a := RandnFrom(rng, 3, 4).TrackGrad()
	b := RandnFrom(rng, 4, 2).TrackGrad()
	checkGrad(t, func() *Tensor {
		return Sum(MatMul(a, b))
	}, a, b)
}

func TestTransposeGrad(t *testing.T) {
	rng := rand.New(rand.NewSource(2))
	a := RandnFrom(rng, 3, 4).TrackGrad()
	b := RandnFrom(rng, 2, 4).TrackGrad()
	checkGrad(t, func() *Tensor {
		return Sum(MatMul(a, Transpose(b)))
	}, a, b)
}

func TestAddScaleGrad(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	a := RandnFrom(rng, 2, 3).TrackGrad()
	b := RandnFrom(rng, 2, 3).TrackGrad()
	checkGrad(t, func() *Tensor {
		return Sum(Scale(Add(a, b), 0.5))
	}, a, b)

	mustPanic(t, "mismatching shapes", func() {
		Add(a, Randn(3, 2))
	})
}

func TestMulScalarGrad(t *testing.T) {
	rng := rand.New(rand.NewSource(4))
	a := RandnFrom(rng, 2, 3).TrackGrad()
	s := Scalar(1.7).TrackGrad()
	checkGrad(t, func() *Tensor {
		return Sum(MulScalar(a, s))
	}, a, s)

	mustPanic(t, "non-scalar multiplier", func() {
		MulScalar(a, Randn(1, 2))
	})
}

func TestMulScalarAliased(t *testing.T) {
	d := Scalar(1.5).TrackGrad()
	loss := MulScalar(d, d)
	if loss.Item() != 2.25 {
		t.Errorf("expected 2.25 but got %f", loss.Item())
	}
	loss.Backward()
	if d.Grad[0] != 3.0 {
		t.Errorf("expected gradient 3.0 but got %f", d.Grad[0])
	}
}

func TestExpGrad(t *testing.T) {
	rng := rand.New(rand.NewSource(5))
	a := RandnFrom(rng, 2, 2).TrackGrad()
	checkGrad(t, func() *Tensor {
		return Sum(Exp(a))
	}, a)
}

func TestConcatValues(t *testing.T) {
	a := FromRows([][]float64{{1, 2}})
	b := FromRows([][]float64{{3, 4}, {5, 6}})
	actual := Concat(a, b)
	if actual.Rows != 3 || actual.Cols != 2 {
		t.Fatalf("expected shape 3x2 but got %dx%d", actual.Rows, actual.Cols)
	}
	for i, x := range []float64{1, 2, 3, 4, 5, 6} {
		if actual.Data[i] != x {
			t.Errorf("component %d: expected %f but got %f", i, x, actual.Data[i])
		}
	}

	mustPanic(t, "mismatching column counts", func() {
		Concat(a, Randn(1, 3))
	})
	mustPanic(t, "no tensors", func() {
		Concat()
	})
}

func TestConcatMaskGrad(t *testing.T) {
	rng := rand.New(rand.NewSource(6))
	a := RandnFrom(rng, 2, 3).TrackGrad()
	b := RandnFrom(rng, 3, 3).TrackGrad()
	mask := []bool{true, false, true, true, false}
	checkGrad(t, func() *Tensor {
		return Sum(MaskRows(Concat(a, b), mask))
	}, a, b)
}

func TestMaskRowsValues(t *testing.T) {
	a := FromRows([][]float64{{1, 2}, {3, 4}, {5, 6}})
	actual := MaskRows(a, []bool{true, false, true})
	if actual.Rows != 2 || actual.Cols != 2 {
		t.Fatalf("expected shape 2x2 but got %dx%d", actual.Rows, actual.Cols)
	}
	for i, x := range []float64{1, 2, 5, 6} {
		if actual.Data[i] != x {
			t.Errorf("component %d: expected %f but got %f", i, x, actual.Data[i])
		}
	}

	mustPanic(t, "mismatching mask length", func() {
		MaskRows(a, []bool{true, false})
	})
}

func TestDiamondGrad(t *testing.T) {
	a := Randn(2, 2).TrackGrad()
	Sum(Add(a, a)).Backward()
	for i, g := range a.Grad {
		if g != 2.0 {
			t.Errorf("component %d: expected gradient 2.0 but got %f", i, g)
		}
	}
}

func TestUntrackedChildren(t *testing.T) {
	a := Randn(2, 2)
	b := Randn(2, 2).TrackGrad()
	out := Add(a, b)
	if !out.Tracks() {
		t.Fatal("output should track gradients")
	}
	Sum(out).Backward()
	if a.Grad != nil {
		t.Error("untracked input should have no gradient")
	}
	for i, g := range b.Grad {
		if g != 1.0 {
			t.Errorf("component %d: expected gradient 1.0 but got %f", i, g)
		}
	}

	if Add(a, Randn(2, 2)).Tracks() {
		t.Error("output of untracked inputs should not track gradients")
	}
}

// checkGrad compares analytic gradients of f against central finite
// differences with respect to every tensor in xs.
func checkGrad(t *testing.T, f func() *Tensor, xs ...*Tensor) {
	f().Backward()
	for xi, x := range xs {
		for i := range x.Data {
			orig := x.Data[i]
			x.Data[i] = orig + 1e-6
			plus := f().Item()
			x.Data[i] = orig - 1e-6
			minus := f().Item()
			x.Data[i] = orig
			numeric := (plus - minus) / 2e-6
			if math.Abs(numeric-x.Grad[i]) > 1e-4 {
				t.Errorf("input %d component %d: expected gradient %f but got %f",
					xi, i, numeric, x.Grad[i])
			}
		}
	}
}
