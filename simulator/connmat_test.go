package simulator

import "testing"

func TestConnMatEntries(t *testing.T) {
	mat := NewConnMat(5)
	mat.Set(0, 3, 2.5)
	mat.Set(0, 1, 1.5)
	mat.Set(4, 0, 3.0)

	for _, pair := range [][3]float64{
		{0, 3, 2.5},
		{0, 1, 1.5},
		{4, 0, 3.0},
		{0, 0, 0.0},
		{3, 0, 0.0},
		{1, 4, 0.0},
	} {
		src, dst := int(pair[0]), int(pair[1])
		if res := mat.Get(src, dst); res != pair[2] {
			t.Errorf("entry (%d, %d) should be %f but got %f", src, dst, pair[2], res)
		}
	}

	mat.Set(0, 3, 4.0)
	if res := mat.Get(0, 3); res != 4.0 {
		t.Errorf("overwritten entry should be 4.0 but got %f", res)
	}

	mat.Set(0, 1, 0.0)
	if res := mat.Get(0, 1); res != 0.0 {
		t.Errorf("cleared entry should be 0.0 but got %f", res)
	}
	if res := mat.Get(0, 3); res != 4.0 {
		t.Errorf("neighboring entry should survive a clear but got %f", res)
	}
}

func TestConnMatSums(t *testing.T) {
	// A ring with one extra flow into node 0.
	mat := NewConnMat(4)
	for src := 0; src < 4; src++ {
		mat.Set(src, (src+1)%4, float64(src+1))
	}
	mat.Set(2, 0, 0.5)

	for src, expected := range []float64{1.0, 2.0, 3.0 + 0.5, 4.0} {
		if res := mat.SumSource(src); res != expected {
			t.Errorf("source %d should total %f but got %f", src, expected, res)
		}
	}
	for dst, expected := range []float64{4.0 + 0.5, 1.0, 2.0, 3.0} {
		if res := mat.SumDest(dst); res != expected {
			t.Errorf("dest %d should total %f but got %f", dst, expected, res)
		}
	}
}

func TestConnMatScales(t *testing.T) {
	mat := NewConnMat(4)
	mat.Set(1, 0, 3.0)
	mat.Set(1, 2, 5.0)
	mat.Set(0, 2, 2.0)
	mat.Set(3, 2, 4.0)

	mat.ScaleSource(1, 0.5)
	for dst, expected := range []float64{1.5, 0.0, 2.5, 0.0} {
		if res := mat.Get(1, dst); res != expected {
			t.Errorf("entry (1, %d) should be %f but got %f", dst, expected, res)
		}
	}

	mat.ScaleDest(2, 2.0)
	for src, expected := range []float64{4.0, 5.0, 0.0, 8.0} {
		if res := mat.Get(src, 2); res != expected {
			t.Errorf("entry (%d, 2) should be %f but got %f", src, expected, res)
		}
	}
	if res := mat.Get(1, 0); res != 1.5 {
		t.Errorf("entry (1, 0) should be 1.5 but got %f", res)
	}
}

func TestConnMatBounds(t *testing.T) {
	mat := NewConnMat(3)
	for name, f := range map[string]func(){
		"GetNegative":   func() { mat.Get(-1, 0) },
		"GetHigh":       func() { mat.Get(0, 3) },
		"SetHigh":       func() { mat.Set(3, 0, 1.0) },
		"SumDestHigh":   func() { mat.SumDest(7) },
		"ScaleNegative": func() { mat.ScaleSource(-2, 1.0) },
	} {
		func() {
			defer func() {
				if recover() == nil {
					t.Errorf("%s: expected panic", name)
				}
			}()
			f()
		}()
	}
}
