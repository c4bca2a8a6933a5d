package tensor

// SGD implements plain stochastic gradient descent over
// tracked tensors.
type SGD struct {
	LR float64
}

// Step moves each parameter against its accumulated
// gradient.
func (s SGD) Step(params ...*Tensor) {
	for _, p := range params {
		if !p.Tracks() {
			panic("tensor does not track gradients")
		}
		for i, g := range p.Grad {
			p.Data[i] -= s.LR * g
		}
	}
}
