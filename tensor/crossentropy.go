package tensor

import "math"

// CrossEntropy computes the mean cross-entropy of a batch
// of logit rows against integer target classes.
//
// The result is a scalar: the mean over rows of the
// negative log-softmax at the row's target index.
func CrossEntropy(logits *Tensor, targets []int) *Tensor {
	if len(targets) != logits.Rows {
		panic("mismatching lengths")
	}
	for _, label := range targets {
		if label < 0 || label >= logits.Cols {
			panic("label out of range")
		}
	}

	var total float64
	for i, label := range targets {
		row := logits.Data[i*logits.Cols : (i+1)*logits.Cols]
		total += logSumExp(row) - row[label]
	}
	mean := total / float64(logits.Rows)

	return NewOp([]float64{mean}, 1, 1, []*Tensor{logits}, func(out *Tensor) {
		g := out.Grad[0] / float64(logits.Rows)
		for i, label := range targets {
			row := logits.Data[i*logits.Cols : (i+1)*logits.Cols]
			grad := logits.Grad[i*logits.Cols : (i+1)*logits.Cols]

			maxVal := row[0]
			for _, x := range row[1:] {
				if x > maxVal {
					maxVal = x
				}
			}
			var sumExp float64
			for _, x := range row {
				sumExp += math.Exp(x - maxVal)
			}

			for j, x := range row {
				p := math.Exp(x-maxVal) / sumExp
				if j == label {
					p -= 1
				}
				grad[j] += g * p
			}
		}
	})
}

// logSumExp computes log(sum(exp(row))) without
// overflowing for large entries.
func logSumExp(row []float64) float64 {
	maxVal := row[0]
	for _, x := range row[1:] {
		if x > maxVal {
			maxVal = x
		}
	}
	var sum float64
	for _, x := range row {
		sum += math.Exp(x - maxVal)
	}
	return maxVal + math.Log(sum)
}
