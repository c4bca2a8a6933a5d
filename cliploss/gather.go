// Package cliploss implements a symmetric contrastive loss over
// image and text embeddings, with collective communication to share
// embeddings across simulated training workers.
package cliploss

import (
	"github.com/unixpickle/clip-sim/comm"
	"github.com/unixpickle/clip-sim/comm/allgather"
	"github.com/unixpickle/clip-sim/tensor"
)

// gatherEmbeddingsAndLabels collects every worker's image and text
// embeddings and computes labels pairing this worker's rows with
// their columns in the gathered batch.
//
// Every worker must supply embeddings of the same shape.
func gatherEmbeddingsAndLabels(w *comm.Worker, g allgather.Gatherer, imageEmb,
	textEmb *tensor.Tensor, backpropInGather bool) (*tensor.Tensor, *tensor.Tensor, []int) {
	if w == nil || w.Size() == 1 {
		labels := make([]int, imageEmb.Rows)
		for i := range labels {
			labels[i] = i
		}
		return imageEmb, textEmb, labels
	}

	labels := make([]int, imageEmb.Rows)
	for i := range labels {
		labels[i] = w.Rank()*imageEmb.Rows + i
	}
	globalImages := gatherTensor(w, g, imageEmb, backpropInGather)
	globalTexts := gatherTensor(w, g, textEmb, backpropInGather)
	return globalImages, globalTexts, labels
}

// gatherTensor stacks every worker's copy of local into one tensor,
// ordered by rank.
//
// If backprop is true, the result participates in backward passes by
// reduce-scattering the output gradient back to the workers that own
// each slice. The backward pass is itself a collective: every worker
// must run it, or none may.
//
// If backprop is false, the result is a constant.
func gatherTensor(w *comm.Worker, g allgather.Gatherer, local *tensor.Tensor,
	backprop bool) *tensor.Tensor {
	pieces := g.AllGather(w, local.Data)
	data := make([]float64, 0, w.Size()*len(local.Data))
	for _, piece := range pieces {
		if len(piece) != len(local.Data) {
			panic("mismatching batch sizes")
		}
		data = append(data, piece...)
	}
	rows := w.Size() * local.Rows
	if !backprop {
		return tensor.FromData(data, rows, local.Cols)
	}
	size := len(local.Data)
	return tensor.NewOp(data, rows, local.Cols, []*tensor.Tensor{local}, func(out *tensor.Tensor) {
		grads := make([][]float64, w.Size())
		for i := range grads {
			grads[i] = out.Grad[i*size : (i+1)*size]
		}
		summed := g.ReduceScatter(w, grads, comm.Sum)
		for i, x := range summed {
			local.Grad[i] += x
		}
	})
}
