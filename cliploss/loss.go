package cliploss

import (
	"github.com/unixpickle/clip-sim/comm"
	"github.com/unixpickle/clip-sim/comm/allgather"
	"github.com/unixpickle/clip-sim/tensor"
)

// Output bundles the losses and logits from one loss evaluation.
type Output struct {
	// Loss is the mean of ImageLoss and TextLoss.
	Loss *tensor.Tensor

	// ImageLogits has a row per local image and a column per
	// gathered text. TextLogits is the same with the modalities
	// swapped. Both reflect any row mask.
	ImageLogits *tensor.Tensor
	TextLogits  *tensor.Tensor

	// ImageLoss and TextLoss are the cross-entropies of matching
	// local images to gathered texts and vice versa.
	ImageLoss *tensor.Tensor
	TextLoss  *tensor.Tensor
}

// LossWithTemperature computes the symmetric contrastive loss over a
// batch of image and text embedding rows, scaled by the temperature
// exp(logitScale).
//
// If w is non-nil and has more than one worker, embeddings are
// gathered from every worker and each local row is matched against
// the full gathered batch. A nil g defaults to a NaiveGatherer.
//
// If mask is non-nil, it must have one entry per local row, and rows
// with a false entry are excluded from both loss directions. Masked
// rows keep their original labels, so matching columns are unchanged.
func LossWithTemperature(w *comm.Worker, g allgather.Gatherer, imageEmb, textEmb,
	logitScale *tensor.Tensor, mask []bool, backpropInGather bool) *Output {
	if g == nil {
		g = allgather.NaiveGatherer{}
	}
	temperature := tensor.Exp(logitScale)
	globalImages, globalTexts, labels := gatherEmbeddingsAndLabels(
		w, g, imageEmb, textEmb, backpropInGather)

	imageLogits := tensor.MulScalar(tensor.MatMul(imageEmb, tensor.Transpose(globalTexts)), temperature)
	textLogits := tensor.MulScalar(tensor.MatMul(textEmb, tensor.Transpose(globalImages)), temperature)

	if mask != nil {
		imageLogits = tensor.MaskRows(imageLogits, mask)
		textLogits = tensor.MaskRows(textLogits, mask)
		kept := make([]int, 0, len(labels))
		for i, keep := range mask {
			if keep {
				kept = append(kept, labels[i])
			}
		}
		labels = kept
	}

	imageLoss := tensor.CrossEntropy(imageLogits, labels)
	textLoss := tensor.CrossEntropy(textLogits, labels)
	loss := tensor.Scale(tensor.Add(imageLoss, textLoss), 0.5)

	return &Output{
		Loss:        loss,
		ImageLogits: imageLogits,
		TextLogits:  textLogits,
		ImageLoss:   imageLoss,
		TextLoss:    textLoss,
	}
}
