package cliploss

import (
	"math"

	"github.com/unixpickle/clip-sim/comm"
	"github.com/unixpickle/clip-sim/comm/allgather"
	"github.com/unixpickle/clip-sim/tensor"
)

// The maximum log-temperature, ln(100).
const maxLogitScale = 4.6052

// DefaultLogitScale creates a fresh log-temperature parameter
// initialized to ln(1/0.07).
func DefaultLogitScale() *tensor.Tensor {
	return tensor.Scalar(math.Log(1 / 0.07)).TrackGrad()
}

// ContrastiveLoss pulls matching image and text embeddings together
// and pushes mismatched pairs apart, sharing a learned temperature
// between both directions.
type ContrastiveLoss struct {
	// LogitScale is the learned log-temperature.
	LogitScale *tensor.Tensor

	// Worker, if non-nil, is used to gather embeddings from
	// every worker before computing logits.
	Worker *comm.Worker

	// Gatherer implements the collectives used to gather
	// embeddings. If nil, a NaiveGatherer is used.
	Gatherer allgather.Gatherer
}

// NewContrastiveLoss creates a ContrastiveLoss with a freshly
// initialized temperature parameter.
func NewContrastiveLoss() *ContrastiveLoss {
	return &ContrastiveLoss{LogitScale: DefaultLogitScale()}
}

// NewContrastiveLossWithScale creates a ContrastiveLoss with the
// log-temperature initialized to a custom value.
func NewContrastiveLossWithScale(logitScale float64) *ContrastiveLoss {
	return &ContrastiveLoss{LogitScale: tensor.Scalar(logitScale).TrackGrad()}
}

// NewContrastiveLossWithParam creates a ContrastiveLoss sharing an
// existing log-temperature parameter.
func NewContrastiveLossWithParam(logitScale *tensor.Tensor) *ContrastiveLoss {
	return &ContrastiveLoss{LogitScale: logitScale}
}

// Forward clamps the log-temperature into [0, maxLogitScale] and
// returns the mean of the image-to-text and text-to-image losses.
func (c *ContrastiveLoss) Forward(imageEmb, textEmb *tensor.Tensor,
	backpropInGather bool) *tensor.Tensor {
	c.LogitScale.ClampInPlace(0, maxLogitScale)
	return LossWithTemperature(c.Worker, c.Gatherer, imageEmb, textEmb,
		c.LogitScale, nil, backpropInGather).Loss
}
