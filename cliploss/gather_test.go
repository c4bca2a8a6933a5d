package cliploss

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/unixpickle/clip-sim/comm"
	"github.com/unixpickle/clip-sim/comm/allgather"
	"github.com/unixpickle/clip-sim/simulator"
	"github.com/unixpickle/clip-sim/tensor"
)

func TestGatherSingleWorker(t *testing.T) {
	img := tensor.Randn(4, 3).TrackGrad()
	txt := tensor.Randn(4, 3).TrackGrad()
	gImg, gTxt, labels := gatherEmbeddingsAndLabels(nil, allgather.NaiveGatherer{},
		img, txt, false)
	if gImg != img || gTxt != txt {
		t.Error("single worker should pass embeddings through")
	}
	for i, label := range labels {
		if label != i {
			t.Errorf("label %d: expected %d but got %d", i, i, label)
		}
	}
}

func TestGatherDistributed(t *testing.T) {
	for _, backprop := range []bool{false, true} {
		t.Run(fmt.Sprintf("Backprop=%v", backprop), func(t *testing.T) {
			const numWorkers = 3
			const batch = 2
			const dim = 4
			err := runWorkers(numWorkers, func(w *comm.Worker) {
				img, txt := workerEmbeddings(w.Rank(), batch, dim)
				gImg, gTxt, labels := gatherEmbeddingsAndLabels(w,
					allgather.RingGatherer{}, img, txt, backprop)

				if gImg.Rows != numWorkers*batch || gImg.Cols != dim {
					t.Errorf("expected shape %dx%d but got %dx%d",
						numWorkers*batch, dim, gImg.Rows, gImg.Cols)
					return
				}
				for i, label := range labels {
					if label != w.Rank()*batch+i {
						t.Errorf("label %d: expected %d but got %d",
							i, w.Rank()*batch+i, label)
					}
				}
				offset := w.Rank() * batch * dim
				for i, x := range img.Data {
					if gImg.Data[offset+i] != x {
						t.Errorf("component %d: expected %f but got %f",
							i, x, gImg.Data[offset+i])
					}
				}
				if gImg.Tracks() != backprop || gTxt.Tracks() != backprop {
					t.Errorf("expected tracking %v", backprop)
				}
			})
			if err != nil {
				t.Fatal(err)
			}
		})
	}
}

// TestGatherUnevenBatches checks that workers contributing different
// batch sizes fail loudly instead of misaligning labels.
func TestGatherUnevenBatches(t *testing.T) {
	const numWorkers = 3
	panics := make([]interface{}, numWorkers)
	err := runWorkers(numWorkers, func(w *comm.Worker) {
		defer func() {
			panics[w.Rank()] = recover()
		}()
		img, txt := workerEmbeddings(w.Rank(), 2+w.Rank(), 4)
		gatherEmbeddingsAndLabels(w, allgather.NaiveGatherer{}, img, txt, false)
	})
	if err != nil {
		t.Fatal(err)
	}
	for rank, val := range panics {
		if val == nil {
			t.Errorf("rank %d did not panic", rank)
		} else if val != "mismatching batch sizes" {
			t.Errorf("rank %d: unexpected panic: %v", rank, val)
		}
	}
}

// TestGatherBackwardSums checks that the backward pass of a gathered
// tensor sums gradient contributions from every worker.
func TestGatherBackwardSums(t *testing.T) {
	const numWorkers = 3
	const batch = 2
	const dim = 4
	err := runWorkers(numWorkers, func(w *comm.Worker) {
		img, txt := workerEmbeddings(w.Rank(), batch, dim)
		gImg, gTxt, _ := gatherEmbeddingsAndLabels(w, allgather.RingGatherer{},
			img, txt, true)
		tensor.Sum(gImg).Backward()
		tensor.Sum(gTxt).Backward()

		// Each local element appears once in every worker's
		// gathered tensor, so its summed gradient is the
		// worker count.
		for i, g := range img.Grad {
			if g != numWorkers {
				t.Errorf("image grad %d: expected %d but got %f", i, numWorkers, g)
			}
		}
		for i, g := range txt.Grad {
			if g != numWorkers {
				t.Errorf("text grad %d: expected %d but got %f", i, numWorkers, g)
			}
		}
	})
	if err != nil {
		t.Fatal(err)
	}
}

// runWorkers spawns a simulated cluster with one worker per node and
// runs f on each worker.
func runWorkers(numWorkers int, f func(w *comm.Worker)) error {
	loop := simulator.NewEventLoop()
	var nodes []*simulator.Node
	for i := 0; i < numWorkers; i++ {
		nodes = append(nodes, simulator.NewNode())
	}
	comm.SpawnWorkers(loop, simulator.RandomNetwork{}, nodes, f)
	return loop.Run()
}

// workerEmbeddings creates deterministic image and text embeddings
// for a worker's local batch.
func workerEmbeddings(rank, batch, dim int) (*tensor.Tensor, *tensor.Tensor) {
	rng := rand.New(rand.NewSource(int64(rank) + 1))
	img := tensor.RandnFrom(rng, batch, dim).TrackGrad()
	txt := tensor.RandnFrom(rng, batch, dim).TrackGrad()
	return img, txt
}
