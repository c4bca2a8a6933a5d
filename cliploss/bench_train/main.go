// Command bench_train measures the simulated time of contrastive
// training steps under different gatherers and backprop modes.
package main

import (
	"fmt"
	"math"
	"math/rand"
	"strconv"

	"github.com/google/uuid"
	"github.com/unixpickle/clip-sim/cliploss"
	"github.com/unixpickle/clip-sim/comm"
	"github.com/unixpickle/clip-sim/comm/allgather"
	"github.com/unixpickle/clip-sim/shard"
	"github.com/unixpickle/clip-sim/simulator"
	"github.com/unixpickle/clip-sim/tensor"
)

const (
	numSamples = 1024
	batchSize  = 8
	embedDim   = 64
	numSteps   = 10
)

// RunInfo describes a specific network configuration.
type RunInfo struct {
	NumWorkers int
	Latency    float64
	Rate       float64
}

// Run creates a network and drops each worker into its own
// Goroutine.
func (r *RunInfo) Run(loop *simulator.EventLoop, workerFn func(w *comm.Worker)) {
	nodes := make([]*simulator.Node, r.NumWorkers)
	for i := range nodes {
		nodes[i] = simulator.NewNode()
	}
	fabric := simulator.NewFairDropFabric(r.NumWorkers, r.Rate)
	network := simulator.NewFabricNetwork(fabric, nodes, r.Latency)
	comm.SpawnWorkers(loop, network, nodes, workerFn)
	loop.MustRun()
}

func main() {
	gatherers := []allgather.Gatherer{
		allgather.NaiveGatherer{},
		allgather.RingGatherer{},
	}
	gathererNames := []string{"Naive", "Ring"}
	runs := []RunInfo{
		{
			NumWorkers: 2,
			Latency:    1e-3,
			Rate:       1e9,
		},
		{
			NumWorkers: 4,
			Latency:    1e-3,
			Rate:       1e9,
		},
		{
			NumWorkers: 8,
			Latency:    0.1,
			Rate:       1e6,
		},
	}

	fmt.Println("| Workers | Latency | NIC rate | Gatherer | Backprop | Loss | Time |")
	fmt.Println("|:--|:--|:--|:--|:--|:--|:--|")

	samples := makeDataset(numSamples)
	for _, runInfo := range runs {
		parts := partitionDataset(runInfo.NumWorkers, samples)
		for i, gatherer := range gatherers {
			for _, backprop := range []bool{false, true} {
				g := gatherer
				bp := backprop
				losses := make([]float64, runInfo.NumWorkers)
				loop := simulator.NewEventLoop()
				runInfo.Run(loop, func(w *comm.Worker) {
					losses[w.Rank()] = trainWorker(w, g, parts[w.Rank()], bp)
				})
				fmt.Printf(
					"| %d | %s | %s | %s | %v | %s | %f |\n",
					runInfo.NumWorkers,
					strconv.FormatFloat(runInfo.Latency, 'f', -1, 64),
					strconv.FormatFloat(runInfo.Rate, 'E', -1, 64),
					gathererNames[i],
					backprop,
					strconv.FormatFloat(losses[0], 'f', 4, 64),
					loop.Time(),
				)
			}
		}
	}
}

// trainWorker runs temperature-only training steps on the worker's
// shard and returns its final loss.
func trainWorker(w *comm.Worker, g allgather.Gatherer, samples []*sample,
	backpropInGather bool) float64 {
	loss := cliploss.NewContrastiveLoss()
	loss.Worker = w
	loss.Gatherer = g
	opt := tensor.SGD{LR: 0.1}

	var finalLoss float64
	for step := 0; step < numSteps; step++ {
		img, txt := nextBatch(samples, step)

		// Crude compute model: forward and backward matmuls
		// for both logit directions.
		flops := float64(4 * batchSize * w.Size() * batchSize * embedDim)
		w.Handle().Sleep(comm.FlopTime * flops)

		out := loss.Forward(img, txt, backpropInGather)
		out.Backward()
		finalLoss = out.Item()

		// Average the temperature gradient across workers.
		avg := allgather.AllReduceMean(w, g, loss.LogitScale.Grad)
		copy(loss.LogitScale.Grad, avg)
		opt.Step(loss.LogitScale)
		loss.LogitScale.ZeroGrad()
	}
	return finalLoss
}

// A sample pairs an image embedding with its matching text
// embedding.
type sample struct {
	ID  shard.UUIDHasher
	Img []float64
	Txt []float64
}

// makeDataset derives a deterministic dataset of loosely aligned
// image and text embeddings.
func makeDataset(n int) []*sample {
	samples := make([]*sample, n)
	for i := range samples {
		name := fmt.Sprintf("sample-%d", i)
		id := shard.UUIDHasher(uuid.NewSHA1(uuid.NameSpaceOID, []byte(name)))
		samples[i] = newSample(id)
	}
	return samples
}

func newSample(id shard.UUIDHasher) *sample {
	var seed int64
	for _, b := range id.Hash() {
		seed = seed*257 + int64(b)
	}
	rng := rand.New(rand.NewSource(seed))
	img := make([]float64, embedDim)
	txt := make([]float64, embedDim)
	for i := range img {
		img[i] = rng.NormFloat64()
		txt[i] = img[i] + 0.3*rng.NormFloat64()
	}
	return &sample{ID: id, Img: normalize(img), Txt: normalize(txt)}
}

func normalize(vec []float64) []float64 {
	var norm float64
	for _, x := range vec {
		norm += x * x
	}
	scale := 1 / math.Sqrt(norm)
	for i := range vec {
		vec[i] *= scale
	}
	return vec
}

// partitionDataset assigns samples to workers with consistent
// hashing.
func partitionDataset(numWorkers int, samples []*sample) [][]*sample {
	sharder := shard.NewConsistent(50)
	for rank := 0; rank < numWorkers; rank++ {
		sharder.AddWorker(rank, &shard.GobHasher{Object: rank})
	}

	keys := make([]shard.Hasher, len(samples))
	lookup := map[shard.UUIDHasher]*sample{}
	for i, s := range samples {
		keys[i] = s.ID
		lookup[s.ID] = s
	}

	parts := make([][]*sample, numWorkers)
	for rank, part := range shard.Partition(sharder, keys) {
		for _, key := range part {
			parts[rank] = append(parts[rank], lookup[key.(shard.UUIDHasher)])
		}
	}
	for rank, part := range parts {
		if len(part) == 0 {
			panic(fmt.Sprintf("no samples for worker %d", rank))
		}
	}
	return parts
}

// nextBatch cycles through the worker's shard.
func nextBatch(samples []*sample, step int) (*tensor.Tensor, *tensor.Tensor) {
	img := tensor.New(batchSize, embedDim)
	txt := tensor.New(batchSize, embedDim)
	for i := 0; i < batchSize; i++ {
		s := samples[(step*batchSize+i)%len(samples)]
		copy(img.Data[i*embedDim:], s.Img)
		copy(txt.Data[i*embedDim:], s.Txt)
	}
	return img.TrackGrad(), txt.TrackGrad()
}
