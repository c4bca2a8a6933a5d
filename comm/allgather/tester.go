package allgather

import (
	"fmt"
	"math"
	"math/rand"
	"testing"

	"github.com/unixpickle/clip-sim/comm"
	"github.com/unixpickle/clip-sim/simulator"
)

// RunGathererTests runs a battery of tests on a Gatherer.
func RunGathererTests(t *testing.T, g Gatherer) {
	for _, numWorkers := range []int{1, 2, 5, 8, 13} {
		for _, size := range []int{0, 1, 1337} {
			for _, randomized := range []bool{false, true} {
				testName := fmt.Sprintf("Workers=%d,Size=%d,Random=%v", numWorkers, size,
					randomized)
				t.Run(testName, func(t *testing.T) {
					testAllGather(t, g, numWorkers, size, randomized)
					testReduceScatter(t, g, numWorkers, size, randomized)
					testAllReduce(t, g, numWorkers, size, randomized)
					testAllReduceMean(t, g, numWorkers, size, randomized)
				})
			}
		}
	}
}

func testAllGather(t *testing.T, g Gatherer, numWorkers, size int, randomized bool) {
	loop := simulator.NewEventLoop()
	network, nodes := testbedNetwork(loop, numWorkers, randomized)

	vectors := make([][]float64, numWorkers)
	for i := range vectors {
		vectors[i] = make([]float64, size)
		for j := range vectors[i] {
			vectors[i][j] = rand.NormFloat64()
		}
	}

	results := make([][][]float64, numWorkers)
	comm.SpawnWorkers(loop, network, nodes, func(w *comm.Worker) {
		results[w.Rank()] = g.AllGather(w, vectors[w.Rank()])
	})

	if err := loop.Run(); err != nil {
		t.Fatalf("AllGather: %s", err)
	}

	for rank, res := range results {
		if len(res) != numWorkers {
			t.Errorf("AllGather: rank %d gathered %d vectors but expected %d",
				rank, len(res), numWorkers)
			continue
		}
		for i, vec := range res {
			if len(vec) != size {
				t.Errorf("AllGather: rank %d slot %d has length %d but expected %d",
					rank, i, len(vec), size)
				continue
			}
			for j, actual := range vec {
				if actual != vectors[i][j] {
					t.Errorf("AllGather: rank %d slot %d differs from the original vector",
						rank, i)
					break
				}
			}
		}
	}
}

func testReduceScatter(t *testing.T, g Gatherer, numWorkers, size int, randomized bool) {
	loop := simulator.NewEventLoop()
	network, nodes := testbedNetwork(loop, numWorkers, randomized)

	pieces := make([][][]float64, numWorkers)
	expected := make([][]float64, numWorkers)
	for dest := range expected {
		expected[dest] = make([]float64, size)
	}
	for owner := range pieces {
		pieces[owner] = make([][]float64, numWorkers)
		for dest := range pieces[owner] {
			pieces[owner][dest] = make([]float64, size)
			for j := range pieces[owner][dest] {
				x := rand.NormFloat64()
				pieces[owner][dest][j] = x
				expected[dest][j] += x
			}
		}
	}

	results := make([][]float64, numWorkers)
	comm.SpawnWorkers(loop, network, nodes, func(w *comm.Worker) {
		results[w.Rank()] = g.ReduceScatter(w, pieces[w.Rank()], comm.Sum)
	})

	if err := loop.Run(); err != nil {
		t.Fatalf("ReduceScatter: %s", err)
	}

	for rank, res := range results {
		if len(res) != size {
			t.Errorf("ReduceScatter: rank %d has length %d but expected %d",
				rank, len(res), size)
			continue
		}
		for j, actual := range res {
			if math.Abs(actual-expected[rank][j]) > 1e-5 {
				t.Errorf("ReduceScatter: rank %d is incorrect "+
					"(expected %f but got %f at component %d)",
					rank, expected[rank][j], actual, j)
				break
			}
		}
	}
}

func testAllReduce(t *testing.T, g Gatherer, numWorkers, size int, randomized bool) {
	loop := simulator.NewEventLoop()
	network, nodes := testbedNetwork(loop, numWorkers, randomized)

	vectors := make([][]float64, numWorkers)
	sum := make([]float64, size)
	for i := range vectors {
		vectors[i] = make([]float64, size)
		for j := range vectors[i] {
			vectors[i][j] = rand.NormFloat64()
			sum[j] += vectors[i][j]
		}
	}

	results := make([][]float64, numWorkers)
	comm.SpawnWorkers(loop, network, nodes, func(w *comm.Worker) {
		results[w.Rank()] = AllReduce(w, g, vectors[w.Rank()], comm.Sum)
	})

	if err := loop.Run(); err != nil {
		t.Fatalf("AllReduce: %s", err)
	}

	for i, res := range results[1:] {
		if len(res) != size {
			t.Errorf("AllReduce: result %d has length %d but expected %d",
				i+1, len(res), size)
			continue
		}
		for j, actual := range res {
			if actual != results[0][j] {
				t.Errorf("AllReduce: result %d is not identical to result 0", i+1)
				break
			}
		}
	}
	for j, x := range sum {
		if math.Abs(x-results[0][j]) > 1e-5 {
			t.Errorf("AllReduce: sum is incorrect (expected %f but got %f at component %d)",
				x, results[0][j], j)
			break
		}
	}
}

func testAllReduceMean(t *testing.T, g Gatherer, numWorkers, size int, randomized bool) {
	loop := simulator.NewEventLoop()
	network, nodes := testbedNetwork(loop, numWorkers, randomized)

	vectors := make([][]float64, numWorkers)
	mean := make([]float64, size)
	for i := range vectors {
		vectors[i] = make([]float64, size)
		for j := range vectors[i] {
			vectors[i][j] = rand.NormFloat64()
			mean[j] += vectors[i][j] / float64(numWorkers)
		}
	}

	results := make([][]float64, numWorkers)
	comm.SpawnWorkers(loop, network, nodes, func(w *comm.Worker) {
		results[w.Rank()] = AllReduceMean(w, g, vectors[w.Rank()])
	})

	if err := loop.Run(); err != nil {
		t.Fatalf("AllReduceMean: %s", err)
	}

	for i, res := range results[1:] {
		if len(res) != size {
			t.Errorf("AllReduceMean: result %d has length %d but expected %d",
				i+1, len(res), size)
			continue
		}
		for j, actual := range res {
			if actual != results[0][j] {
				t.Errorf("AllReduceMean: result %d is not identical to result 0", i+1)
				break
			}
		}
	}
	for j, x := range mean {
		if math.Abs(x-results[0][j]) > 1e-5 {
			t.Errorf("AllReduceMean: mean is incorrect "+
				"(expected %f but got %f at component %d)",
				x, results[0][j], j)
			break
		}
	}
}

func testbedNetwork(loop *simulator.EventLoop, numWorkers int,
	randomized bool) (simulator.Network, []*simulator.Node) {
	nodes := make([]*simulator.Node, numWorkers)
	for i := range nodes {
		nodes[i] = simulator.NewNode()
	}
	if randomized {
		return simulator.RandomNetwork{}, nodes
	}
	fabric := simulator.NewFairDropFabric(numWorkers, 1.0)
	return simulator.NewFabricNetwork(fabric, nodes, 0.1), nodes
}
