package main

import (
	"fmt"
	"strconv"

	"github.com/unixpickle/clip-sim/comm"
	"github.com/unixpickle/clip-sim/comm/allgather"
	"github.com/unixpickle/clip-sim/simulator"
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
			Latency:    0.1,
			Rate:       1e6,
		},
		{
			NumWorkers: 16,
			Latency:    1e-3,
			Rate:       1e6,
		},
		{
			NumWorkers: 32,
			Latency:    0.1,
			Rate:       1e6,
		},
		{
			NumWorkers: 32,
			Latency:    0.1,
			Rate:       1e9,
		},
		{
			NumWorkers: 32,
			Latency:    1e-4,
			Rate:       1e9,
		},
	}
	vecSizes := []int{10, 10000, 10000000}

	// Markdown table header.
	fmt.Print("| Workers | Latency | NIC rate | Size ")
	for _, name := range gathererNames {
		fmt.Printf("| %s ", name)
	}
	fmt.Println("|")
	for i := 0; i < 4+len(gatherers); i++ {
		fmt.Print("|:--")
	}
	fmt.Println("|")

	// Markdown table body.
	for _, runInfo := range runs {
		for _, size := range vecSizes {
			fmt.Printf(
				"| %d | %s | %s | %d ",
				runInfo.NumWorkers,
				strconv.FormatFloat(runInfo.Latency, 'f', -1, 64),
				strconv.FormatFloat(runInfo.Rate, 'E', -1, 64),
				size,
			)
			for _, gatherer := range gatherers {
				g := gatherer
				loop := simulator.NewEventLoop()
				runInfo.Run(loop, func(w *comm.Worker) {
					vec := make([]float64, size)
					allgather.AllReduce(w, g, vec, comm.Sum)
				})
				fmt.Printf("| %f ", loop.Time())
			}
			fmt.Println("|")
		}
	}
}
