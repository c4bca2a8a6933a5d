// Package shard deterministically assigns training
// samples to workers.
package shard

// A Sharder maps keys to the workers responsible for
// them. It assigns different keys to different ranks.
type Sharder interface {
	// AddWorker adds a worker to the pool.
	AddWorker(rank int, id Hasher)

	// RemoveWorker removes a worker from the pool.
	RemoveWorker(rank int)

	// Workers returns the ranks of all workers in the
	// pool.
	Workers() []int

	// Assign returns the workers responsible for a key.
	//
	// This must return at least one rank, provided there
	// are any workers in the pool.
	Assign(key Hasher) []int
}

// Partition groups keys by the first worker each key is
// assigned to.
func Partition(s Sharder, keys []Hasher) map[int][]Hasher {
	res := map[int][]Hasher{}
	for _, key := range keys {
		ranks := s.Assign(key)
		if len(ranks) == 0 {
			panic("no workers available")
		}
		res[ranks[0]] = append(res[ranks[0]], key)
	}
	return res
}
