package dataset

import (
	"fmt"
	"math/rand"
	"sync"
)

// Sample is one copy-first-input sequence paired with its target.
type Sample struct {
	Input  []float64
	Target float64
}

// GenerateSample draws a sequence of length lag whose first element is both
// the target and a standard normal draw; the remaining elements are
// independent standard normal noise.
func GenerateSample(lag int, rng *rand.Rand) Sample {
	seq := make([]float64, lag)
	for i := range seq {
		seq[i] = rng.NormFloat64()
	}
	return Sample{Input: seq, Target: seq[0]}
}

// Split is an in-memory partition of the dataset.
type Split struct {
	Inputs  [][]float64
	Targets []float64
}

// Len returns the number of samples in the split.
func (s *Split) Len() int { return len(s.Targets) }

// BuildSplits generates n samples at the given lag and partitions them by
// index: the first n-testSize form the training split, the last testSize the
// test split. Each sample is drawn from its own derived seed, so the result
// is identical for any worker count.
func BuildSplits(n, testSize, lag int, seed int64, workers int) (train, test *Split, err error) {
	if lag <= 0 {
		return nil, nil, fmt.Errorf("dataset: lag must be > 0 (got %d)", lag)
	}
	if testSize <= 0 {
		return nil, nil, fmt.Errorf("dataset: test size must be > 0 (got %d)", testSize)
	}
	if n <= testSize {
		return nil, nil, fmt.Errorf("dataset: need more than %d samples (got %d)", testSize, n)
	}
	if workers <= 0 {
		workers = 1
	}
	if workers > n {
		workers = n
	}

	inputs := make([][]float64, n)
	targets := make([]float64, n)

	var wg sync.WaitGroup
	chunk := (n + workers - 1) / workers
	for w := 0; w < workers; w++ {
		lo := w * chunk
		hi := lo + chunk
		if hi > n {
			hi = n
		}
		if lo >= hi {
			break
		}
		wg.Add(1)
		go func(lo, hi int) {
			defer wg.Done()
			for i := lo; i < hi; i++ {
				rng := rand.New(rand.NewSource(sampleSeed(seed, i)))
				s := GenerateSample(lag, rng)
				inputs[i] = s.Input
				targets[i] = s.Target
			}
		}(lo, hi)
	}
	wg.Wait()

	cut := n - testSize
	train = &Split{Inputs: inputs[:cut], Targets: targets[:cut]}
	test = &Split{Inputs: inputs[cut:], Targets: targets[cut:]}
	return train, test, nil
}

// sampleSeed derives a per-sample seed so generation order is irrelevant.
func sampleSeed(seed int64, i int) int64 {
	return seed + int64(i)*0x9E3779B9 + 1
}
