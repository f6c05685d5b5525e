package dataset

import (
	"context"
	"errors"
	"math/rand"
)

// Batch is a mini-batch of sequences with their targets.
type Batch struct {
	Inputs  [][]float64
	Targets []float64
}

// StreamBatches emits mini-batches over split in a freshly shuffled order.
// The order is deterministic for a given rng state and the trailing partial
// batch is kept. The channels close once the epoch is exhausted or ctx is
// canceled; any error is reported on the second channel.
func StreamBatches(ctx context.Context, s *Split, batchSize int, rng *rand.Rand) (<-chan Batch, <-chan error, error) {
	if s == nil || s.Len() == 0 {
		return nil, nil, errors.New("loader: empty split")
	}
	if batchSize <= 0 {
		return nil, nil, errors.New("loader: batch size must be > 0")
	}

	order := rng.Perm(s.Len())
	out := make(chan Batch, 2)
	errCh := make(chan error, 1)

	go func() {
		defer close(errCh)
		defer close(out)
		for start := 0; start < len(order); start += batchSize {
			end := start + batchSize
			if end > len(order) {
				end = len(order)
			}
			b := Batch{
				Inputs:  make([][]float64, 0, end-start),
				Targets: make([]float64, 0, end-start),
			}
			for _, idx := range order[start:end] {
				b.Inputs = append(b.Inputs, s.Inputs[idx])
				b.Targets = append(b.Targets, s.Targets[idx])
			}
			select {
			case <-ctx.Done():
				errCh <- ctx.Err()
				return
			case out <- b:
			}
		}
	}()

	return out, errCh, nil
}
