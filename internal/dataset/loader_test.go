package dataset

import (
	"context"
	"errors"
	"math/rand"
	"reflect"
	"sort"
	"testing"
	"time"
)

func smallSplit(n, lag int) *Split {
	inputs := make([][]float64, n)
	targets := make([]float64, n)
	for i := range inputs {
		seq := make([]float64, lag)
		seq[0] = float64(i)
		inputs[i] = seq
		targets[i] = float64(i)
	}
	return &Split{Inputs: inputs, Targets: targets}
}

func collectTargets(t *testing.T, s *Split, batchSize int, seed int64) []float64 {
	t.Helper()
	rng := rand.New(rand.NewSource(seed))
	batches, errCh, err := StreamBatches(context.Background(), s, batchSize, rng)
	if err != nil {
		t.Fatalf("StreamBatches error: %v", err)
	}
	var out []float64
	for b := range batches {
		if len(b.Inputs) != len(b.Targets) {
			t.Fatalf("ragged batch: %d inputs, %d targets", len(b.Inputs), len(b.Targets))
		}
		out = append(out, b.Targets...)
	}
	for err := range errCh {
		if err != nil {
			t.Fatalf("loader error: %v", err)
		}
	}
	return out
}

func TestStreamBatchesCoversEverySampleOnce(t *testing.T) {
	s := smallSplit(10, 3)
	got := collectTargets(t, s, 3, 5)
	if len(got) != 10 {
		t.Fatalf("expected 10 samples, got %d", len(got))
	}
	sort.Float64s(got)
	for i, v := range got {
		if v != float64(i) {
			t.Fatalf("sample %d missing or duplicated (got %v)", i, got)
		}
	}
}

func TestStreamBatchesKeepsPartialTrailingBatch(t *testing.T) {
	s := smallSplit(10, 3)
	rng := rand.New(rand.NewSource(5))
	batches, errCh, err := StreamBatches(context.Background(), s, 4, rng)
	if err != nil {
		t.Fatalf("StreamBatches error: %v", err)
	}
	var sizes []int
	for b := range batches {
		sizes = append(sizes, len(b.Targets))
	}
	if err := <-errCh; err != nil {
		t.Fatalf("loader error: %v", err)
	}
	if !reflect.DeepEqual(sizes, []int{4, 4, 2}) {
		t.Fatalf("unexpected batch sizes %v", sizes)
	}
}

func TestStreamBatchesDeterministicPerSeed(t *testing.T) {
	s := smallSplit(20, 3)
	run1 := collectTargets(t, s, 6, 7)
	run2 := collectTargets(t, s, 6, 7)
	if !reflect.DeepEqual(run1, run2) {
		t.Fatalf("loader order not deterministic: %v vs %v", run1, run2)
	}
}

func TestStreamBatchesCancel(t *testing.T) {
	s := smallSplit(100, 3)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	rng := rand.New(rand.NewSource(1))
	batches, errCh, err := StreamBatches(ctx, s, 2, rng)
	if err != nil {
		t.Fatalf("StreamBatches error: %v", err)
	}
	deadline := time.After(time.Second)
	var sawCancel bool
	for !sawCancel {
		select {
		case _, ok := <-batches:
			if !ok {
				batches = nil
			}
		case err, ok := <-errCh:
			if ok && errors.Is(err, context.Canceled) {
				sawCancel = true
			} else if !ok {
				t.Fatal("loader finished without reporting cancellation")
			}
		case <-deadline:
			t.Fatal("timed out waiting for cancellation")
		}
	}
}

func TestStreamBatchesBadArgs(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	if _, _, err := StreamBatches(context.Background(), nil, 2, rng); err == nil {
		t.Fatal("expected error for nil split")
	}
	if _, _, err := StreamBatches(context.Background(), smallSplit(4, 2), 0, rng); err == nil {
		t.Fatal("expected error for zero batch size")
	}
}
