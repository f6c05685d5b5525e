package model

import (
	"math/rand"
	"testing"
)

func randBatch(batch, seqLen int, rng *rand.Rand) ([][]float64, []float64) {
	inputs := make([][]float64, batch)
	targets := make([]float64, batch)
	for i := range inputs {
		seq := make([]float64, seqLen)
		for t := range seq {
			seq[t] = rng.NormFloat64()
		}
		inputs[i] = seq
		targets[i] = seq[0]
	}
	return inputs, targets
}

func TestNewNetworkUnknownCell(t *testing.T) {
	if _, err := NewNetwork("RWKV", 1, []int{4}, 1); err == nil {
		t.Fatal("expected error for unknown cell")
	}
}

func TestNewNetworkValidation(t *testing.T) {
	if _, err := NewNetwork(CellGRU, 0, []int{4}, 1); err == nil {
		t.Fatal("expected error for zero input size")
	}
	if _, err := NewNetwork(CellGRU, 1, nil, 1); err == nil {
		t.Fatal("expected error for empty hidden sizes")
	}
}

func TestNetworkForwardShape(t *testing.T) {
	rng := rand.New(rand.NewSource(2))
	inputs, _ := randBatch(4, 6, rng)
	for _, cell := range Cells {
		net, err := NewNetwork(cell, 1, []int{5, 4}, 1)
		if err != nil {
			t.Fatalf("%s: NewNetwork error: %v", cell, err)
		}
		pred := net.Forward(inputs)
		r, c := pred.Dims()
		if r != 4 || c != 1 {
			t.Fatalf("%s: prediction is %dx%d, want 4x1", cell, r, c)
		}
	}
}

func TestNetworkGradients(t *testing.T) {
	rng := rand.New(rand.NewSource(8))
	inputs, targets := randBatch(2, 4, rng)

	for _, cell := range Cells {
		net, err := NewNetwork(cell, 1, []int{3}, 5)
		if err != nil {
			t.Fatalf("%s: NewNetwork error: %v", cell, err)
		}

		_, dPred := MSELoss(net.Forward(inputs), targets)
		net.ZeroGrads()
		net.Backward(dPred)

		analytic := make([][]float64, len(net.Grads()))
		for i, g := range net.Grads() {
			analytic[i] = append([]float64(nil), g.RawMatrix().Data...)
		}

		eval := func() float64 {
			loss, _ := MSELoss(net.Forward(inputs), targets)
			return loss
		}

		for pi, p := range net.Params() {
			data := p.RawMatrix().Data
			for k := range data {
				orig := data[k]
				data[k] = orig + gradEps
				plus := eval()
				data[k] = orig - gradEps
				minus := eval()
				data[k] = orig
				numeric := (plus - minus) / (2 * gradEps)
				if !closeEnough(analytic[pi][k], numeric) {
					t.Fatalf("%s param %d[%d]: analytic %g, numeric %g", cell, pi, k, analytic[pi][k], numeric)
				}
			}
		}
	}
}

func TestNetworkTrainingReducesLoss(t *testing.T) {
	rng := rand.New(rand.NewSource(6))
	inputs, targets := randBatch(80, 4, rng)

	net, err := NewNetwork(CellGRU, 1, []int{8}, 7)
	if err != nil {
		t.Fatalf("NewNetwork error: %v", err)
	}
	opt := NewAdam(net.Params(), 0.01)

	var first, last float64
	const epochs, batchSize = 25, 16
	for epoch := 0; epoch < epochs; epoch++ {
		var sum float64
		steps := 0
		for start := 0; start < len(inputs); start += batchSize {
			end := start + batchSize
			pred := net.Forward(inputs[start:end])
			loss, dPred := MSELoss(pred, targets[start:end])
			net.ZeroGrads()
			net.Backward(dPred)
			opt.Step(net.Params(), net.Grads())
			sum += loss
			steps++
		}
		avg := sum / float64(steps)
		if epoch == 0 {
			first = avg
		}
		last = avg
	}

	if last >= first {
		t.Fatalf("training did not reduce loss: first %g, last %g", first, last)
	}
}
