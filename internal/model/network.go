package model

import (
	"fmt"
	"math/rand"

	"gonum.org/v1/gonum/mat"
)

// Supported recurrent cell names, as accepted on the command line.
const (
	CellLSTM = "LSTM"
	CellGRU  = "GRU"
	CellNBRC = "nBRC"
	CellBRC  = "BRC"
)

// Cells lists the supported recurrent cell names.
var Cells = []string{CellLSTM, CellGRU, CellNBRC, CellBRC}

// NewCell constructs a recurrent layer by name.
func NewCell(name string, in, units int, rng *rand.Rand) (Layer, error) {
	switch name {
	case CellLSTM:
		return NewLSTM(in, units, rng), nil
	case CellGRU:
		return NewGRU(in, units, rng), nil
	case CellNBRC:
		return NewNBRC(in, units, rng), nil
	case CellBRC:
		return NewBRC(in, units, rng), nil
	}
	return nil, fmt.Errorf("model: unknown cell %q (want one of %v)", name, Cells)
}

// Network chains a stack of recurrent layers with a scalar linear head
// reading the last timestep's hidden state.
type Network struct {
	layers []Layer
	head   *Dense
	units  int // hidden size of the topmost recurrent layer

	seqLen int // from the last Forward
	batch  int
}

// NewNetwork builds a cell stack sized inputSize -> hiddenSizes... with a
// scalar output head, all initialized from seed.
func NewNetwork(cellName string, inputSize int, hiddenSizes []int, seed int64) (*Network, error) {
	if inputSize <= 0 {
		return nil, fmt.Errorf("model: input size must be > 0 (got %d)", inputSize)
	}
	if len(hiddenSizes) == 0 {
		return nil, fmt.Errorf("model: at least one hidden size required")
	}
	rng := rand.New(rand.NewSource(seed))
	sizes := append([]int{inputSize}, hiddenSizes...)
	layers := make([]Layer, 0, len(hiddenSizes))
	for i := 0; i < len(sizes)-1; i++ {
		layer, err := NewCell(cellName, sizes[i], sizes[i+1], rng)
		if err != nil {
			return nil, err
		}
		layers = append(layers, layer)
	}
	units := sizes[len(sizes)-1]
	return &Network{
		layers: layers,
		head:   NewDense(units, 1, rng),
		units:  units,
	}, nil
}

// Forward runs a batch of sequences (batch x seqLen) through the stack and
// returns the batch x 1 predictions.
func (n *Network) Forward(inputs [][]float64) *mat.Dense {
	seq := seqFromBatch(inputs)
	n.seqLen = len(seq)
	n.batch = len(inputs)
	for _, l := range n.layers {
		seq = l.Forward(seq)
	}
	return n.head.Forward(seq[len(seq)-1])
}

// Backward propagates the loss gradient through the head and the stack;
// parameter gradients accumulate in the layers.
func (n *Network) Backward(dPred *mat.Dense) {
	dh := n.head.Backward(dPred)
	grad := make([]*mat.Dense, n.seqLen)
	for t := 0; t < n.seqLen-1; t++ {
		grad[t] = newDense(n.batch, n.units)
	}
	grad[n.seqLen-1] = dh
	for i := len(n.layers) - 1; i >= 0; i-- {
		grad = n.layers[i].Backward(grad)
	}
}

// Params returns all trainable parameters, layers first, head last.
func (n *Network) Params() []*mat.Dense {
	var out []*mat.Dense
	for _, l := range n.layers {
		out = append(out, l.Params()...)
	}
	return append(out, n.head.Params()...)
}

// Grads returns the gradient matrices parallel to Params.
func (n *Network) Grads() []*mat.Dense {
	var out []*mat.Dense
	for _, l := range n.layers {
		out = append(out, l.Grads()...)
	}
	return append(out, n.head.Grads()...)
}

// ZeroGrads clears all accumulated gradients.
func (n *Network) ZeroGrads() {
	for _, l := range n.layers {
		l.ZeroGrads()
	}
	n.head.ZeroGrads()
}

// seqFromBatch transposes batch-major sequences into T per-timestep
// matrices shaped batch x 1.
func seqFromBatch(inputs [][]float64) []*mat.Dense {
	batch := len(inputs)
	T := len(inputs[0])
	seq := make([]*mat.Dense, T)
	for t := 0; t < T; t++ {
		m := newDense(batch, 1)
		for i := 0; i < batch; i++ {
			m.Set(i, 0, inputs[i][t])
		}
		seq[t] = m
	}
	return seq
}
