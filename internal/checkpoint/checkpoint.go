package checkpoint

import (
	"encoding/gob"
	"fmt"
	"os"

	"gonum.org/v1/gonum/mat"

	"copytask/internal/model"
)

// Tensor is a flat copy of one parameter matrix.
type Tensor struct {
	Rows, Cols int
	Data       []float64
}

// State is the persisted snapshot for one (cell, lag) pair.
type State struct {
	Cell      string
	Lag       int
	Epoch     int
	TrainLoss float64
	TestLoss  float64
	Params    []Tensor
	Opt       model.AdamState
}

// Capture copies the model parameters and optimizer state into a State.
func Capture(cell string, lag, epoch int, trainLoss, testLoss float64, params []*mat.Dense, opt model.AdamState) State {
	st := State{
		Cell:      cell,
		Lag:       lag,
		Epoch:     epoch,
		TrainLoss: trainLoss,
		TestLoss:  testLoss,
		Params:    make([]Tensor, len(params)),
		Opt:       opt,
	}
	for i, p := range params {
		r, c := p.Dims()
		st.Params[i] = Tensor{Rows: r, Cols: c, Data: append([]float64(nil), p.RawMatrix().Data...)}
	}
	return st
}

// Save writes the state with gob, overwriting any previous snapshot at path.
func Save(path string, st State) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create checkpoint: %w", err)
	}
	defer f.Close()
	if err := gob.NewEncoder(f).Encode(st); err != nil {
		return fmt.Errorf("encode checkpoint: %w", err)
	}
	return nil
}

// Load reads a snapshot from path.
func Load(path string) (State, error) {
	f, err := os.Open(path)
	if err != nil {
		return State{}, fmt.Errorf("open checkpoint: %w", err)
	}
	defer f.Close()
	var st State
	if err := gob.NewDecoder(f).Decode(&st); err != nil {
		return State{}, fmt.Errorf("decode checkpoint: %w", err)
	}
	return st, nil
}

// Apply copies the snapshot parameters back into params, which must match
// the snapshot shapes.
func (st State) Apply(params []*mat.Dense) error {
	if len(params) != len(st.Params) {
		return fmt.Errorf("checkpoint: snapshot holds %d tensors, model has %d", len(st.Params), len(params))
	}
	for i, p := range params {
		r, c := p.Dims()
		t := st.Params[i]
		if r != t.Rows || c != t.Cols {
			return fmt.Errorf("checkpoint: tensor %d is %dx%d, model wants %dx%d", i, t.Rows, t.Cols, r, c)
		}
		copy(p.RawMatrix().Data, t.Data)
	}
	return nil
}
