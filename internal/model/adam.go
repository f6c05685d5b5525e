package model

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// Adam implements the Adam update with bias correction.
type Adam struct {
	lr, beta1, beta2, eps float64

	step int
	m, v [][]float64
}

// AdamState is the serializable optimizer state.
type AdamState struct {
	Step int
	M, V [][]float64
}

// NewAdam builds an optimizer sized to params with the usual defaults
// (betas 0.9/0.999, eps 1e-8).
func NewAdam(params []*mat.Dense, lr float64) *Adam {
	a := &Adam{lr: lr, beta1: 0.9, beta2: 0.999, eps: 1e-8}
	a.m = make([][]float64, len(params))
	a.v = make([][]float64, len(params))
	for i, p := range params {
		r, c := p.Dims()
		a.m[i] = make([]float64, r*c)
		a.v[i] = make([]float64, r*c)
	}
	return a
}

// Step applies one update. params and grads must be parallel to the slice
// the optimizer was built from.
func (a *Adam) Step(params, grads []*mat.Dense) {
	a.step++
	c1 := 1 - math.Pow(a.beta1, float64(a.step))
	c2 := 1 - math.Pow(a.beta2, float64(a.step))
	for pi, p := range params {
		pd := p.RawMatrix().Data
		gd := grads[pi].RawMatrix().Data
		m, v := a.m[pi], a.v[pi]
		for i := range pd {
			g := gd[i]
			m[i] = a.beta1*m[i] + (1-a.beta1)*g
			v[i] = a.beta2*v[i] + (1-a.beta2)*g*g
			mh := m[i] / c1
			vh := v[i] / c2
			pd[i] -= a.lr * mh / (math.Sqrt(vh) + a.eps)
		}
	}
}

// State deep-copies the moment estimates for checkpointing.
func (a *Adam) State() AdamState {
	st := AdamState{Step: a.step, M: make([][]float64, len(a.m)), V: make([][]float64, len(a.v))}
	for i := range a.m {
		st.M[i] = append([]float64(nil), a.m[i]...)
		st.V[i] = append([]float64(nil), a.v[i]...)
	}
	return st
}

// Restore replaces the optimizer state with a snapshot.
func (a *Adam) Restore(st AdamState) error {
	if len(st.M) != len(a.m) || len(st.V) != len(a.v) {
		return fmt.Errorf("adam: state holds %d/%d moments, optimizer has %d", len(st.M), len(st.V), len(a.m))
	}
	for i := range a.m {
		if len(st.M[i]) != len(a.m[i]) || len(st.V[i]) != len(a.v[i]) {
			return fmt.Errorf("adam: moment %d size mismatch", i)
		}
	}
	a.step = st.Step
	for i := range a.m {
		copy(a.m[i], st.M[i])
		copy(a.v[i], st.V[i])
	}
	return nil
}
