package model

import (
	"math"
	"math/rand"

	"gonum.org/v1/gonum/mat"
)

// LSTM is a batched LSTM layer with full backpropagation through time.
// The forget gate bias starts at 1 for better gradient flow on long lags.
type LSTM struct {
	in, units int

	wf, wi, wg, wo *mat.Dense // input weights, in x units
	uf, ui, ug, uo *mat.Dense // recurrent weights, units x units
	bf, bi, bg, bo *mat.Dense // biases, 1 x units

	dwf, dwi, dwg, dwo *mat.Dense
	duf, dui, dug, duo *mat.Dense
	dbf, dbi, dbg, dbo *mat.Dense

	// caches from the last Forward
	inputs         []*mat.Dense
	h, c           []*mat.Dense // length T+1, index 0 is the zero state
	ft, it, gt, ot []*mat.Dense
}

// NewLSTM constructs an LSTM layer mapping in features to units.
func NewLSTM(in, units int, rng *rand.Rand) *LSTM {
	l := &LSTM{in: in, units: units}
	init := func() (*mat.Dense, *mat.Dense, *mat.Dense) {
		w := newDense(in, units)
		u := newDense(units, units)
		glorot(w, rng)
		glorot(u, rng)
		return w, u, newDense(1, units)
	}
	l.wf, l.uf, l.bf = init()
	l.wi, l.ui, l.bi = init()
	l.wg, l.ug, l.bg = init()
	l.wo, l.uo, l.bo = init()
	for j := 0; j < units; j++ {
		l.bf.Set(0, j, 1)
	}
	l.dwf, l.dwi, l.dwg, l.dwo = newDense(in, units), newDense(in, units), newDense(in, units), newDense(in, units)
	l.duf, l.dui, l.dug, l.duo = newDense(units, units), newDense(units, units), newDense(units, units), newDense(units, units)
	l.dbf, l.dbi, l.dbg, l.dbo = newDense(1, units), newDense(1, units), newDense(1, units), newDense(1, units)
	return l
}

func (l *LSTM) Forward(seq []*mat.Dense) []*mat.Dense {
	T := len(seq)
	batch, _ := seq[0].Dims()

	l.inputs = seq
	l.h = make([]*mat.Dense, T+1)
	l.c = make([]*mat.Dense, T+1)
	l.ft = make([]*mat.Dense, T)
	l.it = make([]*mat.Dense, T)
	l.gt = make([]*mat.Dense, T)
	l.ot = make([]*mat.Dense, T)
	l.h[0] = newDense(batch, l.units)
	l.c[0] = newDense(batch, l.units)

	for t := 0; t < T; t++ {
		x, hp, cp := seq[t], l.h[t], l.c[t]

		f := affine(x, l.wf, hp, l.uf, l.bf)
		i := affine(x, l.wi, hp, l.ui, l.bi)
		g := affine(x, l.wg, hp, l.ug, l.bg)
		o := affine(x, l.wo, hp, l.uo, l.bo)

		cNew := newDense(batch, l.units)
		hNew := newDense(batch, l.units)
		fd, id, gd, od := f.RawMatrix().Data, i.RawMatrix().Data, g.RawMatrix().Data, o.RawMatrix().Data
		cpd, cd, hd := cp.RawMatrix().Data, cNew.RawMatrix().Data, hNew.RawMatrix().Data
		for k := range fd {
			fd[k] = sigmoid(fd[k])
			id[k] = sigmoid(id[k])
			gd[k] = math.Tanh(gd[k])
			od[k] = sigmoid(od[k])
			cd[k] = fd[k]*cpd[k] + id[k]*gd[k]
			hd[k] = od[k] * math.Tanh(cd[k])
		}

		l.ft[t], l.it[t], l.gt[t], l.ot[t] = f, i, g, o
		l.c[t+1] = cNew
		l.h[t+1] = hNew
	}

	return l.h[1:]
}

func (l *LSTM) Backward(grad []*mat.Dense) []*mat.Dense {
	T := len(l.inputs)
	batch, _ := l.inputs[0].Dims()

	dx := make([]*mat.Dense, T)
	dh := newDense(batch, l.units)
	dc := newDense(batch, l.units)

	for t := T - 1; t >= 0; t-- {
		dh.Add(dh, grad[t])

		x, hp := l.inputs[t], l.h[t]
		f, i, g, o := l.ft[t], l.it[t], l.gt[t], l.ot[t]

		dzf := newDense(batch, l.units)
		dzi := newDense(batch, l.units)
		dzg := newDense(batch, l.units)
		dzo := newDense(batch, l.units)
		dcPrev := newDense(batch, l.units)

		fd, id, gd, od := f.RawMatrix().Data, i.RawMatrix().Data, g.RawMatrix().Data, o.RawMatrix().Data
		cd, cpd := l.c[t+1].RawMatrix().Data, l.c[t].RawMatrix().Data
		dhd, dcd := dh.RawMatrix().Data, dc.RawMatrix().Data
		dzfd, dzid, dzgd, dzod := dzf.RawMatrix().Data, dzi.RawMatrix().Data, dzg.RawMatrix().Data, dzo.RawMatrix().Data
		dcpd := dcPrev.RawMatrix().Data
		for k := range dhd {
			tc := math.Tanh(cd[k])
			dzod[k] = dhd[k] * tc * od[k] * (1 - od[k])
			dct := dcd[k] + dhd[k]*od[k]*(1-tc*tc)
			dzfd[k] = dct * cpd[k] * fd[k] * (1 - fd[k])
			dzid[k] = dct * gd[k] * id[k] * (1 - id[k])
			dzgd[k] = dct * id[k] * (1 - gd[k]*gd[k])
			dcpd[k] = dct * fd[k]
		}

		accumMulT(l.dwf, x, dzf)
		accumMulT(l.dwi, x, dzi)
		accumMulT(l.dwg, x, dzg)
		accumMulT(l.dwo, x, dzo)
		accumMulT(l.duf, hp, dzf)
		accumMulT(l.dui, hp, dzi)
		accumMulT(l.dug, hp, dzg)
		accumMulT(l.duo, hp, dzo)
		accumColSums(l.dbf, dzf)
		accumColSums(l.dbi, dzi)
		accumColSums(l.dbg, dzg)
		accumColSums(l.dbo, dzo)

		dxt := newDense(batch, l.in)
		accumMulNT(dxt, dzf, l.wf)
		accumMulNT(dxt, dzi, l.wi)
		accumMulNT(dxt, dzg, l.wg)
		accumMulNT(dxt, dzo, l.wo)
		dx[t] = dxt

		dhPrev := newDense(batch, l.units)
		accumMulNT(dhPrev, dzf, l.uf)
		accumMulNT(dhPrev, dzi, l.ui)
		accumMulNT(dhPrev, dzg, l.ug)
		accumMulNT(dhPrev, dzo, l.uo)
		dh = dhPrev
		dc = dcPrev
	}

	return dx
}

func (l *LSTM) Params() []*mat.Dense {
	return []*mat.Dense{l.wf, l.wi, l.wg, l.wo, l.uf, l.ui, l.ug, l.uo, l.bf, l.bi, l.bg, l.bo}
}

func (l *LSTM) Grads() []*mat.Dense {
	return []*mat.Dense{l.dwf, l.dwi, l.dwg, l.dwo, l.duf, l.dui, l.dug, l.duo, l.dbf, l.dbi, l.dbg, l.dbo}
}

func (l *LSTM) ZeroGrads() { zeroAll(l.Grads()) }

func (l *LSTM) Name() string { return CellLSTM }
