package model

import (
	"math"
	"math/rand"

	"gonum.org/v1/gonum/mat"
)

// GRU is a batched gated recurrent unit layer with full backpropagation
// through time, using the update h = (1-z).*h + z.*g.
type GRU struct {
	in, units int

	wz, wr, wg *mat.Dense // input weights, in x units
	uz, ur, ug *mat.Dense // recurrent weights, units x units
	bz, br, bg *mat.Dense // biases, 1 x units

	dwz, dwr, dwg *mat.Dense
	duz, dur, dug *mat.Dense
	dbz, dbr, dbg *mat.Dense

	// caches from the last Forward
	inputs     []*mat.Dense
	h          []*mat.Dense // length T+1, index 0 is the zero state
	zt, rt, gt []*mat.Dense
	rh         []*mat.Dense // r .* hPrev, the candidate's recurrent input
}

// NewGRU constructs a GRU layer mapping in features to units.
func NewGRU(in, units int, rng *rand.Rand) *GRU {
	g := &GRU{in: in, units: units}
	init := func() (*mat.Dense, *mat.Dense, *mat.Dense) {
		w := newDense(in, units)
		u := newDense(units, units)
		glorot(w, rng)
		glorot(u, rng)
		return w, u, newDense(1, units)
	}
	g.wz, g.uz, g.bz = init()
	g.wr, g.ur, g.br = init()
	g.wg, g.ug, g.bg = init()
	g.dwz, g.dwr, g.dwg = newDense(in, units), newDense(in, units), newDense(in, units)
	g.duz, g.dur, g.dug = newDense(units, units), newDense(units, units), newDense(units, units)
	g.dbz, g.dbr, g.dbg = newDense(1, units), newDense(1, units), newDense(1, units)
	return g
}

func (g *GRU) Forward(seq []*mat.Dense) []*mat.Dense {
	T := len(seq)
	batch, _ := seq[0].Dims()

	g.inputs = seq
	g.h = make([]*mat.Dense, T+1)
	g.zt = make([]*mat.Dense, T)
	g.rt = make([]*mat.Dense, T)
	g.gt = make([]*mat.Dense, T)
	g.rh = make([]*mat.Dense, T)
	g.h[0] = newDense(batch, g.units)

	for t := 0; t < T; t++ {
		x, hp := seq[t], g.h[t]

		z := affine(x, g.wz, hp, g.uz, g.bz)
		r := affine(x, g.wr, hp, g.ur, g.br)
		zd, rd := z.RawMatrix().Data, r.RawMatrix().Data
		for k := range zd {
			zd[k] = sigmoid(zd[k])
			rd[k] = sigmoid(rd[k])
		}

		rh := newDense(batch, g.units)
		rhd, hpd := rh.RawMatrix().Data, hp.RawMatrix().Data
		for k := range rhd {
			rhd[k] = rd[k] * hpd[k]
		}

		cand := affine(x, g.wg, rh, g.ug, g.bg)
		hNew := newDense(batch, g.units)
		gd, hd := cand.RawMatrix().Data, hNew.RawMatrix().Data
		for k := range gd {
			gd[k] = math.Tanh(gd[k])
			hd[k] = (1-zd[k])*hpd[k] + zd[k]*gd[k]
		}

		g.zt[t], g.rt[t], g.gt[t], g.rh[t] = z, r, cand, rh
		g.h[t+1] = hNew
	}

	return g.h[1:]
}

func (g *GRU) Backward(grad []*mat.Dense) []*mat.Dense {
	T := len(g.inputs)
	batch, _ := g.inputs[0].Dims()

	dx := make([]*mat.Dense, T)
	dh := newDense(batch, g.units)

	for t := T - 1; t >= 0; t-- {
		dh.Add(dh, grad[t])

		x, hp := g.inputs[t], g.h[t]
		z, r, cand, rh := g.zt[t], g.rt[t], g.gt[t], g.rh[t]

		dzg := newDense(batch, g.units)
		zd, gd := z.RawMatrix().Data, cand.RawMatrix().Data
		dhd, dzgd := dh.RawMatrix().Data, dzg.RawMatrix().Data
		for k := range dzgd {
			dzgd[k] = dhd[k] * zd[k] * (1 - gd[k]*gd[k])
		}

		// gradient w.r.t. r .* hPrev flows only through the candidate
		drh := newDense(batch, g.units)
		accumMulNT(drh, dzg, g.ug)

		dzz := newDense(batch, g.units)
		dzr := newDense(batch, g.units)
		dhPrev := newDense(batch, g.units)
		rd, hpd := r.RawMatrix().Data, hp.RawMatrix().Data
		drhd, dzzd, dzrd, dhpd := drh.RawMatrix().Data, dzz.RawMatrix().Data, dzr.RawMatrix().Data, dhPrev.RawMatrix().Data
		for k := range dzzd {
			dzzd[k] = dhd[k] * (gd[k] - hpd[k]) * zd[k] * (1 - zd[k])
			dzrd[k] = drhd[k] * hpd[k] * rd[k] * (1 - rd[k])
			dhpd[k] = dhd[k]*(1-zd[k]) + drhd[k]*rd[k]
		}

		accumMulT(g.dwz, x, dzz)
		accumMulT(g.dwr, x, dzr)
		accumMulT(g.dwg, x, dzg)
		accumMulT(g.duz, hp, dzz)
		accumMulT(g.dur, hp, dzr)
		accumMulT(g.dug, rh, dzg)
		accumColSums(g.dbz, dzz)
		accumColSums(g.dbr, dzr)
		accumColSums(g.dbg, dzg)

		dxt := newDense(batch, g.in)
		accumMulNT(dxt, dzz, g.wz)
		accumMulNT(dxt, dzr, g.wr)
		accumMulNT(dxt, dzg, g.wg)
		dx[t] = dxt

		accumMulNT(dhPrev, dzz, g.uz)
		accumMulNT(dhPrev, dzr, g.ur)
		dh = dhPrev
	}

	return dx
}

func (g *GRU) Params() []*mat.Dense {
	return []*mat.Dense{g.wz, g.wr, g.wg, g.uz, g.ur, g.ug, g.bz, g.br, g.bg}
}

func (g *GRU) Grads() []*mat.Dense {
	return []*mat.Dense{g.dwz, g.dwr, g.dwg, g.duz, g.dur, g.dug, g.dbz, g.dbr, g.dbg}
}

func (g *GRU) ZeroGrads() { zeroAll(g.Grads()) }

func (g *GRU) Name() string { return CellGRU }
