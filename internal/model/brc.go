package model

import (
	"math"
	"math/rand"

	"gonum.org/v1/gonum/mat"
)

// BRC is a batched bistable recurrent cell layer. Its recurrent weights are
// diagonal, held as row vectors:
//
//	a = 1 + tanh(x*Wa + h.*wa + ba)
//	c = sigmoid(x*Wc + h.*wc + bc)
//	h' = c.*h + (1-c).*tanh(x*Wg + a.*h + bg)
//
// The feedback gain a ranges over (0, 2); above 1 the unit is bistable and
// can latch a value indefinitely, which is what the copy-first-input task
// probes.
type BRC struct {
	in, units int

	wa, wc, wg *mat.Dense // input weights, in x units
	da, dc     *mat.Dense // diagonal recurrent weights, 1 x units
	ba, bc, bg *mat.Dense // biases, 1 x units

	gwa, gwc, gwg *mat.Dense
	gda, gdc      *mat.Dense
	gba, gbc, gbg *mat.Dense

	// caches from the last Forward
	inputs     []*mat.Dense
	h          []*mat.Dense // length T+1, index 0 is the zero state
	at, ct, gt []*mat.Dense
}

// NewBRC constructs a bistable recurrent cell layer.
func NewBRC(in, units int, rng *rand.Rand) *BRC {
	b := &BRC{in: in, units: units}
	b.wa, b.wc, b.wg = newDense(in, units), newDense(in, units), newDense(in, units)
	glorot(b.wa, rng)
	glorot(b.wc, rng)
	glorot(b.wg, rng)
	b.da, b.dc = newDense(1, units), newDense(1, units)
	glorot(b.da, rng)
	glorot(b.dc, rng)
	b.ba, b.bc, b.bg = newDense(1, units), newDense(1, units), newDense(1, units)
	b.gwa, b.gwc, b.gwg = newDense(in, units), newDense(in, units), newDense(in, units)
	b.gda, b.gdc = newDense(1, units), newDense(1, units)
	b.gba, b.gbc, b.gbg = newDense(1, units), newDense(1, units), newDense(1, units)
	return b
}

func (b *BRC) Forward(seq []*mat.Dense) []*mat.Dense {
	T := len(seq)
	batch, _ := seq[0].Dims()

	b.inputs = seq
	b.h = make([]*mat.Dense, T+1)
	b.at = make([]*mat.Dense, T)
	b.ct = make([]*mat.Dense, T)
	b.gt = make([]*mat.Dense, T)
	b.h[0] = newDense(batch, b.units)

	for t := 0; t < T; t++ {
		x, hp := seq[t], b.h[t]

		a := affineDiag(x, b.wa, hp, b.da, b.ba)
		c := affineDiag(x, b.wc, hp, b.dc, b.bc)
		ad, cd := a.RawMatrix().Data, c.RawMatrix().Data
		for k := range ad {
			ad[k] = 1 + math.Tanh(ad[k])
			cd[k] = sigmoid(cd[k])
		}

		// candidate uses the gain a as a per-unit recurrent weight
		var g mat.Dense
		g.Mul(x, b.wg)
		hNew := newDense(batch, b.units)
		gd, hpd, hd := g.RawMatrix().Data, hp.RawMatrix().Data, hNew.RawMatrix().Data
		bgd := b.bg.RawMatrix().Data
		cols := b.units
		for i := 0; i < batch; i++ {
			for j := 0; j < cols; j++ {
				k := i*cols + j
				gd[k] = math.Tanh(gd[k] + ad[k]*hpd[k] + bgd[j])
				hd[k] = cd[k]*hpd[k] + (1-cd[k])*gd[k]
			}
		}

		b.at[t], b.ct[t], b.gt[t] = a, c, &g
		b.h[t+1] = hNew
	}

	return b.h[1:]
}

func (b *BRC) Backward(grad []*mat.Dense) []*mat.Dense {
	T := len(b.inputs)
	batch, _ := b.inputs[0].Dims()

	dx := make([]*mat.Dense, T)
	dh := newDense(batch, b.units)

	for t := T - 1; t >= 0; t-- {
		dh.Add(dh, grad[t])

		x, hp := b.inputs[t], b.h[t]
		a, c, g := b.at[t], b.ct[t], b.gt[t]

		dza := newDense(batch, b.units)
		dzc := newDense(batch, b.units)
		dzg := newDense(batch, b.units)
		dhPrev := newDense(batch, b.units)

		ad, cd, gd := a.RawMatrix().Data, c.RawMatrix().Data, g.RawMatrix().Data
		hpd, dhd := hp.RawMatrix().Data, dh.RawMatrix().Data
		dzad, dzcd, dzgd, dhpd := dza.RawMatrix().Data, dzc.RawMatrix().Data, dzg.RawMatrix().Data, dhPrev.RawMatrix().Data
		dad := b.da.RawMatrix().Data
		dcd := b.dc.RawMatrix().Data
		gdad, gdcd, gbad, gbcd, gbgd := b.gda.RawMatrix().Data, b.gdc.RawMatrix().Data, b.gba.RawMatrix().Data, b.gbc.RawMatrix().Data, b.gbg.RawMatrix().Data
		cols := b.units
		for i := 0; i < batch; i++ {
			for j := 0; j < cols; j++ {
				k := i*cols + j
				g1 := dhd[k] * (1 - cd[k]) * (1 - gd[k]*gd[k])
				c1 := dhd[k] * (hpd[k] - gd[k]) * cd[k] * (1 - cd[k])
				ta := ad[k] - 1 // tanh of the gain preactivation
				a1 := g1 * hpd[k] * (1 - ta*ta)
				dzgd[k] = g1
				dzcd[k] = c1
				dzad[k] = a1
				dhpd[k] = dhd[k]*cd[k] + g1*ad[k] + c1*dcd[j] + a1*dad[j]
				gdad[j] += a1 * hpd[k]
				gdcd[j] += c1 * hpd[k]
				gbad[j] += a1
				gbcd[j] += c1
				gbgd[j] += g1
			}
		}

		accumMulT(b.gwa, x, dza)
		accumMulT(b.gwc, x, dzc)
		accumMulT(b.gwg, x, dzg)

		dxt := newDense(batch, b.in)
		accumMulNT(dxt, dza, b.wa)
		accumMulNT(dxt, dzc, b.wc)
		accumMulNT(dxt, dzg, b.wg)
		dx[t] = dxt

		dh = dhPrev
	}

	return dx
}

func (b *BRC) Params() []*mat.Dense {
	return []*mat.Dense{b.wa, b.wc, b.wg, b.da, b.dc, b.ba, b.bc, b.bg}
}

func (b *BRC) Grads() []*mat.Dense {
	return []*mat.Dense{b.gwa, b.gwc, b.gwg, b.gda, b.gdc, b.gba, b.gbc, b.gbg}
}

func (b *BRC) ZeroGrads() { zeroAll(b.Grads()) }

func (b *BRC) Name() string { return CellBRC }

// NBRC is the neuromodulated bistable recurrent cell: the same update as
// BRC, but the gain and memory gates see the whole previous hidden state
// through full recurrent matrices instead of diagonal weights.
type NBRC struct {
	in, units int

	wa, wc, wg *mat.Dense // input weights, in x units
	ua, uc     *mat.Dense // recurrent weights, units x units
	ba, bc, bg *mat.Dense // biases, 1 x units

	gwa, gwc, gwg *mat.Dense
	gua, guc      *mat.Dense
	gba, gbc, gbg *mat.Dense

	inputs     []*mat.Dense
	h          []*mat.Dense
	at, ct, gt []*mat.Dense
}

// NewNBRC constructs a neuromodulated bistable recurrent cell layer.
func NewNBRC(in, units int, rng *rand.Rand) *NBRC {
	n := &NBRC{in: in, units: units}
	n.wa, n.wc, n.wg = newDense(in, units), newDense(in, units), newDense(in, units)
	glorot(n.wa, rng)
	glorot(n.wc, rng)
	glorot(n.wg, rng)
	n.ua, n.uc = newDense(units, units), newDense(units, units)
	glorot(n.ua, rng)
	glorot(n.uc, rng)
	n.ba, n.bc, n.bg = newDense(1, units), newDense(1, units), newDense(1, units)
	n.gwa, n.gwc, n.gwg = newDense(in, units), newDense(in, units), newDense(in, units)
	n.gua, n.guc = newDense(units, units), newDense(units, units)
	n.gba, n.gbc, n.gbg = newDense(1, units), newDense(1, units), newDense(1, units)
	return n
}

func (n *NBRC) Forward(seq []*mat.Dense) []*mat.Dense {
	T := len(seq)
	batch, _ := seq[0].Dims()

	n.inputs = seq
	n.h = make([]*mat.Dense, T+1)
	n.at = make([]*mat.Dense, T)
	n.ct = make([]*mat.Dense, T)
	n.gt = make([]*mat.Dense, T)
	n.h[0] = newDense(batch, n.units)

	for t := 0; t < T; t++ {
		x, hp := seq[t], n.h[t]

		a := affine(x, n.wa, hp, n.ua, n.ba)
		c := affine(x, n.wc, hp, n.uc, n.bc)
		ad, cd := a.RawMatrix().Data, c.RawMatrix().Data
		for k := range ad {
			ad[k] = 1 + math.Tanh(ad[k])
			cd[k] = sigmoid(cd[k])
		}

		var g mat.Dense
		g.Mul(x, n.wg)
		hNew := newDense(batch, n.units)
		gd, hpd, hd := g.RawMatrix().Data, hp.RawMatrix().Data, hNew.RawMatrix().Data
		bgd := n.bg.RawMatrix().Data
		cols := n.units
		for i := 0; i < batch; i++ {
			for j := 0; j < cols; j++ {
				k := i*cols + j
				gd[k] = math.Tanh(gd[k] + ad[k]*hpd[k] + bgd[j])
				hd[k] = cd[k]*hpd[k] + (1-cd[k])*gd[k]
			}
		}

		n.at[t], n.ct[t], n.gt[t] = a, c, &g
		n.h[t+1] = hNew
	}

	return n.h[1:]
}

func (n *NBRC) Backward(grad []*mat.Dense) []*mat.Dense {
	T := len(n.inputs)
	batch, _ := n.inputs[0].Dims()

	dx := make([]*mat.Dense, T)
	dh := newDense(batch, n.units)

	for t := T - 1; t >= 0; t-- {
		dh.Add(dh, grad[t])

		x, hp := n.inputs[t], n.h[t]
		a, c, g := n.at[t], n.ct[t], n.gt[t]

		dza := newDense(batch, n.units)
		dzc := newDense(batch, n.units)
		dzg := newDense(batch, n.units)
		dhPrev := newDense(batch, n.units)

		ad, cd, gd := a.RawMatrix().Data, c.RawMatrix().Data, g.RawMatrix().Data
		hpd, dhd := hp.RawMatrix().Data, dh.RawMatrix().Data
		dzad, dzcd, dzgd, dhpd := dza.RawMatrix().Data, dzc.RawMatrix().Data, dzg.RawMatrix().Data, dhPrev.RawMatrix().Data
		for k := range dhd {
			g1 := dhd[k] * (1 - cd[k]) * (1 - gd[k]*gd[k])
			c1 := dhd[k] * (hpd[k] - gd[k]) * cd[k] * (1 - cd[k])
			ta := ad[k] - 1
			a1 := g1 * hpd[k] * (1 - ta*ta)
			dzgd[k] = g1
			dzcd[k] = c1
			dzad[k] = a1
			dhpd[k] = dhd[k]*cd[k] + g1*ad[k]
		}

		accumMulT(n.gwa, x, dza)
		accumMulT(n.gwc, x, dzc)
		accumMulT(n.gwg, x, dzg)
		accumMulT(n.gua, hp, dza)
		accumMulT(n.guc, hp, dzc)
		accumColSums(n.gba, dza)
		accumColSums(n.gbc, dzc)
		accumColSums(n.gbg, dzg)

		dxt := newDense(batch, n.in)
		accumMulNT(dxt, dza, n.wa)
		accumMulNT(dxt, dzc, n.wc)
		accumMulNT(dxt, dzg, n.wg)
		dx[t] = dxt

		accumMulNT(dhPrev, dza, n.ua)
		accumMulNT(dhPrev, dzc, n.uc)
		dh = dhPrev
	}

	return dx
}

func (n *NBRC) Params() []*mat.Dense {
	return []*mat.Dense{n.wa, n.wc, n.wg, n.ua, n.uc, n.ba, n.bc, n.bg}
}

func (n *NBRC) Grads() []*mat.Dense {
	return []*mat.Dense{n.gwa, n.gwc, n.gwg, n.gua, n.guc, n.gba, n.gbc, n.gbg}
}

func (n *NBRC) ZeroGrads() { zeroAll(n.Grads()) }

func (n *NBRC) Name() string { return CellNBRC }
