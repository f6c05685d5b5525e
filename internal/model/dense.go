package model

import (
	"math/rand"

	"gonum.org/v1/gonum/mat"
)

// Dense is the linear projection head reading the final hidden state.
type Dense struct {
	in, out int

	w *mat.Dense // in x out
	b *mat.Dense // 1 x out

	dw *mat.Dense
	db *mat.Dense

	x *mat.Dense // cached input from the last Forward
}

// NewDense constructs a linear layer mapping in features to out.
func NewDense(in, out int, rng *rand.Rand) *Dense {
	d := &Dense{in: in, out: out}
	d.w = newDense(in, out)
	glorot(d.w, rng)
	d.b = newDense(1, out)
	d.dw = newDense(in, out)
	d.db = newDense(1, out)
	return d
}

// Forward computes x*w + b.
func (d *Dense) Forward(x *mat.Dense) *mat.Dense {
	d.x = x
	var y mat.Dense
	y.Mul(x, d.w)
	addRow(&y, d.b)
	return &y
}

// Backward accumulates parameter gradients and returns the input gradient.
func (d *Dense) Backward(dy *mat.Dense) *mat.Dense {
	accumMulT(d.dw, d.x, dy)
	accumColSums(d.db, dy)
	batch, _ := dy.Dims()
	dx := newDense(batch, d.in)
	accumMulNT(dx, dy, d.w)
	return dx
}

func (d *Dense) Params() []*mat.Dense { return []*mat.Dense{d.w, d.b} }

func (d *Dense) Grads() []*mat.Dense { return []*mat.Dense{d.dw, d.db} }

func (d *Dense) ZeroGrads() { zeroAll(d.Grads()) }

// MSELoss returns the batch-mean squared error between the scalar
// predictions and targets, together with its gradient w.r.t. pred.
func MSELoss(pred *mat.Dense, targets []float64) (float64, *mat.Dense) {
	batch, _ := pred.Dims()
	grad := newDense(batch, 1)
	var sum float64
	for i := 0; i < batch; i++ {
		diff := pred.At(i, 0) - targets[i]
		sum += diff * diff
		grad.Set(i, 0, 2*diff/float64(batch))
	}
	return sum / float64(batch), grad
}
