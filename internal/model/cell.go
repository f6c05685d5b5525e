package model

import (
	"math"
	"math/rand"

	"gonum.org/v1/gonum/mat"
)

// Layer is one recurrent level of the stack. Forward consumes a full
// sequence of per-timestep batches (T matrices shaped batch x in) and
// returns the hidden sequence (T matrices shaped batch x units), caching
// whatever Backward needs. Backward consumes per-timestep gradients with
// respect to the output sequence, accumulates parameter gradients, and
// returns gradients with respect to the input sequence.
type Layer interface {
	Forward(seq []*mat.Dense) []*mat.Dense
	Backward(grad []*mat.Dense) []*mat.Dense
	Params() []*mat.Dense
	Grads() []*mat.Dense
	ZeroGrads()
	Name() string
}

func sigmoid(x float64) float64 { return 1 / (1 + math.Exp(-x)) }

func newDense(r, c int) *mat.Dense { return mat.NewDense(r, c, nil) }

// glorot fills w with uniform Glorot initialization scaled by its dims.
func glorot(w *mat.Dense, rng *rand.Rand) {
	r, c := w.Dims()
	limit := math.Sqrt(6 / float64(r+c))
	data := w.RawMatrix().Data
	for i := range data {
		data[i] = (rng.Float64()*2 - 1) * limit
	}
}

// affine computes x*w + h*u + b into a fresh matrix, broadcasting the bias
// row b across the batch.
func affine(x, w, h, u, b *mat.Dense) *mat.Dense {
	var z mat.Dense
	z.Mul(x, w)
	var rec mat.Dense
	rec.Mul(h, u)
	z.Add(&z, &rec)
	addRow(&z, b)
	return &z
}

// affineDiag is affine with a diagonal recurrent weight held as a row
// vector: x*w + h.*d + b.
func affineDiag(x, w, h, d, b *mat.Dense) *mat.Dense {
	var z mat.Dense
	z.Mul(x, w)
	rows, cols := z.Dims()
	zd := z.RawMatrix().Data
	hd := h.RawMatrix().Data
	dd := d.RawMatrix().Data
	bd := b.RawMatrix().Data
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			zd[i*cols+j] += hd[i*cols+j]*dd[j] + bd[j]
		}
	}
	return &z
}

// addRow adds the 1 x c row to every row of dst.
func addRow(dst, row *mat.Dense) {
	rows, cols := dst.Dims()
	dd := dst.RawMatrix().Data
	rd := row.RawMatrix().Data
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			dd[i*cols+j] += rd[j]
		}
	}
}

// accumColSums adds the column sums of m to the 1 x c accumulator dst.
func accumColSums(dst, m *mat.Dense) {
	rows, cols := m.Dims()
	md := m.RawMatrix().Data
	dd := dst.RawMatrix().Data
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			dd[j] += md[i*cols+j]
		}
	}
}

// accumMulT adds a^T * b to dst.
func accumMulT(dst, a, b *mat.Dense) {
	var t mat.Dense
	t.Mul(a.T(), b)
	dst.Add(dst, &t)
}

// accumMulNT adds a * b^T to dst.
func accumMulNT(dst, a, b *mat.Dense) {
	var t mat.Dense
	t.Mul(a, b.T())
	dst.Add(dst, &t)
}

func zeroAll(ms []*mat.Dense) {
	for _, m := range ms {
		m.Zero()
	}
}
