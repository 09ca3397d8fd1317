package utils

import (
	"fmt"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"
)

// Initializers. Every one of them draws from an explicit source so a run is
// reproducible from its seed alone.

// GlorotUniform returns size samples from U(-l, l), l = sqrt(6 / (fanIn + fanOut)).
func GlorotUniform(size, fanIn, fanOut int, src rand.Source) []float64 {
	limit := math.Sqrt(6.0 / float64(fanIn+fanOut))
	return UniformArray(size, -limit, limit, src)
}

func UniformArray(size int, min, max float64, src rand.Source) []float64 {
	u := distuv.Uniform{Min: min, Max: max, Src: src}
	out := make([]float64, size)
	for i := range out {
		out[i] = u.Rand()
	}
	return out
}

func NormalArray(size int, src rand.Source) []float64 {
	n := distuv.Normal{Mu: 0, Sigma: 1, Src: src}
	out := make([]float64, size)
	for i := range out {
		out[i] = n.Rand()
	}
	return out
}

// Orthogonal returns an (r x c) matrix with orthonormal rows or columns
// (whichever is fewer), taken from the QR factorization of a gaussian draw.
func Orthogonal(r, c int, src rand.Source) *mat.Dense {
	tall := r >= c
	rows, cols := r, c
	if !tall {
		rows, cols = c, r
	}
	a := mat.NewDense(rows, cols, NormalArray(rows*cols, src))
	var qr mat.QR
	qr.Factorize(a)
	var q, rr mat.Dense
	qr.QTo(&q)
	qr.RTo(&rr)

	// sign fix so the distribution is uniform over orthogonal matrices
	out := mat.NewDense(rows, cols, nil)
	for j := 0; j < cols; j++ {
		s := 1.0
		if rr.At(j, j) < 0 {
			s = -1.0
		}
		for i := 0; i < rows; i++ {
			out.Set(i, j, s*q.At(i, j))
		}
	}
	if !tall {
		return mat.DenseCopyOf(out.T())
	}
	return out
}

func ZerosLike(a *mat.Dense) *mat.Dense {
	r, c := a.Dims()
	return mat.NewDense(r, c, nil)
}

func MatrixNorm(m *mat.Dense) float64 {
	return mat.Norm(m, 2)
}

// debugging and clipping.

// ClipGrads scales all grads so their combined norm <= maxNorm.
// Returns the scale actually applied (<=1.0) or 1.0 if no clip.
func ClipGrads(maxNorm float64, grads ...*mat.Dense) float64 {
	if maxNorm <= 0 {
		return 1.0
	}
	sum := 0.0
	for _, g := range grads {
		if g == nil {
			continue
		}
		n := mat.Norm(g, 2)
		sum += n * n
	}
	gn := math.Sqrt(sum)
	if gn <= maxNorm || gn == 0 {
		return 1.0
	}
	s := maxNorm / gn
	for _, g := range grads {
		if g != nil {
			g.Scale(s, g)
		}
	}
	return s
}

func Debugf(format string, args ...any) {
	fmt.Printf("[debug] "+format+"\n", args...)
}
