package utils

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Matrix functions used for the layer calculations.

// r = rows of matrix
// c = columns of matrix
// o = output
// m = matrix input number 1
// n = matrix input number 2

func Dot(m, n mat.Matrix) mat.Matrix {
	r, _ := m.Dims()
	_, c := n.Dims()
	o := mat.NewDense(r, c, nil)
	o.Product(m, n)
	return o
}

func Apply(fn func(i, j int, v float64) float64, m mat.Matrix) mat.Matrix {
	r, c := m.Dims()
	o := mat.NewDense(r, c, nil)
	o.Apply(fn, m)
	return o
}

func Multiply(m, n mat.Matrix) mat.Matrix {
	r, c := m.Dims()
	o := mat.NewDense(r, c, nil)
	o.MulElem(m, n)
	return o
}

func ToDense(m mat.Matrix) *mat.Dense {
	if d, ok := m.(*mat.Dense); ok {
		return d
	}
	return mat.DenseCopyOf(m)
}

// AddBias adds the (r x 1) bias to every column of m.
func AddBias(m, bias *mat.Dense) *mat.Dense {
	r, c := m.Dims()
	rb, cb := bias.Dims()
	if rb != r || cb != 1 {
		panic("addBias: bias must be (r x 1)")
	}
	out := mat.NewDense(r, c, nil)
	for j := 0; j < c; j++ {
		for i := 0; i < r; i++ {
			out.Set(i, j, m.At(i, j)+bias.At(i, 0))
		}
	}
	return out
}

// AddColSums accumulates the per-row sum over columns of m into dst (r x 1).
func AddColSums(dst, m *mat.Dense) {
	r, c := m.Dims()
	for i := 0; i < r; i++ {
		s := 0.0
		for j := 0; j < c; j++ {
			s += m.At(i, j)
		}
		dst.Set(i, 0, dst.At(i, 0)+s)
	}
}

// ---------- Activations ----------

func Sigmoid(x float64) float64 {
	return 1.0 / (1.0 + math.Exp(-x))
}

func ReluApply(i, j int, x float64) float64 {
	if x > 0 {
		return x
	}
	return 0
}

// ReluPrime is 1 where the pre-activation was positive.
func ReluPrime(pre *mat.Dense) *mat.Dense {
	r, c := pre.Dims()
	out := mat.NewDense(r, c, nil)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			if pre.At(i, j) > 0 {
				out.Set(i, j, 1)
			}
		}
	}
	return out
}

// ---------- Softmax ----------

// ColSoftmax applies softmax independently to every column (one distribution per position).
func ColSoftmax(m mat.Matrix) *mat.Dense {
	r, c := m.Dims()
	out := mat.NewDense(r, c, nil)
	col := make([]float64, r)
	for j := 0; j < c; j++ {
		mat.Col(col, j, m)
		mx := floats.Max(col)
		sum := 0.0
		for i := range col {
			col[i] = math.Exp(col[i] - mx)
			sum += col[i]
		}
		floats.Scale(1/sum, col)
		out.SetCol(j, col)
	}
	return out
}

// ColSums returns the sum of every column.
func ColSums(m mat.Matrix) []float64 {
	r, c := m.Dims()
	out := make([]float64, c)
	col := make([]float64, r)
	for j := 0; j < c; j++ {
		mat.Col(col, j, m)
		out[j] = floats.Sum(col)
	}
	return out
}

// ArgMaxCols returns the row index of the largest value of every column.
func ArgMaxCols(m mat.Matrix) []int {
	r, c := m.Dims()
	out := make([]int, c)
	col := make([]float64, r)
	for j := 0; j < c; j++ {
		mat.Col(col, j, m)
		out[j] = floats.MaxIdx(col)
	}
	return out
}

// ---------- Shapes ----------

// Flatten stacks the columns of m into one (r*c x 1) vector, column t first at offset t*r.
func Flatten(m *mat.Dense) *mat.Dense {
	r, c := m.Dims()
	out := mat.NewDense(r*c, 1, nil)
	for j := 0; j < c; j++ {
		for i := 0; i < r; i++ {
			out.Set(j*r+i, 0, m.At(i, j))
		}
	}
	return out
}

// Unflatten is the inverse of Flatten: (r*c x 1) -> (r x c).
func Unflatten(v *mat.Dense, r, c int) *mat.Dense {
	n, vc := v.Dims()
	if vc != 1 || n != r*c {
		panic(fmt.Sprintf("unflatten: have (%d x %d), want (%d x 1)", n, vc, r*c))
	}
	out := mat.NewDense(r, c, nil)
	for j := 0; j < c; j++ {
		for i := 0; i < r; i++ {
			out.Set(i, j, v.At(j*r+i, 0))
		}
	}
	return out
}

// IsFinite reports whether every element of m is neither NaN nor Inf.
func IsFinite(m mat.Matrix) bool {
	r, c := m.Dims()
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			v := m.At(i, j)
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return false
			}
		}
	}
	return true
}
