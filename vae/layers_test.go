package vae

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/QubitExplorer/AI-Models/utils"
	"gonum.org/v1/gonum/mat"
)

func finiteDiffCheck(t *testing.T, name string, param *mat.Dense, grad *mat.Dense,
	forward func() float64, i, j int) {
	t.Helper()

	eps := 1e-5
	w0 := param.At(i, j)

	// Perturb +eps
	param.Set(i, j, w0+eps)
	lp := forward()

	// Perturb -eps
	param.Set(i, j, w0-eps)
	lm := forward()

	// Restore
	param.Set(i, j, w0)

	numGrad := (lp - lm) / (2.0 * eps)
	anaGrad := grad.At(i, j)

	if math.Abs(numGrad-anaGrad) > 1e-4 {
		t.Fatalf("%s[%d,%d] grad mismatch: num=%.6g ana=%.6g",
			name, i, j, numGrad, anaGrad)
	}
}

// checkCorners runs finiteDiffCheck on the first, last and a middle element.
func checkCorners(t *testing.T, name string, param, grad *mat.Dense, forward func() float64) {
	t.Helper()
	r, c := param.Dims()
	finiteDiffCheck(t, name, param, grad, forward, 0, 0)
	finiteDiffCheck(t, name, param, grad, forward, r/2, c/2)
	finiteDiffCheck(t, name, param, grad, forward, r-1, c-1)
}

func randDense(r, c int, src rand.Source) *mat.Dense {
	return mat.NewDense(r, c, utils.UniformArray(r*c, -1, 1, src))
}

// weighted sum of the output, so dL/dY is just the weight matrix
func weightedSum(y, w *mat.Dense) float64 {
	return mat.Sum(utils.Multiply(y, w))
}

func zeroGradsFor(ps []*mat.Dense) []*mat.Dense {
	gs := make([]*mat.Dense, len(ps))
	for i, p := range ps {
		gs[i] = utils.ZerosLike(p)
	}
	return gs
}

func TestDenseGradCheck(t *testing.T) {
	src := rand.NewPCG(1, 2)
	for _, relu := range []bool{false, true} {
		d := NewDense(4, 3, relu, src)
		d.Bias = randDense(3, 1, src)
		x := randDense(4, 5, src)
		w := randDense(3, 5, src)

		forward := func() float64 { return weightedSum(d.Forward(x), w) }

		forward()
		g := zeroGradsFor(d.Params())
		dX := d.Backward(w, g)

		checkCorners(t, "Weights", d.Weights, g[0], forward)
		checkCorners(t, "Bias", d.Bias, g[1], forward)
		checkCorners(t, "X", x, dX, forward)
	}
}

func TestEmbeddingGradAccumulatesRepeatedIDs(t *testing.T) {
	src := rand.NewPCG(3, 4)
	e := NewEmbedding(5, 3, src)
	ids := []int{2, 0, 2, 4}
	w := randDense(3, len(ids), src)

	forward := func() float64 { return weightedSum(e.Forward(ids), w) }
	forward()
	g := zeroGradsFor(e.Params())
	e.Backward(w, g)

	for i := 0; i < 3; i++ {
		finiteDiffCheck(t, "Emb", e.Weights, g[0], forward, i, 2)
		finiteDiffCheck(t, "Emb", e.Weights, g[0], forward, i, 1) // unused id
	}
	if g[0].At(0, 1) != 0 {
		t.Fatalf("unused id received gradient %v", g[0].At(0, 1))
	}
}

func TestLSTMGradCheck(t *testing.T) {
	for _, reverse := range []bool{false, true} {
		src := rand.NewPCG(5, 6)
		l := NewLSTM(3, 4, reverse, src)
		x := randDense(3, 6, src)
		w := randDense(4, 6, src)

		forward := func() float64 { return weightedSum(l.Forward(x), w) }
		forward()
		g := zeroGradsFor(l.Params())
		dX := l.Backward(w, g)

		checkCorners(t, "Wx", l.Wx, g[0], forward)
		checkCorners(t, "Wh", l.Wh, g[1], forward)
		checkCorners(t, "Bias", l.Bias, g[2], forward)
		checkCorners(t, "X", x, dX, forward)
	}
}

func TestLSTMReverseAlignsWithPositions(t *testing.T) {
	src := rand.NewPCG(7, 8)
	fwd := NewLSTM(2, 3, false, src)
	bwd := &LSTM{Inputs: 2, Hidden: 3, Reverse: true, Wx: fwd.Wx, Wh: fwd.Wh, Bias: fwd.Bias}

	x := randDense(2, 4, src)
	flipped := mat.NewDense(2, 4, nil)
	for p := 0; p < 4; p++ {
		flipped.SetCol(3-p, mat.Col(nil, p, x))
	}
	// the reverse pass over x is the forward pass over flipped x, read backwards
	hb := bwd.Forward(x)
	hf := fwd.Forward(flipped)
	for p := 0; p < 4; p++ {
		for k := 0; k < 3; k++ {
			if math.Abs(hb.At(k, p)-hf.At(k, 3-p)) > 1e-12 {
				t.Fatalf("position %d unit %d: reverse %v, flipped forward %v", p, k, hb.At(k, p), hf.At(k, 3-p))
			}
		}
	}
}

func TestBiLSTMGradCheck(t *testing.T) {
	src := rand.NewPCG(9, 10)
	b := NewBiLSTM(3, 2, src)
	x := randDense(3, 5, src)
	w := randDense(4, 5, src)

	forward := func() float64 { return weightedSum(b.Forward(x), w) }
	y := b.Forward(x)
	if r, c := y.Dims(); r != 4 || c != 5 {
		t.Fatalf("output dims %dx%d, want 4x5", r, c)
	}
	g := zeroGradsFor(b.Params())
	dX := b.Backward(w, g)

	names := []string{"fwd.Wx", "fwd.Wh", "fwd.Bias", "bwd.Wx", "bwd.Wh", "bwd.Bias"}
	for i, p := range b.Params() {
		checkCorners(t, names[i], p, g[i], forward)
	}
	checkCorners(t, "X", x, dX, forward)
}

func TestOrthogonalRecurrentKernelAndForgetBias(t *testing.T) {
	l := NewLSTM(3, 4, false, rand.NewPCG(11, 12))
	var gram mat.Dense
	gram.Mul(l.Wh.T(), l.Wh)
	if !mat.EqualApprox(&gram, eye(4), 1e-9) {
		t.Fatalf("Wh^T Wh not identity:\n%v", mat.Formatted(&gram))
	}
	for k := 0; k < 16; k++ {
		want := 0.0
		if k >= 4 && k < 8 {
			want = 1
		}
		if l.Bias.At(k, 0) != want {
			t.Fatalf("bias[%d] = %v, want %v", k, l.Bias.At(k, 0), want)
		}
	}
}

func eye(n int) *mat.Dense {
	m := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		m.Set(i, i, 1)
	}
	return m
}
