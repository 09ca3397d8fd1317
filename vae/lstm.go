package vae

import (
	"math"
	"math/rand/v2"

	"github.com/QubitExplorer/AI-Models/utils"
	"gonum.org/v1/gonum/mat"
)

// LSTM is a single-direction recurrent layer returning the hidden state at
// every position. Gate blocks in the stacked kernels are ordered i, f, c, o.
//
// A Reverse layer walks the sequence from the last position to the first but
// still writes each output to the column of the position it was computed at,
// so forward and reverse outputs line up column for column.
type LSTM struct {
	Inputs, Hidden int
	Reverse        bool
	Wx             *mat.Dense // (4h x in)
	Wh             *mat.Dense // (4h x h)
	Bias           *mat.Dense // (4h x 1)

	// cache for backprop, one column per position
	lastInput           *mat.Dense
	gates               *mat.Dense // (4h x T) post-activation
	cells, outputs      *mat.Dense // (h x T)
	prevCell, prevState *mat.Dense // (h x T) state entering each position
}

func NewLSTM(inputs, hidden int, reverse bool, src rand.Source) *LSTM {
	bias := mat.NewDense(4*hidden, 1, nil)
	for k := hidden; k < 2*hidden; k++ {
		bias.Set(k, 0, 1) // unit forget bias
	}
	return &LSTM{
		Inputs:  inputs,
		Hidden:  hidden,
		Reverse: reverse,
		Wx:      mat.NewDense(4*hidden, inputs, utils.GlorotUniform(4*hidden*inputs, inputs, 4*hidden, src)),
		Wh:      utils.Orthogonal(4*hidden, hidden, src),
		Bias:    bias,
	}
}

func (l *LSTM) steps(T int) []int {
	order := make([]int, T)
	for s := range order {
		if l.Reverse {
			order[s] = T - 1 - s
		} else {
			order[s] = s
		}
	}
	return order
}

// Forward runs the recurrence over X (in x T) and returns (h x T).
func (l *LSTM) Forward(X *mat.Dense) *mat.Dense {
	_, T := X.Dims()
	H := l.Hidden
	l.lastInput = X

	var xw mat.Dense
	xw.Mul(l.Wx, X) // input contribution for all positions at once

	l.gates = mat.NewDense(4*H, T, nil)
	l.cells = mat.NewDense(H, T, nil)
	l.outputs = mat.NewDense(H, T, nil)
	l.prevCell = mat.NewDense(H, T, nil)
	l.prevState = mat.NewDense(H, T, nil)

	h := mat.NewVecDense(H, nil)
	c := make([]float64, H)
	var rec mat.VecDense
	for _, t := range l.steps(T) {
		rec.MulVec(l.Wh, h)
		for k := 0; k < H; k++ {
			z := func(block int) float64 {
				r := block*H + k
				return xw.At(r, t) + rec.AtVec(r) + l.Bias.At(r, 0)
			}
			ig := utils.Sigmoid(z(0))
			fg := utils.Sigmoid(z(1))
			cg := math.Tanh(z(2))
			og := utils.Sigmoid(z(3))

			l.prevCell.Set(k, t, c[k])
			l.prevState.Set(k, t, h.AtVec(k))
			c[k] = fg*c[k] + ig*cg

			l.gates.Set(k, t, ig)
			l.gates.Set(H+k, t, fg)
			l.gates.Set(2*H+k, t, cg)
			l.gates.Set(3*H+k, t, og)
			l.cells.Set(k, t, c[k])
			l.outputs.Set(k, t, og*math.Tanh(c[k]))
		}
		for k := 0; k < H; k++ {
			h.SetVec(k, l.outputs.At(k, t))
		}
	}
	return l.outputs
}

// Backward takes dL/d(outputs) (h x T), adds dWx, dWh, db into g[0..2]
// (skipped when g is nil) and returns dL/dX (in x T).
func (l *LSTM) Backward(grad *mat.Dense, g []*mat.Dense) *mat.Dense {
	H := l.Hidden
	_, T := grad.Dims()
	dZ := mat.NewDense(4*H, T, nil)
	dhNext := mat.NewVecDense(H, nil)
	dcNext := make([]float64, H)

	order := l.steps(T)
	for s := len(order) - 1; s >= 0; s-- {
		t := order[s]
		for k := 0; k < H; k++ {
			ig := l.gates.At(k, t)
			fg := l.gates.At(H+k, t)
			cg := l.gates.At(2*H+k, t)
			og := l.gates.At(3*H+k, t)
			tc := math.Tanh(l.cells.At(k, t))

			dh := grad.At(k, t) + dhNext.AtVec(k)
			dc := dcNext[k] + dh*og*(1-tc*tc)

			dZ.Set(k, t, dc*cg*ig*(1-ig))
			dZ.Set(H+k, t, dc*l.prevCell.At(k, t)*fg*(1-fg))
			dZ.Set(2*H+k, t, dc*ig*(1-cg*cg))
			dZ.Set(3*H+k, t, dh*tc*og*(1-og))
			dcNext[k] = dc * fg
		}
		dhNext.MulVec(l.Wh.T(), dZ.ColView(t))
	}

	if g != nil {
		var dWx, dWh mat.Dense
		dWx.Mul(dZ, l.lastInput.T())
		dWh.Mul(dZ, l.prevState.T())
		g[0].Add(g[0], &dWx)
		g[1].Add(g[1], &dWh)
		utils.AddColSums(g[2], dZ)
	}
	return utils.ToDense(utils.Dot(l.Wx.T(), dZ))
}

func (l *LSTM) Params() []*mat.Dense { return []*mat.Dense{l.Wx, l.Wh, l.Bias} }

func (l *LSTM) cloneForGrads() *LSTM {
	return &LSTM{
		Inputs:  l.Inputs,
		Hidden:  l.Hidden,
		Reverse: l.Reverse,
		Wx:      l.Wx, // shared read-only
		Wh:      l.Wh,
		Bias:    l.Bias,
	}
}

// BiLSTM concatenates a forward and a reverse LSTM per position: rows
// [0, h) come from Fwd and rows [h, 2h) from Bwd.
type BiLSTM struct {
	Fwd, Bwd *LSTM
}

func NewBiLSTM(inputs, hidden int, src rand.Source) *BiLSTM {
	return &BiLSTM{
		Fwd: NewLSTM(inputs, hidden, false, src),
		Bwd: NewLSTM(inputs, hidden, true, src),
	}
}

func (b *BiLSTM) Forward(X *mat.Dense) *mat.Dense {
	hf := b.Fwd.Forward(X)
	hb := b.Bwd.Forward(X)
	var out mat.Dense
	out.Stack(hf, hb)
	return &out
}

func (b *BiLSTM) Backward(grad *mat.Dense, g []*mat.Dense) *mat.Dense {
	H := b.Fwd.Hidden
	r, T := grad.Dims()
	dF := mat.DenseCopyOf(grad.Slice(0, H, 0, T))
	dB := mat.DenseCopyOf(grad.Slice(H, r, 0, T))
	dXf := b.Fwd.Backward(dF, subGrads(g, 0, lstmParams))
	dXb := b.Bwd.Backward(dB, subGrads(g, lstmParams, 2*lstmParams))
	dXf.Add(dXf, dXb)
	return dXf
}

func (b *BiLSTM) Params() []*mat.Dense {
	return append(b.Fwd.Params(), b.Bwd.Params()...)
}

func (b *BiLSTM) cloneForGrads() *BiLSTM {
	return &BiLSTM{Fwd: b.Fwd.cloneForGrads(), Bwd: b.Bwd.cloneForGrads()}
}

// parameter counts per layer kind, used to split a flat gradient list
const (
	embeddingParams = 1
	denseParams     = 2
	lstmParams      = 3
	bilstmParams    = 2 * lstmParams
)

// subGrads returns g[from:to], or nil when gradients are not being collected.
func subGrads(g []*mat.Dense, from, to int) []*mat.Dense {
	if g == nil {
		return nil
	}
	return g[from:to]
}
