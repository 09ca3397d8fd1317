package vae

import (
	"math"
	"math/rand/v2"

	"github.com/QubitExplorer/AI-Models/params"
	"github.com/QubitExplorer/AI-Models/utils"
	"gonum.org/v1/gonum/mat"
)

// Encoder maps one padded token sequence to a latent sample and the mean and
// log-variance of the Gaussian it was drawn from.
//
//	ids -> Embedding (e x L) -> BiLSTM (2h x L) -> flatten (2h*L x 1)
//	    -> Mean, LogVar (d x 1) -> z = mean + exp(logVar/2) * eps
type Encoder struct {
	MaxLength, LatentDim int
	LogVarClamp          float64

	Embed  *Embedding
	Rnn    *BiLSTM
	Mean   *Dense
	LogVar *Dense

	// cache for backprop
	eps    []float64
	std    []float64
	inside []bool // logVar was within the clamp
}

func NewEncoder(cfg params.TrainingConfig, src rand.Source) *Encoder {
	flat := 2 * cfg.HiddenSize * cfg.MaxLength
	return &Encoder{
		MaxLength:   cfg.MaxLength,
		LatentDim:   cfg.LatentDim,
		LogVarClamp: cfg.LogVarClamp,
		Embed:       NewEmbedding(cfg.OutputClasses(), cfg.EmbedDim, src),
		Rnn:         NewBiLSTM(cfg.EmbedDim, cfg.HiddenSize, src),
		Mean:        NewDense(flat, cfg.LatentDim, false, src),
		LogVar:      NewDense(flat, cfg.LatentDim, false, src),
	}
}

// clampLogVar bounds lv to [-bound, bound]; bound <= 0 disables the clamp.
func clampLogVar(lv, bound float64) (float64, bool) {
	if bound <= 0 {
		return lv, true
	}
	if lv > bound {
		return bound, false
	}
	if lv < -bound {
		return -bound, false
	}
	return lv, true
}

// Forward encodes ids and draws z with the given noise (len(eps) == LatentDim).
func (e *Encoder) Forward(ids []int, eps []float64) (z, mean, logVar *mat.Dense) {
	x := e.Embed.Forward(ids)
	seq := e.Rnn.Forward(x)
	flat := utils.Flatten(seq)
	mean = e.Mean.Forward(flat)
	logVar = e.LogVar.Forward(flat)

	D := e.LatentDim
	e.eps = eps
	e.std = make([]float64, D)
	e.inside = make([]bool, D)
	z = mat.NewDense(D, 1, nil)
	for k := 0; k < D; k++ {
		lv, ok := clampLogVar(logVar.At(k, 0), e.LogVarClamp)
		e.std[k] = math.Exp(lv / 2)
		e.inside[k] = ok
		z.Set(k, 0, mean.At(k, 0)+e.std[k]*eps[k])
	}
	return z, mean, logVar
}

// Backward pushes dL/dz through the sampling step, adds the direct loss terms
// on mean and logVar, and accumulates every encoder gradient into g.
func (e *Encoder) Backward(dz, dMean, dLogVar *mat.Dense, g []*mat.Dense) {
	D := e.LatentDim
	dm := mat.NewDense(D, 1, nil)
	dlv := mat.NewDense(D, 1, nil)
	for k := 0; k < D; k++ {
		dm.Set(k, 0, dz.At(k, 0)+dMean.At(k, 0))
		v := dLogVar.At(k, 0)
		if e.inside[k] {
			v += dz.At(k, 0) * 0.5 * e.std[k] * e.eps[k]
		}
		dlv.Set(k, 0, v)
	}

	off := embeddingParams + bilstmParams
	dFlat := e.Mean.Backward(dm, subGrads(g, off, off+denseParams))
	dFlat.Add(dFlat, e.LogVar.Backward(dlv, subGrads(g, off+denseParams, off+2*denseParams)))

	dSeq := utils.Unflatten(dFlat, 2*e.Rnn.Fwd.Hidden, e.MaxLength)
	dx := e.Rnn.Backward(dSeq, subGrads(g, embeddingParams, off))
	e.Embed.Backward(dx, subGrads(g, 0, embeddingParams))
}

// Params order: embedding, bilstm, mean, logVar.
func (e *Encoder) Params() []*mat.Dense {
	var ps []*mat.Dense
	ps = append(ps, e.Embed.Params()...)
	ps = append(ps, e.Rnn.Params()...)
	ps = append(ps, e.Mean.Params()...)
	ps = append(ps, e.LogVar.Params()...)
	return ps
}

func (e *Encoder) cloneForGrads() *Encoder {
	return &Encoder{
		MaxLength:   e.MaxLength,
		LatentDim:   e.LatentDim,
		LogVarClamp: e.LogVarClamp,
		Embed:       e.Embed.cloneForGrads(),
		Rnn:         e.Rnn.cloneForGrads(),
		Mean:        e.Mean.cloneForGrads(),
		LogVar:      e.LogVar.cloneForGrads(),
	}
}
