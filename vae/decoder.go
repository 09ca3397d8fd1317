package vae

import (
	"fmt"
	"math/rand/v2"

	"github.com/QubitExplorer/AI-Models/params"
	"github.com/QubitExplorer/AI-Models/utils"
	"gonum.org/v1/gonum/mat"
)

// Decoder maps a latent vector to a token distribution per position.
//
//	z (d x 1) -> Project+relu (w*L x 1) -> reshape (w x L) -> BiLSTM (2h x L)
//	  -> Out, shared across positions (classes x L) -> softmax per column
type Decoder struct {
	MaxLength, Width, LatentDim int

	Project *Dense
	Rnn     *BiLSTM
	Out     *Dense
}

func NewDecoder(cfg params.TrainingConfig, src rand.Source) *Decoder {
	return &Decoder{
		MaxLength: cfg.MaxLength,
		Width:     cfg.EmbedDim,
		LatentDim: cfg.LatentDim,
		Project:   NewDense(cfg.LatentDim, cfg.EmbedDim*cfg.MaxLength, true, src),
		Rnn:       NewBiLSTM(cfg.EmbedDim, cfg.HiddenSize, src),
		Out:       NewDense(2*cfg.HiddenSize, cfg.OutputClasses(), false, src),
	}
}

// Forward returns the per-position probabilities (classes x L).
func (d *Decoder) Forward(z *mat.Dense) *mat.Dense {
	proj := d.Project.Forward(z)
	seq := utils.Unflatten(proj, d.Width, d.MaxLength)
	h := d.Rnn.Forward(seq)
	logits := d.Out.Forward(h)
	return utils.ColSoftmax(logits)
}

// DecodeBatch decodes every row of z (B x latent).
func (d *Decoder) DecodeBatch(z *mat.Dense) ([]*mat.Dense, error) {
	B, D := z.Dims()
	if D != d.LatentDim {
		return nil, fmt.Errorf("%w: latent batch has %d columns, want %d", ErrShape, D, d.LatentDim)
	}
	out := make([]*mat.Dense, B)
	for b := 0; b < B; b++ {
		col := mat.NewDense(D, 1, mat.Row(nil, b, z))
		out[b] = d.Forward(col)
	}
	return out, nil
}

// Backward takes dL/d(logits) and returns dL/dz, accumulating decoder
// gradients into g.
func (d *Decoder) Backward(dLogits *mat.Dense, g []*mat.Dense) *mat.Dense {
	off := denseParams + bilstmParams
	dh := d.Out.Backward(dLogits, subGrads(g, off, off+denseParams))
	dSeq := d.Rnn.Backward(dh, subGrads(g, denseParams, off))
	return d.Project.Backward(utils.Flatten(dSeq), subGrads(g, 0, denseParams))
}

// Params order: project, bilstm, out.
func (d *Decoder) Params() []*mat.Dense {
	var ps []*mat.Dense
	ps = append(ps, d.Project.Params()...)
	ps = append(ps, d.Rnn.Params()...)
	ps = append(ps, d.Out.Params()...)
	return ps
}

func (d *Decoder) cloneForGrads() *Decoder {
	return &Decoder{
		MaxLength: d.MaxLength,
		Width:     d.Width,
		LatentDim: d.LatentDim,
		Project:   d.Project.cloneForGrads(),
		Rnn:       d.Rnn.cloneForGrads(),
		Out:       d.Out.cloneForGrads(),
	}
}
