package vae

import (
	"math/rand/v2"

	"github.com/QubitExplorer/AI-Models/utils"
	"gonum.org/v1/gonum/mat"
)

// Embedding stores one column per token id.
type Embedding struct {
	Vocab, Dim int
	Weights    *mat.Dense // (dim x vocab)

	lastIDs []int
}

func NewEmbedding(vocab, dim int, src rand.Source) *Embedding {
	return &Embedding{
		Vocab:   vocab,
		Dim:     dim,
		Weights: mat.NewDense(dim, vocab, utils.UniformArray(dim*vocab, -0.05, 0.05, src)),
	}
}

// Forward gathers the columns for ids into a (dim x len(ids)) sequence.
func (e *Embedding) Forward(ids []int) *mat.Dense {
	e.lastIDs = ids
	out := mat.NewDense(e.Dim, len(ids), nil)
	for t, id := range ids {
		for i := 0; i < e.Dim; i++ {
			out.Set(i, t, e.Weights.At(i, id))
		}
	}
	return out
}

// Backward scatters grad columns back onto the id columns of the last Forward.
func (e *Embedding) Backward(grad *mat.Dense, g []*mat.Dense) {
	if g == nil {
		return
	}
	dW := g[0]
	for t, id := range e.lastIDs {
		for i := 0; i < e.Dim; i++ {
			dW.Set(i, id, dW.At(i, id)+grad.At(i, t))
		}
	}
}

func (e *Embedding) Params() []*mat.Dense { return []*mat.Dense{e.Weights} }

func (e *Embedding) cloneForGrads() *Embedding {
	return &Embedding{Vocab: e.Vocab, Dim: e.Dim, Weights: e.Weights}
}
