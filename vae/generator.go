package vae

import (
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/QubitExplorer/AI-Models/IO"
	"github.com/QubitExplorer/AI-Models/utils"
	"gonum.org/v1/gonum/mat"
)

const probSumTol = 1e-6

// Generator turns standard-normal latent draws into strings. It only needs
// the decoder and the vocabulary.
type Generator struct {
	Decoder   *Decoder
	Vocab     *IO.Vocabulary
	ChunkSize int // latent draws decoded per batch; <= 0 means all at once

	src rand.Source
}

func NewGenerator(dec *Decoder, vocab *IO.Vocabulary, chunk int, src rand.Source) *Generator {
	return &Generator{Decoder: dec, Vocab: vocab, ChunkSize: chunk, src: src}
}

// checkDistribution rejects any position whose probabilities do not sum to 1.
func checkDistribution(probs *mat.Dense) error {
	for t, s := range utils.ColSums(probs) {
		if math.IsNaN(s) || math.Abs(s-1) > probSumTol {
			return fmt.Errorf("%w: position %d probabilities sum to %v", ErrShape, t, s)
		}
	}
	return nil
}

// SampleSequences decodes n prior draws and takes the argmax at every position.
func (g *Generator) SampleSequences(n int) ([][]int, error) {
	if n < 0 {
		return nil, fmt.Errorf("%w: negative sample count %d", ErrShape, n)
	}
	chunk := g.ChunkSize
	if chunk <= 0 {
		chunk = max(n, 1)
	}
	D := g.Decoder.LatentDim
	out := make([][]int, 0, n)
	for lo := 0; lo < n; lo += chunk {
		b := min(chunk, n-lo)
		z := mat.NewDense(b, D, utils.NormalArray(b*D, g.src))
		probs, err := g.Decoder.DecodeBatch(z)
		if err != nil {
			return nil, err
		}
		for _, p := range probs {
			if err := checkDistribution(p); err != nil {
				return nil, err
			}
			out = append(out, utils.ArgMaxCols(p))
		}
	}
	return out, nil
}

// Generate returns n decoded strings.
func (g *Generator) Generate(n int) ([]string, error) {
	seqs, err := g.SampleSequences(n)
	if err != nil {
		return nil, err
	}
	return g.Vocab.SequencesToTexts(seqs), nil
}
