package vae

import (
	"fmt"
	"math/rand/v2"

	"github.com/QubitExplorer/AI-Models/params"
	"github.com/QubitExplorer/AI-Models/utils"
	"gonum.org/v1/gonum/mat"
)

const encoderParams = embeddingParams + bilstmParams + 2*denseParams

// VAE joins an Encoder and a Decoder. Both halves are held by reference, so an
// optimizer step on Params() changes the weights either half sees.
type VAE struct {
	Config  params.TrainingConfig
	Encoder *Encoder
	Decoder *Decoder
}

// Loss of one sample, or the mean over a batch.
type Loss struct {
	Total, Reconstruction, KL float64
}

func (l Loss) add(o Loss) Loss {
	return Loss{l.Total + o.Total, l.Reconstruction + o.Reconstruction, l.KL + o.KL}
}

func (l Loss) scale(s float64) Loss {
	return Loss{l.Total * s, l.Reconstruction * s, l.KL * s}
}

// New initializes a model for cfg, drawing every weight from src.
func New(cfg params.TrainingConfig, src rand.Source) (*VAE, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &VAE{
		Config:  cfg,
		Encoder: NewEncoder(cfg, src),
		Decoder: NewDecoder(cfg, src),
	}, nil
}

// Reconfigure swaps in cfg for a model built (or loaded) with another config.
// Only training and runtime settings may differ; layer shapes must match.
func (m *VAE) Reconfigure(cfg params.TrainingConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	old := m.Config
	if cfg.MaxLength != old.MaxLength || cfg.VocabSize != old.VocabSize || cfg.LatentDim != old.LatentDim ||
		cfg.EmbedDim != old.EmbedDim || cfg.HiddenSize != old.HiddenSize {
		return fmt.Errorf("%w: model is L=%d V=%d D=%d E=%d H=%d, config asks for L=%d V=%d D=%d E=%d H=%d",
			ErrShape, old.MaxLength, old.VocabSize, old.LatentDim, old.EmbedDim, old.HiddenSize,
			cfg.MaxLength, cfg.VocabSize, cfg.LatentDim, cfg.EmbedDim, cfg.HiddenSize)
	}
	m.Config = cfg
	if m.Encoder != nil {
		m.Encoder.LogVarClamp = cfg.LogVarClamp
	}
	return nil
}

// Params lists encoder weights first, then decoder weights.
func (m *VAE) Params() []*mat.Dense {
	return append(m.Encoder.Params(), m.Decoder.Params()...)
}

// NewGrads returns zeroed matrices shaped like Params().
func (m *VAE) NewGrads() []*mat.Dense {
	ps := m.Params()
	gs := make([]*mat.Dense, len(ps))
	for i, p := range ps {
		gs[i] = utils.ZerosLike(p)
	}
	return gs
}

// CloneForGradsOnly shares every weight with m but keeps private layer
// caches, so clones can run ForwardBackward concurrently.
func (m *VAE) CloneForGradsOnly() *VAE {
	return &VAE{
		Config:  m.Config,
		Encoder: m.Encoder.cloneForGrads(),
		Decoder: m.Decoder.cloneForGrads(),
	}
}

// CheckBatch verifies every sequence has MaxLength ids within [0, classes).
func (m *VAE) CheckBatch(batch [][]int) error {
	if len(batch) == 0 {
		return fmt.Errorf("%w: empty batch", ErrShape)
	}
	classes := m.Config.OutputClasses()
	for b, seq := range batch {
		if len(seq) != m.Config.MaxLength {
			return fmt.Errorf("%w: sequence %d has length %d, want %d", ErrShape, b, len(seq), m.Config.MaxLength)
		}
		for t, id := range seq {
			if id < 0 || id >= classes {
				return fmt.Errorf("%w: sequence %d position %d id %d outside [0, %d)", ErrShape, b, t, id, classes)
			}
		}
	}
	return nil
}

// ForwardBackward runs one sample through the model with noise eps. When g is
// non-nil every gradient, multiplied by scale, is added into g (ordered as
// Params()). The returned loss is unscaled.
func (m *VAE) ForwardBackward(ids []int, eps []float64, g []*mat.Dense, scale float64) Loss {
	z, mean, logVar := m.Encoder.Forward(ids, eps)
	probs := m.Decoder.Forward(z)
	rec, dLogits := ReconstructionLoss(probs, ids, m.Config.MaskPadding)
	kl, dMean, dLogVar := KLDivergence(mean, logVar, m.Config.LogVarClamp)
	loss := Loss{Total: rec + kl, Reconstruction: rec, KL: kl}
	if g == nil {
		return loss
	}
	dLogits.Scale(scale, dLogits)
	dMean.Scale(scale, dMean)
	dLogVar.Scale(scale, dLogVar)

	dz := m.Decoder.Backward(dLogits, g[encoderParams:])
	m.Encoder.Backward(dz, dMean, dLogVar, g[:encoderParams])
	return loss
}

// Encode returns z, mean and logVar for a batch, each (B x latent). Noise is
// drawn fresh from src on every call.
func (m *VAE) Encode(batch [][]int, src rand.Source) (z, mean, logVar *mat.Dense, err error) {
	if err := m.CheckBatch(batch); err != nil {
		return nil, nil, nil, err
	}
	B, D := len(batch), m.Config.LatentDim
	eps := utils.NormalArray(B*D, src)
	z = mat.NewDense(B, D, nil)
	mean = mat.NewDense(B, D, nil)
	logVar = mat.NewDense(B, D, nil)
	for b, seq := range batch {
		zb, mb, lb := m.Encoder.Forward(seq, eps[b*D:(b+1)*D])
		z.SetRow(b, zb.RawMatrix().Data)
		mean.SetRow(b, mb.RawMatrix().Data)
		logVar.SetRow(b, lb.RawMatrix().Data)
	}
	return z, mean, logVar, nil
}

// Decode returns one (classes x L) probability matrix per row of z.
func (m *VAE) Decode(z *mat.Dense) ([]*mat.Dense, error) {
	return m.Decoder.DecodeBatch(z)
}

// Evaluate is the mean loss over batch without touching any gradient.
func (m *VAE) Evaluate(batch [][]int, src rand.Source) (Loss, error) {
	if err := m.CheckBatch(batch); err != nil {
		return Loss{}, err
	}
	D := m.Config.LatentDim
	eps := utils.NormalArray(len(batch)*D, src)
	var sum Loss
	for b, seq := range batch {
		sum = sum.add(m.ForwardBackward(seq, eps[b*D:(b+1)*D], nil, 0))
	}
	return sum.scale(1 / float64(len(batch))), nil
}
