package vae

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"math/rand/v2"
	"os"
	"path/filepath"

	"github.com/QubitExplorer/AI-Models/optimizations"
	"github.com/QubitExplorer/AI-Models/params"
	"gonum.org/v1/gonum/mat"
)

type denseData struct {
	R, C int
	Data []float64
}

// checkpoint lists matrices in Params() order, so only the config is needed
// to rebuild the layer structure on load.
type checkpoint struct {
	Config params.TrainingConfig
	Params []denseData

	// Adam, empty when saved without an optimizer
	HasAdam   bool
	AdamT     int
	AdamM     []denseData
	AdamV     []denseData
	AdamLR    float64
	AdamB1    float64
	AdamB2    float64
	AdamEps   float64
	AdamDecay float64
}

func toData(ms []*mat.Dense) []denseData {
	out := make([]denseData, len(ms))
	for i, m := range ms {
		r, c := m.Dims()
		raw := mat.DenseCopyOf(m).RawMatrix()
		out[i] = denseData{R: r, C: c, Data: append([]float64(nil), raw.Data...)}
	}
	return out
}

// fillFrom copies saved values into existing matrices so shared pointers stay valid.
func fillFrom(dst []*mat.Dense, src []denseData, what string) error {
	if len(dst) != len(src) {
		return fmt.Errorf("load: %s count mismatch (have %d, file %d)", what, len(dst), len(src))
	}
	for i, d := range src {
		r, c := dst[i].Dims()
		if r != d.R || c != d.C || len(d.Data) != r*c {
			return fmt.Errorf("load: %s %d shape mismatch (have %dx%d, file %dx%d)", what, i, r, c, d.R, d.C)
		}
		dst[i].Copy(mat.NewDense(d.R, d.C, d.Data))
	}
	return nil
}

// Save writes the model weights, its config and (if opt is non-nil) the Adam
// state to path, creating parent directories as needed.
func Save(path string, m *VAE, opt *optimizations.Adam) error {
	data := checkpoint{Config: m.Config, Params: toData(m.Params())}
	if opt != nil {
		data.HasAdam = true
		data.AdamT = opt.T
		data.AdamM = toData(opt.M)
		data.AdamV = toData(opt.V)
		data.AdamLR = opt.LearningRate
		data.AdamB1, data.AdamB2 = opt.Beta1, opt.Beta2
		data.AdamEps = opt.Eps
		data.AdamDecay = opt.WeightDecay
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(data); err != nil {
		return err
	}
	return os.WriteFile(path, buf.Bytes(), 0644)
}

// Load restores a model saved by Save. The optimizer is nil when the
// checkpoint carries no Adam state.
func Load(path string) (*VAE, *optimizations.Adam, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, err
	}
	var data checkpoint
	if err := gob.NewDecoder(bytes.NewReader(raw)).Decode(&data); err != nil {
		return nil, nil, fmt.Errorf("decode %s: %w", path, err)
	}

	// weights are overwritten right away; the source only shapes the layers
	m, err := New(data.Config, rand.NewPCG(0, 0))
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", path, err)
	}
	ps := m.Params()
	if err := fillFrom(ps, data.Params, "param"); err != nil {
		return nil, nil, err
	}
	if !data.HasAdam {
		return m, nil, nil
	}
	opt := optimizations.NewAdam(ps, data.AdamLR, data.AdamB1, data.AdamB2, data.AdamEps)
	opt.WeightDecay = data.AdamDecay
	opt.T = data.AdamT
	if err := fillFrom(opt.M, data.AdamM, "adam m"); err != nil {
		return nil, nil, err
	}
	if err := fillFrom(opt.V, data.AdamV, "adam v"); err != nil {
		return nil, nil, err
	}
	return m, opt, nil
}
