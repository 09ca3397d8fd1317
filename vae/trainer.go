package vae

import (
	"fmt"
	"math"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/QubitExplorer/AI-Models/optimizations"
	"github.com/QubitExplorer/AI-Models/utils"
	"gonum.org/v1/gonum/mat"
)

// Trainer drives Adam updates of a VAE. Per-sample gradients are spread over
// worker clones: worker w handles samples w, w+W, w+2W, ... of each batch and
// the partial sums are added in worker order, so a step is reproducible for a
// given seed whatever the scheduling.
type Trainer struct {
	Model *VAE
	Opt   *optimizations.Adam
	Steps int

	src     rand.Source
	workers []*VAE
	grads   [][]*mat.Dense
}

// EpochStats summarizes one pass over the data.
type EpochStats struct {
	Epoch    int
	Loss     Loss // sample-weighted mean over the epoch
	Steps    int
	Samples  int
	Duration time.Duration
}

// NewTrainer uses opt when given (e.g. restored from a checkpoint) and a fresh
// Adam from the model config otherwise. src feeds noise draws and shuffling.
func NewTrainer(m *VAE, opt *optimizations.Adam, src rand.Source) *Trainer {
	cfg := m.Config
	if opt == nil {
		opt = optimizations.NewAdam(m.Params(), cfg.LearningRate, cfg.AdamBeta1, cfg.AdamBeta2, cfg.AdamEps)
	}
	W := max(cfg.Workers, 1)
	tr := &Trainer{
		Model:   m,
		Opt:     opt,
		src:     src,
		workers: make([]*VAE, W),
		grads:   make([][]*mat.Dense, W),
	}
	for w := range tr.workers {
		tr.workers[w] = m.CloneForGradsOnly()
	}
	return tr
}

func zeroGrads(gs []*mat.Dense) {
	for _, g := range gs {
		g.Zero()
	}
}

// Step performs one optimizer update on batch and returns its mean loss.
func (tr *Trainer) Step(batch [][]int) (Loss, error) {
	if err := tr.Model.CheckBatch(batch); err != nil {
		return Loss{}, err
	}
	cfg := tr.Model.Config
	B, D := len(batch), cfg.LatentDim

	// all noise comes off the shared stream before fan-out
	eps := utils.NormalArray(B*D, tr.src)

	W := min(len(tr.workers), B)
	losses := make([]Loss, B)
	scale := 1 / float64(B)
	var wg sync.WaitGroup
	for w := 0; w < W; w++ {
		if tr.grads[w] == nil {
			tr.grads[w] = tr.Model.NewGrads()
		} else {
			zeroGrads(tr.grads[w])
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			for b := w; b < B; b += W {
				losses[b] = tr.workers[w].ForwardBackward(batch[b], eps[b*D:(b+1)*D], tr.grads[w], scale)
			}
		}()
	}
	wg.Wait()

	var mean Loss
	for _, l := range losses {
		mean = mean.add(l)
	}
	mean = mean.scale(scale)
	if math.IsNaN(mean.Total) || math.IsInf(mean.Total, 0) {
		return mean, fmt.Errorf("%w: step %d loss %v", ErrNonFinite, tr.Steps+1, mean.Total)
	}

	total := tr.grads[0]
	for w := 1; w < W; w++ {
		for i, g := range tr.grads[w] {
			total[i].Add(total[i], g)
		}
	}
	for i, g := range total {
		if !utils.IsFinite(g) {
			return mean, fmt.Errorf("%w: step %d gradient %d", ErrNonFinite, tr.Steps+1, i)
		}
	}
	if cfg.GradClip > 0 {
		s := utils.ClipGrads(cfg.GradClip, total...)
		if s < 1.0 && cfg.Debug && (tr.Steps+1)%cfg.DebugEvery == 0 {
			utils.Debugf("VAE: clipped grads by %.4f at step %d", s, tr.Steps+1)
		}
	}
	if err := tr.Opt.Step(tr.Model.Params(), total); err != nil {
		return mean, err
	}
	tr.Steps++
	if cfg.Debug && tr.Steps%cfg.DebugEvery == 0 {
		utils.Debugf("step %d loss=%.4f recon=%.4f kl=%.4f", tr.Steps, mean.Total, mean.Reconstruction, mean.KL)
	}
	return mean, nil
}

// Epoch makes one pass over seqs in BatchSize chunks (the last may be short),
// shuffled first when the config asks for it.
func (tr *Trainer) Epoch(seqs [][]int) (EpochStats, error) {
	cfg := tr.Model.Config
	start := time.Now()
	order := make([]int, len(seqs))
	for i := range order {
		order[i] = i
	}
	if cfg.Shuffle {
		rand.New(tr.src).Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })
	}

	var st EpochStats
	var sum Loss
	batch := make([][]int, 0, cfg.BatchSize)
	for lo := 0; lo < len(order); lo += cfg.BatchSize {
		hi := min(lo+cfg.BatchSize, len(order))
		batch = batch[:0]
		for _, i := range order[lo:hi] {
			batch = append(batch, seqs[i])
		}
		l, err := tr.Step(batch)
		if err != nil {
			return st, err
		}
		sum = sum.add(l.scale(float64(len(batch))))
		st.Steps++
		st.Samples += len(batch)
	}
	if st.Samples > 0 {
		st.Loss = sum.scale(1 / float64(st.Samples))
	}
	st.Duration = time.Since(start)
	return st, nil
}

// Fit runs cfg.Epochs epochs. onEpoch, if set, sees every epoch's stats as it
// finishes; an error from it stops training.
func (tr *Trainer) Fit(seqs [][]int, onEpoch func(EpochStats) error) ([]EpochStats, error) {
	if len(seqs) == 0 {
		return nil, fmt.Errorf("%w: no training sequences", ErrShape)
	}
	if err := tr.Model.CheckBatch(seqs); err != nil {
		return nil, err
	}
	var history []EpochStats
	for e := 1; e <= tr.Model.Config.Epochs; e++ {
		st, err := tr.Epoch(seqs)
		if err != nil {
			return history, fmt.Errorf("epoch %d: %w", e, err)
		}
		st.Epoch = e
		history = append(history, st)
		if onEpoch != nil {
			if err := onEpoch(st); err != nil {
				return history, err
			}
		}
	}
	return history, nil
}
