package vae

import (
	"math"

	"github.com/QubitExplorer/AI-Models/IO"
	"gonum.org/v1/gonum/mat"
)

// probabilities are floored here before the log, as Keras does
const probFloor = 1e-7

// ReconstructionLoss is the categorical cross-entropy of target under probs
// (classes x L), summed over positions. With maskPad, padding positions are
// left out of both the loss and the gradient.
//
// The returned gradient is w.r.t. the logits that produced probs.
func ReconstructionLoss(probs *mat.Dense, target []int, maskPad bool) (float64, *mat.Dense) {
	C, L := probs.Dims()
	dLogits := mat.NewDense(C, L, nil)
	loss := 0.0
	for t := 0; t < L; t++ {
		y := target[t]
		if maskPad && y == IO.PadID {
			continue
		}
		p := probs.At(y, t)
		if p < probFloor {
			loss -= math.Log(probFloor)
			continue // flat below the floor
		}
		loss -= math.Log(p)
		for c := 0; c < C; c++ {
			dLogits.Set(c, t, probs.At(c, t))
		}
		dLogits.Set(y, t, p-1)
	}
	return loss, dLogits
}

// KLDivergence is -0.5 * sum(1 + lv - mean^2 - exp(lv)) against N(0, I),
// with lv clamped to [-bound, bound] when bound > 0.
func KLDivergence(mean, logVar *mat.Dense, bound float64) (kl float64, dMean, dLogVar *mat.Dense) {
	D, _ := mean.Dims()
	dMean = mat.NewDense(D, 1, nil)
	dLogVar = mat.NewDense(D, 1, nil)
	for k := 0; k < D; k++ {
		m := mean.At(k, 0)
		lv, inside := clampLogVar(logVar.At(k, 0), bound)
		ev := math.Exp(lv)
		kl += -0.5 * (1 + lv - m*m - ev)
		dMean.Set(k, 0, m)
		if inside {
			dLogVar.Set(k, 0, 0.5*(ev-1))
		}
	}
	return kl, dMean, dLogVar
}
