package vae

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/QubitExplorer/AI-Models/utils"
	"gonum.org/v1/gonum/mat"
)

func TestKLIsZeroAtPrior(t *testing.T) {
	mean := mat.NewDense(5, 1, nil)
	logVar := mat.NewDense(5, 1, nil)
	kl, dMean, dLogVar := KLDivergence(mean, logVar, 20)
	if kl != 0 {
		t.Fatalf("kl = %v, want 0", kl)
	}
	if mat.Sum(dMean) != 0 || mat.Sum(dLogVar) != 0 {
		t.Fatal("gradient at the prior should vanish")
	}
}

func TestKLPositiveAwayFromPrior(t *testing.T) {
	mean := mat.NewDense(2, 1, []float64{1, -0.5})
	logVar := mat.NewDense(2, 1, []float64{0.3, -1})
	kl, _, _ := KLDivergence(mean, logVar, 0)
	want := 0.0
	for k := 0; k < 2; k++ {
		m, lv := mean.At(k, 0), logVar.At(k, 0)
		want += -0.5 * (1 + lv - m*m - math.Exp(lv))
	}
	if kl <= 0 || math.Abs(kl-want) > 1e-12 {
		t.Fatalf("kl = %v, want %v", kl, want)
	}
}

func TestKLGradCheck(t *testing.T) {
	mean := mat.NewDense(3, 1, []float64{0.4, -1.2, 0.1})
	logVar := mat.NewDense(3, 1, []float64{-0.7, 0.9, 0.2})
	forward := func() float64 {
		kl, _, _ := KLDivergence(mean, logVar, 20)
		return kl
	}
	_, dMean, dLogVar := KLDivergence(mean, logVar, 20)
	for k := 0; k < 3; k++ {
		finiteDiffCheck(t, "mean", mean, dMean, forward, k, 0)
		finiteDiffCheck(t, "logVar", logVar, dLogVar, forward, k, 0)
	}
}

func TestLogVarClampKeepsKLFinite(t *testing.T) {
	mean := mat.NewDense(1, 1, nil)
	logVar := mat.NewDense(1, 1, []float64{1e6})
	kl, _, dLogVar := KLDivergence(mean, logVar, 20)
	if math.IsInf(kl, 0) || math.IsNaN(kl) {
		t.Fatalf("kl not finite: %v", kl)
	}
	if dLogVar.At(0, 0) != 0 {
		t.Fatalf("clamped entry gradient = %v, want 0", dLogVar.At(0, 0))
	}

	// without the clamp exp overflows
	kl, _, _ = KLDivergence(mean, logVar, 0)
	if !math.IsInf(kl, 1) {
		t.Fatalf("unclamped kl = %v, want +Inf", kl)
	}
}

func TestReconstructionLossNonNegative(t *testing.T) {
	src := rand.NewPCG(21, 22)
	for trial := 0; trial < 20; trial++ {
		probs := utils.ColSoftmax(randDense(6, 4, src))
		target := []int{trial % 6, 0, 5, 2}
		loss, _ := ReconstructionLoss(probs, target, false)
		if loss < 0 {
			t.Fatalf("negative loss %v", loss)
		}
	}
}

func TestReconstructionLossZeroOnPerfectMatch(t *testing.T) {
	probs := mat.NewDense(3, 2, []float64{
		1, 0,
		0, 0,
		0, 1,
	})
	loss, d := ReconstructionLoss(probs, []int{0, 2}, false)
	if loss != 0 {
		t.Fatalf("loss = %v, want 0", loss)
	}
	if mat.Sum(d) != 0 {
		t.Fatal("gradient should vanish on a perfect match")
	}
}

func TestReconstructionLossFloorsProbabilities(t *testing.T) {
	probs := mat.NewDense(2, 1, []float64{1, 0})
	loss, d := ReconstructionLoss(probs, []int{1}, false)
	if math.Abs(loss+math.Log(probFloor)) > 1e-12 {
		t.Fatalf("loss = %v, want %v", loss, -math.Log(probFloor))
	}
	if d.At(0, 0) != 0 || d.At(1, 0) != 0 {
		t.Fatal("floored position should carry no gradient")
	}
}

func TestReconstructionLossGradCheck(t *testing.T) {
	src := rand.NewPCG(23, 24)
	logits := randDense(5, 3, src)
	target := []int{4, 0, 1}
	forward := func() float64 {
		l, _ := ReconstructionLoss(utils.ColSoftmax(logits), target, false)
		return l
	}
	_, d := ReconstructionLoss(utils.ColSoftmax(logits), target, false)
	checkCorners(t, "logits", logits, d, forward)
	finiteDiffCheck(t, "logits", logits, d, forward, 4, 0)
}

func TestReconstructionLossMask(t *testing.T) {
	probs := utils.ColSoftmax(randDense(4, 3, rand.NewPCG(25, 26)))
	target := []int{2, 0, 0}
	full, _ := ReconstructionLoss(probs, target, false)
	masked, d := ReconstructionLoss(probs, target, true)
	want := -math.Log(probs.At(2, 0))
	if math.Abs(masked-want) > 1e-12 || masked >= full {
		t.Fatalf("masked = %v, want %v (full %v)", masked, want, full)
	}
	for r := 0; r < 4; r++ {
		if d.At(r, 1) != 0 || d.At(r, 2) != 0 {
			t.Fatal("pad positions should carry no gradient when masked")
		}
	}
}
