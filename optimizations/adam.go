package optimizations

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// AdamUpdateInPlace applies one bias-corrected step:
// p -= lr * (mhat/(sqrt(vhat)+eps) + wd * p).
func AdamUpdateInPlace(
	p, g, m, v *mat.Dense,
	t int,
	lr, beta1, beta2, eps, weightDecay float64,
) {
	pr, pc := p.Dims()
	if gr, gc := g.Dims(); gr != pr || gc != pc {
		panic("adamUpdateInPlace: grad shape mismatch")
	}
	if mr, mc := m.Dims(); mr != pr || mc != pc {
		panic("adamUpdateInPlace: m shape mismatch")
	}
	if vr, vc := v.Dims(); vr != pr || vc != pc {
		panic("adamUpdateInPlace: v shape mismatch")
	}
	b1t := math.Pow(beta1, float64(t))
	b2t := math.Pow(beta2, float64(t))
	c1 := 1.0 / (1.0 - b1t)
	c2 := 1.0 / (1.0 - b2t)
	for i := 0; i < pr; i++ {
		for j := 0; j < pc; j++ {
			gij := g.At(i, j)
			mij := beta1*m.At(i, j) + (1.0-beta1)*gij
			vij := beta2*v.At(i, j) + (1.0-beta2)*gij*gij
			mhat := mij * c1
			vhat := vij * c2
			denom := math.Sqrt(vhat) + eps
			update := mhat/denom + weightDecay*p.At(i, j)
			m.Set(i, j, mij)
			v.Set(i, j, vij)
			p.Set(i, j, p.At(i, j)-lr*update)
		}
	}
}

// Adam keeps first/second moments for an ordered parameter list.
// The order of params passed to Step must match the order given to NewAdam.
type Adam struct {
	LearningRate float64
	Beta1, Beta2 float64
	Eps          float64
	WeightDecay  float64

	T    int
	M, V []*mat.Dense
}

func NewAdam(params []*mat.Dense, lr, beta1, beta2, eps float64) *Adam {
	a := &Adam{
		LearningRate: lr,
		Beta1:        beta1,
		Beta2:        beta2,
		Eps:          eps,
		M:            make([]*mat.Dense, len(params)),
		V:            make([]*mat.Dense, len(params)),
	}
	for i, p := range params {
		r, c := p.Dims()
		a.M[i] = mat.NewDense(r, c, nil)
		a.V[i] = mat.NewDense(r, c, nil)
	}
	return a
}

// Step updates every parameter in place from its gradient.
func (a *Adam) Step(params, grads []*mat.Dense) error {
	if len(params) != len(grads) || len(params) != len(a.M) {
		return fmt.Errorf("adam: %d params, %d grads, %d moment slots", len(params), len(grads), len(a.M))
	}
	a.T++
	for i := range params {
		AdamUpdateInPlace(params[i], grads[i], a.M[i], a.V[i], a.T,
			a.LearningRate, a.Beta1, a.Beta2, a.Eps, a.WeightDecay)
	}
	return nil
}

// SetHyper replaces the step settings while keeping the moments and step
// count, e.g. when a resumed run asks for a different learning rate.
func (a *Adam) SetHyper(lr, beta1, beta2, eps float64) {
	a.LearningRate = lr
	a.Beta1, a.Beta2 = beta1, beta2
	a.Eps = eps
}
