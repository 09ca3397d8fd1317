package vae

import (
	"math/rand/v2"

	"github.com/QubitExplorer/AI-Models/utils"
	"gonum.org/v1/gonum/mat"
)

// Dense is a fully connected layer applied to every column of its input,
// so the same weights serve a single vector (x 1) or a whole sequence (x T).
type Dense struct {
	Inputs, Outputs int
	Weights         *mat.Dense // (out x in)
	Bias            *mat.Dense // (out x 1)
	Relu            bool

	// cache for backprop
	lastInput, preAct *mat.Dense
}

func NewDense(inputs, outputs int, relu bool, src rand.Source) *Dense {
	return &Dense{
		Inputs:  inputs,
		Outputs: outputs,
		Weights: mat.NewDense(outputs, inputs, utils.GlorotUniform(outputs*inputs, inputs, outputs, src)),
		Bias:    mat.NewDense(outputs, 1, nil),
		Relu:    relu,
	}
}

func (d *Dense) Forward(X *mat.Dense) *mat.Dense {
	d.lastInput = X
	lin := utils.ToDense(utils.Dot(d.Weights, X)) // (out x T)
	d.preAct = utils.AddBias(lin, d.Bias)
	if d.Relu {
		return utils.Apply(utils.ReluApply, d.preAct).(*mat.Dense)
	}
	return d.preAct
}

// Backward adds dW and db into g[0], g[1] (skipped when g is nil) and
// returns the gradient w.r.t. the input.
func (d *Dense) Backward(grad *mat.Dense, g []*mat.Dense) *mat.Dense {
	if d.Relu {
		grad = utils.Multiply(grad, utils.ReluPrime(d.preAct)).(*mat.Dense)
	}
	if g != nil {
		var dW mat.Dense
		dW.Mul(grad, d.lastInput.T())
		g[0].Add(g[0], &dW)
		utils.AddColSums(g[1], grad)
	}
	return utils.ToDense(utils.Dot(d.Weights.T(), grad))
}

func (d *Dense) Params() []*mat.Dense { return []*mat.Dense{d.Weights, d.Bias} }

func (d *Dense) cloneForGrads() *Dense {
	return &Dense{
		Inputs:  d.Inputs,
		Outputs: d.Outputs,
		Weights: d.Weights, // shared read-only
		Bias:    d.Bias,
		Relu:    d.Relu,
	}
}
