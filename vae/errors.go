package vae

import "errors"

var (
	// ErrShape is returned when a batch does not match the model dimensions.
	ErrShape = errors.New("vae: shape mismatch")
	// ErrNonFinite is returned when a training step produces a NaN or Inf loss.
	ErrNonFinite = errors.New("vae: non-finite loss")
)
