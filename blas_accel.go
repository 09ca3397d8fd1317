//go:build cblas

package main

import (
	"gonum.org/v1/gonum/blas/blas64"
	"gonum.org/v1/netlib/blas/netlib"
)

// Building with `-tags cblas` routes every gonum matrix product through the
// system CBLAS (OpenBLAS, or Accelerate on macOS via CGO_LDFLAGS).
func init() {
	blas64.Use(netlib.Implementation{})
}
