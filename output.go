package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/floats"
)

// lossPlot draws a crude vertical bar chart of per-epoch losses, scaled so the
// largest loss fills the full height.
func lossPlot(w io.Writer, values []float64) {
	const height = 10 // number of text rows
	n := len(values)
	if n == 0 {
		fmt.Fprintln(w, "no data to plot")
		return
	}
	top := floats.Max(values)
	if top <= 0 {
		top = 1
	}
	for row := height; row >= 1; row-- {
		threshold := top * float64(row) / float64(height)
		var sb strings.Builder
		for _, v := range values {
			if v >= threshold {
				sb.WriteString("█")
			} else {
				sb.WriteString(" ")
			}
		}
		fmt.Fprintln(w, sb.String())
	}
	// x-axis, epoch digit every 5 columns
	fmt.Fprintln(w, strings.Repeat("─", n))
	var sb strings.Builder
	for i := range values {
		if i%5 == 0 {
			sb.WriteString(strconv.Itoa((i + 1) % 10))
		} else {
			sb.WriteString(" ")
		}
	}
	fmt.Fprintln(w, sb.String())
}
