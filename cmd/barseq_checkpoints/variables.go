package main

import (
	"fmt"
	"math"
	"strings"

	"github.com/barseq/barseq/ml/context/checkpoints"
	"github.com/barseq/barseq/types/shapes"
	"github.com/barseq/barseq/types/tensors"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"gonum.org/v1/gonum/floats"
)

// Summary prints parameter counts and memory usage of the checkpoint.
func Summary(handler *checkpoints.Handler) {
	var numVariables int
	var numValues, memory uint64
	handler.EnumerateLoaded(func(name string, value *tensors.Tensor) {
		numVariables++
		numValues += uint64(value.Size())
		memory += uint64(value.Shape().Memory())
	})

	fmt.Println(titleStyle.Render("Summary"))
	table := newPlainTable(false, lipgloss.Left, lipgloss.Right)
	table.Row("checkpoint", handler.Dir())
	table.Row("# variables", humanize.Comma(int64(numVariables)))
	table.Row("# values", humanize.Comma(int64(numValues)))
	table.Row("memory", humanize.IBytes(memory))
	fmt.Println(table.Render())
}

// ListVariables prints one row per saved parameter, with its shape, size and
// simple value statistics (mean absolute value, root-mean-square and max
// absolute value, for float parameters).
func ListVariables(handler *checkpoints.Handler) {
	fmt.Println(titleStyle.Render("Variables"))
	table := newPlainTable(true, lipgloss.Left, lipgloss.Left, lipgloss.Left, lipgloss.Right)
	table.Headers("Scope", "Name", "Shape", "Size", "Bytes", "MAV", "RMS", "MaxAV")
	handler.EnumerateLoaded(func(scopeAndName string, value *tensors.Tensor) {
		scope, name := splitScopeAndName(scopeAndName)
		var mav, rms, maxAV string
		if flat := flatAsFloat64(value); len(flat) > 0 {
			m, r, x := floatStats(flat)
			mav, rms, maxAV = fmt.Sprintf("%.3g", m), fmt.Sprintf("%.3g", r), fmt.Sprintf("%.3g", x)
		}
		table.Row(scope, name, value.Shape().String(),
			humanize.Comma(int64(value.Size())),
			humanize.Bytes(uint64(value.Shape().Memory())),
			mav, rms, maxAV)
	})
	fmt.Println(table.Render())
}

func splitScopeAndName(scopeAndName string) (scope, name string) {
	idx := strings.LastIndex(scopeAndName, "/")
	if idx < 0 {
		return "", scopeAndName
	}
	return scopeAndName[:idx], scopeAndName[idx+1:]
}

func flatAsFloat64(value *tensors.Tensor) []float64 {
	switch value.DType() {
	case shapes.Float32:
		data := tensors.FlatData[float32](value)
		flat := make([]float64, len(data))
		for i, v := range data {
			flat[i] = float64(v)
		}
		return flat
	case shapes.Float64:
		return tensors.CopyFlatData[float64](value)
	default:
		return nil
	}
}

func floatStats(flat []float64) (mav, rms, maxAV float64) {
	abs := make([]float64, len(flat))
	for i, v := range flat {
		abs[i] = math.Abs(v)
	}
	mav = floats.Sum(abs) / float64(len(abs))
	rms = floats.Norm(flat, 2) / math.Sqrt(float64(len(flat)))
	maxAV = floats.Max(abs)
	return
}
