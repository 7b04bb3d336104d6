/*
 *	Copyright 2025 The barseq Authors
 *
 *	Licensed under the Apache License, Version 2.0 (the "License");
 *	you may not use this file except in compliance with the License.
 *	You may obtain a copy of the License at
 *
 *	http://www.apache.org/licenses/LICENSE-2.0
 *
 *	Unless required by applicable law or agreed to in writing, software
 *	distributed under the License is distributed on an "AS IS" BASIS,
 *	WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 *	See the License for the specific language governing permissions and
 *	limitations under the License.
 */

// Package data implements the input side of the classification pipeline:
// converting raw samples -- sequences of fixed-width numeric vectors, e.g.
// intraday price bars -- and their labels into the padded, masked values the
// model placeholders consume.
//
// The building blocks are pure and free of model state: EncodeSequence
// handles one sample, Vocabulary maps labels to stable ids, and
// NormalizeSampleWeights fills in or validates per-sample weights. Batch
// orchestration (and the model-owned state it touches) lives in the module
// package.
package data

import (
	"fmt"

	"github.com/pkg/errors"
)

// TruncateMethod selects which units of an over-long sample are dropped so it
// fits the model's sequence capacity.
type TruncateMethod int

//go:generate go tool enumer -type=TruncateMethod -trimprefix=Truncate encode.go

const (
	// TruncateLIFO keeps the most recent units, dropping the earliest ones.
	// This is the default for time series, where the most recent bars carry
	// the signal.
	TruncateLIFO TruncateMethod = iota

	// TruncateFIFO keeps the earliest units, dropping the latest ones.
	TruncateFIFO
)

// EncodingError reports a malformed sample. It carries the offending sample
// and the underlying cause; the message includes a literal example of the
// expected input format.
type EncodingError struct {
	// SampleIndex within the batch, or -1 when the sample was encoded alone.
	SampleIndex int

	// Sample is the offending input, as given.
	Sample any

	// Err is the underlying cause.
	Err error
}

// Error implements the error interface.
func (e *EncodingError) Error() string {
	position := ""
	if e.SampleIndex >= 0 {
		position = fmt.Sprintf(" #%d", e.SampleIndex)
	}
	return fmt.Sprintf("wrong input format for sample%s (%v): %v -- an example: "+
		"`X = [[[0.0023, -0.0001, 0.0015, ...], ...], ...]`", position, e.Sample, e.Err)
}

// Unwrap returns the underlying cause.
func (e *EncodingError) Unwrap() error { return e.Err }

// EncodeSequence converts one sample -- an ordered sequence of units, each a
// vector of exactly maxUnitLength numbers -- into a fixed-shape value matrix
// and its mask:
//
//   - values has maxSeqLength-1 rows of maxUnitLength columns: the kept units
//     in order, followed by zero rows.
//   - mask has maxSeqLength entries: one 1 per kept unit, then one extra 1
//     for the aggregate position consumed by the decoder, then 0s.
//
// Samples longer than maxSeqLength-1 units are truncated according to method.
// A sample with no units, or with a unit of the wrong width, fails with an
// *EncodingError.
//
// EncodeSequence is a pure function of its inputs.
func EncodeSequence(sample [][]float32, maxSeqLength, maxUnitLength int, method TruncateMethod) (values [][]float32, mask []int32, err error) {
	if maxSeqLength < 2 || maxUnitLength < 1 {
		return nil, nil, errors.Errorf("invalid encoding geometry: maxSeqLength=%d (must be >= 2), maxUnitLength=%d (must be >= 1)",
			maxSeqLength, maxUnitLength)
	}
	if len(sample) == 0 {
		return nil, nil, &EncodingError{
			SampleIndex: -1,
			Sample:      sample,
			Err:         errors.New("sample has no units"),
		}
	}
	for i, unit := range sample {
		if len(unit) != maxUnitLength {
			return nil, nil, &EncodingError{
				SampleIndex: -1,
				Sample:      sample,
				Err: errors.Errorf("unit %d has %d values, but every unit must have exactly maxUnitLength=%d values",
					i, len(unit), maxUnitLength),
			}
		}
	}

	kept := truncateUnits(sample, maxSeqLength-1, method)

	values = make([][]float32, maxSeqLength-1)
	mask = make([]int32, maxSeqLength)
	for i, unit := range kept {
		row := make([]float32, maxUnitLength)
		copy(row, unit)
		values[i] = row
		mask[i] = 1
	}
	// The aggregate position is always present.
	mask[len(kept)] = 1
	for i := len(kept); i < maxSeqLength-1; i++ {
		values[i] = make([]float32, maxUnitLength)
	}
	return values, mask, nil
}

// truncateUnits returns the units that fit in maxUnits, selected per method.
func truncateUnits(units [][]float32, maxUnits int, method TruncateMethod) [][]float32 {
	if len(units) <= maxUnits {
		return units
	}
	switch method {
	case TruncateFIFO:
		return units[:maxUnits]
	default: // TruncateLIFO
		return units[len(units)-maxUnits:]
	}
}
