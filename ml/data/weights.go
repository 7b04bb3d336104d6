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

package data

import (
	"slices"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
)

// NormalizeSampleWeights fills in or validates per-sample weights for a batch
// of n samples. If weights is nil, every sample gets weight 1.0. If given,
// its length must be exactly n, and the weights must be finite and
// non-negative.
func NormalizeSampleWeights(weights []float64, n int) ([]float64, error) {
	if weights == nil {
		normalized := make([]float64, n)
		for i := range normalized {
			normalized[i] = 1.0
		}
		return normalized, nil
	}
	if len(weights) != n {
		return nil, errors.Errorf("got %d sample weights for %d samples, lengths must match", len(weights), n)
	}
	if len(weights) == 0 {
		return []float64{}, nil
	}
	if floats.HasNaN(weights) {
		return nil, errors.New("sample weights contain NaN")
	}
	if min := floats.Min(weights); min < 0 {
		return nil, errors.Errorf("sample weights must be non-negative, got %v", min)
	}
	return slices.Clone(weights), nil
}
