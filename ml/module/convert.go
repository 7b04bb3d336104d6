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

package module

import (
	"github.com/barseq/barseq/ml/data"
	"github.com/pkg/errors"
)

// ConvertRequest is one batch conversion request.
//
// Exactly the Sequences field carries inputs; the Raw field exists so
// callers that feed generic sample containers get a contract error instead
// of silent misinterpretation.
type ConvertRequest struct {
	// Raw, if non-nil, is rejected: this module family takes continuous
	// unit sequences, not tokenizable raw samples.
	Raw []any

	// Sequences are the input samples, each a sequence of equally sized
	// numeric units: [sample][unit][feature].
	Sequences [][][]float32

	// Labels, one per sample. Required when IsTraining; optional
	// otherwise (when given, LabelIDs and SampleWeight are populated).
	Labels []any

	// SampleWeights, one per sample; nil means uniform weight 1.
	SampleWeights []float64

	// IsTraining marks the batch as a training batch.
	IsTraining bool

	// IsParallel marks the conversion as running alongside others; it
	// requires the label vocabulary to have a fixed capacity so that
	// concurrent conversions cannot race growing it.
	IsParallel bool
}

// EncodedBatch is the tensor-ready form of a converted batch, aligned with
// the module's placeholders.
type EncodedBatch struct {
	// NumSamples in the batch.
	NumSamples int

	// Values is [NumSamples][MaxSeqLength-1][MaxUnitLength] float32.
	Values [][][]float32

	// Mask is [NumSamples][MaxSeqLength] int32.
	Mask [][]int32

	// LabelIDs is [NumSamples] int32, nil when no labels were given.
	LabelIDs []int32

	// SampleWeight is [NumSamples] float32, nil when neither training
	// nor labeled.
	SampleWeight []float32
}

// Convert encodes a batch of raw samples into the tensors the module's
// placeholders consume. It fails fast with a *ContractError on contract
// violations, and with a *data.EncodingError identifying the offending
// sample on malformed inputs; on any error no partial batch is returned and
// the vocabulary is left unchanged by the failing call's label pass.
//
// Convert may shrink the module's effective batch size when the batch is
// smaller than the configured one, never below the worker count.
func (m *Module) Convert(req *ConvertRequest) (*EncodedBatch, error) {
	if len(req.Raw) > 0 {
		return nil, contractErrorf(
			"this module takes sequences of numeric units (use Sequences), not raw samples: got %d raw samples", len(req.Raw))
	}
	n := len(req.Sequences)
	if n == 0 {
		return nil, contractErrorf("empty batch: no sequences to convert")
	}
	if req.IsTraining && len(req.Labels) == 0 {
		return nil, contractErrorf("training conversion requires labels, got none for %d samples", n)
	}
	if len(req.Labels) > 0 && len(req.Labels) != n {
		return nil, contractErrorf("got %d labels for %d samples", len(req.Labels), n)
	}
	if req.IsParallel && !m.vocab.Frozen() {
		return nil, contractErrorf(
			"parallel conversion requires a fixed label capacity (LabelSize > 0 or a previously built vocabulary)")
	}

	cfg := m.config
	batch := &EncodedBatch{
		NumSamples: n,
		Values:     make([][][]float32, n),
		Mask:       make([][]int32, n),
	}
	for i, sample := range req.Sequences {
		values, mask, err := data.EncodeSequence(sample, cfg.MaxSeqLength, cfg.MaxUnitLength, cfg.Truncate)
		if err != nil {
			var encErr *data.EncodingError
			if errors.As(err, &encErr) {
				encErr.SampleIndex = i
				return nil, encErr
			}
			return nil, errors.WithMessagef(err, "encoding sample %d", i)
		}
		batch.Values[i] = values
		batch.Mask[i] = mask
	}

	if len(req.Labels) > 0 {
		labelIDs, err := m.vocab.Encode(req.Labels)
		if err != nil {
			return nil, err
		}
		batch.LabelIDs = labelIDs
	}

	if req.IsTraining || len(req.Labels) > 0 {
		weights, err := data.NormalizeSampleWeights(req.SampleWeights, n)
		if err != nil {
			return nil, err
		}
		batch.SampleWeight = make([]float32, n)
		for i, w := range weights {
			batch.SampleWeight[i] = float32(w)
		}
	}

	// Small trailing batches shrink the effective batch size, but never
	// below one sample per worker.
	if n < m.batchSize {
		effective := n
		if workers := cfg.NumWorkers(); effective < workers {
			effective = workers
		}
		m.batchSize = effective
	}
	return batch, nil
}
