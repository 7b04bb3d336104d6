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
	"encoding/json"
	"fmt"
	"os"

	"github.com/barseq/barseq/ml/data"
	"github.com/pkg/errors"
)

// DefaultBatchSize used when Config.BatchSize is left zero.
const DefaultBatchSize = 32

// Config holds the classifier module configuration. It is an explicit, typed
// struct passed by value: a zero value plus the fields one cares about is a
// valid starting point, see Validate for the defaults filled in.
type Config struct {
	// MaxSeqLength is the maximum number of input time spots, including the
	// aggregate position. A sample can carry up to MaxSeqLength-1 units.
	MaxSeqLength int

	// MaxUnitLength is the exact number of values in each unit (e.g.
	// sub-prices per time spot).
	MaxUnitLength int

	// LabelSize fixes the label vocabulary capacity. If zero, the capacity
	// is inferred from the first encoded batch.
	LabelSize int

	// BatchSize configured for training/inference. The effective batch size
	// may shrink when a smaller trailing batch is converted.
	BatchSize int

	// Truncate selects which units of an over-long sample are dropped.
	Truncate data.TruncateMethod

	// WorkerIDs lists the parallel execution workers (e.g. one entry per
	// accelerator). Empty means a single worker.
	WorkerIDs []int

	// DropPooler makes the encoder skip its pooling layer and hand the raw
	// aggregate position to the decoder.
	DropPooler bool

	// InitCheckpoint is the path to the checkpoint directory used for
	// initialization, consumed by the lifecycle layer. Empty means no
	// checkpoint: all parameters are freshly initialized.
	InitCheckpoint string
}

// Validate checks the configuration and fills in defaults. It returns the
// validated copy.
func (c Config) Validate() (Config, error) {
	if c.MaxSeqLength < 2 {
		return c, errors.Errorf("Config.MaxSeqLength=%d, must be at least 2 (one unit plus the aggregate position)", c.MaxSeqLength)
	}
	if c.MaxUnitLength < 1 {
		return c, errors.Errorf("Config.MaxUnitLength=%d, must be at least 1", c.MaxUnitLength)
	}
	if c.LabelSize < 0 {
		return c, errors.Errorf("Config.LabelSize=%d, must be non-negative", c.LabelSize)
	}
	if c.BatchSize < 0 {
		return c, errors.Errorf("Config.BatchSize=%d, must be non-negative", c.BatchSize)
	}
	if c.BatchSize == 0 {
		c.BatchSize = DefaultBatchSize
	}
	if !c.Truncate.IsATruncateMethod() {
		return c, errors.Errorf("Config.Truncate=%d is not a valid truncate method", c.Truncate)
	}
	return c, nil
}

// NumWorkers returns the number of parallel execution workers, at least 1.
func (c Config) NumWorkers() int {
	if len(c.WorkerIDs) == 0 {
		return 1
	}
	return len(c.WorkerIDs)
}

// ArchConfig is the architecture descriptor of the shared encoder network.
// Its internal meaning belongs to the encoder implementation; the module uses
// it only to size placeholders and derive the per-layer weight decay
// schedule. The JSON format follows the usual BERT-style config file.
type ArchConfig struct {
	HiddenSize            int     `json:"hidden_size"`
	NumHiddenLayers       int     `json:"num_hidden_layers"`
	NumAttentionHeads     int     `json:"num_attention_heads"`
	IntermediateSize      int     `json:"intermediate_size"`
	MaxPositionEmbeddings int     `json:"max_position_embeddings"`
	HiddenDropoutProb     float64 `json:"hidden_dropout_prob"`
	AttentionDropoutProb  float64 `json:"attention_probs_dropout_prob"`
}

// ArchConfigFromJSONFile reads an ArchConfig from a JSON file.
func ArchConfigFromJSONFile(path string) (ArchConfig, error) {
	var arch ArchConfig
	contents, err := os.ReadFile(path)
	if err != nil {
		return arch, errors.Wrapf(err, "failed to read architecture config from %q", path)
	}
	if err = json.Unmarshal(contents, &arch); err != nil {
		return arch, errors.Wrapf(err, "failed to parse architecture config from %q", path)
	}
	if arch.NumHiddenLayers <= 0 || arch.HiddenSize <= 0 {
		return arch, errors.Errorf("architecture config %q must set positive num_hidden_layers and hidden_size", path)
	}
	return arch, nil
}

// DecayPowers derives the per-layer weight-decay schedule from the number of
// hidden layers: deeper layers (closer to the input) decay with higher
// powers. Keys are scope fragments matched against parameter names.
func DecayPowers(numHiddenLayers int) map[string]int {
	powers := map[string]int{
		"/embeddings": numHiddenLayers + 2,
		"/pooler/":    1,
		"cls/":        0,
	}
	for layer := 0; layer < numHiddenLayers; layer++ {
		powers[fmt.Sprintf("/layer_%d/", layer)] = numHiddenLayers - layer + 1
	}
	return powers
}
