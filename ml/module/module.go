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

// Package module implements the single-label sequence classifier module: the
// owner of the label vocabulary, the model variables and the input contract.
//
// The module composes two collaborators it knows only by interface -- the
// shared Encoder network and the classification Decoder -- into forward
// computations, optionally replicated across parallel workers. It also hosts
// the batch conversion pipeline (see Convert) that turns raw samples into the
// tensors its declared placeholders consume.
//
// The module itself never transitions lifecycle states: building graphs and
// initializing variables on it is the session package's business.
package module

import (
	"fmt"

	"github.com/barseq/barseq/graph"
	"github.com/barseq/barseq/ml/context"
	"github.com/barseq/barseq/ml/data"
	"github.com/barseq/barseq/types/shapes"
	"github.com/pkg/errors"
)

// Placeholder names declared by the module. The values fed to them are
// produced by Convert.
const (
	InputValuesName  = "input_values"
	InputMaskName    = "input_mask"
	LabelIDsName     = "label_ids"
	SampleWeightName = "sample_weight"
)

// ContractError reports a fail-fast violation of the module's calling
// contract: wrong input modality, missing labels when training, or parallel
// conversion without a fixed label capacity. It is never retried.
type ContractError struct {
	Reason string
}

// Error implements the error interface.
func (e *ContractError) Error() string { return e.Reason }

func contractErrorf(format string, args ...any) error {
	return &ContractError{Reason: fmt.Sprintf(format, args...)}
}

// Encoder is the shared encoder network collaborator. Its internals
// (attention layers, pooling math) are outside this package: it registers its
// computation on the graph and its parameters on the context, and hands back
// the pooled output node -- its fixed-size summary of the input sequence.
type Encoder interface {
	Forward(g *graph.Graph, ctx *context.Context, values, mask *graph.Node, isTraining bool) (pooled *graph.Node, err error)
}

// Decoder is the classification decoder collaborator. It consumes the
// encoder's pooled output and the label placeholders, returning the training
// loss (nil when not training) and the named output tensors (probabilities,
// predictions, ...).
type Decoder interface {
	Forward(g *graph.Graph, ctx *context.Context, pooled, labelIDs, sampleWeight *graph.Node, isTraining bool) (loss *graph.Node, outputs map[string]*graph.Node, err error)
}

// Module is a single-label classifier over sequences of fixed-width numeric
// units. It owns the label vocabulary and the variable context, both of which
// persist across repeated convert/inference calls for the module's lifetime.
//
// Not safe for concurrent use: batch encoding, vocabulary mutation and graph
// building are single-threaded by design; only the forward execution is
// spread across workers, outside this package.
type Module struct {
	config Config
	arch   ArchConfig

	encoder Encoder
	decoder Decoder

	ctx   *context.Context
	vocab *data.Vocabulary

	// batchSize currently in effect; shrinks for small trailing batches.
	batchSize int

	// decayPowers derived from the architecture, used by optimizers.
	decayPowers map[string]int
}

// New creates a Module from the validated config, the architecture
// descriptor and the encoder/decoder collaborators.
func New(config Config, arch ArchConfig, encoder Encoder, decoder Decoder) (*Module, error) {
	config, err := config.Validate()
	if err != nil {
		return nil, err
	}
	if encoder == nil || decoder == nil {
		return nil, errors.New("module.New: encoder and decoder must both be given")
	}
	return &Module{
		config:      config,
		arch:        arch,
		encoder:     encoder,
		decoder:     decoder,
		ctx:         context.New(),
		vocab:       data.NewVocabulary(config.LabelSize),
		batchSize:   config.BatchSize,
		decayPowers: DecayPowers(arch.NumHiddenLayers),
	}, nil
}

// Config returns the module configuration (the validated copy).
func (m *Module) Config() Config { return m.config }

// Arch returns the architecture descriptor.
func (m *Module) Arch() ArchConfig { return m.arch }

// Context returns the variable context owned by the module.
func (m *Module) Context() *context.Context { return m.ctx }

// Vocabulary returns the label vocabulary owned by the module.
func (m *Module) Vocabulary() *data.Vocabulary { return m.vocab }

// BatchSize returns the effective batch size currently in effect.
func (m *Module) BatchSize() int { return m.batchSize }

// DecayPowers returns the per-layer weight-decay schedule derived from the
// architecture descriptor.
func (m *Module) DecayPowers() map[string]int { return m.decayPowers }

// Placeholders are the module's declared input slots on a graph.
type Placeholders struct {
	Values       *graph.Node // float32 [batch, MaxSeqLength-1, MaxUnitLength]
	Mask         *graph.Node // int32   [batch, MaxSeqLength]
	LabelIDs     *graph.Node // int32   [batch]
	SampleWeight *graph.Node // float32 [batch]
}

// Placeholders declares the module's input contract on the given graph: the
// named tensor slots with the shapes of the encoded batch, batch axis
// dynamic.
func (m *Module) Placeholders(g *graph.Graph) *Placeholders {
	cfg := m.config
	return &Placeholders{
		Values:       g.Parameter(InputValuesName, shapes.Make(shapes.F32, shapes.DynamicDim, cfg.MaxSeqLength-1, cfg.MaxUnitLength)),
		Mask:         g.Parameter(InputMaskName, shapes.Make(shapes.I32, shapes.DynamicDim, cfg.MaxSeqLength)),
		LabelIDs:     g.Parameter(LabelIDsName, shapes.Make(shapes.I32, shapes.DynamicDim)),
		SampleWeight: g.Parameter(SampleWeightName, shapes.Make(shapes.F32, shapes.DynamicDim)),
	}
}

// ForwardOutputs is the result of composing decoder(encoder(inputs)).
type ForwardOutputs struct {
	// Loss of the replica, nil when the graph is not a training graph.
	Loss *graph.Node

	// Outputs maps names to output nodes (probabilities, predictions, ...).
	Outputs map[string]*graph.Node
}

// Forward composes the forward computation decoder(encoder(inputs)) on the
// graph, using the given placeholders. Variables are declared on the
// module's context: use ctx for the first construction and ctx.Reuse() for
// re-declarations of the same parameters (see ParallelForward).
func (m *Module) Forward(g *graph.Graph, ctx *context.Context, ph *Placeholders, isTraining bool) (*ForwardOutputs, error) {
	pooled, err := m.encoder.Forward(g, ctx, ph.Values, ph.Mask, isTraining)
	if err != nil {
		return nil, errors.WithMessage(err, "encoder forward construction")
	}
	loss, outputs, err := m.decoder.Forward(g, ctx, pooled, ph.LabelIDs, ph.SampleWeight, isTraining)
	if err != nil {
		return nil, errors.WithMessage(err, "decoder forward construction")
	}
	return &ForwardOutputs{Loss: loss, Outputs: outputs}, nil
}

// ParallelOutputs is the result of replicating the forward computation across
// the configured workers.
type ParallelOutputs struct {
	// Losses holds one loss node per replica, in WorkerIDs order; entries
	// are nil when the graph is not a training graph. Reducing them across
	// replicas is the executor's business, not the module's.
	Losses []*graph.Node

	// Outputs of the first replica.
	Outputs map[string]*graph.Node
}

// ParallelForward declares the module placeholders on the graph and builds
// one forward computation per configured worker, all sharing the same
// parameter set: the first replica declares the variables, the following
// ones reuse them.
func (m *Module) ParallelForward(g *graph.Graph, isTraining bool) (*Placeholders, *ParallelOutputs, error) {
	ph := m.Placeholders(g)
	numReplicas := m.config.NumWorkers()
	parallel := &ParallelOutputs{Losses: make([]*graph.Node, numReplicas)}
	alreadyDeclared := m.ctx.NumVariables() > 0
	for replica := 0; replica < numReplicas; replica++ {
		ctx := m.ctx
		if replica > 0 || alreadyDeclared {
			// Re-declarations (later replicas, or rebuilding the graph for a
			// different mode) share the existing parameter set.
			ctx = ctx.Reuse()
		}
		outputs, err := m.Forward(g, ctx, ph, isTraining)
		if err != nil {
			return nil, nil, errors.WithMessagef(err, "replica %d of %d", replica, numReplicas)
		}
		parallel.Losses[replica] = outputs.Loss
		if replica == 0 {
			parallel.Outputs = outputs.Outputs
		}
	}
	return ph, parallel, nil
}
