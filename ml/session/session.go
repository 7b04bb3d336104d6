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

// Package session manages the execution lifecycle of a classifier module:
// building its parallel forward graph and initializing its parameters, while
// tracking which parameters already received values so that repeated
// preparation calls never clobber restored or trained weights.
//
// A Session is a state machine over StateUnbuilt, StateBuilt,
// StateInferReady and StateTrainReady. PrepareForInference and
// PrepareForTraining are the only entry points driving transitions; a failed
// initialization leaves the session at StateBuilt so a retry is safe.
//
// Not safe for concurrent use: preparation calls must be serialized by the
// caller. Only the forward execution of the built graph is meant to be
// spread across workers.
package session

import (
	"github.com/barseq/barseq/graph"
	"github.com/barseq/barseq/ml/context"
	"github.com/barseq/barseq/ml/context/checkpoints"
	"github.com/barseq/barseq/ml/module"
	"github.com/barseq/barseq/types"
	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// State of a Session. Transitions are triggered only by Prepare* calls,
// never by batch conversion.
type State int

//go:generate go tool enumer -type=State -trimprefix=State session.go

const (
	// StateUnbuilt: no forward graph exists yet.
	StateUnbuilt State = iota

	// StateBuilt: the forward graph exists, but parameters are not (fully)
	// initialized for the requested mode.
	StateBuilt

	// StateInferReady: parameters initialized, inference graph current.
	StateInferReady

	// StateTrainReady: parameters initialized, training graph current.
	StateTrainReady
)

// Session drives a module through build and initialization. Create it with
// New and then call PrepareForInference or PrepareForTraining before
// executing the graph.
type Session struct {
	module *module.Module
	state  State

	// everBuilt stays true once the first graph build succeeds, across
	// later rebuilds. The first preparation after New always performs a
	// full initialization.
	everBuilt bool

	// inited records the scope-and-name of every parameter that already
	// received a value. It survives graph rebuilds: the incremental
	// initialization path only ever touches parameters not in this set.
	inited types.Set[string]

	// buildID identifies the current graph build, for logging and for
	// callers caching compiled artifacts per build.
	buildID      uuid.UUID
	graph        *graph.Graph
	placeholders *module.Placeholders
	outputs      *module.ParallelOutputs
	isTraining   bool

	checkpoint *checkpoints.Handler
}

// New creates an unbuilt Session for the module.
func New(m *module.Module) *Session {
	return &Session{
		module: m,
		state:  StateUnbuilt,
		inited: types.MakeSet[string](),
	}
}

// State returns the current lifecycle state.
func (s *Session) State() State { return s.state }

// Module returns the module the session manages.
func (s *Session) Module() *module.Module { return s.module }

// Graph returns the current forward graph, or nil before the first build.
func (s *Session) Graph() *graph.Graph { return s.graph }

// BuildID identifies the current graph build. It changes on every rebuild
// and is the zero UUID before the first one.
func (s *Session) BuildID() uuid.UUID { return s.buildID }

// Placeholders returns the input slots of the current graph, or nil before
// the first build.
func (s *Session) Placeholders() *module.Placeholders { return s.placeholders }

// Outputs returns the per-replica forward outputs of the current graph, or
// nil before the first build.
func (s *Session) Outputs() *module.ParallelOutputs { return s.outputs }

// Checkpoint returns the checkpoint handler, or nil if none was attached
// (no configured checkpoint directory, or only ignore_checkpoint
// preparations so far).
func (s *Session) Checkpoint() *checkpoints.Handler { return s.checkpoint }

// PrepareForInference builds the inference graph if needed and initializes
// parameters, advancing the session to StateInferReady.
//
// With reinitAll, every parameter is (re-)initialized. Otherwise the first
// preparation of the session performs a full initialization, and later ones
// only initialize parameters that never received a value; if there are none,
// the call is a logged no-op. With ignoreCheckpoint the configured
// checkpoint is not consulted and parameters are freshly initialized.
//
// On failure the state does not advance past StateBuilt and the call can be
// retried.
func (s *Session) PrepareForInference(reinitAll, ignoreCheckpoint bool) error {
	return s.prepare(false, reinitAll, ignoreCheckpoint)
}

// PrepareForTraining is PrepareForInference's counterpart for training: it
// builds the training graph (with losses) and advances the session to
// StateTrainReady under the same initialization rules.
func (s *Session) PrepareForTraining(reinitAll, ignoreCheckpoint bool) error {
	return s.prepare(true, reinitAll, ignoreCheckpoint)
}

func (s *Session) prepare(isTraining, reinitAll, ignoreCheckpoint bool) error {
	firstPrepare := !s.everBuilt
	if s.graph == nil || s.isTraining != isTraining {
		if err := s.build(isTraining); err != nil {
			return err
		}
	}
	s.state = StateBuilt

	target := s.targetVariables(reinitAll || firstPrepare)
	readyState := StateInferReady
	if isTraining {
		readyState = StateTrainReady
	}
	if len(target) == 0 {
		klog.Infof("session %s: parameters already initialized, nothing to do", s.buildID)
		s.state = readyState
		return nil
	}

	if err := s.initialize(target, ignoreCheckpoint); err != nil {
		return err
	}
	for _, v := range target {
		s.inited.Insert(v.ScopeAndName())
	}
	s.state = readyState
	ctx := s.module.Context()
	klog.V(1).Infof("session %s: %s, %d parameters initialized (%d values, %s)",
		s.buildID, s.state, len(target), ctx.NumParameters(), humanize.IBytes(uint64(ctx.Memory())))
	return nil
}

// build constructs a fresh parallel forward graph for the given mode. The
// inited set is deliberately kept: re-declaring the same parameters on a new
// graph does not lose their values or their initialized status.
func (s *Session) build(isTraining bool) error {
	name := "inference"
	if isTraining {
		name = "training"
	}
	g := graph.New(name)
	ph, outputs, err := s.module.ParallelForward(g, isTraining)
	if err != nil {
		if !s.everBuilt {
			s.state = StateUnbuilt
		} else {
			s.state = StateBuilt
		}
		return errors.WithMessagef(err, "building %s graph", name)
	}
	s.graph = g
	s.placeholders = ph
	s.outputs = outputs
	s.isTraining = isTraining
	s.everBuilt = true
	s.buildID = uuid.New()
	klog.V(1).Infof("session %s: built %s graph with %d nodes, %d replicas",
		s.buildID, name, g.NumNodes(), s.module.Config().NumWorkers())
	return nil
}

// targetVariables returns the parameters to initialize: all of them for a
// full initialization, otherwise the set difference between the declared
// parameters and the already initialized ones. For a full initialization
// the inited set is reset first.
func (s *Session) targetVariables(full bool) []*context.Variable {
	if full {
		s.inited = types.MakeSet[string]()
	}
	ctx := s.module.Context()
	all := types.MakeSet[string](ctx.NumVariables())
	ctx.EnumerateVariables(func(v *context.Variable) {
		all.Insert(v.ScopeAndName())
	})
	missing := all.Sub(s.inited)

	// Back to variables, in creation order.
	target := make([]*context.Variable, 0, len(missing))
	ctx.EnumerateVariables(func(v *context.Variable) {
		if missing.Has(v.ScopeAndName()) {
			target = append(target, v)
		}
	})
	return target
}

func (s *Session) initialize(target []*context.Variable, ignoreCheckpoint bool) error {
	ctx := s.module.Context()
	dir := s.module.Config().InitCheckpoint
	if ignoreCheckpoint || dir == "" {
		return ctx.InitializeVariablesFromScratch(target...)
	}
	if s.checkpoint == nil {
		handler, err := checkpoints.Build(ctx).Dir(dir).Done()
		if err != nil {
			return errors.WithMessagef(err, "attaching checkpoint from %q", dir)
		}
		s.checkpoint = handler
	}
	return ctx.InitializeVariables(target...)
}

// Save writes the current parameter values as a new checkpoint. It requires
// a configured checkpoint directory and a session past StateBuilt.
func (s *Session) Save() error {
	if s.state != StateInferReady && s.state != StateTrainReady {
		return errors.Errorf("session in state %s, must be prepared before saving", s.state)
	}
	if s.checkpoint == nil {
		dir := s.module.Config().InitCheckpoint
		if dir == "" {
			return errors.New("no checkpoint directory configured for the module")
		}
		handler, err := checkpoints.Build(s.module.Context()).Dir(dir).Done()
		if err != nil {
			return err
		}
		s.checkpoint = handler
	}
	return s.checkpoint.Save()
}
