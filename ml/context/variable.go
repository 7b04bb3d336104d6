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

package context

import (
	"fmt"

	"github.com/barseq/barseq/graph"
	"github.com/barseq/barseq/types/shapes"
	"github.com/barseq/barseq/types/tensors"
	"github.com/gomlx/exceptions"
	"github.com/pkg/errors"
)

// Variable is a global parameter of the model: a named, shaped value shared
// among computation graphs and across multiple executions of the same graph.
// It is defined in a scope in a Context.
//
// A Variable may exist without a concrete value: it is declared during graph
// building and receives a value later, either restored from a checkpoint (see
// Loader) or produced by its initializer. HasValue reports which state it is
// in; the lifecycle layer uses that to decide what still needs initializing.
type Variable struct {
	ctx         *Context
	name, scope string

	// Trainable indicates whether the variable is touched by trainers of the
	// model. Non-trainable variables still belong to the parameter set.
	Trainable bool

	shape       shapes.Shape
	initializer VariableInitializer
	value       *tensors.Tensor
}

// Name of the variable within its scope.
func (v *Variable) Name() string {
	v.AssertValid()
	return v.name
}

// Scope where the variable was created.
func (v *Variable) Scope() string {
	v.AssertValid()
	return v.scope
}

// ScopeAndName is the fully qualified name of the variable, unique within a
// Context. It is the durable identity used to track which parameters have
// already received a value.
func (v *Variable) ScopeAndName() string {
	v.AssertValid()
	if v.scope == ScopeSeparator {
		return v.scope + v.name
	}
	return v.scope + ScopeSeparator + v.name
}

// String implements stringer.
func (v *Variable) String() string {
	if v == nil || !v.shape.Ok() {
		return "INVALID (NIL) VARIABLE"
	}
	return fmt.Sprintf("%s: %s", v.ScopeAndName(), v.shape)
}

// AssertValid panics if the variable is in an invalid state: nil or shape not set.
func (v *Variable) AssertValid() {
	if v == nil {
		exceptions.Panicf("context.Variable is nil")
	}
	if !v.shape.Ok() {
		exceptions.Panicf("context.Variable has no shape")
	}
}

// Shape returns the variable shape.
func (v *Variable) Shape() shapes.Shape {
	if v == nil {
		return shapes.Shape{}
	}
	return v.shape
}

// HasValue returns whether the variable holds a concrete value -- set by a
// checkpoint restoration, an explicit SetValue or an initialization pass.
func (v *Variable) HasValue() bool {
	return v != nil && v.value != nil
}

// Value returns the tensor holding the variable value, or nil if the variable
// has not been initialized yet.
func (v *Variable) Value() *tensors.Tensor {
	v.AssertValid()
	return v.value
}

// SetValue updates the tensor holding the variable value. The shape must
// match the variable's declared shape.
func (v *Variable) SetValue(value *tensors.Tensor) error {
	v.AssertValid()
	if !value.Shape().Equal(v.shape) {
		return errors.Errorf("variable %q has shape %s, cannot set value of shape %s",
			v.ScopeAndName(), v.shape, value.Shape())
	}
	v.value = value
	return nil
}

// Initialize gives the variable a freshly initialized value, overwriting any
// current one. Callers that must not clobber restored values check HasValue
// first -- that is the lifecycle layer's job, not this method's.
func (v *Variable) Initialize() error {
	v.AssertValid()
	if v.initializer == nil {
		if v.value != nil {
			// Variables created with a concrete value keep it: their value
			// is their initializer.
			return nil
		}
		return errors.Errorf("variable %q has no initializer and no value", v.ScopeAndName())
	}
	value, err := v.initializer(v.shape)
	if err != nil {
		return errors.WithMessagef(err, "initializing variable %q", v.ScopeAndName())
	}
	v.value = value
	return nil
}

// SetTrainable sets the variable trainable status. Returns itself, so calls
// can be cascaded.
func (v *Variable) SetTrainable(trainable bool) *Variable {
	v.AssertValid()
	v.Trainable = trainable
	return v
}

// ParameterPrefix is used to prefix graph parameter names of variables, so
// they never collide with the module's input placeholders.
const ParameterPrefix = "var:"

// ParameterName used when declaring a parameter node in a graph to access the
// variable.
func (v *Variable) ParameterName() string {
	return ParameterPrefix + v.ScopeAndName()
}

// ParamNode returns the node of graph g that corresponds to the parameter fed
// with the variable value when the graph is executed. If it hasn't been
// declared on g yet, it is declared now.
func (v *Variable) ParamNode(g *graph.Graph) *graph.Node {
	v.AssertValid()
	g.AssertValid()
	if node := g.ParameterByName(v.ParameterName()); node != nil {
		return node
	}
	return g.Parameter(v.ParameterName(), v.shape)
}
