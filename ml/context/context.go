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

// Package context defines the Context and Variable types: Context organizes
// the global parameters (weights) of a model across the computation graphs it
// spawns, and Variable manages the storage of their concrete values.
//
// A model spawns multiple computation graphs over its lifetime -- e.g. one
// forward graph per replica, rebuilt when switching between training and
// inference -- and all of them share the same variable values. The Context is
// the owner of those values: graphs reference variables by their parameter
// name, and concrete values are fed at execution time.
//
// Variables are organized in "scopes" (like directories): the Context object
// is a thin reference holding the current scope plus a pointer to the shared
// data. Context.In("layer_1") returns a new reference inside that scope,
// sharing all data with the original.
//
// A Loader (see SetLoader) can be configured to feed values restored from a
// checkpoint when variables are initialized: see the checkpoints sub-package.
package context

import (
	"fmt"
	"strings"

	"github.com/barseq/barseq/ml/context/initializers"
	"github.com/barseq/barseq/types/shapes"
	"github.com/barseq/barseq/types/tensors"
	"github.com/pkg/errors"
)

// VariableInitializer builds a concrete value to initialize a variable of a
// given shape. It is defined in the Context.
type VariableInitializer = initializers.VariableInitializer

// Context organizes the variables (global parameters) of a model. It is a
// thin scoped reference to a shared data component: copies made by In or
// WithInitializer share the same variables.
type Context struct {
	// scope for currently created variables.
	scope string

	// reuse of variables, if set to true.
	reuse bool

	// initializer used for variables created without a value.
	initializer VariableInitializer

	// data component shared among the connected Context references.
	data *contextData
}

// scopedVariableMap maps name to variable within a scope.
type scopedVariableMap map[string]*Variable

type contextData struct {
	// variablesMap organized per scope.
	variablesMap map[string]scopedVariableMap

	// variables is a plain list of all variables, in creation order, so
	// enumeration is deterministic.
	variables []*Variable

	// loader, if set, is consulted for previously saved variable values.
	loader Loader

	// needsInitialization indicates whether there are variables without a
	// concrete value in the context.
	needsInitialization bool
}

// Loader can be implemented by any library providing loading of variable
// values into a Context -- typically restoring a checkpoint. Implementations
// provide values on demand, as variables are initialized.
//
// An example of a loader is in the checkpoints sub-package.
type Loader interface {
	// LoadVariable tries to load the value of the variable v, usually
	// identified by its scope and name. If the loader has no value for it,
	// it returns found=false and initialization continues as usual.
	LoadVariable(v *Variable) (value *tensors.Tensor, found bool, err error)
}

// ScopeSeparator is used between levels of scope. Scope names cannot use this character.
const ScopeSeparator = "/"

// New constructs a new and empty context.
func New() *Context {
	return &Context{
		scope:       ScopeSeparator,
		initializer: initializers.RandomUniformFn(initializers.NoSeed, -0.1, 0.1),
		data: &contextData{
			variablesMap: make(map[string]scopedVariableMap),
		},
	}
}

// copy creates a copy of the Context, sharing the same "data" component.
func (ctx *Context) copy() *Context {
	ctx2 := &Context{}
	*ctx2 = *ctx
	return ctx2
}

// Scope returns the full current scope path.
func (ctx *Context) Scope() string { return ctx.scope }

// EscapeScopeName replaces ScopeSeparator in the string by "_".
func EscapeScopeName(scopeName string) string {
	return strings.ReplaceAll(scopeName, ScopeSeparator, "_")
}

// In returns a new reference to the Context within the extra given scope. No
// ScopeSeparator ("/") is allowed in scope.
func (ctx *Context) In(scope string) *Context {
	if scope == "" || strings.Contains(scope, ScopeSeparator) {
		panic(errors.Errorf("context: invalid scope element %q", scope))
	}
	var newScope string
	if ctx.scope == ScopeSeparator {
		newScope = fmt.Sprintf("%s%s", ScopeSeparator, scope)
	} else {
		newScope = fmt.Sprintf("%s%s%s", ctx.scope, ScopeSeparator, scope)
	}
	return ctx.InAbsPath(newScope)
}

// InAbsPath returns a new reference to the Context with the given absolute
// scope path. It must start with ScopeSeparator.
func (ctx *Context) InAbsPath(scopePath string) *Context {
	if !strings.HasPrefix(scopePath, ScopeSeparator) {
		panic(errors.Errorf("context: absolute scope path must start with %q, got %q", ScopeSeparator, scopePath))
	}
	if _, found := ctx.data.variablesMap[scopePath]; !found {
		ctx.data.variablesMap[scopePath] = make(scopedVariableMap)
	}
	ctx2 := ctx.copy()
	ctx2.scope = scopePath
	return ctx2
}

// Reuse returns a new reference to the Context that reuses existing variables:
// VariableWithShape returns the previously created variable instead of
// failing. Used when re-declaring the same forward graph.
func (ctx *Context) Reuse() *Context {
	if ctx.reuse {
		return ctx
	}
	ctx2 := ctx.copy()
	ctx2.reuse = true
	return ctx2
}

// IsReuse returns whether Context is marked for reuse.
func (ctx *Context) IsReuse() bool { return ctx.reuse }

// WithInitializer returns a new reference to the Context, with the default
// variable initializer set.
func (ctx *Context) WithInitializer(initializer VariableInitializer) *Context {
	if initializer == nil {
		panic(errors.New("context: Context.WithInitializer passed a nil initializer"))
	}
	ctx2 := ctx.copy()
	ctx2.initializer = initializer
	return ctx2
}

// InspectVariable returns the variable with the given scope and name, or nil
// if no such variable was created. It bypasses the reuse checks, so it should
// not be used while building models.
func (ctx *Context) InspectVariable(scope, name string) *Variable {
	scopeVars, ok := ctx.data.variablesMap[scope]
	if !ok {
		return nil
	}
	return scopeVars[name]
}

func (ctx *Context) findVariableInScope(name string) *Variable {
	return ctx.InspectVariable(ctx.scope, name)
}

func (ctx *Context) setVariableInScope(name string, v *Variable) {
	vSet, found := ctx.data.variablesMap[ctx.scope]
	if !found {
		vSet = make(scopedVariableMap)
		ctx.data.variablesMap[ctx.scope] = vSet
	}
	vSet[name] = v
	ctx.data.variables = append(ctx.data.variables, v)
}

// VariableWithShape creates (or reuses, with Context.Reuse) a variable with
// the given shape in the current scope. The variable is created without a
// concrete value: it receives one on the next initialization pass (see
// InitializeVariables), either from the configured Loader or from the
// context initializer. By default, variables are marked as trainable.
func (ctx *Context) VariableWithShape(name string, shape shapes.Shape) (*Variable, error) {
	if !shape.Ok() || shape.IsDynamic() {
		return nil, errors.Errorf("context: variable %q in scope %q needs a concrete shape, got %s", name, ctx.scope, shape)
	}
	v := ctx.findVariableInScope(name)
	if v != nil {
		if !ctx.reuse {
			return nil, errors.Errorf("context: variable %q in scope %q already exists -- if this was deliberate, use Context.Reuse()", name, ctx.scope)
		}
		if !shape.Equal(v.shape) {
			return nil, errors.Errorf("context: requested to reuse variable %q in scope %q, but with a different shape from original: previous shape=%s, requested shape=%s",
				name, ctx.scope, v.shape, shape)
		}
		return v, nil
	}

	v = &Variable{
		ctx:         ctx,
		name:        name,
		scope:       ctx.scope,
		shape:       shape.Clone(),
		Trainable:   true,
		initializer: ctx.initializer,
	}
	ctx.setVariableInScope(name, v)
	ctx.data.needsInitialization = true
	return v, nil
}

// VariableWithValue creates a variable initialized with the given concrete
// value in the current scope. By default, variables are marked as trainable.
func (ctx *Context) VariableWithValue(name string, value any) (*Variable, error) {
	valueT, ok := value.(*tensors.Tensor)
	if !ok {
		var err error
		valueT, err = tensors.FromValue(value)
		if err != nil {
			return nil, errors.WithMessagef(err, "context: failed to parse value for variable %q in scope %q", name, ctx.scope)
		}
	}

	v := ctx.findVariableInScope(name)
	if v != nil {
		if !ctx.reuse {
			return nil, errors.Errorf("context: variable %q in scope %q already exists", name, ctx.scope)
		}
		if !valueT.Shape().Equal(v.shape) {
			return nil, errors.Errorf("context: requested to reuse variable %q in scope %q with a value of different shape: previous shape=%s, value shape=%s",
				name, ctx.scope, v.shape, valueT.Shape())
		}
		return v, nil
	}

	v = &Variable{
		ctx:       ctx,
		name:      name,
		scope:     ctx.scope,
		shape:     valueT.Shape().Clone(),
		value:     valueT,
		Trainable: true,
	}
	ctx.setVariableInScope(name, v)
	return v, nil
}

// EnumerateVariables calls fn for each variable in the context, in creation
// order, so the order of visitation is deterministic.
func (ctx *Context) EnumerateVariables(fn func(v *Variable)) {
	for _, v := range ctx.data.variables {
		fn(v)
	}
}

// NumVariables return the number of variables in this Context.
func (ctx *Context) NumVariables() int {
	return len(ctx.data.variables)
}

// NumParameters returns the summed-up sizes of all variables. It ignores the
// DType, so a float64 counts as much as an int32.
func (ctx *Context) NumParameters() int {
	total := 0
	ctx.EnumerateVariables(func(v *Variable) {
		total += v.Shape().Size()
	})
	return total
}

// Memory returns the total number of bytes summed across all variables. It
// does not include associated pointers and structures, just the raw data.
func (ctx *Context) Memory() uintptr {
	total := uintptr(0)
	ctx.EnumerateVariables(func(v *Variable) {
		total += v.Shape().Memory()
	})
	return total
}

// NeedsInitialization returns whether there are variables without a concrete
// value in the context.
func (ctx *Context) NeedsInitialization() bool {
	return ctx.data.needsInitialization
}

// UninitializedVariables returns the variables that do not yet hold a
// concrete value, in creation order.
func (ctx *Context) UninitializedVariables() []*Variable {
	var missing []*Variable
	ctx.EnumerateVariables(func(v *Variable) {
		if !v.HasValue() {
			missing = append(missing, v)
		}
	})
	return missing
}

// InitializeVariables gives a concrete value to the given variables (to all
// variables without a value, if none are given). If a Loader is configured,
// values found by it take precedence over the variable initializer; loading
// failures or shape mismatches abort the initialization with an error, and
// the remaining variables are left untouched.
func (ctx *Context) InitializeVariables(vars ...*Variable) error {
	return ctx.initialize(true, vars)
}

// InitializeVariablesFromScratch is like InitializeVariables, but never
// consults the Loader: all given variables get freshly initialized values,
// overwriting any value they currently hold.
func (ctx *Context) InitializeVariablesFromScratch(vars ...*Variable) error {
	return ctx.initialize(false, vars)
}

func (ctx *Context) initialize(useLoader bool, vars []*Variable) error {
	if len(vars) == 0 {
		vars = ctx.UninitializedVariables()
	}
	for _, v := range vars {
		if useLoader && ctx.data.loader != nil {
			value, found, err := ctx.data.loader.LoadVariable(v)
			if err != nil {
				return errors.WithMessagef(err, "loading variable %q", v.ScopeAndName())
			}
			if found {
				if !value.Shape().Equal(v.shape) {
					return errors.Errorf("loading of variable %q returned shape %s, but variable was created "+
						"with shape %s -- did some hyperparameter change since the variable was saved?",
						v.ScopeAndName(), value.Shape(), v.shape)
				}
				v.value = value
				continue
			}
		}
		if err := v.Initialize(); err != nil {
			return err
		}
	}
	ctx.data.needsInitialization = len(ctx.UninitializedVariables()) > 0
	return nil
}

// Loader returns the currently configured Loader for this context, or nil.
func (ctx *Context) Loader() Loader {
	return ctx.data.loader
}

// SetLoader configures the given loader to be used as the default Loader for
// this Context. It is consulted during InitializeVariables: values it finds
// take precedence over the variable initializers.
//
// Notice that the loader is part of the "data" component of the Context, so
// it is shared among all connected context references.
func (ctx *Context) SetLoader(loader Loader) {
	ctx.data.loader = loader
}
