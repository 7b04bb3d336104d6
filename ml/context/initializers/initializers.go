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

// Package initializers include several weight initializers, to be used with context.
// They implement context.VariableInitializer.
package initializers

import (
	"math/rand"

	"github.com/barseq/barseq/types/shapes"
	"github.com/barseq/barseq/types/tensors"
	"github.com/pkg/errors"
)

// VariableInitializer builds a concrete value to initialize a variable of the
// given shape. It is configured in the Context.
type VariableInitializer func(shape shapes.Shape) (*tensors.Tensor, error)

// Zeros initializes variables with zero.
func Zeros(shape shapes.Shape) (*tensors.Tensor, error) {
	return tensors.Zeros(shape), nil
}

// Ones initializes variables with one.
func Ones(shape shapes.Shape) (*tensors.Tensor, error) {
	return fill(shape, 1)
}

func fill(shape shapes.Shape, value float64) (*tensors.Tensor, error) {
	switch shape.DType {
	case shapes.Float32:
		flat := make([]float32, shape.Size())
		for i := range flat {
			flat[i] = float32(value)
		}
		return tensors.FromFlatAndDimensions(flat, shape.Dimensions...), nil
	case shapes.Float64:
		flat := make([]float64, shape.Size())
		for i := range flat {
			flat[i] = value
		}
		return tensors.FromFlatAndDimensions(flat, shape.Dimensions...), nil
	case shapes.Int32:
		flat := make([]int32, shape.Size())
		for i := range flat {
			flat[i] = int32(value)
		}
		return tensors.FromFlatAndDimensions(flat, shape.Dimensions...), nil
	case shapes.Int64:
		flat := make([]int64, shape.Size())
		for i := range flat {
			flat[i] = int64(value)
		}
		return tensors.FromFlatAndDimensions(flat, shape.Dimensions...), nil
	}
	return nil, errors.Errorf("initializers: cannot fill variable of shape %s", shape)
}

// NoSeed can be given to the random initializers to get a non-deterministic seed.
const NoSeed = int64(0)

// RandomUniformFn returns an initializer that generates random uniform values
// from [min, max). If initialSeed is NoSeed, a random seed is used instead.
func RandomUniformFn(initialSeed int64, min, max float64) VariableInitializer {
	rng := newRng(initialSeed)
	return func(shape shapes.Shape) (*tensors.Tensor, error) {
		return randomFloats(shape, func() float64 {
			return min + rng.Float64()*(max-min)
		})
	}
}

// RandomNormalFn returns an initializer that generates random normal values
// with the given standard deviation and mean set to 0. If initialSeed is
// NoSeed, a random seed is used instead.
func RandomNormalFn(initialSeed int64, stddev float64) VariableInitializer {
	rng := newRng(initialSeed)
	return func(shape shapes.Shape) (*tensors.Tensor, error) {
		return randomFloats(shape, func() float64 {
			return rng.NormFloat64() * stddev
		})
	}
}

func newRng(initialSeed int64) *rand.Rand {
	if initialSeed == NoSeed {
		return rand.New(rand.NewSource(rand.Int63()))
	}
	return rand.New(rand.NewSource(initialSeed))
}

func randomFloats(shape shapes.Shape, sample func() float64) (*tensors.Tensor, error) {
	switch shape.DType {
	case shapes.Float32:
		flat := make([]float32, shape.Size())
		for i := range flat {
			flat[i] = float32(sample())
		}
		return tensors.FromFlatAndDimensions(flat, shape.Dimensions...), nil
	case shapes.Float64:
		flat := make([]float64, shape.Size())
		for i := range flat {
			flat[i] = sample()
		}
		return tensors.FromFlatAndDimensions(flat, shape.Dimensions...), nil
	}
	return nil, errors.Errorf("initializers: cannot initialize non-float variable of shape %s with random values", shape)
}
