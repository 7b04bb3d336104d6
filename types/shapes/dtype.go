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

package shapes

import (
	"github.com/x448/float16"
)

// DType indicates the type of the unit element of a Tensor (or of a node in a
// declared computation graph). Only the types needed by the encoding pipeline
// and model parameters are enumerated.
type DType int32

//go:generate go tool enumer -type=DType dtype.go

const (
	InvalidDType DType = iota
	Bool
	Int32
	Int64
	Float16
	Float32
	Float64
)

// Aliases, following the usual accelerator naming.
const (
	I32 = Int32
	I64 = Int64
	F16 = Float16
	F32 = Float32
	F64 = Float64
)

// IsFloat returns whether dtype is a supported float type.
func (dtype DType) IsFloat() bool {
	return dtype == Float16 || dtype == Float32 || dtype == Float64
}

// IsInt returns whether dtype is a supported integer type.
func (dtype DType) IsInt() bool {
	return dtype == Int32 || dtype == Int64
}

// IsSupported returns whether dtype can be used as the element type of a Tensor.
func (dtype DType) IsSupported() bool {
	return dtype == Bool || dtype.IsFloat() || dtype.IsInt()
}

// Memory returns the number of bytes needed to store one element of dtype.
func (dtype DType) Memory() uintptr {
	switch dtype {
	case Bool:
		return 1
	case Float16:
		return 2
	case Int32, Float32:
		return 4
	case Int64, Float64:
		return 8
	}
	return 0
}

// Supported represents the Go types that can back a Tensor. Used as a generics
// constraint. float16.Float16 is the github.com/x448/float16 representation.
type Supported interface {
	bool | int32 | int64 | float16.Float16 | float32 | float64
}

// Number represents the Go numeric types supported. Used as a generics constraint.
type Number interface {
	int32 | int64 | float32 | float64
}

// DTypeGeneric returns the DType corresponding to the Go type given as the
// generic parameter.
func DTypeGeneric[T Supported]() DType {
	var t T
	switch (any(t)).(type) {
	case bool:
		return Bool
	case int32:
		return Int32
	case int64:
		return Int64
	case float16.Float16:
		return Float16
	case float32:
		return Float32
	case float64:
		return Float64
	}
	return InvalidDType
}
