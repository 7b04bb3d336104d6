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

// Package tensors implements a dense multi-dimensional array type held in
// host memory, the unit of data exchanged between the encoding pipeline, the
// model variables and the checkpoint boundary.
//
// A Tensor is immutable in shape after creation. Its flat data is stored
// row-major (the last axis is the fastest varying one).
package tensors

import (
	"bytes"
	"encoding/gob"
	"reflect"
	"slices"

	"github.com/barseq/barseq/types/shapes"
	"github.com/gomlx/exceptions"
	"github.com/pkg/errors"
	"github.com/x448/float16"
)

// Tensor holds a dense array of a shapes.Supported type, along with its Shape.
//
// Create it with FromFlatAndDimensions, FromValue or Zeros. Access the data
// with CopyFlatData or FlatData.
type Tensor struct {
	shape shapes.Shape
	flat  any // []T, with T matching shape.DType.
}

// Shape of the tensor.
func (t *Tensor) Shape() shapes.Shape { return t.shape }

// DType of the tensor, a shortcut to Tensor.Shape().DType.
func (t *Tensor) DType() shapes.DType { return t.shape.DType }

// Rank of the tensor, a shortcut to Tensor.Shape().Rank().
func (t *Tensor) Rank() int { return t.shape.Rank() }

// Size is the number of elements stored, a shortcut to Tensor.Shape().Size().
func (t *Tensor) Size() int { return t.shape.Size() }

// Ok returns whether the tensor holds a valid shape and data.
func (t *Tensor) Ok() bool { return t != nil && t.shape.Ok() && t.flat != nil }

// AssertValid panics if the tensor is nil or in an invalid state.
func (t *Tensor) AssertValid() {
	if t == nil {
		exceptions.Panicf("tensors.Tensor is nil")
	}
	if !t.Ok() {
		exceptions.Panicf("tensors.Tensor is invalid (shape=%s)", t.shape)
	}
}

// FromFlatAndDimensions creates a tensor from flat data and the given
// dimensions. The length of flat must match the product of the dimensions.
func FromFlatAndDimensions[T shapes.Supported](flat []T, dimensions ...int) *Tensor {
	shape := shapes.Make(shapes.DTypeGeneric[T](), dimensions...)
	if shape.IsDynamic() {
		exceptions.Panicf("tensors.FromFlatAndDimensions: dimensions %v cannot be dynamic", dimensions)
	}
	if len(flat) != shape.Size() {
		exceptions.Panicf("tensors.FromFlatAndDimensions: flat data with %d elements cannot fill shape %s",
			len(flat), shape)
	}
	return &Tensor{shape: shape, flat: slices.Clone(flat)}
}

// Zeros creates a tensor of the given shape with all elements set to zero.
func Zeros(shape shapes.Shape) *Tensor {
	if !shape.Ok() || shape.IsDynamic() {
		exceptions.Panicf("tensors.Zeros: invalid or dynamic shape %s", shape)
	}
	t := &Tensor{shape: shape.Clone()}
	size := shape.Size()
	switch shape.DType {
	case shapes.Bool:
		t.flat = make([]bool, size)
	case shapes.Int32:
		t.flat = make([]int32, size)
	case shapes.Int64:
		t.flat = make([]int64, size)
	case shapes.Float32:
		t.flat = make([]float32, size)
	case shapes.Float64:
		t.flat = make([]float64, size)
	default:
		exceptions.Panicf("tensors.Zeros: unsupported dtype in shape %s", shape)
	}
	return t
}

// FromValue converts a Go 1D, 2D or 3D slice of a supported numeric type to a
// Tensor. All rows must have the same length, otherwise it returns an error.
func FromValue(value any) (*Tensor, error) {
	switch v := value.(type) {
	case []float32:
		return FromFlatAndDimensions(v, len(v)), nil
	case []float64:
		return FromFlatAndDimensions(v, len(v)), nil
	case []int32:
		return FromFlatAndDimensions(v, len(v)), nil
	case []int64:
		return FromFlatAndDimensions(v, len(v)), nil
	case [][]float32:
		return from2D(v)
	case [][]float64:
		return from2D(v)
	case [][]int32:
		return from2D(v)
	case [][][]float32:
		return from3D(v)
	case [][][]float64:
		return from3D(v)
	}
	return nil, errors.Errorf("tensors.FromValue: unsupported value type %T", value)
}

func from2D[T shapes.Number](rows [][]T) (*Tensor, error) {
	if len(rows) == 0 {
		return nil, errors.Errorf("tensors.FromValue: cannot convert empty slice, shape would be ill-defined")
	}
	dim1 := len(rows[0])
	flat := make([]T, 0, len(rows)*dim1)
	for i, row := range rows {
		if len(row) != dim1 {
			return nil, errors.Errorf("tensors.FromValue: row %d has length %d, expected %d (ragged input)", i, len(row), dim1)
		}
		flat = append(flat, row...)
	}
	return FromFlatAndDimensions(flat, len(rows), dim1), nil
}

func from3D[T shapes.Number](value [][][]T) (*Tensor, error) {
	if len(value) == 0 || len(value[0]) == 0 {
		return nil, errors.Errorf("tensors.FromValue: cannot convert empty slice, shape would be ill-defined")
	}
	dim1, dim2 := len(value[0]), len(value[0][0])
	flat := make([]T, 0, len(value)*dim1*dim2)
	for i, matrix := range value {
		if len(matrix) != dim1 {
			return nil, errors.Errorf("tensors.FromValue: element %d has %d rows, expected %d (ragged input)", i, len(matrix), dim1)
		}
		for j, row := range matrix {
			if len(row) != dim2 {
				return nil, errors.Errorf("tensors.FromValue: element [%d][%d] has length %d, expected %d (ragged input)", i, j, len(row), dim2)
			}
			flat = append(flat, row...)
		}
	}
	return FromFlatAndDimensions(flat, len(value), dim1, dim2), nil
}

// FlatData returns the flat data backing the tensor. The returned slice is
// shared with the tensor: do not modify it if the tensor is still in use.
func FlatData[T shapes.Supported](t *Tensor) []T {
	t.AssertValid()
	flat, ok := t.flat.([]T)
	if !ok {
		exceptions.Panicf("tensors.FlatData[%T]: tensor holds dtype %s", flat, t.DType())
	}
	return flat
}

// CopyFlatData returns a copy of the flat data of the tensor.
func CopyFlatData[T shapes.Supported](t *Tensor) []T {
	return slices.Clone(FlatData[T](t))
}

// Equal returns whether t and t2 have the same shape and data.
func (t *Tensor) Equal(t2 *Tensor) bool {
	if !t.Ok() || !t2.Ok() {
		return false
	}
	if !t.shape.Equal(t2.shape) {
		return false
	}
	return reflect.DeepEqual(t.flat, t2.flat)
}

// String prints a summary of the tensor.
func (t *Tensor) String() string {
	if !t.Ok() {
		return "INVALID TENSOR"
	}
	var buf bytes.Buffer
	buf.WriteString(t.shape.String())
	return buf.String()
}

// GobSerialize the tensor to the encoder: shape first, then the flat data as
// the concrete slice type selected by the dtype, so GobDeserialize knows
// which type to decode into.
func (t *Tensor) GobSerialize(encoder *gob.Encoder) (err error) {
	t.AssertValid()
	err = t.shape.GobSerialize(encoder)
	if err != nil {
		return
	}
	switch flat := t.flat.(type) {
	case []bool:
		err = encoder.Encode(flat)
	case []int32:
		err = encoder.Encode(flat)
	case []int64:
		err = encoder.Encode(flat)
	case []float16.Float16:
		err = encoder.Encode(flat)
	case []float32:
		err = encoder.Encode(flat)
	case []float64:
		err = encoder.Encode(flat)
	default:
		err = errors.Errorf("unsupported flat data type %T", t.flat)
	}
	if err != nil {
		err = errors.Wrapf(err, "failed to serialize tensor data of shape %s", t.shape)
	}
	return
}

// GobDeserialize a tensor written by GobSerialize. Returns new tensor or an error.
func GobDeserialize(decoder *gob.Decoder) (t *Tensor, err error) {
	t = &Tensor{}
	t.shape, err = shapes.GobDeserialize(decoder)
	if err != nil {
		return nil, err
	}
	switch t.shape.DType {
	case shapes.Bool:
		t.flat, err = gobDecodeFlat[bool](decoder)
	case shapes.Int32:
		t.flat, err = gobDecodeFlat[int32](decoder)
	case shapes.Int64:
		t.flat, err = gobDecodeFlat[int64](decoder)
	case shapes.Float16:
		t.flat, err = gobDecodeFlat[float16.Float16](decoder)
	case shapes.Float32:
		t.flat, err = gobDecodeFlat[float32](decoder)
	case shapes.Float64:
		t.flat, err = gobDecodeFlat[float64](decoder)
	default:
		err = errors.Errorf("unsupported dtype %s", t.shape.DType)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to deserialize tensor data of shape %s", t.shape)
	}
	return
}

func gobDecodeFlat[T shapes.Supported](decoder *gob.Decoder) ([]T, error) {
	var flat []T
	err := decoder.Decode(&flat)
	return flat, err
}
