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
	"fmt"
	"slices"
	"strings"

	"github.com/barseq/barseq/types"
)

// VocabularyOverflowError is returned when the number of distinct labels
// observed exceeds the vocabulary capacity. The vocabulary never truncates
// silently.
type VocabularyOverflowError struct {
	Distinct, Capacity int
}

// Error implements the error interface.
func (e *VocabularyOverflowError) Error() string {
	return fmt.Sprintf("number of distinct labels (%d) exceeds the vocabulary capacity (%d)",
		e.Distinct, e.Capacity)
}

// Vocabulary is a bidirectional label-to-id mapping with capacity
// enforcement. It is owned by the classifier module and persists across
// repeated encode calls: ids already assigned are never reassigned, so label
// encoding is deterministic for the module's lifetime.
//
// Capacity (the model's label size) is either fixed at construction or
// inferred from the first encoded batch. Ids are assigned in first-seen
// order, except on the very first batch, where the observed label set is
// sorted when all labels are mutually orderable (e.g. all strings, or all
// numbers); if they are not, it silently falls back to first-seen order.
//
// Not safe for concurrent use; the encoding control flow is single-threaded.
type Vocabulary struct {
	capacity int // 0 while not yet known.
	preset   bool

	idToLabel []any
	labelToID map[any]int32
}

// NewVocabulary creates a Vocabulary. If capacity is 0 it is inferred from
// the first batch of labels encoded; otherwise the number of distinct labels
// may never exceed it.
func NewVocabulary(capacity int) *Vocabulary {
	return &Vocabulary{
		capacity:  capacity,
		preset:    capacity > 0,
		labelToID: make(map[any]int32),
	}
}

// Capacity returns the label capacity, or 0 while it hasn't been fixed yet.
func (v *Vocabulary) Capacity() int { return v.capacity }

// Frozen returns whether the capacity has been fixed -- at construction or by
// the first encoded batch. Batches to be sharded across parallel workers
// require a frozen vocabulary.
func (v *Vocabulary) Frozen() bool { return v.capacity > 0 }

// Len returns the number of labels currently known.
func (v *Vocabulary) Len() int { return len(v.idToLabel) }

// Reset clears all label assignments. A capacity given at construction is
// kept; an inferred one is forgotten.
func (v *Vocabulary) Reset() {
	v.idToLabel = nil
	v.labelToID = make(map[any]int32)
	if !v.preset {
		v.capacity = 0
	}
}

// IDForLabel returns the id assigned to label, if any.
func (v *Vocabulary) IDForLabel(label any) (int32, bool) {
	id, found := v.labelToID[label]
	return id, found
}

// LabelForID returns the label assigned to id, if any.
func (v *Vocabulary) LabelForID(id int32) (any, bool) {
	if id < 0 || int(id) >= len(v.idToLabel) {
		return nil, false
	}
	return v.idToLabel[int(id)], true
}

// Encode maps the given labels to their ids, assigning ids to labels not seen
// before. On the first call without a preset capacity, the capacity becomes
// the number of distinct labels given. Exceeding the capacity -- by a single
// batch with too many distinct labels, or by unseen labels arriving once the
// vocabulary is full -- fails with a *VocabularyOverflowError, and a failing
// call leaves the vocabulary unchanged.
func (v *Vocabulary) Encode(labels []any) ([]int32, error) {
	distinct := types.MakeSet[any](len(labels))
	for _, label := range labels {
		distinct.Insert(label)
	}

	if v.Frozen() {
		if len(distinct) > v.capacity {
			return nil, &VocabularyOverflowError{Distinct: len(distinct), Capacity: v.capacity}
		}
	} else {
		v.capacity = len(distinct)
	}

	if len(v.idToLabel) == 0 {
		// First batch: build the vocabulary from the full label set at once,
		// in sorted order when the labels allow it.
		ordered := make([]any, 0, len(distinct))
		for _, label := range labels {
			if _, found := v.labelToID[label]; found {
				continue
			}
			v.labelToID[label] = int32(len(ordered)) // Placeholder id, fixed below.
			ordered = append(ordered, label)
		}
		if sorted, ok := sortLabels(ordered); ok {
			ordered = sorted
		}
		v.idToLabel = ordered
		for id, label := range v.idToLabel {
			v.labelToID[label] = int32(id)
		}
	}

	// Count the unseen labels up front: a failing call must leave the
	// vocabulary unchanged, so the capacity check happens before any
	// assignment.
	var numNew int
	for label := range distinct {
		if _, found := v.labelToID[label]; !found {
			numNew++
		}
	}
	if len(v.idToLabel)+numNew > v.capacity {
		return nil, &VocabularyOverflowError{Distinct: len(v.idToLabel) + numNew, Capacity: v.capacity}
	}

	ids := make([]int32, len(labels))
	for i, label := range labels {
		id, found := v.labelToID[label]
		if !found {
			id = int32(len(v.idToLabel))
			v.idToLabel = append(v.idToLabel, label)
			v.labelToID[label] = id
		}
		ids[i] = id
	}
	return ids, nil
}

// sortLabels sorts a copy of labels when they are mutually orderable: all
// strings, or all numbers (integers and floats mix fine). Otherwise it
// reports ok=false and the first-seen order stands.
func sortLabels(labels []any) (sorted []any, ok bool) {
	allStrings, allNumbers := true, true
	for _, label := range labels {
		if _, isString := label.(string); !isString {
			allStrings = false
		}
		if _, isNumber := asFloat(label); !isNumber {
			allNumbers = false
		}
	}
	sorted = slices.Clone(labels)
	switch {
	case allStrings:
		slices.SortStableFunc(sorted, func(a, b any) int {
			return strings.Compare(a.(string), b.(string))
		})
	case allNumbers:
		slices.SortStableFunc(sorted, func(a, b any) int {
			fa, _ := asFloat(a)
			fb, _ := asFloat(b)
			switch {
			case fa < fb:
				return -1
			case fa > fb:
				return 1
			}
			return 0
		})
	default:
		return nil, false
	}
	return sorted, true
}

func asFloat(value any) (float64, bool) {
	switch v := value.(type) {
	case int:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case float32:
		return float64(v), true
	case float64:
		return v, true
	}
	return 0, false
}
