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

import "github.com/pkg/errors"

// Shard splits the batch into numShards contiguous shards, one per parallel
// replica. The shards alias the batch's underlying storage (no copy); the
// first shards get the extra samples when the batch doesn't divide evenly.
// It fails when there are fewer samples than shards.
func (b *EncodedBatch) Shard(numShards int) ([]*EncodedBatch, error) {
	if numShards < 1 {
		return nil, errors.Errorf("numShards=%d, must be at least 1", numShards)
	}
	if b.NumSamples < numShards {
		return nil, errors.Errorf("cannot split %d samples across %d shards", b.NumSamples, numShards)
	}
	shards := make([]*EncodedBatch, numShards)
	size := b.NumSamples / numShards
	extra := b.NumSamples % numShards
	start := 0
	for i := range shards {
		end := start + size
		if i < extra {
			end++
		}
		shard := &EncodedBatch{
			NumSamples: end - start,
			Values:     b.Values[start:end],
			Mask:       b.Mask[start:end],
		}
		if b.LabelIDs != nil {
			shard.LabelIDs = b.LabelIDs[start:end]
		}
		if b.SampleWeight != nil {
			shard.SampleWeight = b.SampleWeight[start:end]
		}
		shards[i] = shard
		start = end
	}
	return shards, nil
}
