// Copyright 2025 Chimera Labs
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashEmbedderDeterministic(t *testing.T) {
	e := NewHashEmbedder(64)
	ctx := context.Background()

	a, err := e.Embed(ctx, "pricing question about automation services")
	require.NoError(t, err)
	b, err := e.Embed(ctx, "pricing question about automation services")
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.Len(t, a, 64)
}

func TestHashEmbedderNormalized(t *testing.T) {
	e := NewHashEmbedder(64)

	vec, err := e.Embed(context.Background(), "hello world hello")
	require.NoError(t, err)

	var norm float64
	for _, v := range vec {
		norm += v * v
	}
	assert.InDelta(t, 1.0, norm, 1e-9)
}

func TestCosineSimilarity(t *testing.T) {
	e := NewHashEmbedder(128)
	ctx := context.Background()

	pricing1, _ := e.Embed(ctx, "what does the automation package cost")
	pricing2, _ := e.Embed(ctx, "question about cost of the automation package")
	unrelated, _ := e.Embed(ctx, "quarterly board meeting scheduled thursday")

	similar := CosineSimilarity(pricing1, pricing2)
	dissimilar := CosineSimilarity(pricing1, unrelated)
	assert.Greater(t, similar, dissimilar)

	// Identical vectors
	assert.InDelta(t, 1.0, CosineSimilarity(pricing1, pricing1), 1e-9)

	// Degenerate inputs
	assert.Equal(t, 0.0, CosineSimilarity(nil, pricing1))
	assert.Equal(t, 0.0, CosineSimilarity([]float64{1, 0}, []float64{1, 0, 0}))
}
