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

package queue

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chimera/platform/agents"
)

func testQueue(t *testing.T) *Queue {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return New(client)
}

func TestQueueEnqueueDequeue(t *testing.T) {
	q := testQueue(t)
	ctx := context.Background()

	job := agents.NewJob("find_leads", "mission-1", map[string]interface{}{
		"search_query": "logistics companies",
	})
	require.NoError(t, q.Enqueue(ctx, job))

	depth, err := q.Depth(ctx, agents.QueueAgents)
	require.NoError(t, err)
	assert.Equal(t, int64(1), depth)

	popped, err := q.Dequeue(ctx, agents.QueueAgents)
	require.NoError(t, err)
	require.NotNil(t, popped)
	assert.Equal(t, job.ID, popped.ID)
	assert.Equal(t, "find_leads", popped.Type)
	assert.Equal(t, "logistics companies", popped.String("search_query"))

	empty, err := q.Dequeue(ctx, agents.QueueAgents)
	require.NoError(t, err)
	assert.Nil(t, empty)
}

func TestQueuePriorityOrder(t *testing.T) {
	q := testQueue(t)
	ctx := context.Background()

	low := agents.NewJob("low", "", nil)
	low.Priority = 2
	high := agents.NewJob("high", "", nil)
	high.Priority = 9
	normal := agents.NewJob("normal", "", nil)

	require.NoError(t, q.Enqueue(ctx, low))
	require.NoError(t, q.Enqueue(ctx, normal))
	require.NoError(t, q.Enqueue(ctx, high))

	var order []string
	for i := 0; i < 3; i++ {
		job, err := q.Dequeue(ctx, agents.QueueAgents)
		require.NoError(t, err)
		require.NotNil(t, job)
		order = append(order, job.Type)
	}
	assert.Equal(t, []string{"high", "normal", "low"}, order)
}

func TestQueueFIFOWithinPriority(t *testing.T) {
	q := testQueue(t)
	ctx := context.Background()

	for _, name := range []string{"first", "second", "third"} {
		job := agents.NewJob(name, "", nil)
		require.NoError(t, q.Enqueue(ctx, job))
		// Enqueue times must differ for the tie-break to hold.
		time.Sleep(2 * time.Millisecond)
	}

	var order []string
	for i := 0; i < 3; i++ {
		job, err := q.Dequeue(ctx, agents.QueueAgents)
		require.NoError(t, err)
		order = append(order, job.Type)
	}
	assert.Equal(t, []string{"first", "second", "third"}, order)
}

func TestQueueDelayedJobsHeldBack(t *testing.T) {
	q := testQueue(t)
	ctx := context.Background()

	job := agents.NewJob("retry_me", "", nil)
	require.NoError(t, q.EnqueueDelayed(ctx, job, time.Hour))

	// Not visible on the main queue and not promotable yet.
	depth, err := q.Depth(ctx, agents.QueueAgents)
	require.NoError(t, err)
	assert.Equal(t, int64(0), depth)

	promoted, err := q.PromoteDue(ctx, agents.QueueAgents)
	require.NoError(t, err)
	assert.Equal(t, 0, promoted)
}

func TestQueuePromoteDue(t *testing.T) {
	q := testQueue(t)
	ctx := context.Background()

	job := agents.NewJob("retry_me", "mission-1", nil)
	require.NoError(t, q.EnqueueDelayed(ctx, job, -time.Second))

	promoted, err := q.PromoteDue(ctx, agents.QueueAgents)
	require.NoError(t, err)
	assert.Equal(t, 1, promoted)

	popped, err := q.Dequeue(ctx, agents.QueueAgents)
	require.NoError(t, err)
	require.NotNil(t, popped)
	assert.Equal(t, job.ID, popped.ID)
}

func TestQueueDepths(t *testing.T) {
	q := testQueue(t)
	ctx := context.Background()

	system := agents.NewJob("diagnose_error", "", nil)
	system.Queue = agents.QueueSystem
	require.NoError(t, q.Enqueue(ctx, system))
	require.NoError(t, q.Enqueue(ctx, agents.NewJob("find_leads", "", nil)))

	depths, err := q.Depths(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), depths[agents.QueueSystem])
	assert.Equal(t, int64(1), depths[agents.QueueAgents])
	assert.Equal(t, int64(0), depths[agents.QueueDefault])
}

func TestQueueDefaultsEmptyQueueName(t *testing.T) {
	q := testQueue(t)
	ctx := context.Background()

	job := agents.NewJob("find_leads", "", nil)
	job.Queue = ""
	require.NoError(t, q.Enqueue(ctx, job))

	popped, err := q.Dequeue(ctx, agents.QueueDefault)
	require.NoError(t, err)
	require.NotNil(t, popped)
	assert.Equal(t, agents.QueueDefault, popped.Queue)
}
