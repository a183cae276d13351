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

// Package queue implements the Redis-backed job queue and the worker
// pool that dispatches jobs to agents.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"chimera/platform/agents"
)

const keyPrefix = "chimera:queue:"

// maxPriority bounds job priority; higher priority pops first.
const maxPriority = 10

// Queues lists every queue the dispatcher drains, in polling order.
var Queues = []string{
	agents.QueueHighPriority,
	agents.QueueSystem,
	agents.QueueAgents,
	agents.QueueDefault,
	agents.QueueLowPriority,
}

// Queue is a set of named priority queues on one Redis instance. Each
// queue is a sorted set scored so that higher-priority jobs pop first
// and jobs of equal priority pop in enqueue order.
type Queue struct {
	client *redis.Client
}

// New wraps an existing Redis client.
func New(client *redis.Client) *Queue {
	return &Queue{client: client}
}

// Connect dials Redis from a URL (redis://host:port/db) and verifies
// the connection.
func Connect(redisURL string) (*Queue, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return &Queue{client: client}, nil
}

// Close releases the Redis connection pool.
func (q *Queue) Close() error {
	return q.client.Close()
}

// score orders a queue: the priority band dominates, enqueue time
// breaks ties FIFO within a band.
func score(priority int, at time.Time) float64 {
	if priority < 0 {
		priority = 0
	}
	if priority > maxPriority {
		priority = maxPriority
	}
	return float64(maxPriority-priority)*1e13 + float64(at.UnixMilli())
}

func queueKey(name string) string {
	return keyPrefix + name
}

func delayedKey(name string) string {
	return keyPrefix + name + ":delayed"
}

// Enqueue makes a job available immediately on its queue.
func (q *Queue) Enqueue(ctx context.Context, job *agents.Job) error {
	if job.Queue == "" {
		job.Queue = agents.QueueDefault
	}
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal job %s: %w", job.ID, err)
	}

	err = q.client.ZAdd(ctx, queueKey(job.Queue), &redis.Z{
		Score:  score(job.Priority, time.Now().UTC()),
		Member: string(data),
	}).Err()
	if err != nil {
		return fmt.Errorf("failed to enqueue job %s: %w", job.ID, err)
	}
	return nil
}

// EnqueueDelayed holds a job back until the delay elapses. Delayed jobs
// are promoted onto the main queue by PromoteDue.
func (q *Queue) EnqueueDelayed(ctx context.Context, job *agents.Job, delay time.Duration) error {
	if job.Queue == "" {
		job.Queue = agents.QueueDefault
	}
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal job %s: %w", job.ID, err)
	}

	readyAt := time.Now().UTC().Add(delay)
	err = q.client.ZAdd(ctx, delayedKey(job.Queue), &redis.Z{
		Score:  float64(readyAt.UnixMilli()),
		Member: string(data),
	}).Err()
	if err != nil {
		return fmt.Errorf("failed to schedule job %s: %w", job.ID, err)
	}
	return nil
}

// PromoteDue moves delayed jobs whose hold time has elapsed onto the
// main queue. Returns the number promoted.
func (q *Queue) PromoteDue(ctx context.Context, queueName string) (int, error) {
	now := fmt.Sprintf("%d", time.Now().UTC().UnixMilli())
	members, err := q.client.ZRangeByScore(ctx, delayedKey(queueName), &redis.ZRangeBy{
		Min: "-inf",
		Max: now,
	}).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to read delayed jobs: %w", err)
	}

	promoted := 0
	for _, member := range members {
		removed, err := q.client.ZRem(ctx, delayedKey(queueName), member).Result()
		if err != nil || removed == 0 {
			continue
		}
		var job agents.Job
		if err := json.Unmarshal([]byte(member), &job); err != nil {
			continue
		}
		if err := q.Enqueue(ctx, &job); err != nil {
			return promoted, err
		}
		promoted++
	}
	return promoted, nil
}

// Dequeue pops the highest-priority job from a queue, or returns nil
// when the queue is empty.
func (q *Queue) Dequeue(ctx context.Context, queueName string) (*agents.Job, error) {
	popped, err := q.client.ZPopMin(ctx, queueKey(queueName), 1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to pop from queue %s: %w", queueName, err)
	}
	if len(popped) == 0 {
		return nil, nil
	}

	member, ok := popped[0].Member.(string)
	if !ok {
		return nil, fmt.Errorf("unexpected member type in queue %s", queueName)
	}
	var job agents.Job
	if err := json.Unmarshal([]byte(member), &job); err != nil {
		return nil, fmt.Errorf("failed to unmarshal job from queue %s: %w", queueName, err)
	}
	return &job, nil
}

// Depth returns the number of jobs waiting on a queue, delayed jobs
// excluded.
func (q *Queue) Depth(ctx context.Context, queueName string) (int64, error) {
	depth, err := q.client.ZCard(ctx, queueKey(queueName)).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to read depth of queue %s: %w", queueName, err)
	}
	return depth, nil
}

// Depths returns the waiting depth of every known queue.
func (q *Queue) Depths(ctx context.Context) (map[string]int64, error) {
	depths := make(map[string]int64, len(Queues))
	for _, name := range Queues {
		depth, err := q.Depth(ctx, name)
		if err != nil {
			return nil, err
		}
		depths[name] = depth
	}
	return depths, nil
}
