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
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"chimera/platform/agents"
	"chimera/platform/store"
)

// maxAttempts bounds how often one job is retried before escalation.
const maxAttempts = 3

// retryBackoff is the base delay for retry re-enqueues; it doubles per
// attempt.
const retryBackoff = 10 * time.Second

// systemJobTypes are the error-handling jobs; their failures are never
// routed back into error handling.
var systemJobTypes = map[string]bool{
	"agent_error":    true,
	"diagnose_error": true,
	"auto_repair":    true,
	"validate_fix":   true,
	"escalate_error": true,
}

// ActivityLogger records one audit row per job execution. *store.Store
// satisfies it.
type ActivityLogger interface {
	LogActivity(ctx context.Context, a *store.AgentActivity) error
}

// Options configures a dispatcher.
type Options struct {
	// Workers is the size of the worker pool. Defaults to 4.
	Workers int

	// JobTimeout bounds one agent execution. Defaults to 5 minutes.
	JobTimeout time.Duration

	// PollInterval is how long an idle worker sleeps. Defaults to 500ms.
	PollInterval time.Duration

	// OnJob, when set, observes every completed execution.
	OnJob func(jobType, status string, duration time.Duration)
}

// Stats is a dispatcher snapshot for the status endpoint.
type Stats struct {
	Workers     int              `json:"workers"`
	Processed   int64            `json:"processed"`
	Failed      int64            `json:"failed"`
	Retried     int64            `json:"retried"`
	QueueDepths map[string]int64 `json:"queue_depths"`
}

// Dispatcher drains the queues with a worker pool, routing each job to
// its agent through the registry. Every execution writes exactly one
// agent_activities row.
type Dispatcher struct {
	queue      *Queue
	registry   *agents.Registry
	activities ActivityLogger
	opts       Options

	processed int64
	failed    int64
	retried   int64

	wg     sync.WaitGroup
	cancel context.CancelFunc
}

// NewDispatcher creates a dispatcher over a queue and agent registry.
func NewDispatcher(q *Queue, registry *agents.Registry, activities ActivityLogger, opts Options) *Dispatcher {
	if opts.Workers <= 0 {
		opts.Workers = 4
	}
	if opts.JobTimeout <= 0 {
		opts.JobTimeout = 5 * time.Minute
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = 500 * time.Millisecond
	}
	return &Dispatcher{
		queue:      q,
		registry:   registry,
		activities: activities,
		opts:       opts,
	}
}

// Submit enqueues a job for execution.
func (d *Dispatcher) Submit(ctx context.Context, job *agents.Job) error {
	return d.queue.Enqueue(ctx, job)
}

// Start launches the worker pool. Workers run until the context is
// cancelled or Stop is called.
func (d *Dispatcher) Start(ctx context.Context) {
	ctx, d.cancel = context.WithCancel(ctx)
	log.Printf("[Dispatcher] Starting %d workers", d.opts.Workers)
	for i := 0; i < d.opts.Workers; i++ {
		d.wg.Add(1)
		go d.runWorker(ctx, i)
	}
}

// Stop cancels the workers and waits for in-flight jobs to finish.
func (d *Dispatcher) Stop() {
	if d.cancel != nil {
		d.cancel()
	}
	d.wg.Wait()
	log.Printf("[Dispatcher] All workers stopped")
}

// Stats returns a dispatcher snapshot.
func (d *Dispatcher) Stats(ctx context.Context) (*Stats, error) {
	depths, err := d.queue.Depths(ctx)
	if err != nil {
		return nil, err
	}
	return &Stats{
		Workers:     d.opts.Workers,
		Processed:   atomic.LoadInt64(&d.processed),
		Failed:      atomic.LoadInt64(&d.failed),
		Retried:     atomic.LoadInt64(&d.retried),
		QueueDepths: depths,
	}, nil
}

func (d *Dispatcher) runWorker(ctx context.Context, id int) {
	defer d.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		worked, err := d.ProcessOne(ctx)
		if err != nil && ctx.Err() == nil {
			log.Printf("[Dispatcher] Worker %d queue error: %v", id, err)
		}
		if !worked {
			select {
			case <-ctx.Done():
				return
			case <-time.After(d.opts.PollInterval):
			}
		}
	}
}

// ProcessOne promotes due retries, pops at most one job across the
// queues in priority order, and executes it. Returns whether a job was
// found.
func (d *Dispatcher) ProcessOne(ctx context.Context) (bool, error) {
	for _, queueName := range Queues {
		if _, err := d.queue.PromoteDue(ctx, queueName); err != nil {
			return false, err
		}
		job, err := d.queue.Dequeue(ctx, queueName)
		if err != nil {
			return false, err
		}
		if job == nil {
			continue
		}
		d.execute(ctx, job)
		return true, nil
	}
	return false, nil
}

// execute runs one job through its agent, records the audit row, and
// handles follow-ons and retries. A panicking agent fails the job, not
// the worker.
func (d *Dispatcher) execute(ctx context.Context, job *agents.Job) {
	agent, err := d.registry.ForJobType(job.Type)
	if err != nil {
		atomic.AddInt64(&d.failed, 1)
		d.logExecution(ctx, "dispatcher", job, agents.Errorf("%v", err), 0)
		// An unroutable job is a final failure like any other; surface it
		// through the error pipeline.
		d.reportFailure(ctx, "dispatcher", job, err.Error())
		return
	}

	execCtx, cancel := context.WithTimeout(ctx, d.opts.JobTimeout)
	defer cancel()

	start := time.Now()
	result, execErr := d.safeExecute(execCtx, agent, job)
	duration := time.Since(start)

	if execErr != nil {
		result = agents.Errorf("%v", execErr)
		result.ExecutionTimeMs = duration.Milliseconds()
	}

	d.logExecution(ctx, agent.Name(), job, result, duration.Milliseconds())
	if d.opts.OnJob != nil {
		d.opts.OnJob(job.Type, result.Status, duration)
	}

	if result.Status == agents.StatusSuccess {
		atomic.AddInt64(&d.processed, 1)
		for _, next := range result.NextJobs {
			if err := d.queue.Enqueue(ctx, next); err != nil {
				log.Printf("[Dispatcher] Failed to enqueue follow-on job %s: %v", next.Type, err)
			}
		}
		return
	}

	atomic.AddInt64(&d.failed, 1)
	if execErr != nil {
		d.retry(ctx, job, result.ErrorMessage)
		return
	}
	// Domain failures are final; hand them to the error pipeline.
	d.reportFailure(ctx, agent.Name(), job, result.ErrorMessage)
}

// safeExecute isolates agent panics into an error return.
func (d *Dispatcher) safeExecute(ctx context.Context, agent agents.Agent, job *agents.Job) (result *agents.Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			result = nil
			err = fmt.Errorf("agent %s panicked: %v", agent.Name(), r)
		}
	}()
	result, err = agent.Execute(ctx, job)
	if err == nil && result == nil {
		err = fmt.Errorf("agent %s returned no result", agent.Name())
	}
	return result, err
}

// retry re-enqueues an infrastructure failure with exponential backoff
// until maxAttempts, then escalates through the error pipeline.
func (d *Dispatcher) retry(ctx context.Context, job *agents.Job, errorMessage string) {
	job.Attempts++
	if job.Attempts < maxAttempts {
		backoff := retryBackoff << (job.Attempts - 1)
		log.Printf("[Dispatcher] Retrying job %s (%s) in %s, attempt %d/%d",
			job.ID, job.Type, backoff, job.Attempts+1, maxAttempts)
		atomic.AddInt64(&d.retried, 1)
		if err := d.queue.EnqueueDelayed(ctx, job, backoff); err != nil {
			log.Printf("[Dispatcher] Failed to schedule retry for job %s: %v", job.ID, err)
		}
		return
	}

	log.Printf("[Dispatcher] Job %s (%s) exhausted %d attempts", job.ID, job.Type, maxAttempts)
	d.reportFailure(ctx, "dispatcher", job, errorMessage)
}

// reportFailure emits an agent_error job so the maestro can route the
// failure to the technician. Failures inside the error pipeline itself
// stop here.
func (d *Dispatcher) reportFailure(ctx context.Context, agentName string, job *agents.Job, errorMessage string) {
	if systemJobTypes[job.Type] {
		log.Printf("[Dispatcher] Error-pipeline job %s (%s) failed: %s", job.ID, job.Type, errorMessage)
		return
	}

	errorJob := agents.NewJob("agent_error", job.MissionID, map[string]interface{}{
		"agent_name":    agentName,
		"job_type":      job.Type,
		"error_message": errorMessage,
	})
	errorJob.Queue = agents.QueueSystem
	errorJob.Priority = 8
	if err := d.queue.Enqueue(ctx, errorJob); err != nil {
		log.Printf("[Dispatcher] Failed to report failure of job %s: %v", job.ID, err)
	}
}

// logExecution writes the single audit row for one execution.
func (d *Dispatcher) logExecution(ctx context.Context, agentName string, job *agents.Job, result *agents.Result, durationMs int64) {
	activity := &store.AgentActivity{
		AgentName:       agentName,
		ActivityType:    "job_execution",
		Description:     fmt.Sprintf("Executed job %s", job.Type),
		Status:          result.Status,
		MissionID:       job.MissionID,
		InputData:       store.JSONMap(job.Payload),
		OutputData:      store.JSONMap(result.Output),
		ExecutionTimeMs: durationMs,
		ErrorMessage:    result.ErrorMessage,
	}
	if err := d.activities.LogActivity(ctx, activity); err != nil {
		log.Printf("[Dispatcher] Failed to log execution of job %s: %v", job.ID, err)
	}
}
