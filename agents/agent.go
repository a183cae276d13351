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

// Package agents implements the agent fleet: each agent wraps the LLM
// router with a specific operational role, and the registry maps job
// types to the agent that handles them.
package agents

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"chimera/platform/llm"
	"chimera/platform/memory"
	"chimera/platform/store"
)

// Queue names understood by the dispatcher.
const (
	QueueDefault      = "default"
	QueueAgents       = "agents"
	QueueSystem       = "system"
	QueueHighPriority = "high_priority"
	QueueLowPriority  = "low_priority"
)

// Result statuses.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Job is a unit of work routed to an agent by job type.
type Job struct {
	ID        string                 `json:"id"`
	Type      string                 `json:"type"`
	Queue     string                 `json:"queue"`
	Priority  int                    `json:"priority"`
	MissionID string                 `json:"mission_id,omitempty"`
	Payload   map[string]interface{} `json:"payload"`
	Attempts  int                    `json:"attempts"`
	CreatedAt time.Time              `json:"created_at"`
}

// NewJob creates a job on the agents queue with normal priority.
func NewJob(jobType, missionID string, payload map[string]interface{}) *Job {
	if payload == nil {
		payload = map[string]interface{}{}
	}
	return &Job{
		ID:        uuid.New().String(),
		Type:      jobType,
		Queue:     QueueAgents,
		Priority:  5,
		MissionID: missionID,
		Payload:   payload,
		CreatedAt: time.Now().UTC(),
	}
}

// String returns a payload field as a string, or "" when absent.
func (j *Job) String(key string) string {
	if v, ok := j.Payload[key].(string); ok {
		return v
	}
	return ""
}

// Map returns a payload field as a nested map, or nil when absent.
func (j *Job) Map(key string) map[string]interface{} {
	if v, ok := j.Payload[key].(map[string]interface{}); ok {
		return v
	}
	return nil
}

// Result is the outcome of one job execution. NextJobs are follow-on
// jobs the dispatcher enqueues after recording the result.
type Result struct {
	Status          string                 `json:"status"`
	Output          map[string]interface{} `json:"output"`
	ErrorMessage    string                 `json:"error_message,omitempty"`
	ExecutionTimeMs int64                  `json:"execution_time_ms"`
	NextJobs        []*Job                 `json:"-"`
}

// Success builds a success result.
func Success(output map[string]interface{}, next ...*Job) *Result {
	if output == nil {
		output = map[string]interface{}{}
	}
	return &Result{Status: StatusSuccess, Output: output, NextJobs: next}
}

// Errorf builds an error result.
func Errorf(format string, args ...interface{}) *Result {
	return &Result{
		Status:       StatusError,
		Output:       map[string]interface{}{},
		ErrorMessage: fmt.Sprintf(format, args...),
	}
}

// Agent is one member of the fleet.
type Agent interface {
	// Name returns the agent identifier used in the audit log.
	Name() string

	// JobTypes lists the job types this agent handles.
	JobTypes() []string

	// Execute runs one job. Implementations return a Result rather than
	// an error for domain failures; the error return is reserved for
	// infrastructure faults the dispatcher should retry.
	Execute(ctx context.Context, job *Job) (*Result, error)
}

// Completer is the LLM surface agents depend on. *llm.Router satisfies it.
type Completer interface {
	Generate(ctx context.Context, preferred, prompt string, options llm.QueryOptions) (*llm.Response, error)
}

// Storage is the persistence surface agents depend on. *store.Store
// satisfies it.
type Storage interface {
	GetMission(ctx context.Context, id string) (*store.Mission, error)
	UpdateMissionStatus(ctx context.Context, id, status, errorMessage string) error
	UpdateMissionBrief(ctx context.Context, id string, b store.BriefUpdate) error
	CreateLead(ctx context.Context, l *store.Lead) error
	GetLead(ctx context.Context, id string) (*store.Lead, error)
	FindLeadByEmail(ctx context.Context, email string) (*store.Lead, error)
	ListLeads(ctx context.Context, missionID string) ([]*store.Lead, error)
	UpdateLeadStatus(ctx context.Context, id, status string, score int, notes string) error
	CreateConversation(ctx context.Context, c *store.Conversation) error
	ListConversationsByLead(ctx context.Context, leadID string) ([]*store.Conversation, error)
	UpdateConversationStatus(ctx context.Context, id, status string) error
	CreateContent(ctx context.Context, c *store.Content) error
	GetContent(ctx context.Context, id string) (*store.Content, error)
	UpdateContentBody(ctx context.Context, id, body, metaDescription string) error
	CreateFulfillmentProject(ctx context.Context, p *store.FulfillmentProject) error
	ListFulfillmentProjects(ctx context.Context, leadID, status string) ([]*store.FulfillmentProject, error)
	UpdateFulfillmentProject(ctx context.Context, id string, update store.ProjectUpdate) error
	LogActivity(ctx context.Context, a *store.AgentActivity) error
}

// Memory is the conversation memory surface agents depend on.
// *memory.Bank satisfies it.
type Memory interface {
	StoreMessage(ctx context.Context, leadID string, m memory.Message) error
	History(ctx context.Context, leadID string, limit int) ([]memory.Message, error)
	Search(ctx context.Context, leadID, query string, limit int) ([]memory.ScoredMessage, error)
}

// ArtifactWriter persists generated deliverables.
type ArtifactWriter interface {
	Save(ctx context.Context, name string, data []byte) (string, error)
}

// Deps carries the shared infrastructure every agent is built from.
type Deps struct {
	Store     Storage
	LLM       Completer
	Memory    Memory
	Artifacts ArtifactWriter
}

// Registry maps job types to agents.
type Registry struct {
	mu     sync.RWMutex
	byName map[string]Agent
	byType map[string]Agent
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		byName: make(map[string]Agent),
		byType: make(map[string]Agent),
	}
}

// Register adds an agent and claims its job types. Claiming a job type
// twice is a wiring bug and returns an error.
func (r *Registry) Register(a Agent) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byName[a.Name()]; exists {
		return fmt.Errorf("agent %q already registered", a.Name())
	}
	for _, jt := range a.JobTypes() {
		if owner, exists := r.byType[jt]; exists {
			return fmt.Errorf("job type %q already claimed by agent %q", jt, owner.Name())
		}
	}

	r.byName[a.Name()] = a
	for _, jt := range a.JobTypes() {
		r.byType[jt] = a
	}
	return nil
}

// ForJobType returns the agent that handles a job type.
func (r *Registry) ForJobType(jobType string) (Agent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.byType[jobType]
	if !ok {
		return nil, fmt.Errorf("no agent registered for job type %q", jobType)
	}
	return a, nil
}

// Get returns an agent by name.
func (r *Registry) Get(name string) (Agent, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.byName[name]
	return a, ok
}

// Names lists registered agent names.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.byName))
	for name := range r.byName {
		names = append(names, name)
	}
	return names
}
