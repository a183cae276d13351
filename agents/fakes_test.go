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

package agents

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"chimera/platform/llm"
	"chimera/platform/memory"
	"chimera/platform/store"
)

// fakeLLM returns a canned response, or routes prompts through fn.
type fakeLLM struct {
	response string
	err      error
	fn       func(prompt string) (string, error)
	prompts  []string
}

func (f *fakeLLM) Generate(_ context.Context, _, prompt string, _ llm.QueryOptions) (*llm.Response, error) {
	f.prompts = append(f.prompts, prompt)
	if f.fn != nil {
		content, err := f.fn(prompt)
		if err != nil {
			return nil, err
		}
		return &llm.Response{Content: content, Provider: "fake"}, nil
	}
	if f.err != nil {
		return nil, f.err
	}
	return &llm.Response{Content: f.response, Provider: "fake"}, nil
}

// fakeStorage is an in-memory Storage for agent tests.
type fakeStorage struct {
	missions      map[string]*store.Mission
	leads         map[string]*store.Lead
	conversations []*store.Conversation
	content       map[string]*store.Content
	projects      []*store.FulfillmentProject
	activities    []*store.AgentActivity

	leadStatusUpdates map[string]string
	briefUpdates      map[string]store.BriefUpdate
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{
		missions:          make(map[string]*store.Mission),
		leads:             make(map[string]*store.Lead),
		content:           make(map[string]*store.Content),
		leadStatusUpdates: make(map[string]string),
		briefUpdates:      make(map[string]store.BriefUpdate),
	}
}

func (f *fakeStorage) GetMission(_ context.Context, id string) (*store.Mission, error) {
	m, ok := f.missions[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return m, nil
}

func (f *fakeStorage) UpdateMissionStatus(_ context.Context, id, status, errorMessage string) error {
	m, ok := f.missions[id]
	if !ok {
		return store.ErrNotFound
	}
	if !store.ValidMissionTransition(m.Status, status) {
		return fmt.Errorf("%w: %s -> %s", store.ErrInvalidTransition, m.Status, status)
	}
	m.Status = status
	m.ErrorMessage = errorMessage
	return nil
}

func (f *fakeStorage) UpdateMissionBrief(_ context.Context, id string, b store.BriefUpdate) error {
	if _, ok := f.missions[id]; !ok {
		return store.ErrNotFound
	}
	f.briefUpdates[id] = b
	return nil
}

func (f *fakeStorage) CreateLead(_ context.Context, l *store.Lead) error {
	if l.ID == "" {
		l.ID = uuid.New().String()
	}
	f.leads[l.ID] = l
	return nil
}

func (f *fakeStorage) GetLead(_ context.Context, id string) (*store.Lead, error) {
	l, ok := f.leads[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return l, nil
}

func (f *fakeStorage) FindLeadByEmail(_ context.Context, email string) (*store.Lead, error) {
	for _, l := range f.leads {
		if l.ContactEmail == email {
			return l, nil
		}
	}
	return nil, store.ErrNotFound
}

func (f *fakeStorage) ListLeads(_ context.Context, missionID string) ([]*store.Lead, error) {
	var leads []*store.Lead
	for _, l := range f.leads {
		if missionID == "" || l.MissionID == missionID {
			leads = append(leads, l)
		}
	}
	return leads, nil
}

func (f *fakeStorage) UpdateLeadStatus(_ context.Context, id, status string, score int, notes string) error {
	l, ok := f.leads[id]
	if !ok {
		return store.ErrNotFound
	}
	l.Status = status
	if score >= 0 {
		l.QualificationScore = score
	}
	if notes != "" {
		l.Notes = notes
	}
	f.leadStatusUpdates[id] = status
	return nil
}

func (f *fakeStorage) CreateConversation(_ context.Context, c *store.Conversation) error {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	f.conversations = append(f.conversations, c)
	return nil
}

func (f *fakeStorage) ListConversationsByLead(_ context.Context, leadID string) ([]*store.Conversation, error) {
	var out []*store.Conversation
	for _, c := range f.conversations {
		if c.LeadID == leadID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *fakeStorage) UpdateConversationStatus(_ context.Context, id, status string) error {
	for _, c := range f.conversations {
		if c.ID == id {
			c.Status = status
			return nil
		}
	}
	return store.ErrNotFound
}

func (f *fakeStorage) CreateContent(_ context.Context, c *store.Content) error {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	f.content[c.ID] = c
	return nil
}

func (f *fakeStorage) GetContent(_ context.Context, id string) (*store.Content, error) {
	c, ok := f.content[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return c, nil
}

func (f *fakeStorage) UpdateContentBody(_ context.Context, id, body, metaDescription string) error {
	c, ok := f.content[id]
	if !ok {
		return store.ErrNotFound
	}
	c.ContentBody = body
	c.MetaDescription = metaDescription
	return nil
}

func (f *fakeStorage) CreateFulfillmentProject(_ context.Context, p *store.FulfillmentProject) error {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	f.projects = append(f.projects, p)
	return nil
}

func (f *fakeStorage) ListFulfillmentProjects(_ context.Context, leadID, status string) ([]*store.FulfillmentProject, error) {
	var out []*store.FulfillmentProject
	for _, p := range f.projects {
		if leadID != "" && p.LeadID != leadID {
			continue
		}
		if status != "" && p.Status != status {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

func (f *fakeStorage) UpdateFulfillmentProject(_ context.Context, id string, update store.ProjectUpdate) error {
	for _, p := range f.projects {
		if p.ID == id {
			if update.Status != nil {
				p.Status = *update.Status
			}
			return nil
		}
	}
	return store.ErrNotFound
}

func (f *fakeStorage) LogActivity(_ context.Context, a *store.AgentActivity) error {
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	f.activities = append(f.activities, a)
	return nil
}

// fakeMemory records stored messages and serves canned search hits.
type fakeMemory struct {
	stored  []memory.Message
	history []memory.Message
	hits    []memory.ScoredMessage
}

func (f *fakeMemory) StoreMessage(_ context.Context, _ string, m memory.Message) error {
	f.stored = append(f.stored, m)
	return nil
}

func (f *fakeMemory) History(_ context.Context, _ string, limit int) ([]memory.Message, error) {
	if limit < len(f.history) {
		return f.history[:limit], nil
	}
	return f.history, nil
}

func (f *fakeMemory) Search(_ context.Context, _, _ string, _ int) ([]memory.ScoredMessage, error) {
	return f.hits, nil
}

// fakeArtifacts records saved deliverables.
type fakeArtifacts struct {
	saved map[string][]byte
}

func newFakeArtifacts() *fakeArtifacts {
	return &fakeArtifacts{saved: make(map[string][]byte)}
}

func (f *fakeArtifacts) Save(_ context.Context, name string, data []byte) (string, error) {
	f.saved[name] = data
	return "data/deliverables/" + name, nil
}

func testDeps(storage *fakeStorage, completer *fakeLLM) Deps {
	return Deps{
		Store:     storage,
		LLM:       completer,
		Memory:    &fakeMemory{},
		Artifacts: newFakeArtifacts(),
	}
}
