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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chimera/platform/store"
)

func TestExtractEmailAddress(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Jane Doe <jane@acme.com>", "jane@acme.com"},
		{"jane@acme.com", "jane@acme.com"},
		{"  plain text  ", "plain text"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ExtractEmailAddress(tt.in))
	}
}

func TestDetermineLeadStatus(t *testing.T) {
	tests := []struct {
		body string
		want string
	}{
		{"Yes, I'm interested. Let's schedule a meeting.", store.LeadStatusInterested},
		{"Not interested, please remove me from your list.", store.LeadStatusNotInterested},
		{"What does the price look like for a team of ten?", store.LeadStatusNegotiating},
		{"How does the onboarding work?", store.LeadStatusEngaged},
		{"Thanks for reaching out.", store.LeadStatusEngaged},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, DetermineLeadStatus(tt.body), tt.body)
	}
}

func seedLead(storage *fakeStorage) *store.Lead {
	l := &store.Lead{
		ID:           "lead-1",
		MissionID:    "mission-1",
		CompanyName:  "Acme Logistics",
		ContactName:  "Jane Doe",
		ContactEmail: "jane@acme.com",
		Industry:     "logistics",
		Status:       store.LeadStatusContacted,
	}
	storage.leads[l.ID] = l
	return l
}

func TestCloserProcessReply(t *testing.T) {
	storage := newFakeStorage()
	seedMission(storage, store.MissionStatusLeadsNurturing)
	seedLead(storage)
	llm := &fakeLLM{response: `{"subject": "Re: quick question", "body": "Happy to walk you through the details."}`}

	deps := testDeps(storage, llm)
	mem := &fakeMemory{}
	deps.Memory = mem
	c := NewCloser(deps)

	job := NewJob("process_reply", "mission-1", map[string]interface{}{
		"email_data": map[string]interface{}{
			"sender":  "Jane Doe <jane@acme.com>",
			"subject": "quick question",
			"body":    "Yes, I'm interested. Can we schedule a call?",
		},
	})
	result, err := c.Execute(context.Background(), job)
	require.NoError(t, err)

	assert.Equal(t, StatusSuccess, result.Status)
	assert.Equal(t, store.LeadStatusInterested, result.Output["new_lead_status"])
	assert.Equal(t, store.LeadStatusInterested, storage.leads["lead-1"].Status)

	// Incoming message stored and marked replied, outgoing draft stored.
	require.Len(t, storage.conversations, 2)
	assert.Equal(t, "incoming", storage.conversations[0].MessageType)
	assert.Equal(t, "replied", storage.conversations[0].Status)
	assert.Equal(t, "outgoing", storage.conversations[1].MessageType)
	assert.Equal(t, "draft", storage.conversations[1].Status)

	// Incoming message lands in the memory bank.
	require.Len(t, mem.stored, 1)
	assert.Equal(t, "incoming", mem.stored[0].Type)
}

func TestCloserProcessReplyUnknownSender(t *testing.T) {
	c := NewCloser(testDeps(newFakeStorage(), &fakeLLM{}))

	job := NewJob("process_reply", "", map[string]interface{}{
		"email_data": map[string]interface{}{
			"sender": "stranger@nowhere.com",
			"body":   "hello",
		},
	})
	result, err := c.Execute(context.Background(), job)
	require.NoError(t, err)

	assert.Equal(t, StatusSuccess, result.Status)
	assert.Equal(t, "No lead found for sender", result.Output["message"])
}

func TestCloserCloseDeal(t *testing.T) {
	storage := newFakeStorage()
	seedMission(storage, store.MissionStatusDealsClosing)
	seedLead(storage)
	llm := &fakeLLM{response: `{"subject": "Next steps for Acme Logistics", "body": "Here is the proposal."}`}
	c := NewCloser(testDeps(storage, llm))

	job := NewJob("close_deal", "mission-1", map[string]interface{}{
		"lead_id":    "lead-1",
		"close_type": "hard",
	})
	result, err := c.Execute(context.Background(), job)
	require.NoError(t, err)

	assert.Equal(t, StatusSuccess, result.Status)
	assert.Equal(t, store.LeadStatusClosing, storage.leads["lead-1"].Status)
	require.Len(t, storage.conversations, 1)
	assert.Equal(t, "draft", storage.conversations[0].Status)
}

func TestCloserHandleObjectionRequiresFields(t *testing.T) {
	c := NewCloser(testDeps(newFakeStorage(), &fakeLLM{}))

	result, err := c.Execute(context.Background(), NewJob("handle_objection", "", map[string]interface{}{
		"lead_id": "lead-1",
	}))
	require.NoError(t, err)
	assert.Equal(t, StatusError, result.Status)
}
