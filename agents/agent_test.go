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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewJobDefaults(t *testing.T) {
	job := NewJob("find_leads", "mission-1", nil)

	assert.NotEmpty(t, job.ID)
	assert.Equal(t, QueueAgents, job.Queue)
	assert.Equal(t, 5, job.Priority)
	assert.Equal(t, "mission-1", job.MissionID)
	assert.NotNil(t, job.Payload)
}

func TestJobPayloadHelpers(t *testing.T) {
	job := NewJob("process_reply", "", map[string]interface{}{
		"lead_id": "lead-1",
		"email_data": map[string]interface{}{
			"sender": "a@b.com",
		},
	})

	assert.Equal(t, "lead-1", job.String("lead_id"))
	assert.Equal(t, "", job.String("missing"))
	assert.Equal(t, "a@b.com", job.Map("email_data")["sender"])
	assert.Nil(t, job.Map("lead_id"))
}

func TestRegistry(t *testing.T) {
	deps := testDeps(newFakeStorage(), &fakeLLM{})
	r := NewRegistry()

	require.NoError(t, r.Register(NewGuardian(deps)))
	require.NoError(t, r.Register(NewCloser(deps)))

	agent, err := r.ForJobType("process_reply")
	require.NoError(t, err)
	assert.Equal(t, "closer", agent.Name())

	_, err = r.ForJobType("unknown_job")
	assert.Error(t, err)

	got, ok := r.Get("guardian")
	assert.True(t, ok)
	assert.Equal(t, "guardian", got.Name())

	assert.ElementsMatch(t, []string{"guardian", "closer"}, r.Names())
}

func TestRegistryRejectsDuplicates(t *testing.T) {
	deps := testDeps(newFakeStorage(), &fakeLLM{})
	r := NewRegistry()

	require.NoError(t, r.Register(NewGuardian(deps)))
	assert.Error(t, r.Register(NewGuardian(deps)))
}
