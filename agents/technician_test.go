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
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTechnicianDiagnoseRepairableError(t *testing.T) {
	llm := &fakeLLM{response: `{"auto_repairable": true, "confidence": 0.85, "repair_strategy": "retry with backoff", "risk_assessment": "low", "complexity": "simple", "reasoning": "transient network failure"}`}
	tech := NewTechnician(testDeps(newFakeStorage(), llm))

	job := NewJob("diagnose_error", "mission-1", map[string]interface{}{
		"agent_name":    "prospector",
		"job_type":      "find_leads",
		"error_message": "source fetch timed out",
	})
	result, err := tech.Execute(context.Background(), job)
	require.NoError(t, err)

	assert.Equal(t, StatusSuccess, result.Status)
	assert.Equal(t, true, result.Output["auto_repairable"])

	require.Len(t, result.NextJobs, 1)
	assert.Equal(t, "auto_repair", result.NextJobs[0].Type)
	assert.Equal(t, QueueSystem, result.NextJobs[0].Queue)

	report, ok := tech.Report(result.Output["report_id"].(string))
	require.True(t, ok)
	assert.Equal(t, "prospector", report.AgentName)
	assert.True(t, report.Diagnosis.AutoRepairable)
}

func TestTechnicianDiagnosisFailureIsNotRepairable(t *testing.T) {
	tech := NewTechnician(testDeps(newFakeStorage(), &fakeLLM{err: errors.New("provider down")}))

	job := NewJob("diagnose_error", "mission-1", map[string]interface{}{
		"error_message": "database connection refused",
	})
	result, err := tech.Execute(context.Background(), job)
	require.NoError(t, err)

	assert.Equal(t, StatusSuccess, result.Status)
	assert.Equal(t, false, result.Output["auto_repairable"])
	assert.Empty(t, result.NextJobs)
}

func TestTechnicianAutoRepairValidatesFix(t *testing.T) {
	llm := &fakeLLM{fn: func(prompt string) (string, error) {
		if strings.Contains(prompt, "Review this proposed remediation") {
			return `{"valid": true, "safe": true, "concerns": []}`, nil
		}
		return `{"root_cause": "missing retry", "fix_description": "add retry with backoff", "reasoning": "transient error", "risk_level": "low"}`, nil
	}}
	tech := NewTechnician(testDeps(newFakeStorage(), llm))

	tech.reports["report-1"] = &DiagnosticReport{
		ID:           "report-1",
		AgentName:    "prospector",
		ErrorMessage: "source fetch timed out",
		CreatedAt:    time.Now().UTC(),
	}

	job := NewJob("auto_repair", "mission-1", map[string]interface{}{
		"report_id": "report-1",
	})
	result, err := tech.Execute(context.Background(), job)
	require.NoError(t, err)

	assert.Equal(t, StatusSuccess, result.Status)
	assert.Equal(t, true, result.Output["repair_successful"])
	assert.Equal(t, 1, result.Output["attempt_count"])

	report, _ := tech.Report("report-1")
	assert.True(t, report.Resolved)
	require.Len(t, report.FixAttempts, 1)
	assert.True(t, report.FixAttempts[0].ValidationPassed)
}

func TestTechnicianAutoRepairEscalatesAfterMaxAttempts(t *testing.T) {
	tech := NewTechnician(testDeps(newFakeStorage(), &fakeLLM{}))

	tech.reports["report-1"] = &DiagnosticReport{
		ID:           "report-1",
		ErrorMessage: "stuck job",
		FixAttempts: []FixAttempt{
			{FixDescription: "attempt 1"},
			{FixDescription: "attempt 2"},
			{FixDescription: "attempt 3"},
		},
	}

	job := NewJob("auto_repair", "mission-1", map[string]interface{}{
		"report_id": "report-1",
	})
	result, err := tech.Execute(context.Background(), job)
	require.NoError(t, err)

	assert.Equal(t, StatusSuccess, result.Status)
	assert.Equal(t, true, result.Output["escalating"])
	require.Len(t, result.NextJobs, 1)
	assert.Equal(t, "escalate_error", result.NextJobs[0].Type)
	assert.Equal(t, 9, result.NextJobs[0].Priority)
}

func TestTechnicianValidateFix(t *testing.T) {
	llm := &fakeLLM{response: `{"valid": true, "safe": false, "concerns": ["touches production data"]}`}
	tech := NewTechnician(testDeps(newFakeStorage(), llm))

	job := NewJob("validate_fix", "", map[string]interface{}{
		"fix_description": "truncate the table and retry",
		"error_message":   "duplicate key violation",
	})
	result, err := tech.Execute(context.Background(), job)
	require.NoError(t, err)

	assert.Equal(t, StatusSuccess, result.Status)
	assert.Equal(t, false, result.Output["validation_passed"])
}

func TestTechnicianEscalateErrorLogsActivity(t *testing.T) {
	storage := newFakeStorage()
	tech := NewTechnician(testDeps(storage, &fakeLLM{}))
	tech.reports["report-1"] = &DiagnosticReport{ID: "report-1"}

	job := NewJob("escalate_error", "mission-1", map[string]interface{}{
		"report_id": "report-1",
		"reason":    "Max repair attempts reached",
	})
	result, err := tech.Execute(context.Background(), job)
	require.NoError(t, err)

	assert.Equal(t, StatusSuccess, result.Status)

	report, _ := tech.Report("report-1")
	assert.True(t, report.Escalated)

	require.Len(t, storage.activities, 1)
	assert.Equal(t, "error_escalation", storage.activities[0].ActivityType)
	assert.Equal(t, "mission-1", storage.activities[0].MissionID)
}
