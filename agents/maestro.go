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
	"log"
	"time"

	"chimera/platform/store"
)

// Maestro is the orchestrator: it owns the mission state machine,
// advances missions when upstream stages finish, and emits the
// follow-on jobs each stage requires.
type Maestro struct {
	deps Deps
}

// missionFlow is the forward path of the mission lifecycle.
var missionFlow = []string{
	store.MissionStatusCreated,
	store.MissionStatusAnalyzing,
	store.MissionStatusProspecting,
	store.MissionStatusContentCreating,
	store.MissionStatusOutreachActive,
	store.MissionStatusLeadsNurturing,
	store.MissionStatusDealsClosing,
	store.MissionStatusFulfillment,
	store.MissionStatusCompleted,
}

// NewMaestro creates the orchestrator agent.
func NewMaestro(deps Deps) *Maestro {
	return &Maestro{deps: deps}
}

// Name implements Agent.
func (m *Maestro) Name() string { return "maestro" }

// JobTypes implements Agent.
func (m *Maestro) JobTypes() []string {
	return []string{"start_mission", "advance_mission", "mission_completed", "agent_error"}
}

// Execute implements Agent.
func (m *Maestro) Execute(ctx context.Context, job *Job) (*Result, error) {
	start := time.Now()

	var result *Result
	switch job.Type {
	case "start_mission":
		result = m.startMission(ctx, job)
	case "advance_mission":
		result = m.advanceMission(ctx, job)
	case "mission_completed":
		result = m.completeMission(ctx, job)
	case "agent_error":
		result = m.handleAgentError(ctx, job)
	default:
		result = Errorf("unknown job type: %s", job.Type)
	}

	result.ExecutionTimeMs = time.Since(start).Milliseconds()
	return result, nil
}

// startMission moves a fresh mission into analyzing and kicks off the
// strategist.
func (m *Maestro) startMission(ctx context.Context, job *Job) *Result {
	if job.MissionID == "" {
		return Errorf("missing mission_id in job data")
	}

	mission, err := m.deps.Store.GetMission(ctx, job.MissionID)
	if err != nil {
		return Errorf("mission %s not found", job.MissionID)
	}
	log.Printf("[Maestro] Starting mission %s: %s", mission.ID, mission.BusinessGoal)

	if err := m.transition(ctx, mission.ID, mission.Status, store.MissionStatusAnalyzing); err != nil {
		return Errorf("failed to start mission: %v", err)
	}

	brief := NewJob("create_mission_brief", mission.ID, map[string]interface{}{
		"client_input": map[string]interface{}{
			"business_goal":   mission.BusinessGoal,
			"target_audience": mission.TargetAudience,
			"brand_voice":     mission.BrandVoice,
		},
	})
	return Success(map[string]interface{}{
		"mission_id": mission.ID,
		"status":     store.MissionStatusAnalyzing,
	}, brief)
}

// advanceMission moves a mission to the next lifecycle stage and
// enqueues the work that stage needs.
func (m *Maestro) advanceMission(ctx context.Context, job *Job) *Result {
	if job.MissionID == "" {
		return Errorf("missing mission_id in job data")
	}

	mission, err := m.deps.Store.GetMission(ctx, job.MissionID)
	if err != nil {
		return Errorf("mission %s not found", job.MissionID)
	}

	next := nextStage(mission.Status)
	if next == "" {
		return Errorf("mission %s cannot advance from %s", mission.ID, mission.Status)
	}

	if err := m.transition(ctx, mission.ID, mission.Status, next); err != nil {
		return Errorf("failed to advance mission: %v", err)
	}

	followOns, err := m.stageJobs(ctx, mission, next)
	if err != nil {
		log.Printf("[Maestro] Failed to build stage jobs for mission %s: %v", mission.ID, err)
	}

	return Success(map[string]interface{}{
		"mission_id":    mission.ID,
		"old_status":    mission.Status,
		"new_status":    next,
		"jobs_enqueued": len(followOns),
	}, followOns...)
}

func (m *Maestro) completeMission(ctx context.Context, job *Job) *Result {
	if job.MissionID == "" {
		return Errorf("missing mission_id in job data")
	}

	mission, err := m.deps.Store.GetMission(ctx, job.MissionID)
	if err != nil {
		return Errorf("mission %s not found", job.MissionID)
	}

	if err := m.transition(ctx, mission.ID, mission.Status, store.MissionStatusCompleted); err != nil {
		return Errorf("failed to complete mission: %v", err)
	}

	return Success(map[string]interface{}{
		"mission_id": mission.ID,
		"status":     store.MissionStatusCompleted,
	})
}

// handleAgentError records the failure and hands it to the technician
// for diagnosis.
func (m *Maestro) handleAgentError(ctx context.Context, job *Job) *Result {
	agentName := job.String("agent_name")
	errorMessage := job.String("error_message")
	log.Printf("[Maestro] Agent error reported by %s: %s", agentName, errorMessage)

	diagnose := NewJob("diagnose_error", job.MissionID, map[string]interface{}{
		"agent_name":    agentName,
		"error_message": errorMessage,
		"job_type":      job.String("job_type"),
	})
	diagnose.Queue = QueueSystem
	diagnose.Priority = 8

	return Success(map[string]interface{}{
		"error_handled": true,
		"agent_name":    agentName,
	}, diagnose)
}

// transition updates mission status and writes the state_transition
// audit row.
func (m *Maestro) transition(ctx context.Context, missionID, from, to string) error {
	if err := m.deps.Store.UpdateMissionStatus(ctx, missionID, to, ""); err != nil {
		return err
	}
	log.Printf("[Maestro] Mission %s state: %s -> %s", missionID, from, to)

	activity := &store.AgentActivity{
		AgentName:    m.Name(),
		ActivityType: "state_transition",
		Description:  fmt.Sprintf("Mission %s state changed from %s to %s", missionID, from, to),
		Status:       "success",
		MissionID:    missionID,
	}
	if err := m.deps.Store.LogActivity(ctx, activity); err != nil {
		log.Printf("[Maestro] Failed to log state transition: %v", err)
	}
	return nil
}

// nextStage returns the stage after the current one, or "" when the
// mission cannot advance (completed, paused, error, unknown).
func nextStage(current string) string {
	for i, stage := range missionFlow {
		if stage == current && i+1 < len(missionFlow) {
			return missionFlow[i+1]
		}
	}
	return ""
}

// stageJobs builds the follow-on jobs a newly entered stage requires.
func (m *Maestro) stageJobs(ctx context.Context, mission *store.Mission, stage string) ([]*Job, error) {
	switch stage {
	case store.MissionStatusAnalyzing:
		return []*Job{NewJob("create_mission_brief", mission.ID, map[string]interface{}{
			"client_input": map[string]interface{}{
				"business_goal":   mission.BusinessGoal,
				"target_audience": mission.TargetAudience,
				"brand_voice":     mission.BrandVoice,
			},
		})}, nil

	case store.MissionStatusProspecting:
		return []*Job{NewJob("find_leads", mission.ID, map[string]interface{}{
			"target_audience": mission.TargetAudience,
			"business_goal":   mission.BusinessGoal,
		})}, nil

	case store.MissionStatusContentCreating:
		calendar := NewJob("generate_content_calendar", mission.ID, nil)
		calendar.Priority = 2
		return []*Job{calendar}, nil

	case store.MissionStatusOutreachActive:
		return m.outreachJobs(ctx, mission)

	case store.MissionStatusFulfillment:
		return m.fulfillmentJobs(ctx, mission)
	}
	return nil, nil
}

// outreachJobs drafts outreach for every untouched lead.
func (m *Maestro) outreachJobs(ctx context.Context, mission *store.Mission) ([]*Job, error) {
	leads, err := m.deps.Store.ListLeads(ctx, mission.ID)
	if err != nil {
		return nil, err
	}

	var jobs []*Job
	for _, lead := range leads {
		if lead.Status != store.LeadStatusNew {
			continue
		}
		outreach := NewJob("draft_outreach", mission.ID, map[string]interface{}{
			"lead_id": lead.ID,
		})
		outreach.Priority = 4
		jobs = append(jobs, outreach)
	}
	log.Printf("[Maestro] Triggered outreach for %d leads on mission %s", len(jobs), mission.ID)
	return jobs, nil
}

// fulfillmentJobs starts fulfillment for closed deals that do not
// already have a project.
func (m *Maestro) fulfillmentJobs(ctx context.Context, mission *store.Mission) ([]*Job, error) {
	leads, err := m.deps.Store.ListLeads(ctx, mission.ID)
	if err != nil {
		return nil, err
	}

	var jobs []*Job
	for _, lead := range leads {
		if lead.Status != store.LeadStatusClosedWon {
			continue
		}
		existing, err := m.deps.Store.ListFulfillmentProjects(ctx, lead.ID, "")
		if err != nil {
			return jobs, err
		}
		if len(existing) > 0 {
			continue
		}

		fulfill := NewJob("fulfill_internal", mission.ID, map[string]interface{}{
			"lead_id": lead.ID,
			"project_requirements": map[string]interface{}{
				"deliverable_type": "pdf_report",
				"urgency":          "standard",
			},
		})
		fulfill.Priority = 3
		jobs = append(jobs, fulfill)
	}
	log.Printf("[Maestro] Triggered fulfillment for %d closed deals on mission %s", len(jobs), mission.ID)
	return jobs, nil
}
