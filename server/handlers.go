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

package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"chimera/platform/agents"
	"chimera/platform/store"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	health := map[string]interface{}{
		"status":   "ok",
		"database": "up",
	}
	statusCode := http.StatusOK
	if err := s.store.Ping(r.Context()); err != nil {
		health["status"] = "degraded"
		health["database"] = "down"
		statusCode = http.StatusServiceUnavailable
	}
	sendJSONResponse(w, statusCode, health)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	stats, err := s.store.SystemStats(ctx)
	if err != nil {
		sendErrorResponse(w, http.StatusInternalServerError, "failed to load system stats")
		return
	}

	status := map[string]interface{}{
		"stats":          stats,
		"uptime_seconds": int64(time.Since(s.started).Seconds()),
		"log_streams":    s.hub.ClientCount(),
		"agents":         s.agentStatuses(),
	}

	if queueStats, err := s.jobs.Stats(ctx); err == nil {
		status["queue"] = queueStats
		setQueueDepths(queueStats.QueueDepths)
	}
	if s.llm != nil {
		status["llm"] = map[string]interface{}{
			"healthy":   s.llm.IsHealthy(),
			"providers": s.llm.Status(),
		}
	}

	sendJSONResponse(w, http.StatusOK, status)
}

type createMissionRequest struct {
	BusinessGoal     string                 `json:"business_goal"`
	TargetAudience   string                 `json:"target_audience"`
	BrandVoice       string                 `json:"brand_voice"`
	ServiceOfferings []string               `json:"service_offerings"`
	ContactInfo      map[string]interface{} `json:"contact_info"`
}

func (s *Server) handleCreateMission(w http.ResponseWriter, r *http.Request) {
	var req createMissionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		sendErrorResponse(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.BusinessGoal == "" {
		sendErrorResponse(w, http.StatusBadRequest, "business_goal is required")
		return
	}

	mission := &store.Mission{
		BusinessGoal:     req.BusinessGoal,
		TargetAudience:   req.TargetAudience,
		BrandVoice:       req.BrandVoice,
		ServiceOfferings: store.JSONList(req.ServiceOfferings),
		ContactInfo:      store.JSONMap(req.ContactInfo),
		Status:           store.MissionStatusCreated,
	}
	if err := s.store.CreateMission(r.Context(), mission); err != nil {
		sendErrorResponse(w, http.StatusInternalServerError, "failed to create mission")
		return
	}

	sendJSONResponse(w, http.StatusCreated, mission)
}

func (s *Server) handleListMissions(w http.ResponseWriter, r *http.Request) {
	missions, err := s.store.ListMissions(r.Context())
	if err != nil {
		sendErrorResponse(w, http.StatusInternalServerError, "failed to list missions")
		return
	}
	sendJSONResponse(w, http.StatusOK, map[string]interface{}{"missions": missions})
}

func (s *Server) handleGetMission(w http.ResponseWriter, r *http.Request) {
	mission, err := s.store.GetMission(r.Context(), mux.Vars(r)["id"])
	if errors.Is(err, store.ErrNotFound) {
		sendErrorResponse(w, http.StatusNotFound, "mission not found")
		return
	}
	if err != nil {
		sendErrorResponse(w, http.StatusInternalServerError, "failed to get mission")
		return
	}
	sendJSONResponse(w, http.StatusOK, mission)
}

// handleStartMission hands a created mission to the maestro. The job
// runs on the high-priority queue so a fresh mission starts promptly.
func (s *Server) handleStartMission(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	mission, err := s.store.GetMission(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		sendErrorResponse(w, http.StatusNotFound, "mission not found")
		return
	}
	if err != nil {
		sendErrorResponse(w, http.StatusInternalServerError, "failed to get mission")
		return
	}
	if mission.Status != store.MissionStatusCreated && mission.Status != store.MissionStatusPaused {
		sendErrorResponse(w, http.StatusConflict, "mission already started")
		return
	}

	job := agents.NewJob("start_mission", id, nil)
	job.Queue = agents.QueueHighPriority
	job.Priority = 8
	if err := s.jobs.Submit(r.Context(), job); err != nil {
		sendErrorResponse(w, http.StatusInternalServerError, "failed to enqueue mission start")
		return
	}

	sendJSONResponse(w, http.StatusAccepted, map[string]string{
		"mission_id": id,
		"job_id":     job.ID,
	})
}

func (s *Server) handlePauseMission(w http.ResponseWriter, r *http.Request) {
	s.transitionMission(w, r, store.MissionStatusPaused)
}

// handleResumeMission moves a paused mission back into its lifecycle.
// The target status comes from the request body.
func (s *Server) handleResumeMission(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Status == "" {
		sendErrorResponse(w, http.StatusBadRequest, "status is required")
		return
	}
	s.transitionMission(w, r, req.Status)
}

func (s *Server) transitionMission(w http.ResponseWriter, r *http.Request, status string) {
	id := mux.Vars(r)["id"]
	err := s.store.UpdateMissionStatus(r.Context(), id, status, "")
	switch {
	case errors.Is(err, store.ErrNotFound):
		sendErrorResponse(w, http.StatusNotFound, "mission not found")
	case errors.Is(err, store.ErrInvalidTransition):
		sendErrorResponse(w, http.StatusConflict, err.Error())
	case err != nil:
		sendErrorResponse(w, http.StatusInternalServerError, "failed to update mission status")
	default:
		sendJSONResponse(w, http.StatusOK, map[string]string{"mission_id": id, "status": status})
	}
}

func (s *Server) handleListLeads(w http.ResponseWriter, r *http.Request) {
	leads, err := s.store.ListLeads(r.Context(), r.URL.Query().Get("mission_id"))
	if err != nil {
		sendErrorResponse(w, http.StatusInternalServerError, "failed to list leads")
		return
	}
	sendJSONResponse(w, http.StatusOK, map[string]interface{}{"leads": leads})
}

func (s *Server) handleGetLead(w http.ResponseWriter, r *http.Request) {
	lead, err := s.store.GetLead(r.Context(), mux.Vars(r)["id"])
	if errors.Is(err, store.ErrNotFound) {
		sendErrorResponse(w, http.StatusNotFound, "lead not found")
		return
	}
	if err != nil {
		sendErrorResponse(w, http.StatusInternalServerError, "failed to get lead")
		return
	}
	sendJSONResponse(w, http.StatusOK, lead)
}

var validLeadStatuses = map[string]bool{
	store.LeadStatusNew:           true,
	store.LeadStatusContacted:     true,
	store.LeadStatusEngaged:       true,
	store.LeadStatusInterested:    true,
	store.LeadStatusNotInterested: true,
	store.LeadStatusNegotiating:   true,
	store.LeadStatusQualified:     true,
	store.LeadStatusClosing:       true,
	store.LeadStatusClosedWon:     true,
	store.LeadStatusClosedLost:    true,
}

func (s *Server) handleUpdateLeadStatus(w http.ResponseWriter, r *http.Request) {
	req := struct {
		Status             string `json:"status"`
		QualificationScore int    `json:"qualification_score"`
		Notes              string `json:"notes"`
	}{
		// A negative score tells the store to keep the existing one, so
		// a status-only update never wipes the qualification score.
		QualificationScore: -1,
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		sendErrorResponse(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if !validLeadStatuses[req.Status] {
		sendErrorResponse(w, http.StatusBadRequest, "unknown lead status: "+req.Status)
		return
	}

	id := mux.Vars(r)["id"]
	err := s.store.UpdateLeadStatus(r.Context(), id, req.Status, req.QualificationScore, req.Notes)
	if errors.Is(err, store.ErrNotFound) {
		sendErrorResponse(w, http.StatusNotFound, "lead not found")
		return
	}
	if err != nil {
		sendErrorResponse(w, http.StatusInternalServerError, "failed to update lead status")
		return
	}
	sendJSONResponse(w, http.StatusOK, map[string]string{"lead_id": id, "status": req.Status})
}

func (s *Server) handleLeadConversations(w http.ResponseWriter, r *http.Request) {
	conversations, err := s.store.ListConversationsByLead(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		sendErrorResponse(w, http.StatusInternalServerError, "failed to list conversations")
		return
	}
	sendJSONResponse(w, http.StatusOK, map[string]interface{}{"conversations": conversations})
}

func (s *Server) handleUnreadConversations(w http.ResponseWriter, r *http.Request) {
	conversations, err := s.store.ListUnreadConversations(r.Context())
	if err != nil {
		sendErrorResponse(w, http.StatusInternalServerError, "failed to list unread conversations")
		return
	}
	sendJSONResponse(w, http.StatusOK, map[string]interface{}{"conversations": conversations})
}

func (s *Server) handleListContent(w http.ResponseWriter, r *http.Request) {
	items, err := s.store.ListContent(r.Context(), r.URL.Query().Get("mission_id"), r.URL.Query().Get("status"))
	if err != nil {
		sendErrorResponse(w, http.StatusInternalServerError, "failed to list content")
		return
	}
	sendJSONResponse(w, http.StatusOK, map[string]interface{}{"content": items})
}

func (s *Server) handleUpdateContentStatus(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Status == "" {
		sendErrorResponse(w, http.StatusBadRequest, "status is required")
		return
	}

	var publishedDate *time.Time
	if req.Status == "published" {
		now := time.Now().UTC()
		publishedDate = &now
	}

	id := mux.Vars(r)["id"]
	err := s.store.UpdateContentStatus(r.Context(), id, req.Status, publishedDate)
	if errors.Is(err, store.ErrNotFound) {
		sendErrorResponse(w, http.StatusNotFound, "content not found")
		return
	}
	if err != nil {
		sendErrorResponse(w, http.StatusInternalServerError, "failed to update content status")
		return
	}
	sendJSONResponse(w, http.StatusOK, map[string]string{"content_id": id, "status": req.Status})
}

func (s *Server) handleListProjects(w http.ResponseWriter, r *http.Request) {
	projects, err := s.store.ListFulfillmentProjects(r.Context(),
		r.URL.Query().Get("lead_id"), r.URL.Query().Get("status"))
	if err != nil {
		sendErrorResponse(w, http.StatusInternalServerError, "failed to list projects")
		return
	}
	sendJSONResponse(w, http.StatusOK, map[string]interface{}{"projects": projects})
}

func (s *Server) handleGetProject(w http.ResponseWriter, r *http.Request) {
	project, err := s.store.GetFulfillmentProject(r.Context(), mux.Vars(r)["id"])
	if errors.Is(err, store.ErrNotFound) {
		sendErrorResponse(w, http.StatusNotFound, "project not found")
		return
	}
	if err != nil {
		sendErrorResponse(w, http.StatusInternalServerError, "failed to get project")
		return
	}
	sendJSONResponse(w, http.StatusOK, project)
}

type agentStatus struct {
	Name     string   `json:"name"`
	JobTypes []string `json:"job_types"`
}

func (s *Server) agentStatuses() []agentStatus {
	names := s.registry.Names()
	sort.Strings(names)

	statuses := make([]agentStatus, 0, len(names))
	for _, name := range names {
		agent, ok := s.registry.Get(name)
		if !ok {
			continue
		}
		statuses = append(statuses, agentStatus{Name: name, JobTypes: agent.JobTypes()})
	}
	return statuses
}

func (s *Server) handleListAgents(w http.ResponseWriter, r *http.Request) {
	sendJSONResponse(w, http.StatusOK, map[string]interface{}{"agents": s.agentStatuses()})
}

func (s *Server) handleListActivities(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed < 1 {
			sendErrorResponse(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = parsed
	}

	activities, err := s.store.ListActivities(r.Context(), r.URL.Query().Get("agent"), limit)
	if err != nil {
		sendErrorResponse(w, http.StatusInternalServerError, "failed to list activities")
		return
	}
	sendJSONResponse(w, http.StatusOK, map[string]interface{}{"activities": activities})
}

type submitJobRequest struct {
	Type      string                 `json:"type"`
	MissionID string                 `json:"mission_id"`
	Payload   map[string]interface{} `json:"payload"`
	Queue     string                 `json:"queue"`
	Priority  int                    `json:"priority"`
}

// handleSubmitJob accepts a manually submitted job, mainly for
// operational poking at individual agents.
func (s *Server) handleSubmitJob(w http.ResponseWriter, r *http.Request) {
	var req submitJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		sendErrorResponse(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Type == "" {
		sendErrorResponse(w, http.StatusBadRequest, "type is required")
		return
	}

	job := agents.NewJob(req.Type, req.MissionID, req.Payload)
	if req.Queue != "" {
		job.Queue = req.Queue
	}
	if req.Priority != 0 {
		job.Priority = req.Priority
	}

	if err := s.jobs.Submit(r.Context(), job); err != nil {
		sendErrorResponse(w, http.StatusInternalServerError, "failed to enqueue job")
		return
	}
	sendJSONResponse(w, http.StatusAccepted, map[string]string{"job_id": job.ID})
}
