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
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chimera/platform/agents"
	"chimera/platform/queue"
	"chimera/platform/store"
)

// fakeStorage is an in-memory Storage for handler tests.
type fakeStorage struct {
	pingErr error

	missions map[string]*store.Mission
	leads    map[string]*store.Lead

	conversations []*store.Conversation
	content       []*store.Content
	projects      []*store.FulfillmentProject
	activities    []*store.AgentActivity

	lastLeadStatus    string
	lastLeadScore     int
	lastContentStatus string
	lastPublishedDate *time.Time
	activityLimit     int
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{
		missions: make(map[string]*store.Mission),
		leads:    make(map[string]*store.Lead),
	}
}

func (f *fakeStorage) Ping(context.Context) error { return f.pingErr }

func (f *fakeStorage) SystemStats(context.Context) (*store.SystemStats, error) {
	return &store.SystemStats{TotalMissions: len(f.missions), TotalLeads: len(f.leads)}, nil
}

func (f *fakeStorage) CreateMission(_ context.Context, m *store.Mission) error {
	m.ID = fmt.Sprintf("mission-%d", len(f.missions)+1)
	m.CreatedAt = time.Now()
	f.missions[m.ID] = m
	return nil
}

func (f *fakeStorage) GetMission(_ context.Context, id string) (*store.Mission, error) {
	m, ok := f.missions[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return m, nil
}

func (f *fakeStorage) ListMissions(context.Context) ([]*store.Mission, error) {
	out := make([]*store.Mission, 0, len(f.missions))
	for _, m := range f.missions {
		out = append(out, m)
	}
	return out, nil
}

func (f *fakeStorage) UpdateMissionStatus(_ context.Context, id, status, _ string) error {
	m, ok := f.missions[id]
	if !ok {
		return store.ErrNotFound
	}
	if !store.ValidMissionTransition(m.Status, status) {
		return fmt.Errorf("%w: %s -> %s", store.ErrInvalidTransition, m.Status, status)
	}
	m.Status = status
	return nil
}

func (f *fakeStorage) ListLeads(_ context.Context, missionID string) ([]*store.Lead, error) {
	var out []*store.Lead
	for _, l := range f.leads {
		if missionID == "" || l.MissionID == missionID {
			out = append(out, l)
		}
	}
	return out, nil
}

func (f *fakeStorage) GetLead(_ context.Context, id string) (*store.Lead, error) {
	l, ok := f.leads[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return l, nil
}

func (f *fakeStorage) UpdateLeadStatus(_ context.Context, id, status string, score int, _ string) error {
	if _, ok := f.leads[id]; !ok {
		return store.ErrNotFound
	}
	f.lastLeadStatus = status
	f.lastLeadScore = score
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

func (f *fakeStorage) ListUnreadConversations(context.Context) ([]*store.Conversation, error) {
	var out []*store.Conversation
	for _, c := range f.conversations {
		if c.Status == "unread" {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *fakeStorage) ListContent(_ context.Context, _, _ string) ([]*store.Content, error) {
	return f.content, nil
}

func (f *fakeStorage) UpdateContentStatus(_ context.Context, id, status string, publishedDate *time.Time) error {
	for _, c := range f.content {
		if c.ID == id {
			f.lastContentStatus = status
			f.lastPublishedDate = publishedDate
			return nil
		}
	}
	return store.ErrNotFound
}

func (f *fakeStorage) ListFulfillmentProjects(_ context.Context, _, _ string) ([]*store.FulfillmentProject, error) {
	return f.projects, nil
}

func (f *fakeStorage) GetFulfillmentProject(_ context.Context, id string) (*store.FulfillmentProject, error) {
	for _, p := range f.projects {
		if p.ID == id {
			return p, nil
		}
	}
	return nil, store.ErrNotFound
}

func (f *fakeStorage) ListActivities(_ context.Context, _ string, limit int) ([]*store.AgentActivity, error) {
	f.activityLimit = limit
	return f.activities, nil
}

// fakeJobs records submitted jobs.
type fakeJobs struct {
	submitted []*agents.Job
	submitErr error
}

func (f *fakeJobs) Submit(_ context.Context, job *agents.Job) error {
	if f.submitErr != nil {
		return f.submitErr
	}
	f.submitted = append(f.submitted, job)
	return nil
}

func (f *fakeJobs) Stats(context.Context) (*queue.Stats, error) {
	return &queue.Stats{Workers: 4, Processed: 12, QueueDepths: map[string]int64{"agents": 2}}, nil
}

type handlerAgent struct {
	name  string
	types []string
}

func (h *handlerAgent) Name() string       { return h.name }
func (h *handlerAgent) JobTypes() []string { return h.types }
func (h *handlerAgent) Execute(context.Context, *agents.Job) (*agents.Result, error) {
	return agents.Success(nil), nil
}

func testServer(t *testing.T) (*Server, *fakeStorage, *fakeJobs) {
	t.Helper()
	storage := newFakeStorage()
	jobs := &fakeJobs{}
	registry := agents.NewRegistry()
	require.NoError(t, registry.Register(&handlerAgent{name: "prospector", types: []string{"find_leads"}}))
	require.NoError(t, registry.Register(&handlerAgent{name: "maestro", types: []string{"start_mission"}}))

	s := NewServer(&Config{Port: "0"}, storage, jobs, registry, nil)
	return s, storage, jobs
}

func doRequest(t *testing.T, s *Server, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestHealthEndpoint(t *testing.T) {
	s, storage, _ := testServer(t)

	rec := doRequest(t, s, "GET", "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decodeBody(t, rec)["status"])

	storage.pingErr = errors.New("connection refused")
	rec = doRequest(t, s, "GET", "/health", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "degraded", decodeBody(t, rec)["status"])
}

func TestStatusEndpoint(t *testing.T) {
	s, _, _ := testServer(t)

	rec := doRequest(t, s, "GET", "/api/status", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	assert.Contains(t, body, "stats")
	assert.Contains(t, body, "queue")
	assert.Contains(t, body, "agents")
}

func TestCreateMission(t *testing.T) {
	s, storage, _ := testServer(t)

	rec := doRequest(t, s, "POST", "/api/missions", map[string]interface{}{
		"business_goal":     "Sell automation consulting to logistics companies",
		"target_audience":   "mid-size logistics firms",
		"service_offerings": []string{"process automation"},
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	body := decodeBody(t, rec)
	assert.NotEmpty(t, body["id"])
	assert.Equal(t, store.MissionStatusCreated, body["status"])
	assert.Len(t, storage.missions, 1)
}

func TestCreateMissionRequiresGoal(t *testing.T) {
	s, _, _ := testServer(t)

	rec := doRequest(t, s, "POST", "/api/missions", map[string]interface{}{
		"target_audience": "anyone",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetMissionNotFound(t *testing.T) {
	s, _, _ := testServer(t)

	rec := doRequest(t, s, "GET", "/api/missions/nope", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStartMission(t *testing.T) {
	s, storage, jobs := testServer(t)
	storage.missions["mission-1"] = &store.Mission{ID: "mission-1", Status: store.MissionStatusCreated}

	rec := doRequest(t, s, "POST", "/api/missions/mission-1/start", nil)
	require.Equal(t, http.StatusAccepted, rec.Code)

	require.Len(t, jobs.submitted, 1)
	job := jobs.submitted[0]
	assert.Equal(t, "start_mission", job.Type)
	assert.Equal(t, "mission-1", job.MissionID)
	assert.Equal(t, agents.QueueHighPriority, job.Queue)
}

func TestStartMissionAlreadyRunning(t *testing.T) {
	s, storage, jobs := testServer(t)
	storage.missions["mission-1"] = &store.Mission{ID: "mission-1", Status: store.MissionStatusProspecting}

	rec := doRequest(t, s, "POST", "/api/missions/mission-1/start", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Empty(t, jobs.submitted)
}

func TestPauseAndResumeMission(t *testing.T) {
	s, storage, _ := testServer(t)
	storage.missions["mission-1"] = &store.Mission{ID: "mission-1", Status: store.MissionStatusProspecting}

	rec := doRequest(t, s, "POST", "/api/missions/mission-1/pause", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, store.MissionStatusPaused, storage.missions["mission-1"].Status)

	rec = doRequest(t, s, "POST", "/api/missions/mission-1/resume", map[string]interface{}{
		"status": store.MissionStatusProspecting,
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, store.MissionStatusProspecting, storage.missions["mission-1"].Status)
}

func TestResumeMissionRequiresStatus(t *testing.T) {
	s, storage, _ := testServer(t)
	storage.missions["mission-1"] = &store.Mission{ID: "mission-1", Status: store.MissionStatusPaused}

	rec := doRequest(t, s, "POST", "/api/missions/mission-1/resume", map[string]interface{}{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestInvalidTransitionIsConflict(t *testing.T) {
	s, storage, _ := testServer(t)
	storage.missions["mission-1"] = &store.Mission{ID: "mission-1", Status: store.MissionStatusCompleted}

	rec := doRequest(t, s, "POST", "/api/missions/mission-1/pause", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestListLeadsByMission(t *testing.T) {
	s, storage, _ := testServer(t)
	storage.leads["lead-1"] = &store.Lead{ID: "lead-1", MissionID: "mission-1", CompanyName: "Acme"}
	storage.leads["lead-2"] = &store.Lead{ID: "lead-2", MissionID: "mission-2", CompanyName: "Globex"}

	rec := doRequest(t, s, "GET", "/api/leads?mission_id=mission-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	leads := decodeBody(t, rec)["leads"].([]interface{})
	require.Len(t, leads, 1)
}

func TestUpdateLeadStatus(t *testing.T) {
	s, storage, _ := testServer(t)
	storage.leads["lead-1"] = &store.Lead{ID: "lead-1", Status: store.LeadStatusContacted}

	rec := doRequest(t, s, "PUT", "/api/leads/lead-1/status", map[string]interface{}{
		"status":              store.LeadStatusInterested,
		"qualification_score": 85,
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, store.LeadStatusInterested, storage.lastLeadStatus)
	assert.Equal(t, 85, storage.lastLeadScore)
}

func TestUpdateLeadStatusWithoutScoreKeepsExisting(t *testing.T) {
	s, storage, _ := testServer(t)
	storage.leads["lead-1"] = &store.Lead{
		ID:                 "lead-1",
		Status:             store.LeadStatusContacted,
		QualificationScore: 85,
	}

	rec := doRequest(t, s, "PUT", "/api/leads/lead-1/status", map[string]interface{}{
		"status": store.LeadStatusEngaged,
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, store.LeadStatusEngaged, storage.lastLeadStatus)

	// A status-only update must tell the store to keep the current score,
	// not overwrite it with zero.
	assert.Negative(t, storage.lastLeadScore)
}

func TestUpdateLeadStatusRejectsUnknown(t *testing.T) {
	s, storage, _ := testServer(t)
	storage.leads["lead-1"] = &store.Lead{ID: "lead-1"}

	rec := doRequest(t, s, "PUT", "/api/leads/lead-1/status", map[string]interface{}{
		"status": "on_fire",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUpdateContentStatusPublishedSetsDate(t *testing.T) {
	s, storage, _ := testServer(t)
	storage.content = []*store.Content{{ID: "content-1", Status: "approved"}}

	rec := doRequest(t, s, "PUT", "/api/content/content-1/status", map[string]interface{}{
		"status": "published",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "published", storage.lastContentStatus)
	require.NotNil(t, storage.lastPublishedDate)
	assert.WithinDuration(t, time.Now(), *storage.lastPublishedDate, time.Minute)
}

func TestListAgentsSorted(t *testing.T) {
	s, _, _ := testServer(t)

	rec := doRequest(t, s, "GET", "/api/agents", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	list := decodeBody(t, rec)["agents"].([]interface{})
	require.Len(t, list, 2)
	first := list[0].(map[string]interface{})
	assert.Equal(t, "maestro", first["name"])
}

func TestListActivitiesLimit(t *testing.T) {
	s, storage, _ := testServer(t)

	rec := doRequest(t, s, "GET", "/api/activities?limit=5", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 5, storage.activityLimit)

	rec = doRequest(t, s, "GET", "/api/activities?limit=bogus", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSubmitJob(t *testing.T) {
	s, _, jobs := testServer(t)

	rec := doRequest(t, s, "POST", "/api/jobs", map[string]interface{}{
		"type":       "find_leads",
		"mission_id": "mission-1",
		"payload":    map[string]interface{}{"search_query": "logistics"},
		"priority":   8,
	})
	require.Equal(t, http.StatusAccepted, rec.Code)
	assert.NotEmpty(t, decodeBody(t, rec)["job_id"])

	require.Len(t, jobs.submitted, 1)
	job := jobs.submitted[0]
	assert.Equal(t, "find_leads", job.Type)
	assert.Equal(t, 8, job.Priority)
	assert.Equal(t, "logistics", job.String("search_query"))
}

func TestSubmitJobRequiresType(t *testing.T) {
	s, _, jobs := testServer(t)

	rec := doRequest(t, s, "POST", "/api/jobs", map[string]interface{}{
		"mission_id": "mission-1",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, jobs.submitted)
}

func TestRequestIDHeader(t *testing.T) {
	s, _, _ := testServer(t)

	rec := doRequest(t, s, "GET", "/health", nil)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	req := httptest.NewRequest("GET", "/health", nil)
	req.Header.Set("X-Request-ID", "req-42")
	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	assert.Equal(t, "req-42", rec.Header().Get("X-Request-ID"))
}
