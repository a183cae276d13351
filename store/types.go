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

// Package store provides PostgreSQL-backed persistence for missions,
// leads, conversations, content, fulfillment projects, and the agent
// activity audit log.
package store

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// Mission status values. Transitions are forward-only through the
// lifecycle; paused and error are side states.
const (
	MissionStatusCreated         = "created"
	MissionStatusAnalyzing       = "analyzing"
	MissionStatusProspecting     = "prospecting"
	MissionStatusContentCreating = "content_creating"
	MissionStatusOutreachActive  = "outreach_active"
	MissionStatusLeadsNurturing  = "leads_nurturing"
	MissionStatusDealsClosing    = "deals_closing"
	MissionStatusFulfillment     = "fulfillment"
	MissionStatusCompleted       = "completed"
	MissionStatusPaused          = "paused"
	MissionStatusError           = "error"
)

// Lead status values
const (
	LeadStatusNew           = "new"
	LeadStatusContacted     = "contacted"
	LeadStatusEngaged       = "engaged"
	LeadStatusInterested    = "interested"
	LeadStatusNotInterested = "not_interested"
	LeadStatusNegotiating   = "negotiating"
	LeadStatusQualified     = "qualified"
	LeadStatusClosing       = "closing"
	LeadStatusClosedWon     = "closed_won"
	LeadStatusClosedLost    = "closed_lost"
)

// JSONMap is a map stored as a JSONB column.
type JSONMap map[string]interface{}

// Value implements driver.Valuer
func (m JSONMap) Value() (driver.Value, error) {
	if m == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(m)
}

// Scan implements sql.Scanner
func (m *JSONMap) Scan(src interface{}) error {
	if src == nil {
		*m = JSONMap{}
		return nil
	}
	b, ok := src.([]byte)
	if !ok {
		return fmt.Errorf("unsupported JSONB source type %T", src)
	}
	return json.Unmarshal(b, m)
}

// JSONList is a string slice stored as a JSONB column.
type JSONList []string

// Value implements driver.Valuer
func (l JSONList) Value() (driver.Value, error) {
	if l == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(l)
}

// Scan implements sql.Scanner
func (l *JSONList) Scan(src interface{}) error {
	if src == nil {
		*l = JSONList{}
		return nil
	}
	b, ok := src.([]byte)
	if !ok {
		return fmt.Errorf("unsupported JSONB source type %T", src)
	}
	return json.Unmarshal(b, l)
}

// Mission is a business objective the agent fleet executes end to end.
type Mission struct {
	ID               string    `json:"id"`
	BusinessGoal     string    `json:"business_goal"`
	TargetAudience   string    `json:"target_audience"`
	BrandVoice       string    `json:"brand_voice"`
	ServiceOfferings JSONList  `json:"service_offerings"`
	ContactInfo      JSONMap   `json:"contact_info"`
	Status           string    `json:"status"`
	ErrorMessage     string    `json:"error_message,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// Lead is a prospective customer discovered for a mission.
type Lead struct {
	ID                 string    `json:"id"`
	MissionID          string    `json:"mission_id,omitempty"`
	CompanyName        string    `json:"company_name"`
	WebsiteURL         string    `json:"website_url,omitempty"`
	ContactEmail       string    `json:"contact_email,omitempty"`
	ContactName        string    `json:"contact_name,omitempty"`
	PhoneNumber        string    `json:"phone_number,omitempty"`
	Industry           string    `json:"industry,omitempty"`
	CompanySize        string    `json:"company_size,omitempty"`
	PainPoints         JSONList  `json:"pain_points"`
	LeadSource         string    `json:"lead_source,omitempty"`
	QualificationScore int       `json:"qualification_score"`
	Status             string    `json:"status"`
	Notes              string    `json:"notes,omitempty"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// Conversation is a single message exchanged with a lead.
type Conversation struct {
	ID             string     `json:"id"`
	LeadID         string     `json:"lead_id"`
	ThreadID       string     `json:"thread_id,omitempty"`
	Subject        string     `json:"subject,omitempty"`
	SenderEmail    string     `json:"sender_email,omitempty"`
	RecipientEmail string     `json:"recipient_email,omitempty"`
	MessageType    string     `json:"message_type"` // incoming or outgoing
	BodyPreview    string     `json:"body_preview,omitempty"`
	FullBody       string     `json:"full_body,omitempty"`
	Status         string     `json:"status"` // unread, read, replied, draft
	SentAt         *time.Time `json:"sent_at,omitempty"`
	ReceivedAt     *time.Time `json:"received_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// Content is a generated content item on the content calendar.
type Content struct {
	ID              string     `json:"id"`
	MissionID       string     `json:"mission_id,omitempty"`
	Title           string     `json:"title"`
	ContentType     string     `json:"content_type"` // blog_post, social_media, video_script, email_newsletter
	Topic           string     `json:"topic"`
	TargetAudience  string     `json:"target_audience,omitempty"`
	ContentBody     string     `json:"content_body,omitempty"`
	MetaDescription string     `json:"meta_description,omitempty"`
	Tags            JSONList   `json:"tags"`
	Status          string     `json:"status"` // draft, approved, published, scheduled
	ScheduledDate   *time.Time `json:"scheduled_date,omitempty"`
	PublishedDate   *time.Time `json:"published_date,omitempty"`
	Platform        string     `json:"platform,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// FulfillmentProject tracks a deliverable owed to a closed lead.
type FulfillmentProject struct {
	ID                  string     `json:"id"`
	LeadID              string     `json:"lead_id"`
	MissionID           string     `json:"mission_id,omitempty"`
	ProjectType         string     `json:"project_type"` // internal or external
	ProjectTitle        string     `json:"project_title"`
	ProjectDescription  string     `json:"project_description,omitempty"`
	Requirements        JSONMap    `json:"requirements"`
	DeliverableType     string     `json:"deliverable_type,omitempty"`
	DeliverablePath     string     `json:"deliverable_path,omitempty"`
	FreelancerBrief     string     `json:"freelancer_brief,omitempty"`
	Status              string     `json:"status"` // pending, in_progress, completed, delivered
	EstimatedCompletion *time.Time `json:"estimated_completion,omitempty"`
	ActualCompletion    *time.Time `json:"actual_completion,omitempty"`
	QualityScore        int        `json:"quality_score,omitempty"`
	ClientFeedback      string     `json:"client_feedback,omitempty"`
	CreatedAt           time.Time  `json:"created_at"`
	UpdatedAt           time.Time  `json:"updated_at"`
}

// AgentActivity is one row of the audit log. Every job execution writes
// exactly one activity, success or failure.
type AgentActivity struct {
	ID              string    `json:"id"`
	AgentName       string    `json:"agent_name"`
	ActivityType    string    `json:"activity_type"`
	Description     string    `json:"description"`
	Status          string    `json:"status"` // success or error
	MissionID       string    `json:"mission_id,omitempty"`
	InputData       JSONMap   `json:"input_data,omitempty"`
	OutputData      JSONMap   `json:"output_data,omitempty"`
	ExecutionTimeMs int64     `json:"execution_time_ms"`
	ErrorMessage    string    `json:"error_message,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

// SystemStats is the aggregate snapshot served by the status endpoint.
type SystemStats struct {
	TotalMissions      int `json:"total_missions"`
	ActiveMissions     int `json:"active_missions"`
	TotalLeads         int `json:"total_leads"`
	QualifiedLeads     int `json:"qualified_leads"`
	TotalConversations int `json:"total_conversations"`
	ContentItems       int `json:"content_items"`
	OpenProjects       int `json:"open_projects"`
	ActivitiesLogged   int `json:"activities_logged"`
}
