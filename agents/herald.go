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
	"strings"
	"time"

	"chimera/platform/llm"
	"chimera/platform/memory"
	"chimera/platform/store"
)

// Herald initiates first contact with new leads and writes follow-ups.
// Every draft passes the guardian before a conversation row is stored.
type Herald struct {
	deps     Deps
	guardian *Guardian
}

// emailDraft is the LLM output for one email.
type emailDraft struct {
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// NewHerald creates the herald agent.
func NewHerald(deps Deps) *Herald {
	return &Herald{deps: deps, guardian: NewGuardian(deps)}
}

// Name implements Agent.
func (h *Herald) Name() string { return "herald" }

// JobTypes implements Agent.
func (h *Herald) JobTypes() []string {
	return []string{"draft_outreach", "send_follow_up"}
}

// Execute implements Agent.
func (h *Herald) Execute(ctx context.Context, job *Job) (*Result, error) {
	start := time.Now()

	var result *Result
	switch job.Type {
	case "draft_outreach":
		result = h.draftOutreach(ctx, job)
	case "send_follow_up":
		result = h.sendFollowUp(ctx, job)
	default:
		result = Errorf("unknown job type: %s", job.Type)
	}

	result.ExecutionTimeMs = time.Since(start).Milliseconds()
	return result, nil
}

func (h *Herald) draftOutreach(ctx context.Context, job *Job) *Result {
	leadID := job.String("lead_id")
	if leadID == "" {
		return Errorf("lead_id is required for draft_outreach job")
	}

	lead, err := h.deps.Store.GetLead(ctx, leadID)
	if err != nil {
		return Errorf("lead %s not found", leadID)
	}
	mission, err := h.deps.Store.GetMission(ctx, lead.MissionID)
	if err != nil {
		return Errorf("mission %s not found", lead.MissionID)
	}

	draft := h.generateOutreach(ctx, lead, mission)

	report := h.guardian.Validate(ctx, draft.Body, "email")
	if !report.Passed {
		log.Printf("[Herald] Outreach draft for lead %s rejected (score %d)", lead.ID, report.SafetyScore)
		return Errorf("outreach draft failed validation: %s", strings.Join(report.Issues, "; "))
	}

	conv := &store.Conversation{
		LeadID:         lead.ID,
		Subject:        draft.Subject,
		RecipientEmail: lead.ContactEmail,
		MessageType:    "outgoing",
		BodyPreview:    preview(draft.Body),
		FullBody:       draft.Body,
		Status:         "draft",
	}
	if err := h.deps.Store.CreateConversation(ctx, conv); err != nil {
		return Errorf("failed to store outreach draft: %v", err)
	}

	if h.deps.Memory != nil {
		msg := memory.Message{
			Type:    "outgoing",
			Subject: draft.Subject,
			Body:    draft.Body,
			Sender:  "system",
			Context: fmt.Sprintf("First outreach email for %s", lead.CompanyName),
		}
		if err := h.deps.Memory.StoreMessage(ctx, lead.ID, msg); err != nil {
			log.Printf("[Herald] Failed to store outreach in memory bank: %v", err)
		}
	}

	if err := h.deps.Store.UpdateLeadStatus(ctx, lead.ID, store.LeadStatusContacted, -1, ""); err != nil {
		log.Printf("[Herald] Failed to mark lead %s contacted: %v", lead.ID, err)
	}

	log.Printf("[Herald] Created outreach draft %s for lead %s", conv.ID, lead.ID)
	return Success(map[string]interface{}{
		"conversation_id": conv.ID,
		"lead_id":         lead.ID,
		"subject":         draft.Subject,
		"preview":         preview(draft.Body),
		"safety_score":    report.SafetyScore,
	})
}

func (h *Herald) sendFollowUp(ctx context.Context, job *Job) *Result {
	leadID := job.String("lead_id")
	if leadID == "" {
		return Errorf("lead_id is required for follow_up job")
	}
	followUpType := job.String("follow_up_type")
	if followUpType == "" {
		followUpType = "general"
	}

	lead, err := h.deps.Store.GetLead(ctx, leadID)
	if err != nil {
		return Errorf("lead %s not found", leadID)
	}
	conversations, err := h.deps.Store.ListConversationsByLead(ctx, leadID)
	if err != nil {
		return Errorf("failed to load conversation history: %v", err)
	}

	draft := h.generateFollowUp(ctx, lead, conversations, followUpType)

	report := h.guardian.Validate(ctx, draft.Body, "email")
	if !report.Passed {
		log.Printf("[Herald] Follow-up draft for lead %s rejected (score %d)", lead.ID, report.SafetyScore)
		return Errorf("follow-up draft failed validation: %s", strings.Join(report.Issues, "; "))
	}

	conv := &store.Conversation{
		LeadID:         lead.ID,
		Subject:        draft.Subject,
		RecipientEmail: lead.ContactEmail,
		MessageType:    "outgoing",
		BodyPreview:    preview(draft.Body),
		FullBody:       draft.Body,
		Status:         "draft",
	}
	if err := h.deps.Store.CreateConversation(ctx, conv); err != nil {
		return Errorf("failed to store follow-up draft: %v", err)
	}

	log.Printf("[Herald] Created follow-up draft %s for lead %s", conv.ID, lead.ID)
	return Success(map[string]interface{}{
		"conversation_id": conv.ID,
		"lead_id":         lead.ID,
		"follow_up_type":  followUpType,
		"subject":         draft.Subject,
	})
}

// generateOutreach builds a personalized first-touch email, falling
// back to a template when the LLM call fails.
func (h *Herald) generateOutreach(ctx context.Context, lead *store.Lead, mission *store.Mission) *emailDraft {
	prompt := fmt.Sprintf(`You are a professional business development specialist writing a personalized first-touch outreach email.

Lead Information:
- Company: %s
- Industry: %s
- Website: %s
- Pain Points: %s
- Contact: %s

Mission Context:
- Business Goal: %s
- Target Audience: %s
- Brand Voice: %s
- Service Offerings: %s

Write a compelling, personalized outreach email that:
1. Addresses the lead by name (if available) or company
2. Shows you've researched their business
3. Identifies a specific pain point or opportunity
4. Briefly explains how your services can help
5. Includes a clear, low-pressure call to action
6. Maintains the specified brand voice
7. Is concise (under 150 words)
8. Feels personal, not templated

Return the response in this exact JSON format:
{"subject": "Subject line here", "body": "Email body here"}`,
		lead.CompanyName, lead.Industry, lead.WebsiteURL,
		strings.Join(lead.PainPoints, ", "), lead.ContactName,
		mission.BusinessGoal, mission.TargetAudience, mission.BrandVoice,
		strings.Join(mission.ServiceOfferings, ", "))

	draft := &emailDraft{}
	resp, err := h.deps.LLM.Generate(ctx, "", prompt, llm.QueryOptions{
		MaxTokens:   1000,
		Temperature: 0.7,
	})
	if err == nil {
		err = llm.UnmarshalResponse(resp.Content, draft)
	}
	if err != nil || draft.Subject == "" || draft.Body == "" {
		log.Printf("[Herald] Failed to generate outreach email: %v", err)
		return fallbackOutreach(lead, mission)
	}
	return draft
}

func fallbackOutreach(lead *store.Lead, mission *store.Mission) *emailDraft {
	company := lead.CompanyName
	if company == "" {
		company = "your company"
	}
	contact := lead.ContactName
	if contact == "" {
		contact = "there"
	}
	offerings := strings.Join(mission.ServiceOfferings, ", ")
	if offerings == "" {
		offerings = "Our services"
	}
	industry := lead.Industry
	if industry == "" {
		industry = "your industry"
	}

	return &emailDraft{
		Subject: fmt.Sprintf("Partnership opportunity with %s", company),
		Body: fmt.Sprintf(`Hi %s,

I noticed %s and thought there might be a great opportunity for collaboration.

%s could help address some of the challenges in %s.

Would you be open to a brief conversation to explore this further?

Best regards,
The Team`, contact, company, offerings, industry),
	}
}

// generateFollowUp builds a follow-up email from the last few
// conversations with the lead.
func (h *Herald) generateFollowUp(ctx context.Context, lead *store.Lead, conversations []*store.Conversation, followUpType string) *emailDraft {
	recent := conversations
	if len(recent) > 3 {
		recent = recent[len(recent)-3:]
	}
	var summary strings.Builder
	for _, conv := range recent {
		fmt.Fprintf(&summary, "- %s: %s\n", conv.MessageType, conv.BodyPreview)
	}

	prompt := fmt.Sprintf(`Generate a follow-up email for this lead:

Lead: %s (%s)
Follow-up Type: %s

Recent Conversation History:
%s
Create a %s follow-up email that:
1. References previous interactions appropriately
2. Provides additional value
3. Maintains professional tone
4. Includes clear next steps

Return JSON format:
{"subject": "Subject line", "body": "Email body"}`,
		lead.CompanyName, lead.ContactName, followUpType, summary.String(), followUpType)

	draft := &emailDraft{}
	resp, err := h.deps.LLM.Generate(ctx, "", prompt, llm.QueryOptions{
		MaxTokens:   1000,
		Temperature: 0.7,
	})
	if err == nil {
		err = llm.UnmarshalResponse(resp.Content, draft)
	}
	if err != nil || draft.Subject == "" || draft.Body == "" {
		log.Printf("[Herald] Failed to generate follow-up email: %v", err)
		return &emailDraft{
			Subject: fmt.Sprintf("Following up with %s", lead.CompanyName),
			Body:    fmt.Sprintf("Hi %s,\n\nI wanted to follow up on my previous message. Is there a good time this week for a quick conversation?\n\nBest regards,\nThe Team", lead.ContactName),
		}
	}
	return draft
}

// preview truncates an email body for list views.
func preview(body string) string {
	if len(body) > 200 {
		return body[:200] + "..."
	}
	return body
}
