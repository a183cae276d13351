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
	"regexp"
	"strings"
	"time"

	"chimera/platform/llm"
	"chimera/platform/memory"
	"chimera/platform/store"
)

// Closer manages replies: it drafts retrieval-augmented responses,
// handles objections, and moves leads toward a closed deal.
type Closer struct {
	deps Deps
}

var emailAddressPattern = regexp.MustCompile(`<([^>]+)>|([a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,})`)

// NewCloser creates the closer agent.
func NewCloser(deps Deps) *Closer {
	return &Closer{deps: deps}
}

// Name implements Agent.
func (c *Closer) Name() string { return "closer" }

// JobTypes implements Agent.
func (c *Closer) JobTypes() []string {
	return []string{"process_reply", "handle_objection", "close_deal"}
}

// Execute implements Agent.
func (c *Closer) Execute(ctx context.Context, job *Job) (*Result, error) {
	start := time.Now()

	var result *Result
	switch job.Type {
	case "process_reply":
		result = c.processReply(ctx, job)
	case "handle_objection":
		result = c.handleObjection(ctx, job)
	case "close_deal":
		result = c.closeDeal(ctx, job)
	default:
		result = Errorf("unknown job type: %s", job.Type)
	}

	result.ExecutionTimeMs = time.Since(start).Milliseconds()
	return result, nil
}

// processReply records an incoming message, drafts a context-aware
// response, and updates the lead status inferred from the reply text.
func (c *Closer) processReply(ctx context.Context, job *Job) *Result {
	emailData := job.Map("email_data")
	if emailData == nil {
		return Errorf("email_data is required for process_reply job")
	}

	sender, _ := emailData["sender"].(string)
	subject, _ := emailData["subject"].(string)
	body, _ := emailData["body"].(string)
	threadID, _ := emailData["thread_id"].(string)

	senderEmail := ExtractEmailAddress(sender)
	lead, err := c.deps.Store.FindLeadByEmail(ctx, senderEmail)
	if err != nil {
		log.Printf("[Closer] No lead found for email: %s", senderEmail)
		return Success(map[string]interface{}{
			"message": "No lead found for sender",
			"sender":  senderEmail,
		})
	}

	now := time.Now().UTC()
	incoming := &store.Conversation{
		LeadID:      lead.ID,
		ThreadID:    threadID,
		Subject:     subject,
		SenderEmail: senderEmail,
		MessageType: "incoming",
		BodyPreview: preview(body),
		FullBody:    body,
		Status:      "unread",
		ReceivedAt:  &now,
	}
	if err := c.deps.Store.CreateConversation(ctx, incoming); err != nil {
		return Errorf("failed to store incoming message: %v", err)
	}

	if c.deps.Memory != nil {
		msg := memory.Message{
			Type:    "incoming",
			Subject: subject,
			Body:    body,
			Sender:  senderEmail,
		}
		if err := c.deps.Memory.StoreMessage(ctx, lead.ID, msg); err != nil {
			log.Printf("[Closer] Failed to store incoming message in memory bank: %v", err)
		}
	}

	response := c.generateRAGResponse(ctx, lead, subject, body)

	outgoing := &store.Conversation{
		LeadID:         lead.ID,
		ThreadID:       threadID,
		Subject:        response.Subject,
		RecipientEmail: senderEmail,
		MessageType:    "outgoing",
		BodyPreview:    preview(response.Body),
		FullBody:       response.Body,
		Status:         "draft",
	}
	if err := c.deps.Store.CreateConversation(ctx, outgoing); err != nil {
		return Errorf("failed to store response draft: %v", err)
	}

	newStatus := DetermineLeadStatus(body)
	if err := c.deps.Store.UpdateLeadStatus(ctx, lead.ID, newStatus, -1, ""); err != nil {
		log.Printf("[Closer] Failed to update lead %s status: %v", lead.ID, err)
	}
	if err := c.deps.Store.UpdateConversationStatus(ctx, incoming.ID, "replied"); err != nil {
		log.Printf("[Closer] Failed to mark conversation replied: %v", err)
	}

	log.Printf("[Closer] Processed reply and created draft %s for lead %s", outgoing.ID, lead.ID)
	return Success(map[string]interface{}{
		"lead_id":                  lead.ID,
		"conversation_id":          incoming.ID,
		"response_conversation_id": outgoing.ID,
		"new_lead_status":          newStatus,
		"response_preview":         preview(response.Body),
	})
}

func (c *Closer) handleObjection(ctx context.Context, job *Job) *Result {
	leadID := job.String("lead_id")
	objectionType := job.String("objection_type")
	objectionText := job.String("objection_text")
	if leadID == "" || objectionType == "" {
		return Errorf("lead_id and objection_type are required")
	}

	lead, err := c.deps.Store.GetLead(ctx, leadID)
	if err != nil {
		return Errorf("lead %s not found", leadID)
	}
	mission, _ := c.deps.Store.GetMission(ctx, lead.MissionID)

	prompt := fmt.Sprintf(`Generate a professional response to handle this objection:

Lead: %s (%s)
Objection Type: %s
Objection Text: %s
Services: %s

Create a response that:
1. Acknowledges the concern respectfully
2. Provides relevant information to address the objection
3. Reframes the value proposition
4. Suggests a low-commitment next step

Return JSON format:
{"subject": "Re: your concern", "body": "Professional objection response"}`,
		lead.CompanyName, lead.ContactName, objectionType, objectionText,
		missionOfferings(mission))

	draft := &emailDraft{}
	resp, err := c.deps.LLM.Generate(ctx, "", prompt, llm.QueryOptions{
		MaxTokens:   1000,
		Temperature: 0.5,
	})
	if err == nil {
		err = llm.UnmarshalResponse(resp.Content, draft)
	}
	if err != nil || draft.Body == "" {
		log.Printf("[Closer] Failed to generate objection response: %v", err)
		draft = &emailDraft{
			Subject: "Re: your concern",
			Body:    fmt.Sprintf("Hi %s,\n\nThank you for sharing your concern. I'd welcome the chance to address it directly on a short call.\n\nBest regards,\nThe Team", lead.ContactName),
		}
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
	if err := c.deps.Store.CreateConversation(ctx, conv); err != nil {
		return Errorf("failed to store objection response draft: %v", err)
	}

	log.Printf("[Closer] Created objection response draft %s for lead %s", conv.ID, lead.ID)
	return Success(map[string]interface{}{
		"conversation_id": conv.ID,
		"lead_id":         lead.ID,
		"objection_type":  objectionType,
	})
}

func (c *Closer) closeDeal(ctx context.Context, job *Job) *Result {
	leadID := job.String("lead_id")
	if leadID == "" {
		return Errorf("lead_id is required for close_deal job")
	}
	closeType := job.String("close_type")
	if closeType == "" {
		closeType = "soft"
	}

	lead, err := c.deps.Store.GetLead(ctx, leadID)
	if err != nil {
		return Errorf("lead %s not found", leadID)
	}
	mission, _ := c.deps.Store.GetMission(ctx, lead.MissionID)

	prompt := fmt.Sprintf(`Generate a %s closing email for this lead:

Lead: %s (%s)
Services: %s

Create a %s close that:
1. Summarizes the value proposition
2. Creates appropriate urgency (if hard close)
3. Provides clear next steps
4. Makes it easy to say yes
5. Maintains professional tone

Return JSON format:
{"subject": "Next steps for [company]", "body": "Professional closing email"}`,
		closeType, lead.CompanyName, lead.ContactName, missionOfferings(mission), closeType)

	draft := &emailDraft{}
	resp, err := c.deps.LLM.Generate(ctx, "", prompt, llm.QueryOptions{
		MaxTokens:   1000,
		Temperature: 0.5,
	})
	if err == nil {
		err = llm.UnmarshalResponse(resp.Content, draft)
	}
	if err != nil || draft.Body == "" {
		log.Printf("[Closer] Failed to generate closing email: %v", err)
		draft = &emailDraft{
			Subject: fmt.Sprintf("Next steps for %s", lead.CompanyName),
			Body:    fmt.Sprintf("Hi %s,\n\nI'd like to discuss the next steps for our potential partnership.\n\nBest regards,\nThe Team", lead.ContactName),
		}
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
	if err := c.deps.Store.CreateConversation(ctx, conv); err != nil {
		return Errorf("failed to store closing email draft: %v", err)
	}

	if err := c.deps.Store.UpdateLeadStatus(ctx, lead.ID, store.LeadStatusClosing, -1, ""); err != nil {
		log.Printf("[Closer] Failed to mark lead %s closing: %v", lead.ID, err)
	}

	log.Printf("[Closer] Created closing email draft %s for lead %s", conv.ID, lead.ID)
	return Success(map[string]interface{}{
		"conversation_id": conv.ID,
		"lead_id":         lead.ID,
		"close_type":      closeType,
	})
}

// generateRAGResponse drafts a reply grounded in the lead profile,
// mission context, recent history, and relevant prior discussions
// retrieved from the memory bank.
func (c *Closer) generateRAGResponse(ctx context.Context, lead *store.Lead, subject, body string) *emailDraft {
	mission, _ := c.deps.Store.GetMission(ctx, lead.MissionID)
	ragContext := c.buildRAGContext(ctx, lead, mission, body)

	prompt := fmt.Sprintf(`You are a professional sales representative responding to a lead's email.

CONTEXT:
%s

INCOMING MESSAGE:
Subject: %s
Body: %s

INSTRUCTIONS:
1. Analyze the incoming message for intent (question, objection, interest, etc.)
2. Reference relevant conversation history appropriately
3. Address any questions or concerns directly
4. Provide value and build trust
5. Move the conversation toward a positive outcome
6. Maintain professional, helpful tone
7. Include appropriate next steps

Generate a response that feels natural and contextual.

Return JSON format:
{"subject": "Re: [original subject or new subject]", "body": "Professional email response"}`,
		ragContext, subject, body)

	draft := &emailDraft{}
	resp, err := c.deps.LLM.Generate(ctx, "", prompt, llm.QueryOptions{
		MaxTokens:   1500,
		Temperature: 0.5,
	})
	if err == nil {
		err = llm.UnmarshalResponse(resp.Content, draft)
	}
	if err != nil || draft.Body == "" {
		log.Printf("[Closer] Failed to generate RAG response: %v", err)
		replySubject := subject
		if replySubject == "" {
			replySubject = "Your inquiry"
		}
		contact := lead.ContactName
		if contact == "" {
			contact = "there"
		}
		return &emailDraft{
			Subject: "Re: " + replySubject,
			Body:    fmt.Sprintf("Thank you for your message, %s.\n\nI appreciate you taking the time to reach out. I'll follow up with more details shortly.\n\nBest regards,\nThe Team", contact),
		}
	}
	return draft
}

func (c *Closer) buildRAGContext(ctx context.Context, lead *store.Lead, mission *store.Mission, incomingBody string) string {
	var parts []string

	parts = append(parts, fmt.Sprintf(`LEAD PROFILE:
- Company: %s
- Contact: %s
- Industry: %s
- Status: %s
- Pain Points: %s
- Website: %s`,
		lead.CompanyName, lead.ContactName, lead.Industry, lead.Status,
		strings.Join(lead.PainPoints, ", "), lead.WebsiteURL))

	if mission != nil {
		parts = append(parts, fmt.Sprintf(`BUSINESS CONTEXT:
- Goal: %s
- Services: %s
- Brand Voice: %s
- Target Audience: %s`,
			mission.BusinessGoal, strings.Join(mission.ServiceOfferings, ", "),
			mission.BrandVoice, mission.TargetAudience))
	}

	if c.deps.Memory != nil {
		history, err := c.deps.Memory.History(ctx, lead.ID, 5)
		if err == nil && len(history) > 0 {
			parts = append(parts, "RECENT CONVERSATION HISTORY:")
			for _, msg := range history {
				parts = append(parts, fmt.Sprintf("- %s: %s", strings.ToUpper(msg.Type), preview100(msg.Body)))
			}
		}

		hits, err := c.deps.Memory.Search(ctx, lead.ID, incomingBody, 3)
		if err == nil {
			var relevant []string
			for _, hit := range hits {
				if hit.Score > 0.7 {
					relevant = append(relevant, fmt.Sprintf("- (Relevance: %.2f) %s", hit.Score, preview100(hit.Body)))
				}
			}
			if len(relevant) > 0 {
				parts = append(parts, "RELEVANT PREVIOUS DISCUSSIONS:")
				parts = append(parts, relevant...)
			}
		}
	}

	return strings.Join(parts, "\n\n")
}

// ExtractEmailAddress pulls a bare address out of a sender string such
// as "Name <email@domain.com>".
func ExtractEmailAddress(sender string) string {
	match := emailAddressPattern.FindStringSubmatch(sender)
	if match != nil {
		if match[1] != "" {
			return match[1]
		}
		return match[2]
	}
	return strings.TrimSpace(sender)
}

// DetermineLeadStatus infers the next lead status from reply text.
func DetermineLeadStatus(messageBody string) string {
	lower := strings.ToLower(messageBody)

	if containsAny(lower, "not interested", "no thanks", "remove", "unsubscribe") {
		return store.LeadStatusNotInterested
	}
	if containsAny(lower, "interested", "yes", "sounds good", "let's talk", "schedule", "meeting") {
		return store.LeadStatusInterested
	}
	if containsAny(lower, "price", "cost", "budget", "proposal", "quote") {
		return store.LeadStatusNegotiating
	}
	if containsAny(lower, "?", "how", "what", "when", "where", "why", "tell me more") {
		return store.LeadStatusEngaged
	}
	return store.LeadStatusEngaged
}

func missionOfferings(mission *store.Mission) string {
	if mission == nil {
		return ""
	}
	return strings.Join(mission.ServiceOfferings, ", ")
}

func preview100(body string) string {
	if len(body) > 100 {
		return body[:100] + "..."
	}
	return body
}
