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
	"chimera/platform/store"
)

// externalFulfillmentDays is the default timeline quoted on external
// fulfillment projects.
const externalFulfillmentDays = 14

// Quartermaster manages external fulfillment: it synthesizes lead,
// mission, and conversation context into a freelancer job posting and
// opens a pending project.
type Quartermaster struct {
	deps Deps
}

// NewQuartermaster creates the quartermaster agent.
func NewQuartermaster(deps Deps) *Quartermaster {
	return &Quartermaster{deps: deps}
}

// Name implements Agent.
func (q *Quartermaster) Name() string { return "quartermaster" }

// JobTypes implements Agent.
func (q *Quartermaster) JobTypes() []string {
	return []string{"fulfill_external", "generate_freelancer_brief"}
}

// Execute implements Agent.
func (q *Quartermaster) Execute(ctx context.Context, job *Job) (*Result, error) {
	start := time.Now()

	var result *Result
	switch job.Type {
	case "fulfill_external":
		result = q.fulfillExternal(ctx, job)
	case "generate_freelancer_brief":
		result = q.generateBriefJob(ctx, job)
	default:
		result = Errorf("unknown job type: %s", job.Type)
	}

	result.ExecutionTimeMs = time.Since(start).Milliseconds()
	return result, nil
}

func (q *Quartermaster) fulfillExternal(ctx context.Context, job *Job) *Result {
	leadID := job.String("lead_id")
	if leadID == "" {
		return Errorf("lead_id is required for external fulfillment")
	}

	lead, err := q.deps.Store.GetLead(ctx, leadID)
	if err != nil {
		return Errorf("lead %s not found", leadID)
	}
	mission, err := q.deps.Store.GetMission(ctx, lead.MissionID)
	if err != nil {
		return Errorf("mission %s not found", lead.MissionID)
	}

	requirements := job.Map("project_requirements")
	brief, description, err := q.generateBrief(ctx, lead, mission, requirements)
	if err != nil {
		return Errorf("freelancer brief generation failed: %v", err)
	}

	estimated := time.Now().UTC().AddDate(0, 0, externalFulfillmentDays)
	project := &store.FulfillmentProject{
		LeadID:              lead.ID,
		MissionID:           lead.MissionID,
		ProjectType:         "external",
		ProjectTitle:        fmt.Sprintf("External fulfillment for %s", lead.CompanyName),
		ProjectDescription:  description,
		Requirements:        store.JSONMap(requirements),
		DeliverableType:     "freelancer_brief",
		FreelancerBrief:     brief,
		Status:              "pending",
		EstimatedCompletion: &estimated,
	}
	if err := q.deps.Store.CreateFulfillmentProject(ctx, project); err != nil {
		return Errorf("failed to record fulfillment project: %v", err)
	}

	log.Printf("[Quartermaster] Created external fulfillment project %s for lead %s", project.ID, lead.ID)
	return Success(map[string]interface{}{
		"project_id":          project.ID,
		"freelancer_brief":    brief,
		"project_description": description,
		"estimated_timeline":  fmt.Sprintf("%d days", externalFulfillmentDays),
		"status":              "ready_for_posting",
	})
}

func (q *Quartermaster) generateBriefJob(ctx context.Context, job *Job) *Result {
	leadID := job.String("lead_id")
	if leadID == "" {
		return Errorf("lead_id is required")
	}

	lead, err := q.deps.Store.GetLead(ctx, leadID)
	if err != nil {
		return Errorf("lead %s not found", leadID)
	}
	mission, err := q.deps.Store.GetMission(ctx, lead.MissionID)
	if err != nil {
		return Errorf("mission %s not found", lead.MissionID)
	}

	brief, description, err := q.generateBrief(ctx, lead, mission, job.Map("project_requirements"))
	if err != nil {
		return Errorf("freelancer brief generation failed: %v", err)
	}

	return Success(map[string]interface{}{
		"freelancer_brief":    brief,
		"project_description": description,
		"word_count":          len(strings.Fields(brief)),
	})
}

// generateBrief builds the freelancer job posting and a short project
// description extracted from it.
func (q *Quartermaster) generateBrief(ctx context.Context, lead *store.Lead, mission *store.Mission, requirements map[string]interface{}) (brief, description string, err error) {
	conversations, err := q.deps.Store.ListConversationsByLead(ctx, lead.ID)
	if err != nil {
		log.Printf("[Quartermaster] Failed to load conversation history: %v", err)
	}

	var conversationContext strings.Builder
	if len(conversations) > 0 {
		recent := conversations
		if len(recent) > 5 {
			recent = recent[len(recent)-5:]
		}
		conversationContext.WriteString("\n\nConversation History:\n")
		for _, conv := range recent {
			fmt.Fprintf(&conversationContext, "- %s: %s\n", conv.MessageType, conv.BodyPreview)
		}
	}

	systemPrompt := `You are a professional project manager creating detailed freelancer job postings.
Your job is to synthesize business requirements, client conversations, and project needs into a comprehensive,
professional freelancer brief that will attract qualified candidates.

Create a job posting that includes:
1. Clear project title and overview
2. Detailed scope of work
3. Required skills and qualifications
4. Deliverables and timeline
5. Budget guidance (if applicable)
6. Communication expectations

Make it professional, specific, and actionable.`

	prompt := fmt.Sprintf(`Create a detailed freelancer job posting based on this information:

BUSINESS CONTEXT:
- Company: %s
- Industry: %s
- Business Goal: %s
- Target Audience: %s
- Service Offerings: %s

CLIENT DETAILS:
- Contact: %s
- Company Size: %s
- Pain Points: %s

PROJECT REQUIREMENTS:
%s
%s
Generate a comprehensive freelancer job posting that addresses the client's needs and provides clear direction for potential freelancers.`,
		lead.CompanyName, lead.Industry, mission.BusinessGoal, mission.TargetAudience,
		strings.Join(mission.ServiceOfferings, ", "),
		lead.ContactName, lead.CompanySize, strings.Join(lead.PainPoints, ", "),
		marshalRequirements(requirements), conversationContext.String())

	resp, err := q.deps.LLM.Generate(ctx, "", prompt, llm.QueryOptions{
		MaxTokens:    2000,
		Temperature:  0.7,
		SystemPrompt: systemPrompt,
	})
	if err != nil {
		return "", "", err
	}

	description = extractProjectDescription(resp.Content, lead.CompanyName)
	log.Printf("[Quartermaster] Generated freelancer brief for %s", lead.CompanyName)
	return resp.Content, description, nil
}

// extractProjectDescription pulls the line after the first overview or
// description heading in a generated brief.
func extractProjectDescription(brief, companyName string) string {
	lines := strings.Split(brief, "\n")
	for i, line := range lines {
		lower := strings.ToLower(line)
		if strings.Contains(lower, "overview") || strings.Contains(lower, "description") || strings.Contains(lower, "project") {
			if i+1 < len(lines) && strings.TrimSpace(lines[i+1]) != "" {
				return strings.TrimSpace(lines[i+1])
			}
		}
	}
	return fmt.Sprintf("External fulfillment project for %s", companyName)
}
