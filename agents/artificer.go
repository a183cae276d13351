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
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"chimera/platform/llm"
	"chimera/platform/store"
)

// Artificer creates digital deliverables in-house: reports, scripts,
// and planning documents generated from lead and mission context and
// written through the artifact store.
type Artificer struct {
	deps Deps
}

// productSpec describes a generic deliverable type.
type productSpec struct {
	Ext     string
	Content string
}

var productSpecs = map[string]productSpec{
	"marketing_plan":    {Ext: "txt", Content: "marketing strategy and plan"},
	"business_plan":     {Ext: "txt", Content: "comprehensive business plan"},
	"seo_audit":         {Ext: "txt", Content: "SEO audit and recommendations"},
	"content_strategy":  {Ext: "txt", Content: "content marketing strategy"},
	"social_media_plan": {Ext: "txt", Content: "social media strategy and calendar"},
	"email_campaign":    {Ext: "txt", Content: "email marketing campaign"},
	"document":          {Ext: "txt", Content: "business document"},
}

// NewArtificer creates the artificer agent.
func NewArtificer(deps Deps) *Artificer {
	return &Artificer{deps: deps}
}

// Name implements Agent.
func (a *Artificer) Name() string { return "artificer" }

// JobTypes implements Agent.
func (a *Artificer) JobTypes() []string {
	return []string{"fulfill_internal", "create_digital_product", "generate_report", "create_script"}
}

// Execute implements Agent.
func (a *Artificer) Execute(ctx context.Context, job *Job) (*Result, error) {
	start := time.Now()

	var result *Result
	switch job.Type {
	case "fulfill_internal":
		result = a.fulfillInternal(ctx, job)
	case "create_digital_product", "generate_report", "create_script":
		result = a.createDeliverableJob(ctx, job)
	default:
		result = Errorf("unknown job type: %s", job.Type)
	}

	result.ExecutionTimeMs = time.Since(start).Milliseconds()
	return result, nil
}

// deliverable is the outcome of one generation step.
type deliverable struct {
	Path        string
	Description string
	WordCount   int
}

// fulfillInternal creates the deliverable a closed deal requires and
// records a completed fulfillment project.
func (a *Artificer) fulfillInternal(ctx context.Context, job *Job) *Result {
	leadID := job.String("lead_id")
	if leadID == "" {
		return Errorf("lead_id is required for internal fulfillment")
	}

	lead, err := a.deps.Store.GetLead(ctx, leadID)
	if err != nil {
		return Errorf("lead %s not found", leadID)
	}
	mission, err := a.deps.Store.GetMission(ctx, lead.MissionID)
	if err != nil {
		return Errorf("mission %s not found", lead.MissionID)
	}

	requirements := job.Map("project_requirements")
	deliverableType, _ := requirements["deliverable_type"].(string)
	if deliverableType == "" {
		deliverableType = "pdf_report"
	}

	product, err := a.createDeliverable(ctx, lead, mission, requirements, deliverableType)
	if err != nil {
		return Errorf("deliverable generation failed: %v", err)
	}

	now := time.Now().UTC()
	project := &store.FulfillmentProject{
		LeadID:             lead.ID,
		MissionID:          lead.MissionID,
		ProjectType:        "internal",
		ProjectTitle:       fmt.Sprintf("Internal fulfillment for %s", lead.CompanyName),
		ProjectDescription: product.Description,
		Requirements:       store.JSONMap(requirements),
		DeliverableType:    deliverableType,
		DeliverablePath:    product.Path,
		Status:             "completed",
		ActualCompletion:   &now,
	}
	if err := a.deps.Store.CreateFulfillmentProject(ctx, project); err != nil {
		return Errorf("failed to record fulfillment project: %v", err)
	}

	log.Printf("[Artificer] Created internal fulfillment project %s for lead %s", project.ID, lead.ID)
	return Success(map[string]interface{}{
		"project_id":       project.ID,
		"deliverable_path": product.Path,
		"deliverable_type": deliverableType,
		"description":      product.Description,
		"status":           "completed",
	})
}

// createDeliverableJob generates a standalone deliverable without a
// fulfillment project, for direct product requests.
func (a *Artificer) createDeliverableJob(ctx context.Context, job *Job) *Result {
	leadID := job.String("lead_id")
	if leadID == "" {
		return Errorf("lead_id is required")
	}

	lead, err := a.deps.Store.GetLead(ctx, leadID)
	if err != nil {
		return Errorf("lead %s not found", leadID)
	}
	mission, err := a.deps.Store.GetMission(ctx, lead.MissionID)
	if err != nil {
		return Errorf("mission %s not found", lead.MissionID)
	}

	requirements := job.Map("requirements")
	deliverableType := job.String("deliverable_type")
	if deliverableType == "" {
		switch job.Type {
		case "generate_report":
			deliverableType = "pdf_report"
		case "create_script":
			deliverableType = "python_script"
		default:
			deliverableType = "document"
		}
	}

	product, err := a.createDeliverable(ctx, lead, mission, requirements, deliverableType)
	if err != nil {
		return Errorf("deliverable generation failed: %v", err)
	}

	return Success(map[string]interface{}{
		"deliverable_path": product.Path,
		"deliverable_type": deliverableType,
		"description":      product.Description,
		"word_count":       product.WordCount,
	})
}

func (a *Artificer) createDeliverable(ctx context.Context, lead *store.Lead, mission *store.Mission, requirements map[string]interface{}, deliverableType string) (*deliverable, error) {
	switch deliverableType {
	case "pdf_report":
		return a.generateReport(ctx, lead, mission, requirements)
	case "python_script":
		return a.createScript(ctx, lead, mission, requirements)
	default:
		return a.createDigitalProduct(ctx, lead, mission, requirements, deliverableType)
	}
}

// generateReport writes a seven-section business report.
func (a *Artificer) generateReport(ctx context.Context, lead *store.Lead, mission *store.Mission, requirements map[string]interface{}) (*deliverable, error) {
	systemPrompt := `You are a professional business consultant creating detailed reports.
Generate comprehensive, well-structured content that provides real value to the client.
Include executive summary, analysis, recommendations, and actionable insights.
Format the content with clear headings and professional structure.`

	prompt := fmt.Sprintf(`Create a comprehensive business report for the following client:

%s

REPORT REQUIREMENTS:
%s

Generate a detailed report with the following structure:
1. Executive Summary
2. Current Situation Analysis
3. Market Opportunities
4. Strategic Recommendations
5. Implementation Plan
6. Success Metrics
7. Conclusion

Make it professional, actionable, and valuable for the client.`,
		clientContext(lead, mission), marshalRequirements(requirements))

	resp, err := a.deps.LLM.Generate(ctx, "", prompt, llm.QueryOptions{
		MaxTokens:    4000,
		Temperature:  0.7,
		SystemPrompt: systemPrompt,
	})
	if err != nil {
		return nil, err
	}

	header := fmt.Sprintf("BUSINESS REPORT FOR %s\n%s\n\n", strings.ToUpper(lead.CompanyName), strings.Repeat("=", 50))
	name := fmt.Sprintf("report_%s_%s.txt", lead.CompanyName, time.Now().UTC().Format("20060102_150405"))

	path, err := a.deps.Artifacts.Save(ctx, name, []byte(header+resp.Content))
	if err != nil {
		return nil, err
	}

	log.Printf("[Artificer] Generated report for %s: %s", lead.CompanyName, path)
	return &deliverable{
		Path:        path,
		Description: fmt.Sprintf("Comprehensive business report for %s", lead.CompanyName),
		WordCount:   len(strings.Fields(resp.Content)),
	}, nil
}

// createScript writes a client-specific Python automation script.
func (a *Artificer) createScript(ctx context.Context, lead *store.Lead, mission *store.Mission, requirements map[string]interface{}) (*deliverable, error) {
	systemPrompt := `You are a professional Python developer creating production-ready scripts.
Generate clean, well-documented, and functional Python code that solves the client's specific needs.
Include proper error handling, comments, and usage instructions.`

	prompt := fmt.Sprintf(`Create a Python script for the following client:

%s

SCRIPT REQUIREMENTS:
%s

Generate a complete Python script that addresses the client's needs. Include:
1. Proper imports and dependencies
2. Clear function definitions
3. Error handling
4. Documentation and comments
5. Usage examples
6. Main execution block

Make it production-ready and well-documented.`,
		clientContext(lead, mission), marshalRequirements(requirements))

	resp, err := a.deps.LLM.Generate(ctx, "", prompt, llm.QueryOptions{
		MaxTokens:    3000,
		Temperature:  0.3,
		SystemPrompt: systemPrompt,
	})
	if err != nil {
		return nil, err
	}

	header := fmt.Sprintf("\"\"\"\nPython Script for %s\nGenerated on: %s\n\"\"\"\n\n",
		lead.CompanyName, time.Now().UTC().Format("2006-01-02 15:04:05"))
	name := fmt.Sprintf("script_%s_%s.py", lead.CompanyName, time.Now().UTC().Format("20060102_150405"))

	path, err := a.deps.Artifacts.Save(ctx, name, []byte(header+resp.Content))
	if err != nil {
		return nil, err
	}

	log.Printf("[Artificer] Generated Python script for %s: %s", lead.CompanyName, path)
	return &deliverable{
		Path:        path,
		Description: fmt.Sprintf("Custom Python script for %s", lead.CompanyName),
		WordCount:   len(strings.Fields(resp.Content)),
	}, nil
}

// createDigitalProduct writes a deliverable of any other known type.
func (a *Artificer) createDigitalProduct(ctx context.Context, lead *store.Lead, mission *store.Mission, requirements map[string]interface{}, deliverableType string) (*deliverable, error) {
	spec, ok := productSpecs[deliverableType]
	if !ok {
		spec = productSpecs["document"]
	}

	systemPrompt := fmt.Sprintf(`You are a professional business consultant creating a detailed %s.
Generate comprehensive, actionable content that provides real value to the client.
Structure the content professionally with clear sections and practical recommendations.`, spec.Content)

	prompt := fmt.Sprintf(`Create a detailed %s for the following client:

%s

SPECIFIC REQUIREMENTS:
%s

Generate comprehensive content that addresses the client's specific needs and provides actionable value.`,
		spec.Content, clientContext(lead, mission), marshalRequirements(requirements))

	resp, err := a.deps.LLM.Generate(ctx, "", prompt, llm.QueryOptions{
		MaxTokens:    3500,
		Temperature:  0.7,
		SystemPrompt: systemPrompt,
	})
	if err != nil {
		return nil, err
	}

	header := fmt.Sprintf("%s FOR %s\n%s\n\n",
		strings.ToUpper(spec.Content), strings.ToUpper(lead.CompanyName), strings.Repeat("=", 60))
	name := fmt.Sprintf("%s_%s_%s.%s", deliverableType, lead.CompanyName,
		time.Now().UTC().Format("20060102_150405"), spec.Ext)

	path, err := a.deps.Artifacts.Save(ctx, name, []byte(header+resp.Content))
	if err != nil {
		return nil, err
	}

	log.Printf("[Artificer] Generated %s for %s: %s", deliverableType, lead.CompanyName, path)
	return &deliverable{
		Path:        path,
		Description: fmt.Sprintf("%s for %s", spec.Content, lead.CompanyName),
		WordCount:   len(strings.Fields(resp.Content)),
	}, nil
}

// clientContext formats the shared lead and mission section of every
// deliverable prompt.
func clientContext(lead *store.Lead, mission *store.Mission) string {
	return fmt.Sprintf(`CLIENT INFORMATION:
- Company: %s
- Industry: %s
- Contact: %s
- Company Size: %s
- Pain Points: %s

BUSINESS CONTEXT:
- Business Goal: %s
- Target Audience: %s
- Brand Voice: %s
- Service Offerings: %s`,
		lead.CompanyName, lead.Industry, lead.ContactName, lead.CompanySize,
		strings.Join(lead.PainPoints, ", "),
		mission.BusinessGoal, mission.TargetAudience, mission.BrandVoice,
		strings.Join(mission.ServiceOfferings, ", "))
}

func marshalRequirements(requirements map[string]interface{}) string {
	if len(requirements) == 0 {
		return "{}"
	}
	data, err := json.MarshalIndent(requirements, "", "  ")
	if err != nil {
		return "{}"
	}
	return string(data)
}
