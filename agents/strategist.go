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
	"time"

	"chimera/platform/llm"
	"chimera/platform/store"
)

// Strategist (ARCHITECT) turns raw client input into a structured
// mission brief and produces market analyses and strategic plans.
type Strategist struct {
	deps Deps
}

// MissionBrief is the structured output of brief creation. The LLM
// fills it from client input; a deterministic fallback covers LLM
// failures so mission creation never blocks on the provider.
type MissionBrief struct {
	BusinessGoal              string                 `json:"business_goal"`
	TargetAudience            string                 `json:"target_audience"`
	BrandVoice                string                 `json:"brand_voice"`
	ServiceOfferings          []string               `json:"service_offerings"`
	ValueProposition          string                 `json:"value_proposition"`
	KeyMessaging              []string               `json:"key_messaging"`
	SuccessMetrics            []string               `json:"success_metrics"`
	StrategicApproach         string                 `json:"strategic_approach"`
	ContentThemes             []string               `json:"content_themes"`
	LeadQualificationCriteria map[string]interface{} `json:"lead_qualification_criteria"`
	CompetitiveAdvantages     []string               `json:"competitive_advantages"`
	AnalysisSummary           string                 `json:"analysis_summary"`
	Recommendations           []string               `json:"recommendations"`
}

// NewStrategist creates the strategist agent.
func NewStrategist(deps Deps) *Strategist {
	return &Strategist{deps: deps}
}

// Name implements Agent.
func (s *Strategist) Name() string { return "strategist" }

// JobTypes implements Agent.
func (s *Strategist) JobTypes() []string {
	return []string{"create_mission_brief", "analyze_market", "develop_strategy", "refine_brief"}
}

// Execute implements Agent.
func (s *Strategist) Execute(ctx context.Context, job *Job) (*Result, error) {
	start := time.Now()

	var result *Result
	switch job.Type {
	case "create_mission_brief":
		result = s.createMissionBrief(ctx, job)
	case "analyze_market":
		result = s.analyzeMarket(ctx, job)
	case "develop_strategy":
		result = s.developStrategy(ctx, job)
	case "refine_brief":
		result = s.refineBrief(ctx, job)
	default:
		result = Errorf("unknown job type: %s", job.Type)
	}

	result.ExecutionTimeMs = time.Since(start).Milliseconds()
	return result, nil
}

func (s *Strategist) createMissionBrief(ctx context.Context, job *Job) *Result {
	clientInput := job.Map("client_input")
	if clientInput == nil {
		clientInput = job.Payload
	}
	goal, _ := clientInput["business_goal"].(string)
	if goal == "" {
		return Errorf("business goal is required for mission brief creation")
	}

	brief := s.structureInput(ctx, clientInput)
	if brief.BusinessGoal == "" {
		brief.BusinessGoal = goal
	}

	if job.MissionID != "" {
		update := store.BriefUpdate{
			BusinessGoal:     brief.BusinessGoal,
			TargetAudience:   brief.TargetAudience,
			BrandVoice:       brief.BrandVoice,
			ServiceOfferings: store.JSONList(brief.ServiceOfferings),
		}
		if err := s.deps.Store.UpdateMissionBrief(ctx, job.MissionID, update); err != nil {
			log.Printf("[Strategist] Failed to save mission brief for %s: %v", job.MissionID, err)
		}
	}

	return Success(map[string]interface{}{
		"mission_id":       job.MissionID,
		"mission_briefing": brief,
		"analysis_summary": brief.AnalysisSummary,
		"recommendations":  brief.Recommendations,
	})
}

func (s *Strategist) analyzeMarket(ctx context.Context, job *Job) *Result {
	industry := job.String("industry")
	targetMarket := job.String("target_market")

	prompt := fmt.Sprintf(`Conduct a market analysis for the following:
Industry: %s
Target Market: %s

Provide analysis on:
1. Market size and growth trends
2. Key competitors and their positioning
3. Market opportunities and gaps
4. Potential threats and challenges
5. Customer behavior and preferences
6. Pricing strategies in the market

Respond with a JSON object containing competitive_insights, opportunities, threats, and market_overview.`, industry, targetMarket)

	var analysis struct {
		CompetitiveInsights []string `json:"competitive_insights"`
		Opportunities       []string `json:"opportunities"`
		Threats             []string `json:"threats"`
		MarketOverview      string   `json:"market_overview"`
	}

	resp, err := s.deps.LLM.Generate(ctx, "", prompt, llm.QueryOptions{
		MaxTokens:   1500,
		Temperature: 0.2,
	})
	if err == nil {
		err = llm.UnmarshalResponse(resp.Content, &analysis)
	}
	if err != nil {
		log.Printf("[Strategist] Market analysis failed: %v", err)
		analysis.CompetitiveInsights = []string{"Analysis unavailable"}
		analysis.Opportunities = []string{"Market research needed"}
		analysis.Threats = []string{"Competition analysis required"}
		analysis.MarketOverview = "Detailed analysis unavailable"
	}

	return Success(map[string]interface{}{
		"market_overview":      analysis.MarketOverview,
		"competitive_insights": analysis.CompetitiveInsights,
		"market_opportunities": analysis.Opportunities,
		"market_threats":       analysis.Threats,
	})
}

func (s *Strategist) developStrategy(ctx context.Context, job *Job) *Result {
	brief := job.Map("mission_brief")
	briefJSON, _ := json.MarshalIndent(brief, "", "  ")

	prompt := fmt.Sprintf(`Create a strategic plan based on this mission brief:
%s

Develop a comprehensive strategic plan including:
1. Strategic objectives and goals
2. Action items with priorities
3. Timeline and milestones
4. Resource requirements
5. Risk assessment and mitigation
6. Success metrics and KPIs

Respond with a JSON object containing action_items, timeline, and resource_requirements.`, briefJSON)

	var plan struct {
		ActionItems          []string               `json:"action_items"`
		Timeline             map[string]interface{} `json:"timeline"`
		ResourceRequirements map[string]interface{} `json:"resource_requirements"`
	}

	resp, err := s.deps.LLM.Generate(ctx, "", prompt, llm.QueryOptions{
		MaxTokens:   1500,
		Temperature: 0.3,
	})
	if err == nil {
		err = llm.UnmarshalResponse(resp.Content, &plan)
	}
	if err != nil {
		log.Printf("[Strategist] Strategic planning failed: %v", err)
		plan.ActionItems = []string{"Define strategy", "Execute plan"}
		plan.Timeline = map[string]interface{}{"phase1": "30 days", "phase2": "60 days"}
		plan.ResourceRequirements = map[string]interface{}{"team": "TBD", "budget": "TBD"}
	}

	return Success(map[string]interface{}{
		"action_items":          plan.ActionItems,
		"timeline":              plan.Timeline,
		"resource_requirements": plan.ResourceRequirements,
	})
}

func (s *Strategist) refineBrief(ctx context.Context, job *Job) *Result {
	if job.MissionID == "" {
		return Errorf("mission_id is required for brief refinement")
	}
	refinements := job.Map("refinements")
	if len(refinements) == 0 {
		return Errorf("no refinements provided")
	}

	mission, err := s.deps.Store.GetMission(ctx, job.MissionID)
	if err != nil {
		return Errorf("mission %s not found", job.MissionID)
	}

	update := store.BriefUpdate{}
	if v, ok := refinements["business_goal"].(string); ok {
		update.BusinessGoal = v
	}
	if v, ok := refinements["target_audience"].(string); ok {
		update.TargetAudience = v
	}
	if v, ok := refinements["brand_voice"].(string); ok {
		update.BrandVoice = v
	}
	if v, ok := refinements["service_offerings"].([]interface{}); ok {
		for _, o := range v {
			if s, ok := o.(string); ok {
				update.ServiceOfferings = append(update.ServiceOfferings, s)
			}
		}
	}

	if err := s.deps.Store.UpdateMissionBrief(ctx, mission.ID, update); err != nil {
		return Errorf("failed to apply refinements: %v", err)
	}

	return Success(map[string]interface{}{
		"mission_id":   mission.ID,
		"changes_made": refinements,
	})
}

// structureInput asks the LLM to expand raw client input into a full
// brief, falling back to a skeleton brief built from the input itself.
func (s *Strategist) structureInput(ctx context.Context, clientInput map[string]interface{}) *MissionBrief {
	inputJSON, _ := json.MarshalIndent(clientInput, "", "  ")

	prompt := fmt.Sprintf(`Analyze the following client input and create a structured business strategy brief:

CLIENT INPUT:
%s

Provide a comprehensive analysis and create structured output with:

1. REFINED BUSINESS GOAL: Clear, specific, measurable objective
2. TARGET AUDIENCE: Detailed persona and demographics
3. VALUE PROPOSITION: Unique selling points and benefits
4. KEY MESSAGING: Core messages that resonate with the target audience
5. SUCCESS METRICS: Measurable KPIs and goals
6. STRATEGIC APPROACH: High-level strategy and methodology
7. CONTENT THEMES: Topics and themes for content creation
8. LEAD QUALIFICATION CRITERIA: Ideal customer profile
9. COMPETITIVE ADVANTAGES: Unique strengths and differentiators
10. ANALYSIS SUMMARY: Key insights and observations
11. RECOMMENDATIONS: Strategic recommendations for success

Respond with a JSON object using snake_case keys for all these elements.`, inputJSON)

	resp, err := s.deps.LLM.Generate(ctx, "", prompt, llm.QueryOptions{
		MaxTokens:   2000,
		Temperature: 0.3,
	})
	if err == nil {
		brief := &MissionBrief{}
		if err := llm.UnmarshalResponse(resp.Content, brief); err == nil {
			return brief
		}
		log.Printf("[Strategist] Failed to parse structured brief: %v", err)
	} else {
		log.Printf("[Strategist] Brief analysis failed: %v", err)
	}

	return fallbackBrief(clientInput)
}

func fallbackBrief(clientInput map[string]interface{}) *MissionBrief {
	goal, _ := clientInput["business_goal"].(string)
	audience, _ := clientInput["target_audience"].(string)
	voice, _ := clientInput["brand_voice"].(string)

	return &MissionBrief{
		BusinessGoal:      goal,
		TargetAudience:    audience,
		BrandVoice:        voice,
		ValueProposition:  "To be defined",
		SuccessMetrics:    []string{"Lead generation", "Conversion rate"},
		StrategicApproach: "Multi-channel outreach and content marketing",
		ContentThemes:     []string{"Industry insights", "Problem solving"},
		LeadQualificationCriteria: map[string]interface{}{
			"budget":    "TBD",
			"authority": "Decision maker",
		},
		AnalysisSummary: "Basic analysis completed",
		Recommendations: []string{"Define clear value proposition", "Identify target market"},
	}
}
