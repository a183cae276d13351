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
	"regexp"
	"strings"
	"time"
	"unicode"

	"github.com/prometheus/client_golang/prometheus"

	"chimera/platform/llm"
)

var promGuardianVerdicts = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "chimera_guardian_verdicts_total",
		Help: "Total number of guardian validation verdicts by outcome and risk level",
	},
	[]string{"verdict", "risk_level"},
)

func init() {
	prometheus.MustRegister(promGuardianVerdicts)
}

// Guardian (AEGIS) is the final safety checkpoint for all outbound
// communication and published content. Validation combines compiled
// pattern checks, rule checks, a professional tone check, and an LLM
// ethical review into a single safety score.
type Guardian struct {
	deps Deps
}

// prohibitedPattern pairs a compiled regex with its issue description.
type prohibitedPattern struct {
	re          *regexp.Regexp
	description string
}

var prohibitedPatterns = []prohibitedPattern{
	{regexp.MustCompile(`(?i)\b(guaranteed|100%|promise)\s+(profit|money|income|return)`), "financial guarantee language"},
	{regexp.MustCompile(`(?i)\b(get\s+rich\s+quick|make\s+money\s+fast)`), "get-rich-quick language"},
	{regexp.MustCompile(`(?i)\b(scam|fraud|cheat|trick)\b`), "fraud-adjacent wording"},
	{regexp.MustCompile(`(?i)\b(act\s+now|limited\s+time|expires\s+soon)\b`), "artificial urgency"},
	{regexp.MustCompile(`(?i)\b(free\s+money|no\s+risk|risk\s+free)\b`), "risk-free claims"},
	{regexp.MustCompile(`[A-Z]{6,}`), "excessive capitalization"},
	{regexp.MustCompile(`!{3,}`), "excessive exclamation marks"},
}

var informalWords = []string{"gonna", "wanna", "gotta", "yeah", "nah", "omg", "lol"}

// ValidationReport is the outcome of a guardian check.
type ValidationReport struct {
	Passed          bool     `json:"passed"`
	SafetyScore     int      `json:"safety_score"`
	RiskLevel       string   `json:"risk_level"`
	Issues          []string `json:"issues"`
	Recommendations []string `json:"recommendations"`
}

// NewGuardian creates the guardian agent.
func NewGuardian(deps Deps) *Guardian {
	return &Guardian{deps: deps}
}

// Name implements Agent.
func (g *Guardian) Name() string { return "guardian" }

// JobTypes implements Agent.
func (g *Guardian) JobTypes() []string {
	return []string{"validate_message", "validate_content", "safety_check"}
}

// Execute implements Agent.
func (g *Guardian) Execute(ctx context.Context, job *Job) (*Result, error) {
	start := time.Now()

	var text, kind string
	switch job.Type {
	case "validate_message":
		text = job.String("message_text")
		kind = job.String("message_type")
		if kind == "" {
			kind = "email"
		}
	case "validate_content":
		text = job.String("content_text")
		kind = job.String("content_type")
		if kind == "" {
			kind = "article"
		}
	case "safety_check":
		text = job.String("text")
		kind = job.String("context")
		if kind == "" {
			kind = "general"
		}
	default:
		return Errorf("unknown job type: %s", job.Type), nil
	}

	if text == "" {
		return Errorf("no text provided for validation"), nil
	}

	report := g.Validate(ctx, text, kind)

	result := Success(map[string]interface{}{
		"validation_result": passFail(report.Passed),
		"safety_score":      report.SafetyScore,
		"risk_level":        report.RiskLevel,
		"issues_found":      report.Issues,
		"recommendations":   report.Recommendations,
	})
	result.ExecutionTimeMs = time.Since(start).Milliseconds()
	return result, nil
}

func passFail(passed bool) string {
	if passed {
		return "PASS"
	}
	return "FAIL"
}

// Validate runs all checks and produces a report. Scoring starts at 100
// and deducts per issue class; a text passes only with a score of at
// least 70 and no issues at all.
func (g *Guardian) Validate(ctx context.Context, text, kind string) *ValidationReport {
	var issues, recommendations []string
	score := 100

	patternIssues := checkProhibitedPatterns(text)
	issues = append(issues, patternIssues...)
	score -= len(patternIssues) * 10

	ruleIssues := checkSafetyRules(text)
	issues = append(issues, ruleIssues...)
	score -= len(ruleIssues) * 15

	if g.deps.LLM != nil {
		review, err := g.runEthicalReview(ctx, text, kind)
		if err == nil && !review.Ethical {
			issues = append(issues, fmt.Sprintf("ethical concern: %s", review.Reason))
			score -= 20
			recommendations = append(recommendations, review.Recommendations...)
		}
	}

	toneIssues := checkProfessionalTone(text)
	issues = append(issues, toneIssues...)
	score -= len(toneIssues) * 5

	if score < 0 {
		score = 0
	}

	if len(issues) > 0 && len(recommendations) == 0 {
		recommendations = recommendationsFor(issues)
	}

	report := &ValidationReport{
		Passed:          score >= 70 && len(issues) == 0,
		SafetyScore:     score,
		RiskLevel:       riskLevel(score),
		Issues:          issues,
		Recommendations: recommendations,
	}
	promGuardianVerdicts.WithLabelValues(passFail(report.Passed), report.RiskLevel).Inc()
	return report
}

func riskLevel(score int) string {
	switch {
	case score < 50:
		return "high"
	case score < 70:
		return "medium"
	default:
		return "low"
	}
}

func checkProhibitedPatterns(text string) []string {
	var issues []string
	for _, p := range prohibitedPatterns {
		if p.re.MatchString(text) {
			issues = append(issues, "prohibited pattern: "+p.description)
		}
	}
	return issues
}

func checkSafetyRules(text string) []string {
	var issues []string
	lower := strings.ToLower(text)

	guarantee := containsAny(lower, "guarantee", "guaranteed", "100%", "promise")
	financial := containsAny(lower, "profit", "money", "income", "return")
	if guarantee && financial {
		issues = append(issues, "contains financial guarantees or unrealistic promises")
	}

	if containsAny(lower, "act now", "limited time", "urgent", "expires soon", "free money") {
		issues = append(issues, "contains spammy language")
	}

	if capsRatio(text) > 0.3 {
		issues = append(issues, "excessive use of capital letters")
	}

	return issues
}

func checkProfessionalTone(text string) []string {
	var issues []string

	if strings.Contains(text, "!!!") || strings.Contains(text, "???") {
		issues = append(issues, "excessive punctuation usage")
	}

	lower := strings.ToLower(text)
	for _, w := range informalWords {
		if strings.Contains(lower, w) {
			issues = append(issues, "contains informal language")
			break
		}
	}

	return issues
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

func capsRatio(text string) float64 {
	if text == "" {
		return 0
	}
	upper := 0
	total := 0
	for _, r := range text {
		if unicode.IsLetter(r) {
			total++
			if unicode.IsUpper(r) {
				upper++
			}
		}
	}
	if total == 0 {
		return 0
	}
	return float64(upper) / float64(total)
}

type ethicalReview struct {
	Ethical           bool     `json:"ethical"`
	Reason            string   `json:"reason"`
	Recommendations   []string `json:"recommendations"`
	ProfessionalScore int      `json:"professional_score"`
}

// runEthicalReview asks the LLM for a professional/ethical assessment.
// A review failure never blocks content on its own; the pattern and
// rule checks are the hard floor.
func (g *Guardian) runEthicalReview(ctx context.Context, text, kind string) (*ethicalReview, error) {
	prompt := fmt.Sprintf(`Review the following %s message for ethical concerns and professional appropriateness:

MESSAGE:
%s

EVALUATION CRITERIA:
- Professional business communication standards
- No misleading claims or false promises
- Respectful and appropriate tone
- No spam-like characteristics
- Ethical business practices

Respond with a JSON object:
{"ethical": true/false, "reason": "...", "recommendations": ["..."], "professional_score": 1-10}`, kind, text)

	resp, err := g.deps.LLM.Generate(ctx, "", prompt, llm.QueryOptions{
		MaxTokens:   500,
		Temperature: 0.1,
	})
	if err != nil {
		return nil, err
	}

	review := &ethicalReview{Ethical: true}
	if err := llm.UnmarshalResponse(resp.Content, review); err != nil {
		return nil, fmt.Errorf("failed to parse ethical review: %w", err)
	}
	return review, nil
}

func recommendationsFor(issues []string) []string {
	var recs []string
	for _, issue := range issues {
		lower := strings.ToLower(issue)
		switch {
		case strings.Contains(lower, "financial guarantee"):
			recs = append(recs, "Remove financial guarantees and focus on value proposition")
		case strings.Contains(lower, "spammy"):
			recs = append(recs, "Use more professional, consultative language")
		case strings.Contains(lower, "capital"):
			recs = append(recs, "Use normal capitalization for better readability")
		case strings.Contains(lower, "punctuation"):
			recs = append(recs, "Use standard punctuation for professional communication")
		case strings.Contains(lower, "informal"):
			recs = append(recs, "Replace informal words with professional alternatives")
		default:
			recs = append(recs, "Review content for professional business standards")
		}
	}
	return recs
}
