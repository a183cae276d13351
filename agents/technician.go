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
	"sync"
	"time"

	"github.com/google/uuid"

	"chimera/platform/llm"
	"chimera/platform/store"
)

// maxFixAttempts bounds auto-repair before escalation to a human.
const maxFixAttempts = 3

// Technician detects and triages runtime failures: it diagnoses failed
// jobs, proposes repairs, validates proposed fixes, and escalates what
// it cannot handle.
type Technician struct {
	deps Deps

	mu      sync.Mutex
	reports map[string]*DiagnosticReport
}

// DiagnosticReport captures one failure under investigation.
type DiagnosticReport struct {
	ID           string       `json:"id"`
	AgentName    string       `json:"agent_name"`
	JobType      string       `json:"job_type"`
	ErrorMessage string       `json:"error_message"`
	MissionID    string       `json:"mission_id,omitempty"`
	Diagnosis    *Diagnosis   `json:"diagnosis,omitempty"`
	FixAttempts  []FixAttempt `json:"fix_attempts"`
	Resolved     bool         `json:"resolved"`
	Escalated    bool         `json:"escalated"`
	CreatedAt    time.Time    `json:"created_at"`
}

// Diagnosis is the LLM's repairability assessment.
type Diagnosis struct {
	AutoRepairable bool    `json:"auto_repairable"`
	Confidence     float64 `json:"confidence"`
	RepairStrategy string  `json:"repair_strategy"`
	RiskAssessment string  `json:"risk_assessment"`
	Complexity     string  `json:"complexity"`
	Reasoning      string  `json:"reasoning"`
}

// FixAttempt records one repair proposal and its validation outcome.
type FixAttempt struct {
	ID               string    `json:"id"`
	FixDescription   string    `json:"fix_description"`
	Reasoning        string    `json:"reasoning"`
	RiskLevel        string    `json:"risk_level"`
	ValidationPassed bool      `json:"validation_passed"`
	CreatedAt        time.Time `json:"created_at"`
}

// NewTechnician creates the technician agent.
func NewTechnician(deps Deps) *Technician {
	return &Technician{
		deps:    deps,
		reports: make(map[string]*DiagnosticReport),
	}
}

// Name implements Agent.
func (t *Technician) Name() string { return "technician" }

// JobTypes implements Agent.
func (t *Technician) JobTypes() []string {
	return []string{"diagnose_error", "auto_repair", "validate_fix", "escalate_error"}
}

// Execute implements Agent.
func (t *Technician) Execute(ctx context.Context, job *Job) (*Result, error) {
	start := time.Now()

	var result *Result
	switch job.Type {
	case "diagnose_error":
		result = t.diagnoseError(ctx, job)
	case "auto_repair":
		result = t.autoRepair(ctx, job)
	case "validate_fix":
		result = t.validateFix(ctx, job)
	case "escalate_error":
		result = t.escalateError(ctx, job)
	default:
		result = Errorf("unknown job type: %s", job.Type)
	}

	result.ExecutionTimeMs = time.Since(start).Milliseconds()
	return result, nil
}

// Report returns a diagnostic report by ID.
func (t *Technician) Report(id string) (*DiagnosticReport, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	r, ok := t.reports[id]
	return r, ok
}

// diagnoseError opens a diagnostic report for a failed job and asks
// the LLM whether the failure is automatically repairable.
func (t *Technician) diagnoseError(ctx context.Context, job *Job) *Result {
	errorMessage := job.String("error_message")
	if errorMessage == "" {
		return Errorf("error_message is required for diagnosis")
	}

	report := &DiagnosticReport{
		ID:           uuid.New().String(),
		AgentName:    job.String("agent_name"),
		JobType:      job.String("job_type"),
		ErrorMessage: errorMessage,
		MissionID:    job.MissionID,
		CreatedAt:    time.Now().UTC(),
	}

	log.Printf("[Technician] Diagnosing error report %s from %s", report.ID, report.AgentName)
	report.Diagnosis = t.analyzeRepairability(ctx, report)

	t.mu.Lock()
	t.reports[report.ID] = report
	t.mu.Unlock()

	next := NewJob("auto_repair", job.MissionID, map[string]interface{}{
		"report_id": report.ID,
	})
	next.Queue = QueueSystem
	next.Priority = 7

	var followOns []*Job
	if report.Diagnosis.AutoRepairable {
		followOns = append(followOns, next)
	}

	return Success(map[string]interface{}{
		"report_id":       report.ID,
		"auto_repairable": report.Diagnosis.AutoRepairable,
		"confidence":      report.Diagnosis.Confidence,
		"repair_strategy": report.Diagnosis.RepairStrategy,
		"risk_assessment": report.Diagnosis.RiskAssessment,
	}, followOns...)
}

// autoRepair proposes a fix for a diagnosed failure; after
// maxFixAttempts unvalidated attempts the report is escalated.
func (t *Technician) autoRepair(ctx context.Context, job *Job) *Result {
	reportID := job.String("report_id")
	if reportID == "" {
		return Errorf("report_id is required for auto-repair")
	}

	t.mu.Lock()
	report, ok := t.reports[reportID]
	t.mu.Unlock()
	if !ok {
		return Errorf("diagnostic report %s not found", reportID)
	}

	if len(report.FixAttempts) >= maxFixAttempts {
		log.Printf("[Technician] Max repair attempts reached for %s, escalating", reportID)
		escalate := NewJob("escalate_error", report.MissionID, map[string]interface{}{
			"report_id": reportID,
			"reason":    "Max repair attempts reached",
		})
		escalate.Queue = QueueSystem
		escalate.Priority = 9
		return Success(map[string]interface{}{
			"report_id":         reportID,
			"repair_successful": false,
			"escalating":        true,
			"attempt_count":     len(report.FixAttempts),
		}, escalate)
	}

	log.Printf("[Technician] Attempting auto-repair for report %s", reportID)
	attempt, err := t.generateFix(ctx, report)
	if err != nil {
		return Errorf("failed to generate fix: %v", err)
	}

	attempt.ValidationPassed = t.validateAttempt(ctx, report, attempt)

	t.mu.Lock()
	report.FixAttempts = append(report.FixAttempts, *attempt)
	if attempt.ValidationPassed {
		report.Resolved = true
	}
	attemptCount := len(report.FixAttempts)
	t.mu.Unlock()

	if attempt.ValidationPassed {
		log.Printf("[Technician] Successfully repaired error %s", reportID)
	} else {
		log.Printf("[Technician] Fix validation failed for %s, will retry", reportID)
	}

	return Success(map[string]interface{}{
		"report_id":         reportID,
		"repair_successful": attempt.ValidationPassed,
		"fix_description":   attempt.FixDescription,
		"attempt_count":     attemptCount,
	})
}

// validateFix reviews a proposed fix supplied directly in the job.
func (t *Technician) validateFix(ctx context.Context, job *Job) *Result {
	fixDescription := job.String("fix_description")
	errorMessage := job.String("error_message")
	if fixDescription == "" || errorMessage == "" {
		return Errorf("fix_description and error_message are required for validation")
	}

	report := &DiagnosticReport{ErrorMessage: errorMessage}
	attempt := &FixAttempt{FixDescription: fixDescription}
	passed := t.validateAttempt(ctx, report, attempt)

	return Success(map[string]interface{}{
		"validation_passed": passed,
		"fix_safe":          passed,
	})
}

// escalateError marks a report for human intervention and writes an
// escalation row to the audit log.
func (t *Technician) escalateError(ctx context.Context, job *Job) *Result {
	reportID := job.String("report_id")
	if reportID == "" {
		return Errorf("report_id is required for escalation")
	}
	reason := job.String("reason")
	if reason == "" {
		reason = "Auto-repair failed"
	}

	t.mu.Lock()
	report, ok := t.reports[reportID]
	if ok {
		report.Escalated = true
	}
	t.mu.Unlock()

	log.Printf("[Technician] Escalated error %s to human intervention: %s", reportID, reason)

	activity := &store.AgentActivity{
		AgentName:    t.Name(),
		ActivityType: "error_escalation",
		Description:  fmt.Sprintf("Escalated error report %s: %s", reportID, reason),
		Status:       "success",
		MissionID:    job.MissionID,
	}
	if err := t.deps.Store.LogActivity(ctx, activity); err != nil {
		log.Printf("[Technician] Failed to log escalation: %v", err)
	}

	return Success(map[string]interface{}{
		"report_id": reportID,
		"escalated": true,
		"reason":    reason,
	})
}

// analyzeRepairability asks the LLM whether a failure can be repaired
// without human help. Analysis failure is treated as not repairable.
func (t *Technician) analyzeRepairability(ctx context.Context, report *DiagnosticReport) *Diagnosis {
	prompt := fmt.Sprintf(`You are an expert software engineer analyzing a system error for automatic repairability.

ERROR DETAILS:
- Agent: %s
- Job Type: %s
- Message: %s

Analyze this error and determine:
1. Is this error automatically repairable? (true/false)
2. Confidence level (0.0 to 1.0)
3. Repair strategy (if repairable)
4. Risk assessment (low/medium/high)
5. Estimated complexity (simple/moderate/complex)

Respond in JSON format:
{"auto_repairable": boolean, "confidence": float, "repair_strategy": "...", "risk_assessment": "low|medium|high", "complexity": "simple|moderate|complex", "reasoning": "..."}`,
		report.AgentName, report.JobType, report.ErrorMessage)

	diagnosis := &Diagnosis{}
	resp, err := t.deps.LLM.Generate(ctx, "", prompt, llm.QueryOptions{
		MaxTokens:   1000,
		Temperature: 0.1,
	})
	if err == nil {
		err = llm.UnmarshalResponse(resp.Content, diagnosis)
	}
	if err != nil {
		log.Printf("[Technician] Failed to analyze error repairability: %v", err)
		return &Diagnosis{
			AutoRepairable: false,
			RepairStrategy: "Analysis failed",
			RiskAssessment: "high",
			Complexity:     "complex",
			Reasoning:      fmt.Sprintf("Analysis failed due to: %v", err),
		}
	}

	log.Printf("[Technician] Error analysis complete: repairable=%t (confidence: %.2f)",
		diagnosis.AutoRepairable, diagnosis.Confidence)
	return diagnosis
}

// generateFix asks the LLM for a focused repair, feeding back the last
// two failed attempts so retries do not repeat themselves.
func (t *Technician) generateFix(ctx context.Context, report *DiagnosticReport) (*FixAttempt, error) {
	var previous string
	if n := len(report.FixAttempts); n > 0 {
		previous = "\nPREVIOUS FAILED ATTEMPTS:\n"
		first := n - 2
		if first < 0 {
			first = 0
		}
		for _, attempt := range report.FixAttempts[first:] {
			previous += fmt.Sprintf("- %s\n", attempt.FixDescription)
		}
	}

	prompt := fmt.Sprintf(`You are an expert software engineer. An automated agent failed with the following error.

ERROR DETAILS:
- Agent: %s
- Job Type: %s
- Message: %s
%s
INSTRUCTIONS:
1. Identify the root cause of the error
2. Propose a minimal, focused remediation
3. Maintain the original functionality

Respond in JSON format:
{"root_cause": "...", "fix_description": "...", "reasoning": "...", "risk_level": "low|medium|high"}

Output ONLY the JSON response.`,
		report.AgentName, report.JobType, report.ErrorMessage, previous)

	var fix struct {
		RootCause      string `json:"root_cause"`
		FixDescription string `json:"fix_description"`
		Reasoning      string `json:"reasoning"`
		RiskLevel      string `json:"risk_level"`
	}
	resp, err := t.deps.LLM.Generate(ctx, "", prompt, llm.QueryOptions{
		MaxTokens:   2000,
		Temperature: 0.1,
	})
	if err == nil {
		err = llm.UnmarshalResponse(resp.Content, &fix)
	}
	if err != nil {
		return nil, err
	}

	log.Printf("[Technician] Generated fix: %s", fix.FixDescription)
	return &FixAttempt{
		ID:             fmt.Sprintf("fix_%s_%d", report.ID, len(report.FixAttempts)+1),
		FixDescription: fix.FixDescription,
		Reasoning:      fix.Reasoning,
		RiskLevel:      fix.RiskLevel,
		CreatedAt:      time.Now().UTC(),
	}, nil
}

// validateAttempt reviews a proposed fix. Without a sandbox the check
// is an LLM review; anything it cannot confirm safe fails validation.
func (t *Technician) validateAttempt(ctx context.Context, report *DiagnosticReport, attempt *FixAttempt) bool {
	prompt := fmt.Sprintf(`Review this proposed remediation for an automated system failure.

ORIGINAL ERROR: %s
PROPOSED FIX: %s

Determine whether the fix plausibly resolves the error without
introducing new risk. Respond in JSON format:
{"valid": boolean, "safe": boolean, "concerns": ["..."]}`,
		report.ErrorMessage, attempt.FixDescription)

	var review struct {
		Valid    bool     `json:"valid"`
		Safe     bool     `json:"safe"`
		Concerns []string `json:"concerns"`
	}
	resp, err := t.deps.LLM.Generate(ctx, "", prompt, llm.QueryOptions{
		MaxTokens:   500,
		Temperature: 0.1,
	})
	if err == nil {
		err = llm.UnmarshalResponse(resp.Content, &review)
	}
	if err != nil {
		log.Printf("[Technician] Fix validation failed: %v", err)
		return false
	}
	return review.Valid && review.Safe
}
