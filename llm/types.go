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

// Package llm provides a provider-agnostic completion API for the agent
// fleet. A Router selects among configured providers (Anthropic, OpenAI,
// AWS Bedrock) with health tracking and fallback.
package llm

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"
)

// ErrNoProviders is returned when no healthy provider can serve a request.
var ErrNoProviders = errors.New("no healthy LLM providers available")

// QueryOptions contains per-call options for completions
type QueryOptions struct {
	MaxTokens    int     `json:"max_tokens"`
	Temperature  float64 `json:"temperature"`
	Model        string  `json:"model"`
	SystemPrompt string  `json:"system_prompt"`
}

// Response represents a completion from any provider
type Response struct {
	Content      string                 `json:"content"`
	Provider     string                 `json:"provider"`
	Model        string                 `json:"model"`
	TokensUsed   int                    `json:"tokens_used"`
	ResponseTime time.Duration          `json:"response_time"`
	Metadata     map[string]interface{} `json:"metadata,omitempty"`
}

// Provider is the interface all LLM vendor integrations implement.
// Implementations must be safe for concurrent use.
type Provider interface {
	// Name returns the provider identifier used for routing and metrics
	// (e.g. "anthropic", "openai", "bedrock").
	Name() string

	// Query generates a completion for the given prompt. The context is
	// used for cancellation and timeout.
	Query(ctx context.Context, prompt string, options QueryOptions) (*Response, error)

	// IsHealthy reports whether the provider is currently usable.
	IsHealthy() bool

	// Capabilities lists features this provider supports.
	Capabilities() []string

	// EstimateCost returns the estimated USD cost for a token count.
	EstimateCost(tokens int) float64
}

// ExtractJSON pulls a JSON object or array out of model output. Models wrap
// JSON in markdown fences or prose; agents rely on this before unmarshaling.
func ExtractJSON(content string) string {
	content = strings.TrimSpace(content)

	// Strip markdown code fences
	if strings.HasPrefix(content, "```") {
		if idx := strings.Index(content, "\n"); idx >= 0 {
			content = content[idx+1:]
		}
		if idx := strings.LastIndex(content, "```"); idx >= 0 {
			content = content[:idx]
		}
		content = strings.TrimSpace(content)
	}

	// Fall back to the outermost brace/bracket pair
	if !strings.HasPrefix(content, "{") && !strings.HasPrefix(content, "[") {
		objStart := strings.Index(content, "{")
		arrStart := strings.Index(content, "[")
		start := objStart
		if start < 0 || (arrStart >= 0 && arrStart < start) {
			start = arrStart
		}
		if start < 0 {
			return content
		}
		var end int
		if content[start] == '{' {
			end = strings.LastIndex(content, "}")
		} else {
			end = strings.LastIndex(content, "]")
		}
		if end > start {
			content = content[start : end+1]
		}
	}

	return content
}

// UnmarshalResponse extracts JSON from model output and decodes it into v.
func UnmarshalResponse(content string, v interface{}) error {
	return json.Unmarshal([]byte(ExtractJSON(content)), v)
}
