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

// Package bedrock implements completions against AWS Bedrock using the
// AWS SDK v2, with Signature V4 authentication via IAM roles.
package bedrock

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
)

// DefaultModel is used when no model is configured.
const DefaultModel = "anthropic.claude-3-5-sonnet-20240620-v1:0"

// InvokeAPI is the subset of the Bedrock runtime client the provider uses
// (enables testing without AWS credentials).
type InvokeAPI interface {
	InvokeModel(ctx context.Context, params *bedrockruntime.InvokeModelInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error)
}

// Provider implements completions against AWS Bedrock
type Provider struct {
	client  InvokeAPI
	region  string
	model   string
	healthy bool
	mu      sync.RWMutex
}

// CompletionRequest represents a completion request
type CompletionRequest struct {
	Prompt       string
	SystemPrompt string
	MaxTokens    int
	Temperature  float64
	Model        string
}

// CompletionResponse represents a completion response
type CompletionResponse struct {
	Content    string
	Model      string
	TokensUsed int
	Latency    time.Duration
}

// NewProvider creates a Bedrock provider for the given region. Returns an
// error if AWS config loading fails; callers should surface this rather
// than silently running without the provider.
func NewProvider(region, model string) (*Provider, error) {
	if region == "" {
		region = "us-east-1"
	}
	if model == "" {
		model = DefaultModel
	}

	awsCfg, err := config.LoadDefaultConfig(context.Background(),
		config.WithRegion(region),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config for Bedrock (region: %s): %w", region, err)
	}

	client := bedrockruntime.NewFromConfig(awsCfg)
	log.Printf("[Bedrock] Initialized AWS SDK provider (region: %s, model: %s)", region, model)

	return &Provider{
		client:  client,
		region:  region,
		model:   model,
		healthy: true,
	}, nil
}

// NewProviderWithClient creates a provider with an injected runtime client.
func NewProviderWithClient(client InvokeAPI, region, model string) *Provider {
	if model == "" {
		model = DefaultModel
	}
	return &Provider{client: client, region: region, model: model, healthy: true}
}

// Name returns the provider name
func (p *Provider) Name() string { return "bedrock" }

// IsHealthy returns whether the provider is healthy
func (p *Provider) IsHealthy() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.healthy && p.region != ""
}

func (p *Provider) setHealthy(healthy bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.healthy = healthy
}

// EstimateCost estimates the cost for a given number of tokens.
// Bedrock Claude pricing tracks Anthropic's direct API.
func (p *Provider) EstimateCost(tokens int) float64 {
	return float64(tokens) * 0.00003
}

// Complete generates a completion via InvokeModel with anthropic-format
// payloads (the only model family this deployment routes to Bedrock).
func (p *Provider) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	start := time.Now()

	model := req.Model
	if model == "" {
		model = p.model
	}
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 2000
	}

	body := map[string]interface{}{
		"anthropic_version": "bedrock-2023-05-31",
		"max_tokens":        maxTokens,
		"temperature":       req.Temperature,
		"messages": []map[string]string{
			{"role": "user", "content": req.Prompt},
		},
	}
	if req.SystemPrompt != "" {
		body["system"] = req.SystemPrompt
	}

	requestJSON, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	output, err := p.client.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(model),
		Body:        requestJSON,
		ContentType: aws.String("application/json"),
		Accept:      aws.String("application/json"),
	})
	if err != nil {
		p.setHealthy(false)
		return nil, fmt.Errorf("bedrock API error: %w", err)
	}

	p.setHealthy(true)

	var resp struct {
		Content []struct {
			Text string `json:"text"`
		} `json:"content"`
		Usage struct {
			InputTokens  int `json:"input_tokens"`
			OutputTokens int `json:"output_tokens"`
		} `json:"usage"`
	}
	if err := json.Unmarshal(output.Body, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	content := ""
	if len(resp.Content) > 0 {
		content = resp.Content[0].Text
	}

	return &CompletionResponse{
		Content:    content,
		Model:      model,
		TokensUsed: resp.Usage.InputTokens + resp.Usage.OutputTokens,
		Latency:    time.Since(start),
	}, nil
}
