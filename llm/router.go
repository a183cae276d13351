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

package llm

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"sync"
	"time"

	"chimera/platform/llm/anthropic"
	"chimera/platform/llm/bedrock"
	"chimera/platform/llm/openai"
)

// RouterConfig contains configuration for the router
type RouterConfig struct {
	OpenAIKey     string
	AnthropicKey  string
	BedrockRegion string
	BedrockModel  string
}

// Router handles routing completion requests to multiple LLM providers
// with weighted selection, health tracking, and single-hop fallback.
type Router struct {
	providers map[string]Provider
	weights   map[string]float64
	metrics   map[string]*providerMetrics
	mu        sync.RWMutex
	stopCh    chan struct{}
	stopOnce  sync.Once
}

type providerMetrics struct {
	RequestCount int64
	ErrorCount   int64
	totalLatency time.Duration
}

// ProviderStatus represents the current status of one provider
type ProviderStatus struct {
	Name         string  `json:"name"`
	Healthy      bool    `json:"healthy"`
	Weight       float64 `json:"weight"`
	RequestCount int64   `json:"request_count"`
	ErrorCount   int64   `json:"error_count"`
	AvgLatencyMs float64 `json:"avg_latency_ms"`
}

// NewRouter creates a router with all providers the configuration enables.
func NewRouter(config RouterConfig) *Router {
	r := &Router{
		providers: make(map[string]Provider),
		weights:   make(map[string]float64),
		metrics:   make(map[string]*providerMetrics),
		stopCh:    make(chan struct{}),
	}

	if config.AnthropicKey != "" {
		p, err := anthropic.NewProvider(anthropic.Config{APIKey: config.AnthropicKey})
		if err != nil {
			log.Printf("[LLMRouter] ERROR: Failed to initialize Anthropic provider: %v", err)
		} else {
			r.Register(&anthropicAdapter{p}, 0.4)
		}
	}

	if config.OpenAIKey != "" {
		p, err := openai.NewProvider(openai.Config{APIKey: config.OpenAIKey})
		if err != nil {
			log.Printf("[LLMRouter] ERROR: Failed to initialize OpenAI provider: %v", err)
		} else {
			r.Register(&openaiAdapter{p}, 0.4)
		}
	}

	if config.BedrockRegion != "" {
		p, err := bedrock.NewProvider(config.BedrockRegion, config.BedrockModel)
		if err != nil {
			log.Printf("[LLMRouter] ERROR: Failed to initialize Bedrock provider: %v", err)
			log.Printf("[LLMRouter] WARNING: Bedrock is configured (region=%s) but NOT available", config.BedrockRegion)
		} else {
			r.Register(&bedrockAdapter{p}, 0.2)
		}
	}

	r.logProviderStatus()
	go r.healthCheckRoutine()

	return r
}

// Register adds a provider with the given routing weight. Exposed so tests
// and alternate deployments can install their own providers.
func (r *Router) Register(p Provider, weight float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[p.Name()] = p
	r.weights[p.Name()] = weight
	r.metrics[p.Name()] = &providerMetrics{}
}

func (r *Router) logProviderStatus() {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	log.Printf("[LLMRouter] Available providers: %v", names)
	if len(names) == 0 {
		log.Printf("[LLMRouter] WARNING: No LLM providers available! All agent jobs requiring LLM will fail.")
	}
}

// Generate routes a completion request. If options.Model names a provider's
// default, it is passed through; a preferred provider can be requested via
// the preferred argument and is honored when healthy.
func (r *Router) Generate(ctx context.Context, preferred, prompt string, options QueryOptions) (*Response, error) {
	provider, err := r.selectProvider(preferred)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	response, err := provider.Query(ctx, prompt, options)
	if err != nil {
		r.recordError(provider.Name())

		fallback := r.fallbackProvider(provider.Name())
		if fallback == nil {
			return nil, fmt.Errorf("provider %s failed and no fallback available: %w", provider.Name(), err)
		}
		log.Printf("[LLMRouter] Failing over from %s to %s", provider.Name(), fallback.Name())

		response, err = fallback.Query(ctx, prompt, options)
		if err != nil {
			r.recordError(fallback.Name())
			return nil, fmt.Errorf("all providers failed: %w", err)
		}
		provider = fallback
	}

	r.recordSuccess(provider.Name(), time.Since(start))
	response.Provider = provider.Name()
	return response, nil
}

// selectProvider picks the preferred provider when healthy, otherwise a
// weighted-random healthy provider.
func (r *Router) selectProvider(preferred string) (Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if preferred != "" {
		if p, ok := r.providers[preferred]; ok && p.IsHealthy() {
			return p, nil
		}
		log.Printf("[LLMRouter] Warning: requested provider %q not available, falling back to routing weights", preferred)
	}

	var healthy []string
	totalWeight := 0.0
	for name, p := range r.providers {
		if p.IsHealthy() {
			healthy = append(healthy, name)
			totalWeight += r.weights[name]
		}
	}
	if len(healthy) == 0 {
		return nil, ErrNoProviders
	}

	// Weighted random selection over healthy providers
	if totalWeight > 0 {
		pick := rand.Float64() * totalWeight
		for _, name := range healthy {
			pick -= r.weights[name]
			if pick <= 0 {
				return r.providers[name], nil
			}
		}
	}
	return r.providers[healthy[0]], nil
}

func (r *Router) fallbackProvider(failed string) Provider {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for name, p := range r.providers {
		if name != failed && p.IsHealthy() {
			return p
		}
	}
	return nil
}

func (r *Router) recordSuccess(name string, latency time.Duration) {
	promLLMCalls.WithLabelValues(name, "success").Inc()
	promLLMLatency.WithLabelValues(name).Observe(float64(latency.Milliseconds()))

	r.mu.Lock()
	defer r.mu.Unlock()
	if m, ok := r.metrics[name]; ok {
		m.RequestCount++
		m.totalLatency += latency
	}
}

func (r *Router) recordError(name string) {
	promLLMCalls.WithLabelValues(name, "error").Inc()

	r.mu.Lock()
	defer r.mu.Unlock()
	if m, ok := r.metrics[name]; ok {
		m.RequestCount++
		m.ErrorCount++
	}
}

// IsHealthy reports whether any provider can serve requests.
func (r *Router) IsHealthy() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, p := range r.providers {
		if p.IsHealthy() {
			return true
		}
	}
	return false
}

// Status returns per-provider routing status for the status endpoint.
func (r *Router) Status() map[string]ProviderStatus {
	r.mu.RLock()
	defer r.mu.RUnlock()

	status := make(map[string]ProviderStatus, len(r.providers))
	for name, p := range r.providers {
		m := r.metrics[name]
		avg := 0.0
		if m.RequestCount > 0 {
			avg = float64(m.totalLatency.Milliseconds()) / float64(m.RequestCount)
		}
		status[name] = ProviderStatus{
			Name:         name,
			Healthy:      p.IsHealthy(),
			Weight:       r.weights[name],
			RequestCount: m.RequestCount,
			ErrorCount:   m.ErrorCount,
			AvgLatencyMs: avg,
		}
	}
	return status
}

// Close stops the background health check loop.
func (r *Router) Close() {
	r.stopOnce.Do(func() { close(r.stopCh) })
}

// healthCheckRoutine periodically probes provider health so transient
// vendor outages recover without a restart.
func (r *Router) healthCheckRoutine() {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-r.stopCh:
			return
		case <-ticker.C:
			r.mu.RLock()
			providers := make([]Provider, 0, len(r.providers))
			for _, p := range r.providers {
				providers = append(providers, p)
			}
			r.mu.RUnlock()

			for _, p := range providers {
				if hc, ok := p.(interface{ HealthCheck(context.Context) error }); ok {
					ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
					if err := hc.HealthCheck(ctx); err != nil {
						log.Printf("[LLMRouter] Health check failed for %s: %v", p.Name(), err)
					}
					cancel()
				}
			}
		}
	}
}

// Adapters bridge the vendor packages to the Provider interface.

type anthropicAdapter struct{ p *anthropic.Provider }

func (a *anthropicAdapter) Name() string    { return a.p.Name() }
func (a *anthropicAdapter) IsHealthy() bool { return a.p.IsHealthy() }
func (a *anthropicAdapter) Capabilities() []string {
	return []string{"reasoning", "analysis", "writing", "long_context"}
}
func (a *anthropicAdapter) EstimateCost(tokens int) float64 { return a.p.EstimateCost(tokens) }
func (a *anthropicAdapter) HealthCheck(ctx context.Context) error {
	return a.p.HealthCheck(ctx)
}

func (a *anthropicAdapter) Query(ctx context.Context, prompt string, options QueryOptions) (*Response, error) {
	resp, err := a.p.Complete(ctx, anthropic.CompletionRequest{
		Prompt:       prompt,
		SystemPrompt: options.SystemPrompt,
		MaxTokens:    options.MaxTokens,
		Temperature:  options.Temperature,
		Model:        options.Model,
	})
	if err != nil {
		return nil, err
	}
	return &Response{
		Content:      resp.Content,
		Model:        resp.Model,
		TokensUsed:   resp.Usage.TotalTokens,
		ResponseTime: resp.Latency,
	}, nil
}

type openaiAdapter struct{ p *openai.Provider }

func (a *openaiAdapter) Name() string    { return a.p.Name() }
func (a *openaiAdapter) IsHealthy() bool { return a.p.IsHealthy() }
func (a *openaiAdapter) Capabilities() []string {
	return []string{"chat", "code", "embeddings"}
}
func (a *openaiAdapter) EstimateCost(tokens int) float64 { return a.p.EstimateCost(tokens) }
func (a *openaiAdapter) HealthCheck(ctx context.Context) error {
	return a.p.HealthCheck(ctx)
}

func (a *openaiAdapter) Query(ctx context.Context, prompt string, options QueryOptions) (*Response, error) {
	resp, err := a.p.Complete(ctx, openai.CompletionRequest{
		Prompt:       prompt,
		SystemPrompt: options.SystemPrompt,
		MaxTokens:    options.MaxTokens,
		Temperature:  options.Temperature,
		Model:        options.Model,
	})
	if err != nil {
		return nil, err
	}
	return &Response{
		Content:      resp.Content,
		Model:        resp.Model,
		TokensUsed:   resp.Usage.TotalTokens,
		ResponseTime: resp.Latency,
	}, nil
}

type bedrockAdapter struct{ p *bedrock.Provider }

func (a *bedrockAdapter) Name() string    { return a.p.Name() }
func (a *bedrockAdapter) IsHealthy() bool { return a.p.IsHealthy() }
func (a *bedrockAdapter) Capabilities() []string {
	return []string{"reasoning", "analysis", "writing", "hipaa_compliant"}
}
func (a *bedrockAdapter) EstimateCost(tokens int) float64 { return a.p.EstimateCost(tokens) }

func (a *bedrockAdapter) Query(ctx context.Context, prompt string, options QueryOptions) (*Response, error) {
	resp, err := a.p.Complete(ctx, bedrock.CompletionRequest{
		Prompt:       prompt,
		SystemPrompt: options.SystemPrompt,
		MaxTokens:    options.MaxTokens,
		Temperature:  options.Temperature,
		Model:        options.Model,
	})
	if err != nil {
		return nil, err
	}
	return &Response{
		Content:      resp.Content,
		Model:        resp.Model,
		TokensUsed:   resp.TokensUsed,
		ResponseTime: resp.Latency,
	}, nil
}
