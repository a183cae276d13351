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

package anthropic

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeHTTPClient struct {
	statusCode int
	body       string
	err        error
	lastReq    *http.Request
	lastBody   []byte
}

func (f *fakeHTTPClient) Do(req *http.Request) (*http.Response, error) {
	f.lastReq = req
	if req.Body != nil {
		f.lastBody, _ = io.ReadAll(req.Body)
	}
	if f.err != nil {
		return nil, f.err
	}
	return &http.Response{
		StatusCode: f.statusCode,
		Body:       io.NopCloser(bytes.NewBufferString(f.body)),
	}, nil
}

func TestNewProvider(t *testing.T) {
	tests := []struct {
		name      string
		cfg       Config
		expectErr bool
	}{
		{
			name:      "missing API key",
			cfg:       Config{},
			expectErr: true,
		},
		{
			name:      "defaults applied",
			cfg:       Config{APIKey: "sk-test"},
			expectErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := NewProvider(tt.cfg)
			if tt.expectErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "anthropic", p.Name())
			assert.True(t, p.IsHealthy())
		})
	}
}

func TestComplete(t *testing.T) {
	client := &fakeHTTPClient{
		statusCode: http.StatusOK,
		body: `{
			"id": "msg_01",
			"model": "claude-3-5-sonnet-20241022",
			"stop_reason": "end_turn",
			"content": [{"type": "text", "text": "Mission brief drafted."}],
			"usage": {"input_tokens": 25, "output_tokens": 12}
		}`,
	}
	p, err := NewProvider(Config{APIKey: "sk-test", HTTPClient: client})
	require.NoError(t, err)

	resp, err := p.Complete(context.Background(), CompletionRequest{
		Prompt:       "Draft a mission brief",
		SystemPrompt: "You are a strategist",
		MaxTokens:    500,
		Temperature:  0.7,
	})
	require.NoError(t, err)

	assert.Equal(t, "Mission brief drafted.", resp.Content)
	assert.Equal(t, "end_turn", resp.StopReason)
	assert.Equal(t, 37, resp.Usage.TotalTokens)

	// Request wiring
	assert.Equal(t, "sk-test", client.lastReq.Header.Get("x-api-key"))
	assert.Equal(t, DefaultAPIVersion, client.lastReq.Header.Get("anthropic-version"))

	var sent map[string]interface{}
	require.NoError(t, json.Unmarshal(client.lastBody, &sent))
	assert.Equal(t, "You are a strategist", sent["system"])
	assert.Equal(t, 0.7, sent["temperature"])
}

func TestCompleteAPIError(t *testing.T) {
	client := &fakeHTTPClient{
		statusCode: http.StatusTooManyRequests,
		body:       `{"type": "error", "error": {"type": "rate_limit_error", "message": "slow down"}}`,
	}
	p, err := NewProvider(Config{APIKey: "sk-test", HTTPClient: client})
	require.NoError(t, err)

	_, err = p.Complete(context.Background(), CompletionRequest{Prompt: "hi"})
	require.Error(t, err)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.True(t, apiErr.IsRateLimitError())
	assert.False(t, apiErr.IsAuthError())
	// Rate limits are transient, not a health signal
	assert.True(t, p.IsHealthy())
}

func TestCompleteServerErrorMarksUnhealthy(t *testing.T) {
	client := &fakeHTTPClient{
		statusCode: http.StatusInternalServerError,
		body:       `{"type": "error", "error": {"type": "overloaded_error", "message": "overloaded"}}`,
	}
	p, err := NewProvider(Config{APIKey: "sk-test", HTTPClient: client})
	require.NoError(t, err)

	_, err = p.Complete(context.Background(), CompletionRequest{Prompt: "hi"})
	require.Error(t, err)
	assert.False(t, p.IsHealthy())

	// Recovery on next success
	client.statusCode = http.StatusOK
	client.body = `{"content": [{"type": "text", "text": "ok"}], "usage": {"input_tokens": 1, "output_tokens": 1}}`
	_, err = p.Complete(context.Background(), CompletionRequest{Prompt: "hi"})
	require.NoError(t, err)
	assert.True(t, p.IsHealthy())
}
