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

package bedrock

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeInvoker struct {
	output    *bedrockruntime.InvokeModelOutput
	err       error
	lastInput *bedrockruntime.InvokeModelInput
}

func (f *fakeInvoker) InvokeModel(ctx context.Context, params *bedrockruntime.InvokeModelInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error) {
	f.lastInput = params
	return f.output, f.err
}

func TestComplete(t *testing.T) {
	invoker := &fakeInvoker{
		output: &bedrockruntime.InvokeModelOutput{
			Body: []byte(`{
				"content": [{"type": "text", "text": "Diagnosis complete."}],
				"usage": {"input_tokens": 40, "output_tokens": 20}
			}`),
		},
	}
	p := NewProviderWithClient(invoker, "us-east-1", "")

	resp, err := p.Complete(context.Background(), CompletionRequest{
		Prompt:       "Diagnose this failure",
		SystemPrompt: "You are a technician",
		MaxTokens:    1000,
		Temperature:  0.3,
	})
	require.NoError(t, err)

	assert.Equal(t, "Diagnosis complete.", resp.Content)
	assert.Equal(t, DefaultModel, resp.Model)
	assert.Equal(t, 60, resp.TokensUsed)

	require.NotNil(t, invoker.lastInput)
	assert.Equal(t, DefaultModel, *invoker.lastInput.ModelId)

	var sent map[string]interface{}
	require.NoError(t, json.Unmarshal(invoker.lastInput.Body, &sent))
	assert.Equal(t, "bedrock-2023-05-31", sent["anthropic_version"])
	assert.Equal(t, "You are a technician", sent["system"])
}

func TestCompleteInvokeError(t *testing.T) {
	invoker := &fakeInvoker{err: errors.New("AccessDeniedException")}
	p := NewProviderWithClient(invoker, "us-east-1", "")

	_, err := p.Complete(context.Background(), CompletionRequest{Prompt: "hi"})
	require.Error(t, err)
	assert.False(t, p.IsHealthy())
}

func TestEstimateCost(t *testing.T) {
	p := NewProviderWithClient(&fakeInvoker{}, "us-east-1", "")
	assert.InDelta(t, 0.03, p.EstimateCost(1000), 1e-9)
}
