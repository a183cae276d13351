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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chimera/platform/store"
)

func TestBardGenerateCalendar(t *testing.T) {
	storage := newFakeStorage()
	seedMission(storage, store.MissionStatusContentCreating)

	llm := &fakeLLM{response: `[
		{"day": 1, "content_type": "blog_post", "title": "Why dispatch automation pays for itself", "description": "ROI breakdown", "platform": "Blog", "key_message": "automation ROI"},
		{"day": 2, "content_type": "social_media", "title": "One metric to watch", "description": "quick tip", "platform": "LinkedIn", "key_message": "measure first"},
		{"day": 3, "title": "", "content_type": "", "platform": ""}
	]`}
	b := NewBard(testDeps(storage, llm))

	result, err := b.Execute(context.Background(), NewJob("generate_content_calendar", "mission-1", nil))
	require.NoError(t, err)

	assert.Equal(t, StatusSuccess, result.Status)
	assert.Equal(t, 3, result.Output["total_items"])
	require.Len(t, storage.content, 3)

	for _, c := range storage.content {
		assert.Equal(t, "draft", c.Status)
		assert.Equal(t, "mission-1", c.MissionID)
		require.NotNil(t, c.ScheduledDate)
	}

	// Empty fields fall back to defaults.
	items := result.Output["calendar_items"].([]map[string]interface{})
	assert.Equal(t, "Content Day 3", items[2]["title"])
	assert.Equal(t, "blog_post", items[2]["content_type"])
	assert.Equal(t, "blog", items[2]["platform"])
}

func TestBardCreateBlogPost(t *testing.T) {
	storage := newFakeStorage()
	seedMission(storage, store.MissionStatusContentCreating)
	storage.content["content-1"] = &store.Content{
		ID:          "content-1",
		MissionID:   "mission-1",
		Title:       "Why dispatch automation pays for itself",
		ContentType: "blog_post",
		Platform:    "Blog",
		Status:      "draft",
	}

	body := "Dispatch automation cuts manual routing work dramatically.\n\nMeta description: How logistics teams recover hours per week with dispatch automation."
	b := NewBard(testDeps(storage, &fakeLLM{response: body}))

	job := NewJob("create_content", "mission-1", map[string]interface{}{
		"content_id": "content-1",
	})
	result, err := b.Execute(context.Background(), job)
	require.NoError(t, err)

	assert.Equal(t, StatusSuccess, result.Status)
	assert.Equal(t, "ready_for_approval", result.Output["status"])
	assert.Equal(t, "How logistics teams recover hours per week with dispatch automation.", result.Output["meta_description"])
	assert.Greater(t, result.Output["word_count"].(int), 0)

	assert.Equal(t, body, storage.content["content-1"].ContentBody)
	assert.NotEmpty(t, storage.content["content-1"].MetaDescription)
}

func TestBardCreateSocialPost(t *testing.T) {
	storage := newFakeStorage()
	seedMission(storage, store.MissionStatusContentCreating)
	storage.content["content-2"] = &store.Content{
		ID:          "content-2",
		MissionID:   "mission-1",
		Title:       "One metric to watch",
		ContentType: "social_media",
		Platform:    "Twitter",
		Status:      "draft",
	}

	b := NewBard(testDeps(storage, &fakeLLM{response: "Track cost per delivered order. Everything else is noise. #logistics"}))

	job := NewJob("create_social_media_post", "mission-1", map[string]interface{}{
		"content_id": "content-2",
	})
	result, err := b.Execute(context.Background(), job)
	require.NoError(t, err)

	assert.Equal(t, StatusSuccess, result.Status)
	assert.Equal(t, "twitter", result.Output["platform"])
	assert.Equal(t, "social_media", result.Output["content_type"])
	assert.NotEmpty(t, storage.content["content-2"].ContentBody)
}

func TestBardCreateContentMissingItem(t *testing.T) {
	b := NewBard(testDeps(newFakeStorage(), &fakeLLM{}))

	job := NewJob("create_content", "mission-1", map[string]interface{}{
		"content_id": "nope",
	})
	result, err := b.Execute(context.Background(), job)
	require.NoError(t, err)
	assert.Equal(t, StatusError, result.Status)
}

func TestExtractMetaDescription(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"inline", "Body text.\nMeta description: Short SEO line.", "Short SEO line."},
		{"next line", "Body text.\nMeta Description:\nOn the next line.", "On the next line."},
		{"absent", "Body text only.", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, extractMetaDescription(tt.content))
		})
	}
}
