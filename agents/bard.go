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
	"strings"
	"time"

	"chimera/platform/llm"
	"chimera/platform/store"
)

// Bard builds brand authority: it plans a 30-day content calendar and
// writes the individual blog posts, social posts, and other items.
type Bard struct {
	deps Deps
}

// calendarDays is the length of a generated content calendar.
const calendarDays = 30

// platformSpec captures per-platform length and style constraints.
type platformSpec struct {
	Limit int
	Style string
}

var platformSpecs = map[string]platformSpec{
	"twitter":   {Limit: 280, Style: "concise and punchy"},
	"linkedin":  {Limit: 1300, Style: "professional and insightful"},
	"facebook":  {Limit: 500, Style: "engaging and conversational"},
	"instagram": {Limit: 300, Style: "visual and inspiring"},
}

// NewBard creates the bard agent.
func NewBard(deps Deps) *Bard {
	return &Bard{deps: deps}
}

// Name implements Agent.
func (b *Bard) Name() string { return "bard" }

// JobTypes implements Agent.
func (b *Bard) JobTypes() []string {
	return []string{"generate_content_calendar", "create_content", "generate_blog_post", "create_social_media_post"}
}

// Execute implements Agent.
func (b *Bard) Execute(ctx context.Context, job *Job) (*Result, error) {
	start := time.Now()

	var result *Result
	switch job.Type {
	case "generate_content_calendar":
		result = b.generateCalendar(ctx, job)
	case "create_content":
		result = b.createContent(ctx, job)
	case "generate_blog_post":
		result = b.generateBlogPostJob(ctx, job)
	case "create_social_media_post":
		result = b.createSocialPostJob(ctx, job)
	default:
		result = Errorf("unknown job type: %s", job.Type)
	}

	result.ExecutionTimeMs = time.Since(start).Milliseconds()
	return result, nil
}

// calendarItem is one planned day of content.
type calendarItem struct {
	Day         int    `json:"day"`
	ContentType string `json:"content_type"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Platform    string `json:"platform"`
	KeyMessage  string `json:"key_message"`
}

// generateCalendar plans one content item per day for the next 30 days
// and writes the draft rows.
func (b *Bard) generateCalendar(ctx context.Context, job *Job) *Result {
	if job.MissionID == "" {
		return Errorf("mission_id is required for content calendar generation")
	}
	mission, err := b.deps.Store.GetMission(ctx, job.MissionID)
	if err != nil {
		return Errorf("mission %s not found", job.MissionID)
	}

	systemPrompt := `You are a professional content marketing strategist creating a 30-day content calendar.
Generate diverse, engaging content ideas that align with the business goals and target audience.
Include a mix of content types: blog posts, social media posts, videos, infographics, etc.
Ensure content builds brand authority and provides value to the target audience.`

	prompt := fmt.Sprintf(`Create a comprehensive 30-day content calendar for the following business:

BUSINESS CONTEXT:
- Business Goal: %s
- Target Audience: %s
- Brand Voice: %s
- Service Offerings: %s

Generate 30 content ideas (one per day) with the following structure for each:
- day (1-30)
- content_type (blog_post, social_media, video_script, infographic, email_newsletter)
- title
- description (1-2 sentences)
- platform (LinkedIn, Twitter, Blog, Facebook, etc.)
- key_message

Format as a JSON array with each content item as an object.
Ensure variety in content types and topics while maintaining brand consistency.`,
		mission.BusinessGoal, mission.TargetAudience, mission.BrandVoice,
		strings.Join(mission.ServiceOfferings, ", "))

	resp, err := b.deps.LLM.Generate(ctx, "", prompt, llm.QueryOptions{
		MaxTokens:    3000,
		Temperature:  0.8,
		SystemPrompt: systemPrompt,
	})
	if err != nil {
		return Errorf("content calendar generation failed: %v", err)
	}

	var items []calendarItem
	if err := llm.UnmarshalResponse(resp.Content, &items); err != nil {
		return Errorf("failed to parse content calendar response: %v", err)
	}

	var created []map[string]interface{}
	for i, item := range items {
		if i >= calendarDays {
			break
		}
		scheduled := time.Now().UTC().AddDate(0, 0, i+1)

		title := item.Title
		if title == "" {
			title = fmt.Sprintf("Content Day %d", i+1)
		}
		contentType := item.ContentType
		if contentType == "" {
			contentType = "blog_post"
		}
		platform := item.Platform
		if platform == "" {
			platform = "blog"
		}

		content := &store.Content{
			MissionID:      mission.ID,
			Title:          title,
			ContentType:    contentType,
			Topic:          item.Description,
			TargetAudience: mission.TargetAudience,
			Platform:       platform,
			Status:         "draft",
			ScheduledDate:  &scheduled,
		}
		if err := b.deps.Store.CreateContent(ctx, content); err != nil {
			log.Printf("[Bard] Failed to save calendar item %d: %v", i+1, err)
			continue
		}
		created = append(created, map[string]interface{}{
			"id":             content.ID,
			"day":            i + 1,
			"title":          title,
			"content_type":   contentType,
			"platform":       platform,
			"scheduled_date": scheduled,
		})
	}

	log.Printf("[Bard] Generated %d-day content calendar for mission %s (%d items)", calendarDays, mission.ID, len(created))
	return Success(map[string]interface{}{
		"calendar_items": created,
		"total_items":    len(created),
		"mission_id":     mission.ID,
	})
}

// createContent writes the body for one calendar item, routed by its
// content type.
func (b *Bard) createContent(ctx context.Context, job *Job) *Result {
	contentID := job.String("content_id")
	if contentID == "" {
		return Errorf("content_id is required")
	}

	item, err := b.deps.Store.GetContent(ctx, contentID)
	if err != nil {
		return Errorf("content item %s not found", contentID)
	}
	mission, err := b.deps.Store.GetMission(ctx, item.MissionID)
	if err != nil {
		return Errorf("mission %s not found", item.MissionID)
	}

	var body, metaDescription string
	switch item.ContentType {
	case "blog_post":
		body, metaDescription, err = b.generateBlogPost(ctx, item, mission)
	case "social_media", "social_post":
		body, err = b.generateSocialPost(ctx, item, mission)
	default:
		body, err = b.generateGenericContent(ctx, item, mission)
	}
	if err != nil {
		return Errorf("content generation failed: %v", err)
	}

	if err := b.deps.Store.UpdateContentBody(ctx, item.ID, body, metaDescription); err != nil {
		return Errorf("failed to save generated content: %v", err)
	}

	log.Printf("[Bard] Generated content for item %s: %s", item.ID, item.Title)
	return Success(map[string]interface{}{
		"content_id":       item.ID,
		"title":            item.Title,
		"content":          body,
		"meta_description": metaDescription,
		"word_count":       len(strings.Fields(body)),
		"status":           "ready_for_approval",
	})
}

func (b *Bard) generateBlogPostJob(ctx context.Context, job *Job) *Result {
	item, mission, result := b.loadItemAndMission(ctx, job)
	if result != nil {
		return result
	}

	body, metaDescription, err := b.generateBlogPost(ctx, item, mission)
	if err != nil {
		return Errorf("blog post generation failed: %v", err)
	}
	if err := b.deps.Store.UpdateContentBody(ctx, item.ID, body, metaDescription); err != nil {
		return Errorf("failed to save blog post: %v", err)
	}

	return Success(map[string]interface{}{
		"content_id":       item.ID,
		"content":          body,
		"meta_description": metaDescription,
		"content_type":     "blog_post",
	})
}

func (b *Bard) createSocialPostJob(ctx context.Context, job *Job) *Result {
	item, mission, result := b.loadItemAndMission(ctx, job)
	if result != nil {
		return result
	}

	body, err := b.generateSocialPost(ctx, item, mission)
	if err != nil {
		return Errorf("social media post generation failed: %v", err)
	}
	if err := b.deps.Store.UpdateContentBody(ctx, item.ID, body, ""); err != nil {
		return Errorf("failed to save social media post: %v", err)
	}

	return Success(map[string]interface{}{
		"content_id":   item.ID,
		"content":      body,
		"platform":     strings.ToLower(item.Platform),
		"content_type": "social_media",
	})
}

func (b *Bard) loadItemAndMission(ctx context.Context, job *Job) (*store.Content, *store.Mission, *Result) {
	contentID := job.String("content_id")
	if contentID == "" {
		return nil, nil, Errorf("content_id is required")
	}
	item, err := b.deps.Store.GetContent(ctx, contentID)
	if err != nil {
		return nil, nil, Errorf("content item %s not found", contentID)
	}
	mission, err := b.deps.Store.GetMission(ctx, item.MissionID)
	if err != nil {
		return nil, nil, Errorf("mission %s not found", item.MissionID)
	}
	return item, mission, nil
}

func (b *Bard) generateBlogPost(ctx context.Context, item *store.Content, mission *store.Mission) (body, metaDescription string, err error) {
	systemPrompt := fmt.Sprintf(`You are a professional content writer creating blog posts that build brand authority.
Write in the following brand voice: %s
Create engaging, valuable content that resonates with the target audience and establishes thought leadership.`, mission.BrandVoice)

	prompt := fmt.Sprintf(`Write a comprehensive blog post with the following details:

BUSINESS CONTEXT:
- Business Goal: %s
- Target Audience: %s
- Brand Voice: %s
- Service Offerings: %s

BLOG POST DETAILS:
- Title: %s
- Topic: %s
- Platform: %s

Write a complete blog post (800-1200 words) that:
1. Has an engaging introduction
2. Provides valuable insights and information
3. Includes actionable advice
4. Maintains the specified brand voice
5. Ends with a compelling call-to-action
6. Is optimized for the target audience

Also provide a meta description (150-160 characters) for SEO on its own
line starting with "Meta description:".`,
		mission.BusinessGoal, mission.TargetAudience, mission.BrandVoice,
		strings.Join(mission.ServiceOfferings, ", "),
		item.Title, item.Topic, item.Platform)

	resp, err := b.deps.LLM.Generate(ctx, "", prompt, llm.QueryOptions{
		MaxTokens:    2500,
		Temperature:  0.7,
		SystemPrompt: systemPrompt,
	})
	if err != nil {
		return "", "", err
	}

	return resp.Content, extractMetaDescription(resp.Content), nil
}

func (b *Bard) generateSocialPost(ctx context.Context, item *store.Content, mission *store.Mission) (string, error) {
	platform := strings.ToLower(item.Platform)
	spec, ok := platformSpecs[platform]
	if !ok {
		platform = "linkedin"
		spec = platformSpecs[platform]
	}

	systemPrompt := fmt.Sprintf(`You are a social media content creator writing for %s.
Write in the following brand voice: %s
Create %s content that engages the target audience and builds brand authority.`,
		platform, mission.BrandVoice, spec.Style)

	prompt := fmt.Sprintf(`Create a %s post with the following details:

BUSINESS CONTEXT:
- Business Goal: %s
- Target Audience: %s
- Brand Voice: %s

POST DETAILS:
- Title/Topic: %s
- Description: %s
- Platform: %s
- Character Limit: %d
- Style: %s

Create an engaging %s post that:
1. Captures attention immediately
2. Provides value to the audience
3. Maintains the brand voice
4. Includes relevant hashtags (if appropriate for platform)
5. Encourages engagement
6. Stays within the character limit

Keep it %s and optimized for %s.`,
		platform, mission.BusinessGoal, mission.TargetAudience, mission.BrandVoice,
		item.Title, item.Topic, platform, spec.Limit, spec.Style,
		platform, spec.Style, platform)

	resp, err := b.deps.LLM.Generate(ctx, "", prompt, llm.QueryOptions{
		MaxTokens:    800,
		Temperature:  0.8,
		SystemPrompt: systemPrompt,
	})
	if err != nil {
		return "", err
	}
	return resp.Content, nil
}

func (b *Bard) generateGenericContent(ctx context.Context, item *store.Content, mission *store.Mission) (string, error) {
	systemPrompt := fmt.Sprintf(`You are a professional content creator specializing in %s.
Write in the following brand voice: %s
Create valuable, engaging content that builds brand authority and serves the target audience.`,
		item.ContentType, mission.BrandVoice)

	prompt := fmt.Sprintf(`Create %s content with the following details:

BUSINESS CONTEXT:
- Business Goal: %s
- Target Audience: %s
- Brand Voice: %s
- Service Offerings: %s

CONTENT DETAILS:
- Title: %s
- Topic: %s
- Content Type: %s
- Platform: %s

Create comprehensive %s content that:
1. Aligns with the business goals
2. Provides value to the target audience
3. Maintains the brand voice
4. Is appropriate for the specified platform
5. Encourages audience engagement

Make it professional, valuable, and on-brand.`,
		item.ContentType, mission.BusinessGoal, mission.TargetAudience,
		mission.BrandVoice, strings.Join(mission.ServiceOfferings, ", "),
		item.Title, item.Topic, item.ContentType, item.Platform, item.ContentType)

	resp, err := b.deps.LLM.Generate(ctx, "", prompt, llm.QueryOptions{
		MaxTokens:    2000,
		Temperature:  0.7,
		SystemPrompt: systemPrompt,
	})
	if err != nil {
		return "", err
	}
	return resp.Content, nil
}

// extractMetaDescription pulls the SEO meta description line out of a
// generated blog post, if present.
func extractMetaDescription(content string) string {
	lines := strings.Split(content, "\n")
	for i, line := range lines {
		idx := strings.Index(strings.ToLower(line), "meta description")
		if idx == -1 {
			continue
		}
		rest := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(line[idx+len("meta description"):]), ":"))
		if rest != "" {
			return rest
		}
		if i+1 < len(lines) {
			return strings.TrimSpace(lines[i+1])
		}
	}
	return ""
}
