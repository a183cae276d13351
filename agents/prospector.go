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
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"chimera/platform/llm"
	"chimera/platform/store"
)

// maxLeadsPerSearch caps how many leads one search may save.
const maxLeadsPerSearch = 50

// maxSourceContent caps how much fetched text is passed to the LLM.
const maxSourceContent = 8000

// Fetcher retrieves raw text from a lead source URL.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (string, error)
}

// HTTPFetcher fetches source pages over plain HTTP.
type HTTPFetcher struct {
	Client *http.Client
}

// Fetch implements Fetcher.
func (f *HTTPFetcher) Fetch(ctx context.Context, url string) (string, error) {
	client := f.Client
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("failed to build source request: %w", err)
	}
	req.Header.Set("User-Agent", "chimera-prospector/1.0")

	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to fetch source %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("source %s returned status %d", url, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("failed to read source %s: %w", url, err)
	}
	return string(body), nil
}

// Prospector (SCOUT) discovers and qualifies leads: it pulls raw text
// from source URLs, extracts candidate companies via the LLM, dedupes
// by company name, and saves qualified leads.
type Prospector struct {
	deps    Deps
	fetcher Fetcher
}

// NewProspector creates the prospector agent. A nil fetcher defaults
// to plain HTTP.
func NewProspector(deps Deps, fetcher Fetcher) *Prospector {
	if fetcher == nil {
		fetcher = &HTTPFetcher{}
	}
	return &Prospector{deps: deps, fetcher: fetcher}
}

// Name implements Agent.
func (p *Prospector) Name() string { return "prospector" }

// JobTypes implements Agent.
func (p *Prospector) JobTypes() []string {
	return []string{"find_leads"}
}

// Execute implements Agent.
func (p *Prospector) Execute(ctx context.Context, job *Job) (*Result, error) {
	start := time.Now()

	var result *Result
	switch job.Type {
	case "find_leads":
		result = p.findLeads(ctx, job)
	default:
		result = Errorf("unknown job type: %s", job.Type)
	}

	result.ExecutionTimeMs = time.Since(start).Milliseconds()
	return result, nil
}

type extractedLead struct {
	CompanyName        string   `json:"company_name"`
	WebsiteURL         string   `json:"website_url"`
	ContactEmail       string   `json:"contact_email"`
	ContactName        string   `json:"contact_name"`
	Industry           string   `json:"industry"`
	CompanySize        string   `json:"company_size"`
	PainPoints         []string `json:"pain_points"`
	QualificationScore int      `json:"qualification_score"`
}

func (p *Prospector) findLeads(ctx context.Context, job *Job) *Result {
	searchQuery := job.String("search_query")
	if searchQuery == "" {
		searchQuery = buildSearchQuery(job)
	}
	if searchQuery == "" {
		return Errorf("no search query provided")
	}

	sources := sourceURLs(job)
	if len(sources) == 0 {
		sources = []string{"https://www.google.com/search?q=" + url.QueryEscape(searchQuery)}
	}

	log.Printf("[Prospector] Starting lead search for: %s (%d sources)", searchQuery, len(sources))

	var allLeads []extractedLead
	for _, source := range sources {
		content, err := p.fetcher.Fetch(ctx, source)
		if err != nil {
			log.Printf("[Prospector] Source fetch failed: %v", err)
			continue
		}

		leads, err := p.extractLeads(ctx, content, searchQuery)
		if err != nil {
			log.Printf("[Prospector] Lead extraction failed for %s: %v", source, err)
			continue
		}
		log.Printf("[Prospector] %s extraction found %d leads", source, len(leads))
		allLeads = append(allLeads, leads...)
	}

	unique := deduplicateLeads(allLeads)

	var saved []*store.Lead
	for i, el := range unique {
		if i >= maxLeadsPerSearch {
			break
		}

		lead := &store.Lead{
			MissionID:          job.MissionID,
			CompanyName:        el.CompanyName,
			WebsiteURL:         el.WebsiteURL,
			ContactEmail:       el.ContactEmail,
			ContactName:        el.ContactName,
			Industry:           el.Industry,
			CompanySize:        el.CompanySize,
			PainPoints:         store.JSONList(el.PainPoints),
			LeadSource:         "prospector_agent",
			QualificationScore: el.QualificationScore,
			Status:             store.LeadStatusNew,
		}
		if err := p.deps.Store.CreateLead(ctx, lead); err != nil {
			log.Printf("[Prospector] Failed to save lead %s: %v", el.CompanyName, err)
			continue
		}
		saved = append(saved, lead)
	}

	return Success(map[string]interface{}{
		"search_query": searchQuery,
		"total_found":  len(allLeads),
		"unique_leads": len(unique),
		"saved_leads":  len(saved),
		"leads":        saved,
	})
}

// extractLeads asks the LLM to pull structured lead candidates out of
// raw source text.
func (p *Prospector) extractLeads(ctx context.Context, content, searchQuery string) ([]extractedLead, error) {
	if len(content) > maxSourceContent {
		content = content[:maxSourceContent]
	}

	prompt := fmt.Sprintf(`Extract business leads from the following page content.
The search that produced this content was: %q

PAGE CONTENT:
%s

For each real business found, extract:
- company_name (required)
- website_url
- contact_email
- contact_name
- industry
- company_size (e.g. "1-10", "11-50", "51-200")
- pain_points: likely business problems the company faces
- qualification_score: 0-100 fit against the search intent

Only include businesses that actually appear in the content. Respond
with a JSON object: {"leads": [...]}.`, searchQuery, content)

	resp, err := p.deps.LLM.Generate(ctx, "", prompt, llm.QueryOptions{
		MaxTokens:   2000,
		Temperature: 0.1,
	})
	if err != nil {
		return nil, err
	}

	var extraction struct {
		Leads []extractedLead `json:"leads"`
	}
	if err := llm.UnmarshalResponse(resp.Content, &extraction); err != nil {
		return nil, fmt.Errorf("failed to parse lead extraction: %w", err)
	}
	return extraction.Leads, nil
}

// deduplicateLeads removes duplicates by normalized company name.
func deduplicateLeads(leads []extractedLead) []extractedLead {
	seen := make(map[string]bool)
	var unique []extractedLead
	for _, lead := range leads {
		name := strings.ToLower(strings.TrimSpace(lead.CompanyName))
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		unique = append(unique, lead)
	}
	return unique
}

func buildSearchQuery(job *Job) string {
	audience := job.String("target_audience")
	goal := job.String("business_goal")
	switch {
	case audience != "" && goal != "":
		return audience + " " + goal
	case audience != "":
		return audience
	default:
		return goal
	}
}

func sourceURLs(job *Job) []string {
	raw, ok := job.Payload["sources"].([]interface{})
	if !ok {
		return nil
	}
	var urls []string
	for _, r := range raw {
		if s, ok := r.(string); ok && s != "" {
			urls = append(urls, s)
		}
	}
	return urls
}
