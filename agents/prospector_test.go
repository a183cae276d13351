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
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chimera/platform/store"
)

type fakeFetcher struct {
	pages map[string]string
	err   error
}

func (f *fakeFetcher) Fetch(_ context.Context, url string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return f.pages[url], nil
}

func TestProspectorFindLeads(t *testing.T) {
	storage := newFakeStorage()
	seedMission(storage, store.MissionStatusProspecting)

	llm := &fakeLLM{response: `{"leads": [
		{"company_name": "Acme Logistics", "website_url": "https://acme.example", "contact_email": "ops@acme.example", "industry": "logistics", "qualification_score": 82},
		{"company_name": "ACME LOGISTICS", "website_url": "https://acme.example"},
		{"company_name": "Globex Freight", "contact_email": "hello@globex.example", "qualification_score": 64}
	]}`}
	fetcher := &fakeFetcher{pages: map[string]string{
		"https://directory.example/logistics": "Acme Logistics ... Globex Freight ...",
	}}

	p := NewProspector(testDeps(storage, llm), fetcher)
	job := NewJob("find_leads", "mission-1", map[string]interface{}{
		"search_query": "logistics companies in Ohio",
		"sources":      []interface{}{"https://directory.example/logistics"},
	})
	result, err := p.Execute(context.Background(), job)
	require.NoError(t, err)

	assert.Equal(t, StatusSuccess, result.Status)
	assert.Equal(t, 3, result.Output["total_found"])
	assert.Equal(t, 2, result.Output["unique_leads"])
	assert.Equal(t, 2, result.Output["saved_leads"])

	leads, _ := storage.ListLeads(context.Background(), "mission-1")
	require.Len(t, leads, 2)
	for _, l := range leads {
		assert.Equal(t, store.LeadStatusNew, l.Status)
		assert.Equal(t, "prospector_agent", l.LeadSource)
		assert.Equal(t, "mission-1", l.MissionID)
	}
}

func TestProspectorFindLeadsNoQuery(t *testing.T) {
	p := NewProspector(testDeps(newFakeStorage(), &fakeLLM{}), &fakeFetcher{})

	result, err := p.Execute(context.Background(), NewJob("find_leads", "mission-1", nil))
	require.NoError(t, err)
	assert.Equal(t, StatusError, result.Status)
}

func TestProspectorSourceFailureIsNotFatal(t *testing.T) {
	storage := newFakeStorage()
	p := NewProspector(testDeps(storage, &fakeLLM{}), &fakeFetcher{err: errors.New("timeout")})

	job := NewJob("find_leads", "mission-1", map[string]interface{}{
		"search_query": "logistics companies",
		"sources":      []interface{}{"https://directory.example/logistics"},
	})
	result, err := p.Execute(context.Background(), job)
	require.NoError(t, err)

	assert.Equal(t, StatusSuccess, result.Status)
	assert.Equal(t, 0, result.Output["total_found"])
}

func TestDeduplicateLeads(t *testing.T) {
	leads := []extractedLead{
		{CompanyName: "Acme"},
		{CompanyName: " acme "},
		{CompanyName: ""},
		{CompanyName: "Globex"},
	}
	unique := deduplicateLeads(leads)
	require.Len(t, unique, 2)
	assert.Equal(t, "Acme", unique[0].CompanyName)
	assert.Equal(t, "Globex", unique[1].CompanyName)
}

func TestBuildSearchQuery(t *testing.T) {
	job := NewJob("find_leads", "", map[string]interface{}{
		"target_audience": "logistics companies",
		"business_goal":   "sell automation",
	})
	assert.Equal(t, "logistics companies sell automation", buildSearchQuery(job))
}
