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

package store

import (
	"context"
	"fmt"
	"log"
)

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS missions (
		id TEXT PRIMARY KEY,
		business_goal TEXT NOT NULL,
		target_audience TEXT NOT NULL,
		brand_voice TEXT NOT NULL,
		service_offerings JSONB NOT NULL DEFAULT '[]',
		contact_info JSONB NOT NULL DEFAULT '{}',
		status TEXT NOT NULL DEFAULT 'created',
		error_message TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,

	`CREATE TABLE IF NOT EXISTS leads (
		id TEXT PRIMARY KEY,
		mission_id TEXT REFERENCES missions(id),
		company_name TEXT NOT NULL,
		website_url TEXT,
		contact_email TEXT,
		contact_name TEXT,
		phone_number TEXT,
		industry TEXT,
		company_size TEXT,
		pain_points JSONB NOT NULL DEFAULT '[]',
		lead_source TEXT,
		qualification_score INTEGER NOT NULL DEFAULT 0,
		status TEXT NOT NULL DEFAULT 'new',
		notes TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,

	`CREATE TABLE IF NOT EXISTS conversations (
		id TEXT PRIMARY KEY,
		lead_id TEXT NOT NULL REFERENCES leads(id),
		thread_id TEXT,
		subject TEXT,
		sender_email TEXT,
		recipient_email TEXT,
		message_type TEXT NOT NULL,
		body_preview TEXT,
		full_body TEXT,
		status TEXT NOT NULL DEFAULT 'unread',
		sent_at TIMESTAMPTZ,
		received_at TIMESTAMPTZ,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,

	`CREATE TABLE IF NOT EXISTS content (
		id TEXT PRIMARY KEY,
		mission_id TEXT REFERENCES missions(id),
		title TEXT NOT NULL,
		content_type TEXT NOT NULL,
		topic TEXT NOT NULL,
		target_audience TEXT,
		content_body TEXT,
		meta_description TEXT,
		tags JSONB NOT NULL DEFAULT '[]',
		status TEXT NOT NULL DEFAULT 'draft',
		scheduled_date TIMESTAMPTZ,
		published_date TIMESTAMPTZ,
		platform TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,

	`CREATE TABLE IF NOT EXISTS fulfillment_projects (
		id TEXT PRIMARY KEY,
		lead_id TEXT NOT NULL REFERENCES leads(id),
		mission_id TEXT REFERENCES missions(id),
		project_type TEXT NOT NULL,
		project_title TEXT NOT NULL,
		project_description TEXT,
		requirements JSONB NOT NULL DEFAULT '{}',
		deliverable_type TEXT,
		deliverable_path TEXT,
		freelancer_brief TEXT,
		status TEXT NOT NULL DEFAULT 'pending',
		estimated_completion TIMESTAMPTZ,
		actual_completion TIMESTAMPTZ,
		quality_score INTEGER,
		client_feedback TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,

	`CREATE TABLE IF NOT EXISTS agent_activities (
		id TEXT PRIMARY KEY,
		agent_name TEXT NOT NULL,
		activity_type TEXT NOT NULL,
		description TEXT NOT NULL,
		status TEXT NOT NULL,
		mission_id TEXT,
		input_data JSONB,
		output_data JSONB,
		execution_time_ms BIGINT,
		error_message TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,

	`CREATE INDEX IF NOT EXISTS idx_leads_mission ON leads(mission_id)`,
	`CREATE INDEX IF NOT EXISTS idx_leads_email ON leads(contact_email)`,
	`CREATE INDEX IF NOT EXISTS idx_conversations_lead ON conversations(lead_id)`,
	`CREATE INDEX IF NOT EXISTS idx_content_mission ON content(mission_id)`,
	`CREATE INDEX IF NOT EXISTS idx_projects_lead ON fulfillment_projects(lead_id)`,
	`CREATE INDEX IF NOT EXISTS idx_activities_agent ON agent_activities(agent_name)`,
	`CREATE INDEX IF NOT EXISTS idx_activities_mission ON agent_activities(mission_id)`,
}

// Migrate creates all tables and indexes if they do not exist.
func (s *Store) Migrate(ctx context.Context) error {
	for _, stmt := range schemaStatements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("schema migration failed: %w", err)
		}
	}
	log.Printf("[Store] Schema migration complete (%d statements)", len(schemaStatements))
	return nil
}
