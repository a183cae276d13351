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
	"database/sql"
	"fmt"

	"github.com/google/uuid"
)

const projectColumns = `id, lead_id, mission_id, project_type, project_title,
	project_description, requirements, deliverable_type, deliverable_path,
	freelancer_brief, status, estimated_completion, actual_completion,
	quality_score, client_feedback, created_at, updated_at`

// CreateFulfillmentProject opens a deliverable for a closed lead.
func (s *Store) CreateFulfillmentProject(ctx context.Context, p *FulfillmentProject) error {
	if p == nil || p.LeadID == "" || p.ProjectTitle == "" || p.ProjectType == "" {
		return ErrInvalidInput
	}
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	if p.Status == "" {
		p.Status = "pending"
	}

	query := `
		INSERT INTO fulfillment_projects (
			id, lead_id, mission_id, project_type, project_title,
			project_description, requirements, deliverable_type,
			freelancer_brief, status, estimated_completion
		) VALUES ($1, $2, NULLIF($3, ''), $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING created_at, updated_at`

	err := s.db.QueryRowContext(ctx, query,
		p.ID, p.LeadID, p.MissionID, p.ProjectType, p.ProjectTitle,
		p.ProjectDescription, p.Requirements, p.DeliverableType,
		p.FreelancerBrief, p.Status, p.EstimatedCompletion,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create fulfillment project: %w", err)
	}
	return nil
}

func scanProject(scanner interface{ Scan(...interface{}) error }) (*FulfillmentProject, error) {
	p := &FulfillmentProject{}
	var missionID, description, deliverableType, deliverablePath sql.NullString
	var freelancerBrief, clientFeedback sql.NullString
	var estimatedCompletion, actualCompletion sql.NullTime
	var qualityScore sql.NullInt32

	err := scanner.Scan(
		&p.ID, &p.LeadID, &missionID, &p.ProjectType, &p.ProjectTitle,
		&description, &p.Requirements, &deliverableType, &deliverablePath,
		&freelancerBrief, &p.Status, &estimatedCompletion, &actualCompletion,
		&qualityScore, &clientFeedback, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	p.MissionID = missionID.String
	p.ProjectDescription = description.String
	p.DeliverableType = deliverableType.String
	p.DeliverablePath = deliverablePath.String
	p.FreelancerBrief = freelancerBrief.String
	p.ClientFeedback = clientFeedback.String
	if estimatedCompletion.Valid {
		p.EstimatedCompletion = &estimatedCompletion.Time
	}
	if actualCompletion.Valid {
		p.ActualCompletion = &actualCompletion.Time
	}
	if qualityScore.Valid {
		p.QualityScore = int(qualityScore.Int32)
	}
	return p, nil
}

// GetFulfillmentProject retrieves a project by ID.
func (s *Store) GetFulfillmentProject(ctx context.Context, id string) (*FulfillmentProject, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+projectColumns+` FROM fulfillment_projects WHERE id = $1`, id)

	p, err := scanProject(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get fulfillment project: %w", err)
	}
	return p, nil
}

// ListFulfillmentProjects returns projects filtered by lead and/or status.
func (s *Store) ListFulfillmentProjects(ctx context.Context, leadID, status string) ([]*FulfillmentProject, error) {
	query := `SELECT ` + projectColumns + ` FROM fulfillment_projects WHERE 1=1`
	var args []interface{}
	if leadID != "" {
		args = append(args, leadID)
		query += fmt.Sprintf(" AND lead_id = $%d", len(args))
	}
	if status != "" {
		args = append(args, status)
		query += fmt.Sprintf(" AND status = $%d", len(args))
	}
	query += ` ORDER BY created_at DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list fulfillment projects: %w", err)
	}
	defer rows.Close()

	var projects []*FulfillmentProject
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan fulfillment project: %w", err)
		}
		projects = append(projects, p)
	}
	return projects, rows.Err()
}

// ProjectUpdate carries the mutable fields of a fulfillment project.
// Nil pointers leave the column untouched.
type ProjectUpdate struct {
	Status          *string
	DeliverablePath *string
	QualityScore    *int
	ClientFeedback  *string
	MarkCompleted   bool
}

// UpdateFulfillmentProject applies a partial update to a project.
func (s *Store) UpdateFulfillmentProject(ctx context.Context, id string, update ProjectUpdate) error {
	query := `
		UPDATE fulfillment_projects
		SET status = COALESCE($1, status),
			deliverable_path = COALESCE($2, deliverable_path),
			quality_score = COALESCE($3, quality_score),
			client_feedback = COALESCE($4, client_feedback),
			actual_completion = CASE WHEN $5 THEN NOW() ELSE actual_completion END,
			updated_at = NOW()
		WHERE id = $6`

	result, err := s.db.ExecContext(ctx, query,
		update.Status, update.DeliverablePath, update.QualityScore,
		update.ClientFeedback, update.MarkCompleted, id)
	if err != nil {
		return fmt.Errorf("failed to update fulfillment project: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
