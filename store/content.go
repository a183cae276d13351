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
	"time"

	"github.com/google/uuid"
)

const contentColumns = `id, mission_id, title, content_type, topic,
	target_audience, content_body, meta_description, tags, status,
	scheduled_date, published_date, platform, created_at, updated_at`

// CreateContent inserts a content item onto the calendar.
func (s *Store) CreateContent(ctx context.Context, c *Content) error {
	if c == nil || c.Title == "" || c.ContentType == "" {
		return ErrInvalidInput
	}
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	if c.Status == "" {
		c.Status = "draft"
	}

	query := `
		INSERT INTO content (
			id, mission_id, title, content_type, topic, target_audience,
			content_body, meta_description, tags, status, scheduled_date, platform
		) VALUES ($1, NULLIF($2, ''), $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING created_at, updated_at`

	err := s.db.QueryRowContext(ctx, query,
		c.ID, c.MissionID, c.Title, c.ContentType, c.Topic, c.TargetAudience,
		c.ContentBody, c.MetaDescription, c.Tags, c.Status, c.ScheduledDate, c.Platform,
	).Scan(&c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create content: %w", err)
	}
	return nil
}

func scanContent(scanner interface{ Scan(...interface{}) error }) (*Content, error) {
	c := &Content{}
	var missionID, targetAudience, contentBody, metaDescription, platform sql.NullString
	var scheduledDate, publishedDate sql.NullTime

	err := scanner.Scan(
		&c.ID, &missionID, &c.Title, &c.ContentType, &c.Topic,
		&targetAudience, &contentBody, &metaDescription, &c.Tags, &c.Status,
		&scheduledDate, &publishedDate, &platform, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	c.MissionID = missionID.String
	c.TargetAudience = targetAudience.String
	c.ContentBody = contentBody.String
	c.MetaDescription = metaDescription.String
	c.Platform = platform.String
	if scheduledDate.Valid {
		c.ScheduledDate = &scheduledDate.Time
	}
	if publishedDate.Valid {
		c.PublishedDate = &publishedDate.Time
	}
	return c, nil
}

// GetContent retrieves a content item by ID.
func (s *Store) GetContent(ctx context.Context, id string) (*Content, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+contentColumns+` FROM content WHERE id = $1`, id)

	c, err := scanContent(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get content: %w", err)
	}
	return c, nil
}

// ListContent returns calendar items filtered by mission and/or status.
func (s *Store) ListContent(ctx context.Context, missionID, status string) ([]*Content, error) {
	query := `SELECT ` + contentColumns + ` FROM content WHERE 1=1`
	var args []interface{}
	if missionID != "" {
		args = append(args, missionID)
		query += fmt.Sprintf(" AND mission_id = $%d", len(args))
	}
	if status != "" {
		args = append(args, status)
		query += fmt.Sprintf(" AND status = $%d", len(args))
	}
	query += ` ORDER BY scheduled_date ASC NULLS LAST, created_at DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list content: %w", err)
	}
	defer rows.Close()

	var items []*Content
	for rows.Next() {
		c, err := scanContent(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan content: %w", err)
		}
		items = append(items, c)
	}
	return items, rows.Err()
}

// UpdateContentBody writes generated content into a calendar item.
func (s *Store) UpdateContentBody(ctx context.Context, id, body, metaDescription string) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE content
		SET content_body = $1, meta_description = $2, updated_at = NOW()
		WHERE id = $3`, body, metaDescription, id)
	if err != nil {
		return fmt.Errorf("failed to update content body: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateContentStatus updates a content item's status, recording the
// publish time when it goes live.
func (s *Store) UpdateContentStatus(ctx context.Context, id, status string, publishedDate *time.Time) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE content
		SET status = $1, published_date = COALESCE($2, published_date), updated_at = NOW()
		WHERE id = $3`, status, publishedDate, id)
	if err != nil {
		return fmt.Errorf("failed to update content status: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
