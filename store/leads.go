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

const leadColumns = `id, mission_id, company_name, website_url, contact_email,
	contact_name, phone_number, industry, company_size, pain_points,
	lead_source, qualification_score, status, notes, created_at, updated_at`

// CreateLead inserts a new lead.
func (s *Store) CreateLead(ctx context.Context, l *Lead) error {
	if l == nil || l.CompanyName == "" {
		return ErrInvalidInput
	}
	if l.ID == "" {
		l.ID = uuid.New().String()
	}
	if l.Status == "" {
		l.Status = LeadStatusNew
	}

	query := `
		INSERT INTO leads (
			id, mission_id, company_name, website_url, contact_email,
			contact_name, phone_number, industry, company_size, pain_points,
			lead_source, qualification_score, status, notes
		) VALUES ($1, NULLIF($2, ''), $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING created_at, updated_at`

	err := s.db.QueryRowContext(ctx, query,
		l.ID, l.MissionID, l.CompanyName, l.WebsiteURL, l.ContactEmail,
		l.ContactName, l.PhoneNumber, l.Industry, l.CompanySize, l.PainPoints,
		l.LeadSource, l.QualificationScore, l.Status, l.Notes,
	).Scan(&l.CreatedAt, &l.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create lead: %w", err)
	}
	return nil
}

func scanLead(scanner interface{ Scan(...interface{}) error }) (*Lead, error) {
	l := &Lead{}
	var missionID, websiteURL, contactEmail, contactName sql.NullString
	var phoneNumber, industry, companySize, leadSource, notes sql.NullString

	err := scanner.Scan(
		&l.ID, &missionID, &l.CompanyName, &websiteURL, &contactEmail,
		&contactName, &phoneNumber, &industry, &companySize, &l.PainPoints,
		&leadSource, &l.QualificationScore, &l.Status, &notes,
		&l.CreatedAt, &l.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	l.MissionID = missionID.String
	l.WebsiteURL = websiteURL.String
	l.ContactEmail = contactEmail.String
	l.ContactName = contactName.String
	l.PhoneNumber = phoneNumber.String
	l.Industry = industry.String
	l.CompanySize = companySize.String
	l.LeadSource = leadSource.String
	l.Notes = notes.String
	return l, nil
}

// GetLead retrieves a lead by ID.
func (s *Store) GetLead(ctx context.Context, id string) (*Lead, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+leadColumns+` FROM leads WHERE id = $1`, id)

	l, err := scanLead(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get lead: %w", err)
	}
	return l, nil
}

// FindLeadByEmail looks up a lead by contact email, used to thread
// incoming replies back to the right prospect.
func (s *Store) FindLeadByEmail(ctx context.Context, email string) (*Lead, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+leadColumns+` FROM leads WHERE contact_email = $1 ORDER BY created_at DESC LIMIT 1`, email)

	l, err := scanLead(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find lead by email: %w", err)
	}
	return l, nil
}

// ListLeads returns leads, optionally filtered by mission, newest first.
func (s *Store) ListLeads(ctx context.Context, missionID string) ([]*Lead, error) {
	query := `SELECT ` + leadColumns + ` FROM leads`
	var args []interface{}
	if missionID != "" {
		query += ` WHERE mission_id = $1`
		args = append(args, missionID)
	}
	query += ` ORDER BY created_at DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list leads: %w", err)
	}
	defer rows.Close()

	var leads []*Lead
	for rows.Next() {
		l, err := scanLead(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan lead: %w", err)
		}
		leads = append(leads, l)
	}
	return leads, rows.Err()
}

// UpdateLeadStatus updates a lead's status, score, and notes. A negative
// score leaves the existing qualification score untouched.
func (s *Store) UpdateLeadStatus(ctx context.Context, id, status string, score int, notes string) error {
	query := `
		UPDATE leads
		SET status = $1,
			qualification_score = CASE WHEN $2 >= 0 THEN $2 ELSE qualification_score END,
			notes = CASE WHEN $3 <> '' THEN $3 ELSE notes END,
			updated_at = NOW()
		WHERE id = $4`

	result, err := s.db.ExecContext(ctx, query, status, score, notes, id)
	if err != nil {
		return fmt.Errorf("failed to update lead status: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
