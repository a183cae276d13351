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

// missionStatusRank orders the mission lifecycle. Transitions must not
// decrease rank; paused and error sit outside the ordering.
var missionStatusRank = map[string]int{
	MissionStatusCreated:         0,
	MissionStatusAnalyzing:       1,
	MissionStatusProspecting:     2,
	MissionStatusContentCreating: 3,
	MissionStatusOutreachActive:  4,
	MissionStatusLeadsNurturing:  5,
	MissionStatusDealsClosing:    6,
	MissionStatusFulfillment:     7,
	MissionStatusCompleted:       8,
}

// ValidMissionTransition reports whether a mission may move from one
// status to another. Pausing is allowed from any active state and a
// paused mission may resume anywhere forward of created.
func ValidMissionTransition(from, to string) bool {
	if from == to {
		return true
	}
	if to == MissionStatusPaused || to == MissionStatusError {
		return from != MissionStatusCompleted
	}
	if from == MissionStatusPaused || from == MissionStatusError {
		_, ok := missionStatusRank[to]
		return ok
	}
	fromRank, ok := missionStatusRank[from]
	if !ok {
		return false
	}
	toRank, ok := missionStatusRank[to]
	if !ok {
		return false
	}
	return toRank > fromRank
}

// CreateMission inserts a new mission in the created state.
func (s *Store) CreateMission(ctx context.Context, m *Mission) error {
	if m == nil || m.BusinessGoal == "" {
		return ErrInvalidInput
	}
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	if m.Status == "" {
		m.Status = MissionStatusCreated
	}

	query := `
		INSERT INTO missions (
			id, business_goal, target_audience, brand_voice,
			service_offerings, contact_info, status
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at, updated_at`

	err := s.db.QueryRowContext(ctx, query,
		m.ID, m.BusinessGoal, m.TargetAudience, m.BrandVoice,
		m.ServiceOfferings, m.ContactInfo, m.Status,
	).Scan(&m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create mission: %w", err)
	}
	return nil
}

// GetMission retrieves a mission by ID.
func (s *Store) GetMission(ctx context.Context, id string) (*Mission, error) {
	query := `
		SELECT id, business_goal, target_audience, brand_voice,
			service_offerings, contact_info, status, error_message,
			created_at, updated_at
		FROM missions WHERE id = $1`

	m := &Mission{}
	var errorMessage sql.NullString

	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&m.ID, &m.BusinessGoal, &m.TargetAudience, &m.BrandVoice,
		&m.ServiceOfferings, &m.ContactInfo, &m.Status, &errorMessage,
		&m.CreatedAt, &m.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get mission: %w", err)
	}

	if errorMessage.Valid {
		m.ErrorMessage = errorMessage.String
	}
	return m, nil
}

// ListMissions returns all missions, newest first.
func (s *Store) ListMissions(ctx context.Context) ([]*Mission, error) {
	query := `
		SELECT id, business_goal, target_audience, brand_voice,
			service_offerings, contact_info, status, error_message,
			created_at, updated_at
		FROM missions ORDER BY created_at DESC`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list missions: %w", err)
	}
	defer rows.Close()

	var missions []*Mission
	for rows.Next() {
		m := &Mission{}
		var errorMessage sql.NullString
		if err := rows.Scan(
			&m.ID, &m.BusinessGoal, &m.TargetAudience, &m.BrandVoice,
			&m.ServiceOfferings, &m.ContactInfo, &m.Status, &errorMessage,
			&m.CreatedAt, &m.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan mission: %w", err)
		}
		if errorMessage.Valid {
			m.ErrorMessage = errorMessage.String
		}
		missions = append(missions, m)
	}
	return missions, rows.Err()
}

// BriefUpdate carries refined mission brief fields. Empty string fields
// and nil slices leave the stored value unchanged.
type BriefUpdate struct {
	BusinessGoal     string
	TargetAudience   string
	BrandVoice       string
	ServiceOfferings JSONList
}

// UpdateMissionBrief applies a refined brief to a mission.
func (s *Store) UpdateMissionBrief(ctx context.Context, id string, b BriefUpdate) error {
	query := `
		UPDATE missions
		SET business_goal = COALESCE(NULLIF($1, ''), business_goal),
			target_audience = COALESCE(NULLIF($2, ''), target_audience),
			brand_voice = COALESCE(NULLIF($3, ''), brand_voice),
			service_offerings = CASE WHEN $4::jsonb = '[]'::jsonb THEN service_offerings ELSE $4::jsonb END,
			updated_at = NOW()
		WHERE id = $5`

	result, err := s.db.ExecContext(ctx, query,
		b.BusinessGoal, b.TargetAudience, b.BrandVoice, b.ServiceOfferings, id)
	if err != nil {
		return fmt.Errorf("failed to update mission brief: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateMissionStatus moves a mission through its lifecycle, enforcing
// forward-only transitions.
func (s *Store) UpdateMissionStatus(ctx context.Context, id, status, errorMessage string) error {
	current, err := s.GetMission(ctx, id)
	if err != nil {
		return err
	}
	if !ValidMissionTransition(current.Status, status) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, current.Status, status)
	}

	query := `
		UPDATE missions
		SET status = $1, error_message = NULLIF($2, ''), updated_at = NOW()
		WHERE id = $3`

	result, err := s.db.ExecContext(ctx, query, status, errorMessage, id)
	if err != nil {
		return fmt.Errorf("failed to update mission status: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
