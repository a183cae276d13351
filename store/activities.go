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

// LogActivity appends a row to the agent audit log.
func (s *Store) LogActivity(ctx context.Context, a *AgentActivity) error {
	if a == nil || a.AgentName == "" || a.ActivityType == "" {
		return ErrInvalidInput
	}
	if a.ID == "" {
		a.ID = uuid.New().String()
	}

	query := `
		INSERT INTO agent_activities (
			id, agent_name, activity_type, description, status,
			mission_id, input_data, output_data, execution_time_ms, error_message
		) VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), $7, $8, $9, NULLIF($10, ''))
		RETURNING created_at`

	err := s.db.QueryRowContext(ctx, query,
		a.ID, a.AgentName, a.ActivityType, a.Description, a.Status,
		a.MissionID, a.InputData, a.OutputData, a.ExecutionTimeMs, a.ErrorMessage,
	).Scan(&a.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to log agent activity: %w", err)
	}
	return nil
}

// ListActivities returns recent audit rows, optionally filtered by agent,
// newest first.
func (s *Store) ListActivities(ctx context.Context, agentName string, limit int) ([]*AgentActivity, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	query := `
		SELECT id, agent_name, activity_type, description, status,
			mission_id, input_data, output_data, execution_time_ms, error_message, created_at
		FROM agent_activities`
	var args []interface{}
	if agentName != "" {
		args = append(args, agentName)
		query += fmt.Sprintf(" WHERE agent_name = $%d", len(args))
	}
	args = append(args, limit)
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d", len(args))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list activities: %w", err)
	}
	defer rows.Close()

	var activities []*AgentActivity
	for rows.Next() {
		a := &AgentActivity{}
		var missionID, errorMessage sql.NullString
		var executionTime sql.NullInt64
		if err := rows.Scan(
			&a.ID, &a.AgentName, &a.ActivityType, &a.Description, &a.Status,
			&missionID, &a.InputData, &a.OutputData, &executionTime, &errorMessage, &a.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan activity: %w", err)
		}
		a.MissionID = missionID.String
		a.ErrorMessage = errorMessage.String
		a.ExecutionTimeMs = executionTime.Int64
		activities = append(activities, a)
	}
	return activities, rows.Err()
}
