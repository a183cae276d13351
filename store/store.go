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
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("record not found")

// ErrInvalidInput is returned when required fields are missing.
var ErrInvalidInput = errors.New("invalid input")

// ErrInvalidTransition is returned when a mission status change would
// move the lifecycle backwards.
var ErrInvalidTransition = errors.New("invalid mission status transition")

// Store wraps a PostgreSQL connection pool and exposes typed
// repositories for the platform's entities.
type Store struct {
	db *sql.DB
}

// New creates a Store from an existing database handle.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Open connects to PostgreSQL and verifies the connection.
func Open(dsn string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Store{db: db}, nil
}

// DB exposes the underlying handle for health checks.
func (s *Store) DB() *sql.DB { return s.db }

// Close closes the connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping verifies the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// SystemStats aggregates counts for the status endpoint.
func (s *Store) SystemStats(ctx context.Context) (*SystemStats, error) {
	query := `
		SELECT
			(SELECT COUNT(*) FROM missions),
			(SELECT COUNT(*) FROM missions WHERE status NOT IN ('completed', 'error')),
			(SELECT COUNT(*) FROM leads),
			(SELECT COUNT(*) FROM leads WHERE status = 'qualified'),
			(SELECT COUNT(*) FROM conversations),
			(SELECT COUNT(*) FROM content),
			(SELECT COUNT(*) FROM fulfillment_projects WHERE status IN ('pending', 'in_progress')),
			(SELECT COUNT(*) FROM agent_activities)`

	stats := &SystemStats{}
	err := s.db.QueryRowContext(ctx, query).Scan(
		&stats.TotalMissions, &stats.ActiveMissions,
		&stats.TotalLeads, &stats.QualifiedLeads,
		&stats.TotalConversations, &stats.ContentItems,
		&stats.OpenProjects, &stats.ActivitiesLogged,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to collect system stats: %w", err)
	}
	return stats, nil
}
