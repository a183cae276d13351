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

const conversationColumns = `id, lead_id, thread_id, subject, sender_email,
	recipient_email, message_type, body_preview, full_body, status,
	sent_at, received_at, created_at, updated_at`

// CreateConversation records an incoming or outgoing message for a lead.
func (s *Store) CreateConversation(ctx context.Context, c *Conversation) error {
	if c == nil || c.LeadID == "" || c.MessageType == "" {
		return ErrInvalidInput
	}
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	if c.Status == "" {
		c.Status = "unread"
	}

	query := `
		INSERT INTO conversations (
			id, lead_id, thread_id, subject, sender_email, recipient_email,
			message_type, body_preview, full_body, status, sent_at, received_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING created_at, updated_at`

	err := s.db.QueryRowContext(ctx, query,
		c.ID, c.LeadID, c.ThreadID, c.Subject, c.SenderEmail, c.RecipientEmail,
		c.MessageType, c.BodyPreview, c.FullBody, c.Status, c.SentAt, c.ReceivedAt,
	).Scan(&c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create conversation: %w", err)
	}
	return nil
}

func scanConversation(scanner interface{ Scan(...interface{}) error }) (*Conversation, error) {
	c := &Conversation{}
	var threadID, subject, senderEmail, recipientEmail, bodyPreview, fullBody sql.NullString
	var sentAt, receivedAt sql.NullTime

	err := scanner.Scan(
		&c.ID, &c.LeadID, &threadID, &subject, &senderEmail,
		&recipientEmail, &c.MessageType, &bodyPreview, &fullBody, &c.Status,
		&sentAt, &receivedAt, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	c.ThreadID = threadID.String
	c.Subject = subject.String
	c.SenderEmail = senderEmail.String
	c.RecipientEmail = recipientEmail.String
	c.BodyPreview = bodyPreview.String
	c.FullBody = fullBody.String
	if sentAt.Valid {
		c.SentAt = &sentAt.Time
	}
	if receivedAt.Valid {
		c.ReceivedAt = &receivedAt.Time
	}
	return c, nil
}

// ListConversationsByLead returns a lead's messages in thread order.
func (s *Store) ListConversationsByLead(ctx context.Context, leadID string) ([]*Conversation, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+conversationColumns+` FROM conversations WHERE lead_id = $1 ORDER BY created_at ASC`, leadID)
	if err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}
	defer rows.Close()

	var conversations []*Conversation
	for rows.Next() {
		c, err := scanConversation(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan conversation: %w", err)
		}
		conversations = append(conversations, c)
	}
	return conversations, rows.Err()
}

// ListUnreadConversations returns incoming messages awaiting a reply.
func (s *Store) ListUnreadConversations(ctx context.Context) ([]*Conversation, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+conversationColumns+` FROM conversations
		WHERE status = 'unread' AND message_type = 'incoming'
		ORDER BY received_at DESC NULLS LAST`)
	if err != nil {
		return nil, fmt.Errorf("failed to list unread conversations: %w", err)
	}
	defer rows.Close()

	var conversations []*Conversation
	for rows.Next() {
		c, err := scanConversation(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan conversation: %w", err)
		}
		conversations = append(conversations, c)
	}
	return conversations, rows.Err()
}

// UpdateConversationStatus transitions a conversation between unread,
// read, replied, and draft.
func (s *Store) UpdateConversationStatus(ctx context.Context, id, status string) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE conversations SET status = $1, updated_at = NOW() WHERE id = $2`, status, id)
	if err != nil {
		return fmt.Errorf("failed to update conversation status: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
