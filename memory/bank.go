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

// Package memory implements the per-lead conversation memory bank backed
// by MongoDB. Messages are embedded on write and retrieved either in
// chronological order or by semantic similarity to a query.
package memory

import (
	"context"
	"fmt"
	"log"
	"sort"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const defaultCollection = "lead_messages"

// Message is one stored conversation message for a lead.
type Message struct {
	LeadID    string    `bson:"lead_id" json:"lead_id"`
	Type      string    `bson:"type" json:"type"` // incoming or outgoing
	Subject   string    `bson:"subject" json:"subject"`
	Body      string    `bson:"body" json:"body"`
	Sender    string    `bson:"sender" json:"sender"`
	Context   string    `bson:"context,omitempty" json:"context,omitempty"`
	Timestamp time.Time `bson:"timestamp" json:"timestamp"`
	Embedding []float64 `bson:"embedding" json:"-"`
}

// ScoredMessage is a search hit with its similarity score.
type ScoredMessage struct {
	Message
	Score float64 `json:"relevance_score"`
}

// Embedder turns text into a vector for similarity search.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float64, error)
}

// Bank stores and retrieves lead conversation history.
type Bank struct {
	coll     *mongo.Collection
	client   *mongo.Client
	embedder Embedder
}

// NewBank connects to MongoDB and returns a memory bank. If embedder is
// nil a deterministic hash embedder is used, which keeps search working
// without an external embedding API.
func NewBank(ctx context.Context, uri, database string, embedder Embedder) (*Bank, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	if embedder == nil {
		embedder = NewHashEmbedder(256)
	}

	log.Printf("[MemoryBank] Connected to MongoDB (database: %s)", database)

	return &Bank{
		coll:     client.Database(database).Collection(defaultCollection),
		client:   client,
		embedder: embedder,
	}, nil
}

// NewBankWithCollection builds a bank over an existing collection,
// used by tests and alternate deployments.
func NewBankWithCollection(coll *mongo.Collection, embedder Embedder) *Bank {
	if embedder == nil {
		embedder = NewHashEmbedder(256)
	}
	return &Bank{coll: coll, embedder: embedder}
}

// Close disconnects from MongoDB.
func (b *Bank) Close(ctx context.Context) error {
	if b.client == nil {
		return nil
	}
	return b.client.Disconnect(ctx)
}

// StoreMessage embeds and persists a message for a lead.
func (b *Bank) StoreMessage(ctx context.Context, leadID string, m Message) error {
	if leadID == "" {
		return fmt.Errorf("lead ID is required")
	}
	m.LeadID = leadID
	if m.Timestamp.IsZero() {
		m.Timestamp = time.Now().UTC()
	}

	embedding, err := b.embedder.Embed(ctx, m.Subject+" "+m.Body)
	if err != nil {
		// A message without an embedding is still useful for history
		log.Printf("[MemoryBank] WARNING: embedding failed for lead %s: %v", leadID, err)
	} else {
		m.Embedding = embedding
	}

	if _, err := b.coll.InsertOne(ctx, m); err != nil {
		return fmt.Errorf("failed to store message: %w", err)
	}
	return nil
}

// History returns the most recent messages for a lead in chronological
// order.
func (b *Bank) History(ctx context.Context, leadID string, limit int) ([]Message, error) {
	if limit <= 0 {
		limit = 10
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "timestamp", Value: -1}}).
		SetLimit(int64(limit))

	cursor, err := b.coll.Find(ctx, bson.M{"lead_id": leadID}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer cursor.Close(ctx)

	var messages []Message
	if err := cursor.All(ctx, &messages); err != nil {
		return nil, fmt.Errorf("failed to decode history: %w", err)
	}

	// Oldest first for prompt building
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}

// Search returns a lead's messages ranked by cosine similarity to the
// query, best first.
func (b *Bank) Search(ctx context.Context, leadID, query string, limit int) ([]ScoredMessage, error) {
	if limit <= 0 {
		limit = 3
	}

	queryVec, err := b.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	cursor, err := b.coll.Find(ctx, bson.M{"lead_id": leadID})
	if err != nil {
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	defer cursor.Close(ctx)

	var messages []Message
	if err := cursor.All(ctx, &messages); err != nil {
		return nil, fmt.Errorf("failed to decode messages: %w", err)
	}

	scored := make([]ScoredMessage, 0, len(messages))
	for _, m := range messages {
		if len(m.Embedding) == 0 {
			continue
		}
		scored = append(scored, ScoredMessage{
			Message: m,
			Score:   CosineSimilarity(queryVec, m.Embedding),
		})
	}

	sort.Slice(scored, func(i, j int) bool { return scored[i].Score > scored[j].Score })
	if len(scored) > limit {
		scored = scored[:limit]
	}
	return scored, nil
}
