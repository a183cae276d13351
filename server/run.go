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

package server

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"chimera/platform/agents"
	"chimera/platform/artifacts"
	"chimera/platform/llm"
	"chimera/platform/memory"
	"chimera/platform/queue"
	"chimera/platform/store"
)

// Run wires the whole platform together and serves until SIGINT or
// SIGTERM: database, queue, LLM router, memory bank, artifact store,
// the agent fleet, the dispatcher, and the HTTP surface.
func Run() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := LoadConfig()
	if err != nil {
		log.Fatalf("[Server] Invalid configuration: %v", err)
	}

	st, err := store.Open(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("[Server] Failed to open database: %v", err)
	}
	defer st.Close()
	if err := st.Migrate(ctx); err != nil {
		log.Fatalf("[Server] Failed to run migrations: %v", err)
	}

	q, err := queue.Connect(cfg.RedisURL)
	if err != nil {
		log.Fatalf("[Server] Failed to connect to Redis: %v", err)
	}
	defer q.Close()

	router := llm.NewRouter(llm.RouterConfig{
		OpenAIKey:     cfg.OpenAIKey,
		AnthropicKey:  cfg.AnthropicKey,
		BedrockRegion: cfg.BedrockRegion,
		BedrockModel:  cfg.BedrockModel,
	})
	defer router.Close()

	var bank agents.Memory
	if cfg.MongoURI != "" {
		b, err := memory.NewBank(ctx, cfg.MongoURI, "chimera", nil)
		if err != nil {
			log.Fatalf("[Server] Failed to connect to MongoDB: %v", err)
		}
		defer b.Close(context.Background())
		bank = b
	} else {
		log.Printf("[Server] MONGO_URI not set, conversation memory disabled")
	}

	var artifactStore artifacts.Store
	if cfg.ArtifactsBucket != "" {
		region := getEnv("AWS_REGION", cfg.BedrockRegion)
		artifactStore, err = artifacts.NewS3Store(ctx, region, cfg.ArtifactsBucket, "deliverables")
	} else {
		artifactStore, err = artifacts.NewLocalStore(cfg.ArtifactsDir)
	}
	if err != nil {
		log.Fatalf("[Server] Failed to initialize artifact store: %v", err)
	}

	deps := agents.Deps{
		Store:     st,
		LLM:       router,
		Memory:    bank,
		Artifacts: artifactStore,
	}

	registry := agents.NewRegistry()
	fleet := []agents.Agent{
		agents.NewMaestro(deps),
		agents.NewStrategist(deps),
		agents.NewProspector(deps, nil),
		agents.NewHerald(deps),
		agents.NewCloser(deps),
		agents.NewBard(deps),
		agents.NewArtificer(deps),
		agents.NewQuartermaster(deps),
		agents.NewTechnician(deps),
		agents.NewGuardian(deps),
	}
	for _, a := range fleet {
		if err := registry.Register(a); err != nil {
			log.Fatalf("[Server] Failed to register agent: %v", err)
		}
	}

	dispatcher := queue.NewDispatcher(q, registry, st, queue.Options{
		Workers: cfg.Workers,
		OnJob:   ObserveJob,
	})
	dispatcher.Start(ctx)

	srv := NewServer(cfg, st, dispatcher, registry, router)
	if err := srv.Run(ctx); err != nil && err != http.ErrServerClosed {
		log.Printf("[Server] HTTP server error: %v", err)
	}

	// Let in-flight jobs finish before the process exits.
	done := make(chan struct{})
	go func() {
		dispatcher.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(30 * time.Second):
		log.Printf("[Server] Dispatcher drain timed out")
	}
}
