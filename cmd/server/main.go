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

// Package main is the entry point for the Chimera platform server.
//
// The server runs the full autonomous operations stack in one process:
// the REST and WebSocket API, the Redis-backed job dispatcher, and the
// agent fleet that plans missions, finds and nurtures leads, produces
// content, and fulfills closed deals.
//
// Usage:
//
//	./server
//
// Environment Variables:
//
//	PORT - HTTP server port (default: 8000)
//	DATABASE_URL - PostgreSQL connection string
//	REDIS_URL - Redis connection URL (default: redis://localhost:6379/0)
//	MONGO_URI - MongoDB URI for the conversation memory bank (optional)
//	OPENAI_API_KEY - OpenAI API key (optional)
//	ANTHROPIC_API_KEY - Anthropic API key (optional)
//	BEDROCK_REGION - AWS Bedrock region (optional)
//	ARTIFACTS_DIR - local deliverables directory (default: data/deliverables)
//	ARTIFACTS_BUCKET - S3 bucket for deliverables (optional)
//	WORKERS - dispatcher worker pool size (default: 4)
//	CONFIG_FILE - YAML file overriding any of the above (optional)
package main

import (
	"chimera/platform/server"
)

func main() {
	server.Run()
}
