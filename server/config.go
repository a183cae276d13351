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
	"fmt"
	"log"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config holds everything the server needs to start. Environment
// variables are read first; a YAML file named by CONFIG_FILE overrides
// any field it sets.
type Config struct {
	Port        string `yaml:"port"`
	DatabaseURL string `yaml:"database_url"`
	RedisURL    string `yaml:"redis_url"`
	MongoURI    string `yaml:"mongo_uri"`

	OpenAIKey     string `yaml:"openai_api_key"`
	AnthropicKey  string `yaml:"anthropic_api_key"`
	BedrockRegion string `yaml:"bedrock_region"`
	BedrockModel  string `yaml:"bedrock_model"`

	ArtifactsDir    string `yaml:"artifacts_dir"`
	ArtifactsBucket string `yaml:"artifacts_bucket"`

	Workers int `yaml:"workers"`
}

// LoadConfig builds the configuration from the environment plus an
// optional YAML override file.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Port:            getEnv("PORT", "8000"),
		DatabaseURL:     os.Getenv("DATABASE_URL"),
		RedisURL:        getEnv("REDIS_URL", "redis://localhost:6379/0"),
		MongoURI:        os.Getenv("MONGO_URI"),
		OpenAIKey:       os.Getenv("OPENAI_API_KEY"),
		AnthropicKey:    os.Getenv("ANTHROPIC_API_KEY"),
		BedrockRegion:   os.Getenv("BEDROCK_REGION"),
		BedrockModel:    os.Getenv("BEDROCK_MODEL"),
		ArtifactsDir:    getEnv("ARTIFACTS_DIR", "data/deliverables"),
		ArtifactsBucket: os.Getenv("ARTIFACTS_BUCKET"),
		Workers:         4,
	}
	if v := os.Getenv("WORKERS"); v != "" {
		workers, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("invalid WORKERS value %q: %w", v, err)
		}
		cfg.Workers = workers
	}

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.applyFile(path); err != nil {
			return nil, err
		}
		log.Printf("[Config] Applied overrides from %s", path)
	}
	return cfg, nil
}

// applyFile overlays YAML values on top of the environment config.
// Only fields present in the file are touched.
func (c *Config) applyFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	var overlay Config
	if err := yaml.Unmarshal(data, &overlay); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	if overlay.Port != "" {
		c.Port = overlay.Port
	}
	if overlay.DatabaseURL != "" {
		c.DatabaseURL = overlay.DatabaseURL
	}
	if overlay.RedisURL != "" {
		c.RedisURL = overlay.RedisURL
	}
	if overlay.MongoURI != "" {
		c.MongoURI = overlay.MongoURI
	}
	if overlay.OpenAIKey != "" {
		c.OpenAIKey = overlay.OpenAIKey
	}
	if overlay.AnthropicKey != "" {
		c.AnthropicKey = overlay.AnthropicKey
	}
	if overlay.BedrockRegion != "" {
		c.BedrockRegion = overlay.BedrockRegion
	}
	if overlay.BedrockModel != "" {
		c.BedrockModel = overlay.BedrockModel
	}
	if overlay.ArtifactsDir != "" {
		c.ArtifactsDir = overlay.ArtifactsDir
	}
	if overlay.ArtifactsBucket != "" {
		c.ArtifactsBucket = overlay.ArtifactsBucket
	}
	if overlay.Workers != 0 {
		c.Workers = overlay.Workers
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
