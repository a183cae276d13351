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
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "8000", cfg.Port)
	assert.Equal(t, "redis://localhost:6379/0", cfg.RedisURL)
	assert.Equal(t, "data/deliverables", cfg.ArtifactsDir)
	assert.Equal(t, 4, cfg.Workers)
}

func TestLoadConfigFromEnvironment(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("DATABASE_URL", "postgres://chimera:secret@db/chimera")
	t.Setenv("WORKERS", "8")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, "postgres://chimera:secret@db/chimera", cfg.DatabaseURL)
	assert.Equal(t, 8, cfg.Workers)
}

func TestLoadConfigRejectsBadWorkers(t *testing.T) {
	t.Setenv("WORKERS", "many")

	_, err := LoadConfig()
	assert.Error(t, err)
}

func TestLoadConfigFileOverridesEnvironment(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("REDIS_URL", "redis://env-host:6379/0")

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("port: \"7070\"\nworkers: 2\n"), 0o644))
	t.Setenv("CONFIG_FILE", path)

	cfg, err := LoadConfig()
	require.NoError(t, err)

	// File wins where set; environment survives where the file is silent.
	assert.Equal(t, "7070", cfg.Port)
	assert.Equal(t, 2, cfg.Workers)
	assert.Equal(t, "redis://env-host:6379/0", cfg.RedisURL)
}

func TestLoadConfigMissingFile(t *testing.T) {
	t.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "absent.yaml"))

	_, err := LoadConfig()
	assert.Error(t, err)
}
