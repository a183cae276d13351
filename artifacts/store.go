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

// Package artifacts stores generated deliverables (reports, scripts,
// briefs) on local disk or in S3.
package artifacts

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// Store persists a named deliverable and returns its location.
type Store interface {
	Save(ctx context.Context, name string, data []byte) (string, error)
}

// LocalStore writes deliverables under a base directory.
type LocalStore struct {
	dir string
}

// NewLocalStore creates the base directory if needed.
func NewLocalStore(dir string) (*LocalStore, error) {
	if dir == "" {
		dir = "data/deliverables"
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create deliverables directory: %w", err)
	}
	return &LocalStore{dir: dir}, nil
}

// Save writes the deliverable and returns its path.
func (s *LocalStore) Save(_ context.Context, name string, data []byte) (string, error) {
	path := filepath.Join(s.dir, sanitizeName(name))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write deliverable: %w", err)
	}
	return path, nil
}

// PutObjectAPI is the subset of the S3 client used here.
type PutObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Store uploads deliverables to an S3 bucket.
type S3Store struct {
	client PutObjectAPI
	bucket string
	prefix string
}

// NewS3Store loads AWS config and returns an S3-backed store.
func NewS3Store(ctx context.Context, region, bucket, prefix string) (*S3Store, error) {
	if bucket == "" {
		return nil, fmt.Errorf("s3 bucket is required")
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config for S3: %w", err)
	}

	log.Printf("[Artifacts] Using S3 deliverable store (bucket: %s)", bucket)
	return &S3Store{
		client: s3.NewFromConfig(awsCfg),
		bucket: bucket,
		prefix: strings.Trim(prefix, "/"),
	}, nil
}

// NewS3StoreWithClient returns a store with an injected client.
func NewS3StoreWithClient(client PutObjectAPI, bucket, prefix string) *S3Store {
	return &S3Store{client: client, bucket: bucket, prefix: strings.Trim(prefix, "/")}
}

// Save uploads the deliverable and returns its s3:// URI.
func (s *S3Store) Save(ctx context.Context, name string, data []byte) (string, error) {
	key := sanitizeName(name)
	if s.prefix != "" {
		key = s.prefix + "/" + key
	}

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(data),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload deliverable: %w", err)
	}
	return fmt.Sprintf("s3://%s/%s", s.bucket, key), nil
}

// sanitizeName keeps deliverable names filesystem- and key-safe.
func sanitizeName(name string) string {
	name = strings.ReplaceAll(name, " ", "_")
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '.' || r == '_' || r == '-':
			return r
		default:
			return '_'
		}
	}, name)
}
