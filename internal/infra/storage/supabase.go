// Package storage archives captured audio in a Supabase storage bucket.
package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/supabase-community/supabase-go"
)

// ErrNotConfigured is returned when the bucket credentials are missing.
var ErrNotConfigured = errors.New("missing Supabase configuration: SUPABASE_URL and SUPABASE_SERVICE_ROLE_KEY required")

// Archive stores objects by key.
type Archive interface {
	Upload(ctx context.Context, key, contentType string, data []byte) error
}

type Config struct {
	URL            string
	ServiceRoleKey string
	Bucket         string
}

// SupabaseStorage uploads through the supabase-go storage client.
type SupabaseStorage struct {
	client *supabase.Client
	bucket string
}

func NewSupabaseStorage(cfg Config) (*SupabaseStorage, error) {
	if cfg.URL == "" || cfg.ServiceRoleKey == "" {
		return nil, ErrNotConfigured
	}
	client, err := supabase.NewClient(cfg.URL, cfg.ServiceRoleKey, &supabase.ClientOptions{})
	if err != nil {
		return nil, fmt.Errorf("create Supabase client: %w", err)
	}
	return &SupabaseStorage{client: client, bucket: cfg.Bucket}, nil
}

// Upload ignores ctx; the storage client has no context-aware calls.
func (s *SupabaseStorage) Upload(_ context.Context, key, _ string, data []byte) error {
	if _, err := s.client.Storage.UploadFile(s.bucket, key, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("failed to upload to Supabase: %w", err)
	}
	return nil
}
