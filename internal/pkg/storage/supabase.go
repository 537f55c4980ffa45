package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"

	storage_go "github.com/supabase-community/storage-go"
)

// SupabaseBucketAPI 由 *storage_go.Client 实现
type SupabaseBucketAPI interface {
	UploadFile(bucketID, relativePath string, data io.Reader, fileOptions ...storage_go.FileOptions) (storage_go.FileUploadResponse, error)
	GetPublicUrl(bucketID, filePath string, urlOptions ...storage_go.UrlOptions) storage_go.SignedUrlResponse
}

// SupabaseStore Supabase Storage 后端，bucket 需设为 public
type SupabaseStore struct {
	api    SupabaseBucketAPI
	bucket string
}

func NewSupabaseStore(api SupabaseBucketAPI, bucket string) *SupabaseStore {
	return &SupabaseStore{api: api, bucket: bucket}
}

func (s *SupabaseStore) Put(_ context.Context, key string, data []byte, contentType string) (string, error) {
	upsert := true
	_, err := s.api.UploadFile(s.bucket, key, bytes.NewReader(data), storage_go.FileOptions{
		ContentType: &contentType,
		Upsert:      &upsert,
	})
	if err != nil {
		return "", fmt.Errorf("supabase upload %s: %w", key, err)
	}
	return s.api.GetPublicUrl(s.bucket, key).SignedURL, nil
}

func (s *SupabaseStore) Owns(rawURL string) bool {
	return underBase(rawURL, s.api.GetPublicUrl(s.bucket, "").SignedURL)
}
