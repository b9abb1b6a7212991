package credstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// fileCache mirrors the on-disk layout: {"token": {...}}.
type fileCache struct {
	Token fileToken `json:"token"`
}

type fileToken struct {
	AccessToken string `json:"access_token"`
	ExpiresAt   string `json:"expires_at"`
	IssuedAt    string `json:"issued_at"`
}

// FileStore caches the token in a local single-record JSON file.
// 공유 저장소 장애 시 오프라인 폴백용.
type FileStore struct {
	path string
}

// NewFileStore creates a file-backed token cache at path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// LoadToken reads and parses the cache file.
func (s *FileStore) LoadToken(_ context.Context) (TokenRecord, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return TokenRecord{}, ErrTokenNotFound
		}
		return TokenRecord{}, fmt.Errorf("read token cache: %w", err)
	}

	var cache fileCache
	if err := json.Unmarshal(data, &cache); err != nil {
		return TokenRecord{}, fmt.Errorf("parse token cache: %w", err)
	}
	if cache.Token.AccessToken == "" {
		return TokenRecord{}, ErrTokenNotFound
	}

	issuedAt, err := ParseTokenTime(cache.Token.IssuedAt)
	if err != nil {
		return TokenRecord{}, err
	}
	expiresAt, err := ParseTokenTime(cache.Token.ExpiresAt)
	if err != nil {
		return TokenRecord{}, err
	}

	return TokenRecord{
		AccessToken: cache.Token.AccessToken,
		IssuedAt:    issuedAt,
		ExpiresAt:   expiresAt,
	}, nil
}

// SaveToken writes the record atomically (temp file + rename).
func (s *FileStore) SaveToken(_ context.Context, rec TokenRecord) error {
	cache := fileCache{
		Token: fileToken{
			AccessToken: rec.AccessToken,
			ExpiresAt:   FormatTokenTime(rec.ExpiresAt),
			IssuedAt:    FormatTokenTime(rec.IssuedAt),
		},
	}

	data, err := json.MarshalIndent(cache, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal token cache: %w", err)
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, ".kis_token_*.tmp")
	if err != nil {
		return fmt.Errorf("create temp token cache: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write token cache: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close token cache: %w", err)
	}

	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace token cache: %w", err)
	}

	return nil
}
