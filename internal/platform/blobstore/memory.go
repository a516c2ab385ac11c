package blobstore

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"
)

type memoryBlob struct {
	data        []byte
	contentType string
}

// MemoryStore is a thread-safe in-memory Store for tests and local runs.
type MemoryStore struct {
	mu    sync.RWMutex
	blobs map[string]memoryBlob
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{blobs: make(map[string]memoryBlob)}
}

func (s *MemoryStore) Driver() Driver { return DriverMemory }

func (s *MemoryStore) Put(_ context.Context, key string, r io.Reader, contentType string) (Info, error) {
	k, err := cleanKey(key)
	if err != nil {
		return Info{}, err
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return Info{}, fmt.Errorf("read blob content: %w", err)
	}

	s.mu.Lock()
	s.blobs[k] = memoryBlob{data: data, contentType: contentType}
	s.mu.Unlock()

	return Info{Key: k, Size: int64(len(data)), ContentType: contentType}, nil
}

func (s *MemoryStore) Get(_ context.Context, key string) (io.ReadCloser, Info, error) {
	k, err := cleanKey(key)
	if err != nil {
		return nil, Info{}, err
	}
	s.mu.RLock()
	b, ok := s.blobs[k]
	s.mu.RUnlock()
	if !ok {
		return nil, Info{}, ErrBlobNotFound
	}
	return io.NopCloser(bytes.NewReader(b.data)), Info{Key: k, Size: int64(len(b.data)), ContentType: b.contentType}, nil
}

func (s *MemoryStore) Delete(_ context.Context, key string) error {
	k, err := cleanKey(key)
	if err != nil {
		return err
	}
	s.mu.Lock()
	delete(s.blobs, k)
	s.mu.Unlock()
	return nil
}

// Len reports how many blobs are stored.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.blobs)
}
