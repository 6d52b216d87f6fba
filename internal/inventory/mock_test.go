package inventory

import (
	"context"
	"io"
	"strings"
	"time"

	"sjsage522/inventoryscraper/pkg/errors"
)

// MockCacheService implements a simple in-memory cache for testing
type MockCacheService struct {
	cache map[string][]byte
}

func NewMockCacheService() *MockCacheService {
	return &MockCacheService{
		cache: make(map[string][]byte),
	}
}

func (m *MockCacheService) Get(key string) ([]byte, error) {
	if val, ok := m.cache[key]; ok {
		return val, nil
	}
	return nil, &mockError{message: "cache miss"}
}

func (m *MockCacheService) Set(key string, value []byte, expiration time.Duration) error {
	m.cache[key] = value
	return nil
}

func (m *MockCacheService) Delete(key string) error {
	delete(m.cache, key)
	return nil
}

type mockError struct {
	message string
}

func (e *mockError) Error() string {
	return e.message
}

// mockFetcher serves canned pages keyed by URL; unknown URLs are 404
type mockFetcher struct {
	pages  map[string]string
	errs   map[string]error
	called []string
}

func (f *mockFetcher) Fetch(ctx context.Context, url string) (io.Reader, error) {
	f.called = append(f.called, url)
	if err, ok := f.errs[url]; ok {
		return nil, err
	}
	if body, ok := f.pages[url]; ok {
		return strings.NewReader(body), nil
	}
	return nil, errors.NewNotFound(url)
}
