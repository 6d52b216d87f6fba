package errors

import (
	stderrors "errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestScrapeErrorMessage(t *testing.T) {
	err := NewNetwork("fetcher", "request failed", stderrors.New("connection reset"))
	assert.Equal(t, "[network] fetcher: request failed - connection reset", err.Error())

	err = NewValidation("config", "missing url")
	assert.Equal(t, "[validation] config: missing url", err.Error())
}

func TestScrapeErrorUnwrap(t *testing.T) {
	cause := stderrors.New("disk full")
	err := NewExport("csv", "write failed", cause)
	assert.ErrorIs(t, err, cause)
}

func TestIs(t *testing.T) {
	wrapped := fmt.Errorf("page 3: %w", NewNotFound("fetcher"))
	assert.True(t, Is(wrapped, ErrorTypeNotFound))
	assert.False(t, Is(wrapped, ErrorTypeNetwork))
	assert.False(t, Is(stderrors.New("plain"), ErrorTypeNotFound))
	assert.False(t, Is(nil, ErrorTypeNotFound))
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, NewNetwork("fetcher", "timeout", nil).IsRetryable())
	assert.False(t, NewNotFound("fetcher").IsRetryable())
	assert.False(t, NewRateLimit("fetcher", time.Minute).IsRetryable())
	assert.False(t, NewParsing("parser", "bad html", nil).IsRetryable())
	assert.False(t, NewClient("fetcher", 403).IsRetryable())
	assert.False(t, NewExtraction("extractor", "panic", nil).IsRetryable())
}

func TestNewClient(t *testing.T) {
	err := NewClient("https://dealer.example/inventory", 403)
	assert.True(t, Is(err, ErrorTypeClient))
	assert.Equal(t, "[client] https://dealer.example/inventory: request rejected with status 403", err.Error())
}
