package helpers

import (
	"bytes"
	"compress/flate"
	"compress/gzip"
	"compress/zlib"
	"context"
	"fmt"
	"io"
	"net/http"
	"slices"
	"time"

	"sjsage522/inventoryscraper/logger"
	"sjsage522/inventoryscraper/pkg/errors"

	"github.com/andybalholm/brotli"
	"github.com/go-resty/resty/v2"
	"golang.org/x/net/html/charset"
)

// Browser-like request headers
var browserHeaders = map[string]string{
	"User-Agent":                "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Accept":                    "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,*/*;q=0.8",
	"Accept-Language":           "en-US,en;q=0.9",
	"Accept-Encoding":           "gzip, deflate, br",
	"Cache-Control":             "max-age=0",
	"Upgrade-Insecure-Requests": "1",
	"Sec-Fetch-Dest":            "document",
	"Sec-Fetch-Mode":            "navigate",
	"Sec-Fetch-Site":            "none",
	"Sec-Fetch-User":            "?1",
}

// FetchOptions configures a PageFetcher
type FetchOptions struct {
	Timeout   time.Duration
	Attempts  int
	RetryWait time.Duration
}

// PageFetcher issues browser-like GET requests and returns UTF-8 page bodies
type PageFetcher struct {
	client *resty.Client
	log    *logger.Logger
}

// NewPageFetcher creates a fetcher with a bounded number of attempts per request
func NewPageFetcher(opts FetchOptions) *PageFetcher {
	if opts.Attempts < 1 {
		opts.Attempts = 1
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.RetryWait <= 0 {
		opts.RetryWait = time.Second
	}

	client := resty.New().
		SetTimeout(opts.Timeout).
		SetHeaders(browserHeaders).
		SetRetryCount(opts.Attempts - 1).
		SetRetryWaitTime(opts.RetryWait).
		SetRetryMaxWaitTime(opts.RetryWait * 4).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			if err != nil {
				return true
			}
			se := statusError(r.Request.URL, r)
			return se != nil && se.IsRetryable()
		})

	return &PageFetcher{
		client: client,
		log:    logger.ForFetcher(),
	}
}

// Fetch sends a GET request for url and returns the body converted to UTF-8.
// A 404 yields a not_found error, 429/430 a rate_limit error.
func (f *PageFetcher) Fetch(ctx context.Context, url string) (io.Reader, error) {
	resp, err := f.client.R().SetContext(ctx).Get(url)
	if err != nil {
		return nil, errors.NewNetwork("fetcher", fmt.Sprintf("failed to fetch %s", url), err)
	}

	f.log.Debug().
		Str("url", url).
		Int("status", resp.StatusCode()).
		Int("size", len(resp.Body())).
		Dur("duration", resp.Time()).
		Msg("fetch complete")

	if se := statusError(url, resp); se != nil {
		return nil, se
	}

	body, err := decompress(resp.Header().Get("Content-Encoding"), resp.Body())
	if err != nil {
		return nil, errors.NewParsing(url, "failed to decode response body", err)
	}

	return ToUTF8(body, resp.Header().Get("Content-Type"))
}

// statusError maps a non-200 response to its error type. Only network
// errors (5xx and other unexpected codes) are worth another attempt.
func statusError(url string, resp *resty.Response) *errors.ScrapeError {
	status := resp.StatusCode()
	switch {
	case status == http.StatusOK:
		return nil
	case status == http.StatusNotFound:
		return errors.NewNotFound(url)
	case slices.Contains([]int{http.StatusTooManyRequests, 430}, status):
		retryAfter := resp.Header().Get("Retry-After")
		return errors.New(errors.ErrorTypeRateLimit, url, fmt.Sprintf("rate limited; retry after %s", retryAfter), nil)
	case status >= http.StatusBadRequest && status < http.StatusInternalServerError:
		return errors.NewClient(url, status)
	default:
		return errors.NewNetwork(url, fmt.Sprintf("unexpected status code: %d", status), nil)
	}
}

// decompress handles the encodings net/http and resty leave untouched.
// gzip bodies are usually decoded by resty already; the magic bytes tell.
func decompress(encoding string, body []byte) ([]byte, error) {
	var reader io.Reader
	switch encoding {
	case "gzip":
		if len(body) < 2 || body[0] != 0x1f || body[1] != 0x8b {
			return body, nil
		}
		gr, err := gzip.NewReader(bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		defer gr.Close()
		reader = gr
	case "br":
		reader = brotli.NewReader(bytes.NewReader(body))
	case "deflate":
		// HTTP deflate is zlib-wrapped, but some servers send raw DEFLATE
		if zr, err := zlib.NewReader(bytes.NewReader(body)); err == nil {
			defer zr.Close()
			reader = zr
		} else {
			fr := flate.NewReader(bytes.NewReader(body))
			defer fr.Close()
			reader = fr
		}
	default:
		return body, nil
	}
	return io.ReadAll(reader)
}

// ToUTF8 determines the encoding from the Content-Type header and body content
// and converts the body to UTF-8 if needed.
func ToUTF8(body []byte, contentType string) (io.Reader, error) {
	encoding, name, _ := charset.DetermineEncoding(body, contentType)

	// If already UTF-8, return as is
	if name == "utf-8" || name == "UTF-8" {
		return bytes.NewReader(body), nil
	}

	utf8Reader := encoding.NewDecoder().Reader(bytes.NewReader(body))
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, utf8Reader); err != nil {
		return nil, fmt.Errorf("failed to read converted UTF-8 body: %w", err)
	}

	return &buf, nil
}
