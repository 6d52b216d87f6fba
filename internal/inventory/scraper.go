package inventory

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"sjsage522/inventoryscraper/config"
	"sjsage522/inventoryscraper/helpers"
	"sjsage522/inventoryscraper/logger"
	"sjsage522/inventoryscraper/pkg/errors"
	"sjsage522/inventoryscraper/services/cache"

	"golang.org/x/time/rate"
)

var noResultsMarkers = []string{"no vehicles found", "no results"}

// Fetcher retrieves a page body as UTF-8
type Fetcher interface {
	Fetch(ctx context.Context, url string) (io.Reader, error)
}

// Options configures a Scraper
type Options struct {
	URL           string
	MaxPages      int
	PageDelay     time.Duration
	DebugHTMLPath string
	Tables        *Tables
	Fetcher       Fetcher
	CacheSvc      cache.CacheService
	BlockTime     time.Duration
}

// Scraper walks the paged inventory listing of one dealer
type Scraper struct {
	URL           string
	CacheKey      string
	CacheSvc      cache.CacheService
	BlockTime     time.Duration
	MaxPages      int
	DebugHTMLPath string

	extractor *Extractor
	fetcher   Fetcher
	limiter   *rate.Limiter
	log       *logger.Logger
}

// Result is the outcome of one scrape run
type Result struct {
	Vehicles   []Vehicle
	Pages      int
	Found      int
	Duplicates int
	// FetchErr is the error that ended pagination early, if any
	FetchErr   error
	StartedAt  time.Time
	FinishedAt time.Time
}

// SaleCount returns how many vehicles carry a sale price
func (r *Result) SaleCount() int {
	n := 0
	for _, v := range r.Vehicles {
		if v.SalePrice != "" {
			n++
		}
	}
	return n
}

// New creates a scraper from options
func New(opts Options) *Scraper {
	if opts.MaxPages < 1 {
		opts.MaxPages = 1
	}
	if opts.Fetcher == nil {
		opts.Fetcher = helpers.NewPageFetcher(helpers.FetchOptions{})
	}

	limit := rate.Inf
	if opts.PageDelay > 0 {
		limit = rate.Every(opts.PageDelay)
	}

	s := &Scraper{
		URL:           opts.URL,
		CacheSvc:      opts.CacheSvc,
		BlockTime:     opts.BlockTime,
		MaxPages:      opts.MaxPages,
		DebugHTMLPath: opts.DebugHTMLPath,
		extractor:     NewExtractor(opts.Tables),
		fetcher:       opts.Fetcher,
		limiter:       rate.NewLimiter(limit, 1),
		log:           logger.ForScraper(opts.URL),
	}
	if u, err := url.Parse(opts.URL); err == nil && u.Host != "" {
		s.CacheKey = "inventory:blocked:" + u.Host
	}
	return s
}

// NewFromConfig wires a scraper with the page fetcher and tables named by cfg
func NewFromConfig(cfg *config.Config, cacheSvc cache.CacheService) (*Scraper, error) {
	tables, err := LoadTables(cfg.TablesPath)
	if err != nil {
		return nil, err
	}

	fetcher := helpers.NewPageFetcher(helpers.FetchOptions{
		Timeout:  cfg.RequestTimeout,
		Attempts: cfg.FetchAttempts,
	})

	return New(Options{
		URL:           cfg.InventoryURL,
		MaxPages:      cfg.MaxPages,
		PageDelay:     cfg.PageDelay,
		DebugHTMLPath: cfg.DebugHTMLPath,
		Tables:        tables,
		Fetcher:       fetcher,
		CacheSvc:      cacheSvc,
		BlockTime:     cfg.BlockTime,
	}), nil
}

// PageURL returns the listing URL for page n
func PageURL(base string, n int) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", errors.NewValidation(base, fmt.Sprintf("invalid inventory URL: %v", err))
	}
	if u.Path != "/" {
		u.Path = strings.TrimRight(u.Path, "/")
	}
	q := u.Query()
	q.Set("page", strconv.Itoa(n))
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// fetchWithCache fetches a URL unless the dealer is in a rate-limit block,
// and starts a block when the dealer rate limits us.
func (s *Scraper) fetchWithCache(ctx context.Context, pageURL string) (io.Reader, error) {
	if s.CacheSvc != nil && s.CacheKey != "" {
		if _, err := s.CacheSvc.Get(s.CacheKey); err == nil {
			return nil, errors.NewRateLimit(s.URL, s.BlockTime)
		}
	}

	body, err := s.fetcher.Fetch(ctx, pageURL)
	if err != nil {
		if s.CacheSvc != nil && s.CacheKey != "" && errors.Is(err, errors.ErrorTypeRateLimit) {
			seconds := strconv.Itoa(int(s.BlockTime / time.Second))
			if cacheErr := s.CacheSvc.Set(s.CacheKey, []byte(seconds), s.BlockTime); cacheErr != nil {
				s.log.Warn().Err(cacheErr).Msg("Failed to store rate-limit block")
			}
		}
		return nil, err
	}
	return body, nil
}

// FetchPages fetches listing pages until one is empty, missing or fails.
// The pages fetched before an error are returned along with it.
func (s *Scraper) FetchPages(ctx context.Context) ([]Page, error) {
	var pages []Page

	for n := 1; n <= s.MaxPages; n++ {
		if err := s.limiter.Wait(ctx); err != nil {
			return pages, err
		}

		pageURL, err := PageURL(s.URL, n)
		if err != nil {
			return pages, err
		}

		s.log.Info().Int("page", n).Str("url", pageURL).Msg("Fetching page")

		reader, err := s.fetchWithCache(ctx, pageURL)
		if err != nil {
			if errors.Is(err, errors.ErrorTypeNotFound) {
				s.log.Info().Int("page", n).Msg("Page returned 404, stopping")
				break
			}
			s.log.Error().Err(err).Int("page", n).Msg("Failed to fetch page")
			return pages, err
		}

		body, err := io.ReadAll(reader)
		if err != nil {
			err = errors.NewNetwork(pageURL, "failed to read page body", err)
			s.log.Error().Err(err).Int("page", n).Msg("Failed to read page")
			return pages, err
		}

		doc, err := ParseHTML(body)
		if err != nil {
			s.log.Error().Err(err).Int("page", n).Msg("Failed to parse page")
			return pages, err
		}

		if n == 1 && s.DebugHTMLPath != "" {
			s.writeDebugHTML(body)
		}

		text := strings.ToLower(Text(doc.Selection))
		if !yearPattern.MatchString(text) || containsAny(text, noResultsMarkers) {
			s.log.Info().Int("page", n).Msg("Page has no vehicles, stopping")
			break
		}

		pages = append(pages, Page{Number: n, Doc: doc})
	}

	s.log.Info().Int("pages", len(pages)).Msg("Fetched pages")
	return pages, nil
}

func (s *Scraper) writeDebugHTML(body []byte) {
	if dir := filepath.Dir(s.DebugHTMLPath); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			s.log.Warn().Err(err).Msg("Failed to create debug HTML directory")
			return
		}
	}
	if err := os.WriteFile(s.DebugHTMLPath, body, 0o644); err != nil {
		s.log.Warn().Err(err).Str("path", s.DebugHTMLPath).Msg("Failed to write debug HTML")
		return
	}
	s.log.Info().Str("path", s.DebugHTMLPath).Msg("Saved page 1 HTML")
}

// Scrape fetches every page, extracts and deduplicates the vehicles.
// Fetch failures end pagination and are reported on the result; only a
// cancelled context is returned as an error.
func (s *Scraper) Scrape(ctx context.Context) (*Result, error) {
	res := &Result{StartedAt: time.Now()}

	pages, err := s.FetchPages(ctx)
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}
	res.FetchErr = err
	res.Pages = len(pages)

	var all []Vehicle
	for _, p := range pages {
		vehicles := s.extractor.FindVehicles(p.Doc)
		s.log.Info().Int("page", p.Number).Int("vehicles", len(vehicles)).Msg("Processed page")
		all = append(all, vehicles...)
	}

	res.Found = len(all)
	res.Vehicles = Dedupe(all)
	res.Duplicates = res.Found - len(res.Vehicles)
	res.FinishedAt = time.Now()

	coverage := 0.0
	if len(res.Vehicles) > 0 {
		coverage = 100 * float64(res.SaleCount()) / float64(len(res.Vehicles))
	}
	s.log.Info().
		Int("vehicles", len(res.Vehicles)).
		Int("duplicates", res.Duplicates).
		Int("with_sale_price", res.SaleCount()).
		Str("sale_coverage", fmt.Sprintf("%.1f%%", coverage)).
		Dur("duration", res.FinishedAt.Sub(res.StartedAt)).
		Msg("Scrape complete")

	return res, nil
}

func containsAny(text string, markers []string) bool {
	for _, m := range markers {
		if strings.Contains(text, m) {
			return true
		}
	}
	return false
}
