package worker

import (
	"context"
	"encoding/json"
	"io"
	"time"

	"sjsage522/inventoryscraper/internal/inventory"
	"sjsage522/inventoryscraper/logger"
	"sjsage522/inventoryscraper/services/export"
	"sjsage522/inventoryscraper/services/publisher"
)

// Scraper runs one scrape of a dealer inventory
type Scraper interface {
	Scrape(ctx context.Context) (*inventory.Result, error)
}

// SnapshotStore persists the vehicles of a run
type SnapshotStore interface {
	SaveRun(ctx context.Context, source string, scrapedAt time.Time, vehicles []inventory.Vehicle) error
}

// Sinks are the outputs of a run. Only CSVPath is required.
type Sinks struct {
	Source    string
	CSVPath   string
	Store     SnapshotStore
	Publisher publisher.Publisher
	// Report receives the summary tables; nil skips the report
	Report      io.Writer
	ReportTitle string
}

// Worker handles the scrape and export process
type Worker struct {
	ctx           context.Context
	scraper       Scraper
	sinks         Sinks
	crawlInterval time.Duration
	production    bool
	log           *logger.Logger
}

// NewWorker creates a new worker
func NewWorker(
	ctx context.Context,
	scraper Scraper,
	sinks Sinks,
	crawlInterval time.Duration,
	production bool,
) *Worker {
	return &Worker{
		ctx:           ctx,
		scraper:       scraper,
		sinks:         sinks,
		crawlInterval: crawlInterval,
		production:    production,
		log:           logger.ForWorker(),
	}
}

// Start runs the worker every crawl interval until the context is cancelled
func (w *Worker) Start() error {
	for {
		start := time.Now()
		if _, err := w.RunOnce(w.ctx); err != nil {
			if w.ctx.Err() != nil {
				return nil
			}
			w.log.Error().Err(err).Msg("Run failed")
		}
		w.log.Info().Dur("elapsed", time.Since(start)).Dur("next_in", w.crawlInterval).Msg("Run finished")

		select {
		case <-w.ctx.Done():
			return nil
		case <-time.After(w.crawlInterval):
		}
	}
}

// RunOnce scrapes the inventory and writes the result to every sink.
// Only scrape and CSV failures are returned; the optional sinks log theirs.
func (w *Worker) RunOnce(ctx context.Context) (*inventory.Result, error) {
	res, err := w.scraper.Scrape(ctx)
	if err != nil {
		return nil, err
	}
	if res.FetchErr != nil {
		w.log.Warn().Err(res.FetchErr).Int("pages", res.Pages).Msg("Pagination ended early")
	}

	if _, err := export.WriteCSV(w.sinks.CSVPath, res.Vehicles); err != nil {
		return res, err
	}

	if w.sinks.Store != nil && len(res.Vehicles) > 0 {
		if err := w.sinks.Store.SaveRun(ctx, w.sinks.Source, res.StartedAt, res.Vehicles); err != nil {
			w.log.Error().Err(err).Msg("Failed to save snapshot")
		}
	}

	if w.sinks.Publisher != nil {
		w.publish(res.Vehicles)
	}

	if w.sinks.Report != nil {
		export.PrintReport(w.sinks.Report, w.sinks.ReportTitle, res)
	}

	return res, nil
}

// publish sends every vehicle to the stream and trims the streams afterwards
func (w *Worker) publish(vehicles []inventory.Vehicle) {
	published := 0
	for i, v := range vehicles {
		data, err := json.Marshal(v)
		if err != nil {
			w.log.Error().Err(err).Int("index", i).Msg("Failed to encode vehicle")
			continue
		}

		if err := w.sinks.Publisher.Publish(publisher.VehicleKey, data); err != nil {
			w.log.Error().Err(err).Str("stock_number", v.StockNumber).Msg("Failed to publish vehicle")
			continue
		}
		published++

		if i == 0 && !w.production {
			w.log.Debug().RawJSON("vehicle", data).Msg("First published vehicle")
		}
	}

	if err := w.sinks.Publisher.TrimStreams(); err != nil {
		w.log.Error().Err(err).Msg("Failed to trim streams")
	}
	w.log.Info().Int("published", published).Msg("Published vehicles")
}
