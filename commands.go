package main

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"sjsage522/inventoryscraper/api"
	"sjsage522/inventoryscraper/config"
	"sjsage522/inventoryscraper/internal/inventory"
	"sjsage522/inventoryscraper/logger"
	"sjsage522/inventoryscraper/services/worker"

	"github.com/spf13/cobra"
)

var errNoVehicles = stderrors.New("no vehicles found")

var (
	inventoryURL  string
	outputPath    string
	maxPages      int
	debugHTMLPath string
)

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "inventoryscraper",
		Short: "Scrape a dealer's used-vehicle inventory into CSV",
		Long: `inventoryscraper fetches the paged used-inventory listing of a car dealer,
extracts vehicle records (make, model, year, trim, mileage, prices, stock number,
engine), removes duplicates and writes them to a CSV file.

Without a subcommand it runs a single scrape.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runScrape,
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&inventoryURL, "url", "u", "", "inventory listing URL (overrides INVENTORY_URL)")
	flags.StringVarP(&outputPath, "output", "o", "", "CSV output path (overrides OUTPUT_PATH)")
	flags.IntVarP(&maxPages, "pages", "p", 0, "maximum pages to fetch (overrides MAX_PAGES)")
	flags.StringVar(&debugHTMLPath, "debug-html", "", "write page 1 HTML to this path (overrides DEBUG_HTML_PATH)")

	rootCmd.AddCommand(scrapeCmd())
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(watchCmd())

	return rootCmd
}

func scrapeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "scrape",
		Short: "Run one scrape and write the CSV",
		Args:  cobra.NoArgs,
		RunE:  runScrape,
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the scrape as JSON at /api/scrape",
		Args:  cobra.NoArgs,
		RunE:  runServe,
	}
}

func watchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Scrape every CRAWL_INTERVAL_SECONDS until interrupted",
		Args:  cobra.NoArgs,
		RunE:  runWatch,
	}
}

// loadConfig reads the environment and applies the command-line overrides
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.LoadConfig()

	flags := cmd.Flags()
	if flags.Changed("url") {
		cfg.InventoryURL = inventoryURL
	}
	if flags.Changed("output") {
		cfg.OutputPath = outputPath
	}
	if flags.Changed("pages") {
		cfg.MaxPages = maxPages
	}
	if flags.Changed("debug-html") {
		cfg.DebugHTMLPath = debugHTMLPath
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func reportTitle(inventoryURL string) string {
	if u, err := url.Parse(inventoryURL); err == nil && u.Host != "" {
		return strings.ToUpper(strings.TrimPrefix(u.Host, "www.")) + " USED INVENTORY"
	}
	return "USED INVENTORY"
}

// setup builds the worker for cfg. The returned services must be cleaned up.
func setup(ctx context.Context, cfg *config.Config) (*worker.Worker, *inventory.Scraper, *Services, error) {
	services, err := initializeServices(ctx, cfg)
	if err != nil {
		return nil, nil, nil, err
	}

	scraper, err := inventory.NewFromConfig(cfg, services.Cache)
	if err != nil {
		services.Cleanup()
		return nil, nil, nil, err
	}

	sinks := worker.Sinks{
		Source:      cfg.InventoryURL,
		CSVPath:     cfg.OutputPath,
		Publisher:   services.Publisher,
		Report:      os.Stdout,
		ReportTitle: reportTitle(cfg.InventoryURL),
	}
	// a nil *export.Store must not become a non-nil interface
	if services.Store != nil {
		sinks.Store = services.Store
	}

	w := worker.NewWorker(ctx, scraper, sinks, cfg.CrawlInterval, cfg.IsProduction())
	return w, scraper, services, nil
}

func runScrape(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	w, _, services, err := setup(ctx, cfg)
	if err != nil {
		return err
	}
	defer services.Cleanup()

	res, err := w.RunOnce(ctx)
	if err != nil {
		return err
	}
	if len(res.Vehicles) == 0 {
		fmt.Println("\nNo CSV created")
		return errNoVehicles
	}

	fmt.Printf("\nCSV created: %s\n", cfg.OutputPath)
	if cfg.DebugHTMLPath != "" {
		fmt.Printf("Page 1 HTML saved to %s\n", cfg.DebugHTMLPath)
	}
	return nil
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	log := logger.ForHandler()

	ctx := cmd.Context()
	_, scraper, services, err := setup(ctx, cfg)
	if err != nil {
		return err
	}
	defer services.Cleanup()

	mux := http.NewServeMux()
	mux.Handle("/api/scrape", api.NewHandler(scraper.Scrape))

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.ListenAddr).Msg("Listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		log.Info().Msg("Shutting down gracefully...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func runWatch(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	log := logger.ForWorker()

	ctx := cmd.Context()
	w, _, services, err := setup(ctx, cfg)
	if err != nil {
		return err
	}
	defer services.Cleanup()

	log.Info().
		Str("environment", cfg.Environment).
		Str("url", cfg.InventoryURL).
		Dur("crawl_interval", cfg.CrawlInterval).
		Msg("Starting inventory worker")

	if err := w.Start(); err != nil {
		return err
	}
	log.Info().Msg("Worker stopped")
	return nil
}
