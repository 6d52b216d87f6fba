package export

import (
	"encoding/csv"
	"os"
	"path/filepath"

	"sjsage522/inventoryscraper/internal/inventory"
	"sjsage522/inventoryscraper/logger"
	"sjsage522/inventoryscraper/pkg/errors"
)

// WriteCSV writes the vehicles to path with a header row, creating parent
// directories. It writes nothing and returns false when there are no
// vehicles; a file left by an earlier run is removed in that case.
func WriteCSV(path string, vehicles []inventory.Vehicle) (bool, error) {
	log := logger.ForExport().WithField("path", path)

	if len(vehicles) == 0 {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return false, errors.NewExport(path, "failed to remove stale CSV", err)
		} else if err == nil {
			log.Info().Msg("No vehicles, removed stale CSV")
		}
		return false, nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return false, errors.NewExport(path, "failed to create output directory", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return false, errors.NewExport(path, "failed to create CSV", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(inventory.CSVHeader); err != nil {
		return false, errors.NewExport(path, "failed to write CSV header", err)
	}
	for _, v := range vehicles {
		if err := w.Write(v.Record()); err != nil {
			return false, errors.NewExport(path, "failed to write CSV row", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return false, errors.NewExport(path, "failed to flush CSV", err)
	}
	if err := f.Close(); err != nil {
		return false, errors.NewExport(path, "failed to close CSV", err)
	}

	log.Info().Int("vehicles", len(vehicles)).Msg("CSV saved")
	return true, nil
}
