package export

import (
	"context"
	"database/sql"
	_ "embed"
	"os"
	"path/filepath"
	"time"

	"sjsage522/inventoryscraper/internal/inventory"
	"sjsage522/inventoryscraper/logger"
	"sjsage522/inventoryscraper/pkg/errors"

	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schema string

// Store keeps a snapshot of every scrape run in SQLite
type Store struct {
	db  *sql.DB
	log *logger.Logger
}

// OpenStore opens (or creates) the database at path and applies the schema.
// ":memory:" opens a private in-memory database.
func OpenStore(path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, errors.NewExport(path, "failed to create database directory", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.NewExport(path, "failed to open database", err)
	}
	// one connection keeps an in-memory database alive and serializes writers
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, errors.NewExport(path, "failed to apply schema", err)
	}

	return &Store{db: db, log: logger.ForExport().WithField("db", path)}, nil
}

// SaveRun records one run and its vehicles in a single transaction. Every
// call is a new run, even when two share a timestamp.
func (s *Store) SaveRun(ctx context.Context, source string, scrapedAt time.Time, vehicles []inventory.Vehicle) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.NewExport("sqlite", "failed to begin transaction", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `insert into runs (scraped_at, source) values (?, ?)`,
		scrapedAt.UnixNano(), source)
	if err != nil {
		return errors.NewExport("sqlite", "failed to insert run", err)
	}
	runID, err := res.LastInsertId()
	if err != nil {
		return errors.NewExport("sqlite", "failed to read run id", err)
	}

	stmt, err := tx.PrepareContext(ctx, `insert into vehicles (
		run_id, make_name, year, model, sub_model, trim,
		mileage, value, sale_value, stock_number, engine
	) values (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return errors.NewExport("sqlite", "failed to prepare insert", err)
	}
	defer stmt.Close()

	for _, v := range vehicles {
		_, err := stmt.ExecContext(ctx, runID,
			v.Make, v.Year, v.Model, v.SubModel, v.Trim,
			v.Mileage, v.Price, v.SalePrice, v.StockNumber, v.Engine)
		if err != nil {
			return errors.NewExport("sqlite", "failed to insert vehicle", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return errors.NewExport("sqlite", "failed to commit run", err)
	}

	s.log.Info().Int64("run", runID).Int("vehicles", len(vehicles)).Msg("Saved run snapshot")
	return nil
}

// Latest returns the vehicles of the most recently saved run
func (s *Store) Latest(ctx context.Context) ([]inventory.Vehicle, time.Time, error) {
	var (
		runID int64
		ts    int64
	)
	err := s.db.QueryRowContext(ctx, `select id, scraped_at from runs order by id desc limit 1`).Scan(&runID, &ts)
	if err == sql.ErrNoRows {
		return nil, time.Time{}, nil
	}
	if err != nil {
		return nil, time.Time{}, errors.NewExport("sqlite", "failed to find latest run", err)
	}

	rows, err := s.db.QueryContext(ctx, `select
		make_name, year, model, sub_model, trim, mileage, value, sale_value, stock_number, engine
		from vehicles where run_id = ? order by id`, runID)
	if err != nil {
		return nil, time.Time{}, errors.NewExport("sqlite", "failed to query latest run", err)
	}
	defer rows.Close()

	var vehicles []inventory.Vehicle
	for rows.Next() {
		var v inventory.Vehicle
		if err := rows.Scan(&v.Make, &v.Year, &v.Model, &v.SubModel, &v.Trim,
			&v.Mileage, &v.Price, &v.SalePrice, &v.StockNumber, &v.Engine); err != nil {
			return nil, time.Time{}, errors.NewExport("sqlite", "failed to scan vehicle", err)
		}
		vehicles = append(vehicles, v)
	}
	if err := rows.Err(); err != nil {
		return nil, time.Time{}, errors.NewExport("sqlite", "failed to read latest run", err)
	}
	return vehicles, time.Unix(0, ts), nil
}

// Close closes the database
func (s *Store) Close() error {
	return s.db.Close()
}
