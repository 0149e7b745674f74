// Package db opens the DuckDB database that query datasets read from.
package db

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	_ "github.com/marcboeker/go-duckdb"
)

// Extensions loaded into every connection so query datasets can read
// parquet files and emit GeoJSON with ST_AsGeoJSON.
var Extensions = []string{"spatial", "parquet"}

// Config holds database configuration.
type Config struct {
	DataDir string
	DBName  string
	Logger  *log.Logger
}

// Path returns the database file for cfg.
func (c Config) Path() string {
	return filepath.Join(c.DataDir, "duckdb", c.DBName+".duckdb")
}

// Open opens the DuckDB database under DataDir/duckdb and loads
// Extensions. Extensions that fail to load are logged; queries that need
// them fail on their own.
func Open(cfg Config) (*sql.DB, error) {
	if cfg.Logger == nil {
		cfg.Logger = log.Default()
	}

	path := cfg.Path()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create duckdb directory: %w", err)
	}

	conn, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, err
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}

	for _, ext := range Extensions {
		if _, err := conn.Exec(fmt.Sprintf("INSTALL %s; LOAD %s;", ext, ext)); err != nil {
			cfg.Logger.Warn("duckdb extension not loaded", "extension", ext, "err", err)
		}
	}
	return conn, nil
}
