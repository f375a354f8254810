package db

import (
	"database/sql"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

// ErrNotInitialized is returned by methods called on a nil *DB.
var ErrNotInitialized = errors.New("database not initialized")

// DB wraps a database connection
type DB struct {
	*sql.DB
}

// Flight is a catalog entry for an imported telemetry file.
type Flight struct {
	ID         int64
	Name       string
	File       string
	Rows       int
	Apogee     float64
	Duration   float64
	ImportedAt time.Time
}

// Simulation is one recorded simulator run.
type Simulation struct {
	ID           string
	PSIRequested float64
	PSIUsed      float64
	Height       float64
	HeightMin    float64
	HeightMax    float64
	CreatedAt    time.Time
}

// Open opens (creating if needed) the sqlite database at path.
func Open(path string) (*DB, error) {
	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Verify connection
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if err := initSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &DB{db}, nil
}

func initSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS flights (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL UNIQUE,
			file TEXT NOT NULL,
			rows INTEGER NOT NULL,
			apogee_m REAL,
			duration_s REAL,
			imported_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);

		CREATE TABLE IF NOT EXISTS simulations (
			id TEXT PRIMARY KEY,
			psi_requested REAL NOT NULL,
			psi_used REAL NOT NULL,
			height_m REAL NOT NULL,
			height_min REAL NOT NULL,
			height_max REAL NOT NULL,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);

		CREATE INDEX IF NOT EXISTS idx_simulations_created ON simulations(created_at);
	`)
	return err
}

// nullable stores NaN as NULL.
func nullable(v float64) sql.NullFloat64 {
	if math.IsNaN(v) {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: v, Valid: true}
}

func orNaN(v sql.NullFloat64) float64 {
	if !v.Valid {
		return math.NaN()
	}
	return v.Float64
}

// UpsertFlight records a flight, replacing the entry with the same name.
func (db *DB) UpsertFlight(f Flight) error {
	if db == nil {
		return ErrNotInitialized
	}
	_, err := db.Exec(`
		INSERT INTO flights (name, file, rows, apogee_m, duration_s, imported_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			file = excluded.file,
			rows = excluded.rows,
			apogee_m = excluded.apogee_m,
			duration_s = excluded.duration_s,
			imported_at = excluded.imported_at`,
		f.Name, f.File, f.Rows, nullable(f.Apogee), nullable(f.Duration), time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("upsert flight %q: %w", f.Name, err)
	}
	return nil
}

// ListFlights returns the catalog ordered by id.
func (db *DB) ListFlights() ([]Flight, error) {
	if db == nil {
		return nil, ErrNotInitialized
	}
	rows, err := db.Query(`SELECT id, name, file, rows, apogee_m, duration_s, imported_at FROM flights ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list flights: %w", err)
	}
	defer rows.Close()

	var flights []Flight
	for rows.Next() {
		var f Flight
		var apogee, duration sql.NullFloat64
		if err := rows.Scan(&f.ID, &f.Name, &f.File, &f.Rows, &apogee, &duration, &f.ImportedAt); err != nil {
			return nil, fmt.Errorf("scan flight: %w", err)
		}
		f.Apogee, f.Duration = orNaN(apogee), orNaN(duration)
		flights = append(flights, f)
	}
	return flights, rows.Err()
}

// SaveSimulation stores a run and returns its id. A new id is generated when
// s.ID is empty.
func (db *DB) SaveSimulation(s Simulation) (string, error) {
	if db == nil {
		return "", ErrNotInitialized
	}
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now().UTC()
	}
	_, err := db.Exec(`
		INSERT INTO simulations (id, psi_requested, psi_used, height_m, height_min, height_max, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		s.ID, s.PSIRequested, s.PSIUsed, s.Height, s.HeightMin, s.HeightMax, s.CreatedAt,
	)
	if err != nil {
		return "", fmt.Errorf("save simulation: %w", err)
	}
	return s.ID, nil
}

// RecentSimulations returns up to limit runs, newest first.
func (db *DB) RecentSimulations(limit int) ([]Simulation, error) {
	if db == nil {
		return nil, ErrNotInitialized
	}
	rows, err := db.Query(`
		SELECT id, psi_requested, psi_used, height_m, height_min, height_max, created_at
		FROM simulations ORDER BY created_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("recent simulations: %w", err)
	}
	defer rows.Close()

	var sims []Simulation
	for rows.Next() {
		var s Simulation
		if err := rows.Scan(&s.ID, &s.PSIRequested, &s.PSIUsed, &s.Height, &s.HeightMin, &s.HeightMax, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan simulation: %w", err)
		}
		sims = append(sims, s)
	}
	return sims, rows.Err()
}
