// Package journal keeps an append-only sqlite audit trail of accepted
// bookings. Entries are tagged with a per-process run id and are never read
// back into the ledger.
package journal

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"receptionist/internal/events"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
)

// Entry is one journaled booking.
type Entry struct {
	RunID       string
	BookingID   string
	PatientName string
	Branch      string
	Day         string
	Date        string
	Slot        string
	CreatedAt   time.Time
}

// DB wraps sql.DB for the booking journal.
type DB struct {
	*sql.DB
	runID  string
	logger zerolog.Logger
}

// Open opens the journal at path and runs migrations.
func Open(path string, logger *zerolog.Logger) (*DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	// sqlite allows a single writer; serialize through one connection.
	db.SetMaxOpenConns(1)

	if err := createTables(db); err != nil {
		db.Close()
		return nil, err
	}

	l := zerolog.Nop()
	if logger != nil {
		l = logger.With().Str("component", "journal").Logger()
	}
	return &DB{DB: db, runID: uuid.New().String(), logger: l}, nil
}

func createTables(db *sql.DB) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS bookings (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id TEXT NOT NULL,
			booking_id TEXT NOT NULL,
			patient_name TEXT NOT NULL,
			branch TEXT NOT NULL,
			day TEXT NOT NULL,
			date TEXT NOT NULL,
			slot TEXT NOT NULL,
			created_at DATETIME NOT NULL
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_bookings_run_key ON bookings(run_id, branch, day, slot)`,
		`CREATE INDEX IF NOT EXISTS idx_bookings_created ON bookings(created_at)`,
	}

	for _, q := range queries {
		if _, err := db.Exec(q); err != nil {
			return fmt.Errorf("exec migration %s: %w", trimSQL(q), err)
		}
	}
	return nil
}

func trimSQL(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > 60 {
		return s[:60] + "..."
	}
	return s
}

// RunID identifies the current process in the journal.
func (db *DB) RunID() string {
	return db.runID
}

// Record appends a booking to the journal.
func (db *DB) Record(ctx context.Context, b events.BookingCreated) error {
	_, err := db.ExecContext(ctx,
		`INSERT INTO bookings (run_id, booking_id, patient_name, branch, day, date, slot, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		db.runID, b.BookingID, b.PatientName, b.Branch, b.Day, b.Date, b.Slot, b.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("journal booking %s: %w", b.BookingID, err)
	}
	return nil
}

// Handle is an events.EventHandler journaling booking.created events.
func (db *DB) Handle(event events.Event) error {
	if event.Type != events.TypeBookingCreated {
		return nil
	}
	var payload events.BookingCreated
	if err := event.Decode(&payload); err != nil {
		return fmt.Errorf("decode %s: %w", event.Type, err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := db.Record(ctx, payload); err != nil {
		return err
	}
	db.logger.Debug().Str("booking_id", payload.BookingID).Msg("booking journaled")
	return nil
}

// ListRun returns the entries written by runID in insertion order.
func (db *DB) ListRun(ctx context.Context, runID string) ([]Entry, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT run_id, booking_id, patient_name, branch, day, date, slot, created_at
		 FROM bookings WHERE run_id = ? ORDER BY id`, runID)
	if err != nil {
		return nil, fmt.Errorf("list journal: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.RunID, &e.BookingID, &e.PatientName, &e.Branch, &e.Day, &e.Date, &e.Slot, &e.CreatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Backup writes a consistent copy of the journal to dest.
func (db *DB) Backup(dest string) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("create backup directory: %w", err)
	}
	if _, err := db.Exec("VACUUM INTO ?", dest); err != nil {
		return fmt.Errorf("backup journal: %w", err)
	}
	return nil
}

// CleanupBackups removes *.db files in dir older than retention and returns
// how many were deleted.
func (db *DB) CleanupBackups(dir string, retention time.Duration) (int, error) {
	files, err := os.ReadDir(dir)
	if err != nil {
		return 0, err
	}

	cutoff := time.Now().Add(-retention)
	deleted := 0
	for _, file := range files {
		if file.IsDir() || filepath.Ext(file.Name()) != ".db" {
			continue
		}
		info, err := file.Info()
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoff) {
			if err := os.Remove(filepath.Join(dir, file.Name())); err != nil {
				db.logger.Warn().Err(err).Str("file", file.Name()).Msg("failed to delete old backup")
				continue
			}
			deleted++
		}
	}
	return deleted, nil
}
