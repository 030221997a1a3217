// Package storage provides SQLite implementation of the Storage interface.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/hyperjump/rankpress/internal/models"
)

// SQLiteStorage implements Storage using SQLite.
type SQLiteStorage struct {
	db *sql.DB
}

// NewSQLiteStorage opens or creates a SQLite database at dbPath and initializes the schema.
// Parent directories are created if they do not exist.
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteStorage{db: db}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		image_path TEXT NOT NULL,
		image_id TEXT NOT NULL,
		width INTEGER NOT NULL,
		height INTEGER NOT NULL,
		ranks TEXT NOT NULL,
		report_path TEXT,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_runs_created_at ON runs(created_at);
	CREATE INDEX IF NOT EXISTS idx_runs_image_id ON runs(image_id);

	CREATE TABLE IF NOT EXISTS metric_records (
		run_id TEXT NOT NULL,
		position INTEGER NOT NULL,
		kind TEXT NOT NULL,
		rank INTEGER NOT NULL,
		compression_ratio REAL NOT NULL,
		psnr REAL,
		PRIMARY KEY (run_id, position),
		FOREIGN KEY (run_id) REFERENCES runs(id) ON DELETE CASCADE
	);
	`
	_, err := db.Exec(schema)
	return err
}

// CreateRun inserts a run and its metric records in one transaction.
// An infinite PSNR is stored as NULL.
func (s *SQLiteStorage) CreateRun(ctx context.Context, run *models.Run) error {
	ranksJSON, err := json.Marshal(run.Ranks)
	if err != nil {
		return fmt.Errorf("failed to marshal ranks: %w", err)
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO runs (id, image_path, image_id, width, height, ranks, report_path, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.ImagePath, run.ImageID, run.Width, run.Height, string(ranksJSON), run.ReportPath, run.CreatedAt,
	)
	if err != nil {
		return err
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO metric_records (run_id, position, kind, rank, compression_ratio, psnr)
		 VALUES (?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i, rec := range run.Records {
		psnr := sql.NullFloat64{Float64: rec.PSNR, Valid: !math.IsInf(rec.PSNR, 0)}
		if _, err := stmt.ExecContext(ctx, run.ID, i, string(rec.Kind), rec.Rank, rec.CompressionRatio, psnr); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// GetRun returns a run and its records by ID.
func (s *SQLiteStorage) GetRun(ctx context.Context, id string) (*models.Run, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, image_path, image_id, width, height, ranks, report_path, created_at
		 FROM runs WHERE id = ?`, id,
	)
	run, err := scanRun(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	if run.Records, err = s.records(ctx, run.ID); err != nil {
		return nil, err
	}
	return run, nil
}

// ListRuns returns runs, newest first, with offset and limit.
func (s *SQLiteStorage) ListRuns(ctx context.Context, offset, limit int) ([]*models.Run, error) {
	return s.queryRuns(ctx,
		`SELECT id, image_path, image_id, width, height, ranks, report_path, created_at
		 FROM runs ORDER BY created_at DESC LIMIT ? OFFSET ?`,
		limit, offset,
	)
}

// ListRunsByImage returns every run over the given image, newest first.
func (s *SQLiteStorage) ListRunsByImage(ctx context.Context, imageID string) ([]*models.Run, error) {
	return s.queryRuns(ctx,
		`SELECT id, image_path, image_id, width, height, ranks, report_path, created_at
		 FROM runs WHERE image_id = ? ORDER BY created_at DESC`,
		imageID,
	)
}

// DeleteRun removes a run and its records.
func (s *SQLiteStorage) DeleteRun(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM metric_records WHERE run_id = ?`, id); err != nil {
		return err
	}
	result, err := tx.ExecContext(ctx, `DELETE FROM runs WHERE id = ?`, id)
	if err != nil {
		return err
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return tx.Commit()
}

// CountRuns returns the total number of runs.
func (s *SQLiteStorage) CountRuns(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM runs`).Scan(&count)
	return count, err
}

// Close closes the database connection.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

func (s *SQLiteStorage) queryRuns(ctx context.Context, query string, args ...interface{}) ([]*models.Run, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	var runs []*models.Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			_ = rows.Close()
			return nil, err
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return nil, err
	}
	_ = rows.Close()

	// Records are loaded after the cursor is closed so a single connection suffices.
	for _, run := range runs {
		if run.Records, err = s.records(ctx, run.ID); err != nil {
			return nil, err
		}
	}
	return runs, nil
}

func (s *SQLiteStorage) records(ctx context.Context, runID string) ([]models.MetricRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT kind, rank, compression_ratio, psnr
		 FROM metric_records WHERE run_id = ? ORDER BY position`,
		runID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := []models.MetricRecord{}
	for rows.Next() {
		var rec models.MetricRecord
		var kind string
		var psnr sql.NullFloat64
		if err := rows.Scan(&kind, &rec.Rank, &rec.CompressionRatio, &psnr); err != nil {
			return nil, err
		}
		rec.Kind = models.Kind(kind)
		rec.PSNR = math.Inf(1)
		if psnr.Valid {
			rec.PSNR = psnr.Float64
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(row scanner) (*models.Run, error) {
	var run models.Run
	var ranksJSON string
	var reportPath sql.NullString
	if err := row.Scan(&run.ID, &run.ImagePath, &run.ImageID, &run.Width, &run.Height, &ranksJSON, &reportPath, &run.CreatedAt); err != nil {
		return nil, err
	}
	run.ReportPath = reportPath.String
	if err := json.Unmarshal([]byte(ranksJSON), &run.Ranks); err != nil {
		return nil, fmt.Errorf("failed to unmarshal ranks: %w", err)
	}
	return &run, nil
}
