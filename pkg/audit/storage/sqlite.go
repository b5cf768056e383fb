// Package storage provides persistence backends for the decision audit log.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"modex-hq/aegis/pkg/audit"
	"modex-hq/aegis/pkg/config"
	"modex-hq/aegis/pkg/ensemble"
)

// SQLiteStorage implements audit.Storage using SQLite.
type SQLiteStorage struct {
	db     *sql.DB
	cfg    config.SQLiteConfig
	logger *slog.Logger
}

// NewSQLiteStorage opens (creating if necessary) the decisions database and
// initializes the schema.
func NewSQLiteStorage(cfg config.SQLiteConfig) (*SQLiteStorage, error) {
	logger := slog.Default().With("component", "audit.storage.sqlite")

	if dir := filepath.Dir(cfg.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, audit.NewStorageError("sqlite", "mkdir", err)
		}
	}

	db, err := sql.Open("sqlite3", cfg.Path)
	if err != nil {
		return nil, audit.NewStorageError("sqlite", "open", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)

	s := &SQLiteStorage{
		db:     db,
		cfg:    cfg,
		logger: logger,
	}

	if err := s.initialize(); err != nil {
		db.Close()
		return nil, err
	}

	logger.Info("SQLite audit storage initialized",
		"path", cfg.Path,
		"wal_mode", cfg.WALMode,
		"max_open_conns", cfg.MaxOpenConns,
	)

	return s, nil
}

// initialize sets up the schema and pragmas.
func (s *SQLiteStorage) initialize() error {
	if s.cfg.WALMode {
		if _, err := s.db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
			return audit.NewStorageError("sqlite", "enable_wal", err)
		}
	}

	if _, err := s.db.Exec(fmt.Sprintf("PRAGMA busy_timeout=%d;", s.cfg.BusyTimeout.Milliseconds())); err != nil {
		return audit.NewStorageError("sqlite", "set_busy_timeout", err)
	}

	if _, err := s.db.Exec(Schema); err != nil {
		return audit.NewStorageError("sqlite", "create_schema", err)
	}
	if _, err := s.db.Exec(InsertSchemaVersion, SchemaVersion); err != nil {
		return audit.NewStorageError("sqlite", "insert_schema_version", err)
	}

	var version int
	err := s.db.QueryRow(GetSchemaVersion).Scan(&version)
	if err != nil && err != sql.ErrNoRows {
		return audit.NewStorageError("sqlite", "get_schema_version", err)
	}
	if version != SchemaVersion {
		return audit.NewStorageError("sqlite", "schema_version_mismatch",
			fmt.Errorf("expected schema version %d, got %d", SchemaVersion, version))
	}

	return nil
}

// Store persists one decision record.
func (s *SQLiteStorage) Store(ctx context.Context, record *audit.DecisionRecord) error {
	extractedText, _ := json.Marshal(record.ExtractedText)
	factors, _ := json.Marshal(record.Factors)
	manifest, _ := json.Marshal(record.Manifest)

	query := `
		INSERT INTO decisions (
			request_id, verdict, confidence, category, safety_assessment,
			extracted_text, factors, manifest, policy_version,
			processing_time_ms, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := s.db.ExecContext(ctx, query,
		record.RequestID, record.Verdict, record.Confidence, record.Category,
		record.SafetyAssessment, string(extractedText), string(factors),
		string(manifest), record.PolicyVersion,
		record.ProcessingTime.Milliseconds(), record.CreatedAt,
	)
	if err != nil {
		return audit.NewStorageError("sqlite", "store", err)
	}

	if id, err := result.LastInsertId(); err == nil {
		record.ID = id
	}
	return nil
}

// GetByRequestID retrieves the most recent record for a request ID.
func (s *SQLiteStorage) GetByRequestID(ctx context.Context, requestID string) (*audit.DecisionRecord, error) {
	query := `
		SELECT id, request_id, verdict, confidence, category, safety_assessment,
		       extracted_text, factors, manifest, policy_version,
		       processing_time_ms, created_at
		FROM decisions
		WHERE request_id = ?
		ORDER BY id DESC
		LIMIT 1
	`

	row := s.db.QueryRowContext(ctx, query, requestID)

	var (
		record           audit.DecisionRecord
		extractedText    string
		factors          string
		manifest         string
		processingTimeMs int64
	)
	err := row.Scan(
		&record.ID, &record.RequestID, &record.Verdict, &record.Confidence,
		&record.Category, &record.SafetyAssessment, &extractedText,
		&factors, &manifest, &record.PolicyVersion,
		&processingTimeMs, &record.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, audit.ErrRecordNotFound
	}
	if err != nil {
		return nil, audit.NewStorageError("sqlite", "get_by_request_id", err)
	}

	if err := json.Unmarshal([]byte(extractedText), &record.ExtractedText); err != nil {
		record.ExtractedText = nil
	}
	var parsedFactors []ensemble.Factor
	if err := json.Unmarshal([]byte(factors), &parsedFactors); err == nil {
		record.Factors = parsedFactors
	}
	if err := json.Unmarshal([]byte(manifest), &record.Manifest); err != nil {
		record.Manifest = nil
	}
	record.ProcessingTime = time.Duration(processingTimeMs) * time.Millisecond

	return &record, nil
}

// Count returns the number of stored records.
func (s *SQLiteStorage) Count(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM decisions`).Scan(&count)
	if err != nil {
		return 0, audit.NewStorageError("sqlite", "count", err)
	}
	return count, nil
}

// DeleteOlderThan removes records created before cutoff.
func (s *SQLiteStorage) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM decisions WHERE created_at < ?`, cutoff)
	if err != nil {
		return 0, audit.NewStorageError("sqlite", "delete_older_than", err)
	}
	return result.RowsAffected()
}

// DeleteOldest removes the n oldest records.
func (s *SQLiteStorage) DeleteOldest(ctx context.Context, n int64) (int64, error) {
	if n <= 0 {
		return 0, nil
	}
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM decisions WHERE id IN (
			SELECT id FROM decisions ORDER BY id ASC LIMIT ?
		)
	`, n)
	if err != nil {
		return 0, audit.NewStorageError("sqlite", "delete_oldest", err)
	}
	return result.RowsAffected()
}

// Close closes the database.
func (s *SQLiteStorage) Close() error {
	s.logger.Debug("closing SQLite audit storage")
	return s.db.Close()
}
