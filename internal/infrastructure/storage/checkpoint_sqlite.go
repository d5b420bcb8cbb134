package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	sq "github.com/Masterminds/squirrel"
	_ "modernc.org/sqlite"

	"github.com/shubhamgangwar-01/Puyi-Finetune/internal/domain"
	"github.com/shubhamgangwar-01/Puyi-Finetune/internal/ports"
)

const checkpointTable = "checkpoint_records"

var checkpointColumns = []string{
	"record_id", "unit_id", "instruction", "input", "output",
	"category", "topic", "source", "committed_at",
}

// SQLiteCheckpoint persists committed records into a SQLite table.
type SQLiteCheckpoint struct {
	db *sql.DB
}

var _ ports.CheckpointStore = (*SQLiteCheckpoint)(nil)

// NewSQLiteCheckpoint opens or creates the database at path.
func NewSQLiteCheckpoint(path string) (*SQLiteCheckpoint, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}

	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(wal)&_pragma=synchronous(full)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	db.SetMaxOpenConns(1)

	s := &SQLiteCheckpoint{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

// NewSQLiteCheckpointFromDB wires an existing sql.DB implementation.
func NewSQLiteCheckpointFromDB(db *sql.DB) (*SQLiteCheckpoint, error) {
	s := &SQLiteCheckpoint{db: db}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *SQLiteCheckpoint) migrate() error {
	_, err := s.db.Exec(`
	CREATE TABLE IF NOT EXISTS checkpoint_records (
		seq          INTEGER PRIMARY KEY AUTOINCREMENT,
		record_id    TEXT NOT NULL,
		unit_id      TEXT NOT NULL DEFAULT '',
		instruction  TEXT NOT NULL,
		input        TEXT NOT NULL DEFAULT '',
		output       TEXT NOT NULL,
		category     TEXT NOT NULL DEFAULT '',
		topic        TEXT NOT NULL DEFAULT '',
		source       TEXT NOT NULL DEFAULT '',
		committed_at TEXT NOT NULL DEFAULT ''
	);
	CREATE INDEX IF NOT EXISTS idx_checkpoint_unit ON checkpoint_records(unit_id);`)
	return err
}

// Load returns committed records in insertion order.
func (s *SQLiteCheckpoint) Load(ctx context.Context) ([]domain.MemoryRecord, error) {
	query, args, err := sq.Select(checkpointColumns...).
		From(checkpointTable).
		OrderBy("seq").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query checkpoint: %w", err)
	}

	var records []domain.MemoryRecord
	for rows.Next() {
		var (
			rec         domain.MemoryRecord
			committedAt string
		)
		if err := rows.Scan(&rec.ID, &rec.UnitID, &rec.Instruction, &rec.Input, &rec.Output,
			&rec.Category, &rec.Topic, &rec.Source, &committedAt); err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("scan record: %w", err)
		}
		if committedAt != "" {
			rec.CommittedAt, _ = time.Parse(time.RFC3339Nano, committedAt)
		}
		records = append(records, rec)
	}

	if rowsErr := rows.Err(); rowsErr != nil {
		_ = rows.Close()
		return nil, fmt.Errorf("rows iteration: %w", rowsErr)
	}

	if closeErr := rows.Close(); closeErr != nil {
		return nil, fmt.Errorf("close rows: %w", closeErr)
	}

	return records, nil
}

// Append inserts records in one transaction.
func (s *SQLiteCheckpoint) Append(ctx context.Context, records []domain.MemoryRecord) error {
	if len(records) == 0 {
		return nil
	}

	insert := sq.Insert(checkpointTable).Columns(checkpointColumns...)
	for _, rec := range records {
		committedAt := ""
		if !rec.CommittedAt.IsZero() {
			committedAt = rec.CommittedAt.UTC().Format(time.RFC3339Nano)
		}
		insert = insert.Values(rec.ID, rec.UnitID, rec.Instruction, rec.Input, rec.Output,
			rec.Category, rec.Topic, rec.Source, committedAt)
	}

	query, args, err := insert.ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert records: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit records: %w", err)
	}
	return nil
}

// Writable takes the write lock inside a transaction that is rolled back.
func (s *SQLiteCheckpoint) Writable(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	query, args, err := sq.Delete(checkpointTable).Where("1 = 0").ToSql()
	if err != nil {
		return fmt.Errorf("build delete: %w", err)
	}
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("checkpoint is not writable: %w", err)
	}
	return nil
}

// Close closes the database.
func (s *SQLiteCheckpoint) Close() error {
	return s.db.Close()
}
