package lineage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

// SQLiteTracker persists lineage records to a SQLite database file.
type SQLiteTracker struct {
	db *sql.DB
}

// NewSQLiteTracker opens (or creates) the database at path and prepares
// the lineage table.
func NewSQLiteTracker(path string) (*SQLiteTracker, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	tracker := &SQLiteTracker{db: db}
	if err := tracker.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return tracker, nil
}

func (t *SQLiteTracker) migrate() error {
	_, err := t.db.Exec(`
		CREATE TABLE IF NOT EXISTS lineage_records (
			id             TEXT PRIMARY KEY,
			entity_type    TEXT NOT NULL,
			entity_id      TEXT NOT NULL,
			before_state   TEXT,
			after_state    TEXT,
			source_type    TEXT NOT NULL,
			source_id      TEXT NOT NULL,
			operation_type TEXT NOT NULL,
			metadata       TEXT,
			created_at     TIMESTAMP NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_lineage_entity ON lineage_records(entity_type, entity_id)
	`)
	return err
}

func (t *SQLiteTracker) Report(ctx context.Context, record Record) error {
	before, err := marshalNullable(record.Before)
	if err != nil {
		return fmt.Errorf("failed to encode before state: %w", err)
	}
	after, err := marshalNullable(record.After)
	if err != nil {
		return fmt.Errorf("failed to encode after state: %w", err)
	}
	metadata, err := marshalNullable(record.Metadata)
	if err != nil {
		return fmt.Errorf("failed to encode metadata: %w", err)
	}

	createdAt := record.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	_, err = t.db.ExecContext(ctx, `
		INSERT INTO lineage_records
			(id, entity_type, entity_id, before_state, after_state,
			 source_type, source_id, operation_type, metadata, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		uuid.New().String(), record.EntityType, record.EntityID, before, after,
		record.SourceType, record.SourceID, record.OperationType, metadata, createdAt)
	if err != nil {
		return fmt.Errorf("failed to insert lineage record: %w", err)
	}
	return nil
}

// Records returns persisted records for an entity, newest first.
func (t *SQLiteTracker) Records(ctx context.Context, entityType, entityID string) ([]Record, error) {
	rows, err := t.db.QueryContext(ctx, `
		SELECT entity_type, entity_id, before_state, after_state,
		       source_type, source_id, operation_type, metadata, created_at
		FROM lineage_records
		WHERE entity_type = ? AND entity_id = ?
		ORDER BY created_at DESC`,
		entityType, entityID)
	if err != nil {
		return nil, fmt.Errorf("failed to query lineage records: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var record Record
		var before, after, metadata sql.NullString
		if err := rows.Scan(&record.EntityType, &record.EntityID, &before, &after,
			&record.SourceType, &record.SourceID, &record.OperationType,
			&metadata, &record.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan lineage record: %w", err)
		}
		if before.Valid {
			_ = json.Unmarshal([]byte(before.String), &record.Before)
		}
		if after.Valid {
			_ = json.Unmarshal([]byte(after.String), &record.After)
		}
		if metadata.Valid {
			_ = json.Unmarshal([]byte(metadata.String), &record.Metadata)
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

func (t *SQLiteTracker) Close() error {
	return t.db.Close()
}

func marshalNullable(v interface{}) (interface{}, error) {
	if v == nil {
		return nil, nil
	}
	encoded, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(encoded), nil
}
