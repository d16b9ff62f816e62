package documents

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"zerorag/internal/zerotypes"
)

// MetadataStore persists DocumentMetadata and UploadProgress, giving both
// survival across restarts. DocumentPipeline is the sole writer.
type MetadataStore struct {
	db *sql.DB
}

// OpenMetadataStore opens (creating if necessary) the sqlite database at
// path and ensures its schema exists.
func OpenMetadataStore(path string) (*MetadataStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("documents: opening metadata store: %w", err)
	}
	store := &MetadataStore{db: db}
	if err := store.migrate(); err != nil {
		return nil, err
	}
	return store, nil
}

func (s *MetadataStore) migrate() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS documents (
			id TEXT PRIMARY KEY,
			data TEXT NOT NULL,
			status TEXT NOT NULL,
			created_at DATETIME NOT NULL
		);
		CREATE TABLE IF NOT EXISTS upload_progress (
			document_id TEXT PRIMARY KEY,
			data TEXT NOT NULL,
			updated_at DATETIME NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_documents_status ON documents(status);
	`)
	if err != nil {
		return fmt.Errorf("documents: migrating metadata store: %w", err)
	}
	return nil
}

func (s *MetadataStore) PutDocument(ctx context.Context, meta zerotypes.DocumentMetadata) error {
	data, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("documents: encoding metadata: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO documents (id, data, status, created_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET data = excluded.data, status = excluded.status
	`, meta.ID, string(data), string(meta.Status), meta.CreatedAt)
	if err != nil {
		return fmt.Errorf("documents: writing metadata: %w", err)
	}
	return nil
}

func (s *MetadataStore) GetDocument(ctx context.Context, id string) (zerotypes.DocumentMetadata, error) {
	var data string
	err := s.db.QueryRowContext(ctx, `SELECT data FROM documents WHERE id = ?`, id).Scan(&data)
	if err == sql.ErrNoRows {
		return zerotypes.DocumentMetadata{}, sql.ErrNoRows
	}
	if err != nil {
		return zerotypes.DocumentMetadata{}, fmt.Errorf("documents: reading metadata: %w", err)
	}
	var meta zerotypes.DocumentMetadata
	if err := json.Unmarshal([]byte(data), &meta); err != nil {
		return zerotypes.DocumentMetadata{}, fmt.Errorf("documents: decoding metadata: %w", err)
	}
	return meta, nil
}

// ListDocuments returns metadata ordered by created_at descending, with the
// given limit/offset paging window and an optional status filter.
func (s *MetadataStore) ListDocuments(ctx context.Context, status string, limit, offset int) ([]zerotypes.DocumentMetadata, error) {
	query := `SELECT data FROM documents`
	args := []interface{}{}
	if status != "" {
		query += ` WHERE status = ?`
		args = append(args, status)
	}
	query += ` ORDER BY created_at DESC LIMIT ? OFFSET ?`
	args = append(args, limit, offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("documents: listing metadata: %w", err)
	}
	defer rows.Close()

	var result []zerotypes.DocumentMetadata
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("documents: scanning metadata row: %w", err)
		}
		var meta zerotypes.DocumentMetadata
		if err := json.Unmarshal([]byte(data), &meta); err != nil {
			return nil, fmt.Errorf("documents: decoding metadata row: %w", err)
		}
		result = append(result, meta)
	}
	return result, rows.Err()
}

func (s *MetadataStore) DeleteDocument(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("documents: deleting metadata: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `DELETE FROM upload_progress WHERE document_id = ?`, id)
	if err != nil {
		return fmt.Errorf("documents: deleting progress: %w", err)
	}
	return nil
}

func (s *MetadataStore) PutProgress(ctx context.Context, progress zerotypes.UploadProgress) error {
	data, err := json.Marshal(progress)
	if err != nil {
		return fmt.Errorf("documents: encoding progress: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO upload_progress (document_id, data, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(document_id) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at
	`, progress.DocumentID, string(data), progress.UpdatedAt)
	if err != nil {
		return fmt.Errorf("documents: writing progress: %w", err)
	}
	return nil
}

func (s *MetadataStore) GetProgress(ctx context.Context, documentID string) (zerotypes.UploadProgress, error) {
	var data string
	err := s.db.QueryRowContext(ctx, `SELECT data FROM upload_progress WHERE document_id = ?`, documentID).Scan(&data)
	if err == sql.ErrNoRows {
		return zerotypes.UploadProgress{}, sql.ErrNoRows
	}
	if err != nil {
		return zerotypes.UploadProgress{}, fmt.Errorf("documents: reading progress: %w", err)
	}
	var progress zerotypes.UploadProgress
	if err := json.Unmarshal([]byte(data), &progress); err != nil {
		return zerotypes.UploadProgress{}, fmt.Errorf("documents: decoding progress: %w", err)
	}
	return progress, nil
}

func (s *MetadataStore) Close() error {
	return s.db.Close()
}
