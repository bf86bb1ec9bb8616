package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/evanschultz/atlascope/internal/app"
	"github.com/evanschultz/atlascope/internal/domain"
	_ "modernc.org/sqlite"
)

// driverName defines a package constant value.
const driverName = "sqlite"

// Repository stores scope documents and their operation logs in sqlite.
type Repository struct {
	db *sql.DB
}

// Open opens the requested operation.
func Open(path string) (*Repository, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create sqlite dir: %w", err)
	}
	db, err := sql.Open(driverName, path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	repo := &Repository{db: db}
	if err := repo.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return repo, nil
}

// OpenInMemory opens a private in-memory database.
func OpenInMemory() (*Repository, error) {
	db, err := sql.Open(driverName, ":memory:")
	if err != nil {
		return nil, fmt.Errorf("open sqlite memory: %w", err)
	}
	// every pooled connection would otherwise see its own empty database
	db.SetMaxOpenConns(1)
	repo := &Repository{db: db}
	if err := repo.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return repo, nil
}

// Close closes the requested operation.
func (r *Repository) Close() error {
	return r.db.Close()
}

// migrate handles migrate.
func (r *Repository) migrate(ctx context.Context) error {
	stmts := []string{
		`PRAGMA foreign_keys = ON;`,
		`CREATE TABLE IF NOT EXISTS scope_documents (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL DEFAULT '',
			doc_no TEXT NOT NULL DEFAULT '',
			state_json TEXT NOT NULL DEFAULT '{}',
			revision INTEGER NOT NULL DEFAULT 0,
			state_hash TEXT NOT NULL DEFAULT '',
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS scope_operations (
			document_id TEXT NOT NULL,
			op_index INTEGER NOT NULL,
			op_type TEXT NOT NULL,
			input_json TEXT NOT NULL,
			state_hash TEXT NOT NULL,
			created_at TEXT NOT NULL,
			PRIMARY KEY(document_id, op_index),
			FOREIGN KEY(document_id) REFERENCES scope_documents(id) ON DELETE CASCADE
		);`,
		`CREATE INDEX IF NOT EXISTS idx_scope_documents_created_at ON scope_documents(created_at);`,
	}
	for _, stmt := range stmts {
		if _, err := r.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate sqlite: %w", err)
		}
	}
	return nil
}

// CreateDocument inserts a new document together with its initial operations.
func (r *Repository) CreateDocument(ctx context.Context, doc domain.Document, ops []domain.Operation) (err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = insertDocument(ctx, tx, doc); err != nil {
		return err
	}
	for _, op := range ops {
		if err = insertOperation(ctx, tx, doc.ID, op); err != nil {
			return err
		}
	}
	err = tx.Commit()
	return err
}

// GetDocument returns one document.
func (r *Repository) GetDocument(ctx context.Context, id string) (domain.Document, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, state_json, revision, created_at, updated_at
		FROM scope_documents
		WHERE id = ?
	`, id)
	return scanDocument(row)
}

// ListDocuments lists documents in creation order.
func (r *Repository) ListDocuments(ctx context.Context) ([]domain.Document, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, state_json, revision, created_at, updated_at
		FROM scope_documents
		ORDER BY created_at ASC, id ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []domain.Document{}
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, doc)
	}
	return out, rows.Err()
}

// AppendOperation stores op and the post-apply document in one transaction.
// The write only succeeds while the stored revision still equals op.Index.
func (r *Repository) AppendOperation(ctx context.Context, doc domain.Document, op domain.Operation) (err error) {
	stateJSON, err := json.Marshal(doc.State)
	if err != nil {
		return fmt.Errorf("encode scope state: %w", err)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	res, err := tx.ExecContext(ctx, `
		UPDATE scope_documents
		SET name = ?, doc_no = ?, state_json = ?, revision = ?, state_hash = ?, updated_at = ?
		WHERE id = ? AND revision = ?
	`, doc.State.Name, doc.State.DocNo, string(stateJSON), doc.Revision, op.Hash, ts(doc.UpdatedAt), doc.ID, op.Index)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		var exists int
		scanErr := tx.QueryRowContext(ctx, `SELECT 1 FROM scope_documents WHERE id = ?`, doc.ID).Scan(&exists)
		if errors.Is(scanErr, sql.ErrNoRows) {
			err = app.ErrNotFound
			return err
		}
		if scanErr != nil {
			err = scanErr
			return err
		}
		err = fmt.Errorf("%w: document %q is not at revision %d", app.ErrConflict, doc.ID, op.Index)
		return err
	}

	if err = insertOperation(ctx, tx, doc.ID, op); err != nil {
		return err
	}
	err = tx.Commit()
	return err
}

// ListOperations lists one document's log in index order.
func (r *Repository) ListOperations(ctx context.Context, documentID string) ([]domain.Operation, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT op_index, op_type, input_json, state_hash, created_at
		FROM scope_operations
		WHERE document_id = ?
		ORDER BY op_index ASC
	`, documentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []domain.Operation{}
	for rows.Next() {
		var (
			op         domain.Operation
			opType     string
			inputRaw   string
			createdRaw string
		)
		if err := rows.Scan(&op.Index, &opType, &inputRaw, &op.Hash, &createdRaw); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(inputRaw), &op.Input); err != nil {
			return nil, fmt.Errorf("decode operation input_json: %w", err)
		}
		op.Type = domain.OperationType(opType)
		op.Timestamp = parseTS(createdRaw)
		out = append(out, op)
	}
	return out, rows.Err()
}

// ReplaceDocuments overwrites every listed document and its complete log in one transaction.
func (r *Repository) ReplaceDocuments(ctx context.Context, logs []domain.DocumentLog) (err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	for _, item := range logs {
		doc := item.Document
		if _, err = tx.ExecContext(ctx, `DELETE FROM scope_operations WHERE document_id = ?`, doc.ID); err != nil {
			return err
		}
		if _, err = tx.ExecContext(ctx, `DELETE FROM scope_documents WHERE id = ?`, doc.ID); err != nil {
			return err
		}
		if err = insertDocument(ctx, tx, doc); err != nil {
			return err
		}
		for _, op := range item.Operations {
			if err = insertOperation(ctx, tx, doc.ID, op); err != nil {
				return err
			}
		}
	}
	err = tx.Commit()
	return err
}

// execerContext represents a write-only DB contract used by DB and Tx implementations.
type execerContext interface {
	ExecContext(context.Context, string, ...any) (sql.Result, error)
}

// insertDocument writes one document row.
func insertDocument(ctx context.Context, execer execerContext, doc domain.Document) error {
	stateJSON, err := json.Marshal(doc.State)
	if err != nil {
		return fmt.Errorf("encode scope state: %w", err)
	}
	hash, err := doc.Hash()
	if err != nil {
		return err
	}
	_, err = execer.ExecContext(ctx, `
		INSERT INTO scope_documents(id, name, doc_no, state_json, revision, state_hash, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, doc.ID, doc.State.Name, doc.State.DocNo, string(stateJSON), doc.Revision, hash, ts(doc.CreatedAt), ts(doc.UpdatedAt))
	return err
}

// insertOperation writes one operation row.
func insertOperation(ctx context.Context, execer execerContext, documentID string, op domain.Operation) error {
	inputJSON, err := json.Marshal(op.Input)
	if err != nil {
		return fmt.Errorf("encode operation input: %w", err)
	}
	_, err = execer.ExecContext(ctx, `
		INSERT INTO scope_operations(document_id, op_index, op_type, input_json, state_hash, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, documentID, op.Index, string(op.Type), string(inputJSON), op.Hash, ts(op.Timestamp))
	if err != nil && isUniqueConstraintErr(err) {
		return fmt.Errorf("%w: operation %d already exists for %q", app.ErrConflict, op.Index, documentID)
	}
	return err
}

// scanner represents scanner data used by this package.
type scanner interface {
	Scan(dest ...any) error
}

// scanDocument handles scan document.
func scanDocument(s scanner) (domain.Document, error) {
	var (
		doc        domain.Document
		stateRaw   string
		createdRaw string
		updatedRaw string
	)
	if err := s.Scan(&doc.ID, &stateRaw, &doc.Revision, &createdRaw, &updatedRaw); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Document{}, app.ErrNotFound
		}
		return domain.Document{}, err
	}
	doc.State = domain.NewScopeState()
	if strings.TrimSpace(stateRaw) != "" {
		if err := json.Unmarshal([]byte(stateRaw), &doc.State); err != nil {
			return domain.Document{}, fmt.Errorf("decode scope state_json: %w", err)
		}
	}
	doc.CreatedAt = parseTS(createdRaw)
	doc.UpdatedAt = parseTS(updatedRaw)
	return doc, nil
}

// ts handles ts.
func ts(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// parseTS parses input into a normalized form.
func parseTS(v string) time.Time {
	ts, err := time.Parse(time.RFC3339Nano, v)
	if err != nil {
		return time.Time{}
	}
	return ts.UTC()
}

// isUniqueConstraintErr reports whether the expected condition is satisfied.
func isUniqueConstraintErr(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(strings.ToLower(err.Error()), "unique constraint")
}
