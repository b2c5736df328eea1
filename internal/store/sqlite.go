package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// SQLiteStore is an alternative backend behind the same Store interface,
// for deployments where a single JSON file is too small. Mutations that
// touch both collections run in one transaction, which gives the same
// atomicity the snapshot file gives by whole-document replacement.
type SQLiteStore struct {
	db  *sql.DB
	cap int
}

func NewSQLiteStore(dsn string, retentionCap int) (*SQLiteStore, error) {
	if retentionCap <= 0 {
		retentionCap = DefaultRetentionCap
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	// One connection: sqlite allows a single writer anyway, and funneling
	// every load-modify-save through one connection rules out SQLITE_BUSY
	// races between concurrent captures.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		return nil, err
	}

	s := &SQLiteStore{db: db, cap: retentionCap}
	if err := s.init(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) init() error {
	// No foreign key on requests.endpoint_id: captures for endpoints that
	// do not (yet) exist must be accepted and kept. Cascade deletion is
	// done explicitly in DeleteEndpoint instead.
	query := `
	CREATE TABLE IF NOT EXISTS endpoints (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		color TEXT,
		created_at INTEGER NOT NULL
	);
	CREATE TABLE IF NOT EXISTS requests (
		id TEXT PRIMARY KEY,
		endpoint_id TEXT NOT NULL,
		method TEXT NOT NULL,
		path TEXT,
		timestamp INTEGER NOT NULL,
		headers TEXT,
		query TEXT,
		body BLOB,
		body_raw BLOB,
		size INTEGER NOT NULL,
		content_type TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_requests_endpoint_id ON requests(endpoint_id);
	CREATE INDEX IF NOT EXISTS idx_requests_timestamp ON requests(timestamp);
	`
	_, err := s.db.Exec(query)
	return err
}

func (s *SQLiteStore) CreateEndpoint(ctx context.Context, name, color string) (*Endpoint, error) {
	ep := &Endpoint{
		ID:        uuid.NewString(),
		Name:      name,
		Color:     color,
		CreatedAt: time.Now().UnixMilli(),
	}
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO endpoints (id, name, color, created_at) VALUES (?, ?, ?, ?)",
		ep.ID, ep.Name, ep.Color, ep.CreatedAt)
	if err != nil {
		return nil, err
	}
	return ep, nil
}

func (s *SQLiteStore) ListEndpoints(ctx context.Context) ([]*Endpoint, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, name, color, created_at FROM endpoints ORDER BY rowid ASC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	eps := make([]*Endpoint, 0)
	for rows.Next() {
		var e Endpoint
		if err := rows.Scan(&e.ID, &e.Name, &e.Color, &e.CreatedAt); err != nil {
			return nil, err
		}
		eps = append(eps, &e)
	}
	return eps, rows.Err()
}

func (s *SQLiteStore) DeleteEndpoint(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM endpoints WHERE id = ?", id); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM requests WHERE endpoint_id = ?", id); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *SQLiteStore) AppendRequest(ctx context.Context, req *CapturedRequest) error {
	req.ID = uuid.NewString()
	req.Timestamp = time.Now().UnixMilli()

	headers, err := json.Marshal(req.Headers)
	if err != nil {
		return err
	}
	query, err := json.Marshal(req.Query)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO requests (id, endpoint_id, method, path, timestamp, headers, query, body, body_raw, size, content_type)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, req.ID, req.EndpointID, req.Method, req.Path, req.Timestamp,
		string(headers), string(query), []byte(req.Body), req.RawBody, req.Size, req.ContentType)
	if err != nil {
		return err
	}

	// Retention in the same transaction: keep the newest cap rows,
	// oldest-first eviction with insertion order breaking timestamp ties.
	_, err = tx.ExecContext(ctx, `
		DELETE FROM requests WHERE rowid NOT IN (
			SELECT rowid FROM requests ORDER BY timestamp DESC, rowid DESC LIMIT ?
		)
	`, s.cap)
	if err != nil {
		return err
	}
	return tx.Commit()
}

const requestColumns = "id, endpoint_id, method, path, timestamp, headers, query, body, body_raw, size, content_type"

func scanRequest(row interface{ Scan(...any) error }) (*CapturedRequest, error) {
	var (
		r       CapturedRequest
		headers sql.NullString
		query   sql.NullString
		body    []byte
	)
	err := row.Scan(&r.ID, &r.EndpointID, &r.Method, &r.Path, &r.Timestamp,
		&headers, &query, &body, &r.RawBody, &r.Size, &r.ContentType)
	if err != nil {
		return nil, err
	}
	if headers.Valid && headers.String != "" {
		if err := json.Unmarshal([]byte(headers.String), &r.Headers); err != nil {
			return nil, err
		}
	}
	if query.Valid && query.String != "" && query.String != "null" {
		if err := json.Unmarshal([]byte(query.String), &r.Query); err != nil {
			return nil, err
		}
	}
	if len(body) > 0 {
		r.Body = json.RawMessage(body)
	}
	return &r, nil
}

func (s *SQLiteStore) ListRequests(ctx context.Context, endpointID string) ([]*CapturedRequest, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+requestColumns+`
		FROM requests
		WHERE endpoint_id = ?
		ORDER BY timestamp DESC, rowid DESC
	`, endpointID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	reqs := make([]*CapturedRequest, 0)
	for rows.Next() {
		r, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		reqs = append(reqs, r)
	}
	return reqs, rows.Err()
}

func (s *SQLiteStore) GetRequest(ctx context.Context, id string) (*CapturedRequest, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+requestColumns+" FROM requests WHERE id = ?", id)
	r, err := scanRequest(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return r, err
}

func (s *SQLiteStore) ClearRequests(ctx context.Context, endpointID string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM requests WHERE endpoint_id = ?", endpointID)
	return err
}

func (s *SQLiteStore) Close() error { return s.db.Close() }
