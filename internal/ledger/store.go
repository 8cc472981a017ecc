package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// Shipment is one 200 response.
type Shipment struct {
	ID          int64
	LogName     string
	StartOffset int64
	EndOffset   int64
	PayloadSize int
	ClientIP    string
	RequestID   string
	ShippedAt   time.Time
}

// Store persists shipments in SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Open creates or opens the ledger at path and applies migrations.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("ensure ledger directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: path}
	if err := store.applyMigrations(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Record inserts a shipment and returns its row ID.
func (s *Store) Record(ctx context.Context, shipment Shipment) (int64, error) {
	shippedAt := shipment.ShippedAt
	if shippedAt.IsZero() {
		shippedAt = time.Now()
	}
	res, err := s.db.ExecContext(
		ctx,
		`INSERT INTO shipments (
            log_name, start_offset, end_offset, payload_size, client_ip, request_id, shipped_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		shipment.LogName,
		shipment.StartOffset,
		shipment.EndOffset,
		shipment.PayloadSize,
		shipment.ClientIP,
		shipment.RequestID,
		shippedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return 0, fmt.Errorf("insert shipment: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("last insert id: %w", err)
	}
	return id, nil
}

// Recent returns up to limit shipments, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Shipment, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT id, log_name, start_offset, end_offset, payload_size, client_ip, request_id, shipped_at
        FROM shipments ORDER BY id DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query shipments: %w", err)
	}
	defer rows.Close()

	var out []Shipment
	for rows.Next() {
		shipment, err := scanShipment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, shipment)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate shipments: %w", err)
	}
	return out, nil
}

// LastOffset returns the highest end offset shipped for logName, or zero and
// false when nothing was recorded.
func (s *Store) LastOffset(ctx context.Context, logName string) (int64, bool, error) {
	var end sql.NullInt64
	err := s.db.QueryRowContext(ctx, "SELECT MAX(end_offset) FROM shipments WHERE log_name = ?", logName).Scan(&end)
	if err != nil {
		return 0, false, fmt.Errorf("query last offset: %w", err)
	}
	if !end.Valid {
		return 0, false, nil
	}
	return end.Int64, true, nil
}

func scanShipment(rows *sql.Rows) (Shipment, error) {
	var (
		shipment  Shipment
		shippedAt string
	)
	if err := rows.Scan(
		&shipment.ID,
		&shipment.LogName,
		&shipment.StartOffset,
		&shipment.EndOffset,
		&shipment.PayloadSize,
		&shipment.ClientIP,
		&shipment.RequestID,
		&shippedAt,
	); err != nil {
		return Shipment{}, fmt.Errorf("scan shipment: %w", err)
	}
	ts, err := time.Parse(time.RFC3339Nano, shippedAt)
	if err != nil {
		return Shipment{}, fmt.Errorf("parse shipped_at %q: %w", shippedAt, err)
	}
	shipment.ShippedAt = ts
	return shipment, nil
}
