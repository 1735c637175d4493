package registry

import (
	"context"
	"database/sql"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Veilstone-Labs/fhegate/pkg/contracts"

	_ "modernc.org/sqlite"
)

// SQLiteStore persists pending requests in SQLite. Rows are inserted once
// and only ever updated by the processed flip; the table is the permanent
// replay guard and audit trail.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore migrates the schema and wraps the handle.
func NewSQLiteStore(db *sql.DB) (*SQLiteStore, error) {
	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	query := `
	CREATE TABLE IF NOT EXISTS pending_requests (
		request_id INTEGER PRIMARY KEY,
		batch_id INTEGER NOT NULL,
		commitment TEXT NOT NULL,
		handles JSON NOT NULL,
		processed INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME NOT NULL
	);`
	_, err := s.db.ExecContext(context.Background(), query)
	return err
}

func (s *SQLiteStore) Put(ctx context.Context, req *contracts.PendingRequest) error {
	handlesJSON, err := encodeHandles(req.Handles)
	if err != nil {
		return err
	}
	query := `INSERT INTO pending_requests (request_id, batch_id, commitment, handles, processed, created_at)
	          VALUES (?, ?, ?, ?, 0, ?)`
	_, err = s.db.ExecContext(ctx, query,
		req.RequestID, req.BatchID, req.Commitment.Hex(), handlesJSON,
		req.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("failed to insert request %d: %w", req.RequestID, err)
	}
	return nil
}

func (s *SQLiteStore) Get(ctx context.Context, requestID uint64) (*contracts.PendingRequest, error) {
	query := `SELECT request_id, batch_id, commitment, handles, processed, created_at
	          FROM pending_requests WHERE request_id = ?`
	row := s.db.QueryRowContext(ctx, query, requestID)
	return scanRequest(row, requestID)
}

// MarkProcessed uses a guarded UPDATE so the flip is atomic at the
// database: zero rows affected means either replay or unknown id.
func (s *SQLiteStore) MarkProcessed(ctx context.Context, requestID uint64) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE pending_requests SET processed = 1 WHERE request_id = ? AND processed = 0`, requestID)
	if err != nil {
		return fmt.Errorf("mark processed %d: %w", requestID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("mark processed %d: %w", requestID, err)
	}
	if n == 1 {
		return nil
	}
	if _, err := s.Get(ctx, requestID); err != nil {
		return err
	}
	return fmt.Errorf("request %d: %w", requestID, contracts.ErrReplayAttempt)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRequest(row rowScanner, requestID uint64) (*contracts.PendingRequest, error) {
	var (
		req           contracts.PendingRequest
		commitmentHex string
		handlesJSON   string
		processedInt  int
		createdAt     string
	)
	err := row.Scan(&req.RequestID, &req.BatchID, &commitmentHex, &handlesJSON, &processedInt, &createdAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("request %d: %w", requestID, contracts.ErrUnknownRequest)
	}
	if err != nil {
		return nil, fmt.Errorf("scan request %d: %w", requestID, err)
	}

	if err := decodeCommitment(commitmentHex, &req.Commitment); err != nil {
		return nil, fmt.Errorf("request %d: %w", requestID, err)
	}

	req.Handles, err = decodeHandles(handlesJSON)
	if err != nil {
		return nil, fmt.Errorf("request %d: %w", requestID, err)
	}
	req.Processed = processedInt != 0
	if req.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return nil, fmt.Errorf("request %d: corrupt created_at column", requestID)
	}
	return &req, nil
}

func decodeCommitment(commitmentHex string, out *contracts.Commitment) error {
	raw, err := hex.DecodeString(commitmentHex)
	if err != nil || len(raw) != len(out) {
		return fmt.Errorf("corrupt commitment column")
	}
	copy(out[:], raw)
	return nil
}

func encodeHandles(handles []contracts.Handle) (string, error) {
	encoded := make([]string, len(handles))
	for i, h := range handles {
		encoded[i] = base64.StdEncoding.EncodeToString(h)
	}
	raw, err := json.Marshal(encoded)
	if err != nil {
		return "", fmt.Errorf("encode handles: %w", err)
	}
	return string(raw), nil
}

func decodeHandles(handlesJSON string) ([]contracts.Handle, error) {
	var encoded []string
	if err := json.Unmarshal([]byte(handlesJSON), &encoded); err != nil {
		return nil, fmt.Errorf("corrupt handles column: %w", err)
	}
	handles := make([]contracts.Handle, len(encoded))
	for i, e := range encoded {
		raw, err := base64.StdEncoding.DecodeString(e)
		if err != nil {
			return nil, fmt.Errorf("corrupt handles column: %w", err)
		}
		handles[i] = raw
	}
	return handles, nil
}
