package registry

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/Veilstone-Labs/fhegate/pkg/contracts"
)

// PostgresStore is the Store for multi-node deployments, where several
// gateway replicas share one replay guard. The guarded UPDATE in
// MarkProcessed makes the flip atomic across replicas.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore wraps an open connection (lib/pq driver).
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const pgSchema = `
CREATE TABLE IF NOT EXISTS pending_requests (
	request_id BIGINT PRIMARY KEY,
	batch_id BIGINT NOT NULL,
	commitment TEXT NOT NULL,
	handles JSONB NOT NULL,
	processed BOOLEAN NOT NULL DEFAULT FALSE,
	created_at TIMESTAMP NOT NULL
);`

// Init creates the schema.
func (s *PostgresStore) Init(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, pgSchema)
	return err
}

func (s *PostgresStore) Put(ctx context.Context, req *contracts.PendingRequest) error {
	handlesJSON, err := encodeHandles(req.Handles)
	if err != nil {
		return err
	}
	query := `INSERT INTO pending_requests (request_id, batch_id, commitment, handles, processed, created_at)
	          VALUES ($1, $2, $3, $4, FALSE, $5)`
	_, err = s.db.ExecContext(ctx, query,
		req.RequestID, req.BatchID, req.Commitment.Hex(), handlesJSON, req.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert request %d: %w", req.RequestID, err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, requestID uint64) (*contracts.PendingRequest, error) {
	query := `SELECT request_id, batch_id, commitment, handles, processed, created_at
	          FROM pending_requests WHERE request_id = $1`
	row := s.db.QueryRowContext(ctx, query, requestID)
	return scanPgRequest(row, requestID)
}

func (s *PostgresStore) MarkProcessed(ctx context.Context, requestID uint64) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE pending_requests SET processed = TRUE WHERE request_id = $1 AND processed = FALSE`, requestID)
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

func scanPgRequest(row rowScanner, requestID uint64) (*contracts.PendingRequest, error) {
	var (
		req           contracts.PendingRequest
		commitmentHex string
		handlesJSON   string
		createdAt     time.Time
	)
	err := row.Scan(&req.RequestID, &req.BatchID, &commitmentHex, &handlesJSON, &req.Processed, &createdAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("request %d: %w", requestID, contracts.ErrUnknownRequest)
	}
	if err != nil {
		return nil, fmt.Errorf("scan request %d: %w", requestID, err)
	}
	if err := decodeCommitment(commitmentHex, &req.Commitment); err != nil {
		return nil, fmt.Errorf("request %d: %w", requestID, err)
	}
	if req.Handles, err = decodeHandles(handlesJSON); err != nil {
		return nil, fmt.Errorf("request %d: %w", requestID, err)
	}
	req.CreatedAt = createdAt
	return &req, nil
}
