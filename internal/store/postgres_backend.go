package store

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/orbitalflow/engine/internal/orcherr"
)

// PostgresBackend persists execution Records as a single JSONB document
// per row, mirroring the memory subsystem's SQL-backed tiers: the record
// shape (nested per-node status) doesn't benefit from being normalized
// into columns the way blueprint metadata does.
type PostgresBackend struct {
	pool *pgxpool.Pool
}

func NewPostgresBackend(pool *pgxpool.Pool) *PostgresBackend {
	return &PostgresBackend{pool: pool}
}

const executionDDL = `
CREATE TABLE IF NOT EXISTS execution_record (
	execution_id uuid PRIMARY KEY,
	blueprint_id uuid NOT NULL,
	status text NOT NULL,
	record jsonb NOT NULL,
	updated_at timestamptz NOT NULL
)`

func (p *PostgresBackend) EnsureSchema(ctx context.Context) error {
	if _, err := p.pool.Exec(ctx, executionDDL); err != nil {
		return orcherr.Wrap(orcherr.KindValidation, "", err, "failed to ensure execution_record schema")
	}
	return nil
}

func (p *PostgresBackend) Save(ctx context.Context, r *Record) error {
	b, err := json.Marshal(r)
	if err != nil {
		return orcherr.Wrap(orcherr.KindValidation, "", err, "failed to marshal execution record")
	}
	_, err = p.pool.Exec(ctx, `
		INSERT INTO execution_record (execution_id, blueprint_id, status, record, updated_at)
		VALUES ($1,$2,$3,$4,$5)
		ON CONFLICT (execution_id) DO UPDATE SET
			status = EXCLUDED.status, record = EXCLUDED.record, updated_at = EXCLUDED.updated_at`,
		r.ExecutionID, r.BlueprintID, string(r.Status), b, r.UpdatedAt)
	if err != nil {
		return orcherr.Wrap(orcherr.KindValidation, "", err, "failed to save execution record")
	}
	return nil
}

func (p *PostgresBackend) Load(ctx context.Context, id uuid.UUID) (*Record, error) {
	row := p.pool.QueryRow(ctx, `SELECT record FROM execution_record WHERE execution_id=$1`, id)
	var raw []byte
	if err := row.Scan(&raw); err != nil {
		return nil, orcherr.Wrap(orcherr.KindValidation, "", err, "execution %s not found", id)
	}
	var r Record
	if err := json.Unmarshal(raw, &r); err != nil {
		return nil, orcherr.Wrap(orcherr.KindValidation, "", err, "failed to unmarshal execution record")
	}
	return &r, nil
}

func (p *PostgresBackend) ListRunning(ctx context.Context) ([]*Record, error) {
	rows, err := p.pool.Query(ctx, `SELECT record FROM execution_record WHERE status=$1`, string(StatusRunning))
	if err != nil {
		return nil, orcherr.Wrap(orcherr.KindValidation, "", err, "failed to list running executions")
	}
	defer rows.Close()
	var out []*Record
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, orcherr.Wrap(orcherr.KindValidation, "", err, "failed to scan execution record")
		}
		var r Record
		if err := json.Unmarshal(raw, &r); err != nil {
			return nil, orcherr.Wrap(orcherr.KindValidation, "", err, "failed to unmarshal execution record")
		}
		out = append(out, &r)
	}
	return out, rows.Err()
}
