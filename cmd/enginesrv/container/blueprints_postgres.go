package container

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/orbitalflow/engine/internal/blueprint"
	"github.com/orbitalflow/engine/internal/orcherr"
)

// postgresBlueprintRepo is the durable blueprintStore, selected over
// blueprintRepo whenever a database connection is configured. Every
// version of a blueprint is kept as its own row, matching blueprintRepo's
// in-memory versions map so GetVersion can still serve sub-workflow
// pinned-version lookups after the process restarts.
type postgresBlueprintRepo struct {
	pool *pgxpool.Pool
}

func newPostgresBlueprintRepo(pool *pgxpool.Pool) *postgresBlueprintRepo {
	return &postgresBlueprintRepo{pool: pool}
}

const blueprintDDL = `
CREATE TABLE IF NOT EXISTS blueprint_version (
	id uuid NOT NULL,
	version int NOT NULL,
	document jsonb NOT NULL,
	is_current boolean NOT NULL DEFAULT false,
	created_at timestamptz NOT NULL,
	updated_at timestamptz NOT NULL,
	PRIMARY KEY (id, version)
)`

const blueprintCurrentIndex = `
CREATE UNIQUE INDEX IF NOT EXISTS blueprint_version_current_idx
	ON blueprint_version (id) WHERE is_current`

func (r *postgresBlueprintRepo) EnsureSchema(ctx context.Context) error {
	if _, err := r.pool.Exec(ctx, blueprintDDL); err != nil {
		return orcherr.Wrap(orcherr.KindValidation, "", err, "failed to ensure blueprint_version schema")
	}
	if _, err := r.pool.Exec(ctx, blueprintCurrentIndex); err != nil {
		return orcherr.Wrap(orcherr.KindValidation, "", err, "failed to ensure blueprint_version_current_idx")
	}
	return nil
}

func (r *postgresBlueprintRepo) Get(id uuid.UUID) (*blueprint.Blueprint, bool) {
	row := r.pool.QueryRow(context.Background(), `
		SELECT document FROM blueprint_version WHERE id=$1 AND is_current`, id)
	bp, err := scanBlueprint(row)
	if err != nil {
		return nil, false
	}
	return bp, true
}

func (r *postgresBlueprintRepo) GetVersion(id uuid.UUID, version int) (*blueprint.Blueprint, bool) {
	row := r.pool.QueryRow(context.Background(), `
		SELECT document FROM blueprint_version WHERE id=$1 AND version=$2`, id, version)
	bp, err := scanBlueprint(row)
	if err != nil {
		return nil, false
	}
	return bp, true
}

func (r *postgresBlueprintRepo) Create(bp *blueprint.Blueprint) error {
	ctx := context.Background()
	if _, ok := r.Get(bp.ID); ok {
		return orcherr.New(orcherr.KindVersionConflict, "", "blueprint %s already exists", bp.ID)
	}
	bp.Version = 1
	now := time.Now()
	bp.CreatedAt, bp.UpdatedAt = now, now
	return r.insert(ctx, bp)
}

func (r *postgresBlueprintRepo) Update(bp *blueprint.Blueprint) error {
	ctx := context.Background()
	existing, ok := r.Get(bp.ID)
	if !ok {
		return orcherr.New(orcherr.KindValidation, "", "blueprint %s not found", bp.ID)
	}
	bp.Version = existing.Version + 1
	bp.UpdatedAt = time.Now()
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return orcherr.Wrap(orcherr.KindValidation, "", err, "failed to begin blueprint update transaction")
	}
	defer tx.Rollback(ctx)
	if _, err := tx.Exec(ctx, `UPDATE blueprint_version SET is_current=false WHERE id=$1 AND is_current`, bp.ID); err != nil {
		return orcherr.Wrap(orcherr.KindValidation, "", err, "failed to demote previous blueprint version")
	}
	if err := r.insertTx(ctx, tx, bp); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return orcherr.Wrap(orcherr.KindValidation, "", err, "failed to commit blueprint update")
	}
	return nil
}

func (r *postgresBlueprintRepo) List() []*blueprint.Blueprint {
	rows, err := r.pool.Query(context.Background(), `SELECT document FROM blueprint_version WHERE is_current`)
	if err != nil {
		return nil
	}
	defer rows.Close()
	var out []*blueprint.Blueprint
	for rows.Next() {
		bp, err := scanBlueprint(rows)
		if err != nil {
			continue
		}
		out = append(out, bp)
	}
	return out
}

func (r *postgresBlueprintRepo) insert(ctx context.Context, bp *blueprint.Blueprint) error {
	return r.insertTx(ctx, r.pool, bp)
}

// sqlExecer is satisfied by both *pgxpool.Pool and pgx.Tx, letting insertTx
// run inside Update's transaction or standalone from Create.
type sqlExecer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

func (r *postgresBlueprintRepo) insertTx(ctx context.Context, execer sqlExecer, bp *blueprint.Blueprint) error {
	doc, err := json.Marshal(bp)
	if err != nil {
		return orcherr.Wrap(orcherr.KindValidation, "", err, "failed to marshal blueprint")
	}
	_, err = execer.Exec(ctx, `
		INSERT INTO blueprint_version (id, version, document, is_current, created_at, updated_at)
		VALUES ($1,$2,$3,true,$4,$5)`,
		bp.ID, bp.Version, doc, bp.CreatedAt, bp.UpdatedAt)
	if err != nil {
		return orcherr.Wrap(orcherr.KindValidation, "", err, "failed to insert blueprint version")
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBlueprint(row rowScanner) (*blueprint.Blueprint, error) {
	var doc []byte
	if err := row.Scan(&doc); err != nil {
		if err == pgx.ErrNoRows {
			return nil, err
		}
		return nil, orcherr.Wrap(orcherr.KindValidation, "", err, "failed to scan blueprint")
	}
	var bp blueprint.Blueprint
	if err := json.Unmarshal(doc, &bp); err != nil {
		return nil, orcherr.Wrap(orcherr.KindValidation, "", err, "failed to unmarshal blueprint")
	}
	return &bp, nil
}
