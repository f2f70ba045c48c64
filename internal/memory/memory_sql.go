// SQL-backed semantic/procedural tier, built on the common/db pgx pool
// wrapper. Vector similarity is computed in Go over a float32[] column
// rather than assuming a pgvector extension, which the vector contract's
// "swappable backend" design explicitly allows.
package memory

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/orbitalflow/engine/internal/orcherr"
)

// SQLBackend persists Entry rows in a single "memory_entry" table shared
// by both SQL-backed tiers, discriminated by the tier column.
type SQLBackend struct {
	pool *pgxpool.Pool
	tier Tier
}

func NewSQLBackend(pool *pgxpool.Pool, tier Tier) *SQLBackend {
	return &SQLBackend{pool: pool, tier: tier}
}

const ddl = `
CREATE TABLE IF NOT EXISTS memory_entry (
	id text NOT NULL,
	org_id text NOT NULL,
	user_id text NOT NULL,
	scope text NOT NULL DEFAULT 'user',
	tier text NOT NULL,
	content jsonb NOT NULL,
	embedding jsonb,
	model_version text,
	created_at timestamptz NOT NULL,
	last_access_at timestamptz NOT NULL,
	decay_score double precision NOT NULL DEFAULT 1.0,
	PRIMARY KEY (org_id, user_id, tier, id)
)`

// EnsureSchema creates the backing table if it doesn't exist yet.
func (s *SQLBackend) EnsureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, ddl)
	if err != nil {
		return orcherr.Wrap(orcherr.KindValidation, "", err, "failed to ensure memory_entry schema")
	}
	return nil
}

func (s *SQLBackend) Store(ctx context.Context, e *Entry) error {
	emb, err := json.Marshal(e.Embedding)
	if err != nil {
		return orcherr.Wrap(orcherr.KindValidation, "", err, "failed to marshal embedding")
	}
	content, err := json.Marshal(e.Content)
	if err != nil {
		return orcherr.Wrap(orcherr.KindValidation, "", err, "failed to marshal content")
	}
	userID := e.UserID
	scope := e.Scope
	if scope == "" {
		scope = ScopeUser
	}
	if scope == ScopeOrg {
		userID = orgScopeSentinel
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO memory_entry (id, org_id, user_id, scope, tier, content, embedding, model_version, created_at, last_access_at, decay_score)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
		ON CONFLICT (org_id, user_id, tier, id) DO UPDATE SET
			content = EXCLUDED.content, embedding = EXCLUDED.embedding, model_version = EXCLUDED.model_version,
			last_access_at = EXCLUDED.last_access_at, decay_score = EXCLUDED.decay_score`,
		e.ID, e.OrgID, userID, string(scope), string(s.tier), content, emb, e.ModelVersion, e.CreatedAt, e.LastAccessAt, e.DecayScore)
	if err != nil {
		return orcherr.Wrap(orcherr.KindValidation, "", err, "failed to store memory entry")
	}
	return nil
}

func (s *SQLBackend) Upsert(ctx context.Context, e *Entry) error { return s.Store(ctx, e) }

// visibleClause is shared by every read query: an entry is visible if it's
// org-scoped, or if it's this caller's own user-scoped entry.
const visibleClause = "tier=$3 AND (scope='org' OR user_id=$2)"

func (s *SQLBackend) Retrieve(ctx context.Context, orgID, userID, id string) (*Entry, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, org_id, user_id, scope, content, embedding, model_version, created_at, last_access_at, decay_score
		FROM memory_entry WHERE org_id=$1 AND `+visibleClause+` AND id=$4`,
		orgID, userID, string(s.tier), id)
	return scanEntry(row, s.tier)
}

func (s *SQLBackend) Search(ctx context.Context, orgID, userID string, query map[string]any, limit int) ([]*Entry, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, org_id, user_id, scope, content, embedding, model_version, created_at, last_access_at, decay_score
		FROM memory_entry WHERE org_id=$1 AND `+visibleClause+`
		ORDER BY last_access_at DESC LIMIT $4`,
		orgID, userID, string(s.tier), nullIfZero(limit))
	if err != nil {
		return nil, orcherr.Wrap(orcherr.KindValidation, "", err, "memory search query failed")
	}
	defer rows.Close()
	var out []*Entry
	for rows.Next() {
		e, err := scanEntry(rows, s.tier)
		if err != nil {
			return nil, err
		}
		if matches(e.Content, query) {
			out = append(out, e)
		}
	}
	return out, rows.Err()
}

func (s *SQLBackend) Query(ctx context.Context, orgID, userID string, embedding []float32, modelVersion string, topK int) ([]*Entry, error) {
	all, err := s.All(ctx, orgID, userID)
	if err != nil {
		return nil, err
	}
	type scored struct {
		e   *Entry
		sim float64
	}
	var candidates []scored
	for _, e := range all {
		if e.ModelVersion != modelVersion {
			continue
		}
		sim, err := CosineSimilarity(e.Embedding, embedding)
		if err != nil {
			return nil, err
		}
		candidates = append(candidates, scored{e, sim})
	}
	for i := 1; i < len(candidates); i++ {
		for j := i; j > 0 && candidates[j-1].sim < candidates[j].sim; j-- {
			candidates[j-1], candidates[j] = candidates[j], candidates[j-1]
		}
	}
	if topK > 0 && len(candidates) > topK {
		candidates = candidates[:topK]
	}
	out := make([]*Entry, len(candidates))
	for i, c := range candidates {
		out[i] = c.e
	}
	return out, nil
}

// Delete only ever removes a row keyed to this caller's own user_id (org-
// scoped rows are stored under the org sentinel user_id, not a real
// caller's), so one user can't delete a shared entry. This is narrower than
// InMemoryBackend.Delete, which also removes an org-scoped entry of that id.
func (s *SQLBackend) Delete(ctx context.Context, orgID, userID, id string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM memory_entry WHERE org_id=$1 AND user_id=$2 AND tier=$3 AND id=$4`,
		orgID, userID, string(s.tier), id)
	return err
}

func (s *SQLBackend) Clear(ctx context.Context, orgID, userID string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM memory_entry WHERE org_id=$1 AND user_id=$2 AND tier=$3`,
		orgID, userID, string(s.tier))
	return err
}

func (s *SQLBackend) All(ctx context.Context, orgID, userID string) ([]*Entry, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, org_id, user_id, scope, content, embedding, model_version, created_at, last_access_at, decay_score
		FROM memory_entry WHERE org_id=$1 AND `+visibleClause,
		orgID, userID, string(s.tier))
	if err != nil {
		return nil, orcherr.Wrap(orcherr.KindValidation, "", err, "memory scan query failed")
	}
	defer rows.Close()
	var out []*Entry
	for rows.Next() {
		e, err := scanEntry(rows, s.tier)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// rowScanner abstracts pgx.Row / pgx.Rows so scanEntry serves both.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(row rowScanner, tier Tier) (*Entry, error) {
	var (
		e         Entry
		content   []byte
		embedding []byte
	)
	var scope string
	if err := row.Scan(&e.ID, &e.OrgID, &e.UserID, &scope, &content, &embedding, &e.ModelVersion, &e.CreatedAt, &e.LastAccessAt, &e.DecayScore); err != nil {
		return nil, orcherr.Wrap(orcherr.KindValidation, "", err, "failed to scan memory entry")
	}
	e.Scope = Scope(scope)
	if e.Scope == ScopeOrg {
		e.UserID = "" // the org sentinel stored in user_id is an implementation detail, not a real user
	}
	e.Tier = tier
	if len(content) > 0 {
		if err := json.Unmarshal(content, &e.Content); err != nil {
			return nil, orcherr.Wrap(orcherr.KindValidation, "", err, "failed to unmarshal content")
		}
	}
	if len(embedding) > 0 {
		if err := json.Unmarshal(embedding, &e.Embedding); err != nil {
			return nil, orcherr.Wrap(orcherr.KindValidation, "", err, "failed to unmarshal embedding")
		}
	}
	return &e, nil
}

func nullIfZero(limit int) int {
	if limit <= 0 {
		return 1000
	}
	return limit
}
