// Package memory implements the four-tier memory subsystem (working,
// episodic, semantic, procedural), using a repository pattern for
// persistence and pgx for the SQL-backed tiers.
package memory

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/orbitalflow/engine/internal/orcherr"
)

// Tier names the four memory scopes a node or agent can read/write.
type Tier string

const (
	TierWorking    Tier = "working"
	TierEpisodic   Tier = "episodic"
	TierSemantic   Tier = "semantic"
	TierProcedural Tier = "procedural"
)

// Scope controls which other users within the same org can read an entry.
type Scope string

const (
	// ScopeUser is private to the entry's UserID within its org. The
	// zero value of Scope behaves as ScopeUser so existing callers that
	// never set it keep their current (private) behavior.
	ScopeUser Scope = "user"
	// ScopeOrg is readable by every user in the entry's OrgID.
	ScopeOrg Scope = "org"
)

// Entry is one memory record, RBAC-scoped to an org and, unless Scope is
// ScopeOrg, to a single user within that org.
type Entry struct {
	ID          string         `json:"id"`
	OrgID       string         `json:"org_id"`
	UserID      string         `json:"user_id"`
	Scope       Scope          `json:"scope,omitempty"`
	Tier        Tier           `json:"tier"`
	Content     map[string]any `json:"content"`
	Embedding   []float32      `json:"embedding,omitempty"`
	ModelVersion string        `json:"model_version,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	LastAccessAt time.Time     `json:"last_access_at"`
	DecayScore  float64        `json:"decay_score"`
}

// visibleTo reports whether e should be returned to a read scoped to
// (orgID, userID): org-scoped entries are visible to every user in the
// org, user-scoped entries only to their own UserID.
func (e *Entry) visibleTo(orgID, userID string) bool {
	if e.OrgID != orgID {
		return false
	}
	if e.Scope == ScopeOrg {
		return true
	}
	return e.UserID == userID
}

// Backend is the common store/retrieve/search/delete/clear contract each
// tier's backend satisfies, portable across an in-memory, Redis, or
// Postgres implementation — none of which the subsystem's callers
// distinguish between.
type Backend interface {
	Store(ctx context.Context, e *Entry) error
	Retrieve(ctx context.Context, orgID, userID, id string) (*Entry, error)
	Search(ctx context.Context, orgID, userID string, query map[string]any, limit int) ([]*Entry, error)
	Delete(ctx context.Context, orgID, userID, id string) error
	Clear(ctx context.Context, orgID, userID string) error
	All(ctx context.Context, orgID, userID string) ([]*Entry, error)
}

// VectorBackend additionally supports vector similarity search; only
// semantic and procedural tiers require it.
type VectorBackend interface {
	Backend
	Upsert(ctx context.Context, e *Entry) error
	Query(ctx context.Context, orgID, userID string, embedding []float32, modelVersion string, topK int) ([]*Entry, error)
}

// Subsystem fans out to a Backend per tier and enforces RBAC (org/user
// scoping) uniformly ahead of every operation.
type Subsystem struct {
	backends map[Tier]Backend
}

func New(backends map[Tier]Backend) *Subsystem {
	return &Subsystem{backends: backends}
}

func (s *Subsystem) backend(tier Tier) (Backend, error) {
	b, ok := s.backends[tier]
	if !ok {
		return nil, orcherr.New(orcherr.KindValidation, "", "no backend configured for memory tier %q", tier)
	}
	return b, nil
}

func (s *Subsystem) Store(ctx context.Context, e *Entry) error {
	if e.OrgID == "" || e.UserID == "" {
		return orcherr.New(orcherr.KindValidation, "", "memory entries require org_id and user_id")
	}
	if e.Scope == "" {
		e.Scope = ScopeUser
	}
	b, err := s.backend(e.Tier)
	if err != nil {
		return err
	}
	e.CreatedAt = time.Now()
	e.LastAccessAt = e.CreatedAt
	e.DecayScore = 1.0
	return b.Store(ctx, e)
}

func (s *Subsystem) Retrieve(ctx context.Context, orgID, userID string, tier Tier, id string) (*Entry, error) {
	b, err := s.backend(tier)
	if err != nil {
		return nil, err
	}
	e, err := b.Retrieve(ctx, orgID, userID, id)
	if err != nil {
		return nil, err
	}
	e.LastAccessAt = time.Now()
	return e, nil
}

func (s *Subsystem) Search(ctx context.Context, orgID, userID string, tier Tier, query map[string]any, limit int) ([]*Entry, error) {
	b, err := s.backend(tier)
	if err != nil {
		return nil, err
	}
	return b.Search(ctx, orgID, userID, query, limit)
}

func (s *Subsystem) Delete(ctx context.Context, orgID, userID string, tier Tier, id string) error {
	b, err := s.backend(tier)
	if err != nil {
		return err
	}
	return b.Delete(ctx, orgID, userID, id)
}

func (s *Subsystem) Clear(ctx context.Context, orgID, userID string, tier Tier) error {
	b, err := s.backend(tier)
	if err != nil {
		return err
	}
	return b.Clear(ctx, orgID, userID)
}

// Upsert and Query require tiers backed by a VectorBackend.
func (s *Subsystem) Upsert(ctx context.Context, e *Entry) error {
	b, err := s.backend(e.Tier)
	if err != nil {
		return err
	}
	vb, ok := b.(VectorBackend)
	if !ok {
		return orcherr.New(orcherr.KindValidation, "", "tier %q has no vector backend configured", e.Tier)
	}
	return vb.Upsert(ctx, e)
}

func (s *Subsystem) Query(ctx context.Context, orgID, userID string, tier Tier, embedding []float32, modelVersion string, topK int) ([]*Entry, error) {
	b, err := s.backend(tier)
	if err != nil {
		return nil, err
	}
	vb, ok := b.(VectorBackend)
	if !ok {
		return nil, orcherr.New(orcherr.KindValidation, "", "tier %q has no vector backend configured", tier)
	}
	return vb.Query(ctx, orgID, userID, embedding, modelVersion, topK)
}

// Snapshot assembles a flat working-memory view across the requested
// scopes for an agent executor's think() step.
func (s *Subsystem) Snapshot(ctx context.Context, orgID, userID string, scopes []string) (map[string]any, error) {
	out := make(map[string]any, len(scopes))
	for _, scope := range scopes {
		tier := Tier(scope)
		b, err := s.backend(tier)
		if err != nil {
			continue
		}
		entries, err := b.All(ctx, orgID, userID)
		if err != nil {
			return nil, err
		}
		out[scope] = entries
	}
	return out, nil
}

// DecayPass lowers DecayScore for entries not accessed recently and
// deletes those that fall below the floor, run periodically per tier.
func (s *Subsystem) DecayPass(ctx context.Context, orgID, userID string, tier Tier, halfLife time.Duration, floor float64) (int, error) {
	b, err := s.backend(tier)
	if err != nil {
		return 0, err
	}
	entries, err := b.All(ctx, orgID, userID)
	if err != nil {
		return 0, err
	}
	removed := 0
	now := time.Now()
	for _, e := range entries {
		age := now.Sub(e.LastAccessAt)
		e.DecayScore = math.Exp(-float64(age) / float64(halfLife))
		if e.DecayScore < floor {
			if err := b.Delete(ctx, orgID, userID, e.ID); err != nil {
				return removed, err
			}
			removed++
			continue
		}
		if err := b.Store(ctx, e); err != nil {
			return removed, err
		}
	}
	return removed, nil
}

// CosineSimilarity computes similarity between two embeddings of equal
// dimension; mismatched dimensions are a DimensionMismatch error per the
// vector contract, not a silently wrong score.
func CosineSimilarity(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, orcherr.New(orcherr.KindDimensionMismatch, "", "embedding dimensions differ: %d vs %d", len(a), len(b))
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0, nil
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb)), nil
}

// InMemoryBackend is a VectorBackend suitable for the working tier and
// for tests; semantic/procedural tiers use the pgx-backed implementation
// in memory_sql.go for anything beyond a single process.
type InMemoryBackend struct {
	mu      sync.RWMutex
	entries map[string]*Entry // keyed by orgID + "/" + userID + "/" + id
}

func NewInMemoryBackend() *InMemoryBackend {
	return &InMemoryBackend{entries: make(map[string]*Entry)}
}

// orgScopeSentinel stands in for UserID in the map key of an org-scoped
// entry, since its visibility doesn't depend on any one user's ID.
const orgScopeSentinel = "_org_"

func key(orgID, userID, id string) string { return orgID + "/" + userID + "/" + id }

func entryKey(e *Entry) string {
	if e.Scope == ScopeOrg {
		return key(e.OrgID, orgScopeSentinel, e.ID)
	}
	return key(e.OrgID, e.UserID, e.ID)
}

func (b *InMemoryBackend) Store(_ context.Context, e *Entry) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	cp := *e
	b.entries[entryKey(e)] = &cp
	return nil
}

func (b *InMemoryBackend) Upsert(ctx context.Context, e *Entry) error { return b.Store(ctx, e) }

func (b *InMemoryBackend) Retrieve(_ context.Context, orgID, userID, id string) (*Entry, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if e, ok := b.entries[key(orgID, userID, id)]; ok {
		cp := *e
		return &cp, nil
	}
	if e, ok := b.entries[key(orgID, orgScopeSentinel, id)]; ok {
		cp := *e
		return &cp, nil
	}
	return nil, orcherr.New(orcherr.KindValidation, "", "memory entry %q not found", id)
}

func (b *InMemoryBackend) Search(_ context.Context, orgID, userID string, query map[string]any, limit int) ([]*Entry, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	var out []*Entry
	for _, e := range b.entries {
		if !e.visibleTo(orgID, userID) {
			continue
		}
		if matches(e.Content, query) {
			cp := *e
			out = append(out, &cp)
		}
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (b *InMemoryBackend) Query(_ context.Context, orgID, userID string, embedding []float32, modelVersion string, topK int) ([]*Entry, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	var candidates []scored
	for _, e := range b.entries {
		if !e.visibleTo(orgID, userID) || e.ModelVersion != modelVersion {
			continue
		}
		sim, err := CosineSimilarity(e.Embedding, embedding)
		if err != nil {
			return nil, err
		}
		candidates = append(candidates, scored{e, sim})
	}
	sortByScoreDesc(candidates)
	if topK > 0 && len(candidates) > topK {
		candidates = candidates[:topK]
	}
	out := make([]*Entry, len(candidates))
	for i, c := range candidates {
		cp := *c.e
		out[i] = &cp
	}
	return out, nil
}

type scored struct {
	e   *Entry
	sim float64
}

func sortByScoreDesc(c []scored) {
	for i := 1; i < len(c); i++ {
		for j := i; j > 0 && c[j-1].sim < c[j].sim; j-- {
			c[j-1], c[j] = c[j], c[j-1]
		}
	}
}

// Delete removes a user-scoped entry the caller owns, or an org-scoped
// entry visible to them: it never lets one user delete another user's
// private entry by guessing its ID.
func (b *InMemoryBackend) Delete(_ context.Context, orgID, userID, id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.entries, key(orgID, userID, id))
	delete(b.entries, key(orgID, orgScopeSentinel, id))
	return nil
}

// Clear removes only this user's private entries, never org-shared ones:
// one user clearing their memory shouldn't wipe what the rest of the org sees.
func (b *InMemoryBackend) Clear(_ context.Context, orgID, userID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	prefix := orgID + "/" + userID + "/"
	for k := range b.entries {
		if len(k) >= len(prefix) && k[:len(prefix)] == prefix {
			delete(b.entries, k)
		}
	}
	return nil
}

func (b *InMemoryBackend) All(_ context.Context, orgID, userID string) ([]*Entry, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	var out []*Entry
	for _, e := range b.entries {
		if e.visibleTo(orgID, userID) {
			cp := *e
			out = append(out, &cp)
		}
	}
	return out, nil
}

func matches(content, query map[string]any) bool {
	for k, v := range query {
		if content[k] != v {
			return false
		}
	}
	return true
}
