// Redis-backed episodic tier: short-lived, high-churn conversation/event
// history where a full SQL round-trip per write is wasteful. Built on
// the fast-KV cache usage pattern from common/redis.
package memory

import (
	"context"
	"encoding/json"

	"github.com/orbitalflow/engine/common/redis"
	"github.com/orbitalflow/engine/internal/orcherr"
)

// RedisBackend implements Backend (not VectorBackend: episodic recall is
// not similarity-ranked) over a flat hash per org/user. All and Search
// return entries in hash order, not by recency. Entry.Scope is ignored:
// an org-scoped entry is stored in its writer's hash and is visible only
// to that user.
type RedisBackend struct {
	client *redis.Client
	tier   Tier
}

func NewRedisBackend(client *redis.Client, tier Tier) *RedisBackend {
	return &RedisBackend{client: client, tier: tier}
}

func (r *RedisBackend) hashKey(orgID, userID string) string {
	return "memory:" + string(r.tier) + ":" + orgID + ":" + userID
}

func (r *RedisBackend) Store(ctx context.Context, e *Entry) error {
	b, err := json.Marshal(e)
	if err != nil {
		return orcherr.Wrap(orcherr.KindValidation, "", err, "failed to marshal memory entry")
	}
	if err := r.client.SetHash(ctx, r.hashKey(e.OrgID, e.UserID), e.ID, string(b)); err != nil {
		return orcherr.Wrap(orcherr.KindValidation, "", err, "failed to store memory entry")
	}
	return nil
}

func (r *RedisBackend) Retrieve(ctx context.Context, orgID, userID, id string) (*Entry, error) {
	v, err := r.client.GetHash(ctx, r.hashKey(orgID, userID), id)
	if err != nil {
		return nil, orcherr.New(orcherr.KindValidation, "", "memory entry %q not found", id)
	}
	var e Entry
	if err := json.Unmarshal([]byte(v), &e); err != nil {
		return nil, orcherr.Wrap(orcherr.KindValidation, "", err, "failed to unmarshal memory entry")
	}
	return &e, nil
}

func (r *RedisBackend) Search(ctx context.Context, orgID, userID string, query map[string]any, limit int) ([]*Entry, error) {
	all, err := r.All(ctx, orgID, userID)
	if err != nil {
		return nil, err
	}
	var out []*Entry
	for _, e := range all {
		if matches(e.Content, query) {
			out = append(out, e)
		}
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (r *RedisBackend) Delete(ctx context.Context, orgID, userID, id string) error {
	return r.client.DeleteHash(ctx, r.hashKey(orgID, userID), id)
}

func (r *RedisBackend) Clear(ctx context.Context, orgID, userID string) error {
	return r.client.Delete(ctx, r.hashKey(orgID, userID))
}

func (r *RedisBackend) All(ctx context.Context, orgID, userID string) ([]*Entry, error) {
	raw, err := r.client.GetAllHash(ctx, r.hashKey(orgID, userID))
	if err != nil {
		return nil, orcherr.Wrap(orcherr.KindValidation, "", err, "failed to list memory entries")
	}
	out := make([]*Entry, 0, len(raw))
	for _, v := range raw {
		var e Entry
		if err := json.Unmarshal([]byte(v), &e); err != nil {
			continue
		}
		out = append(out, &e)
	}
	return out, nil
}
