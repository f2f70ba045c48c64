package store

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"

	"github.com/orbitalflow/engine/common/redis"
	"github.com/orbitalflow/engine/internal/orcherr"
)

// RedisBackend persists Records as JSON blobs under an "execution:" key
// prefix, for deployments that configure the fast-KV backend instead of
// the default in-process map.
type RedisBackend struct {
	client *redis.Client
	prefix string
}

func NewRedisBackend(client *redis.Client) *RedisBackend {
	return &RedisBackend{client: client, prefix: "execution:"}
}

func (r *RedisBackend) key(id uuid.UUID) string {
	return r.prefix + id.String()
}

func (r *RedisBackend) Save(ctx context.Context, rec *Record) error {
	b, err := json.Marshal(rec)
	if err != nil {
		return orcherr.Wrap(orcherr.KindValidation, "", err, "failed to marshal execution record")
	}
	if err := r.client.Set(ctx, r.key(rec.ExecutionID), string(b), 0); err != nil {
		return orcherr.Wrap(orcherr.KindValidation, "", err, "failed to save execution record")
	}
	// Maintain a secondary index of execution IDs ever seen running, since
	// Redis has no native index over a JSON field; ListRunning re-checks
	// each record's current status, so entries that later terminate are
	// filtered out there rather than removed from this index eagerly.
	if rec.Status == StatusRunning {
		if err := r.client.SetHash(ctx, r.prefix+"running", rec.ExecutionID.String(), "1"); err != nil {
			return orcherr.Wrap(orcherr.KindValidation, "", err, "failed to update running index")
		}
	}
	return nil
}

func (r *RedisBackend) Load(ctx context.Context, id uuid.UUID) (*Record, error) {
	v, err := r.client.Get(ctx, r.key(id))
	if err != nil {
		return nil, orcherr.New(orcherr.KindValidation, "", "execution %s not found", id)
	}
	var rec Record
	if err := json.Unmarshal([]byte(v), &rec); err != nil {
		return nil, orcherr.Wrap(orcherr.KindValidation, "", err, "failed to unmarshal execution record")
	}
	return &rec, nil
}

func (r *RedisBackend) ListRunning(ctx context.Context) ([]*Record, error) {
	ids, err := r.client.GetAllHash(ctx, r.prefix+"running")
	if err != nil {
		return nil, orcherr.Wrap(orcherr.KindValidation, "", err, "failed to read running index")
	}
	var out []*Record
	for idStr := range ids {
		id, err := uuid.Parse(idStr)
		if err != nil {
			continue
		}
		rec, err := r.Load(ctx, id)
		if err != nil {
			continue
		}
		if rec.Status == StatusRunning {
			out = append(out, rec)
		}
	}
	return out, nil
}
