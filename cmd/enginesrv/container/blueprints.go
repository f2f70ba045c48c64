package container

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/orbitalflow/engine/internal/blueprint"
	"github.com/orbitalflow/engine/internal/compiler"
	"github.com/orbitalflow/engine/internal/engine"
	"github.com/orbitalflow/engine/internal/eventbus"
	"github.com/orbitalflow/engine/internal/executor"
	"github.com/orbitalflow/engine/internal/orcherr"
	"github.com/orbitalflow/engine/internal/store"
)

// blueprintStore is the persistence contract blueprint handlers and the
// sub-workflow runner depend on; blueprintRepo (in-memory) and
// postgresBlueprintRepo (durable) both satisfy it, selected in New based
// on whether a database connection is configured.
type blueprintStore interface {
	Get(id uuid.UUID) (*blueprint.Blueprint, bool)
	GetVersion(id uuid.UUID, version int) (*blueprint.Blueprint, bool)
	Create(bp *blueprint.Blueprint) error
	Update(bp *blueprint.Blueprint) error
	List() []*blueprint.Blueprint
}

// blueprintRepo is the in-process blueprint store: every version of every
// blueprint, keyed by ID, with the current version tracked separately so
// CheckVersionLock has something to compare against.
type blueprintRepo struct {
	mu       sync.RWMutex
	current  map[uuid.UUID]*blueprint.Blueprint
	versions map[uuid.UUID]map[int]*blueprint.Blueprint
}

func newBlueprintRepo() *blueprintRepo {
	return &blueprintRepo{
		current:  make(map[uuid.UUID]*blueprint.Blueprint),
		versions: make(map[uuid.UUID]map[int]*blueprint.Blueprint),
	}
}

func (r *blueprintRepo) Get(id uuid.UUID) (*blueprint.Blueprint, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	bp, ok := r.current[id]
	return bp, ok
}

func (r *blueprintRepo) GetVersion(id uuid.UUID, version int) (*blueprint.Blueprint, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	byVersion, ok := r.versions[id]
	if !ok {
		return nil, false
	}
	bp, ok := byVersion[version]
	return bp, ok
}

// Create inserts a brand new blueprint at version 1.
func (r *blueprintRepo) Create(bp *blueprint.Blueprint) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.current[bp.ID]; exists {
		return orcherr.New(orcherr.KindVersionConflict, "", "blueprint %s already exists", bp.ID)
	}
	bp.Version = 1
	now := time.Now()
	bp.CreatedAt, bp.UpdatedAt = now, now
	stored := *bp
	r.current[bp.ID] = &stored
	r.versions[bp.ID] = map[int]*blueprint.Blueprint{1: &stored}
	return nil
}

// Update stores a new version of an existing blueprint after the caller
// has already checked the supplied version lock.
func (r *blueprintRepo) Update(bp *blueprint.Blueprint) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	bp.Version++
	bp.UpdatedAt = time.Now()
	stored := *bp
	r.current[bp.ID] = &stored
	r.versions[bp.ID][bp.Version] = &stored
	return nil
}

func (r *blueprintRepo) List() []*blueprint.Blueprint {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*blueprint.Blueprint, 0, len(r.current))
	for _, bp := range r.current {
		out = append(out, bp)
	}
	return out
}

// subworkflowRunner satisfies executor.Deps.RunSubworkflow by compiling
// and running a nested blueprint through the same engine/store/bus as the
// parent, so nested executions show up in the one execution store.
type subworkflowRunner struct {
	blueprints  blueprintStore
	store       *store.Store
	deps        *executor.Deps
	bus         *eventbus.Bus
	log         *slog.Logger
	concurrency int64
	compiler    *compiler.Validator
}

func (s *subworkflowRunner) Run(ctx context.Context, blueprintID string, version int, inputs map[string]any) (map[string]any, error) {
	id, err := uuid.Parse(blueprintID)
	if err != nil {
		return nil, orcherr.Wrap(orcherr.KindValidation, "", err, "invalid sub-workflow blueprint id %q", blueprintID)
	}

	var bp *blueprint.Blueprint
	var ok bool
	if version > 0 {
		bp, ok = s.blueprints.GetVersion(id, version)
	} else {
		bp, ok = s.blueprints.Get(id)
	}
	if !ok {
		return nil, orcherr.New(orcherr.KindValidation, "", "sub-workflow blueprint %s (version %d) not found", blueprintID, version)
	}

	cg, err := s.compiler.Compile(bp)
	if err != nil {
		return nil, err
	}

	eng := engine.New(s.deps, s.bus, s.store, s.log, s.concurrency)
	rec, err := eng.Run(ctx, cg, inputs)
	if err != nil {
		return nil, err
	}

	out := make(map[string]any, len(rec.Nodes))
	for nodeID, nr := range rec.Nodes {
		out[nodeID] = nr.Output
	}
	return out, nil
}
