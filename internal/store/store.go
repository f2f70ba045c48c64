// Package store is the append-only execution record store, implementing
// status-transition tracking and a restart-to-failed sweep for runs
// orphaned by a process crash.
package store

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/orbitalflow/engine/internal/orcherr"
)

// Status is the lifecycle state of an execution record.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// terminal reports whether a status is a terminal state.
func (s Status) terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// NodeRecord tracks one node's execution within a run.
type NodeRecord struct {
	NodeID      string    `json:"node_id"`
	Status      Status    `json:"status"`
	Output      any       `json:"output,omitempty"`
	Error       string    `json:"error,omitempty"`
	Attempts    int       `json:"attempts"`
	StartedAt   time.Time `json:"started_at,omitempty"`
	CompletedAt time.Time `json:"completed_at,omitempty"`
	Cached      bool      `json:"cached,omitempty"`
}

// Record is the append-only execution record for one blueprint run.
type Record struct {
	ExecutionID     uuid.UUID              `json:"execution_id"`
	BlueprintID     uuid.UUID              `json:"blueprint_id"`
	Status          Status                 `json:"status"`
	Nodes           map[string]*NodeRecord `json:"nodes"`
	StartedAt       time.Time              `json:"started_at"`
	UpdatedAt       time.Time              `json:"updated_at"`
	CompletedAt     time.Time              `json:"completed_at,omitempty"`
	CancelledReason string                 `json:"canceled_reason,omitempty"`
	RestartedFrom   *uuid.UUID             `json:"restarted_from,omitempty"`
}

// Backend persists Records. The in-memory backend satisfies this for
// tests and single-process deployments; a Redis-backed backend can
// satisfy it when a fast KV store is configured.
type Backend interface {
	Save(ctx context.Context, r *Record) error
	Load(ctx context.Context, id uuid.UUID) (*Record, error)
	ListRunning(ctx context.Context) ([]*Record, error)
}

// MemoryBackend is the default in-memory Backend.
type MemoryBackend struct {
	mu      sync.RWMutex
	records map[uuid.UUID]*Record
}

func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{records: make(map[uuid.UUID]*Record)}
}

func (m *MemoryBackend) Save(_ context.Context, r *Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *r
	m.records[r.ExecutionID] = &cp
	return nil
}

func (m *MemoryBackend) Load(_ context.Context, id uuid.UUID) (*Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.records[id]
	if !ok {
		return nil, orcherr.New(orcherr.KindValidation, "", "execution %s not found", id)
	}
	cp := *r
	return &cp, nil
}

func (m *MemoryBackend) ListRunning(_ context.Context) ([]*Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*Record
	for _, r := range m.records {
		if r.Status == StatusRunning {
			cp := *r
			out = append(out, &cp)
		}
	}
	return out, nil
}

// Store is the transactional façade the engine drives.
type Store struct {
	backend Backend
	mu      sync.Mutex
}

func New(backend Backend) *Store {
	return &Store{backend: backend}
}

// Create starts a new pending/running execution record.
func (s *Store) Create(ctx context.Context, executionID, blueprintID uuid.UUID, nodeIDs []string) (*Record, error) {
	r := &Record{
		ExecutionID: executionID,
		BlueprintID: blueprintID,
		Status:      StatusRunning,
		Nodes:       make(map[string]*NodeRecord, len(nodeIDs)),
		StartedAt:   time.Now(),
		UpdatedAt:   time.Now(),
	}
	for _, id := range nodeIDs {
		r.Nodes[id] = &NodeRecord{NodeID: id, Status: StatusPending}
	}
	if err := s.backend.Save(ctx, r); err != nil {
		return nil, err
	}
	return r, nil
}

// TransitionNode atomically updates one node's record within a run.
func (s *Store) TransitionNode(ctx context.Context, executionID uuid.UUID, nodeID string, mutate func(*NodeRecord)) (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, err := s.backend.Load(ctx, executionID)
	if err != nil {
		return nil, err
	}
	nr, ok := r.Nodes[nodeID]
	if !ok {
		return nil, orcherr.New(orcherr.KindValidation, nodeID, "node not part of execution %s", executionID)
	}
	mutate(nr)
	r.UpdatedAt = time.Now()
	if err := s.backend.Save(ctx, r); err != nil {
		return nil, err
	}
	return r, nil
}

// TransitionExecution atomically moves an execution to a terminal or
// intermediate status; it refuses to move a record out of a terminal
// state (append-only: once completed/failed/cancelled, it stays that way).
func (s *Store) TransitionExecution(ctx context.Context, executionID uuid.UUID, status Status, reason string) (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, err := s.backend.Load(ctx, executionID)
	if err != nil {
		return nil, err
	}
	if r.Status.terminal() {
		return r, orcherr.New(orcherr.KindValidation, "", "execution %s already in terminal state %s", executionID, r.Status)
	}
	r.Status = status
	r.UpdatedAt = time.Now()
	if status.terminal() {
		r.CompletedAt = time.Now()
	}
	if status == StatusCancelled {
		r.CancelledReason = reason
	}
	if err := s.backend.Save(ctx, r); err != nil {
		return nil, err
	}
	return r, nil
}

func (s *Store) Get(ctx context.Context, executionID uuid.UUID) (*Record, error) {
	return s.backend.Load(ctx, executionID)
}

// SweepRestarts transitions every RUNNING record to FAILED. Call once at
// process startup: a record still RUNNING means the previous process
// died mid-execution, and no in-memory scheduler state survived it to
// resume from.
func (s *Store) SweepRestarts(ctx context.Context) (int, error) {
	running, err := s.backend.ListRunning(ctx)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, r := range running {
		r.Status = StatusFailed
		r.UpdatedAt = time.Now()
		r.CompletedAt = time.Now()
		if err := s.backend.Save(ctx, r); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}
