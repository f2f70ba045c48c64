// Package blueprint holds the Blueprint aggregate and its optimistic
// concurrency (version-lock) semantics, grounded in the tag
// compare-and-swap pattern used for DAG versioning.
package blueprint

import (
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/orbitalflow/engine/internal/node"
	"github.com/orbitalflow/engine/internal/orcherr"
)

// NewSentinel is the version-lock value a client sends when creating a
// blueprint for the first time (there is no prior version to race against).
const NewSentinel = "__new__"

// Metadata carries descriptive, non-semantic blueprint fields.
type Metadata struct {
	Name  string   `json:"name,omitempty"`
	Owner string   `json:"owner,omitempty"`
	Tags  []string `json:"tags,omitempty"`
}

// Blueprint is the persisted, versioned definition of a workflow graph.
type Blueprint struct {
	ID        uuid.UUID    `json:"id"`
	Version   int          `json:"version"`
	Nodes     []*node.Spec `json:"nodes"`
	Metadata  Metadata     `json:"metadata,omitempty"`
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`
}

// VersionLock renders the value clients must echo back in the
// X-Version-Lock header to mutate this blueprint.
func (b *Blueprint) VersionLock() string {
	return b.ID.String() + ":" + strconv.Itoa(b.Version)
}

// NodeByID returns the node with the given ID, or nil.
func (b *Blueprint) NodeByID(id string) *node.Spec {
	for _, n := range b.Nodes {
		if n.ID == id {
			return n
		}
	}
	return nil
}

// CheckVersionLock implements the compare-and-swap gate for mutation
// endpoints: "__new__" only succeeds against a blueprint that does not yet
// exist (caller handles that case before constructing a Blueprint); any
// other supplied lock must match the blueprint's current lock exactly.
func (b *Blueprint) CheckVersionLock(supplied string) error {
	if supplied == "" {
		return orcherr.New(orcherr.KindVersionConflict, "", "missing version lock")
	}
	if supplied == NewSentinel {
		return orcherr.New(orcherr.KindVersionConflict, "", "blueprint already exists, cannot use __new__")
	}
	if supplied != b.VersionLock() {
		return orcherr.New(orcherr.KindVersionConflict, "", "version lock mismatch: expected %s", b.VersionLock())
	}
	return nil
}

// Validate runs per-node Validate and checks for duplicate IDs and
// depends_on references to nodes that don't exist in the blueprint.
func (b *Blueprint) Validate() error {
	seen := make(map[string]bool, len(b.Nodes))
	for _, n := range b.Nodes {
		if seen[n.ID] {
			return orcherr.New(orcherr.KindValidation, n.ID, "duplicate node id")
		}
		seen[n.ID] = true
		if err := n.Validate(); err != nil {
			return err
		}
	}
	for _, n := range b.Nodes {
		for _, dep := range n.DependsOn {
			if !seen[dep] {
				return orcherr.New(orcherr.KindValidation, n.ID, "depends_on references unknown node %q", dep)
			}
		}
	}
	return nil
}
