// Package node defines the data-plane node registration record the
// control plane uses to resolve a node name to a base URL for migrations.
package node

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrNotFound is returned when no node exists for a name.
var ErrNotFound = errors.New("node: not found")

// ErrInvalid is returned when a node fails validation.
var ErrInvalid = errors.New("node: invalid")

// StatusHealthy is the only status this registry assigns a node today: it
// is set on every registration and refreshed on every re-registration
// (there is no separate liveness probe in this system, §9 non-goal scope).
const StatusHealthy = "healthy"

// Node is a named data-plane instance the control plane can address.
type Node struct {
	Name          string
	BaseURL       string
	Status        string
	LastHeartbeat time.Time
}

// Validate checks the structural invariants for registration.
func (n Node) Validate() error {
	if n.Name == "" {
		return fmt.Errorf("%w: name must not be empty", ErrInvalid)
	}
	if n.BaseURL == "" {
		return fmt.Errorf("%w: base_url must not be empty", ErrInvalid)
	}
	return nil
}

// Registry is the node directory. Register is an upsert keyed by Name: a
// second registration under the same name replaces the base URL and
// refreshes the heartbeat, rather than erroring (SPEC_FULL.md,
// "SUPPLEMENTED FEATURES").
type Registry interface {
	Register(ctx context.Context, n Node) (Node, error)
	Get(ctx context.Context, name string) (Node, error)
	List(ctx context.Context) ([]Node, error)
}
