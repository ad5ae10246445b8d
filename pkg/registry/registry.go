// Package registry tracks the live resource population in memory. The
// engine consults it for quota counts and compliance scans; it is advisory
// bookkeeping, rebuilt from the audit trail at startup, and is not a source
// of truth.
package registry

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/jolinysx/Snowflake-RBAC-Structure-v2/pkg/engine"
)

// Memory is an in-memory engine.ResourceRegistry. All methods are safe for
// concurrent use; Track and Release serialize on one mutex so a quota check
// followed by a Track never observes a torn count.
type Memory struct {
	mu        sync.RWMutex
	resources map[string]engine.LiveResource
	logger    zerolog.Logger
}

// NewMemory creates an empty in-memory registry.
func NewMemory(logger zerolog.Logger) *Memory {
	return &Memory{
		resources: make(map[string]engine.LiveResource),
		logger:    logger.With().Str("component", "resource-registry").Logger(),
	}
}

// Track registers a resource as live. Re-tracking an existing ID overwrites
// the previous entry.
func (m *Memory) Track(ctx context.Context, res engine.LiveResource) error {
	if res.ID == "" {
		return fmt.Errorf("resource ID is required")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.resources[res.ID] = res
	m.logger.Debug().
		Str("resource_id", res.ID).
		Str("owner", res.Owner).
		Str("scope", res.Scope).
		Msg("Resource tracked")
	return nil
}

// Release removes a resource from the live set. Releasing an unknown ID is
// a no-op: the delete may race a scan that already dropped it.
func (m *Memory) Release(ctx context.Context, resourceID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.resources[resourceID]; !ok {
		return nil
	}
	delete(m.resources, resourceID)
	m.logger.Debug().Str("resource_id", resourceID).Msg("Resource released")
	return nil
}

// LiveResourceCount returns the number of live resources owned by the actor
// within the scope. An empty scope counts across all environments.
func (m *Memory) LiveResourceCount(ctx context.Context, actor, scope string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	count := 0
	for _, res := range m.resources {
		if res.Owner != actor {
			continue
		}
		if scope != "" && res.Scope != scope {
			continue
		}
		count++
	}
	return count, nil
}

// LiveResources returns all live resources in the scope. An empty scope
// returns every resource.
func (m *Memory) LiveResources(ctx context.Context, scope string) ([]engine.LiveResource, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]engine.LiveResource, 0, len(m.resources))
	for _, res := range m.resources {
		if scope != "" && res.Scope != scope {
			continue
		}
		out = append(out, res)
	}
	return out, nil
}

// Len returns the total number of tracked resources.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.resources)
}
