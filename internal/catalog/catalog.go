// Package catalog holds the achievement definition catalog: static
// configuration loaded once at startup and shared read-only across the
// process. It replaces any ambient global cache with an injected object
// that has an explicit Reload hook.
package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"

	"ivakdev/gymquest/internal/domain"
)

// Loader fetches the raw catalog document from wherever it lives (local
// file, S3 object).
type Loader interface {
	Fetch(ctx context.Context) ([]byte, error)
}

// Catalog is the validated, immutable-at-runtime achievement catalog.
// Reads take a snapshot under a read lock; Reload swaps the snapshot
// atomically, so in-flight evaluations keep a consistent view.
type Catalog struct {
	loader Loader

	mu   sync.RWMutex
	defs []domain.AchievementDefinition
	byID map[string]int // index into defs
}

// New creates a Catalog backed by the given loader. Call Load before use.
func New(loader Loader) *Catalog {
	return &Catalog{loader: loader}
}

// Load fetches, parses, and validates the catalog, replacing the current
// snapshot. Safe to call again at runtime (this is the reload hook).
func (c *Catalog) Load(ctx context.Context) error {
	raw, err := c.loader.Fetch(ctx)
	if err != nil {
		return fmt.Errorf("fetch achievement catalog: %w", err)
	}

	var parsed []domain.AchievementDefinition
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return fmt.Errorf("parse achievement catalog: %w", err)
	}

	defs, byID := validate(parsed)
	if len(defs) == 0 {
		return fmt.Errorf("achievement catalog contains no usable entries")
	}

	c.mu.Lock()
	c.defs = defs
	c.byID = byID
	c.mu.Unlock()

	log.Printf("Achievement catalog loaded: %d definitions", len(defs))
	return nil
}

// Reload re-runs Load. Separate name so call sites read as intent.
func (c *Catalog) Reload(ctx context.Context) error {
	return c.Load(ctx)
}

// Definitions returns the catalog entries in stable catalog order. The
// returned slice is shared and must be treated as read-only.
func (c *Catalog) Definitions() []domain.AchievementDefinition {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.defs
}

// Get looks up one definition by ID.
func (c *Catalog) Get(id string) (domain.AchievementDefinition, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	idx, ok := c.byID[id]
	if !ok {
		return domain.AchievementDefinition{}, false
	}
	return c.defs[idx], true
}

// validate filters out malformed entries: missing IDs, duplicates, unknown
// ranks, prerequisites that do not resolve, and prerequisite cycles. Bad
// entries are logged and dropped, never fatal; the rest of the catalog
// keeps working.
func validate(parsed []domain.AchievementDefinition) ([]domain.AchievementDefinition, map[string]int) {
	seen := make(map[string]bool, len(parsed))
	kept := make([]domain.AchievementDefinition, 0, len(parsed))

	for _, def := range parsed {
		switch {
		case def.ID == "":
			log.Printf("WARN: dropping achievement with empty id (%q)", def.Name)
			continue
		case seen[def.ID]:
			log.Printf("WARN: dropping duplicate achievement id %q", def.ID)
			continue
		case !def.Rank.Valid():
			log.Printf("WARN: dropping achievement %q: unknown rank %q", def.ID, def.Rank)
			continue
		case def.Requirement.TargetValue <= 0:
			log.Printf("WARN: dropping achievement %q: non-positive target value", def.ID)
			continue
		case def.XPReward < 0 || def.Points < 0:
			log.Printf("WARN: dropping achievement %q: negative reward", def.ID)
			continue
		}
		seen[def.ID] = true
		kept = append(kept, def)
	}

	// Prerequisites must resolve within the kept set and form no cycle.
	index := make(map[string]int, len(kept))
	for i, def := range kept {
		index[def.ID] = i
	}

	final := make([]domain.AchievementDefinition, 0, len(kept))
	for _, def := range kept {
		if def.PrerequisiteID != "" {
			if _, ok := index[def.PrerequisiteID]; !ok {
				log.Printf("WARN: dropping achievement %q: prerequisite %q not in catalog", def.ID, def.PrerequisiteID)
				continue
			}
			if hasCycle(def.ID, kept, index) {
				log.Printf("WARN: dropping achievement %q: prerequisite cycle", def.ID)
				continue
			}
		}
		final = append(final, def)
	}

	byID := make(map[string]int, len(final))
	for i, def := range final {
		byID[def.ID] = i
	}
	return final, byID
}

// hasCycle walks the prerequisite chain from start looking for a loop.
func hasCycle(start string, defs []domain.AchievementDefinition, index map[string]int) bool {
	visited := make(map[string]bool)
	id := start
	for id != "" {
		if visited[id] {
			return true
		}
		visited[id] = true
		idx, ok := index[id]
		if !ok {
			return false
		}
		id = defs[idx].PrerequisiteID
	}
	return false
}
