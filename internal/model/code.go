package model

import (
	"fmt"
	"sort"
)

// HierarchicalCode is one thematic code in the discovered taxonomy
type HierarchicalCode struct {
	ID          string   `json:"id"`                    // Stable, human-meaningful token (e.g. "AI_RISK")
	Name        string   `json:"name"`                  // Display name
	Description string   `json:"description,omitempty"` // What the code captures
	ParentID    string   `json:"parent_id,omitempty"`   // Empty for root codes
	Level       int      `json:"level"`                 // 0 = root, child level = parent level + 1
	Examples    []string `json:"examples,omitempty"`    // Example spans from the corpus
}

// Taxonomy is the hierarchical code set discovered for a corpus.
// Once discovery completes it is a read-only snapshot shared by all
// document workers; nothing may mutate it afterwards.
type Taxonomy struct {
	Codes []HierarchicalCode `json:"codes"`
}

// Get returns the code with the given id
func (t *Taxonomy) Get(id string) (HierarchicalCode, bool) {
	for _, c := range t.Codes {
		if c.ID == id {
			return c, true
		}
	}
	return HierarchicalCode{}, false
}

// IDSet returns the set of all code ids for validation lookups
func (t *Taxonomy) IDSet() map[string]struct{} {
	set := make(map[string]struct{}, len(t.Codes))
	for _, c := range t.Codes {
		set[c.ID] = struct{}{}
	}
	return set
}

// IDs returns all code ids in stable sorted order
func (t *Taxonomy) IDs() []string {
	ids := make([]string, 0, len(t.Codes))
	for _, c := range t.Codes {
		ids = append(ids, c.ID)
	}
	sort.Strings(ids)
	return ids
}

// Validate checks the structural contract: unique ids, parent links that
// resolve, level(child) = level(parent) + 1, and no cycles among parent
// links (the codes must form a forest).
func (t *Taxonomy) Validate(maxDepth int) error {
	if len(t.Codes) == 0 {
		return fmt.Errorf("taxonomy contains no codes")
	}

	byID := make(map[string]HierarchicalCode, len(t.Codes))
	for _, c := range t.Codes {
		if c.ID == "" {
			return fmt.Errorf("code %q has empty id", c.Name)
		}
		if _, dup := byID[c.ID]; dup {
			return fmt.Errorf("duplicate code id %q", c.ID)
		}
		byID[c.ID] = c
	}

	for _, c := range t.Codes {
		if c.ParentID == "" {
			if c.Level != 0 {
				return fmt.Errorf("root code %q has level %d, want 0", c.ID, c.Level)
			}
			continue
		}

		parent, ok := byID[c.ParentID]
		if !ok {
			return fmt.Errorf("code %q references unknown parent %q", c.ID, c.ParentID)
		}
		if c.Level != parent.Level+1 {
			return fmt.Errorf("code %q has level %d, parent %q has level %d", c.ID, c.Level, parent.ID, parent.Level)
		}
		if maxDepth > 0 && c.Level >= maxDepth {
			return fmt.Errorf("code %q exceeds maximum hierarchy depth %d", c.ID, maxDepth)
		}

		// Walk parent links to detect cycles. The level check above makes
		// cycles impossible for well-formed levels, but levels come from
		// the extraction backend, so walk anyway.
		seen := map[string]struct{}{c.ID: {}}
		cur := c
		for cur.ParentID != "" {
			if _, looped := seen[cur.ParentID]; looped {
				return fmt.Errorf("cycle in parent links at code %q", c.ID)
			}
			seen[cur.ParentID] = struct{}{}
			next, ok := byID[cur.ParentID]
			if !ok {
				break
			}
			cur = next
		}
	}

	return nil
}
