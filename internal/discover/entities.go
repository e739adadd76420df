package discover

import (
	"context"
	"fmt"

	"github.com/mzaremba/quotient/internal/extract"
	"github.com/mzaremba/quotient/internal/model"
)

// EntityDiscoverer runs Phase 3: one discovery pass producing entity and
// relationship type schemas. Independent of Phases 1 and 2.
type EntityDiscoverer struct {
	client *extract.Client
	mode   model.DiscoveryMode
	seed   *model.EntitySchema
}

// NewEntityDiscoverer creates a Phase 3 discoverer
func NewEntityDiscoverer(client *extract.Client, mode model.DiscoveryMode, seed *model.EntitySchema) *EntityDiscoverer {
	return &EntityDiscoverer{client: client, mode: mode, seed: seed}
}

// Discover produces the entity/relationship schema for the corpus
func (d *EntityDiscoverer) Discover(ctx context.Context, corpusText, question string) (*model.EntitySchema, error) {
	switch d.mode {
	case model.ModeClosed:
		if d.seed == nil {
			return nil, fmt.Errorf("closed mode requires an entity schema seed")
		}
		return copyEntitySchema(d.seed), nil

	case model.ModeMixed:
		if d.seed == nil {
			return nil, fmt.Errorf("mixed mode requires an entity schema seed")
		}
	}

	var seed *model.EntitySchema
	if d.mode == model.ModeMixed {
		seed = d.seed
	}

	var wire model.EntitySchema
	req := extract.Request{
		System: discoverySystem,
		Prompt: buildEntityPrompt(corpusText, question, seed),
	}

	err := d.client.ExtractJSONValidated(ctx, req, &wire, func() error {
		return validateEntitySchema(&wire)
	})
	if err != nil {
		return nil, fmt.Errorf("entity schema discovery: %w", err)
	}

	schema := &wire
	if seed != nil {
		schema = mergeEntitySchemas(seed, schema)
	}

	return schema, nil
}

func validateEntitySchema(s *model.EntitySchema) error {
	entityNames := make(map[string]struct{}, len(s.EntityTypes))
	for _, t := range s.EntityTypes {
		if t.Name == "" {
			return fmt.Errorf("entity type with empty name")
		}
		if _, dup := entityNames[t.Name]; dup {
			return fmt.Errorf("duplicate entity type %q", t.Name)
		}
		entityNames[t.Name] = struct{}{}
	}

	relNames := make(map[string]struct{}, len(s.RelationshipTypes))
	for _, t := range s.RelationshipTypes {
		if t.Name == "" {
			return fmt.Errorf("relationship type with empty name")
		}
		if _, dup := relNames[t.Name]; dup {
			return fmt.Errorf("duplicate relationship type %q", t.Name)
		}
		relNames[t.Name] = struct{}{}

		// Endpoint types, when declared, must resolve to discovered
		// entity types so instance validation has a closed universe.
		if t.SourceType != "" {
			if _, ok := entityNames[t.SourceType]; !ok {
				return fmt.Errorf("relationship %q references unknown source type %q", t.Name, t.SourceType)
			}
		}
		if t.TargetType != "" {
			if _, ok := entityNames[t.TargetType]; !ok {
				return fmt.Errorf("relationship %q references unknown target type %q", t.Name, t.TargetType)
			}
		}
	}

	return nil
}

func copyEntitySchema(s *model.EntitySchema) *model.EntitySchema {
	return &model.EntitySchema{
		EntityTypes:       append([]model.DiscoveredEntityType(nil), s.EntityTypes...),
		RelationshipTypes: append([]model.DiscoveredRelationshipType(nil), s.RelationshipTypes...),
	}
}

// mergeEntitySchemas combines seed and discovered types; seed names win
func mergeEntitySchemas(seed, discovered *model.EntitySchema) *model.EntitySchema {
	merged := copyEntitySchema(seed)

	seedEntities := seed.EntityTypeNames()
	for _, t := range discovered.EntityTypes {
		if _, taken := seedEntities[t.Name]; taken {
			continue
		}
		merged.EntityTypes = append(merged.EntityTypes, t)
	}

	seedRels := seed.RelationshipTypeNames()
	for _, t := range discovered.RelationshipTypes {
		if _, taken := seedRels[t.Name]; taken {
			continue
		}
		merged.RelationshipTypes = append(merged.RelationshipTypes, t)
	}

	return merged
}
