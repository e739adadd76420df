package model

// Scope marks the level at which an entity or relationship was observed
type Scope string

const (
	ScopeQuote    Scope = "quote"
	ScopeDocument Scope = "document"
	ScopeCorpus   Scope = "corpus"
)

// DiscoveredEntityType is a schema-level entity type from Phase 3
type DiscoveredEntityType struct {
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Examples    []string `json:"examples,omitempty"`
}

// DiscoveredRelationshipType is a schema-level relationship type from Phase 3
type DiscoveredRelationshipType struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	SourceType  string `json:"source_type,omitempty"` // Expected entity type of the source
	TargetType  string `json:"target_type,omitempty"` // Expected entity type of the target
}

// EntitySchema is the Phase 3 artifact
type EntitySchema struct {
	EntityTypes       []DiscoveredEntityType       `json:"entity_types"`
	RelationshipTypes []DiscoveredRelationshipType `json:"relationship_types"`
}

// EntityTypeNames returns the set of declared entity type names
func (s *EntitySchema) EntityTypeNames() map[string]struct{} {
	set := make(map[string]struct{}, len(s.EntityTypes))
	for _, t := range s.EntityTypes {
		set[t.Name] = struct{}{}
	}
	return set
}

// RelationshipTypeNames returns the set of declared relationship type names
func (s *EntitySchema) RelationshipTypeNames() map[string]struct{} {
	set := make(map[string]struct{}, len(s.RelationshipTypes))
	for _, t := range s.RelationshipTypes {
		set[t.Name] = struct{}{}
	}
	return set
}

// ExtractedEntity is an instance-level entity found in one document.
// Type must exactly match a DiscoveredEntityType name; the applicator
// enforces this at validation time.
//
// Entities live in a flat arena indexed by ID, and relationships reference
// them by ID rather than by pointer, so the entity graph can contain cycles
// without object-reference cycles.
type ExtractedEntity struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Type        string   `json:"type"`
	Description string   `json:"description,omitempty"`
	Scope       Scope    `json:"scope"`
	QuoteIDs    []string `json:"quote_ids,omitempty"` // Quotes that mention this entity
}

// ExtractedRelationship is an instance-level edge between two extracted
// entities, referenced by entity ID.
type ExtractedRelationship struct {
	ID          string `json:"id"`
	Type        string `json:"type"`
	SourceID    string `json:"source_id"`
	TargetID    string `json:"target_id"`
	Description string `json:"description,omitempty"`
	Scope       Scope  `json:"scope"`
}

// SchemaSet bundles the three Phase 1-3 artifacts. It is passed by value
// to every Phase 4 worker as an immutable snapshot; no worker holds a
// mutable reference to shared schema state.
type SchemaSet struct {
	Taxonomy Taxonomy      `json:"taxonomy"`
	Speakers SpeakerSchema `json:"speaker_schema"`
	Entities EntitySchema  `json:"entity_schema"`
}
