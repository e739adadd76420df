package discover

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/mzaremba/quotient/internal/extract"
	"github.com/mzaremba/quotient/internal/llm"
	"github.com/mzaremba/quotient/internal/model"
)

// scriptedProvider returns canned JSON payloads in order, repeating the
// last one when calls outnumber scripts.
type scriptedProvider struct {
	payloads []string
	calls    int
}

func (s *scriptedProvider) Name() string { return "scripted" }

func (s *scriptedProvider) IsAvailable(ctx context.Context) bool { return true }

func (s *scriptedProvider) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	i := s.calls
	s.calls++
	if i >= len(s.payloads) {
		i = len(s.payloads) - 1
	}
	return &llm.CompletionResponse{Text: s.payloads[i], Model: "scripted"}, nil
}

func scriptedClient(payloads ...string) (*extract.Client, *scriptedProvider) {
	p := &scriptedProvider{payloads: payloads}
	return extract.NewClient(p, extract.Options{MaxRetries: 1}), p
}

const corpusText = "=== INTERVIEW: a ===\n\nSam: We adopted AI code review last spring."

func TestTaxonomyDiscoverer_Open(t *testing.T) {
	client, provider := scriptedClient(`{
		"codes": [
			{"id": "ADOPTION", "name": "Adoption", "description": "How tools arrive"},
			{"id": "ADOPTION_TRUST", "name": "Trust", "parent_id": "ADOPTION"}
		]
	}`)

	d := NewTaxonomyDiscoverer(client, model.ModeOpen, nil, 3)
	tax, err := d.Discover(context.Background(), corpusText, "how do teams adopt AI?")
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}

	if len(tax.Codes) != 2 {
		t.Fatalf("expected 2 codes, got %d", len(tax.Codes))
	}
	child, ok := tax.Get("ADOPTION_TRUST")
	if !ok {
		t.Fatal("child code missing")
	}
	if child.Level != 1 {
		t.Errorf("child level = %d, want 1 (recomputed from parent links)", child.Level)
	}
	if provider.calls != 1 {
		t.Errorf("expected 1 backend call, got %d", provider.calls)
	}
}

func TestTaxonomyDiscoverer_EmptyIsFatal(t *testing.T) {
	client, _ := scriptedClient(`{"codes": []}`)

	d := NewTaxonomyDiscoverer(client, model.ModeOpen, nil, 3)
	_, err := d.Discover(context.Background(), corpusText, "")
	if err == nil {
		t.Fatal("expected error for empty taxonomy")
	}

	var fatal *FatalError
	if !errors.As(err, &fatal) {
		t.Fatalf("expected FatalError, got %T: %v", err, err)
	}
	if fatal.Phase != PhaseTaxonomy {
		t.Errorf("Phase = %q, want %q", fatal.Phase, PhaseTaxonomy)
	}
}

func TestTaxonomyDiscoverer_Closed(t *testing.T) {
	seed := &model.Taxonomy{Codes: []model.HierarchicalCode{
		{ID: "FIXED", Name: "Fixed code", Level: 0},
	}}
	client, provider := scriptedClient(`{"codes": [{"id": "UNWANTED"}]}`)

	d := NewTaxonomyDiscoverer(client, model.ModeClosed, seed, 3)
	tax, err := d.Discover(context.Background(), corpusText, "")
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}

	if provider.calls != 0 {
		t.Errorf("closed mode must not call the backend, got %d calls", provider.calls)
	}
	if len(tax.Codes) != 1 || tax.Codes[0].ID != "FIXED" {
		t.Errorf("closed mode result = %+v", tax.Codes)
	}
}

func TestTaxonomyDiscoverer_ClosedRequiresSeed(t *testing.T) {
	client, _ := scriptedClient(`{}`)
	d := NewTaxonomyDiscoverer(client, model.ModeClosed, nil, 3)

	_, err := d.Discover(context.Background(), corpusText, "")
	var fatal *FatalError
	if !errors.As(err, &fatal) {
		t.Fatalf("expected FatalError for closed mode without seed, got %v", err)
	}
}

func TestTaxonomyDiscoverer_MixedSeedWins(t *testing.T) {
	seed := &model.Taxonomy{Codes: []model.HierarchicalCode{
		{ID: "ADOPTION", Name: "Seed definition", Description: "caller's wording", Level: 0},
	}}
	client, _ := scriptedClient(`{
		"codes": [
			{"id": "ADOPTION", "name": "Backend rewording"},
			{"id": "RISK", "name": "Risk"}
		]
	}`)

	d := NewTaxonomyDiscoverer(client, model.ModeMixed, seed, 3)
	tax, err := d.Discover(context.Background(), corpusText, "")
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}

	if len(tax.Codes) != 2 {
		t.Fatalf("expected seed + 1 discovered code, got %d", len(tax.Codes))
	}
	c, _ := tax.Get("ADOPTION")
	if c.Name != "Seed definition" {
		t.Errorf("seed definition rewritten by backend: %q", c.Name)
	}
	if _, ok := tax.Get("RISK"); !ok {
		t.Error("discovered code missing after merge")
	}
}

func TestSpeakerDiscoverer_EmptyIsLegal(t *testing.T) {
	client, _ := scriptedClient(`{"properties": []}`)

	d := NewSpeakerDiscoverer(client, model.ModeOpen, nil)
	schema, err := d.Discover(context.Background(), corpusText, "")
	if err != nil {
		t.Fatalf("empty speaker schema must not fail: %v", err)
	}
	if len(schema.Properties) != 0 {
		t.Errorf("expected no properties, got %d", len(schema.Properties))
	}
}

func TestSpeakerDiscoverer_Open(t *testing.T) {
	client, _ := scriptedClient(`{
		"properties": [
			{"key": "role", "type": "string", "description": "Job role"},
			{"key": "seniority", "type": "category", "values": ["junior", "mid", "senior"]}
		]
	}`)

	d := NewSpeakerDiscoverer(client, model.ModeOpen, nil)
	schema, err := d.Discover(context.Background(), corpusText, "")
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if len(schema.Properties) != 2 {
		t.Fatalf("expected 2 properties, got %d", len(schema.Properties))
	}
}

func TestValidateSpeakerSchema(t *testing.T) {
	tests := []struct {
		name    string
		schema  model.SpeakerSchema
		wantErr bool
	}{
		{"empty", model.SpeakerSchema{}, false},
		{"duplicate key", model.SpeakerSchema{Properties: []model.SpeakerProperty{
			{Key: "role", Type: model.PropertyString},
			{Key: "role", Type: model.PropertyString},
		}}, true},
		{"category without values", model.SpeakerSchema{Properties: []model.SpeakerProperty{
			{Key: "seniority", Type: model.PropertyCategory},
		}}, true},
		{"unknown type", model.SpeakerSchema{Properties: []model.SpeakerProperty{
			{Key: "age", Type: "integer"},
		}}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateSpeakerSchema(&tt.schema)
			if (err != nil) != tt.wantErr {
				t.Errorf("validateSpeakerSchema = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestEntityDiscoverer_Open(t *testing.T) {
	client, _ := scriptedClient(`{
		"entity_types": [
			{"name": "tool", "description": "A software tool"},
			{"name": "team"}
		],
		"relationship_types": [
			{"name": "uses", "source_type": "team", "target_type": "tool"}
		]
	}`)

	d := NewEntityDiscoverer(client, model.ModeOpen, nil)
	schema, err := d.Discover(context.Background(), corpusText, "")
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if len(schema.EntityTypes) != 2 || len(schema.RelationshipTypes) != 1 {
		t.Errorf("schema = %+v", schema)
	}
}

func TestValidateEntitySchema_UnknownEndpoint(t *testing.T) {
	schema := &model.EntitySchema{
		EntityTypes: []model.DiscoveredEntityType{{Name: "tool"}},
		RelationshipTypes: []model.DiscoveredRelationshipType{
			{Name: "uses", SourceType: "team", TargetType: "tool"},
		},
	}
	if err := validateEntitySchema(schema); err == nil {
		t.Fatal("expected error for relationship referencing undeclared entity type")
	}
}

func TestSeedParser_TaxonomyYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "codes.yaml")
	seedYAML := `codes:
  - id: ADOPTION
    name: Adoption
    description: How tools arrive
  - id: ADOPTION_TRUST
    name: Trust
    parent_id: ADOPTION
`
	if err := os.WriteFile(path, []byte(seedYAML), 0o644); err != nil {
		t.Fatal(err)
	}

	parser := NewSeedParser(nil)
	tax, err := parser.Taxonomy(context.Background(), path)
	if err != nil {
		t.Fatalf("Taxonomy: %v", err)
	}

	if len(tax.Codes) != 2 {
		t.Fatalf("expected 2 codes, got %d", len(tax.Codes))
	}
	child, _ := tax.Get("ADOPTION_TRUST")
	if child.Level != 1 {
		t.Errorf("levels not recomputed from parent links: level = %d", child.Level)
	}
	if err := tax.Validate(3); err != nil {
		t.Errorf("parsed seed fails validation: %v", err)
	}
}

func TestSeedParser_FreeTextNeedsBackend(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "codes.txt")
	if err := os.WriteFile(path, []byte("Codes: adoption, trust"), 0o644); err != nil {
		t.Fatal(err)
	}

	parser := NewSeedParser(nil)
	if _, err := parser.Taxonomy(context.Background(), path); err == nil {
		t.Fatal("expected error for free-text seed without a backend")
	}
}

func TestAssignLevels(t *testing.T) {
	tax := &model.Taxonomy{Codes: []model.HierarchicalCode{
		{ID: "C", ParentID: "B"},
		{ID: "A"},
		{ID: "B", ParentID: "A"},
	}}
	assignLevels(tax)

	want := map[string]int{"A": 0, "B": 1, "C": 2}
	for _, c := range tax.Codes {
		if c.Level != want[c.ID] {
			t.Errorf("level(%s) = %d, want %d", c.ID, c.Level, want[c.ID])
		}
	}
}
