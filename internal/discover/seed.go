package discover

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/mzaremba/quotient/internal/extract"
	"github.com/mzaremba/quotient/internal/model"
)

// SeedParser converts user-supplied schema definitions into structured
// schema objects for closed and mixed discovery modes. YAML files are
// parsed directly; anything else is treated as free-text definitions and
// converted through one extraction call.
type SeedParser struct {
	client *extract.Client
}

// NewSeedParser creates a seed parser. The client may be nil when only
// YAML seeds will be used.
func NewSeedParser(client *extract.Client) *SeedParser {
	return &SeedParser{client: client}
}

// taxonomySeed is the YAML shape for code seeds
type taxonomySeed struct {
	Codes []struct {
		ID          string   `yaml:"id"`
		Name        string   `yaml:"name"`
		Description string   `yaml:"description"`
		ParentID    string   `yaml:"parent_id"`
		Examples    []string `yaml:"examples"`
	} `yaml:"codes"`
}

// Taxonomy loads a code seed from path
func (p *SeedParser) Taxonomy(ctx context.Context, path string) (*model.Taxonomy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read taxonomy seed: %w", err)
	}

	if isYAML(path) {
		var seed taxonomySeed
		if err := yaml.Unmarshal(data, &seed); err != nil {
			return nil, fmt.Errorf("parse taxonomy seed %s: %w", path, err)
		}
		tax := &model.Taxonomy{}
		for _, c := range seed.Codes {
			tax.Codes = append(tax.Codes, model.HierarchicalCode{
				ID:          c.ID,
				Name:        c.Name,
				Description: c.Description,
				ParentID:    c.ParentID,
				Examples:    c.Examples,
			})
		}
		assignLevels(tax)
		return tax, nil
	}

	var tax model.Taxonomy
	if err := p.freeText(ctx, string(data),
		`Convert the code definitions below into JSON of the shape {"codes":[{"id":"...","name":"...","description":"...","parent_id":"","level":0}]}. Derive SCREAMING_SNAKE_CASE ids from the names. Preserve any stated nesting as parent_id links.`,
		&tax); err != nil {
		return nil, err
	}
	assignLevels(&tax)
	return &tax, nil
}

// Speakers loads a speaker schema seed from path
func (p *SeedParser) Speakers(ctx context.Context, path string) (*model.SpeakerSchema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read speaker seed: %w", err)
	}

	if isYAML(path) {
		var schema model.SpeakerSchema
		if err := yaml.Unmarshal(data, &schema); err != nil {
			return nil, fmt.Errorf("parse speaker seed %s: %w", path, err)
		}
		return &schema, nil
	}

	var schema model.SpeakerSchema
	if err := p.freeText(ctx, string(data),
		`Convert the speaker property definitions below into JSON of the shape {"properties":[{"key":"...","type":"string|number|boolean|category","description":"...","required":false,"values":[]}]}.`,
		&schema); err != nil {
		return nil, err
	}
	return &schema, nil
}

// Entities loads an entity/relationship schema seed from path
func (p *SeedParser) Entities(ctx context.Context, path string) (*model.EntitySchema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read entity seed: %w", err)
	}

	if isYAML(path) {
		var schema model.EntitySchema
		if err := yaml.Unmarshal(data, &schema); err != nil {
			return nil, fmt.Errorf("parse entity seed %s: %w", path, err)
		}
		return &schema, nil
	}

	var schema model.EntitySchema
	if err := p.freeText(ctx, string(data),
		`Convert the entity and relationship definitions below into JSON of the shape {"entity_types":[{"name":"...","description":""}],"relationship_types":[{"name":"...","description":"","source_type":"","target_type":""}]}.`,
		&schema); err != nil {
		return nil, err
	}
	return &schema, nil
}

// freeText converts free-text definitions through the extraction backend
func (p *SeedParser) freeText(ctx context.Context, text, instructions string, out any) error {
	if p.client == nil {
		return fmt.Errorf("free-text seed requires an extraction backend; supply a YAML seed instead")
	}
	return p.client.ExtractJSON(ctx, extract.Request{
		System: discoverySystem,
		Prompt: instructions + "\n\nDEFINITIONS:\n\n" + text,
	}, out)
}

func isYAML(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}

// assignLevels recomputes levels from parent links so seed authors never
// have to maintain them by hand. Codes with unknown parents keep level 0
// and fail taxonomy validation later.
func assignLevels(tax *model.Taxonomy) {
	byID := make(map[string]int, len(tax.Codes)) // id -> index
	for i, c := range tax.Codes {
		byID[c.ID] = i
	}

	var depth func(i int, seen map[string]struct{}) int
	depth = func(i int, seen map[string]struct{}) int {
		c := tax.Codes[i]
		if c.ParentID == "" {
			return 0
		}
		if _, looped := seen[c.ID]; looped {
			return 0
		}
		seen[c.ID] = struct{}{}
		parent, ok := byID[c.ParentID]
		if !ok {
			return 0
		}
		return depth(parent, seen) + 1
	}

	for i := range tax.Codes {
		tax.Codes[i].Level = depth(i, map[string]struct{}{})
	}
}
