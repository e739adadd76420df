package pipeline

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mzaremba/quotient/internal/model"
)

// Artifact filenames under the output directory
const (
	taxonomyArtifact  = "taxonomy.json"
	speakersArtifact  = "speaker_schema.json"
	entitiesArtifact  = "entity_schema.json"
	aggregateArtifact = "aggregate.json"
	resultsDir        = "results"
)

// WriteSchemaArtifacts persists the three schema artifacts so each is
// independently consumable and later runs can reuse them.
func (p *Pipeline) WriteSchemaArtifacts(schemas *model.SchemaSet) error {
	dir := p.cfg.Output.Dir
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	if err := writeJSON(filepath.Join(dir, taxonomyArtifact), schemas.Taxonomy); err != nil {
		return err
	}
	if err := writeJSON(filepath.Join(dir, speakersArtifact), schemas.Speakers); err != nil {
		return err
	}
	return writeJSON(filepath.Join(dir, entitiesArtifact), schemas.Entities)
}

// writeResultArtifacts persists one result file per document plus the
// corpus aggregate.
func (p *Pipeline) writeResultArtifacts(results []*model.DocumentResult, agg *model.Aggregate) error {
	dir := filepath.Join(p.cfg.Output.Dir, resultsDir)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create results dir: %w", err)
	}

	for _, result := range results {
		path := filepath.Join(dir, result.DocumentID+".json")
		if err := writeJSON(path, result); err != nil {
			return err
		}
	}

	return writeJSON(filepath.Join(p.cfg.Output.Dir, aggregateArtifact), agg)
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", path, err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
