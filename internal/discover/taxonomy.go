package discover

import (
	"context"
	"fmt"

	"github.com/mzaremba/quotient/internal/extract"
	"github.com/mzaremba/quotient/internal/model"
)

// TaxonomyDiscoverer runs Phase 1: one discovery pass over the full
// concatenated corpus producing the hierarchical code taxonomy.
type TaxonomyDiscoverer struct {
	client   *extract.Client
	mode     model.DiscoveryMode
	seed     *model.Taxonomy // Required for closed/mixed modes
	maxDepth int
}

// NewTaxonomyDiscoverer creates a Phase 1 discoverer
func NewTaxonomyDiscoverer(client *extract.Client, mode model.DiscoveryMode, seed *model.Taxonomy, maxDepth int) *TaxonomyDiscoverer {
	if maxDepth <= 0 {
		maxDepth = 3
	}
	return &TaxonomyDiscoverer{client: client, mode: mode, seed: seed, maxDepth: maxDepth}
}

// Discover produces the taxonomy for the corpus. A result with zero codes
// is a fatal corpus-level failure, never returned as an empty artifact.
func (d *TaxonomyDiscoverer) Discover(ctx context.Context, corpusText, question string) (*model.Taxonomy, error) {
	switch d.mode {
	case model.ModeClosed:
		if d.seed == nil || len(d.seed.Codes) == 0 {
			return nil, &FatalError{Phase: PhaseTaxonomy, Reason: "closed mode requires a non-empty code seed"}
		}
		tax := &model.Taxonomy{Codes: append([]model.HierarchicalCode(nil), d.seed.Codes...)}
		if err := tax.Validate(d.maxDepth); err != nil {
			return nil, fmt.Errorf("seed taxonomy invalid: %w", err)
		}
		return tax, nil

	case model.ModeMixed:
		if d.seed == nil || len(d.seed.Codes) == 0 {
			return nil, fmt.Errorf("mixed mode requires a code seed")
		}
	}

	var seed *model.Taxonomy
	if d.mode == model.ModeMixed {
		seed = d.seed
	}

	var wire model.Taxonomy
	req := extract.Request{
		System:    discoverySystem,
		Prompt:    buildTaxonomyPrompt(corpusText, question, d.maxDepth, seed),
		MaxTokens: 0, // Provider default; taxonomies are small relative to the corpus
	}

	err := d.client.ExtractJSONValidated(ctx, req, &wire, func() error {
		if len(wire.Codes) == 0 {
			// Distinguished below as fatal, but still worth a retry:
			// backends occasionally return an empty list on a hiccup.
			return fmt.Errorf("zero codes discovered")
		}
		assignLevels(&wire)
		return wire.Validate(d.maxDepth)
	})
	if err != nil {
		if len(wire.Codes) == 0 {
			return nil, &FatalError{Phase: PhaseTaxonomy, Reason: fmt.Sprintf("empty taxonomy: %v", err)}
		}
		return nil, fmt.Errorf("taxonomy discovery: %w", err)
	}

	tax := &wire
	if seed != nil {
		tax = mergeTaxonomies(seed, tax)
		assignLevels(tax)
		if err := tax.Validate(d.maxDepth); err != nil {
			return nil, fmt.Errorf("merged taxonomy invalid: %w", err)
		}
	}

	return tax, nil
}

// mergeTaxonomies combines seed and discovered codes. Seed entries win on
// id conflicts so caller-supplied definitions are never rewritten by the
// backend.
func mergeTaxonomies(seed, discovered *model.Taxonomy) *model.Taxonomy {
	merged := &model.Taxonomy{Codes: append([]model.HierarchicalCode(nil), seed.Codes...)}
	seedIDs := seed.IDSet()
	for _, c := range discovered.Codes {
		if _, taken := seedIDs[c.ID]; taken {
			continue
		}
		merged.Codes = append(merged.Codes, c)
	}
	return merged
}
