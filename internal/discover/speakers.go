package discover

import (
	"context"
	"fmt"

	"github.com/mzaremba/quotient/internal/extract"
	"github.com/mzaremba/quotient/internal/model"
)

// SpeakerDiscoverer runs Phase 2: one discovery pass producing the
// speaker property schema. Independent of Phase 1.
type SpeakerDiscoverer struct {
	client *extract.Client
	mode   model.DiscoveryMode
	seed   *model.SpeakerSchema
}

// NewSpeakerDiscoverer creates a Phase 2 discoverer
func NewSpeakerDiscoverer(client *extract.Client, mode model.DiscoveryMode, seed *model.SpeakerSchema) *SpeakerDiscoverer {
	return &SpeakerDiscoverer{client: client, mode: mode, seed: seed}
}

// Discover produces the speaker property schema for the corpus. Unlike
// Phase 1, an empty result is legal: a corpus may genuinely support no
// speaker properties beyond the name.
func (d *SpeakerDiscoverer) Discover(ctx context.Context, corpusText, question string) (*model.SpeakerSchema, error) {
	switch d.mode {
	case model.ModeClosed:
		if d.seed == nil {
			return nil, fmt.Errorf("closed mode requires a speaker schema seed")
		}
		return &model.SpeakerSchema{Properties: append([]model.SpeakerProperty(nil), d.seed.Properties...)}, nil

	case model.ModeMixed:
		if d.seed == nil {
			return nil, fmt.Errorf("mixed mode requires a speaker schema seed")
		}
	}

	var seed *model.SpeakerSchema
	if d.mode == model.ModeMixed {
		seed = d.seed
	}

	var wire model.SpeakerSchema
	req := extract.Request{
		System: discoverySystem,
		Prompt: buildSpeakerPrompt(corpusText, question, seed),
	}

	err := d.client.ExtractJSONValidated(ctx, req, &wire, func() error {
		return validateSpeakerSchema(&wire)
	})
	if err != nil {
		return nil, fmt.Errorf("speaker schema discovery: %w", err)
	}

	schema := &wire
	if seed != nil {
		schema = mergeSpeakerSchemas(seed, schema)
	}

	return schema, nil
}

func validateSpeakerSchema(s *model.SpeakerSchema) error {
	seen := make(map[string]struct{}, len(s.Properties))
	for _, p := range s.Properties {
		if p.Key == "" {
			return fmt.Errorf("property with empty key")
		}
		if _, dup := seen[p.Key]; dup {
			return fmt.Errorf("duplicate property key %q", p.Key)
		}
		seen[p.Key] = struct{}{}

		switch p.Type {
		case model.PropertyString, model.PropertyNumber, model.PropertyBoolean:
		case model.PropertyCategory:
			if len(p.Values) == 0 {
				return fmt.Errorf("category property %q declares no values", p.Key)
			}
		default:
			return fmt.Errorf("property %q has unknown type %q", p.Key, p.Type)
		}
	}
	return nil
}

// mergeSpeakerSchemas combines seed and discovered properties; seed keys win
func mergeSpeakerSchemas(seed, discovered *model.SpeakerSchema) *model.SpeakerSchema {
	merged := &model.SpeakerSchema{Properties: append([]model.SpeakerProperty(nil), seed.Properties...)}
	seedKeys := make(map[string]struct{}, len(seed.Properties))
	for _, p := range seed.Properties {
		seedKeys[p.Key] = struct{}{}
	}
	for _, p := range discovered.Properties {
		if _, taken := seedKeys[p.Key]; taken {
			continue
		}
		merged.Properties = append(merged.Properties, p)
	}
	return merged
}
