// Package pipeline orchestrates the full four-phase run: corpus-level
// schema discovery (Phases 1-3), bounded per-document application
// (Phase 4), aggregation behind the completion barrier, and graph
// persistence.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"

	"golang.org/x/sync/errgroup"

	"github.com/mzaremba/quotient/internal/aggregate"
	"github.com/mzaremba/quotient/internal/apply"
	"github.com/mzaremba/quotient/internal/cache"
	"github.com/mzaremba/quotient/internal/corpus"
	"github.com/mzaremba/quotient/internal/discover"
	"github.com/mzaremba/quotient/internal/extract"
	"github.com/mzaremba/quotient/internal/graph"
	"github.com/mzaremba/quotient/internal/llm"
	"github.com/mzaremba/quotient/internal/model"
	"github.com/mzaremba/quotient/internal/worker"
)

// Pipeline wires the discovery phases, the application engine, the
// aggregator and the graph store together under one configuration.
type Pipeline struct {
	cfg        *model.Config
	client     *extract.Client
	applicator *apply.Applicator
	seeds      *discover.SeedParser
}

// RunResult is the complete output of one corpus run
type RunResult struct {
	Schemas   model.SchemaSet
	Results   []*model.DocumentResult
	Aggregate *model.Aggregate
}

// New creates a pipeline from configuration
func New(cfg *model.Config) (*Pipeline, error) {
	provider, err := llm.NewProvider(llm.ConfigFromModel(cfg.LLM))
	if err != nil {
		return nil, fmt.Errorf("initialize extraction backend: %w", err)
	}

	var respCache cache.Cache
	if cfg.Cache.Enabled {
		respCache = cache.NewLayeredCache(cfg.Cache.MemoryTTL, cfg.Cache.Dir, cfg.Cache.DiskTTL)
	}

	client := extract.NewClient(provider, extract.Options{
		Cache:             respCache,
		MaxRetries:        cfg.LLM.MaxRetries,
		RequestsPerSecond: cfg.RateLimiting.RequestsPerSecond,
		Burst:             cfg.RateLimiting.BurstSize,
		Verbose:           cfg.Output.Verbose,
	})

	return &Pipeline{
		cfg:        cfg,
		client:     client,
		applicator: apply.NewApplicator(client, cfg.Apply.InvalidCodes, cfg.Apply.FuzzyThreshold),
		seeds:      discover.NewSeedParser(client),
	}, nil
}

// DiscoverSchemas runs Phases 1-3 over the concatenated corpus. The three
// phases share no data, so they run concurrently unless the configuration
// forces them sequential for rate-limit-sensitive backends. Any fatal
// error aborts before a single Phase 4 call is dispatched.
func (p *Pipeline) DiscoverSchemas(ctx context.Context, docs []corpus.Document) (*model.SchemaSet, error) {
	corpusText := corpus.Concatenate(docs)
	question := p.cfg.Discovery.Question
	if question == "" {
		question = "What themes, perspectives and concerns do the interviewees express?"
	}

	taxSeed, spkSeed, entSeed, err := p.loadSeeds(ctx)
	if err != nil {
		return nil, err
	}

	taxD := discover.NewTaxonomyDiscoverer(p.client, p.cfg.Discovery.TaxonomyMode, taxSeed, p.cfg.Discovery.MaxDepth)
	spkD := discover.NewSpeakerDiscoverer(p.client, p.cfg.Discovery.SpeakerMode, spkSeed)
	entD := discover.NewEntityDiscoverer(p.client, p.cfg.Discovery.EntityMode, entSeed)

	var schemas model.SchemaSet

	if p.cfg.Discovery.Sequential {
		tax, err := taxD.Discover(ctx, corpusText, question)
		if err != nil {
			return nil, err
		}
		spk, err := spkD.Discover(ctx, corpusText, question)
		if err != nil {
			return nil, err
		}
		ent, err := entD.Discover(ctx, corpusText, question)
		if err != nil {
			return nil, err
		}
		schemas = model.SchemaSet{Taxonomy: *tax, Speakers: *spk, Entities: *ent}
		return &schemas, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		tax, err := taxD.Discover(gctx, corpusText, question)
		if err != nil {
			return err
		}
		schemas.Taxonomy = *tax
		return nil
	})
	g.Go(func() error {
		spk, err := spkD.Discover(gctx, corpusText, question)
		if err != nil {
			return err
		}
		schemas.Speakers = *spk
		return nil
	})
	g.Go(func() error {
		ent, err := entD.Discover(gctx, corpusText, question)
		if err != nil {
			return err
		}
		schemas.Entities = *ent
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return &schemas, nil
}

// loadSeeds parses the configured seed files for closed/mixed phases
func (p *Pipeline) loadSeeds(ctx context.Context) (*model.Taxonomy, *model.SpeakerSchema, *model.EntitySchema, error) {
	var (
		taxSeed *model.Taxonomy
		spkSeed *model.SpeakerSchema
		entSeed *model.EntitySchema
		err     error
	)

	if p.cfg.Discovery.TaxonomyMode != model.ModeOpen && p.cfg.Discovery.TaxonomySeed != "" {
		if taxSeed, err = p.seeds.Taxonomy(ctx, p.cfg.Discovery.TaxonomySeed); err != nil {
			return nil, nil, nil, err
		}
	}
	if p.cfg.Discovery.SpeakerMode != model.ModeOpen && p.cfg.Discovery.SpeakerSeed != "" {
		if spkSeed, err = p.seeds.Speakers(ctx, p.cfg.Discovery.SpeakerSeed); err != nil {
			return nil, nil, nil, err
		}
	}
	if p.cfg.Discovery.EntityMode != model.ModeOpen && p.cfg.Discovery.EntitySeed != "" {
		if entSeed, err = p.seeds.Entities(ctx, p.cfg.Discovery.EntitySeed); err != nil {
			return nil, nil, nil, err
		}
	}

	return taxSeed, spkSeed, entSeed, nil
}

// Run executes the full pipeline over the corpus. Per-document failures
// are quarantined in the aggregate; only corpus-level failures (fatal
// discovery errors, persistence errors) fail the run itself.
func (p *Pipeline) Run(ctx context.Context, docs []corpus.Document) (*RunResult, error) {
	schemas, err := p.DiscoverSchemas(ctx, docs)
	if err != nil {
		var fatal *discover.FatalError
		if errors.As(err, &fatal) {
			return nil, fmt.Errorf("run aborted before document processing: %w", err)
		}
		return nil, err
	}

	if err := p.WriteSchemaArtifacts(schemas); err != nil {
		return nil, err
	}

	if p.cfg.Output.Verbose {
		fmt.Fprintf(os.Stderr, "discovered %d codes, %d speaker properties, %d entity types\n",
			len(schemas.Taxonomy.Codes), len(schemas.Speakers.Properties), len(schemas.Entities.EntityTypes))
	}

	processor := worker.NewDocumentProcessor(p.applicator, p.cfg.Apply.Concurrency, p.cfg.Apply.DocumentTimeout)
	outcomes := processor.Process(ctx, docs, *schemas)

	// Process has returned, so every job is terminal: the aggregator
	// barrier holds.
	agg := aggregate.New().Aggregate(outcomes)

	var results []*model.DocumentResult
	for _, outcome := range outcomes {
		if outcome.Err == nil {
			results = append(results, outcome.Result)
		}
	}

	if err := p.persist(schemas, results, agg, docs); err != nil {
		return nil, err
	}
	if err := p.writeResultArtifacts(results, agg); err != nil {
		return nil, err
	}

	return &RunResult{Schemas: *schemas, Results: results, Aggregate: agg}, nil
}

// persist writes the run into the graph store
func (p *Pipeline) persist(schemas *model.SchemaSet, results []*model.DocumentResult, agg *model.Aggregate, docs []corpus.Document) error {
	store, err := graph.Open(p.cfg.Graph.Path)
	if err != nil {
		return fmt.Errorf("open graph store: %w", err)
	}
	defer store.Close()

	if err := store.PersistTaxonomy(&schemas.Taxonomy); err != nil {
		return fmt.Errorf("persist taxonomy: %w", err)
	}

	paths := make(map[string]string, len(docs))
	for _, doc := range docs {
		paths[doc.ID] = doc.Path
	}

	for _, result := range results {
		if err := store.PersistDocument(result, paths[result.DocumentID]); err != nil {
			return fmt.Errorf("persist document %s: %w", result.DocumentID, err)
		}
	}

	if err := store.PersistLinks(agg.Links); err != nil {
		return fmt.Errorf("persist thematic links: %w", err)
	}

	return nil
}
