// Package extract wraps the LLM provider behind a structured-extraction
// client: prompt in, decoded JSON out, with a tagged failure taxonomy
// (parse error, truncation, timeout) instead of undifferentiated errors.
package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"reflect"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/mzaremba/quotient/internal/cache"
	"github.com/mzaremba/quotient/internal/llm"
)

// sleepFunc is the sleep used between retries (injectable for tests)
var sleepFunc = time.Sleep

// Request is one structured extraction call
type Request struct {
	System    string
	Prompt    string
	Model     string
	MaxTokens int
}

// Client issues extraction calls with bounded retry, rate limiting and
// response caching. All discovery and application phases go through it.
type Client struct {
	provider   llm.Provider
	cache      cache.Cache // nil disables caching
	limiter    *rate.Limiter
	maxRetries int
	backoff    time.Duration
	verbose    bool
}

// Options tunes the client
type Options struct {
	Cache             cache.Cache
	MaxRetries        int
	Backoff           time.Duration
	RequestsPerSecond float64
	Burst             int
	Verbose           bool
}

// NewClient creates a new extraction client around a provider
func NewClient(provider llm.Provider, opts Options) *Client {
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = 3
	}
	if opts.Backoff <= 0 {
		opts.Backoff = 2 * time.Second
	}

	var limiter *rate.Limiter
	if opts.RequestsPerSecond > 0 {
		burst := opts.Burst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), burst)
	}

	return &Client{
		provider:   provider,
		cache:      opts.Cache,
		limiter:    limiter,
		maxRetries: opts.MaxRetries,
		backoff:    opts.Backoff,
		verbose:    opts.Verbose,
	}
}

// Provider returns the name of the underlying backend
func (c *Client) Provider() string {
	return c.provider.Name()
}

// ExtractJSON runs one extraction call and decodes the JSON response into
// out. Malformed or truncated responses are retried with linear backoff;
// exhausting retries returns the last tagged error to the caller, which
// owns the phase-level policy (abort the phase, quarantine the document).
func (c *Client) ExtractJSON(ctx context.Context, req Request, out any) error {
	return c.ExtractJSONValidated(ctx, req, out, nil)
}

// ExtractJSONValidated is ExtractJSON with a structural contract: after
// decoding, validate is run against the decoded value, and a violation is
// treated as a retryable call failure. Only validated payloads are cached.
func (c *Client) ExtractJSONValidated(ctx context.Context, req Request, out any, validate func() error) error {
	key := cache.CacheKey(c.provider.Name(), req.Model, req.System+"\x00"+req.Prompt)
	if c.cache != nil {
		if data, found := c.cache.Get(key); found {
			if err := json.Unmarshal(data, out); err == nil {
				return nil
			}
			// Corrupt cache entry; fall through to a fresh call
			_ = c.cache.Delete(key)
		}
	}

	var lastErr error
	for attempt := 1; attempt <= c.maxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			if lastErr != nil {
				return fmt.Errorf("%w (after: %v)", err, lastErr)
			}
			return err
		}

		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return err
			}
		}

		payload, err := c.attempt(ctx, req)
		switch {
		case err != nil:
			lastErr = err
		default:
			resetValue(out)
			if err := json.Unmarshal(payload, out); err != nil {
				lastErr = &ParseError{Cause: err, Raw: string(payload)}
				break
			}
			if validate != nil {
				if verr := validate(); verr != nil {
					lastErr = &SchemaViolationError{Cause: verr}
					break
				}
			}
			if c.cache != nil {
				_ = c.cache.Set(key, payload, 0)
			}
			return nil
		}

		if c.verbose {
			fmt.Fprintf(os.Stderr, "extraction attempt %d/%d failed: %v\n", attempt, c.maxRetries, lastErr)
		}
		if attempt < c.maxRetries {
			sleepFunc(c.backoff * time.Duration(attempt))
		}
	}

	return fmt.Errorf("extraction failed after %d attempts: %w", c.maxRetries, lastErr)
}

// resetValue clears the decode target before a retry attempt. Unmarshal
// merges into existing struct state, so without the reset a rejected
// attempt's fields would leak into the next attempt's decode and
// validation.
func resetValue(out any) {
	v := reflect.ValueOf(out)
	if v.Kind() == reflect.Pointer && !v.IsNil() {
		v.Elem().SetZero()
	}
}

// attempt runs a single backend call and returns the candidate JSON payload
func (c *Client) attempt(ctx context.Context, req Request) ([]byte, error) {
	resp, err := c.provider.Complete(ctx, llm.CompletionRequest{
		System:    req.System,
		Prompt:    req.Prompt,
		Model:     req.Model,
		MaxTokens: req.MaxTokens,
	})
	if err != nil {
		return nil, err
	}

	if resp.Truncated {
		return nil, &TruncationError{Model: resp.Model, Tokens: resp.TokensUsed}
	}
	if strings.TrimSpace(resp.Text) == "" {
		return nil, ErrEmptyResponse
	}

	payload := extractJSONObject(resp.Text)
	if payload == "" {
		return nil, &ParseError{Cause: fmt.Errorf("no JSON object in response"), Raw: resp.Text}
	}

	return []byte(payload), nil
}

// extractJSONObject pulls the outermost JSON object out of a completion.
// Backends in JSON mode return bare objects, but some models still wrap
// them in markdown fences or prose.
func extractJSONObject(text string) string {
	start := strings.IndexByte(text, '{')
	end := strings.LastIndexByte(text, '}')
	if start < 0 || end <= start {
		return ""
	}
	return text[start : end+1]
}
