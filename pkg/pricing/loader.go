package pricing

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/samber/lo"
	"gopkg.in/yaml.v3"
)

// LiteLLMURL is the public LiteLLM model price list.
const LiteLLMURL = "https://raw.githubusercontent.com/BerriAI/litellm/main/model_prices_and_context_window.json"

// priceFile is the on-disk layout of YAML and TOML price tables.
type priceFile struct {
	Models map[string]Price `yaml:"models" toml:"models"`
}

// liteLLMEntry captures the LiteLLM fields used for pricing (USD per token).
type liteLLMEntry struct {
	InputPerToken       float64 `json:"input_cost_per_token"`
	OutputPerToken      float64 `json:"output_cost_per_token"`
	CacheReadPerToken   float64 `json:"cache_read_input_token_cost"`
	CacheCreatePerToken float64 `json:"cache_creation_input_token_cost"`
}

// LoadFile reads a price table from disk.
//
// The format is chosen by extension:
//   - .yaml, .yml: {models: {<name>: {input, output, cache_write, cache_read}}}
//   - .toml: [models.<name>] tables with the same keys
//   - .json: a LiteLLM model price document (per-token prices)
//
// Model names are normalized when the table is merged into a resolver.
func LoadFile(path string) (Table, error) {
	data, err := os.ReadFile(path) // nolint:gosec
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrPriceFileNotFound, path)
		}
		return nil, fmt.Errorf("failed to read price file: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		var pf priceFile
		if err := yaml.Unmarshal(data, &pf); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidPriceFile, err)
		}
		return Table(pf.Models), nil

	case ".toml":
		var pf priceFile
		if err := toml.Unmarshal(data, &pf); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidPriceFile, err)
		}
		return Table(pf.Models), nil

	case ".json":
		return ParseLiteLLM(bytes.NewReader(data))

	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Ext(path))
	}
}

// ParseLiteLLM decodes a LiteLLM price document into a Table.
//
// Only entries whose name contains "claude" are kept. Per-token prices are
// converted to per-million. When several dated snapshots share a key, the
// lexically last name wins so the result is deterministic.
func ParseLiteLLM(r io.Reader) (Table, error) {
	raw := map[string]json.RawMessage{}
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPriceFile, err)
	}

	names := lo.Filter(lo.Keys(raw), func(name string, _ int) bool {
		return strings.Contains(strings.ToLower(name), "claude")
	})
	sort.Strings(names)

	table := Table{}
	for _, name := range names {
		var entry liteLLMEntry
		if err := json.Unmarshal(raw[name], &entry); err != nil {
			// The document mixes shapes; skip anything that isn't a price entry.
			continue
		}
		if entry.InputPerToken == 0 && entry.OutputPerToken == 0 {
			continue
		}

		key := priceKey(trimProvider(name))
		table[key] = Price{
			Input:      entry.InputPerToken * 1_000_000,
			Output:     entry.OutputPerToken * 1_000_000,
			CacheWrite: entry.CacheCreatePerToken * 1_000_000,
			CacheRead:  entry.CacheReadPerToken * 1_000_000,
		}
	}

	return table, nil
}

// FetchLiteLLM downloads and parses the LiteLLM price document.
//
// Parameters:
//   - ctx: Context for cancellation
//   - client: HTTP client (http.DefaultClient when nil)
//   - url: Document URL (LiteLLMURL when empty)
func FetchLiteLLM(ctx context.Context, client *http.Client, url string) (Table, error) {
	if client == nil {
		client = http.DefaultClient
	}
	if strings.TrimSpace(url) == "" {
		url = LiteLLMURL
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch prices: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, fmt.Errorf("%w: status %d", ErrFetchFailed, resp.StatusCode)
	}

	return ParseLiteLLM(resp.Body)
}

// trimProvider strips provider prefixes such as "anthropic/" or
// "bedrock/anthropic.".
func trimProvider(name string) string {
	if i := strings.LastIndex(name, "/"); i >= 0 {
		name = name[i+1:]
	}
	return strings.TrimPrefix(name, "anthropic.")
}
