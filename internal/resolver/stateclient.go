// internal/resolver/stateclient.go
//
// Internal state-retrieval endpoint client.
//
// The state service predates the current schema and has renamed its
// response fields more than once, so the decode probes every naming
// variant seen in the wild rather than binding to a struct.  A miss on
// every variant is reported as ErrNoMapping, which the resolver treats as
// a fall-through.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	json "github.com/goccy/go-json"
)

// ErrNoMapping signals a response that carried neither a canonical id nor
// a base slug under any known field name.
var ErrNoMapping = errors.New("resolver: state endpoint returned no mapping")

var canonicalIDFields = []string{"canonical_id", "canonicalId", "template_id", "templateId"}
var baseSlugFields = []string{"base_slug", "baseSlug", "slug"}

// StateClient fetches identifier mappings from the internal endpoint.
type StateClient struct {
	base string
	http *http.Client
}

// NewStateClient builds a client for the configured endpoint URL.
func NewStateClient(base string) *StateClient {
	return &StateClient{
		base: strings.TrimSuffix(base, "/"),
		http: &http.Client{Timeout: 5 * time.Second},
	}
}

// Fetch returns whatever mapping the endpoint knows for identifier.
// Either return value may be empty, but not both.
func (c *StateClient) Fetch(ctx context.Context, identifier string) (canonicalID, baseSlug string, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.base+"/"+identifier, nil)
	if err != nil {
		return "", "", err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return "", "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", "", fmt.Errorf("resolver: state endpoint status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", "", err
	}

	var payload map[string]any
	if err := json.Unmarshal(body, &payload); err != nil {
		return "", "", fmt.Errorf("resolver: state endpoint decode: %w", err)
	}

	canonicalID = firstString(payload, canonicalIDFields)
	baseSlug = firstString(payload, baseSlugFields)
	if canonicalID == "" && baseSlug == "" {
		return "", "", ErrNoMapping
	}
	return canonicalID, baseSlug, nil
}

// firstString probes keys in order, including one level under a "data"
// envelope, and returns the first non-empty string value.
func firstString(payload map[string]any, keys []string) string {
	for _, k := range keys {
		if s, ok := payload[k].(string); ok && s != "" {
			return s
		}
	}
	if inner, ok := payload["data"].(map[string]any); ok {
		for _, k := range keys {
			if s, ok := inner[k].(string); ok && s != "" {
				return s
			}
		}
	}
	return ""
}
