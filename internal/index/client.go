package index

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	snerrors "github.com/Aman-CERP/snipsearch/internal/errors"
	"github.com/Aman-CERP/snipsearch/pkg/version"
)

// Hosted service constants.
const (
	DefaultAPIVersion = "2020-06-30"
	DefaultTop        = 50
	DefaultTimeout    = 30 * time.Second
	DefaultPoolSize   = 4

	// searchModeAll requires every term to match.
	searchModeAll = "all"
)

// HostedConfig configures the hosted search-index client.
type HostedConfig struct {
	// Endpoint is the service base URL, e.g. https://name.search.windows.net.
	Endpoint string

	// APIKey is sent as the api-key header.
	APIKey string

	// APIVersion is sent as the api-version query parameter.
	APIVersion string

	// Indexes maps each Kind to the service-side index name.
	Indexes map[Kind]string

	// Indexers maps each Kind to the indexer that crawls it.
	Indexers map[Kind]string

	// Top caps the number of hits per query (default: 50).
	Top int

	// Timeout bounds a single request when the caller's context has no deadline.
	Timeout time.Duration

	// PoolSize for the HTTP connection pool (default: 4).
	PoolSize int

	// HTTPClient overrides the client built from the settings above (tests).
	HTTPClient *http.Client
}

// HostedClient queries and refreshes indexes on the hosted search service.
type HostedClient struct {
	client    *http.Client
	transport *http.Transport // nil when HTTPClient was supplied
	config    HostedConfig
	logger    *slog.Logger
}

// Verify interface implementation at compile time
var _ Service = (*HostedClient)(nil)

// searchRequest is the POST body of a docs/search call.
type searchRequest struct {
	Search     string `json:"search"`
	Highlight  string `json:"highlight,omitempty"`
	SearchMode string `json:"searchMode"`
	Top        int    `json:"top,omitempty"`
}

// searchResponse keeps Value as a pointer so "no value" differs from "zero hits".
type searchResponse struct {
	Value *[]rawHit     `json:"value"`
	Error *serviceError `json:"error"`
}

type serviceError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type rawHit struct {
	Highlights  map[string][]string `json:"@search.highlights"`
	ID          string              `json:"id"`
	DisplayName *string             `json:"displayName"`
	StoragePath string              `json:"metadata_storage_path"`
	StorageName string              `json:"metadata_storage_name"`
}

// NewHostedClient validates cfg and applies defaults.
func NewHostedClient(cfg HostedConfig) (*HostedClient, error) {
	if cfg.Endpoint == "" {
		return nil, snerrors.ConfigError("index endpoint is required for the hosted backend", nil)
	}
	if _, err := url.Parse(cfg.Endpoint); err != nil {
		return nil, snerrors.ConfigError("index endpoint is not a URL", err)
	}
	for _, kind := range []Kind{KindMetadata, KindFileContent} {
		if cfg.Indexes[kind] == "" {
			return nil, snerrors.ConfigError(fmt.Sprintf("index name for %s is required", kind), nil)
		}
	}
	if cfg.APIVersion == "" {
		cfg.APIVersion = DefaultAPIVersion
	}
	if cfg.Top <= 0 {
		cfg.Top = DefaultTop
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.PoolSize <= 0 {
		cfg.PoolSize = DefaultPoolSize
	}
	cfg.Endpoint = strings.TrimRight(cfg.Endpoint, "/")

	c := &HostedClient{config: cfg, logger: slog.Default()}
	if cfg.HTTPClient != nil {
		c.client = cfg.HTTPClient
		return c, nil
	}

	// No http.Client.Timeout: it would override the caller's context deadline.
	c.transport = &http.Transport{
		MaxIdleConns:        cfg.PoolSize,
		MaxIdleConnsPerHost: cfg.PoolSize,
		MaxConnsPerHost:     cfg.PoolSize * 2,
		IdleConnTimeout:     30 * time.Second,
	}
	c.client = &http.Client{Transport: c.transport}
	return c, nil
}

// Query runs one search against the index for q.Kind.
// Failures are never retried here.
func (c *HostedClient) Query(ctx context.Context, q Query) ([]Hit, error) {
	name, ok := c.config.Indexes[q.Kind]
	if !ok {
		return nil, snerrors.New(snerrors.ErrCodeInvalidIndexKind, fmt.Sprintf("no index configured for %q", q.Kind), nil)
	}

	body := searchRequest{
		Search:     q.Term,
		SearchMode: searchModeAll,
		Top:        c.config.Top,
	}
	if !IsMatchAll(q.Term) && len(q.HighlightFields) > 0 {
		body.Highlight = strings.Join(q.HighlightFields, ",")
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, snerrors.InternalError("marshal search request", err)
	}

	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	endpoint := c.url("indexes", name, "docs", "search")
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, snerrors.InternalError("create search request", err)
	}
	c.setHeaders(req)

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, snerrors.TransportError(fmt.Sprintf("search index %s unreachable", name), err).
			WithDetail("index", name)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, snerrors.TransportError(fmt.Sprintf("read response from index %s", name), err)
	}

	var parsed searchResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		if resp.StatusCode >= 300 {
			return nil, statusError(name, resp.StatusCode, raw)
		}
		return nil, snerrors.MalformedError(fmt.Sprintf("index %s returned undecodable body", name), err)
	}

	if parsed.Error != nil && parsed.Error.Message != "" {
		return nil, snerrors.RejectedError(parsed.Error.Message).
			WithDetail("index", name).
			WithDetail("code", parsed.Error.Code)
	}
	if resp.StatusCode >= 300 {
		return nil, statusError(name, resp.StatusCode, raw)
	}
	if parsed.Value == nil {
		return nil, snerrors.MalformedError(fmt.Sprintf("index %s returned neither value nor error", name), nil)
	}

	hits := make([]Hit, 0, len(*parsed.Value))
	for _, rh := range *parsed.Value {
		hits = append(hits, rh.toHit(q.Kind))
	}

	c.logger.Debug("index_query_complete",
		slog.String("index", name),
		slog.String("kind", string(q.Kind)),
		slog.Int("hits", len(hits)),
		slog.Duration("latency", time.Since(start)))
	return hits, nil
}

// Refresh asks the indexer bound to kind to run now.
func (c *HostedClient) Refresh(ctx context.Context, kind Kind) error {
	name, ok := c.config.Indexers[kind]
	if !ok || name == "" {
		return snerrors.New(snerrors.ErrCodeInvalidIndexKind, fmt.Sprintf("no indexer configured for %q", kind), nil)
	}

	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url("indexers", name, "run"), http.NoBody)
	if err != nil {
		return snerrors.InternalError("create refresh request", err)
	}
	c.setHeaders(req)

	resp, err := c.client.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return snerrors.New(snerrors.ErrCodeRefreshFailed, fmt.Sprintf("indexer %s unreachable", name), err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	raw, _ := io.ReadAll(resp.Body)
	var parsed searchResponse
	msg := fmt.Sprintf("indexer %s returned status %d", name, resp.StatusCode)
	if json.Unmarshal(raw, &parsed) == nil && parsed.Error != nil && parsed.Error.Message != "" {
		msg = parsed.Error.Message
	}

	// Throttling and server faults are worth retrying; client errors are not.
	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		return snerrors.New(snerrors.ErrCodeRefreshFailed, msg, nil).WithDetail("indexer", name)
	}
	return snerrors.RejectedError(msg).WithDetail("indexer", name)
}

// Close releases idle connections.
func (c *HostedClient) Close() error {
	if c.transport != nil {
		c.transport.CloseIdleConnections()
	}
	return nil
}

func (c *HostedClient) url(parts ...string) string {
	escaped := make([]string, len(parts))
	for i, p := range parts {
		escaped[i] = url.PathEscape(p)
	}
	return c.config.Endpoint + "/" + strings.Join(escaped, "/") + "?api-version=" + url.QueryEscape(c.config.APIVersion)
}

func (c *HostedClient) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", version.UserAgent())
	if c.config.APIKey != "" {
		req.Header.Set("api-key", c.config.APIKey)
	}
}

func (c *HostedClient) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, c.config.Timeout)
}

func statusError(index string, status int, body []byte) error {
	snippet := strings.TrimSpace(string(body))
	if len(snippet) > 200 {
		snippet = snippet[:200]
	}
	return snerrors.TransportError(fmt.Sprintf("index %s returned status %d: %s", index, status, snippet), nil).
		WithDetail("index", index)
}

func (rh rawHit) toHit(kind Kind) Hit {
	h := Hit{Kind: kind, Highlights: rh.Highlights}
	switch kind {
	case KindMetadata:
		h.SnippetID = rh.ID
		if rh.DisplayName != nil {
			h.DisplayName = *rh.DisplayName
		}
	case KindFileContent:
		h.StoragePath = rh.StoragePath
		h.FileName = rh.StorageName
	}
	return h
}
