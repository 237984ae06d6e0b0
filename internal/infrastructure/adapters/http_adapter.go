// Package adapters bridges the executor's uniform invoke contract onto the
// configured provider endpoints. The engine never speaks provider wire
// protocols itself; this JSON-over-HTTP adapter (or a vendor SDK adapter
// injected in its place) is the collaborator that does.
package adapters

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"

	"fieldops/services/coordination-api/internal/domain/provider"
)

// HTTPAdapter invokes providers over HTTP with per-provider timeouts and
// credential resolution. Clients are created lazily per provider id.
type HTTPAdapter struct {
	log zerolog.Logger

	mu      sync.Mutex
	clients map[string]*resty.Client
}

func NewHTTPAdapter(log zerolog.Logger) *HTTPAdapter {
	return &HTTPAdapter{
		log:     log.With().Str("component", "http-adapter").Logger(),
		clients: make(map[string]*resty.Client),
	}
}

func (a *HTTPAdapter) clientFor(p provider.Provider) *resty.Client {
	a.mu.Lock()
	defer a.mu.Unlock()
	if client, ok := a.clients[p.ID]; ok {
		return client
	}

	client := resty.New().
		SetBaseURL(p.BaseURL).
		SetTimeout(p.InvokeTimeout).
		SetHeader("Content-Type", "application/json")
	if token := resolveCredential(p.CredentialsRef); token != "" {
		client.SetAuthToken(token)
	}
	a.clients[p.ID] = client
	return client
}

// resolveCredential supports "env:VAR_NAME" references; anything else is
// treated as an opaque literal.
func resolveCredential(ref string) string {
	if ref == "" {
		return ""
	}
	if name, ok := strings.CutPrefix(ref, "env:"); ok {
		return os.Getenv(name)
	}
	return ref
}

// Invoke posts the operation payload to the provider endpoint and returns
// the raw response body. Non-2xx responses are failures.
func (a *HTTPAdapter) Invoke(ctx context.Context, p provider.Provider, payload json.RawMessage) (json.RawMessage, error) {
	resp, err := a.clientFor(p).R().
		SetContext(ctx).
		SetBody(payload).
		Post("")
	if err != nil {
		return nil, fmt.Errorf("invoke %s: %w", p.ID, err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("invoke %s: status %d", p.ID, resp.StatusCode())
	}
	return json.RawMessage(resp.Body()), nil
}

// Probe performs the provider's health check request and reports its
// round-trip latency.
func (a *HTTPAdapter) Probe(ctx context.Context, p provider.Provider) (time.Duration, error) {
	start := time.Now()
	resp, err := a.clientFor(p).R().
		SetContext(ctx).
		Get(p.HealthPath)
	latency := time.Since(start)
	if err != nil {
		return latency, fmt.Errorf("probe %s: %w", p.ID, err)
	}
	if resp.IsError() {
		return latency, fmt.Errorf("probe %s: status %d", p.ID, resp.StatusCode())
	}
	return latency, nil
}

// Reset drops the cached client for a provider, picking up new catalogue
// settings after a hot reload.
func (a *HTTPAdapter) Reset(providerID string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.clients, providerID)
}
