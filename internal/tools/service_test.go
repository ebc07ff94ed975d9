package tools

import (
	"context"
	"encoding/json"
	"net/url"
	"strings"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/helixir/scholar-service/internal/observability"
	"github.com/helixir/scholar-service/internal/scholar"
	"github.com/helixir/scholar-service/internal/tracker"
)

// call records one request made against the fake client.
type call struct {
	method   string
	api      scholar.API
	endpoint string
	params   url.Values
	body     any
}

// fakeClient is an in-memory APIClient. Responses are matched by the longest
// registered endpoint prefix; unmatched endpoints return the fallback error.
type fakeClient struct {
	mu        sync.Mutex
	responses map[string]json.RawMessage
	errors    map[string]error
	calls     []call
}

func newFakeClient() *fakeClient {
	return &fakeClient{
		responses: make(map[string]json.RawMessage),
		errors:    make(map[string]error),
	}
}

func (f *fakeClient) respond(endpointPrefix, payload string) {
	f.responses[endpointPrefix] = json.RawMessage(payload)
}

func (f *fakeClient) fail(endpointPrefix string, err error) {
	f.errors[endpointPrefix] = err
}

func (f *fakeClient) lookup(endpoint string) (json.RawMessage, error) {
	var bestPrefix string
	var payload json.RawMessage
	for prefix, p := range f.responses {
		if strings.HasPrefix(endpoint, prefix) && len(prefix) > len(bestPrefix) {
			bestPrefix = prefix
			payload = p
		}
	}
	for prefix, err := range f.errors {
		if strings.HasPrefix(endpoint, prefix) && len(prefix) >= len(bestPrefix) {
			return nil, err
		}
	}
	if payload == nil {
		return json.RawMessage(`{}`), nil
	}
	return payload, nil
}

func (f *fakeClient) GetWithRetry(ctx context.Context, api scholar.API, endpoint string, params url.Values) (json.RawMessage, error) {
	f.mu.Lock()
	f.calls = append(f.calls, call{method: "GET", api: api, endpoint: endpoint, params: params})
	f.mu.Unlock()
	return f.lookup(endpoint)
}

func (f *fakeClient) PostWithRetry(ctx context.Context, api scholar.API, endpoint string, body any, params url.Values) (json.RawMessage, error) {
	f.mu.Lock()
	f.calls = append(f.calls, call{method: "POST", api: api, endpoint: endpoint, params: params, body: body})
	f.mu.Unlock()
	return f.lookup(endpoint)
}

func (f *fakeClient) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func (f *fakeClient) lastCall() call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[len(f.calls)-1]
}

func newTestService(t *testing.T, client APIClient) *Service {
	t.Helper()
	metrics := observability.NewMetrics("test", prometheus.NewRegistry())
	return NewService(client, tracker.NewPaperTracker(), zerolog.Nop(), metrics)
}
