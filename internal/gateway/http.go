package gateway

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog/log"

	"github.com/Capitan-Parrot/camera-orchestrator/internal/models"
)

// HTTPClient talks to a worker pool exposing a JSON-over-HTTP API
type HTTPClient struct {
	URL    string
	client *http.Client
}

func NewHTTPClient(baseURL string, client *http.Client) *HTTPClient {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPClient{URL: strings.TrimRight(baseURL, "/"), client: client}
}

// StartAlgorithm отправляет запрос на запуск алгоритма на /algorithms/{name}/start
func (c *HTTPClient) StartAlgorithm(ctx context.Context, algorithm string, payload StartPayload) error {
	return c.post(ctx, models.CommandStartAlgorithm, algorithm, "/algorithms/"+url.PathEscape(algorithm)+"/start", payload)
}

func (c *HTTPClient) StopAndReset(ctx context.Context, algorithm string) error {
	return c.post(ctx, models.CommandStopAndReset, algorithm, "/algorithms/"+url.PathEscape(algorithm)+"/reset", struct{}{})
}

func (c *HTTPClient) RunAction(ctx context.Context, action string, payload map[string]any) error {
	return c.post(ctx, models.CommandRunAction, action, "/actions/"+url.PathEscape(action)+"/run", payload)
}

func (c *HTTPClient) post(ctx context.Context, op models.CommandKind, name, path string, body any) error {
	wrap := func(err error) error { return &Error{Op: op, Name: name, Err: err} }

	buf, err := json.Marshal(body)
	if err != nil {
		return wrap(fmt.Errorf("marshal body: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.URL+path, bytes.NewReader(buf))
	if err != nil {
		return wrap(fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return wrap(fmt.Errorf("http request: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return wrap(fmt.Errorf("bad status: %s, error: %s", resp.Status, bodyBytes))
	}

	log.Debug().Str("op", string(op)).Str("name", name).Str("status", resp.Status).Msg("worker accepted")
	return nil
}
