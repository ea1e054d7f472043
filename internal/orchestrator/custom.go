package orchestrator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/hiveregistry/registry/internal/differ"
)

// CustomClient delegates validation and build to project-supplied
// validationUrl/buildUrl endpoints, for organizations running their own
// composition tooling outside of the registry's built-in orchestrators.
// Per the design notes, CUSTOM is expected to be retired once those
// organizations migrate to FEDERATION; until then it is fully supported.
type CustomClient struct {
	validationURL string
	buildURL      string
	httpClient    *http.Client
}

func NewCustomClient(validationURL, buildURL string, timeout time.Duration) *CustomClient {
	return &CustomClient{
		validationURL: validationURL,
		buildURL:      buildURL,
		httpClient:    &http.Client{Timeout: timeout},
	}
}

func (c *CustomClient) Validate(ctx context.Context, input BuildInput) error {
	_, err := c.call(ctx, c.validationURL, input)
	return err
}

func (c *CustomClient) Build(ctx context.Context, input BuildInput) (*BuildResult, error) {
	resp, err := c.call(ctx, c.buildURL, input)
	if err != nil {
		return nil, err
	}
	if len(resp.Errors) > 0 {
		return nil, &BuildError{Err: fmt.Errorf("custom build failed: %v", resp.Errors)}
	}

	doc, err := differ.ParseDocument("custom", resp.SupergraphSDL)
	if err != nil {
		return nil, &BuildError{Err: fmt.Errorf("custom build result did not parse: %w", err)}
	}

	return &BuildResult{Schema: doc, Warnings: resp.Warnings}, nil
}

func (c *CustomClient) Supergraph(ctx context.Context, input BuildInput) (string, error) {
	return "", nil
}

func (c *CustomClient) call(ctx context.Context, url string, input BuildInput) (*compositionResponse, error) {
	if url == "" {
		return nil, &BuildError{Err: fmt.Errorf("custom project has no endpoint configured")}
	}

	body, err := json.Marshal(compositionRequest{Services: input.Services})
	if err != nil {
		return nil, &BuildError{Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, &BuildError{Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-request-id", uuid.NewString())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &BuildError{Err: fmt.Errorf("custom endpoint request failed: %w", err)}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &BuildError{Err: err}
	}

	var out compositionResponse
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, &BuildError{Err: fmt.Errorf("invalid custom endpoint response: %w", err)}
	}
	return &out, nil
}
