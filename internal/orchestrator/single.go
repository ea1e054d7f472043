package orchestrator

import (
	"context"
	"fmt"

	"github.com/vektah/gqlparser/v2/ast"

	"github.com/hiveregistry/registry/internal/differ"
)

// SingleClient composes a SINGLE project's one-and-only service in process
// by parsing its SDL document with gqlparser.
type SingleClient struct{}

func NewSingleClient() *SingleClient { return &SingleClient{} }

func (c *SingleClient) Validate(ctx context.Context, input BuildInput) error {
	_, err := c.parse(input)
	return err
}

func (c *SingleClient) Build(ctx context.Context, input BuildInput) (*BuildResult, error) {
	doc, err := c.parse(input)
	if err != nil {
		return nil, err
	}
	return &BuildResult{Schema: doc}, nil
}

func (c *SingleClient) Supergraph(ctx context.Context, input BuildInput) (string, error) {
	return "", nil
}

func (c *SingleClient) parse(input BuildInput) (*ast.SchemaDocument, error) {
	if len(input.Services) != 1 {
		return nil, &BuildError{Err: fmt.Errorf("single project expects exactly one service, got %d", len(input.Services))}
	}
	sdl := input.BaseSchema + "\n" + input.Services[0].SDL
	doc, err := differ.ParseDocument(input.Services[0].Name, sdl)
	if err != nil {
		return nil, &BuildError{Service: input.Services[0].Name, Err: err}
	}
	return doc, nil
}
