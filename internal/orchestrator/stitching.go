package orchestrator

import (
	"context"
	"fmt"
	"strings"

	"github.com/vektah/gqlparser/v2/ast"

	"github.com/hiveregistry/registry/internal/differ"
)

// StitchingClient composes a STITCHING project's services by concatenating
// their SDL and parsing the result as one document, a "merge then parse"
// approach used before a real composition engine is wired in.
// StitchingClient never produces a supergraph.
type StitchingClient struct{}

func NewStitchingClient() *StitchingClient { return &StitchingClient{} }

func (c *StitchingClient) Validate(ctx context.Context, input BuildInput) error {
	_, err := c.merge(input)
	return err
}

func (c *StitchingClient) Build(ctx context.Context, input BuildInput) (*BuildResult, error) {
	doc, err := c.merge(input)
	if err != nil {
		return nil, err
	}
	return &BuildResult{Schema: doc}, nil
}

func (c *StitchingClient) Supergraph(ctx context.Context, input BuildInput) (string, error) {
	return "", nil
}

func (c *StitchingClient) merge(input BuildInput) (*ast.SchemaDocument, error) {
	if len(input.Services) == 0 {
		return nil, &BuildError{Err: fmt.Errorf("stitching project requires at least one service")}
	}

	var sb strings.Builder
	sb.WriteString(input.BaseSchema)
	sb.WriteString("\n")
	for _, svc := range input.Services {
		sb.WriteString(svc.SDL)
		sb.WriteString("\n")
	}

	doc, err := differ.ParseDocument("stitched", sb.String())
	if err != nil {
		return nil, &BuildError{Err: err}
	}
	return doc, nil
}
