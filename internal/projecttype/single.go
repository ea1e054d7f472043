package projecttype

import (
	"context"
	"fmt"

	"github.com/vektah/gqlparser/v2/ast"

	"github.com/hiveregistry/registry/internal/differ"
	"github.com/hiveregistry/registry/internal/domain"
	"github.com/hiveregistry/registry/internal/orchestrator"
)

// ErrSingleDeleteUnsupported is returned whenever a schemaDelete is attempted
// against a SINGLE project, whether rejected early by the lifecycle
// coordinator or, as a defense in depth, by this model directly.
var ErrSingleDeleteUnsupported = fmt.Errorf("Deleting schemas is not supported for single-schema projects")

// SingleModel implements the SINGLE project type: one target, no service
// name, no composition step, per spec §4.3.1.
type SingleModel struct {
	client orchestrator.Client
}

func NewSingleModel(client orchestrator.Client) *SingleModel {
	return &SingleModel{client: client}
}

func (m *SingleModel) Capabilities() Capabilities {
	return Capabilities{SupportsMetadata: true, SupportsBaseSchema: true}
}

func (m *SingleModel) Check(ctx context.Context, in CheckInput) (*CheckResult, error) {
	if err := m.client.Validate(ctx, orchestrator.BuildInput{
		Services:   []orchestrator.ServiceSchema{{Name: "default", SDL: in.SDL}},
		BaseSchema: in.Target.BaseSchema,
	}); err != nil {
		return nil, fmt.Errorf("schema does not compose: %w", err)
	}

	before, err := parseOrNil(in.PreviousSDL)
	if err != nil {
		return nil, err
	}
	after, err := differ.ParseDocument(in.Target.Name, in.Target.BaseSchema+"\n"+in.SDL)
	if err != nil {
		return nil, fmt.Errorf("schema does not parse: %w", err)
	}

	changes := differ.Compare(before, after)
	return &CheckResult{
		Changes:       changes,
		IsComposable:  true,
		BreakingCount: countBreaking(changes),
	}, nil
}

func (m *SingleModel) Publish(ctx context.Context, in PublishInput) (*PublishResult, error) {
	result, err := m.client.Build(ctx, orchestrator.BuildInput{
		Services:   []orchestrator.ServiceSchema{{Name: "default", SDL: in.SDL}},
		BaseSchema: in.Target.BaseSchema,
	})
	if err != nil {
		return nil, err
	}

	before, err := parseOrNil(in.PreviousSDL)
	if err != nil {
		return nil, err
	}
	changes := differ.Compare(before, result.Schema)

	return &PublishResult{
		Changes:      changes,
		IsComposable: true,
		CompositeSDL: in.SDL,
	}, nil
}

func (m *SingleModel) Delete(ctx context.Context, in DeleteInput) (*DeleteResult, error) {
	return nil, ErrSingleDeleteUnsupported
}

func parseOrNil(sdl string) (*ast.SchemaDocument, error) {
	if sdl == "" {
		return nil, nil
	}
	return differ.ParseDocument("previous", sdl)
}

func countBreaking(changes []domain.Change) int {
	count := 0
	for _, c := range changes {
		if c.Criticality == domain.CriticalityBreaking {
			count++
		}
	}
	return count
}
