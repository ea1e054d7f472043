package projecttype

import (
	"context"
	"fmt"

	"github.com/vektah/gqlparser/v2/ast"

	"github.com/hiveregistry/registry/internal/differ"
	"github.com/hiveregistry/registry/internal/domain"
	"github.com/hiveregistry/registry/internal/orchestrator"
)

// CompositeModel implements STITCHING/FEDERATION/CUSTOM project types: many
// named services that must be recomposed together on every check/publish/
// delete, per spec §4.3.2.
type CompositeModel struct {
	client      orchestrator.Client
	projectType domain.ProjectType
}

func NewCompositeModel(client orchestrator.Client, projectType domain.ProjectType) *CompositeModel {
	return &CompositeModel{client: client, projectType: projectType}
}

// Capabilities varies by project type: serviceUrl is required only for
// FEDERATION, since STITCHING/CUSTOM services are addressed by name alone.
func (m *CompositeModel) Capabilities() Capabilities {
	return Capabilities{
		SupportsMetadata:    true,
		SupportsBaseSchema:  true,
		SupportsSupergraph:  true,
		RequiresServiceURL:  m.projectType == domain.ProjectTypeFederation,
		RequiresServiceName: true,
	}
}

func (m *CompositeModel) Check(ctx context.Context, in CheckInput) (*CheckResult, error) {
	if in.ServiceName == "" {
		return nil, fmt.Errorf("serviceName is required for composite project types")
	}

	candidate := replaceOrAppend(in.ExistingServices, orchestrator.ServiceSchema{
		Name: in.ServiceName,
		SDL:  in.SDL,
	})

	buildInput := m.buildInputFor(in.Project, candidate, in.Target.BaseSchema)
	result, err := m.client.Build(ctx, buildInput)
	isComposable := err == nil

	before, perr := parseOrNil(in.PreviousSDL)
	if perr != nil {
		return nil, perr
	}

	var diffAgainst *ast.SchemaDocument
	if result != nil {
		diffAgainst = result.Schema
	} else {
		// composition failed outright; diff the candidate service alone so
		// the caller still sees what changed, even though it won't compose.
		doc, derr := differ.ParseDocument(in.ServiceName, in.SDL)
		if derr != nil {
			return nil, fmt.Errorf("schema does not parse: %w", derr)
		}
		diffAgainst = doc
	}

	schemaChanges := differ.Compare(before, diffAgainst)

	return &CheckResult{
		Changes:       schemaChanges,
		IsComposable:  isComposable,
		BreakingCount: countBreaking(schemaChanges),
	}, nil
}

func (m *CompositeModel) Publish(ctx context.Context, in PublishInput) (*PublishResult, error) {
	if in.ServiceName == "" {
		return nil, fmt.Errorf("serviceName is required for composite project types")
	}
	if m.capabilitiesNeedURL() && in.ServiceURL == "" {
		return nil, fmt.Errorf("serviceUrl is required for this project type")
	}

	candidate := replaceOrAppend(in.ExistingServices, orchestrator.ServiceSchema{
		Name: in.ServiceName,
		URL:  in.ServiceURL,
		SDL:  in.SDL,
	})

	buildInput := m.buildInputFor(in.Project, candidate, in.Target.BaseSchema)
	result, err := m.client.Build(ctx, buildInput)

	before, perr := parseOrNil(in.PreviousSDL)
	if perr != nil {
		return nil, perr
	}

	if err != nil {
		if !in.Force {
			return nil, err
		}
		// Force publish records the write even though composition failed;
		// the version is marked non-composable by the caller.
		doc, derr := differ.ParseDocument(in.ServiceName, in.SDL)
		if derr != nil {
			return nil, fmt.Errorf("schema does not parse: %w", derr)
		}
		return &PublishResult{
			Changes:      differ.Compare(before, doc),
			IsComposable: false,
			CompositeSDL: "",
		}, nil
	}

	changes := differ.Compare(before, result.Schema)
	supergraph, _ := m.client.Supergraph(ctx, buildInput)

	return &PublishResult{
		Changes:       changes,
		IsComposable:  true,
		CompositeSDL:  differ.RenderDocument(result.Schema),
		SupergraphSDL: supergraph,
	}, nil
}

func (m *CompositeModel) Delete(ctx context.Context, in DeleteInput) (*DeleteResult, error) {
	if in.ServiceName == "" {
		return nil, fmt.Errorf("serviceName is required to delete a composite project's service")
	}

	remaining := removeByName(in.ExistingServices, in.ServiceName)

	if len(remaining) == 0 {
		return &DeleteResult{IsComposable: true}, nil
	}

	baseSchema := ""
	if in.Target != nil {
		baseSchema = in.Target.BaseSchema
	}
	result, err := m.client.Build(ctx, m.buildInputFor(in.Project, remaining, baseSchema))
	isComposable := err == nil

	var compositeSDL string
	if result != nil {
		compositeSDL = differ.RenderDocument(result.Schema)
	}

	return &DeleteResult{IsComposable: isComposable, CompositeSDL: compositeSDL}, nil
}

func (m *CompositeModel) capabilitiesNeedURL() bool {
	return m.Capabilities().RequiresServiceURL
}

// buildInputFor carries a project's registry model and external
// composition settings through to the orchestrator client, per spec
// §4.1/§6; externalComposition is populated only when both the endpoint
// and the encrypted secret are configured.
func (m *CompositeModel) buildInputFor(project *domain.Project, services []orchestrator.ServiceSchema, baseSchema string) orchestrator.BuildInput {
	input := orchestrator.BuildInput{Services: services, BaseSchema: baseSchema}
	if project == nil {
		return input
	}
	input.IsUsingLegacyRegistryModel = project.IsUsingLegacyRegistryModel
	if project.ExternalCompositionEndpoint != nil && project.ExternalCompositionEncryptedSecret != nil {
		input.ExternalComposition = &orchestrator.ExternalComposition{
			Endpoint:        *project.ExternalCompositionEndpoint,
			EncryptedSecret: *project.ExternalCompositionEncryptedSecret,
		}
	}
	return input
}

func replaceOrAppend(services []orchestrator.ServiceSchema, next orchestrator.ServiceSchema) []orchestrator.ServiceSchema {
	out := make([]orchestrator.ServiceSchema, 0, len(services)+1)
	replaced := false
	for _, s := range services {
		if s.Name == next.Name {
			out = append(out, next)
			replaced = true
			continue
		}
		out = append(out, s)
	}
	if !replaced {
		out = append(out, next)
	}
	return out
}

func removeByName(services []orchestrator.ServiceSchema, name string) []orchestrator.ServiceSchema {
	out := make([]orchestrator.ServiceSchema, 0, len(services))
	for _, s := range services {
		if s.Name != name {
			out = append(out, s)
		}
	}
	return out
}
