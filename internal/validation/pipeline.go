// Package validation implements C4: the eight-step pipeline that every
// schemaCheck and schemaPublish call runs through before the project-type
// model is allowed to touch the version store. It is kept independent of
// C3 so both check and publish share exactly one validation code path, per
// spec §4.4.
package validation

import (
	"context"
	"fmt"
	"time"

	"github.com/hiveregistry/registry/internal/differ"
	"github.com/hiveregistry/registry/internal/domain"
	"github.com/hiveregistry/registry/internal/orchestrator"
	"github.com/hiveregistry/registry/internal/projecttype"
)

type Input struct {
	Target      *domain.Target
	Project     *domain.Project
	ServiceName string
	ServiceURL  string
	SDL         string
}

type Result struct {
	Changes        []domain.Change
	IsComposable   bool
	HasBreaking    bool
	HashUnchanged  bool
}

// Pipeline runs the shared validation steps for check/publish.
type Pipeline struct {
	model projecttype.Model
}

func NewPipeline(model projecttype.Model) *Pipeline {
	return &Pipeline{model: model}
}

// Validate implements the eight-step algorithm:
//  1. reject empty SDL
//  2. reject malformed SDL (parse failure)
//  3. enforce serviceName/serviceUrl requirements per project capability
//  4. compute the SDL hash and flag the result when it is unchanged from
//     the prior publish; Check still runs, and the caller decides whether
//     to skip the write
//  5. run the project type's Check to get composability and a diff
//  6. classify the diff's worst criticality
//  7. reject on BREAKING unless the caller is forcing the publish
//  8. return the validated result for the coordinator to persist
func (p *Pipeline) Validate(ctx context.Context, in Input, previousSDL string, existingServices []ServiceRef, force bool) (*Result, error) {
	if len(in.SDL) == 0 {
		return nil, fmt.Errorf("SDL must not be empty")
	}

	if _, err := differ.ParseDocument(in.ServiceName, in.SDL); err != nil {
		return nil, fmt.Errorf("SDL is not valid GraphQL: %w", err)
	}

	capabilities := p.model.Capabilities()
	if capabilities.RequiresServiceName && in.ServiceName == "" {
		return nil, fmt.Errorf("serviceName is required for this project type")
	}
	if capabilities.RequiresServiceURL && in.ServiceURL == "" {
		return nil, fmt.Errorf("serviceUrl is required for this project type")
	}

	hashUnchanged := differ.Hash(previousSDL) == differ.Hash(in.SDL) && previousSDL != ""

	checkResult, err := p.model.Check(ctx, projecttype.CheckInput{
		Target:           in.Target,
		Project:          in.Project,
		ServiceName:      in.ServiceName,
		SDL:              in.SDL,
		PreviousSDL:      previousSDL,
		ExistingServices: toOrchestratorServices(existingServices),
	})
	if err != nil {
		return nil, err
	}

	hasBreaking := checkResult.BreakingCount > 0
	if hasBreaking && !force {
		return &Result{
			Changes:       checkResult.Changes,
			IsComposable:  checkResult.IsComposable,
			HasBreaking:   true,
			HashUnchanged: hashUnchanged,
		}, &BreakingChangeError{Changes: checkResult.Changes}
	}

	return &Result{
		Changes:       checkResult.Changes,
		IsComposable:  checkResult.IsComposable,
		HasBreaking:   hasBreaking,
		HashUnchanged: hashUnchanged,
	}, nil
}

// ServiceRef is the minimal shape the pipeline needs for a project's other
// live services; the coordinator builds this from the version store.
// Metadata and PublishedAt are carried through only for CDN artifact
// shaping and are not read by the pipeline itself.
type ServiceRef struct {
	Name        string
	URL         string
	SDL         string
	Metadata    string
	PublishedAt time.Time
}

func toOrchestratorServices(refs []ServiceRef) []orchestrator.ServiceSchema {
	out := make([]orchestrator.ServiceSchema, 0, len(refs))
	for _, r := range refs {
		out = append(out, orchestrator.ServiceSchema{Name: r.Name, URL: r.URL, SDL: r.SDL})
	}
	return out
}

// BreakingChangeError signals the pipeline rejected a publish/check because
// it contains a BREAKING change and the caller did not force it through.
type BreakingChangeError struct {
	Changes []domain.Change
}

func (e *BreakingChangeError) Error() string {
	return fmt.Sprintf("schema contains %d breaking change(s)", len(breakingOnly(e.Changes)))
}

func breakingOnly(changes []domain.Change) []domain.Change {
	var out []domain.Change
	for _, c := range changes {
		if c.Criticality == domain.CriticalityBreaking {
			out = append(out, c)
		}
	}
	return out
}
