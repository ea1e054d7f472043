// Package projecttype implements C3: the per-project-type flow that
// decides how a check/publish/delete call is interpreted. SingleModel
// handles the SINGLE project type (one target, no service name); Composite
// handles STITCHING/FEDERATION/CUSTOM (many named services that must be
// composed together).
package projecttype

import (
	"context"

	"github.com/hiveregistry/registry/internal/domain"
	"github.com/hiveregistry/registry/internal/orchestrator"
)

// Capabilities describes what a project type supports, mirroring the
// per-type capability table in the design notes.
type Capabilities struct {
	SupportsMetadata     bool
	SupportsBaseSchema   bool
	SupportsSupergraph   bool
	RequiresServiceURL   bool
	RequiresServiceName  bool
}

type CheckInput struct {
	Target           *domain.Target
	Project          *domain.Project
	ServiceName      string
	SDL              string
	PreviousSDL      string                      // this service's last published SDL (the target's, for SINGLE), if any
	ExistingServices []orchestrator.ServiceSchema // the rest of the project's live services
}

type CheckResult struct {
	Changes      []domain.Change
	IsComposable bool
	BreakingCount int
}

type PublishInput struct {
	Target           *domain.Target
	Project          *domain.Project
	ServiceName      string
	ServiceURL       string
	SDL              string
	Metadata         string
	PreviousSDL      string
	ExistingServices []orchestrator.ServiceSchema
	Force            bool
}

type PublishResult struct {
	Changes       []domain.Change
	IsComposable  bool
	CompositeSDL  string
	SupergraphSDL string
	EdgeActionIDs []string
}

type DeleteInput struct {
	Target           *domain.Target
	Project          *domain.Project
	ServiceName      string
	ExistingServices []orchestrator.ServiceSchema
	DryRun           bool
}

type DeleteResult struct {
	Changes      []domain.Change
	IsComposable bool
	CompositeSDL string
}

// Model is implemented by SingleModel and CompositeModel.
type Model interface {
	Capabilities() Capabilities
	Check(ctx context.Context, in CheckInput) (*CheckResult, error)
	Publish(ctx context.Context, in PublishInput) (*PublishResult, error)
	Delete(ctx context.Context, in DeleteInput) (*DeleteResult, error)
}

// ForProjectType selects the model implementation and orchestrator client
// appropriate for a project, per spec §4.3/§9.
func ForProjectType(projectType domain.ProjectType, client orchestrator.Client) Model {
	switch projectType {
	case domain.ProjectTypeSingle:
		return NewSingleModel(client)
	default:
		return NewCompositeModel(client, projectType)
	}
}
