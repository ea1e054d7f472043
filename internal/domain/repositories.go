package domain

import (
	"context"

	"github.com/google/uuid"
)

// TargetRepository persists Target rows (C5 Version store).
type TargetRepository interface {
	Create(ctx context.Context, target *Target) error
	GetByID(ctx context.Context, id uuid.UUID) (*Target, error)
	GetByPath(ctx context.Context, organization, project, name string) (*Target, error)
	Update(ctx context.Context, target *Target) error
	ListByProject(ctx context.Context, organization, project string) ([]*Target, error)
}

// ProjectRepository persists Project rows.
type ProjectRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*Project, error)
	GetByPath(ctx context.Context, organization, name string) (*Project, error)
	Update(ctx context.Context, project *Project) error
}

// ActionRepository persists the append-only Action log.
type ActionRepository interface {
	Create(ctx context.Context, action *Action) error
	GetByID(ctx context.Context, id uuid.UUID) (*Action, error)
	ListByTarget(ctx context.Context, targetID uuid.UUID, limit int) ([]*Action, error)
}

// VersionRepository persists immutable Versions and their live-set edges.
type VersionRepository interface {
	Create(ctx context.Context, version *Version, edgeActionIDs []uuid.UUID) error
	GetLatest(ctx context.Context, targetID uuid.UUID) (*Version, error)
	GetLatestComposable(ctx context.Context, targetID uuid.UUID) (*Version, error)
	GetByID(ctx context.Context, id uuid.UUID) (*Version, error)
	ListEdgeActions(ctx context.Context, versionID uuid.UUID) ([]*Action, error)
	ListByTarget(ctx context.Context, targetID uuid.UUID, limit int) ([]*Version, error)
	SaveChangeSet(ctx context.Context, versionID uuid.UUID, changesJSON string) error

	// UpdateComposable flips isComposable on an existing version; legacy
	// registry model only (spec §4.5 updateVersionStatus).
	UpdateComposable(ctx context.Context, versionID uuid.UUID, composable bool) error
}

// Store is the aggregate read/write surface the lifecycle coordinator (C7)
// depends on; it composes the four narrower repositories above plus the
// transactional "commit a publish/delete outcome" operation that must
// happen atomically (spec §4.5, §4.7).
type Store interface {
	Targets() TargetRepository
	Projects() ProjectRepository
	Actions() ActionRepository
	Versions() VersionRepository

	// CommitVersion writes the action, the new version, and its live-set
	// edges in a single transaction. edgeActionIDs is the full live set for
	// the new version, not a delta.
	CommitVersion(ctx context.Context, action *Action, version *Version, edgeActionIDs []uuid.UUID, changesJSON string) error

	// CommitActionOnly records an action (e.g. a rejected publish) without
	// creating a new version.
	CommitActionOnly(ctx context.Context, action *Action) error
}
