package lifecycle

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hiveregistry/registry/internal/domain"
)

// fakeStore is an in-memory domain.Store used to exercise the coordinator
// without a database, mirroring the project's own Store interface rather
// than introducing a separate mocking abstraction.
type fakeStore struct {
	mu sync.Mutex

	targets  map[uuid.UUID]*domain.Target
	projects map[string]*domain.Project // keyed by organization/name
	actions  map[uuid.UUID]*domain.Action
	versions map[uuid.UUID]*domain.Version
	edges    map[uuid.UUID][]uuid.UUID // versionID -> actionIDs
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		targets:  map[uuid.UUID]*domain.Target{},
		projects: map[string]*domain.Project{},
		actions:  map[uuid.UUID]*domain.Action{},
		versions: map[uuid.UUID]*domain.Version{},
		edges:    map[uuid.UUID][]uuid.UUID{},
	}
}

func (s *fakeStore) Targets() domain.TargetRepository   { return (*fakeTargets)(s) }
func (s *fakeStore) Projects() domain.ProjectRepository { return (*fakeProjects)(s) }
func (s *fakeStore) Actions() domain.ActionRepository   { return (*fakeActions)(s) }
func (s *fakeStore) Versions() domain.VersionRepository { return (*fakeVersions)(s) }

func (s *fakeStore) CommitVersion(ctx context.Context, action *domain.Action, version *domain.Version, edgeActionIDs []uuid.UUID, changesJSON string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if action.ID == uuid.Nil {
		action.ID = uuid.New()
	}
	action.CreatedAt = time.Now()
	s.actions[action.ID] = action

	if version.ID == uuid.Nil {
		version.ID = uuid.New()
	}
	version.ActionID = action.ID
	version.CreatedAt = time.Now()
	s.versions[version.ID] = version
	s.edges[version.ID] = edgeActionIDs

	return nil
}

func (s *fakeStore) CommitActionOnly(ctx context.Context, action *domain.Action) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if action.ID == uuid.Nil {
		action.ID = uuid.New()
	}
	action.CreatedAt = time.Now()
	s.actions[action.ID] = action
	return nil
}

func (s *fakeStore) putTarget(t *domain.Target) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	s.targets[t.ID] = t
}

func (s *fakeStore) putProject(p *domain.Project) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	s.projects[projectKey(p.Organization, p.Name)] = p
}

func projectKey(organization, name string) string { return organization + "/" + name }

type fakeTargets fakeStore

func (f *fakeTargets) Create(ctx context.Context, t *domain.Target) error {
	(*fakeStore)(f).putTarget(t)
	return nil
}

func (f *fakeTargets) GetByID(ctx context.Context, id uuid.UUID) (*domain.Target, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.targets[id]
	if !ok {
		return nil, fmt.Errorf("target %s not found", id)
	}
	return t, nil
}

func (f *fakeTargets) GetByPath(ctx context.Context, organization, project, name string) (*domain.Target, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, t := range f.targets {
		if t.Organization == organization && t.Project == project && t.Name == name {
			return t, nil
		}
	}
	return nil, fmt.Errorf("target %s/%s/%s not found", organization, project, name)
}

func (f *fakeTargets) Update(ctx context.Context, t *domain.Target) error {
	(*fakeStore)(f).putTarget(t)
	return nil
}

func (f *fakeTargets) ListByProject(ctx context.Context, organization, project string) ([]*domain.Target, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*domain.Target
	for _, t := range f.targets {
		if t.Organization == organization && t.Project == project {
			out = append(out, t)
		}
	}
	return out, nil
}

type fakeProjects fakeStore

func (f *fakeProjects) GetByID(ctx context.Context, id uuid.UUID) (*domain.Project, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.projects {
		if p.ID == id {
			return p, nil
		}
	}
	return nil, fmt.Errorf("project %s not found", id)
}

func (f *fakeProjects) GetByPath(ctx context.Context, organization, name string) (*domain.Project, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.projects[projectKey(organization, name)]
	if !ok {
		return nil, fmt.Errorf("project %s/%s not found", organization, name)
	}
	return p, nil
}

func (f *fakeProjects) Update(ctx context.Context, p *domain.Project) error {
	(*fakeStore)(f).putProject(p)
	return nil
}

type fakeActions fakeStore

func (f *fakeActions) Create(ctx context.Context, a *domain.Action) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	f.actions[a.ID] = a
	return nil
}

func (f *fakeActions) GetByID(ctx context.Context, id uuid.UUID) (*domain.Action, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.actions[id]
	if !ok {
		return nil, fmt.Errorf("action %s not found", id)
	}
	return a, nil
}

func (f *fakeActions) ListByTarget(ctx context.Context, targetID uuid.UUID, limit int) ([]*domain.Action, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*domain.Action
	for _, a := range f.actions {
		if a.TargetID == targetID {
			out = append(out, a)
		}
	}
	return out, nil
}

type fakeVersions fakeStore

func (f *fakeVersions) Create(ctx context.Context, v *domain.Version, edgeActionIDs []uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if v.ID == uuid.Nil {
		v.ID = uuid.New()
	}
	f.versions[v.ID] = v
	f.edges[v.ID] = edgeActionIDs
	return nil
}

func (f *fakeVersions) GetLatest(ctx context.Context, targetID uuid.UUID) (*domain.Version, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.latestLocked(targetID, false)
}

func (f *fakeVersions) GetLatestComposable(ctx context.Context, targetID uuid.UUID) (*domain.Version, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.latestLocked(targetID, true)
}

func (f *fakeVersions) latestLocked(targetID uuid.UUID, composableOnly bool) (*domain.Version, error) {
	var latest *domain.Version
	for _, v := range f.versions {
		if v.TargetID != targetID {
			continue
		}
		if composableOnly && !v.IsComposable {
			continue
		}
		if latest == nil || v.CreatedAt.After(latest.CreatedAt) {
			latest = v
		}
	}
	if latest == nil {
		return nil, fmt.Errorf("no version found for target %s", targetID)
	}
	return latest, nil
}

func (f *fakeVersions) GetByID(ctx context.Context, id uuid.UUID) (*domain.Version, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.versions[id]
	if !ok {
		return nil, fmt.Errorf("version %s not found", id)
	}
	return v, nil
}

func (f *fakeVersions) ListEdgeActions(ctx context.Context, versionID uuid.UUID) ([]*domain.Action, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ids := f.edges[versionID]
	out := make([]*domain.Action, 0, len(ids))
	for _, id := range ids {
		if a, ok := f.actions[id]; ok {
			out = append(out, a)
		}
	}
	return out, nil
}

func (f *fakeVersions) ListByTarget(ctx context.Context, targetID uuid.UUID, limit int) ([]*domain.Version, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*domain.Version
	for _, v := range f.versions {
		if v.TargetID == targetID {
			out = append(out, v)
		}
	}
	return out, nil
}

func (f *fakeVersions) SaveChangeSet(ctx context.Context, versionID uuid.UUID, changesJSON string) error {
	return nil
}

func (f *fakeVersions) UpdateComposable(ctx context.Context, versionID uuid.UUID, composable bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.versions[versionID]
	if !ok {
		return fmt.Errorf("version %s not found", versionID)
	}
	v.IsComposable = composable
	return nil
}
