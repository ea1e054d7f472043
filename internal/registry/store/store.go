// Package store implements C5: the gorm-backed persistence of targets,
// projects, the append-only action log, and immutable versions with their
// live-set edges. Every multi-row write goes through a single
// db.Transaction so related rows commit atomically.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/hiveregistry/registry/internal/domain"
)

type GormStore struct {
	db         *gorm.DB
	targets    *targetRepository
	projects   *projectRepository
	actions    *actionRepository
	versions   *versionRepository
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{
		db:       db,
		targets:  &targetRepository{db: db},
		projects: &projectRepository{db: db},
		actions:  &actionRepository{db: db},
		versions: &versionRepository{db: db},
	}
}

func (s *GormStore) Targets() domain.TargetRepository   { return s.targets }
func (s *GormStore) Projects() domain.ProjectRepository { return s.projects }
func (s *GormStore) Actions() domain.ActionRepository   { return s.actions }
func (s *GormStore) Versions() domain.VersionRepository { return s.versions }

// Migrate runs gorm's auto-migration for every model this store owns.
// cmd/api calls it at startup; the SQL files under migrations/, applied by
// cmd/migrate, carry the registry's hand-written DDL.
func (s *GormStore) Migrate() error {
	return s.db.AutoMigrate(
		&domain.Target{},
		&domain.Project{},
		&domain.Action{},
		&domain.Version{},
		&domain.VersionAction{},
		&domain.VersionChangeSet{},
	)
}

func (s *GormStore) CommitVersion(ctx context.Context, action *domain.Action, version *domain.Version, edgeActionIDs []uuid.UUID, changesJSON string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(action).Error; err != nil {
			return fmt.Errorf("failed to record action: %w", err)
		}

		version.ActionID = action.ID
		if err := tx.Create(version).Error; err != nil {
			return fmt.Errorf("failed to create version: %w", err)
		}

		edges := make([]domain.VersionAction, 0, len(edgeActionIDs))
		for _, id := range edgeActionIDs {
			edges = append(edges, domain.VersionAction{VersionID: version.ID, ActionID: id})
		}
		if len(edges) > 0 {
			if err := tx.Create(&edges).Error; err != nil {
				return fmt.Errorf("failed to write live-set edges: %w", err)
			}
		}

		if changesJSON != "" {
			changeSet := &domain.VersionChangeSet{VersionID: version.ID, Changes: changesJSON}
			if err := tx.Create(changeSet).Error; err != nil {
				return fmt.Errorf("failed to persist change set: %w", err)
			}
		}

		return nil
	})
}

func (s *GormStore) CommitActionOnly(ctx context.Context, action *domain.Action) error {
	return s.db.WithContext(ctx).Create(action).Error
}

// --- Targets ---

type targetRepository struct{ db *gorm.DB }

func (r *targetRepository) Create(ctx context.Context, t *domain.Target) error {
	return r.db.WithContext(ctx).Create(t).Error
}

func (r *targetRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Target, error) {
	var t domain.Target
	if err := r.db.WithContext(ctx).First(&t, "id = ?", id).Error; err != nil {
		return nil, translateNotFound(err, "target")
	}
	return &t, nil
}

func (r *targetRepository) GetByPath(ctx context.Context, organization, project, name string) (*domain.Target, error) {
	var t domain.Target
	err := r.db.WithContext(ctx).
		Where("organization = ? AND project = ? AND name = ?", organization, project, name).
		First(&t).Error
	if err != nil {
		return nil, translateNotFound(err, "target")
	}
	return &t, nil
}

func (r *targetRepository) Update(ctx context.Context, t *domain.Target) error {
	return r.db.WithContext(ctx).Save(t).Error
}

func (r *targetRepository) ListByProject(ctx context.Context, organization, project string) ([]*domain.Target, error) {
	var targets []*domain.Target
	err := r.db.WithContext(ctx).
		Where("organization = ? AND project = ?", organization, project).
		Find(&targets).Error
	return targets, err
}

// --- Projects ---

type projectRepository struct{ db *gorm.DB }

func (r *projectRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Project, error) {
	var p domain.Project
	if err := r.db.WithContext(ctx).First(&p, "id = ?", id).Error; err != nil {
		return nil, translateNotFound(err, "project")
	}
	return &p, nil
}

func (r *projectRepository) GetByPath(ctx context.Context, organization, name string) (*domain.Project, error) {
	var p domain.Project
	err := r.db.WithContext(ctx).
		Where("organization = ? AND name = ?", organization, name).
		First(&p).Error
	if err != nil {
		return nil, translateNotFound(err, "project")
	}
	return &p, nil
}

func (r *projectRepository) Update(ctx context.Context, p *domain.Project) error {
	return r.db.WithContext(ctx).Save(p).Error
}

// --- Actions ---

type actionRepository struct{ db *gorm.DB }

func (r *actionRepository) Create(ctx context.Context, a *domain.Action) error {
	return r.db.WithContext(ctx).Create(a).Error
}

func (r *actionRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Action, error) {
	var a domain.Action
	if err := r.db.WithContext(ctx).First(&a, "id = ?", id).Error; err != nil {
		return nil, translateNotFound(err, "action")
	}
	return &a, nil
}

func (r *actionRepository) ListByTarget(ctx context.Context, targetID uuid.UUID, limit int) ([]*domain.Action, error) {
	var actions []*domain.Action
	q := r.db.WithContext(ctx).Where("target_id = ?", targetID).Order("created_at desc")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&actions).Error
	return actions, err
}

// --- Versions ---

type versionRepository struct{ db *gorm.DB }

func (r *versionRepository) Create(ctx context.Context, v *domain.Version, edgeActionIDs []uuid.UUID) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(v).Error; err != nil {
			return err
		}
		edges := make([]domain.VersionAction, 0, len(edgeActionIDs))
		for _, id := range edgeActionIDs {
			edges = append(edges, domain.VersionAction{VersionID: v.ID, ActionID: id})
		}
		if len(edges) == 0 {
			return nil
		}
		return tx.Create(&edges).Error
	})
}

func (r *versionRepository) GetLatest(ctx context.Context, targetID uuid.UUID) (*domain.Version, error) {
	var v domain.Version
	err := r.db.WithContext(ctx).
		Where("target_id = ?", targetID).
		Order("created_at desc").
		First(&v).Error
	if err != nil {
		return nil, translateNotFound(err, "version")
	}
	return &v, nil
}

func (r *versionRepository) GetLatestComposable(ctx context.Context, targetID uuid.UUID) (*domain.Version, error) {
	var v domain.Version
	err := r.db.WithContext(ctx).
		Where("target_id = ? AND is_composable = ?", targetID, true).
		Order("created_at desc").
		First(&v).Error
	if err != nil {
		return nil, translateNotFound(err, "composable version")
	}
	return &v, nil
}

func (r *versionRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Version, error) {
	var v domain.Version
	if err := r.db.WithContext(ctx).First(&v, "id = ?", id).Error; err != nil {
		return nil, translateNotFound(err, "version")
	}
	return &v, nil
}

func (r *versionRepository) ListEdgeActions(ctx context.Context, versionID uuid.UUID) ([]*domain.Action, error) {
	var actions []*domain.Action
	err := r.db.WithContext(ctx).
		Joins("JOIN version_actions ON version_actions.action_id = actions.id").
		Where("version_actions.version_id = ?", versionID).
		Find(&actions).Error
	return actions, err
}

func (r *versionRepository) ListByTarget(ctx context.Context, targetID uuid.UUID, limit int) ([]*domain.Version, error) {
	var versions []*domain.Version
	q := r.db.WithContext(ctx).Where("target_id = ?", targetID).Order("created_at desc")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&versions).Error
	return versions, err
}

func (r *versionRepository) SaveChangeSet(ctx context.Context, versionID uuid.UUID, changesJSON string) error {
	changeSet := &domain.VersionChangeSet{VersionID: versionID, Changes: changesJSON}
	return r.db.WithContext(ctx).Create(changeSet).Error
}

func (r *versionRepository) UpdateComposable(ctx context.Context, versionID uuid.UUID, composable bool) error {
	return r.db.WithContext(ctx).
		Model(&domain.Version{}).
		Where("id = ?", versionID).
		Update("is_composable", composable).Error
}

func translateNotFound(err error, entity string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%s not found", entity)
	}
	return err
}

// MarshalChanges serializes a change list for the version's change-set row,
// used by the coordinator; an empty list yields an empty string.
func MarshalChanges(changes []domain.Change) (string, error) {
	if len(changes) == 0 {
		return "", nil
	}
	data, err := json.Marshal(changes)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
