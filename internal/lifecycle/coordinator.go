// Package lifecycle implements C7: the single entrypoint that wires
// authorization, validation, project-type composition, persistence, CDN
// publication, idempotency, and audit mirroring into the three mutations a
// caller actually drives (check, publish, delete) plus the two operational
// entrypoints (sync, updateVersionStatus), per spec §4.7.
package lifecycle

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/hiveregistry/registry/internal/audit"
	"github.com/hiveregistry/registry/internal/authz"
	"github.com/hiveregistry/registry/internal/cdn"
	"github.com/hiveregistry/registry/internal/domain"
	"github.com/hiveregistry/registry/internal/idempotency"
	"github.com/hiveregistry/registry/internal/orchestrator"
	"github.com/hiveregistry/registry/internal/projecttype"
	"github.com/hiveregistry/registry/internal/registry/store"
	"github.com/hiveregistry/registry/internal/validation"
	"github.com/hiveregistry/registry/pkg/logger"
)

const publishIdempotencyTTL = 60 * time.Second

// Coordinator is C7. OrchestratorFor resolves a project to its composition
// client so SINGLE/STITCHING stay in-process while FEDERATION/CUSTOM reach
// out over HTTP, per the orchestrator package's per-type clients.
type Coordinator struct {
	store       domain.Store
	authorizer  *authz.Authorizer
	publisher   *cdn.Publisher
	idempotency *idempotency.Runner
	mirror      *audit.Mirror
	log         *logger.Logger
	orchestratorFor func(*domain.Project) orchestrator.Client
}

func NewCoordinator(
	store domain.Store,
	authorizer *authz.Authorizer,
	publisher *cdn.Publisher,
	runner *idempotency.Runner,
	mirror *audit.Mirror,
	log *logger.Logger,
	orchestratorFor func(*domain.Project) orchestrator.Client,
) *Coordinator {
	return &Coordinator{
		store:           store,
		authorizer:      authorizer,
		publisher:       publisher,
		idempotency:     runner,
		mirror:          mirror,
		log:             log,
		orchestratorFor: orchestratorFor,
	}
}

// CheckInput is what a schemaCheck call carries.
type CheckInput struct {
	Principal   string
	TargetID    uuid.UUID
	ServiceName string
	ServiceURL  string
	SDL         string
}

type CheckOutput struct {
	Changes      []domain.Change
	IsComposable bool
	HasBreaking  bool
}

// Check is read-only: no writes, no CDN, no idempotency guard, per §4.7.
func (c *Coordinator) Check(ctx context.Context, in CheckInput) (*CheckOutput, error) {
	if err := c.authorize(ctx, in.Principal, in.TargetID, authz.ScopeRegistryRead); err != nil {
		return nil, err
	}

	target, project, existing, previousSDL, err := c.loadState(ctx, in.TargetID, in.ServiceName)
	if err != nil {
		return nil, err
	}

	model := projecttype.ForProjectType(project.Type, c.orchestratorFor(project))
	pipeline := validation.NewPipeline(model)

	result, err := pipeline.Validate(ctx, validation.Input{
		Target:      target,
		Project:     project,
		ServiceName: in.ServiceName,
		ServiceURL:  in.ServiceURL,
		SDL:         in.SDL,
	}, previousSDL, existing, true)

	if result == nil {
		return nil, classifyValidationError(err)
	}

	return &CheckOutput{Changes: result.Changes, IsComposable: result.IsComposable, HasBreaking: result.HasBreaking}, nil
}

// PublishInput is what a schemaPublish call carries.
type PublishInput struct {
	Principal                  string
	TargetID                   uuid.UUID
	ServiceName                string
	ServiceURL                 string
	SDL                        string
	Author                     string
	Commit                     string
	Metadata                   string
	Force                      bool
	ExperimentalAcceptBreaking bool
	Checksum                   string
}

type PublishOutput struct {
	Neutral       bool
	Changes       []domain.Change
	IsComposable  bool
	SupergraphURL string
	SchemaURL     string
}

func (c *Coordinator) Publish(ctx context.Context, in PublishInput) (*PublishOutput, error) {
	identifier := "schema:publish:" + in.Checksum
	result, err := c.idempotency.Run(ctx, identifier, publishIdempotencyTTL, decodePublishOutput, func(ctx context.Context) (interface{}, error) {
		return c.publish(ctx, in)
	})
	if err != nil {
		if _, ok := err.(*Error); ok {
			return nil, err
		}
		return nil, newError(CodeIdempotencyFailure, "publish could not be deduplicated", err)
	}
	if result == nil {
		return nil, nil
	}
	out, ok := result.(*PublishOutput)
	if !ok {
		return nil, newError(CodeIdempotencyFailure, "idempotency record did not decode to a publish result", nil)
	}
	return out, nil
}

// decodePublishOutput reconstructs a *PublishOutput from the JSON the
// idempotency runner stored for a prior publish call, so a cache hit or an
// in-flight poll returns the same concrete type the direct call path does.
func decodePublishOutput(raw json.RawMessage) (interface{}, error) {
	if string(raw) == "null" {
		return (*PublishOutput)(nil), nil
	}
	var out PublishOutput
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Coordinator) publish(ctx context.Context, in PublishInput) (*PublishOutput, error) {
	if err := c.authorize(ctx, in.Principal, in.TargetID, authz.ScopeRegistryWrite); err != nil {
		return nil, err
	}

	target, project, existing, previousSDL, err := c.loadState(ctx, in.TargetID, in.ServiceName)
	if err != nil {
		return nil, err
	}

	model := projecttype.ForProjectType(project.Type, c.orchestratorFor(project))
	capabilities := model.Capabilities()

	if capabilities.RequiresServiceName && in.ServiceName == "" {
		return nil, newError(CodeMissingServiceName, "serviceName is required for this project type", nil)
	}
	if capabilities.RequiresServiceURL && in.ServiceURL == "" {
		return nil, newError(CodeMissingServiceURL, "serviceUrl is required for this project type", nil)
	}

	// modern registry model never rejects on breaking changes; legacy only
	// accepts them when the caller explicitly opts in or forces the write.
	acceptBreaking := in.ExperimentalAcceptBreaking || !project.IsUsingLegacyRegistryModel

	pipeline := validation.NewPipeline(model)
	valResult, valErr := pipeline.Validate(ctx, validation.Input{
		Target:      target,
		Project:     project,
		ServiceName: in.ServiceName,
		ServiceURL:  in.ServiceURL,
		SDL:         in.SDL,
	}, previousSDL, existing, acceptBreaking || in.Force)

	if valResult == nil {
		return nil, classifyValidationError(valErr)
	}

	if valResult.HashUnchanged {
		return &PublishOutput{Neutral: true}, nil
	}

	canPublish := project.IsUsingLegacyRegistryModel
	if canPublish {
		canPublish = (valResult.IsComposable && !valResult.HasBreaking) || in.Force
	} else {
		canPublish = valResult.IsComposable
	}

	log := c.log.WithTarget(in.TargetID.String())

	if !canPublish {
		rejected := buildAction(target.ID, domain.ActionTypePublish, in)
		if err := c.store.CommitActionOnly(ctx, rejected); err != nil {
			log.Warnw("failed to record rejected publish action", "error", err)
		}
		return nil, newError(CodeBreakingChange, "publish rejected", valErr)
	}

	publishModel, err := model.Publish(ctx, projecttype.PublishInput{
		Target:           target,
		Project:          project,
		ServiceName:      in.ServiceName,
		ServiceURL:       in.ServiceURL,
		SDL:              in.SDL,
		Metadata:         in.Metadata,
		PreviousSDL:      previousSDL,
		ExistingServices: toOrchestratorServices(existing),
		Force:            in.Force,
	})
	if err != nil {
		return nil, newError(CodeCompositionFailed, "composition failed", err)
	}

	action := buildAction(target.ID, domain.ActionTypePublish, in)
	// The new version's live-set edges must name this action, so its ID is
	// assigned here rather than left to the database default at insert.
	action.ID = uuid.New()
	edgeActionIDs, err := c.nextLiveSet(ctx, target.ID, in.ServiceName, action.ID, project.Type)
	if err != nil {
		return nil, newError(CodeStorageFailure, "failed to compute live set", err)
	}

	changesJSON, err := marshalChanges(publishModel.Changes)
	if err != nil {
		return nil, newError(CodeStorageFailure, "failed to serialize changes", err)
	}

	version := &domain.Version{TargetID: target.ID, IsComposable: publishModel.IsComposable, BaseSchema: nonEmptyPtr(target.BaseSchema)}
	if err := c.store.CommitVersion(ctx, action, version, edgeActionIDs, changesJSON); err != nil {
		return nil, newError(CodeStorageFailure, "failed to commit version", err)
	}

	out := &PublishOutput{Changes: publishModel.Changes, IsComposable: publishModel.IsComposable}

	if c.publisher != nil {
		composite := project.Type != domain.ProjectTypeSingle
		entries := append(schemaEntriesFrom(existing), cdn.SchemaEntry{
			Name:        in.ServiceName,
			SDL:         in.SDL,
			PublishedAt: action.CreatedAt,
		})
		if url, err := c.publisher.PublishSchema(ctx, target.ID.String(), entries, composite); err != nil {
			log.Warnw("CDN schema publish failed", "error", err)
		} else {
			out.SchemaURL = url
		}

		metadataValues := append(metadataValuesFrom(existing), in.Metadata)
		if _, err := c.publisher.PublishMetadata(ctx, target.ID.String(), metadataValues); err != nil {
			log.Warnw("CDN metadata publish failed", "error", err)
		}

		if publishModel.SupergraphSDL != "" {
			if url, err := c.publisher.PublishSupergraph(ctx, target.ID.String(), publishModel.SupergraphSDL); err != nil {
				log.Warnw("CDN supergraph publish failed", "error", err)
			} else {
				out.SupergraphURL = url
			}
		}
	}

	c.notify(target.ID, version.ID, action, publishModel.IsComposable, publishModel.Changes, log)

	return out, nil
}

// DeleteInput is what a schemaDelete call carries; only valid for the
// modern registry model against a composite project, per §4.3.3.
type DeleteInput struct {
	Principal   string
	TargetID    uuid.UUID
	ServiceName string
	Force       bool
}

type DeleteOutput struct {
	IsComposable bool
}

func (c *Coordinator) Delete(ctx context.Context, in DeleteInput) (*DeleteOutput, error) {
	if err := c.authorize(ctx, in.Principal, in.TargetID, authz.ScopeRegistryWrite); err != nil {
		return nil, err
	}

	target, project, existing, _, err := c.loadState(ctx, in.TargetID, "")
	if err != nil {
		return nil, err
	}

	if project.Type == domain.ProjectTypeSingle {
		return nil, newError(CodeUnsupportedOperation, projecttype.ErrSingleDeleteUnsupported.Error(), nil)
	}
	if project.IsUsingLegacyRegistryModel {
		return nil, newError(CodeUnsupportedOperation, "schemaDelete is not available for legacy registry model projects", nil)
	}

	if !containsService(existing, in.ServiceName) {
		return nil, newError(CodeTargetNotFound, fmt.Sprintf("service '%s' not found", in.ServiceName), nil)
	}

	model := projecttype.ForProjectType(project.Type, c.orchestratorFor(project))
	deleteResult, err := model.Delete(ctx, projecttype.DeleteInput{
		Target:           target,
		Project:          project,
		ServiceName:      in.ServiceName,
		ExistingServices: toOrchestratorServices(existing),
	})
	if err != nil {
		return nil, newError(CodeCompositionFailed, "composition failed", err)
	}

	canPublish := in.Force || (deleteResult.IsComposable && !hasBreaking(deleteResult.Changes))
	if !canPublish {
		return nil, newError(CodeBreakingChange, "delete rejected", nil)
	}

	action := &domain.Action{
		TargetID:    target.ID,
		ActionType:  domain.ActionTypeDelete,
		Author:      "unknown",
		Commit:      "unknown",
		ServiceName: nonEmptyPtr(in.ServiceName),
	}

	edgeActionIDs, err := c.liveSetExcluding(ctx, target.ID, in.ServiceName)
	if err != nil {
		return nil, newError(CodeStorageFailure, "failed to compute live set", err)
	}

	version := &domain.Version{TargetID: target.ID, IsComposable: deleteResult.IsComposable, BaseSchema: nonEmptyPtr(target.BaseSchema)}
	if err := c.store.CommitVersion(ctx, action, version, edgeActionIDs, ""); err != nil {
		return nil, newError(CodeStorageFailure, "failed to commit version", err)
	}

	if c.publisher != nil {
		remaining := schemaEntriesFrom(filterServiceRefs(existing, in.ServiceName))
		if _, err := c.publisher.PublishSchema(ctx, target.ID.String(), remaining, project.Type != domain.ProjectTypeSingle); err != nil {
			c.log.WithTarget(target.ID.String()).Warnw("CDN schema publish failed after delete", "error", err)
		}
	}

	c.notify(target.ID, version.ID, action, deleteResult.IsComposable, deleteResult.Changes, c.log.WithTarget(target.ID.String()))

	return &DeleteOutput{IsComposable: deleteResult.IsComposable}, nil
}

// Sync re-reads the latest composable version and re-publishes its schema
// artifact to the CDN, used for operational re-mirroring per §4.7. The
// metadata and supergraph artifacts are not re-published.
func (c *Coordinator) Sync(ctx context.Context, targetID uuid.UUID) error {
	version, err := c.store.Versions().GetLatestComposable(ctx, targetID)
	if err != nil {
		return newError(CodeTargetNotFound, "no composable version to sync", err)
	}

	actions, err := c.store.Versions().ListEdgeActions(ctx, version.ID)
	if err != nil {
		return newError(CodeStorageFailure, "failed to load version's live set", err)
	}

	if c.publisher == nil {
		return nil
	}

	project, err := c.projectForTarget(ctx, targetID)
	if err != nil {
		return err
	}

	entries := schemaEntriesFromActions(actions)
	if _, err := c.publisher.PublishSchema(ctx, targetID.String(), entries, project.Type != domain.ProjectTypeSingle); err != nil {
		return newError(CodeStorageFailure, "CDN re-sync failed", err)
	}
	return nil
}

// UpdateVersionStatus flips a version's composability, legacy registry
// model only, and triggers a CDN re-sync if the flipped version is the
// current latest and is now composable, per §4.8.
func (c *Coordinator) UpdateVersionStatus(ctx context.Context, targetID, versionID uuid.UUID, valid bool) error {
	project, err := c.projectForTarget(ctx, targetID)
	if err != nil {
		return err
	}
	if !project.IsUsingLegacyRegistryModel {
		return newError(CodeUnsupportedOperation, "updateVersionStatus is legacy registry model only", nil)
	}

	version, err := c.store.Versions().GetByID(ctx, versionID)
	if err != nil {
		return newError(CodeTargetNotFound, "version not found", err)
	}
	if err := c.store.Versions().UpdateComposable(ctx, version.ID, valid); err != nil {
		return newError(CodeStorageFailure, "failed to update version status", err)
	}

	latest, err := c.store.Versions().GetLatest(ctx, targetID)
	if err == nil && latest.ID == version.ID && valid {
		return c.Sync(ctx, targetID)
	}
	return nil
}

func (c *Coordinator) authorize(ctx context.Context, principal string, targetID uuid.UUID, scope authz.Scope) error {
	allowed, err := c.authorizer.Authorize(ctx, principal, targetID, scope)
	if err != nil {
		return newError(CodeAuthorizationFailed, "authorization check failed", err)
	}
	if !allowed {
		return newError(CodeAuthorizationFailed, "missing required scope", authz.ErrUnauthorized)
	}
	return nil
}

func (c *Coordinator) projectForTarget(ctx context.Context, targetID uuid.UUID) (*domain.Project, error) {
	target, err := c.store.Targets().GetByID(ctx, targetID)
	if err != nil {
		return nil, newError(CodeTargetNotFound, "target not found", err)
	}
	project, err := c.store.Projects().GetByPath(ctx, target.Organization, target.Project)
	if err != nil {
		return nil, newError(CodeTargetNotFound, "project not found", err)
	}
	return project, nil
}

// loadState loads a target, its project, the rest of the project's live
// services, and the target's own previous SDL, which together are
// everything the validation pipeline and project-type model need.
func (c *Coordinator) loadState(ctx context.Context, targetID uuid.UUID, serviceName string) (*domain.Target, *domain.Project, []validation.ServiceRef, string, error) {
	target, err := c.store.Targets().GetByID(ctx, targetID)
	if err != nil {
		return nil, nil, nil, "", newError(CodeTargetNotFound, "target not found", err)
	}

	project, err := c.store.Projects().GetByPath(ctx, target.Organization, target.Project)
	if err != nil {
		return nil, nil, nil, "", newError(CodeTargetNotFound, "project not found", err)
	}

	latest, err := c.store.Versions().GetLatest(ctx, targetID)
	var existing []validation.ServiceRef
	var previousSDL string
	if err == nil {
		actions, lerr := c.store.Versions().ListEdgeActions(ctx, latest.ID)
		if lerr != nil {
			return nil, nil, nil, "", newError(CodeStorageFailure, "failed to load live services", lerr)
		}
		for _, a := range actions {
			sdl := ""
			if a.SDL != nil {
				sdl = *a.SDL
			}
			name := ""
			if a.ServiceName != nil {
				name = *a.ServiceName
			}
			url := ""
			if a.ServiceURL != nil {
				url = *a.ServiceURL
			}
			metadata := ""
			if a.Metadata != nil {
				metadata = *a.Metadata
			}
			if name == serviceName && (serviceName != "" || a.ServiceName == nil) {
				previousSDL = sdl
				continue
			}
			existing = append(existing, validation.ServiceRef{
				Name:        name,
				URL:         url,
				SDL:         sdl,
				Metadata:    metadata,
				PublishedAt: a.CreatedAt,
			})
		}
		if serviceName == "" && len(actions) == 1 && actions[0].ServiceName == nil {
			// SINGLE project types carry exactly one unnamed action.
			if actions[0].SDL != nil {
				previousSDL = *actions[0].SDL
			}
		}
	}

	return target, project, existing, previousSDL, nil
}

func (c *Coordinator) nextLiveSet(ctx context.Context, targetID uuid.UUID, serviceName string, newActionID uuid.UUID, projectType domain.ProjectType) ([]uuid.UUID, error) {
	if projectType == domain.ProjectTypeSingle || projectType == domain.ProjectTypeCustom {
		return []uuid.UUID{newActionID}, nil
	}

	latest, err := c.store.Versions().GetLatest(ctx, targetID)
	if err != nil {
		return []uuid.UUID{newActionID}, nil
	}
	actions, err := c.store.Versions().ListEdgeActions(ctx, latest.ID)
	if err != nil {
		return nil, err
	}

	ids := make([]uuid.UUID, 0, len(actions)+1)
	for _, a := range actions {
		if a.ServiceName != nil && *a.ServiceName == serviceName {
			continue
		}
		ids = append(ids, a.ID)
	}
	ids = append(ids, newActionID)
	return ids, nil
}

func (c *Coordinator) liveSetExcluding(ctx context.Context, targetID uuid.UUID, serviceName string) ([]uuid.UUID, error) {
	latest, err := c.store.Versions().GetLatest(ctx, targetID)
	if err != nil {
		return nil, nil
	}
	actions, err := c.store.Versions().ListEdgeActions(ctx, latest.ID)
	if err != nil {
		return nil, err
	}
	ids := make([]uuid.UUID, 0, len(actions))
	for _, a := range actions {
		if a.ServiceName != nil && *a.ServiceName == serviceName {
			continue
		}
		ids = append(ids, a.ID)
	}
	return ids, nil
}

func (c *Coordinator) notify(targetID, versionID uuid.UUID, action *domain.Action, isComposable bool, changes []domain.Change, log *logger.Logger) {
	if c.mirror == nil {
		return
	}
	go func() {
		vid := versionID
		event := audit.Event{
			ActionID:     action.ID,
			TargetID:     targetID,
			VersionID:    &vid,
			ActionType:   action.ActionType,
			Author:       action.Author,
			IsComposable: isComposable,
			Changes:      changes,
		}
		if err := c.mirror.Record(context.Background(), event); err != nil {
			log.Warnw("audit mirror write failed", "error", err)
		}
	}()
}

func buildAction(targetID uuid.UUID, actionType domain.ActionType, in PublishInput) *domain.Action {
	return &domain.Action{
		TargetID:    targetID,
		ActionType:  actionType,
		Author:      in.Author,
		Commit:      in.Commit,
		ServiceName: nonEmptyPtr(in.ServiceName),
		ServiceURL:  nonEmptyPtr(in.ServiceURL),
		SDL:         nonEmptyPtr(in.SDL),
		Metadata:    nonEmptyPtr(in.Metadata),
	}
}

func nonEmptyPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func toOrchestratorServices(refs []validation.ServiceRef) []orchestrator.ServiceSchema {
	out := make([]orchestrator.ServiceSchema, 0, len(refs))
	for _, r := range refs {
		out = append(out, orchestrator.ServiceSchema{Name: r.Name, URL: r.URL, SDL: r.SDL})
	}
	return out
}

func containsService(refs []validation.ServiceRef, name string) bool {
	for _, r := range refs {
		if r.Name == name {
			return true
		}
	}
	return false
}

func hasBreaking(changes []domain.Change) bool {
	for _, c := range changes {
		if c.Criticality == domain.CriticalityBreaking {
			return true
		}
	}
	return false
}

func filterServiceRefs(refs []validation.ServiceRef, excludeName string) []validation.ServiceRef {
	out := make([]validation.ServiceRef, 0, len(refs))
	for _, r := range refs {
		if r.Name == excludeName {
			continue
		}
		out = append(out, r)
	}
	return out
}

func schemaEntriesFrom(refs []validation.ServiceRef) []cdn.SchemaEntry {
	out := make([]cdn.SchemaEntry, 0, len(refs))
	for _, r := range refs {
		out = append(out, cdn.SchemaEntry{Name: r.Name, SDL: r.SDL, PublishedAt: r.PublishedAt})
	}
	return out
}

func schemaEntriesFromActions(actions []*domain.Action) []cdn.SchemaEntry {
	out := make([]cdn.SchemaEntry, 0, len(actions))
	for _, a := range actions {
		if a.SDL == nil {
			continue
		}
		name := ""
		if a.ServiceName != nil {
			name = *a.ServiceName
		}
		out = append(out, cdn.SchemaEntry{Name: name, SDL: *a.SDL, PublishedAt: a.CreatedAt})
	}
	return out
}

func metadataValuesFrom(refs []validation.ServiceRef) []string {
	out := make([]string, 0, len(refs))
	for _, r := range refs {
		out = append(out, r.Metadata)
	}
	return out
}

func marshalChanges(changes []domain.Change) (string, error) {
	return store.MarshalChanges(changes)
}

func classifyValidationError(err error) error {
	if err == nil {
		return newError(CodeInvalidSDL, "validation failed", nil)
	}
	if _, ok := err.(*validation.BreakingChangeError); ok {
		return newError(CodeBreakingChange, "schema contains breaking changes", err)
	}
	return newError(CodeInvalidSDL, err.Error(), err)
}
