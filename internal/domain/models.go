package domain

import (
	"time"

	"github.com/google/uuid"
)

// ProjectType selects which orchestrator and project-type model a project's
// schemas are validated and composed with.
type ProjectType string

const (
	ProjectTypeSingle     ProjectType = "SINGLE"
	ProjectTypeStitching  ProjectType = "STITCHING"
	ProjectTypeFederation ProjectType = "FEDERATION"
	ProjectTypeCustom     ProjectType = "CUSTOM"
)

// ActionType distinguishes the two mutation kinds accepted by the
// coordinator; every Action row is one of these.
type ActionType string

const (
	ActionTypePublish ActionType = "SCHEMA_PUBLISH"
	ActionTypeDelete  ActionType = "SCHEMA_DELETE"
)

// Criticality classifies a single schema change produced by the differ (C2).
type Criticality string

const (
	CriticalitySafe      Criticality = "SAFE"
	CriticalityDangerous Criticality = "DANGEROUS"
	CriticalityBreaking  Criticality = "BREAKING"
)

// Target is the unit of registration that schemas are checked/published/
// deleted against: it holds a composite project's set of named services,
// or a single project's one unnamed schema. Organization/Project/Name
// together form its addressable path.
type Target struct {
	ID           uuid.UUID `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	Organization string    `gorm:"index:idx_targets_path,priority:1;not null" json:"organization"`
	Project      string    `gorm:"index:idx_targets_path,priority:2;not null" json:"project"`
	Name         string    `gorm:"index:idx_targets_path,priority:3;not null" json:"name"`
	BaseSchema   string    `gorm:"type:text" json:"baseSchema,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

func (Target) TableName() string { return "targets" }

// Project groups targets under a single project-type model and carries the
// configuration that model needs (orchestrator endpoint, legacy flag).
type Project struct {
	ID                                 uuid.UUID   `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	Organization                       string      `gorm:"index;not null" json:"organization"`
	Name                               string      `gorm:"not null" json:"name"`
	Type                               ProjectType `gorm:"type:varchar(32);not null" json:"type"`
	IsUsingLegacyRegistryModel         bool        `gorm:"not null;default:false" json:"isUsingLegacyRegistryModel"`
	ExternalCompositionEndpoint        *string     `json:"externalCompositionEndpoint,omitempty"`
	ExternalCompositionEncryptedSecret *string     `gorm:"type:text" json:"-"`
	GitRepository                      *string     `json:"gitRepository,omitempty"`
	BuildURL                           *string     `json:"buildUrl,omitempty"`
	ValidationURL                      *string     `json:"validationUrl,omitempty"`
	CreatedAt                          time.Time   `json:"createdAt"`
	UpdatedAt                          time.Time   `json:"updatedAt"`
}

func (Project) TableName() string { return "projects" }

// Action is the immutable, append-only log entry for every publish/delete
// that the coordinator commits. Publishing writes a new Action row even
// when it rejects the write outright; check calls write no Action.
type Action struct {
	ID          uuid.UUID  `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	TargetID    uuid.UUID  `gorm:"type:uuid;index;not null" json:"targetId"`
	ActionType  ActionType `gorm:"type:varchar(32);not null" json:"actionType"`
	Author      string     `gorm:"not null" json:"author"`
	Commit      string     `json:"commit,omitempty"`
	ServiceName *string    `json:"serviceName,omitempty"`
	ServiceURL  *string    `json:"serviceUrl,omitempty"`
	SDL         *string    `gorm:"type:text" json:"sdl,omitempty"`
	Metadata    *string    `gorm:"type:text" json:"metadata,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
}

func (Action) TableName() string { return "actions" }

// Version is the immutable composed state of a target's project at a point
// in time. The live set is not reconstructed by walking Action history; it
// is maintained explicitly via VersionAction edges.
type Version struct {
	ID           uuid.UUID `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	TargetID     uuid.UUID `gorm:"type:uuid;index;not null" json:"targetId"`
	ActionID     uuid.UUID `gorm:"type:uuid;not null" json:"actionId"`
	IsComposable bool      `gorm:"not null" json:"isComposable"`
	BaseSchema   *string   `gorm:"type:text" json:"baseSchema,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
}

func (Version) TableName() string { return "versions" }

// VersionAction is the live-set edge: which service-defining actions are
// "in" a given version. Deleting a service drops its edge without deleting
// the action or any prior version.
type VersionAction struct {
	VersionID uuid.UUID `gorm:"type:uuid;primary_key" json:"versionId"`
	ActionID  uuid.UUID `gorm:"type:uuid;primary_key" json:"actionId"`
}

func (VersionAction) TableName() string { return "version_actions" }

// Change is one entry of a schema diff produced by the differ (C2).
type Change struct {
	Path               string      `json:"path"`
	Message            string      `json:"message"`
	Criticality        Criticality `json:"criticality"`
	IsSafeBasedOnUsage bool        `json:"isSafeBasedOnUsage,omitempty"`
}

// VersionChangeSet records the diff that produced a version, persisted
// alongside it for the schemaCheck/history surface.
type VersionChangeSet struct {
	ID        uuid.UUID `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	VersionID uuid.UUID `gorm:"type:uuid;index;not null" json:"versionId"`
	Changes   string    `gorm:"type:text" json:"-"` // JSON-encoded []Change
	CreatedAt time.Time `json:"createdAt"`
}

func (VersionChangeSet) TableName() string { return "version_change_sets" }
