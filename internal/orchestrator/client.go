// Package orchestrator implements C1: the pluggable boundary between the
// registry and whatever validates/builds/composes a project's schemas.
// Single and Stitching projects compose in-process via gqlparser; Federation
// and Custom projects delegate to an external composition service over
// HTTP.
package orchestrator

import (
	"context"

	"github.com/vektah/gqlparser/v2/ast"
)

// BuildInput is the set of per-service SDL documents (plus an optional
// base schema) a project's orchestrator is asked to validate/compose.
type BuildInput struct {
	Services   []ServiceSchema
	BaseSchema string

	// IsUsingLegacyRegistryModel carries the owning project's registry
	// model flag through to Build, since only modern-model federation
	// results are post-processed to strip federation-internal directives.
	IsUsingLegacyRegistryModel bool

	// ExternalComposition is forwarded to the composition service when the
	// project has its own external composer configured; nil otherwise.
	ExternalComposition *ExternalComposition
}

type ServiceSchema struct {
	Name string
	URL  string
	SDL  string
}

// ExternalComposition carries a project's external composition settings
// (spec §3/§6): the tenant's own composer endpoint and the still-encrypted
// shared secret, forwarded to the composition service verbatim.
type ExternalComposition struct {
	Endpoint        string `json:"endpoint"`
	EncryptedSecret string `json:"encryptedSecret"`
}

// BuildResult is what a successful composition produces.
type BuildResult struct {
	Schema     *ast.SchemaDocument
	SupergraphSDL string // populated only for Federation
	Warnings   []string
}

// Client is implemented by each project type's composition strategy.
type Client interface {
	// Validate checks that the given services compose without returning
	// the composed artifact; SingleModel.Check calls it before diffing.
	Validate(ctx context.Context, input BuildInput) error

	// Build composes the services into a single schema document.
	Build(ctx context.Context, input BuildInput) (*BuildResult, error)

	// Supergraph returns the federation supergraph SDL for the given
	// input, or an empty string for orchestrators that don't produce one.
	Supergraph(ctx context.Context, input BuildInput) (string, error)
}

// BuildError wraps a failure from an orchestrator Build/Validate call with
// the service that caused it, for the lifecycle coordinator's error
// taxonomy (internal failure vs. rejected input).
type BuildError struct {
	Service string
	Err     error
}

func (e *BuildError) Error() string {
	if e.Service == "" {
		return e.Err.Error()
	}
	return e.Service + ": " + e.Err.Error()
}

func (e *BuildError) Unwrap() error { return e.Err }
