// Package authz enforces the REGISTRY_READ/REGISTRY_WRITE scope model
// described in the external interfaces section: every inbound mutation
// carries a token that resolves to a set of scopes for one target, and the
// coordinator (C7) checks the required scope before doing any work.
package authz

import (
	"context"
	"fmt"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	gormadapter "github.com/casbin/gorm-adapter/v3"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Scope is one of the two permissions a token can carry against a target.
type Scope string

const (
	ScopeRegistryRead  Scope = "target:registry:read"
	ScopeRegistryWrite Scope = "target:registry:write"
)

// Authorizer checks whether a principal holds a scope against a target.
// It is backed by Casbin: an enforcer over a (sub, obj, act, target) request
// definition, with policy rows persisted via the gorm adapter so grants
// survive restarts.
type Authorizer struct {
	enforcer *casbin.Enforcer
}

// New builds an Authorizer backed by the given gorm connection. sub is the
// principal (a token's subject claim), obj is always "registry", act is
// the scope's string value, and the fourth field is the target ID the
// grant applies to.
func New(db *gorm.DB) (*Authorizer, error) {
	adapter, err := gormadapter.NewAdapterByDB(db)
	if err != nil {
		return nil, fmt.Errorf("failed to create casbin adapter: %w", err)
	}

	modelText := `
[request_definition]
r = sub, obj, act, target

[policy_definition]
p = sub, obj, act, target

[role_definition]
g = _, _, _

[policy_effect]
e = some(where (p.eft == allow))

[matchers]
m = g(r.sub, p.sub, r.target) && r.obj == p.obj && r.act == p.act && r.target == p.target
`

	m, err := model.NewModelFromString(modelText)
	if err != nil {
		return nil, fmt.Errorf("failed to create casbin model: %w", err)
	}

	enforcer, err := casbin.NewEnforcer(m, adapter)
	if err != nil {
		return nil, fmt.Errorf("failed to create casbin enforcer: %w", err)
	}
	enforcer.EnableAutoSave(true)

	return &Authorizer{enforcer: enforcer}, nil
}

// Authorize reports whether principal holds scope against target.
func (a *Authorizer) Authorize(ctx context.Context, principal string, targetID uuid.UUID, scope Scope) (bool, error) {
	return a.enforcer.Enforce(principal, "registry", string(scope), targetID.String())
}

// Grant records that principal holds scope against target. Used when
// provisioning a new target's tokens.
func (a *Authorizer) Grant(principal string, targetID uuid.UUID, scope Scope) error {
	_, err := a.enforcer.AddPolicy(principal, "registry", string(scope), targetID.String())
	return err
}

// Revoke removes a previously granted scope.
func (a *Authorizer) Revoke(principal string, targetID uuid.UUID, scope Scope) error {
	_, err := a.enforcer.RemovePolicy(principal, "registry", string(scope), targetID.String())
	return err
}

// ErrUnauthorized is returned by callers translating a failed Authorize
// into the lifecycle error taxonomy.
var ErrUnauthorized = fmt.Errorf("missing required scope")
