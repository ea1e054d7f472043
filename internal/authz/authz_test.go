package authz

import (
	"context"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

func newTestAuthorizer(t *testing.T) *Authorizer {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open in-memory sqlite: %v", err)
	}
	a, err := New(db)
	if err != nil {
		t.Fatalf("failed to build authorizer: %v", err)
	}
	return a
}

func TestAuthorizer_DeniesByDefault(t *testing.T) {
	a := newTestAuthorizer(t)
	target := uuid.New()

	allowed, err := a.Authorize(context.Background(), "user-1", target, ScopeRegistryRead)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if allowed {
		t.Error("expected no grant to deny authorization")
	}
}

func TestAuthorizer_GrantAllowsMatchingScopeAndTarget(t *testing.T) {
	a := newTestAuthorizer(t)
	target := uuid.New()

	if err := a.Grant("user-1", target, ScopeRegistryWrite); err != nil {
		t.Fatalf("grant failed: %v", err)
	}

	allowed, err := a.Authorize(context.Background(), "user-1", target, ScopeRegistryWrite)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !allowed {
		t.Error("expected grant to allow the same scope and target")
	}
}

func TestAuthorizer_GrantDoesNotLeakAcrossTargetsOrScopes(t *testing.T) {
	a := newTestAuthorizer(t)
	granted := uuid.New()
	other := uuid.New()

	if err := a.Grant("user-1", granted, ScopeRegistryRead); err != nil {
		t.Fatalf("grant failed: %v", err)
	}

	if allowed, _ := a.Authorize(context.Background(), "user-1", other, ScopeRegistryRead); allowed {
		t.Error("grant for one target should not authorize a different target")
	}
	if allowed, _ := a.Authorize(context.Background(), "user-1", granted, ScopeRegistryWrite); allowed {
		t.Error("read grant should not authorize write")
	}
}

func TestAuthorizer_RevokeRemovesAccess(t *testing.T) {
	a := newTestAuthorizer(t)
	target := uuid.New()

	if err := a.Grant("user-1", target, ScopeRegistryWrite); err != nil {
		t.Fatalf("grant failed: %v", err)
	}
	if err := a.Revoke("user-1", target, ScopeRegistryWrite); err != nil {
		t.Fatalf("revoke failed: %v", err)
	}

	allowed, err := a.Authorize(context.Background(), "user-1", target, ScopeRegistryWrite)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if allowed {
		t.Error("expected revoke to remove access")
	}
}
