package projecttype

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/hiveregistry/registry/internal/domain"
	"github.com/hiveregistry/registry/internal/orchestrator"
)

func newCompositeTarget() *domain.Target {
	return &domain.Target{ID: uuid.New(), Organization: "acme", Project: "storefront", Name: "accounts"}
}

func TestCompositeModel_CheckRequiresServiceName(t *testing.T) {
	m := NewCompositeModel(orchestrator.NewStitchingClient(), domain.ProjectTypeStitching)
	_, err := m.Check(context.Background(), CheckInput{Target: newCompositeTarget(), SDL: "type Account { id: ID }"})
	if err == nil {
		t.Fatal("expected error when serviceName is missing")
	}
}

func TestCompositeModel_CheckComposesAgainstExistingServices(t *testing.T) {
	m := NewCompositeModel(orchestrator.NewStitchingClient(), domain.ProjectTypeStitching)

	result, err := m.Check(context.Background(), CheckInput{
		Target:      newCompositeTarget(),
		ServiceName: "accounts",
		SDL:         "type Account { id: ID }",
		ExistingServices: []orchestrator.ServiceSchema{
			{Name: "orders", SDL: "type Order { id: ID }"},
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.IsComposable {
		t.Error("expected composable result when both services parse cleanly")
	}
}

func TestCompositeModel_PublishReplacesExistingServiceByName(t *testing.T) {
	m := NewCompositeModel(orchestrator.NewStitchingClient(), domain.ProjectTypeStitching)

	result, err := m.Publish(context.Background(), PublishInput{
		Target:      newCompositeTarget(),
		ServiceName: "accounts",
		ServiceURL:  "https://accounts.internal",
		SDL:         "type Account { id: ID email: String }",
		ExistingServices: []orchestrator.ServiceSchema{
			{Name: "accounts", URL: "https://old.internal", SDL: "type Account { id: ID }"},
			{Name: "orders", SDL: "type Order { id: ID }"},
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.IsComposable {
		t.Error("expected composable publish result")
	}
}

func TestCompositeModel_StitchingPublishDoesNotRequireServiceURL(t *testing.T) {
	m := NewCompositeModel(orchestrator.NewStitchingClient(), domain.ProjectTypeStitching)

	_, err := m.Publish(context.Background(), PublishInput{
		Target:      newCompositeTarget(),
		ServiceName: "accounts",
		SDL:         "type Account { id: ID }",
	})
	if err != nil {
		t.Fatalf("stitching projects address services by name, not URL: %v", err)
	}
}

func TestCompositeModel_FederationPublishRequiresServiceURL(t *testing.T) {
	m := NewCompositeModel(orchestrator.NewFederationClient("http://composition.internal", time.Second, []byte("01234567890123456789012345678901")), domain.ProjectTypeFederation)

	_, err := m.Publish(context.Background(), PublishInput{
		Target:      newCompositeTarget(),
		ServiceName: "accounts",
		SDL:         "type Account { id: ID }",
	})
	if err == nil {
		t.Fatal("expected error when serviceUrl is missing for a federation project")
	}
}

func TestCompositeModel_DeleteRemovesNamedService(t *testing.T) {
	m := NewCompositeModel(orchestrator.NewStitchingClient(), domain.ProjectTypeStitching)

	result, err := m.Delete(context.Background(), DeleteInput{
		Target:      newCompositeTarget(),
		ServiceName: "orders",
		ExistingServices: []orchestrator.ServiceSchema{
			{Name: "accounts", SDL: "type Account { id: ID }"},
			{Name: "orders", SDL: "type Order { id: ID }"},
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.IsComposable {
		t.Error("expected remaining single service to compose fine")
	}
}

func TestCompositeModel_DeleteLastServiceLeavesEmptyComposableSchema(t *testing.T) {
	m := NewCompositeModel(orchestrator.NewStitchingClient(), domain.ProjectTypeStitching)

	result, err := m.Delete(context.Background(), DeleteInput{
		Target:      newCompositeTarget(),
		ServiceName: "accounts",
		ExistingServices: []orchestrator.ServiceSchema{
			{Name: "accounts", SDL: "type Account { id: ID }"},
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.IsComposable {
		t.Error("expected deleting the last remaining service to be trivially composable")
	}
}

func TestCompositeModel_DeleteRequiresServiceName(t *testing.T) {
	m := NewCompositeModel(orchestrator.NewStitchingClient(), domain.ProjectTypeStitching)
	_, err := m.Delete(context.Background(), DeleteInput{Target: newCompositeTarget()})
	if err == nil {
		t.Fatal("expected error when serviceName is missing")
	}
}
