package projecttype

import (
	"context"
	"testing"

	"github.com/hiveregistry/registry/internal/domain"
	"github.com/hiveregistry/registry/internal/orchestrator"
)

func TestSingleModel_DeleteIsUnsupported(t *testing.T) {
	m := NewSingleModel(orchestrator.NewSingleClient())
	_, err := m.Delete(context.Background(), DeleteInput{Target: newCompositeTarget()})
	if err == nil {
		t.Fatal("expected schemaDelete to be rejected for SINGLE projects")
	}
}

func TestSingleModel_CheckReportsComposableForValidSDL(t *testing.T) {
	m := NewSingleModel(orchestrator.NewSingleClient())
	result, err := m.Check(context.Background(), CheckInput{
		Target: newCompositeTarget(),
		SDL:    "type Query { hello: String }",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.IsComposable {
		t.Error("expected SingleModel.Check to report composable for valid SDL")
	}
}

func TestForProjectType_SelectsSingleModelForSingleProjects(t *testing.T) {
	model := ForProjectType(domain.ProjectTypeSingle, orchestrator.NewSingleClient())
	if _, ok := model.(*SingleModel); !ok {
		t.Errorf("expected *SingleModel for ProjectTypeSingle, got %T", model)
	}
}

func TestForProjectType_SelectsCompositeModelForFederationProjects(t *testing.T) {
	model := ForProjectType(domain.ProjectTypeFederation, orchestrator.NewStitchingClient())
	if _, ok := model.(*CompositeModel); !ok {
		t.Errorf("expected *CompositeModel for ProjectTypeFederation, got %T", model)
	}
}
