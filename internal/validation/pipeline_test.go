package validation

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/hiveregistry/registry/internal/domain"
	"github.com/hiveregistry/registry/internal/orchestrator"
	"github.com/hiveregistry/registry/internal/projecttype"
)

func newSingleTarget() *domain.Target {
	return &domain.Target{ID: uuid.New(), Organization: "acme", Project: "storefront", Name: "storefront"}
}

func newSingleProject() *domain.Project {
	return &domain.Project{ID: uuid.New(), Organization: "acme", Name: "storefront", Type: domain.ProjectTypeSingle}
}

func newSinglePipeline() *Pipeline {
	client := orchestrator.NewSingleClient()
	model := projecttype.NewSingleModel(client)
	return NewPipeline(model)
}

func TestPipeline_RejectsEmptySDL(t *testing.T) {
	p := newSinglePipeline()
	_, err := p.Validate(context.Background(), Input{
		Target: newSingleTarget(), Project: newSingleProject(), SDL: "",
	}, "", nil, false)
	if err == nil {
		t.Fatal("expected error for empty SDL")
	}
}

func TestPipeline_RejectsMalformedSDL(t *testing.T) {
	p := newSinglePipeline()
	_, err := p.Validate(context.Background(), Input{
		Target: newSingleTarget(), Project: newSingleProject(), SDL: "not graphql {{{",
	}, "", nil, false)
	if err == nil {
		t.Fatal("expected error for malformed SDL")
	}
}

func TestPipeline_AcceptsFirstPublish(t *testing.T) {
	p := newSinglePipeline()
	result, err := p.Validate(context.Background(), Input{
		Target:  newSingleTarget(),
		Project: newSingleProject(),
		SDL:     "type Query { hello: String }",
	}, "", nil, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.IsComposable {
		t.Error("expected first publish to be composable")
	}
	if result.HasBreaking {
		t.Error("first publish should never be classified as breaking")
	}
}

func TestPipeline_RejectsBreakingChangeWithoutForce(t *testing.T) {
	p := newSinglePipeline()
	previous := "type Query { hello: String\n bye: String }"

	_, err := p.Validate(context.Background(), Input{
		Target:  newSingleTarget(),
		Project: newSingleProject(),
		SDL:     "type Query { hello: String }",
	}, previous, nil, false)

	var breaking *BreakingChangeError
	if !errors.As(err, &breaking) {
		t.Fatalf("expected BreakingChangeError, got %v", err)
	}
}

func TestPipeline_AllowsBreakingChangeWhenForced(t *testing.T) {
	p := newSinglePipeline()
	previous := "type Query { hello: String\n bye: String }"

	result, err := p.Validate(context.Background(), Input{
		Target:  newSingleTarget(),
		Project: newSingleProject(),
		SDL:     "type Query { hello: String }",
	}, previous, nil, true)
	if err != nil {
		t.Fatalf("unexpected error when forcing: %v", err)
	}
	if !result.HasBreaking {
		t.Error("expected HasBreaking to be true even when forced")
	}
}

func TestPipeline_HashUnchangedWhenSDLIdentical(t *testing.T) {
	p := newSinglePipeline()
	sdl := "type Query { hello: String }"

	result, err := p.Validate(context.Background(), Input{
		Target: newSingleTarget(), Project: newSingleProject(), SDL: sdl,
	}, sdl, nil, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.HashUnchanged {
		t.Error("expected HashUnchanged to be true for identical SDL")
	}
}
