package orchestrator

import (
	"context"
	"testing"
)

func TestSingleClient_BuildRequiresExactlyOneService(t *testing.T) {
	c := NewSingleClient()

	_, err := c.Build(context.Background(), BuildInput{Services: []ServiceSchema{
		{Name: "a", SDL: "type Query { hello: String }"},
		{Name: "b", SDL: "type Query { bye: String }"},
	}})
	if err == nil {
		t.Fatal("expected error for more than one service")
	}
}

func TestSingleClient_BuildParsesSDL(t *testing.T) {
	c := NewSingleClient()

	result, err := c.Build(context.Background(), BuildInput{
		Services: []ServiceSchema{{Name: "default", SDL: "type Query { hello: String }"}},
	})
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if result.Schema == nil {
		t.Fatal("expected a parsed schema document")
	}
}

func TestSingleClient_SupergraphIsAlwaysEmpty(t *testing.T) {
	c := NewSingleClient()
	sg, err := c.Supergraph(context.Background(), BuildInput{
		Services: []ServiceSchema{{Name: "default", SDL: "type Query { hello: String }"}},
	})
	if err != nil {
		t.Fatalf("Supergraph failed: %v", err)
	}
	if sg != "" {
		t.Errorf("expected empty supergraph for SingleClient, got %q", sg)
	}
}

func TestSingleClient_ValidateRejectsInvalidSDL(t *testing.T) {
	c := NewSingleClient()
	err := c.Validate(context.Background(), BuildInput{
		Services: []ServiceSchema{{Name: "default", SDL: "this is not valid SDL {{{"}},
	})
	if err == nil {
		t.Fatal("expected validation error for malformed SDL")
	}
}
