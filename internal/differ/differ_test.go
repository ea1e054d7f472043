package differ

import (
	"testing"

	"github.com/hiveregistry/registry/internal/domain"
)

func TestCompare_FirstPublishReportsOnlyAdditions(t *testing.T) {
	after, err := ParseDocument("after", `
		type Query {
			hello: String
		}
	`)
	if err != nil {
		t.Fatalf("parse after: %v", err)
	}

	changes := Compare(nil, after)
	if len(changes) == 0 {
		t.Fatal("expected changes for first publish, got none")
	}
	for _, c := range changes {
		if c.Criticality != domain.CriticalitySafe {
			t.Errorf("expected SAFE criticality on first publish, got %s for %s", c.Criticality, c.Path)
		}
	}
}

func TestCompare_RemovedFieldIsBreaking(t *testing.T) {
	before, err := ParseDocument("before", `
		type Query {
			hello: String
			bye: String
		}
	`)
	if err != nil {
		t.Fatalf("parse before: %v", err)
	}
	after, err := ParseDocument("after", `
		type Query {
			hello: String
		}
	`)
	if err != nil {
		t.Fatalf("parse after: %v", err)
	}

	changes := Compare(before, after)

	var found bool
	for _, c := range changes {
		if c.Path == "Query.bye" {
			found = true
			if c.Criticality != domain.CriticalityBreaking {
				t.Errorf("expected BREAKING for removed field, got %s", c.Criticality)
			}
		}
	}
	if !found {
		t.Fatal("expected a change entry for removed field Query.bye")
	}
}

func TestCompare_AddedFieldIsSafe(t *testing.T) {
	before, err := ParseDocument("before", `
		type Query {
			hello: String
		}
	`)
	if err != nil {
		t.Fatalf("parse before: %v", err)
	}
	after, err := ParseDocument("after", `
		type Query {
			hello: String
			world: String
		}
	`)
	if err != nil {
		t.Fatalf("parse after: %v", err)
	}

	changes := Compare(before, after)

	var found bool
	for _, c := range changes {
		if c.Path == "Query.world" {
			found = true
			if c.Criticality != domain.CriticalitySafe {
				t.Errorf("expected SAFE for added field, got %s", c.Criticality)
			}
		}
	}
	if !found {
		t.Fatal("expected a change entry for added field Query.world")
	}
}

func TestCompare_WideningToNullableIsBreaking(t *testing.T) {
	before, err := ParseDocument("before", `
		type Query {
			hello: String!
		}
	`)
	if err != nil {
		t.Fatalf("parse before: %v", err)
	}
	after, err := ParseDocument("after", `
		type Query {
			hello: String
		}
	`)
	if err != nil {
		t.Fatalf("parse after: %v", err)
	}

	changes := Compare(before, after)
	if len(changes) != 1 {
		t.Fatalf("expected exactly one change, got %d", len(changes))
	}
	if changes[0].Criticality != domain.CriticalityBreaking {
		t.Errorf("widening a non-null field to nullable should be BREAKING, got %s", changes[0].Criticality)
	}
}

func TestCompare_RemovedTypeIsBreaking(t *testing.T) {
	before, err := ParseDocument("before", `
		type Query {
			hello: String
		}
		type Widget {
			id: ID
		}
	`)
	if err != nil {
		t.Fatalf("parse before: %v", err)
	}
	after, err := ParseDocument("after", `
		type Query {
			hello: String
		}
	`)
	if err != nil {
		t.Fatalf("parse after: %v", err)
	}

	changes := Compare(before, after)

	var found bool
	for _, c := range changes {
		if c.Path == "Widget" {
			found = true
			if c.Criticality != domain.CriticalityBreaking {
				t.Errorf("expected BREAKING for removed type, got %s", c.Criticality)
			}
		}
	}
	if !found {
		t.Fatal("expected a change entry for removed type Widget")
	}
}

func TestCompare_AddedRequiredArgumentIsBreaking(t *testing.T) {
	before, err := ParseDocument("before", `
		type Query {
			widget(id: ID): String
		}
	`)
	if err != nil {
		t.Fatalf("parse before: %v", err)
	}
	after, err := ParseDocument("after", `
		type Query {
			widget(id: ID, tenant: ID!): String
		}
	`)
	if err != nil {
		t.Fatalf("parse after: %v", err)
	}

	changes := Compare(before, after)

	var found bool
	for _, c := range changes {
		if c.Path == "Query.widget(tenant:)" {
			found = true
			if c.Criticality != domain.CriticalityBreaking {
				t.Errorf("expected BREAKING for added required argument, got %s", c.Criticality)
			}
		}
	}
	if !found {
		t.Fatal("expected a change entry for added required argument tenant")
	}
}

func TestCompare_AddedOptionalArgumentIsSafe(t *testing.T) {
	before, err := ParseDocument("before", `
		type Query {
			widget(id: ID): String
		}
	`)
	if err != nil {
		t.Fatalf("parse before: %v", err)
	}
	after, err := ParseDocument("after", `
		type Query {
			widget(id: ID, tenant: ID): String
		}
	`)
	if err != nil {
		t.Fatalf("parse after: %v", err)
	}

	changes := Compare(before, after)

	var found bool
	for _, c := range changes {
		if c.Path == "Query.widget(tenant:)" {
			found = true
			if c.Criticality != domain.CriticalitySafe {
				t.Errorf("expected SAFE for added optional argument, got %s", c.Criticality)
			}
		}
	}
	if !found {
		t.Fatal("expected a change entry for added optional argument tenant")
	}
}

func TestCompare_RemovedArgumentIsBreaking(t *testing.T) {
	before, err := ParseDocument("before", `
		type Query {
			widget(id: ID, tenant: ID): String
		}
	`)
	if err != nil {
		t.Fatalf("parse before: %v", err)
	}
	after, err := ParseDocument("after", `
		type Query {
			widget(id: ID): String
		}
	`)
	if err != nil {
		t.Fatalf("parse after: %v", err)
	}

	changes := Compare(before, after)

	var found bool
	for _, c := range changes {
		if c.Path == "Query.widget(tenant:)" {
			found = true
			if c.Criticality != domain.CriticalityBreaking {
				t.Errorf("expected BREAKING for removed argument, got %s", c.Criticality)
			}
		}
	}
	if !found {
		t.Fatal("expected a change entry for removed argument tenant")
	}
}

func TestCompare_RemovedEnumValueIsBreaking(t *testing.T) {
	before, err := ParseDocument("before", `
		enum Status {
			ACTIVE
			RETIRED
		}
	`)
	if err != nil {
		t.Fatalf("parse before: %v", err)
	}
	after, err := ParseDocument("after", `
		enum Status {
			ACTIVE
		}
	`)
	if err != nil {
		t.Fatalf("parse after: %v", err)
	}

	changes := Compare(before, after)

	var found bool
	for _, c := range changes {
		if c.Path == "Status.RETIRED" {
			found = true
			if c.Criticality != domain.CriticalityBreaking {
				t.Errorf("expected BREAKING for removed enum value, got %s", c.Criticality)
			}
		}
	}
	if !found {
		t.Fatal("expected a change entry for removed enum value Status.RETIRED")
	}
}

func TestCompare_AddedEnumValueIsDangerous(t *testing.T) {
	before, err := ParseDocument("before", `
		enum Status {
			ACTIVE
		}
	`)
	if err != nil {
		t.Fatalf("parse before: %v", err)
	}
	after, err := ParseDocument("after", `
		enum Status {
			ACTIVE
			PENDING
		}
	`)
	if err != nil {
		t.Fatalf("parse after: %v", err)
	}

	changes := Compare(before, after)

	var found bool
	for _, c := range changes {
		if c.Path == "Status.PENDING" {
			found = true
			if c.Criticality != domain.CriticalityDangerous {
				t.Errorf("expected DANGEROUS for added enum value, got %s", c.Criticality)
			}
		}
	}
	if !found {
		t.Fatal("expected a change entry for added enum value Status.PENDING")
	}
}

func TestHash_IsStableAndIgnoresSurroundingWhitespace(t *testing.T) {
	a := Hash("type Query { hello: String }")
	b := Hash("  type Query { hello: String }  ")
	if a != b {
		t.Errorf("Hash should ignore leading/trailing whitespace, got %s != %s", a, b)
	}

	c := Hash("type Query { bye: String }")
	if a == c {
		t.Error("Hash should differ for different SDL content")
	}
}
