// Package differ implements C2: comparing two GraphQL schema documents and
// classifying every difference as SAFE, DANGEROUS, or BREAKING, driven by
// the gqlparser AST rather than a hand-rolled string diff.
package differ

import (
	"bytes"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"

	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/formatter"
	"github.com/vektah/gqlparser/v2/parser"

	"github.com/hiveregistry/registry/internal/domain"
)

// Hash returns the hex MD5 digest of an SDL document's text with leading and
// trailing whitespace trimmed, used by C3/C4 as the fast-path "did anything
// change" check. Definitions are not reordered or reformatted first, so two
// documents that differ only in definition order or inner whitespace hash
// differently.
func Hash(sdl string) string {
	sum := md5.Sum([]byte(strings.TrimSpace(sdl)))
	return hex.EncodeToString(sum[:])
}

// ParseDocument parses raw SDL into an unvalidated *ast.SchemaDocument. Raw
// parsing (rather than full schema loading) is used because composite
// project types diff per-service SDL before it has been composed into a
// single validated schema.
func ParseDocument(name, sdl string) (*ast.SchemaDocument, error) {
	doc, gqlErr := parser.ParseSchema(&ast.Source{Name: name, Input: sdl})
	if gqlErr != nil {
		return nil, fmt.Errorf("failed to parse schema %s: %w", name, gqlErr)
	}
	return doc, nil
}

// RenderDocument serializes a parsed schema document back to SDL text, the
// inverse of ParseDocument; used wherever a composed AST needs to become
// the canonical string published to callers or the CDN.
func RenderDocument(doc *ast.SchemaDocument) string {
	if doc == nil {
		return ""
	}
	var buf bytes.Buffer
	formatter.NewFormatter(&buf).FormatSchemaDocument(doc)
	return buf.String()
}

// Compare produces the ordered list of changes between before and after.
// before may be nil (first publish for a target), in which case every type
// in after is reported as an addition.
func Compare(before, after *ast.SchemaDocument) []domain.Change {
	var changes []domain.Change

	beforeTypes := typeIndex(before)
	afterTypes := typeIndex(after)

	for name, beforeDef := range beforeTypes {
		afterDef, stillExists := afterTypes[name]
		if !stillExists {
			changes = append(changes, domain.Change{
				Path:        name,
				Message:     fmt.Sprintf("Type `%s` was removed", name),
				Criticality: domain.CriticalityBreaking,
			})
			continue
		}
		changes = append(changes, compareFields(name, beforeDef, afterDef)...)
	}

	for name := range afterTypes {
		if _, existed := beforeTypes[name]; !existed {
			changes = append(changes, domain.Change{
				Path:        name,
				Message:     fmt.Sprintf("Type `%s` was added", name),
				Criticality: domain.CriticalitySafe,
			})
		}
	}

	sort.Slice(changes, func(i, j int) bool {
		if changes[i].Path != changes[j].Path {
			return changes[i].Path < changes[j].Path
		}
		return changes[i].Message < changes[j].Message
	})

	return changes
}

func typeIndex(doc *ast.SchemaDocument) map[string]*ast.Definition {
	index := make(map[string]*ast.Definition)
	if doc == nil {
		return index
	}
	for _, def := range doc.Definitions {
		if strings.HasPrefix(def.Name, "__") {
			continue
		}
		index[def.Name] = def
	}
	return index
}

func compareFields(typeName string, before, after *ast.Definition) []domain.Change {
	var changes []domain.Change

	beforeFields := fieldIndex(before)
	afterFields := fieldIndex(after)

	for fieldName, beforeField := range beforeFields {
		afterField, stillExists := afterFields[fieldName]
		path := fmt.Sprintf("%s.%s", typeName, fieldName)
		if !stillExists {
			changes = append(changes, domain.Change{
				Path:        path,
				Message:     fmt.Sprintf("Field `%s` was removed from type `%s`", fieldName, typeName),
				Criticality: domain.CriticalityBreaking,
			})
			continue
		}
		if beforeField.Type.String() != afterField.Type.String() {
			changes = append(changes, domain.Change{
				Path:        path,
				Message: fmt.Sprintf("Field `%s` changed type from `%s` to `%s`",
					fieldName, beforeField.Type.String(), afterField.Type.String()),
				Criticality: fieldTypeChangeCriticality(beforeField.Type, afterField.Type),
			})
		}
		changes = append(changes, compareArguments(path, beforeField.Arguments, afterField.Arguments)...)
	}

	for fieldName := range afterFields {
		if _, existed := beforeFields[fieldName]; !existed {
			changes = append(changes, domain.Change{
				Path:        fmt.Sprintf("%s.%s", typeName, fieldName),
				Message:     fmt.Sprintf("Field `%s` was added to type `%s`", fieldName, typeName),
				Criticality: domain.CriticalitySafe,
			})
		}
	}

	changes = append(changes, compareEnumValues(typeName, before, after)...)

	return changes
}

func fieldIndex(def *ast.Definition) map[string]*ast.FieldDefinition {
	index := make(map[string]*ast.FieldDefinition)
	if def == nil {
		return index
	}
	for _, f := range def.Fields {
		index[f.Name] = f
	}
	return index
}

// compareArguments diffs one field's arguments. Adding a required argument
// (non-null, no default) is breaking for existing callers that don't send
// it; removing an argument is breaking for callers that do.
func compareArguments(fieldPath string, before, after ast.ArgumentDefinitionList) []domain.Change {
	var changes []domain.Change

	beforeArgs := argumentIndex(before)
	afterArgs := argumentIndex(after)

	for name := range beforeArgs {
		if _, stillExists := afterArgs[name]; !stillExists {
			changes = append(changes, domain.Change{
				Path:        fmt.Sprintf("%s(%s:)", fieldPath, name),
				Message:     fmt.Sprintf("Argument `%s` was removed from field `%s`", name, fieldPath),
				Criticality: domain.CriticalityBreaking,
			})
		}
	}

	for name, afterArg := range afterArgs {
		path := fmt.Sprintf("%s(%s:)", fieldPath, name)
		beforeArg, existed := beforeArgs[name]
		if !existed {
			criticality := domain.CriticalitySafe
			if afterArg.Type.NonNull && afterArg.DefaultValue == nil {
				criticality = domain.CriticalityBreaking
			}
			changes = append(changes, domain.Change{
				Path:        path,
				Message:     fmt.Sprintf("Argument `%s` was added to field `%s`", name, fieldPath),
				Criticality: criticality,
			})
			continue
		}
		if beforeArg.Type.String() != afterArg.Type.String() {
			changes = append(changes, domain.Change{
				Path: path,
				Message: fmt.Sprintf("Argument `%s` on field `%s` changed type from `%s` to `%s`",
					name, fieldPath, beforeArg.Type.String(), afterArg.Type.String()),
				Criticality: domain.CriticalityBreaking,
			})
		}
	}

	return changes
}

func argumentIndex(args ast.ArgumentDefinitionList) map[string]*ast.ArgumentDefinition {
	index := make(map[string]*ast.ArgumentDefinition)
	for _, a := range args {
		index[a.Name] = a
	}
	return index
}

// compareEnumValues diffs a type's enum values. Removing a value is always
// treated as breaking, since gqlparser's raw document doesn't track which
// positions (input vs. output) reference a given enum; adding one is
// dangerous, since existing clients may not handle a value they don't know
// about yet.
func compareEnumValues(typeName string, before, after *ast.Definition) []domain.Change {
	var changes []domain.Change
	if before == nil || after == nil {
		return changes
	}

	beforeValues := enumValueIndex(before)
	afterValues := enumValueIndex(after)
	if len(beforeValues) == 0 && len(afterValues) == 0 {
		return changes
	}

	for name := range beforeValues {
		if _, stillExists := afterValues[name]; !stillExists {
			changes = append(changes, domain.Change{
				Path:        fmt.Sprintf("%s.%s", typeName, name),
				Message:     fmt.Sprintf("Enum value `%s` was removed from `%s`", name, typeName),
				Criticality: domain.CriticalityBreaking,
			})
		}
	}

	for name := range afterValues {
		if _, existed := beforeValues[name]; !existed {
			changes = append(changes, domain.Change{
				Path:        fmt.Sprintf("%s.%s", typeName, name),
				Message:     fmt.Sprintf("Enum value `%s` was added to `%s`", name, typeName),
				Criticality: domain.CriticalityDangerous,
			})
		}
	}

	return changes
}

func enumValueIndex(def *ast.Definition) map[string]*ast.EnumValueDefinition {
	index := make(map[string]*ast.EnumValueDefinition)
	for _, v := range def.EnumValues {
		index[v.Name] = v
	}
	return index
}

// fieldTypeChangeCriticality treats narrowing to non-null as dangerous
// (existing clients may send absent values) and any other type change as
// breaking.
func fieldTypeChangeCriticality(before, after *ast.Type) domain.Criticality {
	if before.Name() == after.Name() && !before.NonNull && after.NonNull {
		return domain.CriticalityDangerous
	}
	return domain.CriticalityBreaking
}
