package orchestrator

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwe"
	"github.com/vektah/gqlparser/v2/ast"

	"github.com/hiveregistry/registry/internal/differ"
)

// FederationClient delegates composition to an external service reachable
// over HTTP, the out-of-process analogue of the orchestrator/RPC contract
// described for FEDERATION/CUSTOM projects. Every request carries an
// x-request-id header for request tracing.
type FederationClient struct {
	endpoint      string
	httpClient    *http.Client
	encryptionKey []byte
}

func NewFederationClient(endpoint string, timeout time.Duration, encryptionKey []byte) *FederationClient {
	return &FederationClient{
		endpoint:      endpoint,
		httpClient:    &http.Client{Timeout: timeout},
		encryptionKey: encryptionKey,
	}
}

type compositionRequest struct {
	Services []ServiceSchema      `json:"services"`
	External *ExternalComposition `json:"external"`
}

type compositionResponse struct {
	SupergraphSDL string   `json:"supergraphSdl"`
	Errors        []string `json:"errors,omitempty"`
	Warnings      []string `json:"warnings,omitempty"`
}

func (c *FederationClient) Validate(ctx context.Context, input BuildInput) error {
	resp, err := c.compose(ctx, input)
	if err != nil {
		return err
	}
	if len(resp.Errors) > 0 {
		return &BuildError{Err: fmt.Errorf("composition failed: %v", resp.Errors)}
	}
	return nil
}

func (c *FederationClient) Build(ctx context.Context, input BuildInput) (*BuildResult, error) {
	resp, err := c.compose(ctx, input)
	if err != nil {
		return nil, err
	}
	if len(resp.Errors) > 0 {
		return nil, &BuildError{Err: fmt.Errorf("composition failed: %v", resp.Errors)}
	}

	publicSDL := resp.SupergraphSDL
	if !input.IsUsingLegacyRegistryModel {
		publicSDL = stripFederationDirectives(publicSDL)
	}

	doc, err := differ.ParseDocument("supergraph", publicSDL)
	if err != nil {
		return nil, &BuildError{Err: fmt.Errorf("composed supergraph did not parse: %w", err)}
	}

	return &BuildResult{
		Schema:        doc,
		SupergraphSDL: resp.SupergraphSDL,
		Warnings:      resp.Warnings,
	}, nil
}

func (c *FederationClient) Supergraph(ctx context.Context, input BuildInput) (string, error) {
	resp, err := c.compose(ctx, input)
	if err != nil {
		return "", err
	}
	return resp.SupergraphSDL, nil
}

func (c *FederationClient) compose(ctx context.Context, input BuildInput) (*compositionResponse, error) {
	body, err := json.Marshal(compositionRequest{Services: input.Services, External: input.ExternalComposition})
	if err != nil {
		return nil, &BuildError{Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"/compose", bytes.NewReader(body))
	if err != nil {
		return nil, &BuildError{Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-request-id", uuid.NewString())

	if input.ExternalComposition != nil && input.ExternalComposition.EncryptedSecret != "" {
		secret, err := c.DecryptSecret(input.ExternalComposition.EncryptedSecret)
		if err != nil {
			return nil, &BuildError{Err: fmt.Errorf("failed to prepare external composition signature: %w", err)}
		}
		req.Header.Set("x-hub-signature-256", signRequestBody(secret, body))
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &BuildError{Err: fmt.Errorf("orchestrator request failed: %w", err)}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &BuildError{Err: err}
	}

	if resp.StatusCode >= 500 {
		return nil, &BuildError{Err: fmt.Errorf("orchestrator returned %d: %s", resp.StatusCode, string(data))}
	}

	var out compositionResponse
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, &BuildError{Err: fmt.Errorf("invalid orchestrator response: %w", err)}
	}
	return &out, nil
}

// DecryptSecret decrypts a project's externalComposition.encryptedSecret,
// stored as a compact JWE. The plaintext is used only to HMAC-sign the
// outbound composition request and is never sent itself.
func (c *FederationClient) DecryptSecret(encrypted string) (string, error) {
	decrypted, err := jwe.Decrypt([]byte(encrypted), jwe.WithKey(jwa.A256GCMKW, c.encryptionKey))
	if err != nil {
		return "", fmt.Errorf("failed to decrypt external composition secret: %w", err)
	}
	return string(decrypted), nil
}

// signRequestBody HMAC-signs the outbound composition request with the
// decrypted external composition secret, so the remote service can
// validate the request came from the registry it was configured with.
func signRequestBody(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

// stripFederationDirectives removes federation-internal directives and
// types (join__*, core, join__Graph, join__FieldSet, core__Purpose) from a
// supergraph SDL so the public build result matches what a modern-model
// client actually queries against; the supergraph SDL returned separately
// to callers is left untouched.
func stripFederationDirectives(sdl string) string {
	doc, err := differ.ParseDocument("supergraph", sdl)
	if err != nil {
		return sdl
	}

	kept := make(ast.DefinitionList, 0, len(doc.Definitions))
	for _, def := range doc.Definitions {
		if isFederationInternalName(def.Name) {
			continue
		}
		def.Directives = stripFederationDirectiveList(def.Directives)
		for _, field := range def.Fields {
			field.Directives = stripFederationDirectiveList(field.Directives)
			for _, arg := range field.Arguments {
				arg.Directives = stripFederationDirectiveList(arg.Directives)
			}
		}
		for _, value := range def.EnumValues {
			value.Directives = stripFederationDirectiveList(value.Directives)
		}
		kept = append(kept, def)
	}
	doc.Definitions = kept

	keptDirectiveDefs := make(ast.DirectiveDefinitionList, 0, len(doc.Directives))
	for _, directiveDef := range doc.Directives {
		if isFederationInternalName(directiveDef.Name) {
			continue
		}
		keptDirectiveDefs = append(keptDirectiveDefs, directiveDef)
	}
	doc.Directives = keptDirectiveDefs

	return differ.RenderDocument(doc)
}

func stripFederationDirectiveList(directives ast.DirectiveList) ast.DirectiveList {
	kept := make(ast.DirectiveList, 0, len(directives))
	for _, d := range directives {
		if isFederationInternalName(d.Name) {
			continue
		}
		kept = append(kept, d)
	}
	return kept
}

// isFederationInternalName matches the directive/type names a federation
// composition service injects into the supergraph: the join__* family and
// the core schema plumbing (core, core__Purpose).
func isFederationInternalName(name string) bool {
	return name == "core" || strings.HasPrefix(name, "join__") || strings.HasPrefix(name, "core__")
}
