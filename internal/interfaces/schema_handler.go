// Package interfaces exposes the registry's mutations and queries as JSON
// handlers over fiber. A generated GraphQL transport is out of reach
// without running codegen, so schemaCheck/schemaPublish/schemaDelete are
// plain JSON RPCs with the input/output shapes the GraphQL mutations of
// the same name would otherwise carry.
package interfaces

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hiveregistry/registry/internal/domain"
	"github.com/hiveregistry/registry/internal/infrastructure/middleware"
	"github.com/hiveregistry/registry/internal/lifecycle"
)

type SchemaHandler struct {
	coordinator *lifecycle.Coordinator
	logger      *zap.Logger
}

func NewSchemaHandler(coordinator *lifecycle.Coordinator, logger *zap.Logger) *SchemaHandler {
	return &SchemaHandler{coordinator: coordinator, logger: logger}
}

type schemaCheckRequest struct {
	ServiceName string `json:"service"`
	ServiceURL  string `json:"url"`
	SDL         string `json:"sdl"`
}

func (h *SchemaHandler) Check(c *fiber.Ctx) error {
	targetID, err := uuid.Parse(c.Params("targetId"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid targetId"})
	}

	var req schemaCheckRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}

	out, err := h.coordinator.Check(c.Context(), lifecycle.CheckInput{
		Principal:   principal(c),
		TargetID:    targetID,
		ServiceName: req.ServiceName,
		ServiceURL:  req.ServiceURL,
		SDL:         req.SDL,
	})
	if err != nil {
		return h.respondError(c, err)
	}

	return c.JSON(fiber.Map{
		"__typename":   "SchemaCheckSuccess",
		"changes":      out.Changes,
		"isComposable": out.IsComposable,
		"hasBreaking":  out.HasBreaking,
	})
}

type schemaPublishRequest struct {
	ServiceName                string `json:"service"`
	ServiceURL                 string `json:"url"`
	SDL                        string `json:"sdl"`
	Author                     string `json:"author"`
	Commit                     string `json:"commit"`
	Force                      bool   `json:"force"`
	ExperimentalAcceptBreaking bool   `json:"experimental_acceptBreakingChanges"`
	Metadata                   string `json:"metadata"`
	Checksum                   string `json:"checksum"`
}

func (h *SchemaHandler) Publish(c *fiber.Ctx) error {
	targetID, err := uuid.Parse(c.Params("targetId"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid targetId"})
	}

	var req schemaPublishRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}
	if req.Checksum == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "checksum is required"})
	}

	out, err := h.coordinator.Publish(c.Context(), lifecycle.PublishInput{
		Principal:                  principal(c),
		TargetID:                   targetID,
		ServiceName:                req.ServiceName,
		ServiceURL:                 req.ServiceURL,
		SDL:                        req.SDL,
		Author:                     req.Author,
		Commit:                     req.Commit,
		Force:                      req.Force,
		ExperimentalAcceptBreaking: req.ExperimentalAcceptBreaking,
		Metadata:                   req.Metadata,
		Checksum:                   req.Checksum,
	})
	if err != nil {
		return h.respondError(c, err)
	}

	if out.Neutral {
		return c.JSON(fiber.Map{"__typename": "SchemaPublishSuccess", "changes": []domain.Change{}})
	}

	return c.JSON(fiber.Map{
		"__typename":    "SchemaPublishSuccess",
		"changes":       out.Changes,
		"isComposable":  out.IsComposable,
		"schemaUrl":     out.SchemaURL,
		"supergraphUrl": out.SupergraphURL,
	})
}

type schemaDeleteRequest struct {
	ServiceName string `json:"serviceName"`
	Force       bool   `json:"force"`
}

func (h *SchemaHandler) Delete(c *fiber.Ctx) error {
	targetID, err := uuid.Parse(c.Params("targetId"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid targetId"})
	}

	var req schemaDeleteRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}

	out, err := h.coordinator.Delete(c.Context(), lifecycle.DeleteInput{
		Principal:   principal(c),
		TargetID:    targetID,
		ServiceName: req.ServiceName,
		Force:       req.Force,
	})
	if err != nil {
		return h.respondError(c, err)
	}

	return c.JSON(fiber.Map{"ok": fiber.Map{"serviceName": req.ServiceName, "isComposable": out.IsComposable}})
}

func (h *SchemaHandler) respondError(c *fiber.Ctx, err error) error {
	var lerr *lifecycle.Error
	if !errors.As(err, &lerr) {
		h.logger.Error("unexpected lifecycle error", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_error", "message": err.Error()})
	}

	status := fiber.StatusBadRequest
	switch lerr.Code {
	case lifecycle.CodeAuthorizationFailed:
		status = fiber.StatusForbidden
	case lifecycle.CodeTargetNotFound:
		status = fiber.StatusNotFound
	case lifecycle.CodeStorageFailure, lifecycle.CodeIdempotencyFailure:
		status = fiber.StatusInternalServerError
	}

	return c.Status(status).JSON(fiber.Map{"error": lerr.Code, "message": lerr.Message})
}

// principal resolves the calling identity from whichever credential form
// authenticated the request. Legacy callers are identified by their raw
// token value; the authorizer's policy rows are provisioned against that
// same value when a legacy target is created.
func principal(c *fiber.Ctx) string {
	if claims, ok := middleware.ClaimsFromContext(c); ok {
		return claims.Subject
	}
	if token, ok := middleware.LegacyTokenFromContext(c); ok {
		return token
	}
	return ""
}
