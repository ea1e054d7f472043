package interfaces

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/hiveregistry/registry/internal/domain"
)

// VersionHandler serves the read-only version history surface backed
// directly by the version store (C5), independent of the coordinator since
// these are plain lookups with no validation or side effects.
type VersionHandler struct {
	versions domain.VersionRepository
}

func NewVersionHandler(versions domain.VersionRepository) *VersionHandler {
	return &VersionHandler{versions: versions}
}

func (h *VersionHandler) Latest(c *fiber.Ctx) error {
	targetID, err := uuid.Parse(c.Params("targetId"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid targetId"})
	}

	version, err := h.versions.GetLatest(c.Context(), targetID)
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "no version found"})
	}
	return c.JSON(version)
}

func (h *VersionHandler) LatestComposable(c *fiber.Ctx) error {
	targetID, err := uuid.Parse(c.Params("targetId"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid targetId"})
	}

	version, err := h.versions.GetLatestComposable(c.Context(), targetID)
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "no composable version found"})
	}
	return c.JSON(version)
}

func (h *VersionHandler) History(c *fiber.Ctx) error {
	targetID, err := uuid.Parse(c.Params("targetId"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid targetId"})
	}

	limit := c.QueryInt("limit", 20)
	versions, err := h.versions.ListByTarget(c.Context(), targetID, limit)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to list versions"})
	}
	return c.JSON(versions)
}
