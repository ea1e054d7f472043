package interfaces

import (
	"github.com/gofiber/fiber/v2"
)

// SetupSchemaRoutes registers the registry's mutation and query surface
// under /api/v1/targets/:targetId as one path-scoped route group.
func SetupSchemaRoutes(app *fiber.App, schemaHandler *SchemaHandler, versionHandler *VersionHandler, authMiddleware fiber.Handler) {
	targets := app.Group("/api/v1/targets/:targetId", authMiddleware)

	targets.Post("/schema/check", schemaHandler.Check)
	targets.Post("/schema/publish", schemaHandler.Publish)
	targets.Post("/schema/delete", schemaHandler.Delete)

	targets.Get("/versions/latest", versionHandler.Latest)
	targets.Get("/versions/latest-composable", versionHandler.LatestComposable)
	targets.Get("/versions", versionHandler.History)
}
