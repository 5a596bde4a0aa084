package handler

import (
	"context"
	"database/sql"
	"time"

	"github.com/gofiber/fiber/v2"

	"docvault/internal/http/middleware"
	"docvault/internal/service"
)

// RegisterRoutes attaches HTTP routes to the provided Fiber app.
// Handlers stay thin: parse the request, call a service, render the result.
// Everything under /api requires a bearer token.
func RegisterRoutes(app *fiber.App, db *sql.DB, jwtSecret string, docSvc service.DocumentService, listSvc service.ListingService) {
	// Health endpoint: checks DB connectivity only
	app.Get("/health", func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
		defer cancel()
		if err := db.PingContext(ctx); err != nil {
			return writeError(c, fiber.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", "dependency unavailable")
		}
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"status": "healthy"})
	})

	// Simple liveness probe
	app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})

	api := app.Group("/api", middleware.Auth(jwtSecret))

	docs := api.Group("/documents")
	// Static segments before /:id so they are not captured as IDs.
	docs.Get("/shared", listSharedDocuments(listSvc))
	docs.Get("/dashboard", dashboard(listSvc))
	docs.Get("/tags", listTags(listSvc))

	docs.Get("/", listDocuments(listSvc))
	docs.Post("/", createDocument(docSvc))
	docs.Post("/batch", createDocumentBatch(docSvc))

	docs.Get("/:id", getDocument(docSvc))
	docs.Patch("/:id", updateDocument(docSvc))
	docs.Delete("/:id", deleteDocument(docSvc))
	docs.Get("/:id/download", downloadDocument(docSvc))
	docs.Post("/:id/versions", uploadVersion(docSvc))
	docs.Post("/:id/permissions", setPermission(docSvc))
	docs.Delete("/:id/permissions/:userId", removePermission(docSvc))
}
