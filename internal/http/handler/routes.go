package handler

import (
	"database/sql"

	"github.com/gofiber/fiber/v2"

	"nutrilab/internal/http/middleware"
	"nutrilab/internal/service"
)

// Services are the dependencies the routes call into.
type Services struct {
	Posts    service.PostService
	Admin    service.AdminService
	Export   service.ExportService
	Pipeline PipelineRunner

	// AdminToken guards /api/admin. Empty closes the admin routes.
	AdminToken string
}

// RegisterRoutes attaches HTTP routes to the provided Fiber app.
func RegisterRoutes(app *fiber.App, db *sql.DB, s Services) {
	app.Get("/health", HealthCheck(db))
	app.Get("/healthz", LivenessProbe())

	api := app.Group("/api")

	posts := api.Group("/posts")
	posts.Get("/", ListPosts(s.Posts))
	posts.Post("/", UploadPost(s.Posts))
	posts.Get("/:id", GetPost(s.Posts))
	posts.Get("/:id/download", DownloadPost(s.Posts))
	posts.Delete("/:id", DeletePost(s.Posts))

	admin := api.Group("/admin", middleware.AdminAuth(s.AdminToken))
	admin.Post("/posts/:id/reprocess", ReprocessPost(s.Admin))
	admin.Post("/posts/:id/extract", ExtractPost(s.Admin))
	admin.Post("/posts/:id/analyze-food", AnalyzeFood(s.Admin))
	admin.Post("/pipeline/run", RunPipeline(s.Pipeline))
	admin.Get("/pipeline/pending", PendingPosts(s.Admin))
	admin.Get("/export", ExportData(s.Export))
}
