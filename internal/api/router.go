package api

import (
	"finbuddy/internal/api/handlers"
	"finbuddy/pkg/auth"
	"finbuddy/pkg/middleware"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"go.uber.org/zap"
)

func SetupRouter(
	expenseHandler *handlers.ExpenseHandler,
	pipelineHandler *handlers.PipelineHandler,
	searchHandler *handlers.SearchHandler,
	insightHandler *handlers.InsightHandler,
	jwtManager *auth.JWTManager,
	appLogger *zap.Logger,
) *fiber.App {
	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{
				"error": err.Error(),
			})
		},
	})

	// Middleware
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept,Authorization",
	}))
	app.Use(logger.New())

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	// Protected routes
	protected := app.Group("/api/v1", middleware.AuthMiddleware(jwtManager, appLogger))

	expenses := protected.Group("/expenses")
	expenses.Post("/upload", expenseHandler.UploadReceipt)
	expenses.Post("", expenseHandler.CreateManual)
	expenses.Get("", expenseHandler.List)
	expenses.Get("/:id", expenseHandler.Get)
	expenses.Delete("/:id", expenseHandler.Delete)
	expenses.Post("/:id/extract", pipelineHandler.Extract)
	expenses.Post("/:id/chat", pipelineHandler.Chat)

	pipeline := protected.Group("/pipeline")
	pipeline.Post("/ocr/run", pipelineHandler.RunOCR)

	search := protected.Group("/search")
	search.Post("/semantic", searchHandler.Semantic)

	insights := protected.Group("/insights")
	insights.Get("/budget", insightHandler.BudgetProjection)
	insights.Post("/summary", insightHandler.GenerateSummary)
	insights.Get("/summary/latest", insightHandler.LatestSummary)
	insights.Post("/smart-switch", insightHandler.SmartSwitch)

	profile := protected.Group("/profile")
	profile.Put("/budget", insightHandler.SetBudget)

	return app
}
