package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/handwerkpro/handwerk-api/internal/application/auth"
	"github.com/handwerkpro/handwerk-api/internal/application/dunning"
	"github.com/handwerkpro/handwerk-api/internal/application/sync"
	"github.com/handwerkpro/handwerk-api/internal/domain/entity"
	"github.com/handwerkpro/handwerk-api/pkg/logger"
)

// RouterDeps dependencies for the router.
type RouterDeps struct {
	AuthUC        *auth.UseCase
	Syncer        *sync.Engine
	DunningEngine *dunning.Engine
	DunningRunner *dunning.Runner
	PDFGenerator  dunning.PDFGenerator
	Receivables   ReceivablesSource // nil on offline-only instances
	Log           *logger.Logger
	JWTSecret     string
	Tenant        string
	Workshop      string
	PaymentDays   int
}

// Router registers the API routes.
func Router(app *fiber.App, deps RouterDeps) {
	api := app.Group("/api")

	// Auth (public)
	authGroup := api.Group("/auth")
	authHandler := NewAuthHandler(deps.AuthUC)
	authGroup.Post("/register", authHandler.Register)
	authGroup.Post("/login", authHandler.Login)

	// Everything else requires a Bearer token.
	protected := api.Group("/", AuthMiddleware(deps.JWTSecret))

	// Synced records
	records := protected.Group("/records")
	recordHandler := NewRecordHandler(deps.Syncer, deps.Tenant)
	records.Get("/:collection", recordHandler.List)
	records.Post("/:collection", recordHandler.Create)
	records.Post("/:collection/pull", recordHandler.Pull)
	records.Get("/:collection/:id", recordHandler.Get)
	records.Put("/:collection/:id", recordHandler.Put)
	records.Delete("/:collection/:id", recordHandler.Delete)

	// Sync engine
	syncGroup := protected.Group("/sync")
	syncHandler := NewSyncHandler(deps.Syncer)
	syncGroup.Get("/status", syncHandler.Status)
	syncGroup.Post("/flush", syncHandler.Flush)

	// Dunning; running a pass is restricted to back-office and admins.
	dunningGroup := protected.Group("/dunning")
	dunningHandler := NewDunningHandler(deps.DunningEngine, deps.DunningRunner, deps.Syncer, deps.PDFGenerator, deps.Workshop, deps.PaymentDays)
	dunningGroup.Get("/due", dunningHandler.Due)
	dunningGroup.Post("/run", RequireRole(entity.RoleAdmin, entity.RoleBuero), dunningHandler.Run)
	dunningGroup.Get("/invoices/:invoiceID", dunningHandler.History)
	dunningGroup.Get("/invoices/:invoiceID/letters/:tierID/pdf", dunningHandler.LetterPDF)

	// Reports
	reports := protected.Group("/reports")
	reportHandler := NewReportHandler(deps.Receivables, deps.Syncer, deps.DunningEngine, deps.Log, deps.Tenant)
	reports.Get("/receivables", reportHandler.Receivables)
}
