package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/petflowpe/facturacion/internal/application/billing"
)

// RouterDeps dependencias para el router.
type RouterDeps struct {
	Documents billing.DocumentService
	JWTSecret string
}

// Router registra las rutas de la API. Todas las rutas de comprobantes exigen
// Bearer Token; el emisor sale del token, nunca del payload.
func Router(app *fiber.App, deps RouterDeps) {
	api := app.Group("/api")

	protected := api.Group("/", AuthMiddleware(deps.JWTSecret))

	documents := protected.Group("/documents")
	documentHandler := NewDocumentHandler(deps.Documents)
	documents.Post("/", documentHandler.Submit)
	documents.Post("/reconcile", documentHandler.Reconcile)
	documents.Get("/:id", documentHandler.GetByID)
	documents.Get("/:id/xml", documentHandler.GetXML)
	documents.Get("/:id/cdr", documentHandler.GetCDR)
	documents.Get("/:id/attempts", documentHandler.Attempts)
}
