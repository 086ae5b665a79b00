package http

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/petflowpe/facturacion/internal/application/billing"
	"github.com/petflowpe/facturacion/internal/application/dto"
	"github.com/petflowpe/facturacion/internal/domain"
)

// DocumentHandler maneja las peticiones HTTP de comprobantes (protegido).
type DocumentHandler struct {
	svc billing.DocumentService
}

// NewDocumentHandler construye el handler.
func NewDocumentHandler(svc billing.DocumentService) *DocumentHandler {
	return &DocumentHandler{svc: svc}
}

// Submit emite un comprobante: asigna numeración, lo codifica y lo transmite.
// POST /api/documents
func (h *DocumentHandler) Submit(c *fiber.Ctx) error {
	issuerID := GetIssuerID(c)
	if issuerID == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Code: "UNAUTHORIZED", Message: "token inválido"})
	}
	var in dto.SubmitDocumentRequest
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "cuerpo inválido"})
	}
	doc, err := h.svc.Submit(c.Context(), issuerID, in)
	if err != nil {
		// La codificación fallida ya dejó el comprobante en estado terminal;
		// se devuelve junto al error para que el caller vea el número asignado.
		if errors.Is(err, domain.ErrEncodingFailed) && doc != nil {
			return c.Status(fiber.StatusUnprocessableEntity).JSON(doc)
		}
		return h.mapError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(doc)
}

// GetByID obtiene el estado actual de un comprobante.
// GET /api/documents/:id
func (h *DocumentHandler) GetByID(c *fiber.Ctx) error {
	issuerID := GetIssuerID(c)
	if issuerID == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Code: "UNAUTHORIZED", Message: "token inválido"})
	}
	id := c.Params("id")
	if id == "" {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: "id requerido"})
	}
	doc, err := h.svc.GetDocument(c.Context(), issuerID, id)
	if err != nil {
		return h.mapError(c, err)
	}
	return c.JSON(doc)
}

// GetXML descarga el ZIP con el XML firmado del comprobante.
// GET /api/documents/:id/xml
func (h *DocumentHandler) GetXML(c *fiber.Ctx) error {
	return h.download(c, h.svc.GetDocumentXML)
}

// GetCDR descarga el ZIP con la constancia de recepción (CDR) de SUNAT.
// GET /api/documents/:id/cdr
func (h *DocumentHandler) GetCDR(c *fiber.Ctx) error {
	return h.download(c, h.svc.GetDocumentCDR)
}

// Attempts devuelve la bitácora de transporte del comprobante.
// GET /api/documents/:id/attempts
func (h *DocumentHandler) Attempts(c *fiber.Ctx) error {
	issuerID := GetIssuerID(c)
	if issuerID == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Code: "UNAUTHORIZED", Message: "token inválido"})
	}
	id := c.Params("id")
	if id == "" {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: "id requerido"})
	}
	attempts, err := h.svc.ListAttempts(c.Context(), issuerID, id)
	if err != nil {
		return h.mapError(c, err)
	}
	return c.JSON(attempts)
}

// Reconcile dispara una pasada del reconciliador sobre los comprobantes
// pendientes. La misma pasada corre periódicamente en segundo plano; el
// endpoint existe para operación manual.
// POST /api/documents/reconcile
func (h *DocumentHandler) Reconcile(c *fiber.Ctx) error {
	result, err := h.svc.ReconcilePending(c.Context())
	if err != nil {
		return h.mapError(c, err)
	}
	return c.JSON(result)
}

func (h *DocumentHandler) download(c *fiber.Ctx, fetch func(ctx context.Context, issuerID, id string) ([]byte, string, error)) error {
	issuerID := GetIssuerID(c)
	if issuerID == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Code: "UNAUTHORIZED", Message: "token inválido"})
	}
	id := c.Params("id")
	if id == "" {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: "id requerido"})
	}
	data, filename, err := fetch(c.Context(), issuerID, id)
	if err != nil {
		return h.mapError(c, err)
	}
	c.Set(fiber.HeaderContentType, "application/zip")
	c.Set(fiber.HeaderContentDisposition, `attachment; filename="`+filename+`"`)
	return c.Send(data)
}

func (h *DocumentHandler) mapError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, domain.ErrInvalidDocumentData):
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: err.Error()})
	case errors.Is(err, domain.ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{Code: "NOT_FOUND", Message: "comprobante o emisor no encontrado"})
	case errors.Is(err, domain.ErrForbidden):
		return c.Status(fiber.StatusForbidden).JSON(dto.ErrorResponse{Code: "FORBIDDEN", Message: "acceso denegado al recurso"})
	case errors.Is(err, domain.ErrDuplicate):
		return c.Status(fiber.StatusConflict).JSON(dto.ErrorResponse{Code: "DUPLICATE", Message: "el comprobante ya existe"})
	case errors.Is(err, domain.ErrEncodingFailed):
		return c.Status(fiber.StatusUnprocessableEntity).JSON(dto.ErrorResponse{Code: "ENCODING_FAILED", Message: err.Error()})
	default:
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Code: "INTERNAL", Message: err.Error()})
	}
}
