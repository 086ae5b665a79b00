package repository

import (
	"context"
	"time"

	"github.com/petflowpe/facturacion/internal/domain/entity"
)

// TransitionPatch campos que acompañan una transición de estado.
// Los punteros nil y slices vacíos significan "no tocar".
type TransitionPatch struct {
	Ticket           *string
	Hash             *string
	EncodedZip       []byte
	CDRZip           []byte
	LastErrorCode    *string
	LastErrorMessage *string
	IncrementAttempt bool
}

// DocumentRepository es la fuente de verdad del estado de cada comprobante.
// CompareAndTransition es la única vía de mutación tras la creación.
type DocumentRepository interface {
	// Create persiste el documento (estado DRAFT) con sus líneas.
	// Devuelve domain.ErrDuplicate si la tupla (emisor, tipo, serie, correlativo) ya existe.
	Create(ctx context.Context, doc *entity.FiscalDocument) error

	GetByID(ctx context.Context, id string) (*entity.FiscalDocument, error)

	GetByNumber(ctx context.Context, issuerID, docType, series string, correlative int64) (*entity.FiscalDocument, error)

	// ListPending devuelve documentos en alguno de states, con updated_at
	// anterior a olderThan, para el reconciliador. Orden: updated_at asc.
	ListPending(ctx context.Context, states []string, olderThan time.Time, limit int) ([]*entity.FiscalDocument, error)

	// CompareAndTransition mueve el documento de from a to aplicando patch,
	// de forma atómica. Devuelve false (sin error) si el documento ya no está
	// en from: otro worker ganó la transición y el caller debe releer.
	CompareAndTransition(ctx context.Context, id, from, to string, patch TransitionPatch) (bool, error)
}
