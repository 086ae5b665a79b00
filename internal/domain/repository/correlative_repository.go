package repository

import (
	"context"

	"github.com/petflowpe/facturacion/internal/domain/entity"
)

// CorrelativeRepository asigna numeración gap-free por serie.
// Es el único camino válido para construir un número de comprobante.
type CorrelativeRepository interface {
	// Allocate devuelve el siguiente correlativo para la clave, estrictamente
	// mayor que todo valor devuelto antes para la misma clave, también bajo
	// concurrencia entre procesos. La primera asignación devuelve 1.
	// Errores: domain.ErrAllocationConflict (transitorio, reintentar) o
	// domain.ErrStoreUnavailable.
	Allocate(ctx context.Context, key entity.CorrelativeKey) (int64, error)

	// Peek devuelve el último valor asignado (0 si la serie no existe aún).
	// Solo lectura, para diagnóstico; nunca debe usarse para numerar.
	Peek(ctx context.Context, key entity.CorrelativeKey) (int64, error)
}
