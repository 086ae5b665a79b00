package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/petflowpe/facturacion/internal/domain"
	"github.com/petflowpe/facturacion/internal/domain/entity"
	"github.com/petflowpe/facturacion/internal/domain/repository"
)

var _ repository.CorrelativeRepository = (*CorrelativeRepo)(nil)

// CorrelativeRepo asignador de numeración sobre PostgreSQL (usable con pool o tx).
type CorrelativeRepo struct {
	q Querier
}

// NewCorrelativeRepository construye el adaptador. Pasar pool o tx (Querier).
func NewCorrelativeRepository(q Querier) *CorrelativeRepo {
	return &CorrelativeRepo{q: q}
}

// Allocate incrementa y devuelve el contador de la serie en una sola sentencia
// atómica. El upsert serializa a los escritores concurrentes sobre la fila del
// contador: dos llamadas jamás observan el mismo valor, y el incremento queda
// durable antes de devolverse. La primera asignación de una serie devuelve 1.
func (r *CorrelativeRepo) Allocate(ctx context.Context, key entity.CorrelativeKey) (int64, error) {
	query := `
		INSERT INTO correlative_counters (issuer_id, pos_id, doc_type, series, current_value, updated_at)
		VALUES ($1, $2, $3, $4, 1, now())
		ON CONFLICT (issuer_id, pos_id, doc_type, series)
		DO UPDATE SET current_value = correlative_counters.current_value + 1,
		              updated_at    = now()
		RETURNING current_value`
	var value int64
	err := r.q.QueryRow(ctx, query, key.IssuerID, key.PointOfSaleID, key.DocType, key.Series).Scan(&value)
	if err != nil {
		if isSerializationFailure(err) {
			return 0, fmt.Errorf("%w: %v", domain.ErrAllocationConflict, err)
		}
		return 0, fmt.Errorf("%w: allocate correlativo: %v", domain.ErrStoreUnavailable, err)
	}
	return value, nil
}

// Peek devuelve el último valor asignado de la serie, 0 si no existe.
func (r *CorrelativeRepo) Peek(ctx context.Context, key entity.CorrelativeKey) (int64, error) {
	query := `
		SELECT current_value FROM correlative_counters
		WHERE issuer_id = $1 AND pos_id = $2 AND doc_type = $3 AND series = $4`
	var value int64
	err := r.q.QueryRow(ctx, query, key.IssuerID, key.PointOfSaleID, key.DocType, key.Series).Scan(&value)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("peek correlativo: %w", err)
	}
	return value, nil
}
