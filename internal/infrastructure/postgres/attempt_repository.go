package postgres

import (
	"context"
	"fmt"

	"github.com/petflowpe/facturacion/internal/domain/entity"
	"github.com/petflowpe/facturacion/internal/domain/repository"
)

var _ repository.AttemptRepository = (*AttemptRepo)(nil)

// AttemptRepo bitácora de llamadas de transporte sobre PostgreSQL.
type AttemptRepo struct {
	q Querier
}

// NewAttemptRepository construye el adaptador. Pasar pool o tx (Querier).
func NewAttemptRepository(q Querier) *AttemptRepo {
	return &AttemptRepo{q: q}
}

// Record inserta un intento; la tabla es solo-inserción.
func (r *AttemptRepo) Record(ctx context.Context, a *entity.SubmissionAttempt) error {
	query := `
		INSERT INTO submission_attempts
			(id, document_id, transport_mode, operation, outcome, fault_code, detail, attempted_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	_, err := r.q.Exec(ctx, query,
		a.ID, a.DocumentID, a.TransportMode, a.Operation, a.Outcome,
		nullIfEmpty(a.FaultCode), nullIfEmpty(a.Detail), a.AttemptedAt,
	)
	if err != nil {
		return fmt.Errorf("insert intento: %w", err)
	}
	return nil
}

// ListByDocument devuelve los intentos del comprobante en orden cronológico.
func (r *AttemptRepo) ListByDocument(ctx context.Context, documentID string) ([]*entity.SubmissionAttempt, error) {
	query := `
		SELECT id, document_id, transport_mode, operation, outcome,
		       COALESCE(fault_code, ''), COALESCE(detail, ''), attempted_at
		FROM submission_attempts
		WHERE document_id = $1
		ORDER BY attempted_at ASC`
	rows, err := r.q.Query(ctx, query, documentID)
	if err != nil {
		return nil, fmt.Errorf("query intentos: %w", err)
	}
	defer rows.Close()

	var out []*entity.SubmissionAttempt
	for rows.Next() {
		var a entity.SubmissionAttempt
		if err := rows.Scan(
			&a.ID, &a.DocumentID, &a.TransportMode, &a.Operation, &a.Outcome,
			&a.FaultCode, &a.Detail, &a.AttemptedAt,
		); err != nil {
			return nil, fmt.Errorf("scan intento: %w", err)
		}
		out = append(out, &a)
	}
	return out, rows.Err()
}
