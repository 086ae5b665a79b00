package repository

import (
	"context"

	"github.com/petflowpe/facturacion/internal/domain/entity"
)

// AttemptRepository bitácora de llamadas de transporte (auditoría).
// Un fallo al registrar un intento no debe abortar el pipeline.
type AttemptRepository interface {
	Record(ctx context.Context, attempt *entity.SubmissionAttempt) error
	ListByDocument(ctx context.Context, documentID string) ([]*entity.SubmissionAttempt, error)
}
