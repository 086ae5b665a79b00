package billing

import (
	"context"
	"fmt"

	"github.com/petflowpe/facturacion/internal/application/dto"
	"github.com/petflowpe/facturacion/internal/domain/entity"
)

// Estados que el reconciliador considera pendientes de resolución. Incluye
// los estados en curso (ENCODED, TRANSMITTING, POLLING): un documento que
// sigue ahí pasada la edad mínima quedó huérfano de un worker caído y debe
// retomarse.
var pendingStates = []string{
	entity.StateEncoded,
	entity.StateTransmitting,
	entity.StateAwaitingTicket,
	entity.StatePolling,
	entity.StateStillProcessing,
}

// ReconcilePending recorre los documentos pendientes y los empuja hacia un
// estado terminal: consulta tickets de la rama asíncrona y reintenta el envío
// de los síncronos varados. La operación es idempotente: dos pasadas
// concurrentes no duplican trabajo porque cada transición es un
// CompareAndTransition y el perdedor observa el estado nuevo y no hace nada.
func (s *Service) ReconcilePending(ctx context.Context) (*dto.ReconcileResult, error) {
	cutoff := s.now().Add(-s.reconcile.MinAge)
	docs, err := s.docs.ListPending(ctx, pendingStates, cutoff, s.reconcile.BatchSize)
	if err != nil {
		return nil, fmt.Errorf("listando pendientes: %w", err)
	}

	result := &dto.ReconcileResult{}
	for _, doc := range docs {
		if ctx.Err() != nil {
			return result, ctx.Err()
		}
		result.Scanned++

		updated, stepErr := s.reconcileOne(ctx, doc)
		if stepErr != nil {
			result.Errors++
			s.log.Warn().Err(stepErr).Str("document_id", doc.ID).Msg("reconciliación fallida para el documento")
			continue
		}
		switch updated.State {
		case entity.StateAccepted:
			result.Accepted++
		case entity.StateRejected:
			result.Rejected++
		default:
			result.Pending++
		}
	}

	if result.Scanned > 0 {
		s.log.Info().
			Int("scanned", result.Scanned).
			Int("accepted", result.Accepted).
			Int("rejected", result.Rejected).
			Int("pending", result.Pending).
			Int("errors", result.Errors).
			Msg("pasada de reconciliación completada")
	}
	return result, nil
}

func (s *Service) reconcileOne(ctx context.Context, doc *entity.FiscalDocument) (*entity.FiscalDocument, error) {
	// Rama asíncrona: hay ticket, falta el veredicto.
	if doc.Ticket != "" {
		return s.gateway.Poll(ctx, doc)
	}

	// Rama síncrona varada, o huérfana de un worker caído antes de obtener
	// ticket: re-entrar con una tentativa por pasada.
	switch doc.State {
	case entity.StateStillProcessing, entity.StateEncoded, entity.StateTransmitting:
		issuer, err := s.issuers.GetByID(ctx, doc.IssuerID)
		if err != nil {
			return doc, fmt.Errorf("consultando emisor: %w", err)
		}
		if issuer == nil {
			return doc, fmt.Errorf("emisor %s no registrado", doc.IssuerID)
		}
		return s.gateway.Resume(ctx, doc, issuer)
	}
	return doc, nil
}
