package billing

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/petflowpe/facturacion/internal/domain"
	"github.com/petflowpe/facturacion/internal/domain/entity"
	"github.com/petflowpe/facturacion/internal/domain/repository"
	domsunat "github.com/petflowpe/facturacion/internal/domain/sunat"
	"github.com/petflowpe/facturacion/pkg/logger"
)

// Gateway orquesta el ciclo de envío de un comprobante:
//
//	DRAFT → ENCODED → TRANSMITTING → {ACCEPTED | REJECTED | AWAITING_TICKET}
//	AWAITING_TICKET → POLLING → {ACCEPTED | REJECTED | AWAITING_TICKET | STILL_PROCESSING}
//
// Toda transición pasa por CompareAndTransition: el estado persistido es la
// única verdad y cualquier worker puede retomar un documento tras un reinicio.
// El documento se codifica una sola vez; los reintentos reenvían el mismo ZIP
// byte a byte.
type Gateway struct {
	docs      repository.DocumentRepository
	attempts  repository.AttemptRepository
	encoder   Encoder
	transport Transport
	retry     RetryPolicy
	log       *logger.Logger
}

// NewGateway construye el gateway con sus colaboradores.
func NewGateway(
	docs repository.DocumentRepository,
	attempts repository.AttemptRepository,
	encoder Encoder,
	transport Transport,
	retry RetryPolicy,
	log *logger.Logger,
) *Gateway {
	return &Gateway{
		docs:      docs,
		attempts:  attempts,
		encoder:   encoder,
		transport: transport,
		retry:     retry,
		log:       log,
	}
}

// Process conduce el documento desde su estado actual tan lejos como sea
// posible en una pasada: codifica si está en DRAFT y transmite si quedó
// ENCODED. Devuelve el documento en el estado alcanzado; los tipos asíncronos
// quedan en AWAITING_TICKET y los completa el reconciliador.
func (g *Gateway) Process(ctx context.Context, doc *entity.FiscalDocument, issuer *entity.Issuer) (*entity.FiscalDocument, error) {
	if doc.State == entity.StateDraft {
		updated, err := g.encode(ctx, doc, issuer)
		if err != nil {
			return updated, err
		}
		doc = updated
	}
	if doc.State == entity.StateEncoded {
		return g.transmit(ctx, doc, issuer, g.retry.MaxSendAttempts)
	}
	return doc, nil
}

// Resume re-entra un documento de la rama de envío con una sola tentativa
// por pasada del reconciliador: STILL_PROCESSING tras agotar presupuesto, o
// ENCODED/TRANSMITTING huérfanos de un worker caído a mitad de transición.
func (g *Gateway) Resume(ctx context.Context, doc *entity.FiscalDocument, issuer *entity.Issuer) (*entity.FiscalDocument, error) {
	switch doc.State {
	case entity.StateStillProcessing:
		ok, err := g.docs.CompareAndTransition(ctx, doc.ID, entity.StateStillProcessing, entity.StateEncoded, repository.TransitionPatch{})
		if err != nil {
			return doc, err
		}
		if !ok {
			return g.reload(ctx, doc.ID)
		}
		doc.State = entity.StateEncoded

	case entity.StateTransmitting:
		// Caída entre la toma y el veredicto: cuenta como fallo de transporte
		// y el mismo ZIP se reenvía tal cual.
		ok, err := g.backToEncoded(ctx, doc, "TRANSPORT", "envío interrumpido por caída del worker")
		if err != nil {
			return doc, err
		}
		if !ok {
			return g.reload(ctx, doc.ID)
		}
		doc.State = entity.StateEncoded

	case entity.StateEncoded:
		// Codificado pero nunca transmitido; listo para enviar.

	default:
		return doc, nil
	}
	return g.transmit(ctx, doc, issuer, 1)
}

// ── DRAFT → ENCODED ───────────────────────────────────────────────────────────

func (g *Gateway) encode(ctx context.Context, doc *entity.FiscalDocument, issuer *entity.Issuer) (*entity.FiscalDocument, error) {
	encoded, err := g.encoder.Encode(ctx, doc, issuer)
	if err != nil {
		// Dato canónico malformado: terminal, no reintentable. El correlativo
		// consumido queda como hueco auditable, nunca se reutiliza.
		g.log.ForDocument(doc.ID, doc.Number()).Error().Err(err).Msg("codificación fallida, comprobante rechazado")
		code, msg := "ENCODING_FAILED", err.Error()
		if _, casErr := g.docs.CompareAndTransition(ctx, doc.ID, entity.StateDraft, entity.StateRejected, repository.TransitionPatch{
			LastErrorCode:    &code,
			LastErrorMessage: &msg,
		}); casErr != nil {
			return doc, casErr
		}
		reloaded, rErr := g.reload(ctx, doc.ID)
		if rErr != nil {
			return doc, errors.Join(err, rErr)
		}
		return reloaded, err
	}

	ok, err := g.docs.CompareAndTransition(ctx, doc.ID, entity.StateDraft, entity.StateEncoded, repository.TransitionPatch{
		Hash:       &encoded.Hash,
		EncodedZip: encoded.Zip,
	})
	if err != nil {
		return doc, err
	}
	if !ok {
		// Otro worker ganó la transición; el estado persistido manda.
		return g.reload(ctx, doc.ID)
	}
	doc.State = entity.StateEncoded
	doc.Hash = encoded.Hash
	doc.EncodedZip = encoded.Zip
	return doc, nil
}

// ── ENCODED → TRANSMITTING → … ───────────────────────────────────────────────

// transmit ejecuta hasta budget intentos de envío. Un fallo transitorio
// devuelve el documento a ENCODED (nunca queda colgado en TRANSMITTING) y se
// reintenta con backoff; agotado el presupuesto queda STILL_PROCESSING para
// seguimiento del operador, jamás se descarta en silencio.
func (g *Gateway) transmit(ctx context.Context, doc *entity.FiscalDocument, issuer *entity.Issuer, budget int) (*entity.FiscalDocument, error) {
	zipName := g.encoder.ZipName(doc, issuer)

	for attempt := 1; attempt <= budget; attempt++ {
		ok, err := g.docs.CompareAndTransition(ctx, doc.ID, entity.StateEncoded, entity.StateTransmitting, repository.TransitionPatch{
			IncrementAttempt: true,
		})
		if err != nil {
			return doc, err
		}
		if !ok {
			return g.reload(ctx, doc.ID)
		}

		result, sendErr := g.transport.Send(ctx, zipName, doc.EncodedZip, doc.TransportMode)

		switch {
		case sendErr == nil && doc.TransportMode == entity.TransportAsync:
			// Aceptado a trámite: guardar ticket y dejar que el poller termine.
			g.recordAttempt(ctx, doc, "send", "pending", "", "ticket "+result.Ticket)
			if _, err := g.docs.CompareAndTransition(ctx, doc.ID, entity.StateTransmitting, entity.StateAwaitingTicket, repository.TransitionPatch{
				Ticket: &result.Ticket,
			}); err != nil {
				return doc, err
			}
			return g.reload(ctx, doc.ID)

		case sendErr == nil:
			// Respuesta síncrona: clasificar el CDR.
			raw, parseErr := g.encoder.ParseCDR(result.CDR)
			if parseErr != nil {
				// CDR ilegible: tratar como pendiente, nunca como aceptación.
				g.recordAttempt(ctx, doc, "send", "pending", "", "CDR ilegible: "+parseErr.Error())
				if retry, err := g.backToEncoded(ctx, doc, "CDR_UNREADABLE", parseErr.Error()); err != nil || !retry {
					return g.finishBudget(ctx, doc, err)
				}
			} else {
				outcome := domsunat.Classify(raw.Code, raw.Description)
				done, updated, err := g.applySyncOutcome(ctx, doc, outcome, result.CDR)
				if err != nil {
					return doc, err
				}
				if done {
					return updated, nil
				}
				doc = updated
			}

		default:
			var fault *domsunat.AuthorityFault
			if errors.As(sendErr, &fault) {
				outcome := domsunat.Classify(fault.Code, fault.Message)
				done, updated, err := g.applySyncOutcome(ctx, doc, outcome, nil)
				if err != nil {
					return doc, err
				}
				if done {
					return updated, nil
				}
				doc = updated
			} else {
				// Fallo de red: el documento vuelve a ENCODED y el mismo ZIP
				// se reenvía tal cual en el siguiente intento.
				g.recordAttempt(ctx, doc, "send", "transport_error", "", sendErr.Error())
				g.log.ForDocument(doc.ID, doc.Number()).Warn().Err(sendErr).Int("attempt", attempt).Msg("fallo de transporte, se reintenta")
				if _, err := g.backToEncoded(ctx, doc, "TRANSPORT", sendErr.Error()); err != nil {
					return doc, err
				}
			}
		}

		if attempt < budget {
			if err := g.sleep(ctx, g.retry.Backoff(attempt)); err != nil {
				return g.reload(ctx, doc.ID)
			}
		}
	}

	return g.finishBudget(ctx, doc, nil)
}

// applySyncOutcome aplica el veredicto clasificado desde TRANSMITTING.
// done=false significa veredicto pendiente: el documento volvió a ENCODED
// y el caller decide si quedan intentos.
func (g *Gateway) applySyncOutcome(ctx context.Context, doc *entity.FiscalDocument, outcome domsunat.Outcome, cdr []byte) (done bool, _ *entity.FiscalDocument, _ error) {
	log := g.log.ForDocument(doc.ID, doc.Number())
	switch outcome.Verdict {
	case domsunat.VerdictAccepted:
		g.recordAttempt(ctx, doc, "send", "accepted", outcome.Code, outcome.Message)
		if _, err := g.docs.CompareAndTransition(ctx, doc.ID, entity.StateTransmitting, entity.StateAccepted, repository.TransitionPatch{
			CDRZip: cdr,
		}); err != nil {
			return false, doc, err
		}
		log.Info().Msg("comprobante aceptado por SUNAT")
		updated, err := g.reload(ctx, doc.ID)
		return true, updated, err

	case domsunat.VerdictRejected:
		g.recordAttempt(ctx, doc, "send", "rejected", outcome.Code, outcome.Message)
		code, msg := outcome.Code, outcome.Message
		if _, err := g.docs.CompareAndTransition(ctx, doc.ID, entity.StateTransmitting, entity.StateRejected, repository.TransitionPatch{
			CDRZip:           cdr,
			LastErrorCode:    &code,
			LastErrorMessage: &msg,
		}); err != nil {
			return false, doc, err
		}
		log.Warn().Str("code", outcome.Code).Msg("comprobante rechazado por SUNAT")
		updated, err := g.reload(ctx, doc.ID)
		return true, updated, err

	default:
		g.recordAttempt(ctx, doc, "send", "pending", outcome.Code, outcome.Message)
		_, err := g.backToEncoded(ctx, doc, outcome.Code, outcome.Message)
		return false, doc, err
	}
}

// backToEncoded revierte TRANSMITTING → ENCODED registrando el último error.
func (g *Gateway) backToEncoded(ctx context.Context, doc *entity.FiscalDocument, code, msg string) (bool, error) {
	ok, err := g.docs.CompareAndTransition(ctx, doc.ID, entity.StateTransmitting, entity.StateEncoded, repository.TransitionPatch{
		LastErrorCode:    &code,
		LastErrorMessage: &msg,
	})
	if err != nil {
		return false, err
	}
	return ok, nil
}

// finishBudget deja el documento STILL_PROCESSING si sigue en ENCODED tras
// agotar el presupuesto de intentos.
func (g *Gateway) finishBudget(ctx context.Context, doc *entity.FiscalDocument, prevErr error) (*entity.FiscalDocument, error) {
	if prevErr != nil {
		return doc, prevErr
	}
	if _, err := g.docs.CompareAndTransition(ctx, doc.ID, entity.StateEncoded, entity.StateStillProcessing, repository.TransitionPatch{}); err != nil {
		return doc, err
	}
	updated, err := g.reload(ctx, doc.ID)
	if err != nil {
		return doc, err
	}
	if updated.State == entity.StateStillProcessing {
		g.log.ForDocument(doc.ID, doc.Number()).Warn().Int("attempts", updated.AttemptCount).
			Msg("presupuesto de envío agotado, requiere seguimiento")
	}
	return updated, nil
}

// ── AWAITING_TICKET → POLLING → … ────────────────────────────────────────────

// Poll consulta el ticket de un documento asíncrono pendiente. Si otro worker
// ya tomó (o terminó) el documento, la operación es un no-op que devuelve el
// estado observado.
func (g *Gateway) Poll(ctx context.Context, doc *entity.FiscalDocument) (*entity.FiscalDocument, error) {
	if doc.Ticket == "" {
		return doc, nil
	}
	from := doc.State
	if from == entity.StatePolling {
		// Toma huérfana de un worker caído a mitad de consulta: reclamarla
		// antes de re-consultar. Si otro worker la soltó primero, el estado
		// observado manda.
		ok, err := g.docs.CompareAndTransition(ctx, doc.ID, entity.StatePolling, entity.StateAwaitingTicket, repository.TransitionPatch{})
		if err != nil {
			return doc, err
		}
		if !ok {
			return g.reload(ctx, doc.ID)
		}
		doc.State = entity.StateAwaitingTicket
		from = entity.StateAwaitingTicket
	}
	if from != entity.StateAwaitingTicket && from != entity.StateStillProcessing {
		return doc, nil
	}

	ok, err := g.docs.CompareAndTransition(ctx, doc.ID, from, entity.StatePolling, repository.TransitionPatch{
		IncrementAttempt: true,
	})
	if err != nil {
		return doc, err
	}
	if !ok {
		return g.reload(ctx, doc.ID)
	}

	log := g.log.ForDocument(doc.ID, doc.Number())
	result, pollErr := g.transport.PollStatus(ctx, doc.Ticket)
	if pollErr != nil {
		var fault *domsunat.AuthorityFault
		if errors.As(pollErr, &fault) {
			outcome := domsunat.Classify(fault.Code, fault.Message)
			if outcome.Verdict == domsunat.VerdictRejected {
				g.recordAttempt(ctx, doc, "poll", "rejected", outcome.Code, outcome.Message)
				code, msg := outcome.Code, outcome.Message
				if _, err := g.docs.CompareAndTransition(ctx, doc.ID, entity.StatePolling, entity.StateRejected, repository.TransitionPatch{
					LastErrorCode:    &code,
					LastErrorMessage: &msg,
				}); err != nil {
					return doc, err
				}
				return g.reload(ctx, doc.ID)
			}
			return g.parkPolling(ctx, doc, outcome.Code, outcome.Message, "pending")
		}
		log.Warn().Err(pollErr).Msg("fallo de transporte consultando ticket")
		return g.parkPolling(ctx, doc, "TRANSPORT", pollErr.Error(), "transport_error")
	}

	if !domsunat.TicketFinished(result.StatusCode) {
		return g.parkPolling(ctx, doc, result.StatusCode, "ticket en proceso", "pending")
	}

	raw, parseErr := g.encoder.ParseCDR(result.CDR)
	if parseErr != nil {
		return g.parkPolling(ctx, doc, "CDR_UNREADABLE", parseErr.Error(), "pending")
	}
	outcome := domsunat.Classify(raw.Code, raw.Description)
	switch outcome.Verdict {
	case domsunat.VerdictAccepted:
		g.recordAttempt(ctx, doc, "poll", "accepted", outcome.Code, outcome.Message)
		if _, err := g.docs.CompareAndTransition(ctx, doc.ID, entity.StatePolling, entity.StateAccepted, repository.TransitionPatch{
			CDRZip: result.CDR,
		}); err != nil {
			return doc, err
		}
		log.Info().Str("ticket", doc.Ticket).Msg("ticket procesado: aceptado")
	case domsunat.VerdictRejected:
		g.recordAttempt(ctx, doc, "poll", "rejected", outcome.Code, outcome.Message)
		code, msg := outcome.Code, outcome.Message
		if _, err := g.docs.CompareAndTransition(ctx, doc.ID, entity.StatePolling, entity.StateRejected, repository.TransitionPatch{
			CDRZip:           result.CDR,
			LastErrorCode:    &code,
			LastErrorMessage: &msg,
		}); err != nil {
			return doc, err
		}
		log.Warn().Str("code", outcome.Code).Msg("ticket procesado: rechazado")
	default:
		return g.parkPolling(ctx, doc, outcome.Code, outcome.Message, "pending")
	}
	return g.reload(ctx, doc.ID)
}

// parkPolling devuelve el documento a AWAITING_TICKET, o a STILL_PROCESSING
// si agotó el presupuesto de consultas.
func (g *Gateway) parkPolling(ctx context.Context, doc *entity.FiscalDocument, code, msg, outcome string) (*entity.FiscalDocument, error) {
	g.recordAttempt(ctx, doc, "poll", outcome, code, msg)
	target := entity.StateAwaitingTicket
	if doc.AttemptCount+1 >= g.retry.MaxPollAttempts {
		target = entity.StateStillProcessing
	}
	if _, err := g.docs.CompareAndTransition(ctx, doc.ID, entity.StatePolling, target, repository.TransitionPatch{
		LastErrorCode:    &code,
		LastErrorMessage: &msg,
	}); err != nil {
		return doc, err
	}
	return g.reload(ctx, doc.ID)
}

// ── helpers ───────────────────────────────────────────────────────────────────

func (g *Gateway) reload(ctx context.Context, id string) (*entity.FiscalDocument, error) {
	doc, err := g.docs.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, domain.ErrNotFound
	}
	return doc, nil
}

// recordAttempt escribe la bitácora de auditoría; un fallo aquí se loguea y
// no interrumpe el pipeline.
func (g *Gateway) recordAttempt(ctx context.Context, doc *entity.FiscalDocument, op, outcome, faultCode, detail string) {
	if g.attempts == nil {
		return
	}
	attempt := &entity.SubmissionAttempt{
		ID:            uuid.New().String(),
		DocumentID:    doc.ID,
		TransportMode: doc.TransportMode,
		Operation:     op,
		Outcome:       outcome,
		FaultCode:     faultCode,
		Detail:        detail,
		AttemptedAt:   time.Now(),
	}
	if err := g.attempts.Record(ctx, attempt); err != nil {
		g.log.Warn().Err(err).Str("document_id", doc.ID).Msg("no se pudo registrar el intento")
	}
}

func (g *Gateway) sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
