package billing

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/petflowpe/facturacion/internal/domain"
	"github.com/petflowpe/facturacion/internal/domain/entity"
	domsunat "github.com/petflowpe/facturacion/internal/domain/sunat"
)

var testIssuer = &entity.Issuer{
	ID:   "issuer-1",
	RUC:  "20131312955",
	Name: "COMERCIAL ANDINA S.A.C.",
}

func testRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxSendAttempts: 5,
		MaxPollAttempts: 20,
		BaseBackoff:     time.Millisecond,
		MaxBackoff:      4 * time.Millisecond,
	}
}

// newDraftDoc crea y persiste un documento DRAFT listo para el gateway.
func newDraftDoc(t *testing.T, docs *memDocs, mode string, correlative int64) *entity.FiscalDocument {
	t.Helper()
	docType, series := "01", "F001"
	if mode == entity.TransportAsync {
		docType, series = "RC", "RC01"
	}
	doc := &entity.FiscalDocument{
		ID:            uuid.New().String(),
		IssuerID:      testIssuer.ID,
		PointOfSaleID: "0001",
		DocType:       docType,
		Series:        series,
		Correlative:   correlative,
		Currency:      "PEN",
		IssuedAt:      time.Now(),
		TransportMode: mode,
		State:         entity.StateDraft,
	}
	require.NoError(t, docs.Create(context.Background(), doc))
	return doc
}

// assertMonotonic verifica que la historia de estados nunca retrocede de
// rango salvo los ciclos de espera, y que tras un terminal no hay nada más.
func assertMonotonic(t *testing.T, history []string) {
	t.Helper()
	for i := 1; i < len(history); i++ {
		prev, curr := history[i-1], history[i]
		require.False(t, entity.IsTerminalState(prev),
			"transición %s -> %s después de un estado terminal", prev, curr)
		if entity.StateRank(curr) < entity.StateRank(prev) {
			// Único retroceso permitido: volver de un estado en curso al de
			// espera que lo precede (reintento).
			assert.Equal(t, 2, entity.StateRank(prev), "retroceso inválido %s -> %s", prev, curr)
			assert.Equal(t, 1, entity.StateRank(curr), "retroceso inválido %s -> %s", prev, curr)
		}
	}
}

func TestGatewayRechazoSincronoEsTerminalYNoSeReintenta(t *testing.T) {
	docs := newMemDocs()
	attempts := &memAttempts{}
	enc := &fakeEncoder{}
	tr := &fakeTransport{sends: []sendScript{
		{result: &SendResult{CDR: cdrPayload("2017", "Numero de RUC del emisor no existe")}},
	}}
	gw := NewGateway(docs, attempts, enc, tr, testRetryPolicy(), quietLogger())

	doc := newDraftDoc(t, docs, entity.TransportSync, 1)
	final, err := gw.Process(context.Background(), doc, testIssuer)
	require.NoError(t, err)

	assert.Equal(t, entity.StateRejected, final.State)
	assert.Equal(t, "2017", final.LastErrorCode)
	assert.NotEmpty(t, final.CDRZip, "el CDR de rechazo debe archivarse")
	assert.Equal(t, 1, final.AttemptCount, "un rechazo definitivo no se reintenta")

	sends, _ := tr.calls()
	assert.Equal(t, 1, sends)
	assertMonotonic(t, docs.stateHistory(doc.ID))
}

func TestGatewayReintentaTimeoutsYAceptaConUnSoloCodificado(t *testing.T) {
	docs := newMemDocs()
	attempts := &memAttempts{}
	enc := &fakeEncoder{}
	timeout := fmt.Errorf("%w: timeout esperando respuesta", domain.ErrTransport)
	tr := &fakeTransport{sends: []sendScript{
		{err: timeout},
		{err: timeout},
		{err: timeout},
		{result: &SendResult{CDR: cdrPayload("0", "La Factura ha sido aceptada")}},
	}}
	gw := NewGateway(docs, attempts, enc, tr, testRetryPolicy(), quietLogger())

	doc := newDraftDoc(t, docs, entity.TransportSync, 7)
	final, err := gw.Process(context.Background(), doc, testIssuer)
	require.NoError(t, err)

	assert.Equal(t, entity.StateAccepted, final.State)
	assert.Equal(t, 4, final.AttemptCount, "tres timeouts más el envío exitoso")
	assert.Equal(t, 1, enc.encodeCalls(), "el documento se codifica una sola vez")
	assert.NotEmpty(t, final.CDRZip)

	// El mismo artefacto se reenvió tal cual en cada intento.
	sends, _ := tr.calls()
	assert.Equal(t, 4, sends)
	assertMonotonic(t, docs.stateHistory(doc.ID))

	registered, err := attempts.ListByDocument(context.Background(), doc.ID)
	require.NoError(t, err)
	require.Len(t, registered, 4)
	assert.Equal(t, "transport_error", registered[0].Outcome)
	assert.Equal(t, "accepted", registered[3].Outcome)
}

func TestGatewayPresupuestoAgotadoQuedaStillProcessing(t *testing.T) {
	docs := newMemDocs()
	enc := &fakeEncoder{}
	tr := &fakeTransport{sends: []sendScript{
		{err: fmt.Errorf("%w: connection refused", domain.ErrTransport)},
	}}
	gw := NewGateway(docs, &memAttempts{}, enc, tr, testRetryPolicy(), quietLogger())

	doc := newDraftDoc(t, docs, entity.TransportSync, 2)
	final, err := gw.Process(context.Background(), doc, testIssuer)
	require.NoError(t, err)

	assert.Equal(t, entity.StateStillProcessing, final.State, "nunca se descarta en silencio")
	assert.Equal(t, 5, final.AttemptCount)
	sends, _ := tr.calls()
	assert.Equal(t, 5, sends)
	assertMonotonic(t, docs.stateHistory(doc.ID))
}

func TestGatewayFalloDeCodificacionEsTerminal(t *testing.T) {
	docs := newMemDocs()
	enc := &fakeEncoder{failEncode: true}
	tr := &fakeTransport{sends: []sendScript{{result: &SendResult{}}}}
	gw := NewGateway(docs, &memAttempts{}, enc, tr, testRetryPolicy(), quietLogger())

	doc := newDraftDoc(t, docs, entity.TransportSync, 3)
	final, err := gw.Process(context.Background(), doc, testIssuer)
	require.ErrorIs(t, err, domain.ErrEncodingFailed)

	assert.Equal(t, entity.StateRejected, final.State)
	assert.Equal(t, "ENCODING_FAILED", final.LastErrorCode)
	sends, _ := tr.calls()
	assert.Zero(t, sends, "un documento sin codificar jamás se transmite")
}

func TestGatewayRespuestaPendienteReintentaYLuegoAcepta(t *testing.T) {
	docs := newMemDocs()
	enc := &fakeEncoder{}
	tr := &fakeTransport{sends: []sendScript{
		{err: &domsunat.AuthorityFault{Code: "0130", Message: "sistema no disponible"}},
		{result: &SendResult{CDR: cdrPayload("0", "aceptada")}},
	}}
	gw := NewGateway(docs, &memAttempts{}, enc, tr, testRetryPolicy(), quietLogger())

	doc := newDraftDoc(t, docs, entity.TransportSync, 4)
	final, err := gw.Process(context.Background(), doc, testIssuer)
	require.NoError(t, err)

	assert.Equal(t, entity.StateAccepted, final.State)
	assert.Equal(t, 2, final.AttemptCount)
	assertMonotonic(t, docs.stateHistory(doc.ID))
}

func TestGatewayCDRIlegibleNuncaSeInterpretaComoAceptado(t *testing.T) {
	docs := newMemDocs()
	enc := &fakeEncoder{}
	tr := &fakeTransport{sends: []sendScript{
		{result: &SendResult{CDR: []byte("basura que no es un CDR")}},
	}}
	policy := testRetryPolicy()
	policy.MaxSendAttempts = 2
	gw := NewGateway(docs, &memAttempts{}, enc, tr, policy, quietLogger())

	doc := newDraftDoc(t, docs, entity.TransportSync, 5)
	final, err := gw.Process(context.Background(), doc, testIssuer)
	require.NoError(t, err)

	assert.NotEqual(t, entity.StateAccepted, final.State)
	assert.Equal(t, entity.StateStillProcessing, final.State)
	assertMonotonic(t, docs.stateHistory(doc.ID))
}

// ── rama asíncrona ───────────────────────────────────────────────────────────

func TestGatewayAsincronoGuardaTicketYElPollResuelve(t *testing.T) {
	docs := newMemDocs()
	enc := &fakeEncoder{}
	tr := &fakeTransport{
		sends: []sendScript{{result: &SendResult{Ticket: "1620000000001"}}},
		polls: []pollScript{
			{result: &PollResult{StatusCode: domsunat.TicketStatusPending}},
			{result: &PollResult{StatusCode: domsunat.TicketStatusDone, CDR: cdrPayload("0", "resumen procesado")}},
		},
	}
	gw := NewGateway(docs, &memAttempts{}, enc, tr, testRetryPolicy(), quietLogger())
	ctx := context.Background()

	doc := newDraftDoc(t, docs, entity.TransportAsync, 1)
	afterSend, err := gw.Process(ctx, doc, testIssuer)
	require.NoError(t, err)
	require.Equal(t, entity.StateAwaitingTicket, afterSend.State)
	require.Equal(t, "1620000000001", afterSend.Ticket)

	// Primer poll: ticket aún en proceso, vuelve a la espera.
	afterPoll, err := gw.Poll(ctx, afterSend)
	require.NoError(t, err)
	assert.Equal(t, entity.StateAwaitingTicket, afterPoll.State)

	// Segundo poll: ticket terminado, CDR aceptado.
	final, err := gw.Poll(ctx, afterPoll)
	require.NoError(t, err)
	assert.Equal(t, entity.StateAccepted, final.State)
	assert.NotEmpty(t, final.CDRZip)
	assertMonotonic(t, docs.stateHistory(doc.ID))
}

func TestGatewayPollConTicketErroneoRechaza(t *testing.T) {
	docs := newMemDocs()
	enc := &fakeEncoder{}
	tr := &fakeTransport{
		sends: []sendScript{{result: &SendResult{Ticket: "t-99"}}},
		polls: []pollScript{
			{result: &PollResult{StatusCode: domsunat.TicketStatusError, CDR: cdrPayload("2324", "archivo de resumen con errores")}},
		},
	}
	gw := NewGateway(docs, &memAttempts{}, enc, tr, testRetryPolicy(), quietLogger())
	ctx := context.Background()

	doc := newDraftDoc(t, docs, entity.TransportAsync, 2)
	afterSend, err := gw.Process(ctx, doc, testIssuer)
	require.NoError(t, err)

	final, err := gw.Poll(ctx, afterSend)
	require.NoError(t, err)
	assert.Equal(t, entity.StateRejected, final.State)
	assert.Equal(t, "2324", final.LastErrorCode)
	assert.NotEmpty(t, final.CDRZip)
	assertMonotonic(t, docs.stateHistory(doc.ID))
}

func TestGatewayPollSobreDocumentoTerminalEsNoOp(t *testing.T) {
	docs := newMemDocs()
	enc := &fakeEncoder{}
	tr := &fakeTransport{
		sends: []sendScript{{result: &SendResult{Ticket: "t-1"}}},
		polls: []pollScript{
			{result: &PollResult{StatusCode: domsunat.TicketStatusDone, CDR: cdrPayload("0", "ok")}},
		},
	}
	gw := NewGateway(docs, &memAttempts{}, enc, tr, testRetryPolicy(), quietLogger())
	ctx := context.Background()

	doc := newDraftDoc(t, docs, entity.TransportAsync, 3)
	afterSend, err := gw.Process(ctx, doc, testIssuer)
	require.NoError(t, err)

	final, err := gw.Poll(ctx, afterSend)
	require.NoError(t, err)
	require.Equal(t, entity.StateAccepted, final.State)

	// Un segundo poll sobre el terminal no toca nada ni llama al transporte.
	again, err := gw.Poll(ctx, final)
	require.NoError(t, err)
	assert.Equal(t, entity.StateAccepted, again.State)
	_, polls := tr.calls()
	assert.Equal(t, 1, polls)
}
