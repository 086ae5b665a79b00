package sunat_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/petflowpe/facturacion/internal/domain/sunat"
)

// ──────────────────────────────────────────────────────────────────────────────
// El invariante crítico del clasificador: jamás devolver aceptación para un
// código de rechazo o pendiente conocido. Un falso "aceptado" marcaría como
// fiscalmente válido un comprobante que SUNAT rechazó.
// ──────────────────────────────────────────────────────────────────────────────

// Corpus de códigos de rechazo y pendientes reales del WS SUNAT.
var rejectionCodes = []string{
	"2017", // numeración ya ha sido utilizada
	"2324", // el comprobante fue informado previamente como anulado
	"2335", // el documento ya fue presentado anteriormente
	"3038", // RUC del emisor no habido
	"2000", // borde inferior del rango de rechazo
	"3999", // borde superior del rango de rechazo
}

var pendingCodes = []string{
	"0100", // sistema en mantenimiento
	"0130", // servicio no disponible
	"98",   // fuera de todo rango conocido
	"1032", // error de envío del contribuyente, se corrige y reenvía
	"1999", // borde superior del rango reintentable
	"100",  // borde inferior
	"",     // respuesta vacía
	"XYZ",  // código no numérico
	"soap-env:Server", // faultcode no numérico con prefijo
}

func TestClassify_NuncaAceptaRechazosNiPendientes(t *testing.T) {
	for _, code := range append(append([]string{}, rejectionCodes...), pendingCodes...) {
		out := sunat.Classify(code, "mensaje")
		assert.NotEqual(t, sunat.VerdictAccepted, out.Verdict,
			"código %q no debe clasificar como aceptado", code)
	}
}

func TestClassify_Aceptacion(t *testing.T) {
	out := sunat.Classify("0", "La Factura numero F001-1, ha sido aceptada")
	assert.Equal(t, sunat.VerdictAccepted, out.Verdict)
	assert.False(t, out.Retryable)
}

func TestClassify_AceptadoConObservaciones(t *testing.T) {
	out := sunat.Classify("4000", "observación: dirección incompleta")
	assert.Equal(t, sunat.VerdictAccepted, out.Verdict)
}

func TestClassify_Rechazos_NoReintentables(t *testing.T) {
	for _, code := range rejectionCodes {
		out := sunat.Classify(code, "rechazado")
		assert.Equal(t, sunat.VerdictRejected, out.Verdict, code)
		assert.False(t, out.Retryable, "un rechazo nunca es reintentable: %s", code)
	}
}

func TestClassify_Pendientes_Reintentables(t *testing.T) {
	for _, code := range pendingCodes {
		out := sunat.Classify(code, "pendiente")
		assert.Equal(t, sunat.VerdictPending, out.Verdict, code)
		assert.True(t, out.Retryable, code)
	}
}

// TestClassify_FaultcodeConPrefijo los faults SOAP llegan como "Client.2335".
func TestClassify_FaultcodeConPrefijo(t *testing.T) {
	out := sunat.Classify("soap-env:Client.2335", "duplicado")
	assert.Equal(t, sunat.VerdictRejected, out.Verdict)
	assert.Equal(t, "2335", out.Code)
}

func TestTicketFinished(t *testing.T) {
	assert.True(t, sunat.TicketFinished("0"))
	assert.True(t, sunat.TicketFinished("99"))
	assert.False(t, sunat.TicketFinished("98"))
	assert.False(t, sunat.TicketFinished(""))
	assert.False(t, sunat.TicketFinished("42"))
}
