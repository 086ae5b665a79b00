// Package billing implementa el pipeline de emisión y envío de comprobantes:
// asignación de correlativo, ensamblado canónico, codificación/firma,
// transmisión a SUNAT y clasificación/persistencia del resultado.
package billing

import (
	"context"
	"math"
	"time"

	"github.com/petflowpe/facturacion/internal/domain/entity"
	domsunat "github.com/petflowpe/facturacion/internal/domain/sunat"
)

// ── Puertos de salida ─────────────────────────────────────────────────────────

// EncodedDocument artefacto producido por el codificador: XML firmado,
// empaquetado en ZIP con el nombre que exige SUNAT, y su digest.
type EncodedDocument struct {
	XML     []byte
	Zip     []byte
	ZipName string
	Hash    string // DigestValue de la firma, para la representación impresa
}

// Encoder colaborador de codificación: del modelo canónico al payload firmado,
// y del sobre de respuesta (CDR) a un resultado estructurado.
// Debe ser determinístico: mismo documento, mismo payload byte a byte.
type Encoder interface {
	// Encode devuelve domain.ErrEncodingFailed (envuelto) si el documento
	// canónico no puede representarse o firmarse: es un fallo permanente.
	Encode(ctx context.Context, doc *entity.FiscalDocument, issuer *entity.Issuer) (*EncodedDocument, error)

	// ParseCDR extrae código, descripción y documento del ZIP de constancia.
	ParseCDR(cdrZip []byte) (*domsunat.RawResponse, error)

	// ZipName nombre de archivo que exige SUNAT, derivable sin recodificar:
	// {RUC}-{tipo}-{serie}-{correlativo}.zip
	ZipName(doc *entity.FiscalDocument, issuer *entity.Issuer) string
}

// SendResult resultado de una llamada de envío al WS SUNAT.
// Exactamente uno de CDR o Ticket viene poblado según el modo de transporte.
type SendResult struct {
	CDR    []byte // sendBill: ZIP de constancia en la misma respuesta
	Ticket string // sendSummary: número de ticket para getStatus
}

// PollResult resultado de una consulta de ticket.
type PollResult struct {
	StatusCode string // 0 | 98 | 99
	CDR        []byte // presente cuando el ticket terminó
}

// Transport cliente del WS SUNAT. Los errores de red se devuelven envueltos en
// domain.ErrTransport; un SOAP Fault del WS se devuelve como
// *sunat.AuthorityFault para que el clasificador decida.
type Transport interface {
	Send(ctx context.Context, zipName string, zipBytes []byte, mode string) (*SendResult, error)
	PollStatus(ctx context.Context, ticket string) (*PollResult, error)
}

// ── Política de reintentos ────────────────────────────────────────────────────

// RetryPolicy reintentos acotados con backoff exponencial con techo,
// aplicados solo a fallos transitorios de transporte.
type RetryPolicy struct {
	MaxSendAttempts int
	MaxPollAttempts int
	BaseBackoff     time.Duration
	MaxBackoff      time.Duration
}

// Backoff devuelve la espera antes del intento attempt (1-based):
// base * 2^(attempt-1), con techo.
func (p RetryPolicy) Backoff(attempt int) time.Duration {
	if attempt <= 1 {
		return p.BaseBackoff
	}
	delay := time.Duration(float64(p.BaseBackoff) * math.Pow(2, float64(attempt-1)))
	if delay > p.MaxBackoff || delay <= 0 {
		return p.MaxBackoff
	}
	return delay
}
