// Package sunat clasifica las respuestas del WS SUNAT en una taxonomía cerrada.
package sunat

import (
	"fmt"
	"strconv"
	"strings"
)

// Verdict veredicto de una respuesta de SUNAT sobre un comprobante.
type Verdict string

const (
	VerdictAccepted Verdict = "accepted"
	VerdictRejected Verdict = "rejected"
	VerdictPending  Verdict = "pending"
)

// Outcome resultado clasificado de una respuesta o fault de SUNAT.
type Outcome struct {
	Verdict   Verdict
	Code      string
	Message   string
	Retryable bool
}

// RawResponse respuesta estructurada extraída de un CDR o de un SOAP Fault.
type RawResponse struct {
	Code        string // ResponseCode del CDR o faultcode numérico
	Description string
	DocumentID  string // serie-correlativo al que responde el CDR
}

// AuthorityFault error tipado para un SOAP Fault devuelto por SUNAT.
// Se distingue de un error de transporte: el WS respondió, con un código.
type AuthorityFault struct {
	Code    string
	Message string
}

func (e *AuthorityFault) Error() string {
	return fmt.Sprintf("sunat fault [%s]: %s", e.Code, e.Message)
}

// Estados de ticket devueltos por getStatus.
const (
	TicketStatusDone    = "0"  // procesado; el contenido trae el CDR
	TicketStatusPending = "98" // en proceso, volver a consultar
	TicketStatusError   = "99" // procesado con errores; el contenido puede traer CDR de rechazo
)

// Classify mapea un código de respuesta/fault SUNAT al veredicto cerrado.
//
// Rangos publicados por SUNAT:
//
//	0           aceptado
//	0100–1999   excepciones y errores del envío (reintentable / volver a enviar)
//	2000–3999   comprobante rechazado (definitivo, nunca se reintenta)
//	4000+       aceptado con observaciones
//
// Cualquier código no reconocido clasifica como Pending/reintentable, nunca
// como aceptación: sub-clasificar como éxito marcaría como válido un
// comprobante rechazado.
func Classify(code, message string) Outcome {
	normalized := strings.TrimSpace(code)
	// faultcodes llegan a veces con prefijo ("soap-env:Client.0100", "Client.2335")
	if idx := strings.LastIndexByte(normalized, '.'); idx != -1 {
		normalized = normalized[idx+1:]
	}

	n, err := strconv.Atoi(normalized)
	if err != nil {
		return Outcome{Verdict: VerdictPending, Code: code, Message: message, Retryable: true}
	}

	switch {
	case n == 0:
		return Outcome{Verdict: VerdictAccepted, Code: normalized, Message: message}
	case n >= 100 && n <= 1999:
		return Outcome{Verdict: VerdictPending, Code: normalized, Message: message, Retryable: true}
	case n >= 2000 && n <= 3999:
		return Outcome{Verdict: VerdictRejected, Code: normalized, Message: message}
	case n >= 4000:
		// Aceptado con observaciones: fiscalmente válido, se archivan las observaciones.
		return Outcome{Verdict: VerdictAccepted, Code: normalized, Message: message}
	default:
		return Outcome{Verdict: VerdictPending, Code: normalized, Message: message, Retryable: true}
	}
}

// TicketFinished indica si el statusCode de getStatus es final.
// El veredicto real sale del CDR adjunto (Classify); el status por sí solo
// nunca implica aceptación. Cualquier valor desconocido se trata como
// pendiente para volver a consultar.
func TicketFinished(status string) bool {
	switch strings.TrimSpace(status) {
	case TicketStatusDone, TicketStatusError:
		return true
	default:
		return false
	}
}
