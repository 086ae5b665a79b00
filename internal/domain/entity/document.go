package entity

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Estados del ciclo de vida de un comprobante en el pipeline de envío.
// Las transiciones solo avanzan; ACCEPTED y REJECTED son terminales.
const (
	StateDraft           = "DRAFT"            // creado por el ensamblador, numeración asignada
	StateEncoded         = "ENCODED"          // XML firmado y ZIP generado (artefacto inmutable)
	StateTransmitting    = "TRANSMITTING"     // llamada al WS SUNAT en curso
	StateAwaitingTicket  = "AWAITING_TICKET"  // envío asíncrono aceptado a trámite, ticket almacenado
	StatePolling         = "POLLING"          // consulta de ticket en curso
	StateStillProcessing = "STILL_PROCESSING" // presupuesto de reintentos agotado; visible al operador
	StateAccepted        = "ACCEPTED"         // aceptado por SUNAT, CDR archivado
	StateRejected        = "REJECTED"         // rechazado de forma definitiva
)

// Modos de transporte hacia SUNAT.
const (
	TransportSync  = "sync"  // sendBill: respuesta (CDR) en la misma llamada
	TransportAsync = "async" // sendSummary: devuelve ticket, se consulta con getStatus
)

// stateRank orden parcial de estados para detectar regresiones.
// STILL_PROCESSING comparte rango con los estados de espera: se puede volver
// de él a ENCODED/POLLING (re-entrada del reconciliador), nunca desde un terminal.
var stateRank = map[string]int{
	StateDraft:           0,
	StateEncoded:         1,
	StateTransmitting:    2,
	StateAwaitingTicket:  2,
	StatePolling:         2,
	StateStillProcessing: 2,
	StateAccepted:        3,
	StateRejected:        3,
}

// IsTerminalState indica si el estado es terminal (el documento ya es inmutable).
func IsTerminalState(s string) bool {
	return s == StateAccepted || s == StateRejected
}

// StateRank devuelve el rango de avance del estado (-1 si es desconocido).
func StateRank(s string) int {
	if r, ok := stateRank[s]; ok {
		return r
	}
	return -1
}

// FiscalDocument es el comprobante fiscal canónico y su estado de envío.
// La tupla (IssuerID, DocType, Series, Correlative) es única e inmutable.
type FiscalDocument struct {
	ID            string
	IssuerID      string
	PointOfSaleID string
	DocType       string // catálogo 01: 01, 03, 07, 08, 09, RC, RA
	Series        string // ej. F001, B001, T001
	Correlative   int64  // estrictamente creciente por (emisor, punto de venta, tipo, serie)

	CustomerDocType   string // catálogo 06: 1=DNI, 6=RUC, ...
	CustomerDocNumber string
	CustomerName      string

	Currency string
	IssuedAt time.Time

	// Referencia al documento afectado (notas de crédito/débito, bajas).
	RefDocType string
	RefNumber  string // serie-correlativo del documento afectado
	RefReason  string // catálogo 09/10

	// Totales calculados por el ensamblador (inmutables tras DRAFT).
	TaxableTotal    decimal.Decimal // base gravada
	ExemptTotal     decimal.Decimal // base exonerada
	UnaffectedTotal decimal.Decimal // base inafecta
	ExportTotal     decimal.Decimal // base de exportación
	FreeTotal       decimal.Decimal // valor referencial de operaciones gratuitas
	IGVTotal        decimal.Decimal
	GrandTotal      decimal.Decimal

	Legends []Legend // catálogo 52, calculadas determinísticamente

	// Estado de envío.
	TransportMode    string
	State            string
	Ticket           string // solo async, tras sendSummary
	Hash             string // DigestValue del XML firmado (representación impresa / QR)
	EncodedZip       []byte // artefacto inmutable: el mismo ZIP se reenvía en cada reintento
	CDRZip           []byte // constancia de recepción archivada
	LastErrorCode    string
	LastErrorMessage string
	AttemptCount     int

	CreatedAt time.Time
	UpdatedAt time.Time

	Lines []*DocumentLine
}

// Number devuelve el identificador legible serie-correlativo (ej. "F001-1").
func (d *FiscalDocument) Number() string {
	return fmt.Sprintf("%s-%d", d.Series, d.Correlative)
}

// DocumentLine es una línea del comprobante con su afectación e IGV calculados.
type DocumentLine struct {
	ID              string
	DocumentID      string
	Description     string
	UnitCode        string // catálogo 03
	Quantity        decimal.Decimal
	UnitPrice       decimal.Decimal
	AffectationCode string // catálogo 07
	TaxRate         decimal.Decimal // fracción (0.18), no porcentaje
	TaxBase         decimal.Decimal
	IGVAmount       decimal.Decimal
	LineTotal       decimal.Decimal
}

// Legend leyenda del catálogo 52 adjunta al comprobante.
type Legend struct {
	Code  string `json:"code"`
	Value string `json:"value"`
}
