package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/petflowpe/facturacion/internal/domain/entity"
)

// SubmitDocumentRequest payload de emisión de un comprobante.
type SubmitDocumentRequest struct {
	DocType       string `json:"doc_type"`       // catálogo 01
	PointOfSaleID string `json:"point_of_sale"`  // ej. "0001"
	Series        string `json:"series"`         // ej. "F001"
	Currency      string `json:"currency"`       // PEN | USD

	Customer  CustomerPayload   `json:"customer"`
	Lines     []LinePayload     `json:"lines"`
	Reference *ReferencePayload `json:"reference,omitempty"` // obligatorio en 07/08/RA
}

// CustomerPayload adquirente del comprobante.
type CustomerPayload struct {
	DocType   string `json:"doc_type"` // catálogo 06
	DocNumber string `json:"doc_number"`
	Name      string `json:"name"`
}

// LinePayload línea de detalle; si TaxRate es cero en una línea gravada se
// aplica la tasa estándar de IGV. Tasas > 1 se interpretan como porcentaje.
type LinePayload struct {
	Description     string          `json:"description"`
	UnitCode        string          `json:"unit_code"`
	Quantity        decimal.Decimal `json:"quantity"`
	UnitPrice       decimal.Decimal `json:"unit_price"`
	AffectationCode string          `json:"affectation_code"` // catálogo 07
	TaxRate         decimal.Decimal `json:"tax_rate,omitempty"`
}

// ReferencePayload referencia al documento afectado (notas y bajas).
type ReferencePayload struct {
	DocType    string `json:"doc_type"`
	Number     string `json:"number"` // serie-correlativo, ej. "F001-123"
	ReasonCode string `json:"reason_code"`
}

// DocumentResponse representación de un comprobante para la API.
type DocumentResponse struct {
	ID            string `json:"id"`
	IssuerID      string `json:"issuer_id"`
	DocType       string `json:"doc_type"`
	Series        string `json:"series"`
	Correlative   int64  `json:"correlative"`
	Number        string `json:"number"`
	Currency      string `json:"currency"`
	IssuedAt      string `json:"issued_at"`
	State         string `json:"state"`
	TransportMode string `json:"transport_mode"`
	Ticket        string `json:"ticket,omitempty"`
	Hash          string `json:"hash,omitempty"`

	TaxableTotal decimal.Decimal `json:"taxable_total"`
	IGVTotal     decimal.Decimal `json:"igv_total"`
	GrandTotal   decimal.Decimal `json:"grand_total"`

	Legends []entity.Legend `json:"legends,omitempty"`

	LastErrorCode    string `json:"last_error_code,omitempty"`
	LastErrorMessage string `json:"last_error_message,omitempty"`
	AttemptCount     int    `json:"attempt_count"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// FromDocument arma la respuesta desde la entidad.
func FromDocument(d *entity.FiscalDocument) *DocumentResponse {
	return &DocumentResponse{
		ID:               d.ID,
		IssuerID:         d.IssuerID,
		DocType:          d.DocType,
		Series:           d.Series,
		Correlative:      d.Correlative,
		Number:           d.Number(),
		Currency:         d.Currency,
		IssuedAt:         d.IssuedAt.Format(time.RFC3339),
		State:            d.State,
		TransportMode:    d.TransportMode,
		Ticket:           d.Ticket,
		Hash:             d.Hash,
		TaxableTotal:     d.TaxableTotal,
		IGVTotal:         d.IGVTotal,
		GrandTotal:       d.GrandTotal,
		Legends:          d.Legends,
		LastErrorCode:    d.LastErrorCode,
		LastErrorMessage: d.LastErrorMessage,
		AttemptCount:     d.AttemptCount,
		CreatedAt:        d.CreatedAt,
		UpdatedAt:        d.UpdatedAt,
	}
}

// AttemptResponse entrada de la bitácora de transporte de un comprobante.
type AttemptResponse struct {
	ID            string    `json:"id"`
	TransportMode string    `json:"transport_mode"`
	Operation     string    `json:"operation"`
	Outcome       string    `json:"outcome"`
	FaultCode     string    `json:"fault_code,omitempty"`
	Detail        string    `json:"detail,omitempty"`
	AttemptedAt   time.Time `json:"attempted_at"`
}

// FromAttempts arma la bitácora para la API.
func FromAttempts(attempts []*entity.SubmissionAttempt) []*AttemptResponse {
	out := make([]*AttemptResponse, 0, len(attempts))
	for _, a := range attempts {
		out = append(out, &AttemptResponse{
			ID:            a.ID,
			TransportMode: a.TransportMode,
			Operation:     a.Operation,
			Outcome:       a.Outcome,
			FaultCode:     a.FaultCode,
			Detail:        a.Detail,
			AttemptedAt:   a.AttemptedAt,
		})
	}
	return out
}

// ReconcileResult resumen de una pasada del reconciliador.
type ReconcileResult struct {
	Scanned   int `json:"scanned"`
	Accepted  int `json:"accepted"`
	Rejected  int `json:"rejected"`
	Pending   int `json:"pending"`
	Errors    int `json:"errors"`
}
