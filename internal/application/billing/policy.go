package billing

import (
	"strings"

	"github.com/petflowpe/facturacion/internal/domain/entity"
	pkgsunat "github.com/petflowpe/facturacion/pkg/sunat"
)

// DocumentTypePolicy parametriza el pipeline por tipo de comprobante:
// modo de transporte, prefijo de serie permitido y exigencia de referencia.
// Reemplaza la ramificación por tipo con un objeto de política único.
type DocumentTypePolicy struct {
	Code              string
	Name              string
	TransportMode     string // entity.TransportSync | entity.TransportAsync
	SeriesPrefixes    []string
	RequiresReference bool
	RequiresCustomer  bool
	ReasonCodes       map[string]bool // catálogo 09/10 si exige referencia
}

var documentPolicies = map[string]DocumentTypePolicy{
	pkgsunat.DocTypeFactura: {
		Code: pkgsunat.DocTypeFactura, Name: "Factura",
		TransportMode:  entity.TransportSync,
		SeriesPrefixes: []string{"F"}, RequiresCustomer: true,
	},
	pkgsunat.DocTypeBoleta: {
		Code: pkgsunat.DocTypeBoleta, Name: "Boleta de venta",
		TransportMode:  entity.TransportSync,
		SeriesPrefixes: []string{"B"}, RequiresCustomer: true,
	},
	pkgsunat.DocTypeNotaCredito: {
		Code: pkgsunat.DocTypeNotaCredito, Name: "Nota de crédito",
		TransportMode:  entity.TransportSync,
		SeriesPrefixes: []string{"F", "B"}, RequiresCustomer: true,
		RequiresReference: true, ReasonCodes: pkgsunat.ValidCreditNoteReasonCodes,
	},
	pkgsunat.DocTypeNotaDebito: {
		Code: pkgsunat.DocTypeNotaDebito, Name: "Nota de débito",
		TransportMode:  entity.TransportSync,
		SeriesPrefixes: []string{"F", "B"}, RequiresCustomer: true,
		RequiresReference: true, ReasonCodes: pkgsunat.ValidDebitNoteReasonCodes,
	},
	pkgsunat.DocTypeGuiaRemision: {
		Code: pkgsunat.DocTypeGuiaRemision, Name: "Guía de remisión",
		TransportMode:  entity.TransportAsync,
		SeriesPrefixes: []string{"T"}, RequiresCustomer: true,
	},
	pkgsunat.DocTypeResumenDiario: {
		Code: pkgsunat.DocTypeResumenDiario, Name: "Resumen diario",
		TransportMode:  entity.TransportAsync,
		SeriesPrefixes: []string{"R"},
	},
	pkgsunat.DocTypeBaja: {
		Code: pkgsunat.DocTypeBaja, Name: "Comunicación de baja",
		TransportMode:     entity.TransportAsync,
		SeriesPrefixes:    []string{"R"},
		RequiresReference: true,
	},
}

// PolicyFor devuelve la política del tipo de comprobante.
func PolicyFor(docType string) (DocumentTypePolicy, bool) {
	p, ok := documentPolicies[docType]
	return p, ok
}

// AllowsSeries valida que la serie empiece con un prefijo permitido para el tipo.
func (p DocumentTypePolicy) AllowsSeries(series string) bool {
	if len(series) < 2 {
		return false
	}
	for _, prefix := range p.SeriesPrefixes {
		if strings.HasPrefix(series, prefix) {
			return true
		}
	}
	return false
}
