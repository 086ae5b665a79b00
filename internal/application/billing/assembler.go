package billing

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/petflowpe/facturacion/internal/application/dto"
	"github.com/petflowpe/facturacion/internal/domain"
	"github.com/petflowpe/facturacion/internal/domain/entity"
	pkgsunat "github.com/petflowpe/facturacion/pkg/sunat"
)

// Tasa estándar de IGV vigente.
var standardIGVRate = decimal.NewFromFloat(0.18)

// ValidateInput valida el payload ANTES de asignar correlativo, para no
// desperdiciar numeración en documentos que nunca podrán ser válidos.
// Todo error es domain.ErrInvalidDocumentData envuelto con el detalle.
func ValidateInput(policy DocumentTypePolicy, in dto.SubmitDocumentRequest) error {
	invalid := func(format string, args ...any) error {
		return fmt.Errorf("%w: %s", domain.ErrInvalidDocumentData, fmt.Sprintf(format, args...))
	}

	if !policy.AllowsSeries(in.Series) {
		return invalid("serie %q no válida para tipo %s", in.Series, policy.Code)
	}
	if in.PointOfSaleID == "" {
		return invalid("punto de venta requerido")
	}
	if !pkgsunat.ValidCurrencyCodes[in.Currency] {
		return invalid("moneda %q no soportada", in.Currency)
	}
	if len(in.Lines) == 0 {
		return invalid("el comprobante no tiene líneas")
	}
	if policy.RequiresCustomer {
		if !pkgsunat.ValidIdentityDocCodes[in.Customer.DocType] {
			return invalid("tipo de documento de identidad %q desconocido", in.Customer.DocType)
		}
		if in.Customer.DocNumber == "" || in.Customer.Name == "" {
			return invalid("adquirente incompleto")
		}
		// Las facturas exigen adquirente con RUC válido.
		if policy.Code == pkgsunat.DocTypeFactura {
			if in.Customer.DocType != pkgsunat.IdentDocRUC {
				return invalid("una factura exige adquirente con RUC")
			}
			if err := pkgsunat.ValidateRUC(in.Customer.DocNumber); err != nil {
				return invalid("%v", err)
			}
		}
	}
	if policy.RequiresReference {
		if in.Reference == nil || in.Reference.DocType == "" || in.Reference.Number == "" {
			return invalid("tipo %s exige referencia al documento afectado", policy.Code)
		}
		if policy.ReasonCodes != nil && !policy.ReasonCodes[in.Reference.ReasonCode] {
			return invalid("motivo %q no válido para tipo %s", in.Reference.ReasonCode, policy.Code)
		}
	}

	for i, line := range in.Lines {
		if line.Description == "" {
			return invalid("línea %d sin descripción", i+1)
		}
		if !line.Quantity.IsPositive() {
			return invalid("línea %d con cantidad no positiva", i+1)
		}
		if line.UnitPrice.IsNegative() {
			return invalid("línea %d con precio negativo", i+1)
		}
		if line.UnitCode != "" && !pkgsunat.ValidUnitCodes[line.UnitCode] {
			return invalid("línea %d con unidad %q desconocida", i+1, line.UnitCode)
		}
		if _, ok := pkgsunat.AffectationFor(line.AffectationCode); !ok {
			return invalid("línea %d con código de afectación %q desconocido", i+1, line.AffectationCode)
		}
	}
	return nil
}

// Assemble construye el comprobante canónico a partir del payload validado y
// el correlativo asignado. Es una función pura y determinística: mismos
// argumentos, mismo documento: necesario para que una re-ejecución tras un
// crash reproduzca un payload idéntico para re-firma y re-envío.
// El ID de almacenamiento y los IDs de línea los asigna el caller.
func Assemble(policy DocumentTypePolicy, issuerID string, in dto.SubmitDocumentRequest, correlative int64, issuedAt time.Time) (*entity.FiscalDocument, error) {
	if correlative <= 0 {
		return nil, fmt.Errorf("%w: correlativo no asignado", domain.ErrInvalidDocumentData)
	}

	doc := &entity.FiscalDocument{
		IssuerID:          issuerID,
		PointOfSaleID:     in.PointOfSaleID,
		DocType:           policy.Code,
		Series:            in.Series,
		Correlative:       correlative,
		CustomerDocType:   in.Customer.DocType,
		CustomerDocNumber: in.Customer.DocNumber,
		CustomerName:      in.Customer.Name,
		Currency:          in.Currency,
		IssuedAt:          issuedAt,
		TransportMode:     policy.TransportMode,
		State:             entity.StateDraft,
		TaxableTotal:      decimal.Zero,
		ExemptTotal:       decimal.Zero,
		UnaffectedTotal:   decimal.Zero,
		ExportTotal:       decimal.Zero,
		FreeTotal:         decimal.Zero,
		IGVTotal:          decimal.Zero,
		GrandTotal:        decimal.Zero,
	}
	if in.Reference != nil {
		doc.RefDocType = in.Reference.DocType
		doc.RefNumber = in.Reference.Number
		doc.RefReason = in.Reference.ReasonCode
	}

	hasFreeLine := false
	for _, l := range in.Lines {
		aff, ok := pkgsunat.AffectationFor(l.AffectationCode)
		if !ok {
			return nil, fmt.Errorf("%w: código de afectación %q desconocido", domain.ErrInvalidDocumentData, l.AffectationCode)
		}

		base := l.Quantity.Mul(l.UnitPrice).Round(2)
		line := &entity.DocumentLine{
			Description:     l.Description,
			UnitCode:        unitOrDefault(l.UnitCode),
			Quantity:        l.Quantity,
			UnitPrice:       l.UnitPrice,
			AffectationCode: l.AffectationCode,
			TaxRate:         decimal.Zero,
			TaxBase:         base,
			IGVAmount:       decimal.Zero,
			LineTotal:       decimal.Zero,
		}

		switch {
		case !aff.Onerosa:
			// Operación gratuita: valor referencial, no suma al total a pagar.
			hasFreeLine = true
			doc.FreeTotal = doc.FreeTotal.Add(base)
		case aff.TaxedAt:
			rate := normalizeRate(l.TaxRate)
			igv := base.Mul(rate).Round(2)
			line.TaxRate = rate
			line.IGVAmount = igv
			line.LineTotal = base.Add(igv)
			doc.TaxableTotal = doc.TaxableTotal.Add(base)
			doc.IGVTotal = doc.IGVTotal.Add(igv)
		default:
			line.LineTotal = base
			switch aff.Bucket {
			case pkgsunat.AffectationExempt:
				doc.ExemptTotal = doc.ExemptTotal.Add(base)
			case pkgsunat.AffectationUnaffected:
				doc.UnaffectedTotal = doc.UnaffectedTotal.Add(base)
			case pkgsunat.AffectationExport:
				doc.ExportTotal = doc.ExportTotal.Add(base)
			}
		}
		doc.Lines = append(doc.Lines, line)
	}

	doc.GrandTotal = doc.TaxableTotal.
		Add(doc.IGVTotal).
		Add(doc.ExemptTotal).
		Add(doc.UnaffectedTotal).
		Add(doc.ExportTotal)

	// Leyendas (catálogo 52): monto en letras siempre; 2006 si hay gratuitas.
	doc.Legends = []entity.Legend{{
		Code:  pkgsunat.LegendAmountInWords,
		Value: pkgsunat.AmountInWords(doc.GrandTotal, doc.Currency),
	}}
	if hasFreeLine {
		doc.Legends = append(doc.Legends, entity.Legend{
			Code:  pkgsunat.LegendFreeTransfer,
			Value: pkgsunat.LegendFreeTransferText,
		})
	}

	return doc, nil
}

// normalizeRate interpreta tasas > 1 como porcentaje (18 -> 0.18) y
// tasas cero como la tasa estándar de IGV.
func normalizeRate(rate decimal.Decimal) decimal.Decimal {
	if rate.IsZero() {
		return standardIGVRate
	}
	if rate.GreaterThan(decimal.NewFromInt(1)) {
		return rate.Div(decimal.NewFromInt(100))
	}
	return rate
}

func unitOrDefault(code string) string {
	if code == "" {
		return pkgsunat.UnitUnidad
	}
	return code
}
