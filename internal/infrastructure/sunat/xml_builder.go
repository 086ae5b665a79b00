package sunat

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/petflowpe/facturacion/internal/domain/entity"
	pkgsunat "github.com/petflowpe/facturacion/pkg/sunat"
)

// Namespaces oficiales UBL 2.1 y SUNAT.
const (
	NsInvoice    = "urn:oasis:names:specification:ubl:schema:xsd:Invoice-2"
	NsCreditNote = "urn:oasis:names:specification:ubl:schema:xsd:CreditNote-2"
	NsDebitNote  = "urn:oasis:names:specification:ubl:schema:xsd:DebitNote-2"
	NsDespatch   = "urn:oasis:names:specification:ubl:schema:xsd:DespatchAdvice-2"
	// Resumen diario y comunicación de baja (esquemas propios de SUNAT)
	NsSummary = "urn:sunat:names:specification:ubl:peru:schema:xsd:SummaryDocuments-1"
	NsVoided  = "urn:sunat:names:specification:ubl:peru:schema:xsd:VoidedDocuments-1"

	NsCac = "urn:oasis:names:specification:ubl:schema:xsd:CommonAggregateComponents-2"
	NsCbc = "urn:oasis:names:specification:ubl:schema:xsd:CommonBasicComponents-2"
	NsExt = "urn:oasis:names:specification:ubl:schema:xsd:CommonExtensionComponents-2"
	NsSac = "urn:sunat:names:specification:ubl:peru:schema:xsd:SunatAggregateComponents-1"
	NsDs  = "http://www.w3.org/2000/09/xmldsig#"

	// Catálogo 51: código de tipo de operación para venta interna.
	operationTypeVentaInterna = "0101"
	// Catálogo 05: códigos de tributo.
	taxSchemeIGV         = "1000"
	taxSchemeIGVName     = "IGV"
	taxSchemeGratuito    = "9996"
	taxSchemeExportacion = "9995"
	taxSchemeExonerado   = "9997"
	taxSchemeInafecto    = "9998"
)

// XMLBuilderService construye el XML UBL 2.1 del comprobante (sin firma).
// La firma se inyecta después en el ext:ExtensionContent que el builder deja
// vacío como primer hijo del documento.
type XMLBuilderService struct{}

// NewXMLBuilderService crea el servicio.
func NewXMLBuilderService() *XMLBuilderService {
	return &XMLBuilderService{}
}

// Build genera el []byte del documento UBL según el tipo de comprobante.
// Es determinístico: el mismo BuildContext produce los mismos bytes.
func (s *XMLBuilderService) Build(ctx *BuildContext) ([]byte, error) {
	if ctx == nil || ctx.Doc == nil || ctx.Issuer == nil {
		return nil, fmt.Errorf("sunat: faltan documento o emisor en el contexto")
	}
	switch ctx.Doc.DocType {
	case pkgsunat.DocTypeFactura, pkgsunat.DocTypeBoleta:
		return s.buildInvoice(ctx, "Invoice", NsInvoice)
	case pkgsunat.DocTypeNotaCredito:
		return s.buildInvoice(ctx, "CreditNote", NsCreditNote)
	case pkgsunat.DocTypeNotaDebito:
		return s.buildInvoice(ctx, "DebitNote", NsDebitNote)
	case pkgsunat.DocTypeGuiaRemision:
		return s.buildDespatch(ctx)
	case pkgsunat.DocTypeResumenDiario:
		return s.buildSummary(ctx)
	case pkgsunat.DocTypeBaja:
		return s.buildVoided(ctx)
	default:
		return nil, fmt.Errorf("sunat: tipo de documento %q sin representación UBL", ctx.Doc.DocType)
	}
}

// buildInvoice genera Invoice, CreditNote o DebitNote (comparten estructura).
func (s *XMLBuilderService) buildInvoice(ctx *BuildContext, rootLocal, rootNS string) ([]byte, error) {
	doc := ctx.Doc
	var buf bytes.Buffer
	enc := xml.NewEncoder(&buf)
	enc.Indent("", "  ")

	root := xml.StartElement{
		Name: xml.Name{Local: rootLocal},
		Attr: []xml.Attr{
			{Name: xml.Name{Local: "xmlns"}, Value: rootNS},
			{Name: xml.Name{Local: "xmlns:cac"}, Value: NsCac},
			{Name: xml.Name{Local: "xmlns:cbc"}, Value: NsCbc},
			{Name: xml.Name{Local: "xmlns:ds"}, Value: NsDs},
			{Name: xml.Name{Local: "xmlns:ext"}, Value: NsExt},
		},
	}
	if err := enc.EncodeToken(root); err != nil {
		return nil, err
	}

	// ext:UBLExtensions siempre como primer hijo: el firmador inyecta
	// ds:Signature en el ExtensionContent vacío.
	writeSignatureExtension(enc)

	writeCbc(enc, "UBLVersionID", "2.1")
	writeCbc(enc, "CustomizationID", "2.0")
	writeCbc(enc, "ID", doc.Number())
	writeCbc(enc, "IssueDate", doc.IssuedAt.Format("2006-01-02"))
	writeCbc(enc, "IssueTime", doc.IssuedAt.Format("15:04:05"))

	switch rootLocal {
	case "Invoice":
		writeCbcWithAttr(enc, "InvoiceTypeCode", doc.DocType, "listID", operationTypeVentaInterna)
	case "CreditNote", "DebitNote":
		// El tipo va en DiscrepancyResponse, no en TypeCode.
	}

	// Leyendas (catálogo 52) como cbc:Note.
	for _, legend := range doc.Legends {
		writeCbcWithAttr(enc, "Note", legend.Value, "languageLocaleID", legend.Code)
	}
	writeCbc(enc, "DocumentCurrencyCode", doc.Currency)
	writeCbc(enc, "LineCountNumeric", strconv.Itoa(len(doc.Lines)))

	// Notas: motivo y referencia al documento afectado.
	if rootLocal == "CreditNote" || rootLocal == "DebitNote" {
		writeDiscrepancyResponse(enc, doc)
		writeBillingReference(enc, doc)
	}

	writeSupplierParty(enc, ctx.Issuer)
	writeCustomerParty(enc, doc)
	writeTaxTotal(enc, doc)
	writeMonetaryTotal(enc, doc, rootLocal)

	lineLocal := rootLocal + "Line"
	if rootLocal == "Invoice" {
		lineLocal = "InvoiceLine"
	}
	for i, line := range doc.Lines {
		writeDocumentLine(enc, lineLocal, i+1, line, doc.Currency)
	}

	if err := enc.EncodeToken(root.End()); err != nil {
		return nil, err
	}
	if err := enc.Flush(); err != nil {
		return nil, err
	}
	return append([]byte(xml.Header), buf.Bytes()...), nil
}

// buildDespatch genera la guía de remisión electrónica (DespatchAdvice).
func (s *XMLBuilderService) buildDespatch(ctx *BuildContext) ([]byte, error) {
	doc := ctx.Doc
	var buf bytes.Buffer
	enc := xml.NewEncoder(&buf)
	enc.Indent("", "  ")

	root := xml.StartElement{
		Name: xml.Name{Local: "DespatchAdvice"},
		Attr: []xml.Attr{
			{Name: xml.Name{Local: "xmlns"}, Value: NsDespatch},
			{Name: xml.Name{Local: "xmlns:cac"}, Value: NsCac},
			{Name: xml.Name{Local: "xmlns:cbc"}, Value: NsCbc},
			{Name: xml.Name{Local: "xmlns:ds"}, Value: NsDs},
			{Name: xml.Name{Local: "xmlns:ext"}, Value: NsExt},
		},
	}
	if err := enc.EncodeToken(root); err != nil {
		return nil, err
	}
	writeSignatureExtension(enc)

	writeCbc(enc, "UBLVersionID", "2.1")
	writeCbc(enc, "CustomizationID", "2.0")
	writeCbc(enc, "ID", doc.Number())
	writeCbc(enc, "IssueDate", doc.IssuedAt.Format("2006-01-02"))
	writeCbc(enc, "IssueTime", doc.IssuedAt.Format("15:04:05"))
	// "09": guía de remisión remitente.
	writeCbc(enc, "DespatchAdviceTypeCode", doc.DocType)

	_ = enc.EncodeToken(xml.StartElement{Name: xml.Name{Local: "cac:DespatchSupplierParty"}})
	writeCbcWithAttr(enc, "CustomerAssignedAccountID", ctx.Issuer.RUC, "schemeID", pkgsunat.IdentDocRUC)
	_ = enc.EncodeToken(xml.StartElement{Name: xml.Name{Local: "cac:Party"}})
	_ = enc.EncodeToken(xml.StartElement{Name: xml.Name{Local: "cac:PartyLegalEntity"}})
	writeCbc(enc, "RegistrationName", ctx.Issuer.Name)
	_ = enc.EncodeToken(xml.EndElement{Name: xml.Name{Local: "cac:PartyLegalEntity"}})
	_ = enc.EncodeToken(xml.EndElement{Name: xml.Name{Local: "cac:Party"}})
	_ = enc.EncodeToken(xml.EndElement{Name: xml.Name{Local: "cac:DespatchSupplierParty"}})

	_ = enc.EncodeToken(xml.StartElement{Name: xml.Name{Local: "cac:DeliveryCustomerParty"}})
	writeCbcWithAttr(enc, "CustomerAssignedAccountID", doc.CustomerDocNumber, "schemeID", doc.CustomerDocType)
	_ = enc.EncodeToken(xml.StartElement{Name: xml.Name{Local: "cac:Party"}})
	_ = enc.EncodeToken(xml.StartElement{Name: xml.Name{Local: "cac:PartyLegalEntity"}})
	writeCbc(enc, "RegistrationName", doc.CustomerName)
	_ = enc.EncodeToken(xml.EndElement{Name: xml.Name{Local: "cac:PartyLegalEntity"}})
	_ = enc.EncodeToken(xml.EndElement{Name: xml.Name{Local: "cac:Party"}})
	_ = enc.EncodeToken(xml.EndElement{Name: xml.Name{Local: "cac:DeliveryCustomerParty"}})

	for i, line := range doc.Lines {
		_ = enc.EncodeToken(xml.StartElement{Name: xml.Name{Local: "cac:DespatchLine"}})
		writeCbc(enc, "ID", strconv.Itoa(i+1))
		writeCbcWithAttr(enc, "DeliveredQuantity", line.Quantity.String(), "unitCode", line.UnitCode)
		_ = enc.EncodeToken(xml.StartElement{Name: xml.Name{Local: "cac:Item"}})
		writeCbc(enc, "Description", line.Description)
		_ = enc.EncodeToken(xml.EndElement{Name: xml.Name{Local: "cac:Item"}})
		_ = enc.EncodeToken(xml.EndElement{Name: xml.Name{Local: "cac:DespatchLine"}})
	}

	if err := enc.EncodeToken(root.End()); err != nil {
		return nil, err
	}
	if err := enc.Flush(); err != nil {
		return nil, err
	}
	return append([]byte(xml.Header), buf.Bytes()...), nil
}

// ── resumen diario y comunicación de baja ────────────────────────────────────

func (s *XMLBuilderService) buildSummary(ctx *BuildContext) ([]byte, error) {
	doc := ctx.Doc
	var buf bytes.Buffer
	enc := xml.NewEncoder(&buf)
	enc.Indent("", "  ")

	root := xml.StartElement{
		Name: xml.Name{Local: "SummaryDocuments"},
		Attr: []xml.Attr{
			{Name: xml.Name{Local: "xmlns"}, Value: NsSummary},
			{Name: xml.Name{Local: "xmlns:cac"}, Value: NsCac},
			{Name: xml.Name{Local: "xmlns:cbc"}, Value: NsCbc},
			{Name: xml.Name{Local: "xmlns:ds"}, Value: NsDs},
			{Name: xml.Name{Local: "xmlns:ext"}, Value: NsExt},
			{Name: xml.Name{Local: "xmlns:sac"}, Value: NsSac},
		},
	}
	if err := enc.EncodeToken(root); err != nil {
		return nil, err
	}
	writeSignatureExtension(enc)

	writeCbc(enc, "UBLVersionID", "2.0")
	writeCbc(enc, "CustomizationID", "1.1")
	writeCbc(enc, "ID", doc.Number())
	writeCbc(enc, "ReferenceDate", doc.IssuedAt.Format("2006-01-02"))
	writeCbc(enc, "IssueDate", doc.IssuedAt.Format("2006-01-02"))
	writeAccountingParty(enc, "AccountingSupplierParty", ctx.Issuer.RUC, "6", ctx.Issuer.Name)

	for i, line := range doc.Lines {
		_ = enc.EncodeToken(xml.StartElement{Name: xml.Name{Local: "sac:SummaryDocumentsLine"}})
		writeCbc(enc, "LineID", strconv.Itoa(i+1))
		writeCbc(enc, "DocumentTypeCode", pkgsunat.DocTypeBoleta)
		writeCbc(enc, "ID", line.Description)
		writeCbcAmount(enc, "TotalAmount", formatDecimal(line.LineTotal), doc.Currency)
		_ = enc.EncodeToken(xml.EndElement{Name: xml.Name{Local: "sac:SummaryDocumentsLine"}})
	}

	if err := enc.EncodeToken(root.End()); err != nil {
		return nil, err
	}
	if err := enc.Flush(); err != nil {
		return nil, err
	}
	return append([]byte(xml.Header), buf.Bytes()...), nil
}

func (s *XMLBuilderService) buildVoided(ctx *BuildContext) ([]byte, error) {
	doc := ctx.Doc
	if doc.RefDocType == "" || doc.RefNumber == "" {
		return nil, fmt.Errorf("sunat: la comunicación de baja exige referencia al documento a anular")
	}
	var buf bytes.Buffer
	enc := xml.NewEncoder(&buf)
	enc.Indent("", "  ")

	root := xml.StartElement{
		Name: xml.Name{Local: "VoidedDocuments"},
		Attr: []xml.Attr{
			{Name: xml.Name{Local: "xmlns"}, Value: NsVoided},
			{Name: xml.Name{Local: "xmlns:cac"}, Value: NsCac},
			{Name: xml.Name{Local: "xmlns:cbc"}, Value: NsCbc},
			{Name: xml.Name{Local: "xmlns:ds"}, Value: NsDs},
			{Name: xml.Name{Local: "xmlns:ext"}, Value: NsExt},
			{Name: xml.Name{Local: "xmlns:sac"}, Value: NsSac},
		},
	}
	if err := enc.EncodeToken(root); err != nil {
		return nil, err
	}
	writeSignatureExtension(enc)

	writeCbc(enc, "UBLVersionID", "2.0")
	writeCbc(enc, "CustomizationID", "1.0")
	writeCbc(enc, "ID", doc.Number())
	writeCbc(enc, "ReferenceDate", doc.IssuedAt.Format("2006-01-02"))
	writeCbc(enc, "IssueDate", doc.IssuedAt.Format("2006-01-02"))
	writeAccountingParty(enc, "AccountingSupplierParty", ctx.Issuer.RUC, "6", ctx.Issuer.Name)

	series, number := splitNumber(doc.RefNumber)
	_ = enc.EncodeToken(xml.StartElement{Name: xml.Name{Local: "sac:VoidedDocumentsLine"}})
	writeCbc(enc, "LineID", "1")
	writeCbc(enc, "DocumentTypeCode", doc.RefDocType)
	writeCbc(enc, "DocumentSerialID", series)
	writeCbc(enc, "DocumentNumberID", number)
	if doc.RefReason != "" {
		writeSac(enc, "VoidReasonDescription", doc.RefReason)
	}
	_ = enc.EncodeToken(xml.EndElement{Name: xml.Name{Local: "sac:VoidedDocumentsLine"}})

	if err := enc.EncodeToken(root.End()); err != nil {
		return nil, err
	}
	if err := enc.Flush(); err != nil {
		return nil, err
	}
	return append([]byte(xml.Header), buf.Bytes()...), nil
}

// ── bloques compartidos ──────────────────────────────────────────────────────

// writeSignatureExtension deja el contenedor de extensiones con un único
// ExtensionContent vacío donde el firmador inyecta ds:Signature.
func writeSignatureExtension(enc *xml.Encoder) {
	_ = enc.EncodeToken(xml.StartElement{Name: xml.Name{Local: "ext:UBLExtensions"}})
	_ = enc.EncodeToken(xml.StartElement{Name: xml.Name{Local: "ext:UBLExtension"}})
	_ = enc.EncodeToken(xml.StartElement{Name: xml.Name{Local: "ext:ExtensionContent"}})
	_ = enc.EncodeToken(xml.EndElement{Name: xml.Name{Local: "ext:ExtensionContent"}})
	_ = enc.EncodeToken(xml.EndElement{Name: xml.Name{Local: "ext:UBLExtension"}})
	_ = enc.EncodeToken(xml.EndElement{Name: xml.Name{Local: "ext:UBLExtensions"}})
}

func writeDiscrepancyResponse(enc *xml.Encoder, doc *entity.FiscalDocument) {
	_ = enc.EncodeToken(xml.StartElement{Name: xml.Name{Local: "cac:DiscrepancyResponse"}})
	writeCbc(enc, "ReferenceID", doc.RefNumber)
	writeCbc(enc, "ResponseCode", doc.RefReason)
	_ = enc.EncodeToken(xml.EndElement{Name: xml.Name{Local: "cac:DiscrepancyResponse"}})
}

func writeBillingReference(enc *xml.Encoder, doc *entity.FiscalDocument) {
	_ = enc.EncodeToken(xml.StartElement{Name: xml.Name{Local: "cac:BillingReference"}})
	_ = enc.EncodeToken(xml.StartElement{Name: xml.Name{Local: "cac:InvoiceDocumentReference"}})
	writeCbc(enc, "ID", doc.RefNumber)
	writeCbcWithAttr(enc, "DocumentTypeCode", doc.RefDocType, "listAgencyName", "PE:SUNAT")
	_ = enc.EncodeToken(xml.EndElement{Name: xml.Name{Local: "cac:InvoiceDocumentReference"}})
	_ = enc.EncodeToken(xml.EndElement{Name: xml.Name{Local: "cac:BillingReference"}})
}

func writeSupplierParty(enc *xml.Encoder, issuer *entity.Issuer) {
	_ = enc.EncodeToken(xml.StartElement{Name: xml.Name{Local: "cac:AccountingSupplierParty"}})
	_ = enc.EncodeToken(xml.StartElement{Name: xml.Name{Local: "cac:Party"}})

	_ = enc.EncodeToken(xml.StartElement{Name: xml.Name{Local: "cac:PartyIdentification"}})
	writeCbcWithAttr(enc, "ID", issuer.RUC, "schemeID", pkgsunat.IdentDocRUC)
	_ = enc.EncodeToken(xml.EndElement{Name: xml.Name{Local: "cac:PartyIdentification"}})

	if issuer.TradeName != "" {
		_ = enc.EncodeToken(xml.StartElement{Name: xml.Name{Local: "cac:PartyName"}})
		writeCbc(enc, "Name", issuer.TradeName)
		_ = enc.EncodeToken(xml.EndElement{Name: xml.Name{Local: "cac:PartyName"}})
	}

	_ = enc.EncodeToken(xml.StartElement{Name: xml.Name{Local: "cac:PartyLegalEntity"}})
	writeCbc(enc, "RegistrationName", issuer.Name)
	if issuer.Address != "" {
		_ = enc.EncodeToken(xml.StartElement{Name: xml.Name{Local: "cac:RegistrationAddress"}})
		if issuer.Ubigeo != "" {
			writeCbc(enc, "ID", issuer.Ubigeo)
		}
		_ = enc.EncodeToken(xml.StartElement{Name: xml.Name{Local: "cac:AddressLine"}})
		writeCbc(enc, "Line", issuer.Address)
		_ = enc.EncodeToken(xml.EndElement{Name: xml.Name{Local: "cac:AddressLine"}})
		_ = enc.EncodeToken(xml.EndElement{Name: xml.Name{Local: "cac:RegistrationAddress"}})
	}
	_ = enc.EncodeToken(xml.EndElement{Name: xml.Name{Local: "cac:PartyLegalEntity"}})

	_ = enc.EncodeToken(xml.EndElement{Name: xml.Name{Local: "cac:Party"}})
	_ = enc.EncodeToken(xml.EndElement{Name: xml.Name{Local: "cac:AccountingSupplierParty"}})
}

func writeCustomerParty(enc *xml.Encoder, doc *entity.FiscalDocument) {
	_ = enc.EncodeToken(xml.StartElement{Name: xml.Name{Local: "cac:AccountingCustomerParty"}})
	_ = enc.EncodeToken(xml.StartElement{Name: xml.Name{Local: "cac:Party"}})

	_ = enc.EncodeToken(xml.StartElement{Name: xml.Name{Local: "cac:PartyIdentification"}})
	writeCbcWithAttr(enc, "ID", doc.CustomerDocNumber, "schemeID", doc.CustomerDocType)
	_ = enc.EncodeToken(xml.EndElement{Name: xml.Name{Local: "cac:PartyIdentification"}})

	_ = enc.EncodeToken(xml.StartElement{Name: xml.Name{Local: "cac:PartyLegalEntity"}})
	writeCbc(enc, "RegistrationName", doc.CustomerName)
	_ = enc.EncodeToken(xml.EndElement{Name: xml.Name{Local: "cac:PartyLegalEntity"}})

	_ = enc.EncodeToken(xml.EndElement{Name: xml.Name{Local: "cac:Party"}})
	_ = enc.EncodeToken(xml.EndElement{Name: xml.Name{Local: "cac:AccountingCustomerParty"}})
}

// writeTaxTotal escribe el total de IGV con un subtotal por cada base no nula.
func writeTaxTotal(enc *xml.Encoder, doc *entity.FiscalDocument) {
	_ = enc.EncodeToken(xml.StartElement{Name: xml.Name{Local: "cac:TaxTotal"}})
	writeCbcAmount(enc, "TaxAmount", formatDecimal(doc.IGVTotal), doc.Currency)

	writeTaxSubtotal(enc, doc.Currency, doc.TaxableTotal, doc.IGVTotal, taxSchemeIGV, taxSchemeIGVName, "VAT")
	if doc.ExemptTotal.IsPositive() {
		writeTaxSubtotal(enc, doc.Currency, doc.ExemptTotal, decimal.Zero, taxSchemeExonerado, "EXO", "VAT")
	}
	if doc.UnaffectedTotal.IsPositive() {
		writeTaxSubtotal(enc, doc.Currency, doc.UnaffectedTotal, decimal.Zero, taxSchemeInafecto, "INA", "FRE")
	}
	if doc.ExportTotal.IsPositive() {
		writeTaxSubtotal(enc, doc.Currency, doc.ExportTotal, decimal.Zero, taxSchemeExportacion, "EXP", "FRE")
	}
	if doc.FreeTotal.IsPositive() {
		writeTaxSubtotal(enc, doc.Currency, doc.FreeTotal, decimal.Zero, taxSchemeGratuito, "GRA", "FRE")
	}
	_ = enc.EncodeToken(xml.EndElement{Name: xml.Name{Local: "cac:TaxTotal"}})
}

func writeTaxSubtotal(enc *xml.Encoder, currency string, base, tax decimal.Decimal, schemeID, schemeName, typeCode string) {
	_ = enc.EncodeToken(xml.StartElement{Name: xml.Name{Local: "cac:TaxSubtotal"}})
	writeCbcAmount(enc, "TaxableAmount", formatDecimal(base), currency)
	writeCbcAmount(enc, "TaxAmount", formatDecimal(tax), currency)
	_ = enc.EncodeToken(xml.StartElement{Name: xml.Name{Local: "cac:TaxCategory"}})
	_ = enc.EncodeToken(xml.StartElement{Name: xml.Name{Local: "cac:TaxScheme"}})
	writeCbc(enc, "ID", schemeID)
	writeCbc(enc, "Name", schemeName)
	writeCbc(enc, "TaxTypeCode", typeCode)
	_ = enc.EncodeToken(xml.EndElement{Name: xml.Name{Local: "cac:TaxScheme"}})
	_ = enc.EncodeToken(xml.EndElement{Name: xml.Name{Local: "cac:TaxCategory"}})
	_ = enc.EncodeToken(xml.EndElement{Name: xml.Name{Local: "cac:TaxSubtotal"}})
}

func writeMonetaryTotal(enc *xml.Encoder, doc *entity.FiscalDocument, rootLocal string) {
	local := "cac:LegalMonetaryTotal"
	if rootLocal == "DebitNote" {
		local = "cac:RequestedMonetaryTotal"
	}
	lineExtension := doc.TaxableTotal.
		Add(doc.ExemptTotal).
		Add(doc.UnaffectedTotal).
		Add(doc.ExportTotal)
	_ = enc.EncodeToken(xml.StartElement{Name: xml.Name{Local: local}})
	writeCbcAmount(enc, "LineExtensionAmount", formatDecimal(lineExtension), doc.Currency)
	writeCbcAmount(enc, "TaxInclusiveAmount", formatDecimal(doc.GrandTotal), doc.Currency)
	writeCbcAmount(enc, "PayableAmount", formatDecimal(doc.GrandTotal), doc.Currency)
	_ = enc.EncodeToken(xml.EndElement{Name: xml.Name{Local: local}})
}

func writeDocumentLine(enc *xml.Encoder, lineLocal string, lineNum int, line *entity.DocumentLine, currency string) {
	quantityLocal := "InvoicedQuantity"
	switch lineLocal {
	case "CreditNoteLine":
		quantityLocal = "CreditedQuantity"
	case "DebitNoteLine":
		quantityLocal = "DebitedQuantity"
	}

	_ = enc.EncodeToken(xml.StartElement{Name: xml.Name{Local: "cac:" + lineLocal}})
	writeCbc(enc, "ID", strconv.Itoa(lineNum))
	writeCbcWithAttr(enc, quantityLocal, line.Quantity.String(), "unitCode", line.UnitCode)
	writeCbcAmount(enc, "LineExtensionAmount", formatDecimal(line.TaxBase), currency)

	// Precio de venta unitario (incluye IGV) para la representación impresa.
	priceWithTax := line.UnitPrice
	if line.TaxRate.IsPositive() {
		priceWithTax = line.UnitPrice.Mul(decimal.NewFromInt(1).Add(line.TaxRate))
	}
	_ = enc.EncodeToken(xml.StartElement{Name: xml.Name{Local: "cac:PricingReference"}})
	_ = enc.EncodeToken(xml.StartElement{Name: xml.Name{Local: "cac:AlternativeConditionPrice"}})
	writeCbcAmount(enc, "PriceAmount", formatDecimal(priceWithTax), currency)
	writeCbc(enc, "PriceTypeCode", "01")
	_ = enc.EncodeToken(xml.EndElement{Name: xml.Name{Local: "cac:AlternativeConditionPrice"}})
	_ = enc.EncodeToken(xml.EndElement{Name: xml.Name{Local: "cac:PricingReference"}})

	// IGV de la línea con su afectación (catálogo 07).
	_ = enc.EncodeToken(xml.StartElement{Name: xml.Name{Local: "cac:TaxTotal"}})
	writeCbcAmount(enc, "TaxAmount", formatDecimal(line.IGVAmount), currency)
	_ = enc.EncodeToken(xml.StartElement{Name: xml.Name{Local: "cac:TaxSubtotal"}})
	writeCbcAmount(enc, "TaxableAmount", formatDecimal(line.TaxBase), currency)
	writeCbcAmount(enc, "TaxAmount", formatDecimal(line.IGVAmount), currency)
	_ = enc.EncodeToken(xml.StartElement{Name: xml.Name{Local: "cac:TaxCategory"}})
	writeCbc(enc, "Percent", line.TaxRate.Mul(decimal.NewFromInt(100)).String())
	writeCbc(enc, "TaxExemptionReasonCode", line.AffectationCode)
	_ = enc.EncodeToken(xml.StartElement{Name: xml.Name{Local: "cac:TaxScheme"}})
	writeCbc(enc, "ID", taxSchemeIGV)
	writeCbc(enc, "Name", taxSchemeIGVName)
	writeCbc(enc, "TaxTypeCode", "VAT")
	_ = enc.EncodeToken(xml.EndElement{Name: xml.Name{Local: "cac:TaxScheme"}})
	_ = enc.EncodeToken(xml.EndElement{Name: xml.Name{Local: "cac:TaxCategory"}})
	_ = enc.EncodeToken(xml.EndElement{Name: xml.Name{Local: "cac:TaxSubtotal"}})
	_ = enc.EncodeToken(xml.EndElement{Name: xml.Name{Local: "cac:TaxTotal"}})

	_ = enc.EncodeToken(xml.StartElement{Name: xml.Name{Local: "cac:Item"}})
	writeCbc(enc, "Description", line.Description)
	_ = enc.EncodeToken(xml.EndElement{Name: xml.Name{Local: "cac:Item"}})

	_ = enc.EncodeToken(xml.StartElement{Name: xml.Name{Local: "cac:Price"}})
	writeCbcAmount(enc, "PriceAmount", formatDecimal(line.UnitPrice), currency)
	_ = enc.EncodeToken(xml.EndElement{Name: xml.Name{Local: "cac:Price"}})

	_ = enc.EncodeToken(xml.EndElement{Name: xml.Name{Local: "cac:" + lineLocal}})
}

func writeAccountingParty(enc *xml.Encoder, local, id, schemeID, name string) {
	_ = enc.EncodeToken(xml.StartElement{Name: xml.Name{Local: "cac:" + local}})
	writeCbcWithAttr(enc, "CustomerAssignedAccountID", id, "schemeID", schemeID)
	_ = enc.EncodeToken(xml.StartElement{Name: xml.Name{Local: "cac:Party"}})
	_ = enc.EncodeToken(xml.StartElement{Name: xml.Name{Local: "cac:PartyLegalEntity"}})
	writeCbc(enc, "RegistrationName", name)
	_ = enc.EncodeToken(xml.EndElement{Name: xml.Name{Local: "cac:PartyLegalEntity"}})
	_ = enc.EncodeToken(xml.EndElement{Name: xml.Name{Local: "cac:Party"}})
	_ = enc.EncodeToken(xml.EndElement{Name: xml.Name{Local: "cac:" + local}})
}

// ── helpers de escritura ─────────────────────────────────────────────────────

func writeCbc(enc *xml.Encoder, local, value string) {
	name := xml.Name{Local: "cbc:" + local}
	_ = enc.EncodeToken(xml.StartElement{Name: name})
	_ = enc.EncodeToken(xml.CharData(value))
	_ = enc.EncodeToken(xml.EndElement{Name: name})
}

func writeSac(enc *xml.Encoder, local, value string) {
	name := xml.Name{Local: "sac:" + local}
	_ = enc.EncodeToken(xml.StartElement{Name: name})
	_ = enc.EncodeToken(xml.CharData(value))
	_ = enc.EncodeToken(xml.EndElement{Name: name})
}

func writeCbcAmount(enc *xml.Encoder, local, value, currency string) {
	writeCbcWithAttr(enc, local, value, "currencyID", currency)
}

func writeCbcWithAttr(enc *xml.Encoder, local, value, attrLocal, attrValue string) {
	name := xml.Name{Local: "cbc:" + local}
	_ = enc.EncodeToken(xml.StartElement{
		Name: name,
		Attr: []xml.Attr{{Name: xml.Name{Local: attrLocal}, Value: attrValue}},
	})
	_ = enc.EncodeToken(xml.CharData(value))
	_ = enc.EncodeToken(xml.EndElement{Name: name})
}

func formatDecimal(d decimal.Decimal) string {
	return d.Round(2).StringFixed(2)
}

// splitNumber separa "F001-123" en serie y correlativo.
func splitNumber(number string) (series, correlative string) {
	for i := 0; i < len(number); i++ {
		if number[i] == '-' {
			return number[:i], number[i+1:]
		}
	}
	return number, ""
}
