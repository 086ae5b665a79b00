// Package sunat contiene catálogos y validaciones alineados a los anexos de
// comprobantes de pago electrónicos SUNAT (Perú), Resolución 097-2012 y modificatorias.
package sunat

// =============================================================================
// Catálogo 01 - Tipo de documento (comprobante)
// =============================================================================

const (
	DocTypeFactura       = "01" // Factura
	DocTypeBoleta        = "03" // Boleta de venta
	DocTypeNotaCredito   = "07" // Nota de crédito
	DocTypeNotaDebito    = "08" // Nota de débito
	DocTypeGuiaRemision  = "09" // Guía de remisión remitente
	DocTypeResumenDiario = "RC" // Resumen diario de boletas
	DocTypeBaja          = "RA" // Comunicación de baja
)

// =============================================================================
// Catálogo 06 - Tipo de documento de identidad del adquirente
// =============================================================================

const (
	IdentDocSinDocumento = "0" // No domiciliado, sin documento
	IdentDocDNI          = "1" // DNI
	IdentDocCarnetExt    = "4" // Carnet de extranjería
	IdentDocRUC          = "6" // RUC
	IdentDocPasaporte    = "7" // Pasaporte
)

// ValidIdentityDocCodes códigos de documento de identidad aceptados en el adquirente.
var ValidIdentityDocCodes = map[string]bool{
	IdentDocSinDocumento: true,
	IdentDocDNI:          true,
	IdentDocCarnetExt:    true,
	IdentDocRUC:          true,
	IdentDocPasaporte:    true,
}

// =============================================================================
// Catálogo 07 - Tipo de afectación del IGV por línea
// Define a qué balde de la base imponible suma la línea y si lleva IGV.
// =============================================================================

// Baldes de base imponible a nivel de documento.
const (
	AffectationTaxable    = "gravado"
	AffectationExempt     = "exonerado"
	AffectationUnaffected = "inafecto"
	AffectationExport     = "exportacion"
)

// Affectation describe una entrada del catálogo 07.
type Affectation struct {
	Bucket  string // gravado | exonerado | inafecto | exportacion
	Onerosa bool   // false = operación gratuita (obliga leyenda 2006)
	TaxedAt bool   // true = la línea genera IGV (solo gravado oneroso)
}

// Affectations catálogo 07 completo (operaciones onerosas y gratuitas).
var Affectations = map[string]Affectation{
	"10": {Bucket: AffectationTaxable, Onerosa: true, TaxedAt: true},     // Gravado - operación onerosa
	"11": {Bucket: AffectationTaxable, Onerosa: false},                   // Gravado - retiro por premio
	"12": {Bucket: AffectationTaxable, Onerosa: false},                   // Gravado - retiro por donación
	"13": {Bucket: AffectationTaxable, Onerosa: false},                   // Gravado - retiro
	"14": {Bucket: AffectationTaxable, Onerosa: false},                   // Gravado - retiro por publicidad
	"15": {Bucket: AffectationTaxable, Onerosa: false},                   // Gravado - bonificaciones
	"16": {Bucket: AffectationTaxable, Onerosa: false},                   // Gravado - retiro entrega a trabajadores
	"20": {Bucket: AffectationExempt, Onerosa: true},                     // Exonerado - operación onerosa
	"21": {Bucket: AffectationExempt, Onerosa: false},                    // Exonerado - transferencia gratuita
	"30": {Bucket: AffectationUnaffected, Onerosa: true},                 // Inafecto - operación onerosa
	"31": {Bucket: AffectationUnaffected, Onerosa: false},                // Inafecto - retiro por bonificación
	"32": {Bucket: AffectationUnaffected, Onerosa: false},                // Inafecto - retiro
	"33": {Bucket: AffectationUnaffected, Onerosa: false},                // Inafecto - retiro por muestras médicas
	"34": {Bucket: AffectationUnaffected, Onerosa: false},                // Inafecto - retiro por convenio colectivo
	"35": {Bucket: AffectationUnaffected, Onerosa: false},                // Inafecto - retiro por premio
	"36": {Bucket: AffectationUnaffected, Onerosa: false},                // Inafecto - retiro por publicidad
	"40": {Bucket: AffectationExport, Onerosa: true},                     // Exportación de bienes o servicios
}

// AffectationFor devuelve la entrada del catálogo 07 para el código dado.
func AffectationFor(code string) (Affectation, bool) {
	a, ok := Affectations[code]
	return a, ok
}

// =============================================================================
// Catálogo 52 - Leyendas
// =============================================================================

const (
	LegendAmountInWords    = "1000" // Monto en letras (obligatoria en todo comprobante)
	LegendFreeTransfer     = "2006" // "TRANSFERENCIA GRATUITA DE UN BIEN Y/O SERVICIO PRESTADO GRATUITAMENTE"
	LegendFreeTransferText = "TRANSFERENCIA GRATUITA DE UN BIEN Y/O SERVICIO PRESTADO GRATUITAMENTE"
)

// =============================================================================
// Catálogo 03 - Unidades de medida (códigos UN/ECE rec 20 de uso común)
// =============================================================================

const (
	UnitUnidad    = "NIU" // Unidad (bienes)
	UnitServicio  = "ZZ"  // Unidad (servicios)
	UnitKilogramo = "KGM" // Kilogramo
	UnitLitro     = "LTR" // Litro
	UnitMetro     = "MTR" // Metro
	UnitCaja      = "BX"  // Caja
	UnitDocena    = "DZN" // Docena
	UnitHora      = "HUR" // Hora
	UnitDia       = "DAY" // Día
)

// ValidUnitCodes unidades de medida de uso común en comprobantes.
var ValidUnitCodes = map[string]bool{
	UnitUnidad: true, UnitServicio: true, UnitKilogramo: true, UnitLitro: true,
	UnitMetro: true, UnitCaja: true, UnitDocena: true, UnitHora: true, UnitDia: true,
}

// =============================================================================
// Catálogo 02 - Monedas (ISO 4217, las aceptadas por el sistema)
// =============================================================================

const (
	CurrencyPEN = "PEN"
	CurrencyUSD = "USD"
)

// ValidCurrencyCodes monedas aceptadas.
var ValidCurrencyCodes = map[string]bool{
	CurrencyPEN: true,
	CurrencyUSD: true,
}

// =============================================================================
// Catálogo 09 / 10 - Motivos de nota de crédito y débito (subset operativo)
// =============================================================================

// ValidCreditNoteReasonCodes motivos de nota de crédito (catálogo 09).
var ValidCreditNoteReasonCodes = map[string]bool{
	"01": true, // Anulación de la operación
	"02": true, // Anulación por error en el RUC
	"03": true, // Corrección por error en la descripción
	"04": true, // Descuento global
	"06": true, // Devolución total
	"07": true, // Devolución por ítem
}

// ValidDebitNoteReasonCodes motivos de nota de débito (catálogo 10).
var ValidDebitNoteReasonCodes = map[string]bool{
	"01": true, // Intereses por mora
	"02": true, // Aumento en el valor
	"03": true, // Penalidades
}
