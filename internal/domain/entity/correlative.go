package entity

import "time"

// CorrelativeKey identifica una serie de numeración:
// (emisor, punto de venta, tipo de documento, serie).
type CorrelativeKey struct {
	IssuerID      string
	PointOfSaleID string
	DocType       string
	Series        string
}

// CorrelativeCounter fila durable del contador de numeración.
// CurrentValue solo crece; un valor asignado y no usado deja un hueco
// permanente (SUNAT tolera huecos, nunca duplicados ni retrocesos).
type CorrelativeCounter struct {
	Key          CorrelativeKey
	CurrentValue int64
	UpdatedAt    time.Time
}
