package entity

import "time"

// Issuer emisor de comprobantes (los datos de parte que exige el XML UBL).
type Issuer struct {
	ID        string
	RUC       string
	Name      string // razón social
	TradeName string // nombre comercial
	Address   string
	Ubigeo    string // código de ubicación geográfica INEI
	District  string
	Province  string
	CreatedAt time.Time
	UpdatedAt time.Time
}
