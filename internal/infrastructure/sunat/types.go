// Package sunat implementa la generación de XML UBL 2.1, la firma XMLDSig y
// el cliente SOAP del servicio billService de SUNAT (facturación electrónica, Perú).
package sunat

import (
	"github.com/petflowpe/facturacion/internal/domain/entity"
)

// BuildContext datos necesarios para construir el XML de un comprobante.
type BuildContext struct {
	Doc    *entity.FiscalDocument
	Issuer *entity.Issuer
}
