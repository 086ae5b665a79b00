package sunat

import (
	"context"
	"crypto/sha256"
	"crypto/tls"
	"encoding/base64"
	"fmt"

	"github.com/petflowpe/facturacion/internal/application/billing"
	"github.com/petflowpe/facturacion/internal/domain"
	"github.com/petflowpe/facturacion/internal/domain/entity"
	domsunat "github.com/petflowpe/facturacion/internal/domain/sunat"
	"github.com/petflowpe/facturacion/internal/infrastructure/sunat/signer"
)

// Encoder colaborador de codificación: modelo canónico -> XML UBL firmado ->
// ZIP con el nombre que exige SUNAT. Implementa billing.Encoder.
type Encoder struct {
	builder *XMLBuilderService
	signer  *signer.DigitalSignatureService
	cert    tls.Certificate
}

var _ billing.Encoder = (*Encoder)(nil)

// NewEncoder construye el codificador. Un certificado vacío (sin llave) omite
// la firma; solo válido en desarrollo, SUNAT rechaza documentos sin firmar.
func NewEncoder(cert tls.Certificate) *Encoder {
	return &Encoder{
		builder: NewXMLBuilderService(),
		signer:  signer.NewDigitalSignatureService(),
		cert:    cert,
	}
}

// Encode genera el artefacto firmado. Todo fallo es permanente para el
// documento (domain.ErrEncodingFailed): reintentar no lo arregla.
func (e *Encoder) Encode(ctx context.Context, doc *entity.FiscalDocument, issuer *entity.Issuer) (*billing.EncodedDocument, error) {
	xmlBytes, err := e.builder.Build(&BuildContext{Doc: doc, Issuer: issuer})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrEncodingFailed, err)
	}

	var hash string
	if len(e.cert.Certificate) > 0 {
		signed, digest, err := e.signer.Sign(xmlBytes, e.cert)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrEncodingFailed, err)
		}
		xmlBytes, hash = signed, digest
	} else {
		sum := sha256.Sum256(xmlBytes)
		hash = base64.StdEncoding.EncodeToString(sum[:])
	}

	xmlName, zipName := Filenames(issuer, doc)
	zipBytes, err := CompressXMLToZip(xmlBytes, xmlName)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrEncodingFailed, err)
	}

	return &billing.EncodedDocument{
		XML:     xmlBytes,
		Zip:     zipBytes,
		ZipName: zipName,
		Hash:    hash,
	}, nil
}

// ParseCDR delega en el parser de constancias.
func (e *Encoder) ParseCDR(cdrZip []byte) (*domsunat.RawResponse, error) {
	return ParseCDR(cdrZip)
}

// ZipName deriva el nombre del ZIP sin recodificar el documento.
func (e *Encoder) ZipName(doc *entity.FiscalDocument, issuer *entity.Issuer) string {
	_, zipName := Filenames(issuer, doc)
	return zipName
}
