package sunat

import (
	"archive/zip"
	"bytes"
	"fmt"

	"github.com/petflowpe/facturacion/internal/domain/entity"
)

// CompressXMLToZip empaqueta el XML firmado en un ZIP en memoria.
// SUNAT exige un ZIP con un único archivo cuyo nombre coincide con el del ZIP.
func CompressXMLToZip(xmlBytes []byte, xmlFilename string) ([]byte, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	fw, err := zw.Create(xmlFilename)
	if err != nil {
		return nil, fmt.Errorf("zip: crear entrada %s: %w", xmlFilename, err)
	}
	if _, err := fw.Write(xmlBytes); err != nil {
		return nil, fmt.Errorf("zip: escribir XML: %w", err)
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("zip: cerrar archivo: %w", err)
	}
	return buf.Bytes(), nil
}

// Filenames genera los nombres de archivo que exige SUNAT para el XML y el ZIP:
//
//	{RUC}-{tipoDoc}-{serie}-{correlativo}.xml / .zip
//
// Ejemplo: 20131312955-01-F001-1.xml
func Filenames(issuer *entity.Issuer, doc *entity.FiscalDocument) (xmlName, zipName string) {
	base := fmt.Sprintf("%s-%s-%s-%d", issuer.RUC, doc.DocType, doc.Series, doc.Correlative)
	return base + ".xml", base + ".zip"
}
