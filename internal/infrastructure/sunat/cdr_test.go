package sunat

import (
	"archive/zip"
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildCDRZip(t *testing.T, xmlName, responseCode, description, documentID string) []byte {
	t.Helper()
	xml := `<?xml version="1.0" encoding="UTF-8"?>
<ApplicationResponse xmlns="urn:oasis:names:specification:ubl:schema:xsd:ApplicationResponse-2"
  xmlns:cac="urn:oasis:names:specification:ubl:schema:xsd:CommonAggregateComponents-2"
  xmlns:cbc="urn:oasis:names:specification:ubl:schema:xsd:CommonBasicComponents-2">
  <cbc:ID>R-` + documentID + `</cbc:ID>
  <cac:DocumentResponse>
    <cac:Response>
      <cbc:ResponseCode>` + responseCode + `</cbc:ResponseCode>
      <cbc:Description>` + description + `</cbc:Description>
    </cac:Response>
    <cac:DocumentReference>
      <cbc:ID>` + documentID + `</cbc:ID>
    </cac:DocumentReference>
  </cac:DocumentResponse>
</ApplicationResponse>`

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	fw, err := zw.Create(xmlName)
	require.NoError(t, err)
	_, err = fw.Write([]byte(xml))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func TestParseCDRExtraeCodigoYDocumento(t *testing.T) {
	cdr := buildCDRZip(t, "R-20131312955-01-F001-1.xml", "0", "La Factura numero F001-1, ha sido aceptada", "F001-1")

	raw, err := ParseCDR(cdr)
	require.NoError(t, err)
	assert.Equal(t, "0", raw.Code)
	assert.Equal(t, "La Factura numero F001-1, ha sido aceptada", raw.Description)
	assert.Equal(t, "F001-1", raw.DocumentID)
}

func TestParseCDRConstanciaDeRechazo(t *testing.T) {
	cdr := buildCDRZip(t, "R-20131312955-01-F001-2.xml", "2324", "El comprobante fue informado previamente en una comunicacion de baja", "F001-2")

	raw, err := ParseCDR(cdr)
	require.NoError(t, err)
	assert.Equal(t, "2324", raw.Code)
}

func TestParseCDRRechazaPayloadsMalformados(t *testing.T) {
	casos := []struct {
		nombre string
		cdr    []byte
	}{
		{"vacío", nil},
		{"no es ZIP", []byte("no soy un zip")},
		{"ZIP sin XML", zipWithFile(t, "leeme.txt", "hola")},
		{"XML sin ResponseCode", zipWithFile(t, "R-x.xml", "<ApplicationResponse></ApplicationResponse>")},
		{"XML ilegible", zipWithFile(t, "R-x.xml", "<<<<")},
	}
	for _, c := range casos {
		t.Run(c.nombre, func(t *testing.T) {
			_, err := ParseCDR(c.cdr)
			require.Error(t, err, "una constancia ilegible jamás debe interpretarse")
		})
	}
}

func zipWithFile(t *testing.T, name, content string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	fw, err := zw.Create(name)
	require.NoError(t, err)
	_, err = fw.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}
