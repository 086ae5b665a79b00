package signer

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"math/big"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testInvoice = `<?xml version="1.0" encoding="UTF-8"?>
<Invoice xmlns="urn:oasis:names:specification:ubl:schema:xsd:Invoice-2" xmlns:cbc="urn:oasis:names:specification:ubl:schema:xsd:CommonBasicComponents-2" xmlns:ext="urn:oasis:names:specification:ubl:schema:xsd:CommonExtensionComponents-2">
  <ext:UBLExtensions>
    <ext:UBLExtension>
      <ext:ExtensionContent></ext:ExtensionContent>
    </ext:UBLExtension>
  </ext:UBLExtensions>
  <cbc:ID>F001-1</cbc:ID>
</Invoice>`

func selfSignedCert(t *testing.T) tls.Certificate {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: "COMERCIAL ANDINA S.A.C."},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(24 * time.Hour),
		KeyUsage:     x509.KeyUsageDigitalSignature,
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	require.NoError(t, err)

	return tls.Certificate{Certificate: [][]byte{der}, PrivateKey: key}
}

func TestSignInyectaFirmaEnExtensionContent(t *testing.T) {
	svc := NewDigitalSignatureService()
	cert := selfSignedCert(t)

	signed, digest, err := svc.Sign([]byte(testInvoice), cert)
	require.NoError(t, err)
	require.NotEmpty(t, digest)

	out := string(signed)
	assert.Contains(t, out, `<ds:Signature`)
	assert.Contains(t, out, `Id="`+SignatureID+`"`)
	assert.Contains(t, out, "<ds:SignatureValue>")
	assert.Contains(t, out, "<ds:X509Certificate>")
	assert.Contains(t, out, "<ds:DigestValue>"+digest+"</ds:DigestValue>")

	// La firma queda dentro del contenedor de extensiones, no al final del documento.
	assert.Less(t, strings.Index(out, "<ds:Signature"), strings.Index(out, "<cbc:ID>"))
	// El resto del documento no se altera.
	assert.Contains(t, out, "<cbc:ID>F001-1</cbc:ID>")
}

func TestSignEsDeterministaEnElDigest(t *testing.T) {
	svc := NewDigitalSignatureService()
	cert := selfSignedCert(t)

	_, d1, err := svc.Sign([]byte(testInvoice), cert)
	require.NoError(t, err)
	_, d2, err := svc.Sign([]byte(testInvoice), cert)
	require.NoError(t, err)
	assert.Equal(t, d1, d2, "el digest depende solo del documento")
}

func TestSignRechazaXMLVacio(t *testing.T) {
	svc := NewDigitalSignatureService()
	_, _, err := svc.Sign(nil, selfSignedCert(t))
	require.Error(t, err)
}

func TestSignRechazaLlaveNoRSA(t *testing.T) {
	ecKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	cert := selfSignedCert(t)
	cert.PrivateKey = ecKey

	_, _, err = NewDigitalSignatureService().Sign([]byte(testInvoice), cert)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "RSA")
}

func TestSignFallaSinExtensionContent(t *testing.T) {
	xml := `<?xml version="1.0"?><Invoice><ID>F001-1</ID></Invoice>`
	_, _, err := NewDigitalSignatureService().Sign([]byte(xml), selfSignedCert(t))
	require.Error(t, err)
}
