package sunat

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"strings"

	domsunat "github.com/petflowpe/facturacion/internal/domain/sunat"
)

// applicationResponse es el subconjunto del CDR (ApplicationResponse UBL) que
// el clasificador necesita: código, descripción y documento referenciado.
type applicationResponse struct {
	XMLName          xml.Name `xml:"ApplicationResponse"`
	DocumentResponse struct {
		Response struct {
			ResponseCode string `xml:"ResponseCode"`
			Description  string `xml:"Description"`
		} `xml:"Response"`
		DocumentReference struct {
			ID string `xml:"ID"`
		} `xml:"DocumentReference"`
	} `xml:"DocumentResponse"`
}

// ParseCDR abre el ZIP de constancia, localiza el ApplicationResponse
// (R-*.xml) y extrae la respuesta cruda para el clasificador. Cualquier
// malformación devuelve error: una constancia ilegible jamás se interpreta.
func ParseCDR(cdrZip []byte) (*domsunat.RawResponse, error) {
	if len(cdrZip) == 0 {
		return nil, fmt.Errorf("cdr: constancia vacía")
	}
	zr, err := zip.NewReader(bytes.NewReader(cdrZip), int64(len(cdrZip)))
	if err != nil {
		return nil, fmt.Errorf("cdr: abrir ZIP: %w", err)
	}

	var xmlFile *zip.File
	for _, f := range zr.File {
		name := strings.ToLower(f.Name)
		if strings.HasSuffix(name, ".xml") && !strings.HasPrefix(name, "dummy") {
			xmlFile = f
			break
		}
	}
	if xmlFile == nil {
		return nil, fmt.Errorf("cdr: el ZIP no contiene XML de constancia")
	}

	rc, err := xmlFile.Open()
	if err != nil {
		return nil, fmt.Errorf("cdr: abrir %s: %w", xmlFile.Name, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(io.LimitReader(rc, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("cdr: leer %s: %w", xmlFile.Name, err)
	}

	var ar applicationResponse
	if err := xml.Unmarshal(data, &ar); err != nil {
		return nil, fmt.Errorf("cdr: parsear ApplicationResponse: %w", err)
	}
	if ar.DocumentResponse.Response.ResponseCode == "" {
		return nil, fmt.Errorf("cdr: ApplicationResponse sin ResponseCode")
	}

	return &domsunat.RawResponse{
		Code:        ar.DocumentResponse.Response.ResponseCode,
		Description: ar.DocumentResponse.Response.Description,
		DocumentID:  ar.DocumentResponse.DocumentReference.ID,
	}, nil
}
