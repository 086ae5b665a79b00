package sunat

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/petflowpe/facturacion/internal/application/billing"
	"github.com/petflowpe/facturacion/internal/domain"
	"github.com/petflowpe/facturacion/internal/domain/entity"
	domsunat "github.com/petflowpe/facturacion/internal/domain/sunat"
)

// ── Constantes de entorno ─────────────────────────────────────────────────────

const (
	// EnvBeta ambiente de pruebas SUNAT (e-beta).
	EnvBeta = "beta"
	// EnvProd ambiente de producción SUNAT.
	EnvProd = "prod"
	// EnvDev identificador local: no envía al WS SUNAT.
	EnvDev = "dev"

	soapURLBeta = "https://e-beta.sunat.gob.pe/ol-ti-itcpfegem-beta/billService"
	soapURLProd = "https://e-factura.sunat.gob.pe/ol-ti-itcpfegem/billService"

	soapNS    = "http://schemas.xmlsoap.org/soap/envelope/"
	serviceNS = "http://service.sunat.gob.pe"
	wsseNS    = "http://docs.oasis-open.org/wss/2004/01/oasis-200401-wss-wssecurity-secext-1.0.xsd"
)

// Credentials credenciales SOL del emisor para el UsernameToken.
// Username es la concatenación RUC + usuario secundario SOL.
type Credentials struct {
	RUC      string
	SOLUser  string
	Password string
}

// SOAPClient implementa billing.Transport contra el billService de SUNAT.
// Usa net/http de la stdlib; el WS de SUNAT es SOAP 1.1 plano y no justifica
// una librería de cliente SOAP.
type SOAPClient struct {
	httpClient *http.Client
	endpoint   string
	creds      Credentials
}

var _ billing.Transport = (*SOAPClient)(nil)

// NewSOAPClient construye el cliente para el entorno dado ("beta" o "prod")
// con un timeout de red generoso: el WS SUNAT puede tardar varios segundos.
func NewSOAPClient(env string, creds Credentials) (*SOAPClient, error) {
	var endpoint string
	switch env {
	case EnvBeta:
		endpoint = soapURLBeta
	case EnvProd:
		endpoint = soapURLProd
	default:
		return nil, fmt.Errorf("sunat: entorno desconocido %q (usar 'beta' o 'prod')", env)
	}
	return &SOAPClient{
		httpClient: &http.Client{Timeout: 60 * time.Second},
		endpoint:   endpoint,
		creds:      creds,
	}, nil
}

// WithTimeout ajusta el timeout de red por llamada. Cero conserva el default.
func (c *SOAPClient) WithTimeout(d time.Duration) *SOAPClient {
	if d > 0 {
		c.httpClient.Timeout = d
	}
	return c
}

// ── Estructuras SOAP ─────────────────────────────────────────────────────────

type soapEnvelope struct {
	XMLName   xml.Name   `xml:"soapenv:Envelope"`
	XmlnsS    string     `xml:"xmlns:soapenv,attr"`
	XmlnsSer  string     `xml:"xmlns:ser,attr"`
	XmlnsWsse string     `xml:"xmlns:wsse,attr"`
	Header    soapHeader `xml:"soapenv:Header"`
	Body      soapBody   `xml:"soapenv:Body"`
}

type soapHeader struct {
	Security wsseSecurity `xml:"wsse:Security"`
}

type wsseSecurity struct {
	UsernameToken wsseUsernameToken `xml:"wsse:UsernameToken"`
}

type wsseUsernameToken struct {
	Username string `xml:"wsse:Username"`
	Password string `xml:"wsse:Password"`
}

type soapBody struct {
	Content any
}

func (b soapBody) MarshalXML(e *xml.Encoder, start xml.StartElement) error {
	start.Name.Local = "soapenv:Body"
	if err := e.EncodeToken(start); err != nil {
		return err
	}
	if err := e.Encode(b.Content); err != nil {
		return err
	}
	return e.EncodeToken(start.End())
}

type sendBillBody struct {
	XMLName     xml.Name `xml:"ser:sendBill"`
	FileName    string   `xml:"fileName"`
	ContentFile string   `xml:"contentFile"` // ZIP en Base64
}

type sendSummaryBody struct {
	XMLName     xml.Name `xml:"ser:sendSummary"`
	FileName    string   `xml:"fileName"`
	ContentFile string   `xml:"contentFile"`
}

type getStatusBody struct {
	XMLName xml.Name `xml:"ser:getStatus"`
	Ticket  string   `xml:"ticket"`
}

// ── Estructuras de respuesta SOAP ────────────────────────────────────────────

type soapResponseEnvelope struct {
	Body soapResponseBody `xml:"Body"`
}

type soapResponseBody struct {
	SendBillResponse    *sendBillResponse    `xml:"sendBillResponse"`
	SendSummaryResponse *sendSummaryResponse `xml:"sendSummaryResponse"`
	GetStatusResponse   *getStatusResponse   `xml:"getStatusResponse"`
	Fault               *soapFault           `xml:"Fault"`
}

type sendBillResponse struct {
	ApplicationResponse string `xml:"applicationResponse"` // CDR (ZIP) en Base64
}

type sendSummaryResponse struct {
	Ticket string `xml:"ticket"`
}

type getStatusResponse struct {
	Status struct {
		StatusCode string `xml:"statusCode"`
		Content    string `xml:"content"` // CDR (ZIP) en Base64, si terminó
	} `xml:"status"`
}

type soapFault struct {
	FaultCode   string `xml:"faultcode"`
	FaultString string `xml:"faultstring"`
}

// ── billing.Transport ────────────────────────────────────────────────────────

// Send entrega el ZIP firmado: sendBill para el modo síncrono (el CDR viene en
// la respuesta), sendSummary para el asíncrono (la respuesta trae un ticket).
func (c *SOAPClient) Send(ctx context.Context, zipName string, zipBytes []byte, mode string) (*billing.SendResult, error) {
	b64 := base64.StdEncoding.EncodeToString(zipBytes)
	var body any
	if mode == entity.TransportAsync {
		body = &sendSummaryBody{FileName: zipName, ContentFile: b64}
	} else {
		body = &sendBillBody{FileName: zipName, ContentFile: b64}
	}

	respBody, err := c.call(ctx, body)
	if err != nil {
		return nil, err
	}

	if mode == entity.TransportAsync {
		if respBody.SendSummaryResponse == nil || respBody.SendSummaryResponse.Ticket == "" {
			return nil, fmt.Errorf("%w: sendSummary sin ticket en la respuesta", domain.ErrTransport)
		}
		return &billing.SendResult{Ticket: respBody.SendSummaryResponse.Ticket}, nil
	}

	if respBody.SendBillResponse == nil || respBody.SendBillResponse.ApplicationResponse == "" {
		return nil, fmt.Errorf("%w: sendBill sin applicationResponse", domain.ErrTransport)
	}
	cdr, err := base64.StdEncoding.DecodeString(respBody.SendBillResponse.ApplicationResponse)
	if err != nil {
		return nil, fmt.Errorf("%w: applicationResponse no es Base64: %v", domain.ErrTransport, err)
	}
	return &billing.SendResult{CDR: cdr}, nil
}

// PollStatus consulta el estado de un ticket de sendSummary.
func (c *SOAPClient) PollStatus(ctx context.Context, ticket string) (*billing.PollResult, error) {
	respBody, err := c.call(ctx, &getStatusBody{Ticket: ticket})
	if err != nil {
		return nil, err
	}
	if respBody.GetStatusResponse == nil {
		return nil, fmt.Errorf("%w: getStatus sin status en la respuesta", domain.ErrTransport)
	}

	status := respBody.GetStatusResponse.Status
	result := &billing.PollResult{StatusCode: status.StatusCode}
	if status.Content != "" {
		cdr, err := base64.StdEncoding.DecodeString(status.Content)
		if err != nil {
			return nil, fmt.Errorf("%w: content no es Base64: %v", domain.ErrTransport, err)
		}
		result.CDR = cdr
	}
	return result, nil
}

// ── llamada SOAP ─────────────────────────────────────────────────────────────

func (c *SOAPClient) call(ctx context.Context, body any) (*soapResponseBody, error) {
	envelope := soapEnvelope{
		XmlnsS:    soapNS,
		XmlnsSer:  serviceNS,
		XmlnsWsse: wsseNS,
		Header: soapHeader{
			Security: wsseSecurity{
				UsernameToken: wsseUsernameToken{
					Username: c.creds.RUC + c.creds.SOLUser,
					Password: c.creds.Password,
				},
			},
		},
		Body: soapBody{Content: body},
	}

	payload, err := xml.MarshalIndent(envelope, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("soap: serializar envelope: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("soap: crear request: %w", err)
	}
	req.Header.Set("Content-Type", "text/xml; charset=utf-8")
	req.Header.Set("SOAPAction", "")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrTransport, err)
	}
	defer resp.Body.Close()

	rawBody, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return nil, fmt.Errorf("%w: leer respuesta: %v", domain.ErrTransport, err)
	}

	var envResp soapResponseEnvelope
	if err := xml.Unmarshal(rawBody, &envResp); err != nil {
		return nil, fmt.Errorf("%w: respuesta SOAP ilegible: %v", domain.ErrTransport, err)
	}

	// Un Fault del WS trae el código de error SUNAT en faultcode
	// (ej. "soap-env:Client.2324"); el clasificador decide el veredicto.
	if envResp.Body.Fault != nil {
		return nil, &domsunat.AuthorityFault{
			Code:    faultCode(envResp.Body.Fault),
			Message: envResp.Body.Fault.FaultString,
		}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: HTTP %d del WS SUNAT", domain.ErrTransport, resp.StatusCode)
	}
	return &envResp.Body, nil
}

// faultCode extrae el código numérico si el faultcode lo trae, o el
// faultcode completo como último recurso.
func faultCode(f *soapFault) string {
	code := f.FaultCode
	if idx := strings.LastIndexByte(code, '.'); idx != -1 {
		code = code[idx+1:]
	}
	if code == "" {
		code = f.FaultString
	}
	return code
}
