package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/petflowpe/facturacion/internal/application/dto"
	"github.com/petflowpe/facturacion/internal/domain"
	apphttp "github.com/petflowpe/facturacion/internal/interfaces/http"
)

// stubService implementa billing.DocumentService con funciones intercambiables.
type stubService struct {
	submit    func(ctx context.Context, issuerID string, in dto.SubmitDocumentRequest) (*dto.DocumentResponse, error)
	get       func(ctx context.Context, issuerID, id string) (*dto.DocumentResponse, error)
	getXML    func(ctx context.Context, issuerID, id string) ([]byte, string, error)
	getCDR    func(ctx context.Context, issuerID, id string) ([]byte, string, error)
	attempts  func(ctx context.Context, issuerID, id string) ([]*dto.AttemptResponse, error)
	reconcile func(ctx context.Context) (*dto.ReconcileResult, error)
}

func (s *stubService) Submit(ctx context.Context, issuerID string, in dto.SubmitDocumentRequest) (*dto.DocumentResponse, error) {
	return s.submit(ctx, issuerID, in)
}

func (s *stubService) GetDocument(ctx context.Context, issuerID, id string) (*dto.DocumentResponse, error) {
	return s.get(ctx, issuerID, id)
}

func (s *stubService) GetDocumentXML(ctx context.Context, issuerID, id string) ([]byte, string, error) {
	return s.getXML(ctx, issuerID, id)
}

func (s *stubService) GetDocumentCDR(ctx context.Context, issuerID, id string) ([]byte, string, error) {
	return s.getCDR(ctx, issuerID, id)
}

func (s *stubService) ListAttempts(ctx context.Context, issuerID, id string) ([]*dto.AttemptResponse, error) {
	return s.attempts(ctx, issuerID, id)
}

func (s *stubService) ReconcilePending(ctx context.Context) (*dto.ReconcileResult, error) {
	return s.reconcile(ctx)
}

func buildDocumentsApp(svc *stubService) *fiber.App {
	app := fiber.New()
	apphttp.Router(app, apphttp.RouterDeps{Documents: svc, JWTSecret: testJWTSecret})
	return app
}

func jsonRequest(t *testing.T, app *fiber.App, method, path string, payload any) *http.Response {
	t.Helper()
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		require.NoError(t, err)
		body = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, body)
	req.Header.Set("Authorization", testToken(t))
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func TestSubmitRetorna201ConElComprobante(t *testing.T) {
	var gotIssuer string
	svc := &stubService{
		submit: func(_ context.Context, issuerID string, in dto.SubmitDocumentRequest) (*dto.DocumentResponse, error) {
			gotIssuer = issuerID
			return &dto.DocumentResponse{ID: "doc-1", Number: "F001-1", State: "ACCEPTED", DocType: in.DocType}, nil
		},
	}
	app := buildDocumentsApp(svc)

	resp := jsonRequest(t, app, http.MethodPost, "/api/documents/", dto.SubmitDocumentRequest{DocType: "01", Series: "F001"})
	defer resp.Body.Close()

	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, testIssuerID, gotIssuer, "el emisor debe salir del token, no del payload")

	var body dto.DocumentResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "F001-1", body.Number)
	assert.Equal(t, "ACCEPTED", body.State)
}

func TestSubmitSinTokenRetorna401(t *testing.T) {
	app := buildDocumentsApp(&stubService{})
	req := httptest.NewRequest(http.MethodPost, "/api/documents/", bytes.NewReader([]byte("{}")))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestSubmitConDatosInvalidosRetorna400(t *testing.T) {
	svc := &stubService{
		submit: func(context.Context, string, dto.SubmitDocumentRequest) (*dto.DocumentResponse, error) {
			return nil, domain.ErrInvalidDocumentData
		},
	}
	app := buildDocumentsApp(svc)

	resp := jsonRequest(t, app, http.MethodPost, "/api/documents/", dto.SubmitDocumentRequest{DocType: "XX"})
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	raw, _ := io.ReadAll(resp.Body)
	assert.Contains(t, string(raw), "VALIDATION")
}

func TestSubmitConCodificacionFallidaRetorna422ConElDocumento(t *testing.T) {
	svc := &stubService{
		submit: func(context.Context, string, dto.SubmitDocumentRequest) (*dto.DocumentResponse, error) {
			return &dto.DocumentResponse{ID: "doc-1", Number: "F001-7", State: "REJECTED"}, domain.ErrEncodingFailed
		},
	}
	app := buildDocumentsApp(svc)

	resp := jsonRequest(t, app, http.MethodPost, "/api/documents/", dto.SubmitDocumentRequest{DocType: "01"})
	defer resp.Body.Close()

	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	var body dto.DocumentResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "F001-7", body.Number, "el caller debe ver el número ya consumido")
	assert.Equal(t, "REJECTED", body.State)
}

func TestGetByIDMapeaErroresDeDominio(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"no encontrado", domain.ErrNotFound, http.StatusNotFound},
		{"otro emisor", domain.ErrForbidden, http.StatusForbidden},
		{"falla interna", assert.AnError, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc := &stubService{
				get: func(context.Context, string, string) (*dto.DocumentResponse, error) {
					return nil, tc.err
				},
			}
			app := buildDocumentsApp(svc)
			resp := jsonRequest(t, app, http.MethodGet, "/api/documents/doc-1", nil)
			defer resp.Body.Close()
			assert.Equal(t, tc.want, resp.StatusCode)
		})
	}
}

func TestGetXMLDescargaElZip(t *testing.T) {
	svc := &stubService{
		getXML: func(_ context.Context, _, id string) ([]byte, string, error) {
			return []byte("zip-bytes"), "20131312955-01-F001-1.zip", nil
		},
	}
	app := buildDocumentsApp(svc)

	resp := jsonRequest(t, app, http.MethodGet, "/api/documents/doc-1/xml", nil)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/zip", resp.Header.Get("Content-Type"))
	assert.Contains(t, resp.Header.Get("Content-Disposition"), "20131312955-01-F001-1.zip")

	raw, _ := io.ReadAll(resp.Body)
	assert.Equal(t, "zip-bytes", string(raw))
}

func TestGetCDRInexistenteRetorna404(t *testing.T) {
	svc := &stubService{
		getCDR: func(context.Context, string, string) ([]byte, string, error) {
			return nil, "", domain.ErrNotFound
		},
	}
	app := buildDocumentsApp(svc)

	resp := jsonRequest(t, app, http.MethodGet, "/api/documents/doc-1/cdr", nil)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAttemptsDevuelveLaBitacora(t *testing.T) {
	svc := &stubService{
		attempts: func(context.Context, string, string) ([]*dto.AttemptResponse, error) {
			return []*dto.AttemptResponse{
				{Operation: "send", Outcome: "transport_error"},
				{Operation: "send", Outcome: "accepted"},
			}, nil
		},
	}
	app := buildDocumentsApp(svc)

	resp := jsonRequest(t, app, http.MethodGet, "/api/documents/doc-1/attempts", nil)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body []dto.AttemptResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Len(t, body, 2)
	assert.Equal(t, "accepted", body[1].Outcome)
}

func TestReconcileDevuelveElResumen(t *testing.T) {
	svc := &stubService{
		reconcile: func(context.Context) (*dto.ReconcileResult, error) {
			return &dto.ReconcileResult{Scanned: 3, Accepted: 2, Pending: 1}, nil
		},
	}
	app := buildDocumentsApp(svc)

	resp := jsonRequest(t, app, http.MethodPost, "/api/documents/reconcile", nil)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body dto.ReconcileResult
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, 3, body.Scanned)
	assert.Equal(t, 2, body.Accepted)
}
