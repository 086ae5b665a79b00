package billing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/petflowpe/facturacion/internal/application/dto"
	"github.com/petflowpe/facturacion/internal/domain"
	"github.com/petflowpe/facturacion/internal/domain/entity"
	"github.com/petflowpe/facturacion/internal/domain/repository"
	"github.com/petflowpe/facturacion/pkg/logger"
)

// Reintentos locales del asignador ante conflictos transitorios de escritura.
const allocateRetries = 3

// DocumentService fachada de la capa de aplicación para los handlers HTTP.
type DocumentService interface {
	Submit(ctx context.Context, issuerID string, in dto.SubmitDocumentRequest) (*dto.DocumentResponse, error)
	GetDocument(ctx context.Context, issuerID, id string) (*dto.DocumentResponse, error)
	GetDocumentXML(ctx context.Context, issuerID, id string) ([]byte, string, error)
	GetDocumentCDR(ctx context.Context, issuerID, id string) ([]byte, string, error)
	ListAttempts(ctx context.Context, issuerID, id string) ([]*dto.AttemptResponse, error)
	ReconcilePending(ctx context.Context) (*dto.ReconcileResult, error)
}

var _ DocumentService = (*Service)(nil)

// Service implementa DocumentService sobre los repositorios y el gateway.
type Service struct {
	docs         repository.DocumentRepository
	correlatives repository.CorrelativeRepository
	issuers      repository.IssuerRepository
	gateway      *Gateway
	reconcile    ReconcilePolicy
	now          func() time.Time
	log          *logger.Logger
}

// ReconcilePolicy parámetros de la pasada de reconciliación.
type ReconcilePolicy struct {
	MinAge    time.Duration // edad mínima del documento antes de retomarlo
	BatchSize int
}

// NewService construye el servicio de comprobantes.
func NewService(
	docs repository.DocumentRepository,
	correlatives repository.CorrelativeRepository,
	issuers repository.IssuerRepository,
	gateway *Gateway,
	reconcile ReconcilePolicy,
	log *logger.Logger,
) *Service {
	return &Service{
		docs:         docs,
		correlatives: correlatives,
		issuers:      issuers,
		gateway:      gateway,
		reconcile:    reconcile,
		now:          time.Now,
		log:          log,
	}
}

// Submit ejecuta el pipeline completo para un comprobante nuevo:
// validar, asignar correlativo, ensamblar, persistir DRAFT y conducirlo por
// el gateway. Siempre que el documento llegó a persistirse, el error de una
// etapa posterior no lo borra: queda en su último estado y el reconciliador
// lo retoma.
func (s *Service) Submit(ctx context.Context, issuerID string, in dto.SubmitDocumentRequest) (*dto.DocumentResponse, error) {
	policy, ok := PolicyFor(in.DocType)
	if !ok {
		return nil, fmt.Errorf("%w: tipo de documento %q no soportado", domain.ErrInvalidDocumentData, in.DocType)
	}
	if err := ValidateInput(policy, in); err != nil {
		return nil, err
	}

	issuer, err := s.issuers.GetByID(ctx, issuerID)
	if err != nil {
		return nil, fmt.Errorf("consultando emisor: %w", err)
	}
	if issuer == nil {
		return nil, fmt.Errorf("%w: emisor %s no registrado", domain.ErrNotFound, issuerID)
	}

	key := entity.CorrelativeKey{
		IssuerID:      issuerID,
		PointOfSaleID: in.PointOfSaleID,
		DocType:       policy.Code,
		Series:        in.Series,
	}
	correlative, err := s.allocate(ctx, key)
	if err != nil {
		return nil, err
	}

	doc, err := Assemble(policy, issuerID, in, correlative, s.now())
	if err != nil {
		// El correlativo ya consumido queda como hueco; se prefiere un hueco
		// auditable a un número reutilizado.
		return nil, err
	}
	doc.ID = uuid.New().String()
	for _, line := range doc.Lines {
		line.ID = uuid.New().String()
		line.DocumentID = doc.ID
	}

	if err := s.docs.Create(ctx, doc); err != nil {
		if errors.Is(err, domain.ErrDuplicate) {
			// El asignador garantiza unicidad; un duplicado aquí delata un
			// contador corrupto y se reporta, no se pisa.
			s.log.Error().Str("number", doc.Number()).Msg("correlativo duplicado detectado al crear")
		}
		return nil, fmt.Errorf("persistiendo comprobante: %w", err)
	}

	final, procErr := s.gateway.Process(ctx, doc, issuer)
	if final == nil {
		final = doc
	}
	resp := dto.FromDocument(final)
	if procErr != nil && errors.Is(procErr, domain.ErrEncodingFailed) {
		// El rechazo por codificación ya quedó persistido; se devuelve el
		// estado junto con el error para el status HTTP.
		return resp, procErr
	}
	if procErr != nil {
		s.log.Warn().Err(procErr).Str("document_id", doc.ID).Msg("el envío no concluyó, el reconciliador lo retomará")
	}
	return resp, nil
}

// allocate asigna con reintento acotado ante conflictos transitorios.
func (s *Service) allocate(ctx context.Context, key entity.CorrelativeKey) (int64, error) {
	var lastErr error
	for i := 0; i < allocateRetries; i++ {
		n, err := s.correlatives.Allocate(ctx, key)
		if err == nil {
			return n, nil
		}
		if !errors.Is(err, domain.ErrAllocationConflict) {
			return 0, fmt.Errorf("asignando correlativo: %w", err)
		}
		lastErr = err
	}
	return 0, fmt.Errorf("asignando correlativo: %w", lastErr)
}

// GetDocument devuelve el estado actual de un comprobante del emisor.
func (s *Service) GetDocument(ctx context.Context, issuerID, id string) (*dto.DocumentResponse, error) {
	doc, err := s.ownedDocument(ctx, issuerID, id)
	if err != nil {
		return nil, err
	}
	return dto.FromDocument(doc), nil
}

// GetDocumentXML devuelve el ZIP firmado y su nombre de archivo.
func (s *Service) GetDocumentXML(ctx context.Context, issuerID, id string) ([]byte, string, error) {
	doc, err := s.ownedDocument(ctx, issuerID, id)
	if err != nil {
		return nil, "", err
	}
	if len(doc.EncodedZip) == 0 {
		return nil, "", fmt.Errorf("%w: el comprobante aún no fue codificado", domain.ErrNotFound)
	}
	issuer, err := s.issuers.GetByID(ctx, issuerID)
	if err != nil || issuer == nil {
		return nil, "", fmt.Errorf("consultando emisor: %w", domain.ErrNotFound)
	}
	return doc.EncodedZip, s.gateway.encoder.ZipName(doc, issuer), nil
}

// GetDocumentCDR devuelve la constancia de recepción si existe.
func (s *Service) GetDocumentCDR(ctx context.Context, issuerID, id string) ([]byte, string, error) {
	doc, err := s.ownedDocument(ctx, issuerID, id)
	if err != nil {
		return nil, "", err
	}
	if len(doc.CDRZip) == 0 {
		return nil, "", fmt.Errorf("%w: el comprobante no tiene constancia", domain.ErrNotFound)
	}
	return doc.CDRZip, "R-" + doc.Number() + ".zip", nil
}

// ListAttempts devuelve la bitácora de transporte del comprobante, en orden
// cronológico. Auditoría, no participa en los invariantes de estado.
func (s *Service) ListAttempts(ctx context.Context, issuerID, id string) ([]*dto.AttemptResponse, error) {
	if _, err := s.ownedDocument(ctx, issuerID, id); err != nil {
		return nil, err
	}
	attempts, err := s.gateway.attempts.ListByDocument(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("consultando intentos: %w", err)
	}
	return dto.FromAttempts(attempts), nil
}

func (s *Service) ownedDocument(ctx context.Context, issuerID, id string) (*entity.FiscalDocument, error) {
	doc, err := s.docs.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("consultando comprobante: %w", err)
	}
	if doc == nil {
		return nil, domain.ErrNotFound
	}
	if doc.IssuerID != issuerID {
		return nil, domain.ErrForbidden
	}
	return doc, nil
}
