package billing

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/petflowpe/facturacion/internal/domain"
	"github.com/petflowpe/facturacion/internal/domain/entity"
	"github.com/petflowpe/facturacion/internal/domain/repository"
	domsunat "github.com/petflowpe/facturacion/internal/domain/sunat"
	"github.com/petflowpe/facturacion/pkg/logger"
)

func quietLogger() *logger.Logger {
	return logger.New(logger.Config{Env: "production", Level: "error"})
}

// ── almacén de documentos en memoria ─────────────────────────────────────────

// memDocs implementa DocumentRepository con la misma semántica CAS que la
// implementación en postgres, y registra la historia de transiciones para
// verificar monotonía en los tests.
type memDocs struct {
	mu      sync.Mutex
	docs    map[string]*entity.FiscalDocument
	history map[string][]string // id -> secuencia de estados
}

func newMemDocs() *memDocs {
	return &memDocs{
		docs:    make(map[string]*entity.FiscalDocument),
		history: make(map[string][]string),
	}
}

func (m *memDocs) Create(_ context.Context, doc *entity.FiscalDocument) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, d := range m.docs {
		if d.IssuerID == doc.IssuerID && d.DocType == doc.DocType &&
			d.Series == doc.Series && d.Correlative == doc.Correlative {
			return domain.ErrDuplicate
		}
	}
	clone := *doc
	now := time.Now()
	clone.CreatedAt, clone.UpdatedAt = now, now
	m.docs[doc.ID] = &clone
	m.history[doc.ID] = []string{doc.State}
	return nil
}

func (m *memDocs) GetByID(_ context.Context, id string) (*entity.FiscalDocument, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.docs[id]
	if !ok {
		return nil, nil
	}
	clone := *d
	return &clone, nil
}

func (m *memDocs) GetByNumber(_ context.Context, issuerID, docType, series string, correlative int64) (*entity.FiscalDocument, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, d := range m.docs {
		if d.IssuerID == issuerID && d.DocType == docType && d.Series == series && d.Correlative == correlative {
			clone := *d
			return &clone, nil
		}
	}
	return nil, nil
}

func (m *memDocs) ListPending(_ context.Context, states []string, olderThan time.Time, limit int) ([]*entity.FiscalDocument, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*entity.FiscalDocument
	for _, d := range m.docs {
		if !d.UpdatedAt.Before(olderThan) {
			continue
		}
		for _, s := range states {
			if d.State == s {
				clone := *d
				out = append(out, &clone)
				break
			}
		}
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (m *memDocs) CompareAndTransition(_ context.Context, id, from, to string, patch repository.TransitionPatch) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.docs[id]
	if !ok {
		return false, domain.ErrNotFound
	}
	if d.State != from {
		return false, nil
	}
	d.State = to
	if patch.Ticket != nil {
		d.Ticket = *patch.Ticket
	}
	if patch.Hash != nil {
		d.Hash = *patch.Hash
	}
	if len(patch.EncodedZip) > 0 {
		d.EncodedZip = patch.EncodedZip
	}
	if len(patch.CDRZip) > 0 {
		d.CDRZip = patch.CDRZip
	}
	if patch.LastErrorCode != nil {
		d.LastErrorCode = *patch.LastErrorCode
	}
	if patch.LastErrorMessage != nil {
		d.LastErrorMessage = *patch.LastErrorMessage
	}
	if patch.IncrementAttempt {
		d.AttemptCount++
	}
	d.UpdatedAt = time.Now()
	m.history[id] = append(m.history[id], to)
	return true, nil
}

// stateHistory copia de la secuencia de estados observada para un documento.
func (m *memDocs) stateHistory(id string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.history[id]...)
}

// age retrocede updated_at para que ListPending considere el documento.
func (m *memDocs) age(id string, d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if doc, ok := m.docs[id]; ok {
		doc.UpdatedAt = doc.UpdatedAt.Add(-d)
	}
}

// ── asignador en memoria ─────────────────────────────────────────────────────

type memAllocator struct {
	mu       sync.Mutex
	counters map[entity.CorrelativeKey]int64
	failures int // fallos transitorios antes de asignar, para probar el reintento
}

func newMemAllocator() *memAllocator {
	return &memAllocator{counters: make(map[entity.CorrelativeKey]int64)}
}

func (m *memAllocator) Allocate(_ context.Context, key entity.CorrelativeKey) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failures > 0 {
		m.failures--
		return 0, domain.ErrAllocationConflict
	}
	m.counters[key]++
	return m.counters[key], nil
}

func (m *memAllocator) Peek(_ context.Context, key entity.CorrelativeKey) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counters[key], nil
}

// ── bitácora y emisores en memoria ───────────────────────────────────────────

type memAttempts struct {
	mu       sync.Mutex
	attempts []*entity.SubmissionAttempt
}

func (m *memAttempts) Record(_ context.Context, a *entity.SubmissionAttempt) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.attempts = append(m.attempts, a)
	return nil
}

func (m *memAttempts) ListByDocument(_ context.Context, documentID string) ([]*entity.SubmissionAttempt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*entity.SubmissionAttempt
	for _, a := range m.attempts {
		if a.DocumentID == documentID {
			out = append(out, a)
		}
	}
	return out, nil
}

type memIssuers struct {
	mu      sync.Mutex
	issuers map[string]*entity.Issuer
}

func newMemIssuers(list ...*entity.Issuer) *memIssuers {
	m := &memIssuers{issuers: make(map[string]*entity.Issuer)}
	for _, i := range list {
		m.issuers[i.ID] = i
	}
	return m
}

func (m *memIssuers) Create(_ context.Context, i *entity.Issuer) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.issuers[i.ID] = i
	return nil
}

func (m *memIssuers) GetByID(_ context.Context, id string) (*entity.Issuer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.issuers[id], nil
}

func (m *memIssuers) GetByRUC(_ context.Context, ruc string) (*entity.Issuer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, i := range m.issuers {
		if i.RUC == ruc {
			return i, nil
		}
	}
	return nil, nil
}

// ── codificador y transporte guionados ───────────────────────────────────────

// fakeEncoder codificador determinístico; failEncode fuerza el fallo permanente.
type fakeEncoder struct {
	mu         sync.Mutex
	encodes    int
	failEncode bool
}

func (f *fakeEncoder) Encode(_ context.Context, doc *entity.FiscalDocument, issuer *entity.Issuer) (*EncodedDocument, error) {
	f.mu.Lock()
	f.encodes++
	f.mu.Unlock()
	if f.failEncode {
		return nil, fmt.Errorf("%w: línea sin representación UBL", domain.ErrEncodingFailed)
	}
	xml := []byte("<Invoice>" + doc.Number() + "</Invoice>")
	return &EncodedDocument{
		XML:     xml,
		Zip:     append([]byte("zip:"), xml...),
		ZipName: f.ZipName(doc, issuer),
		Hash:    "hash-" + doc.Number(),
	}, nil
}

func (f *fakeEncoder) ZipName(doc *entity.FiscalDocument, issuer *entity.Issuer) string {
	return fmt.Sprintf("%s-%s-%s-%d.zip", issuer.RUC, doc.DocType, doc.Series, doc.Correlative)
}

// ParseCDR interpreta el payload guionado "cdr:<code>:<desc>".
func (f *fakeEncoder) ParseCDR(cdrZip []byte) (*domsunat.RawResponse, error) {
	parts := strings.SplitN(string(cdrZip), ":", 3)
	if len(parts) != 3 || parts[0] != "cdr" {
		return nil, fmt.Errorf("constancia ilegible")
	}
	return &domsunat.RawResponse{Code: parts[1], Description: parts[2]}, nil
}

func (f *fakeEncoder) encodeCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.encodes
}

func cdrPayload(code, desc string) []byte {
	return []byte("cdr:" + code + ":" + desc)
}

// sendScript una respuesta guionada del transporte.
type sendScript struct {
	result *SendResult
	err    error
}

type pollScript struct {
	result *PollResult
	err    error
}

// fakeTransport reproduce un guion de respuestas en orden; agotado el guion
// repite la última entrada.
type fakeTransport struct {
	mu        sync.Mutex
	sends     []sendScript
	polls     []pollScript
	sendCalls int
	pollCalls int
}

func (f *fakeTransport) Send(_ context.Context, _ string, _ []byte, _ string) (*SendResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sendCalls++
	s := f.sends[min(f.sendCalls-1, len(f.sends)-1)]
	return s.result, s.err
}

func (f *fakeTransport) PollStatus(_ context.Context, _ string) (*PollResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pollCalls++
	p := f.polls[min(f.pollCalls-1, len(f.polls)-1)]
	return p.result, p.err
}

func (f *fakeTransport) calls() (sends, polls int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sendCalls, f.pollCalls
}
