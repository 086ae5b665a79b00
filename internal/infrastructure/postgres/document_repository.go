package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/petflowpe/facturacion/internal/domain"
	"github.com/petflowpe/facturacion/internal/domain/entity"
	"github.com/petflowpe/facturacion/internal/domain/repository"
)

var _ repository.DocumentRepository = (*DocumentRepo)(nil)

// DocumentRepo implementación de DocumentRepository sobre PostgreSQL
// (usable con pool o tx).
type DocumentRepo struct {
	q Querier
}

// NewDocumentRepository construye el adaptador. Pasar pool o tx (Querier).
func NewDocumentRepository(q Querier) *DocumentRepo {
	return &DocumentRepo{q: q}
}

const documentColumns = `
	id, issuer_id, pos_id, doc_type, series, correlative,
	customer_doc_type, customer_doc_number, customer_name,
	currency, issued_at,
	ref_doc_type, ref_number, ref_reason,
	taxable_total, exempt_total, unaffected_total, export_total, free_total,
	igv_total, grand_total, legends,
	transport_mode, state, ticket, hash, encoded_zip, cdr_zip,
	last_error_code, last_error_message, attempt_count,
	created_at, updated_at`

// Create persiste la cabecera del comprobante con sus líneas.
func (r *DocumentRepo) Create(ctx context.Context, doc *entity.FiscalDocument) error {
	legends, err := json.Marshal(doc.Legends)
	if err != nil {
		return fmt.Errorf("marshal leyendas: %w", err)
	}
	now := time.Now()
	doc.CreatedAt, doc.UpdatedAt = now, now

	query := `
		INSERT INTO fiscal_documents (` + documentColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6,
		        $7, $8, $9,
		        $10, $11,
		        $12, $13, $14,
		        $15, $16, $17, $18, $19,
		        $20, $21, $22,
		        $23, $24, $25, $26, $27, $28,
		        $29, $30, $31,
		        $32, $33)`
	_, err = r.q.Exec(ctx, query,
		doc.ID, doc.IssuerID, doc.PointOfSaleID, doc.DocType, doc.Series, doc.Correlative,
		nullIfEmpty(doc.CustomerDocType), nullIfEmpty(doc.CustomerDocNumber), nullIfEmpty(doc.CustomerName),
		doc.Currency, doc.IssuedAt,
		nullIfEmpty(doc.RefDocType), nullIfEmpty(doc.RefNumber), nullIfEmpty(doc.RefReason),
		doc.TaxableTotal, doc.ExemptTotal, doc.UnaffectedTotal, doc.ExportTotal, doc.FreeTotal,
		doc.IGVTotal, doc.GrandTotal, legends,
		doc.TransportMode, doc.State, nullIfEmpty(doc.Ticket), nullIfEmpty(doc.Hash), doc.EncodedZip, doc.CDRZip,
		nullIfEmpty(doc.LastErrorCode), nullIfEmpty(doc.LastErrorMessage), doc.AttemptCount,
		doc.CreatedAt, doc.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: comprobante %s ya existe", domain.ErrDuplicate, doc.Number())
		}
		return fmt.Errorf("insert comprobante: %w", err)
	}

	for i, line := range doc.Lines {
		if err := r.createLine(ctx, line, i+1); err != nil {
			return err
		}
	}
	return nil
}

func (r *DocumentRepo) createLine(ctx context.Context, line *entity.DocumentLine, position int) error {
	query := `
		INSERT INTO document_lines
			(id, document_id, position, description, unit_code, quantity, unit_price,
			 affectation_code, tax_rate, tax_base, igv_amount, line_total)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`
	_, err := r.q.Exec(ctx, query,
		line.ID, line.DocumentID, position, line.Description, line.UnitCode,
		line.Quantity, line.UnitPrice, line.AffectationCode,
		line.TaxRate, line.TaxBase, line.IGVAmount, line.LineTotal,
	)
	if err != nil {
		return fmt.Errorf("insert línea: %w", err)
	}
	return nil
}

// GetByID devuelve el comprobante con sus líneas, o nil si no existe.
func (r *DocumentRepo) GetByID(ctx context.Context, id string) (*entity.FiscalDocument, error) {
	query := `SELECT ` + documentColumns + ` FROM fiscal_documents WHERE id = $1`
	doc, err := r.scanDocument(r.q.QueryRow(ctx, query, id))
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, nil
	}
	if err := r.loadLines(ctx, doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// GetByNumber localiza el comprobante por su número fiscal.
func (r *DocumentRepo) GetByNumber(ctx context.Context, issuerID, docType, series string, correlative int64) (*entity.FiscalDocument, error) {
	query := `SELECT ` + documentColumns + ` FROM fiscal_documents
		WHERE issuer_id = $1 AND doc_type = $2 AND series = $3 AND correlative = $4`
	doc, err := r.scanDocument(r.q.QueryRow(ctx, query, issuerID, docType, series, correlative))
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, nil
	}
	if err := r.loadLines(ctx, doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// ListPending devuelve comprobantes en alguno de states con updated_at
// anterior a olderThan, los más antiguos primero. No carga líneas: el
// reconciliador no las necesita.
func (r *DocumentRepo) ListPending(ctx context.Context, states []string, olderThan time.Time, limit int) ([]*entity.FiscalDocument, error) {
	query := `SELECT ` + documentColumns + ` FROM fiscal_documents
		WHERE state = ANY($1) AND updated_at < $2
		ORDER BY updated_at ASC
		LIMIT $3`
	rows, err := r.q.Query(ctx, query, states, olderThan, limit)
	if err != nil {
		return nil, fmt.Errorf("list pendientes: %w", err)
	}
	defer rows.Close()

	var docs []*entity.FiscalDocument
	for rows.Next() {
		doc, err := r.scanDocumentRow(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterar pendientes: %w", err)
	}
	return docs, nil
}

// CompareAndTransition mueve el comprobante de from a to en una sola sentencia
// condicionada al estado actual. RowsAffected == 0 significa que otro worker
// ganó la transición: no es error, el caller relee y decide.
func (r *DocumentRepo) CompareAndTransition(ctx context.Context, id, from, to string, patch repository.TransitionPatch) (bool, error) {
	query := `
		UPDATE fiscal_documents
		SET state              = $3,
		    ticket             = COALESCE($4, ticket),
		    hash               = COALESCE($5, hash),
		    encoded_zip        = COALESCE($6, encoded_zip),
		    cdr_zip            = COALESCE($7, cdr_zip),
		    last_error_code    = COALESCE($8, last_error_code),
		    last_error_message = COALESCE($9, last_error_message),
		    attempt_count      = attempt_count + $10,
		    updated_at         = now()
		WHERE id = $1 AND state = $2`
	increment := 0
	if patch.IncrementAttempt {
		increment = 1
	}
	tag, err := r.q.Exec(ctx, query,
		id, from, to,
		patch.Ticket, patch.Hash,
		nullIfEmptyBytes(patch.EncodedZip), nullIfEmptyBytes(patch.CDRZip),
		patch.LastErrorCode, patch.LastErrorMessage,
		increment,
	)
	if err != nil {
		return false, fmt.Errorf("transición %s -> %s: %w", from, to, err)
	}
	return tag.RowsAffected() > 0, nil
}

func nullIfEmptyBytes(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	return b
}

// ── scan ─────────────────────────────────────────────────────────────────────

func (r *DocumentRepo) scanDocument(row pgx.Row) (*entity.FiscalDocument, error) {
	doc, err := scanInto(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan comprobante: %w", err)
	}
	return doc, nil
}

func (r *DocumentRepo) scanDocumentRow(rows pgx.Rows) (*entity.FiscalDocument, error) {
	doc, err := scanInto(rows)
	if err != nil {
		return nil, fmt.Errorf("scan comprobante: %w", err)
	}
	return doc, nil
}

func scanInto(row pgx.Row) (*entity.FiscalDocument, error) {
	var d entity.FiscalDocument
	var customerDocType, customerDocNumber, customerName *string
	var refDocType, refNumber, refReason *string
	var ticket, hash, lastErrorCode, lastErrorMessage *string
	var legends []byte

	err := row.Scan(
		&d.ID, &d.IssuerID, &d.PointOfSaleID, &d.DocType, &d.Series, &d.Correlative,
		&customerDocType, &customerDocNumber, &customerName,
		&d.Currency, &d.IssuedAt,
		&refDocType, &refNumber, &refReason,
		&d.TaxableTotal, &d.ExemptTotal, &d.UnaffectedTotal, &d.ExportTotal, &d.FreeTotal,
		&d.IGVTotal, &d.GrandTotal, &legends,
		&d.TransportMode, &d.State, &ticket, &hash, &d.EncodedZip, &d.CDRZip,
		&lastErrorCode, &lastErrorMessage, &d.AttemptCount,
		&d.CreatedAt, &d.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	d.CustomerDocType = deref(customerDocType)
	d.CustomerDocNumber = deref(customerDocNumber)
	d.CustomerName = deref(customerName)
	d.RefDocType = deref(refDocType)
	d.RefNumber = deref(refNumber)
	d.RefReason = deref(refReason)
	d.Ticket = deref(ticket)
	d.Hash = deref(hash)
	d.LastErrorCode = deref(lastErrorCode)
	d.LastErrorMessage = deref(lastErrorMessage)

	if len(legends) > 0 {
		if err := json.Unmarshal(legends, &d.Legends); err != nil {
			return nil, fmt.Errorf("unmarshal leyendas: %w", err)
		}
	}
	return &d, nil
}

func (r *DocumentRepo) loadLines(ctx context.Context, doc *entity.FiscalDocument) error {
	query := `
		SELECT id, document_id, description, unit_code, quantity, unit_price,
		       affectation_code, tax_rate, tax_base, igv_amount, line_total
		FROM document_lines
		WHERE document_id = $1
		ORDER BY position ASC`
	rows, err := r.q.Query(ctx, query, doc.ID)
	if err != nil {
		return fmt.Errorf("query líneas: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var l entity.DocumentLine
		if err := rows.Scan(
			&l.ID, &l.DocumentID, &l.Description, &l.UnitCode, &l.Quantity, &l.UnitPrice,
			&l.AffectationCode, &l.TaxRate, &l.TaxBase, &l.IGVAmount, &l.LineTotal,
		); err != nil {
			return fmt.Errorf("scan línea: %w", err)
		}
		doc.Lines = append(doc.Lines, &l)
	}
	return rows.Err()
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
