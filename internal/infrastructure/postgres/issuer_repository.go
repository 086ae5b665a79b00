package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/petflowpe/facturacion/internal/domain"
	"github.com/petflowpe/facturacion/internal/domain/entity"
	"github.com/petflowpe/facturacion/internal/domain/repository"
)

var _ repository.IssuerRepository = (*IssuerRepo)(nil)

// IssuerRepo registro de emisores sobre PostgreSQL.
type IssuerRepo struct {
	q Querier
}

// NewIssuerRepository construye el adaptador. Pasar pool o tx (Querier).
func NewIssuerRepository(q Querier) *IssuerRepo {
	return &IssuerRepo{q: q}
}

// Create registra un emisor; el RUC es único.
func (r *IssuerRepo) Create(ctx context.Context, issuer *entity.Issuer) error {
	if issuer.ID == "" {
		issuer.ID = uuid.New().String()
	}
	now := time.Now()
	issuer.CreatedAt, issuer.UpdatedAt = now, now

	query := `
		INSERT INTO issuers (id, ruc, name, trade_name, address, ubigeo, district, province, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	_, err := r.q.Exec(ctx, query,
		issuer.ID, issuer.RUC, issuer.Name, nullIfEmpty(issuer.TradeName),
		nullIfEmpty(issuer.Address), nullIfEmpty(issuer.Ubigeo),
		nullIfEmpty(issuer.District), nullIfEmpty(issuer.Province),
		issuer.CreatedAt, issuer.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: RUC %s ya registrado", domain.ErrDuplicate, issuer.RUC)
		}
		return fmt.Errorf("insert emisor: %w", err)
	}
	return nil
}

// GetByID devuelve el emisor o nil si no existe.
func (r *IssuerRepo) GetByID(ctx context.Context, id string) (*entity.Issuer, error) {
	return r.get(ctx, `WHERE id = $1`, id)
}

// GetByRUC devuelve el emisor o nil si no existe.
func (r *IssuerRepo) GetByRUC(ctx context.Context, ruc string) (*entity.Issuer, error) {
	return r.get(ctx, `WHERE ruc = $1`, ruc)
}

func (r *IssuerRepo) get(ctx context.Context, where string, arg any) (*entity.Issuer, error) {
	query := `
		SELECT id, ruc, name,
		       COALESCE(trade_name, ''), COALESCE(address, ''), COALESCE(ubigeo, ''),
		       COALESCE(district, ''), COALESCE(province, ''),
		       created_at, updated_at
		FROM issuers ` + where
	var i entity.Issuer
	err := r.q.QueryRow(ctx, query, arg).Scan(
		&i.ID, &i.RUC, &i.Name,
		&i.TradeName, &i.Address, &i.Ubigeo,
		&i.District, &i.Province,
		&i.CreatedAt, &i.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get emisor: %w", err)
	}
	return &i, nil
}
