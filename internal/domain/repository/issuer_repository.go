package repository

import (
	"context"

	"github.com/petflowpe/facturacion/internal/domain/entity"
)

// IssuerRepository registro de emisores.
type IssuerRepository interface {
	Create(ctx context.Context, issuer *entity.Issuer) error
	GetByID(ctx context.Context, id string) (*entity.Issuer, error)
	GetByRUC(ctx context.Context, ruc string) (*entity.Issuer, error)
}
