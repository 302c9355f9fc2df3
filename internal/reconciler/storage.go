package reconciler

import (
	"context"

	"fintrack-reconciliation-service/internal/gateway"
	"fintrack-reconciliation-service/internal/models"
)

// SQLStorage adapts the sqlite entity gateway to the Storage interface.
type SQLStorage struct {
	Gateway *gateway.Gateway
}

func (s SQLStorage) FindByOwnerAndKind(ctx context.Context, ownerID int64, kind models.EntityKind) ([]*models.Record, error) {
	return s.Gateway.FindByOwnerAndKind(ctx, ownerID, kind)
}

func (s SQLStorage) Begin(ctx context.Context) (BatchTx, error) {
	tx, err := s.Gateway.Begin(ctx)
	if err != nil {
		return nil, err
	}
	return tx, nil
}
