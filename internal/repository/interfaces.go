package repository

import (
	"context"

	"github.com/baharkarakas/mpesa-backend/internal/models"
)

// Records is the opaque document store the reconciler persists into.
type Records interface {
	Create(ctx context.Context, collection string, data any) (string, error)
	List(ctx context.Context, collection string, limit, offset int) ([]models.Record, error)
}

type APIClients interface {
	Create(clientID, secretHash, role string) (models.APIClient, error)
	GetByClientID(clientID string) (models.APIClient, error)
}

type AuditLogs interface {
	Create(l models.AuditLog) error
}
