package postgres

import (
	repo "github.com/baharkarakas/mpesa-backend/internal/repository"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Repositories struct {
	Records   repo.Records
	Clients   repo.APIClients
	AuditLogs repo.AuditLogs
}

func NewRepositories(pool *pgxpool.Pool) Repositories {
	return Repositories{
		Records:   &recordsRepo{pool},
		Clients:   &clientsRepo{pool},
		AuditLogs: &auditLogsRepo{pool},
	}
}
