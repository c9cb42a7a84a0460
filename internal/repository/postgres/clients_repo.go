package postgres

import (
	"context"

	"github.com/baharkarakas/mpesa-backend/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

type clientsRepo struct{ pool *pgxpool.Pool }

func (r *clientsRepo) Create(clientID, secretHash, role string) (models.APIClient, error) {
	id := uuid.NewString()
	_, err := r.pool.Exec(context.Background(),
		`INSERT INTO api_clients(id, client_id, secret_hash, role) VALUES($1,$2,$3,$4)`,
		id, clientID, secretHash, role,
	)
	if err != nil {
		return models.APIClient{}, err
	}
	return r.getByID(id)
}

func (r *clientsRepo) getByID(id string) (models.APIClient, error) {
	var c models.APIClient
	err := r.pool.QueryRow(context.Background(),
		`SELECT id, client_id, secret_hash, role, created_at FROM api_clients WHERE id=$1`, id,
	).Scan(&c.ID, &c.ClientID, &c.SecretHash, &c.Role, &c.CreatedAt)
	return c, err
}

func (r *clientsRepo) GetByClientID(clientID string) (models.APIClient, error) {
	var c models.APIClient
	err := r.pool.QueryRow(context.Background(),
		`SELECT id, client_id, secret_hash, role, created_at FROM api_clients WHERE client_id=$1`, clientID,
	).Scan(&c.ID, &c.ClientID, &c.SecretHash, &c.Role, &c.CreatedAt)
	return c, err
}
