package postgres

import (
	"context"
	"encoding/json"

	"github.com/baharkarakas/mpesa-backend/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

type recordsRepo struct{ pool *pgxpool.Pool }

func (r *recordsRepo) Create(ctx context.Context, collection string, data any) (string, error) {
	payload, err := json.Marshal(data)
	if err != nil {
		return "", err
	}
	id := uuid.NewString()
	_, err = r.pool.Exec(ctx,
		`INSERT INTO records(id, collection, data) VALUES($1,$2,$3)`,
		id, collection, payload,
	)
	return id, err
}

func (r *recordsRepo) List(ctx context.Context, collection string, limit, offset int) ([]models.Record, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, collection, data, created_at
		   FROM records
		  WHERE collection=$1
		  ORDER BY created_at DESC
		  LIMIT $2 OFFSET $3`,
		collection, limit, offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Record
	for rows.Next() {
		var rec models.Record
		if err := rows.Scan(&rec.ID, &rec.Collection, &rec.Data, &rec.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}
