package repositories

import (
	"context"

	"agency-crm/internal/models"

	"github.com/jackc/pgx/v5/pgxpool"
)

const serviceColumns = `id, name, description, unit_price, vat_percent, active, created_at, updated_at`

func scanService(row rowScanner) (*models.Service, error) {
	var s models.Service
	err := row.Scan(&s.ID, &s.Name, &s.Description, &s.UnitPrice, &s.VATPercent, &s.Active, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// ServiceRepository stores the service catalog
type ServiceRepository struct {
	DB *pgxpool.Pool
}

func NewServiceRepository(db *pgxpool.Pool) *ServiceRepository {
	return &ServiceRepository{DB: db}
}

func (r *ServiceRepository) Create(ctx context.Context, s *models.Service) error {
	err := r.DB.QueryRow(ctx,
		`INSERT INTO services(name, description, unit_price, vat_percent, active)
		 VALUES($1, $2, $3, $4, $5)
		 RETURNING id, created_at, updated_at`,
		s.Name, s.Description, s.UnitPrice, s.VATPercent, s.Active,
	).Scan(&s.ID, &s.CreatedAt, &s.UpdatedAt)
	return mapErr(err)
}

func (r *ServiceRepository) Get(ctx context.Context, id int) (*models.Service, error) {
	s, err := scanService(r.DB.QueryRow(ctx, `SELECT `+serviceColumns+` FROM services WHERE id=$1`, id))
	return s, mapErr(err)
}

// List returns the catalog ordered by name, optionally only the active entries
func (r *ServiceRepository) List(ctx context.Context, activeOnly bool) ([]*models.Service, error) {
	rows, err := r.DB.Query(ctx,
		`SELECT `+serviceColumns+` FROM services WHERE (NOT $1 OR active) ORDER BY name, id`, activeOnly)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	services := []*models.Service{}
	for rows.Next() {
		s, err := scanService(rows)
		if err != nil {
			return nil, err
		}
		services = append(services, s)
	}
	return services, rows.Err()
}

func (r *ServiceRepository) Update(ctx context.Context, s *models.Service) error {
	err := r.DB.QueryRow(ctx,
		`UPDATE services SET name=$1, description=$2, unit_price=$3, vat_percent=$4, active=$5, updated_at=NOW()
		 WHERE id=$6
		 RETURNING created_at, updated_at`,
		s.Name, s.Description, s.UnitPrice, s.VATPercent, s.Active, s.ID,
	).Scan(&s.CreatedAt, &s.UpdatedAt)
	return mapErr(err)
}

// Delete fails with ErrConflict while a project still references the service
func (r *ServiceRepository) Delete(ctx context.Context, id int) error {
	return expectOne(r.DB.Exec(ctx, `DELETE FROM services WHERE id=$1`, id))
}
