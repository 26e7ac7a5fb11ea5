package repositories

import (
	"context"
	"strconv"

	"agency-crm/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const leadColumns = `id, name, email, phone, company, source, status, notes, estimated_value,
	assigned_to, converted_project_id, created_at, updated_at`

func scanLead(row rowScanner) (*models.Lead, error) {
	var l models.Lead
	err := row.Scan(&l.ID, &l.Name, &l.Email, &l.Phone, &l.Company, &l.Source, &l.Status, &l.Notes,
		&l.EstimatedValue, &l.AssignedTo, &l.ConvertedProjectID, &l.CreatedAt, &l.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &l, nil
}

type LeadFilter struct {
	Status     string
	AssignedTo *int
}

type LeadRepository struct {
	DB *pgxpool.Pool
}

func NewLeadRepository(db *pgxpool.Pool) *LeadRepository {
	return &LeadRepository{DB: db}
}

func (r *LeadRepository) Create(ctx context.Context, l *models.Lead) error {
	err := r.DB.QueryRow(ctx,
		`INSERT INTO leads(name, email, phone, company, source, status, notes, estimated_value, assigned_to)
		 VALUES($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 RETURNING id, created_at, updated_at`,
		l.Name, l.Email, l.Phone, l.Company, l.Source, l.Status, l.Notes, l.EstimatedValue, l.AssignedTo,
	).Scan(&l.ID, &l.CreatedAt, &l.UpdatedAt)
	return mapErr(err)
}

func (r *LeadRepository) Get(ctx context.Context, id int) (*models.Lead, error) {
	l, err := scanLead(r.DB.QueryRow(ctx, `SELECT `+leadColumns+` FROM leads WHERE id=$1`, id))
	return l, mapErr(err)
}

func (r *LeadRepository) List(ctx context.Context, f LeadFilter) ([]*models.Lead, error) {
	query := `SELECT ` + leadColumns + ` FROM leads WHERE 1=1`
	var args []any
	if f.Status != "" {
		args = append(args, f.Status)
		query += ` AND status=$` + strconv.Itoa(len(args))
	}
	if f.AssignedTo != nil {
		args = append(args, *f.AssignedTo)
		query += ` AND assigned_to=$` + strconv.Itoa(len(args))
	}
	query += ` ORDER BY created_at DESC, id DESC`

	rows, err := r.DB.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	leads := []*models.Lead{}
	for rows.Next() {
		l, err := scanLead(rows)
		if err != nil {
			return nil, err
		}
		leads = append(leads, l)
	}
	return leads, rows.Err()
}

func (r *LeadRepository) Update(ctx context.Context, l *models.Lead) error {
	err := r.DB.QueryRow(ctx,
		`UPDATE leads SET name=$1, email=$2, phone=$3, company=$4, source=$5, status=$6, notes=$7,
		        estimated_value=$8, assigned_to=$9, updated_at=NOW()
		 WHERE id=$10
		 RETURNING converted_project_id, created_at, updated_at`,
		l.Name, l.Email, l.Phone, l.Company, l.Source, l.Status, l.Notes, l.EstimatedValue, l.AssignedTo, l.ID,
	).Scan(&l.ConvertedProjectID, &l.CreatedAt, &l.UpdatedAt)
	return mapErr(err)
}

func (r *LeadRepository) Delete(ctx context.Context, id int) error {
	return expectOne(r.DB.Exec(ctx, `DELETE FROM leads WHERE id=$1`, id))
}

// Convert creates the project and marks the lead converted in one transaction.
// A lead that was already converted is left alone and ErrConflict is returned.
func (r *LeadRepository) Convert(ctx context.Context, leadID int, p *models.Project, serviceIDs, userIDs []int) error {
	return inTx(ctx, r.DB, func(tx pgx.Tx) error {
		var converted *int
		err := tx.QueryRow(ctx,
			`SELECT converted_project_id FROM leads WHERE id=$1 FOR UPDATE`, leadID).Scan(&converted)
		if err != nil {
			return mapErr(err)
		}
		if converted != nil {
			return models.ErrConflict
		}

		p.LeadID = &leadID
		if err := createProject(ctx, tx, p, serviceIDs, userIDs); err != nil {
			return err
		}

		_, err = tx.Exec(ctx,
			`UPDATE leads SET status=$1, converted_project_id=$2, updated_at=NOW() WHERE id=$3`,
			models.LeadConverted, p.ID, leadID)
		return mapErr(err)
	})
}
