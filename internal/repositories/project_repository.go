package repositories

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"agency-crm/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// rowScanner is satisfied by pgx.Row and pgx.Rows
type rowScanner interface {
	Scan(dest ...any) error
}

const projectColumns = `id, name, alias, client_name, client_email, client_tax_id, description, status,
	start_date, end_date, total_invoiced, lead_id, created_by, created_at, updated_at`

func scanProject(row rowScanner) (*models.Project, error) {
	var p models.Project
	err := row.Scan(&p.ID, &p.Name, &p.Alias, &p.ClientName, &p.ClientEmail, &p.ClientTaxID,
		&p.Description, &p.Status, &p.StartDate, &p.EndDate, &p.TotalInvoiced, &p.LeadID,
		&p.CreatedBy, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

type ProjectFilter struct {
	Status string
	Search string
}

type ProjectRepository struct {
	DB *pgxpool.Pool
}

func NewProjectRepository(db *pgxpool.Pool) *ProjectRepository {
	return &ProjectRepository{DB: db}
}

// Create inserts the project, copies the selected catalog services onto it and links
// its members, all in one transaction
func (r *ProjectRepository) Create(ctx context.Context, p *models.Project, serviceIDs, userIDs []int) error {
	return inTx(ctx, r.DB, func(tx pgx.Tx) error {
		return createProject(ctx, tx, p, serviceIDs, userIDs)
	})
}

func createProject(ctx context.Context, q querier, p *models.Project, serviceIDs, userIDs []int) error {
	err := q.QueryRow(ctx,
		`INSERT INTO projects(name, alias, client_name, client_email, client_tax_id, description, status,
		                      start_date, end_date, lead_id, created_by)
		 VALUES($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		 RETURNING id, total_invoiced, created_at, updated_at`,
		p.Name, p.Alias, p.ClientName, p.ClientEmail, p.ClientTaxID, p.Description, p.Status,
		p.StartDate, p.EndDate, p.LeadID, p.CreatedBy,
	).Scan(&p.ID, &p.TotalInvoiced, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return mapErr(err)
	}

	if len(serviceIDs) > 0 {
		tag, err := q.Exec(ctx,
			`INSERT INTO project_services(project_id, service_id, name, description, unit_price, quantity, vat_percent)
			 SELECT $1, id, name, description, unit_price, 1, vat_percent
			 FROM services WHERE id = ANY($2) AND active
			 ORDER BY id`,
			p.ID, serviceIDs)
		if err != nil {
			return mapErr(err)
		}
		if int(tag.RowsAffected()) != len(serviceIDs) {
			return models.ErrInvalidInput
		}
	}

	return insertMembers(ctx, q, p.ID, userIDs)
}

func insertMembers(ctx context.Context, q querier, projectID int, userIDs []int) error {
	if len(userIDs) == 0 {
		return nil
	}
	_, err := q.Exec(ctx,
		`INSERT INTO project_members(project_id, user_id)
		 SELECT $1, u FROM unnest($2::int[]) AS u
		 ON CONFLICT DO NOTHING`,
		projectID, userIDs)
	return mapErr(err)
}

func (r *ProjectRepository) Get(ctx context.Context, id int) (*models.Project, error) {
	p, err := scanProject(r.DB.QueryRow(ctx, `SELECT `+projectColumns+` FROM projects WHERE id=$1`, id))
	return p, mapErr(err)
}

func (r *ProjectRepository) List(ctx context.Context, f ProjectFilter) ([]*models.Project, error) {
	query := `SELECT ` + projectColumns + ` FROM projects WHERE 1=1`
	var args []any
	if f.Status != "" {
		args = append(args, f.Status)
		query += ` AND status=$` + strconv.Itoa(len(args))
	}
	if f.Search != "" {
		args = append(args, "%"+f.Search+"%")
		n := strconv.Itoa(len(args))
		query += ` AND (name ILIKE $` + n + ` OR alias ILIKE $` + n + ` OR client_name ILIKE $` + n + `)`
	}
	query += ` ORDER BY created_at DESC, id DESC`

	rows, err := r.DB.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	projects := []*models.Project{}
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		projects = append(projects, p)
	}
	return projects, rows.Err()
}

// Update changes the descriptive fields. total_invoiced is owned by billing. The alias
// only changes while the project has no budgets, invoices or payments; otherwise
// ErrConflict is returned.
func (r *ProjectRepository) Update(ctx context.Context, p *models.Project) error {
	err := r.DB.QueryRow(ctx,
		`UPDATE projects SET name=$1, alias=$2, client_name=$3, client_email=$4, client_tax_id=$5,
		        description=$6, status=$7, start_date=$8, end_date=$9, updated_at=NOW()
		 WHERE id=$10
		   AND (alias=$2 OR NOT (EXISTS(SELECT 1 FROM budgets WHERE project_id=$10)
		                      OR EXISTS(SELECT 1 FROM invoices WHERE project_id=$10)
		                      OR EXISTS(SELECT 1 FROM payments WHERE project_id=$10)))
		 RETURNING total_invoiced, lead_id, created_by, created_at, updated_at`,
		p.Name, p.Alias, p.ClientName, p.ClientEmail, p.ClientTaxID, p.Description, p.Status,
		p.StartDate, p.EndDate, p.ID,
	).Scan(&p.TotalInvoiced, &p.LeadID, &p.CreatedBy, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		var exists bool
		if err := r.DB.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM projects WHERE id=$1)`, p.ID).Scan(&exists); err != nil {
			return err
		}
		if exists {
			return fmt.Errorf("%w: alias is used by issued documents", models.ErrConflict)
		}
	}
	return mapErr(err)
}

func (r *ProjectRepository) Delete(ctx context.Context, id int) error {
	return expectOne(r.DB.Exec(ctx, `DELETE FROM projects WHERE id=$1`, id))
}

func (r *ProjectRepository) Members(ctx context.Context, projectID int) ([]*models.ProjectMember, error) {
	rows, err := r.DB.Query(ctx,
		`SELECT u.id, u.name, u.email, u.role
		 FROM project_members pm JOIN users u ON u.id = pm.user_id
		 WHERE pm.project_id=$1
		 ORDER BY u.name`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	members := []*models.ProjectMember{}
	for rows.Next() {
		var m models.ProjectMember
		if err := rows.Scan(&m.UserID, &m.Name, &m.Email, &m.Role); err != nil {
			return nil, err
		}
		members = append(members, &m)
	}
	return members, rows.Err()
}

// SetMembers replaces the member set of a project
func (r *ProjectRepository) SetMembers(ctx context.Context, projectID int, userIDs []int) error {
	return inTx(ctx, r.DB, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM project_members WHERE project_id=$1`, projectID); err != nil {
			return err
		}
		return insertMembers(ctx, tx, projectID, userIDs)
	})
}
