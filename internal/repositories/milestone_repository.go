package repositories

import (
	"context"

	"agency-crm/internal/models"

	"github.com/jackc/pgx/v5/pgxpool"
)

const milestoneColumns = `id, project_id, title, description, due_date, completed, created_at, updated_at`

func scanMilestone(row rowScanner) (*models.Milestone, error) {
	var m models.Milestone
	err := row.Scan(&m.ID, &m.ProjectID, &m.Title, &m.Description, &m.DueDate, &m.Completed,
		&m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

type MilestoneRepository struct {
	DB *pgxpool.Pool
}

func NewMilestoneRepository(db *pgxpool.Pool) *MilestoneRepository {
	return &MilestoneRepository{DB: db}
}

func (r *MilestoneRepository) Create(ctx context.Context, m *models.Milestone) error {
	err := r.DB.QueryRow(ctx,
		`INSERT INTO milestones(project_id, title, description, due_date, completed)
		 VALUES($1, $2, $3, $4, $5)
		 RETURNING id, created_at, updated_at`,
		m.ProjectID, m.Title, m.Description, m.DueDate, m.Completed,
	).Scan(&m.ID, &m.CreatedAt, &m.UpdatedAt)
	return mapErr(err)
}

func (r *MilestoneRepository) Get(ctx context.Context, id int) (*models.Milestone, error) {
	m, err := scanMilestone(r.DB.QueryRow(ctx, `SELECT `+milestoneColumns+` FROM milestones WHERE id=$1`, id))
	return m, mapErr(err)
}

func (r *MilestoneRepository) List(ctx context.Context, projectID int) ([]*models.Milestone, error) {
	rows, err := r.DB.Query(ctx,
		`SELECT `+milestoneColumns+` FROM milestones WHERE project_id=$1 ORDER BY due_date, id`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	milestones := []*models.Milestone{}
	for rows.Next() {
		m, err := scanMilestone(rows)
		if err != nil {
			return nil, err
		}
		milestones = append(milestones, m)
	}
	return milestones, rows.Err()
}

func (r *MilestoneRepository) Update(ctx context.Context, m *models.Milestone) error {
	err := r.DB.QueryRow(ctx,
		`UPDATE milestones SET title=$1, description=$2, due_date=$3, completed=$4, updated_at=NOW()
		 WHERE id=$5
		 RETURNING project_id, created_at, updated_at`,
		m.Title, m.Description, m.DueDate, m.Completed, m.ID,
	).Scan(&m.ProjectID, &m.CreatedAt, &m.UpdatedAt)
	return mapErr(err)
}

func (r *MilestoneRepository) Delete(ctx context.Context, id int) error {
	return expectOne(r.DB.Exec(ctx, `DELETE FROM milestones WHERE id=$1`, id))
}

// DueBetween returns milestones due inside [from, to] as calendar events
func (r *MilestoneRepository) DueBetween(ctx context.Context, from, to string) ([]*models.CalendarEvent, error) {
	rows, err := r.DB.Query(ctx,
		`SELECT m.id, m.title, m.due_date, m.completed, p.id, p.name
		 FROM milestones m JOIN projects p ON p.id = m.project_id
		 WHERE m.due_date BETWEEN $1::date AND $2::date
		 ORDER BY m.due_date, m.id`, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	events := []*models.CalendarEvent{}
	for rows.Next() {
		e := &models.CalendarEvent{Kind: models.EventMilestone}
		if err := rows.Scan(&e.ReferenceID, &e.Title, &e.Start, &e.Done, &e.ProjectID, &e.ProjectName); err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// ProjectDatesBetween returns project start and end dates inside [from, to]
func (r *MilestoneRepository) ProjectDatesBetween(ctx context.Context, from, to string) ([]*models.CalendarEvent, error) {
	rows, err := r.DB.Query(ctx,
		`SELECT id, name, 'project_start', start_date, status = 'completed'
		 FROM projects WHERE start_date BETWEEN $1::date AND $2::date
		 UNION ALL
		 SELECT id, name, 'project_end', end_date, status = 'completed'
		 FROM projects WHERE end_date BETWEEN $1::date AND $2::date
		 ORDER BY 4, 1`, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	events := []*models.CalendarEvent{}
	for rows.Next() {
		e := &models.CalendarEvent{}
		if err := rows.Scan(&e.ProjectID, &e.ProjectName, &e.Kind, &e.Start, &e.Done); err != nil {
			return nil, err
		}
		e.ReferenceID = e.ProjectID
		e.Title = e.ProjectName
		events = append(events, e)
	}
	return events, rows.Err()
}
