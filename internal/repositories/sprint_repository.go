package repositories

import (
	"context"

	"agency-crm/internal/models"

	"github.com/jackc/pgx/v5/pgxpool"
)

const sprintColumns = `id, project_id, name, goal, start_date, end_date, status, created_at, updated_at`

func scanSprint(row rowScanner) (*models.Sprint, error) {
	var s models.Sprint
	err := row.Scan(&s.ID, &s.ProjectID, &s.Name, &s.Goal, &s.StartDate, &s.EndDate, &s.Status,
		&s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

type SprintRepository struct {
	DB *pgxpool.Pool
}

func NewSprintRepository(db *pgxpool.Pool) *SprintRepository {
	return &SprintRepository{DB: db}
}

func (r *SprintRepository) Create(ctx context.Context, s *models.Sprint) error {
	err := r.DB.QueryRow(ctx,
		`INSERT INTO sprints(project_id, name, goal, start_date, end_date, status)
		 VALUES($1, $2, $3, $4, $5, $6)
		 RETURNING id, created_at, updated_at`,
		s.ProjectID, s.Name, s.Goal, s.StartDate, s.EndDate, s.Status,
	).Scan(&s.ID, &s.CreatedAt, &s.UpdatedAt)
	return mapErr(err)
}

func (r *SprintRepository) Get(ctx context.Context, id int) (*models.Sprint, error) {
	s, err := scanSprint(r.DB.QueryRow(ctx, `SELECT `+sprintColumns+` FROM sprints WHERE id=$1`, id))
	return s, mapErr(err)
}

func (r *SprintRepository) List(ctx context.Context, projectID int) ([]*models.Sprint, error) {
	rows, err := r.DB.Query(ctx,
		`SELECT `+sprintColumns+` FROM sprints WHERE project_id=$1 ORDER BY start_date, id`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sprints := []*models.Sprint{}
	for rows.Next() {
		s, err := scanSprint(rows)
		if err != nil {
			return nil, err
		}
		sprints = append(sprints, s)
	}
	return sprints, rows.Err()
}

func (r *SprintRepository) Update(ctx context.Context, s *models.Sprint) error {
	err := r.DB.QueryRow(ctx,
		`UPDATE sprints SET name=$1, goal=$2, start_date=$3, end_date=$4, status=$5, updated_at=NOW()
		 WHERE id=$6
		 RETURNING project_id, created_at, updated_at`,
		s.Name, s.Goal, s.StartDate, s.EndDate, s.Status, s.ID,
	).Scan(&s.ProjectID, &s.CreatedAt, &s.UpdatedAt)
	return mapErr(err)
}

// Delete removes the sprint; its tasks fall back to the backlog
func (r *SprintRepository) Delete(ctx context.Context, id int) error {
	return expectOne(r.DB.Exec(ctx, `DELETE FROM sprints WHERE id=$1`, id))
}

// Overlapping returns sprints whose window intersects [from, to]
func (r *SprintRepository) Overlapping(ctx context.Context, from, to string) ([]*models.CalendarEvent, error) {
	rows, err := r.DB.Query(ctx,
		`SELECT s.id, s.name, s.start_date, s.end_date, s.status = 'closed', p.id, p.name
		 FROM sprints s JOIN projects p ON p.id = s.project_id
		 WHERE s.start_date <= $2::date AND s.end_date >= $1::date
		 ORDER BY s.start_date, s.id`, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	events := []*models.CalendarEvent{}
	for rows.Next() {
		e := &models.CalendarEvent{Kind: models.EventSprint}
		if err := rows.Scan(&e.ReferenceID, &e.Title, &e.Start, &e.End, &e.Done, &e.ProjectID, &e.ProjectName); err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, rows.Err()
}
