package repositories

import (
	"context"
	"strconv"

	"agency-crm/internal/models"

	"github.com/jackc/pgx/v5/pgxpool"
)

const taskColumns = `id, project_id, sprint_id, title, description, status, priority, assignee_id, due_date,
	position, created_at, updated_at`

func scanTask(row rowScanner) (*models.Task, error) {
	var t models.Task
	err := row.Scan(&t.ID, &t.ProjectID, &t.SprintID, &t.Title, &t.Description, &t.Status, &t.Priority,
		&t.AssigneeID, &t.DueDate, &t.Position, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

type TaskRepository struct {
	DB *pgxpool.Pool
}

func NewTaskRepository(db *pgxpool.Pool) *TaskRepository {
	return &TaskRepository{DB: db}
}

func (r *TaskRepository) Create(ctx context.Context, t *models.Task) error {
	err := r.DB.QueryRow(ctx,
		`INSERT INTO tasks(project_id, sprint_id, title, description, status, priority, assignee_id, due_date, position)
		 VALUES($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 RETURNING id, created_at, updated_at`,
		t.ProjectID, t.SprintID, t.Title, t.Description, t.Status, t.Priority, t.AssigneeID, t.DueDate, t.Position,
	).Scan(&t.ID, &t.CreatedAt, &t.UpdatedAt)
	return mapErr(err)
}

func (r *TaskRepository) Get(ctx context.Context, id int) (*models.Task, error) {
	t, err := scanTask(r.DB.QueryRow(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id=$1`, id))
	return t, mapErr(err)
}

func (r *TaskRepository) List(ctx context.Context, projectID int, f models.TaskFilter) ([]*models.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE project_id=$1`
	args := []any{projectID}
	if f.SprintID != nil {
		args = append(args, *f.SprintID)
		query += ` AND sprint_id=$` + strconv.Itoa(len(args))
	}
	if f.Status != "" {
		args = append(args, f.Status)
		query += ` AND status=$` + strconv.Itoa(len(args))
	}
	if f.AssigneeID != nil {
		args = append(args, *f.AssigneeID)
		query += ` AND assignee_id=$` + strconv.Itoa(len(args))
	}
	query += ` ORDER BY position, id`

	rows, err := r.DB.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tasks := []*models.Task{}
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

func (r *TaskRepository) Update(ctx context.Context, t *models.Task) error {
	err := r.DB.QueryRow(ctx,
		`UPDATE tasks SET sprint_id=$1, title=$2, description=$3, status=$4, priority=$5, assignee_id=$6,
		        due_date=$7, position=$8, updated_at=NOW()
		 WHERE id=$9
		 RETURNING project_id, created_at, updated_at`,
		t.SprintID, t.Title, t.Description, t.Status, t.Priority, t.AssigneeID, t.DueDate, t.Position, t.ID,
	).Scan(&t.ProjectID, &t.CreatedAt, &t.UpdatedAt)
	return mapErr(err)
}

func (r *TaskRepository) Delete(ctx context.Context, id int) error {
	return expectOne(r.DB.Exec(ctx, `DELETE FROM tasks WHERE id=$1`, id))
}

// DueBetween returns open and closed tasks with a due date inside [from, to]
func (r *TaskRepository) DueBetween(ctx context.Context, from, to string) ([]*models.CalendarEvent, error) {
	rows, err := r.DB.Query(ctx,
		`SELECT t.id, t.title, t.due_date, t.status = 'done', p.id, p.name
		 FROM tasks t JOIN projects p ON p.id = t.project_id
		 WHERE t.due_date BETWEEN $1::date AND $2::date
		 ORDER BY t.due_date, t.id`, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	events := []*models.CalendarEvent{}
	for rows.Next() {
		e := &models.CalendarEvent{Kind: models.EventTaskDue}
		if err := rows.Scan(&e.ReferenceID, &e.Title, &e.Start, &e.Done, &e.ProjectID, &e.ProjectName); err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, rows.Err()
}
