package services

import (
	"context"
	"strings"

	"agency-crm/internal/billing"
	"agency-crm/internal/models"
	"agency-crm/internal/repositories"
)

// WorkService manages the delivery side of a project: sprints, tasks and milestones
type WorkService struct {
	Projects   *repositories.ProjectRepository
	Tasks      *repositories.TaskRepository
	Sprints    *repositories.SprintRepository
	Milestones *repositories.MilestoneRepository
	Publisher  billing.Publisher
}

func NewWorkService(projects *repositories.ProjectRepository, tasks *repositories.TaskRepository,
	sprints *repositories.SprintRepository, milestones *repositories.MilestoneRepository,
	publisher billing.Publisher) *WorkService {
	return &WorkService{
		Projects:   projects,
		Tasks:      tasks,
		Sprints:    sprints,
		Milestones: milestones,
		Publisher:  publisher,
	}
}

// ============================================
// Tasks
// ============================================

func (s *WorkService) ListTasks(ctx context.Context, projectID int, f models.TaskFilter) ([]*models.Task, error) {
	if _, err := s.Projects.Get(ctx, projectID); err != nil {
		return nil, err
	}
	if f.Status != "" && !oneOf(f.Status, models.TaskStatuses) {
		return nil, invalid("unknown task status %q", f.Status)
	}
	return s.Tasks.List(ctx, projectID, f)
}

func (s *WorkService) CreateTask(ctx context.Context, projectID int, req *models.TaskRequest) (*models.Task, error) {
	if _, err := s.Projects.Get(ctx, projectID); err != nil {
		return nil, err
	}
	t := taskFromRequest(req)
	t.ProjectID = projectID
	if err := s.validateTask(ctx, t); err != nil {
		return nil, err
	}
	if err := s.Tasks.Create(ctx, t); err != nil {
		return nil, err
	}
	notify(ctx, s.Publisher, "tasks", models.ActionInsert, projectID, t.ID)
	return t, nil
}

func (s *WorkService) GetTask(ctx context.Context, id int) (*models.Task, error) {
	return s.Tasks.Get(ctx, id)
}

// UpdateTask also moves a task between sprints and statuses
func (s *WorkService) UpdateTask(ctx context.Context, id int, req *models.TaskRequest) (*models.Task, error) {
	current, err := s.Tasks.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	t := taskFromRequest(req)
	t.ID = id
	t.ProjectID = current.ProjectID
	if err := s.validateTask(ctx, t); err != nil {
		return nil, err
	}
	if err := s.Tasks.Update(ctx, t); err != nil {
		return nil, err
	}
	notify(ctx, s.Publisher, "tasks", models.ActionUpdate, t.ProjectID, id)
	return t, nil
}

func (s *WorkService) DeleteTask(ctx context.Context, id int) error {
	t, err := s.Tasks.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.Tasks.Delete(ctx, id); err != nil {
		return err
	}
	notify(ctx, s.Publisher, "tasks", models.ActionDelete, t.ProjectID, id)
	return nil
}

func (s *WorkService) validateTask(ctx context.Context, t *models.Task) error {
	if t.Status == "" {
		t.Status = models.TaskTodo
	}
	if t.Priority == "" {
		t.Priority = "medium"
	}
	if err := validateTask(t); err != nil {
		return err
	}
	if t.SprintID != nil {
		sprint, err := s.Sprints.Get(ctx, *t.SprintID)
		if err != nil {
			return err
		}
		if sprint.ProjectID != t.ProjectID {
			return invalid("sprint belongs to another project")
		}
	}
	return nil
}

func taskFromRequest(req *models.TaskRequest) *models.Task {
	return &models.Task{
		SprintID:    req.SprintID,
		Title:       strings.TrimSpace(req.Title),
		Description: req.Description,
		Status:      req.Status,
		Priority:    req.Priority,
		AssigneeID:  req.AssigneeID,
		DueDate:     req.DueDate,
		Position:    req.Position,
	}
}

func validateTask(t *models.Task) error {
	if t.Title == "" {
		return invalid("task title is required")
	}
	if !oneOf(t.Status, models.TaskStatuses) {
		return invalid("unknown task status %q", t.Status)
	}
	if !oneOf(t.Priority, models.TaskPriorities) {
		return invalid("unknown task priority %q", t.Priority)
	}
	if t.Position < 0 {
		return invalid("position cannot be negative")
	}
	return nil
}

// ============================================
// Sprints
// ============================================

func (s *WorkService) ListSprints(ctx context.Context, projectID int) ([]*models.Sprint, error) {
	if _, err := s.Projects.Get(ctx, projectID); err != nil {
		return nil, err
	}
	return s.Sprints.List(ctx, projectID)
}

func (s *WorkService) CreateSprint(ctx context.Context, projectID int, req *models.SprintRequest) (*models.Sprint, error) {
	if _, err := s.Projects.Get(ctx, projectID); err != nil {
		return nil, err
	}
	sp := sprintFromRequest(req)
	sp.ProjectID = projectID
	if err := validateSprint(sp); err != nil {
		return nil, err
	}
	if err := s.Sprints.Create(ctx, sp); err != nil {
		return nil, err
	}
	notify(ctx, s.Publisher, "sprints", models.ActionInsert, projectID, sp.ID)
	return sp, nil
}

func (s *WorkService) UpdateSprint(ctx context.Context, id int, req *models.SprintRequest) (*models.Sprint, error) {
	current, err := s.Sprints.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	sp := sprintFromRequest(req)
	sp.ID = id
	sp.ProjectID = current.ProjectID
	if err := validateSprint(sp); err != nil {
		return nil, err
	}
	if err := s.Sprints.Update(ctx, sp); err != nil {
		return nil, err
	}
	notify(ctx, s.Publisher, "sprints", models.ActionUpdate, sp.ProjectID, id)
	return sp, nil
}

// DeleteSprint leaves its tasks in the backlog (sprint_id is set to NULL)
func (s *WorkService) DeleteSprint(ctx context.Context, id int) error {
	sp, err := s.Sprints.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.Sprints.Delete(ctx, id); err != nil {
		return err
	}
	notify(ctx, s.Publisher, "sprints", models.ActionDelete, sp.ProjectID, id)
	return nil
}

func sprintFromRequest(req *models.SprintRequest) *models.Sprint {
	status := req.Status
	if status == "" {
		status = models.SprintPlanned
	}
	return &models.Sprint{
		Name:      strings.TrimSpace(req.Name),
		Goal:      req.Goal,
		StartDate: req.StartDate,
		EndDate:   req.EndDate,
		Status:    status,
	}
}

func validateSprint(sp *models.Sprint) error {
	if sp.Name == "" {
		return invalid("sprint name is required")
	}
	if sp.StartDate.IsZero() || sp.EndDate.IsZero() {
		return invalid("sprint start and end dates are required")
	}
	if sp.EndDate.Before(sp.StartDate) {
		return invalid("sprint ends before it starts")
	}
	if !oneOf(sp.Status, models.SprintStatuses) {
		return invalid("unknown sprint status %q", sp.Status)
	}
	return nil
}

// ============================================
// Milestones
// ============================================

func (s *WorkService) ListMilestones(ctx context.Context, projectID int) ([]*models.Milestone, error) {
	if _, err := s.Projects.Get(ctx, projectID); err != nil {
		return nil, err
	}
	return s.Milestones.List(ctx, projectID)
}

func (s *WorkService) CreateMilestone(ctx context.Context, projectID int, req *models.MilestoneRequest) (*models.Milestone, error) {
	if _, err := s.Projects.Get(ctx, projectID); err != nil {
		return nil, err
	}
	m := milestoneFromRequest(req)
	m.ProjectID = projectID
	if err := validateMilestone(m); err != nil {
		return nil, err
	}
	if err := s.Milestones.Create(ctx, m); err != nil {
		return nil, err
	}
	notify(ctx, s.Publisher, "milestones", models.ActionInsert, projectID, m.ID)
	return m, nil
}

func (s *WorkService) UpdateMilestone(ctx context.Context, id int, req *models.MilestoneRequest) (*models.Milestone, error) {
	current, err := s.Milestones.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	m := milestoneFromRequest(req)
	m.ID = id
	m.ProjectID = current.ProjectID
	if err := validateMilestone(m); err != nil {
		return nil, err
	}
	if err := s.Milestones.Update(ctx, m); err != nil {
		return nil, err
	}
	notify(ctx, s.Publisher, "milestones", models.ActionUpdate, m.ProjectID, id)
	return m, nil
}

func (s *WorkService) DeleteMilestone(ctx context.Context, id int) error {
	m, err := s.Milestones.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.Milestones.Delete(ctx, id); err != nil {
		return err
	}
	notify(ctx, s.Publisher, "milestones", models.ActionDelete, m.ProjectID, id)
	return nil
}

func milestoneFromRequest(req *models.MilestoneRequest) *models.Milestone {
	return &models.Milestone{
		Title:       strings.TrimSpace(req.Title),
		Description: req.Description,
		DueDate:     req.DueDate,
		Completed:   req.Completed,
	}
}

func validateMilestone(m *models.Milestone) error {
	if m.Title == "" {
		return invalid("milestone title is required")
	}
	if m.DueDate.IsZero() {
		return invalid("milestone due date is required")
	}
	return nil
}
