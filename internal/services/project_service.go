package services

import (
	"context"
	"regexp"
	"strings"

	"agency-crm/internal/billing"
	"agency-crm/internal/models"
	"agency-crm/internal/repositories"
)

var aliasPattern = regexp.MustCompile(`^[A-Z0-9][A-Z0-9-]{1,19}$`)

// ProjectStore is implemented by repositories.ProjectRepository
type ProjectStore interface {
	Create(ctx context.Context, p *models.Project, serviceIDs, userIDs []int) error
	Get(ctx context.Context, id int) (*models.Project, error)
	List(ctx context.Context, f repositories.ProjectFilter) ([]*models.Project, error)
	Update(ctx context.Context, p *models.Project) error
	Delete(ctx context.Context, id int) error
	Members(ctx context.Context, projectID int) ([]*models.ProjectMember, error)
	SetMembers(ctx context.Context, projectID int, userIDs []int) error
}

// ProjectBilling is the part of billing.Service the project pages read
type ProjectBilling interface {
	Lines(ctx context.Context, projectID int) (*models.ProjectLines, error)
	Summary(ctx context.Context, projectID int) (*models.BillingSummary, error)
	Billed(ctx context.Context, projectID int) (bool, error)
}

type ProjectService struct {
	Repo      ProjectStore
	Billing   ProjectBilling
	Publisher billing.Publisher
}

func NewProjectService(repo ProjectStore, billingService ProjectBilling, publisher billing.Publisher) *ProjectService {
	return &ProjectService{Repo: repo, Billing: billingService, Publisher: publisher}
}

// Create inserts the project with its catalog services and members atomically
func (s *ProjectService) Create(ctx context.Context, req *models.ProjectRequest, userID int) (*models.Project, error) {
	p := projectFromRequest(req)
	if p.Status == "" {
		p.Status = models.ProjectActive
	}
	if err := validateProject(p); err != nil {
		return nil, err
	}
	p.CreatedBy = &userID

	if err := s.Repo.Create(ctx, p, uniqueInts(req.ServiceIDs), uniqueInts(req.UserIDs)); err != nil {
		return nil, err
	}
	notify(ctx, s.Publisher, "projects", models.ActionInsert, p.ID, p.ID)
	return p, nil
}

func (s *ProjectService) Get(ctx context.Context, id int) (*models.Project, error) {
	return s.Repo.Get(ctx, id)
}

func (s *ProjectService) List(ctx context.Context, f repositories.ProjectFilter) ([]*models.Project, error) {
	if f.Status != "" && !oneOf(f.Status, models.ProjectStatuses) {
		return nil, invalid("unknown project status %q", f.Status)
	}
	return s.Repo.List(ctx, f)
}

// Detail is the project page payload: project, members, draft lines and billing summary
func (s *ProjectService) Detail(ctx context.Context, id int) (*models.ProjectDetail, error) {
	p, err := s.Repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	members, err := s.Repo.Members(ctx, id)
	if err != nil {
		return nil, err
	}
	lines, err := s.Billing.Lines(ctx, id)
	if err != nil {
		return nil, err
	}
	summary, err := s.Billing.Summary(ctx, id)
	if err != nil {
		return nil, err
	}
	return &models.ProjectDetail{Project: p, Members: members, Lines: lines, Billing: summary}, nil
}

// Update changes the project fields. The alias is frozen once any budget, invoice
// or payment has been numbered with it.
func (s *ProjectService) Update(ctx context.Context, id int, req *models.ProjectRequest) (*models.Project, error) {
	current, err := s.Repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	p := projectFromRequest(req)
	p.ID = id
	if p.Status == "" {
		p.Status = models.ProjectActive
	}
	if err := validateProject(p); err != nil {
		return nil, err
	}
	if p.Alias != current.Alias {
		billed, err := s.Billing.Billed(ctx, id)
		if err != nil {
			return nil, err
		}
		if billed {
			return nil, ErrAliasLocked
		}
	}
	if err := s.Repo.Update(ctx, p); err != nil {
		return nil, err
	}
	notify(ctx, s.Publisher, "projects", models.ActionUpdate, id, id)
	return p, nil
}

// Delete removes an unbilled project with its draft lines, members and tasks.
// Projects with budgets, invoices or payments are kept.
func (s *ProjectService) Delete(ctx context.Context, id int) error {
	billed, err := s.Billing.Billed(ctx, id)
	if err != nil {
		return err
	}
	if billed {
		return ErrProjectBilled
	}
	if err := s.Repo.Delete(ctx, id); err != nil {
		return err
	}
	notify(ctx, s.Publisher, "projects", models.ActionDelete, id, id)
	return nil
}

func (s *ProjectService) Members(ctx context.Context, id int) ([]*models.ProjectMember, error) {
	if _, err := s.Repo.Get(ctx, id); err != nil {
		return nil, err
	}
	return s.Repo.Members(ctx, id)
}

func (s *ProjectService) SetMembers(ctx context.Context, id int, userIDs []int) ([]*models.ProjectMember, error) {
	if _, err := s.Repo.Get(ctx, id); err != nil {
		return nil, err
	}
	if err := s.Repo.SetMembers(ctx, id, uniqueInts(userIDs)); err != nil {
		return nil, err
	}
	notify(ctx, s.Publisher, "project_members", models.ActionUpdate, id, id)
	return s.Repo.Members(ctx, id)
}

func projectFromRequest(req *models.ProjectRequest) *models.Project {
	return &models.Project{
		Name:        strings.TrimSpace(req.Name),
		Alias:       NormalizeAlias(req.Alias),
		ClientName:  strings.TrimSpace(req.ClientName),
		ClientEmail: strings.TrimSpace(req.ClientEmail),
		ClientTaxID: strings.TrimSpace(req.ClientTaxID),
		Description: req.Description,
		Status:      req.Status,
		StartDate:   req.StartDate,
		EndDate:     req.EndDate,
	}
}

// NormalizeAlias uppercases the alias and turns spaces into dashes
func NormalizeAlias(alias string) string {
	return strings.Join(strings.Fields(strings.ToUpper(alias)), "-")
}

func validateProject(p *models.Project) error {
	if p.Name == "" {
		return invalid("project name is required")
	}
	if !aliasPattern.MatchString(p.Alias) {
		return invalid("alias must be 2-20 letters, digits or dashes")
	}
	if p.ClientName == "" {
		return invalid("client name is required")
	}
	if !oneOf(p.Status, models.ProjectStatuses) {
		return invalid("unknown project status %q", p.Status)
	}
	if p.StartDate != nil && p.EndDate != nil && p.EndDate.Before(*p.StartDate) {
		return invalid("end date is before start date")
	}
	return nil
}

func uniqueInts(ids []int) []int {
	seen := make(map[int]bool, len(ids))
	out := make([]int, 0, len(ids))
	for _, id := range ids {
		if id > 0 && !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}
