package services

import (
	"context"
	"strings"

	"agency-crm/internal/billing"
	"agency-crm/internal/models"
	"agency-crm/internal/repositories"

	"github.com/rs/zerolog/log"
)

type LeadService struct {
	Repo      *repositories.LeadRepository
	Publisher billing.Publisher
}

func NewLeadService(repo *repositories.LeadRepository, publisher billing.Publisher) *LeadService {
	return &LeadService{Repo: repo, Publisher: publisher}
}

func (s *LeadService) Create(ctx context.Context, req *models.LeadRequest) (*models.Lead, error) {
	l := leadFromRequest(req)
	if l.Status == "" {
		l.Status = models.LeadNew
	}
	if err := validateLead(l); err != nil {
		return nil, err
	}
	if err := s.Repo.Create(ctx, l); err != nil {
		return nil, err
	}
	notify(ctx, s.Publisher, "leads", models.ActionInsert, 0, l.ID)
	return l, nil
}

func (s *LeadService) Get(ctx context.Context, id int) (*models.Lead, error) {
	return s.Repo.Get(ctx, id)
}

func (s *LeadService) List(ctx context.Context, f repositories.LeadFilter) ([]*models.Lead, error) {
	if f.Status != "" && !oneOf(f.Status, models.LeadStatuses) {
		return nil, invalid("unknown lead status %q", f.Status)
	}
	return s.Repo.List(ctx, f)
}

// Update edits a lead. The converted status is only reachable through Convert.
func (s *LeadService) Update(ctx context.Context, id int, req *models.LeadRequest) (*models.Lead, error) {
	current, err := s.Repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	l := leadFromRequest(req)
	l.ID = id
	l.ConvertedProjectID = current.ConvertedProjectID
	if l.Status == "" {
		l.Status = current.Status
	}
	if l.Status == models.LeadConverted && current.ConvertedProjectID == nil {
		return nil, invalid("use convert to turn a lead into a project")
	}
	if current.ConvertedProjectID != nil {
		l.Status = models.LeadConverted
	}
	if err := validateLead(l); err != nil {
		return nil, err
	}
	if err := s.Repo.Update(ctx, l); err != nil {
		return nil, err
	}
	notify(ctx, s.Publisher, "leads", models.ActionUpdate, 0, id)
	return l, nil
}

func (s *LeadService) Delete(ctx context.Context, id int) error {
	if err := s.Repo.Delete(ctx, id); err != nil {
		return err
	}
	notify(ctx, s.Publisher, "leads", models.ActionDelete, 0, id)
	return nil
}

// Convert creates a project from the lead and marks the lead converted, atomically
func (s *LeadService) Convert(ctx context.Context, id int, req *models.ConvertLeadRequest, userID int) (*models.Project, error) {
	lead, err := s.Repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if lead.ConvertedProjectID != nil {
		return nil, models.ErrConflict
	}

	p := projectFromLead(lead, req)
	p.CreatedBy = &userID
	if err := validateProject(p); err != nil {
		return nil, err
	}

	if err := s.Repo.Convert(ctx, id, p, uniqueInts(req.ServiceIDs), uniqueInts(req.UserIDs)); err != nil {
		return nil, err
	}

	log.Info().Str("component", "leads").Int("lead_id", id).Int("project_id", p.ID).Msg("lead converted")
	notify(ctx, s.Publisher, "leads", models.ActionUpdate, p.ID, id)
	notify(ctx, s.Publisher, "projects", models.ActionInsert, p.ID, p.ID)
	return p, nil
}

func projectFromLead(lead *models.Lead, req *models.ConvertLeadRequest) *models.Project {
	client := lead.Company
	if client == "" {
		client = lead.Name
	}
	name := strings.TrimSpace(req.ProjectName)
	if name == "" {
		name = client
	}
	return &models.Project{
		Name:        name,
		Alias:       NormalizeAlias(req.Alias),
		ClientName:  client,
		ClientEmail: lead.Email,
		Description: lead.Notes,
		Status:      models.ProjectActive,
	}
}

func leadFromRequest(req *models.LeadRequest) *models.Lead {
	return &models.Lead{
		Name:           strings.TrimSpace(req.Name),
		Email:          strings.TrimSpace(req.Email),
		Phone:          strings.TrimSpace(req.Phone),
		Company:        strings.TrimSpace(req.Company),
		Source:         req.Source,
		Status:         req.Status,
		Notes:          req.Notes,
		EstimatedValue: req.EstimatedValue,
		AssignedTo:     req.AssignedTo,
	}
}

func validateLead(l *models.Lead) error {
	if l.Name == "" {
		return invalid("lead name is required")
	}
	if !oneOf(l.Status, models.LeadStatuses) {
		return invalid("unknown lead status %q", l.Status)
	}
	if l.EstimatedValue.IsNegative() {
		return invalid("estimated value cannot be negative")
	}
	return nil
}
