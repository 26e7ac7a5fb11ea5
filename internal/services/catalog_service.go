package services

import (
	"context"
	"strings"

	"agency-crm/internal/billing"
	"agency-crm/internal/models"
	"agency-crm/internal/repositories"

	"github.com/shopspring/decimal"
)

var defaultVAT = decimal.NewFromInt(21)

// CatalogService manages the agency's service catalog
type CatalogService struct {
	Repo      *repositories.ServiceRepository
	Publisher billing.Publisher
}

func NewCatalogService(repo *repositories.ServiceRepository, publisher billing.Publisher) *CatalogService {
	return &CatalogService{Repo: repo, Publisher: publisher}
}

func (s *CatalogService) List(ctx context.Context, activeOnly bool) ([]*models.Service, error) {
	return s.Repo.List(ctx, activeOnly)
}

func (s *CatalogService) Get(ctx context.Context, id int) (*models.Service, error) {
	return s.Repo.Get(ctx, id)
}

func (s *CatalogService) Create(ctx context.Context, req *models.ServiceRequest) (*models.Service, error) {
	svc := serviceFromRequest(req, &models.Service{VATPercent: defaultVAT, Active: true})
	if err := validateService(svc); err != nil {
		return nil, err
	}
	if err := s.Repo.Create(ctx, svc); err != nil {
		return nil, err
	}
	notify(ctx, s.Publisher, "services", models.ActionInsert, 0, svc.ID)
	return svc, nil
}

// Update changes the catalog entry only. Services already attached to projects keep their copied prices.
func (s *CatalogService) Update(ctx context.Context, id int, req *models.ServiceRequest) (*models.Service, error) {
	current, err := s.Repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	svc := serviceFromRequest(req, current)
	if err := validateService(svc); err != nil {
		return nil, err
	}
	if err := s.Repo.Update(ctx, svc); err != nil {
		return nil, err
	}
	notify(ctx, s.Publisher, "services", models.ActionUpdate, 0, id)
	return svc, nil
}

func (s *CatalogService) Delete(ctx context.Context, id int) error {
	if err := s.Repo.Delete(ctx, id); err != nil {
		return err
	}
	notify(ctx, s.Publisher, "services", models.ActionDelete, 0, id)
	return nil
}

// serviceFromRequest applies the request on top of base; nil fields keep base values
func serviceFromRequest(req *models.ServiceRequest, base *models.Service) *models.Service {
	svc := *base
	svc.Name = strings.TrimSpace(req.Name)
	svc.Description = req.Description
	svc.UnitPrice = req.UnitPrice
	if req.VATPercent != nil {
		svc.VATPercent = *req.VATPercent
	}
	if req.Active != nil {
		svc.Active = *req.Active
	}
	return &svc
}

func validateService(svc *models.Service) error {
	if svc.Name == "" {
		return invalid("service name is required")
	}
	if svc.UnitPrice.IsNegative() {
		return invalid("unit price cannot be negative")
	}
	if svc.VATPercent.IsNegative() || svc.VATPercent.GreaterThan(decimal.NewFromInt(100)) {
		return invalid("VAT must be between 0 and 100")
	}
	return nil
}
