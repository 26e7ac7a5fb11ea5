package billing

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"agency-crm/internal/documents"
	"agency-crm/internal/metrics"
	"agency-crm/internal/models"
	"agency-crm/internal/timeutil"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

const pdfContentType = "application/pdf"

// Service runs the budget -> invoice -> payment lifecycle of a project.
//
// Draft rows (project services and budget lines) are editable while no budget is
// pending. Generating a budget freezes them into a pending snapshot; confirming it
// issues an invoice and clears the unbilled rows, denying it unlocks them again.
// Direct invoicing bypasses budgets and stamps the selected rows instead of
// deleting them. Every mutation holds the project's action lock and runs in one
// transaction with the project row locked.
type Service struct {
	Store     Store
	Renderer  Renderer
	Objects   ObjectStore
	Publisher Publisher
	Locks     *ActionLock
	Now       func() time.Time

	log zerolog.Logger
}

func NewService(store Store, renderer Renderer, objects ObjectStore, publisher Publisher) *Service {
	return &Service{
		Store:     store,
		Renderer:  renderer,
		Objects:   objects,
		Publisher: publisher,
		Locks:     NewActionLock(),
		Now:       timeutil.Now,
		log:       log.With().Str("component", "billing").Logger(),
	}
}

// ============================================
// Draft lines
// ============================================

// Lines returns the draft rows of a project, its pending budget and the draft totals
func (s *Service) Lines(ctx context.Context, projectID int) (*models.ProjectLines, error) {
	if _, err := s.Store.GetProject(ctx, projectID); err != nil {
		return nil, err
	}
	services, err := s.Store.ListProjectServices(ctx, projectID)
	if err != nil {
		return nil, err
	}
	lines, err := s.Store.ListBudgetLines(ctx, projectID)
	if err != nil {
		return nil, err
	}
	pending, err := s.Store.GetPendingBudget(ctx, projectID)
	if err != nil {
		return nil, err
	}

	return &models.ProjectLines{
		Services:      services,
		BudgetLines:   lines,
		PendingBudget: pending,
		Draft:         DraftTotals(services, lines),
	}, nil
}

// AddService attaches a catalog service to the project, copying its price and VAT
func (s *Service) AddService(ctx context.Context, projectID int, req *models.AddProjectServiceRequest) (*models.ProjectService, error) {
	if req.ServiceID <= 0 {
		return nil, fmt.Errorf("%w: service_id is required", ErrInvalidLine)
	}
	if err := validOverrides(req.UnitPrice, req.Quantity, req.VATPercent); err != nil {
		return nil, err
	}

	release, err := s.acquire(projectID)
	if err != nil {
		return nil, err
	}
	defer release()

	var ps *models.ProjectService
	err = s.Store.WithinTx(ctx, func(tx Store) error {
		if err := ensureEditable(ctx, tx, projectID); err != nil {
			return err
		}
		svc, err := tx.GetCatalogService(ctx, req.ServiceID)
		if err != nil {
			return err
		}

		ps = &models.ProjectService{
			ProjectID:   projectID,
			ServiceID:   svc.ID,
			Name:        svc.Name,
			Description: svc.Description,
			UnitPrice:   svc.UnitPrice,
			Quantity:    decimal.NewFromInt(1),
			VATPercent:  svc.VATPercent,
		}
		applyOverrides(ps, req.UnitPrice, req.Quantity, req.VATPercent)
		return tx.CreateProjectService(ctx, ps)
	})
	s.record("add_service", err)
	if err != nil {
		return nil, err
	}

	s.publish(ctx, "project_services", models.ActionInsert, projectID, ps.ID)
	return ps, nil
}

// UpdateService changes the price, quantity, VAT or description of an attached service
func (s *Service) UpdateService(ctx context.Context, id int, req *models.UpdateProjectServiceRequest) (*models.ProjectService, error) {
	if err := validOverrides(req.UnitPrice, req.Quantity, req.VATPercent); err != nil {
		return nil, err
	}

	current, err := s.Store.GetProjectService(ctx, id)
	if err != nil {
		return nil, err
	}
	if current.Locked() {
		return nil, ErrLineLocked
	}

	release, err := s.acquire(current.ProjectID)
	if err != nil {
		return nil, err
	}
	defer release()

	var ps *models.ProjectService
	err = s.Store.WithinTx(ctx, func(tx Store) error {
		if err := ensureEditable(ctx, tx, current.ProjectID); err != nil {
			return err
		}
		ps, err = tx.GetProjectService(ctx, id)
		if err != nil {
			return err
		}
		if ps.Locked() {
			return ErrLineLocked
		}
		if req.Description != nil {
			ps.Description = strings.TrimSpace(*req.Description)
		}
		applyOverrides(ps, req.UnitPrice, req.Quantity, req.VATPercent)
		return tx.UpdateProjectService(ctx, ps)
	})
	s.record("update_service", err)
	if err != nil {
		return nil, err
	}

	s.publish(ctx, "project_services", models.ActionUpdate, ps.ProjectID, ps.ID)
	return ps, nil
}

// RemoveService detaches an unbilled service from its project
func (s *Service) RemoveService(ctx context.Context, id int) error {
	current, err := s.Store.GetProjectService(ctx, id)
	if err != nil {
		return err
	}
	if current.Locked() {
		return ErrLineLocked
	}

	release, err := s.acquire(current.ProjectID)
	if err != nil {
		return err
	}
	defer release()

	err = s.Store.WithinTx(ctx, func(tx Store) error {
		if err := ensureEditable(ctx, tx, current.ProjectID); err != nil {
			return err
		}
		ps, err := tx.GetProjectService(ctx, id)
		if err != nil {
			return err
		}
		if ps.Locked() {
			return ErrLineLocked
		}
		return tx.DeleteProjectService(ctx, id)
	})
	s.record("remove_service", err)
	if err != nil {
		return err
	}

	s.publish(ctx, "project_services", models.ActionDelete, current.ProjectID, id)
	return nil
}

// AddLine adds a manual budget line
func (s *Service) AddLine(ctx context.Context, projectID int, req *models.BudgetLineRequest, userID int) (*models.BudgetLine, error) {
	if err := validateLineRequest(req); err != nil {
		return nil, err
	}

	release, err := s.acquire(projectID)
	if err != nil {
		return nil, err
	}
	defer release()

	line := &models.BudgetLine{
		ProjectID:   projectID,
		Description: strings.TrimSpace(req.Description),
		UnitPrice:   req.UnitPrice,
		Quantity:    req.Quantity,
		VATPercent:  req.VATPercent,
		CreatedBy:   actor(userID),
	}
	err = s.Store.WithinTx(ctx, func(tx Store) error {
		if err := ensureEditable(ctx, tx, projectID); err != nil {
			return err
		}
		return tx.CreateBudgetLine(ctx, line)
	})
	s.record("add_line", err)
	if err != nil {
		return nil, err
	}

	s.publish(ctx, "budget_lines", models.ActionInsert, projectID, line.ID)
	return line, nil
}

// UpdateLine rewrites a manual budget line that has not been invoiced
func (s *Service) UpdateLine(ctx context.Context, id int, req *models.BudgetLineRequest) (*models.BudgetLine, error) {
	if err := validateLineRequest(req); err != nil {
		return nil, err
	}

	current, err := s.Store.GetBudgetLine(ctx, id)
	if err != nil {
		return nil, err
	}
	if current.Locked() {
		return nil, ErrLineLocked
	}

	release, err := s.acquire(current.ProjectID)
	if err != nil {
		return nil, err
	}
	defer release()

	var line *models.BudgetLine
	err = s.Store.WithinTx(ctx, func(tx Store) error {
		if err := ensureEditable(ctx, tx, current.ProjectID); err != nil {
			return err
		}
		line, err = tx.GetBudgetLine(ctx, id)
		if err != nil {
			return err
		}
		if line.Locked() {
			return ErrLineLocked
		}
		line.Description = strings.TrimSpace(req.Description)
		line.UnitPrice = req.UnitPrice
		line.Quantity = req.Quantity
		line.VATPercent = req.VATPercent
		return tx.UpdateBudgetLine(ctx, line)
	})
	s.record("update_line", err)
	if err != nil {
		return nil, err
	}

	s.publish(ctx, "budget_lines", models.ActionUpdate, line.ProjectID, line.ID)
	return line, nil
}

// RemoveLine deletes a manual budget line that has not been invoiced
func (s *Service) RemoveLine(ctx context.Context, id int) error {
	current, err := s.Store.GetBudgetLine(ctx, id)
	if err != nil {
		return err
	}
	if current.Locked() {
		return ErrLineLocked
	}

	release, err := s.acquire(current.ProjectID)
	if err != nil {
		return err
	}
	defer release()

	err = s.Store.WithinTx(ctx, func(tx Store) error {
		if err := ensureEditable(ctx, tx, current.ProjectID); err != nil {
			return err
		}
		line, err := tx.GetBudgetLine(ctx, id)
		if err != nil {
			return err
		}
		if line.Locked() {
			return ErrLineLocked
		}
		return tx.DeleteBudgetLine(ctx, id)
	})
	s.record("remove_line", err)
	if err != nil {
		return err
	}

	s.publish(ctx, "budget_lines", models.ActionDelete, current.ProjectID, id)
	return nil
}

// ============================================
// Budgets
// ============================================

// GenerateBudget freezes the unbilled rows into a pending budget. When a budget is
// already pending the call fails unless req.ReplacePending is set, in which case the
// old budget is denied in the same transaction.
//
// The PDF is rendered and archived after commit; a failure there is reported in
// DocumentError and does not undo the snapshot.
func (s *Service) GenerateBudget(ctx context.Context, projectID int, req *models.GenerateBudgetRequest, userID int) (*models.BudgetResult, error) {
	release, err := s.acquire(projectID)
	if err != nil {
		return nil, err
	}
	defer release()

	result := &models.BudgetResult{}
	var project *models.Project
	err = s.Store.WithinTx(ctx, func(tx Store) error {
		project, err = tx.LockProject(ctx, projectID)
		if err != nil {
			return err
		}
		now := s.Now()

		pending, err := tx.GetPendingBudget(ctx, projectID)
		if err != nil {
			return err
		}
		if pending != nil {
			if !req.ReplacePending {
				return ErrPendingBudgetExists
			}
			if err := tx.SetBudgetStatus(ctx, pending.ID, models.BudgetDenied, actor(userID), now); err != nil {
				return err
			}
			pending.Status = models.BudgetDenied
			pending.DecidedBy = actor(userID)
			pending.DecidedAt = &now
			result.Denied = pending
		}

		services, err := tx.ListProjectServices(ctx, projectID)
		if err != nil {
			return err
		}
		lines, err := tx.ListBudgetLines(ctx, projectID)
		if err != nil {
			return err
		}
		items, totals := Price(Snapshot(services, lines))
		if len(items) == 0 {
			return ErrNothingToBill
		}

		count, err := tx.CountBudgets(ctx, projectID)
		if err != nil {
			return err
		}
		budget := &models.Budget{
			ProjectID: projectID,
			Number:    DocumentNumber(PrefixBudget, project.Alias, count+1),
			Status:    models.BudgetPending,
			Items:     items,
			Subtotal:  totals.Subtotal,
			VAT:       totals.VAT,
			Total:     totals.Total,
			CreatedBy: actor(userID),
			CreatedAt: now,
		}
		if err := tx.CreateBudget(ctx, budget); err != nil {
			return err
		}

		file := s.newFile(project, models.FileBudget, budget.ID, budget.Number, now, userID)
		if err := tx.CreateFile(ctx, file); err != nil {
			return err
		}

		result.Budget = budget
		result.File = file
		return nil
	})
	s.record("generate_budget", err)
	if err != nil {
		return nil, err
	}

	if result.Denied != nil {
		s.publish(ctx, "budgets", models.ActionUpdate, projectID, result.Denied.ID)
	}
	s.publish(ctx, "budgets", models.ActionInsert, projectID, result.Budget.ID)
	s.publish(ctx, "project_files", models.ActionInsert, projectID, result.File.ID)

	result.DocumentError = s.archive(ctx, result.File, func() ([]byte, error) {
		return s.Renderer.RenderBudget(ctx, project, result.Budget)
	})
	return result, nil
}

// ConfirmBudget accepts a pending budget. In one transaction it marks the budget
// confirmed, issues an invoice copying the snapshot, records the manifest entry,
// refreshes the project's invoiced total and deletes the unbilled draft rows.
func (s *Service) ConfirmBudget(ctx context.Context, budgetID int, userID int) (*models.InvoiceResult, error) {
	current, err := s.Store.GetBudget(ctx, budgetID)
	if err != nil {
		return nil, err
	}
	if current.Status != models.BudgetPending {
		return nil, ErrBudgetNotPending
	}

	release, err := s.acquire(current.ProjectID)
	if err != nil {
		return nil, err
	}
	defer release()

	result := &models.InvoiceResult{}
	var project *models.Project
	err = s.Store.WithinTx(ctx, func(tx Store) error {
		project, err = tx.LockProject(ctx, current.ProjectID)
		if err != nil {
			return err
		}
		budget, err := tx.GetBudget(ctx, budgetID)
		if err != nil {
			return err
		}
		if budget.Status != models.BudgetPending {
			return ErrBudgetNotPending
		}
		now := s.Now()

		if err := tx.SetBudgetStatus(ctx, budget.ID, models.BudgetConfirmed, actor(userID), now); err != nil {
			return err
		}
		budget.Status = models.BudgetConfirmed
		budget.DecidedBy = actor(userID)
		budget.DecidedAt = &now

		count, err := tx.CountInvoices(ctx, project.ID)
		if err != nil {
			return err
		}
		invoice := &models.Invoice{
			ProjectID: project.ID,
			BudgetID:  &budget.ID,
			Number:    DocumentNumber(PrefixInvoice, project.Alias, count+1),
			Origin:    models.InvoiceFromBudget,
			Items:     budget.Items,
			Subtotal:  budget.Subtotal,
			VAT:       budget.VAT,
			Total:     budget.Total,
			IssuedAt:  now,
			CreatedBy: actor(userID),
		}
		if err := tx.CreateInvoice(ctx, invoice); err != nil {
			return err
		}

		file := s.newFile(project, models.FileInvoice, invoice.ID, invoice.Number, now, userID)
		if err := tx.CreateFile(ctx, file); err != nil {
			return err
		}
		if err := refreshTotalInvoiced(ctx, tx, project); err != nil {
			return err
		}
		if err := tx.DeleteUnbilledLines(ctx, project.ID); err != nil {
			return err
		}

		result.Budget = budget
		result.Invoice = invoice
		result.File = file
		return nil
	})
	s.record("confirm_budget", err)
	if err != nil {
		return nil, err
	}

	projectID := project.ID
	s.publish(ctx, "budgets", models.ActionUpdate, projectID, budgetID)
	s.publish(ctx, "invoices", models.ActionInsert, projectID, result.Invoice.ID)
	s.publish(ctx, "project_services", models.ActionDelete, projectID, 0)
	s.publish(ctx, "budget_lines", models.ActionDelete, projectID, 0)
	s.publish(ctx, "projects", models.ActionUpdate, projectID, projectID)
	s.publish(ctx, "project_files", models.ActionInsert, projectID, result.File.ID)

	result.DocumentError = s.archive(ctx, result.File, func() ([]byte, error) {
		return s.Renderer.RenderInvoice(ctx, project, result.Invoice)
	})
	return result, nil
}

// DenyBudget rejects a pending budget. The draft rows it froze become editable again.
func (s *Service) DenyBudget(ctx context.Context, budgetID int, userID int) (*models.Budget, error) {
	current, err := s.Store.GetBudget(ctx, budgetID)
	if err != nil {
		return nil, err
	}
	if current.Status != models.BudgetPending {
		return nil, ErrBudgetNotPending
	}

	release, err := s.acquire(current.ProjectID)
	if err != nil {
		return nil, err
	}
	defer release()

	var budget *models.Budget
	err = s.Store.WithinTx(ctx, func(tx Store) error {
		if _, err := tx.LockProject(ctx, current.ProjectID); err != nil {
			return err
		}
		budget, err = tx.GetBudget(ctx, budgetID)
		if err != nil {
			return err
		}
		if budget.Status != models.BudgetPending {
			return ErrBudgetNotPending
		}
		now := s.Now()
		if err := tx.SetBudgetStatus(ctx, budget.ID, models.BudgetDenied, actor(userID), now); err != nil {
			return err
		}
		budget.Status = models.BudgetDenied
		budget.DecidedBy = actor(userID)
		budget.DecidedAt = &now
		return nil
	})
	s.record("deny_budget", err)
	if err != nil {
		return nil, err
	}

	s.publish(ctx, "budgets", models.ActionUpdate, budget.ProjectID, budget.ID)
	return budget, nil
}

func (s *Service) ListBudgets(ctx context.Context, projectID int) ([]*models.Budget, error) {
	return s.Store.ListBudgets(ctx, projectID)
}

// ============================================
// Invoices
// ============================================

// IssueDirectInvoice invoices the selected unbilled rows without a budget. The rows
// are stamped with the new invoice id and kept as billed history.
func (s *Service) IssueDirectInvoice(ctx context.Context, projectID int, req *models.DirectInvoiceRequest, userID int) (*models.InvoiceResult, error) {
	serviceIDs := uniqueIDs(req.ServiceIDs)
	lineIDs := uniqueIDs(req.BudgetLineIDs)
	if len(serviceIDs) == 0 && len(lineIDs) == 0 {
		return nil, ErrNothingToBill
	}

	release, err := s.acquire(projectID)
	if err != nil {
		return nil, err
	}
	defer release()

	result := &models.InvoiceResult{}
	var project *models.Project
	err = s.Store.WithinTx(ctx, func(tx Store) error {
		project, err = tx.LockProject(ctx, projectID)
		if err != nil {
			return err
		}
		if err := ensureNoPending(ctx, tx, projectID); err != nil {
			return err
		}

		services := make([]*models.ProjectService, 0, len(serviceIDs))
		for _, id := range serviceIDs {
			ps, err := tx.GetProjectService(ctx, id)
			if err != nil {
				return err
			}
			if ps.ProjectID != projectID {
				return fmt.Errorf("%w: project service %d", ErrWrongProject, id)
			}
			if ps.Locked() {
				return ErrLineLocked
			}
			services = append(services, ps)
		}
		lines := make([]*models.BudgetLine, 0, len(lineIDs))
		for _, id := range lineIDs {
			l, err := tx.GetBudgetLine(ctx, id)
			if err != nil {
				return err
			}
			if l.ProjectID != projectID {
				return fmt.Errorf("%w: budget line %d", ErrWrongProject, id)
			}
			if l.Locked() {
				return ErrLineLocked
			}
			lines = append(lines, l)
		}

		items, totals := Price(Snapshot(services, lines))
		now := s.Now()
		count, err := tx.CountInvoices(ctx, projectID)
		if err != nil {
			return err
		}
		invoice := &models.Invoice{
			ProjectID: projectID,
			Number:    DocumentNumber(PrefixInvoice, project.Alias, count+1),
			Origin:    models.InvoiceDirect,
			Items:     items,
			Subtotal:  totals.Subtotal,
			VAT:       totals.VAT,
			Total:     totals.Total,
			IssuedAt:  now,
			CreatedBy: actor(userID),
		}
		if err := tx.CreateInvoice(ctx, invoice); err != nil {
			return err
		}
		if err := tx.StampLines(ctx, invoice.ID, serviceIDs, lineIDs); err != nil {
			return err
		}

		file := s.newFile(project, models.FileInvoice, invoice.ID, invoice.Number, now, userID)
		if err := tx.CreateFile(ctx, file); err != nil {
			return err
		}
		if err := refreshTotalInvoiced(ctx, tx, project); err != nil {
			return err
		}

		result.Invoice = invoice
		result.File = file
		return nil
	})
	s.record("direct_invoice", err)
	if err != nil {
		return nil, err
	}

	s.publish(ctx, "invoices", models.ActionInsert, projectID, result.Invoice.ID)
	if len(serviceIDs) > 0 {
		s.publish(ctx, "project_services", models.ActionUpdate, projectID, 0)
	}
	if len(lineIDs) > 0 {
		s.publish(ctx, "budget_lines", models.ActionUpdate, projectID, 0)
	}
	s.publish(ctx, "projects", models.ActionUpdate, projectID, projectID)
	s.publish(ctx, "project_files", models.ActionInsert, projectID, result.File.ID)

	result.DocumentError = s.archive(ctx, result.File, func() ([]byte, error) {
		return s.Renderer.RenderInvoice(ctx, project, result.Invoice)
	})
	return result, nil
}

func (s *Service) ListInvoices(ctx context.Context, projectID int) ([]*models.Invoice, error) {
	return s.Store.ListInvoices(ctx, projectID)
}

// ============================================
// Payments
// ============================================

// RegisterPayment records a payment against the project's invoiced total and
// archives a receipt showing the balance left after it.
func (s *Service) RegisterPayment(ctx context.Context, projectID int, req *models.RegisterPaymentRequest, userID int) (*models.PaymentResult, error) {
	if !req.Amount.IsPositive() {
		return nil, ErrInvalidAmount
	}
	if !req.Method.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidMethod, req.Method)
	}

	release, err := s.acquire(projectID)
	if err != nil {
		return nil, err
	}
	defer release()

	result := &models.PaymentResult{}
	var project *models.Project
	err = s.Store.WithinTx(ctx, func(tx Store) error {
		project, err = tx.LockProject(ctx, projectID)
		if err != nil {
			return err
		}
		invoices, err := tx.CountInvoices(ctx, projectID)
		if err != nil {
			return err
		}
		if invoices == 0 {
			return ErrNoInvoices
		}

		count, err := tx.CountPayments(ctx, projectID)
		if err != nil {
			return err
		}
		// the project row lock orders this payment after every invoice counted here
		invoiced, err := tx.SumInvoiced(ctx, projectID)
		if err != nil {
			return err
		}
		now := s.Now()
		payment := &models.Payment{
			ProjectID:      projectID,
			Number:         DocumentNumber(PrefixReceipt, project.Alias, count+1),
			Amount:         req.Amount.Round(2),
			Method:         req.Method,
			Note:           strings.TrimSpace(req.Note),
			ExternalRef:    req.ExternalRef,
			InvoicedToDate: invoiced,
			ReceivedAt:     now,
			CreatedBy:      actor(userID),
		}
		if err := tx.CreatePayment(ctx, payment); err != nil {
			return err
		}

		file := s.newFile(project, models.FileReceipt, payment.ID, payment.Number, now, userID)
		if err := tx.CreateFile(ctx, file); err != nil {
			return err
		}
		summary, err := summarize(ctx, tx, projectID)
		if err != nil {
			return err
		}

		result.Payment = payment
		result.Summary = summary
		result.File = file
		return nil
	})
	s.record("register_payment", err)
	if err != nil {
		return nil, err
	}

	s.publish(ctx, "payments", models.ActionInsert, projectID, result.Payment.ID)
	s.publish(ctx, "project_files", models.ActionInsert, projectID, result.File.ID)

	result.DocumentError = s.archive(ctx, result.File, func() ([]byte, error) {
		return s.Renderer.RenderReceipt(ctx, project, result.Payment, result.Summary)
	})
	return result, nil
}

func (s *Service) ListPayments(ctx context.Context, projectID int) ([]*models.Payment, error) {
	return s.Store.ListPayments(ctx, projectID)
}

// FindPaymentByExternalRef returns the payment registered for a gateway payment id, or nil
func (s *Service) FindPaymentByExternalRef(ctx context.Context, ref string) (*models.Payment, error) {
	p, err := s.Store.GetPaymentByExternalRef(ctx, ref)
	if errors.Is(err, models.ErrNotFound) {
		return nil, nil
	}
	return p, err
}

// Summary recomputes invoiced, paid and remaining from every committed invoice and payment
func (s *Service) Summary(ctx context.Context, projectID int) (*models.BillingSummary, error) {
	if _, err := s.Store.GetProject(ctx, projectID); err != nil {
		return nil, err
	}
	summary, err := summarize(ctx, s.Store, projectID)
	if err != nil {
		return nil, err
	}
	summary.PendingBudget, err = s.Store.GetPendingBudget(ctx, projectID)
	if err != nil {
		return nil, err
	}
	return summary, nil
}

// Billed reports whether the project has any budget, invoice or payment. Their numbers
// carry the project alias, so a billed project keeps its alias and its history.
func (s *Service) Billed(ctx context.Context, projectID int) (bool, error) {
	counts := []func(context.Context, int) (int, error){s.Store.CountBudgets, s.Store.CountInvoices, s.Store.CountPayments}
	for _, count := range counts {
		n, err := count(ctx, projectID)
		if err != nil {
			return false, err
		}
		if n > 0 {
			return true, nil
		}
	}
	return false, nil
}

// ============================================
// Documents
// ============================================

func (s *Service) ListFiles(ctx context.Context, projectID int) ([]*models.ProjectFile, error) {
	return s.Store.ListFiles(ctx, projectID)
}

// BudgetDocument renders the budget PDF from its stored snapshot
func (s *Service) BudgetDocument(ctx context.Context, budgetID int) (string, []byte, error) {
	b, err := s.Store.GetBudget(ctx, budgetID)
	if err != nil {
		return "", nil, err
	}
	p, err := s.Store.GetProject(ctx, b.ProjectID)
	if err != nil {
		return "", nil, err
	}
	data, err := s.Renderer.RenderBudget(ctx, p, b)
	if err != nil {
		return "", nil, err
	}
	return documents.FileName(models.FileBudget, p, b.Number, b.CreatedAt), data, nil
}

// InvoiceDocument renders the invoice PDF from its stored snapshot
func (s *Service) InvoiceDocument(ctx context.Context, invoiceID int) (string, []byte, error) {
	inv, err := s.Store.GetInvoice(ctx, invoiceID)
	if err != nil {
		return "", nil, err
	}
	p, err := s.Store.GetProject(ctx, inv.ProjectID)
	if err != nil {
		return "", nil, err
	}
	data, err := s.Renderer.RenderInvoice(ctx, p, inv)
	if err != nil {
		return "", nil, err
	}
	return documents.FileName(models.FileInvoice, p, inv.Number, inv.IssuedAt), data, nil
}

// ReceiptDocument renders a receipt with the balance as it stood right after the payment
func (s *Service) ReceiptDocument(ctx context.Context, paymentID int) (string, []byte, error) {
	pay, err := s.Store.GetPayment(ctx, paymentID)
	if err != nil {
		return "", nil, err
	}
	p, err := s.Store.GetProject(ctx, pay.ProjectID)
	if err != nil {
		return "", nil, err
	}
	summary, err := receiptSummary(ctx, s.Store, pay)
	if err != nil {
		return "", nil, err
	}
	data, err := s.Renderer.RenderReceipt(ctx, p, pay, summary)
	if err != nil {
		return "", nil, err
	}
	return documents.FileName(models.FileReceipt, p, pay.Number, pay.ReceivedAt), data, nil
}

// FileContent returns an archived document, re-rendering it when the archive is unavailable
func (s *Service) FileContent(ctx context.Context, fileID int) (*models.ProjectFile, []byte, error) {
	f, err := s.Store.GetFile(ctx, fileID)
	if err != nil {
		return nil, nil, err
	}

	if f.Uploaded && s.Objects != nil && s.Objects.Enabled() {
		data, err := s.Objects.Get(ctx, f.StorageKey)
		if err == nil {
			return f, data, nil
		}
		s.log.Warn().Err(err).Str("key", f.StorageKey).Msg("archived document unavailable, re-rendering")
	}

	var data []byte
	switch f.Kind {
	case models.FileBudget:
		_, data, err = s.BudgetDocument(ctx, f.ReferenceID)
	case models.FileInvoice:
		_, data, err = s.InvoiceDocument(ctx, f.ReferenceID)
	case models.FileReceipt:
		_, data, err = s.ReceiptDocument(ctx, f.ReferenceID)
	default:
		err = fmt.Errorf("unknown document kind %q", f.Kind)
	}
	if err != nil {
		return nil, nil, err
	}
	return f, data, nil
}

// ============================================
// Helpers
// ============================================

func (s *Service) acquire(projectID int) (func(), error) {
	release, ok := s.Locks.TryAcquire(projectID)
	if !ok {
		metrics.BillingOperationsTotal.WithLabelValues("lock", "rejected").Inc()
		return nil, ErrActionInProgress
	}
	return release, nil
}

func (s *Service) record(op string, err error) {
	outcome := "ok"
	switch {
	case err == nil:
	case isRejection(err):
		outcome = "rejected"
		s.log.Debug().Err(err).Str("operation", op).Msg("billing operation rejected")
	default:
		outcome = "error"
		s.log.Error().Err(err).Str("operation", op).Msg("billing operation failed")
	}
	metrics.BillingOperationsTotal.WithLabelValues(op, outcome).Inc()
}

func (s *Service) publish(ctx context.Context, table, action string, projectID, recordID int) {
	if s.Publisher == nil {
		return
	}
	s.Publisher.Publish(ctx, models.ChangeEvent{
		Table:     table,
		Action:    action,
		ProjectID: projectID,
		RecordID:  recordID,
		At:        s.Now(),
	})
}

func (s *Service) newFile(p *models.Project, kind models.FileKind, refID int, number string, at time.Time, userID int) *models.ProjectFile {
	name := documents.FileName(kind, p, number, at)
	return &models.ProjectFile{
		ProjectID:   p.ID,
		Kind:        kind,
		ReferenceID: refID,
		FileName:    name,
		StorageKey:  fmt.Sprintf("projects/%d/%s/%s", p.ID, kind, name),
		ContentType: pdfContentType,
		CreatedBy:   actor(userID),
		CreatedAt:   at,
	}
}

// archive renders and uploads a document after its records are committed.
// It returns a message for the caller instead of failing the operation.
func (s *Service) archive(ctx context.Context, f *models.ProjectFile, render func() ([]byte, error)) string {
	data, err := render()
	if err != nil {
		metrics.DocumentsRenderedTotal.WithLabelValues(string(f.Kind), "error").Inc()
		s.log.Error().Err(err).Str("file", f.FileName).Msg("failed to render document")
		return "document could not be generated: " + err.Error()
	}
	metrics.DocumentsRenderedTotal.WithLabelValues(string(f.Kind), "ok").Inc()

	if s.Objects == nil || !s.Objects.Enabled() {
		return ""
	}
	if err := s.Objects.Put(ctx, f.StorageKey, data, f.ContentType); err != nil {
		s.log.Error().Err(err).Str("key", f.StorageKey).Msg("failed to archive document")
		return "document could not be archived: " + err.Error()
	}
	if err := s.Store.MarkFileUploaded(ctx, f.ID); err != nil {
		s.log.Warn().Err(err).Int("file_id", f.ID).Msg("failed to flag archived document")
		return ""
	}
	f.Uploaded = true
	return ""
}

func ensureNoPending(ctx context.Context, tx Store, projectID int) error {
	pending, err := tx.GetPendingBudget(ctx, projectID)
	if err != nil {
		return err
	}
	if pending != nil {
		return ErrBudgetPending
	}
	return nil
}

// ensureEditable locks the project row and rejects line changes while a budget is pending
func ensureEditable(ctx context.Context, tx Store, projectID int) error {
	if _, err := tx.LockProject(ctx, projectID); err != nil {
		return err
	}
	return ensureNoPending(ctx, tx, projectID)
}

func refreshTotalInvoiced(ctx context.Context, tx Store, p *models.Project) error {
	total, err := tx.SumInvoiced(ctx, p.ID)
	if err != nil {
		return err
	}
	if err := tx.SetProjectTotalInvoiced(ctx, p.ID, total); err != nil {
		return err
	}
	p.TotalInvoiced = total
	return nil
}

func summarize(ctx context.Context, st Store, projectID int) (*models.BillingSummary, error) {
	invoiced, err := st.SumInvoiced(ctx, projectID)
	if err != nil {
		return nil, err
	}
	paid, err := st.SumPaid(ctx, projectID, 0)
	if err != nil {
		return nil, err
	}
	invoices, err := st.CountInvoices(ctx, projectID)
	if err != nil {
		return nil, err
	}
	payments, err := st.CountPayments(ctx, projectID)
	if err != nil {
		return nil, err
	}
	return balance(projectID, invoiced, paid, invoices, payments), nil
}

// receiptSummary is the balance right after pay: the invoiced total recorded on the
// payment and every payment of the project up to and including it
func receiptSummary(ctx context.Context, st Store, pay *models.Payment) (*models.BillingSummary, error) {
	paid, err := st.SumPaid(ctx, pay.ProjectID, pay.ID)
	if err != nil {
		return nil, err
	}
	return balance(pay.ProjectID, pay.InvoicedToDate, paid, 0, 0), nil
}

func balance(projectID int, invoiced, paid decimal.Decimal, invoices, payments int) *models.BillingSummary {
	remaining := invoiced.Sub(paid)
	return &models.BillingSummary{
		ProjectID:     projectID,
		TotalInvoiced: invoiced,
		TotalPaid:     paid,
		Remaining:     remaining,
		PaidInFull:    invoiced.IsPositive() && !remaining.IsPositive(),
		InvoiceCount:  invoices,
		PaymentCount:  payments,
	}
}

func validateLineRequest(req *models.BudgetLineRequest) error {
	if strings.TrimSpace(req.Description) == "" {
		return fmt.Errorf("%w: description is required", ErrInvalidLine)
	}
	if !validLine(req.UnitPrice, req.Quantity, req.VATPercent) {
		return fmt.Errorf("%w: price must be >= 0, quantity > 0 and VAT between 0 and 100", ErrInvalidLine)
	}
	return nil
}

func validOverrides(unitPrice, quantity, vatPercent *decimal.Decimal) error {
	if unitPrice != nil && unitPrice.IsNegative() {
		return fmt.Errorf("%w: unit_price must be >= 0", ErrInvalidLine)
	}
	if quantity != nil && !quantity.IsPositive() {
		return fmt.Errorf("%w: quantity must be > 0", ErrInvalidLine)
	}
	if vatPercent != nil && (vatPercent.IsNegative() || vatPercent.GreaterThan(hundred)) {
		return fmt.Errorf("%w: vat_percent must be between 0 and 100", ErrInvalidLine)
	}
	return nil
}

func applyOverrides(ps *models.ProjectService, unitPrice, quantity, vatPercent *decimal.Decimal) {
	if unitPrice != nil {
		ps.UnitPrice = *unitPrice
	}
	if quantity != nil {
		ps.Quantity = *quantity
	}
	if vatPercent != nil {
		ps.VATPercent = *vatPercent
	}
}

func uniqueIDs(ids []int) []int {
	seen := make(map[int]bool, len(ids))
	out := make([]int, 0, len(ids))
	for _, id := range ids {
		if id <= 0 || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	sort.Ints(out)
	return out
}

func actor(userID int) *int {
	if userID <= 0 {
		return nil
	}
	return &userID
}

// isRejection separates business-rule refusals from infrastructure failures
func isRejection(err error) bool {
	for _, target := range []error{
		ErrLineLocked, ErrBudgetPending, ErrPendingBudgetExists, ErrBudgetNotPending,
		ErrNothingToBill, ErrNoInvoices, ErrInvalidAmount, ErrInvalidMethod,
		ErrInvalidLine, ErrWrongProject, ErrActionInProgress,
		models.ErrNotFound, models.ErrInvalidInput,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
