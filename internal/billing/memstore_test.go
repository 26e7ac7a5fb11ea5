package billing

import (
	"context"
	"errors"
	"sort"
	"time"

	"agency-crm/internal/models"

	"github.com/shopspring/decimal"
)

var errInjected = errors.New("injected failure")

// memStore is an in-memory Store. WithinTx snapshots every table and restores
// them when fn fails, which is enough to observe rollback behaviour.
type memStore struct {
	nextID   int
	failOn   string
	calls    int
	projects map[int]*models.Project
	catalog  map[int]*models.Service
	services map[int]*models.ProjectService
	lines    map[int]*models.BudgetLine
	budgets  map[int]*models.Budget
	invoices map[int]*models.Invoice
	payments map[int]*models.Payment
	files    map[int]*models.ProjectFile
}

func newMemStore() *memStore {
	return &memStore{
		nextID:   100,
		projects: map[int]*models.Project{},
		catalog:  map[int]*models.Service{},
		services: map[int]*models.ProjectService{},
		lines:    map[int]*models.BudgetLine{},
		budgets:  map[int]*models.Budget{},
		invoices: map[int]*models.Invoice{},
		payments: map[int]*models.Payment{},
		files:    map[int]*models.ProjectFile{},
	}
}

func (m *memStore) id() int {
	m.nextID++
	return m.nextID
}

func (m *memStore) touch(op string) error {
	m.calls++
	if m.failOn == op {
		return errInjected
	}
	return nil
}

func cloneMap[T any](src map[int]*T) map[int]*T {
	dst := make(map[int]*T, len(src))
	for k, v := range src {
		cp := *v
		dst[k] = &cp
	}
	return dst
}

func sortedValues[T any](src map[int]*T, keep func(*T) bool) []*T {
	keys := make([]int, 0, len(src))
	for k := range src {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	out := make([]*T, 0, len(keys))
	for _, k := range keys {
		if keep(src[k]) {
			cp := *src[k]
			out = append(out, &cp)
		}
	}
	return out
}

func (m *memStore) WithinTx(ctx context.Context, fn func(tx Store) error) error {
	snapshot := *m
	snapshot.projects = cloneMap(m.projects)
	snapshot.catalog = cloneMap(m.catalog)
	snapshot.services = cloneMap(m.services)
	snapshot.lines = cloneMap(m.lines)
	snapshot.budgets = cloneMap(m.budgets)
	snapshot.invoices = cloneMap(m.invoices)
	snapshot.payments = cloneMap(m.payments)
	snapshot.files = cloneMap(m.files)

	if err := fn(m); err != nil {
		calls := m.calls
		*m = snapshot
		m.calls = calls
		return err
	}
	return nil
}

func (m *memStore) GetProject(ctx context.Context, projectID int) (*models.Project, error) {
	if err := m.touch("GetProject"); err != nil {
		return nil, err
	}
	p, ok := m.projects[projectID]
	if !ok {
		return nil, models.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *memStore) LockProject(ctx context.Context, projectID int) (*models.Project, error) {
	if err := m.touch("LockProject"); err != nil {
		return nil, err
	}
	return m.GetProject(ctx, projectID)
}

func (m *memStore) SetProjectTotalInvoiced(ctx context.Context, projectID int, total decimal.Decimal) error {
	if err := m.touch("SetProjectTotalInvoiced"); err != nil {
		return err
	}
	m.projects[projectID].TotalInvoiced = total
	return nil
}

func (m *memStore) GetCatalogService(ctx context.Context, serviceID int) (*models.Service, error) {
	if err := m.touch("GetCatalogService"); err != nil {
		return nil, err
	}
	s, ok := m.catalog[serviceID]
	if !ok {
		return nil, models.ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (m *memStore) ListProjectServices(ctx context.Context, projectID int) ([]*models.ProjectService, error) {
	if err := m.touch("ListProjectServices"); err != nil {
		return nil, err
	}
	return sortedValues(m.services, func(s *models.ProjectService) bool { return s.ProjectID == projectID }), nil
}

func (m *memStore) GetProjectService(ctx context.Context, id int) (*models.ProjectService, error) {
	if err := m.touch("GetProjectService"); err != nil {
		return nil, err
	}
	s, ok := m.services[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (m *memStore) CreateProjectService(ctx context.Context, ps *models.ProjectService) error {
	if err := m.touch("CreateProjectService"); err != nil {
		return err
	}
	ps.ID = m.id()
	cp := *ps
	m.services[ps.ID] = &cp
	return nil
}

func (m *memStore) UpdateProjectService(ctx context.Context, ps *models.ProjectService) error {
	if err := m.touch("UpdateProjectService"); err != nil {
		return err
	}
	cp := *ps
	m.services[ps.ID] = &cp
	return nil
}

func (m *memStore) DeleteProjectService(ctx context.Context, id int) error {
	if err := m.touch("DeleteProjectService"); err != nil {
		return err
	}
	delete(m.services, id)
	return nil
}

func (m *memStore) ListBudgetLines(ctx context.Context, projectID int) ([]*models.BudgetLine, error) {
	if err := m.touch("ListBudgetLines"); err != nil {
		return nil, err
	}
	return sortedValues(m.lines, func(l *models.BudgetLine) bool { return l.ProjectID == projectID }), nil
}

func (m *memStore) GetBudgetLine(ctx context.Context, id int) (*models.BudgetLine, error) {
	if err := m.touch("GetBudgetLine"); err != nil {
		return nil, err
	}
	l, ok := m.lines[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	cp := *l
	return &cp, nil
}

func (m *memStore) CreateBudgetLine(ctx context.Context, l *models.BudgetLine) error {
	if err := m.touch("CreateBudgetLine"); err != nil {
		return err
	}
	l.ID = m.id()
	cp := *l
	m.lines[l.ID] = &cp
	return nil
}

func (m *memStore) UpdateBudgetLine(ctx context.Context, l *models.BudgetLine) error {
	if err := m.touch("UpdateBudgetLine"); err != nil {
		return err
	}
	cp := *l
	m.lines[l.ID] = &cp
	return nil
}

func (m *memStore) DeleteBudgetLine(ctx context.Context, id int) error {
	if err := m.touch("DeleteBudgetLine"); err != nil {
		return err
	}
	delete(m.lines, id)
	return nil
}

func (m *memStore) StampLines(ctx context.Context, invoiceID int, serviceIDs, lineIDs []int) error {
	if err := m.touch("StampLines"); err != nil {
		return err
	}
	for _, id := range serviceIDs {
		inv := invoiceID
		m.services[id].InvoiceID = &inv
	}
	for _, id := range lineIDs {
		inv := invoiceID
		m.lines[id].InvoiceID = &inv
	}
	return nil
}

func (m *memStore) DeleteUnbilledLines(ctx context.Context, projectID int) error {
	if err := m.touch("DeleteUnbilledLines"); err != nil {
		return err
	}
	for id, s := range m.services {
		if s.ProjectID == projectID && s.InvoiceID == nil {
			delete(m.services, id)
		}
	}
	for id, l := range m.lines {
		if l.ProjectID == projectID && l.InvoiceID == nil {
			delete(m.lines, id)
		}
	}
	return nil
}

func (m *memStore) GetBudget(ctx context.Context, id int) (*models.Budget, error) {
	if err := m.touch("GetBudget"); err != nil {
		return nil, err
	}
	b, ok := m.budgets[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	cp := *b
	return &cp, nil
}

func (m *memStore) GetPendingBudget(ctx context.Context, projectID int) (*models.Budget, error) {
	if err := m.touch("GetPendingBudget"); err != nil {
		return nil, err
	}
	pending := sortedValues(m.budgets, func(b *models.Budget) bool {
		return b.ProjectID == projectID && b.Status == models.BudgetPending
	})
	if len(pending) == 0 {
		return nil, nil
	}
	return pending[0], nil
}

func (m *memStore) ListBudgets(ctx context.Context, projectID int) ([]*models.Budget, error) {
	if err := m.touch("ListBudgets"); err != nil {
		return nil, err
	}
	return sortedValues(m.budgets, func(b *models.Budget) bool { return b.ProjectID == projectID }), nil
}

func (m *memStore) CountBudgets(ctx context.Context, projectID int) (int, error) {
	list, err := m.ListBudgets(ctx, projectID)
	return len(list), err
}

func (m *memStore) CreateBudget(ctx context.Context, b *models.Budget) error {
	if err := m.touch("CreateBudget"); err != nil {
		return err
	}
	for _, other := range m.budgets {
		if other.Number == b.Number {
			return models.ErrConflict
		}
	}
	b.ID = m.id()
	cp := *b
	m.budgets[b.ID] = &cp
	return nil
}

func (m *memStore) SetBudgetStatus(ctx context.Context, id int, status models.BudgetStatus, decidedBy *int, at time.Time) error {
	if err := m.touch("SetBudgetStatus"); err != nil {
		return err
	}
	b := m.budgets[id]
	b.Status = status
	b.DecidedBy = decidedBy
	b.DecidedAt = &at
	return nil
}

func (m *memStore) GetInvoice(ctx context.Context, id int) (*models.Invoice, error) {
	if err := m.touch("GetInvoice"); err != nil {
		return nil, err
	}
	inv, ok := m.invoices[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	cp := *inv
	return &cp, nil
}

func (m *memStore) ListInvoices(ctx context.Context, projectID int) ([]*models.Invoice, error) {
	if err := m.touch("ListInvoices"); err != nil {
		return nil, err
	}
	return sortedValues(m.invoices, func(i *models.Invoice) bool { return i.ProjectID == projectID }), nil
}

func (m *memStore) CountInvoices(ctx context.Context, projectID int) (int, error) {
	list, err := m.ListInvoices(ctx, projectID)
	return len(list), err
}

func (m *memStore) CreateInvoice(ctx context.Context, inv *models.Invoice) error {
	if err := m.touch("CreateInvoice"); err != nil {
		return err
	}
	for _, other := range m.invoices {
		if other.Number == inv.Number {
			return models.ErrConflict
		}
	}
	inv.ID = m.id()
	cp := *inv
	m.invoices[inv.ID] = &cp
	return nil
}

func (m *memStore) SumInvoiced(ctx context.Context, projectID int) (decimal.Decimal, error) {
	if err := m.touch("SumInvoiced"); err != nil {
		return decimal.Zero, err
	}
	total := decimal.Zero
	for _, inv := range m.invoices {
		if inv.ProjectID == projectID {
			total = total.Add(inv.Total)
		}
	}
	return total, nil
}

func (m *memStore) GetPayment(ctx context.Context, id int) (*models.Payment, error) {
	if err := m.touch("GetPayment"); err != nil {
		return nil, err
	}
	p, ok := m.payments[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *memStore) GetPaymentByExternalRef(ctx context.Context, ref string) (*models.Payment, error) {
	if err := m.touch("GetPaymentByExternalRef"); err != nil {
		return nil, err
	}
	found := sortedValues(m.payments, func(p *models.Payment) bool { return p.ExternalRef == ref })
	if len(found) == 0 {
		return nil, models.ErrNotFound
	}
	return found[0], nil
}

func (m *memStore) ListPayments(ctx context.Context, projectID int) ([]*models.Payment, error) {
	if err := m.touch("ListPayments"); err != nil {
		return nil, err
	}
	return sortedValues(m.payments, func(p *models.Payment) bool { return p.ProjectID == projectID }), nil
}

func (m *memStore) CountPayments(ctx context.Context, projectID int) (int, error) {
	list, err := m.ListPayments(ctx, projectID)
	return len(list), err
}

func (m *memStore) CreatePayment(ctx context.Context, p *models.Payment) error {
	if err := m.touch("CreatePayment"); err != nil {
		return err
	}
	for _, other := range m.payments {
		if other.Number == p.Number || (p.ExternalRef != "" && other.ExternalRef == p.ExternalRef) {
			return models.ErrConflict
		}
	}
	p.ID = m.id()
	cp := *p
	m.payments[p.ID] = &cp
	return nil
}

func (m *memStore) SumPaid(ctx context.Context, projectID int, throughID int) (decimal.Decimal, error) {
	if err := m.touch("SumPaid"); err != nil {
		return decimal.Zero, err
	}
	total := decimal.Zero
	for _, p := range m.payments {
		if p.ProjectID == projectID && (throughID == 0 || p.ID <= throughID) {
			total = total.Add(p.Amount)
		}
	}
	return total, nil
}

func (m *memStore) CreateFile(ctx context.Context, f *models.ProjectFile) error {
	if err := m.touch("CreateFile"); err != nil {
		return err
	}
	f.ID = m.id()
	cp := *f
	m.files[f.ID] = &cp
	return nil
}

func (m *memStore) GetFile(ctx context.Context, id int) (*models.ProjectFile, error) {
	if err := m.touch("GetFile"); err != nil {
		return nil, err
	}
	f, ok := m.files[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	cp := *f
	return &cp, nil
}

func (m *memStore) ListFiles(ctx context.Context, projectID int) ([]*models.ProjectFile, error) {
	if err := m.touch("ListFiles"); err != nil {
		return nil, err
	}
	return sortedValues(m.files, func(f *models.ProjectFile) bool { return f.ProjectID == projectID }), nil
}

func (m *memStore) MarkFileUploaded(ctx context.Context, id int) error {
	if err := m.touch("MarkFileUploaded"); err != nil {
		return err
	}
	m.files[id].Uploaded = true
	return nil
}
