package billing

import (
	"context"
	"time"

	"agency-crm/internal/models"

	"github.com/shopspring/decimal"
)

// Store is the persistence the lifecycle runs on. Lookups of missing rows return
// models.ErrNotFound. GetPendingBudget returns nil, nil when no budget is pending.
type Store interface {
	// WithinTx runs fn against a store bound to one transaction. Any error rolls it back.
	WithinTx(ctx context.Context, fn func(tx Store) error) error

	GetProject(ctx context.Context, projectID int) (*models.Project, error)
	// LockProject reads the project with a row lock held until the transaction ends
	LockProject(ctx context.Context, projectID int) (*models.Project, error)
	SetProjectTotalInvoiced(ctx context.Context, projectID int, total decimal.Decimal) error
	GetCatalogService(ctx context.Context, serviceID int) (*models.Service, error)

	ListProjectServices(ctx context.Context, projectID int) ([]*models.ProjectService, error)
	GetProjectService(ctx context.Context, id int) (*models.ProjectService, error)
	CreateProjectService(ctx context.Context, ps *models.ProjectService) error
	UpdateProjectService(ctx context.Context, ps *models.ProjectService) error
	DeleteProjectService(ctx context.Context, id int) error

	ListBudgetLines(ctx context.Context, projectID int) ([]*models.BudgetLine, error)
	GetBudgetLine(ctx context.Context, id int) (*models.BudgetLine, error)
	CreateBudgetLine(ctx context.Context, l *models.BudgetLine) error
	UpdateBudgetLine(ctx context.Context, l *models.BudgetLine) error
	DeleteBudgetLine(ctx context.Context, id int) error

	// StampLines sets invoice_id on the given project services and budget lines
	StampLines(ctx context.Context, invoiceID int, serviceIDs, lineIDs []int) error
	// DeleteUnbilledLines removes every project service and budget line without an invoice
	DeleteUnbilledLines(ctx context.Context, projectID int) error

	GetBudget(ctx context.Context, id int) (*models.Budget, error)
	GetPendingBudget(ctx context.Context, projectID int) (*models.Budget, error)
	ListBudgets(ctx context.Context, projectID int) ([]*models.Budget, error)
	CountBudgets(ctx context.Context, projectID int) (int, error)
	CreateBudget(ctx context.Context, b *models.Budget) error
	SetBudgetStatus(ctx context.Context, id int, status models.BudgetStatus, decidedBy *int, at time.Time) error

	GetInvoice(ctx context.Context, id int) (*models.Invoice, error)
	ListInvoices(ctx context.Context, projectID int) ([]*models.Invoice, error)
	CountInvoices(ctx context.Context, projectID int) (int, error)
	CreateInvoice(ctx context.Context, inv *models.Invoice) error
	// SumInvoiced totals every committed invoice of the project
	SumInvoiced(ctx context.Context, projectID int) (decimal.Decimal, error)

	GetPayment(ctx context.Context, id int) (*models.Payment, error)
	GetPaymentByExternalRef(ctx context.Context, ref string) (*models.Payment, error)
	ListPayments(ctx context.Context, projectID int) ([]*models.Payment, error)
	CountPayments(ctx context.Context, projectID int) (int, error)
	CreatePayment(ctx context.Context, p *models.Payment) error
	// SumPaid totals payments up to and including the given payment id (0 means all)
	SumPaid(ctx context.Context, projectID int, throughID int) (decimal.Decimal, error)

	CreateFile(ctx context.Context, f *models.ProjectFile) error
	GetFile(ctx context.Context, id int) (*models.ProjectFile, error)
	ListFiles(ctx context.Context, projectID int) ([]*models.ProjectFile, error)
	MarkFileUploaded(ctx context.Context, id int) error
}

// Renderer turns snapshots into PDF bytes
type Renderer interface {
	RenderBudget(ctx context.Context, p *models.Project, b *models.Budget) ([]byte, error)
	RenderInvoice(ctx context.Context, p *models.Project, inv *models.Invoice) ([]byte, error)
	RenderReceipt(ctx context.Context, p *models.Project, pay *models.Payment, summary *models.BillingSummary) ([]byte, error)
}

// ObjectStore archives generated documents
type ObjectStore interface {
	Put(ctx context.Context, key string, body []byte, contentType string) error
	Get(ctx context.Context, key string) ([]byte, error)
	Enabled() bool
}

// Publisher fans change events out to realtime subscribers
type Publisher interface {
	Publish(ctx context.Context, e models.ChangeEvent)
}
