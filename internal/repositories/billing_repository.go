package repositories

import (
	"context"
	"errors"
	"time"

	"agency-crm/internal/billing"
	"agency-crm/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

var _ billing.Store = (*BillingRepository)(nil)

// BillingRepository is the Postgres store behind the billing service.
// Inside WithinTx it is rebound to the transaction.
type BillingRepository struct {
	DB *pgxpool.Pool
	q  querier
	tx bool
}

func NewBillingRepository(db *pgxpool.Pool) *BillingRepository {
	return &BillingRepository{DB: db, q: db}
}

func (r *BillingRepository) WithinTx(ctx context.Context, fn func(tx billing.Store) error) error {
	if r.tx {
		return fn(r)
	}
	return inTx(ctx, r.DB, func(tx pgx.Tx) error {
		return fn(&BillingRepository{DB: r.DB, q: tx, tx: true})
	})
}

// ============================================
// Projects and catalog
// ============================================

func (r *BillingRepository) GetProject(ctx context.Context, projectID int) (*models.Project, error) {
	p, err := scanProject(r.q.QueryRow(ctx,
		`SELECT `+projectColumns+` FROM projects WHERE id=$1`, projectID))
	return p, mapErr(err)
}

// LockProject reads the project row with FOR UPDATE, serialising billing writes per project
func (r *BillingRepository) LockProject(ctx context.Context, projectID int) (*models.Project, error) {
	p, err := scanProject(r.q.QueryRow(ctx,
		`SELECT `+projectColumns+` FROM projects WHERE id=$1 FOR UPDATE`, projectID))
	return p, mapErr(err)
}

func (r *BillingRepository) SetProjectTotalInvoiced(ctx context.Context, projectID int, total decimal.Decimal) error {
	return expectOne(r.q.Exec(ctx,
		`UPDATE projects SET total_invoiced=$1, updated_at=NOW() WHERE id=$2`, total, projectID))
}

func (r *BillingRepository) GetCatalogService(ctx context.Context, serviceID int) (*models.Service, error) {
	s, err := scanService(r.q.QueryRow(ctx,
		`SELECT `+serviceColumns+` FROM services WHERE id=$1`, serviceID))
	return s, mapErr(err)
}

// ============================================
// Project services
// ============================================

const projectServiceColumns = `id, project_id, service_id, name, description, unit_price, quantity, vat_percent,
	invoice_id, created_at, updated_at`

func scanProjectService(row rowScanner) (*models.ProjectService, error) {
	var s models.ProjectService
	err := row.Scan(&s.ID, &s.ProjectID, &s.ServiceID, &s.Name, &s.Description,
		&s.UnitPrice, &s.Quantity, &s.VATPercent, &s.InvoiceID, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *BillingRepository) ListProjectServices(ctx context.Context, projectID int) ([]*models.ProjectService, error) {
	rows, err := r.q.Query(ctx,
		`SELECT `+projectServiceColumns+` FROM project_services WHERE project_id=$1 ORDER BY id`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	services := []*models.ProjectService{}
	for rows.Next() {
		s, err := scanProjectService(rows)
		if err != nil {
			return nil, err
		}
		services = append(services, s)
	}
	return services, rows.Err()
}

func (r *BillingRepository) GetProjectService(ctx context.Context, id int) (*models.ProjectService, error) {
	s, err := scanProjectService(r.q.QueryRow(ctx,
		`SELECT `+projectServiceColumns+` FROM project_services WHERE id=$1`, id))
	return s, mapErr(err)
}

func (r *BillingRepository) CreateProjectService(ctx context.Context, ps *models.ProjectService) error {
	err := r.q.QueryRow(ctx,
		`INSERT INTO project_services(project_id, service_id, name, description, unit_price, quantity, vat_percent)
		 VALUES($1, $2, $3, $4, $5, $6, $7)
		 RETURNING id, created_at, updated_at`,
		ps.ProjectID, ps.ServiceID, ps.Name, ps.Description, ps.UnitPrice, ps.Quantity, ps.VATPercent,
	).Scan(&ps.ID, &ps.CreatedAt, &ps.UpdatedAt)
	return mapErr(err)
}

// UpdateProjectService never touches invoiced rows
func (r *BillingRepository) UpdateProjectService(ctx context.Context, ps *models.ProjectService) error {
	err := r.q.QueryRow(ctx,
		`UPDATE project_services SET description=$1, unit_price=$2, quantity=$3, vat_percent=$4, updated_at=NOW()
		 WHERE id=$5 AND invoice_id IS NULL
		 RETURNING updated_at`,
		ps.Description, ps.UnitPrice, ps.Quantity, ps.VATPercent, ps.ID,
	).Scan(&ps.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return billing.ErrLineLocked
	}
	return mapErr(err)
}

func (r *BillingRepository) DeleteProjectService(ctx context.Context, id int) error {
	tag, err := r.q.Exec(ctx, `DELETE FROM project_services WHERE id=$1 AND invoice_id IS NULL`, id)
	if err != nil {
		return mapErr(err)
	}
	if tag.RowsAffected() == 0 {
		return billing.ErrLineLocked
	}
	return nil
}

// ============================================
// Budget lines
// ============================================

const budgetLineColumns = `id, project_id, description, unit_price, quantity, vat_percent, invoice_id,
	created_by, created_at, updated_at`

func scanBudgetLine(row rowScanner) (*models.BudgetLine, error) {
	var l models.BudgetLine
	err := row.Scan(&l.ID, &l.ProjectID, &l.Description, &l.UnitPrice, &l.Quantity, &l.VATPercent,
		&l.InvoiceID, &l.CreatedBy, &l.CreatedAt, &l.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &l, nil
}

func (r *BillingRepository) ListBudgetLines(ctx context.Context, projectID int) ([]*models.BudgetLine, error) {
	rows, err := r.q.Query(ctx,
		`SELECT `+budgetLineColumns+` FROM budget_lines WHERE project_id=$1 ORDER BY id`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	lines := []*models.BudgetLine{}
	for rows.Next() {
		l, err := scanBudgetLine(rows)
		if err != nil {
			return nil, err
		}
		lines = append(lines, l)
	}
	return lines, rows.Err()
}

func (r *BillingRepository) GetBudgetLine(ctx context.Context, id int) (*models.BudgetLine, error) {
	l, err := scanBudgetLine(r.q.QueryRow(ctx,
		`SELECT `+budgetLineColumns+` FROM budget_lines WHERE id=$1`, id))
	return l, mapErr(err)
}

func (r *BillingRepository) CreateBudgetLine(ctx context.Context, l *models.BudgetLine) error {
	err := r.q.QueryRow(ctx,
		`INSERT INTO budget_lines(project_id, description, unit_price, quantity, vat_percent, created_by)
		 VALUES($1, $2, $3, $4, $5, $6)
		 RETURNING id, created_at, updated_at`,
		l.ProjectID, l.Description, l.UnitPrice, l.Quantity, l.VATPercent, l.CreatedBy,
	).Scan(&l.ID, &l.CreatedAt, &l.UpdatedAt)
	return mapErr(err)
}

func (r *BillingRepository) UpdateBudgetLine(ctx context.Context, l *models.BudgetLine) error {
	err := r.q.QueryRow(ctx,
		`UPDATE budget_lines SET description=$1, unit_price=$2, quantity=$3, vat_percent=$4, updated_at=NOW()
		 WHERE id=$5 AND invoice_id IS NULL
		 RETURNING updated_at`,
		l.Description, l.UnitPrice, l.Quantity, l.VATPercent, l.ID,
	).Scan(&l.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return billing.ErrLineLocked
	}
	return mapErr(err)
}

func (r *BillingRepository) DeleteBudgetLine(ctx context.Context, id int) error {
	tag, err := r.q.Exec(ctx, `DELETE FROM budget_lines WHERE id=$1 AND invoice_id IS NULL`, id)
	if err != nil {
		return mapErr(err)
	}
	if tag.RowsAffected() == 0 {
		return billing.ErrLineLocked
	}
	return nil
}

// StampLines marks rows as billed by invoiceID. Every row must still be unbilled.
func (r *BillingRepository) StampLines(ctx context.Context, invoiceID int, serviceIDs, lineIDs []int) error {
	if len(serviceIDs) > 0 {
		tag, err := r.q.Exec(ctx,
			`UPDATE project_services SET invoice_id=$1, updated_at=NOW() WHERE id = ANY($2) AND invoice_id IS NULL`,
			invoiceID, serviceIDs)
		if err != nil {
			return mapErr(err)
		}
		if int(tag.RowsAffected()) != len(serviceIDs) {
			return billing.ErrLineLocked
		}
	}
	if len(lineIDs) > 0 {
		tag, err := r.q.Exec(ctx,
			`UPDATE budget_lines SET invoice_id=$1, updated_at=NOW() WHERE id = ANY($2) AND invoice_id IS NULL`,
			invoiceID, lineIDs)
		if err != nil {
			return mapErr(err)
		}
		if int(tag.RowsAffected()) != len(lineIDs) {
			return billing.ErrLineLocked
		}
	}
	return nil
}

// DeleteUnbilledLines removes the draft rows a confirmed budget has consumed.
// Rows stamped by a direct invoice stay as history.
func (r *BillingRepository) DeleteUnbilledLines(ctx context.Context, projectID int) error {
	if _, err := r.q.Exec(ctx,
		`DELETE FROM project_services WHERE project_id=$1 AND invoice_id IS NULL`, projectID); err != nil {
		return mapErr(err)
	}
	_, err := r.q.Exec(ctx,
		`DELETE FROM budget_lines WHERE project_id=$1 AND invoice_id IS NULL`, projectID)
	return mapErr(err)
}

// ============================================
// Budgets
// ============================================

const budgetColumns = `id, project_id, number, status, items, subtotal, vat, total,
	created_by, created_at, decided_by, decided_at`

func scanBudget(row rowScanner) (*models.Budget, error) {
	var b models.Budget
	err := row.Scan(&b.ID, &b.ProjectID, &b.Number, &b.Status, &b.Items, &b.Subtotal, &b.VAT, &b.Total,
		&b.CreatedBy, &b.CreatedAt, &b.DecidedBy, &b.DecidedAt)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func (r *BillingRepository) GetBudget(ctx context.Context, id int) (*models.Budget, error) {
	b, err := scanBudget(r.q.QueryRow(ctx, `SELECT `+budgetColumns+` FROM budgets WHERE id=$1`, id))
	return b, mapErr(err)
}

// GetPendingBudget returns nil without error when the project has no pending budget
func (r *BillingRepository) GetPendingBudget(ctx context.Context, projectID int) (*models.Budget, error) {
	b, err := scanBudget(r.q.QueryRow(ctx,
		`SELECT `+budgetColumns+` FROM budgets WHERE project_id=$1 AND status=$2`,
		projectID, models.BudgetPending))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return b, mapErr(err)
}

func (r *BillingRepository) ListBudgets(ctx context.Context, projectID int) ([]*models.Budget, error) {
	rows, err := r.q.Query(ctx,
		`SELECT `+budgetColumns+` FROM budgets WHERE project_id=$1 ORDER BY created_at DESC, id DESC`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	budgets := []*models.Budget{}
	for rows.Next() {
		b, err := scanBudget(rows)
		if err != nil {
			return nil, err
		}
		budgets = append(budgets, b)
	}
	return budgets, rows.Err()
}

func (r *BillingRepository) CountBudgets(ctx context.Context, projectID int) (int, error) {
	var n int
	err := r.q.QueryRow(ctx, `SELECT COUNT(*) FROM budgets WHERE project_id=$1`, projectID).Scan(&n)
	return n, err
}

func (r *BillingRepository) CreateBudget(ctx context.Context, b *models.Budget) error {
	err := r.q.QueryRow(ctx,
		`INSERT INTO budgets(project_id, number, status, items, subtotal, vat, total, created_by, created_at)
		 VALUES($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 RETURNING id`,
		b.ProjectID, b.Number, b.Status, b.Items, b.Subtotal, b.VAT, b.Total, b.CreatedBy, b.CreatedAt,
	).Scan(&b.ID)
	return mapErr(err)
}

func (r *BillingRepository) SetBudgetStatus(ctx context.Context, id int, status models.BudgetStatus, decidedBy *int, at time.Time) error {
	return expectOne(r.q.Exec(ctx,
		`UPDATE budgets SET status=$1, decided_by=$2, decided_at=$3 WHERE id=$4`,
		status, decidedBy, at, id))
}

// ============================================
// Invoices
// ============================================

const invoiceColumns = `id, project_id, budget_id, number, origin, items, subtotal, vat, total, issued_at, created_by`

func scanInvoice(row rowScanner) (*models.Invoice, error) {
	var inv models.Invoice
	err := row.Scan(&inv.ID, &inv.ProjectID, &inv.BudgetID, &inv.Number, &inv.Origin, &inv.Items,
		&inv.Subtotal, &inv.VAT, &inv.Total, &inv.IssuedAt, &inv.CreatedBy)
	if err != nil {
		return nil, err
	}
	return &inv, nil
}

func (r *BillingRepository) GetInvoice(ctx context.Context, id int) (*models.Invoice, error) {
	inv, err := scanInvoice(r.q.QueryRow(ctx, `SELECT `+invoiceColumns+` FROM invoices WHERE id=$1`, id))
	return inv, mapErr(err)
}

func (r *BillingRepository) ListInvoices(ctx context.Context, projectID int) ([]*models.Invoice, error) {
	rows, err := r.q.Query(ctx,
		`SELECT `+invoiceColumns+` FROM invoices WHERE project_id=$1 ORDER BY issued_at DESC, id DESC`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	invoices := []*models.Invoice{}
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, err
		}
		invoices = append(invoices, inv)
	}
	return invoices, rows.Err()
}

func (r *BillingRepository) CountInvoices(ctx context.Context, projectID int) (int, error) {
	var n int
	err := r.q.QueryRow(ctx, `SELECT COUNT(*) FROM invoices WHERE project_id=$1`, projectID).Scan(&n)
	return n, err
}

func (r *BillingRepository) CreateInvoice(ctx context.Context, inv *models.Invoice) error {
	err := r.q.QueryRow(ctx,
		`INSERT INTO invoices(project_id, budget_id, number, origin, items, subtotal, vat, total, issued_at, created_by)
		 VALUES($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		 RETURNING id`,
		inv.ProjectID, inv.BudgetID, inv.Number, inv.Origin, inv.Items, inv.Subtotal, inv.VAT, inv.Total,
		inv.IssuedAt, inv.CreatedBy,
	).Scan(&inv.ID)
	return mapErr(err)
}

func (r *BillingRepository) SumInvoiced(ctx context.Context, projectID int) (decimal.Decimal, error) {
	var total decimal.Decimal
	err := r.q.QueryRow(ctx,
		`SELECT COALESCE(SUM(total), 0) FROM invoices WHERE project_id=$1`, projectID).Scan(&total)
	return total, err
}

// ============================================
// Payments
// ============================================

const paymentColumns = `id, project_id, number, amount, method, note, COALESCE(external_ref, ''),
	invoiced_to_date, received_at, created_by`

func scanPayment(row rowScanner) (*models.Payment, error) {
	var p models.Payment
	err := row.Scan(&p.ID, &p.ProjectID, &p.Number, &p.Amount, &p.Method, &p.Note, &p.ExternalRef,
		&p.InvoicedToDate, &p.ReceivedAt, &p.CreatedBy)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *BillingRepository) GetPayment(ctx context.Context, id int) (*models.Payment, error) {
	p, err := scanPayment(r.q.QueryRow(ctx, `SELECT `+paymentColumns+` FROM payments WHERE id=$1`, id))
	return p, mapErr(err)
}

func (r *BillingRepository) GetPaymentByExternalRef(ctx context.Context, ref string) (*models.Payment, error) {
	p, err := scanPayment(r.q.QueryRow(ctx, `SELECT `+paymentColumns+` FROM payments WHERE external_ref=$1`, ref))
	return p, mapErr(err)
}

func (r *BillingRepository) ListPayments(ctx context.Context, projectID int) ([]*models.Payment, error) {
	rows, err := r.q.Query(ctx,
		`SELECT `+paymentColumns+` FROM payments WHERE project_id=$1 ORDER BY received_at DESC, id DESC`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	payments := []*models.Payment{}
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		payments = append(payments, p)
	}
	return payments, rows.Err()
}

func (r *BillingRepository) CountPayments(ctx context.Context, projectID int) (int, error) {
	var n int
	err := r.q.QueryRow(ctx, `SELECT COUNT(*) FROM payments WHERE project_id=$1`, projectID).Scan(&n)
	return n, err
}

func (r *BillingRepository) CreatePayment(ctx context.Context, p *models.Payment) error {
	err := r.q.QueryRow(ctx,
		`INSERT INTO payments(project_id, number, amount, method, note, external_ref, invoiced_to_date, received_at, created_by)
		 VALUES($1, $2, $3, $4, $5, NULLIF($6, ''), $7, $8, $9)
		 RETURNING id`,
		p.ProjectID, p.Number, p.Amount, p.Method, p.Note, p.ExternalRef, p.InvoicedToDate, p.ReceivedAt, p.CreatedBy,
	).Scan(&p.ID)
	return mapErr(err)
}

// SumPaid totals the project's payments up to and including throughID; 0 means all of them
func (r *BillingRepository) SumPaid(ctx context.Context, projectID int, throughID int) (decimal.Decimal, error) {
	var total decimal.Decimal
	err := r.q.QueryRow(ctx,
		`SELECT COALESCE(SUM(amount), 0) FROM payments WHERE project_id=$1 AND ($2::int = 0 OR id <= $2::int)`,
		projectID, throughID).Scan(&total)
	return total, err
}

// ============================================
// File manifest
// ============================================

const fileColumns = `id, project_id, kind, reference_id, file_name, storage_key, content_type, uploaded,
	created_by, created_at`

func scanFile(row rowScanner) (*models.ProjectFile, error) {
	var f models.ProjectFile
	err := row.Scan(&f.ID, &f.ProjectID, &f.Kind, &f.ReferenceID, &f.FileName, &f.StorageKey,
		&f.ContentType, &f.Uploaded, &f.CreatedBy, &f.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &f, nil
}

func (r *BillingRepository) CreateFile(ctx context.Context, f *models.ProjectFile) error {
	err := r.q.QueryRow(ctx,
		`INSERT INTO project_files(project_id, kind, reference_id, file_name, storage_key, content_type, uploaded, created_by, created_at)
		 VALUES($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 RETURNING id`,
		f.ProjectID, f.Kind, f.ReferenceID, f.FileName, f.StorageKey, f.ContentType, f.Uploaded, f.CreatedBy, f.CreatedAt,
	).Scan(&f.ID)
	return mapErr(err)
}

func (r *BillingRepository) GetFile(ctx context.Context, id int) (*models.ProjectFile, error) {
	f, err := scanFile(r.q.QueryRow(ctx, `SELECT `+fileColumns+` FROM project_files WHERE id=$1`, id))
	return f, mapErr(err)
}

func (r *BillingRepository) ListFiles(ctx context.Context, projectID int) ([]*models.ProjectFile, error) {
	rows, err := r.q.Query(ctx,
		`SELECT `+fileColumns+` FROM project_files WHERE project_id=$1 ORDER BY created_at DESC, id DESC`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	files := []*models.ProjectFile{}
	for rows.Next() {
		f, err := scanFile(rows)
		if err != nil {
			return nil, err
		}
		files = append(files, f)
	}
	return files, rows.Err()
}

func (r *BillingRepository) MarkFileUploaded(ctx context.Context, id int) error {
	return expectOne(r.q.Exec(ctx, `UPDATE project_files SET uploaded=TRUE WHERE id=$1`, id))
}
