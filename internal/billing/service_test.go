package billing

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"agency-crm/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockRenderer struct {
	mock.Mock
}

func (m *mockRenderer) RenderBudget(ctx context.Context, p *models.Project, b *models.Budget) ([]byte, error) {
	args := m.Called(ctx, p, b)
	data, _ := args.Get(0).([]byte)
	return data, args.Error(1)
}

func (m *mockRenderer) RenderInvoice(ctx context.Context, p *models.Project, inv *models.Invoice) ([]byte, error) {
	args := m.Called(ctx, p, inv)
	data, _ := args.Get(0).([]byte)
	return data, args.Error(1)
}

func (m *mockRenderer) RenderReceipt(ctx context.Context, p *models.Project, pay *models.Payment, summary *models.BillingSummary) ([]byte, error) {
	args := m.Called(ctx, p, pay, summary)
	data, _ := args.Get(0).([]byte)
	return data, args.Error(1)
}

func renderingOK() *mockRenderer {
	r := new(mockRenderer)
	r.On("RenderBudget", mock.Anything, mock.Anything, mock.Anything).Return([]byte("%PDF-budget"), nil).Maybe()
	r.On("RenderInvoice", mock.Anything, mock.Anything, mock.Anything).Return([]byte("%PDF-invoice"), nil).Maybe()
	r.On("RenderReceipt", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return([]byte("%PDF-receipt"), nil).Maybe()
	return r
}

type memObjects struct {
	enabled bool
	putErr  error
	data    map[string][]byte
}

func (o *memObjects) Put(ctx context.Context, key string, body []byte, contentType string) error {
	if o.putErr != nil {
		return o.putErr
	}
	o.data[key] = body
	return nil
}

func (o *memObjects) Get(ctx context.Context, key string) ([]byte, error) {
	d, ok := o.data[key]
	if !ok {
		return nil, errors.New("no such key")
	}
	return d, nil
}

func (o *memObjects) Enabled() bool { return o.enabled }

type eventRecorder struct {
	events []models.ChangeEvent
}

func (r *eventRecorder) Publish(ctx context.Context, e models.ChangeEvent) {
	r.events = append(r.events, e)
}

func (r *eventRecorder) tables() []string {
	out := make([]string, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Table)
	}
	return out
}

type fixture struct {
	store    *memStore
	renderer *mockRenderer
	objects  *memObjects
	events   *eventRecorder
	svc      *Service
}

const (
	projectID = 1
	otherID   = 2
	hostingID = 10
	userID    = 7
)

func newFixture(t *testing.T) *fixture {
	t.Helper()

	st := newMemStore()
	st.projects[projectID] = &models.Project{ID: projectID, Name: "Web shop", Alias: "acme", ClientName: "ACME SL"}
	st.projects[otherID] = &models.Project{ID: otherID, Name: "Other", Alias: "OTH"}
	st.catalog[hostingID] = &models.Service{
		ID:         hostingID,
		Name:       "Hosting",
		UnitPrice:  dec("100"),
		VATPercent: dec("21"),
		Active:     true,
	}

	f := &fixture{
		store:    st,
		renderer: renderingOK(),
		objects:  &memObjects{enabled: true, data: map[string][]byte{}},
		events:   &eventRecorder{},
	}
	f.svc = NewService(st, f.renderer, f.objects, f.events)

	clock := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	f.svc.Now = func() time.Time {
		clock = clock.Add(time.Minute)
		return clock
	}
	return f
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func assertMoney(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	assert.Equal(t, want, got.StringFixed(2))
}

// seedDraft attaches Hosting (100 x 1 @ 21%) and a manual line of 50 x 2 @ 21%
func (f *fixture) seedDraft(t *testing.T) (*models.ProjectService, *models.BudgetLine) {
	t.Helper()
	ctx := context.Background()

	ps, err := f.svc.AddService(ctx, projectID, &models.AddProjectServiceRequest{ServiceID: hostingID})
	require.NoError(t, err)
	line, err := f.svc.AddLine(ctx, projectID, &models.BudgetLineRequest{
		Description: "Design hours",
		UnitPrice:   dec("50"),
		Quantity:    dec("2"),
		VATPercent:  dec("21"),
	}, userID)
	require.NoError(t, err)
	return ps, line
}

func (f *fixture) countPending() int {
	n := 0
	for _, b := range f.store.budgets {
		if b.ProjectID == projectID && b.Status == models.BudgetPending {
			n++
		}
	}
	return n
}

func (f *fixture) unbilledRows() int {
	n := 0
	for _, s := range f.store.services {
		if s.ProjectID == projectID && !s.Locked() {
			n++
		}
	}
	for _, l := range f.store.lines {
		if l.ProjectID == projectID && !l.Locked() {
			n++
		}
	}
	return n
}

func TestGenerateBudget(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedDraft(t)

	lines, err := f.svc.Lines(ctx, projectID)
	require.NoError(t, err)
	assertMoney(t, "242.00", lines.Draft.Total)
	assert.Nil(t, lines.PendingBudget)

	result, err := f.svc.GenerateBudget(ctx, projectID, &models.GenerateBudgetRequest{}, userID)
	require.NoError(t, err)

	b := result.Budget
	assert.Equal(t, "PRE-ACME-001", b.Number)
	assert.Equal(t, models.BudgetPending, b.Status)
	require.Len(t, b.Items, 2)
	assert.Equal(t, "Hosting", b.Items[0].Description)
	assert.Equal(t, models.SourceManual, b.Items[1].Source)
	assertMoney(t, "200.00", b.Subtotal)
	assertMoney(t, "42.00", b.VAT)
	assertMoney(t, "242.00", b.Total)
	assert.Nil(t, result.Denied)
	assert.Empty(t, result.DocumentError)

	require.NotNil(t, result.File)
	assert.Equal(t, models.FileBudget, result.File.Kind)
	assert.Equal(t, b.ID, result.File.ReferenceID)
	assert.True(t, result.File.Uploaded)
	assert.True(t, f.store.files[result.File.ID].Uploaded)
	assert.Equal(t, []byte("%PDF-budget"), f.objects.data[result.File.StorageKey])

	lines, err = f.svc.Lines(ctx, projectID)
	require.NoError(t, err)
	require.NotNil(t, lines.PendingBudget)
	assert.Equal(t, b.ID, lines.PendingBudget.ID)
	assert.Equal(t, 2, f.unbilledRows(), "generating a budget keeps the draft rows")
	assert.Contains(t, f.events.tables(), "budgets")
}

func TestGenerateBudgetWithoutLines(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.GenerateBudget(context.Background(), projectID, &models.GenerateBudgetRequest{}, userID)

	assert.ErrorIs(t, err, ErrNothingToBill)
	assert.Empty(t, f.store.budgets)
	assert.Empty(t, f.store.files)
}

func TestSinglePendingBudget(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedDraft(t)

	first, err := f.svc.GenerateBudget(ctx, projectID, &models.GenerateBudgetRequest{}, userID)
	require.NoError(t, err)

	_, err = f.svc.GenerateBudget(ctx, projectID, &models.GenerateBudgetRequest{}, userID)
	assert.ErrorIs(t, err, ErrPendingBudgetExists)
	assert.Equal(t, 1, f.countPending())
	assert.Len(t, f.store.budgets, 1)

	second, err := f.svc.GenerateBudget(ctx, projectID, &models.GenerateBudgetRequest{ReplacePending: true}, userID)
	require.NoError(t, err)

	require.NotNil(t, second.Denied)
	assert.Equal(t, first.Budget.ID, second.Denied.ID)
	assert.Equal(t, models.BudgetDenied, f.store.budgets[first.Budget.ID].Status)
	assert.Equal(t, "PRE-ACME-002", second.Budget.Number)
	assert.Equal(t, 1, f.countPending())
}

func TestPendingBudgetFreezesLines(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ps, line := f.seedDraft(t)

	_, err := f.svc.GenerateBudget(ctx, projectID, &models.GenerateBudgetRequest{}, userID)
	require.NoError(t, err)

	_, err = f.svc.AddService(ctx, projectID, &models.AddProjectServiceRequest{ServiceID: hostingID})
	assert.ErrorIs(t, err, ErrBudgetPending)

	_, err = f.svc.AddLine(ctx, projectID, &models.BudgetLineRequest{
		Description: "Extra", UnitPrice: dec("1"), Quantity: dec("1"), VATPercent: dec("21"),
	}, userID)
	assert.ErrorIs(t, err, ErrBudgetPending)

	_, err = f.svc.UpdateLine(ctx, line.ID, &models.BudgetLineRequest{
		Description: "Design hours", UnitPrice: dec("60"), Quantity: dec("2"), VATPercent: dec("21"),
	})
	assert.ErrorIs(t, err, ErrBudgetPending)

	assert.ErrorIs(t, f.svc.RemoveService(ctx, ps.ID), ErrBudgetPending)
	assert.ErrorIs(t, f.svc.RemoveLine(ctx, line.ID), ErrBudgetPending)

	_, err = f.svc.IssueDirectInvoice(ctx, projectID, &models.DirectInvoiceRequest{ServiceIDs: []int{ps.ID}}, userID)
	assert.ErrorIs(t, err, ErrBudgetPending)

	assertMoney(t, "50.00", f.store.lines[line.ID].UnitPrice)
	assert.Empty(t, f.store.invoices)
}

func TestConfirmBudget(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedDraft(t)

	gen, err := f.svc.GenerateBudget(ctx, projectID, &models.GenerateBudgetRequest{}, userID)
	require.NoError(t, err)

	result, err := f.svc.ConfirmBudget(ctx, gen.Budget.ID, userID)
	require.NoError(t, err)

	inv := result.Invoice
	assert.Equal(t, "FAC-ACME-001", inv.Number)
	assert.Equal(t, models.InvoiceFromBudget, inv.Origin)
	require.NotNil(t, inv.BudgetID)
	assert.Equal(t, gen.Budget.ID, *inv.BudgetID)
	assertMoney(t, "242.00", inv.Total)
	assert.Equal(t, gen.Budget.Items, inv.Items)

	assert.Len(t, f.store.invoices, 1)
	assert.Equal(t, models.BudgetConfirmed, f.store.budgets[gen.Budget.ID].Status)
	require.NotNil(t, f.store.budgets[gen.Budget.ID].DecidedBy)
	assert.Equal(t, userID, *f.store.budgets[gen.Budget.ID].DecidedBy)
	assert.Zero(t, f.unbilledRows())
	assertMoney(t, "242.00", f.store.projects[projectID].TotalInvoiced)

	assert.Equal(t, models.FileInvoice, result.File.Kind)
	assert.Len(t, f.store.files, 2)
	assert.Contains(t, f.events.tables(), "invoices")

	_, err = f.svc.AddLine(ctx, projectID, &models.BudgetLineRequest{
		Description: "Next phase", UnitPrice: dec("10"), Quantity: dec("1"), VATPercent: dec("21"),
	}, userID)
	assert.NoError(t, err, "lines are editable again once the budget is decided")

	_, err = f.svc.ConfirmBudget(ctx, gen.Budget.ID, userID)
	assert.ErrorIs(t, err, ErrBudgetNotPending)
	assert.Len(t, f.store.invoices, 1)
}

func TestConfirmBudgetRollsBack(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedDraft(t)

	gen, err := f.svc.GenerateBudget(ctx, projectID, &models.GenerateBudgetRequest{}, userID)
	require.NoError(t, err)

	f.store.failOn = "DeleteUnbilledLines"
	_, err = f.svc.ConfirmBudget(ctx, gen.Budget.ID, userID)
	require.ErrorIs(t, err, errInjected)

	assert.Equal(t, models.BudgetPending, f.store.budgets[gen.Budget.ID].Status)
	assert.Empty(t, f.store.invoices)
	assert.Len(t, f.store.files, 1)
	assert.Equal(t, 2, f.unbilledRows())
	assert.True(t, f.store.projects[projectID].TotalInvoiced.IsZero())

	f.store.failOn = ""
	_, err = f.svc.ConfirmBudget(ctx, gen.Budget.ID, userID)
	assert.NoError(t, err)
}

func TestDenyBudget(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, line := f.seedDraft(t)

	gen, err := f.svc.GenerateBudget(ctx, projectID, &models.GenerateBudgetRequest{}, userID)
	require.NoError(t, err)

	denied, err := f.svc.DenyBudget(ctx, gen.Budget.ID, userID)
	require.NoError(t, err)
	assert.Equal(t, models.BudgetDenied, denied.Status)
	require.NotNil(t, denied.DecidedAt)
	assert.Empty(t, f.store.invoices)

	updated, err := f.svc.UpdateLine(ctx, line.ID, &models.BudgetLineRequest{
		Description: "Design hours", UnitPrice: dec("60"), Quantity: dec("2"), VATPercent: dec("21"),
	})
	require.NoError(t, err)
	assertMoney(t, "60.00", updated.UnitPrice)

	_, err = f.svc.ConfirmBudget(ctx, gen.Budget.ID, userID)
	assert.ErrorIs(t, err, ErrBudgetNotPending)
	_, err = f.svc.DenyBudget(ctx, gen.Budget.ID, userID)
	assert.ErrorIs(t, err, ErrBudgetNotPending)

	next, err := f.svc.GenerateBudget(ctx, projectID, &models.GenerateBudgetRequest{}, userID)
	require.NoError(t, err)
	assert.Equal(t, "PRE-ACME-002", next.Budget.Number)
	assertMoney(t, "266.20", next.Budget.Total)
}

func TestDirectInvoice(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ps, line := f.seedDraft(t)
	spare, err := f.svc.AddLine(ctx, projectID, &models.BudgetLineRequest{
		Description: "Domain", UnitPrice: dec("10"), Quantity: dec("1"), VATPercent: dec("0"),
	}, userID)
	require.NoError(t, err)

	result, err := f.svc.IssueDirectInvoice(ctx, projectID, &models.DirectInvoiceRequest{
		ServiceIDs:    []int{ps.ID, ps.ID},
		BudgetLineIDs: []int{line.ID},
	}, userID)
	require.NoError(t, err)

	inv := result.Invoice
	assert.Equal(t, "FAC-ACME-001", inv.Number)
	assert.Equal(t, models.InvoiceDirect, inv.Origin)
	assert.Nil(t, inv.BudgetID)
	require.Len(t, inv.Items, 2)
	assertMoney(t, "242.00", inv.Total)

	require.Contains(t, f.store.services, ps.ID, "direct invoicing keeps the rows as history")
	require.NotNil(t, f.store.services[ps.ID].InvoiceID)
	assert.Equal(t, inv.ID, *f.store.services[ps.ID].InvoiceID)
	assert.True(t, f.store.lines[line.ID].Locked())
	assert.False(t, f.store.lines[spare.ID].Locked())
	assertMoney(t, "242.00", f.store.projects[projectID].TotalInvoiced)

	_, err = f.svc.UpdateLine(ctx, line.ID, &models.BudgetLineRequest{
		Description: "Design hours", UnitPrice: dec("1"), Quantity: dec("1"), VATPercent: dec("21"),
	})
	assert.ErrorIs(t, err, ErrLineLocked)
	assert.ErrorIs(t, f.svc.RemoveService(ctx, ps.ID), ErrLineLocked)
	assert.ErrorIs(t, f.svc.RemoveLine(ctx, line.ID), ErrLineLocked)

	_, err = f.svc.IssueDirectInvoice(ctx, projectID, &models.DirectInvoiceRequest{BudgetLineIDs: []int{line.ID}}, userID)
	assert.ErrorIs(t, err, ErrLineLocked)
	assert.Len(t, f.store.invoices, 1)

	gen, err := f.svc.GenerateBudget(ctx, projectID, &models.GenerateBudgetRequest{}, userID)
	require.NoError(t, err)
	require.Len(t, gen.Budget.Items, 1, "invoiced rows never reach a budget")
	assertMoney(t, "10.00", gen.Budget.Total)

	_, err = f.svc.ConfirmBudget(ctx, gen.Budget.ID, userID)
	require.NoError(t, err)
	assert.Contains(t, f.store.services, ps.ID)
	assert.Contains(t, f.store.lines, line.ID)
	assert.NotContains(t, f.store.lines, spare.ID)
	assertMoney(t, "252.00", f.store.projects[projectID].TotalInvoiced)
}

func TestDirectInvoiceValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	foreign := &models.BudgetLine{ProjectID: otherID, Description: "x", UnitPrice: dec("1"), Quantity: dec("1"), VATPercent: dec("21")}
	require.NoError(t, f.store.CreateBudgetLine(ctx, foreign))

	_, err := f.svc.IssueDirectInvoice(ctx, projectID, &models.DirectInvoiceRequest{}, userID)
	assert.ErrorIs(t, err, ErrNothingToBill)

	_, err = f.svc.IssueDirectInvoice(ctx, projectID, &models.DirectInvoiceRequest{BudgetLineIDs: []int{foreign.ID}}, userID)
	assert.ErrorIs(t, err, ErrWrongProject)
	assert.Empty(t, f.store.invoices)
	assert.False(t, f.store.lines[foreign.ID].Locked())
}

func TestLineValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tests := []struct {
		name string
		req  models.BudgetLineRequest
	}{
		{"empty description", models.BudgetLineRequest{Description: " ", UnitPrice: dec("1"), Quantity: dec("1"), VATPercent: dec("21")}},
		{"negative price", models.BudgetLineRequest{Description: "a", UnitPrice: dec("-1"), Quantity: dec("1"), VATPercent: dec("21")}},
		{"zero quantity", models.BudgetLineRequest{Description: "a", UnitPrice: dec("1"), Quantity: dec("0"), VATPercent: dec("21")}},
		{"vat above 100", models.BudgetLineRequest{Description: "a", UnitPrice: dec("1"), Quantity: dec("1"), VATPercent: dec("101")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.AddLine(ctx, projectID, &tt.req, userID)
			assert.ErrorIs(t, err, ErrInvalidLine)
		})
	}

	negative := dec("-5")
	_, err := f.svc.AddService(ctx, projectID, &models.AddProjectServiceRequest{ServiceID: hostingID, UnitPrice: &negative})
	assert.ErrorIs(t, err, ErrInvalidLine)

	_, err = f.svc.AddService(ctx, projectID, &models.AddProjectServiceRequest{ServiceID: 999})
	assert.ErrorIs(t, err, models.ErrNotFound)
	assert.Empty(t, f.store.services)
}

func TestServiceOverrides(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	qty := dec("3")
	vat := dec("10")

	ps, err := f.svc.AddService(ctx, projectID, &models.AddProjectServiceRequest{ServiceID: hostingID, Quantity: &qty, VATPercent: &vat})
	require.NoError(t, err)
	assertMoney(t, "100.00", ps.UnitPrice)
	assert.True(t, ps.Quantity.Equal(qty))

	desc := "  Annual plan "
	price := dec("80")
	ps, err = f.svc.UpdateService(ctx, ps.ID, &models.UpdateProjectServiceRequest{Description: &desc, UnitPrice: &price})
	require.NoError(t, err)
	assert.Equal(t, "Annual plan", ps.Description)

	lines, err := f.svc.Lines(ctx, projectID)
	require.NoError(t, err)
	assertMoney(t, "240.00", lines.Draft.Subtotal)
	assertMoney(t, "24.00", lines.Draft.VAT)
	assert.True(t, f.store.catalog[hostingID].UnitPrice.Equal(dec("100")), "catalog price is copied, not shared")
}

func TestRegisterPayment(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedDraft(t)

	gen, err := f.svc.GenerateBudget(ctx, projectID, &models.GenerateBudgetRequest{}, userID)
	require.NoError(t, err)
	_, err = f.svc.ConfirmBudget(ctx, gen.Budget.ID, userID)
	require.NoError(t, err)

	first, err := f.svc.RegisterPayment(ctx, projectID, &models.RegisterPaymentRequest{
		Amount: dec("100"), Method: models.PaymentCash, Note: " deposit ",
	}, userID)
	require.NoError(t, err)
	assert.Equal(t, "REC-ACME-001", first.Payment.Number)
	assert.Equal(t, "deposit", first.Payment.Note)
	assertMoney(t, "242.00", first.Summary.TotalInvoiced)
	assertMoney(t, "100.00", first.Summary.TotalPaid)
	assertMoney(t, "142.00", first.Summary.Remaining)
	assert.False(t, first.Summary.PaidInFull)
	assert.Equal(t, models.FileReceipt, first.File.Kind)
	assert.Empty(t, first.DocumentError)

	second, err := f.svc.RegisterPayment(ctx, projectID, &models.RegisterPaymentRequest{
		Amount: dec("142"), Method: models.PaymentBankTransfer,
	}, userID)
	require.NoError(t, err)
	assert.Equal(t, "REC-ACME-002", second.Payment.Number)
	assert.True(t, second.Summary.Remaining.IsZero())
	assert.True(t, second.Summary.PaidInFull)

	summary, err := f.svc.Summary(ctx, projectID)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.InvoiceCount)
	assert.Equal(t, 2, summary.PaymentCount)
	assert.True(t, summary.PaidInFull)
	assert.Nil(t, summary.PendingBudget)
}

func TestRegisterPaymentValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	before := f.store.calls
	_, err := f.svc.RegisterPayment(ctx, projectID, &models.RegisterPaymentRequest{Amount: dec("0"), Method: models.PaymentCash}, userID)
	assert.ErrorIs(t, err, ErrInvalidAmount)
	_, err = f.svc.RegisterPayment(ctx, projectID, &models.RegisterPaymentRequest{Amount: dec("-3"), Method: models.PaymentCash}, userID)
	assert.ErrorIs(t, err, ErrInvalidAmount)
	_, err = f.svc.RegisterPayment(ctx, projectID, &models.RegisterPaymentRequest{Amount: dec("10"), Method: "crypto"}, userID)
	assert.ErrorIs(t, err, ErrInvalidMethod)
	assert.Equal(t, before, f.store.calls, "invalid input never reaches the store")

	_, err = f.svc.RegisterPayment(ctx, projectID, &models.RegisterPaymentRequest{Amount: dec("10"), Method: models.PaymentCard}, userID)
	assert.ErrorIs(t, err, ErrNoInvoices)
	assert.Empty(t, f.store.payments)
	assert.Empty(t, f.store.files)
}

func TestReceiptDocumentShowsBalanceAfterPayment(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedDraft(t)

	gen, err := f.svc.GenerateBudget(ctx, projectID, &models.GenerateBudgetRequest{}, userID)
	require.NoError(t, err)
	_, err = f.svc.ConfirmBudget(ctx, gen.Budget.ID, userID)
	require.NoError(t, err)

	first, err := f.svc.RegisterPayment(ctx, projectID, &models.RegisterPaymentRequest{Amount: dec("100"), Method: models.PaymentCash}, userID)
	require.NoError(t, err)
	_, err = f.svc.RegisterPayment(ctx, projectID, &models.RegisterPaymentRequest{Amount: dec("142"), Method: models.PaymentCash}, userID)
	require.NoError(t, err)

	name, data, err := f.svc.ReceiptDocument(ctx, first.Payment.ID)
	require.NoError(t, err)
	assert.Equal(t, "Receipt_acme_REC-ACME-001_2026-03-01.pdf", name)
	assert.Equal(t, []byte("%PDF-receipt"), data)

	last := f.renderer.Calls[len(f.renderer.Calls)-1]
	require.Equal(t, "RenderReceipt", last.Method)
	summary := last.Arguments.Get(3).(*models.BillingSummary)
	assertMoney(t, "142.00", summary.Remaining)
	assertMoney(t, "100.00", summary.TotalPaid)

	// a later invoice does not change what an earlier receipt says
	extra, err := f.svc.AddLine(ctx, projectID, &models.BudgetLineRequest{
		Description: "Support", UnitPrice: dec("50"), Quantity: dec("1"), VATPercent: dec("0"),
	}, userID)
	require.NoError(t, err)
	_, err = f.svc.IssueDirectInvoice(ctx, projectID, &models.DirectInvoiceRequest{BudgetLineIDs: []int{extra.ID}}, userID)
	require.NoError(t, err)

	_, _, err = f.svc.ReceiptDocument(ctx, first.Payment.ID)
	require.NoError(t, err)
	last = f.renderer.Calls[len(f.renderer.Calls)-1]
	summary = last.Arguments.Get(3).(*models.BillingSummary)
	assertMoney(t, "242.00", summary.TotalInvoiced)
	assertMoney(t, "142.00", summary.Remaining)
}

func TestDocumentFailureKeepsRecords(t *testing.T) {
	t.Run("render error", func(t *testing.T) {
		f := newFixture(t)
		ctx := context.Background()
		f.seedDraft(t)

		r := new(mockRenderer)
		r.On("RenderBudget", mock.Anything, mock.Anything, mock.Anything).Return(nil, errors.New("font missing"))
		f.svc.Renderer = r

		result, err := f.svc.GenerateBudget(ctx, projectID, &models.GenerateBudgetRequest{}, userID)
		require.NoError(t, err)
		assert.Contains(t, result.DocumentError, "could not be generated")
		assert.Equal(t, 1, f.countPending())
		assert.False(t, f.store.files[result.File.ID].Uploaded)
		r.AssertExpectations(t)
	})

	t.Run("archive error", func(t *testing.T) {
		f := newFixture(t)
		ctx := context.Background()
		f.seedDraft(t)
		f.objects.putErr = errors.New("bucket unreachable")

		result, err := f.svc.GenerateBudget(ctx, projectID, &models.GenerateBudgetRequest{}, userID)
		require.NoError(t, err)
		assert.Contains(t, result.DocumentError, "could not be archived")
		assert.Equal(t, 1, f.countPending())
		assert.False(t, result.File.Uploaded)
	})

	t.Run("storage disabled", func(t *testing.T) {
		f := newFixture(t)
		ctx := context.Background()
		f.seedDraft(t)
		f.objects.enabled = false

		result, err := f.svc.GenerateBudget(ctx, projectID, &models.GenerateBudgetRequest{}, userID)
		require.NoError(t, err)
		assert.Empty(t, result.DocumentError)
		assert.False(t, result.File.Uploaded)
		assert.Empty(t, f.objects.data)
	})
}

func TestFileContent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedDraft(t)

	gen, err := f.svc.GenerateBudget(ctx, projectID, &models.GenerateBudgetRequest{}, userID)
	require.NoError(t, err)
	f.objects.data[gen.File.StorageKey] = []byte("%PDF-archived")

	file, data, err := f.svc.FileContent(ctx, gen.File.ID)
	require.NoError(t, err)
	assert.Equal(t, gen.File.ID, file.ID)
	assert.Equal(t, []byte("%PDF-archived"), data)

	delete(f.objects.data, gen.File.StorageKey)
	_, data, err = f.svc.FileContent(ctx, gen.File.ID)
	require.NoError(t, err)
	assert.Equal(t, []byte("%PDF-budget"), data)

	_, _, err = f.svc.FileContent(ctx, 9999)
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestActionInProgress(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedDraft(t)

	release, ok := f.svc.Locks.TryAcquire(projectID)
	require.True(t, ok)

	_, err := f.svc.GenerateBudget(ctx, projectID, &models.GenerateBudgetRequest{}, userID)
	assert.ErrorIs(t, err, ErrActionInProgress)
	assert.Empty(t, f.store.budgets)

	release()
	_, err = f.svc.GenerateBudget(ctx, projectID, &models.GenerateBudgetRequest{}, userID)
	assert.NoError(t, err)
}

func TestActionLock(t *testing.T) {
	l := NewActionLock()

	var wg sync.WaitGroup
	var mu sync.Mutex
	acquired := 0
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, ok := l.TryAcquire(1); ok {
				mu.Lock()
				acquired++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, acquired)

	other, ok := l.TryAcquire(2)
	require.True(t, ok, "keys are independent")
	other()
	other()

	again, ok := l.TryAcquire(2)
	require.True(t, ok)
	again()
}

func TestTotalsIgnoreInstanceClocks(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedDraft(t)

	// a second instance on the same database whose clock runs two hours ahead
	ahead := NewService(f.store, f.renderer, f.objects, f.events)
	ahead.Now = func() time.Time { return time.Date(2026, 3, 1, 11, 0, 0, 0, time.UTC) }

	gen, err := ahead.GenerateBudget(ctx, projectID, &models.GenerateBudgetRequest{}, userID)
	require.NoError(t, err)
	_, err = ahead.ConfirmBudget(ctx, gen.Budget.ID, userID)
	require.NoError(t, err)

	summary, err := f.svc.Summary(ctx, projectID)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.InvoiceCount)
	assertMoney(t, "242.00", summary.TotalInvoiced)
	assertMoney(t, "242.00", summary.Remaining)

	paid, err := f.svc.RegisterPayment(ctx, projectID, &models.RegisterPaymentRequest{Amount: dec("100"), Method: models.PaymentCash}, userID)
	require.NoError(t, err)
	assertMoney(t, "242.00", paid.Payment.InvoicedToDate)
	assertMoney(t, "142.00", paid.Summary.Remaining)

	line, err := f.svc.AddLine(ctx, projectID, &models.BudgetLineRequest{
		Description: "Domain", UnitPrice: dec("10"), Quantity: dec("1"), VATPercent: dec("0"),
	}, userID)
	require.NoError(t, err)
	_, err = f.svc.IssueDirectInvoice(ctx, projectID, &models.DirectInvoiceRequest{BudgetLineIDs: []int{line.ID}}, userID)
	require.NoError(t, err)
	assertMoney(t, "252.00", f.store.projects[projectID].TotalInvoiced)

	summary, err = ahead.Summary(ctx, projectID)
	require.NoError(t, err)
	assertMoney(t, "152.00", summary.Remaining)
}

func TestSimilarAliasesBillIndependently(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.store.projects[projectID].Alias = "ACME"
	f.store.projects[otherID].Alias = "AC-ME"

	numbers := map[string]bool{}
	for _, id := range []int{projectID, otherID} {
		_, err := f.svc.AddService(ctx, id, &models.AddProjectServiceRequest{ServiceID: hostingID})
		require.NoError(t, err)
		gen, err := f.svc.GenerateBudget(ctx, id, &models.GenerateBudgetRequest{}, userID)
		require.NoError(t, err)
		confirmed, err := f.svc.ConfirmBudget(ctx, gen.Budget.ID, userID)
		require.NoError(t, err)
		paid, err := f.svc.RegisterPayment(ctx, id, &models.RegisterPaymentRequest{Amount: dec("10"), Method: models.PaymentCard}, userID)
		require.NoError(t, err)

		for _, n := range []string{gen.Budget.Number, confirmed.Invoice.Number, paid.Payment.Number} {
			assert.False(t, numbers[n], "number %s issued twice", n)
			numbers[n] = true
		}
	}
	assert.True(t, numbers["PRE-ACME-001"])
	assert.True(t, numbers["FAC-AC-ME-001"])
	assert.True(t, numbers["REC-AC-ME-001"])
}

func TestBilled(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedDraft(t)

	billed, err := f.svc.Billed(ctx, projectID)
	require.NoError(t, err)
	assert.False(t, billed, "draft lines alone are not billing history")

	_, err = f.svc.GenerateBudget(ctx, projectID, &models.GenerateBudgetRequest{}, userID)
	require.NoError(t, err)
	billed, err = f.svc.Billed(ctx, projectID)
	require.NoError(t, err)
	assert.True(t, billed)

	billed, err = f.svc.Billed(ctx, otherID)
	require.NoError(t, err)
	assert.False(t, billed)
}
