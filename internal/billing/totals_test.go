package billing

import (
	"testing"

	"agency-crm/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrice(t *testing.T) {
	items, totals := Price([]models.LineItem{
		{Description: "Hosting", UnitPrice: dec("100"), Quantity: dec("1"), VATPercent: dec("21")},
		{Description: "Design hours", UnitPrice: dec("50"), Quantity: dec("2"), VATPercent: dec("21")},
	})

	require.Len(t, items, 2)
	assertMoney(t, "100.00", items[1].Base)
	assertMoney(t, "21.00", items[1].VATAmount)
	assertMoney(t, "121.00", items[1].Total)
	assertMoney(t, "200.00", totals.Subtotal)
	assertMoney(t, "42.00", totals.VAT)
	assertMoney(t, "242.00", totals.Total)
}

func TestPriceRoundsTotalsOnce(t *testing.T) {
	item := models.LineItem{UnitPrice: dec("0.333"), Quantity: dec("1"), VATPercent: dec("21")}

	items, totals := Price([]models.LineItem{item, item})

	assertMoney(t, "0.33", items[0].Base)
	assertMoney(t, "0.07", items[0].VATAmount)
	assertMoney(t, "0.67", totals.Subtotal)
	assertMoney(t, "0.14", totals.VAT)
	assertMoney(t, "0.81", totals.Total)
}

func TestPriceEmpty(t *testing.T) {
	items, totals := Price(nil)

	assert.Empty(t, items)
	assert.True(t, totals.Total.IsZero())
}

func TestSnapshotSkipsInvoicedRows(t *testing.T) {
	invoiceID := 3
	services := []*models.ProjectService{
		{ID: 1, Name: "Hosting", Description: "Annual plan", UnitPrice: dec("100"), Quantity: dec("1"), VATPercent: dec("21")},
		{ID: 2, Name: "SEO", UnitPrice: dec("300"), Quantity: dec("1"), VATPercent: dec("21"), InvoiceID: &invoiceID},
	}
	lines := []*models.BudgetLine{
		{ID: 5, Description: "Copywriting", UnitPrice: dec("40"), Quantity: dec("3"), VATPercent: dec("21")},
		{ID: 6, Description: "Old", UnitPrice: dec("1"), Quantity: dec("1"), VATPercent: dec("21"), InvoiceID: &invoiceID},
	}

	items := Snapshot(services, lines)

	require.Len(t, items, 2)
	assert.Equal(t, "Hosting - Annual plan", items[0].Description)
	assert.Equal(t, models.SourceService, items[0].Source)
	assert.Equal(t, 1, items[0].SourceID)
	assert.Equal(t, models.SourceManual, items[1].Source)
	assert.Equal(t, 5, items[1].SourceID)

	totals := DraftTotals(services, lines)
	assertMoney(t, "220.00", totals.Subtotal)
}
