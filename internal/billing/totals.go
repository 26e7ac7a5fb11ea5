package billing

import (
	"agency-crm/internal/models"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Price fills the per-line figures of items and returns the document totals.
// Subtotal and VAT are summed unrounded and rounded to cents once.
func Price(items []models.LineItem) ([]models.LineItem, models.Totals) {
	priced := make([]models.LineItem, len(items))
	subtotal := decimal.Zero
	vat := decimal.Zero

	for i, item := range items {
		base := item.UnitPrice.Mul(item.Quantity)
		lineVAT := base.Mul(item.VATPercent).Div(hundred)

		subtotal = subtotal.Add(base)
		vat = vat.Add(lineVAT)

		item.Base = base.Round(2)
		item.VATAmount = lineVAT.Round(2)
		item.Total = base.Add(lineVAT).Round(2)
		priced[i] = item
	}

	subtotal = subtotal.Round(2)
	vat = vat.Round(2)

	return priced, models.Totals{
		Subtotal: subtotal,
		VAT:      vat,
		Total:    subtotal.Add(vat),
	}
}

// Snapshot turns the unlocked draft rows into line items. Locked rows are skipped.
func Snapshot(services []*models.ProjectService, lines []*models.BudgetLine) []models.LineItem {
	items := make([]models.LineItem, 0, len(services)+len(lines))
	for _, s := range services {
		if s.Locked() {
			continue
		}
		desc := s.Name
		if s.Description != "" {
			desc = s.Name + " - " + s.Description
		}
		items = append(items, models.LineItem{
			Source:      models.SourceService,
			SourceID:    s.ID,
			Description: desc,
			Quantity:    s.Quantity,
			UnitPrice:   s.UnitPrice,
			VATPercent:  s.VATPercent,
		})
	}
	for _, l := range lines {
		if l.Locked() {
			continue
		}
		items = append(items, models.LineItem{
			Source:      models.SourceManual,
			SourceID:    l.ID,
			Description: l.Description,
			Quantity:    l.Quantity,
			UnitPrice:   l.UnitPrice,
			VATPercent:  l.VATPercent,
		})
	}
	return items
}

// DraftTotals prices the current unlocked rows without persisting anything
func DraftTotals(services []*models.ProjectService, lines []*models.BudgetLine) models.Totals {
	_, totals := Price(Snapshot(services, lines))
	return totals
}

func validLine(unitPrice, quantity, vatPercent decimal.Decimal) bool {
	return !unitPrice.IsNegative() &&
		quantity.IsPositive() &&
		!vatPercent.IsNegative() && vatPercent.LessThanOrEqual(hundred)
}
