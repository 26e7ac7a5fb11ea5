package documents

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"agency-crm/internal/models"
	"agency-crm/internal/timeutil"

	"github.com/jung-kurt/gofpdf/v2"
	"github.com/shopspring/decimal"
)

// CompanyProvider supplies the issuer block printed in the document header
type CompanyProvider interface {
	CompanyInfo(ctx context.Context) models.CompanyInfo
}

// Generator renders budgets, invoices and receipts as A4 PDFs
type Generator struct {
	Company  CompanyProvider
	Currency string
}

func NewGenerator(company CompanyProvider, currency string) *Generator {
	if currency == "" {
		currency = "EUR"
	}
	return &Generator{Company: company, Currency: currency}
}

// page wraps a gofpdf document with a UTF-8 to cp1252 translator for the core fonts
type page struct {
	pdf *gofpdf.Fpdf
	tr  func(string) string
}

func (g *Generator) RenderBudget(ctx context.Context, p *models.Project, b *models.Budget) ([]byte, error) {
	pg := g.newPage()
	g.header(ctx, pg, models.FileBudget, b.Number, b.CreatedAt)
	g.clientBlock(pg, p)
	if b.Status != models.BudgetPending {
		pg.pdf.SetFont("Arial", "B", 10)
		pg.pdf.CellFormat(190, 6, pg.tr("Status: "+string(b.Status)), "", 1, "R", false, 0, "")
	}
	g.itemsTable(pg, b.Items)
	g.totals(pg, b.Subtotal, b.VAT, b.Total)
	g.footer(ctx, pg)
	return pg.bytes()
}

func (g *Generator) RenderInvoice(ctx context.Context, p *models.Project, inv *models.Invoice) ([]byte, error) {
	pg := g.newPage()
	g.header(ctx, pg, models.FileInvoice, inv.Number, inv.IssuedAt)
	g.clientBlock(pg, p)
	g.itemsTable(pg, inv.Items)
	g.totals(pg, inv.Subtotal, inv.VAT, inv.Total)
	g.footer(ctx, pg)
	return pg.bytes()
}

// RenderReceipt prints the payment and the balance left after it
func (g *Generator) RenderReceipt(ctx context.Context, p *models.Project, pay *models.Payment, summary *models.BillingSummary) ([]byte, error) {
	pg := g.newPage()
	g.header(ctx, pg, models.FileReceipt, pay.Number, pay.ReceivedAt)
	g.clientBlock(pg, p)

	pdf := pg.pdf
	pdf.SetFillColor(240, 240, 240)
	pdf.SetFont("Arial", "B", 12)
	pdf.CellFormat(190, 8, "Payment", "1", 1, "L", true, 0, "")

	pdf.SetFont("Arial", "", 11)
	pdf.CellFormat(95, 7, pg.tr("Date: "+pay.ReceivedAt.In(timeutil.Local).Format(timeutil.DisplayLayout)), "LB", 0, "L", false, 0, "")
	pdf.CellFormat(95, 7, pg.tr("Method: "+pay.Method.Label()), "RB", 1, "L", false, 0, "")
	pdf.SetFont("Arial", "B", 12)
	pdf.CellFormat(190, 8, pg.tr("Amount received: "+g.money(pay.Amount)), "LRB", 1, "L", false, 0, "")
	if pay.Note != "" {
		pdf.SetFont("Arial", "", 10)
		pdf.MultiCell(190, 6, pg.tr("Note: "+pay.Note), "LRB", "L", false)
	}
	pdf.Ln(5)

	pdf.SetFont("Arial", "B", 12)
	pdf.CellFormat(190, 8, "Account summary", "1", 1, "L", true, 0, "")
	pdf.SetFont("Arial", "", 11)
	pdf.CellFormat(95, 7, pg.tr("Total invoiced: "+g.money(summary.TotalInvoiced)), "LB", 0, "L", false, 0, "")
	pdf.CellFormat(95, 7, pg.tr("Total paid: "+g.money(summary.TotalPaid)), "RB", 1, "L", false, 0, "")

	if summary.Remaining.IsPositive() {
		pdf.SetFillColor(255, 220, 220)
	} else {
		pdf.SetFillColor(210, 245, 210)
	}
	pdf.SetFont("Arial", "B", 13)
	balance := "Remaining balance: " + g.money(summary.Remaining)
	if !summary.Remaining.IsPositive() {
		balance = "PAID IN FULL"
		if summary.Remaining.IsNegative() {
			balance = "Credit in favour of client: " + g.money(summary.Remaining.Neg())
		}
	}
	pdf.CellFormat(190, 10, pg.tr(balance), "1", 1, "C", true, 0, "")

	g.footer(ctx, pg)
	return pg.bytes()
}

func (g *Generator) newPage() *page {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(10, 10, 10)
	pdf.SetAutoPageBreak(true, 15)
	pdf.AddPage()
	return &page{pdf: pdf, tr: pdf.UnicodeTranslatorFromDescriptor("")}
}

func (pg *page) bytes() ([]byte, error) {
	var buf bytes.Buffer
	if err := pg.pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to write pdf: %w", err)
	}
	return buf.Bytes(), nil
}

func (g *Generator) company(ctx context.Context) models.CompanyInfo {
	if g.Company == nil {
		return models.CompanyInfo{}
	}
	return g.Company.CompanyInfo(ctx)
}

func (g *Generator) header(ctx context.Context, pg *page, kind models.FileKind, number string, at time.Time) {
	pdf := pg.pdf
	c := g.company(ctx)

	top := pdf.GetY()
	pdf.SetFont("Arial", "B", 16)
	pdf.CellFormat(110, 8, pg.tr(c.Name), "", 1, "L", false, 0, "")
	pdf.SetFont("Arial", "", 9)
	for _, line := range []string{c.TaxID, c.Address, joinNonEmpty(" | ", c.Email, c.Phone)} {
		if line != "" {
			pdf.CellFormat(110, 5, pg.tr(line), "", 1, "L", false, 0, "")
		}
	}
	bottom := pdf.GetY()

	pdf.SetXY(120, top)
	pdf.SetFont("Arial", "B", 18)
	pdf.CellFormat(80, 9, pg.tr(strings.ToUpper(Title(kind))), "", 2, "R", false, 0, "")
	pdf.SetFont("Arial", "", 10)
	pdf.CellFormat(80, 6, pg.tr("No. "+number), "", 2, "R", false, 0, "")
	pdf.CellFormat(80, 6, pg.tr("Date: "+at.In(timeutil.Local).Format(timeutil.DisplayLayout)), "", 2, "R", false, 0, "")

	if pdf.GetY() > bottom {
		bottom = pdf.GetY()
	}
	pdf.SetXY(10, bottom+4)
}

func (g *Generator) clientBlock(pg *page, p *models.Project) {
	pdf := pg.pdf
	pdf.SetFillColor(240, 240, 240)
	pdf.SetFont("Arial", "B", 12)
	pdf.CellFormat(190, 8, "Client", "1", 1, "L", true, 0, "")

	pdf.SetFont("Arial", "", 10)
	pdf.CellFormat(95, 7, pg.tr("Client: "+p.ClientName), "LB", 0, "L", false, 0, "")
	pdf.CellFormat(95, 7, pg.tr("Tax ID: "+p.ClientTaxID), "RB", 1, "L", false, 0, "")
	pdf.CellFormat(95, 7, pg.tr("Project: "+truncate(p.Name, 40)), "LB", 0, "L", false, 0, "")
	pdf.CellFormat(95, 7, pg.tr("Reference: "+p.Alias), "RB", 1, "L", false, 0, "")
	if p.ClientEmail != "" {
		pdf.CellFormat(190, 7, pg.tr("Email: "+p.ClientEmail), "LRB", 1, "L", false, 0, "")
	}
	pdf.Ln(5)
}

func (g *Generator) itemsTable(pg *page, items []models.LineItem) {
	pdf := pg.pdf
	widths := []float64{80, 18, 25, 17, 25, 25}
	headers := []string{"Description", "Qty", "Unit price", "VAT %", "Base", "Total"}

	pdf.SetFont("Arial", "B", 10)
	pdf.SetFillColor(200, 200, 200)
	for i, h := range headers {
		ln := 0
		if i == len(headers)-1 {
			ln = 1
		}
		pdf.CellFormat(widths[i], 7, h, "1", ln, "C", true, 0, "")
	}

	pdf.SetFont("Arial", "", 9)
	for _, item := range items {
		pdf.CellFormat(widths[0], 6, pg.tr(truncate(item.Description, 48)), "1", 0, "L", false, 0, "")
		pdf.CellFormat(widths[1], 6, item.Quantity.String(), "1", 0, "R", false, 0, "")
		pdf.CellFormat(widths[2], 6, pg.tr(g.money(item.UnitPrice)), "1", 0, "R", false, 0, "")
		pdf.CellFormat(widths[3], 6, item.VATPercent.String(), "1", 0, "R", false, 0, "")
		pdf.CellFormat(widths[4], 6, pg.tr(g.money(item.Base)), "1", 0, "R", false, 0, "")
		pdf.CellFormat(widths[5], 6, pg.tr(g.money(item.Total)), "1", 1, "R", false, 0, "")
	}
	pdf.Ln(4)
}

func (g *Generator) totals(pg *page, subtotal, vat, total decimal.Decimal) {
	pdf := pg.pdf
	rows := []struct {
		label string
		value decimal.Decimal
		bold  bool
	}{
		{"Subtotal", subtotal, false},
		{"VAT", vat, false},
		{"Total", total, true},
	}
	for _, r := range rows {
		style := ""
		if r.bold {
			style = "B"
		}
		pdf.SetFont("Arial", style, 11)
		pdf.CellFormat(140, 7, r.label, "", 0, "R", false, 0, "")
		pdf.CellFormat(50, 7, pg.tr(g.money(r.value)), "1", 1, "R", false, 0, "")
	}
}

func (g *Generator) footer(ctx context.Context, pg *page) {
	c := g.company(ctx)
	if c.Footer == "" {
		return
	}
	pdf := pg.pdf
	pdf.Ln(8)
	pdf.SetFont("Arial", "I", 8)
	pdf.MultiCell(190, 4, pg.tr(c.Footer), "", "C", false)
}

func (g *Generator) money(d decimal.Decimal) string {
	return d.StringFixed(2) + " " + g.Currency
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-3]) + "..."
}

func joinNonEmpty(sep string, parts ...string) string {
	var kept []string
	for _, p := range parts {
		if p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, sep)
}
