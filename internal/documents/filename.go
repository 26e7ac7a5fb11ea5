package documents

import (
	"fmt"
	"strings"
	"time"
	"unicode"

	"agency-crm/internal/models"
	"agency-crm/internal/timeutil"
)

var kindTitles = map[models.FileKind]string{
	models.FileBudget:  "Budget",
	models.FileInvoice: "Invoice",
	models.FileReceipt: "Receipt",
}

// Title is the heading printed on a document kind
func Title(kind models.FileKind) string {
	if t, ok := kindTitles[kind]; ok {
		return t
	}
	return "Document"
}

// FileName builds names like Invoice_ACME_FAC-ACME-002_2026-03-01.pdf
func FileName(kind models.FileKind, p *models.Project, number string, at time.Time) string {
	return fmt.Sprintf("%s_%s_%s_%s.pdf",
		Title(kind),
		sanitize(p.DisplayName()),
		sanitize(number),
		at.In(timeutil.Local).Format(timeutil.DateLayout),
	)
}

func sanitize(s string) string {
	var b strings.Builder
	lastDash := false
	for _, r := range strings.TrimSpace(s) {
		switch {
		case r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)):
			b.WriteRune(r)
			lastDash = false
		case r == '-' || r == '.':
			b.WriteRune(r)
			lastDash = r == '-'
		default:
			if !lastDash && b.Len() > 0 {
				b.WriteRune('-')
				lastDash = true
			}
		}
	}
	out := strings.Trim(b.String(), "-")
	if out == "" {
		return "project"
	}
	return out
}
