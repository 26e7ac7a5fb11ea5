package handlers

import (
	"context"
	"net/http"

	"agency-crm/internal/billing"
	"agency-crm/internal/middleware"
	"agency-crm/internal/models"
	"agency-crm/pkg/utils"
)

// BillingHandler exposes lines, budgets, invoices, payments and their documents
type BillingHandler struct {
	Service *billing.Service
}

func NewBillingHandler(s *billing.Service) *BillingHandler {
	return &BillingHandler{Service: s}
}

// ============================================
// Billable lines
// ============================================

func (h *BillingHandler) Lines(w http.ResponseWriter, r *http.Request) {
	projectID, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	lines, err := h.Service.Lines(r.Context(), projectID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	utils.JSON(w, http.StatusOK, lines)
}

func (h *BillingHandler) AddService(w http.ResponseWriter, r *http.Request) {
	projectID, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req models.AddProjectServiceRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	ps, err := h.Service.AddService(r.Context(), projectID, &req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	utils.JSON(w, http.StatusCreated, ps)
}

func (h *BillingHandler) UpdateService(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req models.UpdateProjectServiceRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	ps, err := h.Service.UpdateService(r.Context(), id, &req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	utils.JSON(w, http.StatusOK, ps)
}

func (h *BillingHandler) RemoveService(w http.ResponseWriter, r *http.Request) {
	h.remove(w, r, h.Service.RemoveService)
}

func (h *BillingHandler) AddLine(w http.ResponseWriter, r *http.Request) {
	projectID, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req models.BudgetLineRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	userID, _ := middleware.GetUserIDFromContext(r.Context())
	line, err := h.Service.AddLine(r.Context(), projectID, &req, userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	utils.JSON(w, http.StatusCreated, line)
}

func (h *BillingHandler) UpdateLine(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req models.BudgetLineRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	line, err := h.Service.UpdateLine(r.Context(), id, &req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	utils.JSON(w, http.StatusOK, line)
}

func (h *BillingHandler) RemoveLine(w http.ResponseWriter, r *http.Request) {
	h.remove(w, r, h.Service.RemoveLine)
}

func (h *BillingHandler) remove(w http.ResponseWriter, r *http.Request, fn func(context.Context, int) error) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := fn(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ============================================
// Budgets
// ============================================

func (h *BillingHandler) ListBudgets(w http.ResponseWriter, r *http.Request) {
	projectID, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	budgets, err := h.Service.ListBudgets(r.Context(), projectID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	utils.JSON(w, http.StatusOK, budgets)
}

// GenerateBudget accepts an empty body, which means replace_pending=false
func (h *BillingHandler) GenerateBudget(w http.ResponseWriter, r *http.Request) {
	projectID, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req models.GenerateBudgetRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, r, err)
			return
		}
	}
	userID, _ := middleware.GetUserIDFromContext(r.Context())
	res, err := h.Service.GenerateBudget(r.Context(), projectID, &req, userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	utils.JSON(w, http.StatusCreated, res)
}

func (h *BillingHandler) ConfirmBudget(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	userID, _ := middleware.GetUserIDFromContext(r.Context())
	res, err := h.Service.ConfirmBudget(r.Context(), id, userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	utils.JSON(w, http.StatusOK, res)
}

func (h *BillingHandler) DenyBudget(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	userID, _ := middleware.GetUserIDFromContext(r.Context())
	budget, err := h.Service.DenyBudget(r.Context(), id, userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	utils.JSON(w, http.StatusOK, budget)
}

// ============================================
// Invoices and payments
// ============================================

func (h *BillingHandler) ListInvoices(w http.ResponseWriter, r *http.Request) {
	projectID, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	invoices, err := h.Service.ListInvoices(r.Context(), projectID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	utils.JSON(w, http.StatusOK, invoices)
}

func (h *BillingHandler) IssueDirectInvoice(w http.ResponseWriter, r *http.Request) {
	projectID, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req models.DirectInvoiceRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	userID, _ := middleware.GetUserIDFromContext(r.Context())
	res, err := h.Service.IssueDirectInvoice(r.Context(), projectID, &req, userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	utils.JSON(w, http.StatusCreated, res)
}

func (h *BillingHandler) ListPayments(w http.ResponseWriter, r *http.Request) {
	projectID, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	payments, err := h.Service.ListPayments(r.Context(), projectID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	utils.JSON(w, http.StatusOK, payments)
}

func (h *BillingHandler) RegisterPayment(w http.ResponseWriter, r *http.Request) {
	projectID, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req models.RegisterPaymentRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	userID, _ := middleware.GetUserIDFromContext(r.Context())
	res, err := h.Service.RegisterPayment(r.Context(), projectID, &req, userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	utils.JSON(w, http.StatusCreated, res)
}

func (h *BillingHandler) Summary(w http.ResponseWriter, r *http.Request) {
	projectID, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	summary, err := h.Service.Summary(r.Context(), projectID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	utils.JSON(w, http.StatusOK, summary)
}

// ============================================
// Documents
// ============================================

func (h *BillingHandler) ListFiles(w http.ResponseWriter, r *http.Request) {
	projectID, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	files, err := h.Service.ListFiles(r.Context(), projectID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	utils.JSON(w, http.StatusOK, files)
}

func (h *BillingHandler) BudgetPDF(w http.ResponseWriter, r *http.Request) {
	h.document(w, r, h.Service.BudgetDocument)
}

func (h *BillingHandler) InvoicePDF(w http.ResponseWriter, r *http.Request) {
	h.document(w, r, h.Service.InvoiceDocument)
}

func (h *BillingHandler) ReceiptPDF(w http.ResponseWriter, r *http.Request) {
	h.document(w, r, h.Service.ReceiptDocument)
}

func (h *BillingHandler) document(w http.ResponseWriter, r *http.Request, render func(context.Context, int) (string, []byte, error)) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	name, data, err := render(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writePDF(w, name, data)
}

// DownloadFile serves a manifest entry, from storage when it was uploaded
func (h *BillingHandler) DownloadFile(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	file, data, err := h.Service.FileContent(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writePDF(w, file.FileName, data)
}
