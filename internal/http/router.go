package http

import (
	"net/http"

	"agency-crm/internal/handlers"
	"agency-crm/internal/middleware"
	"agency-crm/internal/models"
	"agency-crm/internal/realtime"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Handlers groups everything the router mounts
type Handlers struct {
	Auth          *handlers.AuthHandler
	User          *handlers.UserHandler
	Project       *handlers.ProjectHandler
	Lead          *handlers.LeadHandler
	Catalog       *handlers.CatalogHandler
	Billing       *handlers.BillingHandler
	OnlinePayment *handlers.OnlinePaymentHandler
	Work          *handlers.WorkHandler
	Calendar      *handlers.CalendarHandler
	Preference    *handlers.PreferenceHandler
	SystemSetting *handlers.SystemSettingHandler
	Health        *handlers.HealthHandler
}

func NewRouter(h *Handlers, hub *realtime.Hub, authMiddleware *middleware.AuthMiddleware) *mux.Router {
	r := mux.NewRouter()
	r.Use(middleware.MetricsMiddleware)

	// Health and metrics (no auth required, host stats are admin only)
	r.HandleFunc("/health", h.Health.BasicHealth).Methods("GET")
	r.Handle("/health/detailed", authMiddleware.RequireAdmin(http.HandlerFunc(h.Health.DetailedHealth))).Methods("GET")
	r.Handle("/metrics", promhttp.Handler())

	// Public API routes - Authentication
	r.HandleFunc("/api/auth/login", h.Auth.Login).Methods("POST")
	r.HandleFunc("/api/auth/2fa/verify", h.Auth.Verify2FA).Methods("POST")

	// Everything else under /api requires a session
	api := r.PathPrefix("/api").Subrouter()
	api.Use(authMiddleware.Authenticate)
	admin := func(fn http.HandlerFunc) http.Handler {
		return middleware.AllowRoles(models.RoleAdmin)(fn)
	}

	api.HandleFunc("/auth/session", h.Auth.Session).Methods("GET")
	api.HandleFunc("/auth/logout", h.Auth.Logout).Methods("POST")
	api.HandleFunc("/auth/2fa/setup", h.Auth.SetupTOTP).Methods("POST")
	api.HandleFunc("/auth/2fa/enable", h.Auth.EnableTOTP).Methods("POST")
	api.HandleFunc("/auth/2fa/disable", h.Auth.DisableTOTP).Methods("POST")

	api.HandleFunc("/realtime", hub.ServeWS).Methods("GET")

	// Users (admin)
	api.Handle("/users", admin(h.User.ListUsers)).Methods("GET")
	api.Handle("/users", admin(h.User.CreateUser)).Methods("POST")
	api.Handle("/users/{id}", admin(h.User.GetUser)).Methods("GET")
	api.Handle("/users/{id}", admin(h.User.UpdateUser)).Methods("PUT")
	api.Handle("/users/{id}", admin(h.User.DeleteUser)).Methods("DELETE")
	api.Handle("/users/{id}/active", admin(h.User.SetActive)).Methods("PUT")

	// Settings (admin)
	api.Handle("/settings", admin(h.SystemSetting.ListSettings)).Methods("GET")
	api.Handle("/settings/{key}", admin(h.SystemSetting.GetSetting)).Methods("GET")
	api.Handle("/settings/{key}", admin(h.SystemSetting.UpdateSetting)).Methods("PUT")

	// Service catalog - reads for everyone, writes for admins
	api.HandleFunc("/services", h.Catalog.List).Methods("GET")
	api.HandleFunc("/services/{id}", h.Catalog.Get).Methods("GET")
	api.Handle("/services", admin(h.Catalog.Create)).Methods("POST")
	api.Handle("/services/{id}", admin(h.Catalog.Update)).Methods("PUT")
	api.Handle("/services/{id}", admin(h.Catalog.Delete)).Methods("DELETE")

	// Leads
	api.HandleFunc("/leads", h.Lead.List).Methods("GET")
	api.HandleFunc("/leads", h.Lead.Create).Methods("POST")
	api.HandleFunc("/leads/{id}", h.Lead.Get).Methods("GET")
	api.HandleFunc("/leads/{id}", h.Lead.Update).Methods("PUT")
	api.HandleFunc("/leads/{id}", h.Lead.Delete).Methods("DELETE")
	api.HandleFunc("/leads/{id}/convert", h.Lead.Convert).Methods("POST")

	// Projects
	api.HandleFunc("/projects", h.Project.List).Methods("GET")
	api.HandleFunc("/projects", h.Project.Create).Methods("POST")
	api.HandleFunc("/projects/{id}", h.Project.Get).Methods("GET")
	api.HandleFunc("/projects/{id}", h.Project.Update).Methods("PUT")
	api.HandleFunc("/projects/{id}", h.Project.Delete).Methods("DELETE")
	api.HandleFunc("/projects/{id}/detail", h.Project.Detail).Methods("GET")
	api.HandleFunc("/projects/{id}/members", h.Project.Members).Methods("GET")
	api.HandleFunc("/projects/{id}/members", h.Project.SetMembers).Methods("PUT")

	// Billable lines
	api.HandleFunc("/projects/{id}/lines", h.Billing.Lines).Methods("GET")
	api.HandleFunc("/projects/{id}/services", h.Billing.AddService).Methods("POST")
	api.HandleFunc("/project-services/{id}", h.Billing.UpdateService).Methods("PUT")
	api.HandleFunc("/project-services/{id}", h.Billing.RemoveService).Methods("DELETE")
	api.HandleFunc("/projects/{id}/budget-lines", h.Billing.AddLine).Methods("POST")
	api.HandleFunc("/budget-lines/{id}", h.Billing.UpdateLine).Methods("PUT")
	api.HandleFunc("/budget-lines/{id}", h.Billing.RemoveLine).Methods("DELETE")

	// Budgets, invoices, payments
	api.HandleFunc("/projects/{id}/budgets", h.Billing.ListBudgets).Methods("GET")
	api.HandleFunc("/projects/{id}/budgets", h.Billing.GenerateBudget).Methods("POST")
	api.HandleFunc("/budgets/{id}/confirm", h.Billing.ConfirmBudget).Methods("POST")
	api.HandleFunc("/budgets/{id}/deny", h.Billing.DenyBudget).Methods("POST")
	api.HandleFunc("/budgets/{id}/pdf", h.Billing.BudgetPDF).Methods("GET")
	api.HandleFunc("/projects/{id}/invoices", h.Billing.ListInvoices).Methods("GET")
	api.HandleFunc("/projects/{id}/invoices", h.Billing.IssueDirectInvoice).Methods("POST")
	api.HandleFunc("/invoices/{id}/pdf", h.Billing.InvoicePDF).Methods("GET")
	api.HandleFunc("/projects/{id}/payments", h.Billing.ListPayments).Methods("GET")
	api.HandleFunc("/projects/{id}/payments", h.Billing.RegisterPayment).Methods("POST")
	api.HandleFunc("/payments/{id}/receipt", h.Billing.ReceiptPDF).Methods("GET")
	api.HandleFunc("/projects/{id}/billing", h.Billing.Summary).Methods("GET")
	api.HandleFunc("/projects/{id}/files", h.Billing.ListFiles).Methods("GET")
	api.HandleFunc("/files/{id}/download", h.Billing.DownloadFile).Methods("GET")

	// Online payments
	api.HandleFunc("/payments/online/status", h.OnlinePayment.Status).Methods("GET")
	api.HandleFunc("/projects/{id}/payments/online/order", h.OnlinePayment.CreateOrder).Methods("POST")
	api.HandleFunc("/projects/{id}/payments/online/verify", h.OnlinePayment.Verify).Methods("POST")

	// Sprints, tasks, milestones
	api.HandleFunc("/projects/{id}/sprints", h.Work.ListSprints).Methods("GET")
	api.HandleFunc("/projects/{id}/sprints", h.Work.CreateSprint).Methods("POST")
	api.HandleFunc("/sprints/{id}", h.Work.UpdateSprint).Methods("PUT")
	api.HandleFunc("/sprints/{id}", h.Work.DeleteSprint).Methods("DELETE")
	api.HandleFunc("/projects/{id}/tasks", h.Work.ListTasks).Methods("GET")
	api.HandleFunc("/projects/{id}/tasks", h.Work.CreateTask).Methods("POST")
	api.HandleFunc("/tasks/{id}", h.Work.GetTask).Methods("GET")
	api.HandleFunc("/tasks/{id}", h.Work.UpdateTask).Methods("PUT")
	api.HandleFunc("/tasks/{id}", h.Work.DeleteTask).Methods("DELETE")
	api.HandleFunc("/projects/{id}/milestones", h.Work.ListMilestones).Methods("GET")
	api.HandleFunc("/projects/{id}/milestones", h.Work.CreateMilestone).Methods("POST")
	api.HandleFunc("/milestones/{id}", h.Work.UpdateMilestone).Methods("PUT")
	api.HandleFunc("/milestones/{id}", h.Work.DeleteMilestone).Methods("DELETE")

	api.HandleFunc("/calendar", h.Calendar.Events).Methods("GET")

	api.HandleFunc("/preferences/columns/{table}", h.Preference.GetColumns).Methods("GET")
	api.HandleFunc("/preferences/columns/{table}", h.Preference.SaveColumns).Methods("PUT")

	return r
}
