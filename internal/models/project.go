package models

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	ProjectActive    = "active"
	ProjectPaused    = "paused"
	ProjectCompleted = "completed"
	ProjectCancelled = "cancelled"
)

var ProjectStatuses = []string{ProjectActive, ProjectPaused, ProjectCompleted, ProjectCancelled}

type Project struct {
	ID            int             `json:"id"`
	Name          string          `json:"name"`
	Alias         string          `json:"alias"`
	ClientName    string          `json:"client_name"`
	ClientEmail   string          `json:"client_email"`
	ClientTaxID   string          `json:"client_tax_id"`
	Description   string          `json:"description"`
	Status        string          `json:"status"`
	StartDate     *time.Time      `json:"start_date"`
	EndDate       *time.Time      `json:"end_date"`
	TotalInvoiced decimal.Decimal `json:"total_invoiced"`
	LeadID        *int            `json:"lead_id"`
	CreatedBy     *int            `json:"created_by"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// DisplayName prefers the alias, as used in document names and numbers
func (p *Project) DisplayName() string {
	if p.Alias != "" {
		return p.Alias
	}
	return p.Name
}

type ProjectMember struct {
	UserID int    `json:"user_id"`
	Name   string `json:"name"`
	Email  string `json:"email"`
	Role   string `json:"role"`
}

type ProjectRequest struct {
	Name        string     `json:"name"`
	Alias       string     `json:"alias"`
	ClientName  string     `json:"client_name"`
	ClientEmail string     `json:"client_email"`
	ClientTaxID string     `json:"client_tax_id"`
	Description string     `json:"description"`
	Status      string     `json:"status"`
	StartDate   *time.Time `json:"start_date"`
	EndDate     *time.Time `json:"end_date"`
	ServiceIDs  []int      `json:"service_ids"`
	UserIDs     []int      `json:"user_ids"`
}

type MembersRequest struct {
	UserIDs []int `json:"user_ids"`
}

// ProjectDetail is everything the project page loads in one call
type ProjectDetail struct {
	Project *Project         `json:"project"`
	Members []*ProjectMember `json:"members"`
	Lines   *ProjectLines    `json:"lines"`
	Billing *BillingSummary  `json:"billing"`
}
