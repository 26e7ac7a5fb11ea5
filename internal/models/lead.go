package models

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	LeadNew       = "new"
	LeadContacted = "contacted"
	LeadQualified = "qualified"
	LeadProposal  = "proposal"
	LeadConverted = "converted"
	LeadLost      = "lost"
)

var LeadStatuses = []string{LeadNew, LeadContacted, LeadQualified, LeadProposal, LeadConverted, LeadLost}

type Lead struct {
	ID                 int             `json:"id"`
	Name               string          `json:"name"`
	Email              string          `json:"email"`
	Phone              string          `json:"phone"`
	Company            string          `json:"company"`
	Source             string          `json:"source"`
	Status             string          `json:"status"`
	Notes              string          `json:"notes"`
	EstimatedValue     decimal.Decimal `json:"estimated_value"`
	AssignedTo         *int            `json:"assigned_to"`
	ConvertedProjectID *int            `json:"converted_project_id"`
	CreatedAt          time.Time       `json:"created_at"`
	UpdatedAt          time.Time       `json:"updated_at"`
}

type LeadRequest struct {
	Name           string          `json:"name"`
	Email          string          `json:"email"`
	Phone          string          `json:"phone"`
	Company        string          `json:"company"`
	Source         string          `json:"source"`
	Status         string          `json:"status"`
	Notes          string          `json:"notes"`
	EstimatedValue decimal.Decimal `json:"estimated_value"`
	AssignedTo     *int            `json:"assigned_to"`
}

// ConvertLeadRequest carries what a lead lacks to become a project
type ConvertLeadRequest struct {
	ProjectName string `json:"project_name"`
	Alias       string `json:"alias"`
	ServiceIDs  []int  `json:"service_ids"`
	UserIDs     []int  `json:"user_ids"`
}
