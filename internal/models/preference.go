package models

import "time"

// ColumnPreference lists the hidden columns of one table for one user.
// An empty list means every column is visible.
type ColumnPreference struct {
	Table     string     `json:"table"`
	Hidden    []string   `json:"hidden"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`
}

type ColumnPreferenceRequest struct {
	Hidden []string `json:"hidden"`
}
