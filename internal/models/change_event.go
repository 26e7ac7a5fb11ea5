package models

import "time"

const (
	ActionInsert = "INSERT"
	ActionUpdate = "UPDATE"
	ActionDelete = "DELETE"
)

// ChangeEvent tells subscribers that a row changed; clients refetch rather than merge
type ChangeEvent struct {
	Table     string    `json:"table"`
	Action    string    `json:"action"`
	ProjectID int       `json:"project_id,omitempty"`
	RecordID  int       `json:"record_id"`
	At        time.Time `json:"at"`
}
