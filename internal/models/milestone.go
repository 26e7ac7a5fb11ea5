package models

import "time"

type Milestone struct {
	ID          int       `json:"id"`
	ProjectID   int       `json:"project_id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	DueDate     time.Time `json:"due_date"`
	Completed   bool      `json:"completed"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type MilestoneRequest struct {
	Title       string    `json:"title"`
	Description string    `json:"description"`
	DueDate     time.Time `json:"due_date"`
	Completed   bool      `json:"completed"`
}

const (
	EventMilestone    = "milestone"
	EventTaskDue      = "task_due"
	EventSprint       = "sprint"
	EventProjectStart = "project_start"
	EventProjectEnd   = "project_end"
)

// CalendarEvent is one dated entry of the calendar feed
type CalendarEvent struct {
	Kind        string     `json:"kind"`
	Title       string     `json:"title"`
	Start       time.Time  `json:"start"`
	End         *time.Time `json:"end,omitempty"`
	ProjectID   int        `json:"project_id"`
	ProjectName string     `json:"project_name"`
	ReferenceID int        `json:"reference_id"`
	Done        bool       `json:"done"`
}
