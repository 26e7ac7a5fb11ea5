package models

import "time"

type FileKind string

const (
	FileBudget  FileKind = "budget"
	FileInvoice FileKind = "invoice"
	FileReceipt FileKind = "receipt"
)

// ProjectFile is a file-manifest entry for a generated document
type ProjectFile struct {
	ID          int       `json:"id"`
	ProjectID   int       `json:"project_id"`
	Kind        FileKind  `json:"kind"`
	ReferenceID int       `json:"reference_id"`
	FileName    string    `json:"file_name"`
	StorageKey  string    `json:"storage_key"`
	ContentType string    `json:"content_type"`
	Uploaded    bool      `json:"uploaded"`
	CreatedBy   *int      `json:"created_by"`
	CreatedAt   time.Time `json:"created_at"`
}
