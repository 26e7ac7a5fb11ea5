package services

import (
	"context"

	"agency-crm/internal/billing"
	"agency-crm/internal/models"
	"agency-crm/internal/timeutil"
)

// notify tells realtime subscribers a row changed. p may be nil.
func notify(ctx context.Context, p billing.Publisher, table, action string, projectID, recordID int) {
	if p == nil {
		return
	}
	p.Publish(ctx, models.ChangeEvent{
		Table:     table,
		Action:    action,
		ProjectID: projectID,
		RecordID:  recordID,
		At:        timeutil.Now(),
	})
}
