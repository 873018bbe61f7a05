package dto

import "time"

// ExportTaskPayload is the body of an export:results task.
type ExportTaskPayload struct {
	CalendarID string `json:"calendar_id"`
	ExportID   string `json:"export_id"`
	Top        int    `json:"top"`
}

type ExportStatus string

const (
	ExportStatusQueued ExportStatus = "queued"
	ExportStatusReady  ExportStatus = "ready"
)

type ExportResponse struct {
	ExportID   string       `json:"export_id"`
	CalendarID string       `json:"calendar_id"`
	Status     ExportStatus `json:"status"`
	URL        string       `json:"url,omitempty"`
	ExpiresAt  *time.Time   `json:"expires_at,omitempty"`
}
