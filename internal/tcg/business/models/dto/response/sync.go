package response

import "tcgsync_api/internal/tcg/business/models"

// SyncResponse answers a sync trigger. Foreground runs carry the full
// summary; background runs carry only the operation id to poll and cancel by.
type SyncResponse struct {
	Success     bool               `json:"success"`
	Started     bool               `json:"started,omitempty"`
	OperationID string             `json:"operationId,omitempty"`
	Summary     *models.SyncResult `json:"summary,omitempty"`
	Error       string             `json:"error,omitempty"`
}

// StatusResponse answers a status query.
type StatusResponse struct {
	Statuses []models.SyncStatus `json:"statuses"`
}

// SignalsResponse lists the stored control signals, newest first.
type SignalsResponse struct {
	Signals []models.ControlSignal `json:"signals"`
}
