package request

// SyncRequest triggers a groups, products or prices run.
//
// Groups runs take CategoryID only. Products and prices runs target the
// stored groups of CategoryID, narrowed by GroupIDs or NameFilter when given.
type SyncRequest struct {
	CategoryID string   `json:"categoryId"`
	GroupIDs   []string `json:"groupIds,omitempty"`
	NameFilter string   `json:"nameFilter,omitempty"`
	// Page (1-based start page) and PageSize override the configured
	// pagination for this run only.
	Page     int  `json:"page,omitempty"`
	PageSize int  `json:"pageSize,omitempty"`
	DryRun   bool `json:"dryRun,omitempty"`
	// Background detaches the run and returns its operation id immediately.
	Background bool `json:"background,omitempty"`
}

// CancelRequest raises a cooperative stop signal.
type CancelRequest struct {
	OpType string `json:"opType"`
	// OpID of a single run, or "*" for every run of OpType. Empty means "*".
	OpID      string `json:"opId,omitempty"`
	CreatedBy string `json:"createdBy,omitempty"`
}

// ResetRequest clears a stuck status row.
type ResetRequest struct {
	EntityType string `json:"entityType"`
	EntityID   string `json:"entityId"`
	// To is the state to reset into, "error" or "idle". Defaults to "error".
	To string `json:"to,omitempty"`
}
