package models

import (
	"time"
)

// Operation types; these key sync.status and sync.control_signals rows.
const (
	OpGroups   = "groups"
	OpProducts = "products"
	OpPrices   = "prices"
)

// WildcardOpID matches every run of an operation type ("stop everything").
const WildcardOpID = "*"

// SyncTarget is one unit of synchronization work: a category when syncing
// groups, a group when syncing products or prices. EntityType is the
// operation type, so a group keeps independent product and price states.
type SyncTarget struct {
	EntityType string
	ExternalID string
	InternalID int64
	Name       string
	CategoryID string
	Expected   int // 0 = unknown
}

// Record is a normalized provider entity ready for persistence.
// ExternalID is the upsert primary key and must be non-empty.
type Record struct {
	ExternalID string
	GroupID    string
	CategoryID string
	Name       string
	Ext        map[string]interface{}
}

// Page is one fetch result. HasMore is tri-state: nil means the provider
// did not report it.
type Page struct {
	Records       []Record
	Skipped       int
	HasMore       *bool
	ReportedTotal *int
}

type SyncState string

const (
	StateIdle      SyncState = "idle"
	StateSyncing   SyncState = "syncing"
	StateCompleted SyncState = "completed"
	StatePartial   SyncState = "partial"
	StateError     SyncState = "error"
	StateCancelled SyncState = "cancelled"
)

// SyncStatus is the persisted per-target state row.
type SyncStatus struct {
	EntityType    string    `json:"entityType"`
	EntityID      string    `json:"entityId"`
	State         SyncState `json:"state"`
	LastError     string    `json:"lastError,omitempty"`
	SyncedItems   int       `json:"syncedItems"`
	ExpectedItems int       `json:"expectedItems"`
	StartedAt     time.Time `json:"startedAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
	Stuck         bool      `json:"stuck"`
}

// ControlSignal is written by an admin action and polled by the engine.
type ControlSignal struct {
	OpType    string    `json:"opType"`
	OpID      string    `json:"opId"`
	Cancel    bool      `json:"cancel"`
	CreatedBy string    `json:"createdBy"`
	CreatedAt time.Time `json:"createdAt"`
}

// StopReason records why a paginator (or a whole target) stopped.
type StopReason string

const (
	StopEmptyPage    StopReason = "empty_page"
	StopHasMoreFalse StopReason = "has_more_false"
	StopPartialPage  StopReason = "partial_page"
	StopPageCap      StopReason = "page_cap"
	StopCancelled    StopReason = "cancelled"
	StopError        StopReason = "error"
	StopFeedComplete StopReason = "feed_complete"
)

// TargetResult is the per-target slice of a SyncResult.
type TargetResult struct {
	EntityType string        `json:"entityType"`
	EntityID   string        `json:"entityId"`
	Name       string        `json:"name,omitempty"`
	Fetched    int           `json:"fetched"`
	Upserted   int           `json:"upserted"`
	Skipped    int           `json:"skipped"`
	Elapsed    time.Duration `json:"-"`
	ElapsedMs  int64         `json:"elapsedMs"`
	StopReason StopReason    `json:"stopReason,omitempty"`
	State      SyncState     `json:"state"`
	Error      string        `json:"error,omitempty"`
}

// SyncResult is the ephemeral aggregate returned to the caller.
type SyncResult struct {
	OperationID string         `json:"operationId"`
	Fetched     int            `json:"fetched"`
	Upserted    int            `json:"upserted"`
	Skipped     int            `json:"skipped"`
	Errors      int            `json:"errors"`
	Cancelled   bool           `json:"cancelled"`
	Elapsed     time.Duration  `json:"-"`
	ElapsedMs   int64          `json:"elapsedMs"`
	RatePerSec  float64        `json:"ratePerSec"`
	PerTarget   []TargetResult `json:"perTarget"`
}

// MaxErrorLen bounds error messages stored in sync.status.last_error.
const MaxErrorLen = 500

// TruncateError fits an error message into the storage column.
func TruncateError(msg string) string {
	runes := []rune(msg)
	if len(runes) <= MaxErrorLen {
		return msg
	}
	return string(runes[:MaxErrorLen])
}

// DedupeRecords drops empty-keyed records and resolves duplicate external
// ids last-write-wins, keeping the first occurrence's position so batch
// order stays stable.
func DedupeRecords(records []Record) []Record {
	seen := make(map[string]int, len(records))
	out := make([]Record, 0, len(records))
	for _, rec := range records {
		if rec.ExternalID == "" {
			continue
		}
		if idx, ok := seen[rec.ExternalID]; ok {
			out[idx] = rec
			continue
		}
		seen[rec.ExternalID] = len(out)
		out = append(out, rec)
	}
	return out
}
