package values

import "time"

// SyncValues carries the tuning knobs of the sync pipeline. Zero values are
// replaced by defaults in Normalize so a partial yaml block stays valid.
type SyncValues struct {
	PageSize       int           `yaml:"page-size"`
	PageCap        int           `yaml:"page-cap"`
	FetchSlots     int           `yaml:"fetch-slots"`
	PersistSlots   int           `yaml:"persist-slots"`
	ChunkSize      int           `yaml:"chunk-size"`
	RetryAttempts  int           `yaml:"retry-attempts"`
	RetryBaseDelay time.Duration `yaml:"retry-base-delay"`
	RequestTimeout time.Duration `yaml:"request-timeout"`
	StuckAfter     time.Duration `yaml:"stuck-after"`
}

const (
	DefaultPageSize       = 100
	DefaultPageCap        = 500
	DefaultFetchSlots     = 4
	DefaultPersistSlots   = 2
	DefaultChunkSize      = 2000
	DefaultRetryAttempts  = 4
	DefaultRetryBaseDelay = 500 * time.Millisecond
	DefaultRequestTimeout = 20 * time.Second
	DefaultStuckAfter     = 15 * time.Minute
)

func (v *SyncValues) Normalize() {
	if v.PageSize <= 0 {
		v.PageSize = DefaultPageSize
	}
	if v.PageCap <= 0 {
		v.PageCap = DefaultPageCap
	}
	if v.FetchSlots <= 0 {
		v.FetchSlots = DefaultFetchSlots
	}
	if v.PersistSlots <= 0 {
		v.PersistSlots = DefaultPersistSlots
	}
	if v.ChunkSize <= 0 {
		v.ChunkSize = DefaultChunkSize
	}
	if v.RetryAttempts <= 0 {
		v.RetryAttempts = DefaultRetryAttempts
	}
	if v.RetryBaseDelay <= 0 {
		v.RetryBaseDelay = DefaultRetryBaseDelay
	}
	if v.RequestTimeout <= 0 {
		v.RequestTimeout = DefaultRequestTimeout
	}
	if v.StuckAfter <= 0 {
		v.StuckAfter = DefaultStuckAfter
	}
}
