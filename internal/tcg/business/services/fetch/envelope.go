package fetch

import (
	"bytes"
	"encoding/json"
	"fmt"

	"tcgsync_api/internal/tcg/business/models"
	"tcgsync_api/pkg/logger"
)

// Envelope is the normalized form of one provider response: always a record
// slice (never nil), plus the pagination metadata when the provider reports
// it.
type Envelope struct {
	Records []json.RawMessage
	HasMore *bool
	Total   *int
}

// recordKeys are probed in order; the first array found wins.
var recordKeys = []string{"data", "results", "items", "groups", "products"}

var hasMoreKeys = []string{"hasMore", "has_more", "more"}

var totalKeys = []string{"totalItems", "total", "totalCount"}

var metaKeys = []string{"meta", "paging", "data"}

// ExtractEnvelope normalizes an arbitrary provider response shape. A body
// that is not valid JSON is a data-quality error; a valid body in which no
// record array can be found yields an empty envelope and a warning, never an
// error.
func ExtractEnvelope(body []byte, lg logger.Logger) (Envelope, error) {
	env := Envelope{Records: []json.RawMessage{}}

	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return env, models.DataQuality(fmt.Errorf("empty response body"))
	}

	// Bare array: the whole body is the record list.
	if trimmed[0] == '[' {
		var records []json.RawMessage
		if err := json.Unmarshal(trimmed, &records); err != nil {
			return env, models.DataQuality(fmt.Errorf("unparseable array body: %w", err))
		}
		env.Records = records
		return env, nil
	}

	var top map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &top); err != nil {
		return env, models.DataQuality(fmt.Errorf("unparseable body: %w", err))
	}

	records, found := probeRecords(top)
	if !found {
		// One level of nesting under "data".
		if nested, ok := asObject(top["data"]); ok {
			records, found = probeRecords(nested)
		}
	}
	if found {
		env.Records = records
	} else {
		lg.Warn("no record array found in response (top-level keys: %s)", keysOf(top))
	}

	env.HasMore = probeBool(top, hasMoreKeys)
	env.Total = probeInt(top, totalKeys)
	for _, metaKey := range metaKeys {
		if env.HasMore != nil && env.Total != nil {
			break
		}
		meta, ok := asObject(top[metaKey])
		if !ok {
			continue
		}
		if env.HasMore == nil {
			env.HasMore = probeBool(meta, hasMoreKeys)
		}
		if env.Total == nil {
			env.Total = probeInt(meta, totalKeys)
		}
	}

	return env, nil
}

func probeRecords(obj map[string]json.RawMessage) ([]json.RawMessage, bool) {
	for _, key := range recordKeys {
		raw, ok := obj[key]
		if !ok {
			continue
		}
		var records []json.RawMessage
		if err := json.Unmarshal(raw, &records); err == nil {
			return records, true
		}
	}
	return nil, false
}

func asObject(raw json.RawMessage) (map[string]json.RawMessage, bool) {
	if len(raw) == 0 {
		return nil, false
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil, false
	}
	return obj, true
}

func probeBool(obj map[string]json.RawMessage, keys []string) *bool {
	for _, key := range keys {
		raw, ok := obj[key]
		if !ok {
			continue
		}
		var b bool
		if err := json.Unmarshal(raw, &b); err == nil {
			return &b
		}
	}
	return nil
}

func probeInt(obj map[string]json.RawMessage, keys []string) *int {
	for _, key := range keys {
		raw, ok := obj[key]
		if !ok {
			continue
		}
		var n int
		if err := json.Unmarshal(raw, &n); err == nil {
			return &n
		}
	}
	return nil
}

func keysOf(obj map[string]json.RawMessage) string {
	buf := bytes.Buffer{}
	for key := range obj {
		if buf.Len() > 0 {
			buf.WriteString(", ")
		}
		buf.WriteString(key)
	}
	return buf.String()
}
