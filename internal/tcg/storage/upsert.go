package storage

import (
	"encoding/json"
	"fmt"

	"github.com/lib/pq"

	"tcgsync_api/internal/tcg/business/models"
)

// classifyDbErr maps Postgres failures onto the pipeline's error taxonomy.
// Integrity violations will not heal on retry; connection, resource and
// serialization failures might.
func classifyDbErr(err error) error {
	if err == nil {
		return nil
	}
	if pqErr, ok := err.(*pq.Error); ok {
		switch pqErr.Code.Class() {
		case "22", "23", "42": // data exception, integrity violation, syntax
			return models.Fatal(err)
		}
	}
	return models.Transient(err)
}

func extString(rec models.Record, key string) interface{} {
	if v, ok := rec.Ext[key].(string); ok && v != "" {
		return v
	}
	return nil
}

func extFloat(rec models.Record, key string) interface{} {
	switch v := rec.Ext[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	}
	return nil
}

func extBool(rec models.Record, key string) bool {
	v, _ := rec.Ext[key].(bool)
	return v
}

func extInt(rec models.Record, key string) interface{} {
	switch v := rec.Ext[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	}
	return nil
}

func extJSON(rec models.Record) (string, error) {
	if len(rec.Ext) == 0 {
		return "{}", nil
	}
	b, err := json.Marshal(rec.Ext)
	if err != nil {
		return "", fmt.Errorf("marshal ext attributes for %s: %w", rec.ExternalID, err)
	}
	return string(b), nil
}
