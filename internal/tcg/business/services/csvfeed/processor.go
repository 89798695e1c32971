package csvfeed

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"

	"tcgsync_api/internal/tcg/business/models"
	"tcgsync_api/pkg/logger"
)

// Processor reads a provider CSV feed into keyed rows. The header row
// defines column names case-insensitively; rows missing a required column
// are skipped and counted, never fatal.
type Processor struct {
	Encoding string // "" or "utf-8"; "windows-1251" for legacy exports
	Required []string
	Log      logger.Logger
}

type Result struct {
	Rows    []map[string]string
	Skipped int
}

func (p *Processor) Process(reader io.Reader) (Result, error) {
	if strings.EqualFold(p.Encoding, "windows-1251") {
		reader = transform.NewReader(reader, charmap.Windows1251.NewDecoder())
	}

	csvReader := csv.NewReader(reader)
	csvReader.LazyQuotes = true
	csvReader.FieldsPerRecord = -1

	allRows, err := csvReader.ReadAll()
	if err != nil {
		return Result{}, models.DataQuality(fmt.Errorf("csv read error: %w", err))
	}
	// Header-only or fully empty feeds mean "nothing to sync", not a failure.
	if len(allRows) <= 1 {
		return Result{}, nil
	}

	header := make([]string, len(allRows[0]))
	for i, col := range allRows[0] {
		header[i] = strings.ToLower(strings.TrimSpace(col))
	}

	required := make([]string, len(p.Required))
	for i, col := range p.Required {
		required[i] = strings.ToLower(col)
	}

	result := Result{Rows: make([]map[string]string, 0, len(allRows)-1)}
	for _, raw := range allRows[1:] {
		row := make(map[string]string, len(header))
		for i, col := range header {
			if i < len(raw) {
				row[col] = strings.TrimSpace(raw[i])
			}
		}

		complete := true
		for _, col := range required {
			if row[col] == "" {
				complete = false
				break
			}
		}
		if !complete {
			result.Skipped++
			continue
		}
		result.Rows = append(result.Rows, row)
	}

	if result.Skipped > 0 && p.Log != nil {
		p.Log.Warn("csv feed: skipped %d rows missing required columns %v", result.Skipped, p.Required)
	}
	return result, nil
}
