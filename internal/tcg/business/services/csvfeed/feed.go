package csvfeed

import (
	"bytes"
	"context"
	"fmt"
	"strconv"

	"tcgsync_api/internal/tcg/business/models"
	"tcgsync_api/internal/tcg/business/services/fetch"
	"tcgsync_api/pkg/logger"
)

// Price feed column names, lowercased as the processor normalizes them.
const (
	colProductID = "productid"
	colSubType   = "subtypename"
)

var priceColumns = []string{"lowprice", "midprice", "highprice", "marketprice", "directlowprice"}

var priceFields = []string{"low", "mid", "high", "market", "directLow"}

// PriceFeed pulls the per-group CSV price export and normalizes it into
// price records keyed by (product, sub type).
type PriceFeed struct {
	fetcher *fetch.Fetcher
	proc    *Processor
	baseURL string
	lg      logger.Logger
}

func NewPriceFeed(fetcher *fetch.Fetcher, baseURL, encoding string, lg logger.Logger) *PriceFeed {
	return &PriceFeed{
		fetcher: fetcher,
		proc: &Processor{
			Encoding: encoding,
			Required: []string{colProductID, colSubType},
			Log:      lg,
		},
		baseURL: baseURL,
		lg:      lg,
	}
}

// GroupPrices fetches and normalizes one group's price feed as a single page.
func (f *PriceFeed) GroupPrices(ctx context.Context, categoryID, groupID string) (models.Page, error) {
	url := fmt.Sprintf("%s/%s/%s/prices.csv", f.baseURL, categoryID, groupID)
	body, err := f.fetcher.Fetch(ctx, models.OpPrices, url)
	if err != nil {
		return models.Page{}, err
	}

	result, err := f.proc.Process(bytes.NewReader(body))
	if err != nil {
		return models.Page{}, err
	}

	page := models.Page{Records: make([]models.Record, 0, len(result.Rows)), Skipped: result.Skipped}
	for _, row := range result.Rows {
		productID := row[colProductID]
		subType := row[colSubType]

		ext := map[string]interface{}{
			"productId": productID,
			"subType":   subType,
		}
		for i, col := range priceColumns {
			if v, ok := parsePrice(row[col]); ok {
				ext[priceFields[i]] = v
			}
		}

		page.Records = append(page.Records, models.Record{
			ExternalID: productID + "|" + subType,
			GroupID:    groupID,
			CategoryID: categoryID,
			Name:       subType,
			Ext:        ext,
		})
	}
	return page, nil
}

func parsePrice(s string) (float64, bool) {
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
