package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/lib/pq"

	"tcgsync_api/internal/tcg/business/models"
)

type PriceRepository struct {
	db *sql.DB
}

func NewPriceRepository(db *sql.DB) *PriceRepository {
	return &PriceRepository{db: db}
}

var priceColumns = []string{
	"product_id", "group_id", "sub_type",
	"low", "mid", "high", "market", "direct_low",
}

func (r *PriceRepository) UpsertBatch(ctx context.Context, records []models.Record) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, classifyDbErr(err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
        CREATE TEMP TABLE temp_prices
        (LIKE tcg.prices INCLUDING DEFAULTS)
        ON COMMIT DROP
    `)
	if err != nil {
		return 0, classifyDbErr(fmt.Errorf("create temp table: %w", err))
	}

	stmt, err := tx.PrepareContext(ctx, pq.CopyIn("temp_prices", priceColumns...))
	if err != nil {
		return 0, classifyDbErr(fmt.Errorf("prepare copyin: %w", err))
	}

	for _, rec := range records {
		productID, subType, ok := splitPriceKey(rec.ExternalID)
		if !ok {
			return 0, models.Fatal(fmt.Errorf("malformed price key %q", rec.ExternalID))
		}
		_, err = stmt.ExecContext(ctx,
			productID, rec.GroupID, subType,
			extFloat(rec, "low"), extFloat(rec, "mid"), extFloat(rec, "high"),
			extFloat(rec, "market"), extFloat(rec, "directLow"),
		)
		if err != nil {
			return 0, classifyDbErr(fmt.Errorf("copyin row %s: %w", rec.ExternalID, err))
		}
	}
	if _, err = stmt.ExecContext(ctx); err != nil {
		return 0, classifyDbErr(fmt.Errorf("final copyin exec: %w", err))
	}
	if err = stmt.Close(); err != nil {
		return 0, classifyDbErr(fmt.Errorf("close copyin stmt: %w", err))
	}

	result, err := tx.ExecContext(ctx, `
        INSERT INTO tcg.prices
            (product_id, group_id, sub_type, low, mid, high, market, direct_low, updated_at)
        SELECT product_id, group_id, sub_type, low, mid, high, market, direct_low, now()
        FROM temp_prices
        ON CONFLICT (product_id, sub_type) DO UPDATE SET
            group_id = EXCLUDED.group_id,
            low = EXCLUDED.low,
            mid = EXCLUDED.mid,
            high = EXCLUDED.high,
            market = EXCLUDED.market,
            direct_low = EXCLUDED.direct_low,
            updated_at = now()
    `)
	if err != nil {
		return 0, classifyDbErr(fmt.Errorf("merge prices: %w", err))
	}
	committed, err := result.RowsAffected()
	if err != nil {
		return 0, classifyDbErr(err)
	}

	if err = tx.Commit(); err != nil {
		return 0, classifyDbErr(fmt.Errorf("commit: %w", err))
	}
	return int(committed), nil
}

// Count returns the stored price-row count of a group.
func (r *PriceRepository) Count(ctx context.Context, groupID string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM tcg.prices WHERE group_id = $1", groupID).Scan(&count)
	if err != nil {
		return 0, classifyDbErr(err)
	}
	return count, nil
}

// splitPriceKey undoes the "productId|subType" composite the feed builds.
func splitPriceKey(key string) (string, string, bool) {
	idx := strings.IndexByte(key, '|')
	if idx <= 0 || idx == len(key)-1 {
		return "", "", false
	}
	return key[:idx], key[idx+1:], true
}
