package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"tcgsync_api/internal/tcg/business/models"
)

type ProductRepository struct {
	db *sql.DB
}

func NewProductRepository(db *sql.DB) *ProductRepository {
	return &ProductRepository{db: db}
}

var productColumns = []string{
	"product_id", "group_id", "category_id", "name",
	"clean_name", "url", "image_url", "ext", "modified_on",
}

// UpsertBatch persists one deduplicated chunk idempotently: the rows are
// bulk-copied into a session temp table and merged with ON CONFLICT DO
// UPDATE, so re-running the same batch touches the same rows again. The
// returned count is the number of rows written, the tracker's ground truth.
func (r *ProductRepository) UpsertBatch(ctx context.Context, records []models.Record) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, classifyDbErr(err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
        CREATE TEMP TABLE temp_products
        (LIKE tcg.products INCLUDING DEFAULTS)
        ON COMMIT DROP
    `)
	if err != nil {
		return 0, classifyDbErr(fmt.Errorf("create temp table: %w", err))
	}

	stmt, err := tx.PrepareContext(ctx, pq.CopyIn("temp_products", productColumns...))
	if err != nil {
		return 0, classifyDbErr(fmt.Errorf("prepare copyin: %w", err))
	}

	for _, rec := range records {
		ext, err := extJSON(rec)
		if err != nil {
			return 0, models.Fatal(err)
		}
		_, err = stmt.ExecContext(ctx,
			rec.ExternalID, rec.GroupID, rec.CategoryID, rec.Name,
			extString(rec, "cleanName"), extString(rec, "url"),
			extString(rec, "imageUrl"), ext, extString(rec, "modifiedOn"),
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
        INSERT INTO tcg.products
            (product_id, group_id, category_id, name, clean_name, url, image_url, ext, modified_on, synced_at)
        SELECT product_id, group_id, category_id, name, clean_name, url, image_url, ext, modified_on, now()
        FROM temp_products
        ON CONFLICT (product_id) DO UPDATE SET
            group_id = EXCLUDED.group_id,
            category_id = EXCLUDED.category_id,
            name = EXCLUDED.name,
            clean_name = EXCLUDED.clean_name,
            url = EXCLUDED.url,
            image_url = EXCLUDED.image_url,
            ext = EXCLUDED.ext,
            modified_on = EXCLUDED.modified_on,
            synced_at = now()
    `)
	if err != nil {
		return 0, classifyDbErr(fmt.Errorf("merge products: %w", err))
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

// Count returns the stored product count of a group.
func (r *ProductRepository) Count(ctx context.Context, groupID string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM tcg.products WHERE group_id = $1", groupID).Scan(&count)
	if err != nil {
		return 0, classifyDbErr(err)
	}
	return count, nil
}
