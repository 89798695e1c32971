package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"tcgsync_api/internal/tcg/business/models"
)

type GroupRepository struct {
	db *sql.DB
}

func NewGroupRepository(db *sql.DB) *GroupRepository {
	return &GroupRepository{db: db}
}

var groupColumns = []string{
	"group_id", "category_id", "name", "abbreviation",
	"is_supplemental", "published_on", "modified_on", "expected_products",
}

func (r *GroupRepository) UpsertBatch(ctx context.Context, records []models.Record) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, classifyDbErr(err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
        CREATE TEMP TABLE temp_groups
        (LIKE tcg.groups INCLUDING DEFAULTS)
        ON COMMIT DROP
    `)
	if err != nil {
		return 0, classifyDbErr(fmt.Errorf("create temp table: %w", err))
	}

	stmt, err := tx.PrepareContext(ctx, pq.CopyIn("temp_groups", groupColumns...))
	if err != nil {
		return 0, classifyDbErr(fmt.Errorf("prepare copyin: %w", err))
	}

	for _, rec := range records {
		_, err = stmt.ExecContext(ctx,
			rec.ExternalID, rec.CategoryID, rec.Name,
			extString(rec, "abbreviation"), extBool(rec, "isSupplemental"),
			extString(rec, "publishedOn"), extString(rec, "modifiedOn"),
			extInt(rec, "totalProducts"),
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
        INSERT INTO tcg.groups
            (group_id, category_id, name, abbreviation, is_supplemental, published_on, modified_on, expected_products, synced_at)
        SELECT group_id, category_id, name, abbreviation, is_supplemental, published_on, modified_on, expected_products, now()
        FROM temp_groups
        ON CONFLICT (group_id) DO UPDATE SET
            category_id = EXCLUDED.category_id,
            name = EXCLUDED.name,
            abbreviation = EXCLUDED.abbreviation,
            is_supplemental = EXCLUDED.is_supplemental,
            published_on = EXCLUDED.published_on,
            modified_on = EXCLUDED.modified_on,
            expected_products = EXCLUDED.expected_products,
            synced_at = now()
    `)
	if err != nil {
		return 0, classifyDbErr(fmt.Errorf("merge groups: %w", err))
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

// ListTargets resolves the stored groups of a category into sync targets,
// optionally filtered by a case-insensitive name fragment.
func (r *GroupRepository) ListTargets(ctx context.Context, categoryID, nameFilter string) ([]models.SyncTarget, error) {
	query := `
        SELECT group_id, name, COALESCE(expected_products, 0)
        FROM tcg.groups
        WHERE category_id = $1
    `
	args := []interface{}{categoryID}
	if nameFilter != "" {
		query += " AND name ILIKE '%' || $2 || '%'"
		args = append(args, nameFilter)
	}
	query += " ORDER BY group_id"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, classifyDbErr(err)
	}
	defer rows.Close()

	var targets []models.SyncTarget
	for rows.Next() {
		var t models.SyncTarget
		if err := rows.Scan(&t.ExternalID, &t.Name, &t.Expected); err != nil {
			return nil, classifyDbErr(err)
		}
		t.CategoryID = categoryID
		targets = append(targets, t)
	}
	return targets, rows.Err()
}

// Count returns the stored group count of a category.
func (r *GroupRepository) Count(ctx context.Context, categoryID string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM tcg.groups WHERE category_id = $1", categoryID).Scan(&count)
	if err != nil {
		return 0, classifyDbErr(err)
	}
	return count, nil
}
