package catalog

import (
	"database/sql"
	"fmt"
	"log"
)

const (
	TcgSchemaMigration        = "tcg.schema"
	TcgGroupsMigration        = "tcg.groups"
	TcgProductsMigration      = "tcg.products"
	TcgPricesMigration        = "tcg.prices"
	SyncSchemaMigration       = "sync.schema"
	SyncStatusMigration       = "sync.status"
	ControlSignalsMigration   = "sync.control_signals"
	MigrationsSchemaMigration = "migrations.schema"
)

type MigrationsSchema struct{}

func (m *MigrationsSchema) UpMigration(db *sql.DB) error {
	_, err := db.Exec(`CREATE SCHEMA IF NOT EXISTS migrations;`)
	if err != nil {
		return fmt.Errorf("failed to create migrations schema: %w", err)
	}
	_, err = db.Exec(`
        CREATE TABLE IF NOT EXISTS migrations.migrations (
            id SERIAL PRIMARY KEY,
            time TIMESTAMP NOT NULL,
            name VARCHAR(255) UNIQUE NOT NULL
        );
    `)
	if err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}
	return nil
}

// applyOnce runs query under the migrations.migrations bookkeeping table so
// reruns are skipped.
func applyOnce(db *sql.DB, name, query string) error {
	var migrationExists bool
	err := db.QueryRow("SELECT EXISTS (SELECT 1 FROM migrations.migrations WHERE name = $1)", name).Scan(&migrationExists)
	if err != nil {
		return fmt.Errorf("failed to check migration status: %w", err)
	}
	if migrationExists {
		log.Printf("Migration '%s' already completed. Skipping.", name)
		return nil
	}

	if _, err = db.Exec(query); err != nil {
		return fmt.Errorf("failed to apply '%s': %w", name, err)
	}

	_, err = db.Exec("INSERT INTO migrations.migrations (name, time) VALUES ($1, current_timestamp)", name)
	if err != nil {
		return fmt.Errorf("failed to mark '%s' migration as complete: %w", name, err)
	}

	log.Printf("Migration '%s' completed successfully.", name)
	return nil
}

type TcgSchema struct{}

func (m *TcgSchema) UpMigration(db *sql.DB) error {
	_, err := db.Exec(`CREATE SCHEMA IF NOT EXISTS tcg;`)
	if err != nil {
		return fmt.Errorf("failed to create tcg schema: %w", err)
	}
	return nil
}

type SyncSchema struct{}

func (m *SyncSchema) UpMigration(db *sql.DB) error {
	_, err := db.Exec(`CREATE SCHEMA IF NOT EXISTS sync;`)
	if err != nil {
		return fmt.Errorf("failed to create sync schema: %w", err)
	}
	return nil
}

type TcgGroupsTable struct{}

func (m *TcgGroupsTable) UpMigration(db *sql.DB) error {
	return applyOnce(db, TcgGroupsMigration, `
        CREATE TABLE IF NOT EXISTS tcg.groups (
            group_id VARCHAR(100) PRIMARY KEY,
            category_id VARCHAR(100) NOT NULL,
            name TEXT NOT NULL,
            abbreviation VARCHAR(50),
            is_supplemental BOOLEAN DEFAULT FALSE,
            published_on TIMESTAMP WITH TIME ZONE,
            modified_on TIMESTAMP WITH TIME ZONE,
            expected_products INT,
            synced_at TIMESTAMP WITH TIME ZONE DEFAULT CURRENT_TIMESTAMP NOT NULL
        );
        CREATE INDEX IF NOT EXISTS tcg_groups_category_idx ON tcg.groups(category_id);
    `)
}

type TcgProductsTable struct{}

func (m *TcgProductsTable) UpMigration(db *sql.DB) error {
	return applyOnce(db, TcgProductsMigration, `
        CREATE TABLE IF NOT EXISTS tcg.products (
            product_id VARCHAR(100) PRIMARY KEY,
            group_id VARCHAR(100) NOT NULL,
            category_id VARCHAR(100),
            name TEXT NOT NULL,
            clean_name TEXT,
            url TEXT,
            image_url TEXT,
            ext JSONB,
            modified_on TIMESTAMP WITH TIME ZONE,
            synced_at TIMESTAMP WITH TIME ZONE DEFAULT CURRENT_TIMESTAMP NOT NULL
        );
        CREATE INDEX IF NOT EXISTS tcg_products_group_idx ON tcg.products(group_id);
    `)
}

type TcgPricesTable struct{}

func (m *TcgPricesTable) UpMigration(db *sql.DB) error {
	return applyOnce(db, TcgPricesMigration, `
        CREATE TABLE IF NOT EXISTS tcg.prices (
            product_id VARCHAR(100) NOT NULL,
            group_id VARCHAR(100),
            sub_type VARCHAR(50) NOT NULL,
            low NUMERIC(12, 2),
            mid NUMERIC(12, 2),
            high NUMERIC(12, 2),
            market NUMERIC(12, 2),
            direct_low NUMERIC(12, 2),
            updated_at TIMESTAMP WITH TIME ZONE DEFAULT CURRENT_TIMESTAMP NOT NULL,
            PRIMARY KEY (product_id, sub_type)
        );
        CREATE INDEX IF NOT EXISTS tcg_prices_group_idx ON tcg.prices(group_id);
    `)
}

type SyncStatusTable struct{}

func (m *SyncStatusTable) UpMigration(db *sql.DB) error {
	return applyOnce(db, SyncStatusMigration, `
        CREATE TABLE IF NOT EXISTS sync.status (
            entity_type VARCHAR(50) NOT NULL,
            entity_id VARCHAR(100) NOT NULL,
            state VARCHAR(20) NOT NULL DEFAULT 'idle',
            last_error VARCHAR(500),
            synced_items INT NOT NULL DEFAULT 0,
            expected_items INT NOT NULL DEFAULT 0,
            started_at TIMESTAMP WITH TIME ZONE,
            updated_at TIMESTAMP WITH TIME ZONE DEFAULT CURRENT_TIMESTAMP NOT NULL,
            PRIMARY KEY (entity_type, entity_id)
        );
    `)
}

type ControlSignalsTable struct{}

func (m *ControlSignalsTable) UpMigration(db *sql.DB) error {
	return applyOnce(db, ControlSignalsMigration, `
        CREATE TABLE IF NOT EXISTS sync.control_signals (
            op_type VARCHAR(50) NOT NULL,
            op_id VARCHAR(100) NOT NULL,
            cancel BOOLEAN NOT NULL DEFAULT FALSE,
            created_by VARCHAR(100),
            created_at TIMESTAMP WITH TIME ZONE DEFAULT CURRENT_TIMESTAMP NOT NULL,
            PRIMARY KEY (op_type, op_id)
        );
    `)
}
