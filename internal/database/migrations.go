// internal/database/migrations.go
package database

import (
	"database/sql"
	"fmt"
)

// RunMigrations runs all database migrations
func RunMigrations(db *sql.DB) error {
	// Create tables
	if err := createTables(db); err != nil {
		return fmt.Errorf("failed to create tables: %w", err)
	}

	// Create indexes
	if err := createIndexes(db); err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}

	// Create functions and triggers
	if err := createFunctionsAndTriggers(db); err != nil {
		return fmt.Errorf("failed to create functions and triggers: %w", err)
	}

	return nil
}

func createTables(db *sql.DB) error {
	queries := []string{
		// One row per delivery run
		`CREATE TABLE IF NOT EXISTS campaigns (
			id UUID PRIMARY KEY,
			tenant VARCHAR(255) NOT NULL,
			session_id VARCHAR(255) NOT NULL,
			source VARCHAR(20) NOT NULL DEFAULT 'bulk',
			total_recipients INTEGER NOT NULL DEFAULT 0,
			success_count INTEGER NOT NULL DEFAULT 0,
			failure_count INTEGER NOT NULL DEFAULT 0,
			failed_recipients TEXT[] NOT NULL DEFAULT '{}',
			message_body TEXT,
			media JSONB,
			attempts JSONB NOT NULL DEFAULT '[]',
			created_at TIMESTAMP NOT NULL DEFAULT NOW(),
			CONSTRAINT check_counts CHECK (success_count + failure_count = total_recipients),
			CONSTRAINT check_source CHECK (source IN ('bulk', 'scheduled', 'group'))
		)`,

		// Keyword rules of the auto-responder
		`CREATE TABLE IF NOT EXISTS responder_rules (
			id UUID PRIMARY KEY,
			seq BIGSERIAL,
			session_id VARCHAR(255) NOT NULL,
			tenant VARCHAR(255) NOT NULL,
			keyword VARCHAR(255) NOT NULL,
			response TEXT NOT NULL,
			created_at TIMESTAMP NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMP NOT NULL DEFAULT NOW()
		)`,
	}

	for _, query := range queries {
		if _, err := db.Exec(query); err != nil {
			return err
		}
	}

	return nil
}

func createIndexes(db *sql.DB) error {
	indexes := []string{
		`CREATE INDEX IF NOT EXISTS idx_campaigns_tenant_created ON campaigns(tenant, created_at DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_campaigns_session ON campaigns(session_id)`,
		`CREATE INDEX IF NOT EXISTS idx_rules_session ON responder_rules(session_id, seq)`,
	}

	for _, index := range indexes {
		if _, err := db.Exec(index); err != nil {
			return err
		}
	}

	return nil
}

func createFunctionsAndTriggers(db *sql.DB) error {
	// Function to update updated_at timestamp
	updateTimestampFunc := `
	CREATE OR REPLACE FUNCTION update_updated_at_column()
	RETURNS TRIGGER AS $$
	BEGIN
		NEW.updated_at = NOW();
		RETURN NEW;
	END;
	$$ LANGUAGE plpgsql;`

	if _, err := db.Exec(updateTimestampFunc); err != nil {
		return err
	}

	triggers := []string{
		`DROP TRIGGER IF EXISTS update_rules_updated_at ON responder_rules`,
		`CREATE TRIGGER update_rules_updated_at
			BEFORE UPDATE ON responder_rules
			FOR EACH ROW
			EXECUTE FUNCTION update_updated_at_column()`,
	}

	for _, trigger := range triggers {
		if _, err := db.Exec(trigger); err != nil {
			return err
		}
	}

	return nil
}
