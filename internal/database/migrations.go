package database

import (
	"fmt"

	"gorm.io/gorm"
)

// RunMigrations executes all database migrations
func RunMigrations(db *gorm.DB) error {
	// Create indexes for better performance
	if err := createIndexes(db); err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}

	return nil
}

// createIndexes creates database indexes
func createIndexes(db *gorm.DB) error {
	statements := []string{
		// Unnumbered entry matching
		`CREATE INDEX IF NOT EXISTS idx_entries_docket_date
		ON docket_entries(docket_id, date_filed)`,
		// Attachment page resolution
		`CREATE INDEX IF NOT EXISTS idx_documents_entry_doc_id
		ON documents(docket_entry_id, pacer_doc_id)`,
		// Party/attorney joins scoped to a docket
		`CREATE INDEX IF NOT EXISTS idx_roles_docket_attorney_party
		ON roles(docket_id, attorney_id, party_id)`,
		`CREATE INDEX IF NOT EXISTS idx_party_types_docket_party
		ON party_types(docket_id, party_id)`,
		// Orphan document scans
		`CREATE INDEX IF NOT EXISTS idx_processing_queue_orphans
		ON processing_queue(court_id, status, upload_type, updated_at)`,
	}

	for _, stmt := range statements {
		if err := db.Exec(stmt).Error; err != nil {
			return err
		}
	}
	return nil
}
