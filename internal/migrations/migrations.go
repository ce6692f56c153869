// Package migrations holds the versioned database schema.
package migrations

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"github.com/mermaid-studio/engine/internal/models"
	"github.com/mermaid-studio/engine/pkg/logger"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// registerModels returns all models that need migration
func registerModels() []interface{} {
	return []interface{}{
		// User Management
		&models.User{},

		// Labels
		&models.Category{},
		&models.Tag{},

		// Diagrams & sharing
		&models.Diagram{},
		&models.DiagramShare{},
		&models.DiagramRoleShare{},
	}
}

func migrationList() []*gormigrate.Migration {
	return []*gormigrate.Migration{
		{
			ID: "202610010001_initial_schema",
			Migrate: func(tx *gorm.DB) error {
				return tx.AutoMigrate(registerModels()...)
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable("diagram_tags", &models.DiagramRoleShare{}, &models.DiagramShare{},
					&models.Diagram{}, &models.Tag{}, &models.Category{}, &models.User{})
			},
		},
		{
			ID:       "202610010002_diagram_search_indexes",
			Migrate:  addSearchIndexes,
			Rollback: dropSearchIndexes,
		},
	}
}

// New returns the migrator for db.
func New(db *gorm.DB) *gormigrate.Gormigrate {
	m := gormigrate.New(db, gormigrate.DefaultOptions, migrationList())
	m.InitSchema(func(tx *gorm.DB) error {
		logger.L().Info("clean database detected, running full schema initialization")
		if err := tx.AutoMigrate(registerModels()...); err != nil {
			return err
		}
		return addSearchIndexes(tx)
	})
	return m
}

// Run applies every pending migration.
func Run(db *gorm.DB) error {
	if err := New(db).Migrate(); err != nil {
		return err
	}
	logger.L().Info("migrations applied", zap.Int("count", len(migrationList())))
	return nil
}

// RollbackLast reverts the most recently applied migration.
func RollbackLast(db *gorm.DB) error {
	return New(db).RollbackLast()
}

// addSearchIndexes adds expression indexes backing case-insensitive title
// search. Only Postgres supports them the way the search query is written.
func addSearchIndexes(tx *gorm.DB) error {
	if tx.Dialector.Name() != "postgres" {
		return nil
	}
	return tx.Exec(`CREATE INDEX IF NOT EXISTS idx_diagrams_lower_title ON diagrams (LOWER(title))`).Error
}

func dropSearchIndexes(tx *gorm.DB) error {
	if tx.Dialector.Name() != "postgres" {
		return nil
	}
	return tx.Exec(`DROP INDEX IF EXISTS idx_diagrams_lower_title`).Error
}
