package database

import (
	"errors"
	"time"

	"github.com/Shrinivas-Shanbhag/Distributed-Social-Networking-Application/internal/store"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	migrationSeedDocumentCollections = "2026-10-01_seed_document_collections"
	migrationDropUnknownCollections  = "2026-10-08_drop_unknown_collections"
)

type migrationRecord struct {
	Name             string `gorm:"column:name;primaryKey;size:190;not null"`
	AppliedAtSeconds int64  `gorm:"column:applied_at_s;not null"`
}

func (migrationRecord) TableName() string {
	return "db_migrations"
}

type migrationDefinition struct {
	name  string
	apply func(*gorm.DB) error
}

func applyMigrations(db *gorm.DB, logger *zap.Logger) error {
	migrations := []migrationDefinition{
		{name: migrationSeedDocumentCollections, apply: seedDocumentCollections},
		{name: migrationDropUnknownCollections, apply: dropUnknownCollections},
	}

	for _, migration := range migrations {
		var record migrationRecord
		err := db.Where("name = ?", migration.name).Take(&record).Error
		if err == nil {
			continue
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		if err := migration.apply(db); err != nil {
			return err
		}
		appliedAt := time.Now().UTC().Unix()
		if err := db.Create(&migrationRecord{Name: migration.name, AppliedAtSeconds: appliedAt}).Error; err != nil {
			return err
		}
		if logger != nil {
			logger.Info("database migration applied", zap.String("migration", migration.name))
		}
	}
	return nil
}

// seedDocumentCollections inserts an empty document for every collection that has none.
func seedDocumentCollections(db *gorm.DB) error {
	now := time.Now().UTC().Unix()
	for _, collection := range store.Collections() {
		document := store.Document{
			Collection:       string(collection),
			BodyJSON:         "{}",
			UpdatedAtSeconds: now,
		}
		if err := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&document).Error; err != nil {
			return err
		}
	}
	return nil
}

func dropUnknownCollections(db *gorm.DB) error {
	known := make([]string, 0, len(store.Collections()))
	for _, collection := range store.Collections() {
		known = append(known, string(collection))
	}
	return db.Where("collection NOT IN ?", known).Delete(&store.Document{}).Error
}
