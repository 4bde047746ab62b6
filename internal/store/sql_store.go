package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var errMissingDatabase = errors.New("store: database handle is required")

// SQLStoreConfig describes the dependencies of a SQLStore.
type SQLStoreConfig struct {
	Database *gorm.DB
	Clock    func() time.Time
}

// SQLStore keeps each collection as a single row in the documents table.
type SQLStore struct {
	db    *gorm.DB
	clock func() time.Time
}

// NewSQLStore constructs a SQLStore over an already migrated database.
func NewSQLStore(cfg SQLStoreConfig) (*SQLStore, error) {
	if cfg.Database == nil {
		return nil, errMissingDatabase
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	return &SQLStore{db: cfg.Database, clock: clock}, nil
}

func (s *SQLStore) Get(ctx context.Context, collection Collection) ([]byte, error) {
	if !collection.Valid() {
		return nil, fmt.Errorf("%w: %s", ErrUnknownCollection, collection)
	}
	var document Document
	err := s.db.WithContext(ctx).
		Where("collection = ?", string(collection)).
		Take(&document).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get %s: %v", ErrStoreUnavailable, collection, err)
	}
	return []byte(document.BodyJSON), nil
}

func (s *SQLStore) Put(ctx context.Context, collection Collection, body []byte) error {
	if !collection.Valid() {
		return fmt.Errorf("%w: %s", ErrUnknownCollection, collection)
	}
	document := Document{
		Collection:       string(collection),
		BodyJSON:         string(body),
		Revision:         1,
		UpdatedAtSeconds: s.clock().UTC().Unix(),
	}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "collection"}},
		DoUpdates: clause.Assignments(map[string]any{
			"body_json":    document.BodyJSON,
			"updated_at_s": document.UpdatedAtSeconds,
			"revision":     gorm.Expr("documents.revision + 1"),
		}),
	}).Create(&document).Error
	if err != nil {
		return fmt.Errorf("%w: put %s: %v", ErrStoreUnavailable, collection, err)
	}
	return nil
}

// Revision reports how many times the collection has been written.
func (s *SQLStore) Revision(ctx context.Context, collection Collection) (int64, error) {
	var document Document
	err := s.db.WithContext(ctx).
		Select("revision").
		Where("collection = ?", string(collection)).
		Take(&document).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("%w: revision %s: %v", ErrStoreUnavailable, collection, err)
	}
	return document.Revision, nil
}
