package rag

import (
	"context"
	"fmt"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"
)

// FragmentRecord is the durable ledger row for one indexed fragment. The
// ledger records what went into the index so re-ingestion can be audited and
// stale documents pruned; the vector index itself stays the source of truth
// for retrieval.
type FragmentRecord struct {
	ID             string `gorm:"primaryKey;size:64"`
	DocumentID     string `gorm:"index;size:255"`
	ParagraphIndex int
	FragmentIndex  int
	Source         string `gorm:"size:512"`
	Text           string `gorm:"type:text"`
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// TableName sets the ledger table name.
func (FragmentRecord) TableName() string { return "fragments" }

// OpenDatabase opens the ledger database for the given driver. Supported
// drivers are sqlite, postgres, and mysql.
func OpenDatabase(driver, dsn string, maxIdleConns, maxOpenConns int) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch driver {
	case "sqlite":
		dialector = sqlite.Open(dsn)
	case "postgres":
		dialector = postgres.Open(dsn)
	case "mysql":
		dialector = mysql.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", driver, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("access sql connection pool: %w", err)
	}
	if maxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(maxIdleConns)
	}
	if maxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(maxOpenConns)
	}
	return db, nil
}

// FragmentStore is the GORM-backed ingestion ledger.
type FragmentStore struct {
	db *gorm.DB
}

// NewFragmentStore migrates the ledger schema and returns the store.
func NewFragmentStore(db *gorm.DB) (*FragmentStore, error) {
	if err := db.AutoMigrate(&FragmentRecord{}); err != nil {
		return nil, fmt.Errorf("migrate fragment ledger: %w", err)
	}
	return &FragmentStore{db: db}, nil
}

// SaveAll upserts ledger rows for the given fragments, replacing existing
// rows by ID.
func (s *FragmentStore) SaveAll(ctx context.Context, fragments []Fragment) error {
	if len(fragments) == 0 {
		return nil
	}
	records := make([]FragmentRecord, len(fragments))
	for i, f := range fragments {
		records[i] = FragmentRecord{
			ID:             f.ID,
			DocumentID:     f.DocumentID,
			ParagraphIndex: f.ParagraphIndex,
			FragmentIndex:  f.FragmentIndex,
			Source:         f.Source,
			Text:           f.Text,
		}
	}
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(&records).Error
}

// ByDocument returns all ledger rows for a document, in paragraph then
// fragment order.
func (s *FragmentStore) ByDocument(ctx context.Context, documentID string) ([]FragmentRecord, error) {
	var records []FragmentRecord
	err := s.db.WithContext(ctx).
		Where("document_id = ?", documentID).
		Order("paragraph_index, fragment_index").
		Find(&records).Error
	return records, err
}

// DeleteDocument removes all ledger rows for a document. Used before
// re-ingesting a document whose fragment count may have shrunk.
func (s *FragmentStore) DeleteDocument(ctx context.Context, documentID string) error {
	return s.db.WithContext(ctx).
		Where("document_id = ?", documentID).
		Delete(&FragmentRecord{}).Error
}

// Count returns the number of ledger rows.
func (s *FragmentStore) Count(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&FragmentRecord{}).Count(&n).Error
	return n, err
}
