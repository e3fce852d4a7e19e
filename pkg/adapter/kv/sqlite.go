package kv

import (
	"context"
	"errors"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/m-mizutani/goerr/v2"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// entry is a row of the kv_entries table
type entry struct {
	Name      string `gorm:"primaryKey;size:255"`
	Value     string `gorm:"type:text;not null"`
	UpdatedAt time.Time
}

func (entry) TableName() string {
	return "kv_entries"
}

// SQLite stores keys in a single table through GORM
type SQLite struct {
	db *gorm.DB
}

// NewSQLite opens (or creates) the database file and migrates the table
func NewSQLite(path string) (*SQLite, error) {
	if path == "" {
		return nil, goerr.New("sqlite path is required")
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to open sqlite database", goerr.V("path", path))
	}

	if err := db.AutoMigrate(&entry{}); err != nil {
		return nil, goerr.Wrap(err, "failed to migrate kv table", goerr.V("path", path))
	}

	return &SQLite{db: db}, nil
}

func (s *SQLite) Get(ctx context.Context, key string) (string, bool, error) {
	var e entry
	err := s.db.WithContext(ctx).Where("name = ?", key).First(&e).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, goerr.Wrap(err, "failed to get kv entry", goerr.V("key", key))
	}
	return e.Value, true, nil
}

func (s *SQLite) Set(ctx context.Context, key, value string) error {
	e := entry{Name: key, Value: value, UpdatedAt: time.Now()}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&e).Error
	if err != nil {
		return goerr.Wrap(err, "failed to set kv entry", goerr.V("key", key))
	}
	return nil
}

func (s *SQLite) Delete(ctx context.Context, key string) error {
	if err := s.db.WithContext(ctx).Where("name = ?", key).Delete(&entry{}).Error; err != nil {
		return goerr.Wrap(err, "failed to delete kv entry", goerr.V("key", key))
	}
	return nil
}

func (s *SQLite) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return goerr.Wrap(err, "failed to get sql.DB")
	}
	return sqlDB.Close()
}
