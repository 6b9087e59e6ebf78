package db

import (
	"fmt"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/yungbote/buddybot-backend/internal/pkg/logger"
)

// SQLiteService backs local development and the repo/aggregate test suites.
type SQLiteService struct {
	db  *gorm.DB
	log *logger.Logger
}

// NewSQLiteService opens path, which may be a file or a "file:...?mode=memory" URI.
// A single connection keeps writes serialized the way SQLite requires.
func NewSQLiteService(logg *logger.Logger, path string) (*SQLiteService, error) {
	serviceLog := logg.With("service", "SQLiteService")
	if path == "" {
		path = "buddybot.db"
	}
	db, err := gorm.Open(sqlite.Open(withSQLitePragmas(path)), &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
		Logger:                                   newGormLogger(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite %q: %w", path, err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("sqlite handle: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)
	return &SQLiteService{db: db, log: serviceLog}, nil
}

func (s *SQLiteService) DB() *gorm.DB { return s.db }

func (s *SQLiteService) AutoMigrateAll() error {
	if err := AutoMigrateAll(s.db); err != nil {
		return err
	}
	return EnsureFlowIndexes(s.db)
}

func withSQLitePragmas(path string) string {
	sep := "?"
	for _, r := range path {
		if r == '?' {
			sep = "&"
			break
		}
	}
	return path + sep + "_busy_timeout=5000&_foreign_keys=off"
}
