package storage

import (
	"os"
	"path/filepath"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"medboard-server-go/internal/platform/errors"
)

// OpenSQLite opens (creating directories as needed) the sqlite database and
// migrates the session-security schema.
func OpenSQLite(dsn string) (*gorm.DB, error) {
	if dir := filepath.Dir(dsn); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, errors.Wrap(errors.KindStorage, "sqlite.open", "create data dir", err)
		}
	}

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, errors.Wrap(errors.KindStorage, "sqlite.open", "open database", err)
	}

	if err := db.AutoMigrate(&SessionRow{}, &LockoutRow{}); err != nil {
		return nil, errors.Wrap(errors.KindStorage, "sqlite.migrate", "migrate schema", err)
	}
	return db, nil
}
