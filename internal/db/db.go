package db

import (
	"fmt"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/suPer8Hu/creator-scout/internal/chat"
	"github.com/suPer8Hu/creator-scout/internal/enrich"
	"github.com/suPer8Hu/creator-scout/internal/task"
)

// Connect opens the MySQL database and sizes its pool.
func Connect(dsn string) (*gorm.DB, error) {
	gdb, err := gorm.Open(mysql.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("open mysql: %w", err)
	}
	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)
	return gdb, nil
}

// Models lists every table the service owns.
func Models() []any {
	return []any{
		&task.Task{},
		&chat.Session{},
		&chat.Message{},
		&chat.TaskLink{},
		&enrich.AnalyzedProfile{},
	}
}

func AutoMigrate(gdb *gorm.DB) error {
	return gdb.AutoMigrate(Models()...)
}
