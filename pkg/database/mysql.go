package database

import (
	"fmt"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/track-room-system/pkg/models"
)

// NewMySQLStore connects to MySQL, runs migrations and returns a Store.
func NewMySQLStore(host, port, user, password, dbname string) (*Store, error) {
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		user, password, host, port, dbname)

	gormConfig := &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Warn),
		TranslateError: true,
	}

	db, err := gorm.Open(mysql.Open(dsn), gormConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Set connection pool settings
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}

	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	return NewStore(db)
}

// NewStore wraps an already-open gorm connection and runs migrations. Tests
// use this with a sqlite database.
func NewStore(db *gorm.DB) (*Store, error) {
	if err := autoMigrate(db); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return &Store{DB: db, joinCode: GenerateJoinCode}, nil
}

func autoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.Member{},
		&models.Room{},
		&models.RoomMember{},
		&models.Pretrack{},
		&models.Track{},
		&models.QueueEntry{},
	)
}
