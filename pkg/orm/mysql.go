package orm

import (
	"fmt"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type Config struct {
	DSN         string // user:pass@tcp(host:port)/db?parseTime=true
	MaxIdle     int
	MaxOpen     int
	MaxLifetime int    // seconds
	LogLevel    string // silent, error, warn, info
}

// NewMySQL opens a pooled GORM handle. Timestamps are written in UTC and
// driver errors are translated so callers can match gorm.ErrDuplicatedKey.
func NewMySQL(c *Config) (*gorm.DB, error) {
	db, err := gorm.Open(mysql.Open(c.DSN), GormConfig(c.LogLevel))
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxIdleConns(c.MaxIdle)
	sqlDB.SetMaxOpenConns(c.MaxOpen)
	sqlDB.SetConnMaxLifetime(time.Duration(c.MaxLifetime) * time.Second)

	return db, nil
}

// GormConfig is shared by the MySQL handle and test databases.
func GormConfig(level string) *gorm.Config {
	return &gorm.Config{
		Logger:                 logger.Default.LogMode(logLevel(level)),
		SkipDefaultTransaction: true,
		TranslateError:         true,
		NowFunc:                func() time.Time { return time.Now().UTC() },
	}
}

func logLevel(level string) logger.LogLevel {
	switch level {
	case "silent":
		return logger.Silent
	case "error":
		return logger.Error
	case "info":
		return logger.Info
	default:
		return logger.Warn
	}
}
