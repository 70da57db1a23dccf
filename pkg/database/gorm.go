package database

import (
	"log"
	"os"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type PoolConfig struct {
	MaxIdleConns    int
	MaxOpenConns    int
	ConnMaxLifetime time.Duration
	LogLevel        logger.LogLevel
}

type Option func(*PoolConfig)

// WithLogLevel overrides the SQL log level, e.g. logger.Silent for CLI tools.
func WithLogLevel(level logger.LogLevel) Option {
	return func(c *PoolConfig) {
		c.LogLevel = level
	}
}

func WithPool(maxIdle, maxOpen int, lifetime time.Duration) Option {
	return func(c *PoolConfig) {
		c.MaxIdleConns = maxIdle
		c.MaxOpenConns = maxOpen
		c.ConnMaxLifetime = lifetime
	}
}

func defaultPoolConfig() PoolConfig {
	return PoolConfig{
		MaxIdleConns:    10,
		MaxOpenConns:    100,
		ConnMaxLifetime: time.Hour,
		LogLevel:        logger.Warn,
	}
}

func newLogger(level logger.LogLevel) logger.Interface {
	return logger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		logger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  level,
			IgnoreRecordNotFoundError: true,
			ParameterizedQueries:      true,
			Colorful:                  true,
		},
	)
}

// NewGormDBFromDSN opens a postgres connection pool.
func NewGormDBFromDSN(dsn string, opts ...Option) (*gorm.DB, error) {
	cfg := defaultPoolConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: newLogger(cfg.LogLevel),
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	return db, nil
}
