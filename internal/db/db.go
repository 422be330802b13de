package db

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const sqliteScheme = "sqlite://"

type Options struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	Logger          logger.Interface
}

// Open connects to Postgres, or to SQLite when the DSN starts with
// sqlite://.
func Open(opts Options) (*gorm.DB, error) {
	if opts.DSN == "" {
		return nil, errors.New("DATABASE_URL is not set")
	}
	gormCfg := &gorm.Config{
		TranslateError: true,
		Logger:         opts.Logger,
	}

	var (
		conn *gorm.DB
		err  error
	)
	isSQLite := strings.HasPrefix(opts.DSN, sqliteScheme)
	if isSQLite {
		path := strings.TrimPrefix(opts.DSN, sqliteScheme)
		conn, err = gorm.Open(sqlite.Open(path+"?_busy_timeout=5000&_foreign_keys=on"), gormCfg)
	} else {
		conn, err = gorm.Open(postgres.Open(opts.DSN), gormCfg)
	}
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	sqlDB, err := conn.DB()
	if err != nil {
		return nil, fmt.Errorf("database handle: %w", err)
	}
	if isSQLite {
		// SQLite has a single writer; one connection keeps transactions serial.
		sqlDB.SetMaxOpenConns(1)
	} else {
		if opts.MaxOpenConns > 0 {
			sqlDB.SetMaxOpenConns(opts.MaxOpenConns)
		}
		if opts.MaxIdleConns > 0 {
			sqlDB.SetMaxIdleConns(opts.MaxIdleConns)
		}
	}
	if opts.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(opts.ConnMaxLifetime)
	}
	if opts.ConnMaxIdleTime > 0 {
		sqlDB.SetConnMaxIdleTime(opts.ConnMaxIdleTime)
	}
	return conn, nil
}

// Migrate runs GORM auto-migrations for the core tables.
func Migrate(conn *gorm.DB) error {
	if conn == nil {
		return errors.New("db connection is nil")
	}
	if err := conn.AutoMigrate(
		&Game{},
		&Player{},
		&Submission{},
		&Vote{},
		&Event{},
		&Template{},
	); err != nil {
		return err
	}
	log.Info().Msg("database migration complete")
	return nil
}
