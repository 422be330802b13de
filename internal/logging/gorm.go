package logging

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const slowQueryThreshold = 200 * time.Millisecond

// gormLogger forwards GORM logs to zerolog.
type gormLogger struct {
	level logger.LogLevel
}

// NewGormLogger returns a GORM logger at warn level, or info level when
// debug is true.
func NewGormLogger(debug bool) logger.Interface {
	if debug {
		return (&gormLogger{}).LogMode(logger.Info)
	}
	return (&gormLogger{}).LogMode(logger.Warn)
}

func (l *gormLogger) LogMode(level logger.LogLevel) logger.Interface {
	return &gormLogger{level: level}
}

func (l *gormLogger) Info(ctx context.Context, msg string, data ...any) {
	if l.level >= logger.Info {
		log.Info().Msg(fmt.Sprintf(msg, data...))
	}
}

func (l *gormLogger) Warn(ctx context.Context, msg string, data ...any) {
	if l.level >= logger.Warn {
		log.Warn().Msg(fmt.Sprintf(msg, data...))
	}
}

func (l *gormLogger) Error(ctx context.Context, msg string, data ...any) {
	if l.level >= logger.Error {
		log.Error().Msg(fmt.Sprintf(msg, data...))
	}
}

func (l *gormLogger) Trace(ctx context.Context, begin time.Time, fc func() (sql string, rowsAffected int64), err error) {
	if l.level <= logger.Silent {
		return
	}
	elapsed := time.Since(begin)
	switch {
	case err != nil && !errors.Is(err, gorm.ErrRecordNotFound) && l.level >= logger.Error:
		sql, rows := fc()
		log.Error().Err(err).Dur("dur", elapsed).Str("sql", sql).Int64("rows", rows).Msg("gorm query error")
	case elapsed > slowQueryThreshold && l.level >= logger.Warn:
		sql, rows := fc()
		log.Warn().Dur("dur", elapsed).Str("sql", sql).Int64("rows", rows).Msg("slow query")
	case l.level >= logger.Info:
		sql, rows := fc()
		log.Debug().Dur("dur", elapsed).Str("sql", sql).Int64("rows", rows).Msg("gorm query")
	}
}
