package database

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

const slowQueryThreshold = 200 * time.Millisecond

// GormLogger sends gorm output through zerolog
type GormLogger struct {
	log   zerolog.Logger
	level zerolog.Level
}

// NewGormLogger builds a gorm logger that drops SQL traces below level
func NewGormLogger(log zerolog.Logger, level zerolog.Level) *GormLogger {
	return &GormLogger{log: log, level: level}
}

func (l *GormLogger) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	out := *l
	switch level {
	case gormlogger.Silent:
		out.level = zerolog.Disabled
	case gormlogger.Error:
		out.level = zerolog.ErrorLevel
	case gormlogger.Warn:
		out.level = zerolog.WarnLevel
	default:
		out.level = zerolog.DebugLevel
	}
	return &out
}

func (l *GormLogger) Info(_ context.Context, msg string, args ...interface{}) {
	if l.level <= zerolog.InfoLevel {
		l.log.Info().Msgf(msg, args...)
	}
}

func (l *GormLogger) Warn(_ context.Context, msg string, args ...interface{}) {
	if l.level <= zerolog.WarnLevel {
		l.log.Warn().Msgf(msg, args...)
	}
}

func (l *GormLogger) Error(_ context.Context, msg string, args ...interface{}) {
	if l.level <= zerolog.ErrorLevel {
		l.log.Error().Msgf(msg, args...)
	}
}

// Trace logs failed and slow statements; everything else only at debug
func (l *GormLogger) Trace(_ context.Context, begin time.Time, fc func() (string, int64), err error) {
	if l.level == zerolog.Disabled {
		return
	}
	elapsed := time.Since(begin)
	switch {
	case err != nil && !errors.Is(err, gorm.ErrRecordNotFound) && l.level <= zerolog.ErrorLevel:
		sql, rows := fc()
		l.log.Error().Err(err).Dur("elapsed", elapsed).Int64("rows", rows).Str("sql", sql).Msg("query failed")
	case elapsed > slowQueryThreshold && l.level <= zerolog.WarnLevel:
		sql, rows := fc()
		l.log.Warn().Dur("elapsed", elapsed).Int64("rows", rows).Str("sql", sql).Msg("slow query")
	case l.level <= zerolog.DebugLevel:
		sql, rows := fc()
		l.log.Debug().Dur("elapsed", elapsed).Int64("rows", rows).Str("sql", sql).Msg("query")
	}
}
