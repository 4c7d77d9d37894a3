package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const slowQueryThreshold = 200 * time.Millisecond

// Logger routes gorm logs through the global zerolog logger
type Logger struct {
	level logger.LogLevel
}

// NewLogger creates a gorm logger at the named level (silent, error, warn, info)
func NewLogger(level string) *Logger {
	return &Logger{level: parseLevel(level)}
}

func parseLevel(level string) logger.LogLevel {
	switch level {
	case "silent":
		return logger.Silent
	case "error":
		return logger.Error
	case "info", "debug":
		return logger.Info
	default:
		return logger.Warn
	}
}

// LogMode implements logger.Interface
func (l *Logger) LogMode(level logger.LogLevel) logger.Interface {
	return &Logger{level: level}
}

// Info implements logger.Interface
func (l *Logger) Info(ctx context.Context, msg string, args ...interface{}) {
	if l.level >= logger.Info {
		log.Ctx(ctx).Info().Msg(fmt.Sprintf(msg, args...))
	}
}

// Warn implements logger.Interface
func (l *Logger) Warn(ctx context.Context, msg string, args ...interface{}) {
	if l.level >= logger.Warn {
		log.Ctx(ctx).Warn().Msg(fmt.Sprintf(msg, args...))
	}
}

// Error implements logger.Interface
func (l *Logger) Error(ctx context.Context, msg string, args ...interface{}) {
	if l.level >= logger.Error {
		log.Ctx(ctx).Error().Msg(fmt.Sprintf(msg, args...))
	}
}

// Trace implements logger.Interface
func (l *Logger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	if l.level <= logger.Silent {
		return
	}

	elapsed := time.Since(begin)
	var event *zerolog.Event

	switch {
	case err != nil && l.level >= logger.Error && !errors.Is(err, gorm.ErrRecordNotFound):
		event = log.Ctx(ctx).Error().Err(err)
	case elapsed > slowQueryThreshold && l.level >= logger.Warn:
		event = log.Ctx(ctx).Warn().Bool("slow", true)
	case l.level >= logger.Info:
		event = log.Ctx(ctx).Debug()
	default:
		return
	}

	sql, rows := fc()
	event.Dur("elapsed", elapsed).Int64("rows", rows).Str("sql", sql).Msg("database query")
}
