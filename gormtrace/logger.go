// Package gormtrace feeds statements executed through gorm into a tracer.
//
// gorm reports every statement to its configured logger after execution, so
// installing Logger as gorm.Config.Logger is enough to profile an
// application's ORM traffic:
//
//	db, err := gorm.Open(dialector, &gorm.Config{
//		Logger: gormtrace.New(t, zapLogger.Sugar()),
//	})
package gormtrace

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	gormlogger "gorm.io/gorm/logger"

	"github.com/dbsmedya/qtrace/tracer"
)

// Logger implements gorm's logger.Interface on top of a tracer.Interceptor.
// Statement statistics are collected at every log level; the level only
// controls which gorm messages reach the zap logger.
type Logger struct {
	tracer *tracer.Interceptor
	log    *zap.SugaredLogger
	level  gormlogger.LogLevel
}

var _ gormlogger.Interface = (*Logger)(nil)

// New creates a Logger at gorm's Warn level. A nil log discards gorm's
// messages.
func New(t *tracer.Interceptor, log *zap.SugaredLogger) *Logger {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Logger{
		tracer: t,
		log:    log,
		level:  gormlogger.Warn,
	}
}

// LogMode returns a copy of l at the given level.
func (l *Logger) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	clone := *l
	clone.level = level
	return &clone
}

// Info logs gorm informational messages.
func (l *Logger) Info(ctx context.Context, msg string, args ...interface{}) {
	if l.level >= gormlogger.Info {
		l.log.Info(fmt.Sprintf(msg, args...))
	}
}

// Warn logs gorm warnings.
func (l *Logger) Warn(ctx context.Context, msg string, args ...interface{}) {
	if l.level >= gormlogger.Warn {
		l.log.Warn(fmt.Sprintf(msg, args...))
	}
}

// Error logs gorm errors.
func (l *Logger) Error(ctx context.Context, msg string, args ...interface{}) {
	if l.level >= gormlogger.Error {
		l.log.Error(fmt.Sprintf(msg, args...))
	}
}

// Trace hands the executed statement to the tracer. A missing record is a
// successful query as far as timing goes, so it is recorded like any other.
func (l *Logger) Trace(ctx context.Context, begin time.Time, fc func() (sql string, rowsAffected int64), err error) {
	elapsed := time.Since(begin)
	sql, rows := fc()

	if errors.Is(err, gormlogger.ErrRecordNotFound) {
		err = nil
	}
	l.tracer.Observe(sql, elapsed, err)

	if err != nil && l.level >= gormlogger.Error {
		l.log.Errorw("Statement failed",
			"statement", tracer.Normalize(sql),
			"error", err,
			"rows", rows,
			"elapsed", elapsed,
		)
	}
}
