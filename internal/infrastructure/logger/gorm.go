package logger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	gormlogger "gorm.io/gorm/logger"
)

const (
	defaultSlowSQL = 200 * time.Millisecond
	// upsert batches can carry large raw payloads
	maxLoggedSQL = 2048
)

// GormLogger sends gorm's statement log to zap, tagged with the request or
// job the statement ran for. Record-not-found is never logged: catalog and
// job lookups miss as part of normal flow.
type GormLogger struct {
	logger  *zap.Logger
	level   gormlogger.LogLevel
	slowSQL time.Duration
}

// GormLoggerOption configures a GormLogger
type GormLoggerOption func(*GormLogger)

// WithSlowThreshold sets the duration above which a statement is logged as slow; 0 disables
func WithSlowThreshold(threshold time.Duration) GormLoggerOption {
	return func(l *GormLogger) { l.slowSQL = threshold }
}

// NewGormLogger creates a gorm logger writing to base
func NewGormLogger(base *zap.Logger, level gormlogger.LogLevel, opts ...GormLoggerOption) *GormLogger {
	gl := &GormLogger{
		logger:  base.Named("gorm"),
		level:   level,
		slowSQL: defaultSlowSQL,
	}
	for _, opt := range opts {
		opt(gl)
	}
	return gl
}

func (l *GormLogger) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	clone := *l
	clone.level = level
	return &clone
}

func (l *GormLogger) Info(ctx context.Context, msg string, data ...any) {
	if l.level >= gormlogger.Info {
		l.logger.Info(fmt.Sprintf(msg, data...), scopeFields(ctx)...)
	}
}

func (l *GormLogger) Warn(ctx context.Context, msg string, data ...any) {
	if l.level >= gormlogger.Warn {
		l.logger.Warn(fmt.Sprintf(msg, data...), scopeFields(ctx)...)
	}
}

func (l *GormLogger) Error(ctx context.Context, msg string, data ...any) {
	if l.level >= gormlogger.Error {
		l.logger.Error(fmt.Sprintf(msg, data...), scopeFields(ctx)...)
	}
}

// Trace logs failed statements at error, slow ones at warn and the rest at debug
func (l *GormLogger) Trace(ctx context.Context, begin time.Time, fc func() (sql string, rowsAffected int64), err error) {
	if l.level <= gormlogger.Silent {
		return
	}
	if err != nil && errors.Is(err, gormlogger.ErrRecordNotFound) {
		return
	}

	elapsed := time.Since(begin)
	slow := l.slowSQL > 0 && elapsed > l.slowSQL
	if err == nil && !slow && l.level < gormlogger.Info {
		return
	}

	sql, rows := fc()
	if len(sql) > maxLoggedSQL {
		sql = sql[:maxLoggedSQL] + "..."
	}
	fields := append(scopeFields(ctx),
		zap.Duration("elapsed", elapsed),
		zap.Int64("rows", rows),
		zap.String("sql", sql),
	)

	switch {
	case err != nil:
		if l.level >= gormlogger.Error {
			l.logger.Error("SQL Error", append(fields, zap.Error(err))...)
		}
	case slow:
		if l.level >= gormlogger.Warn {
			l.logger.Warn("Slow SQL", append(fields, zap.Duration("slow_threshold", l.slowSQL))...)
		}
	default:
		l.logger.Debug("SQL", fields...)
	}
}

// scopeFields names the request or job a statement belongs to
func scopeFields(ctx context.Context) []zap.Field {
	s := ScopeOf(ctx)
	fields := make([]zap.Field, 0, 6)
	if s.RequestID != "" {
		fields = append(fields, zap.String("request_id", s.RequestID))
	}
	if s.JobID != "" {
		fields = append(fields, zap.String("job_id", s.JobID), zap.String("job_type", s.JobType))
	}
	return fields
}

// MapGormLogLevel maps the service log level onto gorm's. SQL statements
// are only traced at info or debug.
func MapGormLogLevel(level string) gormlogger.LogLevel {
	switch level {
	case "silent":
		return gormlogger.Silent
	case "error":
		return gormlogger.Error
	case "info", "debug":
		return gormlogger.Info
	default:
		return gormlogger.Warn
	}
}
