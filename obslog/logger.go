package obslog

import (
	"fmt"
	"runtime"
	"time"

	"github.com/sirupsen/logrus"
)

// Level names accepted on the --verbose/config log-level surface.
type Level string

const (
	LevelDebug Level = "debug"
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

// Config configures a process logger at startup.
type Config struct {
	Level   Level
	Format  string // "json" or "text"
	Process string // "orchestrator", "pusher", or "classifier"
}

// New builds a configured *logrus.Logger routed through OutputSplitter.
func New(cfg Config) *logrus.Logger {
	logger := logrus.New()
	switch cfg.Level {
	case LevelDebug:
		logger.SetLevel(logrus.DebugLevel)
	case LevelWarn:
		logger.SetLevel(logrus.WarnLevel)
	case LevelError:
		logger.SetLevel(logrus.ErrorLevel)
	default:
		logger.SetLevel(logrus.InfoLevel)
	}
	if cfg.Format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{TimestampFormat: time.RFC3339, FullTimestamp: true})
	}
	logger.SetOutput(&OutputSplitter{})
	return logger
}

// ContextLogger carries the pipeline's standard structured-log keys: bug_id,
// branch, patchset_id, revision. Any subset may be set.
type ContextLogger struct {
	logger *logrus.Logger
	fields logrus.Fields
}

// With wraps logger (or the package Logger if nil) with a base field set.
func With(logger *logrus.Logger, fields logrus.Fields) *ContextLogger {
	if logger == nil {
		logger = Logger
	}
	merged := make(logrus.Fields, len(fields))
	for k, v := range fields {
		merged[k] = v
	}
	return &ContextLogger{logger: logger, fields: merged}
}

func (cl *ContextLogger) WithField(key string, value interface{}) *ContextLogger {
	merged := make(logrus.Fields, len(cl.fields)+1)
	for k, v := range cl.fields {
		merged[k] = v
	}
	merged[key] = value
	return &ContextLogger{logger: cl.logger, fields: merged}
}

func (cl *ContextLogger) WithError(err error) *ContextLogger {
	return cl.WithField("error", err.Error())
}

func (cl *ContextLogger) entry() *logrus.Entry { return cl.logger.WithFields(cl.fields) }

func (cl *ContextLogger) Debug(msg string)                            { cl.entry().Debug(msg) }
func (cl *ContextLogger) Debugf(format string, args ...interface{})   { cl.entry().Debugf(format, args...) }
func (cl *ContextLogger) Info(msg string)                             { cl.entry().Info(msg) }
func (cl *ContextLogger) Infof(format string, args ...interface{})    { cl.entry().Infof(format, args...) }
func (cl *ContextLogger) Warn(msg string)                             { cl.entry().Warn(msg) }
func (cl *ContextLogger) Warnf(format string, args ...interface{})    { cl.entry().Warnf(format, args...) }
func (cl *ContextLogger) Error(msg string)                            { cl.entry().Error(msg) }
func (cl *ContextLogger) Errorf(format string, args ...interface{})   { cl.entry().Errorf(format, args...) }

// ForBug scopes a logger to one bug_id, the most common correlation key
// across discovery, pushing, and classification log lines.
func ForBug(logger *logrus.Logger, bugID int) *ContextLogger {
	return With(logger, logrus.Fields{"bug_id": bugID})
}

// LogOperation times fn, logging start/end/duration and the error if any.
func LogOperation(logger *ContextLogger, operation string, fn func() error) error {
	start := time.Now()
	logger.WithField("operation", operation).Info("operation started")
	err := fn()
	entry := logger.WithField("operation", operation).WithField("duration_ms", time.Since(start).Milliseconds())
	if err != nil {
		entry.WithError(err).Error("operation failed")
		return err
	}
	entry.Info("operation completed")
	return nil
}

// RecoverAndLog recovers from a panic within a tick-loop iteration and logs
// it instead of crashing the whole process, matching the "no computation
// blocks indefinitely" posture of spec.md §5 for a single loop iteration.
func RecoverAndLog(logger *ContextLogger) {
	if r := recover(); r != nil {
		buf := make([]byte, 4096)
		n := runtime.Stack(buf, false)
		logger.WithField("panic", fmt.Sprintf("%v", r)).WithField("stacktrace", string(buf[:n])).Error("recovered panic")
	}
}
