package util

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const LOG_BUFFER_SIZE = 1000

var (
	ErrLogNotInitialized = errors.New("log object is not initialized yet")
	ErrUnknownLogLevel   = errors.New("unknown log level")
)

const (
	LOG_LEVEL_ERROR = iota + 1
	LOG_LEVEL_WARN
	LOG_LEVEL_INFO
	LOG_LEVEL_DEBUG
)

// LoggerOptions says where a MetricsLogger writes and how much.
type LoggerOptions struct {
	Dir      string
	FileName string
	Level    int
	Rewrite  bool
	// Stderr tees every line to the terminal, used by the ingest CLI.
	Stderr bool
}

// MetricsLogger hands log lines to a single writer goroutine so request
// handlers never block on file I/O.
type MetricsLogger struct {
	logBuffer         chan leveledMessage
	handle            *os.File
	wg                *sync.WaitGroup
	mu                sync.RWMutex
	loggerInitialized bool
	zapLogger         *zap.Logger
}

type leveledMessage struct {
	level  int
	logMsg string
	fields []zap.Field
}

func (m *MetricsLogger) Init(opts LoggerOptions) error {
	if opts.FileName == "" && !opts.Stderr {
		return errors.New("logger needs a file name or stderr output")
	}

	var sinks []zapcore.WriteSyncer
	if opts.FileName != "" {
		if err := CheckAndCreateLogFolder(opts.Dir); err != nil {
			return err
		}

		flags := os.O_RDWR | os.O_CREATE | os.O_APPEND
		if opts.Rewrite {
			flags = os.O_RDWR | os.O_CREATE | os.O_TRUNC
		}
		handle, err := os.OpenFile(filepath.Join(opts.Dir, opts.FileName), flags, 0666)
		if err != nil {
			return err
		}
		m.handle = handle
		sinks = append(sinks, zapcore.AddSync(handle))
	}
	if opts.Stderr {
		sinks = append(sinks, zapcore.Lock(os.Stderr))
	}

	m.zapLogger = newZapLogger(zapcore.NewMultiWriteSyncer(sinks...), ZapLevel(opts.Level))
	m.wg = new(sync.WaitGroup)
	m.logBuffer = make(chan leveledMessage, LOG_BUFFER_SIZE)

	m.wg.Add(1)
	go m.logWriter()

	m.mu.Lock()
	m.loggerInitialized = true
	m.mu.Unlock()
	return nil
}

func newZapLogger(writer zapcore.WriteSyncer, level zapcore.Level) *zap.Logger {
	config := zap.NewProductionEncoderConfig()
	config.EncodeTime = zapcore.ISO8601TimeEncoder
	config.EncodeLevel = zapcore.CapitalLevelEncoder

	core := zapcore.NewCore(zapcore.NewConsoleEncoder(config), writer, level)
	return zap.New(core)
}

// ParseLevel maps a config string onto the LOG_LEVEL_* constants.
func ParseLevel(s string) (int, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "error":
		return LOG_LEVEL_ERROR, nil
	case "warn", "warning":
		return LOG_LEVEL_WARN, nil
	case "", "info":
		return LOG_LEVEL_INFO, nil
	case "debug":
		return LOG_LEVEL_DEBUG, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownLogLevel, s)
}

func ZapLevel(level int) zapcore.Level {
	switch level {
	case LOG_LEVEL_ERROR:
		return zapcore.ErrorLevel
	case LOG_LEVEL_WARN:
		return zapcore.WarnLevel
	case LOG_LEVEL_DEBUG:
		return zapcore.DebugLevel
	default:
		return zapcore.InfoLevel
	}
}

func (m *MetricsLogger) logWriter() {
	defer m.wg.Done()
	for logdata := range m.logBuffer {
		switch logdata.level {
		case LOG_LEVEL_ERROR:
			m.zapLogger.Error(logdata.logMsg, logdata.fields...)
		case LOG_LEVEL_WARN:
			m.zapLogger.Warn(logdata.logMsg, logdata.fields...)
		case LOG_LEVEL_DEBUG:
			m.zapLogger.Debug(logdata.logMsg, logdata.fields...)
		default:
			m.zapLogger.Info(logdata.logMsg, logdata.fields...)
		}
	}
}

// LogEvent accepts an optional leading LOG_LEVEL_* int followed by message
// parts, which are joined with spaces.
func (m *MetricsLogger) LogEvent(v ...interface{}) error {
	level, msg := splitLevel(v)
	return m.enqueue(leveledMessage{level: level, logMsg: msg})
}

// LogFields writes msg with structured zap fields.
func (m *MetricsLogger) LogFields(level int, msg string, fields ...zap.Field) error {
	return m.enqueue(leveledMessage{level: level, logMsg: msg, fields: fields})
}

func (m *MetricsLogger) enqueue(lm leveledMessage) error {
	if m == nil {
		return ErrLogNotInitialized
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	if !m.loggerInitialized {
		return ErrLogNotInitialized
	}
	m.logBuffer <- lm
	return nil
}

func splitLevel(v []interface{}) (int, string) {
	if len(v) == 0 {
		return LOG_LEVEL_INFO, ""
	}
	level, ok := v[0].(int)
	if ok && len(v) > 1 && level >= LOG_LEVEL_ERROR && level <= LOG_LEVEL_DEBUG {
		return level, strings.TrimSuffix(fmt.Sprintln(v[1:]...), "\n")
	}
	return LOG_LEVEL_INFO, strings.TrimSuffix(fmt.Sprintln(v...), "\n")
}

// DeInit drains pending lines and closes the log file.
func (m *MetricsLogger) DeInit() {
	m.mu.Lock()
	if !m.loggerInitialized {
		m.mu.Unlock()
		return
	}
	m.loggerInitialized = false
	close(m.logBuffer)
	m.mu.Unlock()

	m.wg.Wait()
	m.zapLogger.Sync()
	if m.handle != nil {
		m.handle.Close()
	}
}

func CheckAndCreateLogFolder(folder string) error {
	if folder == "" {
		return nil
	}
	if _, err := os.Stat(folder); os.IsNotExist(err) {
		if err := os.MkdirAll(folder, 0755); err != nil {
			return fmt.Errorf("failed to create folder %s: %w", folder, err)
		}
	}
	return nil
}
