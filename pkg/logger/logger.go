package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/rs/zerolog/pkgerrors"
	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	logMu      sync.Mutex
	writers    []*lumberjack.Logger
	TimeFormat = "2006-01-02 15:04:05"
)

// initLogger 初始化日志系统
func initLogger(config Config) error {
	zerolog.TimeFieldFormat = time.RFC3339
	zerolog.ErrorStackMarshaler = pkgerrors.MarshalStack

	setLogLevel(config.Level)

	for _, p := range []string{config.InfoPath, config.ErrorPath} {
		if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
			return err
		}
	}

	infoWriter := newRotatingWriter(config.InfoPath, config)
	errWriter := newRotatingWriter(config.ErrorPath, config)

	outputs := []io.Writer{
		&levelFilterWriter{max: zerolog.WarnLevel, Writer: infoWriter},
		&levelFilterWriter{min: zerolog.ErrorLevel, Writer: errWriter},
	}

	if config.Console {
		outputs = append(outputs, &zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: TimeFormat,
		})
	}

	logMu.Lock()
	defer logMu.Unlock()

	closeWritersLocked()
	writers = []*lumberjack.Logger{infoWriter, errWriter}
	log.Logger = zerolog.New(zerolog.MultiLevelWriter(outputs...)).
		With().Timestamp().Caller().Logger()

	return nil
}

func newRotatingWriter(path string, config Config) *lumberjack.Logger {
	return &lumberjack.Logger{
		Filename:   path,
		MaxSize:    config.MaxSize,
		MaxBackups: config.MaxBackups,
		MaxAge:     config.MaxAge,
		Compress:   config.Compress,
	}
}

// levelFilterWriter 仅写入 [min, max] 范围内的日志
type levelFilterWriter struct {
	min zerolog.Level
	max zerolog.Level
	io.Writer
}

func (w *levelFilterWriter) WriteLevel(level zerolog.Level, p []byte) (int, error) {
	if level < w.min || level > w.max {
		return len(p), nil
	}
	return w.Writer.Write(p)
}

func closeWritersLocked() {
	for _, w := range writers {
		_ = w.Close()
	}
	writers = nil
}

// Close 关闭日志文件
func Close() {
	logMu.Lock()
	defer logMu.Unlock()
	closeWritersLocked()
}

func Debug() *zerolog.Event { return log.Debug() }
func Info() *zerolog.Event  { return log.Info() }
func Warn() *zerolog.Event  { return log.Warn() }
func Error() *zerolog.Event { return log.Error() }
func Fatal() *zerolog.Event { return log.Fatal() }

// Infof 格式化输出 info 日志（兼容旧接口）
func Infof(format string, args ...any) {
	log.Info().CallerSkipFrame(1).Msg(fmt.Sprintf(format, args...))
}

// Errorf 格式化输出 error 日志（兼容旧接口）
func Errorf(format string, args ...any) {
	log.Error().CallerSkipFrame(1).Msg(fmt.Sprintf(format, args...))
}
