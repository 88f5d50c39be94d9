package logger

import "github.com/rs/zerolog"

var (
	DEBUG = "debug"
	INFO  = "info"
	WARN  = "warn"
	ERROR = "error"
	FATAL = "fatal"
)

func setLogLevel(level string) {
	switch level {
	case DEBUG:
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case INFO:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case WARN:
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case ERROR:
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	case FATAL:
		zerolog.SetGlobalLevel(zerolog.FatalLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}

type Config struct {
	InfoPath   string // info 及以下级别日志文件
	ErrorPath  string // error 及以上级别日志文件
	MaxSize    int    // 日志文件最大大小（MB）
	MaxBackups int    // 保存的旧日志文件最大数量
	MaxAge     int    // 保留旧日志文件的最大天数
	Level      string // 日志级别 (debug, info, warn, error, fatal)
	Compress   bool   // 是否压缩旧日志
	Console    bool   // 是否同时输出到控制台
}

// DefaultConfig 返回默认配置
func DefaultConfig() Config {
	return Config{
		InfoPath:   "logs/info.log",
		ErrorPath:  "logs/err.log",
		MaxSize:    10,
		MaxBackups: 100,
		MaxAge:     5,
		Level:      INFO,
		Compress:   false,
		Console:    false,
	}
}

type Builder struct {
	config Config
}

func NewBuilder() *Builder {
	return &Builder{
		config: DefaultConfig(),
	}
}

func (b *Builder) SetMaxSize(size int) *Builder {
	b.config.MaxSize = size
	return b
}

func (b *Builder) SetMaxBackups(backups int) *Builder {
	b.config.MaxBackups = backups
	return b
}

func (b *Builder) SetMaxAge(days int) *Builder {
	b.config.MaxAge = days
	return b
}

func (b *Builder) SetLevel(level string) *Builder {
	b.config.Level = level
	return b
}

func (b *Builder) EnableCompression(enable bool) *Builder {
	b.config.Compress = enable
	return b
}

func (b *Builder) EnableConsoleOutput(enable bool) *Builder {
	b.config.Console = enable
	return b
}

// SetPaths 设置日志文件路径
func (b *Builder) SetPaths(infoPath, errorPath string) *Builder {
	b.config.InfoPath = infoPath
	b.config.ErrorPath = errorPath
	return b
}

func (b *Builder) Build() error {
	return initLogger(b.config)
}
