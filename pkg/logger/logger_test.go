package logger

import (
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestBuilderDefaults(t *testing.T) {
	b := NewBuilder()
	assert.Equal(t, INFO, b.config.Level)
	assert.Equal(t, 10, b.config.MaxSize)
	assert.False(t, b.config.Console)
}

func TestBuilderChaining(t *testing.T) {
	b := NewBuilder().
		SetMaxSize(50).
		SetMaxBackups(3).
		SetMaxAge(14).
		SetLevel(DEBUG).
		EnableCompression(true).
		EnableConsoleOutput(true)

	assert.Equal(t, 50, b.config.MaxSize)
	assert.Equal(t, 3, b.config.MaxBackups)
	assert.Equal(t, 14, b.config.MaxAge)
	assert.Equal(t, DEBUG, b.config.Level)
	assert.True(t, b.config.Compress)
	assert.True(t, b.config.Console)
}

func TestBuildAndWrite(t *testing.T) {
	dir := t.TempDir()
	err := NewBuilder().
		SetPaths(filepath.Join(dir, "info.log"), filepath.Join(dir, "err.log")).
		SetLevel(INFO).
		Build()
	assert.NoError(t, err)
	defer Close()

	Info().Str("k", "v").Msg("hello")
	Error().Msg("boom")
}

func TestSetLogLevel(t *testing.T) {
	setLogLevel(WARN)
	assert.Equal(t, zerolog.WarnLevel, zerolog.GlobalLevel())

	setLogLevel("unknown")
	assert.Equal(t, zerolog.InfoLevel, zerolog.GlobalLevel())
}

func TestLevelFilterWriter(t *testing.T) {
	var buf captureWriter
	w := &levelFilterWriter{min: zerolog.ErrorLevel, max: zerolog.FatalLevel, Writer: &buf}

	n, err := w.WriteLevel(zerolog.InfoLevel, []byte("skip"))
	assert.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.Empty(t, buf.data)

	_, err = w.WriteLevel(zerolog.ErrorLevel, []byte("keep"))
	assert.NoError(t, err)
	assert.Equal(t, "keep", string(buf.data))
}

type captureWriter struct {
	data []byte
}

func (c *captureWriter) Write(p []byte) (int, error) {
	c.data = append(c.data, p...)
	return len(p), nil
}
