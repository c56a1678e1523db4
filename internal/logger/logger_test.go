package logger

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/cloudwego/hertz/pkg/common/hlog"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/natefinch/lumberjack.v2"
)

func TestInitWritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "cvision.log")
	closer, err := Init(Config{Level: "debug", Format: "json", File: path, MaxSizeMB: 1, MaxBackups: 2})
	require.NoError(t, err)
	assert.IsType(t, &lumberjack.Logger{}, closer)

	l := Named("extractor")
	l.Info().Str("filename", "cv.txt").Msg("抽取完成")
	hlog.Info("hertz 日志")
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"component":"extractor"`)
	assert.Contains(t, string(data), "抽取完成")
	assert.Contains(t, string(data), "hertz 日志")
	assert.Equal(t, zerolog.DebugLevel, zerolog.GlobalLevel())
}

func TestInitInvalidLevelFallsBackToInfo(t *testing.T) {
	closer, err := Init(Config{Level: "verbose"})
	require.NoError(t, err)
	defer closer.Close()
	assert.Equal(t, zerolog.InfoLevel, zerolog.GlobalLevel())
}

func TestInitBadFilePath(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0644))

	_, err := Init(Config{File: filepath.Join(blocker, "app.log")})
	assert.Error(t, err)
}

func TestCtxFallsBackToGlobal(t *testing.T) {
	assert.NotNil(t, Ctx(context.Background()))
	ctx := WithContext(context.Background())
	assert.NotNil(t, Ctx(ctx))
}

func TestHertzLevel(t *testing.T) {
	assert.Equal(t, hlog.LevelDebug, hertzLevel(zerolog.DebugLevel))
	assert.Equal(t, hlog.LevelWarn, hertzLevel(zerolog.WarnLevel))
	assert.Equal(t, hlog.LevelInfo, hertzLevel(zerolog.NoLevel))
}
