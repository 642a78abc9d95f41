package logger

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestInit_DisabledDiscards(t *testing.T) {
	require.NoError(t, Init(Options{}))
	require.False(t, L.Enabled(t.Context(), slog.LevelError))
}

func TestInit_Writer(t *testing.T) {
	t.Cleanup(func() { _ = Init(Options{}) })

	var out bytes.Buffer
	require.NoError(t, Init(Options{Enabled: true, Writer: &out, Level: slog.LevelWarn}))

	Info("hidden")
	Warn("free of unknown address", "addr", "0x1000")

	require.NotContains(t, out.String(), "hidden")
	require.Contains(t, out.String(), "free of unknown address")
	require.Contains(t, out.String(), "addr=0x1000")
}

func TestInit_FileAndRetention(t *testing.T) {
	t.Cleanup(func() { _ = Init(Options{}) })

	dir := t.TempDir()
	stale := filepath.Join(dir, logPrefix+time.Now().AddDate(0, 0, -(retentionDays+5)).Format("2006-01-02")+logSuffix)
	require.NoError(t, os.WriteFile(stale, []byte("old"), 0o600))

	require.NoError(t, Init(Options{Enabled: true, Dir: dir}))
	Info("heap created")

	_, err := os.Stat(stale)
	require.True(t, os.IsNotExist(err), "stale log should be removed")

	today := filepath.Join(dir, logPrefix+time.Now().Format("2006-01-02")+logSuffix)
	data, err := os.ReadFile(today)
	require.NoError(t, err)
	require.Contains(t, string(data), "heap created")
}

func TestParseLevel(t *testing.T) {
	for in, want := range map[string]slog.Level{
		"":        slog.LevelInfo,
		"debug":   slog.LevelDebug,
		"WARN":    slog.LevelWarn,
		" error ": slog.LevelError,
	} {
		got, err := ParseLevel(in)
		require.NoError(t, err)
		require.Equal(t, want, got, in)
	}
	_, err := ParseLevel("loud")
	require.Error(t, err)
}

func TestPrune_KeepsRecentAndForeignFiles(t *testing.T) {
	dir := t.TempDir()
	now := time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC)
	names := map[string]bool{
		logPrefix + "2026-08-01" + logSuffix: false,
		logPrefix + "2026-10-01" + logSuffix: true,
		logPrefix + "garbage" + logSuffix:    true,
		"notes.txt":                          true,
	}
	for name := range names {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), nil, 0o600))
	}

	prune(dir, now.AddDate(0, 0, -retentionDays))

	for name, kept := range names {
		_, err := os.Stat(filepath.Join(dir, name))
		require.Equal(t, kept, err == nil, name)
	}
}

func TestInit_ReplacesPreviousFile(t *testing.T) {
	t.Cleanup(func() { _ = Init(Options{}) })

	require.NoError(t, Init(Options{Enabled: true, Dir: t.TempDir()}))
	first := file
	require.NotNil(t, first)

	var out bytes.Buffer
	require.NoError(t, Init(Options{Enabled: true, Writer: &out}))
	require.Nil(t, file)
	require.Error(t, first.Close(), "previous file should already be closed")
}
