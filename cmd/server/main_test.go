package main

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseLogLevel(t *testing.T) {
	require.Equal(t, slog.LevelDebug, parseLogLevel("debug"))
	require.Equal(t, slog.LevelWarn, parseLogLevel("WARN"))
	require.Equal(t, slog.LevelError, parseLogLevel(" error "))
	require.Equal(t, slog.LevelInfo, parseLogLevel(""))
	require.Equal(t, slog.LevelInfo, parseLogLevel("verbose"))
}

func TestLogFileWriterKeepsTail(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "agenthub.log")
	w, file, err := newLogFileWriter(path)
	require.NoError(t, err)
	defer file.Close()
	w.maxSize = 16
	w.keep = 8

	_, err = w.Write([]byte("0123456789"))
	require.NoError(t, err)
	_, err = w.Write([]byte("abcdefghij"))
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "cdefghij", string(data))

	_, err = w.Write([]byte("XY"))
	require.NoError(t, err)
	data, err = os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "cdefghijXY", string(data))
}

func TestEnsureDBDir(t *testing.T) {
	require.NoError(t, ensureDBDir(":memory:"))
	dir := filepath.Join(t.TempDir(), "nested", "data")
	require.NoError(t, ensureDBDir(filepath.Join(dir, "hub.db")))
	info, err := os.Stat(dir)
	require.NoError(t, err)
	require.True(t, info.IsDir())
}

func runCLI(t *testing.T, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	require.NoError(t, root.Execute())
	return out.String()
}

func TestMigrateAndKeysCommands(t *testing.T) {
	t.Setenv("AGENTHUB_CONFIG_PATH", "")
	t.Setenv("AGENTHUB_DB_PATH", filepath.Join(t.TempDir(), "hub.db"))

	out := runCLI(t, "migrate")
	require.NotEmpty(t, strings.TrimSpace(out))

	token := strings.TrimSpace(runCLI(t, "keys", "add", "--user", "alice", "--email", "alice@example.com"))
	require.True(t, strings.HasPrefix(token, "ahk_"), token)
}

func TestKeysAddRequiresUser(t *testing.T) {
	root := newRootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"keys", "add"})
	require.Error(t, root.Execute())
}

func TestVersionCommand(t *testing.T) {
	require.Equal(t, "dev\n", runCLI(t, "version"))
}
