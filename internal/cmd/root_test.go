package cmd

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jarvis/internal/audio"
	"jarvis/internal/config"
	"jarvis/internal/identity"
)

// execute runs the root command against a config whose identity store
// lives in a temp dir, and returns stdout.
func execute(t *testing.T, usersPath string, args ...string) (string, error) {
	t.Helper()
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "jarvis.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("identity:\n  path: "+usersPath+"\n"), 0644))

	var out, errOut bytes.Buffer
	root := NewRootCommand("test")
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(append([]string{"--config", cfgPath, "--env-file", filepath.Join(dir, "missing.env")}, args...))
	err := root.Execute()
	return out.String(), err
}

func TestUsersList(t *testing.T) {
	usersPath := filepath.Join(t.TempDir(), "users.yaml")

	out, err := execute(t, usersPath, "users", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "no registered users")

	utt := &audio.Utterance{Samples: []int16{8000, -4000, 8000, -4000}, SampleRate: audio.CaptureSampleRate}
	require.NoError(t, identity.Open(usersPath, nil).Enroll("Tony", utt))

	out, err = execute(t, usersPath, "users", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "NAME")
	assert.Contains(t, out, "Tony")
}

func TestUsersForget(t *testing.T) {
	usersPath := filepath.Join(t.TempDir(), "users.yaml")
	utt := &audio.Utterance{Samples: []int16{8000, -4000, 8000, -4000}, SampleRate: audio.CaptureSampleRate}
	require.NoError(t, identity.Open(usersPath, nil).Enroll("Tony", utt))

	out, err := execute(t, usersPath, "users", "forget", "Tony")
	require.NoError(t, err)
	assert.Contains(t, out, "forgot Tony")
	assert.Empty(t, identity.Open(usersPath, nil).Users())

	_, err = execute(t, usersPath, "users", "forget", "Tony")
	assert.ErrorContains(t, err, "unknown user")
}

func TestInvalidLogLevel(t *testing.T) {
	_, err := execute(t, filepath.Join(t.TempDir(), "users.yaml"), "--log-level", "loud", "users", "list")
	assert.ErrorContains(t, err, "invalid --log-level")
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	log := newLogger(config.LogConfig{Level: config.LogWarn, Format: config.FormatJSON}, &buf)

	log.Info("hidden")
	assert.Zero(t, buf.Len(), "info is below warn")

	log.Warn("shown", "k", "v")
	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "shown", rec["msg"])
	assert.Equal(t, "v", rec["k"])
}
