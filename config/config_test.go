package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/njyeung/sofa/config"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{"SOFA_API_URL", "SOFA_WEB_LOGIN_URL", "SOFA_LOG_FILE"} {
		t.Setenv(k, "")
	}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func TestLoadWritesDefaults(t *testing.T) {
	clearEnv(t)
	dir := filepath.Join(t.TempDir(), "sofa")

	s, err := config.Load(dir)
	require.NoError(t, err)
	require.FileExists(t, filepath.Join(dir, config.FileName))

	require.Equal(t, "https://api.sofa.tv/v1/", s.APIURL)
	require.Equal(t, 20*time.Second, s.RequestTimeout)
	require.Equal(t, 10*time.Second, s.Skip)
	require.Equal(t, 250*time.Millisecond, s.CommitInterval)
	require.Equal(t, 270, s.VideoWidth)
	require.Equal(t, 480, s.VideoHeight)
	require.Equal(t, dir, s.ConfigDir)
	require.Equal(t, filepath.Join(dir, "sofa.log"), s.LogFile)
	require.Equal(t, filepath.Join(dir, "session.json"), s.SessionPath())
}

func TestLoadReadsFile(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, config.FileName), `
api_url: http://localhost:8080/
request_timeout: 5s
skip_seconds: 15
retina_scale: 2
video_width: 300
`)

	s, err := config.Load(dir)
	require.NoError(t, err)
	require.Equal(t, "http://localhost:8080/", s.APIURL)
	require.Equal(t, 5*time.Second, s.RequestTimeout)
	require.Equal(t, 15*time.Second, s.Skip)
	require.Equal(t, 250*time.Millisecond, s.CommitInterval)

	w, h := s.VideoBox()
	require.Equal(t, 600, w)
	require.Equal(t, 960, h)
}

func TestEnvOverridesFile(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, config.FileName), "api_url: http://localhost:8080/\n")
	t.Setenv("SOFA_API_URL", "http://127.0.0.1:9000/")
	t.Setenv("SOFA_LOG_FILE", "/tmp/sofa-test.log")

	s, err := config.Load(dir)
	require.NoError(t, err)
	require.Equal(t, "http://127.0.0.1:9000/", s.APIURL)
	require.Equal(t, "/tmp/sofa-test.log", s.LogFile)
}

func TestDotEnvInConfigDir(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, ".env"), "SOFA_WEB_LOGIN_URL=http://localhost:3000/login\n")

	s, err := config.Load(dir)
	require.NoError(t, err)
	require.Equal(t, "http://localhost:3000/login", s.WebLoginURL)
}

func TestInvalidSettings(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"relative api url", "api_url: /v1/\n"},
		{"bad timeout", "request_timeout: soon\n"},
		{"bad commit interval", "commit_interval: -1s\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			dir := t.TempDir()
			writeFile(t, filepath.Join(dir, config.FileName), tt.content)

			_, err := config.Load(dir)
			require.ErrorIs(t, err, config.ErrInvalid)
		})
	}
}
