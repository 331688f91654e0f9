package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"upqueue/internal/render"
)

func resetFlags(t *testing.T) {
	t.Helper()
	t.Cleanup(func() {
		for _, fs := range []*pflag.FlagSet{rootCmd.PersistentFlags(), uploadCmd.Flags(), watchCmd.Flags()} {
			fs.VisitAll(func(f *pflag.Flag) {
				f.Value.Set(f.DefValue)
				f.Changed = false
			})
		}
	})
}

func TestLoadConfigEnv(t *testing.T) {
	resetFlags(t)
	t.Setenv("UPQUEUE_SERVER_URL", "https://upload.example.com")
	t.Setenv("UPQUEUE_SESSION_TOKEN", "env-token")

	cfg, err := loadConfig(watchCmd)
	require.NoError(t, err)
	assert.Equal(t, "https://upload.example.com", cfg.ServerURL)
	assert.Equal(t, "env-token", cfg.SessionToken)
}

func TestLoadConfigFlagsWin(t *testing.T) {
	resetFlags(t)
	t.Setenv("UPQUEUE_SERVER_URL", "https://upload.example.com")

	require.NoError(t, rootCmd.PersistentFlags().Set("server", "http://flag:8080"))
	require.NoError(t, uploadCmd.Flags().Set("policy", "all-slots"))
	require.NoError(t, uploadCmd.Flags().Set("concurrency", "3"))

	cfg, err := loadConfig(uploadCmd)
	require.NoError(t, err)
	assert.Equal(t, "http://flag:8080", cfg.ServerURL)
	assert.Equal(t, "all-slots", cfg.ManifestPolicy)
	assert.Equal(t, 3, cfg.UploadConcurrency)
}

func TestLoadConfigFile(t *testing.T) {
	resetFlags(t)
	path := filepath.Join(t.TempDir(), "upqueue.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server_url: http://file:9000\npoll_interval: 5s\n"), 0o644))
	require.NoError(t, rootCmd.PersistentFlags().Set("config", path))

	cfg, err := loadConfig(watchCmd)
	require.NoError(t, err)
	assert.Equal(t, "http://file:9000", cfg.ServerURL)
	assert.Equal(t, 5*time.Second, cfg.PollInterval)
}

func TestStatusLine(t *testing.T) {
	var buf bytes.Buffer
	s := statusLine{out: &buf}
	s.SetBusy(true)
	s.SetBusy(false)
	assert.Contains(t, buf.String(), "Uploading...")
	assert.Contains(t, buf.String(), "Ready for new files")
}

func TestWriteHTML(t *testing.T) {
	assert.NoError(t, writeHTML("", nil))

	path := filepath.Join(t.TempDir(), "queue.html")
	require.NoError(t, writeHTML(path, []render.Row{{FileName: "a.png", Status: "PENDING", Category: render.CategoryPending, Secondary: "1"}}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `data-file="a.png"`)
	assert.Contains(t, string(data), "status-pending")
}
