package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestLoad_ReadsStructuredSectionsFromYAML(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")
	yaml := `
forward:
  forward_channel_pairs:
    - source_channel: "@source1"
      target_channels: ["@target1", "@target2"]
  max_retries: 5
download:
  directory: downloads
  concurrent_downloads: 1
upload:
  concurrent_uploads: 2
storage:
  tmp_path: tmp
`
	require.NoError(t, os.WriteFile(configPath, []byte(yaml), 0o644))

	t.Setenv("API_ID", "12345")
	t.Setenv("API_HASH", "abcdef")

	cmd := &cobra.Command{}
	SetFlags(cmd)
	require.NoError(t, cmd.Flags().Set("config", configPath))
	require.NoError(t, cmd.Flags().Set("env-file", filepath.Join(dir, "nonexistent.env")))

	cfg, err := Load(zap.NewNop(), cmd)
	require.NoError(t, err)

	assert.Equal(t, int32(12345), cfg.Secrets.APIID)
	require.Len(t, cfg.Forward.ForwardChannelPairs, 1)
	assert.Equal(t, "@source1", cfg.Forward.ForwardChannelPairs[0].SourceChannel)
	assert.Equal(t, 5, cfg.Forward.MaxRetries)
	assert.Equal(t, "downloads", cfg.Download.Directory)
	assert.Equal(t, 2, cfg.Upload.ConcurrentUploads)
}

func TestSplitMediaTypes_NormalizesCaseAndCommas(t *testing.T) {
	out := SplitMediaTypes([]string{"Photo, Video", " Document "})
	assert.Equal(t, []string{"photo", "video", "document"}, out)
}

func TestLoad_MissingConfigFileFallsBackToDefaults(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("API_ID", "1")
	t.Setenv("API_HASH", "h")

	cmd := &cobra.Command{}
	SetFlags(cmd)
	require.NoError(t, cmd.Flags().Set("config", filepath.Join(dir, "missing.yaml")))
	require.NoError(t, cmd.Flags().Set("env-file", filepath.Join(dir, "missing.env")))

	cfg, err := Load(zap.NewNop(), cmd)
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.Download.RetryCount)
}
