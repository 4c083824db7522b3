package conf

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/tphakala/drawmap/internal/errors"
)

// loadFile resets the global viper instance and loads path.
func loadFile(t *testing.T, path string) (*Settings, error) {
	t.Helper()
	viper.Reset()
	t.Cleanup(viper.Reset)
	return Load(path)
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_TemplateMatchesDefaults(t *testing.T) {
	path := writeConfig(t, string(DefaultTemplate()))
	s, err := loadFile(t, path)
	require.NoError(t, err)

	assert.Equal(t, "drawings", s.Drawings.Dir)
	assert.Equal(t, "drawings", s.OutputDir())
	assert.InDelta(t, 3.0, s.Render.Scale, 0)
	assert.Equal(t, 0, s.Ingest.Workers)
	assert.Equal(t, 2, s.Ingest.FallbackThreshold)
	assert.Equal(t, "Component %s", s.Ingest.LabelFormat)
	assert.True(t, s.Watch.Enabled)
	assert.Equal(t, 500*time.Millisecond, s.Watch.Debounce)
	assert.Equal(t, time.Duration(0), s.Watch.PollInterval)
	assert.Equal(t, []string{"eng"}, s.OCR.Languages)
	assert.Equal(t, "drawmap/ready", s.MQTT.Topic)
	assert.Equal(t, "info", s.Logging.DefaultLevel)
	require.NotNil(t, s.Logging.Console)
	assert.True(t, s.Logging.Console.Enabled)
	require.NotNil(t, s.Logging.FileOutput)
	assert.Equal(t, "logs/drawmap.log", s.Logging.FileOutput.Path)
	assert.Same(t, s, GetSettings())
	assert.Equal(t, path, ConfigFileUsed())
}

func TestLoad_FileOverrides(t *testing.T) {
	path := writeConfig(t, `
drawings:
  dir: /srv/drawings
  output_dir: /srv/out
ingest:
  workers: 4
  label_format: "Part %s"
watch:
  debounce: 2s
  poll_interval: 1m
`)
	s, err := loadFile(t, path)
	require.NoError(t, err)

	assert.Equal(t, "/srv/drawings", s.Drawings.Dir)
	assert.Equal(t, "/srv/out", s.OutputDir())
	assert.Equal(t, 4, s.Ingest.Workers)
	assert.Equal(t, "Part %s", s.Ingest.LabelFormat)
	assert.Equal(t, 2*time.Second, s.Watch.Debounce)
	assert.Equal(t, time.Minute, s.Watch.PollInterval)
	// Unset keys keep their defaults.
	assert.Equal(t, 2, s.Ingest.FallbackThreshold)
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	t.Setenv("DRAWMAP_DRAWINGS_DIR", "/env/drawings")
	t.Setenv("DRAWMAP_INGEST_WORKERS", "7")

	s, err := loadFile(t, writeConfig(t, "drawings:\n  dir: /file/drawings\n"))
	require.NoError(t, err)
	assert.Equal(t, "/env/drawings", s.Drawings.Dir)
	assert.Equal(t, 7, s.Ingest.Workers)
}

func TestLoad_DebugRaisesDefaultLevel(t *testing.T) {
	s, err := loadFile(t, writeConfig(t, "debug: true\n"))
	require.NoError(t, err)
	assert.Equal(t, "debug", s.Logging.DefaultLevel)
	assert.Equal(t, "debug", s.Logging.Console.Level)
}

func TestLoad_Errors(t *testing.T) {
	t.Run("missing explicit file", func(t *testing.T) {
		_, err := loadFile(t, filepath.Join(t.TempDir(), "nope.yaml"))
		require.Error(t, err)
		assert.True(t, errors.IsCategory(err, errors.CategoryConfiguration))
	})

	t.Run("invalid settings", func(t *testing.T) {
		_, err := loadFile(t, writeConfig(t, "render:\n  scale: 0\n"))
		require.Error(t, err)
		assert.True(t, errors.IsCategory(err, errors.CategoryValidation))

		var ve ValidationError
		require.ErrorAs(t, err, &ve)
		assert.Len(t, ve.Errors, 1)
	})
}

func TestWriteTemplate(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "sub", "config.yaml")
	require.NoError(t, WriteTemplate(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, DefaultTemplate(), data)

	err = WriteTemplate(path)
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryConflict))
}

func TestMarshalYAML(t *testing.T) {
	t.Parallel()

	s := &Settings{
		Drawings: DrawingsSettings{Dir: "d"},
		Watch:    WatchSettings{Debounce: 500 * time.Millisecond},
	}
	data, err := MarshalYAML(s)
	require.NoError(t, err)

	var back Settings
	require.NoError(t, yaml.Unmarshal(data, &back))
	assert.Equal(t, "d", back.Drawings.Dir)
	assert.Equal(t, 500*time.Millisecond, back.Watch.Debounce)
	assert.Contains(t, string(data), "debounce: 500ms")
}

func TestGetDefaultConfigPaths(t *testing.T) {
	t.Parallel()

	paths := GetDefaultConfigPaths()
	require.NotEmpty(t, paths)
	assert.Equal(t, ".", paths[0])
	assert.Equal(t, "config.yaml", filepath.Base(DefaultConfigFile()))
}
