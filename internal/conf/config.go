// Package conf loads drawmap settings from the config file, environment
// variables and command-line flags.
package conf

import (
	"embed"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/tphakala/drawmap/internal/errors"
	"github.com/tphakala/drawmap/internal/logger"
)

//go:embed config.yaml
var configFiles embed.FS

// EnvPrefix is prepended to every environment override.
const EnvPrefix = "DRAWMAP"

// DrawingsSettings locates drawings and their artifacts.
type DrawingsSettings struct {
	Dir       string `yaml:"dir" mapstructure:"dir" json:"dir"`
	OutputDir string `yaml:"output_dir" mapstructure:"output_dir" json:"output_dir"` // empty means Dir
}

// RenderSettings controls the raster preview.
type RenderSettings struct {
	Scale float64 `yaml:"scale" mapstructure:"scale" json:"scale"`
}

// IngestSettings controls per-drawing processing.
type IngestSettings struct {
	Workers           int    `yaml:"workers" mapstructure:"workers" json:"workers"`
	FallbackThreshold int    `yaml:"fallback_threshold" mapstructure:"fallback_threshold" json:"fallback_threshold"`
	LabelFormat       string `yaml:"label_format" mapstructure:"label_format" json:"label_format"`
	ApplyCTM          bool   `yaml:"apply_ctm" mapstructure:"apply_ctm" json:"apply_ctm"`
}

// WatchSettings controls directory change detection.
type WatchSettings struct {
	Enabled      bool          `yaml:"enabled" mapstructure:"enabled" json:"enabled"`
	Debounce     time.Duration `yaml:"debounce" mapstructure:"debounce" json:"debounce"`
	PollInterval time.Duration `yaml:"poll_interval" mapstructure:"poll_interval" json:"poll_interval"`
}

// OCRSettings controls the raster fallback.
type OCRSettings struct {
	Enabled       bool     `yaml:"enabled" mapstructure:"enabled" json:"enabled"`
	Languages     []string `yaml:"languages" mapstructure:"languages" json:"languages"`
	Whitelist     string   `yaml:"whitelist" mapstructure:"whitelist" json:"whitelist"`
	MinConfidence float64  `yaml:"min_confidence" mapstructure:"min_confidence" json:"min_confidence"`
}

// ListenSettings enables a network listener.
type ListenSettings struct {
	Enabled bool   `yaml:"enabled" mapstructure:"enabled" json:"enabled"`
	Listen  string `yaml:"listen" mapstructure:"listen" json:"listen"`
}

// MQTTSettings configures ready notifications.
type MQTTSettings struct {
	Enabled  bool   `yaml:"enabled" mapstructure:"enabled" json:"enabled"`
	Broker   string `yaml:"broker" mapstructure:"broker" json:"broker"`
	Topic    string `yaml:"topic" mapstructure:"topic" json:"topic"`
	ClientID string `yaml:"client_id" mapstructure:"client_id" json:"client_id"`
	Username string `yaml:"username" mapstructure:"username" json:"username"`
	Password string `yaml:"password" mapstructure:"password" json:"-"`
	Retain   bool   `yaml:"retain" mapstructure:"retain" json:"retain"`
}

// Settings holds the complete configuration.
type Settings struct {
	Debug    bool                 `yaml:"debug" mapstructure:"debug" json:"debug"`
	Drawings DrawingsSettings     `yaml:"drawings" mapstructure:"drawings" json:"drawings"`
	Render   RenderSettings       `yaml:"render" mapstructure:"render" json:"render"`
	Ingest   IngestSettings       `yaml:"ingest" mapstructure:"ingest" json:"ingest"`
	Watch    WatchSettings        `yaml:"watch" mapstructure:"watch" json:"watch"`
	OCR      OCRSettings          `yaml:"ocr" mapstructure:"ocr" json:"ocr"`
	API      ListenSettings       `yaml:"api" mapstructure:"api" json:"api"`
	Metrics  ListenSettings       `yaml:"metrics" mapstructure:"metrics" json:"metrics"`
	MQTT     MQTTSettings         `yaml:"mqtt" mapstructure:"mqtt" json:"mqtt"`
	Logging  logger.LoggingConfig `yaml:"logging" mapstructure:"logging" json:"logging"`
}

// OutputDir returns the artifact directory.
func (s *Settings) OutputDir() string {
	if s.Drawings.OutputDir == "" {
		return s.Drawings.Dir
	}
	return s.Drawings.OutputDir
}

var (
	settingsInstance *Settings
	settingsMutex    sync.RWMutex
)

// Load reads configFile, or the first config.yaml found in the default
// search paths, applies environment overrides and validates the result.
// A missing config file is not an error; defaults apply.
func Load(configFile string) (*Settings, error) {
	settingsMutex.Lock()
	defer settingsMutex.Unlock()

	if err := initViper(configFile); err != nil {
		return nil, err
	}

	settings := &Settings{}
	if err := viper.Unmarshal(settings); err != nil {
		return nil, errors.New(err).
			Component("conf").
			Category(errors.CategoryConfiguration).
			Context("operation", "unmarshal").
			Build()
	}

	if settings.Debug && settings.Logging.DefaultLevel == logger.DefaultLogLevel {
		settings.Logging.DefaultLevel = "debug"
		if settings.Logging.Console != nil && settings.Logging.Console.Level == logger.DefaultLogLevel {
			settings.Logging.Console.Level = "debug"
		}
	}

	if err := ValidateSettings(settings); err != nil {
		return nil, errors.New(err).
			Component("conf").
			Category(errors.CategoryValidation).
			Build()
	}

	settingsInstance = settings
	return settings, nil
}

// initViper registers defaults and environment bindings and reads the
// config file into the global viper instance.
func initViper(configFile string) error {
	setDefaultConfig()

	viper.SetEnvPrefix(EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if configFile != "" {
		viper.SetConfigFile(configFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		for _, path := range GetDefaultConfigPaths() {
			viper.AddConfigPath(path)
		}
	}

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile == "" && errors.As(err, &notFound) {
			return nil
		}
		return errors.New(err).
			Component("conf").
			Category(errors.CategoryConfiguration).
			Context("operation", "read-config").
			FileContext(configFile).
			Build()
	}
	return nil
}

// ConfigFileUsed returns the path of the file Load read, or "" when only
// defaults and environment were used.
func ConfigFileUsed() string {
	return viper.ConfigFileUsed()
}

// GetSettings returns the settings from the last successful Load.
func GetSettings() *Settings {
	settingsMutex.RLock()
	defer settingsMutex.RUnlock()
	return settingsInstance
}

// DefaultTemplate returns the embedded, documented default config file.
func DefaultTemplate() []byte {
	data, err := fs.ReadFile(configFiles, "config.yaml")
	if err != nil {
		// The file is compiled into the binary.
		panic(err)
	}
	return data
}

// WriteTemplate writes the default config file to path. It refuses to
// replace an existing file.
func WriteTemplate(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.New(err).
			Component("conf").
			Category(errors.CategoryFileIO).
			FileContext(path).
			Build()
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		category := errors.CategoryFileIO
		if errors.Is(err, fs.ErrExist) {
			category = errors.CategoryConflict
		}
		return errors.New(err).
			Component("conf").
			Category(category).
			FileContext(path).
			Build()
	}
	if _, err := f.Write(DefaultTemplate()); err != nil {
		_ = f.Close()
		return errors.New(err).Component("conf").Category(errors.CategoryFileIO).FileContext(path).Build()
	}
	if err := f.Close(); err != nil {
		return errors.New(err).Component("conf").Category(errors.CategoryFileIO).FileContext(path).Build()
	}
	return nil
}

// MarshalYAML renders settings in config file form.
func MarshalYAML(settings *Settings) ([]byte, error) {
	data, err := yaml.Marshal(settings)
	if err != nil {
		return nil, errors.New(err).
			Component("conf").
			Category(errors.CategoryConfiguration).
			Context("operation", "marshal").
			Build()
	}
	return data, nil
}
