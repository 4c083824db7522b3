package logger

// LoggingConfig is the "logging" section of the settings file.
type LoggingConfig struct {
	// DefaultLevel applies to every module without an entry in ModuleLevels.
	DefaultLevel string `yaml:"default_level" mapstructure:"default_level" json:"default_level"`
	// Timezone is "Local", "UTC" or an IANA name.
	Timezone   string         `yaml:"timezone" mapstructure:"timezone" json:"timezone"`
	Console    *ConsoleOutput `yaml:"console" mapstructure:"console" json:"console"`
	FileOutput *FileOutput    `yaml:"file_output" mapstructure:"file_output" json:"file_output"`
	// ModuleLevels keys are module names such as "coordinator" or
	// "ingest.ocr"; a child inherits its parent's entry.
	ModuleLevels map[string]string `yaml:"module_levels" mapstructure:"module_levels" json:"module_levels"`
}

// ConsoleOutput writes logfmt text to stdout.
type ConsoleOutput struct {
	Enabled bool   `yaml:"enabled" mapstructure:"enabled" json:"enabled"`
	Level   string `yaml:"level" mapstructure:"level" json:"level"`
}

// FileOutput appends JSON records to Path.
type FileOutput struct {
	Enabled bool   `yaml:"enabled" mapstructure:"enabled" json:"enabled"`
	Path    string `yaml:"path" mapstructure:"path" json:"path"`
	Level   string `yaml:"level" mapstructure:"level" json:"level"`
}

// Defaults shared with conf's viper defaults.
const (
	DefaultLogLevel = "info"
	DefaultLogPath  = "logs/drawmap.log"
)

func applyConfigDefaults(cfg *LoggingConfig) {
	if cfg.DefaultLevel == "" {
		cfg.DefaultLevel = DefaultLogLevel
	}
	if cfg.Console == nil {
		cfg.Console = &ConsoleOutput{Enabled: true, Level: cfg.DefaultLevel}
	}
	if cfg.FileOutput == nil {
		cfg.FileOutput = &FileOutput{Path: DefaultLogPath, Level: cfg.DefaultLevel}
	}
}
