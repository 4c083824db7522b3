package app

import (
	"github.com/tphakala/drawmap/internal/conf"
	"github.com/tphakala/drawmap/internal/logger"
)

// Runtime carries the loaded settings and logger from the root command to
// its sub-commands. It is populated before any sub-command runs.
type Runtime struct {
	ConfigFile string
	Settings   *conf.Settings
	Logger     logger.Logger

	central *logger.CentralLogger
}

// Init loads settings and starts logging.
func (r *Runtime) Init() error {
	settings, err := conf.Load(r.ConfigFile)
	if err != nil {
		return err
	}
	central, err := logger.NewCentralLogger(&settings.Logging)
	if err != nil {
		return err
	}
	r.Settings = settings
	r.central = central
	r.Logger = central.Module("")
	if used := conf.ConfigFileUsed(); used != "" {
		r.Logger.Debug("Loaded configuration", logger.String("file", used))
	}
	return nil
}

// App builds the component graph from the loaded settings.
func (r *Runtime) App(opts ...Option) (*App, error) {
	return New(r.Settings, r.Logger, opts...)
}

// Close flushes and closes log outputs.
func (r *Runtime) Close() error {
	if r.central == nil {
		return nil
	}
	return r.central.Close()
}
