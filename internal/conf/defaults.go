// conf/defaults.go default values for settings
package conf

import (
	"time"

	"github.com/spf13/viper"
)

// Sets default values for the configuration.
func setDefaultConfig() {
	viper.SetDefault("debug", false)

	viper.SetDefault("drawings.dir", "drawings")
	viper.SetDefault("drawings.output_dir", "")

	viper.SetDefault("render.scale", 3.0)

	viper.SetDefault("ingest.workers", 0)
	viper.SetDefault("ingest.fallback_threshold", 2)
	viper.SetDefault("ingest.label_format", "Component %s")
	viper.SetDefault("ingest.apply_ctm", false)

	viper.SetDefault("watch.enabled", true)
	viper.SetDefault("watch.debounce", 500*time.Millisecond)
	viper.SetDefault("watch.poll_interval", time.Duration(0))

	viper.SetDefault("ocr.enabled", false)
	viper.SetDefault("ocr.languages", []string{"eng"})
	viper.SetDefault("ocr.whitelist", "")
	viper.SetDefault("ocr.min_confidence", 50.0)

	viper.SetDefault("api.enabled", false)
	viper.SetDefault("api.listen", "127.0.0.1:8090")

	viper.SetDefault("metrics.enabled", false)
	viper.SetDefault("metrics.listen", "127.0.0.1:9464")

	viper.SetDefault("mqtt.enabled", false)
	viper.SetDefault("mqtt.broker", "tcp://localhost:1883")
	viper.SetDefault("mqtt.topic", "drawmap/ready")
	viper.SetDefault("mqtt.client_id", "drawmap")
	viper.SetDefault("mqtt.username", "")
	viper.SetDefault("mqtt.password", "")
	viper.SetDefault("mqtt.retain", false)

	viper.SetDefault("logging.default_level", "info")
	viper.SetDefault("logging.timezone", "Local")
	viper.SetDefault("logging.console.enabled", true)
	viper.SetDefault("logging.console.level", "info")
	viper.SetDefault("logging.file_output.enabled", false)
	viper.SetDefault("logging.file_output.path", "logs/drawmap.log")
	viper.SetDefault("logging.file_output.level", "info")
}
