// conf/validate.go

package conf

import (
	"fmt"
	"net"
	"net/url"
	"strings"

	"github.com/tphakala/drawmap/internal/mapper"
)

// ValidationError represents a collection of validation errors
type ValidationError struct {
	Errors []string
}

// Error returns a string representation of the validation errors
func (ve ValidationError) Error() string {
	return fmt.Sprintf("Validation errors: %v", ve.Errors)
}

// ValidateSettings validates the entire Settings struct
func ValidateSettings(settings *Settings) error {
	ve := ValidationError{}

	for _, validate := range []func(*Settings) []string{
		validateDrawingsSettings,
		validateIngestSettings,
		validateWatchSettings,
		validateListeners,
		validateMQTTSettings,
	} {
		ve.Errors = append(ve.Errors, validate(settings)...)
	}

	if len(ve.Errors) > 0 {
		return ve
	}
	return nil
}

func validateDrawingsSettings(s *Settings) []string {
	var errs []string
	if strings.TrimSpace(s.Drawings.Dir) == "" {
		errs = append(errs, "drawings.dir must not be empty")
	}
	if s.Render.Scale <= 0 {
		errs = append(errs, fmt.Sprintf("render.scale must be greater than 0, got %v", s.Render.Scale))
	}
	return errs
}

func validateIngestSettings(s *Settings) []string {
	var errs []string
	if s.Ingest.Workers < 0 {
		errs = append(errs, fmt.Sprintf("ingest.workers must not be negative, got %d", s.Ingest.Workers))
	}
	if s.Ingest.FallbackThreshold < 0 {
		errs = append(errs, fmt.Sprintf("ingest.fallback_threshold must not be negative, got %d", s.Ingest.FallbackThreshold))
	}
	if !mapper.ValidFormat(s.Ingest.LabelFormat) {
		errs = append(errs, fmt.Sprintf("ingest.label_format must contain exactly one %%s, got %q", s.Ingest.LabelFormat))
	}
	if s.OCR.MinConfidence < 0 || s.OCR.MinConfidence > 100 {
		errs = append(errs, fmt.Sprintf("ocr.min_confidence must be between 0 and 100, got %v", s.OCR.MinConfidence))
	}
	return errs
}

func validateWatchSettings(s *Settings) []string {
	var errs []string
	if s.Watch.Debounce < 0 {
		errs = append(errs, "watch.debounce must not be negative")
	}
	if s.Watch.PollInterval < 0 {
		errs = append(errs, "watch.poll_interval must not be negative")
	}
	return errs
}

func validateListeners(s *Settings) []string {
	var errs []string
	for name, l := range map[string]ListenSettings{"api": s.API, "metrics": s.Metrics} {
		if !l.Enabled {
			continue
		}
		if _, _, err := net.SplitHostPort(l.Listen); err != nil {
			errs = append(errs, fmt.Sprintf("%s.listen is not a valid host:port: %v", name, err))
		}
	}
	if s.API.Enabled && s.Metrics.Enabled && s.API.Listen == s.Metrics.Listen {
		errs = append(errs, "api.listen and metrics.listen must differ")
	}
	return errs
}

func validateMQTTSettings(s *Settings) []string {
	if !s.MQTT.Enabled {
		return nil
	}
	var errs []string
	if s.MQTT.Broker == "" {
		errs = append(errs, "mqtt.broker is required when mqtt is enabled")
	} else if u, err := url.Parse(s.MQTT.Broker); err != nil || u.Host == "" {
		errs = append(errs, fmt.Sprintf("mqtt.broker is not a valid URL: %q", s.MQTT.Broker))
	}
	if s.MQTT.Topic == "" {
		errs = append(errs, "mqtt.topic is required when mqtt is enabled")
	}
	return errs
}
