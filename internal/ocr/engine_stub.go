//go:build !tesseract

package ocr

import (
	"github.com/tphakala/drawmap/internal/logger"
	"github.com/tphakala/drawmap/internal/mapper"
)

func newEngine(_ Config, _ *mapper.Mapper, log logger.Logger) Fallback {
	log.Warn("OCR fallback requested but this binary was built without tesseract support; rebuild with -tags tesseract")
	return Disabled{}
}
