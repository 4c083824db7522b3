package ingest

import (
	"fmt"

	"github.com/tphakala/drawmap/internal/errors"
)

// Failure kinds of a single ingestion. All are wrapped in an
// *errors.EnhancedError; match them with errors.Is.
var (
	// ErrUnreadablePDF reports a missing, corrupt or pageless document.
	ErrUnreadablePDF = errors.NewStd("unreadable pdf")
	// ErrRenderFailure reports that the preview image could not be produced.
	ErrRenderFailure = errors.NewStd("render failure")
	// ErrExtractionFailure reports a content-stream failure. It is logged
	// and counted but never fails an ingestion.
	ErrExtractionFailure = errors.NewStd("extraction failure")
	// ErrPersistenceFailure reports that an artifact could not be written.
	ErrPersistenceFailure = errors.NewStd("persistence failure")
	// ErrPanic reports an unexpected panic caught while processing a drawing.
	ErrPanic = errors.NewStd("ingestion panicked")
)

func failure(sentinel, cause error, category errors.ErrorCategory, name, pdfPath string) error {
	return errors.New(fmt.Errorf("%w: %w", sentinel, cause)).
		Component("ingest").
		Category(category).
		Context("drawing", name).
		FileContext(pdfPath).
		Build()
}

// errorType is the metrics label for err.
func errorType(err error) string {
	switch {
	case errors.Is(err, ErrUnreadablePDF):
		return "unreadable_pdf"
	case errors.Is(err, ErrRenderFailure):
		return "render"
	case errors.Is(err, ErrExtractionFailure):
		return "extraction"
	case errors.Is(err, ErrPersistenceFailure):
		return "persistence"
	case errors.Is(err, ErrPanic):
		return "panic"
	default:
		return string(errors.CategoryOf(err))
	}
}
