// Package errors wraps errors with a category, the component that raised
// them and key/value context. It also re-exports the standard library
// helpers so callers need a single import.
//
//	return errors.New(err).
//		Component("store").
//		Category(errors.CategoryPersistence).
//		Context("drawing", name).
//		FileContext(path).
//		Build()
package errors

import (
	stderrors "errors"
	"fmt"
	"maps"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"
)

// ErrorCategory groups errors by what failed, independent of the message.
type ErrorCategory string

const (
	CategoryGeneric       ErrorCategory = "generic"
	CategoryValidation    ErrorCategory = "validation"
	CategoryConfiguration ErrorCategory = "configuration"
	CategoryFileIO        ErrorCategory = "file-io"
	CategoryFileParsing   ErrorCategory = "file-parsing"
	CategoryNetwork       ErrorCategory = "network"
	CategoryNotFound      ErrorCategory = "not-found"
	CategoryConflict      ErrorCategory = "conflict"
	CategoryProcessing    ErrorCategory = "processing"

	// Ingestion pipeline.
	CategoryPDF         ErrorCategory = "pdf-unreadable"
	CategoryRender      ErrorCategory = "render"
	CategoryExtraction  ErrorCategory = "vector-extraction"
	CategoryPersistence ErrorCategory = "artifact-persistence"
	CategoryOCR         ErrorCategory = "ocr"
	CategoryWatcher     ErrorCategory = "directory-watch"

	// Notifications.
	CategoryMQTTConnection ErrorCategory = "mqtt-connection"
	CategoryMQTTPublish    ErrorCategory = "mqtt-publish"
)

// ComponentUnknown is reported when no internal package is on the stack.
const ComponentUnknown = "unknown"

const modulePrefix = "github.com/tphakala/drawmap/"

// EnhancedError carries an error with its category, component and context.
type EnhancedError struct {
	Err       error
	Category  ErrorCategory
	Context   map[string]any
	Timestamp time.Time

	once      sync.Once
	component string
	pcs       []uintptr
}

func (ee *EnhancedError) Error() string { return ee.Err.Error() }

func (ee *EnhancedError) Unwrap() error { return ee.Err }

// Is matches another EnhancedError by category and otherwise defers to the
// wrapped error.
func (ee *EnhancedError) Is(target error) bool {
	if other, ok := target.(*EnhancedError); ok {
		return ee.Category == other.Category
	}
	return stderrors.Is(ee.Err, target)
}

// GetComponent returns the explicit component or the first internal package
// found on the stack captured by Build.
func (ee *EnhancedError) GetComponent() string {
	ee.once.Do(func() {
		if ee.component == "" {
			ee.component = componentFromStack(ee.pcs)
		}
		ee.pcs = nil
	})
	return ee.component
}

// GetContext returns a copy of the context map.
func (ee *EnhancedError) GetContext() map[string]any {
	if ee.Context == nil {
		return nil
	}
	return maps.Clone(ee.Context)
}

// ErrorBuilder assembles an EnhancedError.
type ErrorBuilder struct {
	err       error
	component string
	category  ErrorCategory
	context   map[string]any
}

// New starts a builder around err.
func New(err error) *ErrorBuilder { return &ErrorBuilder{err: err} }

// Newf starts a builder around a formatted error; %w is honoured.
func Newf(format string, args ...any) *ErrorBuilder { return New(fmt.Errorf(format, args...)) }

// Component names the raising component. Without it the component is
// derived from the caller's package.
func (eb *ErrorBuilder) Component(component string) *ErrorBuilder {
	eb.component = component
	return eb
}

// Category sets the category. Without it the category of a wrapped
// EnhancedError is inherited.
func (eb *ErrorBuilder) Category(category ErrorCategory) *ErrorBuilder {
	eb.category = category
	return eb
}

func (eb *ErrorBuilder) Context(key string, value any) *ErrorBuilder {
	if eb.context == nil {
		eb.context = make(map[string]any, 4)
	}
	eb.context[key] = value
	return eb
}

// FileContext records the path and lower-cased extension of the file involved.
func (eb *ErrorBuilder) FileContext(path string) *ErrorBuilder {
	if path == "" {
		return eb
	}
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	if ext == "" {
		ext = "none"
	}
	return eb.Context("file", path).Context("file_extension", ext)
}

func (eb *ErrorBuilder) Build() *EnhancedError {
	ee := &EnhancedError{
		Err:       eb.err,
		Category:  eb.category,
		Context:   eb.context,
		Timestamp: time.Now(),
		component: eb.component,
	}
	if ee.Err == nil {
		ee.Err = stderrors.New("unknown error")
	}
	if ee.Category == "" {
		ee.Category = CategoryOf(eb.err)
	}
	if ee.component == "" {
		pcs := make([]uintptr, 16)
		ee.pcs = pcs[:runtime.Callers(2, pcs)]
	}
	return ee
}

// componentFromStack maps the first frame inside internal/<pkg> to <pkg>.
func componentFromStack(pcs []uintptr) string {
	if len(pcs) == 0 {
		return ComponentUnknown
	}
	frames := runtime.CallersFrames(pcs)
	for {
		frame, more := frames.Next()
		if c := componentOf(frame.Function); c != "" {
			return c
		}
		if !more {
			return ComponentUnknown
		}
	}
}

func componentOf(function string) string {
	rest, ok := strings.CutPrefix(function, modulePrefix+"internal/")
	if !ok {
		return ""
	}
	pkg, _, _ := strings.Cut(rest, ".")
	pkg, _, _ = strings.Cut(pkg, "/")
	if pkg == "errors" {
		return ""
	}
	return pkg
}

// ValidationError returns a CategoryValidation error with message.
func ValidationError(message string) *EnhancedError {
	return New(stderrors.New(message)).Category(CategoryValidation).Build()
}

// IsCategory reports whether the outermost EnhancedError in err's chain has
// the given category.
func IsCategory(err error, category ErrorCategory) bool {
	return CategoryOf(err) == category && category != CategoryGeneric
}

func IsNotFound(err error) bool { return IsCategory(err, CategoryNotFound) }

// CategoryOf returns the category of the outermost EnhancedError in err's
// chain, or CategoryGeneric.
func CategoryOf(err error) ErrorCategory {
	var ee *EnhancedError
	if stderrors.As(err, &ee) && ee.Category != "" {
		return ee.Category
	}
	return CategoryGeneric
}

// Standard library passthroughs.

func NewStd(text string) error { return stderrors.New(text) }

func Is(err, target error) bool { return stderrors.Is(err, target) }

func As(err error, target any) bool { return stderrors.As(err, target) }

func Unwrap(err error) error { return stderrors.Unwrap(err) }

func Join(errs ...error) error { return stderrors.Join(errs...) }
