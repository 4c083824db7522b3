// Package geometry extracts positioned text fragments from the first page
// of a PDF by interpreting its content stream.
package geometry

import (
	"fmt"
	"iter"
	"os"

	"github.com/ledongthuc/pdf"

	"github.com/tphakala/drawmap/internal/errors"
)

// ErrUnreadable is returned when a document cannot be parsed or has no pages.
var ErrUnreadable = errors.NewStd("unreadable pdf")

// ErrContentStream reports a failure while interpreting the page content.
// Fragments produced before the failure remain valid.
var ErrContentStream = errors.NewStd("content stream extraction failed")

// Fragment is one text-showing operation on the page, positioned at the
// translation of its text matrix in page units (origin bottom-left).
type Fragment struct {
	Text     string  `json:"text"`
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	FontSize float64 `json:"font_size"`
}

// DefaultWordGap is the TJ adjustment, in thousandths of an em, at or
// beyond which a space is inserted between the adjacent strings.
const DefaultWordGap = 250.0

type options struct {
	applyCTM bool
	wordGap  float64
}

// Option configures a Document.
type Option func(*options)

// WithCTM composes the text matrix with the current transformation matrix
// before taking fragment positions. Off by default.
func WithCTM(enabled bool) Option {
	return func(o *options) { o.applyCTM = enabled }
}

// WithWordGap overrides DefaultWordGap. Non-positive values disable space insertion.
func WithWordGap(thousandths float64) Option {
	return func(o *options) { o.wordGap = thousandths }
}

// Document is an opened PDF restricted to its first page.
type Document struct {
	path string
	file *os.File
	page pdf.Page
	opts options
	err  error
}

// Open parses the PDF at path and selects page 0.
func Open(path string, opts ...Option) (doc *Document, err error) {
	o := options{wordGap: DefaultWordGap}
	for _, opt := range opts {
		opt(&o)
	}

	f, err := os.Open(path) //nolint:gosec // path supplied by the coordinator
	if err != nil {
		return nil, unreadable(path, err)
	}

	defer func() {
		if r := recover(); r != nil {
			_ = f.Close()
			doc, err = nil, unreadable(path, fmt.Errorf("parser panic: %v", r))
		}
	}()

	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, unreadable(path, err)
	}

	reader, err := pdf.NewReader(f, info.Size())
	if err != nil {
		_ = f.Close()
		return nil, unreadable(path, err)
	}

	if reader.NumPage() < 1 {
		_ = f.Close()
		return nil, unreadable(path, errors.NewStd("document has no pages"))
	}

	page := reader.Page(1)
	if page.V.IsNull() {
		_ = f.Close()
		return nil, unreadable(path, errors.NewStd("first page missing from page tree"))
	}

	return &Document{path: path, file: f, page: page, opts: o}, nil
}

func unreadable(path string, cause error) error {
	return errors.New(fmt.Errorf("%w: %w", ErrUnreadable, cause)).
		Component("geometry").
		Category(errors.CategoryPDF).
		FileContext(path).
		Build()
}

// Close releases the underlying file.
func (d *Document) Close() error {
	if d.file == nil {
		return nil
	}
	err := d.file.Close()
	d.file = nil
	return err
}

// PageSize returns the width and height of page 0's MediaBox, following
// inheritance through the page tree. ok is false when no MediaBox is found.
func (d *Document) PageSize() (width, height float64, ok bool) {
	defer func() {
		if recover() != nil {
			width, height, ok = 0, 0, false
		}
	}()

	for v := d.page.V; !v.IsNull(); v = v.Key("Parent") {
		box := v.Key("MediaBox")
		if box.Kind() != pdf.Array || box.Len() != 4 {
			continue
		}
		llx, lly := box.Index(0).Float64(), box.Index(1).Float64()
		urx, ury := box.Index(2).Float64(), box.Index(3).Float64()
		return urx - llx, ury - lly, true
	}
	return 0, 0, false
}

// Fragments returns a lazy sequence of the page's non-blank text fragments
// in content-stream order. Iterating again re-reads the stream.
// After the sequence ends, Err reports whether it stopped on a content error.
func (d *Document) Fragments() iter.Seq[Fragment] {
	return func(yield func(Fragment) bool) {
		d.err = nil
		in := newInterpreter(d.page, d.opts, yield)
		if err := in.run(); err != nil {
			d.err = errors.New(fmt.Errorf("%w: %w", ErrContentStream, err)).
				Component("geometry").
				Category(errors.CategoryExtraction).
				FileContext(d.path).
				Build()
		}
	}
}

// Err returns the content-stream error from the last iteration, if any.
func (d *Document) Err() error {
	return d.err
}

// Collect reads every fragment of page 0 from the file at path.
// A content-stream failure is returned together with the fragments read
// before it; an unreadable document returns no fragments.
func Collect(path string, opts ...Option) ([]Fragment, error) {
	doc, err := Open(path, opts...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = doc.Close() }()

	var out []Fragment
	for f := range doc.Fragments() {
		out = append(out, f)
	}
	return out, doc.Err()
}
