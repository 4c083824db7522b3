// Package store persists and retrieves drawing artifacts: the preview
// image, the coordinate list and the descriptor map.
package store

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/tphakala/drawmap/internal/drawing"
	"github.com/tphakala/drawmap/internal/errors"
	"github.com/tphakala/drawmap/internal/logger"
)

// ErrNotFound is returned for drawings with no source PDF.
var ErrNotFound = errors.NewStd("drawing not found")

// ErrInvalidName is returned for names that would escape the store directories.
var ErrInvalidName = errors.NewStd("invalid drawing name")

const dirPermissions = 0o755

// Product is a drawing known to the store: a PDF in the source directory
// and whichever artifacts exist for it.
type Product struct {
	Name           string `json:"name"`
	DrawingPath    string `json:"-"`
	HasPreview     bool   `json:"has_preview"`
	HasCoordinates bool   `json:"has_coordinates"`
	HasDescriptors bool   `json:"has_descriptors"`
}

// FileStore keeps artifacts as files named after the drawing in an output
// directory, next to or apart from the source PDFs.
type FileStore struct {
	sourceDir string
	outputDir string
	log       logger.Logger
}

// NewFileStore creates missing directories. An empty outputDir means sourceDir.
func NewFileStore(sourceDir, outputDir string, log logger.Logger) (*FileStore, error) {
	if outputDir == "" {
		outputDir = sourceDir
	}
	if log == nil {
		log = logger.NewNopLogger()
	}
	for _, dir := range []string{sourceDir, outputDir} {
		if err := os.MkdirAll(dir, dirPermissions); err != nil {
			return nil, errors.New(err).
				Component("store").
				Category(errors.CategoryFileIO).
				Context("operation", "create_directory").
				Context("dir", dir).
				Build()
		}
	}
	return &FileStore{sourceDir: sourceDir, outputDir: outputDir, log: log}, nil
}

// SourceDir returns the directory holding drawing PDFs.
func (s *FileStore) SourceDir() string { return s.sourceDir }

// OutputDir returns the directory holding artifacts.
func (s *FileStore) OutputDir() string { return s.outputDir }

// Paths resolves the artifact paths of a drawing.
func (s *FileStore) Paths(name string) drawing.ArtifactPaths {
	return drawing.PathsFor(s.outputDir, name)
}

// HasCoordinates reports whether the coordinate list exists.
func (s *FileStore) HasCoordinates(name string) (bool, error) {
	return exists(s.Paths(name).Coordinates)
}

// HasDescriptors reports whether the descriptor map exists.
func (s *FileStore) HasDescriptors(name string) (bool, error) {
	return exists(s.Paths(name).Descriptors)
}

// Drawings lists the PDFs in the source directory, sorted by name.
func (s *FileStore) Drawings() ([]Product, error) {
	entries, err := os.ReadDir(s.sourceDir)
	if err != nil {
		return nil, s.ioError(err, "list_products", "")
	}

	var products []Product
	for _, e := range entries {
		if e.IsDir() || !drawing.IsDrawingFile(e.Name()) {
			continue
		}
		products = append(products, s.product(drawing.BaseName(e.Name()), e.Name()))
	}
	slices.SortFunc(products, func(a, b Product) int {
		return strings.Compare(a.Name, b.Name)
	})
	return products, nil
}

// Drawing looks up one drawing by name.
func (s *FileStore) Drawing(name string) (Product, error) {
	if !drawing.ValidName(name) {
		return Product{}, invalidName(name)
	}
	products, err := s.Drawings()
	if err != nil {
		return Product{}, err
	}
	for _, p := range products {
		if p.Name == name {
			return p, nil
		}
	}
	return Product{}, errors.New(fmt.Errorf("%w: %s", ErrNotFound, name)).
		Component("store").
		Category(errors.CategoryNotFound).
		Context("drawing", name).
		Build()
}

func (s *FileStore) product(name, fileName string) Product {
	paths := s.Paths(name)
	preview, _ := exists(paths.Preview)
	coords, _ := exists(paths.Coordinates)
	descs, _ := exists(paths.Descriptors)
	return Product{
		Name:           name,
		DrawingPath:    filepath.Join(s.sourceDir, fileName),
		HasPreview:     preview,
		HasCoordinates: coords,
		HasDescriptors: descs,
	}
}

// ReadCoordinates returns the coordinate list, or an empty list when none
// has been written yet.
func (s *FileStore) ReadCoordinates(name string) (drawing.Coordinates, error) {
	if !drawing.ValidName(name) {
		return nil, invalidName(name)
	}
	data, err := os.ReadFile(s.Paths(name).Coordinates)
	if errors.Is(err, fs.ErrNotExist) {
		return drawing.Coordinates{}, nil
	}
	if err != nil {
		return nil, s.ioError(err, "read_coordinates", name)
	}
	c, err := drawing.DecodeCoordinates(data)
	if err != nil {
		return nil, s.parseError(err, "read_coordinates", name)
	}
	return c, nil
}

// ReadDescriptors returns the descriptor map, or an empty map when none
// has been written yet.
func (s *FileStore) ReadDescriptors(name string) (drawing.Descriptors, error) {
	if !drawing.ValidName(name) {
		return nil, invalidName(name)
	}
	data, err := os.ReadFile(s.Paths(name).Descriptors)
	if errors.Is(err, fs.ErrNotExist) {
		return drawing.Descriptors{}, nil
	}
	if err != nil {
		return nil, s.ioError(err, "read_descriptors", name)
	}
	d, err := drawing.DecodeDescriptors(data)
	if err != nil {
		return nil, s.parseError(err, "read_descriptors", name)
	}
	return d, nil
}

// WriteCoordinates replaces the coordinate list atomically.
func (s *FileStore) WriteCoordinates(name string, c drawing.Coordinates) error {
	if !drawing.ValidName(name) {
		return invalidName(name)
	}
	data, err := drawing.EncodeCoordinates(c)
	if err != nil {
		return s.persistError(err, "encode_coordinates", name)
	}
	if err := writeFileAtomic(s.Paths(name).Coordinates, data); err != nil {
		return s.persistError(err, "write_coordinates", name)
	}
	return nil
}

// WriteDescriptorsIfAbsent writes the descriptor map only if no descriptor
// file exists. written is false when an existing file was left untouched.
func (s *FileStore) WriteDescriptorsIfAbsent(name string, d drawing.Descriptors) (written bool, err error) {
	if !drawing.ValidName(name) {
		return false, invalidName(name)
	}
	data, err := drawing.EncodeDescriptors(d)
	if err != nil {
		return false, s.persistError(err, "encode_descriptors", name)
	}
	written, err = writeFileNoClobber(s.Paths(name).Descriptors, data)
	if err != nil {
		return false, s.persistError(err, "write_descriptors", name)
	}
	return written, nil
}

// SaveCoordinates stores a calibrated coordinate list, replacing the current one.
func (s *FileStore) SaveCoordinates(name string, c drawing.Coordinates) error {
	if err := s.WriteCoordinates(name, c); err != nil {
		return err
	}
	s.log.Info("Saved coordinates", logger.String("drawing", name), logger.Int("points", len(c)))
	return nil
}

// SaveDescriptors stores an edited descriptor map, replacing the current one.
// Ingestion never overwrites a map saved this way.
func (s *FileStore) SaveDescriptors(name string, d drawing.Descriptors) error {
	if !drawing.ValidName(name) {
		return invalidName(name)
	}
	data, err := drawing.EncodeDescriptors(d)
	if err != nil {
		return s.persistError(err, "encode_descriptors", name)
	}
	if err := writeFileAtomic(s.Paths(name).Descriptors, data); err != nil {
		return s.persistError(err, "save_descriptors", name)
	}
	s.log.Info("Saved descriptors", logger.String("drawing", name), logger.Int("components", len(d)))
	return nil
}

func exists(path string) (bool, error) {
	_, err := os.Stat(path)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, fs.ErrNotExist):
		return false, nil
	default:
		return false, err
	}
}

func invalidName(name string) error {
	return errors.New(fmt.Errorf("%w: %q", ErrInvalidName, name)).
		Component("store").
		Category(errors.CategoryValidation).
		Build()
}

func (s *FileStore) ioError(err error, op, name string) error {
	return errors.New(err).
		Component("store").
		Category(errors.CategoryFileIO).
		Context("operation", op).
		Context("drawing", name).
		Build()
}

func (s *FileStore) parseError(err error, op, name string) error {
	return errors.New(err).
		Component("store").
		Category(errors.CategoryFileParsing).
		Context("operation", op).
		Context("drawing", name).
		Build()
}

func (s *FileStore) persistError(err error, op, name string) error {
	return errors.New(err).
		Component("store").
		Category(errors.CategoryPersistence).
		Context("operation", op).
		Context("drawing", name).
		Build()
}
