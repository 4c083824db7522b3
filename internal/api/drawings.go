package api

import (
	"io"
	"net/http"
	"os"

	"github.com/labstack/echo/v4"

	"github.com/tphakala/drawmap/internal/coordinator"
	"github.com/tphakala/drawmap/internal/drawing"
	"github.com/tphakala/drawmap/internal/store"
)

// DrawingResponse is one entry of the drawing list.
type DrawingResponse struct {
	store.Product
	State    string `json:"state"`
	Points   int    `json:"points"`
	Attempts int    `json:"attempts,omitempty"`
	Error    string `json:"error,omitempty"`
}

// StatusResponse summarises the coordinator.
type StatusResponse struct {
	Workers int                  `json:"workers"`
	Queued  int                  `json:"queued"`
	Counts  map[string]int       `json:"counts"`
	Records []coordinator.Record `json:"records"`
}

// listDrawings returns every drawing in the source directory with its
// artifacts and processing state.
func (s *Server) listDrawings(c echo.Context) error {
	products, err := s.store.Drawings()
	if err != nil {
		return s.HandleError(c, err, "Failed to list drawings", statusFor(err))
	}

	records := make(map[string]coordinator.Record)
	if s.status != nil {
		for _, r := range s.status.Snapshot() {
			// The newest record per drawing wins.
			if prev, ok := records[r.Drawing]; ok && prev.UpdatedAt.After(r.UpdatedAt) {
				continue
			}
			records[r.Drawing] = r
		}
	}

	resp := make([]DrawingResponse, 0, len(products))
	for _, p := range products {
		item := DrawingResponse{Product: p, State: coordinator.StatePending.String()}
		if p.HasCoordinates {
			item.State = coordinator.StateDone.String()
		}
		if r, ok := records[p.Name]; ok {
			item.State = r.State.String()
			item.Points = r.Points
			item.Attempts = r.Attempts
			item.Error = r.LastError
		}
		resp = append(resp, item)
	}
	return c.JSON(http.StatusOK, resp)
}

func (s *Server) getCoordinates(c echo.Context) error {
	name := c.Param("name")
	if _, err := s.store.Drawing(name); err != nil {
		return s.HandleError(c, err, "Drawing not found", statusFor(err))
	}
	coords, err := s.store.ReadCoordinates(name)
	if err != nil {
		return s.HandleError(c, err, "Failed to read coordinates", statusFor(err))
	}
	return c.JSON(http.StatusOK, coords)
}

// putCoordinates replaces the coordinate list with a calibrated one.
func (s *Server) putCoordinates(c echo.Context) error {
	name := c.Param("name")
	if _, err := s.store.Drawing(name); err != nil {
		return s.HandleError(c, err, "Drawing not found", statusFor(err))
	}
	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return s.HandleError(c, err, "Failed to read request body", http.StatusBadRequest)
	}
	coords, err := drawing.DecodeCoordinates(body)
	if err != nil {
		return s.HandleError(c, err, "Invalid coordinate list", http.StatusBadRequest)
	}
	if err := s.store.SaveCoordinates(name, coords); err != nil {
		return s.HandleError(c, err, "Failed to save coordinates", statusFor(err))
	}
	return c.JSON(http.StatusOK, coords)
}

func (s *Server) getDescriptors(c echo.Context) error {
	name := c.Param("name")
	if _, err := s.store.Drawing(name); err != nil {
		return s.HandleError(c, err, "Drawing not found", statusFor(err))
	}
	descs, err := s.store.ReadDescriptors(name)
	if err != nil {
		return s.HandleError(c, err, "Failed to read descriptors", statusFor(err))
	}
	return c.JSON(http.StatusOK, descs)
}

// putDescriptors replaces the descriptor map. Ingestion never overwrites
// a map saved here.
func (s *Server) putDescriptors(c echo.Context) error {
	name := c.Param("name")
	if _, err := s.store.Drawing(name); err != nil {
		return s.HandleError(c, err, "Drawing not found", statusFor(err))
	}
	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return s.HandleError(c, err, "Failed to read request body", http.StatusBadRequest)
	}
	descs, err := drawing.DecodeDescriptors(body)
	if err != nil {
		return s.HandleError(c, err, "Invalid descriptor map", http.StatusBadRequest)
	}
	if err := s.store.SaveDescriptors(name, descs); err != nil {
		return s.HandleError(c, err, "Failed to save descriptors", statusFor(err))
	}
	return c.JSON(http.StatusOK, descs)
}

func (s *Server) getPreview(c echo.Context) error {
	name := c.Param("name")
	if _, err := s.store.Drawing(name); err != nil {
		return s.HandleError(c, err, "Drawing not found", statusFor(err))
	}
	path := s.store.Paths(name).Preview
	if _, err := os.Stat(path); err != nil {
		return s.HandleError(c, nil, "Preview not rendered yet", http.StatusNotFound)
	}
	return c.File(path)
}

func (s *Server) ingestStatus(c echo.Context) error {
	if s.status == nil {
		return s.HandleError(c, nil, "Ingestion is not running", http.StatusServiceUnavailable)
	}
	records := s.status.Snapshot()
	counts := make(map[string]int)
	for _, r := range records {
		counts[r.State.String()]++
	}
	return c.JSON(http.StatusOK, StatusResponse{
		Workers: s.status.Workers(),
		Queued:  s.status.Queued(),
		Counts:  counts,
		Records: records,
	})
}
