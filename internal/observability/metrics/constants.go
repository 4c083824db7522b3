// Package metrics provides constants used across metric definitions.
package metrics

import "time"

// Operation label values.
const (
	// OpIngest is a complete per-file ingestion.
	OpIngest = "ingest"
	// OpRender is the preview rasterisation step.
	OpRender = "render"
	// OpExtract is the vector extraction and mapping step.
	OpExtract = "extract"
	// OpFallback is the raster OCR fallback step.
	OpFallback = "fallback"
	// OpPersist covers the coordinate and descriptor writes.
	OpPersist = "persist"
	// OpScan is a full directory rescan.
	OpScan = "scan"
)

// Status label values.
const (
	StatusSuccess = "success"
	StatusError   = "error"
	StatusSkipped = "skipped"
)

// Fallback outcome label values.
const (
	FallbackUsed  = "used"
	FallbackEmpty = "empty"
	FallbackError = "error"
)

// Histogram bucket configuration.
const (
	// BucketStart10ms is the starting bucket for 10ms histograms (10ms to ~40s range).
	BucketStart10ms = 0.01
	// BucketStart1ms is the starting bucket for 1ms histograms (1ms to ~1s range).
	BucketStart1ms = 0.001
	// BucketStart64B is the starting bucket for 64 byte histograms.
	BucketStart64B = 64.0

	BucketFactor2 = 2

	BucketCount10 = 10
	BucketCount12 = 12
)

// ShutdownTimeout is the timeout for graceful shutdown of the metrics server.
const ShutdownTimeout = 5 * time.Second
