package ocr

import "context"

// Page is a single rasterized document page submitted for recognition.
type Page struct {
	// Image is a PNG-encoded page image.
	Image []byte
	// Index is the zero-based page index in the source document.
	Index int
	// DPI is the raster resolution; zero means unknown.
	DPI int
}

// Result captures recognized text for one page.
type Result struct {
	Text string
	// Confidence is the engine's mean word confidence in [0, 1]. Engines
	// that cannot report one return a fixed estimate.
	Confidence float64
}

// Engine is the OCR provider contract: one page image in, one result out.
// Engines are treated as pluggable, imperfect oracles; callers decide
// whether the output is good enough.
type Engine interface {
	Name() string
	Recognize(ctx context.Context, page Page) (Result, error)
}
