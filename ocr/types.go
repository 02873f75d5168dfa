package ocr

import "context"

// ImageFormat identifies the content type of an OCR input image.
type ImageFormat string

const (
	ImageFormatPNG  ImageFormat = "image/png"
	ImageFormatJPEG ImageFormat = "image/jpeg"
	ImageFormatTIFF ImageFormat = "image/tiff"
)

// Region is a rectangle in image pixels, origin at the upper-left corner.
type Region struct {
	X      float64
	Y      float64
	Width  float64
	Height float64
}

// IsEmpty reports whether the region has non-positive dimensions.
func (r Region) IsEmpty() bool { return r.Width <= 0 || r.Height <= 0 }

// Input is one page raster submitted for recognition.
type Input struct {
	// ID is echoed back in the Result.
	ID     string
	Image  []byte
	Format ImageFormat
	// Page is the 1-based page the raster was taken from.
	Page int
	// DPI of the raster. Zero means 72, one pixel per point.
	DPI       int
	Languages []string
	// Region restricts recognition to part of the image.
	Region *Region
	// Metadata passes engine-specific variables through untouched.
	Metadata map[string]string
}

// Scale is the number of page points per image pixel.
func (in Input) Scale() float64 {
	if in.DPI <= 0 {
		return 1
	}
	return 72 / float64(in.DPI)
}

type TextWord struct {
	Text       string
	Bounds     Region
	Confidence float64
}

// TextLine groups words that share a baseline.
type TextLine struct {
	Text       string
	Bounds     Region
	Words      []TextWord
	Confidence float64
}

type TextBlock struct {
	Text       string
	Bounds     Region
	Lines      []TextLine
	Confidence float64
}

// Result is the recognition output for one Input.
type Result struct {
	InputID   string
	PlainText string
	Blocks    []TextBlock
	Language  string
}

// Engine recognizes one image at a time.
type Engine interface {
	Name() string
	Recognize(ctx context.Context, input Input) (Result, error)
}

// BatchEngine handles several images per call to amortize setup.
type BatchEngine interface {
	Engine
	RecognizeBatch(ctx context.Context, inputs []Input) ([]Result, error)
}
