// Package extract turns the first detected face region of an image into a
// fixed-length grayscale descriptor.
package extract

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/gif"  // register decoder
	_ "image/jpeg" // register decoder
	_ "image/png"  // register decoder

	"github.com/okian/rollcall/internal/domain/model"
	_ "golang.org/x/image/bmp" // register decoder
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp" // register decoder
)

// Rect is a face region in image coordinates.
type Rect struct {
	X int `json:"x"`
	Y int `json:"y"`
	W int `json:"w"`
	H int `json:"h"`
}

// Rectangle converts r to an image.Rectangle.
func (r Rect) Rectangle() image.Rectangle {
	return image.Rect(r.X, r.Y, r.X+r.W, r.Y+r.H)
}

// Detector finds face regions in a grayscale image. The returned order must
// be deterministic for a given input; the extractor always takes the first.
type Detector interface {
	Detect(ctx context.Context, gray *image.Gray) ([]Rect, error)
}

// Extractor produces descriptors. It holds no mutable state and is safe for
// concurrent use as long as its Detector is.
type Extractor struct {
	detector     Detector
	width        int
	height       int
	interpolator draw.Interpolator
}

// New creates an Extractor. A nil detector is allowed and makes every
// extraction fail with ErrDetectorUnavailable.
func New(detector Detector) *Extractor {
	return &Extractor{
		detector:     detector,
		width:        model.DescriptorWidth,
		height:       model.DescriptorHeight,
		interpolator: draw.BiLinear,
	}
}

// DetectorAvailable reports whether a detector is configured.
func (e *Extractor) DetectorAvailable() bool { return e.detector != nil }

// ExtractEncoded decodes an encoded raster (JPEG, PNG, GIF, BMP or WebP) and
// extracts its descriptor.
func (e *Extractor) ExtractEncoded(ctx context.Context, data []byte) (model.Descriptor, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUndecodable, err)
	}
	return e.Extract(ctx, img)
}

// Extract converts img to grayscale, asks the detector for face regions, and
// flattens the first region resampled to the patch size in row-major order.
func (e *Extractor) Extract(ctx context.Context, img image.Image) (model.Descriptor, error) {
	if img == nil {
		return nil, ErrUndecodable
	}
	if e.detector == nil {
		return nil, ErrDetectorUnavailable
	}

	gray := Grayscale(img)
	rects, err := e.detector.Detect(ctx, gray)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDetectorUnavailable, err)
	}
	if len(rects) == 0 {
		return nil, ErrNoFace
	}

	region := rects[0].Rectangle().Intersect(gray.Bounds())
	if region.Empty() {
		return nil, ErrNoFace
	}
	return e.flatten(gray.SubImage(region)), nil
}

func (e *Extractor) flatten(face image.Image) model.Descriptor {
	patch := image.NewGray(image.Rect(0, 0, e.width, e.height))
	e.interpolator.Scale(patch, patch.Bounds(), face, face.Bounds(), draw.Src, nil)

	d := make(model.Descriptor, e.width*e.height)
	for y := 0; y < e.height; y++ {
		row := patch.Pix[y*patch.Stride : y*patch.Stride+e.width]
		for x, v := range row {
			d[y*e.width+x] = float64(v)
		}
	}
	return d
}

// Grayscale returns img as a single-channel intensity image anchored at the
// origin.
func Grayscale(img image.Image) *image.Gray {
	if g, ok := img.(*image.Gray); ok && g.Rect.Min == (image.Point{}) {
		return g
	}
	b := img.Bounds()
	gray := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(gray, gray.Bounds(), img, b.Min, draw.Src)
	return gray
}
