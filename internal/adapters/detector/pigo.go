// Package detector finds face regions with a pigo pixel-intensity cascade.
package detector

import (
	"context"
	"fmt"
	"image"
	"os"
	"sort"

	pigo "github.com/esimov/pigo/core"

	"github.com/okian/rollcall/internal/domain/extract"
)

// Params tune the cascade scan.
type Params struct {
	MinSize      int
	MaxSize      int
	ShiftFactor  float64
	ScaleFactor  float64
	IoUThreshold float64
	MinQuality   float32
}

// DefaultParams returns the scan settings used by the service.
func DefaultParams() Params {
	return Params{
		MinSize:      20,
		MaxSize:      1000,
		ShiftFactor:  0.1,
		ScaleFactor:  1.1,
		IoUThreshold: 0.2,
		MinQuality:   5.0,
	}
}

// Option configures a Pigo detector.
type Option func(*Pigo)

// WithParams replaces the scan settings. Zero fields keep their defaults.
func WithParams(p Params) Option {
	return func(d *Pigo) {
		if p.MinSize > 0 {
			d.params.MinSize = p.MinSize
		}
		if p.MaxSize > 0 {
			d.params.MaxSize = p.MaxSize
		}
		if p.ShiftFactor > 0 {
			d.params.ShiftFactor = p.ShiftFactor
		}
		if p.ScaleFactor > 1 {
			d.params.ScaleFactor = p.ScaleFactor
		}
		if p.IoUThreshold > 0 {
			d.params.IoUThreshold = p.IoUThreshold
		}
		if p.MinQuality > 0 {
			d.params.MinQuality = p.MinQuality
		}
	}
}

// Pigo implements extract.Detector.
type Pigo struct {
	classifier *pigo.Pigo
	params     Params
}

var _ extract.Detector = (*Pigo)(nil)

// LoadPigo reads a cascade file such as pigo's "facefinder".
func LoadPigo(path string, opts ...Option) (*Pigo, error) {
	if path == "" {
		return nil, fmt.Errorf("%w: no cascade path configured", ErrCascadeUnavailable)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCascadeUnavailable, err)
	}
	return NewPigo(data, opts...)
}

// NewPigo unpacks cascade data.
func NewPigo(cascade []byte, opts ...Option) (d *Pigo, err error) {
	defer func() {
		if r := recover(); r != nil {
			d, err = nil, fmt.Errorf("%w: malformed cascade: %v", ErrCascadeUnavailable, r)
		}
	}()
	classifier, err := pigo.NewPigo().Unpack(cascade)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCascadeUnavailable, err)
	}
	d = &Pigo{classifier: classifier, params: DefaultParams()}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// Detect returns face squares ordered by detection quality, best first. Ties
// keep scan order (top to bottom, left to right).
func (d *Pigo) Detect(ctx context.Context, gray *image.Gray) ([]extract.Rect, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b := gray.Bounds()
	cols, rows := b.Dx(), b.Dy()
	if cols == 0 || rows == 0 {
		return nil, nil
	}

	params := pigo.CascadeParams{
		MinSize:     d.params.MinSize,
		MaxSize:     d.params.MaxSize,
		ShiftFactor: d.params.ShiftFactor,
		ScaleFactor: d.params.ScaleFactor,
		ImageParams: pigo.ImageParams{
			Pixels: pixels(gray),
			Rows:   rows,
			Cols:   cols,
			Dim:    cols,
		},
	}
	dets := d.classifier.RunCascade(params, 0.0)
	dets = d.classifier.ClusterDetections(dets, d.params.IoUThreshold)

	kept := make([]pigo.Detection, 0, len(dets))
	for _, det := range dets {
		if det.Q >= d.params.MinQuality {
			kept = append(kept, det)
		}
	}
	sort.SliceStable(kept, func(i, j int) bool {
		if kept[i].Q != kept[j].Q {
			return kept[i].Q > kept[j].Q
		}
		if kept[i].Row != kept[j].Row {
			return kept[i].Row < kept[j].Row
		}
		return kept[i].Col < kept[j].Col
	})

	out := make([]extract.Rect, len(kept))
	for i, det := range kept {
		out[i] = extract.Rect{
			X: b.Min.X + det.Col - det.Scale/2,
			Y: b.Min.Y + det.Row - det.Scale/2,
			W: det.Scale,
			H: det.Scale,
		}
	}
	return out, nil
}

// pixels returns gray's samples as a tightly packed row-major slice.
func pixels(gray *image.Gray) []uint8 {
	b := gray.Bounds()
	w, h := b.Dx(), b.Dy()
	if gray.Stride == w && len(gray.Pix) == w*h {
		return gray.Pix
	}
	out := make([]uint8, w*h)
	for y := 0; y < h; y++ {
		start := (y+b.Min.Y-gray.Rect.Min.Y)*gray.Stride + (b.Min.X - gray.Rect.Min.X)
		copy(out[y*w:(y+1)*w], gray.Pix[start:start+w])
	}
	return out
}
