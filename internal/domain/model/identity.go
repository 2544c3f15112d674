package model

import "time"

// DescriptorWidth and DescriptorHeight define the canonical face patch.
const (
	DescriptorWidth  = 100
	DescriptorHeight = 100
	DescriptorLength = DescriptorWidth * DescriptorHeight
)

// Descriptor is a row-major grayscale face patch, one intensity sample in
// [0,255] per pixel.
type Descriptor []float64

// Identity is one enrolled person. Encodings keeps every stored descriptor,
// but only the first one takes part in matching.
type Identity struct {
	Roll         string       `json:"roll"`
	Name         string       `json:"name"`
	Encodings    []Descriptor `json:"encodings"`
	RegisteredAt time.Time    `json:"registered_at"`
}

// Primary returns the first stored descriptor, or nil when none is stored.
func (i Identity) Primary() Descriptor {
	if len(i.Encodings) == 0 {
		return nil
	}
	return i.Encodings[0]
}

// Gallery is the ordered snapshot of enrolled identities read for one
// enrollment or recognition.
type Gallery []Identity
