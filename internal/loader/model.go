// Package loader provides the model-loading capability used by the
// resolution pipeline: a Wavefront OBJ/MTL reader and a process-wide cache.
package loader

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/tacogips/modelres/internal/content"
)

// ErrEmptyModel is returned by Measure for a model without measurable geometry.
var ErrEmptyModel = errors.New("model has no geometry")

// Loader loads models from content handles.
type Loader interface {
	// Load reads and interprets the content behind h.
	Load(ctx context.Context, h content.Handle) (*Model, error)
	// LoadCached behaves like Load but may return a model loaded earlier
	// from the same location.
	LoadCached(ctx context.Context, h content.Handle) (*Model, error)
}

// Reader interprets one model format.
type Reader interface {
	Load(ctx context.Context, h content.Handle) (*Model, error)
}

// Resource is a file a model depends on, such as a material library or a
// texture image.
type Resource struct {
	// Ref is the reference exactly as written in the referencing file.
	Ref string
	// Data is the resource content.
	Data []byte
}

// Model is a loaded mesh together with everything it references.
type Model struct {
	// Source is the location the model was loaded from.
	Source string
	// Geometry is the primary OBJ text.
	Geometry []byte
	// Libraries are the material libraries referenced with mtllib.
	Libraries []Resource
	// Textures are the images referenced from the material libraries.
	Textures []Resource
	// Vertices is the number of geometric vertices.
	Vertices int
	// Elements is the number of faces, lines and points.
	Elements int
	// Bounds is the axis-aligned bounding box of all vertices.
	Bounds Box
}

// Box is an axis-aligned bounding box.
type Box struct {
	Min [3]float64
	Max [3]float64
}

// EmptyBox returns a box that contains nothing.
func EmptyBox() Box {
	inf := math.Inf(1)
	return Box{
		Min: [3]float64{inf, inf, inf},
		Max: [3]float64{-inf, -inf, -inf},
	}
}

// Extend grows the box to contain p.
func (b *Box) Extend(p [3]float64) {
	for i := range 3 {
		b.Min[i] = math.Min(b.Min[i], p[i])
		b.Max[i] = math.Max(b.Max[i], p[i])
	}
}

// IsEmpty reports whether the box contains no point.
func (b Box) IsEmpty() bool {
	return b.Min[0] > b.Max[0] || b.Min[1] > b.Max[1] || b.Min[2] > b.Max[2]
}

// Size is the extent of a model in model-space units.
type Size struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
	Depth  float64 `json:"depth"`
}

// String formats the size as "W x H x D".
func (s Size) String() string {
	return fmt.Sprintf("%g x %g x %g", s.Width, s.Height, s.Depth)
}

// Measure returns the size of m. It fails with ErrEmptyModel when the model
// has no elements or its bounding box is empty.
func Measure(m *Model) (Size, error) {
	if m == nil || m.Elements == 0 || m.Bounds.IsEmpty() {
		return Size{}, ErrEmptyModel
	}
	return Size{
		Width:  m.Bounds.Max[0] - m.Bounds.Min[0],
		Height: m.Bounds.Max[1] - m.Bounds.Min[1],
		Depth:  m.Bounds.Max[2] - m.Bounds.Min[2],
	}, nil
}
