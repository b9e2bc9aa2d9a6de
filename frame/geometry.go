package frame

import (
	"fmt"
)

// BytesPerSample is the size of one stored sample.
const BytesPerSample = 2

// MaxChromaDimension bounds each chroma dimension so frame sizes stay well
// inside int range on every platform.
const MaxChromaDimension = 1 << 14

// PlaneKind identifies one of the three planes of a frame.
type PlaneKind int

const (
	Luma PlaneKind = iota
	ChromaU
	ChromaV
)

// String returns the conventional plane letter.
func (k PlaneKind) String() string {
	switch k {
	case Luma:
		return "Y"
	case ChromaU:
		return "U"
	case ChromaV:
		return "V"
	default:
		return fmt.Sprintf("PlaneKind(%d)", int(k))
	}
}

// Layout locates one plane inside a frame buffer.
type Layout struct {
	Kind   PlaneKind
	Width  int
	Height int
	Offset int // byte offset from the start of the frame
	Size   int // byte length of the plane
}

// Samples returns the number of samples in the plane.
func (l Layout) Samples() int {
	return l.Width * l.Height
}

// Slice returns the plane's bytes inside a frame buffer. The returned slice
// aliases buf, so filtering through it rewrites the frame in place.
func (l Layout) Slice(buf []byte) []byte {
	return buf[l.Offset : l.Offset+l.Size : l.Offset+l.Size]
}

// Geometry holds the dimensions of a 4:2:0 frame.
type Geometry struct {
	ChromaWidth  int
	ChromaHeight int
}

// NewGeometry builds a geometry from the chroma plane dimensions. The luma
// plane is twice as wide and twice as tall.
func NewGeometry(chromaWidth, chromaHeight int) (Geometry, error) {
	if chromaWidth <= 0 || chromaHeight <= 0 {
		return Geometry{}, fmt.Errorf("%w: chroma %dx%d must be positive", ErrInvalidGeometry, chromaWidth, chromaHeight)
	}
	if chromaWidth > MaxChromaDimension || chromaHeight > MaxChromaDimension {
		return Geometry{}, fmt.Errorf("%w: chroma %dx%d exceeds %d", ErrInvalidGeometry,
			chromaWidth, chromaHeight, MaxChromaDimension)
	}
	return Geometry{ChromaWidth: chromaWidth, ChromaHeight: chromaHeight}, nil
}

// LumaWidth returns W.
func (g Geometry) LumaWidth() int { return g.ChromaWidth << 1 }

// LumaHeight returns H.
func (g Geometry) LumaHeight() int { return g.ChromaHeight << 1 }

// FrameSize returns the byte size of one frame, (W*H + 2*WH*HH)*2.
func (g Geometry) FrameSize() int {
	luma := g.LumaWidth() * g.LumaHeight()
	chroma := g.ChromaWidth * g.ChromaHeight
	return (luma + 2*chroma) * BytesPerSample
}

// Planes returns the layouts of Y, U and V in stream order.
func (g Geometry) Planes() [3]Layout {
	lumaSize := g.LumaWidth() * g.LumaHeight() * BytesPerSample
	chromaSize := g.ChromaWidth * g.ChromaHeight * BytesPerSample
	return [3]Layout{
		{Kind: Luma, Width: g.LumaWidth(), Height: g.LumaHeight(), Offset: 0, Size: lumaSize},
		{Kind: ChromaU, Width: g.ChromaWidth, Height: g.ChromaHeight, Offset: lumaSize, Size: chromaSize},
		{Kind: ChromaV, Width: g.ChromaWidth, Height: g.ChromaHeight, Offset: lumaSize + chromaSize, Size: chromaSize},
	}
}

// Plane returns the layout of a single plane.
func (g Geometry) Plane(kind PlaneKind) Layout {
	return g.Planes()[kind]
}

// String formats the geometry as luma and chroma dimensions.
func (g Geometry) String() string {
	return fmt.Sprintf("%dx%d (chroma %dx%d)", g.LumaWidth(), g.LumaHeight(), g.ChromaWidth, g.ChromaHeight)
}
