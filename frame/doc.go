// Package frame describes the raw video frames handled by the denoiser.
//
// Frames are planar YUV 4:2:0 with unsigned 16-bit little-endian samples and
// no header or framing. A frame is laid out as the full resolution luma plane
// followed by the two half resolution chroma planes:
//
//	+------------------+  offset 0
//	| Y  (W x H)       |
//	+------------------+  offset W*H*2
//	| U  (W/2 x H/2)   |
//	+------------------+  offset (W*H + W/2*H/2)*2
//	| V  (W/2 x H/2)   |
//	+------------------+  offset (W*H + 2*W/2*H/2)*2
//
// # Geometry
//
// The geometry is derived from the chroma dimensions, which is how the
// command line describes the stream:
//
//	geom, err := frame.NewGeometry(960, 540) // 1920x1080 luma
//	if err != nil {
//	    return err
//	}
//	for _, layout := range geom.Planes() {
//	    samples := layout.Slice(buf)
//	    ...
//	}
//
// # Ring
//
// Ring is the fixed-depth set of frame slots that sits between the byte
// streams and the filter. Slots are addressed by the absolute frame sequence
// number, so readers and writers only keep counters.
package frame
