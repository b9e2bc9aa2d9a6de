// Package dctdenoise removes noise from raw YUV 4:2:0 video with 16-bit
// little-endian samples.
//
// Each plane is filtered with overlapped patch transforms: the plane is
// tiled with P x P patches at every offset of a stride grid, each patch is
// transformed and hard-thresholded on a compute device, and the overlapping
// estimates are averaged back together. Luma can optionally be sharpened
// afterwards.
//
// # Getting Started
//
//	cfg := dctdenoise.DefaultConfig(960, 540, 0.02)
//	d, err := dctdenoise.New(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer d.Close()
//
//	stats, err := d.Run(ctx, os.Stdin, os.Stdout)
//
// # Presets
//
//   - "dense": 8x8 patches on every offset, uniform normalization
//   - "sparse": 16x16 patches on a stride of 4, weighted normalization
//
// # Devices
//
// The "cpu" device is always available. Import
// github.com/opd-ai/dctdenoise/device/gpu to register the "gpu" device.
//
// # Packages
//
//   - [github.com/opd-ai/dctdenoise/frame]: geometry, sample codec, frame ring
//   - [github.com/opd-ai/dctdenoise/transform]: patch transforms
//   - [github.com/opd-ai/dctdenoise/device]: compute device contract and cpu backend
//   - [github.com/opd-ai/dctdenoise/denoise]: tiling, reconstruction and plane filters
//   - [github.com/opd-ai/dctdenoise/stream]: streaming pipeline
package dctdenoise
