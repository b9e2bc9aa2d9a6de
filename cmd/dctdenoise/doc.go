// Package main provides the dctdenoise command.
//
// # Overview
//
// dctdenoise reads raw planar YUV 4:2:0 video with 16-bit little-endian
// samples from stdin, denoises every plane and writes the frames to stdout
// in the order they arrived. Logs go to stderr.
//
// # Usage
//
//	dctdenoise [options] <chroma-width> <chroma-height> <threshold>
//
// The luma plane is twice the chroma dimensions. The threshold applies to
// normalized transform coefficients; the dense preset also derives its
// sharpen amount from it (threshold*100).
//
// # Configuration Options
//
// Filter configuration:
//   - -preset: dense (8x8, every offset) or sparse (16x16, stride 4) (default: dense)
//   - -sharpen: enable the luma unsharp stage of the dense preset (default: false)
//
// Device configuration:
//   - -device: cpu or gpu (default: cpu)
//   - -transform: dct or identity (default: dct)
//   - -workers: cpu worker count (default: logical cores)
//   - -kernels: WGSL catalog replacing the embedded one (gpu only)
//
// Stream configuration:
//   - -pace: delay after each filtered frame (default: 1ms)
//   - -strict: fail when the input ends inside a frame (default: false)
//
// Logging configuration:
//   - -log-level: debug, info, warn or error (default: info)
//
// # Exit Codes
//
//   - 0: every complete frame was filtered and written
//   - 1: argument, setup, device or stream error
//
// # Signal Handling
//
// SIGINT stops the stream at the next frame boundary; frames already
// filtered are still written.
package main
