// Package main provides the command-line interface of the streaming denoiser.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/opd-ai/dctdenoise"
	"github.com/opd-ai/dctdenoise/device"
	"github.com/opd-ai/dctdenoise/stream"

	// Register the gpu backend.
	_ "github.com/opd-ai/dctdenoise/device/gpu"
)

// CLI configuration
type CLIConfig struct {
	chromaWidth  int
	chromaHeight int
	threshold    float64

	preset     string
	device     string
	transform  string
	workers    int
	kernelPath string
	sharpen    bool
	pace       time.Duration
	strict     bool
	logLevel   string
	help       bool
}

// errUsage marks argument errors that should print usage.
var errUsage = errors.New("usage")

// parseCLIFlags parses flags and the three positional arguments.
func parseCLIFlags(args []string, output io.Writer) (*CLIConfig, *flag.FlagSet, error) {
	config := &CLIConfig{}
	fs := flag.NewFlagSet("dctdenoise", flag.ContinueOnError)
	fs.SetOutput(output)
	fs.Usage = func() {}

	// Filter configuration
	fs.StringVar(&config.preset, "preset", "dense", "Filter preset (dense, sparse)")
	fs.BoolVar(&config.sharpen, "sharpen", false, "Enable the luma unsharp stage of the dense preset")

	// Device configuration
	fs.StringVar(&config.device, "device", "cpu", "Compute device ("+strings.Join(device.Backends(), ", ")+")")
	fs.StringVar(&config.transform, "transform", device.DefaultTransform, "Patch transform (dct, identity)")
	fs.IntVar(&config.workers, "workers", 0, "cpu device worker count (0: logical cores)")
	fs.StringVar(&config.kernelPath, "kernels", "", "WGSL kernel catalog for the gpu device (default: embedded)")

	// Stream configuration
	fs.DurationVar(&config.pace, "pace", stream.DefaultPace, "Delay after each filtered frame")
	fs.BoolVar(&config.strict, "strict", false, "Fail when the input ends inside a frame")

	// Logging configuration
	fs.StringVar(&config.logLevel, "log-level", "info", "Log level (debug, info, warn, error)")

	fs.BoolVar(&config.help, "help", false, "Show help message")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil, fs, err
		}
		return nil, fs, fmt.Errorf("%w: %v", errUsage, err)
	}
	if config.help {
		return config, fs, nil
	}

	pos := fs.Args()
	if len(pos) != 3 {
		return nil, fs, fmt.Errorf("%w: expected 3 arguments, got %d", errUsage, len(pos))
	}
	var err error
	if config.chromaWidth, err = strconv.Atoi(pos[0]); err != nil {
		return nil, fs, fmt.Errorf("%w: chroma width %q", errUsage, pos[0])
	}
	if config.chromaHeight, err = strconv.Atoi(pos[1]); err != nil {
		return nil, fs, fmt.Errorf("%w: chroma height %q", errUsage, pos[1])
	}
	if config.threshold, err = strconv.ParseFloat(pos[2], 32); err != nil {
		return nil, fs, fmt.Errorf("%w: threshold %q", errUsage, pos[2])
	}
	return config, fs, nil
}

// printUsage prints the usage information.
func printUsage(w io.Writer, fs *flag.FlagSet) {
	fmt.Fprintln(w, "Streaming DCT video denoiser")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Reads raw YUV 4:2:0 frames with 16-bit little-endian samples from stdin")
	fmt.Fprintln(w, "and writes the filtered frames to stdout.")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintf(w, "  %s [options] <chroma-width> <chroma-height> <threshold>\n", fs.Name())
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Options:")
	fs.SetOutput(w)
	fs.PrintDefaults()
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Examples:")
	fmt.Fprintln(w, "  # 1920x1080 luma, moderate denoising")
	fmt.Fprintf(w, "  %s 960 540 0.02 < in.yuv > out.yuv\n", fs.Name())
	fmt.Fprintln(w)
	fmt.Fprintln(w, "  # Sparse preset on the GPU")
	fmt.Fprintf(w, "  %s -preset sparse -device gpu 960 540 0.02 < in.yuv > out.yuv\n", fs.Name())
}

// validateCLIConfig validates the CLI configuration.
func validateCLIConfig(config *CLIConfig) error {
	if config.chromaWidth <= 0 || config.chromaHeight <= 0 {
		return fmt.Errorf("chroma dimensions must be positive, got %dx%d", config.chromaWidth, config.chromaHeight)
	}
	if config.threshold < 0 {
		return fmt.Errorf("threshold cannot be negative")
	}
	if config.workers < 0 {
		return fmt.Errorf("worker count cannot be negative")
	}
	if config.pace < 0 {
		return fmt.Errorf("pace cannot be negative")
	}
	if _, err := logrus.ParseLevel(config.logLevel); err != nil {
		return fmt.Errorf("invalid log level %q", config.logLevel)
	}
	return nil
}

// createConfig converts the CLI configuration to the denoiser configuration.
func createConfig(cliConfig *CLIConfig) dctdenoise.Config {
	return dctdenoise.Config{
		ChromaWidth:  cliConfig.chromaWidth,
		ChromaHeight: cliConfig.chromaHeight,
		Threshold:    float32(cliConfig.threshold),
		Preset:       cliConfig.preset,
		Sharpen:      cliConfig.sharpen,
		Device:       cliConfig.device,
		Transform:    cliConfig.transform,
		Workers:      cliConfig.workers,
		KernelPath:   cliConfig.kernelPath,
		Pace:         cliConfig.pace,
		Strict:       cliConfig.strict,
	}
}

// setupLogging sends logs to stderr; stdout carries video.
func setupLogging(level string) {
	logrus.SetOutput(os.Stderr)
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	if lvl, err := logrus.ParseLevel(level); err == nil {
		logrus.SetLevel(lvl)
	}
}

// setupSignalHandling stops the stream at the next frame boundary on interrupt.
func setupSignalHandling(cancel context.CancelFunc) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt)

	go func() {
		sig := <-sigChan
		logrus.WithFields(logrus.Fields{
			"function": "setupSignalHandling",
			"signal":   sig.String(),
		}).Warn("Interrupted, stopping after the current frame")
		cancel()
	}()
}

// run executes the command and returns its exit code.
func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	cliConfig, fs, err := parseCLIFlags(args, stderr)
	if errors.Is(err, flag.ErrHelp) {
		printUsage(stderr, fs)
		return 0
	}
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		printUsage(stderr, fs)
		return 1
	}
	if cliConfig.help {
		printUsage(stderr, fs)
		return 0
	}
	if err := validateCLIConfig(cliConfig); err != nil {
		fmt.Fprintf(stderr, "Configuration error: %v\n", err)
		fmt.Fprintln(stderr, "Use -help for usage information.")
		return 1
	}
	setupLogging(cliConfig.logLevel)

	denoiser, err := dctdenoise.New(createConfig(cliConfig))
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "run",
			"context":  "setup",
			"device":   cliConfig.device,
			"error":    err.Error(),
		}).Error("Failed to initialize denoiser")
		return 1
	}
	defer denoiser.Close()

	if _, err := denoiser.Run(ctx, stdin, stdout); err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "run",
			"context":  "stream",
			"error":    err.Error(),
		}).Error("Denoising failed")
		return 1
	}
	return 0
}

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	setupSignalHandling(cancel)

	code := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
	cancel()
	os.Exit(code)
}
