package gpu

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"github.com/opd-ai/dctdenoise/device"
)

//go:embed kernels.wgsl
var defaultCatalog string

// Entry points every catalog must define.
const (
	EntryPatches   = "dct_denoise"
	EntryNormalize = "normalize"
	EntryUnsharpH  = "unsharp_h"
	EntryUnsharpV  = "unsharp_v"
)

// Entries lists the catalog entry points in pipeline creation order.
var Entries = []string{EntryPatches, EntryNormalize, EntryUnsharpH, EntryUnsharpV}

// Workgroup sizes declared by the catalog.
const (
	patchGroup = 8
	pixelGroup = 16
)

// coeffsTapsOffset is where the unsharp taps start in the coefficient buffer.
// It equals transform.MaxSize squared.
const coeffsTapsOffset = 256

// DefaultCatalog returns the embedded WGSL source.
func DefaultCatalog() string { return defaultCatalog }

// LoadCatalog reads the kernel catalog from path, or returns the embedded
// catalog when path is empty.
func LoadCatalog(path string) (string, error) {
	if path == "" {
		return defaultCatalog, nil
	}
	src, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("%w: read %s: %v", device.ErrCompile, path, err)
	}
	if err := CheckCatalog(string(src)); err != nil {
		return "", err
	}
	return string(src), nil
}

// CheckCatalog reports entry points missing from a catalog source before it
// reaches the shader compiler.
func CheckCatalog(src string) error {
	var missing []string
	for _, entry := range Entries {
		if !strings.Contains(src, "fn "+entry+"(") {
			missing = append(missing, entry)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: catalog lacks entry points %s", device.ErrCompile, strings.Join(missing, ", "))
	}
	return nil
}

func groups(n, size int) uint32 {
	return uint32((n + size - 1) / size) //nolint:gosec // plane dimensions fit uint32
}
