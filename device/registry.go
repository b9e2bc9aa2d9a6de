package device

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
)

// Options configures a backend when it is opened.
type Options struct {
	// Transform names the patch transform of the cpu backend.
	Transform string
	// Workers bounds the cpu backend's parallelism. Zero picks the number of
	// logical cores.
	Workers int
	// KernelPath overrides the gpu backend's embedded kernel catalog.
	KernelPath string
}

// Opener creates a device.
type Opener func(opts Options) (Device, error)

var (
	registryMu sync.RWMutex
	openers    = make(map[string]Opener)
)

// Register makes a backend available under name. It panics on duplicates,
// which can only happen through a programming error at init time.
func Register(name string, open Opener) {
	registryMu.Lock()
	defer registryMu.Unlock()

	if _, dup := openers[name]; dup {
		panic("device: Register called twice for backend " + name)
	}
	openers[name] = open
}

// Backends lists registered backend names in sorted order.
func Backends() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()

	names := make([]string, 0, len(openers))
	for name := range openers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Open creates a device from the named backend.
func Open(name string, opts Options) (Device, error) {
	registryMu.RLock()
	open, ok := openers[name]
	registryMu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %q (available: %s)", ErrNoBackend, name, strings.Join(Backends(), ", "))
	}

	dev, err := open(opts)
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "Open",
			"backend":  name,
			"error":    err.Error(),
		}).Error("Failed to open compute device")
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"function": "Open",
		"backend":  name,
		"device":   dev.Name(),
	}).Info("Compute device opened")

	return dev, nil
}
