package transform

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// MaxSize is the largest supported patch edge.
const MaxSize = 16

var (
	// ErrUnknownTransform indicates a transform name with no registered factory.
	ErrUnknownTransform = errors.New("unknown transform")

	// ErrInvalidSize indicates a patch size outside [2, MaxSize].
	ErrInvalidSize = errors.New("invalid patch size")
)

// Transform is the opaque per-patch operation of the denoiser.
type Transform interface {
	// Name returns the registry name of the strategy.
	Name() string
	// Size returns the patch edge the transform was built for.
	Size() int
	// Apply rewrites a Size()*Size() row-major patch in place and returns the
	// patch weight for weighted overlap-add. It must be safe for concurrent
	// use on distinct patches.
	Apply(patch []float32, threshold float32) float32
}

// Factory builds a transform for one patch size.
type Factory func(size int) (Transform, error)

var factories = map[string]Factory{
	"dct":      func(size int) (Transform, error) { return NewDCT(size) },
	"identity": func(size int) (Transform, error) { return NewIdentity(size) },
}

// New resolves a transform by name.
func New(name string, size int) (Transform, error) {
	factory, ok := factories[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q (available: %s)", ErrUnknownTransform, name, strings.Join(Names(), ", "))
	}
	return factory(size)
}

// Names lists the registered transform names in sorted order.
func Names() []string {
	names := make([]string, 0, len(factories))
	for name := range factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func validateSize(size int) error {
	if size < 2 || size > MaxSize {
		return fmt.Errorf("%w: %d (must be within 2..%d)", ErrInvalidSize, size, MaxSize)
	}
	return nil
}

// Identity is the no-op transform.
type Identity struct {
	size int
}

// NewIdentity creates an identity transform for size x size patches.
func NewIdentity(size int) (*Identity, error) {
	if err := validateSize(size); err != nil {
		return nil, err
	}
	return &Identity{size: size}, nil
}

// Name returns "identity".
func (t *Identity) Name() string { return "identity" }

// Size returns the patch edge.
func (t *Identity) Size() int { return t.size }

// Apply leaves the patch unchanged and weighs it 1.
func (t *Identity) Apply(_ []float32, _ float32) float32 { return 1 }
