package device

import (
	"fmt"
	"sync"

	"github.com/seattlerb/upnp/pkg/uuidgen"
)

// Class describes a concrete device type: the static service-id
// catalog and the setup hook that attaches services, actions, and
// handlers to a freshly built or freshly loaded tree.
type Class struct {
	Type string

	// ServiceIDs maps a service type to its service id URN. AddService
	// consults this catalog; a missing entry is fatal.
	ServiceIDs map[string]string

	// Setup attaches behavior to the structural tree. It runs for both
	// fresh and loaded devices, since handlers are never persisted.
	Setup func(*Device) error
}

// Registry maps device types to their classes. Concrete devices
// register at program start; Create refuses types it has never seen.
type Registry struct {
	mu      sync.RWMutex
	classes map[string]*Class
}

// NewRegistry creates an empty class registry.
func NewRegistry() *Registry {
	return &Registry{classes: make(map[string]*Class)}
}

// Register adds a device class. Re-registering a type is an error.
func (r *Registry) Register(c Class) error {
	if c.Type == "" {
		return fmt.Errorf("device: class type required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.classes[c.Type]; dup {
		return fmt.Errorf("device: class %s already registered", c.Type)
	}
	r.classes[c.Type] = &c
	return nil
}

// Lookup returns the class for a device type.
func (r *Registry) Lookup(deviceType string) (*Class, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.classes[deviceType]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownType, deviceType)
	}
	return c, nil
}

// Create builds or revives a device of the given type. When a record
// for (type, friendly name) exists under cacheDir the persisted tree
// is loaded — preserving its UUIDs — otherwise a fresh tree is built
// and dumped. The class setup hook runs first, then the caller's
// mutator, then fresh trees are persisted.
func (r *Registry) Create(gen *uuidgen.Generator, cacheDir, deviceType, friendlyName string, fn func(*Device) error) (*Device, error) {
	class, err := r.Lookup(deviceType)
	if err != nil {
		return nil, err
	}

	dev, err := Load(cacheDir, deviceType, friendlyName)
	fresh := false
	switch {
	case err == nil:
	case IsNotCached(err):
		fresh = true
		dev = New(gen, deviceType, friendlyName)
	default:
		return nil, err
	}

	dev.gen = gen
	dev.class = class

	if class.Setup != nil {
		if err := class.Setup(dev); err != nil {
			return nil, fmt.Errorf("device: setup %s: %w", deviceType, err)
		}
	}
	if fn != nil {
		if err := fn(dev); err != nil {
			return nil, err
		}
	}

	if fresh {
		if err := dev.Dump(cacheDir); err != nil {
			return nil, err
		}
	}
	return dev, nil
}
