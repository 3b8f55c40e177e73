// Package registry maps locator schemes to the drivers that parse them.
// Drivers register themselves from init; import pkg/connector/all to get
// every built-in driver.
package registry

import (
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/ajitpratap0/crossbar/pkg/errors"
	"github.com/ajitpratap0/crossbar/pkg/locator"
	"github.com/ajitpratap0/crossbar/pkg/logger"
)

// ParseFunc parses a full locator string, scheme included
type ParseFunc func(s string) (locator.Locator, error)

// Driver describes a registered backend
type Driver struct {
	Kind locator.Kind
	// Features is a short human-readable capability summary
	Features []string
	Parse    ParseFunc
}

// Registry manages driver registration and locator parsing
type Registry struct {
	drivers map[locator.Kind]Driver
	mu      sync.RWMutex
}

// Global registry instance
var globalRegistry = NewRegistry()

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{drivers: make(map[locator.Kind]Driver)}
}

// Register adds a driver
func (r *Registry) Register(d Driver) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.drivers[d.Kind]; exists {
		return errors.Newf(errors.ErrorTypeConfig, "driver %s already registered", d.Kind)
	}
	r.drivers[d.Kind] = d
	logger.Debug("driver registered", zap.String("scheme", string(d.Kind)))
	return nil
}

// Parse finds the driver for s's scheme and parses s with it
func (r *Registry) Parse(s string) (locator.Locator, error) {
	scheme, _, ok := strings.Cut(s, ":")
	if !ok || scheme == "" {
		return nil, errors.Newf(errors.ErrorTypeParse, "locator %q has no scheme", s)
	}

	r.mu.RLock()
	d, exists := r.drivers[locator.Kind(scheme)]
	r.mu.RUnlock()

	if !exists {
		return nil, errors.Newf(errors.ErrorTypeParse, "unknown locator scheme %q", scheme).WithDetail("locator", s)
	}
	loc, err := d.Parse(s)
	if err != nil {
		if errors.IsType(err, errors.ErrorTypeParse) {
			return nil, err
		}
		return nil, errors.Wrapf(err, errors.ErrorTypeParse, "cannot parse locator %q", s)
	}
	return loc, nil
}

// Drivers returns the registered drivers sorted by scheme
func (r *Registry) Drivers() []Driver {
	r.mu.RLock()
	defer r.mu.RUnlock()

	drivers := make([]Driver, 0, len(r.drivers))
	for _, d := range r.drivers {
		drivers = append(drivers, d)
	}
	sort.Slice(drivers, func(i, j int) bool { return drivers[i].Kind < drivers[j].Kind })
	return drivers
}

// Has reports whether a driver for kind is registered
func (r *Registry) Has(kind locator.Kind) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, exists := r.drivers[kind]
	return exists
}

// Global registry functions

// Register adds a driver to the global registry. It panics on duplicates,
// which can only happen through a programming error in an init function.
func Register(d Driver) {
	if err := globalRegistry.Register(d); err != nil {
		panic(err)
	}
}

// Parse parses s using the global registry
func Parse(s string) (locator.Locator, error) {
	return globalRegistry.Parse(s)
}

// Drivers lists the drivers in the global registry
func Drivers() []Driver {
	return globalRegistry.Drivers()
}

// Has checks the global registry
func Has(kind locator.Kind) bool {
	return globalRegistry.Has(kind)
}
