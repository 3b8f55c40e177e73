package locator

import (
	"sort"
	"strings"

	"github.com/ajitpratap0/crossbar/pkg/errors"
)

// IfExists decides what happens to a destination that already exists
type IfExists int

const (
	// IfExistsError fails if the destination exists
	IfExistsError IfExists = iota
	// IfExistsAppend creates the destination if needed and adds to it
	IfExistsAppend
	// IfExistsOverwrite replaces the destination
	IfExistsOverwrite
)

func (i IfExists) String() string {
	switch i {
	case IfExistsAppend:
		return "append"
	case IfExistsOverwrite:
		return "overwrite"
	default:
		return "error"
	}
}

// ParseIfExists parses "error", "append" or "overwrite"
func ParseIfExists(s string) (IfExists, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "error", "":
		return IfExistsError, nil
	case "append":
		return IfExistsAppend, nil
	case "overwrite":
		return IfExistsOverwrite, nil
	}
	return IfExistsError, errors.Newf(errors.ErrorTypeParse, "unknown if-exists policy %q (expected error, append or overwrite)", s)
}

// Set implements pflag.Value
func (i *IfExists) Set(s string) error {
	v, err := ParseIfExists(s)
	if err != nil {
		return err
	}
	*i = v
	return nil
}

// Type implements pflag.Value
func (i *IfExists) Type() string {
	return "if-exists"
}

// Query restricts what LocalData extracts
type Query struct {
	Where string
}

// IsEmpty reports whether the query selects everything
func (q Query) IsEmpty() bool {
	return strings.TrimSpace(q.Where) == ""
}

// RejectUnless returns a capability error when q is not empty. Drivers that
// cannot filter call it with their kind.
func (q Query) RejectUnless(kind Kind) error {
	if q.IsEmpty() {
		return nil
	}
	return errors.Newf(errors.ErrorTypeCapability, "%s does not support --where", kind)
}

// DriverArgs are backend-specific settings. Only the owning driver reads them.
type DriverArgs map[string]string

// ParseDriverArgs parses "key=value" pairs
func ParseDriverArgs(pairs []string) (DriverArgs, error) {
	args := make(DriverArgs, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			return nil, errors.Newf(errors.ErrorTypeParse, "driver argument %q is not of the form key=value", pair)
		}
		args[key] = value
	}
	return args, nil
}

// Get returns the value for key or def when unset
func (a DriverArgs) Get(key, def string) string {
	if v, ok := a[key]; ok {
		return v
	}
	return def
}

// Keys returns the argument names in sorted order
func (a DriverArgs) Keys() []string {
	keys := make([]string, 0, len(a))
	for k := range a {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
