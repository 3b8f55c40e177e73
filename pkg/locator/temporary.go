package locator

import (
	"strings"

	"github.com/ajitpratap0/crossbar/pkg/errors"
)

// TemporaryStorage lists the locations where a transfer may stage data,
// such as "gs://bucket/tmp/" or "s3://bucket/tmp/". At most one location per
// scheme is used.
type TemporaryStorage struct {
	locations []string
}

// NewTemporaryStorage validates locations and returns the storage
func NewTemporaryStorage(locations []string) (*TemporaryStorage, error) {
	t := &TemporaryStorage{}
	for _, loc := range locations {
		loc = strings.TrimSpace(loc)
		if loc == "" {
			continue
		}
		scheme, _, ok := strings.Cut(loc, ":")
		if !ok || scheme == "" {
			return nil, errors.Newf(errors.ErrorTypeParse, "temporary location %q has no scheme", loc)
		}
		t.locations = append(t.locations, loc)
	}
	return t, nil
}

// Locations returns the configured locations
func (t *TemporaryStorage) Locations() []string {
	if t == nil {
		return nil
	}
	return append([]string(nil), t.locations...)
}

// ForRun returns storage whose locations are directories named runID
// below the configured ones, so concurrent transfers never share files.
func (t *TemporaryStorage) ForRun(runID string) *TemporaryStorage {
	if t == nil {
		return &TemporaryStorage{}
	}
	scoped := &TemporaryStorage{locations: make([]string, len(t.locations))}
	for i, loc := range t.locations {
		scoped.locations[i] = JoinDir(loc, runID)
	}
	return scoped
}

// Find returns the first location with the given scheme
func (t *TemporaryStorage) Find(kind Kind) (string, bool) {
	if t == nil {
		return "", false
	}
	prefix := string(kind) + ":"
	for _, loc := range t.locations {
		if strings.HasPrefix(loc, prefix) {
			return loc, true
		}
	}
	return "", false
}

// Resolve is Find returning a capability error when no location of the
// requested kind was configured.
func (t *TemporaryStorage) Resolve(kind Kind) (string, error) {
	if loc, ok := t.Find(kind); ok {
		return loc, nil
	}
	return "", errors.Newf(errors.ErrorTypeCapability, "need a temporary %s: location (pass --temporary=%s://bucket/dir/)", kind, kind)
}

// JoinDir appends name as a directory to loc, keeping exactly one slash
// between them and a trailing slash at the end.
func JoinDir(loc, name string) string {
	if !strings.HasSuffix(loc, "/") {
		loc += "/"
	}
	return loc + strings.Trim(name, "/") + "/"
}
