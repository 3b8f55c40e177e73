package objstore

import (
	"strings"

	"github.com/ajitpratap0/crossbar/pkg/errors"
	"github.com/ajitpratap0/crossbar/pkg/locator"
)

// URL is a bucket and an object key or key prefix
type URL struct {
	Scheme locator.Kind
	Bucket string
	Key    string
}

// ParseURL parses "scheme://bucket/key". An empty key or one ending in '/'
// names a directory.
func ParseURL(kind locator.Kind, s string) (URL, error) {
	prefix := string(kind) + "://"
	if !strings.HasPrefix(s, prefix) {
		return URL{}, errors.Newf(errors.ErrorTypeParse, "expected %q to begin with %s", s, prefix)
	}
	bucket, key, _ := strings.Cut(strings.TrimPrefix(s, prefix), "/")
	if bucket == "" {
		return URL{}, errors.Newf(errors.ErrorTypeParse, "%s locator %q has no bucket", kind, s)
	}
	if strings.Contains(key, "//") {
		return URL{}, errors.Newf(errors.ErrorTypeParse, "%s locator %q contains an empty path segment", kind, s)
	}
	return URL{Scheme: kind, Bucket: bucket, Key: key}, nil
}

// String renders the URL; ParseURL(u.String()) == u
func (u URL) String() string {
	if u.Key == "" {
		return string(u.Scheme) + "://" + u.Bucket + "/"
	}
	return string(u.Scheme) + "://" + u.Bucket + "/" + u.Key
}

// IsDirectory reports whether the URL names a prefix rather than one object
func (u URL) IsDirectory() bool {
	return u.Key == "" || strings.HasSuffix(u.Key, "/")
}

// Join returns the object URL for name under a directory URL
func (u URL) Join(name string) URL {
	return URL{Scheme: u.Scheme, Bucket: u.Bucket, Key: u.Key + strings.TrimPrefix(name, "/")}
}
