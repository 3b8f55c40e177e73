package schema

import (
	"strconv"
	"strings"
	"time"

	"github.com/ajitpratap0/crossbar/pkg/errors"
)

// The generic delimited-text encoding represents NULL as an empty field and
// every other value in the textual forms accepted below.

var timestampLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
}

var timestampTZLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02T15:04:05.999999999Z07",
	"2006-01-02 15:04:05.999999999Z07",
	"2006-01-02T15:04:05.999999999-0700",
	"2006-01-02 15:04:05.999999999-0700",
}

// ParseBool accepts the boolean spellings commonly produced by databases
func ParseBool(s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "t", "yes", "y", "on", "1":
		return true, nil
	case "false", "f", "no", "n", "off", "0":
		return false, nil
	}
	return false, errors.Newf(errors.ErrorTypeData, "cannot parse %q as a boolean", s)
}

// ParseDate parses a YYYY-MM-DD date
func ParseDate(s string) (time.Time, error) {
	d, err := time.Parse("2006-01-02", strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, errors.Wrapf(err, errors.ErrorTypeData, "cannot parse %q as a date", s)
	}
	return d, nil
}

// ParseTimestamp parses a timestamp without a time zone. The result is in UTC.
func ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timestampLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, errors.Newf(errors.ErrorTypeData, "cannot parse %q as a timestamp", s)
}

// ParseTimestampTZ parses a timestamp carrying a UTC offset and converts it to UTC
func ParseTimestampTZ(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timestampTZLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts.UTC(), nil
		}
	}
	return time.Time{}, errors.Newf(errors.ErrorTypeData, "cannot parse %q as a timestamp with time zone", s)
}

// ParseInt parses a signed integer that must fit in bits
func ParseInt(s string, bits int) (int64, error) {
	n, err := strconv.ParseInt(strings.TrimSpace(s), 10, bits)
	if err != nil {
		return 0, errors.Wrapf(err, errors.ErrorTypeData, "cannot parse %q as int%d", s, bits)
	}
	return n, nil
}

// ParseFloat parses a float of the given size
func ParseFloat(s string, bits int) (float64, error) {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), bits)
	if err != nil {
		return 0, errors.Wrapf(err, errors.ErrorTypeData, "cannot parse %q as float%d", s, bits)
	}
	return f, nil
}
