package main

import (
	"fmt"
	"io"
	"sort"

	"github.com/ajitpratap0/crossbar/pkg/errors"
)

// Exit codes by error type. Anything else exits 1.
var exitCodes = map[errors.ErrorType]int{
	errors.ErrorTypeParse:          2,
	errors.ErrorTypeValidation:     2,
	errors.ErrorTypeConfig:         2,
	errors.ErrorTypeCapability:     3,
	errors.ErrorTypeSchema:         4,
	errors.ErrorTypeLifecycle:      5,
	errors.ErrorTypeData:           6,
	errors.ErrorTypeAuthentication: 7,
	errors.ErrorTypeNotFound:       8,
	errors.ErrorTypeTimeout:        124,
	errors.ErrorTypeCancelled:      130,
}

func exitCode(err error) int {
	if err == nil {
		return 0
	}
	if code, ok := exitCodes[errors.TypeOf(err)]; ok {
		return code
	}
	return 1
}

// renderError prints err followed by its details, one per line
func renderError(w io.Writer, err error) {
	fmt.Fprintf(w, "crossbar: %v\n", err)
	var e *errors.Error
	if !errors.As(err, &e) || len(e.Details) == 0 {
		return
	}
	keys := make([]string, 0, len(e.Details))
	for k := range e.Details {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(w, "  %s: %v\n", k, e.Details[k])
	}
}
