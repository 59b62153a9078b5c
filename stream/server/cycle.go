package main

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/tmpim/pxl"
)

// parseCycle parses a palette range of the form "first-last". An empty
// string disables cycling.
func parseCycle(s string) (first, last int, err error) {
	if s == "" {
		return 0, 0, nil
	}

	parts := strings.SplitN(s, "-", 2)
	if len(parts) == 2 {
		first, err = strconv.Atoi(parts[0])
		if err == nil {
			last, err = strconv.Atoi(parts[1])
		}
		if err == nil && first >= 0 && first < last && last < pxl.PaletteSize {
			return first, last, nil
		}
	}

	return 0, 0, errors.Wrapf(pxl.ErrInvalidConfiguration, "malformed palette range %q", s)
}
