// Package regions holds the administrative regions the service files
// paperwork for.
package regions

import (
	"errors"
	"fmt"
	"sort"
)

var ErrUnsupported = errors.New("unsupported region")

const (
	Kita    = 17
	Arakawa = 18
	Edogawa = 23
)

var names = map[int]string{
	Kita:    "北区",
	Arakawa: "荒川区",
	Edogawa: "江戸川区",
}

// Name returns the display name of a region.
func Name(id int) (string, error) {
	n, ok := names[id]
	if !ok {
		return "", fmt.Errorf("region %d: %w", id, ErrUnsupported)
	}
	return n, nil
}

// Known returns every region id with a display name, ascending.
func Known() []int {
	out := make([]int, 0, len(names))
	for id := range names {
		out = append(out, id)
	}
	sort.Ints(out)
	return out
}

// Dir returns the template directory name for a region, e.g. "23_江戸川区".
func Dir(id int) (string, error) {
	n, err := Name(id)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%d_%s", id, n), nil
}
