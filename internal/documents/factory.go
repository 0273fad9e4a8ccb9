package documents

import (
	"fmt"
	"sort"

	"github.com/tomohito-hyodo01/jujo-discord-app/internal/regions"
)

// registry maps a region id to its strategy constructor. Supporting a new
// region is one line here plus its templates.
var registry = map[int]func(Env) Strategy{
	regions.Edogawa: func(env Env) Strategy { return NewEdogawa(env) },
}

type Factory struct {
	env Env
}

func NewFactory(env Env) *Factory { return &Factory{env: env} }

func (f *Factory) Create(regionID int) (Strategy, error) {
	ctor, ok := registry[regionID]
	if !ok {
		return nil, fmt.Errorf("no document strategy for region %d: %w", regionID, regions.ErrUnsupported)
	}
	return ctor(f.env), nil
}

// SupportedRegions returns the region ids with a strategy, ascending.
func (f *Factory) SupportedRegions() []int {
	out := make([]int, 0, len(registry))
	for id := range registry {
		out = append(out, id)
	}
	sort.Ints(out)
	return out
}
