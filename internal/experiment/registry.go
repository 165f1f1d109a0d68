package experiment

import (
	"fmt"
	"sort"

	"github.com/samber/lo"

	"github.com/san-kum/impactgen/internal/config"
	"github.com/san-kum/impactgen/internal/scenario"
	"github.com/san-kum/impactgen/internal/space"
)

// Builder constructs a category's option space for one run.
type Builder func(cfg *config.Config, geom scenario.Geometry, seed uint64) (*scenario.Category, error)

type Registry struct {
	categories map[string]Builder
}

func NewRegistry() *Registry {
	r := &Registry{categories: make(map[string]Builder)}
	for _, name := range scenario.Names {
		r.categories[name] = standard(name)
	}
	return r
}

// standard builds a category from the configured space and the level layout.
func standard(name string) Builder {
	return func(cfg *config.Config, geom scenario.Geometry, seed uint64) (*scenario.Category, error) {
		spec, ok := cfg.Spaces[name]
		if !ok {
			return nil, fmt.Errorf("no space configured for category: %s", name)
		}
		layout, ok := geom.Layout(name)
		if !ok {
			return nil, fmt.Errorf("level %s has no layout for category: %s", geom.Level, name)
		}
		strategy, err := cfg.SpaceStrategy()
		if err != nil {
			return nil, err
		}

		opts := []space.Option{space.WithSeed(seed), space.WithStrategy(strategy)}
		if cfg.FullCoverage {
			opts = append(opts, space.WithFullCoverage())
		}
		return scenario.New(name, spec, layout, cfg.Parts, opts...)
	}
}

func (r *Registry) Register(name string, b Builder) {
	r.categories[name] = b
}

func (r *Registry) Get(name string) (Builder, error) {
	b, ok := r.categories[name]
	if !ok {
		return nil, fmt.Errorf("unknown category: %s", name)
	}
	return b, nil
}

func (r *Registry) List() []string {
	names := lo.Keys(r.categories)
	sort.Strings(names)
	return names
}

// Build constructs every enabled category. Each gets its own seed derived
// from the configured one, so categories never share a random stream.
func (r *Registry) Build(cfg *config.Config, geom scenario.Geometry) ([]*scenario.Category, error) {
	cats := make([]*scenario.Category, 0, len(cfg.Categories))
	for i, name := range cfg.Categories {
		b, err := r.Get(name)
		if err != nil {
			return nil, err
		}
		cat, err := b(cfg, geom, cfg.Seed+uint64(i))
		if err != nil {
			return nil, fmt.Errorf("build %s: %w", name, err)
		}
		cats = append(cats, cat)
	}
	return cats, nil
}
