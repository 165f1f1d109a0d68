package scenario

import (
	"sort"

	"github.com/samber/lo"

	"github.com/san-kum/impactgen/internal/space"
)

// Empty is the part value that removes a slot's part.
const Empty = ""

// PartCatalog lists the selectable parts per slot. Only slots named in
// Removable are offered the Empty value.
type PartCatalog struct {
	Slots     map[string][]string `yaml:"slots" toml:"slots"`
	Removable []string            `yaml:"removable" toml:"removable"`
}

// SlotNames returns the slot names in axis order.
func (c PartCatalog) SlotNames() []string {
	names := lo.Keys(c.Slots)
	sort.Strings(names)
	return names
}

// Axes returns one axis per slot, in SlotNames order.
func (c PartCatalog) Axes() []space.Axis {
	names := c.SlotNames()
	axes := make([]space.Axis, 0, len(names))
	for _, name := range names {
		options := lo.Uniq(c.Slots[name])
		options = lo.Without(options, Empty)
		if lo.Contains(c.Removable, name) {
			options = append(options, Empty)
		}
		axes = append(axes, space.Strings(options...))
	}
	return axes
}
