package profiler

import (
	"sort"

	"perfhud/internal/match"
)

// Group is one category with its counters in name order.
// Params: category and sorted descriptor list.
// Returns: one export group.
type Group struct {
	Category Category
	Counters []Descriptor
}

// Groups is an ordered category -> counters mapping.
// Params: none.
// Returns: groups sorted by category name.
type Groups []Group

// Lookup returns the counters of one category.
// Params: category to find.
// Returns: sorted counters and false when the category has none.
func (g Groups) Lookup(category Category) ([]Descriptor, bool) {
	for _, group := range g {
		if group.Category == category {
			return group.Counters, true
		}
	}
	return nil, false
}

// Registry enumerates the counters exposed by one Source.
// Params: source queried on every call.
// Returns: counter catalogue views.
type Registry struct {
	source Source
}

// NewRegistry creates a registry over source.
// Params: source exposes counters.
// Returns: registry instance.
func NewRegistry(source Source) *Registry {
	return &Registry{source: source}
}

// ListAvailable returns a snapshot of every counter currently exposed.
// Params: none.
// Returns: descriptor list in source order (empty when source is nil).
func (r *Registry) ListAvailable() []Descriptor {
	if r == nil || r.source == nil {
		return nil
	}
	return r.source.Available()
}

// Sorted returns the available counters sorted by category name, then counter name.
// Params: none.
// Returns: sorted descriptor list.
func (r *Registry) Sorted() []Descriptor {
	return sortDescriptors(r.ListAvailable())
}

// Filter keeps counters whose "Category/Name" key matches any pattern.
// Params: counters input list; patterns '*' wildcards (empty list keeps all).
// Returns: filtered list preserving input order.
func Filter(counters []Descriptor, patterns []string) []Descriptor {
	compiled := match.CompileAll(patterns)
	if len(compiled) == 0 {
		return counters
	}

	out := make([]Descriptor, 0, len(counters))
	for _, desc := range counters {
		if match.Any(compiled, desc.Key()) {
			out = append(out, desc)
		}
	}
	return out
}

// SortedAndGrouped sorts counters by (category name, counter name) and groups them by category.
// Params: counters input list (not modified).
// Returns: groups in category-name order, counters in name order inside each group.
func SortedAndGrouped(counters []Descriptor) Groups {
	sorted := sortDescriptors(counters)

	groups := make(Groups, 0)
	for _, desc := range sorted {
		last := len(groups) - 1
		if last >= 0 && groups[last].Category == desc.Category {
			groups[last].Counters = append(groups[last].Counters, desc)
			continue
		}
		groups = append(groups, Group{Category: desc.Category, Counters: []Descriptor{desc}})
	}
	return groups
}

func sortDescriptors(counters []Descriptor) []Descriptor {
	sorted := make([]Descriptor, len(counters))
	copy(sorted, counters)
	sort.SliceStable(sorted, func(i, j int) bool {
		left, right := sorted[i].Category.String(), sorted[j].Category.String()
		if left != right {
			return left < right
		}
		return sorted[i].Name < sorted[j].Name
	})
	return sorted
}
