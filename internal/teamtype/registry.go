// Package teamtype holds the fixed table of team types. A team type sets a
// team's override priority and how far ahead its members may book.
package teamtype

import (
	"sort"
	"time"
)

type TeamType struct {
	Name               string
	Priority           int64
	AdvanceBookingDays int64
	// Elevated types can only be assigned by users holding team.create.elevated.
	Elevated bool
}

// Outranks reports whether t may override a reservation held by other.
// Equal priority never outranks.
func (t TeamType) Outranks(other TeamType) bool {
	return t.Priority > other.Priority
}

// Horizon returns the latest start time a team of this type may book from now.
func (t TeamType) Horizon(now time.Time) time.Time {
	return now.AddDate(0, 0, int(t.AdvanceBookingDays))
}

var registry = map[string]TeamType{
	"single":         {Name: "single", Priority: 1, AdvanceBookingDays: 14},
	"other_team":     {Name: "other_team", Priority: 1, AdvanceBookingDays: 14},
	"senior_project": {Name: "senior_project", Priority: 5, AdvanceBookingDays: 60},
	"class":          {Name: "class", Priority: 10, AdvanceBookingDays: 180, Elevated: true},
}

func Lookup(name string) (TeamType, bool) {
	t, ok := registry[name]
	return t, ok
}

// All returns every registered team type sorted by name.
func All() []TeamType {
	types := make([]TeamType, 0, len(registry))
	for _, t := range registry {
		types = append(types, t)
	}
	sort.Slice(types, func(i, j int) bool {
		return types[i].Name < types[j].Name
	})
	return types
}
