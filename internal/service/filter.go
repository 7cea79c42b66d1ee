package service

import (
	"strings"

	"github.com/waterette/waterette/internal/model"
)

// FilterMode selects which slice of the feed a viewer sees.
type FilterMode string

const (
	// FilterAll shows every event.
	FilterAll FilterMode = "all"
	// FilterAvailable shows events the viewer can still join: not already
	// a member, and not full.
	FilterAvailable FilterMode = "available"
	// FilterMine shows only events the viewer has joined (including ones
	// they host).
	FilterMine FilterMode = "mine"
)

// ParseFilterMode maps a query-string value onto a FilterMode.
// Unknown or empty values fall back to FilterAll.
func ParseFilterMode(s string) FilterMode {
	switch FilterMode(s) {
	case FilterAvailable:
		return FilterAvailable
	case FilterMine:
		return FilterMine
	default:
		return FilterAll
	}
}

// Filter narrows an event list by search query and filter mode, preserving
// the input order. joined is the set of event IDs the viewer belongs to;
// it may be nil for anonymous viewers, in which case "available" means
// "not full" and "mine" matches nothing.
//
// The query is matched case-insensitively as a substring of the title,
// location, or description.
func Filter(events []model.Event, query string, mode FilterMode, joined map[string]bool) []model.Event {
	query = strings.ToLower(strings.TrimSpace(query))

	out := make([]model.Event, 0, len(events))
	for _, e := range events {
		if query != "" && !matchesQuery(&e, query) {
			continue
		}
		switch mode {
		case FilterAvailable:
			if joined[e.ID] || e.IsFull() {
				continue
			}
		case FilterMine:
			if !joined[e.ID] {
				continue
			}
		}
		out = append(out, e)
	}
	return out
}

func matchesQuery(e *model.Event, query string) bool {
	return strings.Contains(strings.ToLower(e.Title), query) ||
		strings.Contains(strings.ToLower(e.Location), query) ||
		strings.Contains(strings.ToLower(e.Description), query)
}
