package catalogue

import "slices"

// ChangeType is the kind of a queued catalogue edit
type ChangeType string

const (
	ChangeAdd    ChangeType = "add"
	ChangeUpdate ChangeType = "update"
	ChangeDelete ChangeType = "delete"
)

// Change is one queued add, update or delete
type Change struct {
	Type    ChangeType `json:"type" validate:"required,oneof=add update delete"`
	ID      int64      `json:"id,omitempty"`
	Data    *Item      `json:"data,omitempty"`
	Updates Fields     `json:"updates,omitempty"`
}

// NewAdd returns a change that appends item
func NewAdd(item Item) Change {
	return Change{Type: ChangeAdd, Data: &item}
}

// NewUpdate returns a change that merges updates into the item with the given ID
func NewUpdate(id int64, updates Fields) Change {
	return Change{Type: ChangeUpdate, ID: id, Updates: updates}
}

// NewDelete returns a change that removes the item with the given ID
func NewDelete(id int64) Change {
	return Change{Type: ChangeDelete, ID: id}
}

// ApplyStats counts the changes that took effect
type ApplyStats struct {
	Added   int `json:"added"`
	Updated int `json:"updated"`
	Deleted int `json:"deleted"`
}

// Total returns the number of effective changes
func (s ApplyStats) Total() int {
	return s.Added + s.Updated + s.Deleted
}

// ApplyResult is the reconciled catalogue
type ApplyResult struct {
	Items []Item
	Stats ApplyStats
}

// Apply replays changes over items in order. Adds of a known ID, and updates or
// deletes of an unknown ID, are skipped and not counted. The input slice is not modified.
func Apply(items []Item, changes []Change) ApplyResult {
	out := slices.Clone(items)
	var stats ApplyStats

	for _, ch := range changes {
		switch ch.Type {
		case ChangeAdd:
			if ch.Data == nil || IndexOf(out, ch.Data.ID) >= 0 {
				continue
			}
			out = append(out, *ch.Data)
			stats.Added++
		case ChangeUpdate:
			i := IndexOf(out, ch.ID)
			if i < 0 {
				continue
			}
			merged, err := MergeFields(out[i], ch.Updates)
			if err != nil {
				continue
			}
			out[i] = merged
			stats.Updated++
		case ChangeDelete:
			i := IndexOf(out, ch.ID)
			if i < 0 {
				continue
			}
			out = slices.Delete(out, i, i+1)
			stats.Deleted++
		}
	}

	if out == nil {
		out = []Item{}
	}
	return ApplyResult{Items: out, Stats: stats}
}

// IndexOf returns the position of the first item with the given ID, or -1
func IndexOf(items []Item, id int64) int {
	return slices.IndexFunc(items, func(it Item) bool { return it.ID == id })
}
