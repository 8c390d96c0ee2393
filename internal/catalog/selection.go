package catalog

import (
	"slices"
	"strings"

	"bankfees/internal/core"
)

// MaxSelection is the number of banks that can be compared side by side.
const MaxSelection = 3

// Selection is an ordered set of bank IDs chosen for comparison. Methods return
// new values; a Selection is never modified in place.
type Selection struct {
	ids []string
}

// ParseSelection reads a comma-separated ID list, trimming blanks and dropping
// duplicates.
func ParseSelection(s string) (Selection, error) {
	var ids []string
	for _, part := range strings.Split(s, ",") {
		id := strings.TrimSpace(part)
		if id == "" || slices.Contains(ids, id) {
			continue
		}
		ids = append(ids, id)
	}
	if len(ids) == 0 {
		return Selection{}, core.ErrEmptySelection
	}
	if len(ids) > MaxSelection {
		return Selection{}, core.ErrSelectionLimit
	}
	return Selection{ids: ids}, nil
}

// IDs returns a copy of the selected IDs in selection order.
func (s Selection) IDs() []string {
	return slices.Clone(s.ids)
}

func (s Selection) Len() int { return len(s.ids) }

func (s Selection) Contains(id string) bool {
	return slices.Contains(s.ids, id)
}

// Toggle removes id if selected, otherwise appends it. Adding to a full
// selection returns s unchanged.
func (s Selection) Toggle(id string) Selection {
	id = strings.TrimSpace(id)
	if id == "" {
		return s
	}
	if i := slices.Index(s.ids, id); i >= 0 {
		return Selection{ids: slices.Delete(slices.Clone(s.ids), i, i+1)}
	}
	if len(s.ids) >= MaxSelection {
		return s
	}
	return Selection{ids: append(slices.Clone(s.ids), id)}
}

// Query renders the selection as the value of the banks query parameter.
func (s Selection) Query() string {
	return strings.Join(s.ids, ",")
}
