package formation

import "github.com/railsim/formation/pkg/core"

// Entry is one car's membership record inside a formation.
type Entry struct {
	Car     core.Car
	EntryID int
	Dir     core.Orientation
}

// reindex returns a copy of entries in which every non-nil entry's EntryID
// equals its index. Length and empty slots are preserved; the input is not
// modified.
func reindex(entries []*Entry) []*Entry {
	out := make([]*Entry, len(entries))
	for i, e := range entries {
		if e == nil {
			continue
		}
		c := *e
		c.EntryID = i
		out[i] = &c
	}
	return out
}
