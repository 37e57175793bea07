package schedule

import (
	"fmt"
	"sort"
)

// BranchHours lists the days a branch accepts appointments.
type BranchHours struct {
	Branch Branch
	Days   []Day
}

// Catalog is the immutable, read-only description of when each branch works
// and which slots it offers. Safe for concurrent use without locking.
type Catalog struct {
	days  map[Branch]map[Day]struct{}
	slots []Slot
}

// NewCatalog validates hours and slots and builds a catalog. Every branch must
// appear exactly once with at least one day. Slots are stored in chronological
// order regardless of input order.
func NewCatalog(hours []BranchHours, slots []Slot) (*Catalog, error) {
	c := &Catalog{days: make(map[Branch]map[Day]struct{}, len(hours))}

	for i, h := range hours {
		if !h.Branch.Valid() {
			return nil, fmt.Errorf("%w: hours[%d]: branch %d", ErrInvalidArgument, i, uint8(h.Branch))
		}
		if _, dup := c.days[h.Branch]; dup {
			return nil, fmt.Errorf("hours[%d]: duplicate branch %s", i, h.Branch)
		}
		if len(h.Days) == 0 {
			return nil, fmt.Errorf("hours[%d]: branch %s has no operating days", i, h.Branch)
		}

		set := make(map[Day]struct{}, len(h.Days))
		for _, d := range h.Days {
			if !d.Valid() {
				return nil, fmt.Errorf("%w: hours[%d]: day %d", ErrInvalidArgument, i, uint8(d))
			}
			set[d] = struct{}{}
		}
		c.days[h.Branch] = set
	}

	for _, b := range Branches() {
		if _, ok := c.days[b]; !ok {
			return nil, fmt.Errorf("branch %s has no hours defined", b)
		}
	}

	if len(slots) == 0 {
		return nil, fmt.Errorf("no slots defined")
	}
	seen := make(map[Slot]struct{}, len(slots))
	for i, s := range slots {
		if !s.Valid() {
			return nil, fmt.Errorf("%w: slots[%d]: slot %d", ErrInvalidArgument, i, uint8(s))
		}
		if _, dup := seen[s]; dup {
			return nil, fmt.Errorf("slots[%d]: duplicate slot %s", i, s)
		}
		seen[s] = struct{}{}
		c.slots = append(c.slots, s)
	}
	sort.Slice(c.slots, func(i, j int) bool {
		return c.slots[i].StartHour() < c.slots[j].StartHour()
	})

	return c, nil
}

// DefaultCatalog is the reference clinic: Sialkot Monday to Wednesday, Lahore
// Thursday to Saturday, Sunday off, all eight slots.
func DefaultCatalog() *Catalog {
	c, err := NewCatalog([]BranchHours{
		{Branch: BranchSialkot, Days: []Day{Monday, Tuesday, Wednesday}},
		{Branch: BranchLahore, Days: []Day{Thursday, Friday, Saturday}},
	}, Slots())
	if err != nil {
		panic(err)
	}
	return c
}

// IsOperatingDay reports whether branch is open on day.
func (c *Catalog) IsOperatingDay(branch Branch, day Day) (bool, error) {
	if err := checkBranchDay(branch, day); err != nil {
		return false, err
	}
	_, ok := c.days[branch][day]
	return ok, nil
}

// OperatingDays returns the branch's days in weekly order.
func (c *Catalog) OperatingDays(branch Branch) ([]Day, error) {
	if !branch.Valid() {
		return nil, fmt.Errorf("%w: branch %d", ErrInvalidArgument, uint8(branch))
	}
	var days []Day
	for _, d := range Days() {
		if _, ok := c.days[branch][d]; ok {
			days = append(days, d)
		}
	}
	return days, nil
}

// BranchesOpenOn returns, in canonical order, the branches working on day.
func (c *Catalog) BranchesOpenOn(day Day) ([]Branch, error) {
	if !day.Valid() {
		return nil, fmt.Errorf("%w: day %d", ErrInvalidArgument, uint8(day))
	}
	var open []Branch
	for _, b := range Branches() {
		if _, ok := c.days[b][day]; ok {
			open = append(open, b)
		}
	}
	return open, nil
}

// ListSlots returns the offered slots in chronological order. The slice is a
// copy; callers may modify it.
func (c *Catalog) ListSlots() []Slot {
	out := make([]Slot, len(c.slots))
	copy(out, c.slots)
	return out
}

// HasSlot reports whether s is one of the offered slots.
func (c *Catalog) HasSlot(s Slot) bool {
	for _, offered := range c.slots {
		if offered == s {
			return true
		}
	}
	return false
}

func checkBranchDay(branch Branch, day Day) error {
	if !branch.Valid() {
		return fmt.Errorf("%w: branch %d", ErrInvalidArgument, uint8(branch))
	}
	if !day.Valid() {
		return fmt.Errorf("%w: day %d", ErrInvalidArgument, uint8(day))
	}
	return nil
}
