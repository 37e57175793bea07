// Package schedule defines the clinic's fixed branches, weekdays and one-hour slots,
// and the catalog that says which branch works on which day.
package schedule

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ErrInvalidArgument reports a branch, day or slot value outside its enumeration.
// It signals a bug in the caller, not a scheduling condition.
var ErrInvalidArgument = errors.New("invalid argument")

// Branch is a clinic location.
type Branch uint8

const (
	BranchSialkot Branch = iota + 1
	BranchLahore
)

var branchNames = map[Branch]string{
	BranchSialkot: "Sialkot",
	BranchLahore:  "Lahore",
}

// Branches returns every branch in canonical order.
func Branches() []Branch {
	return []Branch{BranchSialkot, BranchLahore}
}

// Valid reports whether b is a member of the enumeration.
func (b Branch) Valid() bool {
	_, ok := branchNames[b]
	return ok
}

func (b Branch) String() string {
	if name, ok := branchNames[b]; ok {
		return name
	}
	return fmt.Sprintf("Branch(%d)", uint8(b))
}

// MarshalText implements encoding.TextMarshaler.
func (b Branch) MarshalText() ([]byte, error) {
	if !b.Valid() {
		return nil, fmt.Errorf("%w: branch %d", ErrInvalidArgument, uint8(b))
	}
	return []byte(b.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (b *Branch) UnmarshalText(text []byte) error {
	parsed, err := ParseBranch(string(text))
	if err != nil {
		return err
	}
	*b = parsed
	return nil
}

// ParseBranch resolves a branch name, ignoring case and surrounding spaces.
func ParseBranch(s string) (Branch, error) {
	token := strings.TrimSpace(s)
	for _, b := range Branches() {
		if strings.EqualFold(token, b.String()) {
			return b, nil
		}
	}
	return 0, fmt.Errorf("%w: unknown branch %q", ErrInvalidArgument, s)
}

// Day is a day of the week. Monday is first, matching the clinic's weekly order.
type Day uint8

const (
	Monday Day = iota + 1
	Tuesday
	Wednesday
	Thursday
	Friday
	Saturday
	Sunday
)

// Days returns the week in order, Monday first.
func Days() []Day {
	return []Day{Monday, Tuesday, Wednesday, Thursday, Friday, Saturday, Sunday}
}

// Valid reports whether d is a member of the enumeration.
func (d Day) Valid() bool {
	return d >= Monday && d <= Sunday
}

func (d Day) String() string {
	if !d.Valid() {
		return fmt.Sprintf("Day(%d)", uint8(d))
	}
	return d.Weekday().String()
}

// Short returns the three-letter form ("Mon").
func (d Day) Short() string {
	if !d.Valid() {
		return d.String()
	}
	return d.String()[:3]
}

// Weekday converts d to time.Weekday.
func (d Day) Weekday() time.Weekday {
	return time.Weekday(uint8(d) % 7)
}

// DayOf returns the Day for a time.Weekday.
func DayOf(w time.Weekday) Day {
	if w == time.Sunday {
		return Sunday
	}
	return Day(w)
}

// MarshalText implements encoding.TextMarshaler.
func (d Day) MarshalText() ([]byte, error) {
	if !d.Valid() {
		return nil, fmt.Errorf("%w: day %d", ErrInvalidArgument, uint8(d))
	}
	return []byte(d.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Day) UnmarshalText(text []byte) error {
	parsed, err := ParseDay(string(text))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// ParseDay accepts full ("Monday") or short ("Mon") weekday names in any case.
func ParseDay(s string) (Day, error) {
	token := strings.TrimSpace(s)
	for _, d := range Days() {
		if strings.EqualFold(token, d.String()) || strings.EqualFold(token, d.Short()) {
			return d, nil
		}
	}
	return 0, fmt.Errorf("%w: unknown day %q", ErrInvalidArgument, s)
}

// Slot is a one-hour appointment window shared by all branches.
type Slot uint8

const (
	Slot10to11 Slot = iota + 1
	Slot11to12
	Slot12to13
	Slot13to14
	Slot16to17
	Slot17to18
	Slot18to19
	Slot19to20
)

// slotStartHours holds the 24h start hour of each slot; every slot lasts one hour.
var slotStartHours = map[Slot]int{
	Slot10to11: 10,
	Slot11to12: 11,
	Slot12to13: 12,
	Slot13to14: 13,
	Slot16to17: 16,
	Slot17to18: 17,
	Slot18to19: 18,
	Slot19to20: 19,
}

// Slots returns every slot in chronological order.
func Slots() []Slot {
	return []Slot{Slot10to11, Slot11to12, Slot12to13, Slot13to14, Slot16to17, Slot17to18, Slot18to19, Slot19to20}
}

// Valid reports whether s is a member of the enumeration.
func (s Slot) Valid() bool {
	_, ok := slotStartHours[s]
	return ok
}

// StartHour is the 24h hour the slot begins.
func (s Slot) StartHour() int {
	return slotStartHours[s]
}

// EndHour is the 24h hour the slot ends.
func (s Slot) EndHour() int {
	if !s.Valid() {
		return 0
	}
	return slotStartHours[s] + 1
}

// String returns the compact token, e.g. "10-11".
func (s Slot) String() string {
	if !s.Valid() {
		return fmt.Sprintf("Slot(%d)", uint8(s))
	}
	return fmt.Sprintf("%d-%d", s.StartHour(), s.EndHour())
}

// Label returns the spoken form, e.g. "10:00 AM - 11:00 AM".
func (s Slot) Label() string {
	if !s.Valid() {
		return s.String()
	}
	return clock12(s.StartHour()) + " - " + clock12(s.EndHour())
}

// On returns the slot's start and end on the given date, in the date's location.
func (s Slot) On(date time.Time) (start, end time.Time) {
	y, m, d := date.Date()
	start = time.Date(y, m, d, s.StartHour(), 0, 0, 0, date.Location())
	return start, start.Add(time.Hour)
}

// MarshalText implements encoding.TextMarshaler.
func (s Slot) MarshalText() ([]byte, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("%w: slot %d", ErrInvalidArgument, uint8(s))
	}
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Slot) UnmarshalText(text []byte) error {
	parsed, err := ParseSlot(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// ParseSlot accepts "10-11", "10:00-11:00", "16:00 - 17:00" and the spoken
// "04:00 PM - 05:00 PM". Hours without AM/PM below 8 are read as afternoon,
// so "1-2" is the 13-14 slot.
func ParseSlot(s string) (Slot, error) {
	token := strings.ToLower(strings.Join(strings.Fields(s), ""))
	token = strings.ReplaceAll(token, "–", "-")
	parts := strings.Split(token, "-")
	if len(parts) != 2 {
		return 0, fmt.Errorf("%w: unknown slot %q", ErrInvalidArgument, s)
	}

	start, err := parseHour(parts[0])
	if err != nil {
		return 0, fmt.Errorf("%w: unknown slot %q", ErrInvalidArgument, s)
	}
	end, err := parseHour(parts[1])
	if err != nil {
		return 0, fmt.Errorf("%w: unknown slot %q", ErrInvalidArgument, s)
	}

	for _, slot := range Slots() {
		if slot.StartHour() == start && slot.EndHour() == end {
			return slot, nil
		}
	}
	return 0, fmt.Errorf("%w: unknown slot %q", ErrInvalidArgument, s)
}

func parseHour(s string) (int, error) {
	meridiem := ""
	switch {
	case strings.HasSuffix(s, "am"):
		meridiem, s = "am", strings.TrimSuffix(s, "am")
	case strings.HasSuffix(s, "pm"):
		meridiem, s = "pm", strings.TrimSuffix(s, "pm")
	}

	hourPart, minutePart, hasMinutes := strings.Cut(s, ":")
	if hasMinutes && minutePart != "00" {
		return 0, fmt.Errorf("slots start on the hour, got %q", s)
	}

	hour, err := strconv.Atoi(hourPart)
	if err != nil {
		return 0, fmt.Errorf("invalid hour %q: %w", hourPart, err)
	}
	if hour < 0 || hour > 23 {
		return 0, fmt.Errorf("hour out of range: %d", hour)
	}

	switch meridiem {
	case "am":
		if hour == 12 {
			hour = 0
		}
	case "pm":
		if hour < 12 {
			hour += 12
		}
	default:
		if hour < 8 {
			hour += 12
		}
	}
	return hour, nil
}

func clock12(hour int) string {
	suffix := "AM"
	if hour >= 12 {
		suffix = "PM"
	}
	h := hour % 12
	if h == 0 {
		h = 12
	}
	return fmt.Sprintf("%02d:00 %s", h, suffix)
}
