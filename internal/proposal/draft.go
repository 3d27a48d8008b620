package proposal

import (
	"strings"
	"time"

	"github.com/noah-isme/skillswap-api/pkg/apperrors"
)

// TimeSlots lists the selectable meeting times in display order.
var TimeSlots = []string{
	"9:00 AM", "9:30 AM", "10:00 AM", "10:30 AM", "11:00 AM", "11:30 AM",
	"12:00 PM", "12:30 PM", "1:00 PM", "1:30 PM", "2:00 PM", "2:30 PM",
	"3:00 PM", "3:30 PM", "4:00 PM", "4:30 PM", "5:00 PM", "5:30 PM",
	"6:00 PM", "6:30 PM", "7:00 PM", "7:30 PM", "8:00 PM", "8:30 PM",
}

// DefaultLocations is offered when the recipient has no preferred meeting spots.
var DefaultLocations = []string{
	"Bass Library",
	"Sterling Memorial Library",
	"Blue State Coffee",
	"Cross Campus",
	"Commons Dining Hall",
	"Schwarzman Center",
}

// LocationsFor returns the meeting spots a proposal may choose from.
func LocationsFor(meetingSpots []string) []string {
	spots := make([]string, 0, len(meetingSpots))
	for _, spot := range meetingSpots {
		if trimmed := strings.TrimSpace(spot); trimmed != "" {
			spots = append(spots, trimmed)
		}
	}
	if len(spots) == 0 {
		return append([]string(nil), DefaultLocations...)
	}
	return spots
}

// Draft composes a proposal step by step: date, then time, then location,
// then an optional note. A step is only accepted once the previous one is set.
type Draft struct {
	locations []string
	now       func() time.Time

	date     string
	slot     string
	location string
	note     string
}

// NewDraft starts a draft offering the given locations.
func NewDraft(locations []string, now func() time.Time) *Draft {
	if now == nil {
		now = time.Now
	}
	return &Draft{locations: LocationsFor(locations), now: now}
}

// Locations returns the meeting spots offered by the draft.
func (d *Draft) Locations() []string {
	return append([]string(nil), d.locations...)
}

func (d *Draft) SelectDate(date string) error {
	date = strings.TrimSpace(date)
	if _, err := time.Parse(DateLayout, date); err != nil {
		return apperrors.Validation("date must use YYYY-MM-DD")
	}
	if date < earliestToday(d.now()) {
		return apperrors.Validation("date must not be in the past")
	}
	d.date = date
	return nil
}

// earliestToday is the calendar date in the furthest-behind zone (UTC-12), so
// a date that is still today for any user is not rejected as past.
func earliestToday(now time.Time) string {
	return now.UTC().Add(-12 * time.Hour).Format(DateLayout)
}

func (d *Draft) SelectTime(slot string) error {
	if d.date == "" {
		return apperrors.Validation("select a date first")
	}
	slot = strings.TrimSpace(slot)
	if !contains(TimeSlots, slot) {
		return apperrors.Validation("time is not an offered slot")
	}
	d.slot = slot
	return nil
}

func (d *Draft) SelectLocation(location string) error {
	if d.slot == "" {
		return apperrors.Validation("select a time first")
	}
	location = strings.TrimSpace(location)
	if !contains(d.locations, location) {
		return apperrors.Validation("location is not one of the offered meeting spots")
	}
	d.location = location
	return nil
}

func (d *Draft) SetNote(note string) error {
	if d.location == "" {
		return apperrors.Validation("select a location first")
	}
	d.note = strings.TrimSpace(note)
	return nil
}

// Ready reports whether every required step has been completed.
func (d *Draft) Ready() bool {
	return d.date != "" && d.slot != "" && d.location != ""
}

// Build returns the pending proposal described by the draft.
func (d *Draft) Build() (Proposal, error) {
	if !d.Ready() {
		return Proposal{}, apperrors.Validation("please select a date, time, and location")
	}
	return Proposal{
		Date:     d.date,
		Time:     d.slot,
		Location: d.location,
		Note:     d.note,
		Status:   StatusPending,
	}, nil
}

// Encode builds the proposal and renders it as a message body.
func (d *Draft) Encode() (string, error) {
	p, err := d.Build()
	if err != nil {
		return "", err
	}
	return Encode(p, d.locations)
}
