package models

import (
	"strings"
	"time"
	"unicode/utf8"
)

// Skill types accepted on profiles.
const (
	SkillTypeLanguage   = "language"
	SkillTypeInstrument = "instrument"
)

// Days and Periods compose availability slots of the form "<Day> <Period>".
var (
	Days    = []string{"Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday", "Sunday"}
	Periods = []string{"Morning", "Afternoon", "Evening"}
)

// Profile is the skill-exchange identity of a user, unique per net id.
type Profile struct {
	ID             uint           `gorm:"primaryKey" json:"id"`
	NetID          string         `gorm:"size:64;uniqueIndex;not null" json:"net_id"`
	Name           string         `gorm:"size:120;not null" json:"name"`
	Year           string         `gorm:"size:32" json:"year"`
	College        string         `gorm:"size:64;index" json:"college"`
	Bio            string         `gorm:"type:text" json:"bio"`
	AvatarInitials string         `gorm:"size:16" json:"avatar_initials"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
	Skills         []Skill        `gorm:"constraint:OnDelete:CASCADE" json:"skills,omitempty"`
	Availability   []Availability `gorm:"constraint:OnDelete:CASCADE" json:"availability,omitempty"`
	MeetingSpots   []MeetingSpot  `gorm:"constraint:OnDelete:CASCADE" json:"meeting_spots,omitempty"`
}

// Skill is something a profile can teach or wants to learn.
type Skill struct {
	ID         uint   `gorm:"primaryKey" json:"id"`
	ProfileID  uint   `gorm:"index;not null" json:"profile_id"`
	SkillType  string `gorm:"size:32;not null" json:"skill_type"`
	SkillName  string `gorm:"size:120;not null" json:"skill_name"`
	SkillLevel string `gorm:"size:32" json:"skill_level"`
	IsTeaching bool   `gorm:"not null;default:false" json:"is_teaching"`
}

// Availability is one weekly time slot such as "Monday Evening".
type Availability struct {
	ID        uint   `gorm:"primaryKey" json:"id"`
	ProfileID uint   `gorm:"index;not null" json:"profile_id"`
	TimeSlot  string `gorm:"size:32;not null" json:"time_slot"`
}

// TableName keeps the singular table name used by the client schema.
func (Availability) TableName() string { return "availability" }

// MeetingSpot is a preferred place to meet.
type MeetingSpot struct {
	ID           uint   `gorm:"primaryKey" json:"id"`
	ProfileID    uint   `gorm:"index;not null" json:"profile_id"`
	LocationName string `gorm:"size:120;not null" json:"location_name"`
}

// AvatarInitials concatenates the first letter of each space separated name token.
func AvatarInitials(name string) string {
	var b strings.Builder
	for _, token := range strings.Split(name, " ") {
		if token == "" {
			continue
		}
		r, _ := utf8.DecodeRuneInString(token)
		b.WriteRune(r)
	}
	return b.String()
}

// ValidTimeSlot reports whether slot has the "<Day> <Period>" shape.
func ValidTimeSlot(slot string) bool {
	day, period, ok := strings.Cut(slot, " ")
	if !ok {
		return false
	}
	return containsString(Days, day) && containsString(Periods, period)
}

// SlotPeriod returns the period half of an availability slot.
func SlotPeriod(slot string) string {
	_, period, _ := strings.Cut(slot, " ")
	return period
}

func containsString(items []string, value string) bool {
	for _, item := range items {
		if item == value {
			return true
		}
	}
	return false
}
