package dto

import (
	"time"

	"github.com/noah-isme/skillswap-api/internal/models"
)

// SkillInput describes one skill on a profile form.
type SkillInput struct {
	Type  string `json:"type" validate:"required,oneof=language instrument"`
	Skill string `json:"skill" validate:"required,min=1,max=120"`
	Level string `json:"level" validate:"omitempty,max=32"`
}

// ProfileUpsertRequest is the full profile form. Every save replaces all lists.
type ProfileUpsertRequest struct {
	Name         string       `json:"name" validate:"required,min=1,max=120"`
	Year         string       `json:"year" validate:"omitempty,max=32"`
	College      string       `json:"college" validate:"omitempty,max=64"`
	Bio          string       `json:"bio" validate:"omitempty,max=2000"`
	CanTeach     []SkillInput `json:"can_teach" validate:"omitempty,max=20,dive"`
	WantToLearn  []SkillInput `json:"want_to_learn" validate:"omitempty,max=20,dive"`
	Availability []string     `json:"availability" validate:"omitempty,max=21,dive,required"`
	MeetingSpots []string     `json:"meeting_spots" validate:"omitempty,max=20,dive,required,max=120"`
}

// ProfileSearchQuery captures the directory filters.
type ProfileSearchQuery struct {
	Query        string `query:"q" validate:"omitempty,max=120"`
	SkillType    string `query:"skill_type" validate:"omitempty,oneof=language instrument"`
	College      string `query:"college" validate:"omitempty,max=64"`
	Level        string `query:"level" validate:"omitempty,max=32"`
	Availability string `query:"availability" validate:"omitempty,oneof=Morning Afternoon Evening"`
}

// SkillResponse is one skill in a profile payload.
type SkillResponse struct {
	Type  string `json:"type"`
	Skill string `json:"skill"`
	Level string `json:"level,omitempty"`
}

// ProfileResponse is the full profile, used on profile pages and the chat sidebar.
type ProfileResponse struct {
	ID             uint            `json:"id"`
	NetID          string          `json:"net_id"`
	Name           string          `json:"name"`
	Year           string          `json:"year"`
	College        string          `json:"college"`
	Bio            string          `json:"bio"`
	AvatarInitials string          `json:"avatar_initials"`
	CanTeach       []SkillResponse `json:"can_teach"`
	WantToLearn    []SkillResponse `json:"want_to_learn"`
	Availability   []string        `json:"availability"`
	MeetingSpots   []string        `json:"meeting_spots"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// ProfileSummary is the compact other-participant view on conversation lists.
type ProfileSummary struct {
	NetID          string   `json:"net_id"`
	Name           string   `json:"name"`
	College        string   `json:"college"`
	AvatarInitials string   `json:"avatar_initials"`
	CanTeach       []string `json:"can_teach"`
	WantToLearn    []string `json:"want_to_learn"`
}

// NewProfileResponse converts a profile model with its sub-records into a DTO.
func NewProfileResponse(profile models.Profile) ProfileResponse {
	resp := ProfileResponse{
		ID:             profile.ID,
		NetID:          profile.NetID,
		Name:           profile.Name,
		Year:           profile.Year,
		College:        profile.College,
		Bio:            profile.Bio,
		AvatarInitials: profile.AvatarInitials,
		CanTeach:       []SkillResponse{},
		WantToLearn:    []SkillResponse{},
		Availability:   make([]string, 0, len(profile.Availability)),
		MeetingSpots:   make([]string, 0, len(profile.MeetingSpots)),
		CreatedAt:      profile.CreatedAt,
		UpdatedAt:      profile.UpdatedAt,
	}

	for _, skill := range profile.Skills {
		item := SkillResponse{Type: skill.SkillType, Skill: skill.SkillName, Level: skill.SkillLevel}
		if skill.IsTeaching {
			resp.CanTeach = append(resp.CanTeach, item)
		} else {
			resp.WantToLearn = append(resp.WantToLearn, item)
		}
	}
	for _, slot := range profile.Availability {
		resp.Availability = append(resp.Availability, slot.TimeSlot)
	}
	for _, spot := range profile.MeetingSpots {
		resp.MeetingSpots = append(resp.MeetingSpots, spot.LocationName)
	}

	return resp
}

// NewProfileResponseSlice converts profiles into DTOs.
func NewProfileResponseSlice(profiles []models.Profile) []ProfileResponse {
	out := make([]ProfileResponse, 0, len(profiles))
	for _, profile := range profiles {
		out = append(out, NewProfileResponse(profile))
	}
	return out
}

// NewProfileSummary keeps only the skill names of a profile.
func NewProfileSummary(profile models.Profile) ProfileSummary {
	summary := ProfileSummary{
		NetID:          profile.NetID,
		Name:           profile.Name,
		College:        profile.College,
		AvatarInitials: profile.AvatarInitials,
		CanTeach:       []string{},
		WantToLearn:    []string{},
	}
	for _, skill := range profile.Skills {
		if skill.IsTeaching {
			summary.CanTeach = append(summary.CanTeach, skill.SkillName)
		} else {
			summary.WantToLearn = append(summary.WantToLearn, skill.SkillName)
		}
	}
	return summary
}
