package service

import (
	"context"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/noah-isme/skillswap-api/internal/dto"
	"github.com/noah-isme/skillswap-api/internal/models"
	"github.com/noah-isme/skillswap-api/internal/repository"
	"github.com/noah-isme/skillswap-api/pkg/apperrors"
)

// ProfileService manages skill-exchange profiles and the user directory.
type ProfileService interface {
	Upsert(ctx context.Context, netID string, req dto.ProfileUpsertRequest) (dto.ProfileResponse, error)
	GetByNetID(ctx context.Context, netID string) (dto.ProfileResponse, error)
	GetByID(ctx context.Context, id uint) (dto.ProfileResponse, error)
	Search(ctx context.Context, viewerID string, query dto.ProfileSearchQuery) ([]dto.ProfileResponse, error)
}

type profileService struct {
	repo      repository.ProfileRepository
	validator *validator.Validate
	sanitizer *bluemonday.Policy
	logger    zerolog.Logger
	tracer    trace.Tracer
}

// NewProfileService constructs the profile service.
func NewProfileService(repo repository.ProfileRepository, validate *validator.Validate, logger zerolog.Logger) ProfileService {
	return &profileService{
		repo:      repo,
		validator: validate,
		sanitizer: bluemonday.StrictPolicy(),
		logger:    logger.With().Str("component", "profile_service").Logger(),
		tracer:    otel.Tracer("github.com/noah-isme/skillswap-api/internal/service/profile"),
	}
}

func (s *profileService) Upsert(ctx context.Context, netID string, req dto.ProfileUpsertRequest) (dto.ProfileResponse, error) {
	netID = normalizeNetID(netID)
	if netID == "" {
		return dto.ProfileResponse{}, apperrors.Unauthorized("authentication required")
	}
	if err := validate(s.validator, req); err != nil {
		return dto.ProfileResponse{}, err
	}

	ctx, span := s.tracer.Start(ctx, "profile.upsert", trace.WithAttributes(attribute.String("profile.net_id", netID)))
	defer span.End()

	name, err := plainText(s.sanitizer, "name", req.Name)
	if err != nil {
		return dto.ProfileResponse{}, err
	}
	if name == "" {
		return dto.ProfileResponse{}, apperrors.Validation("name is required")
	}

	profile := models.Profile{
		NetID:          netID,
		Name:           name,
		AvatarInitials: models.AvatarInitials(name),
	}
	if profile.Year, err = plainText(s.sanitizer, "year", req.Year); err != nil {
		return dto.ProfileResponse{}, err
	}
	if profile.College, err = plainText(s.sanitizer, "college", req.College); err != nil {
		return dto.ProfileResponse{}, err
	}
	if profile.Bio, err = plainText(s.sanitizer, "bio", req.Bio); err != nil {
		return dto.ProfileResponse{}, err
	}

	teaching, err := s.skills(req.CanTeach, true)
	if err != nil {
		return dto.ProfileResponse{}, err
	}
	learning, err := s.skills(req.WantToLearn, false)
	if err != nil {
		return dto.ProfileResponse{}, err
	}
	profile.Skills = append(teaching, learning...)

	seenSlots := make(map[string]struct{}, len(req.Availability))
	for _, slot := range req.Availability {
		slot = strings.TrimSpace(slot)
		if !models.ValidTimeSlot(slot) {
			return dto.ProfileResponse{}, apperrors.Validation("availability slot " + slot + " must look like \"Monday Evening\"")
		}
		if _, dup := seenSlots[slot]; dup {
			continue
		}
		seenSlots[slot] = struct{}{}
		profile.Availability = append(profile.Availability, models.Availability{TimeSlot: slot})
	}

	seenSpots := make(map[string]struct{}, len(req.MeetingSpots))
	for _, spot := range req.MeetingSpots {
		location, err := plainText(s.sanitizer, "meeting spot", spot)
		if err != nil {
			return dto.ProfileResponse{}, err
		}
		if location == "" {
			continue
		}
		if _, dup := seenSpots[strings.ToLower(location)]; dup {
			continue
		}
		seenSpots[strings.ToLower(location)] = struct{}{}
		profile.MeetingSpots = append(profile.MeetingSpots, models.MeetingSpot{LocationName: location})
	}

	stored, err := s.repo.Upsert(ctx, profile)
	if err != nil {
		span.RecordError(err)
		s.logger.Error().Err(err).Str("net_id", netID).Msg("failed to save profile")
		return dto.ProfileResponse{}, err
	}

	return dto.NewProfileResponse(stored), nil
}

func (s *profileService) skills(inputs []dto.SkillInput, teaching bool) ([]models.Skill, error) {
	skills := make([]models.Skill, 0, len(inputs))
	for _, input := range inputs {
		name, err := plainText(s.sanitizer, "skill", input.Skill)
		if err != nil {
			return nil, err
		}
		if name == "" {
			continue
		}
		level, err := plainText(s.sanitizer, "skill level", input.Level)
		if err != nil {
			return nil, err
		}
		skills = append(skills, models.Skill{
			SkillType:  strings.ToLower(strings.TrimSpace(input.Type)),
			SkillName:  name,
			SkillLevel: level,
			IsTeaching: teaching,
		})
	}
	return skills, nil
}

func (s *profileService) GetByNetID(ctx context.Context, netID string) (dto.ProfileResponse, error) {
	profile, err := s.repo.FindByNetID(ctx, normalizeNetID(netID))
	if err != nil {
		return dto.ProfileResponse{}, err
	}
	return dto.NewProfileResponse(profile), nil
}

func (s *profileService) GetByID(ctx context.Context, id uint) (dto.ProfileResponse, error) {
	if id == 0 {
		return dto.ProfileResponse{}, apperrors.NotFound("profile not found")
	}
	profile, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return dto.ProfileResponse{}, err
	}
	return dto.NewProfileResponse(profile), nil
}

func (s *profileService) Search(ctx context.Context, viewerID string, query dto.ProfileSearchQuery) ([]dto.ProfileResponse, error) {
	if err := validate(s.validator, query); err != nil {
		return nil, err
	}

	profiles, err := s.repo.List(ctx, repository.ProfileFilter{
		Search:       query.Query,
		SkillType:    query.SkillType,
		Level:        query.Level,
		College:      query.College,
		Period:       query.Availability,
		ExcludeNetID: normalizeNetID(viewerID),
	})
	if err != nil {
		return nil, err
	}

	return dto.NewProfileResponseSlice(profiles), nil
}
