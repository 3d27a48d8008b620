package repository

import (
	"context"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/noah-isme/skillswap-api/internal/models"
)

// ProfileFilter narrows profile searches.
type ProfileFilter struct {
	Search       string
	SkillType    string
	Level        string
	College      string
	Period       string
	ExcludeNetID string
}

// ProfileRepository persists profiles together with their skills, availability and meeting spots.
type ProfileRepository interface {
	Upsert(ctx context.Context, profile models.Profile) (models.Profile, error)
	FindByNetID(ctx context.Context, netID string) (models.Profile, error)
	FindByID(ctx context.Context, id uint) (models.Profile, error)
	FindByNetIDs(ctx context.Context, netIDs []string) ([]models.Profile, error)
	List(ctx context.Context, filter ProfileFilter) ([]models.Profile, error)
}

type profileRepository struct {
	db *gorm.DB
}

// NewProfileRepository constructs a profile repository backed by GORM.
func NewProfileRepository(db *gorm.DB) ProfileRepository {
	return &profileRepository{db: db}
}

// Upsert writes the profile row keyed by net id and replaces every sub-record.
// Sub-records are deleted and re-inserted, so the last concurrent writer wins.
func (r *profileRepository) Upsert(ctx context.Context, profile models.Profile) (models.Profile, error) {
	skills := profile.Skills
	availability := profile.Availability
	spots := profile.MeetingSpots

	base := profile
	base.ID = 0
	base.Skills = nil
	base.Availability = nil
	base.MeetingSpots = nil

	var stored models.Profile
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "net_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"name", "year", "college", "bio", "avatar_initials", "updated_at"}),
		}).Omit(clause.Associations).Create(&base).Error
		if err != nil {
			return err
		}

		if err := tx.Where("net_id = ?", profile.NetID).First(&stored).Error; err != nil {
			return err
		}

		if err := tx.Where("profile_id = ?", stored.ID).Delete(&models.Skill{}).Error; err != nil {
			return err
		}
		if err := tx.Where("profile_id = ?", stored.ID).Delete(&models.Availability{}).Error; err != nil {
			return err
		}
		if err := tx.Where("profile_id = ?", stored.ID).Delete(&models.MeetingSpot{}).Error; err != nil {
			return err
		}

		if len(skills) > 0 {
			for i := range skills {
				skills[i].ID = 0
				skills[i].ProfileID = stored.ID
			}
			if err := tx.Create(&skills).Error; err != nil {
				return err
			}
		}
		if len(availability) > 0 {
			for i := range availability {
				availability[i].ID = 0
				availability[i].ProfileID = stored.ID
			}
			if err := tx.Create(&availability).Error; err != nil {
				return err
			}
		}
		if len(spots) > 0 {
			for i := range spots {
				spots[i].ID = 0
				spots[i].ProfileID = stored.ID
			}
			if err := tx.Create(&spots).Error; err != nil {
				return err
			}
		}

		return withDetails(tx).First(&stored, stored.ID).Error
	})
	if err != nil {
		return models.Profile{}, translate(err, "profile")
	}

	return stored, nil
}

func (r *profileRepository) FindByNetID(ctx context.Context, netID string) (models.Profile, error) {
	var profile models.Profile
	if err := withDetails(r.db.WithContext(ctx)).Where("net_id = ?", netID).First(&profile).Error; err != nil {
		return models.Profile{}, translate(err, "profile")
	}
	return profile, nil
}

func (r *profileRepository) FindByID(ctx context.Context, id uint) (models.Profile, error) {
	var profile models.Profile
	if err := withDetails(r.db.WithContext(ctx)).First(&profile, id).Error; err != nil {
		return models.Profile{}, translate(err, "profile")
	}
	return profile, nil
}

func (r *profileRepository) FindByNetIDs(ctx context.Context, netIDs []string) ([]models.Profile, error) {
	if len(netIDs) == 0 {
		return []models.Profile{}, nil
	}

	var profiles []models.Profile
	if err := r.db.WithContext(ctx).Preload("Skills").Where("net_id IN ?", netIDs).Find(&profiles).Error; err != nil {
		return nil, translate(err, "profile")
	}
	return profiles, nil
}

func (r *profileRepository) List(ctx context.Context, filter ProfileFilter) ([]models.Profile, error) {
	query := withDetails(r.db.WithContext(ctx)).Model(&models.Profile{})

	if filter.ExcludeNetID != "" {
		query = query.Where("net_id <> ?", filter.ExcludeNetID)
	}
	if college := strings.TrimSpace(filter.College); college != "" {
		query = query.Where("LOWER(college) = ?", strings.ToLower(college))
	}
	if search := strings.ToLower(strings.TrimSpace(filter.Search)); search != "" {
		pattern := "%" + search + "%"
		query = query.Where(
			"LOWER(name) LIKE ? OR id IN (?)",
			pattern,
			r.db.Model(&models.Skill{}).Select("profile_id").Where("LOWER(skill_name) LIKE ?", pattern),
		)
	}
	if skillType := strings.TrimSpace(filter.SkillType); skillType != "" {
		query = query.Where("id IN (?)", r.db.Model(&models.Skill{}).Select("profile_id").Where("skill_type = ?", skillType))
	}
	if level := strings.ToLower(strings.TrimSpace(filter.Level)); level != "" {
		query = query.Where("id IN (?)", r.db.Model(&models.Skill{}).Select("profile_id").Where("LOWER(skill_level) = ?", level))
	}
	if period := strings.TrimSpace(filter.Period); period != "" {
		query = query.Where("id IN (?)", r.db.Model(&models.Availability{}).Select("profile_id").Where("time_slot LIKE ?", "% "+period))
	}

	var profiles []models.Profile
	if err := query.Order("created_at DESC").Order("id DESC").Find(&profiles).Error; err != nil {
		return nil, translate(err, "profile")
	}
	return profiles, nil
}

func withDetails(db *gorm.DB) *gorm.DB {
	return db.
		Preload("Skills", func(db *gorm.DB) *gorm.DB { return db.Order("id ASC") }).
		Preload("Availability", func(db *gorm.DB) *gorm.DB { return db.Order("id ASC") }).
		Preload("MeetingSpots", func(db *gorm.DB) *gorm.DB { return db.Order("id ASC") })
}
