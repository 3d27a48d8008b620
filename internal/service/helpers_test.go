package service

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/noah-isme/skillswap-api/internal/dto"
	"github.com/noah-isme/skillswap-api/internal/models"
	"github.com/noah-isme/skillswap-api/internal/repository"
)

func testLogger() zerolog.Logger {
	return zerolog.Nop()
}

func testValidator() *validator.Validate {
	return validator.New(validator.WithRequiredStructEnabled())
}

func ptrUint(v uint) *uint {
	return &v
}

func setupServiceDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:svc_%s?mode=memory&cache=shared", name)), &gorm.Config{})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(
		&models.Profile{},
		&models.Skill{},
		&models.Availability{},
		&models.MeetingSpot{},
		&models.Conversation{},
		&models.Message{},
		&models.ActivityLog{},
	))
	return db
}

func setupRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	server := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return server, client
}

type chatFixture struct {
	db            *gorm.DB
	profiles      repository.ProfileRepository
	conversations repository.ConversationRepository
	activities    *memoryActivityRepo
	service       ConversationService
}

func newChatFixture(t *testing.T) *chatFixture {
	t.Helper()
	db := setupServiceDB(t)
	f := &chatFixture{
		db:            db,
		profiles:      repository.NewProfileRepository(db),
		conversations: repository.NewConversationRepository(db),
		activities:    &memoryActivityRepo{},
	}
	recorder := NewActivityService(f.activities, testValidator(), testLogger())
	f.service = NewConversationService(f.conversations, f.profiles, recorder, nil, "", nil, testValidator(), testLogger())
	return f
}

func (f *chatFixture) profile(t *testing.T, netID, name string, spots ...string) {
	t.Helper()
	profile := models.Profile{NetID: netID, Name: name, AvatarInitials: models.AvatarInitials(name)}
	profile.Skills = []models.Skill{{SkillType: models.SkillTypeLanguage, SkillName: "Spanish", SkillLevel: "Advanced", IsTeaching: true}}
	for _, spot := range spots {
		profile.MeetingSpots = append(profile.MeetingSpots, models.MeetingSpot{LocationName: spot})
	}
	_, err := f.profiles.Upsert(context.Background(), profile)
	require.NoError(t, err)
}

func (f *chatFixture) conversation(t *testing.T, a, b string) dto.ConversationDetail {
	t.Helper()
	detail, err := f.service.GetOrCreate(context.Background(), a, b)
	require.NoError(t, err)
	return detail
}
