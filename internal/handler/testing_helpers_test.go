package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/noah-isme/skillswap-api/internal/database"
	"github.com/noah-isme/skillswap-api/internal/identity"
	"github.com/noah-isme/skillswap-api/internal/models"
	"github.com/noah-isme/skillswap-api/internal/repository"
	"github.com/noah-isme/skillswap-api/internal/service"
	"github.com/noah-isme/skillswap-api/internal/utils"
)

const testUserHeader = "X-Test-User"

func testLogger() zerolog.Logger {
	return zerolog.Nop()
}

// newTestApp builds an app whose caller is taken from the X-Test-User header.
func newTestApp() *fiber.App {
	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		if netID := c.Get(testUserHeader); netID != "" {
			c.Locals("user_id", netID)
			c.SetUserContext(identity.WithIdentity(c.UserContext(), identity.Identity{
				NetID:     netID,
				TokenID:   "token-" + netID,
				ExpiresAt: time.Now().Add(time.Hour),
			}))
		}
		return c.Next()
	})
	return app
}

func newRequest(method, target, netID string, body string) *http.Request {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req, _ := http.NewRequest(method, target, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if netID != "" {
		req.Header.Set(testUserHeader, netID)
	}
	return req
}

func decodeResponse(t *testing.T, resp *http.Response) utils.APIResponse {
	t.Helper()
	defer resp.Body.Close()

	var payload utils.APIResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&payload))
	return payload
}

func decodeData(t *testing.T, payload utils.APIResponse, target interface{}) {
	t.Helper()
	raw, err := json.Marshal(payload.Data)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, target))
}

type chatStack struct {
	profiles repository.ProfileRepository
	service  service.ConversationService
}

func newChatStack(t *testing.T) *chatStack {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:handler_%s?mode=memory&cache=shared", name)), &gorm.Config{})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, database.Migrate(db))

	validate := validator.New(validator.WithRequiredStructEnabled())
	activities := service.NewActivityService(repository.NewActivityLogRepository(db), validate, testLogger())
	stack := &chatStack{profiles: repository.NewProfileRepository(db)}
	stack.service = service.NewConversationService(repository.NewConversationRepository(db), stack.profiles, activities, nil, "", nil, validate, testLogger())
	return stack
}

func (s *chatStack) profile(t *testing.T, netID, name string) {
	t.Helper()
	_, err := s.profiles.Upsert(context.Background(), models.Profile{
		NetID:          netID,
		Name:           name,
		AvatarInitials: models.AvatarInitials(name),
		MeetingSpots:   []models.MeetingSpot{{LocationName: "Bass Library"}},
	})
	require.NoError(t, err)
}
