package router

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/noah-isme/skillswap-api/internal/config"
	"github.com/noah-isme/skillswap-api/internal/database"
	"github.com/noah-isme/skillswap-api/internal/dto"
	"github.com/noah-isme/skillswap-api/internal/handler"
	"github.com/noah-isme/skillswap-api/internal/middleware"
	"github.com/noah-isme/skillswap-api/internal/repository"
	"github.com/noah-isme/skillswap-api/internal/service"
	"github.com/noah-isme/skillswap-api/internal/utils"
)

const (
	testSecret       = "router-secret"
	signInsPerMinute = 5
)

func buildApp(t *testing.T) *fiber.App {
	t.Helper()
	logger := zerolog.Nop()

	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:router_%s?mode=memory&cache=shared", t.Name())), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, database.Migrate(db))

	server := miniredis.RunT(t)
	redisClient := redis.NewClient(&redis.Options{Addr: server.Addr()})
	t.Cleanup(func() { _ = redisClient.Close() })

	cfg := config.Config{AppName: "SkillSwap API", AppEnv: "test", ChannelBase: "skillswap-test"}
	validate := validator.New(validator.WithRequiredStructEnabled())

	profileRepo := repository.NewProfileRepository(db)
	activityService := service.NewActivityService(repository.NewActivityLogRepository(db), validate, logger)
	sessionService := service.NewSessionService(profileRepo, redisClient, cfg.ChannelBase, testSecret, time.Hour, validate, logger)
	profileService := service.NewProfileService(profileRepo, validate, logger)
	conversationService := service.NewConversationService(repository.NewConversationRepository(db), profileRepo, activityService, redisClient, cfg.ChannelBase, nil, validate, logger)

	app := fiber.New()
	middleware.Register(app, middleware.Config{Logger: &logger})
	Register(app, cfg, Dependencies{
		SessionHandler: handler.NewSessionHandler(sessionService, logger),
		ProfileHandler: handler.NewProfileHandler(profileService, logger),
		ConversationHandler: handler.NewConversationHandler(conversationService, handler.ConversationHandlerOptions{
			SendBudget: middleware.NewSendBudget(redisClient, cfg.ChannelBase, "messages", 60, time.Minute),
		}, logger),
		ActivityHandler: handler.NewActivityHandler(activityService, logger),
		JWTMiddleware:   middleware.JWTProtected(testSecret, sessionService),
		SignInLimiter:   middleware.RateLimit("sign_in", signInsPerMinute, time.Minute),
	})
	return app
}

func call(t *testing.T, app *fiber.App, method, target, token, body string) (int, utils.APIResponse) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, target, reader)
	require.NoError(t, err)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var payload utils.APIResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&payload))
	return resp.StatusCode, payload
}

func signIn(t *testing.T, app *fiber.App, netID string) dto.SessionResponse {
	t.Helper()
	status, payload := call(t, app, fiber.MethodPost, "/api/v1/session", "", fmt.Sprintf(`{"net_id":%q}`, netID))
	require.Equal(t, fiber.StatusCreated, status)

	raw, err := json.Marshal(payload.Data)
	require.NoError(t, err)
	var session dto.SessionResponse
	require.NoError(t, json.Unmarshal(raw, &session))
	require.NotEmpty(t, session.Token)
	return session
}

func TestHealthIsPublic(t *testing.T) {
	app := buildApp(t)

	status, payload := call(t, app, fiber.MethodGet, "/api/v1/health", "", "")
	require.Equal(t, fiber.StatusOK, status)
	require.True(t, payload.Success)
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	app := buildApp(t)

	for _, target := range []string{"/api/v1/profiles/me", "/api/v1/conversations", "/api/v1/activities"} {
		status, _ := call(t, app, fiber.MethodGet, target, "", "")
		require.Equal(t, fiber.StatusUnauthorized, status, target)
	}
}

func TestSignInIsRateLimited(t *testing.T) {
	app := buildApp(t)
	for i := 0; i < signInsPerMinute; i++ {
		signIn(t, app, fmt.Sprintf("ab%d", i))
	}

	status, payload := call(t, app, fiber.MethodPost, "/api/v1/session", "", `{"net_id":"zz999"}`)
	require.Equal(t, fiber.StatusTooManyRequests, status)
	require.False(t, payload.Success)
}

func TestSessionLifecycle(t *testing.T) {
	app := buildApp(t)
	session := signIn(t, app, "ab123")
	require.False(t, session.ProfileExists)

	status, payload := call(t, app, fiber.MethodGet, "/api/v1/profiles/me", session.Token, "")
	require.Equal(t, fiber.StatusNotFound, status)
	require.Equal(t, "NOT_FOUND", payload.Code)

	status, _ = call(t, app, fiber.MethodPut, "/api/v1/profiles/me", session.Token,
		`{"name":"Ana Lopez","college":"Silliman","can_teach":[{"type":"language","skill":"Spanish","level":"Advanced"}]}`)
	require.Equal(t, fiber.StatusOK, status)

	again := signIn(t, app, "ab123")
	require.True(t, again.ProfileExists)

	status, _ = call(t, app, fiber.MethodDelete, "/api/v1/session", session.Token, "")
	require.Equal(t, fiber.StatusOK, status)

	status, _ = call(t, app, fiber.MethodGet, "/api/v1/profiles/me", session.Token, "")
	require.Equal(t, fiber.StatusUnauthorized, status)

	status, _ = call(t, app, fiber.MethodGet, "/api/v1/profiles/me", again.Token, "")
	require.Equal(t, fiber.StatusOK, status)
}

func TestConversationAcrossSessions(t *testing.T) {
	app := buildApp(t)
	ana := signIn(t, app, "ab123")
	chris := signIn(t, app, "cd456")

	status, _ := call(t, app, fiber.MethodPut, "/api/v1/profiles/me", ana.Token, `{"name":"Ana Lopez"}`)
	require.Equal(t, fiber.StatusOK, status)
	status, _ = call(t, app, fiber.MethodPut, "/api/v1/profiles/me", chris.Token, `{"name":"Chris Dunn","meeting_spots":["Sterling Library"]}`)
	require.Equal(t, fiber.StatusOK, status)

	status, payload := call(t, app, fiber.MethodPost, "/api/v1/conversations", ana.Token, `{"other_net_id":"cd456"}`)
	require.Equal(t, fiber.StatusOK, status)
	raw, err := json.Marshal(payload.Data)
	require.NoError(t, err)
	var detail dto.ConversationDetail
	require.NoError(t, json.Unmarshal(raw, &detail))

	status, _ = call(t, app, fiber.MethodPost, fmt.Sprintf("/api/v1/conversations/%d/messages", detail.ID), ana.Token, `{"text":"Hi Chris"}`)
	require.Equal(t, fiber.StatusCreated, status)

	status, payload = call(t, app, fiber.MethodGet, "/api/v1/activities", ana.Token, "")
	require.Equal(t, fiber.StatusOK, status)
	raw, err = json.Marshal(payload.Data)
	require.NoError(t, err)
	var ledger dto.ActivityListResponse
	require.NoError(t, json.Unmarshal(raw, &ledger))
	require.Len(t, ledger.Items, 1)
	require.Equal(t, "conversation_started", ledger.Items[0].Action)
}

func TestMetricsEndpoint(t *testing.T) {
	app := buildApp(t)
	call(t, app, fiber.MethodGet, "/api/v1/health", "", "")

	req, err := http.NewRequest(fiber.MethodGet, "/metrics", nil)
	require.NoError(t, err)
	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Contains(t, string(body), "skillswap_http_requests_total")
}
