package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/skillswap-api/internal/dto"
	"github.com/noah-isme/skillswap-api/internal/identity"
	"github.com/noah-isme/skillswap-api/internal/service"
	"github.com/noah-isme/skillswap-api/internal/utils"
)

// SessionHandler exposes mock sign-in and sign-out.
type SessionHandler struct {
	service service.SessionService
	logger  zerolog.Logger
}

// NewSessionHandler constructs the handler.
func NewSessionHandler(service service.SessionService, logger zerolog.Logger) *SessionHandler {
	return &SessionHandler{
		service: service,
		logger:  logger.With().Str("component", "session_handler").Logger(),
	}
}

// Register binds sign-in publicly and guards sign-out with protect.
func (h *SessionHandler) Register(router fiber.Router, protect fiber.Handler) {
	router.Post("", h.create)
	router.Delete("", protect, h.delete)
}

func (h *SessionHandler) create(c *fiber.Ctx) error {
	var payload dto.SessionCreateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	session, err := h.service.Login(requestContext(c), payload)
	if err != nil {
		requestLogger(h.logger, c).Warn().Err(err).Msg("sign in failed")
		return utils.SendAppError(c, err)
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "session started", session)
}

func (h *SessionHandler) delete(c *fiber.Ctx) error {
	caller, _ := identity.FromContext(c.UserContext())
	if err := h.service.Logout(requestContext(c), caller); err != nil {
		requestLogger(h.logger, c).Error().Err(err).Msg("sign out failed")
		return utils.SendAppError(c, err)
	}

	return utils.SendSuccess(c, "session ended", nil)
}
