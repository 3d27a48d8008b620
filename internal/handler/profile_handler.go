package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/skillswap-api/internal/dto"
	"github.com/noah-isme/skillswap-api/internal/service"
	"github.com/noah-isme/skillswap-api/internal/utils"
	"github.com/noah-isme/skillswap-api/pkg/apperrors"
)

// ProfileHandler serves profile editing and the user directory.
type ProfileHandler struct {
	service service.ProfileService
	logger  zerolog.Logger
}

// NewProfileHandler constructs the handler.
func NewProfileHandler(service service.ProfileService, logger zerolog.Logger) *ProfileHandler {
	return &ProfileHandler{
		service: service,
		logger:  logger.With().Str("component", "profile_handler").Logger(),
	}
}

// Register wires profile routes.
func (h *ProfileHandler) Register(router fiber.Router) {
	router.Get("", h.search)
	router.Get("/me", h.me)
	router.Put("/me", h.upsert)
	router.Get("/:id", h.get)
}

func (h *ProfileHandler) me(c *fiber.Ctx) error {
	profile, err := h.service.GetByNetID(requestContext(c), netIDFromContext(c))
	if err != nil {
		if !apperrors.IsNotFound(err) {
			requestLogger(h.logger, c).Error().Err(err).Msg("failed to load own profile")
		}
		return utils.SendAppError(c, err)
	}
	return utils.SendSuccess(c, "profile retrieved", profile)
}

func (h *ProfileHandler) upsert(c *fiber.Ctx) error {
	var payload dto.ProfileUpsertRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	profile, err := h.service.Upsert(requestContext(c), netIDFromContext(c), payload)
	if err != nil {
		return utils.SendAppError(c, err)
	}
	return utils.SendSuccess(c, "profile saved", profile)
}

func (h *ProfileHandler) get(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendAppError(c, err)
	}

	profile, err := h.service.GetByID(requestContext(c), id)
	if err != nil {
		return utils.SendAppError(c, err)
	}
	return utils.SendSuccess(c, "profile retrieved", profile)
}

func (h *ProfileHandler) search(c *fiber.Ctx) error {
	var query dto.ProfileSearchQuery
	if err := c.QueryParser(&query); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid query")
	}

	profiles, err := h.service.Search(requestContext(c), netIDFromContext(c), query)
	if err != nil {
		return utils.SendAppError(c, err)
	}
	return utils.SendSuccess(c, "profiles retrieved", profiles)
}
