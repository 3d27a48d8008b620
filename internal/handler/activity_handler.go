package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/skillswap-api/internal/dto"
	"github.com/noah-isme/skillswap-api/internal/service"
	"github.com/noah-isme/skillswap-api/internal/utils"
)

// ActivityHandler lists the caller's meetup ledger.
type ActivityHandler struct {
	service service.ActivityService
	logger  zerolog.Logger
}

// NewActivityHandler constructs the handler.
func NewActivityHandler(service service.ActivityService, logger zerolog.Logger) *ActivityHandler {
	return &ActivityHandler{
		service: service,
		logger:  logger.With().Str("component", "activity_handler").Logger(),
	}
}

// Register wires the ledger routes.
func (h *ActivityHandler) Register(router fiber.Router) {
	router.Get("", h.list)
}

func (h *ActivityHandler) list(c *fiber.Ctx) error {
	page, err := parseQueryInt(c, "page")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid page")
	}
	pageSize, err := parseQueryInt(c, "page_size")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid page size")
	}

	result, err := h.service.List(requestContext(c), netIDFromContext(c), dto.ActivityListQuery{
		Page:     page,
		PageSize: pageSize,
		Action:   c.Query("action"),
	})
	if err != nil {
		return utils.SendAppError(c, err)
	}
	return utils.SendSuccess(c, "activities retrieved", result)
}
