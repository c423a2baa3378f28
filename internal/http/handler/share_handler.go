package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/lunarhue/linkmark/internal/app/repository"
	"github.com/lunarhue/linkmark/internal/http/middleware"
)

// ShareDeps groups dependencies required by share handlers.
type ShareDeps struct {
	Logger *zap.Logger
	Shares repository.SharedLinkRepository
}

// ShareHandler manages the shareable keys of links. Every route requires an
// authenticated owner; the anonymous fetch-by-key lives on the links routes.
type ShareHandler struct {
	logger *zap.Logger
	shares repository.SharedLinkRepository
}

// NewShareHandler creates a share handler with the provided dependencies.
func NewShareHandler(deps ShareDeps) *ShareHandler {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ShareHandler{
		logger: logger,
		shares: deps.Shares,
	}
}

// Register wires share routes onto the provided router.
func (h *ShareHandler) Register(router fiber.Router) {
	shares := router.Group("/api/shares", middleware.RequireUser())
	{
		shares.Get("/:id", h.GetKey)
		shares.Post("/:id", h.Share)
		shares.Delete("/:id", h.Unshare)
	}
}

// GetKey handles GET /api/shares/:id
func (h *ShareHandler) GetKey(c *fiber.Ctx) error {
	userID, _ := middleware.UserID(c)

	linkID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid link id",
		})
	}

	key, err := h.shares.SetUserInfo(userID).GetKey(requestContext(c), linkID)
	if err != nil {
		return h.shareError(c, err, linkID, "failed to retrieve shareable key")
	}
	return c.JSON(fiber.Map{"key": key})
}

// Share handles POST /api/shares/:id
func (h *ShareHandler) Share(c *fiber.Ctx) error {
	userID, _ := middleware.UserID(c)

	linkID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid link id",
		})
	}

	key, err := h.shares.SetUserInfo(userID).Share(requestContext(c), linkID)
	if err != nil {
		return h.shareError(c, err, linkID, "failed to share link")
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"key": key})
}

// Unshare handles DELETE /api/shares/:id
func (h *ShareHandler) Unshare(c *fiber.Ctx) error {
	userID, _ := middleware.UserID(c)

	linkID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid link id",
		})
	}

	if err := h.shares.SetUserInfo(userID).Unshare(requestContext(c), linkID); err != nil {
		return h.shareError(c, err, linkID, "failed to unshare link")
	}
	return c.SendStatus(fiber.StatusOK)
}

// shareError collapses every expected repository error into 404: missing
// links, foreign links and conflicting share states all look identical to the
// caller so the endpoint leaks nothing about other users' links.
func (h *ShareHandler) shareError(c *fiber.Ctx, err error, linkID uuid.UUID, logMessage string) error {
	if repository.IsDomainError(err) {
		h.logger.Info(logMessage, zap.String("link_id", linkID.String()), zap.Error(err))
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "link not found",
		})
	}
	h.logger.Error(logMessage, zap.String("link_id", linkID.String()), zap.Error(err))
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"error": "internal server error",
	})
}
