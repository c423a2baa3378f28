package handler

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/lunarhue/linkmark/internal/app/client"
	"github.com/lunarhue/linkmark/internal/app/model"
	"github.com/lunarhue/linkmark/internal/app/repository"
	"github.com/lunarhue/linkmark/internal/http/middleware"
)

// LinkDeps groups dependencies required by link handlers.
type LinkDeps struct {
	Logger *zap.Logger
	Links  repository.LinkRepository
	Tags   client.TagLookup
}

// LinkHandler implements the link management endpoints.
type LinkHandler struct {
	logger *zap.Logger
	links  repository.LinkRepository
	tags   client.TagLookup
}

// NewLinkHandler creates a link handler with the provided dependencies.
func NewLinkHandler(deps LinkDeps) *LinkHandler {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LinkHandler{
		logger: logger,
		links:  deps.Links,
		tags:   deps.Tags,
	}
}

// Register wires link routes onto the provided router.
func (h *LinkHandler) Register(router fiber.Router) {
	api := router.Group("/api")
	{
		links := api.Group("/links")
		{
			links.Get("/", h.ListLinks)
			links.Post("/", middleware.RequireUser(), h.CreateLink)
			// Registered before /:id so "shared" is not parsed as an id.
			links.Get("/shared/:key", h.GetSharedLink)
			links.Get("/:id", h.GetLink)
			links.Put("/:id", middleware.RequireUser(), h.UpdateLink)
			links.Delete("/:id", middleware.RequireUser(), h.DeleteLink)
		}
	}
}

// LinkRequest represents the client-settable fields of a link.
type LinkRequest struct {
	LinkURL     string            `json:"link_url"`
	Title       string            `json:"title"`
	Description string            `json:"description,omitempty"`
	Privacy     model.LinkPrivacy `json:"privacy"`
}

// LinkResponse represents a link returned by the API. The shareable key is
// deliberately absent; it is only reachable through the shares endpoints.
type LinkResponse struct {
	ID             uuid.UUID         `json:"id"`
	LinkURL        string            `json:"link_url"`
	Title          string            `json:"title"`
	Description    string            `json:"description,omitempty"`
	Privacy        model.LinkPrivacy `json:"privacy"`
	CreationDate   time.Time         `json:"creation_date"`
	LastUpdate     time.Time         `json:"last_update"`
	CreatingUserID uuid.UUID         `json:"creating_user_id"`
	Shared         bool              `json:"shared"`
}

func toLinkResponse(link *model.Link) LinkResponse {
	return LinkResponse{
		ID:             link.ID,
		LinkURL:        link.LinkURL,
		Title:          link.Title,
		Description:    link.Description,
		Privacy:        link.Privacy,
		CreationDate:   link.CreationDate,
		LastUpdate:     link.LastUpdate,
		CreatingUserID: link.CreatingUserID,
		Shared:         link.Shared(),
	}
}

// ListLinks handles GET /api/links
func (h *LinkHandler) ListLinks(c *fiber.Ctx) error {
	queryModel := repository.NewLinkListQueryModel()
	if userID, ok := middleware.UserID(c); ok {
		queryModel.UserID = &userID
	}
	queryModel.URLContains = c.Query("urlContains")
	queryModel.TitleContains = c.Query("titleContains")
	queryModel.ShowPrivate = c.QueryBool("showPrivate", false)
	queryModel.ShowPublic = c.QueryBool("showPublic", true)
	queryModel.SortBy = repository.ParseSortOption(c.Query("sortBy"))
	queryModel.SortDescending = c.QueryBool("sortDescending", false)
	queryModel.Skip = c.QueryInt("skip", 0)
	queryModel.Take = c.QueryInt("take", 0)

	ctx := requestContext(c)

	var idsLimit []uuid.UUID
	if rawTags := c.Query("tagIds"); rawTags != "" {
		var err error
		idsLimit, err = h.resolveTags(ctx, rawTags)
		if err != nil {
			h.logger.Warn("tag resolution failed", zap.Error(err))
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "unable to resolve requested tags",
			})
		}
	}

	links, err := h.links.GetAll(ctx, queryModel, idsLimit)
	if err != nil {
		h.logger.Error("failed to list links", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to list links",
		})
	}

	response := make([]LinkResponse, len(links))
	for i := range links {
		response[i] = toLinkResponse(&links[i])
	}

	return c.JSON(fiber.Map{
		"links": response,
		"count": len(response),
	})
}

// resolveTags looks every requested tag up and unions the resulting link id
// sets. Any upstream failure rejects the whole listing request.
func (h *LinkHandler) resolveTags(ctx context.Context, rawTags string) ([]uuid.UUID, error) {
	seen := make(map[uuid.UUID]struct{})
	ids := make([]uuid.UUID, 0)
	for _, part := range strings.Split(rawTags, ",") {
		tagID, err := uuid.Parse(strings.TrimSpace(part))
		if err != nil {
			return nil, err
		}
		linkIDs, err := h.tags.GetLinkIDsForTag(ctx, tagID)
		if err != nil {
			return nil, err
		}
		for _, id := range linkIDs {
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// GetLink handles GET /api/links/:id
func (h *LinkHandler) GetLink(c *fiber.Ctx) error {
	linkID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid link id",
		})
	}

	var userID *uuid.UUID
	if id, ok := middleware.UserID(c); ok {
		userID = &id
	}

	link, err := h.links.Get(requestContext(c), linkID, userID)
	if err != nil {
		return h.linkError(c, err, "failed to get link")
	}
	return c.JSON(toLinkResponse(link))
}

// GetSharedLink handles GET /api/links/shared/:key — anonymous access by
// shareable key, bypassing privacy entirely.
func (h *LinkHandler) GetSharedLink(c *fiber.Ctx) error {
	key := c.Params("key")
	if len(key) != model.ShareableKeyLength {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "link not found",
		})
	}

	link, err := h.links.GetByShareableKey(requestContext(c), key)
	if err != nil {
		return h.linkError(c, err, "failed to get shared link")
	}
	return c.JSON(toLinkResponse(link))
}

// CreateLink handles POST /api/links
func (h *LinkHandler) CreateLink(c *fiber.Ctx) error {
	userID, _ := middleware.UserID(c)

	var req LinkRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid request body",
		})
	}

	link := &model.Link{
		LinkURL:        req.LinkURL,
		Title:          req.Title,
		Description:    req.Description,
		Privacy:        req.Privacy,
		CreatingUserID: userID,
	}
	if err := link.Validate(); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	if err := h.links.Create(requestContext(c), link); err != nil {
		if errors.Is(err, repository.ErrAlreadyExists) {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{
				"error": "link with this url already exists",
			})
		}
		h.logger.Error("failed to create link", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to create link",
		})
	}

	return c.Status(fiber.StatusCreated).JSON(toLinkResponse(link))
}

// UpdateLink handles PUT /api/links/:id
func (h *LinkHandler) UpdateLink(c *fiber.Ctx) error {
	userID, _ := middleware.UserID(c)

	linkID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid link id",
		})
	}

	var req LinkRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid request body",
		})
	}

	link := &model.Link{
		ID:          linkID,
		LinkURL:     req.LinkURL,
		Title:       req.Title,
		Description: req.Description,
		Privacy:     req.Privacy,
	}
	if err := link.Validate(); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	if err := h.links.Update(requestContext(c), link, userID); err != nil {
		if errors.Is(err, repository.ErrAlreadyExists) {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{
				"error": "link with this url already exists",
			})
		}
		return h.linkError(c, err, "failed to update link")
	}
	return c.JSON(toLinkResponse(link))
}

// DeleteLink handles DELETE /api/links/:id
func (h *LinkHandler) DeleteLink(c *fiber.Ctx) error {
	userID, _ := middleware.UserID(c)

	linkID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid link id",
		})
	}

	if err := h.links.Delete(requestContext(c), linkID, userID); err != nil {
		return h.linkError(c, err, "failed to delete link")
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *LinkHandler) linkError(c *fiber.Ctx, err error, logMessage string) error {
	if errors.Is(err, repository.ErrNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "link not found",
		})
	}
	h.logger.Error(logMessage, zap.Error(err))
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"error": "internal server error",
	})
}

func requestContext(c *fiber.Ctx) context.Context {
	ctx := c.UserContext()
	if ctx == nil {
		ctx = context.Background()
	}
	return ctx
}
