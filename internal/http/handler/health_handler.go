package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

// HealthDeps groups dependencies checked by the health endpoint.
type HealthDeps struct {
	Logger   *zap.Logger
	Postgres *pgxpool.Pool
	NATS     *nats.Conn
}

// HealthHandler reports liveness and readiness of the service.
type HealthHandler struct {
	logger   *zap.Logger
	postgres *pgxpool.Pool
	nats     *nats.Conn
}

// NewHealthHandler creates a health handler with the provided dependencies.
func NewHealthHandler(deps HealthDeps) *HealthHandler {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HealthHandler{
		logger:   logger,
		postgres: deps.Postgres,
		nats:     deps.NATS,
	}
}

// Register wires health routes onto the provided router.
func (h *HealthHandler) Register(router fiber.Router) {
	router.Get("/healthz", h.Liveness)
	router.Get("/readyz", h.Readiness)
}

// Liveness handles GET /healthz
func (h *HealthHandler) Liveness(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok"})
}

// Readiness handles GET /readyz
func (h *HealthHandler) Readiness(c *fiber.Ctx) error {
	ctx := requestContext(c)

	if h.postgres != nil {
		if err := h.postgres.Ping(ctx); err != nil {
			h.logger.Warn("postgres unreachable", zap.Error(err))
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
				"status": "unavailable",
				"reason": "postgres unreachable",
			})
		}
	}

	if h.nats != nil && !h.nats.IsConnected() {
		h.logger.Warn("nats connection lost")
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"status": "unavailable",
			"reason": "nats unreachable",
		})
	}

	return c.JSON(fiber.Map{"status": "ok"})
}
