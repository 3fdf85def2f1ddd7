package handlers

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/docmind/backend/internal/query"
	"github.com/docmind/backend/internal/storage/sqlite"
	"github.com/docmind/backend/pkg/logger"
)

const historyLimit = 50

type QueryHandler struct {
	engine *query.Engine
	db     *sqlite.Client
}

func NewQueryHandler(engine *query.Engine, db *sqlite.Client) *QueryHandler {
	return &QueryHandler{
		engine: engine,
		db:     db,
	}
}

func (h *QueryHandler) HandleQuery(c *fiber.Ctx) error {
	var req query.Request
	if err := c.BodyParser(&req); err != nil {
		logger.Error("Failed to parse request body", zap.Error(err))
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if req.Query == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "query is required",
		})
	}
	if req.UserID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "user_id is required",
		})
	}

	result, err := h.engine.Answer(c.Context(), req)
	if err != nil {
		logger.Error("Failed to answer query", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to process query",
		})
	}

	h.persistTurns(c, req, result.Answer)

	return c.JSON(result)
}

func (h *QueryHandler) GetQueryHistory(c *fiber.Ctx) error {
	userID := c.Query("user_id")
	if userID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "user_id is required",
		})
	}

	limit := c.QueryInt("limit", historyLimit)
	if limit <= 0 || limit > historyLimit {
		limit = historyLimit
	}

	records, err := h.db.QueryHistory(c.Context(), userID, limit)
	if err != nil {
		logger.Error("Failed to load query history", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to load history",
		})
	}

	return c.JSON(fiber.Map{
		"history": records,
	})
}

// persistTurns appends both sides of the exchange to the conversation, best
// effort. A write failure loses context for the next turn but never fails
// the answer that was already produced.
func (h *QueryHandler) persistTurns(c *fiber.Ctx, req query.Request, answer string) {
	if req.ConversationID == "" {
		return
	}
	if err := h.db.AppendTurn(c.Context(), req.ConversationID, "user", req.Query); err != nil {
		logger.Warn("Failed to persist user turn", zap.Error(err))
		return
	}
	if err := h.db.AppendTurn(c.Context(), req.ConversationID, "assistant", answer); err != nil {
		logger.Warn("Failed to persist assistant turn", zap.Error(err))
	}
}
