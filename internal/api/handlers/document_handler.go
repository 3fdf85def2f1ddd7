package handlers

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/docmind/backend/internal/ingest"
	"github.com/docmind/backend/pkg/logger"
)

type DocumentHandler struct {
	processor *ingest.Processor
}

func NewDocumentHandler(processor *ingest.Processor) *DocumentHandler {
	return &DocumentHandler{
		processor: processor,
	}
}

func (h *DocumentHandler) UploadDocument(c *fiber.Ctx) error {
	var req ingest.Request
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if req.UserID == "" || req.Name == "" || req.Content == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "user_id, name and content are required",
		})
	}

	result, err := h.processor.Process(c.Context(), req)
	if err != nil {
		logger.Error("Failed to index document", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to index document",
		})
	}

	return c.Status(fiber.StatusCreated).JSON(result)
}

func (h *DocumentHandler) DeleteDocument(c *fiber.Ctx) error {
	userID := c.Query("user_id")
	documentID := c.Params("id")
	if userID == "" || documentID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "user_id and document id are required",
		})
	}

	if err := h.processor.Delete(c.Context(), userID, documentID); err != nil {
		logger.Error("Failed to delete document", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to delete document",
		})
	}

	return c.SendStatus(fiber.StatusNoContent)
}
