package validation

import (
	"strings"

	"github.com/gofiber/fiber/v2"
)

const defaultMaxQueryLength = 5000

type Config struct {
	MaxQueryLength int
}

// Middleware rejects malformed query requests before they reach a handler:
// wrong content type, unparseable JSON, or a query past the length cap. Body
// semantics beyond that stay with the handlers.
func Middleware(cfg Config) fiber.Handler {
	if cfg.MaxQueryLength <= 0 {
		cfg.MaxQueryLength = defaultMaxQueryLength
	}

	return func(c *fiber.Ctx) error {
		if c.Method() != fiber.MethodPost {
			return c.Next()
		}

		if ct := c.Get("Content-Type"); ct != "" && !strings.Contains(ct, "application/json") {
			return c.Status(fiber.StatusUnsupportedMediaType).JSON(fiber.Map{
				"error": "Unsupported content type",
			})
		}

		var body struct {
			Query string `json:"query"`
		}
		if err := c.BodyParser(&body); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Invalid JSON format",
			})
		}

		if len(body.Query) > cfg.MaxQueryLength {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Query exceeds maximum length",
			})
		}

		return c.Next()
	}
}
