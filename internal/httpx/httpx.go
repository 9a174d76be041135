// Package httpx holds small response helpers shared by the fiber handlers.
package httpx

import (
	"strings"

	"github.com/gofiber/fiber/v3"

	"github.com/seuros/amiri/internal/logging"
)

// Content types for downloads.
const (
	MIMECSV  = "text/csv; charset=utf-8"
	MIMEXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// Error writes the standard error envelope.
func Error(c fiber.Ctx, status int, message string) error {
	return c.Status(status).JSON(fiber.Map{
		"error": message,
	})
}

// Internal logs err and answers 500 with a generic message.
func Internal(c fiber.Ctx, message string, err error) error {
	logging.L().Error(message, "path", c.Path(), "error", err)
	return Error(c, fiber.StatusInternalServerError, message)
}

// RequiredQuery returns the trimmed values of keys, or the names of the
// missing ones.
func RequiredQuery(c fiber.Ctx, keys ...string) (map[string]string, []string) {
	values := make(map[string]string, len(keys))
	var missing []string
	for _, k := range keys {
		v := strings.TrimSpace(c.Query(k))
		if v == "" {
			missing = append(missing, k)
			continue
		}
		values[k] = v
	}
	return values, missing
}

// Attachment sends body as a file download.
func Attachment(c fiber.Ctx, filename, contentType string, body []byte) error {
	c.Attachment(filename)
	c.Set(fiber.HeaderContentType, contentType)
	c.Set(fiber.HeaderCacheControl, "no-store")
	return c.Send(body)
}
