package server

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/etnz/kabuka/logger"
)

// Response is the envelope of every answer, the same one the quote API
// uses: success with data, or failure with an error message.
type Response struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

func success(c *fiber.Ctx, data any) error {
	return c.JSON(Response{Success: true, Data: data})
}

func failure(c *fiber.Ctx, status int, msg string) error {
	return c.Status(status).JSON(Response{Error: msg})
}

// errorHandler renders errors returned by handlers in the envelope.
func errorHandler(c *fiber.Ctx, err error) error {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return failure(c, fe.Code, fe.Message)
	}
	logger.Error().Err(err).Str("request_id", requestID(c)).Msg("request failed")
	return failure(c, fiber.StatusInternalServerError, "an unexpected error occurred")
}
