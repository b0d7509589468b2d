package handlers

import (
	"errors"
	"log"

	"github.com/gofiber/fiber/v2"

	"github.com/minhhoang-dev/estate_crm_be/internal/models"
)

// failWith maps service errors onto the response envelope. Unknown errors
// are logged and surfaced as an opaque 500.
func failWith(c *fiber.Ctx, err error) error {
	var ve *models.ValidationError
	if errors.As(err, &ve) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": "Validation error",
			"errors":  fiber.Map{ve.Field: ve.Reason},
		})
	}

	var te *models.InvalidTransitionError
	if errors.As(err, &te) {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"success": false,
			"message": te.Error(),
			"current": te.Current,
			"target":  te.Target,
		})
	}

	if errors.Is(err, models.ErrNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"success": false,
			"message": "Not found",
		})
	}

	if errors.Is(err, models.ErrNotParticipant) {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"success": false,
			"message": "Access denied",
		})
	}

	log.Println("internal error:", err)
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"success": false,
		"message": "Internal server error",
	})
}
