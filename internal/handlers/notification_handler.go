package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/minhhoang-dev/estate_crm_be/internal/services/notify"
)

type NotificationHandler struct {
	Svc *notify.Service
}

func NewNotificationHandler(svc *notify.Service) *NotificationHandler {
	return &NotificationHandler{Svc: svc}
}

func (h *NotificationHandler) List(c *fiber.Ctx) error {
	userID, err := getUserUUID(c)
	if err != nil {
		return unauthorized(c)
	}

	items, err := h.Svc.List(userID, c.QueryBool("unread", false), c.QueryInt("limit", 50))
	if err != nil {
		return failWith(c, err)
	}
	return c.JSON(fiber.Map{"success": true, "data": items})
}

type MarkNotificationsReq struct {
	IDs []string `json:"ids"`
}

func (h *NotificationHandler) MarkRead(c *fiber.Ctx) error {
	userID, err := getUserUUID(c)
	if err != nil {
		return unauthorized(c)
	}

	var req MarkNotificationsReq
	_ = c.BodyParser(&req)

	ids := make([]uuid.UUID, 0, len(req.IDs))
	for _, raw := range req.IDs {
		id, err := uuid.Parse(raw)
		if err != nil {
			return badRequest(c, "invalid notification ID: "+raw)
		}
		ids = append(ids, id)
	}

	updated, err := h.Svc.MarkRead(userID, ids)
	if err != nil {
		return failWith(c, err)
	}
	return c.JSON(fiber.Map{"success": true, "updated": updated})
}
