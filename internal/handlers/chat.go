package handlers

import (
	"log"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"

	"github.com/minhhoang-dev/estate_crm_be/internal/models"
	"github.com/minhhoang-dev/estate_crm_be/internal/realtime"
	"github.com/minhhoang-dev/estate_crm_be/internal/services/chat"
	"github.com/minhhoang-dev/estate_crm_be/internal/services/notify"
)

type ChatHandler struct {
	Svc      *chat.Service
	Hub      *realtime.Hub
	Notifier *notify.Service
}

func NewChatHandler(svc *chat.Service, hub *realtime.Hub, notifier *notify.Service) *ChatHandler {
	return &ChatHandler{Svc: svc, Hub: hub, Notifier: notifier}
}

type CreateConversationReq struct {
	Type           string   `json:"type"`
	ParticipantIDs []string `json:"participant_ids"`
	Name           *string  `json:"name,omitempty"`
	PropertyID     *string  `json:"property_id,omitempty"`
}

// CreateOrGetConversation creates a conversation, or returns the existing
// thread for a DIRECT pair.
func (h *ChatHandler) CreateOrGetConversation(c *fiber.Ctx) error {
	userUUID, err := getUserUUID(c)
	if err != nil {
		return unauthorized(c)
	}

	var req CreateConversationReq
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid body")
	}

	participants := make([]uuid.UUID, 0, len(req.ParticipantIDs))
	for _, raw := range req.ParticipantIDs {
		id, err := uuid.Parse(raw)
		if err != nil {
			return badRequest(c, "invalid participant ID: "+raw)
		}
		participants = append(participants, id)
	}

	in := chat.CreateConversationInput{
		Type:           models.ConversationType(req.Type),
		ParticipantIDs: participants,
		Name:           req.Name,
	}
	if req.PropertyID != nil {
		pid, err := uuid.Parse(*req.PropertyID)
		if err != nil {
			return badRequest(c, "invalid property ID")
		}
		in.PropertyID = &pid
	}

	conv, created, err := h.Svc.CreateConversation(userUUID, in)
	if err != nil {
		return failWith(c, err)
	}

	return c.JSON(fiber.Map{
		"success": true,
		"created": created,
		"data":    conv,
	})
}

func (h *ChatHandler) GetConversations(c *fiber.Ctx) error {
	userUUID, err := getUserUUID(c)
	if err != nil {
		return unauthorized(c)
	}

	out, err := h.Svc.Conversations(userUUID)
	if err != nil {
		return failWith(c, err)
	}
	return c.JSON(fiber.Map{"success": true, "data": out})
}

func (h *ChatHandler) GetUnreadTotal(c *fiber.Ctx) error {
	userUUID, err := getUserUUID(c)
	if err != nil {
		return unauthorized(c)
	}

	count, err := h.Svc.UnreadCount(userUUID)
	if err != nil {
		return failWith(c, err)
	}
	return c.JSON(fiber.Map{"success": true, "data": count})
}

// GetMessages returns one reverse-chronological page. Reading does not mark
// anything read; the client calls MarkAsRead explicitly.
func (h *ChatHandler) GetMessages(c *fiber.Ctx) error {
	userUUID, err := getUserUUID(c)
	if err != nil {
		return unauthorized(c)
	}
	convUUID, err := paramUUID(c, "id")
	if err != nil {
		return badRequest(c, "invalid conversation ID")
	}

	msgs, next, err := h.Svc.ListMessages(convUUID, userUUID, c.Query("cursor"), c.QueryInt("limit", 50))
	if err != nil {
		return failWith(c, err)
	}

	return c.JSON(fiber.Map{
		"success":     true,
		"data":        msgs,
		"next_cursor": next,
	})
}

type SendMessageReq struct {
	Content    string  `json:"content"`
	Type       string  `json:"type"`
	PropertyID *string `json:"property_id,omitempty"`
}

func (h *ChatHandler) SendMessage(c *fiber.Ctx) error {
	userUUID, err := getUserUUID(c)
	if err != nil {
		return unauthorized(c)
	}
	convUUID, err := paramUUID(c, "id")
	if err != nil {
		return badRequest(c, "invalid conversation ID")
	}

	var req SendMessageReq
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid body")
	}

	in := chat.SendMessageInput{
		Type:    models.MessageType(req.Type),
		Content: req.Content,
	}
	if req.PropertyID != nil {
		pid, err := uuid.Parse(*req.PropertyID)
		if err != nil {
			return badRequest(c, "invalid property ID")
		}
		in.PropertyID = &pid
	}

	msg, err := h.Svc.SendMessage(convUUID, userUUID, in)
	if err != nil {
		return failWith(c, err)
	}

	participants, err := h.Svc.ParticipantIDs(convUUID)
	if err == nil {
		h.Hub.SendToUsers(participants, fiber.Map{
			"type":    "new_message",
			"message": msg,
		})
		for _, pid := range participants {
			if pid == userUUID {
				continue
			}
			_, _ = h.Notifier.Notify(pid, "chat_message", "New message", req.Content)
		}
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"success": true, "data": msg})
}

func (h *ChatHandler) MarkAsRead(c *fiber.Ctx) error {
	userUUID, err := getUserUUID(c)
	if err != nil {
		return unauthorized(c)
	}
	convUUID, err := paramUUID(c, "id")
	if err != nil {
		return badRequest(c, "invalid conversation ID")
	}

	updated, err := h.Svc.MarkRead(convUUID, userUUID)
	if err != nil {
		return failWith(c, err)
	}

	return c.JSON(fiber.Map{"success": true, "updated": updated})
}

// WebSocketHandler keeps a connection registered in the hub so persisted
// messages can be fanned out to online participants.
func (h *ChatHandler) WebSocketHandler(c *websocket.Conn) {
	userID := c.Query("user_id")
	if userID == "" {
		log.Println("WebSocket: user_id parameter missing")
		c.Close()
		return
	}

	userUUID, err := uuid.Parse(userID)
	if err != nil {
		log.Println("WebSocket: invalid user_id:", userID, "error:", err)
		c.Close()
		return
	}

	client := &realtime.Client{
		ID:     uuid.New().String(),
		UserID: userUUID,
		Conn:   realtime.NewWebSocketConn(c),
		Send:   make(chan []byte, 256),
	}

	h.Hub.RegisterClient(client)
	defer func() {
		h.Hub.UnregisterClient(client)
		log.Printf("WebSocket: user %s disconnected\n", userID)
	}()

	go func() {
		for msg := range client.Send {
			if err := c.WriteMessage(websocket.TextMessage, msg); err != nil {
				log.Println("WebSocket write error:", err)
				return
			}
		}
	}()

	for {
		var payload map[string]interface{}
		if err := c.ReadJSON(&payload); err != nil {
			log.Printf("WebSocket read error for user %s: %v\n", userID, err)
			break
		}

		if msgType, ok := payload["type"].(string); ok && msgType == "pong" {
			continue
		}
	}
}
