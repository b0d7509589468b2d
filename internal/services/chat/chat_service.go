package chat

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/minhhoang-dev/estate_crm_be/internal/models"
)

// Service owns per-participant read cursors, unread counts and message
// ordering. The relational store is the only synchronization point; MarkRead
// racing a concurrent insert may miss the new row, which the next call picks
// up.
type Service struct {
	DB *gorm.DB
}

func NewService(db *gorm.DB) *Service {
	return &Service{DB: db}
}

type CreateConversationInput struct {
	Type           models.ConversationType
	ParticipantIDs []uuid.UUID
	Name           *string
	PropertyID     *uuid.UUID
}

// CreateConversation creates a DIRECT or GROUP conversation. For DIRECT the
// same unordered pair always resolves to the same conversation, so calling
// this twice never produces a duplicate thread. The returned bool reports
// whether a new conversation was created.
func (s *Service) CreateConversation(creatorID uuid.UUID, in CreateConversationInput) (*models.Conversation, bool, error) {
	members := dedupe(append(in.ParticipantIDs, creatorID))

	switch in.Type {
	case models.ConversationDirect:
		if len(members) != 2 {
			return nil, false, models.Invalid("participant_ids", "direct conversation needs exactly 2 distinct participants")
		}
		if existing, err := s.findDirect(members[0], members[1]); err == nil {
			return existing, false, nil
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, false, err
		}
	case models.ConversationGroup:
		if in.Name == nil || strings.TrimSpace(*in.Name) == "" {
			return nil, false, models.Invalid("name", "group conversation needs a name")
		}
		if len(members) < 2 {
			return nil, false, models.Invalid("participant_ids", "group conversation needs at least one participant besides the creator")
		}
	default:
		return nil, false, models.Invalid("type", "must be DIRECT or GROUP")
	}

	conv := &models.Conversation{
		Type:          in.Type,
		Name:          in.Name,
		PropertyID:    in.PropertyID,
		CreatedBy:     creatorID,
		LastMessageAt: time.Now(),
	}

	err := s.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(conv).Error; err != nil {
			return err
		}
		for _, uid := range members {
			p := models.ConversationParticipant{ConversationID: conv.ID, UserID: uid}
			if err := tx.Create(&p).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return conv, true, nil
}

func (s *Service) findDirect(a, b uuid.UUID) (*models.Conversation, error) {
	var conv models.Conversation
	err := s.DB.
		Joins("JOIN conversation_participants p1 ON p1.conversation_id = conversations.id AND p1.user_id = ?", a).
		Joins("JOIN conversation_participants p2 ON p2.conversation_id = conversations.id AND p2.user_id = ?", b).
		Where("conversations.type = ?", models.ConversationDirect).
		First(&conv).Error
	if err != nil {
		return nil, err
	}
	return &conv, nil
}

// participant loads the membership row, distinguishing a missing
// conversation (not found) from a non-member caller (denied).
func (s *Service) participant(convID, userID uuid.UUID) (*models.ConversationParticipant, error) {
	var conv models.Conversation
	if err := s.DB.First(&conv, "id = ?", convID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.ErrNotFound
		}
		return nil, err
	}

	var p models.ConversationParticipant
	err := s.DB.First(&p, "conversation_id = ? AND user_id = ?", convID, userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, models.ErrNotParticipant
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

type SendMessageInput struct {
	Type       models.MessageType
	Content    string
	PropertyID *uuid.UUID
}

// SendMessage persists a message from a participant. It never advances any
// read cursor, including the sender's.
func (s *Service) SendMessage(convID, senderID uuid.UUID, in SendMessageInput) (*models.Message, error) {
	if _, err := s.participant(convID, senderID); err != nil {
		return nil, err
	}
	if in.Type == "" {
		in.Type = models.MessageTypeText
	}
	if strings.TrimSpace(in.Content) == "" && in.Type != models.MessageTypePropertyShare {
		return nil, models.Invalid("content", "message content is required")
	}
	if in.Type == models.MessageTypePropertyShare && in.PropertyID == nil {
		return nil, models.Invalid("property_id", "property share needs a property")
	}

	msg := &models.Message{
		ConversationID: convID,
		SenderID:       senderID,
		Type:           in.Type,
		Content:        in.Content,
		PropertyID:     in.PropertyID,
		IsRead:         false,
	}

	err := s.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(msg).Error; err != nil {
			return err
		}
		return tx.Model(&models.Conversation{}).
			Where("id = ?", convID).
			Update("last_message_at", msg.CreatedAt).Error
	})
	if err != nil {
		return nil, err
	}
	return msg, nil
}

// ListMessages returns a reverse-chronological page. The cursor encodes
// (created_at, id) of the last row, so concurrent inserts cannot duplicate
// or drop rows across pages.
func (s *Service) ListMessages(convID, requesterID uuid.UUID, cursor string, limit int) ([]models.Message, string, error) {
	if _, err := s.participant(convID, requesterID); err != nil {
		return nil, "", err
	}
	if limit <= 0 || limit > 100 {
		limit = 50
	}

	q := s.DB.
		Preload("Sender").
		Where("conversation_id = ?", convID).
		Order("created_at DESC, id DESC").
		Limit(limit + 1)

	if cursor != "" {
		at, id, err := decodeCursor(cursor)
		if err != nil {
			return nil, "", models.Invalid("cursor", "malformed cursor")
		}
		q = q.Where("created_at < ? OR (created_at = ? AND id < ?)", at, at, id)
	}

	var msgs []models.Message
	if err := q.Find(&msgs).Error; err != nil {
		return nil, "", err
	}

	next := ""
	if len(msgs) > limit {
		msgs = msgs[:limit]
		last := msgs[len(msgs)-1]
		next = encodeCursor(last.CreatedAt, last.ID)
	}
	return msgs, next, nil
}

// MarkRead flags every unread message from other senders and advances the
// caller's read cursor. Idempotent: a second immediate call updates nothing
// and leaves the cursor where the first call put it.
func (s *Service) MarkRead(convID, userID uuid.UUID) (int64, error) {
	if _, err := s.participant(convID, userID); err != nil {
		return 0, err
	}

	var updated int64
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		now := time.Now()
		res := tx.Model(&models.Message{}).
			Where("conversation_id = ? AND sender_id <> ? AND is_read = ?", convID, userID, false).
			Updates(map[string]interface{}{"is_read": true, "read_at": now})
		if res.Error != nil {
			return res.Error
		}
		updated = res.RowsAffected

		if updated > 0 {
			// forward only, and only when something was actually read
			return tx.Model(&models.ConversationParticipant{}).
				Where("conversation_id = ? AND user_id = ? AND (last_read_at IS NULL OR last_read_at < ?)",
					convID, userID, now).
				Update("last_read_at", now).Error
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return updated, nil
}

// UnreadCount counts other people's unread messages across every
// conversation the user belongs to. The join keys on the participant table,
// so a message is counted once even if the user shares several threads with
// its sender.
func (s *Service) UnreadCount(userID uuid.UUID) (int64, error) {
	var n int64
	err := s.DB.Model(&models.Message{}).
		Joins("JOIN conversation_participants cp ON cp.conversation_id = messages.conversation_id").
		Where("cp.user_id = ? AND messages.sender_id <> ? AND messages.is_read = ?", userID, userID, false).
		Count(&n).Error
	return n, err
}

// ConversationSummary is the per-thread view for the chat sidebar.
type ConversationSummary struct {
	Conversation models.Conversation `json:"conversation"`
	UnreadCount  int64               `json:"unread_count"`
	LastMessage  *models.Message     `json:"last_message,omitempty"`
}

// Conversations lists the user's threads, most recently active first.
func (s *Service) Conversations(userID uuid.UUID) ([]ConversationSummary, error) {
	var convs []models.Conversation
	err := s.DB.
		Preload("Participants").
		Preload("Participants.User").
		Joins("JOIN conversation_participants cp ON cp.conversation_id = conversations.id AND cp.user_id = ?", userID).
		Order("conversations.last_message_at DESC").
		Find(&convs).Error
	if err != nil {
		return nil, err
	}

	out := make([]ConversationSummary, 0, len(convs))
	for _, conv := range convs {
		var unread int64
		s.DB.Model(&models.Message{}).
			Where("conversation_id = ? AND sender_id <> ? AND is_read = ?", conv.ID, userID, false).
			Count(&unread)

		var last models.Message
		var lastPtr *models.Message
		if err := s.DB.
			Where("conversation_id = ?", conv.ID).
			Order("created_at DESC, id DESC").
			First(&last).Error; err == nil {
			lastPtr = &last
		}

		out = append(out, ConversationSummary{
			Conversation: conv,
			UnreadCount:  unread,
			LastMessage:  lastPtr,
		})
	}
	return out, nil
}

// ParticipantIDs returns the member ids for realtime fan-out.
func (s *Service) ParticipantIDs(convID uuid.UUID) ([]uuid.UUID, error) {
	var parts []models.ConversationParticipant
	if err := s.DB.Where("conversation_id = ?", convID).Find(&parts).Error; err != nil {
		return nil, err
	}
	ids := make([]uuid.UUID, 0, len(parts))
	for _, p := range parts {
		ids = append(ids, p.UserID)
	}
	return ids, nil
}

func encodeCursor(at time.Time, id uuid.UUID) string {
	raw := fmt.Sprintf("%d|%s", at.UnixNano(), id.String())
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

func decodeCursor(cursor string) (time.Time, uuid.UUID, error) {
	raw, err := base64.RawURLEncoding.DecodeString(cursor)
	if err != nil {
		return time.Time{}, uuid.Nil, err
	}
	parts := strings.SplitN(string(raw), "|", 2)
	if len(parts) != 2 {
		return time.Time{}, uuid.Nil, fmt.Errorf("bad cursor")
	}
	nanos, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return time.Time{}, uuid.Nil, err
	}
	id, err := uuid.Parse(parts[1])
	if err != nil {
		return time.Time{}, uuid.Nil, err
	}
	return time.Unix(0, nanos), id, nil
}

func dedupe(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]bool, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if id == uuid.Nil || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
