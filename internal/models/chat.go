package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ConversationType string

const (
	ConversationDirect ConversationType = "DIRECT"
	ConversationGroup  ConversationType = "GROUP"
)

// Conversation is a chat thread between two (DIRECT) or more (GROUP) staff
// members, optionally linked to a property for context.
type Conversation struct {
	ID   uuid.UUID        `gorm:"type:uuid;primaryKey" json:"id"`
	Type ConversationType `gorm:"type:varchar(10);not null;index" json:"type"`
	Name *string          `gorm:"type:varchar(120)" json:"name,omitempty"` // required for GROUP

	PropertyID *uuid.UUID `gorm:"type:uuid;index" json:"property_id,omitempty"`
	CreatedBy  uuid.UUID  `gorm:"type:uuid" json:"created_by"`

	LastMessageAt time.Time `json:"last_message_at"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`

	Property     *Property                 `gorm:"foreignKey:PropertyID" json:"property,omitempty"`
	Participants []ConversationParticipant `gorm:"foreignKey:ConversationID" json:"participants,omitempty"`
	Messages     []Message                 `gorm:"foreignKey:ConversationID" json:"messages,omitempty"`
}

func (c *Conversation) BeforeCreate(tx *gorm.DB) (err error) {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return
}

// ConversationParticipant holds the per-user read cursor. LastReadAt only
// moves forward, and only through MarkRead by the owning user.
type ConversationParticipant struct {
	ID             uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	ConversationID uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex:idx_conv_user" json:"conversation_id"`
	UserID         uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex:idx_conv_user" json:"user_id"`
	LastReadAt     *time.Time `json:"last_read_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	User *User `gorm:"foreignKey:UserID" json:"user,omitempty"`
}

func (p *ConversationParticipant) BeforeCreate(tx *gorm.DB) (err error) {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return
}

type MessageType string

const (
	MessageTypeText          MessageType = "TEXT"
	MessageTypeImage         MessageType = "IMAGE"
	MessageTypeFile          MessageType = "FILE"
	MessageTypePropertyShare MessageType = "PROPERTY_SHARE"
)

// Message ordering within a conversation is (created_at, id); created_at is
// assigned by the server, never by the client.
type Message struct {
	ID             uuid.UUID   `gorm:"type:uuid;primaryKey" json:"id"`
	ConversationID uuid.UUID   `gorm:"type:uuid;not null;index:idx_msg_conv_created" json:"conversation_id"`
	SenderID       uuid.UUID   `gorm:"type:uuid;not null;index" json:"sender_id"`
	Type           MessageType `gorm:"type:varchar(20);default:'TEXT'" json:"type"`
	Content        string      `gorm:"type:text" json:"content"`
	PropertyID     *uuid.UUID  `gorm:"type:uuid" json:"property_id,omitempty"` // PROPERTY_SHARE payload

	IsRead    bool       `gorm:"default:false;index" json:"is_read"`
	ReadAt    *time.Time `json:"read_at,omitempty"`
	CreatedAt time.Time  `gorm:"index:idx_msg_conv_created" json:"created_at"`

	Sender *User `gorm:"foreignKey:SenderID" json:"sender,omitempty"`
}

func (m *Message) BeforeCreate(tx *gorm.DB) (err error) {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return
}
