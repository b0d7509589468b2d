package chat

import (
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/minhhoang-dev/estate_crm_be/internal/models"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(
		&models.User{},
		&models.Conversation{},
		&models.ConversationParticipant{},
		&models.Message{},
	))
	return db
}

func newUser(t *testing.T, db *gorm.DB, name string) models.User {
	t.Helper()

	u := models.User{
		Name:     name,
		Email:    name + "@example.com",
		Password: "x",
		Role:     models.RoleAgent,
		IsActive: true,
	}
	require.NoError(t, db.Create(&u).Error)
	return u
}

func direct(t *testing.T, svc *Service, a, b models.User) *models.Conversation {
	t.Helper()

	conv, created, err := svc.CreateConversation(a.ID, CreateConversationInput{
		Type:           models.ConversationDirect,
		ParticipantIDs: []uuid.UUID{b.ID},
	})
	require.NoError(t, err)
	require.True(t, created)
	return conv
}

func TestDirectConversationIsIdempotent(t *testing.T) {
	db := newTestDB(t)
	svc := NewService(db)
	a := newUser(t, db, "an")
	b := newUser(t, db, "binh")

	conv := direct(t, svc, a, b)

	// same pair from the other side resolves to the same thread
	again, created, err := svc.CreateConversation(b.ID, CreateConversationInput{
		Type:           models.ConversationDirect,
		ParticipantIDs: []uuid.UUID{a.ID},
	})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, conv.ID, again.ID)

	var n int64
	db.Model(&models.Conversation{}).Count(&n)
	assert.EqualValues(t, 1, n)
}

func TestCreateConversationValidation(t *testing.T) {
	db := newTestDB(t)
	svc := NewService(db)
	a := newUser(t, db, "an")
	b := newUser(t, db, "binh")

	// a direct thread with yourself makes no sense
	_, _, err := svc.CreateConversation(a.ID, CreateConversationInput{
		Type:           models.ConversationDirect,
		ParticipantIDs: []uuid.UUID{a.ID},
	})
	var ve *models.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "participant_ids", ve.Field)

	_, _, err = svc.CreateConversation(a.ID, CreateConversationInput{
		Type:           models.ConversationGroup,
		ParticipantIDs: []uuid.UUID{b.ID},
	})
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "name", ve.Field)

	_, _, err = svc.CreateConversation(a.ID, CreateConversationInput{
		Type:           "CHANNEL",
		ParticipantIDs: []uuid.UUID{b.ID},
	})
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "type", ve.Field)
}

func TestSendMessageMembership(t *testing.T) {
	db := newTestDB(t)
	svc := NewService(db)
	a := newUser(t, db, "an")
	b := newUser(t, db, "binh")
	outsider := newUser(t, db, "cuong")

	conv := direct(t, svc, a, b)

	_, err := svc.SendMessage(conv.ID, outsider.ID, SendMessageInput{Content: "hello"})
	assert.ErrorIs(t, err, models.ErrNotParticipant)

	_, err = svc.SendMessage(uuid.New(), a.ID, SendMessageInput{Content: "hello"})
	assert.ErrorIs(t, err, models.ErrNotFound)

	_, err = svc.SendMessage(conv.ID, a.ID, SendMessageInput{Content: "   "})
	var ve *models.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "content", ve.Field)

	_, err = svc.SendMessage(conv.ID, a.ID, SendMessageInput{Type: models.MessageTypePropertyShare})
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "property_id", ve.Field)

	msg, err := svc.SendMessage(conv.ID, a.ID, SendMessageInput{Content: "căn A12-07 còn không?"})
	require.NoError(t, err)
	assert.Equal(t, models.MessageTypeText, msg.Type)
	assert.False(t, msg.IsRead)
}

func TestMarkReadIsIdempotent(t *testing.T) {
	db := newTestDB(t)
	svc := NewService(db)
	a := newUser(t, db, "an")
	b := newUser(t, db, "binh")
	conv := direct(t, svc, a, b)

	for i := 0; i < 3; i++ {
		_, err := svc.SendMessage(conv.ID, a.ID, SendMessageInput{Content: "msg"})
		require.NoError(t, err)
	}

	// the sender's own messages never count as unread for the sender
	unreadA, err := svc.UnreadCount(a.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 0, unreadA)

	unreadB, err := svc.UnreadCount(b.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 3, unreadB)

	updated, err := svc.MarkRead(conv.ID, b.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 3, updated)

	unreadB, err = svc.UnreadCount(b.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 0, unreadB)

	var p models.ConversationParticipant
	require.NoError(t, db.First(&p, "conversation_id = ? AND user_id = ?", conv.ID, b.ID).Error)
	require.NotNil(t, p.LastReadAt)
	firstRead := *p.LastReadAt

	// a second call touches nothing and leaves the cursor in place
	updated, err = svc.MarkRead(conv.ID, b.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 0, updated)

	require.NoError(t, db.First(&p, "conversation_id = ? AND user_id = ?", conv.ID, b.ID).Error)
	require.NotNil(t, p.LastReadAt)
	assert.True(t, p.LastReadAt.Equal(firstRead))
}

func TestMarkReadRequiresMembership(t *testing.T) {
	db := newTestDB(t)
	svc := NewService(db)
	a := newUser(t, db, "an")
	b := newUser(t, db, "binh")
	outsider := newUser(t, db, "cuong")
	conv := direct(t, svc, a, b)

	_, err := svc.MarkRead(conv.ID, outsider.ID)
	assert.ErrorIs(t, err, models.ErrNotParticipant)

	_, err = svc.MarkRead(uuid.New(), a.ID)
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestListMessagesPagination(t *testing.T) {
	db := newTestDB(t)
	svc := NewService(db)
	a := newUser(t, db, "an")
	b := newUser(t, db, "binh")
	conv := direct(t, svc, a, b)

	// distinct timestamps so the page order is deterministic
	base := time.Now().Add(-time.Hour).Truncate(time.Second)
	for i := 0; i < 12; i++ {
		m := models.Message{
			ConversationID: conv.ID,
			SenderID:       a.ID,
			Type:           models.MessageTypeText,
			Content:        "msg",
			CreatedAt:      base.Add(time.Duration(i) * time.Second),
		}
		require.NoError(t, db.Create(&m).Error)
	}

	seen := map[uuid.UUID]bool{}
	var pages [][]models.Message
	cursor := ""
	for {
		page, next, err := svc.ListMessages(conv.ID, b.ID, cursor, 5)
		require.NoError(t, err)
		pages = append(pages, page)
		for _, m := range page {
			assert.False(t, seen[m.ID], "message repeated across pages")
			seen[m.ID] = true
		}
		if next == "" {
			break
		}
		cursor = next
	}

	require.Len(t, pages, 3)
	assert.Len(t, pages[0], 5)
	assert.Len(t, pages[1], 5)
	assert.Len(t, pages[2], 2)
	assert.Len(t, seen, 12)

	// newest first within and across pages
	var prev time.Time
	for i, page := range pages {
		for j, m := range page {
			if i == 0 && j == 0 {
				prev = m.CreatedAt
				continue
			}
			assert.False(t, m.CreatedAt.After(prev), "page order broken")
			prev = m.CreatedAt
		}
	}
}

func TestListMessagesRejectsBadCursor(t *testing.T) {
	db := newTestDB(t)
	svc := NewService(db)
	a := newUser(t, db, "an")
	b := newUser(t, db, "binh")
	conv := direct(t, svc, a, b)

	_, _, err := svc.ListMessages(conv.ID, a.ID, "not-a-cursor", 10)
	var ve *models.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "cursor", ve.Field)
}

func TestCursorRoundTrip(t *testing.T) {
	at := time.Now().Truncate(time.Nanosecond)
	id := uuid.New()

	gotAt, gotID, err := decodeCursor(encodeCursor(at, id))
	require.NoError(t, err)
	assert.Equal(t, at.UnixNano(), gotAt.UnixNano())
	assert.Equal(t, id, gotID)
}

func TestConversationSummaries(t *testing.T) {
	db := newTestDB(t)
	svc := NewService(db)
	a := newUser(t, db, "an")
	b := newUser(t, db, "binh")
	c := newUser(t, db, "cuong")

	convAB := direct(t, svc, a, b)
	name := "Dự án Sunrise"
	group, created, err := svc.CreateConversation(a.ID, CreateConversationInput{
		Type:           models.ConversationGroup,
		Name:           &name,
		ParticipantIDs: []uuid.UUID{b.ID, c.ID},
	})
	require.NoError(t, err)
	require.True(t, created)

	_, err = svc.SendMessage(convAB.ID, a.ID, SendMessageInput{Content: "one"})
	require.NoError(t, err)
	_, err = svc.SendMessage(group.ID, c.ID, SendMessageInput{Content: "two"})
	require.NoError(t, err)

	summaries, err := svc.Conversations(b.ID)
	require.NoError(t, err)
	require.Len(t, summaries, 2)

	totals := map[uuid.UUID]int64{}
	for _, s := range summaries {
		totals[s.Conversation.ID] = s.UnreadCount
		require.NotNil(t, s.LastMessage)
	}
	assert.EqualValues(t, 1, totals[convAB.ID])
	assert.EqualValues(t, 1, totals[group.ID])

	// marking one thread read leaves the other untouched
	_, err = svc.MarkRead(convAB.ID, b.ID)
	require.NoError(t, err)

	total, err := svc.UnreadCount(b.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
}

func TestParticipantIDs(t *testing.T) {
	db := newTestDB(t)
	svc := NewService(db)
	a := newUser(t, db, "an")
	b := newUser(t, db, "binh")
	conv := direct(t, svc, a, b)

	ids, err := svc.ParticipantIDs(conv.ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []uuid.UUID{a.ID, b.ID}, ids)
}
