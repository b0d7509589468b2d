package notify

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/minhhoang-dev/estate_crm_be/internal/models"
)

// Service persists notifications and publishes them on the per-user Redis
// channel. Whatever is listening on that channel owns actual delivery.
type Service struct {
	DB  *gorm.DB
	RDB *redis.Client
}

func NewService(db *gorm.DB, rdb *redis.Client) *Service {
	return &Service{DB: db, RDB: rdb}
}

func Channel(userID uuid.UUID) string {
	return "notifications:" + userID.String()
}

func (s *Service) Notify(userID uuid.UUID, kind, title, body string) (*models.Notification, error) {
	n := &models.Notification{
		UserID: userID,
		Kind:   kind,
		Title:  title,
		Body:   body,
	}
	if err := s.DB.Create(n).Error; err != nil {
		return nil, err
	}

	payload, _ := json.Marshal(n)
	if s.RDB != nil {
		s.RDB.Publish(context.Background(), Channel(userID), payload)
	}
	return n, nil
}

func (s *Service) List(userID uuid.UUID, unreadOnly bool, limit int) ([]models.Notification, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	q := s.DB.Where("user_id = ?", userID)
	if unreadOnly {
		q = q.Where("is_read = ?", false)
	}
	var out []models.Notification
	err := q.Order("created_at DESC").Limit(limit).Find(&out).Error
	return out, err
}

// MarkRead flips unread notifications; with no ids it clears everything.
func (s *Service) MarkRead(userID uuid.UUID, ids []uuid.UUID) (int64, error) {
	q := s.DB.Model(&models.Notification{}).
		Where("user_id = ? AND is_read = ?", userID, false)
	if len(ids) > 0 {
		q = q.Where("id IN ?", ids)
	}
	res := q.Updates(map[string]interface{}{"is_read": true, "read_at": gorm.Expr("CURRENT_TIMESTAMP")})
	return res.RowsAffected, res.Error
}
