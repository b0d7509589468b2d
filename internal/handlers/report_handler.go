package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/minhhoang-dev/estate_crm_be/internal/models"
)

type ReportHandler struct {
	DB *gorm.DB
}

func NewReportHandler(db *gorm.DB) *ReportHandler {
	return &ReportHandler{DB: db}
}

type statusCount struct {
	Status string `json:"status"`
	Count  int64  `json:"count"`
}

// Dashboard aggregates the numbers shown on the landing page. Revenue is
// derived from the ledger, not from booking fields, so it stays honest even
// if a booking total drifts.
func (h *ReportHandler) Dashboard(c *fiber.Ctx) error {
	if _, err := getUserUUID(c); err != nil {
		return unauthorized(c)
	}

	var bookingsByStatus []statusCount
	h.DB.Model(&models.Booking{}).
		Select("status, COUNT(*) as count").
		Group("status").
		Scan(&bookingsByStatus)

	var customersByStatus []statusCount
	h.DB.Model(&models.Customer{}).
		Select("status, COUNT(*) as count").
		Group("status").
		Scan(&customersByStatus)

	var propertiesByStatus []statusCount
	h.DB.Model(&models.Property{}).
		Select("status, COUNT(*) as count").
		Group("status").
		Scan(&propertiesByStatus)

	var revenue decimal.Decimal
	h.DB.Model(&models.Transaction{}).
		Where("type IN ?", []models.TransactionType{models.TransactionTypeDeposit, models.TransactionTypePayment}).
		Select("COALESCE(SUM(amount), 0)").
		Scan(&revenue)

	var openTasks int64
	h.DB.Model(&models.Task{}).Where("status = ?", models.TaskStatusOpen).Count(&openTasks)

	return c.JSON(fiber.Map{
		"success": true,
		"data": fiber.Map{
			"bookings_by_status":   bookingsByStatus,
			"customers_by_status":  customersByStatus,
			"properties_by_status": propertiesByStatus,
			"revenue":              revenue,
			"open_tasks":           openTasks,
		},
	})
}

type monthlyRevenue struct {
	Month   string          `json:"month"`
	Revenue decimal.Decimal `json:"revenue"`
}

// MonthlyRevenue returns a month-keyed revenue series from the ledger.
func (h *ReportHandler) MonthlyRevenue(c *fiber.Ctx) error {
	if _, err := getUserUUID(c); err != nil {
		return unauthorized(c)
	}

	var rows []monthlyRevenue
	err := h.DB.Model(&models.Transaction{}).
		Select("to_char(created_at, 'YYYY-MM') as month, COALESCE(SUM(amount), 0) as revenue").
		Where("type IN ?", []models.TransactionType{models.TransactionTypeDeposit, models.TransactionTypePayment}).
		Group("month").
		Order("month ASC").
		Scan(&rows).Error
	if err != nil {
		return failWith(c, err)
	}
	return c.JSON(fiber.Map{"success": true, "data": rows})
}

// Activity lists the audit trail, newest first. Admin only (routed behind
// the capability check).
func (h *ReportHandler) Activity(c *fiber.Ctx) error {
	if _, err := getUserUUID(c); err != nil {
		return unauthorized(c)
	}

	limit := c.QueryInt("limit", 50)
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	q := h.DB.Model(&models.ActivityLog{})
	if entity := c.Query("entity_type"); entity != "" {
		q = q.Where("entity_type = ?", entity)
	}
	if actor := c.Query("actor_id"); actor != "" {
		q = q.Where("actor_id = ?", actor)
	}

	var items []models.ActivityLog
	if err := q.Order("created_at DESC").Limit(limit).Find(&items).Error; err != nil {
		return failWith(c, err)
	}
	return c.JSON(fiber.Map{"success": true, "data": items})
}
