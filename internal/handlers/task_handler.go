package handlers

import (
	"log"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/minhhoang-dev/estate_crm_be/internal/models"
	"github.com/minhhoang-dev/estate_crm_be/internal/tasks"
	"github.com/minhhoang-dev/estate_crm_be/internal/utils"
)

type TaskHandler struct {
	DB         *gorm.DB
	TaskClient *asynq.Client
}

func NewTaskHandler(db *gorm.DB, taskClient *asynq.Client) *TaskHandler {
	return &TaskHandler{DB: db, TaskClient: taskClient}
}

type TaskReq struct {
	Title      string     `json:"title" validate:"required"`
	Detail     string     `json:"detail"`
	AssigneeID *string    `json:"assignee_id,omitempty"`
	CustomerID *string    `json:"customer_id,omitempty"`
	BookingID  *string    `json:"booking_id,omitempty"`
	DueAt      *time.Time `json:"due_at,omitempty"`
}

func (h *TaskHandler) Create(c *fiber.Ctx) error {
	userID, err := getUserUUID(c)
	if err != nil {
		return unauthorized(c)
	}

	var req TaskReq
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	if err := utils.Validate.Struct(req); err != nil {
		return badRequest(c, "title is required")
	}

	t := models.Task{
		Title:      req.Title,
		Detail:     req.Detail,
		AssigneeID: userID,
		DueAt:      req.DueAt,
		Status:     models.TaskStatusOpen,
		CreatedBy:  userID,
	}
	if req.AssigneeID != nil {
		aid, err := uuid.Parse(*req.AssigneeID)
		if err != nil {
			return badRequest(c, "invalid assignee_id")
		}
		t.AssigneeID = aid
	}
	if req.CustomerID != nil {
		cid, err := uuid.Parse(*req.CustomerID)
		if err != nil {
			return badRequest(c, "invalid customer_id")
		}
		t.CustomerID = &cid
	}
	if req.BookingID != nil {
		bid, err := uuid.Parse(*req.BookingID)
		if err != nil {
			return badRequest(c, "invalid booking_id")
		}
		t.BookingID = &bid
	}

	if err := h.DB.Create(&t).Error; err != nil {
		return failWith(c, err)
	}

	if t.DueAt != nil && h.TaskClient != nil {
		if err := tasks.EnqueueTaskReminder(h.TaskClient, t.ID, *t.DueAt); err != nil {
			log.Println("enqueue task reminder:", err)
		}
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"success": true, "data": t})
}

func (h *TaskHandler) List(c *fiber.Ctx) error {
	userID, err := getUserUUID(c)
	if err != nil {
		return unauthorized(c)
	}

	q := h.DB.Model(&models.Task{}).Where("assignee_id = ?", userID)
	if status := c.Query("status"); status != "" {
		q = q.Where("status = ?", status)
	}

	var items []models.Task
	if err := q.Order("due_at ASC, created_at DESC").Find(&items).Error; err != nil {
		return failWith(c, err)
	}
	return c.JSON(fiber.Map{"success": true, "data": items})
}

func (h *TaskHandler) Complete(c *fiber.Ctx) error {
	userID, err := getUserUUID(c)
	if err != nil {
		return unauthorized(c)
	}
	id, err := paramUUID(c, "id")
	if err != nil {
		return badRequest(c, "invalid task ID")
	}

	res := h.DB.Model(&models.Task{}).
		Where("id = ? AND assignee_id = ? AND status = ?", id, userID, models.TaskStatusOpen).
		Update("status", models.TaskStatusDone)
	if res.Error != nil {
		return failWith(c, res.Error)
	}
	if res.RowsAffected == 0 {
		return failWith(c, models.ErrNotFound)
	}
	return c.JSON(fiber.Map{"success": true})
}

type EventReq struct {
	Title    string         `json:"title" validate:"required"`
	StartsAt time.Time      `json:"starts_at" validate:"required"`
	EndsAt   *time.Time     `json:"ends_at,omitempty"`
	Meta     datatypes.JSON `json:"meta"`
}

func (h *TaskHandler) CreateEvent(c *fiber.Ctx) error {
	userID, err := getUserUUID(c)
	if err != nil {
		return unauthorized(c)
	}

	var req EventReq
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	if err := utils.Validate.Struct(req); err != nil {
		return badRequest(c, "title and starts_at are required")
	}

	e := models.Event{
		Title:    req.Title,
		OwnerID:  userID,
		StartsAt: req.StartsAt,
		EndsAt:   req.EndsAt,
		Meta:     req.Meta,
	}
	if err := h.DB.Create(&e).Error; err != nil {
		return failWith(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"success": true, "data": e})
}

func (h *TaskHandler) ListEvents(c *fiber.Ctx) error {
	userID, err := getUserUUID(c)
	if err != nil {
		return unauthorized(c)
	}

	q := h.DB.Model(&models.Event{}).Where("owner_id = ?", userID)
	if from := c.Query("from"); from != "" {
		q = q.Where("starts_at >= ?", from)
	}
	if to := c.Query("to"); to != "" {
		q = q.Where("starts_at < ?", to)
	}

	var items []models.Event
	if err := q.Order("starts_at ASC").Find(&items).Error; err != nil {
		return failWith(c, err)
	}
	return c.JSON(fiber.Map{"success": true, "data": items})
}
