package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/minhhoang-dev/estate_crm_be/internal/models"
	"github.com/minhhoang-dev/estate_crm_be/internal/utils"
)

type CustomerHandler struct {
	DB *gorm.DB
}

func NewCustomerHandler(db *gorm.DB) *CustomerHandler {
	return &CustomerHandler{DB: db}
}

type CustomerReq struct {
	Name            string  `json:"name" validate:"required"`
	Phone           string  `json:"phone" validate:"required,min=8"`
	Email           string  `json:"email" validate:"omitempty,email"`
	Source          string  `json:"source"`
	Status          string  `json:"status"`
	Notes           string  `json:"notes"`
	AssignedAgentID *string `json:"assigned_agent_id,omitempty"`
}

func (h *CustomerHandler) Create(c *fiber.Ctx) error {
	userID, err := getUserUUID(c)
	if err != nil {
		return unauthorized(c)
	}

	var req CustomerReq
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	if err := utils.Validate.Struct(req); err != nil {
		return badRequest(c, "name and phone are required")
	}

	var dup models.Customer
	if err := h.DB.Where("phone = ?", strings.TrimSpace(req.Phone)).First(&dup).Error; err == nil {
		errs := FieldErrors{}
		errs.Add("phone", "Phone already registered")
		return validationFail(c, errs)
	} else if err != gorm.ErrRecordNotFound {
		return failWith(c, err)
	}

	cust := models.Customer{
		Name:   strings.TrimSpace(req.Name),
		Phone:  strings.TrimSpace(req.Phone),
		Email:  strings.ToLower(strings.TrimSpace(req.Email)),
		Source: req.Source,
		Notes:  req.Notes,
		Status: models.CustomerStatusLead,
	}
	if req.Status != "" {
		cust.Status = models.CustomerStatus(req.Status)
	}
	if req.AssignedAgentID != nil {
		agentID, err := uuid.Parse(*req.AssignedAgentID)
		if err != nil {
			return badRequest(c, "invalid assigned_agent_id")
		}
		cust.AssignedAgentID = &agentID
	} else {
		cust.AssignedAgentID = &userID
	}

	if err := h.DB.Create(&cust).Error; err != nil {
		return failWith(c, err)
	}

	_ = h.DB.Create(&models.ActivityLog{
		ActorID:    userID,
		Action:     "customer.create",
		EntityType: "customer",
		EntityID:   cust.ID,
	}).Error

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"success": true, "data": cust})
}

func (h *CustomerHandler) List(c *fiber.Ctx) error {
	if _, err := getUserUUID(c); err != nil {
		return unauthorized(c)
	}

	page := c.QueryInt("page", 1)
	limit := c.QueryInt("limit", 20)
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	offset := (page - 1) * limit

	q := h.DB.Model(&models.Customer{}).Preload("AssignedAgent")
	if search := c.Query("q"); search != "" {
		like := "%" + search + "%"
		q = q.Where("name LIKE ? OR phone LIKE ? OR email LIKE ?", like, like, like)
	}
	if status := c.Query("status"); status != "" {
		q = q.Where("status = ?", status)
	}
	if agent := c.Query("agent_id"); agent != "" {
		q = q.Where("assigned_agent_id = ?", agent)
	}

	var total int64
	q.Count(&total)

	var customers []models.Customer
	if err := q.Order("created_at DESC").Limit(limit).Offset(offset).Find(&customers).Error; err != nil {
		return failWith(c, err)
	}

	return c.JSON(fiber.Map{"success": true, "data": customers, "total": total})
}

func (h *CustomerHandler) Get(c *fiber.Ctx) error {
	if _, err := getUserUUID(c); err != nil {
		return unauthorized(c)
	}
	id, err := paramUUID(c, "id")
	if err != nil {
		return badRequest(c, "invalid customer ID")
	}

	var cust models.Customer
	if err := h.DB.Preload("AssignedAgent").First(&cust, "id = ?", id).Error; err != nil {
		return failWith(c, models.ErrNotFound)
	}
	return c.JSON(fiber.Map{"success": true, "data": cust})
}

func (h *CustomerHandler) Update(c *fiber.Ctx) error {
	userID, err := getUserUUID(c)
	if err != nil {
		return unauthorized(c)
	}
	id, err := paramUUID(c, "id")
	if err != nil {
		return badRequest(c, "invalid customer ID")
	}

	var cust models.Customer
	if err := h.DB.First(&cust, "id = ?", id).Error; err != nil {
		return failWith(c, models.ErrNotFound)
	}

	var req map[string]interface{}
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid body")
	}

	updates := map[string]interface{}{}
	for _, field := range []string{"name", "phone", "email", "source", "status", "notes", "assigned_agent_id"} {
		if v, ok := req[field]; ok {
			updates[field] = v
		}
	}
	if len(updates) == 0 {
		return badRequest(c, "nothing to update")
	}

	if err := h.DB.Model(&cust).Updates(updates).Error; err != nil {
		return failWith(c, err)
	}

	_ = h.DB.Create(&models.ActivityLog{
		ActorID:    userID,
		Action:     "customer.update",
		EntityType: "customer",
		EntityID:   cust.ID,
	}).Error

	return c.JSON(fiber.Map{"success": true, "data": cust})
}

func (h *CustomerHandler) Delete(c *fiber.Ctx) error {
	userID, err := getUserUUID(c)
	if err != nil {
		return unauthorized(c)
	}
	id, err := paramUUID(c, "id")
	if err != nil {
		return badRequest(c, "invalid customer ID")
	}

	var bookings int64
	h.DB.Model(&models.Booking{}).Where("customer_id = ?", id).Count(&bookings)
	if bookings > 0 {
		return badRequest(c, "customer has bookings and cannot be deleted")
	}

	res := h.DB.Delete(&models.Customer{}, "id = ?", id)
	if res.Error != nil {
		return failWith(c, res.Error)
	}
	if res.RowsAffected == 0 {
		return failWith(c, models.ErrNotFound)
	}

	_ = h.DB.Create(&models.ActivityLog{
		ActorID:    userID,
		Action:     "customer.delete",
		EntityType: "customer",
		EntityID:   id,
	}).Error

	return c.JSON(fiber.Map{"success": true})
}
