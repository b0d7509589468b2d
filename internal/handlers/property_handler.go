package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/minhhoang-dev/estate_crm_be/internal/models"
	"github.com/minhhoang-dev/estate_crm_be/internal/utils"
)

type PropertyHandler struct {
	DB *gorm.DB
}

func NewPropertyHandler(db *gorm.DB) *PropertyHandler {
	return &PropertyHandler{DB: db}
}

type ProjectReq struct {
	Name      string `json:"name" validate:"required"`
	Developer string `json:"developer"`
	Location  string `json:"location"`
}

func (h *PropertyHandler) CreateProject(c *fiber.Ctx) error {
	if _, err := getUserUUID(c); err != nil {
		return unauthorized(c)
	}

	var req ProjectReq
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	if err := utils.Validate.Struct(req); err != nil {
		return badRequest(c, "name is required")
	}

	p := models.Project{Name: req.Name, Developer: req.Developer, Location: req.Location}
	if err := h.DB.Create(&p).Error; err != nil {
		return failWith(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"success": true, "data": p})
}

func (h *PropertyHandler) ListProjects(c *fiber.Ctx) error {
	if _, err := getUserUUID(c); err != nil {
		return unauthorized(c)
	}

	var projects []models.Project
	if err := h.DB.Order("created_at DESC").Find(&projects).Error; err != nil {
		return failWith(c, err)
	}
	return c.JSON(fiber.Map{"success": true, "data": projects})
}

type PropertyReq struct {
	ProjectID *string         `json:"project_id,omitempty"`
	Code      string          `json:"code" validate:"required"`
	Type      string          `json:"type"`
	Block     string          `json:"block"`
	Floor     int             `json:"floor"`
	Area      float64         `json:"area"`
	Price     decimal.Decimal `json:"price"`
	Images    datatypes.JSON  `json:"images"`
	Amenities datatypes.JSON  `json:"amenities"`
}

func (h *PropertyHandler) Create(c *fiber.Ctx) error {
	if _, err := getUserUUID(c); err != nil {
		return unauthorized(c)
	}

	var req PropertyReq
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	if err := utils.Validate.Struct(req); err != nil {
		return badRequest(c, "code is required")
	}
	if req.Price.IsNegative() {
		return badRequest(c, "price must not be negative")
	}

	p := models.Property{
		Code:      req.Code,
		Type:      req.Type,
		Block:     req.Block,
		Floor:     req.Floor,
		Area:      req.Area,
		Price:     req.Price,
		Status:    models.PropertyStatusAvailable,
		Images:    req.Images,
		Amenities: req.Amenities,
	}
	if req.ProjectID != nil {
		pid, err := uuid.Parse(*req.ProjectID)
		if err != nil {
			return badRequest(c, "invalid project_id")
		}
		p.ProjectID = &pid
	}

	if err := h.DB.Create(&p).Error; err != nil {
		return failWith(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"success": true, "data": p})
}

func (h *PropertyHandler) List(c *fiber.Ctx) error {
	if _, err := getUserUUID(c); err != nil {
		return unauthorized(c)
	}

	page := c.QueryInt("page", 1)
	limit := c.QueryInt("limit", 20)
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	q := h.DB.Model(&models.Property{}).Preload("Project")
	if status := c.Query("status"); status != "" {
		q = q.Where("status = ?", status)
	}
	if project := c.Query("project_id"); project != "" {
		q = q.Where("project_id = ?", project)
	}
	if t := c.Query("type"); t != "" {
		q = q.Where("type = ?", t)
	}

	var total int64
	q.Count(&total)

	var props []models.Property
	if err := q.Order("code ASC").Limit(limit).Offset((page - 1) * limit).Find(&props).Error; err != nil {
		return failWith(c, err)
	}
	return c.JSON(fiber.Map{"success": true, "data": props, "total": total})
}

func (h *PropertyHandler) Get(c *fiber.Ctx) error {
	if _, err := getUserUUID(c); err != nil {
		return unauthorized(c)
	}
	id, err := paramUUID(c, "id")
	if err != nil {
		return badRequest(c, "invalid property ID")
	}

	var p models.Property
	if err := h.DB.Preload("Project").First(&p, "id = ?", id).Error; err != nil {
		return failWith(c, models.ErrNotFound)
	}
	return c.JSON(fiber.Map{"success": true, "data": p})
}

func (h *PropertyHandler) Update(c *fiber.Ctx) error {
	if _, err := getUserUUID(c); err != nil {
		return unauthorized(c)
	}
	id, err := paramUUID(c, "id")
	if err != nil {
		return badRequest(c, "invalid property ID")
	}

	var p models.Property
	if err := h.DB.First(&p, "id = ?", id).Error; err != nil {
		return failWith(c, models.ErrNotFound)
	}

	var req map[string]interface{}
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid body")
	}

	// status moves through the booking lifecycle or CorrectStatus, not here
	updates := map[string]interface{}{}
	for _, field := range []string{"code", "type", "block", "floor", "area", "price", "images", "amenities", "project_id"} {
		if v, ok := req[field]; ok {
			updates[field] = v
		}
	}
	if len(updates) == 0 {
		return badRequest(c, "nothing to update")
	}

	if err := h.DB.Model(&p).Updates(updates).Error; err != nil {
		return failWith(c, err)
	}
	return c.JSON(fiber.Map{"success": true, "data": p})
}

type CorrectStatusReq struct {
	Status string `json:"status"`
}

// CorrectStatus is the admin escape hatch for fixing a property whose
// status drifted from reality (data entry mistakes, off-system sales).
func (h *PropertyHandler) CorrectStatus(c *fiber.Ctx) error {
	userID, err := getUserUUID(c)
	if err != nil {
		return unauthorized(c)
	}
	id, err := paramUUID(c, "id")
	if err != nil {
		return badRequest(c, "invalid property ID")
	}

	var req CorrectStatusReq
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid body")
	}

	status := models.PropertyStatus(req.Status)
	switch status {
	case models.PropertyStatusAvailable, models.PropertyStatusReserved, models.PropertyStatusSold:
	default:
		return badRequest(c, "status must be AVAILABLE, RESERVED or SOLD")
	}

	res := h.DB.Model(&models.Property{}).Where("id = ?", id).Update("status", status)
	if res.Error != nil {
		return failWith(c, res.Error)
	}
	if res.RowsAffected == 0 {
		return failWith(c, models.ErrNotFound)
	}

	_ = h.DB.Create(&models.ActivityLog{
		ActorID:    userID,
		Action:     "property.correct",
		EntityType: "property",
		EntityID:   id,
		Detail:     "status set to " + req.Status,
	}).Error

	return c.JSON(fiber.Map{"success": true})
}
