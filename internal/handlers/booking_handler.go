package handlers

import (
	"log"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/shopspring/decimal"

	"github.com/minhhoang-dev/estate_crm_be/internal/models"
	"github.com/minhhoang-dev/estate_crm_be/internal/services/booking"
	"github.com/minhhoang-dev/estate_crm_be/internal/services/notify"
	"github.com/minhhoang-dev/estate_crm_be/internal/tasks"
	"github.com/minhhoang-dev/estate_crm_be/internal/utils"
)

type BookingHandler struct {
	Svc        *booking.Service
	Notifier   *notify.Service
	TaskClient *asynq.Client
}

func NewBookingHandler(svc *booking.Service, notifier *notify.Service, taskClient *asynq.Client) *BookingHandler {
	return &BookingHandler{Svc: svc, Notifier: notifier, TaskClient: taskClient}
}

type CreateBookingReq struct {
	PropertyID    string           `json:"property_id" validate:"required,uuid"`
	CustomerID    string           `json:"customer_id" validate:"required,uuid"`
	AgreedPrice   decimal.Decimal  `json:"agreed_price"`
	DepositAmount *decimal.Decimal `json:"deposit_amount,omitempty"`
	DepositDate   *time.Time       `json:"deposit_date,omitempty"`
	Notes         string           `json:"notes"`
}

func (h *BookingHandler) Create(c *fiber.Ctx) error {
	userID, err := getUserUUID(c)
	if err != nil {
		return unauthorized(c)
	}

	var req CreateBookingReq
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	if err := utils.Validate.Struct(req); err != nil {
		return badRequest(c, "property_id and customer_id are required")
	}

	propertyID, _ := uuid.Parse(req.PropertyID)
	customerID, _ := uuid.Parse(req.CustomerID)

	b, err := h.Svc.Create(booking.CreateInput{
		PropertyID:    propertyID,
		CustomerID:    customerID,
		AgreedPrice:   req.AgreedPrice,
		DepositAmount: req.DepositAmount,
		DepositDate:   req.DepositDate,
		Notes:         req.Notes,
		CreatedBy:     userID,
	})
	if err != nil {
		return failWith(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"success": true, "data": b})
}

func (h *BookingHandler) List(c *fiber.Ctx) error {
	if _, err := getUserUUID(c); err != nil {
		return unauthorized(c)
	}

	f := booking.ListFilter{
		Status: c.Query("status"),
		Limit:  c.QueryInt("limit", 20),
		Offset: (c.QueryInt("page", 1) - 1) * c.QueryInt("limit", 20),
	}
	if raw := c.Query("customer_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return badRequest(c, "invalid customer_id")
		}
		f.CustomerID = &id
	}

	items, total, err := h.Svc.List(f)
	if err != nil {
		return failWith(c, err)
	}
	return c.JSON(fiber.Map{"success": true, "data": items, "total": total})
}

func (h *BookingHandler) Get(c *fiber.Ctx) error {
	if _, err := getUserUUID(c); err != nil {
		return unauthorized(c)
	}
	id, err := paramUUID(c, "id")
	if err != nil {
		return badRequest(c, "invalid booking ID")
	}

	b, err := h.Svc.Get(id)
	if err != nil {
		return failWith(c, err)
	}
	return c.JSON(fiber.Map{"success": true, "data": b})
}

func (h *BookingHandler) Approve(c *fiber.Ctx) error {
	userID, err := getUserUUID(c)
	if err != nil {
		return unauthorized(c)
	}
	id, err := paramUUID(c, "id")
	if err != nil {
		return badRequest(c, "invalid booking ID")
	}

	b, err := h.Svc.Approve(id, userID)
	if err != nil {
		return failWith(c, err)
	}

	if b.CreatedBy != userID {
		_, _ = h.Notifier.Notify(b.CreatedBy, "booking_status",
			"Booking approved", "Booking "+b.ID.String()+" was approved")
	}
	return c.JSON(fiber.Map{"success": true, "data": b})
}

type UpdateStatusReq struct {
	Status string `json:"status"`
}

// UpdateStatus drives the remaining forward transitions. Each target status
// maps to one explicit service action; nothing is inferred from field edits.
func (h *BookingHandler) UpdateStatus(c *fiber.Ctx) error {
	userID, err := getUserUUID(c)
	if err != nil {
		return unauthorized(c)
	}
	id, err := paramUUID(c, "id")
	if err != nil {
		return badRequest(c, "invalid booking ID")
	}

	var req UpdateStatusReq
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid body")
	}

	var b *models.Booking
	switch models.BookingStatus(req.Status) {
	case models.BookingStatusApproved:
		b, err = h.Svc.Approve(id, userID)
	case models.BookingStatusDeposited:
		b, err = h.Svc.MarkDeposited(id, userID)
	case models.BookingStatusContracted:
		b, err = h.Svc.MarkContracted(id, userID)
	case models.BookingStatusCompleted:
		b, err = h.Svc.Complete(id, userID)
	default:
		return badRequest(c, "status must be APPROVED, DEPOSITED, CONTRACTED or COMPLETED")
	}
	if err != nil {
		return failWith(c, err)
	}
	return c.JSON(fiber.Map{"success": true, "data": b})
}

type CancelBookingReq struct {
	Reason string `json:"reason"`
}

func (h *BookingHandler) Cancel(c *fiber.Ctx) error {
	userID, err := getUserUUID(c)
	if err != nil {
		return unauthorized(c)
	}
	id, err := paramUUID(c, "id")
	if err != nil {
		return badRequest(c, "invalid booking ID")
	}

	var req CancelBookingReq
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid body")
	}

	b, err := h.Svc.Cancel(id, userID, req.Reason)
	if err != nil {
		return failWith(c, err)
	}

	if b.CreatedBy != userID {
		_, _ = h.Notifier.Notify(b.CreatedBy, "booking_status",
			"Booking cancelled", "Booking "+b.ID.String()+" was cancelled: "+req.Reason)
	}
	return c.JSON(fiber.Map{"success": true, "data": b})
}

type LedgerReq struct {
	Amount        decimal.Decimal `json:"amount"`
	PaymentMethod string          `json:"payment_method"`
	Notes         string          `json:"notes"`
}

func (h *BookingHandler) AddDeposit(c *fiber.Ctx) error {
	return h.appendLedger(c, true)
}

func (h *BookingHandler) AddPayment(c *fiber.Ctx) error {
	return h.appendLedger(c, false)
}

func (h *BookingHandler) appendLedger(c *fiber.Ctx, deposit bool) error {
	userID, err := getUserUUID(c)
	if err != nil {
		return unauthorized(c)
	}
	id, err := paramUUID(c, "id")
	if err != nil {
		return badRequest(c, "invalid booking ID")
	}

	var req LedgerReq
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid body")
	}

	var entry *models.Transaction
	if deposit {
		entry, err = h.Svc.AddDeposit(id, userID, req.Amount, req.PaymentMethod, req.Notes)
	} else {
		entry, err = h.Svc.AddPayment(id, userID, req.Amount, req.PaymentMethod, req.Notes)
	}
	if err != nil {
		return failWith(c, err)
	}

	if deposit && h.TaskClient != nil {
		// nudge about the remaining balance in a week
		if err := tasks.EnqueuePaymentReminder(h.TaskClient, id, 7*24*time.Hour); err != nil {
			log.Println("enqueue payment reminder:", err)
		}
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"success": true, "data": entry})
}

func (h *BookingHandler) Transactions(c *fiber.Ctx) error {
	if _, err := getUserUUID(c); err != nil {
		return unauthorized(c)
	}
	id, err := paramUUID(c, "id")
	if err != nil {
		return badRequest(c, "invalid booking ID")
	}

	items, err := h.Svc.Transactions(id)
	if err != nil {
		return failWith(c, err)
	}
	return c.JSON(fiber.Map{"success": true, "data": items})
}

type UpdateBookingReq struct {
	AgreedPrice  *decimal.Decimal `json:"agreed_price,omitempty"`
	DepositDate  *time.Time       `json:"deposit_date,omitempty"`
	ContractDate *time.Time       `json:"contract_date,omitempty"`
	HandoverDate *time.Time       `json:"handover_date,omitempty"`
	Notes        *string          `json:"notes,omitempty"`
}

func (h *BookingHandler) Update(c *fiber.Ctx) error {
	userID, err := getUserUUID(c)
	if err != nil {
		return unauthorized(c)
	}
	id, err := paramUUID(c, "id")
	if err != nil {
		return badRequest(c, "invalid booking ID")
	}

	// status never travels through this endpoint
	var probe map[string]interface{}
	if err := c.App().Config().JSONDecoder(c.Body(), &probe); err != nil {
		return badRequest(c, "invalid body")
	}
	if _, ok := probe["status"]; ok {
		return badRequest(c, "status cannot be updated directly; use the status actions")
	}

	var req UpdateBookingReq
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid body")
	}

	b, err := h.Svc.Update(id, userID, booking.UpdateInput{
		AgreedPrice:  req.AgreedPrice,
		DepositDate:  req.DepositDate,
		ContractDate: req.ContractDate,
		HandoverDate: req.HandoverDate,
		Notes:        req.Notes,
	})
	if err != nil {
		return failWith(c, err)
	}
	return c.JSON(fiber.Map{"success": true, "data": b})
}

func (h *BookingHandler) Delete(c *fiber.Ctx) error {
	userID, err := getUserUUID(c)
	if err != nil {
		return unauthorized(c)
	}
	id, err := paramUUID(c, "id")
	if err != nil {
		return badRequest(c, "invalid booking ID")
	}

	if err := h.Svc.Delete(id, userID); err != nil {
		return failWith(c, err)
	}
	return c.JSON(fiber.Map{"success": true})
}
