package booking

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/minhhoang-dev/estate_crm_be/internal/models"
)

// Service owns the booking status lifecycle and the transaction ledger.
// Every transition is a conditioned write (WHERE id AND status) so two
// concurrent calls on the same booking cannot both succeed.
type Service struct {
	DB *gorm.DB
}

func NewService(db *gorm.DB) *Service {
	return &Service{DB: db}
}

type CreateInput struct {
	PropertyID    uuid.UUID
	CustomerID    uuid.UUID
	AgreedPrice   decimal.Decimal
	DepositAmount *decimal.Decimal
	DepositDate   *time.Time
	Notes         string
	CreatedBy     uuid.UUID
}

// Create reserves the property and opens a PENDING booking in one DB
// transaction. Recording an initial deposit amount here does NOT move the
// booking to DEPOSITED; that stays an explicit action.
func (s *Service) Create(in CreateInput) (*models.Booking, error) {
	if !in.AgreedPrice.IsPositive() {
		return nil, models.Invalid("agreed_price", "must be greater than zero")
	}
	if in.DepositAmount != nil && in.DepositAmount.IsNegative() {
		return nil, models.Invalid("deposit_amount", "must not be negative")
	}

	b := &models.Booking{
		PropertyID:    in.PropertyID,
		CustomerID:    in.CustomerID,
		AgreedPrice:   in.AgreedPrice,
		DepositAmount: in.DepositAmount,
		DepositDate:   in.DepositDate,
		Notes:         in.Notes,
		Status:        models.BookingStatusPending,
		CreatedBy:     in.CreatedBy,
	}

	err := s.DB.Transaction(func(tx *gorm.DB) error {
		var customer models.Customer
		if err := tx.First(&customer, "id = ?", in.CustomerID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return models.ErrNotFound
			}
			return err
		}

		// Availability is rechecked here, not at form-load time: the flip
		// AVAILABLE -> RESERVED only succeeds for one concurrent creator.
		res := tx.Model(&models.Property{}).
			Where("id = ? AND status = ?", in.PropertyID, models.PropertyStatusAvailable).
			Update("status", models.PropertyStatusReserved)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			var prop models.Property
			if err := tx.First(&prop, "id = ?", in.PropertyID).Error; err != nil {
				return models.ErrNotFound
			}
			return models.Invalid("property_id", "property is not available")
		}

		if err := tx.Create(b).Error; err != nil {
			return err
		}
		return logActivity(tx, in.CreatedBy, "booking.create", b.ID, "booking opened for property "+in.PropertyID.String())
	})
	if err != nil {
		return nil, err
	}
	return b, nil
}

// Get loads a booking with its relations.
func (s *Service) Get(id uuid.UUID) (*models.Booking, error) {
	var b models.Booking
	err := s.DB.
		Preload("Property").
		Preload("Customer").
		Preload("Transactions").
		First(&b, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}

type ListFilter struct {
	Status     string
	CustomerID *uuid.UUID
	Limit      int
	Offset     int
}

func (s *Service) List(f ListFilter) ([]models.Booking, int64, error) {
	q := s.DB.Model(&models.Booking{}).Preload("Property").Preload("Customer")
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.CustomerID != nil {
		q = q.Where("customer_id = ?", *f.CustomerID)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	limit := f.Limit
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	var out []models.Booking
	if err := q.Order("created_at DESC").Limit(limit).Offset(f.Offset).Find(&out).Error; err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

// Approve moves PENDING -> APPROVED.
func (s *Service) Approve(id, actor uuid.UUID) (*models.Booking, error) {
	return s.transition(id, actor, models.BookingStatusPending, models.BookingStatusApproved, nil)
}

// MarkDeposited moves APPROVED -> DEPOSITED. Deposit money is recorded
// separately via AddDeposit; this only flips the status.
func (s *Service) MarkDeposited(id, actor uuid.UUID) (*models.Booking, error) {
	now := time.Now()
	return s.transition(id, actor, models.BookingStatusApproved, models.BookingStatusDeposited,
		map[string]interface{}{"deposit_date": &now})
}

// MarkContracted moves DEPOSITED -> CONTRACTED.
func (s *Service) MarkContracted(id, actor uuid.UUID) (*models.Booking, error) {
	now := time.Now()
	return s.transition(id, actor, models.BookingStatusDeposited, models.BookingStatusContracted,
		map[string]interface{}{"contract_date": &now})
}

// Complete moves CONTRACTED -> COMPLETED and marks the property SOLD.
func (s *Service) Complete(id, actor uuid.UUID) (*models.Booking, error) {
	now := time.Now()
	return s.transition(id, actor, models.BookingStatusContracted, models.BookingStatusCompleted,
		map[string]interface{}{"handover_date": &now})
}

// Cancel is reachable from every non-terminal state and requires a reason.
func (s *Service) Cancel(id, actor uuid.UUID, reason string) (*models.Booking, error) {
	if reason == "" {
		return nil, models.Invalid("reason", "cancellation reason is required")
	}

	var b models.Booking
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&b, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return models.ErrNotFound
			}
			return err
		}

		res := tx.Model(&models.Booking{}).
			Where("id = ? AND status NOT IN ?", id,
				[]models.BookingStatus{models.BookingStatusCompleted, models.BookingStatusCancelled}).
			Updates(map[string]interface{}{
				"status":              models.BookingStatusCancelled,
				"cancellation_reason": reason,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			// already terminal; report the persisted status
			tx.First(&b, "id = ?", id)
			return &models.InvalidTransitionError{Current: b.Status, Target: models.BookingStatusCancelled}
		}

		// release the unit so it can be booked again
		if err := tx.Model(&models.Property{}).
			Where("id = ? AND status = ?", b.PropertyID, models.PropertyStatusReserved).
			Update("status", models.PropertyStatusAvailable).Error; err != nil {
			return err
		}
		return logActivity(tx, actor, "booking.cancel", id, reason)
	})
	if err != nil {
		return nil, err
	}
	return s.Get(id)
}

// AddDeposit appends a DEPOSIT ledger entry. Status never changes here.
func (s *Service) AddDeposit(id, actor uuid.UUID, amount decimal.Decimal, method, notes string) (*models.Transaction, error) {
	return s.appendLedger(id, actor, models.TransactionTypeDeposit, amount, method, notes)
}

// AddPayment appends a PAYMENT ledger entry. Status never changes here.
func (s *Service) AddPayment(id, actor uuid.UUID, amount decimal.Decimal, method, notes string) (*models.Transaction, error) {
	return s.appendLedger(id, actor, models.TransactionTypePayment, amount, method, notes)
}

func (s *Service) appendLedger(id, actor uuid.UUID, kind models.TransactionType, amount decimal.Decimal, method, notes string) (*models.Transaction, error) {
	if !amount.IsPositive() {
		return nil, models.Invalid("amount", "must be greater than zero")
	}

	entry := &models.Transaction{
		BookingID:     id,
		Type:          kind,
		Amount:        amount,
		PaymentMethod: method,
		Notes:         notes,
		CreatedBy:     actor,
	}

	err := s.DB.Transaction(func(tx *gorm.DB) error {
		var b models.Booking
		if err := tx.First(&b, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return models.ErrNotFound
			}
			return err
		}

		if err := tx.Create(entry).Error; err != nil {
			return err
		}

		// keep the booking totals in step with the ledger
		updates := map[string]interface{}{
			"paid_amount": gorm.Expr("paid_amount + ?", amount),
		}
		if kind == models.TransactionTypeDeposit {
			updates["deposit_amount"] = gorm.Expr("COALESCE(deposit_amount, 0) + ?", amount)
		}
		if err := tx.Model(&models.Booking{}).Where("id = ?", id).Updates(updates).Error; err != nil {
			return err
		}
		return logActivity(tx, actor, "booking."+string(kind), id, amount.String()+" "+method)
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

type UpdateInput struct {
	AgreedPrice  *decimal.Decimal
	DepositDate  *time.Time
	ContractDate *time.Time
	HandoverDate *time.Time
	Notes        *string
}

// Update patches booking fields while the booking is still open. Status is
// not reachable through this path; the explicit actions above own it.
func (s *Service) Update(id, actor uuid.UUID, in UpdateInput) (*models.Booking, error) {
	updates := map[string]interface{}{}
	if in.AgreedPrice != nil {
		if !in.AgreedPrice.IsPositive() {
			return nil, models.Invalid("agreed_price", "must be greater than zero")
		}
		updates["agreed_price"] = *in.AgreedPrice
	}
	if in.DepositDate != nil {
		updates["deposit_date"] = *in.DepositDate
	}
	if in.ContractDate != nil {
		updates["contract_date"] = *in.ContractDate
	}
	if in.HandoverDate != nil {
		updates["handover_date"] = *in.HandoverDate
	}
	if in.Notes != nil {
		updates["notes"] = *in.Notes
	}
	if len(updates) == 0 {
		return nil, models.Invalid("body", "nothing to update")
	}

	err := s.DB.Transaction(func(tx *gorm.DB) error {
		var b models.Booking
		if err := tx.First(&b, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return models.ErrNotFound
			}
			return err
		}

		res := tx.Model(&models.Booking{}).
			Where("id = ? AND status NOT IN ?", id,
				[]models.BookingStatus{models.BookingStatusCompleted, models.BookingStatusCancelled}).
			Updates(updates)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return models.Invalid("status", "cannot update a completed or cancelled booking")
		}
		return logActivity(tx, actor, "booking.update", id, "")
	})
	if err != nil {
		return nil, err
	}
	return s.Get(id)
}

// Delete hard-deletes a booking. Bookings with ledger entries are refused:
// financial history must survive the booking record.
func (s *Service) Delete(id, actor uuid.UUID) error {
	return s.DB.Transaction(func(tx *gorm.DB) error {
		var b models.Booking
		if err := tx.First(&b, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return models.ErrNotFound
			}
			return err
		}

		var ledger int64
		if err := tx.Model(&models.Transaction{}).Where("booking_id = ?", id).Count(&ledger).Error; err != nil {
			return err
		}
		if ledger > 0 {
			return models.Invalid("booking", "cannot delete a booking with recorded transactions; cancel it instead")
		}

		if !b.Status.Terminal() {
			if err := tx.Model(&models.Property{}).
				Where("id = ? AND status = ?", b.PropertyID, models.PropertyStatusReserved).
				Update("status", models.PropertyStatusAvailable).Error; err != nil {
				return err
			}
		}
		if err := tx.Delete(&models.Booking{}, "id = ?", id).Error; err != nil {
			return err
		}
		return logActivity(tx, actor, "booking.delete", id, "")
	})
}

// Transactions returns the booking's ledger in append order.
func (s *Service) Transactions(id uuid.UUID) ([]models.Transaction, error) {
	var b models.Booking
	if err := s.DB.First(&b, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.ErrNotFound
		}
		return nil, err
	}
	var out []models.Transaction
	if err := s.DB.Where("booking_id = ?", id).Order("created_at ASC, id ASC").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Service) transition(id, actor uuid.UUID, from, to models.BookingStatus, extra map[string]interface{}) (*models.Booking, error) {
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		var b models.Booking
		if err := tx.First(&b, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return models.ErrNotFound
			}
			return err
		}

		updates := map[string]interface{}{"status": to}
		for k, v := range extra {
			updates[k] = v
		}

		// Conditioned on the expected current status: of two concurrent
		// callers, exactly one sees RowsAffected == 1.
		res := tx.Model(&models.Booking{}).Where("id = ? AND status = ?", id, from).Updates(updates)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			tx.First(&b, "id = ?", id)
			return &models.InvalidTransitionError{Current: b.Status, Target: to}
		}

		if to == models.BookingStatusCompleted {
			if err := tx.Model(&models.Property{}).
				Where("id = ?", b.PropertyID).
				Update("status", models.PropertyStatusSold).Error; err != nil {
				return err
			}
		}
		return logActivity(tx, actor, "booking."+string(to), id, "")
	})
	if err != nil {
		return nil, err
	}
	return s.Get(id)
}

func logActivity(tx *gorm.DB, actor uuid.UUID, action string, entityID uuid.UUID, detail string) error {
	return tx.Create(&models.ActivityLog{
		ActorID:    actor,
		Action:     action,
		EntityType: "booking",
		EntityID:   entityID,
		Detail:     detail,
	}).Error
}
