package booking

import (
	"errors"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
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
		&models.Customer{},
		&models.Project{},
		&models.Property{},
		&models.Booking{},
		&models.Transaction{},
		&models.ActivityLog{},
	))
	return db
}

type fixture struct {
	agent    models.User
	customer models.Customer
	property models.Property
}

func seed(t *testing.T, db *gorm.DB) fixture {
	t.Helper()

	f := fixture{
		agent: models.User{
			Name:     "Minh Hoang",
			Email:    "minh@example.com",
			Password: "x",
			Role:     models.RoleAgent,
			IsActive: true,
		},
		customer: models.Customer{
			Name:   "Nguyen Van A",
			Phone:  "0903123456",
			Status: models.CustomerStatusProspect,
		},
		property: models.Property{
			Code:   "A12-07",
			Type:   "apartment",
			Price:  decimal.NewFromInt(2_500_000_000),
			Status: models.PropertyStatusAvailable,
		},
	}
	require.NoError(t, db.Create(&f.agent).Error)
	require.NoError(t, db.Create(&f.customer).Error)
	require.NoError(t, db.Create(&f.property).Error)
	return f
}

func mustCreate(t *testing.T, svc *Service, f fixture) *models.Booking {
	t.Helper()

	b, err := svc.Create(CreateInput{
		PropertyID:  f.property.ID,
		CustomerID:  f.customer.ID,
		AgreedPrice: decimal.NewFromInt(2_500_000_000),
		CreatedBy:   f.agent.ID,
	})
	require.NoError(t, err)
	return b
}

func propertyStatus(t *testing.T, db *gorm.DB, id uuid.UUID) models.PropertyStatus {
	t.Helper()

	var p models.Property
	require.NoError(t, db.First(&p, "id = ?", id).Error)
	return p.Status
}

func TestCreateReservesProperty(t *testing.T) {
	db := newTestDB(t)
	svc := NewService(db)
	f := seed(t, db)

	b := mustCreate(t, svc, f)
	assert.Equal(t, models.BookingStatusPending, b.Status)
	assert.Equal(t, models.PropertyStatusReserved, propertyStatus(t, db, f.property.ID))

	// the unit is no longer available, so a second booking is refused
	_, err := svc.Create(CreateInput{
		PropertyID:  f.property.ID,
		CustomerID:  f.customer.ID,
		AgreedPrice: decimal.NewFromInt(2_400_000_000),
		CreatedBy:   f.agent.ID,
	})
	var ve *models.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "property_id", ve.Field)
}

func TestCreateRejectsBadInput(t *testing.T) {
	db := newTestDB(t)
	svc := NewService(db)
	f := seed(t, db)

	_, err := svc.Create(CreateInput{
		PropertyID:  f.property.ID,
		CustomerID:  f.customer.ID,
		AgreedPrice: decimal.Zero,
		CreatedBy:   f.agent.ID,
	})
	var ve *models.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "agreed_price", ve.Field)

	_, err = svc.Create(CreateInput{
		PropertyID:  f.property.ID,
		CustomerID:  uuid.New(),
		AgreedPrice: decimal.NewFromInt(100),
		CreatedBy:   f.agent.ID,
	})
	assert.ErrorIs(t, err, models.ErrNotFound)

	// failed creates must not leak a reservation
	assert.Equal(t, models.PropertyStatusAvailable, propertyStatus(t, db, f.property.ID))
}

func TestLifecycleHappyPath(t *testing.T) {
	db := newTestDB(t)
	svc := NewService(db)
	f := seed(t, db)
	b := mustCreate(t, svc, f)

	b, err := svc.Approve(b.ID, f.agent.ID)
	require.NoError(t, err)
	assert.Equal(t, models.BookingStatusApproved, b.Status)

	_, err = svc.AddDeposit(b.ID, f.agent.ID, decimal.NewFromInt(250_000_000), "bank_transfer", "")
	require.NoError(t, err)

	b, err = svc.MarkDeposited(b.ID, f.agent.ID)
	require.NoError(t, err)
	assert.Equal(t, models.BookingStatusDeposited, b.Status)
	assert.NotNil(t, b.DepositDate)

	b, err = svc.MarkContracted(b.ID, f.agent.ID)
	require.NoError(t, err)
	assert.Equal(t, models.BookingStatusContracted, b.Status)

	b, err = svc.Complete(b.ID, f.agent.ID)
	require.NoError(t, err)
	assert.Equal(t, models.BookingStatusCompleted, b.Status)
	assert.NotNil(t, b.HandoverDate)
	assert.Equal(t, models.PropertyStatusSold, propertyStatus(t, db, f.property.ID))
}

func TestApproveOnlyFromPending(t *testing.T) {
	db := newTestDB(t)
	svc := NewService(db)
	f := seed(t, db)
	b := mustCreate(t, svc, f)

	_, err := svc.Approve(b.ID, f.agent.ID)
	require.NoError(t, err)

	_, err = svc.Approve(b.ID, f.agent.ID)
	var ite *models.InvalidTransitionError
	require.ErrorAs(t, err, &ite)
	assert.Equal(t, models.BookingStatusApproved, ite.Current)
	assert.Equal(t, models.BookingStatusApproved, ite.Target)

	// skipping a step is refused too
	_, err = svc.Complete(b.ID, f.agent.ID)
	require.ErrorAs(t, err, &ite)
	assert.Equal(t, models.BookingStatusApproved, ite.Current)
	assert.Equal(t, models.BookingStatusCompleted, ite.Target)
}

func TestLedgerNeverChangesStatus(t *testing.T) {
	db := newTestDB(t)
	svc := NewService(db)
	f := seed(t, db)
	b := mustCreate(t, svc, f)

	_, err := svc.AddDeposit(b.ID, f.agent.ID, decimal.NewFromInt(250_000_000), "cash", "dat coc dot 1")
	require.NoError(t, err)
	_, err = svc.AddPayment(b.ID, f.agent.ID, decimal.NewFromInt(500_000_000), "bank_transfer", "")
	require.NoError(t, err)

	got, err := svc.Get(b.ID)
	require.NoError(t, err)
	assert.Equal(t, models.BookingStatusPending, got.Status)
	assert.True(t, got.PaidAmount.Equal(decimal.NewFromInt(750_000_000)),
		"paid_amount = %s", got.PaidAmount)
	require.NotNil(t, got.DepositAmount)
	assert.True(t, got.DepositAmount.Equal(decimal.NewFromInt(250_000_000)))

	entries, err := svc.Transactions(b.ID)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, models.TransactionTypeDeposit, entries[0].Type)
	assert.Equal(t, models.TransactionTypePayment, entries[1].Type)

	_, err = svc.AddPayment(b.ID, f.agent.ID, decimal.Zero, "cash", "")
	var ve *models.ValidationError
	assert.ErrorAs(t, err, &ve)
}

func TestCancel(t *testing.T) {
	db := newTestDB(t)
	svc := NewService(db)
	f := seed(t, db)
	b := mustCreate(t, svc, f)

	_, err := svc.Cancel(b.ID, f.agent.ID, "")
	var ve *models.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "reason", ve.Field)

	got, err := svc.Cancel(b.ID, f.agent.ID, "khách đổi ý")
	require.NoError(t, err)
	assert.Equal(t, models.BookingStatusCancelled, got.Status)
	require.NotNil(t, got.CancellationReason)
	assert.Equal(t, "khách đổi ý", *got.CancellationReason)

	// the unit goes back on the market
	assert.Equal(t, models.PropertyStatusAvailable, propertyStatus(t, db, f.property.ID))

	// terminal states stay terminal
	_, err = svc.Cancel(b.ID, f.agent.ID, "again")
	var ite *models.InvalidTransitionError
	require.ErrorAs(t, err, &ite)
	assert.Equal(t, models.BookingStatusCancelled, ite.Current)
}

func TestCancelCompletedRefused(t *testing.T) {
	db := newTestDB(t)
	svc := NewService(db)
	f := seed(t, db)
	b := mustCreate(t, svc, f)

	for _, step := range []func(uuid.UUID, uuid.UUID) (*models.Booking, error){
		svc.Approve, svc.MarkDeposited, svc.MarkContracted, svc.Complete,
	} {
		_, err := step(b.ID, f.agent.ID)
		require.NoError(t, err)
	}

	_, err := svc.Cancel(b.ID, f.agent.ID, "too late")
	var ite *models.InvalidTransitionError
	require.ErrorAs(t, err, &ite)
	assert.Equal(t, models.BookingStatusCompleted, ite.Current)
	assert.Equal(t, models.PropertyStatusSold, propertyStatus(t, db, f.property.ID))
}

func TestUpdateRefusedWhenTerminal(t *testing.T) {
	db := newTestDB(t)
	svc := NewService(db)
	f := seed(t, db)
	b := mustCreate(t, svc, f)

	notes := "updated notes"
	_, err := svc.Update(b.ID, f.agent.ID, UpdateInput{Notes: &notes})
	require.NoError(t, err)

	_, err = svc.Cancel(b.ID, f.agent.ID, "khách đổi ý")
	require.NoError(t, err)

	_, err = svc.Update(b.ID, f.agent.ID, UpdateInput{Notes: &notes})
	var ve *models.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "status", ve.Field)
}

func TestDeletePolicy(t *testing.T) {
	db := newTestDB(t)
	svc := NewService(db)
	f := seed(t, db)
	b := mustCreate(t, svc, f)

	_, err := svc.AddDeposit(b.ID, f.agent.ID, decimal.NewFromInt(1_000_000), "cash", "")
	require.NoError(t, err)

	err = svc.Delete(b.ID, f.agent.ID)
	var ve *models.ValidationError
	require.ErrorAs(t, err, &ve)

	// a booking without ledger entries may be removed, releasing the unit
	f2 := fixture{agent: f.agent, customer: f.customer}
	f2.property = models.Property{Code: "B03-11", Price: decimal.NewFromInt(1_800_000_000), Status: models.PropertyStatusAvailable}
	require.NoError(t, db.Create(&f2.property).Error)

	b2 := mustCreate(t, svc, f2)
	require.NoError(t, svc.Delete(b2.ID, f.agent.ID))
	assert.Equal(t, models.PropertyStatusAvailable, propertyStatus(t, db, f2.property.ID))

	_, err = svc.Get(b2.ID)
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestGetUnknownBooking(t *testing.T) {
	db := newTestDB(t)
	svc := NewService(db)

	_, err := svc.Get(uuid.New())
	assert.True(t, errors.Is(err, models.ErrNotFound))

	_, err = svc.Approve(uuid.New(), uuid.New())
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestListFilters(t *testing.T) {
	db := newTestDB(t)
	svc := NewService(db)
	f := seed(t, db)
	b := mustCreate(t, svc, f)

	other := models.Property{Code: "C01-02", Price: decimal.NewFromInt(900_000_000), Status: models.PropertyStatusAvailable}
	require.NoError(t, db.Create(&other).Error)
	b2, err := svc.Create(CreateInput{
		PropertyID:  other.ID,
		CustomerID:  f.customer.ID,
		AgreedPrice: decimal.NewFromInt(900_000_000),
		CreatedBy:   f.agent.ID,
	})
	require.NoError(t, err)

	_, err = svc.Approve(b2.ID, f.agent.ID)
	require.NoError(t, err)

	pending, total, err := svc.List(ListFilter{Status: string(models.BookingStatusPending)})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	require.Len(t, pending, 1)
	assert.Equal(t, b.ID, pending[0].ID)

	all, total, err := svc.List(ListFilter{CustomerID: &f.customer.ID})
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	assert.Len(t, all, 2)
}
