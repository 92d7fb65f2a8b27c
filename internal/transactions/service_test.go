package transactions

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/patternseek/ecommerce/pkg/db/models"
	"github.com/patternseek/ecommerce/pkg/enums"
	pkgerrors "github.com/patternseek/ecommerce/pkg/errors"
	"github.com/patternseek/ecommerce/pkg/logger"
	"github.com/patternseek/ecommerce/pkg/outbox"
	"github.com/patternseek/ecommerce/pkg/outbox/payloads"
	"github.com/patternseek/ecommerce/pkg/pagination"
)

type fakeRepository struct {
	createFn func(ctx context.Context, txn *models.Transaction) error
	findFn   func(ctx context.Context, basketID uuid.UUID) (*models.Transaction, error)
}

func (f *fakeRepository) WithTx(tx *gorm.DB) Repository {
	return f
}

func (f *fakeRepository) Create(ctx context.Context, txn *models.Transaction) error {
	if f.createFn != nil {
		return f.createFn(ctx, txn)
	}
	return nil
}

func (f *fakeRepository) FindByBasketID(ctx context.Context, basketID uuid.UUID) (*models.Transaction, error) {
	if f.findFn != nil {
		return f.findFn(ctx, basketID)
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeRepository) ListForManualReview(ctx context.Context, limit int, after *pagination.Cursor) ([]models.Transaction, error) {
	return nil, nil
}

type gormRunner struct {
	db *gorm.DB
}

func (g gormRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return g.db.WithContext(ctx).Transaction(fn)
}

func newSQLiteDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{SkipDefaultTransaction: true})
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(models.All()...))
	return conn
}

func newSQLiteRepo(t *testing.T) Repository {
	t.Helper()
	return NewRepository(newSQLiteDB(t))
}

func sampleTransaction(basketID uuid.UUID, chargeID string) *models.Transaction {
	vatNumber := "B12345678"
	return &models.Transaction{
		BasketID:  basketID,
		ChargeID:  chargeID,
		Amount:    decimal.RequireFromString("121.00"),
		VatAmount: decimal.RequireFromString("21.00"),
		Currency:  "GBP",
		VatBreakdown: []models.ItemVat{{
			Description:  "Some online service",
			Quantity:     1,
			VatTreatment: enums.VatTreatmentCustomerRate.String(),
			VatRate:      decimal.RequireFromString("0.21"),
			VatPerItem:   decimal.RequireFromString("21"),
		}},
		Evidence:          models.EvidenceSnapshot{IPCountry: "ES", AddressCountry: "ES", ConfirmedCountry: "ES", ProvisionalCountry: "ES"},
		VatNumber:         &vatNumber,
		VatNumberStatus:   enums.VatNumberStatusNone,
		InstrumentCountry: "ES",
		PaymentType:       enums.PaymentTypeCard,
		BillingAddress:    "addressLine1, postCode, ES",
		Description:       "Some online service",
		TestMode:          true,
		LineItems:         json.RawMessage(`[{"description":"Some online service"}]`),
	}
}

func TestNewServiceRequiresDependencies(t *testing.T) {
	_, err := NewService(nil, logger.Nop())
	require.Error(t, err)
	_, err = NewService(&fakeRepository{}, nil)
	require.Error(t, err)
}

func TestRecordValidates(t *testing.T) {
	svc, err := NewService(&fakeRepository{}, logger.Nop())
	require.NoError(t, err)
	ctx := context.Background()

	assert.True(t, pkgerrors.HasCode(svc.Record(ctx, nil), pkgerrors.CodeValidation))
	assert.True(t, pkgerrors.HasCode(svc.Record(ctx, sampleTransaction(uuid.Nil, "pi_1")), pkgerrors.CodeValidation))
	assert.True(t, pkgerrors.HasCode(svc.Record(ctx, sampleTransaction(uuid.New(), "")), pkgerrors.CodeValidation))

	bad := sampleTransaction(uuid.New(), "pi_1")
	bad.PaymentType = "cash"
	assert.True(t, pkgerrors.HasCode(svc.Record(ctx, bad), pkgerrors.CodeValidation))
}

func TestRecordAssignsIDAndMapsErrors(t *testing.T) {
	repo := &fakeRepository{}
	svc, err := NewService(repo, logger.Nop())
	require.NoError(t, err)
	ctx := context.Background()

	var created *models.Transaction
	repo.createFn = func(ctx context.Context, txn *models.Transaction) error {
		created = txn
		return nil
	}
	txn := sampleTransaction(uuid.New(), "pi_1")
	require.NoError(t, svc.Record(ctx, txn))
	require.NotNil(t, created)
	assert.NotEqual(t, uuid.Nil, created.ID)

	repo.createFn = func(ctx context.Context, txn *models.Transaction) error {
		return errors.New(`ERROR: duplicate key value violates unique constraint "idx_transactions_basket_id"`)
	}
	assert.True(t, pkgerrors.HasCode(svc.Record(ctx, sampleTransaction(uuid.New(), "pi_2")), pkgerrors.CodeStateConflict))

	repo.createFn = func(ctx context.Context, txn *models.Transaction) error {
		return errors.New("connection refused")
	}
	assert.True(t, pkgerrors.HasCode(svc.Record(ctx, sampleTransaction(uuid.New(), "pi_3")), pkgerrors.CodeDependency))
}

func TestGetByBasketIDNotFound(t *testing.T) {
	svc, err := NewService(&fakeRepository{}, logger.Nop())
	require.NoError(t, err)

	_, err = svc.GetByBasketID(context.Background(), uuid.New())
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeNotFound))
	_, err = svc.GetByBasketID(context.Background(), uuid.Nil)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation))
}

func TestSQLiteRoundTrip(t *testing.T) {
	repo := newSQLiteRepo(t)
	svc, err := NewService(repo, logger.Nop())
	require.NoError(t, err)
	ctx := context.Background()

	basketID := uuid.New()
	txn := sampleTransaction(basketID, "pi_1")
	txn.ManualReviewRequired = true
	require.NoError(t, svc.Record(ctx, txn))

	got, err := svc.GetByBasketID(ctx, basketID)
	require.NoError(t, err)
	assert.Equal(t, txn.ID, got.ID)
	assert.Equal(t, "pi_1", got.ChargeID)
	assert.True(t, got.Amount.Equal(decimal.RequireFromString("121")))
	require.Len(t, got.VatBreakdown, 1)
	assert.True(t, got.VatBreakdown[0].VatRate.Equal(decimal.RequireFromString("0.21")))
	assert.Equal(t, "ES", got.Evidence.ConfirmedCountry)
	require.NotNil(t, got.VatNumber)
	assert.Equal(t, "B12345678", *got.VatNumber)
	assert.JSONEq(t, `[{"description":"Some online service"}]`, string(got.LineItems))

	pending, err := svc.PendingReview(ctx, pagination.Params{Limit: 10})
	require.NoError(t, err)
	require.Len(t, pending.Items, 1)
	assert.Equal(t, basketID, pending.Items[0].BasketID)
	assert.Empty(t, pending.NextCursor)

	err = svc.Record(ctx, sampleTransaction(basketID, "pi_2"))
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeStateConflict))
}

func TestPendingReviewPages(t *testing.T) {
	svc, err := NewService(newSQLiteRepo(t), logger.Nop())
	require.NoError(t, err)
	ctx := context.Background()

	base := time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC)
	var want []uuid.UUID
	for i := 0; i < 3; i++ {
		txn := sampleTransaction(uuid.New(), fmt.Sprintf("pi_page_%d", i))
		txn.ManualReviewRequired = true
		txn.CreatedAt = base.Add(time.Duration(i) * time.Minute)
		require.NoError(t, svc.Record(ctx, txn))
		want = append(want, txn.ID)
	}
	require.NoError(t, svc.Record(ctx, sampleTransaction(uuid.New(), "pi_clean")))

	first, err := svc.PendingReview(ctx, pagination.Params{Limit: 2})
	require.NoError(t, err)
	require.Len(t, first.Items, 2)
	assert.Equal(t, want[0], first.Items[0].ID)
	assert.Equal(t, want[1], first.Items[1].ID)
	require.NotEmpty(t, first.NextCursor)

	second, err := svc.PendingReview(ctx, pagination.Params{Limit: 2, Cursor: first.NextCursor})
	require.NoError(t, err)
	require.Len(t, second.Items, 1)
	assert.Equal(t, want[2], second.Items[0].ID)
	assert.Empty(t, second.NextCursor)

	_, err = svc.PendingReview(ctx, pagination.Params{Cursor: "not-a-cursor"})
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation))
}

func TestNewServiceOutboxNeedsBothHalves(t *testing.T) {
	conn := newSQLiteDB(t)
	_, err := NewService(NewRepository(conn), logger.Nop(), WithOutbox(gormRunner{db: conn}, nil))
	require.Error(t, err)
}

func TestRecordQueuesOutboxEvent(t *testing.T) {
	conn := newSQLiteDB(t)
	emitter := outbox.NewService(outbox.NewRepository(conn), logger.Nop())
	svc, err := NewService(NewRepository(conn), logger.Nop(), WithOutbox(gormRunner{db: conn}, emitter))
	require.NoError(t, err)
	ctx := context.Background()

	txn := sampleTransaction(uuid.New(), "pi_outbox")
	require.NoError(t, svc.Record(ctx, txn))

	var events []models.OutboxEvent
	require.NoError(t, conn.Find(&events).Error)
	require.Len(t, events, 1)
	assert.Equal(t, enums.EventTransactionRecorded, events[0].EventType)
	assert.Equal(t, enums.AggregateTransaction, events[0].AggregateType)
	assert.Equal(t, txn.ID, events[0].AggregateID)
	assert.Nil(t, events[0].PublishedAt)

	var envelope outbox.PayloadEnvelope
	require.NoError(t, json.Unmarshal(events[0].Payload, &envelope))
	var payload payloads.TransactionRecordedEvent
	require.NoError(t, json.Unmarshal(envelope.Data, &payload))
	assert.Equal(t, "121.00", payload.Amount)
	assert.Equal(t, "21.00", payload.VatAmount)
	assert.Equal(t, "ES", payload.ConfirmedCountry)
	assert.Equal(t, "pi_outbox", payload.ChargeID)
}

func TestRecordRollsBackWhenOutboxFails(t *testing.T) {
	conn := newSQLiteDB(t)
	svc, err := NewService(NewRepository(conn), logger.Nop(), WithOutbox(gormRunner{db: conn}, failingEmitter{}))
	require.NoError(t, err)
	ctx := context.Background()

	basketID := uuid.New()
	err = svc.Record(ctx, sampleTransaction(basketID, "pi_rollback"))
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeDependency))

	_, err = svc.GetByBasketID(ctx, basketID)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeNotFound))
}

type failingEmitter struct{}

func (failingEmitter) Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error {
	return errors.New("outbox unavailable")
}
