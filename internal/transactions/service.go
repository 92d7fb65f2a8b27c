// Package transactions stores the immutable audit record written once per
// successful charge.
package transactions

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/patternseek/ecommerce/pkg/db"
	"github.com/patternseek/ecommerce/pkg/db/models"
	"github.com/patternseek/ecommerce/pkg/enums"
	pkgerrors "github.com/patternseek/ecommerce/pkg/errors"
	"github.com/patternseek/ecommerce/pkg/logger"
	"github.com/patternseek/ecommerce/pkg/outbox"
	"github.com/patternseek/ecommerce/pkg/outbox/payloads"
	"github.com/patternseek/ecommerce/pkg/pagination"
)

// Service records and reads charge audit records.
type Service interface {
	Record(ctx context.Context, txn *models.Transaction) error
	GetByBasketID(ctx context.Context, basketID uuid.UUID) (*models.Transaction, error)
	PendingReview(ctx context.Context, params pagination.Params) (*ReviewPage, error)
}

// ReviewPage is one page of the manual review queue.
type ReviewPage struct {
	Items      []models.Transaction
	NextCursor string
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type service struct {
	repo    Repository
	logg    *logger.Logger
	tx      txRunner
	emitter outboxEmitter
}

// Option customizes the transaction service.
type Option func(*service)

// WithOutbox queues a transaction_recorded event in the same database
// transaction as every recorded transaction.
func WithOutbox(tx txRunner, emitter outboxEmitter) Option {
	return func(s *service) {
		s.tx = tx
		s.emitter = emitter
	}
}

// NewService wires a transaction service with the provided repository.
func NewService(repo Repository, logg *logger.Logger, opts ...Option) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("transaction repository required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	s := &service{repo: repo, logg: logg}
	for _, opt := range opts {
		opt(s)
	}
	if (s.tx == nil) != (s.emitter == nil) {
		return nil, fmt.Errorf("outbox requires both a transaction runner and an emitter")
	}
	return s, nil
}

func (s *service) Record(ctx context.Context, txn *models.Transaction) error {
	if txn == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "transaction is required")
	}
	if txn.BasketID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "basket id is required")
	}
	if txn.ChargeID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "charge id is required")
	}
	if !txn.PaymentType.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid payment type %q", txn.PaymentType))
	}
	if txn.ID == uuid.Nil {
		txn.ID = uuid.New()
	}

	ctx = s.logg.WithFields(s.logg.WithTransactionID(ctx, txn.ID.String()), map[string]any{
		"basket_id": txn.BasketID.String(),
		"charge_id": txn.ChargeID,
	})
	if err := s.create(ctx, txn); err != nil {
		if db.IsUniqueViolation(err, "") {
			return pkgerrors.Wrap(pkgerrors.CodeStateConflict, err, "a transaction already exists for this basket or charge")
		}
		s.logg.Error(ctx, "failed to record transaction", err)
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record transaction")
	}

	if txn.ManualReviewRequired {
		s.logg.Warn(ctx, "transaction flagged for manual review")
	}
	s.logg.Info(ctx, "transaction recorded")
	return nil
}

func (s *service) GetByBasketID(ctx context.Context, basketID uuid.UUID) (*models.Transaction, error) {
	if basketID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "basket id is required")
	}
	txn, err := s.repo.FindByBasketID(ctx, basketID)
	if err != nil {
		if isNotFound(err) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeNotFound, err, "transaction not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load transaction")
	}
	return txn, nil
}

func (s *service) PendingReview(ctx context.Context, params pagination.Params) (*ReviewPage, error) {
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	txns, err := s.repo.ListForManualReview(ctx, pagination.LimitWithBuffer(params.Limit), cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list transactions for review")
	}
	items, next := pagination.Trim(txns, params.Limit, func(txn models.Transaction) pagination.Cursor {
		return pagination.Cursor{CreatedAt: txn.CreatedAt, ID: txn.ID}
	})
	return &ReviewPage{Items: items, NextCursor: next}, nil
}

func (s *service) create(ctx context.Context, txn *models.Transaction) error {
	if s.tx == nil {
		return s.repo.Create(ctx, txn)
	}
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.repo.WithTx(tx).Create(ctx, txn); err != nil {
			return err
		}
		return s.emitter.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventTransactionRecorded,
			AggregateType: enums.AggregateTransaction,
			AggregateID:   txn.ID,
			Data:          recordedEvent(txn),
		})
	})
}

func recordedEvent(txn *models.Transaction) payloads.TransactionRecordedEvent {
	return payloads.TransactionRecordedEvent{
		TransactionID:        txn.ID,
		BasketID:             txn.BasketID,
		ChargeID:             txn.ChargeID,
		Amount:               txn.Amount.StringFixed(2),
		VatAmount:            txn.VatAmount.StringFixed(2),
		Currency:             txn.Currency,
		ConfirmedCountry:     txn.Evidence.ConfirmedCountry,
		VatNumberStatus:      txn.VatNumberStatus,
		ManualReviewRequired: txn.ManualReviewRequired,
		TestMode:             txn.TestMode,
		RecordedAt:           time.Now().UTC(),
	}
}
