package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/patternseek/ecommerce/pkg/db/models"
	"github.com/patternseek/ecommerce/pkg/enums"
	"github.com/patternseek/ecommerce/pkg/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{SkipDefaultTransaction: true})
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(models.All()...))
	return conn
}

func recordedEvent(id uuid.UUID) DomainEvent {
	return DomainEvent{
		EventType:     enums.EventTransactionRecorded,
		AggregateType: enums.AggregateTransaction,
		AggregateID:   id,
		Data:          map[string]string{"charge_id": "ch_1"},
	}
}

func TestEmitWritesEnvelope(t *testing.T) {
	conn := newTestDB(t)
	svc := NewService(NewRepository(conn), logger.Nop())
	id := uuid.New()

	require.NoError(t, svc.Emit(context.Background(), conn, recordedEvent(id)))

	var rows []models.OutboxEvent
	require.NoError(t, conn.Find(&rows).Error)
	require.Len(t, rows, 1)
	assert.Equal(t, id, rows[0].AggregateID)
	assert.Equal(t, 0, rows[0].AttemptCount)

	var envelope PayloadEnvelope
	require.NoError(t, json.Unmarshal(rows[0].Payload, &envelope))
	assert.Equal(t, 1, envelope.Version)
	assert.NotEmpty(t, envelope.EventID)
	assert.False(t, envelope.OccurredAt.IsZero())
	assert.JSONEq(t, `{"charge_id":"ch_1"}`, string(envelope.Data))
}

func TestEmitRejectsBadEvents(t *testing.T) {
	conn := newTestDB(t)
	svc := NewService(NewRepository(conn), logger.Nop())
	ctx := context.Background()

	require.Error(t, svc.Emit(ctx, nil, recordedEvent(uuid.New())))
	require.Error(t, svc.Emit(ctx, conn, recordedEvent(uuid.Nil)))

	bad := recordedEvent(uuid.New())
	bad.EventType = enums.OutboxEventType("nope")
	require.Error(t, svc.Emit(ctx, conn, bad))
}

func TestEmitIfNotExistsSkipsDuplicates(t *testing.T) {
	conn := newTestDB(t)
	svc := NewService(NewRepository(conn), logger.Nop())
	ctx := context.Background()
	id := uuid.New()

	require.NoError(t, svc.EmitIfNotExists(ctx, conn, recordedEvent(id)))
	require.NoError(t, svc.EmitIfNotExists(ctx, conn, recordedEvent(id)))

	var count int64
	require.NoError(t, conn.Model(&models.OutboxEvent{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)

	err := svc.Emit(ctx, conn, recordedEvent(id))
	require.Error(t, err)
}

func TestRepositoryPublishLifecycle(t *testing.T) {
	conn := newTestDB(t)
	repo := NewRepository(conn)
	svc := NewService(repo, logger.Nop())
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, svc.Emit(ctx, conn, recordedEvent(uuid.New())))
	}

	rows, err := repo.FetchUnpublishedForPublish(conn, 10, 3)
	require.NoError(t, err)
	require.Len(t, rows, 3)

	require.NoError(t, repo.MarkPublishedTx(conn, rows[0].ID))
	require.NoError(t, repo.MarkFailedTx(conn, rows[1].ID, errors.New("topic unavailable")))
	require.NoError(t, repo.MarkTerminalTx(conn, rows[2].ID, errors.New("bad payload"), 3))

	remaining, err := repo.FetchUnpublishedForPublish(conn, 10, 3)
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	assert.Equal(t, rows[1].ID, remaining[0].ID)
	assert.Equal(t, 1, remaining[0].AttemptCount)
	require.NotNil(t, remaining[0].LastError)
	assert.Equal(t, "topic unavailable", *remaining[0].LastError)

	limited, err := repo.FetchUnpublishedForPublish(conn, 10, 1)
	require.NoError(t, err)
	assert.Empty(t, limited)
}

func TestDLQRepository(t *testing.T) {
	conn := newTestDB(t)
	dlq := NewDLQRepository(conn)
	eventID := uuid.New()

	missing, err := dlq.FindByEventID(context.Background(), eventID)
	require.NoError(t, err)
	assert.Nil(t, missing)

	msg := "decode envelope"
	require.NoError(t, dlq.InsertTx(conn, models.OutboxDLQ{
		EventID:       eventID,
		EventType:     enums.EventTransactionRecorded,
		AggregateType: enums.AggregateTransaction,
		AggregateID:   uuid.New(),
		Payload:       json.RawMessage(`{}`),
		ErrorReason:   enums.OutboxDLQReasonNonRetryable,
		ErrorMessage:  &msg,
		AttemptCount:  1,
	}))

	got, err := dlq.FindByEventID(context.Background(), eventID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, enums.OutboxDLQReasonNonRetryable, got.ErrorReason)
	assert.NotEqual(t, uuid.Nil, got.ID)
}
