package outbox

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"

	"cvision/internal/storage/models"
)

type nopPublisher struct{}

func (nopPublisher) PublishMessage(context.Context, string, string, []byte, bool) error { return nil }

func TestApplyPublishResult(t *testing.T) {
	now := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)

	t.Run("成功", func(t *testing.T) {
		msg := &models.OutboxMessage{Status: models.OutboxStatusPending, ErrorMessage: "old"}
		applyPublishResult(msg, nil, now)
		assert.Equal(t, models.OutboxStatusSent, msg.Status)
		assert.Equal(t, &now, msg.ProcessedAt)
		assert.Empty(t, msg.ErrorMessage)
	})

	t.Run("失败未达上限", func(t *testing.T) {
		msg := &models.OutboxMessage{Status: models.OutboxStatusPending, RetryCount: 1}
		applyPublishResult(msg, errors.New("channel closed"), now)
		assert.Equal(t, models.OutboxStatusPending, msg.Status)
		assert.Equal(t, 2, msg.RetryCount)
		assert.Equal(t, "channel closed", msg.ErrorMessage)
		assert.Nil(t, msg.ProcessedAt)
	})

	t.Run("达到重试上限", func(t *testing.T) {
		msg := &models.OutboxMessage{Status: models.OutboxStatusPending, RetryCount: maxRetryCount - 1}
		applyPublishResult(msg, errors.New("boom"), now)
		assert.Equal(t, models.OutboxStatusFailed, msg.Status)
	})
}

func TestNewMessageRelayOptions(t *testing.T) {
	r := NewMessageRelay(nil, nopPublisher{})
	assert.Equal(t, defaultPollingInterval, r.pollingInterval)
	assert.Equal(t, defaultBatchSize, r.batchSize)

	r = NewMessageRelay(nil, nopPublisher{},
		WithPollingInterval(time.Second),
		WithBatchSize(50),
		WithBatchSize(-1),
		WithLogger(zerolog.Nop()),
	)
	assert.Equal(t, time.Second, r.pollingInterval)
	assert.Equal(t, 50, r.batchSize)
}

func TestStopWithoutStart(t *testing.T) {
	r := NewMessageRelay(nil, nopPublisher{})
	assert.NotPanics(t, r.Stop)
}
