package outbox

import (
	"context"
	"errors"
	"testing"
	"time"

	"ats-resume-go/internal/config"
	"ats-resume-go/internal/storage"
	"ats-resume-go/internal/storage/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePublisher struct {
	err       error
	published []string
}

func (f *fakePublisher) PublishMessage(ctx context.Context, exchange, routingKey string, body []byte, persistent bool) error {
	if f.err != nil {
		return f.err
	}
	f.published = append(f.published, exchange+"/"+routingKey+":"+string(body))
	return nil
}

func pending() *models.OutboxMessage {
	return &models.OutboxMessage{
		ID:               7,
		AggregateID:      "report-1",
		EventType:        storage.EventTypeAnalysisCompleted,
		Payload:          `{"report_id":"report-1"}`,
		TargetExchange:   "ats.analysis",
		TargetRoutingKey: "analysis.completed",
		Status:           storage.OutboxStatusPending,
	}
}

func TestDeliverMarksSent(t *testing.T) {
	pub := &fakePublisher{}
	relay := NewMessageRelay(nil, pub, config.OutboxConfig{}, zerolog.Nop())

	msg := pending()
	msg.ErrorMessage = "previous failure"
	now := time.Now()
	relay.deliver(context.Background(), msg, now)

	assert.Equal(t, storage.OutboxStatusSent, msg.Status)
	require.NotNil(t, msg.ProcessedAt)
	assert.Equal(t, now, *msg.ProcessedAt)
	assert.Empty(t, msg.ErrorMessage)
	assert.Equal(t, []string{`ats.analysis/analysis.completed:{"report_id":"report-1"}`}, pub.published)
}

func TestDeliverRetriesThenFails(t *testing.T) {
	pub := &fakePublisher{err: errors.New("channel closed")}
	relay := NewMessageRelay(nil, pub, config.OutboxConfig{MaxRetries: 2}, zerolog.Nop())

	msg := pending()
	relay.deliver(context.Background(), msg, time.Now())
	assert.Equal(t, storage.OutboxStatusPending, msg.Status)
	assert.Equal(t, 1, msg.RetryCount)
	assert.Equal(t, "channel closed", msg.ErrorMessage)
	assert.Nil(t, msg.ProcessedAt)

	relay.deliver(context.Background(), msg, time.Now())
	assert.Equal(t, storage.OutboxStatusFailed, msg.Status)
	assert.Equal(t, 2, msg.RetryCount)
}

func TestRelayDefaults(t *testing.T) {
	relay := NewMessageRelay(nil, &fakePublisher{}, config.OutboxConfig{PollInterval: "bogus"}, zerolog.Nop())
	assert.Equal(t, defaultPollingInterval, relay.pollingInterval)
	assert.Equal(t, defaultBatchSize, relay.batchSize)
	assert.Equal(t, defaultMaxRetries, relay.maxRetries)

	relay = NewMessageRelay(nil, &fakePublisher{}, config.OutboxConfig{PollInterval: "2s", BatchSize: 50}, zerolog.Nop())
	assert.Equal(t, 2*time.Second, relay.pollingInterval)
	assert.Equal(t, 50, relay.batchSize)
}

func TestRelayStopsWithContext(t *testing.T) {
	relay := NewMessageRelay(nil, &fakePublisher{}, config.OutboxConfig{PollInterval: "1h"}, zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	relay.Start(ctx)
	cancel()

	select {
	case <-relay.stopped:
	case <-time.After(time.Second):
		t.Fatal("relay did not stop")
	}
	// Stop 在已退出后仍可调用
	relay.Stop()
}
