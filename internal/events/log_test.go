package events

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogPublisher_WritesEvent(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	publisher := NewLogPublisher(slog.New(slog.NewJSONHandler(&buf, nil)))

	err := publisher.Publish(context.Background(), Event{
		ID:         "event-1",
		Type:       BookingCreated,
		Key:        "offer-1",
		OccurredAt: time.Now(),
		Data:       map[string]any{"rider_id": "rider-1"},
	})
	require.NoError(t, err)
	require.NoError(t, publisher.Close())

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "booking.created", line["type"])
	assert.Equal(t, "offer-1", line["key"])
	assert.Equal(t, map[string]any{"rider_id": "rider-1"}, line["data"])
}

func TestEvent_JSONShape(t *testing.T) {
	t.Parallel()

	occurred := time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)
	payload, err := json.Marshal(Event{ID: "e1", Type: RequestMatched, Key: "offer-1", OccurredAt: occurred})
	require.NoError(t, err)

	assert.JSONEq(t, `{"id":"e1","type":"request.matched","key":"offer-1","occurred_at":"2024-06-01T08:00:00Z","data":null}`, string(payload))
}

func TestKafkaPublisher_WriterSettings(t *testing.T) {
	t.Parallel()

	publisher := NewKafkaPublisher([]string{"localhost:9092"}, "carona.events", 0)
	assert.Equal(t, 2*time.Second, publisher.timeout)
	assert.Equal(t, "carona.events", publisher.writer.Topic)
	assert.Equal(t, DefaultBatchTimeout, publisher.writer.BatchTimeout)
	assert.Less(t, publisher.writer.BatchTimeout, publisher.timeout, "a single event flushes well before the write deadline")
	assert.NoError(t, publisher.Close())
}
