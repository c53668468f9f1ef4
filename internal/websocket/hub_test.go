package websocket

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	gorilla "github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"datatidy/internal/config"
	"datatidy/internal/infrastructure"
	"datatidy/internal/shared/testutil"
	"datatidy/pkg/contracts/events"
)

func newTestHub(t *testing.T) *Hub {
	t.Helper()
	logger, _ := testutil.NewTestLogger(t)
	hub := NewHub(logger, nil, "1.0.0-test")
	hub.Start()
	t.Cleanup(hub.Stop)
	return hub
}

// connect registers a client over a mock connection and consumes its
// greeting.
func connect(t *testing.T, hub *Hub) (*Client, *MockConnection) {
	t.Helper()
	conn := NewMockConnection()
	client := NewClient(hub, conn, config.Default().WebSocket, "trace-"+t.Name(), nil)
	require.True(t, hub.Register(client))
	go client.WritePump()
	go client.ReadPump()

	greeting := decodeMessage(t, conn.NextWrite(t))
	require.Equal(t, events.MessageTypeSystemStatus, greeting.Type)
	return client, conn
}

type wireMessage struct {
	ID        string             `json:"id"`
	Type      events.MessageType `json:"type"`
	Timestamp time.Time          `json:"timestamp"`
	TraceID   string             `json:"trace_id"`
	Data      json.RawMessage    `json:"data"`
}

func decodeMessage(t *testing.T, msg MockMessage) wireMessage {
	t.Helper()
	require.Equal(t, gorilla.TextMessage, msg.Type)
	var w wireMessage
	require.NoError(t, json.Unmarshal(msg.Data, &w), string(msg.Data))
	return w
}

func TestHub_GreetsNewClients(t *testing.T) {
	hub := newTestHub(t)
	conn := NewMockConnection()
	client := NewClient(hub, conn, config.Default().WebSocket, "trace-1", nil)
	require.True(t, hub.Register(client))
	go client.WritePump()

	msg := decodeMessage(t, conn.NextWrite(t))
	assert.Equal(t, events.MessageTypeSystemStatus, msg.Type)
	assert.Equal(t, "trace-1", msg.TraceID)
	assert.NotEmpty(t, msg.ID)
	assert.JSONEq(t, `{"status":"healthy","version":"1.0.0-test","clients":1}`, string(msg.Data))
	assert.Equal(t, 1, hub.ClientCount())
}

func TestHub_PublishFansOut(t *testing.T) {
	hub := newTestHub(t)
	_, conn1 := connect(t, hub)
	_, conn2 := connect(t, hub)

	ctx := infrastructure.WithTraceID(context.Background(), "req-42")
	hub.Publish(ctx, events.MessageTypeDatasetDeleted, events.DatasetDeleted{Filename: "people.csv"})

	for _, conn := range []*MockConnection{conn1, conn2} {
		msg := decodeMessage(t, conn.NextWrite(t))
		assert.Equal(t, events.MessageTypeDatasetDeleted, msg.Type)
		assert.Equal(t, "req-42", msg.TraceID)
		assert.JSONEq(t, `{"filename":"people.csv"}`, string(msg.Data))
	}

	assert.Eventually(t, func() bool { return hub.Stats()["messages_sent"] == 2 },
		time.Second, 10*time.Millisecond)
}

func TestHub_UnregistersClosedClients(t *testing.T) {
	hub := newTestHub(t)
	_, conn := connect(t, hub)
	require.Equal(t, 1, hub.ClientCount())

	conn.Close()

	assert.Eventually(t, func() bool { return hub.ClientCount() == 0 }, time.Second, 10*time.Millisecond)
}

func TestHub_DropsSlowClients(t *testing.T) {
	logger, _ := testutil.NewTestLogger(t)
	hub := NewHub(logger, nil, "test")
	hub.Start()
	defer hub.Stop()

	// No pumps: nothing drains the send buffer.
	client := NewClient(hub, NewMockConnection(), config.Default().WebSocket, "", logger)
	require.True(t, hub.Register(client))

	for i := 0; i < 2*sendBuffer; i++ {
		hub.Publish(context.Background(), events.MessageTypeSystemStatus, nil)
	}

	assert.Eventually(t, func() bool { return hub.ClientCount() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestHub_StopDisconnectsClients(t *testing.T) {
	logger, _ := testutil.NewTestLogger(t)
	hub := NewHub(logger, nil, "test")
	hub.Start()
	_, conn := connect(t, hub)

	hub.Stop()
	hub.Stop()

	msg := conn.NextWrite(t)
	assert.Equal(t, gorilla.CloseMessage, msg.Type)
	assert.Equal(t, 0, hub.ClientCount())

	// Publishing and registering after Stop neither block nor panic.
	hub.Publish(context.Background(), events.MessageTypeSystemStatus, nil)
	assert.False(t, hub.Register(NewClient(hub, NewMockConnection(), config.Default().WebSocket, "", logger)))
}

func TestHub_RecordsMetrics(t *testing.T) {
	reader := metric.NewManualReader()
	provider := metric.NewMeterProvider(metric.WithReader(reader))
	metrics, err := infrastructure.CreateBusinessMetrics(provider.Meter("test"))
	require.NoError(t, err)

	logger, _ := testutil.NewTestLogger(t)
	hub := NewHub(logger, metrics, "test")
	hub.Start()
	defer hub.Stop()

	_, conn := connect(t, hub)
	hub.Publish(context.Background(), events.MessageTypeDatasetUploaded, events.DatasetUploaded{Filename: "a.csv"})
	conn.NextWrite(t)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	values := map[string]int64{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if sum, ok := m.Data.(metricdata.Sum[int64]); ok {
				for _, dp := range sum.DataPoints {
					values[m.Name] += dp.Value
				}
			}
		}
	}
	assert.Equal(t, int64(1), values["websocket_connections"])
	assert.Equal(t, int64(1), values["websocket_broadcasts_total"])
}
