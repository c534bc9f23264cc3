package events

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type fakeWriter struct {
	mu     sync.Mutex
	msgs   []kafka.Message
	err    error
	closed bool
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

var at = time.Date(2024, 5, 6, 12, 0, 0, 0, time.UTC)

func TestKafkaPublisher_ModelTrained(t *testing.T) {
	w := &fakeWriter{}
	p := newKafkaPublisher(w)
	p.now = func() time.Time { return at }

	err := p.ModelTrained(context.Background(), ModelTrained{
		BuildingID: "B-1", Version: "v1", Algorithm: "random_forest", MAE: 1.5, Rows: 176, TrainedAt: at,
	})
	require.NoError(t, err)
	require.Len(t, w.msgs, 1)

	msg := w.msgs[0]
	assert.Equal(t, "B-1", string(msg.Key))
	assert.Equal(t, []kafka.Header{{Key: "type", Value: []byte(TypeModelTrained)}}, msg.Headers)

	var decoded Message
	require.NoError(t, json.Unmarshal(msg.Value, &decoded))
	assert.Equal(t, TypeModelTrained, decoded.Type)
	assert.True(t, at.Equal(decoded.Time))

	var payload ModelTrained
	require.NoError(t, json.Unmarshal(decoded.Payload, &payload))
	assert.Equal(t, "v1", payload.Version)
	assert.Equal(t, 176, payload.Rows)

	require.NoError(t, p.Close())
	assert.True(t, w.closed)
}

func TestKafkaPublisher_WriteError(t *testing.T) {
	w := &fakeWriter{err: errors.New("broker down")}
	p := newKafkaPublisher(w)
	err := p.ForecastReady(context.Background(), ForecastReady{BuildingID: "B-1", Horizon: 24})
	assert.ErrorContains(t, err, "publish forecast:ready event")
	assert.ErrorContains(t, err, "broker down")
}

type recorder struct {
	trained  []ModelTrained
	forecast []ForecastReady
	err      error
}

func (r *recorder) ModelTrained(_ context.Context, e ModelTrained) error {
	r.trained = append(r.trained, e)
	return r.err
}

func (r *recorder) ForecastReady(_ context.Context, e ForecastReady) error {
	r.forecast = append(r.forecast, e)
	return r.err
}

func TestMulti_FansOutAndJoinsErrors(t *testing.T) {
	boom := errors.New("boom")
	a, b := &recorder{}, &recorder{err: boom}
	m := Multi{a, Nop{}, b}

	err := m.ModelTrained(context.Background(), ModelTrained{BuildingID: "B-1"})
	assert.ErrorIs(t, err, boom)
	assert.Len(t, a.trained, 1)
	assert.Len(t, b.trained, 1)

	b.err = nil
	assert.NoError(t, m.ForecastReady(context.Background(), ForecastReady{BuildingID: "B-1"}))
	assert.Len(t, a.forecast, 1)
}

func TestNewKafkaPublisher_WritesAsync(t *testing.T) {
	p := NewKafkaPublisher([]string{"localhost:9092"}, "forecast-events", zap.NewNop())
	w, ok := p.writer.(*kafka.Writer)
	require.True(t, ok)
	assert.True(t, w.Async)
	assert.NotNil(t, w.Completion)
	assert.Equal(t, "forecast-events", w.Topic)
	require.NoError(t, p.Close())
}

func TestLogFailedDelivery(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	done := logFailedDelivery(zap.New(core))

	done([]kafka.Message{{Key: []byte("B-1")}}, nil)
	assert.Zero(t, logs.Len())

	done([]kafka.Message{{Key: []byte("B-1")}, {Key: []byte("B-2")}}, errors.New("broker down"))
	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, "kafka event delivery failed", entry.Message)
	assert.Equal(t, []any{"B-1", "B-2"}, entry.ContextMap()["keys"])
}
