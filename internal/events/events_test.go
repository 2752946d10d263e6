// ABOUTME: Tests for event envelopes, publishers and the inbound consumer.
// ABOUTME: Uses in-memory Kafka writer and reader doubles.
package events

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNewStampsIDAndSource(t *testing.T) {
	now := time.Date(2025, 6, 1, 9, 0, 0, 0, time.FixedZone("KST", 9*3600))
	e := New(TypeReportDataReady, "", Detail{FitbitUserID: "ABC", Date: "2025-06-01"}, now)

	assert.Len(t, e.ID, 26)
	assert.Equal(t, DefaultSource, e.Source)
	assert.Equal(t, time.UTC, e.Time.Location())

	other := New(TypeReportDataReady, "", Detail{FitbitUserID: "ABC"}, now)
	assert.NotEqual(t, e.ID, other.ID)
}

func TestDecodeAcceptsUserKeyVariants(t *testing.T) {
	for name, raw := range map[string]string{
		"snake": `{"type":"Detect Anomalies","detail":{"fitbit_user_id":"U1"}}`,
		"camel": `{"type":"Detect Anomalies","detail":{"fitbitUserId":"U1"}}`,
		"short": `{"type":"Detect Anomalies","detail":{"userId":"U1"}}`,
	} {
		t.Run(name, func(t *testing.T) {
			e, err := Decode([]byte(raw))
			require.NoError(t, err)
			assert.Equal(t, "U1", e.Detail.FitbitUserID)
		})
	}
}

func TestDecodeRejectsMissingUser(t *testing.T) {
	_, err := Decode([]byte(`{"type":"Detect Anomalies","detail":{}}`))
	assert.Error(t, err)

	_, err = Decode([]byte(`not json`))
	assert.Error(t, err)
}

func TestEventJob(t *testing.T) {
	tests := []struct {
		e       Event
		want    string
		wantErr bool
	}{
		{e: Event{Type: TypeDetectAnomalies}, want: "detect-anomalies"},
		{e: Event{Type: TypeMainSleepDetected}, want: "short-term-averages"},
		{e: Event{Type: TypeCollectIntraday}, want: "collect-intraday"},
		{e: Event{Type: TypeCollectSleep}, want: "collect-sleep"},
		{e: Event{Type: TypeCollectActivity}, want: "collect-activity"},
		{e: Event{Type: TypeCollectHealthMetrics}, want: "collect-health-metrics"},
		{e: Event{Type: TypeCalculateLongTermAverage}, want: "long-term-averages"},
		{e: Event{Type: TypeJobRequested, Detail: Detail{Job: "collect-sleep"}}, want: "collect-sleep"},
		{e: Event{Type: TypeJobRequested}, wantErr: true},
		{e: Event{Type: TypeReportDataReady}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(string(tt.e.Type)+tt.e.Detail.Job, func(t *testing.T) {
			got, err := tt.e.Job()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrUnroutable)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestReferenceDate(t *testing.T) {
	kst := time.FixedZone("KST", 9*60*60)
	assert.Equal(t, "2025-06-01", Event{Detail: Detail{Date: "2025-06-01T10:00:00.000+09:00"}}.ReferenceDate(kst))
	assert.Equal(t, "2025-05-01", Event{Detail: Detail{Date: "2025-06-01", MonthStartDate: "2025-05-01"}}.ReferenceDate(kst))
	assert.Equal(t, "", Event{}.ReferenceDate(kst))

	// 2025-05-31T15:00Z is local midnight of June 1st.
	local := Event{Detail: Detail{MonthStartMillis: 1748703600000}}
	assert.Equal(t, "2025-06-01", local.ReferenceDate(kst))
	assert.Equal(t, "2025-05-31", local.ReferenceDate(nil))
}

func TestDecodeNumericMonthStart(t *testing.T) {
	kst := time.FixedZone("KST", 9*60*60)
	raw := `{"type":"Calculate Long Term Average","detail":{"fitbit_user_id":"FB1","monthStartDate":1748736000000}}`

	e, err := Decode([]byte(raw))
	require.NoError(t, err)
	assert.Equal(t, int64(1748736000000), e.Detail.MonthStartMillis)
	assert.Empty(t, e.Detail.MonthStartDate)

	job, err := e.Job()
	require.NoError(t, err)
	assert.Equal(t, "long-term-averages", job)
	assert.Equal(t, "2025-06-01", e.ReferenceDate(kst))

	e, err = Decode([]byte(`{"type":"Calculate Long Term Average","detail":{"userId":"FB1","monthStartDate":"2025-05-01"}}`))
	require.NoError(t, err)
	assert.Equal(t, "2025-05-01", e.ReferenceDate(kst))

	_, err = Decode([]byte(`{"type":"Calculate Long Term Average","detail":{"fitbit_user_id":"FB1","monthStartDate":true}}`))
	assert.Error(t, err)
}

func TestDecodeCollectEvents(t *testing.T) {
	for _, typ := range []Type{TypeCollectIntraday, TypeCollectSleep, TypeCollectActivity, TypeCollectHealthMetrics} {
		t.Run(string(typ), func(t *testing.T) {
			e, err := Decode([]byte(`{"type":"` + string(typ) + `","detail":{"fitbit_user_id":"FB1"}}`))
			require.NoError(t, err)
			_, err = e.Job()
			assert.NoError(t, err)
		})
	}
}

type recordingWriter struct {
	mu     sync.Mutex
	msgs   []kafka.Message
	err    error
	closed bool
}

func (w *recordingWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *recordingWriter) Close() error {
	w.closed = true
	return nil
}

func TestKafkaPublisherWritesKeyedJSON(t *testing.T) {
	w := &recordingWriter{}
	p := newKafkaPublisherWithWriter("bloom.events", w, discardLogger())

	e := New(TypeAnomalyDetected, "", Detail{FitbitUserID: "U9", Message: "still"}, time.Now())
	require.NoError(t, p.Publish(context.Background(), e))
	require.Len(t, w.msgs, 1)

	msg := w.msgs[0]
	assert.Equal(t, "U9", string(msg.Key))
	assert.Equal(t, "type", msg.Headers[0].Key)
	assert.Equal(t, string(TypeAnomalyDetected), string(msg.Headers[0].Value))

	var decoded Event
	require.NoError(t, json.Unmarshal(msg.Value, &decoded))
	assert.Equal(t, e.ID, decoded.ID)
	assert.Equal(t, "still", decoded.Detail.Message)

	require.NoError(t, p.Close())
	assert.True(t, w.closed)
}

func TestKafkaPublisherWrapsWriteError(t *testing.T) {
	w := &recordingWriter{err: errors.New("broker down")}
	p := newKafkaPublisherWithWriter("bloom.events", w, discardLogger())

	err := p.Publish(context.Background(), New(TypeReportDataReady, "", Detail{FitbitUserID: "U"}, time.Now()))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broker down")
}

func TestNewKafkaPublisherValidates(t *testing.T) {
	_, err := NewKafkaPublisher(KafkaConfig{Topic: "t"}, discardLogger())
	assert.Error(t, err)
	_, err = NewKafkaPublisher(KafkaConfig{Brokers: []string{"localhost:9092"}}, discardLogger())
	assert.Error(t, err)
}

func TestRecorder(t *testing.T) {
	r := &Recorder{}
	ctx := context.Background()
	require.NoError(t, r.Publish(ctx, Event{Type: TypeDetectAnomalies}))
	require.NoError(t, r.Publish(ctx, Event{Type: TypeReportDataReady}))
	assert.Len(t, r.Events(), 2)
	assert.Len(t, r.OfType(TypeReportDataReady), 1)

	r.Err = errors.New("nope")
	assert.Error(t, r.Publish(ctx, Event{}))
	assert.Len(t, r.Events(), 2)
}

func TestLogPublisher(t *testing.T) {
	p := NewLogPublisher(discardLogger())
	assert.NoError(t, p.Publish(context.Background(), Event{Type: TypeDetectAnomalies}))
	assert.NoError(t, p.Close())
}

type fakeReader struct {
	mu        sync.Mutex
	queue     []kafka.Message
	committed []int64
	closed    bool
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	r.mu.Lock()
	if len(r.queue) > 0 {
		m := r.queue[0]
		r.queue = r.queue[1:]
		r.mu.Unlock()
		return m, nil
	}
	r.mu.Unlock()
	return kafka.Message{}, io.EOF
}

func (r *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range msgs {
		r.committed = append(r.committed, m.Offset)
	}
	return nil
}

func (r *fakeReader) Close() error {
	r.closed = true
	return nil
}

func TestConsumerHandlesAndCommitsEveryMessage(t *testing.T) {
	good, err := json.Marshal(New(TypeDetectAnomalies, "", Detail{FitbitUserID: "U1"}, time.Now()))
	require.NoError(t, err)
	failing, err := json.Marshal(New(TypeMainSleepDetected, "", Detail{FitbitUserID: "U2"}, time.Now()))
	require.NoError(t, err)

	r := &fakeReader{queue: []kafka.Message{
		{Offset: 1, Value: good},
		{Offset: 2, Value: []byte(`garbage`)},
		{Offset: 3, Value: failing},
	}}
	c := newConsumerWithReader("bloom.events", r, time.Second, discardLogger())

	var handled []string
	err = c.Run(context.Background(), func(_ context.Context, e Event) error {
		handled = append(handled, e.Detail.FitbitUserID)
		if e.Type == TypeMainSleepDetected {
			return errors.New("handler failed")
		}
		return nil
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"U1", "U2"}, handled)
	assert.Equal(t, []int64{1, 2, 3}, r.committed)

	require.NoError(t, c.Close())
	assert.True(t, r.closed)
}

func TestConsumerSkipsOutboundEventsOnSharedTopic(t *testing.T) {
	report, err := json.Marshal(New(TypeReportDataReady, "", Detail{FitbitUserID: "U1"}, time.Now()))
	require.NoError(t, err)
	broken, err := json.Marshal(New(TypeDetectAnomalies, "", Detail{FitbitUserID: "U2"}, time.Now()))
	require.NoError(t, err)

	var buf bytes.Buffer
	log := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo}))
	r := &fakeReader{queue: []kafka.Message{{Offset: 1, Value: report}, {Offset: 2, Value: broken}}}
	c := newConsumerWithReader("bloom.events", r, time.Second, log)

	err = c.Run(context.Background(), func(_ context.Context, e Event) error {
		if _, err := e.Job(); err != nil {
			return err
		}
		return errors.New("user not found")
	})
	require.NoError(t, err)

	assert.Equal(t, []int64{1, 2}, r.committed)
	assert.Equal(t, 1, strings.Count(buf.String(), "event_handler_failed"))
	assert.NotContains(t, buf.String(), "Report Data Ready")
}

func TestConsumerStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c := newConsumerWithReader("bloom.events", &fakeReader{}, time.Second, discardLogger())
	err := c.Run(ctx, func(context.Context, Event) error { return nil })
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNewConsumerValidates(t *testing.T) {
	_, err := NewConsumer(ConsumerConfig{Topic: "t", GroupID: "g"}, discardLogger())
	assert.Error(t, err)
	_, err = NewConsumer(ConsumerConfig{Brokers: []string{"b:9092"}, GroupID: "g"}, discardLogger())
	assert.Error(t, err)
	_, err = NewConsumer(ConsumerConfig{Brokers: []string{"b:9092"}, Topic: "t"}, discardLogger())
	assert.Error(t, err)
}
