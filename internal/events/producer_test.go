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

func TestProducer_PublishEvent(t *testing.T) {
	t.Parallel()

	w := &fakeWriter{}
	p := &Producer{writer: w}

	err := p.PublishEvent(context.Background(), TopicUsers, "alice", Event{Type: UserRegistered, Username: "alice"})
	require.NoError(t, err)

	require.Len(t, w.msgs, 1)
	msg := w.msgs[0]
	assert.Equal(t, TopicUsers, msg.Topic)
	assert.Equal(t, []byte("alice"), msg.Key)

	var got Event
	require.NoError(t, json.Unmarshal(msg.Value, &got))
	assert.Equal(t, UserRegistered, got.Type)
	assert.Equal(t, "alice", got.Username)

	require.NoError(t, p.Close())
	assert.True(t, w.closed)
}

func TestNewProducer_FlushesEachEvent(t *testing.T) {
	t.Parallel()

	p := NewProducer([]string{"kafka-1:9092", "kafka-2:9092"})
	w, ok := p.writer.(*kafka.Writer)
	require.True(t, ok)

	assert.Equal(t, 1, w.BatchSize)
	assert.Equal(t, batchTimeout, w.BatchTimeout)
	assert.Equal(t, 10*time.Millisecond, w.BatchTimeout)
	assert.False(t, w.Async)
	assert.Equal(t, publishTimeout, w.WriteTimeout)
	assert.Equal(t, kafka.RequireOne, w.RequiredAcks)
	assert.NotNil(t, w.Addr)
}

func TestProducer_PublishEvent_WriteError(t *testing.T) {
	t.Parallel()

	p := &Producer{writer: &fakeWriter{err: errors.New("broker down")}}
	err := p.PublishEvent(context.Background(), TopicPosts, "k", Event{Type: PostCreated})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "post_events")
}

func TestProducer_PublishEvent_MarshalError(t *testing.T) {
	t.Parallel()

	p := &Producer{writer: &fakeWriter{}}
	err := p.PublishEvent(context.Background(), TopicPosts, "k", make(chan int))
	require.Error(t, err)
}

func TestEmit_SwallowsErrorsAndStamps(t *testing.T) {
	t.Parallel()

	w := &fakeWriter{}
	Emit(context.Background(), &Producer{writer: w}, TopicPosts, Event{Type: PostDeleted, Username: "bob", PostID: 7})

	require.Len(t, w.msgs, 1)
	var got Event
	require.NoError(t, json.Unmarshal(w.msgs[0].Value, &got))
	assert.EqualValues(t, 7, got.PostID)
	assert.False(t, got.At.IsZero())

	assert.NotPanics(t, func() {
		Emit(context.Background(), &Producer{writer: &fakeWriter{err: errors.New("x")}}, TopicPosts, Event{})
		Emit(context.Background(), nil, TopicPosts, Event{})
		Emit(context.Background(), Nop{}, TopicPosts, Event{})
	})
}

func TestEmit_SurvivesCanceledRequest(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	w := &fakeWriter{}
	Emit(ctx, &Producer{writer: w}, TopicUsers, Event{Type: UserDeleted, Username: "a"})
	assert.Len(t, w.msgs, 1)
}
