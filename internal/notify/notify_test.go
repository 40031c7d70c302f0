package notify

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu     sync.Mutex
	events []Event
	block  chan struct{}
}

func (r *recorder) Notify(_ context.Context, e Event) error {
	if r.block != nil {
		<-r.block
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

func (r *recorder) all() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

func TestAsync_DeliversInOrder(t *testing.T) {
	rec := &recorder{}
	a := NewAsync(rec, 8, nil)

	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, a.Notify(context.Background(), Event{Kind: KindQuestCompleted, StudentID: id}))
	}
	a.Close()

	events := rec.all()
	require.Len(t, events, 3)
	assert.Equal(t, "a", events[0].StudentID)
	assert.Equal(t, "c", events[2].StudentID)
}

func TestAsync_DropsWhenFull(t *testing.T) {
	rec := &recorder{block: make(chan struct{})}
	a := NewAsync(rec, 1, nil)

	// The loop picks up the first event and blocks on it; the second
	// fills the buffer; the rest are dropped.
	require.NoError(t, a.Notify(context.Background(), Event{StudentID: "1"}))
	assert.Eventually(t, func() bool { return len(a.pending) == 0 }, time.Second, time.Millisecond)
	for i := 0; i < 5; i++ {
		require.NoError(t, a.Notify(context.Background(), Event{StudentID: "x"}))
	}
	close(rec.block)
	a.Close()

	assert.Len(t, rec.all(), 2)
}

func TestAsync_NotifyAfterClose(t *testing.T) {
	rec := &recorder{}
	a := NewAsync(rec, 1, nil)
	a.Close()
	a.Close()
	assert.NoError(t, a.Notify(context.Background(), Event{StudentID: "late"}))
	assert.Empty(t, rec.all())
}

func TestAsync_DeliveryErrorIsSwallowed(t *testing.T) {
	var calls int
	a := NewAsync(NotifierFunc(func(context.Context, Event) error {
		calls++
		return errors.New("smtp down")
	}), 4, nil)
	require.NoError(t, a.Notify(context.Background(), Event{}))
	a.Close()
	assert.Equal(t, 1, calls)
}

type fakePublisher struct {
	channel string
	payload []byte
	err     error
}

func (f *fakePublisher) Publish(_ context.Context, channel string, message any) error {
	if f.err != nil {
		return f.err
	}
	f.channel = channel
	var err error
	f.payload, err = json.Marshal(message)
	return err
}

func TestRedisNotifier(t *testing.T) {
	pub := &fakePublisher{}
	n := NewRedisNotifier(pub, "")
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, n.Notify(context.Background(), Event{
		Kind:       KindQuestCompleted,
		StudentID:  "stu-1",
		QuestID:    "q-1",
		QuestTitle: "Times Tables Trek",
		XPEarned:   60,
		At:         at,
	}))
	assert.Equal(t, DefaultChannel, pub.channel)

	var got Event
	require.NoError(t, json.Unmarshal(pub.payload, &got))
	assert.Equal(t, KindQuestCompleted, got.Kind)
	assert.Equal(t, 60, got.XPEarned)
	assert.True(t, at.Equal(got.At))

	pub.err = errors.New("connection reset")
	err := n.Notify(context.Background(), Event{Kind: KindMastered})
	assert.ErrorContains(t, err, "publish competency-mastered")
}

func TestLogNotifier(t *testing.T) {
	assert.NoError(t, NewLogNotifier(nil).Notify(context.Background(), Event{Kind: KindMastered}))
	assert.NoError(t, Nop{}.Notify(context.Background(), Event{}))
}
