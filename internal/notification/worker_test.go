package notification

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"push-demo-backend/internal/model"
)

type sentCall struct {
	ownerID string
	n       model.Notification
	at      time.Time
}

// mockSender records calls and reports them on a channel.
type mockSender struct {
	mu    sync.Mutex
	calls []sentCall
	done  chan sentCall
	err   error
}

func newMockSender() *mockSender {
	return &mockSender{done: make(chan sentCall, 16)}
}

func (m *mockSender) Send(_ context.Context, ownerID string, n model.Notification) error {
	call := sentCall{ownerID: ownerID, n: n, at: time.Now()}
	m.mu.Lock()
	m.calls = append(m.calls, call)
	m.mu.Unlock()
	m.done <- call
	return m.err
}

func (m *mockSender) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

func TestWorkerPool_Dispatch(t *testing.T) {
	wp := NewWorkerPool(1, 4, newMockSender())

	ok := wp.Dispatch(Job{OwnerID: "owner-1", Notification: model.NewNotification("hi")})
	require.True(t, ok)

	select {
	case job := <-wp.Jobs():
		assert.Equal(t, "owner-1", job.OwnerID)
		assert.Equal(t, "hi", job.Notification.Body)
	case <-time.After(1 * time.Second):
		t.Fatal("timed out waiting for job to be dispatched")
	}
}

func TestWorkerPool_DispatchRejectsWhenFull(t *testing.T) {
	wp := NewWorkerPool(1, 1, newMockSender())

	assert.True(t, wp.Dispatch(Job{OwnerID: "owner-1"}))
	assert.False(t, wp.Dispatch(Job{OwnerID: "owner-2"}), "queue is full and no worker is running")
}

func TestWorkerPool_ProcessesJobs(t *testing.T) {
	sender := newMockSender()
	sender.err = errors.New("store unavailable")
	wp := NewWorkerPool(2, 4, sender)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	wp.Start(ctx)

	n := model.NewNotification("hello")
	n.Tag = model.TagNotify
	require.True(t, wp.Dispatch(Job{OwnerID: "owner-1", Notification: n}))
	require.True(t, wp.Dispatch(Job{OwnerID: "owner-2", Notification: n}))

	got := map[string]bool{}
	for i := 0; i < 2; i++ {
		select {
		case call := <-sender.done:
			got[call.ownerID] = true
			assert.Equal(t, "hello", call.n.Body)
			assert.Equal(t, model.TagNotify, call.n.Tag)
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for the worker")
		}
	}
	assert.Equal(t, map[string]bool{"owner-1": true, "owner-2": true}, got)
}

func TestWorkerPool_HonoursDelay(t *testing.T) {
	sender := newMockSender()
	wp := NewWorkerPool(1, 1, sender)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	wp.Start(ctx)

	queued := time.Now()
	require.True(t, wp.Dispatch(Job{OwnerID: "owner-1", Delay: 50 * time.Millisecond}))

	select {
	case call := <-sender.done:
		assert.GreaterOrEqual(t, call.at.Sub(queued), 50*time.Millisecond)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for the delayed send")
	}
}

func TestWorkerPool_RunStopsOnCancel(t *testing.T) {
	sender := newMockSender()
	wp := NewWorkerPool(2, 1, sender)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- wp.Run(ctx) }()

	require.True(t, wp.Dispatch(Job{OwnerID: "owner-1", Delay: time.Hour}))
	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("worker pool did not stop")
	}
	assert.Zero(t, sender.count(), "delayed job is dropped on shutdown")
}
