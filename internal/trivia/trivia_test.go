package trivia

import (
	"context"
	"errors"
	"path/filepath"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"push-demo-backend/config"
	"push-demo-backend/internal/model"
	"push-demo-backend/internal/store"
)

func TestForDay(t *testing.T) {
	assert.Len(t, List, 26)

	jan1 := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, List[1], ForDay(jan1))

	jan26 := time.Date(2026, 1, 26, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, List[0], ForDay(jan26))

	// Day 300 of 2026 is October 27th.
	oct27 := time.Date(2026, 10, 27, 7, 0, 0, 0, time.UTC)
	assert.Equal(t, List[300%26], ForDay(oct27))
}

func TestNotification(t *testing.T) {
	day := time.Date(2026, 2, 3, 7, 0, 0, 0, time.UTC)
	n := Notification(day)

	assert.Equal(t, "Did you know?", n.Title)
	assert.Equal(t, ForDay(day), n.Body)
	assert.Equal(t, model.TagTrivia, n.Tag)
	assert.Equal(t, model.DefaultLang, n.Lang)
	assert.NotNil(t, n.Actions)
}

func TestNextRun(t *testing.T) {
	berlin, err := time.LoadLocation("Europe/Berlin")
	require.NoError(t, err)

	testCases := []struct {
		name string
		now  time.Time
		hour int
		loc  *time.Location
		want time.Time
	}{
		{
			name: "before the hour runs today",
			now:  time.Date(2026, 5, 10, 6, 59, 0, 0, time.UTC),
			hour: 7, loc: time.UTC,
			want: time.Date(2026, 5, 10, 7, 0, 0, 0, time.UTC),
		},
		{
			name: "exactly on the hour runs tomorrow",
			now:  time.Date(2026, 5, 10, 7, 0, 0, 0, time.UTC),
			hour: 7, loc: time.UTC,
			want: time.Date(2026, 5, 11, 7, 0, 0, 0, time.UTC),
		},
		{
			name: "after the hour runs tomorrow",
			now:  time.Date(2026, 12, 31, 23, 0, 0, 0, time.UTC),
			hour: 7, loc: time.UTC,
			want: time.Date(2027, 1, 1, 7, 0, 0, 0, time.UTC),
		},
		{
			name: "hour is interpreted in the configured zone",
			now:  time.Date(2026, 7, 1, 4, 30, 0, 0, time.UTC), // 06:30 in Berlin
			hour: 7, loc: berlin,
			want: time.Date(2026, 7, 1, 7, 0, 0, 0, berlin),
		},
		{
			name: "midnight",
			now:  time.Date(2026, 3, 3, 0, 0, 1, 0, time.UTC),
			hour: 0, loc: time.UTC,
			want: time.Date(2026, 3, 4, 0, 0, 0, 0, time.UTC),
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := NextRun(tc.now, tc.hour, tc.loc)
			assert.True(t, tc.want.Equal(got), "want %s, got %s", tc.want, got)
		})
	}
}

type recordingSender struct {
	mu     sync.Mutex
	owners []string
	bodies []string
	fail   map[string]error
}

func (r *recordingSender) Send(_ context.Context, ownerID string, n model.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.owners = append(r.owners, ownerID)
	r.bodies = append(r.bodies, n.Body)
	return r.fail[ownerID]
}

func newService(t *testing.T, sender *recordingSender, subs ...model.PushSubscription) *Service {
	t.Helper()
	st, err := store.OpenBoltStore(filepath.Join(t.TempDir(), "push.bolt"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	for _, sub := range subs {
		_, err := st.Upsert(context.Background(), sub)
		require.NoError(t, err)
	}

	svc, err := NewService(config.ScheduleConfig{Enabled: true, Hour: 7, Timezone: "UTC"}, st, sender)
	require.NoError(t, err)
	svc.now = func() time.Time { return time.Date(2026, 1, 1, 7, 0, 0, 0, time.UTC) }
	return svc
}

func sub(owner, key string) model.PushSubscription {
	return model.PushSubscription{OwnerID: owner, Endpoint: "https://push.example/" + key, P256DH: key, Auth: "AA=="}
}

func TestRunOnce_SendsOncePerOwner(t *testing.T) {
	sender := &recordingSender{}
	svc := newService(t, sender,
		sub("alice", "alice-phone"),
		sub("alice", "alice-laptop"),
		sub("bob", "bob-phone"),
	)

	require.NoError(t, svc.RunOnce(context.Background()))

	owners := append([]string(nil), sender.owners...)
	sort.Strings(owners)
	assert.Equal(t, []string{"alice", "bob"}, owners)
	for _, body := range sender.bodies {
		assert.Equal(t, List[1], body)
	}
}

func TestRunOnce_NoSubscriptions(t *testing.T) {
	sender := &recordingSender{}
	svc := newService(t, sender)

	assert.NoError(t, svc.RunOnce(context.Background()))
	assert.Empty(t, sender.owners)
}

func TestRunOnce_ContinuesAfterFailures(t *testing.T) {
	boom := errors.New("storage unavailable")
	sender := &recordingSender{fail: map[string]error{"alice": boom}}
	svc := newService(t, sender, sub("alice", "a"), sub("bob", "b"), sub("carol", "c"))

	err := svc.RunOnce(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "send trivia to owner alice")
	assert.Len(t, sender.owners, 3)
}

func TestNewService_InvalidTimezone(t *testing.T) {
	_, err := NewService(config.ScheduleConfig{Timezone: "Mars/Olympus_Mons"}, nil, &recordingSender{})
	assert.Error(t, err)
}

func TestRun_Disabled(t *testing.T) {
	svc, err := NewService(config.ScheduleConfig{Enabled: false, Timezone: "UTC"}, nil, &recordingSender{})
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		svc.Run(context.Background())
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("disabled schedule should return immediately")
	}
}

func TestRun_StopsOnCancel(t *testing.T) {
	sender := &recordingSender{}
	svc := newService(t, sender, sub("alice", "a"))
	svc.now = time.Now

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		svc.Run(ctx)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("schedule did not stop")
	}
	assert.Empty(t, sender.owners)
}
