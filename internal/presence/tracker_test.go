package presence

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTracker_MembershipIsIdempotent(t *testing.T) {
	ctx := context.Background()
	tr := NewTracker(NewMemoryStore(), false)

	require.NoError(t, tr.AddOnlineUser(ctx, "u1"))
	require.NoError(t, tr.AddOnlineUser(ctx, "u1"))
	require.NoError(t, tr.AddEventViewer(ctx, "e1", "u1"))
	require.NoError(t, tr.AddEventViewer(ctx, "e1", "u1"))

	n, err := tr.CountOnline(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	n, err = tr.CountEventViewers(ctx, "e1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	require.NoError(t, tr.RemoveEventViewer(ctx, "e1", "nobody"))
	require.NoError(t, tr.RemoveOnlineUser(ctx, "nobody"))
	n, _ = tr.CountOnline(ctx)
	assert.Equal(t, int64(1), n)
}

func TestTracker_ViewingEventsOf(t *testing.T) {
	ctx := context.Background()
	tr := NewTracker(NewMemoryStore(), false)
	require.NoError(t, tr.AddEventViewer(ctx, "e1", "u1"))
	require.NoError(t, tr.AddEventViewer(ctx, "e2", "u2"))
	require.NoError(t, tr.AddEventViewer(ctx, "e3", "u1"))

	events, err := tr.ViewingEventsOf(ctx, "u1")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"e1", "e3"}, events)

	require.NoError(t, tr.RemoveFromAllEvents(ctx, "u1"))
	events, err = tr.ViewingEventsOf(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, events)
	viewers, err := tr.EventViewers(ctx, "e2")
	require.NoError(t, err)
	assert.Equal(t, []string{"u2"}, viewers)
}

func TestTracker_RemoveFromAllEventsWithSlashInEventID(t *testing.T) {
	ctx := context.Background()
	tr := NewTracker(NewMemoryStore(), false)
	require.NoError(t, tr.AddEventViewer(ctx, "conf/2026", "u1"))
	require.NoError(t, tr.AddEventViewer(ctx, "plain", "u1"))

	events, err := tr.ViewingEventsOf(ctx, "u1")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"conf/2026", "plain"}, events)

	require.NoError(t, tr.RemoveFromAllEvents(ctx, "u1"))
	n, err := tr.CountEventViewers(ctx, "conf/2026")
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestGlobMatch(t *testing.T) {
	cases := []struct {
		pattern, key string
		want         bool
	}{
		{"event_viewers:*", "event_viewers:e1", true},
		{"event_viewers:*", "event_viewers:a/b/c", true},
		{"event_viewers:*", "event_viewers:", true},
		{"event_viewers:*", "online_users", false},
		{"a?c", "a/c", true},
		{"a?c", "ac", false},
		{"*:x", "k:y:x", true},
		{`a\*`, "a*", true},
		{`a\*`, "ab", false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, globMatch(tc.pattern, tc.key), "%q ~ %q", tc.pattern, tc.key)
	}
}

func TestTracker_FlatSetDisconnectMarksOffline(t *testing.T) {
	ctx := context.Background()
	tr := NewTracker(NewMemoryStore(), false)

	require.NoError(t, tr.Connect(ctx, "u1"))
	require.NoError(t, tr.Connect(ctx, "u1")) // second tab

	offline, err := tr.Disconnect(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, offline)
	online, err := tr.IsOnline(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, online)
}

func TestTracker_RefCountKeepsUserOnlineUntilLastConnection(t *testing.T) {
	ctx := context.Background()
	tr := NewTracker(NewMemoryStore(), true)

	require.NoError(t, tr.Connect(ctx, "u1"))
	require.NoError(t, tr.Connect(ctx, "u1"))

	offline, err := tr.Disconnect(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, offline)
	online, _ := tr.IsOnline(ctx, "u1")
	assert.True(t, online)

	offline, err = tr.Disconnect(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, offline)
	online, _ = tr.IsOnline(ctx, "u1")
	assert.False(t, online)
	n, _ := tr.Connections(ctx, "u1")
	assert.Equal(t, int64(0), n)
}

func TestTracker_ConcurrentJoinsThenDisconnectsLeaveNoViewers(t *testing.T) {
	ctx := context.Background()
	tr := NewTracker(NewMemoryStore(), false)
	const users = 50

	var wg sync.WaitGroup
	for i := 0; i < users; i++ {
		wg.Add(1)
		go func(u string) {
			defer wg.Done()
			assert.NoError(t, tr.Connect(ctx, u))
			assert.NoError(t, tr.AddEventViewer(ctx, "e1", u))
		}(fmt.Sprintf("u%d", i))
	}
	wg.Wait()

	n, err := tr.CountEventViewers(ctx, "e1")
	require.NoError(t, err)
	assert.Equal(t, int64(users), n)

	for i := 0; i < users; i++ {
		wg.Add(1)
		go func(u string) {
			defer wg.Done()
			assert.NoError(t, tr.RemoveFromAllEvents(ctx, u))
			_, err := tr.Disconnect(ctx, u)
			assert.NoError(t, err)
		}(fmt.Sprintf("u%d", i))
	}
	wg.Wait()

	n, err = tr.CountEventViewers(ctx, "e1")
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)
	n, _ = tr.CountOnline(ctx)
	assert.Equal(t, int64(0), n)
}
