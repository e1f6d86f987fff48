package activity_test

import (
	"math/rand"
	"testing"
	"time"

	"github.com/rpggio/agenthub/internal/domain/activity"
	"github.com/stretchr/testify/require"
)

var base = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func TestStore_AddAssignsIDAndTimestamps(t *testing.T) {
	store := activity.NewStore(activity.WithClock(func() time.Time { return base }))

	id, err := store.Add(activity.Activity{Type: activity.TypeMessage, AgentID: "coordinator", Content: "hi"})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	got, ok := store.Get(id)
	require.True(t, ok)
	require.Equal(t, base, got.Timestamp)
	require.Equal(t, base, got.LastUpdateTime)
	require.False(t, got.Read)
}

func TestStore_AddRejectsDuplicateID(t *testing.T) {
	store := activity.NewStore()
	_, err := store.Add(activity.Activity{ID: "a1", Content: "one"})
	require.NoError(t, err)
	_, err = store.Add(activity.Activity{ID: "a1", Content: "two"})
	require.ErrorIs(t, err, activity.ErrInvalidInput)
}

func TestStore_MergeKeepsNewestUpdate(t *testing.T) {
	rng := rand.New(rand.NewSource(42))

	for round := 0; round < 50; round++ {
		store := activity.NewStore()
		updates := make([]activity.Activity, 10)
		for i := range updates {
			updates[i] = activity.Activity{
				ID:             "a1",
				Content:        string(rune('a' + i)),
				Timestamp:      base,
				LastUpdateTime: base.Add(time.Duration(i+1) * time.Second),
			}
		}
		rng.Shuffle(len(updates), func(i, j int) { updates[i], updates[j] = updates[j], updates[i] })

		for _, u := range updates {
			store.Merge(u)
		}

		got, ok := store.Get("a1")
		require.True(t, ok)
		require.Equal(t, base.Add(10*time.Second), got.LastUpdateTime)
		require.Equal(t, "j", got.Content)
		require.Equal(t, 1, store.Len())
	}
}

func TestStore_MergeOrderDoesNotMatter(t *testing.T) {
	at := func(sec int) time.Time { return base.Add(time.Duration(sec) * time.Second) }
	type write struct {
		id      string
		content string
		sec     int
	}
	cases := []struct {
		name   string
		writes []write
		want   map[string]string
	}{
		{
			name:   "in order",
			writes: []write{{"a1", "v1", 1}, {"a1", "v2", 2}, {"a1", "v3", 3}},
			want:   map[string]string{"a1": "v3"},
		},
		{
			name:   "reversed",
			writes: []write{{"a1", "v3", 3}, {"a1", "v2", 2}, {"a1", "v1", 1}},
			want:   map[string]string{"a1": "v3"},
		},
		{
			name:   "newest in the middle",
			writes: []write{{"a1", "v2", 2}, {"a1", "v3", 3}, {"a1", "v1", 1}},
			want:   map[string]string{"a1": "v3"},
		},
		{
			name:   "tie keeps first arrival",
			writes: []write{{"a1", "v1", 1}, {"a1", "first", 2}, {"a1", "second", 2}},
			want:   map[string]string{"a1": "first"},
		},
		{
			name:   "interleaved ids",
			writes: []write{{"a1", "a-old", 1}, {"b1", "b-new", 5}, {"a1", "a-new", 4}, {"b1", "b-old", 2}, {"a1", "a-mid", 3}},
			want:   map[string]string{"a1": "a-new", "b1": "b-new"},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			store := activity.NewStore()
			newest := map[string]int{}
			for _, w := range tc.writes {
				store.Merge(activity.Activity{ID: w.id, Content: w.content, Timestamp: base, LastUpdateTime: at(w.sec)})
				newest[w.id] = max(newest[w.id], w.sec)
			}
			require.Equal(t, len(tc.want), store.Len())
			for id, content := range tc.want {
				got, ok := store.Get(id)
				require.True(t, ok)
				require.Equal(t, content, got.Content)
				require.Equal(t, at(newest[id]), got.LastUpdateTime)
			}
		})
	}
}

func TestStore_WatcherThatFallsBehindIsClosed(t *testing.T) {
	store := activity.NewStore()
	slow, cancelSlow := store.Watch(1)
	defer cancelSlow()
	fast, cancelFast := store.Watch(8)
	defer cancelFast()

	_, err := store.Add(activity.Activity{ID: "a1", Content: "one"})
	require.NoError(t, err)
	_, err = store.Add(activity.Activity{ID: "a2", Content: "two"})
	require.NoError(t, err)

	first, ok := <-slow
	require.True(t, ok)
	require.Equal(t, "a1", first.Activity.ID)
	_, ok = <-slow
	require.False(t, ok, "overflowing watcher is closed instead of skipping changes")
	require.Equal(t, 1, store.Watchers())

	require.Equal(t, "a1", (<-fast).Activity.ID)
	require.Equal(t, "a2", (<-fast).Activity.ID)

	// Releasing an already dropped watcher is harmless.
	cancelSlow()
	require.Equal(t, 1, store.Watchers())
}

func TestStore_InsertAfterAddIsIdempotent(t *testing.T) {
	store := activity.NewStore()
	id, err := store.Add(activity.Activity{AgentID: "coordinator", Content: "hello"})
	require.NoError(t, err)
	local, _ := store.Get(id)

	result := store.Merge(local)
	require.Equal(t, activity.MergeStale, result)
	require.Equal(t, 1, store.Len())
}

func TestStore_StaleUpdateLeavesRecordUnchanged(t *testing.T) {
	store := activity.NewStore()
	current := activity.Activity{
		ID:             "a1",
		Content:        "current",
		Status:         activity.StatusInProgress,
		Timestamp:      base,
		LastUpdateTime: base.Add(5 * time.Second),
	}
	require.Equal(t, activity.MergeInserted, store.Merge(current))

	older := current
	older.Content = "older"
	older.Status = activity.StatusFailed
	older.LastUpdateTime = base.Add(2 * time.Second)
	require.Equal(t, activity.MergeStale, store.Merge(older))

	equal := current
	equal.Content = "same time"
	require.Equal(t, activity.MergeStale, store.Merge(equal))

	got, _ := store.Get("a1")
	require.Equal(t, current, got)
}

func TestStore_MergeNeverRewritesTimestamp(t *testing.T) {
	store := activity.NewStore()
	store.Merge(activity.Activity{ID: "a1", Timestamp: base, LastUpdateTime: base})

	store.Merge(activity.Activity{ID: "a1", Timestamp: base.Add(time.Hour), LastUpdateTime: base.Add(time.Minute)})

	got, _ := store.Get("a1")
	require.Equal(t, base, got.Timestamp)
	require.Equal(t, base.Add(time.Minute), got.LastUpdateTime)
}

func TestStore_LockCompletedPinsStatus(t *testing.T) {
	store := activity.NewStore(activity.WithLockCompleted(true))
	store.Merge(activity.Activity{ID: "a1", Status: activity.StatusCompleted, Timestamp: base, LastUpdateTime: base})

	result := store.Merge(activity.Activity{
		ID:             "a1",
		Status:         activity.StatusInProgress,
		Read:           true,
		Timestamp:      base,
		LastUpdateTime: base.Add(time.Second),
	})
	require.Equal(t, activity.MergeApplied, result)

	got, _ := store.Get("a1")
	require.Equal(t, activity.StatusCompleted, got.Status)
	require.True(t, got.Read)
}

func TestStore_ListNewestFirst(t *testing.T) {
	store := activity.NewStore()
	store.Merge(activity.Activity{ID: "old", Timestamp: base})
	store.Merge(activity.Activity{ID: "new", Timestamp: base.Add(time.Minute)})
	store.Merge(activity.Activity{ID: "mid", Timestamp: base.Add(time.Second)})

	list := store.List()
	require.Len(t, list, 3)
	require.Equal(t, []string{"new", "mid", "old"}, []string{list[0].ID, list[1].ID, list[2].ID})
}

func TestStore_WatchReceivesChanges(t *testing.T) {
	store := activity.NewStore()
	changes, cancel := store.Watch(4)
	defer cancel()

	store.Merge(activity.Activity{ID: "a1", Timestamp: base, LastUpdateTime: base})
	store.Merge(activity.Activity{ID: "a1", Timestamp: base, LastUpdateTime: base.Add(time.Second), Read: true})

	first := <-changes
	require.Equal(t, activity.ChangeInserted, first.Kind)
	second := <-changes
	require.Equal(t, activity.ChangeUpdated, second.Kind)
	require.True(t, second.Activity.Read)
}

func TestFilter_ExcludesDismissedByDefault(t *testing.T) {
	list := []activity.Activity{
		{ID: "a1", AgentID: "calendar", Type: activity.TypeMessage},
		{ID: "a2", AgentID: "calendar", Type: activity.TypeTask, Dismissed: true},
		{ID: "a3", AgentID: "email", Type: activity.TypeMessage, Read: true},
	}

	require.Len(t, activity.Filter{}.Apply(list), 2)
	require.Len(t, activity.Filter{IncludeDismissed: true}.Apply(list), 3)
	require.Len(t, activity.Filter{AgentID: "calendar"}.Apply(list), 1)
	require.Len(t, activity.Filter{Types: []activity.ActivityType{activity.TypeTask}, IncludeDismissed: true}.Apply(list), 1)
	require.Len(t, activity.Filter{UnreadOnly: true}.Apply(list), 1)
	require.Equal(t, 1, activity.UnreadCount(list))
}

func TestRow_RoundTripKeepsNullables(t *testing.T) {
	a := activity.Activity{
		ID:             "a1",
		Type:           activity.TypeQuery,
		Agent:          "Calendar Assistant",
		AgentID:        "calendar",
		Content:        "what's next",
		Timestamp:      base,
		LastUpdateTime: base.Add(time.Second),
	}
	row := a.ToRow("user1")
	require.Nil(t, row.DetailedContent)
	require.Nil(t, row.Status)
	require.Equal(t, "user1", row.UserID)
	require.Equal(t, a, activity.FromRow(row))
}
