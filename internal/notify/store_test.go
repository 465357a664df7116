package notify

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPreferenceRoundTrip(t *testing.T) {
	store := NewMemoryStore()

	require.NoError(t, store.Save(context.Background(), &Preference{
		UserID:    "U",
		EventType: "transfer",
		Channels:  []string{"discord"},
		Enabled:   true,
	}))

	prefs, err := store.Load(context.Background(), "U")
	require.NoError(t, err)
	require.Len(t, prefs, 1)
	assert.Equal(t, "U", prefs[0].UserID)
	assert.Equal(t, "transfer", prefs[0].EventType)
	assert.Equal(t, []string{"discord"}, prefs[0].Channels)
	assert.True(t, prefs[0].Enabled)
	assert.False(t, prefs[0].UpdatedAt.IsZero())
}

func TestPreferenceUpsertOverwrites(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, &Preference{
		UserID: "U", EventType: "transfer", Channels: []string{"discord"}, Enabled: true,
	}))
	require.NoError(t, store.Save(ctx, &Preference{
		UserID: "U", EventType: "transfer", Channels: []string{"email", "webhook"}, Enabled: false,
	}))

	prefs, err := store.Load(ctx, "U")
	require.NoError(t, err)
	require.Len(t, prefs, 1, "same key must overwrite, not duplicate")
	assert.Equal(t, []string{"email", "webhook"}, prefs[0].Channels)
	assert.False(t, prefs[0].Enabled)
}

func TestPreferencesKeyedPerEventType(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, &Preference{
		UserID: "U", EventType: "transfer", Channels: []string{"discord"}, Enabled: true,
	}))
	require.NoError(t, store.Save(ctx, &Preference{
		UserID: "U", EventType: "security_alert", Channels: []string{"webhook"}, Enabled: true,
	}))
	require.NoError(t, store.Save(ctx, &Preference{
		UserID: "other", EventType: "transfer", Channels: []string{"email"}, Enabled: true,
	}))

	prefs, err := store.Load(ctx, "U")
	require.NoError(t, err)
	require.Len(t, prefs, 2)
	assert.Equal(t, "security_alert", prefs[0].EventType)
	assert.Equal(t, "transfer", prefs[1].EventType)
}

func TestLogListByUser(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	for i, user := range []string{"A", "B", "A", "A"} {
		require.NoError(t, store.Append(ctx, &Log{
			ID:        "ntf_" + string(rune('0'+i)),
			UserID:    user,
			EventType: "transfer",
			Channel:   "discord",
			Status:    StatusDryRun,
			CreatedAt: time.Now().UTC(),
		}))
	}

	logs, err := store.ListByUser(ctx, "A", 10)
	require.NoError(t, err)
	require.Len(t, logs, 3)
	// Most recent first
	assert.Equal(t, "ntf_3", logs[0].ID)
	assert.Equal(t, "ntf_0", logs[2].ID)

	limited, err := store.ListByUser(ctx, "A", 2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)

	none, err := store.ListByUser(ctx, "missing", 10)
	require.NoError(t, err)
	assert.Empty(t, none)
}
