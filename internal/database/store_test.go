package database

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"

	"graig/internal/models"
)

// testStore connects to the MongoDB given by MONGODB_URI and returns a
// store over dropped (clean) collections. Tests are skipped when no URI
// is configured.
func testStore(t *testing.T) (*Store, *Client) {
	t.Helper()

	uri := os.Getenv("MONGODB_URI")
	if uri == "" {
		t.Skip("MONGODB_URI not set; skipping integration test")
	}

	ctx := context.Background()
	client, err := New(ctx, uri)
	require.NoError(t, err, "database.New failed")
	t.Cleanup(func() { _ = client.Close(context.Background()) })

	db := client.Database()
	for _, name := range []string{collUsers, collVoiceSessions, collMessages, collReactions} {
		require.NoError(t, db.Collection(name).Drop(ctx))
	}

	return NewStore(client), client
}

// insertCompletedSession seeds a closed voice session with a fixed
// duration, bypassing the start/end flow.
func insertCompletedSession(t *testing.T, c *Client, userID, guildID, channelName string, joinedAt time.Time, durationSeconds int64) {
	t.Helper()

	leftAt := joinedAt.Add(time.Duration(durationSeconds) * time.Second)
	_, err := c.Database().Collection(collVoiceSessions).InsertOne(context.Background(), models.VoiceSession{
		UserID:          userID,
		GuildID:         guildID,
		ChannelID:       "chan-" + channelName,
		ChannelName:     channelName,
		JoinedAt:        joinedAt,
		LeftAt:          &leftAt,
		DurationSeconds: &durationSeconds,
	})
	require.NoError(t, err)
}

func TestUpsertUser(t *testing.T) {
	store, client := testStore(t)
	ctx := context.Background()

	require.NoError(t, store.UpsertUser(ctx, "u1", "Alice"))
	require.NoError(t, store.UpsertUser(ctx, "u1", "Alicia"))

	var user models.User
	err := client.Database().Collection(collUsers).
		FindOne(ctx, bson.M{"_id": "u1"}).Decode(&user)
	require.NoError(t, err)
	assert.Equal(t, "Alicia", user.Username, "username should be last-write-wins")
	assert.False(t, user.UpdatedAt.IsZero())

	count, err := client.Database().Collection(collUsers).CountDocuments(ctx, bson.M{})
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)
}

func TestVoiceSessionLifecycle(t *testing.T) {
	store, client := testStore(t)
	ctx := context.Background()
	sessions := client.Database().Collection(collVoiceSessions)

	require.NoError(t, store.StartVoiceSession(ctx, "u1", "g1", "c1", "General"))

	var open models.VoiceSession
	require.NoError(t, sessions.FindOne(ctx, bson.M{"user_id": "u1"}).Decode(&open))
	assert.Nil(t, open.LeftAt)
	assert.Nil(t, open.DurationSeconds)
	assert.Equal(t, "General", open.ChannelName)

	require.NoError(t, store.EndVoiceSession(ctx, "u1", "g1"))

	var closed models.VoiceSession
	require.NoError(t, sessions.FindOne(ctx, bson.M{"user_id": "u1"}).Decode(&closed))
	require.NotNil(t, closed.LeftAt)
	require.NotNil(t, closed.DurationSeconds)
	assert.GreaterOrEqual(t, *closed.DurationSeconds, int64(0))
	assert.LessOrEqual(t, *closed.DurationSeconds, int64(5))

	// Ending again with no open session is a no-op: no error, no new
	// documents, the closed session untouched.
	require.NoError(t, store.EndVoiceSession(ctx, "u1", "g1"))
	count, err := sessions.CountDocuments(ctx, bson.M{})
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)

	var unchanged models.VoiceSession
	require.NoError(t, sessions.FindOne(ctx, bson.M{"user_id": "u1"}).Decode(&unchanged))
	assert.Equal(t, *closed.DurationSeconds, *unchanged.DurationSeconds)
}

func TestEndVoiceSessionClosesNewest(t *testing.T) {
	store, client := testStore(t)
	ctx := context.Background()
	sessions := client.Database().Collection(collVoiceSessions)

	// Two open sessions for the same user; only the most recently joined
	// one should be closed.
	older := time.Now().UTC().Add(-2 * time.Hour).Truncate(time.Millisecond)
	newer := time.Now().UTC().Add(-1 * time.Hour).Truncate(time.Millisecond)
	for _, joined := range []time.Time{older, newer} {
		_, err := sessions.InsertOne(ctx, models.VoiceSession{
			UserID:    "u1",
			GuildID:   "g1",
			ChannelID: "c1",
			JoinedAt:  joined,
		})
		require.NoError(t, err)
	}

	require.NoError(t, store.EndVoiceSession(ctx, "u1", "g1"))

	var closed models.VoiceSession
	require.NoError(t, sessions.FindOne(ctx, bson.M{"left_at": bson.M{"$ne": nil}}).Decode(&closed))
	assert.WithinDuration(t, newer, closed.JoinedAt, time.Second)
	require.NotNil(t, closed.DurationSeconds)
	// Roughly an hour, floored to whole seconds.
	assert.InDelta(t, 3600, *closed.DurationSeconds, 5)

	stillOpen, err := sessions.CountDocuments(ctx, bson.M{"left_at": nil})
	require.NoError(t, err)
	assert.EqualValues(t, 1, stillOpen)
}

func TestVoiceStats(t *testing.T) {
	store, client := testStore(t)
	ctx := context.Background()

	now := time.Now().UTC()
	insertCompletedSession(t, client, "u1", "g1", "General", now.Add(-3*time.Hour), 3600)
	insertCompletedSession(t, client, "u1", "g1", "General", now.Add(-1*time.Hour), 1800)
	// Open session and other-guild session must not count.
	require.NoError(t, store.StartVoiceSession(ctx, "u1", "g1", "c1", "General"))
	insertCompletedSession(t, client, "u1", "g2", "Elsewhere", now.Add(-1*time.Hour), 9999)

	stats, err := store.VoiceStats(ctx, "u1", "g1")
	require.NoError(t, err)
	assert.EqualValues(t, 5400, stats.TotalSeconds)
	assert.EqualValues(t, 2, stats.SessionCount)
	assert.Equal(t, "General", stats.FavoriteChannel)
}

func TestVoiceStatsEmpty(t *testing.T) {
	store, _ := testStore(t)

	stats, err := store.VoiceStats(context.Background(), "nobody", "g1")
	require.NoError(t, err)
	assert.EqualValues(t, 0, stats.TotalSeconds)
	assert.EqualValues(t, 0, stats.SessionCount)
	assert.Empty(t, stats.FavoriteChannel)
}

func TestVoiceStatsFavoriteChannel(t *testing.T) {
	store, client := testStore(t)

	now := time.Now().UTC()
	insertCompletedSession(t, client, "u1", "g1", "Gaming", now.Add(-5*time.Hour), 600)
	insertCompletedSession(t, client, "u1", "g1", "General", now.Add(-4*time.Hour), 400)
	insertCompletedSession(t, client, "u1", "g1", "General", now.Add(-3*time.Hour), 400)

	stats, err := store.VoiceStats(context.Background(), "u1", "g1")
	require.NoError(t, err)
	assert.Equal(t, "General", stats.FavoriteChannel, "channel with highest summed duration wins")
}

func TestMessageStats(t *testing.T) {
	store, _ := testStore(t)
	ctx := context.Background()

	require.NoError(t, store.RecordMessage(ctx, "u1", "g1", "c1", "m1", []string{"😀", "😀", "👍"}))
	require.NoError(t, store.RecordMessage(ctx, "u1", "g1", "c1", "m2", []string{"😀"}))
	require.NoError(t, store.RecordMessage(ctx, "u1", "g1", "c1", "m3", nil))
	// Other user and other guild must not count.
	require.NoError(t, store.RecordMessage(ctx, "u2", "g1", "c1", "m4", []string{"🎉"}))
	require.NoError(t, store.RecordMessage(ctx, "u1", "g2", "c1", "m5", []string{"🎉"}))

	stats, err := store.MessageStats(ctx, "u1", "g1")
	require.NoError(t, err)
	assert.EqualValues(t, 3, stats.MessageCount)
	assert.EqualValues(t, 4, stats.TotalEmojis)
	assert.Equal(t, "😀", stats.TopEmoji)
	assert.EqualValues(t, 3, stats.TopEmojiCount)
}

func TestMessageStatsEmpty(t *testing.T) {
	store, _ := testStore(t)

	stats, err := store.MessageStats(context.Background(), "nobody", "g1")
	require.NoError(t, err)
	assert.EqualValues(t, 0, stats.MessageCount)
	assert.EqualValues(t, 0, stats.TotalEmojis)
	assert.Empty(t, stats.TopEmoji)
	assert.EqualValues(t, 0, stats.TopEmojiCount)
}

func TestReactionStats(t *testing.T) {
	store, _ := testStore(t)
	ctx := context.Background()

	require.NoError(t, store.RecordReaction(ctx, "u1", "g1", "c1", "m1", "⭐", ReactionAdd))
	require.NoError(t, store.RecordReaction(ctx, "u1", "g1", "c1", "m2", "⭐", ReactionAdd))
	require.NoError(t, store.RecordReaction(ctx, "u1", "g1", "c1", "m3", "👍", ReactionAdd))
	require.NoError(t, store.RecordReaction(ctx, "u1", "g1", "c1", "m1", "⭐", ReactionRemove))
	// Removes never influence the top reaction.
	require.NoError(t, store.RecordReaction(ctx, "u1", "g1", "c1", "m4", "👎", ReactionRemove))

	stats, err := store.ReactionStats(ctx, "u1", "g1")
	require.NoError(t, err)
	assert.EqualValues(t, 3, stats.AddCount)
	assert.EqualValues(t, 2, stats.RemoveCount)
	assert.Equal(t, "⭐", stats.TopReaction)
	assert.EqualValues(t, 2, stats.TopReactionCount)
}

func TestFirstActivity(t *testing.T) {
	store, client := testStore(t)
	ctx := context.Background()

	none, err := store.FirstActivity(ctx, "u1", "g1")
	require.NoError(t, err)
	assert.Nil(t, none, "no activity yields nil")

	now := time.Now().UTC()
	earliest := now.Add(-72 * time.Hour).Truncate(time.Millisecond)

	insertCompletedSession(t, client, "u1", "g1", "General", earliest, 60)
	require.NoError(t, store.RecordMessage(ctx, "u1", "g1", "c1", "m1", nil))
	require.NoError(t, store.RecordReaction(ctx, "u1", "g1", "c1", "m1", "⭐", ReactionAdd))

	first, err := store.FirstActivity(ctx, "u1", "g1")
	require.NoError(t, err)
	require.NotNil(t, first)
	assert.WithinDuration(t, earliest, *first, time.Second)
}

func TestGuildLeaderboards(t *testing.T) {
	store, client := testStore(t)
	ctx := context.Background()

	now := time.Now().UTC()
	require.NoError(t, store.UpsertUser(ctx, "u1", "Alice"))
	require.NoError(t, store.UpsertUser(ctx, "u2", "Bob"))
	// u3 has no user record and must render as "Unknown".

	insertCompletedSession(t, client, "u1", "g1", "General", now.Add(-3*time.Hour), 3600)
	insertCompletedSession(t, client, "u2", "g1", "General", now.Add(-3*time.Hour), 1800)
	insertCompletedSession(t, client, "u3", "g1", "General", now.Add(-3*time.Hour), 600)
	// Other guild is excluded entirely.
	insertCompletedSession(t, client, "u9", "g2", "Other", now.Add(-3*time.Hour), 99999)

	require.NoError(t, store.RecordMessage(ctx, "u2", "g1", "c1", "m1", []string{"😀", "👍"}))
	require.NoError(t, store.RecordMessage(ctx, "u2", "g1", "c1", "m2", nil))
	require.NoError(t, store.RecordMessage(ctx, "u1", "g1", "c1", "m3", []string{"😀"}))

	require.NoError(t, store.RecordReaction(ctx, "u1", "g1", "c1", "m1", "⭐", ReactionAdd))
	require.NoError(t, store.RecordReaction(ctx, "u1", "g1", "c1", "m2", "⭐", ReactionAdd))
	require.NoError(t, store.RecordReaction(ctx, "u1", "g1", "c1", "m3", "⭐", ReactionRemove))

	boards, err := store.GuildLeaderboards(ctx, "g1", nil, nil)
	require.NoError(t, err)

	require.Len(t, boards.VoiceTime, 3)
	assert.Equal(t, models.LeaderboardEntry{UserID: "u1", Username: "Alice", Value: 3600}, boards.VoiceTime[0])
	assert.Equal(t, models.LeaderboardEntry{UserID: "u2", Username: "Bob", Value: 1800}, boards.VoiceTime[1])
	assert.Equal(t, models.LeaderboardEntry{UserID: "u3", Username: UnknownUsername, Value: 600}, boards.VoiceTime[2])

	require.Len(t, boards.Messages, 2)
	assert.Equal(t, "u2", boards.Messages[0].UserID)
	assert.EqualValues(t, 2, boards.Messages[0].Value)

	require.Len(t, boards.Emojis, 2)
	assert.Equal(t, "u2", boards.Emojis[0].UserID)
	assert.EqualValues(t, 2, boards.Emojis[0].Value)

	// Only adds count toward the reactions board.
	require.Len(t, boards.Reactions, 1)
	assert.Equal(t, "u1", boards.Reactions[0].UserID)
	assert.EqualValues(t, 2, boards.Reactions[0].Value)
}

func TestGuildLeaderboardsTopFive(t *testing.T) {
	store, _ := testStore(t)
	ctx := context.Background()

	userIDs := []string{"u1", "u2", "u3", "u4", "u5", "u6", "u7"}
	for i, id := range userIDs {
		for j := 0; j <= i; j++ {
			require.NoError(t, store.RecordMessage(ctx, id, "g1", "c1", id+"-m", nil))
		}
	}

	boards, err := store.GuildLeaderboards(ctx, "g1", nil, nil)
	require.NoError(t, err)

	require.Len(t, boards.Messages, 5, "boards are capped at 5 entries")
	for i := 1; i < len(boards.Messages); i++ {
		assert.Greater(t, boards.Messages[i-1].Value, boards.Messages[i].Value,
			"entries are strictly descending")
	}
	assert.Equal(t, "u7", boards.Messages[0].UserID)
	assert.Equal(t, "u3", boards.Messages[4].UserID)
}

func TestGuildLeaderboardsDateRange(t *testing.T) {
	store, client := testStore(t)
	ctx := context.Background()
	messages := client.Database().Collection(collMessages)

	day := func(offset int) time.Time {
		return time.Date(2024, 6, 10+offset, 12, 0, 0, 0, time.UTC)
	}
	for i := 0; i < 5; i++ {
		_, err := messages.InsertOne(ctx, models.Message{
			UserID:    "u1",
			GuildID:   "g1",
			ChannelID: "c1",
			MessageID: "m",
			Emojis:    []string{},
			CreatedAt: day(i),
		})
		require.NoError(t, err)
	}

	// Inclusive on both ends: days 1, 2 and 3.
	start := day(1)
	end := day(3)
	boards, err := store.GuildLeaderboards(ctx, "g1", &start, &end)
	require.NoError(t, err)
	require.Len(t, boards.Messages, 1)
	assert.EqualValues(t, 3, boards.Messages[0].Value)

	// One-sided range is open on the missing side.
	boards, err = store.GuildLeaderboards(ctx, "g1", &start, nil)
	require.NoError(t, err)
	require.Len(t, boards.Messages, 1)
	assert.EqualValues(t, 4, boards.Messages[0].Value)

	boards, err = store.GuildLeaderboards(ctx, "g1", nil, &end)
	require.NoError(t, err)
	require.Len(t, boards.Messages, 1)
	assert.EqualValues(t, 4, boards.Messages[0].Value)

	// All-time when no range is given.
	boards, err = store.GuildLeaderboards(ctx, "g1", nil, nil)
	require.NoError(t, err)
	require.Len(t, boards.Messages, 1)
	assert.EqualValues(t, 5, boards.Messages[0].Value)
}
